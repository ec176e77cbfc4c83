// Package sharepoint lists the contents of SharePoint document libraries
// through the Microsoft Graph API.
package sharepoint

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// SiteID and DriveID are opaque identifiers returned by the Graph API.
// They are never constructed or parsed locally.
type SiteID string
type DriveID string

// Document describes one file found in a document library. Path is the
// folder path relative to the library root, empty for root-level files.
type Document struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Path   string `json:"path"`
	Size   int64  `json:"size"`
	WebURL string `json:"web_url"`
}

// Maximum number of children requested per folder. Entries beyond this are
// not listed; see the warning in listChildren.
const childPageSize = 1000

type graphError struct {
	Message string `json:"message"`
}

type siteResponse struct {
	ID    string      `json:"id"`
	Error *graphError `json:"error"`
}

type drive struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type driveListResponse struct {
	Value []drive `json:"value"`
}

type fileFacet struct {
	MIMEType string `json:"mimeType"`
}

type folderFacet struct {
	ChildCount int `json:"childCount"`
}

// driveItem is a file or folder entry from a children listing. Exactly one
// of File and Folder is set.
type driveItem struct {
	ID     string       `json:"id"`
	Name   string       `json:"name"`
	Size   int64        `json:"size"`
	WebURL string       `json:"webUrl"`
	File   *fileFacet   `json:"file"`
	Folder *folderFacet `json:"folder"`
}

type childrenResponse struct {
	Value []driveItem `json:"value"`
	Error *graphError `json:"error"`
}

// folderTask marks a folder still to be visited during one enumeration.
type folderTask struct {
	path string
}

// Client lists the contents of one SharePoint document library. A client is
// owned by a single logical request and is not safe for concurrent use; give
// each request its own instance.
type Client struct {
	config    Config
	transport *transport
}

// Option adjusts a Client after construction.
type Option func(*Client)

// WithBaseURL points the client at an alternative Graph endpoint.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.transport.baseURL = baseURL
	}
}

// WithRetryDelay overrides the initial retry backoff delay.
func WithRetryDelay(delay time.Duration) Option {
	return func(c *Client) {
		c.transport.retryDelay = delay
	}
}

// WithHTTPClient overrides the HTTP client used for Graph calls.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.transport.httpClient = httpClient
	}
}

// New validates the configuration and returns a client for the configured
// document library.
func New(cfg Config, provider TokenProvider, opts ...Option) (*Client, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}

	client := &Client{
		config:    cfg,
		transport: newTransport(provider),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// ResolveSite looks up the site ID for the configured site name.
func (c *Client) ResolveSite(ctx context.Context) (SiteID, error) {
	log.Infof("Getting site ID for: %s", c.config.SiteName)

	endpoint := fmt.Sprintf("/sites/%s.sharepoint.com:/sites/%s", c.config.TenantID, c.config.SiteName)
	body, err := c.transport.execute(ctx, http.MethodGet, endpoint, nil, nil)
	if err != nil {
		return "", err
	}

	var site siteResponse
	if err := json.Unmarshal(body, &site); err != nil {
		return "", fmt.Errorf("decode site response: %w", err)
	}

	if site.ID == "" {
		log.Errorf("Failed to retrieve site ID. Response: %s", body)
		message := "no specific error message provided"
		if site.Error != nil && site.Error.Message != "" {
			message = site.Error.Message
		}
		return "", &ResolutionError{
			Resource: fmt.Sprintf("site ID for %s", c.config.SiteName),
			Message:  message,
			Response: body,
		}
	}

	log.Infof("Retrieved site ID: %s", site.ID)
	return SiteID(site.ID), nil
}

// ResolveDrive finds the drive backing the configured document library.
// When no drive matches by name it falls back to the site default library,
// and failing that returns a ResolutionError naming the available drives.
func (c *Client) ResolveDrive(ctx context.Context, siteID SiteID) (DriveID, error) {
	log.Infof("Getting drive ID for document library: %s", c.config.DocumentLibrary)

	endpoint := fmt.Sprintf("/sites/%s/drives", siteID)
	body, err := c.transport.execute(ctx, http.MethodGet, endpoint, nil, nil)
	if err != nil {
		return "", err
	}

	var drives driveListResponse
	if err := json.Unmarshal(body, &drives); err != nil {
		return "", fmt.Errorf("decode drive list: %w", err)
	}

	available := make([]string, 0, len(drives.Value))
	for _, d := range drives.Value {
		available = append(available, d.Name)
	}
	log.Infof("Available drives: %v", available)

	for _, d := range drives.Value {
		if d.Name == c.config.DocumentLibrary {
			log.Infof("Found drive ID for %s: %s", c.config.DocumentLibrary, d.ID)
			return DriveID(d.ID), nil
		}
	}

	log.Warnf("Document library '%s' not found. Trying to get default document library.", c.config.DocumentLibrary)
	for _, d := range drives.Value {
		if d.Name == DefaultDocumentLibrary {
			log.Infof("Found default drive ID: %s", d.ID)
			return DriveID(d.ID), nil
		}
	}

	log.Errorf("Failed to find drive. Response data: %s", body)
	resolutionErr := &ResolutionError{
		Resource:        fmt.Sprintf("drive for document library: %s", c.config.DocumentLibrary),
		Response:        body,
		AvailableDrives: available,
	}
	if len(available) == 0 {
		resolutionErr.Message = "no drives found"
	}
	return "", resolutionErr
}

// ListDocuments returns every file under folderPath (the library root when
// empty), descending into subfolders. Traversal uses an explicit work list;
// within each folder, files are emitted before any subfolder is visited, and
// subfolders are visited in the order the API returned them.
func (c *Client) ListDocuments(ctx context.Context, siteID SiteID, driveID DriveID, folderPath string) ([]Document, error) {
	documents := []Document{}
	pending := []folderTask{{path: folderPath}}

	for len(pending) > 0 {
		task := pending[0]
		pending = pending[1:]

		items, err := c.listChildren(ctx, siteID, driveID, task.path)
		if err != nil {
			return nil, err
		}

		for _, item := range items {
			switch {
			case item.File != nil:
				documents = append(documents, Document{
					ID:     item.ID,
					Name:   item.Name,
					Path:   task.path,
					Size:   item.Size,
					WebURL: item.WebURL,
				})
			case item.Folder != nil:
				childPath := item.Name
				if task.path != "" {
					childPath = task.path + "/" + item.Name
				}
				pending = append(pending, folderTask{path: childPath})
			}
		}
	}

	return documents, nil
}

// listChildren fetches a single page of children for one folder.
func (c *Client) listChildren(ctx context.Context, siteID SiteID, driveID DriveID, folderPath string) ([]driveItem, error) {
	label := folderPath
	if label == "" {
		label = "root"
	}
	log.Infof("Listing documents in folder: '%s'", label)

	endpoint := fmt.Sprintf("/sites/%s/drives/%s/root", siteID, driveID)
	if folderPath != "" {
		endpoint += ":/" + folderPath + ":"
	}
	endpoint += "/children"

	query := url.Values{}
	query.Set("$select", "id,name,size,webUrl,file,folder")
	query.Set("$top", strconv.Itoa(childPageSize))

	body, err := c.transport.execute(ctx, http.MethodGet, endpoint, query, nil)
	if err != nil {
		return nil, err
	}

	var children childrenResponse
	if err := json.Unmarshal(body, &children); err != nil {
		return nil, fmt.Errorf("decode children response: %w", err)
	}

	// The API can return an error object inside a successful envelope.
	if children.Error != nil {
		message := children.Error.Message
		if message == "" {
			message = "Unknown error"
		}
		log.Errorf("Error listing documents: %s", message)
		return nil, &ListingError{Folder: folderPath, Message: message}
	}

	log.Infof("Found %d items in folder '%s'", len(children.Value), label)
	if len(children.Value) == childPageSize {
		log.Warnf("Folder '%s' hit the page limit of %d entries; further entries are not listed", label, childPageSize)
	}

	return children.Value, nil
}

// ListAllDocuments resolves the configured site and library and returns
// every valid document under the library root. Records missing an id or a
// name are dropped with a warning instead of failing the whole listing.
func (c *Client) ListAllDocuments(ctx context.Context) ([]Document, error) {
	siteID, err := c.ResolveSite(ctx)
	if err != nil {
		return nil, err
	}

	driveID, err := c.ResolveDrive(ctx, siteID)
	if err != nil {
		return nil, err
	}

	documents, err := c.ListDocuments(ctx, siteID, driveID, "")
	if err != nil {
		return nil, err
	}

	valid := make([]Document, 0, len(documents))
	for _, document := range documents {
		if missing := document.missingFields(); len(missing) > 0 {
			log.Warnf("Incomplete document metadata. Missing fields: %s. Document data: %+v", strings.Join(missing, ", "), document)
			continue
		}
		log.Infof("Found document: %s (ID: %s, Size: %d bytes, URL: %s)", document.fullPath(), document.ID, document.Size, document.WebURL)
		valid = append(valid, document)
	}

	log.Infof("Processed %d documents", len(valid))
	return valid, nil
}

func (d Document) missingFields() []string {
	var missing []string
	if d.ID == "" {
		missing = append(missing, "id")
	}
	if d.Name == "" {
		missing = append(missing, "name")
	}
	return missing
}

func (d Document) fullPath() string {
	if d.Path == "" {
		return d.Name
	}
	return d.Path + "/" + d.Name
}
