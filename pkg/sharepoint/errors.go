package sharepoint

import (
	"fmt"
	"strings"
)

// MissingSettingError is returned when a required setting has no value.
// Handlers map it to a 400 response.
type MissingSettingError struct {
	Setting string
}

func (e *MissingSettingError) Error() string {
	return fmt.Sprintf("%s environment variable must be set", e.Setting)
}

// TransportError is returned when a Graph request still fails after all
// retry attempts. It carries the last underlying cause.
type TransportError struct {
	Method   string
	Endpoint string
	Attempts int
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s failed after %d attempts: %s", e.Method, e.Endpoint, e.Attempts, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ResolutionError is returned when the Graph API responded but the expected
// identifier was absent. Response holds the raw payload for diagnosis;
// AvailableDrives is populated for drive lookups.
type ResolutionError struct {
	Resource        string
	Message         string
	Response        []byte
	AvailableDrives []string
}

func (e *ResolutionError) Error() string {
	if len(e.AvailableDrives) > 0 {
		return fmt.Sprintf("could not resolve %s. Available drives: %s", e.Resource, strings.Join(e.AvailableDrives, ", "))
	}
	if e.Message != "" {
		return fmt.Sprintf("could not resolve %s: %s", e.Resource, e.Message)
	}
	return fmt.Sprintf("could not resolve %s", e.Resource)
}

// ListingError is returned when a children listing came back with an error
// object embedded in the response envelope.
type ListingError struct {
	Folder  string
	Message string
}

func (e *ListingError) Error() string {
	return fmt.Sprintf("failed to list documents in folder '%s': %s", e.folderLabel(), e.Message)
}

func (e *ListingError) folderLabel() string {
	if e.Folder == "" {
		return "root"
	}
	return e.Folder
}
