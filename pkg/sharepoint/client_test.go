package sharepoint_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nais/spdocs/pkg/sharepoint"
)

var testConfig = sharepoint.Config{
	TenantID:        "contoso",
	SiteName:        "intranet",
	DocumentLibrary: "Documents",
}

type staticTokenProvider struct {
	mu        sync.Mutex
	calls     int
	expiresIn time.Duration
}

func (p *staticTokenProvider) Token(_ context.Context) (sharepoint.AccessToken, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return sharepoint.AccessToken{
		Value:     "test-token",
		ExpiresAt: time.Now().Add(p.expiresIn),
	}, nil
}

func (p *staticTokenProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func newTestClient(t *testing.T, cfg sharepoint.Config, handler http.Handler) *sharepoint.Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	provider := &staticTokenProvider{expiresIn: time.Hour}
	client, err := sharepoint.New(cfg, provider,
		sharepoint.WithBaseURL(server.URL),
		sharepoint.WithRetryDelay(time.Millisecond),
	)
	if err != nil {
		t.Fatalf("creating client: %s", err)
	}
	return client
}

// graphHandler serves a fake document library: root/{a.txt, sub/{b.txt}}.
func graphHandler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/sites/contoso.sharepoint.com:/sites/intranet":
			fmt.Fprint(w, `{"id": "site-1"}`)
		case "/sites/site-1/drives":
			fmt.Fprint(w, `{"value": [{"id": "drive-1", "name": "Documents"}]}`)
		case "/sites/site-1/drives/drive-1/root/children":
			assert.Equal(t, "1000", r.URL.Query().Get("$top"))
			assert.Equal(t, "id,name,size,webUrl,file,folder", r.URL.Query().Get("$select"))
			fmt.Fprint(w, `{"value": [
				{"id": "item-a", "name": "a.txt", "size": 11, "webUrl": "https://example.com/a.txt", "file": {"mimeType": "text/plain"}},
				{"id": "folder-sub", "name": "sub", "folder": {"childCount": 1}}
			]}`)
		case "/sites/site-1/drives/drive-1/root:/sub:/children":
			fmt.Fprint(w, `{"value": [
				{"id": "item-b", "name": "b.txt", "size": 22, "webUrl": "https://example.com/b.txt", "file": {"mimeType": "text/plain"}}
			]}`)
		default:
			t.Errorf("unexpected request: %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}
}

func TestResolveSite(t *testing.T) {
	client := newTestClient(t, testConfig, graphHandler(t))

	siteID, err := client.ResolveSite(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, sharepoint.SiteID("site-1"), siteID)
}

func TestResolveSiteWithoutID(t *testing.T) {
	client := newTestClient(t, testConfig, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error": {"message": "Requested site could not be found"}}`)
	}))

	_, err := client.ResolveSite(context.Background())
	assert.Error(t, err)

	var resolution *sharepoint.ResolutionError
	assert.ErrorAs(t, err, &resolution)
	assert.Equal(t, "Requested site could not be found", resolution.Message)
	assert.Contains(t, string(resolution.Response), "Requested site")
}

func TestResolveDrive(t *testing.T) {
	cfg := testConfig
	cfg.DocumentLibrary = "Reports"

	client := newTestClient(t, cfg, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"value": [
			{"id": "drive-1", "name": "Documents"},
			{"id": "drive-2", "name": "Reports"}
		]}`)
	}))

	driveID, err := client.ResolveDrive(context.Background(), "site-1")
	assert.NoError(t, err)
	assert.Equal(t, sharepoint.DriveID("drive-2"), driveID)
}

func TestResolveDriveFallsBackToDefault(t *testing.T) {
	cfg := testConfig
	cfg.DocumentLibrary = "Reports"

	client := newTestClient(t, cfg, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"value": [
			{"id": "drive-1", "name": "Documents"},
			{"id": "drive-2", "name": "Pictures"}
		]}`)
	}))

	driveID, err := client.ResolveDrive(context.Background(), "site-1")
	assert.NoError(t, err)
	assert.Equal(t, sharepoint.DriveID("drive-1"), driveID)
}

func TestResolveDriveNotFound(t *testing.T) {
	cfg := testConfig
	cfg.DocumentLibrary = "Reports"

	client := newTestClient(t, cfg, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"value": [{"id": "drive-1", "name": "Docs"}]}`)
	}))

	_, err := client.ResolveDrive(context.Background(), "site-1")
	assert.Error(t, err)

	var resolution *sharepoint.ResolutionError
	assert.ErrorAs(t, err, &resolution)
	assert.Equal(t, []string{"Docs"}, resolution.AvailableDrives)
	assert.Contains(t, err.Error(), "Docs")
}

func TestResolveDriveNoDrives(t *testing.T) {
	client := newTestClient(t, testConfig, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"value": []}`)
	}))

	_, err := client.ResolveDrive(context.Background(), "site-1")
	assert.Error(t, err)

	var resolution *sharepoint.ResolutionError
	assert.ErrorAs(t, err, &resolution)
	assert.Empty(t, resolution.AvailableDrives)
	assert.Contains(t, err.Error(), "no drives found")
}

func TestListDocumentsWalksTree(t *testing.T) {
	client := newTestClient(t, testConfig, graphHandler(t))

	documents, err := client.ListDocuments(context.Background(), "site-1", "drive-1", "")
	assert.NoError(t, err)
	assert.Equal(t, []sharepoint.Document{
		{ID: "item-a", Name: "a.txt", Path: "", Size: 11, WebURL: "https://example.com/a.txt"},
		{ID: "item-b", Name: "b.txt", Path: "sub", Size: 22, WebURL: "https://example.com/b.txt"},
	}, documents)
}

func TestListDocumentsNestedFolders(t *testing.T) {
	client := newTestClient(t, testConfig, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sites/site-1/drives/drive-1/root/children":
			fmt.Fprint(w, `{"value": [{"id": "folder-sub", "name": "sub", "folder": {"childCount": 1}}]}`)
		case "/sites/site-1/drives/drive-1/root:/sub:/children":
			fmt.Fprint(w, `{"value": [{"id": "folder-inner", "name": "inner", "folder": {"childCount": 1}}]}`)
		case "/sites/site-1/drives/drive-1/root:/sub/inner:/children":
			fmt.Fprint(w, `{"value": [{"id": "item-c", "name": "c.txt", "size": 33, "webUrl": "https://example.com/c.txt", "file": {"mimeType": "text/plain"}}]}`)
		default:
			t.Errorf("unexpected request: %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}))

	documents, err := client.ListDocuments(context.Background(), "site-1", "drive-1", "")
	assert.NoError(t, err)
	assert.Equal(t, []sharepoint.Document{
		{ID: "item-c", Name: "c.txt", Path: "sub/inner", Size: 33, WebURL: "https://example.com/c.txt"},
	}, documents)
}

func TestListDocumentsEmbeddedError(t *testing.T) {
	client := newTestClient(t, testConfig, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error": {"message": "Access denied"}}`)
	}))

	_, err := client.ListDocuments(context.Background(), "site-1", "drive-1", "")
	assert.Error(t, err)

	var listing *sharepoint.ListingError
	assert.ErrorAs(t, err, &listing)
	assert.Equal(t, "Access denied", listing.Message)
}

func TestListAllDocumentsDropsMalformedRecords(t *testing.T) {
	client := newTestClient(t, testConfig, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sites/contoso.sharepoint.com:/sites/intranet":
			fmt.Fprint(w, `{"id": "site-1"}`)
		case "/sites/site-1/drives":
			fmt.Fprint(w, `{"value": [{"id": "drive-1", "name": "Documents"}]}`)
		case "/sites/site-1/drives/drive-1/root/children":
			fmt.Fprint(w, `{"value": [
				{"name": "orphan.txt", "size": 1, "file": {"mimeType": "text/plain"}},
				{"id": "item-a", "name": "a.txt", "size": 11, "webUrl": "https://example.com/a.txt", "file": {"mimeType": "text/plain"}}
			]}`)
		default:
			t.Errorf("unexpected request: %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}))

	documents, err := client.ListAllDocuments(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, []sharepoint.Document{
		{ID: "item-a", Name: "a.txt", Path: "", Size: 11, WebURL: "https://example.com/a.txt"},
	}, documents)
}

func TestListAllDocumentsIsIdempotent(t *testing.T) {
	client := newTestClient(t, testConfig, graphHandler(t))

	first, err := client.ListAllDocuments(context.Background())
	assert.NoError(t, err)

	second, err := client.ListAllDocuments(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, first, second)
}
