package carddav

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/agentdav/bridge/internal/webdav"
)

func newTestClient(t *testing.T, ts *httptest.Server) *Client {
	t.Helper()
	httpClient := webdav.NewInjectingClient(nil, webdav.BasicAuthInjector("user", "pass"))
	c, err := NewClient(httpClient, ts.URL)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestMultigetEmptyTriggersCallerFallback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml; charset=utf-8")
		w.WriteHeader(http.StatusMultiStatus)
		io.WriteString(w, `<?xml version="1.0"?><d:multistatus xmlns:d="DAV:"></d:multistatus>`)
	}))
	defer ts.Close()

	c := newTestClient(t, ts)
	objs, err := c.Multiget(context.Background(), "/contacts/", []string{"/contacts/a.vcf"})
	if err != nil {
		t.Fatalf("Multiget: %v", err)
	}
	if len(objs) != 0 {
		t.Fatalf("expected empty result, got %d", len(objs))
	}
}

func TestQueryAllParsesVCardData(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml; charset=utf-8")
		w.WriteHeader(http.StatusMultiStatus)
		io.WriteString(w, `<?xml version="1.0"?>
<d:multistatus xmlns:d="DAV:" xmlns:card="urn:ietf:params:xml:ns:carddav">
  <d:response>
    <d:href>/contacts/a.vcf</d:href>
    <d:propstat>
      <d:prop>
        <d:getetag>"v1"</d:getetag>
        <card:address-data>BEGIN:VCARD
VERSION:3.0
FN:Ada Lovelace
END:VCARD</card:address-data>
      </d:prop>
      <d:status>HTTP/1.1 200 OK</d:status>
    </d:propstat>
  </d:response>
</d:multistatus>`)
	}))
	defer ts.Close()

	c := newTestClient(t, ts)
	objs, err := c.QueryAll(context.Background(), "/contacts/")
	if err != nil {
		t.Fatalf("QueryAll: %v", err)
	}
	if len(objs) != 1 || objs[0].ETag != "v1" {
		t.Fatalf("unexpected result: %+v", objs)
	}
}
