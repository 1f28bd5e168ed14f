package addressbookservice

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentdav/bridge/carddav"
	"github.com/agentdav/bridge/daverr"
	"github.com/agentdav/bridge/internal/webdav"
	"github.com/agentdav/bridge/retry"
)

const vcardBody = "BEGIN:VCARD\r\nVERSION:3.0\r\nUID:c1\r\nFN:Ada Lovelace\r\nEND:VCARD\r\n"

func newTestService(t *testing.T, handler http.HandlerFunc) (*Service, *httptest.Server) {
	t.Helper()
	ts := httptest.NewServer(handler)
	httpClient := webdav.NewInjectingClient(nil, webdav.BasicAuthInjector("user", "pass"))
	c, err := carddav.NewClient(httpClient, ts.URL)
	if err != nil {
		t.Fatalf("new carddav client: %v", err)
	}
	cfg := retry.Config{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Jitter: false}
	svc := New(c, "/principal/", "", webdav.BasicAuthInjector("user", "pass"), cfg, zerolog.Nop())
	return svc, ts
}

// TestFetchContactsMultigetFallback exercises the §4.8 fallback: a
// bulk multiGet REPORT returning zero results must trigger a retry via
// addressbook-query (QueryAll), not a hard failure.
func TestFetchContactsMultigetFallback(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/contacts/", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case "PROPFIND":
			body, _ := io.ReadAll(r.Body)
			if strings.Contains(string(body), "getctag") {
				w.Header().Set("Content-Type", "application/xml")
				w.WriteHeader(http.StatusMultiStatus)
				io.WriteString(w, `<?xml version="1.0"?>
<d:multistatus xmlns:d="DAV:" xmlns:cs="http://calendarserver.org/ns/">
  <d:response>
    <d:href>/contacts/personal/</d:href>
    <d:propstat><d:prop><cs:getctag>T0</cs:getctag></d:prop><d:status>HTTP/1.1 200 OK</d:status></d:propstat>
  </d:response>
</d:multistatus>`)
				return
			}
			// ListObjectPaths: PROPFIND for getetag, Depth: 1.
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusMultiStatus)
			io.WriteString(w, `<?xml version="1.0"?>
<d:multistatus xmlns:d="DAV:">
  <d:response>
    <d:href>/contacts/personal/</d:href>
    <d:propstat><d:prop><d:getetag/></d:prop><d:status>HTTP/1.1 404 Not Found</d:status></d:propstat>
  </d:response>
  <d:response>
    <d:href>/contacts/personal/c1.vcf</d:href>
    <d:propstat><d:prop><d:getetag>"v1"</d:getetag></d:prop><d:status>HTTP/1.1 200 OK</d:status></d:propstat>
  </d:response>
</d:multistatus>`)
		case "REPORT":
			body, _ := io.ReadAll(r.Body)
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusMultiStatus)
			if strings.Contains(string(body), "addressbook-multiget") {
				io.WriteString(w, `<?xml version="1.0"?><d:multistatus xmlns:d="DAV:"></d:multistatus>`)
				return
			}
			fmtWrite(w, vcardBody)
		}
	})

	svc, ts := newTestService(t, mux.ServeHTTP)
	defer ts.Close()

	ctx := context.Background()
	book := carddav.AddressBook{Path: "/contacts/personal/", Name: "Personal", CTag: "T0"}

	contacts, err := svc.FetchContacts(ctx, book)
	if err != nil {
		t.Fatalf("FetchContacts: %v", err)
	}
	if len(contacts) != 1 || contacts[0].UID != "c1" {
		t.Fatalf("expected fallback query-all to surface the contact, got %+v", contacts)
	}
}

func fmtWrite(w http.ResponseWriter, vcard string) {
	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0"?>
<d:multistatus xmlns:d="DAV:" xmlns:card="urn:ietf:params:xml:ns:carddav">
  <d:response>
    <d:href>/contacts/personal/c1.vcf</d:href>
    <d:propstat>
      <d:prop>
        <d:getetag>"v1"</d:getetag>
        <card:address-data>`)
	buf.WriteString(vcard)
	buf.WriteString(`</card:address-data>
      </d:prop>
      <d:status>HTTP/1.1 200 OK</d:status>
    </d:propstat>
  </d:response>
</d:multistatus>`)
	w.Write(buf.Bytes())
}

func TestUpdateContact412BecomesTypedConflict(t *testing.T) {
	svc, ts := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			w.WriteHeader(http.StatusPreconditionFailed)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	defer ts.Close()

	_, err := svc.UpdateContact(context.Background(), "/contacts/personal/c1.vcf", vcardBody, "stale-etag")
	if err == nil {
		t.Fatalf("expected a conflict error")
	}
	if !daverr.IsConflict(err) {
		t.Fatalf("expected *daverr.Conflict, got %T: %v", err, err)
	}
}
