package caldav

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

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

func TestCalendarQueryRangeSendsTimeRangeAndParsesResponse(t *testing.T) {
	var sawDepth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "REPORT" {
			t.Fatalf("expected REPORT, got %s", r.Method)
		}
		sawDepth = r.Header.Get("Depth")
		w.Header().Set("Content-Type", "application/xml; charset=utf-8")
		w.WriteHeader(http.StatusMultiStatus)
		io.WriteString(w, `<?xml version="1.0"?>
<d:multistatus xmlns:d="DAV:" xmlns:cal="urn:ietf:params:xml:ns:caldav">
  <d:response>
    <d:href>/cal/event1.ics</d:href>
    <d:propstat>
      <d:prop>
        <d:getetag>"abc123"</d:getetag>
        <cal:calendar-data>BEGIN:VCALENDAR
END:VCALENDAR</cal:calendar-data>
      </d:prop>
      <d:status>HTTP/1.1 200 OK</d:status>
    </d:propstat>
  </d:response>
</d:multistatus>`)
	}))
	defer ts.Close()

	c := newTestClient(t, ts)
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)

	objs, err := c.CalendarQueryRange(context.Background(), "/cal/", start, end)
	if err != nil {
		t.Fatalf("CalendarQueryRange: %v", err)
	}
	if sawDepth != "1" {
		t.Fatalf("expected Depth 1, got %q", sawDepth)
	}
	if len(objs) != 1 {
		t.Fatalf("expected 1 object, got %d", len(objs))
	}
	if objs[0].ETag != "abc123" {
		t.Fatalf("unexpected etag: %q", objs[0].ETag)
	}
}

func TestPutCalendarObjectConflictBecomesHTTPError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") != "*" {
			t.Fatalf("expected If-None-Match: *, got %q", r.Header.Get("If-None-Match"))
		}
		w.WriteHeader(http.StatusPreconditionFailed)
	}))
	defer ts.Close()

	c := newTestClient(t, ts)
	_, err := c.PutCalendarObject(context.Background(), "/cal/new.ics", []byte("BEGIN:VCALENDAR\nEND:VCALENDAR"), &PutCalendarObjectOptions{IfNoneMatch: "*"})
	if err == nil {
		t.Fatal("expected error on 412")
	}
	httpErr, ok := err.(*webdav.HTTPError)
	if !ok {
		t.Fatalf("expected *webdav.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusPreconditionFailed {
		t.Fatalf("expected 412, got %d", httpErr.Code)
	}
}

func TestFindCalendarsSkipsNonCalendarCollections(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml; charset=utf-8")
		w.WriteHeader(http.StatusMultiStatus)
		io.WriteString(w, `<?xml version="1.0"?>
<d:multistatus xmlns:d="DAV:" xmlns:cal="urn:ietf:params:xml:ns:caldav" xmlns:cs="http://calendarserver.org/ns/">
  <d:response>
    <d:href>/cal/</d:href>
    <d:propstat><d:prop><d:resourcetype><d:collection/></d:resourcetype></d:prop><d:status>HTTP/1.1 200 OK</d:status></d:propstat>
  </d:response>
  <d:response>
    <d:href>/cal/personal/</d:href>
    <d:propstat>
      <d:prop>
        <d:resourcetype><d:collection/><cal:calendar/></d:resourcetype>
        <d:displayname>Personal</d:displayname>
        <cs:getctag>ctag-1</cs:getctag>
      </d:prop>
      <d:status>HTTP/1.1 200 OK</d:status>
    </d:propstat>
  </d:response>
</d:multistatus>`)
	}))
	defer ts.Close()

	c := newTestClient(t, ts)
	cals, err := c.FindCalendars(context.Background(), "/cal/")
	if err != nil {
		t.Fatalf("FindCalendars: %v", err)
	}
	if len(cals) != 1 {
		t.Fatalf("expected 1 calendar, got %d", len(cals))
	}
	if cals[0].Name != "Personal" || cals[0].CTag != "ctag-1" {
		t.Fatalf("unexpected calendar: %+v", cals[0])
	}
}
