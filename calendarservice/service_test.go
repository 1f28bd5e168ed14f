package calendarservice

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentdav/bridge/caldav"
	"github.com/agentdav/bridge/daverr"
	"github.com/agentdav/bridge/freebusy"
	"github.com/agentdav/bridge/internal/webdav"
	"github.com/agentdav/bridge/retry"
)

const icsBody = "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nBEGIN:VEVENT\r\nUID:e1\r\nDTSTART:20260315T140000Z\r\nDTEND:20260315T150000Z\r\nSUMMARY:Review\r\nEND:VEVENT\r\nEND:VCALENDAR\r\n"

const transparentICSBody = "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nBEGIN:VEVENT\r\nUID:e2\r\nDTSTART:20260315T143000Z\r\nDTEND:20260315T153000Z\r\nSUMMARY:Optional sync\r\nTRANSP:TRANSPARENT\r\nEND:VEVENT\r\nEND:VCALENDAR\r\n"

func newTestService(t *testing.T, handler http.HandlerFunc) (*Service, *httptest.Server) {
	t.Helper()
	ts := httptest.NewServer(handler)
	httpClient := webdav.NewInjectingClient(nil, webdav.BasicAuthInjector("user", "pass"))
	c, err := caldav.NewClient(httpClient, ts.URL)
	if err != nil {
		t.Fatalf("new caldav client: %v", err)
	}
	cfg := retry.Config{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Jitter: false}
	svc := New(c, "/calendars/", "", webdav.BasicAuthInjector("user", "pass"), cfg, zerolog.Nop())
	return svc, ts
}

func TestFetchEventsCtagFastPath(t *testing.T) {
	var queryReportHits int32

	mux := http.NewServeMux()
	mux.HandleFunc("/calendars/", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case "PROPFIND":
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusMultiStatus)
			fmt.Fprintf(w, `<?xml version="1.0"?>
<d:multistatus xmlns:d="DAV:" xmlns:c="urn:ietf:params:xml:ns:caldav">
  <d:response>
    <d:href>/calendars/personal/</d:href>
    <d:propstat>
      <d:prop>
        <d:resourcetype><d:collection/><c:calendar/></d:resourcetype>
        <d:displayname>Personal</d:displayname>
        <cs:getctag xmlns:cs="http://calendarserver.org/ns/">%s</cs:getctag>
      </d:prop>
      <d:status>HTTP/1.1 200 OK</d:status>
    </d:propstat>
  </d:response>
</d:multistatus>`, xmlEscape("T0"))
		case "REPORT":
			atomic.AddInt32(&queryReportHits, 1)
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusMultiStatus)
			fmt.Fprintf(w, `<?xml version="1.0"?>
<d:multistatus xmlns:d="DAV:" xmlns:c="urn:ietf:params:xml:ns:caldav">
  <d:response>
    <d:href>/calendars/personal/e1.ics</d:href>
    <d:propstat>
      <d:prop>
        <d:getetag>"v1"</d:getetag>
        <c:calendar-data>%s</c:calendar-data>
      </d:prop>
      <d:status>HTTP/1.1 200 OK</d:status>
    </d:propstat>
  </d:response>
</d:multistatus>`, xmlEscape(icsBody))
		}
	})

	svc, ts := newTestService(t, mux.ServeHTTP)
	defer ts.Close()

	ctx := context.Background()
	cals, err := svc.ListCalendars(ctx)
	if err != nil {
		t.Fatalf("ListCalendars: %v", err)
	}
	if len(cals) != 1 {
		t.Fatalf("expected 1 calendar, got %d", len(cals))
	}
	cal := cals[0]
	cal.CTag = "T0"

	events, err := svc.FetchEvents(ctx, cal, nil)
	if err != nil {
		t.Fatalf("FetchEvents (first): %v", err)
	}
	if len(events) != 1 || events[0].Summary != "Review" {
		t.Fatalf("unexpected events: %+v", events)
	}
	if hits := atomic.LoadInt32(&queryReportHits); hits != 1 {
		t.Fatalf("expected 1 REPORT call, got %d", hits)
	}

	if _, err := svc.FetchEvents(ctx, cal, nil); err != nil {
		t.Fatalf("FetchEvents (second, same ctag): %v", err)
	}
	if hits := atomic.LoadInt32(&queryReportHits); hits != 1 {
		t.Fatalf("expected cache hit to avoid a second REPORT call, got %d hits", hits)
	}
}

func TestUpdateEvent412BecomesTypedConflict(t *testing.T) {
	svc, ts := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			w.WriteHeader(http.StatusPreconditionFailed)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	defer ts.Close()

	_, err := svc.UpdateEvent(context.Background(), "/calendars/personal/e1.ics", icsBody, "stale-etag")
	if err == nil {
		t.Fatalf("expected a conflict error")
	}
	if !daverr.IsConflict(err) {
		t.Fatalf("expected *daverr.Conflict, got %T: %v", err, err)
	}
}

// TestFreeBusyQueryFallsBackToEventReconstruction is §8.4.3's scenario:
// the server returns 501 on free-busy-query, so FreeBusyQuery must fall
// back to fetching events in range and reconstructing busy intervals,
// dropping the TRANSPARENT one.
func TestFreeBusyQueryFallsBackToEventReconstruction(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/calendars/personal/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "REPORT" {
			w.WriteHeader(http.StatusOK)
			return
		}
		body, _ := io.ReadAll(r.Body)
		if strings.Contains(string(body), "free-busy-query") {
			w.WriteHeader(http.StatusNotImplemented)
			io.WriteString(w, "free/busy reports are not supported")
			return
		}

		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusMultiStatus)
		fmt.Fprintf(w, `<?xml version="1.0"?>
<d:multistatus xmlns:d="DAV:" xmlns:c="urn:ietf:params:xml:ns:caldav">
  <d:response>
    <d:href>/calendars/personal/e1.ics</d:href>
    <d:propstat>
      <d:prop>
        <d:getetag>"v1"</d:getetag>
        <c:calendar-data>%s</c:calendar-data>
      </d:prop>
      <d:status>HTTP/1.1 200 OK</d:status>
    </d:propstat>
  </d:response>
  <d:response>
    <d:href>/calendars/personal/e2.ics</d:href>
    <d:propstat>
      <d:prop>
        <d:getetag>"v1"</d:getetag>
        <c:calendar-data>%s</c:calendar-data>
      </d:prop>
      <d:status>HTTP/1.1 200 OK</d:status>
    </d:propstat>
  </d:response>
</d:multistatus>`, xmlEscape(icsBody), xmlEscape(transparentICSBody))
	})

	svc, ts := newTestService(t, mux.ServeHTTP)
	defer ts.Close()

	start := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)
	periods, err := svc.FreeBusyQuery(context.Background(), "/calendars/personal/", start, end)
	if err != nil {
		t.Fatalf("FreeBusyQuery: %v", err)
	}
	if len(periods) != 1 {
		t.Fatalf("expected 1 merged busy period, got %+v", periods)
	}
	want := freebusy.Period{
		Start: time.Date(2026, 3, 15, 14, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 3, 15, 15, 0, 0, 0, time.UTC),
		Type:  freebusy.Busy,
	}
	if !periods[0].Start.Equal(want.Start) || !periods[0].End.Equal(want.End) || periods[0].Type != want.Type {
		t.Fatalf("unexpected period: %+v, want %+v", periods[0], want)
	}
}

func xmlEscape(s string) string {
	var buf []byte
	b := []byte(s)
	w := &xmlEscapeWriter{buf: buf}
	xml.EscapeText(w, b)
	return string(w.buf)
}

type xmlEscapeWriter struct{ buf []byte }

func (w *xmlEscapeWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	return len(p), nil
}
