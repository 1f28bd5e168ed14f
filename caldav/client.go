package caldav

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/agentdav/bridge/internal/webdav"
)

const MIMEType = "text/calendar"

// Client is a thin CalDAV-specific veneer over a generic WebDAV client.
type Client struct {
	dav *webdav.Client
}

func NewClient(c webdav.HTTPClient, endpoint string) (*Client, error) {
	dav, err := webdav.NewClient(c, endpoint)
	if err != nil {
		return nil, err
	}
	return &Client{dav: dav}, nil
}

// DiscoverContextURL performs well-known discovery as described in
// RFC 6764 for the caldav service.
func DiscoverContextURL(ctx context.Context, c webdav.HTTPClient, domain string) (string, error) {
	return webdav.DiscoverContextURL(ctx, c, "caldav", domain)
}

func (c *Client) FindCurrentUserPrincipal(ctx context.Context) (string, error) {
	pf := webdav.NewPropNamePropFind(webdav.CurrentUserPrincipalName)
	resp, err := c.dav.PropFindFlat(ctx, "", pf)
	if err != nil {
		return "", err
	}
	var prop webdav.CurrentUserPrincipal
	if err := resp.DecodeProp(&prop); err != nil {
		return "", err
	}
	if prop.Unauthenticated != nil {
		return "", fmt.Errorf("caldav: unauthenticated")
	}
	if prop.Href == nil {
		return "", fmt.Errorf("caldav: server did not advertise a current-user-principal")
	}
	return prop.Href.Path, nil
}

func (c *Client) FindCalendarHomeSet(ctx context.Context, principal string) (string, error) {
	pf := webdav.NewPropNamePropFind(CalendarHomeSetName)
	resp, err := c.dav.PropFindFlat(ctx, principal, pf)
	if err != nil {
		return "", err
	}
	var prop calendarHomeSet
	if err := resp.DecodeProp(&prop); err != nil {
		return "", err
	}
	return prop.Href.Path, nil
}

// FindScheduleInboxURL locates the per-user scheduling inbox used by the
// invitation workflow. Servers that do not implement scheduling return
// ("", nil); the invitation feature set downgrades silently in that case.
func (c *Client) FindScheduleInboxURL(ctx context.Context, principal string) (string, error) {
	pf := webdav.NewPropNamePropFind(scheduleInboxURLName)
	resp, err := c.dav.PropFindFlat(ctx, principal, pf)
	if err != nil {
		if httpErr, ok := err.(*webdav.HTTPError); ok && httpErr.Code == http.StatusNotFound {
			return "", nil
		}
		return "", err
	}
	var prop scheduleInboxURL
	if err := resp.DecodeProp(&prop); err != nil {
		if webdav.IsNotFound(err) {
			return "", nil
		}
		return "", err
	}
	return prop.Href.Path, nil
}

func (c *Client) FindCalendars(ctx context.Context, calendarHomeSet string) ([]Calendar, error) {
	ms, err := c.dav.PropFind(ctx, calendarHomeSet, webdav.DepthOne, calendarPropFind)
	if err != nil {
		return nil, err
	}
	cals := make([]Calendar, 0, len(ms.Responses))
	for _, resp := range ms.Responses {
		cal, err := parseCalendarFromResponse(&resp)
		if err != nil {
			return nil, err
		}
		if cal == nil || sameCollectionPath(cal.Path, calendarHomeSet) {
			continue
		}
		cals = append(cals, *cal)
	}
	return cals, nil
}

// GetCollectionCTag fetches just the CTag of a single collection; used by
// the calendar service's server-side dirty-check before a full refetch.
func (c *Client) GetCollectionCTag(ctx context.Context, path string) (string, error) {
	pf := webdav.NewPropNamePropFind(webdav.CTagName)
	resp, err := c.dav.PropFindFlat(ctx, path, pf)
	if err != nil {
		return "", err
	}
	var ctag string
	if raw := resp.PropStats[0].Prop.Get(webdav.CTagName); raw != nil {
		if err := raw.Decode(&ctag); err != nil {
			return "", err
		}
	}
	return ctag, nil
}

func (c *Client) GetCalendarObject(ctx context.Context, path string) (*CalendarObject, error) {
	req, err := c.dav.NewRequest(http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", MIMEType)

	resp, err := c.dav.Do(req.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		if mediaType, _, err := mime.ParseMediaType(ct); err == nil && !strings.EqualFold(mediaType, MIMEType) {
			return nil, fmt.Errorf("caldav: expected Content-Type %q, got %q", MIMEType, mediaType)
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	co := &CalendarObject{Path: path, Data: data}
	if err := populateCalendarObject(co, resp.Header); err != nil {
		return nil, err
	}
	return co, nil
}

func (c *Client) PutCalendarObject(ctx context.Context, path string, body []byte, opts *PutCalendarObjectOptions) (*CalendarObject, error) {
	req, err := c.dav.NewRequest(http.MethodPut, path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", MIMEType)

	if opts != nil {
		if opts.IfMatch != "" {
			req.Header.Set("If-Match", fmt.Sprintf(`"%s"`, opts.IfMatch))
		}
		if opts.IfNoneMatch != "" {
			req.Header.Set("If-None-Match", opts.IfNoneMatch)
		}
	}

	resp, err := c.dav.Do(req.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	co := &CalendarObject{Path: path}
	if err := populateCalendarObject(co, resp.Header); err != nil {
		return nil, err
	}
	return co, nil
}

func (c *Client) DeleteCalendarObject(ctx context.Context, path, ifMatch string) error {
	req, err := c.dav.NewRequest(http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	if ifMatch != "" {
		req.Header.Set("If-Match", fmt.Sprintf(`"%s"`, ifMatch))
	}
	resp, err := c.dav.Do(req.WithContext(ctx))
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// CalendarQueryRange runs a calendar-query REPORT with a VEVENT time-range
// filter. A zero start or end leaves that boundary open-ended.
func (c *Client) CalendarQueryRange(ctx context.Context, path string, start, end time.Time) ([]CalendarObject, error) {
	propReq, err := encodeCalendarDataReq()
	if err != nil {
		return nil, err
	}

	eventFilter := compFilter{Name: "VEVENT"}
	if !start.IsZero() || !end.IsZero() {
		eventFilter.TimeRange = &timeRange{Start: dateWithUTCTime(start), End: dateWithUTCTime(end)}
	}

	query := &calendarQuery{
		Prop: propReq,
		Filter: filter{
			CompFilter: compFilter{
				Name:        "VCALENDAR",
				CompFilters: []compFilter{eventFilter},
			},
		},
	}

	depth := webdav.DepthOne
	ms, err := c.dav.ReportDepth(ctx, path, &depth, query)
	if err != nil {
		return nil, err
	}

	objs := make([]CalendarObject, 0, len(ms.Responses))
	for _, resp := range ms.Responses {
		co, err := decodeCalendarObject(resp)
		if err != nil {
			return nil, err
		}
		objs = append(objs, *co)
	}
	return objs, nil
}

// CalendarMultiget fetches a known list of object paths in one REPORT.
func (c *Client) CalendarMultiget(ctx context.Context, basePath string, paths []string) ([]CalendarObject, error) {
	if len(paths) == 0 {
		return nil, nil
	}

	propReq, err := encodeCalendarDataReq()
	if err != nil {
		return nil, err
	}

	hrefs := make([]webdav.Href, len(paths))
	for i, p := range paths {
		hrefs[i] = webdav.Href{Path: p}
	}

	query := &calendarMultiget{Hrefs: hrefs, Prop: propReq}

	depth := webdav.DepthOne
	ms, err := c.dav.ReportDepth(ctx, basePath, &depth, query)
	if err != nil {
		return nil, err
	}

	objs := make([]CalendarObject, 0, len(ms.Responses))
	for _, resp := range ms.Responses {
		co, err := decodeCalendarObject(resp)
		if err != nil {
			return nil, err
		}
		objs = append(objs, *co)
	}
	return objs, nil
}

// FreeBusyQueryReport issues the RFC 4791 free-busy-query REPORT against a
// calendar collection. Unlike every other REPORT here, the response is a
// bare text/calendar VFREEBUSY body, not a multistatus document.
func (c *Client) FreeBusyQueryReport(ctx context.Context, path string, start, end time.Time) ([]byte, error) {
	req, err := c.dav.NewXMLRequest("REPORT", path, &freeBusyQuery{
		TimeRange: timeRange{Start: dateWithUTCTime(start), End: dateWithUTCTime(end)},
	})
	if err != nil {
		return nil, err
	}
	req.Header.Set("Depth", "0")

	resp, err := c.dav.Do(req.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

// UnfoldICSLines merges iCalendar continuation lines (leading whitespace)
// back into the logical lines they continue, for callers working on a raw
// body without a full parse.
func UnfoldICSLines(data string) ([]string, error) {
	var lines []string
	var current string
	scanner := bufio.NewScanner(strings.NewReader(strings.ReplaceAll(data, "\r\n", "\n")))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t") {
			current += strings.TrimPrefix(strings.TrimPrefix(line, " "), "\t")
			continue
		}
		if current != "" {
			lines = append(lines, current)
		}
		current = line
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if current != "" {
		lines = append(lines, current)
	}
	return lines, nil
}
