// Package calendarservice implements the L3 calendar service of §4.7: the
// CTag-aware fetch path, optimistic-concurrency writes, UID lookup, and
// free/busy delegation, all wrapped in the retry engine.
package calendarservice

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/agentdav/bridge/cache"
	"github.com/agentdav/bridge/caldav"
	"github.com/agentdav/bridge/daverr"
	"github.com/agentdav/bridge/freebusy"
	"github.com/agentdav/bridge/ical"
	"github.com/agentdav/bridge/internal/webdav"
	"github.com/agentdav/bridge/retry"
)

// TimeRange narrows fetch_events to a server-side time-range REPORT. A
// zero Start or End leaves that boundary open-ended.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Service implements §4.7. One Service serves one CalDAV account.
type Service struct {
	client          *caldav.Client
	calendarHomeSet string
	defaultName     string
	authHeader      func(*http.Request)
	retryCfg        retry.Config
	log             zerolog.Logger

	mu        sync.Mutex
	calendars []caldav.Calendar

	objCache *cache.Cache[caldav.CalendarObject]
}

func New(client *caldav.Client, calendarHomeSet, defaultCalendarName string, authHeader func(*http.Request), retryCfg retry.Config, log zerolog.Logger) *Service {
	return &Service{
		client:          client,
		calendarHomeSet: calendarHomeSet,
		defaultName:     defaultCalendarName,
		authHeader:      authHeader,
		retryCfg:        retryCfg,
		log:             log,
		objCache:        cache.New[caldav.CalendarObject](),
	}
}

// ListCalendars discovers calendars on first call and caches them on the
// service instance until RefreshCalendars is called.
func (s *Service) ListCalendars(ctx context.Context) ([]caldav.Calendar, error) {
	s.mu.Lock()
	if s.calendars != nil {
		defer s.mu.Unlock()
		return s.calendars, nil
	}
	s.mu.Unlock()

	var cals []caldav.Calendar
	err := retry.Do(ctx, s.log, s.retryCfg, "list_calendars", func(ctx context.Context) error {
		var err error
		cals, err = s.client.FindCalendars(ctx, s.calendarHomeSet)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.calendars = cals
	s.mu.Unlock()
	s.log.Info().Int("count", len(cals)).Msg("calendarservice: discovered calendars")
	return cals, nil
}

// RefreshCalendars re-discovers calendars and clears the object cache,
// since collection URLs may have changed.
func (s *Service) RefreshCalendars(ctx context.Context) error {
	s.mu.Lock()
	s.calendars = nil
	s.mu.Unlock()
	s.objCache.Clear()
	_, err := s.ListCalendars(ctx)
	return err
}

func (s *Service) resolveCalendar(ctx context.Context, name string) (*caldav.Calendar, error) {
	cals, err := s.ListCalendars(ctx)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = s.defaultName
	}
	if name == "" {
		if len(cals) == 0 {
			return nil, daverr.NewNotFound(daverr.ResourceEvent, "no calendars available")
		}
		return &cals[0], nil
	}
	for i := range cals {
		if strings.EqualFold(cals[i].Name, name) {
			return &cals[i], nil
		}
	}
	return nil, daverr.NewNotFound(daverr.ResourceEvent, fmt.Sprintf("calendar named %q", name))
}

// FetchEvents implements the CTag-aware fetch policy of §4.7. A supplied
// time range always hits the server; without one the cache is consulted,
// falling back to a dirty-check CTag probe before a full refetch.
func (s *Service) FetchEvents(ctx context.Context, cal caldav.Calendar, tr *TimeRange) ([]*ical.Event, error) {
	if tr != nil {
		objs, err := s.fetchRange(ctx, cal.Path, *tr)
		if err != nil {
			return nil, err
		}
		return transformAll(objs, s.log), nil
	}

	if s.objCache.IsFresh(cal.Path, cal.CTag) {
		entry, _ := s.objCache.Get(cal.Path)
		return transformAll(entry.Objects, s.log), nil
	}

	if _, ok := s.objCache.Get(cal.Path); ok {
		var currentCTag string
		err := retry.Do(ctx, s.log, s.retryCfg, "ctag_dirty_check", func(ctx context.Context) error {
			var err error
			currentCTag, err = s.client.GetCollectionCTag(ctx, cal.Path)
			return err
		})
		if err == nil && currentCTag == cal.CTag {
			entry, _ := s.objCache.Get(cal.Path)
			s.objCache.Set(cal.Path, currentCTag, entry.Objects)
			return transformAll(entry.Objects, s.log), nil
		}
	}

	objs, err := s.fetchRange(ctx, cal.Path, TimeRange{})
	if err != nil {
		return nil, err
	}

	var newCTag string
	_ = retry.Do(ctx, s.log, s.retryCfg, "ctag_refresh", func(ctx context.Context) error {
		var err error
		newCTag, err = s.client.GetCollectionCTag(ctx, cal.Path)
		return err
	})
	s.objCache.Set(cal.Path, newCTag, objs)

	return transformAll(objs, s.log), nil
}

func (s *Service) fetchRange(ctx context.Context, path string, tr TimeRange) ([]caldav.CalendarObject, error) {
	var objs []caldav.CalendarObject
	err := retry.Do(ctx, s.log, s.retryCfg, "fetch_events", func(ctx context.Context) error {
		var err error
		objs, err = s.client.CalendarQueryRange(ctx, path, tr.Start, tr.End)
		return err
	})
	return objs, err
}

func transformAll(objs []caldav.CalendarObject, log zerolog.Logger) []*ical.Event {
	out := make([]*ical.Event, 0, len(objs))
	for _, o := range objs {
		ev, ok := ical.Transform(o.Data, log)
		if !ok {
			continue
		}
		ev.ETag = o.ETag
		ev.URL = o.Path
		out = append(out, ev)
	}
	return out
}

// FetchEventsByName matches a calendar by display name, case-insensitive.
// A miss logs a warning and returns an empty slice, not an error.
func (s *Service) FetchEventsByName(ctx context.Context, name string, tr *TimeRange) ([]*ical.Event, error) {
	cals, err := s.ListCalendars(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range cals {
		if strings.EqualFold(c.Name, name) {
			return s.FetchEvents(ctx, c, tr)
		}
	}
	s.log.Warn().Str("calendar", name).Msg("calendarservice: no calendar with that name")
	return nil, nil
}

// FetchAllEvents fans out over every discovered calendar concurrently.
func (s *Service) FetchAllEvents(ctx context.Context, tr *TimeRange) ([]*ical.Event, error) {
	cals, err := s.ListCalendars(ctx)
	if err != nil {
		return nil, err
	}

	var wg sync.WaitGroup
	results := make([][]*ical.Event, len(cals))
	errs := make([]error, len(cals))

	for i, c := range cals {
		wg.Add(1)
		go func(i int, c caldav.Calendar) {
			defer wg.Done()
			results[i], errs[i] = s.FetchEvents(ctx, c, tr)
		}(i, c)
	}
	wg.Wait()

	var all []*ical.Event
	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("calendarservice: fetching calendar %q: %w", cals[i].Name, err)
		}
		all = append(all, results[i]...)
	}
	return all, nil
}

// CreateEvent resolves the target calendar (by name, or the first one),
// generates a fresh UUID filename, and PUTs with If-None-Match: *. A 412
// becomes a typed "already exists" Conflict.
func (s *Service) CreateEvent(ctx context.Context, icalText string, calendarName string) (url, etag string, err error) {
	cal, err := s.resolveCalendar(ctx, calendarName)
	if err != nil {
		return "", "", err
	}

	path := strings.TrimRight(cal.Path, "/") + "/" + uuid.NewString() + ".ics"

	var obj *caldav.CalendarObject
	putErr := retryNoConflict(ctx, s.log, s.retryCfg, "create_event", func(ctx context.Context) error {
		var err error
		obj, err = s.client.PutCalendarObject(ctx, path, []byte(icalText), &caldav.PutCalendarObjectOptions{IfNoneMatch: "*"})
		return classifyConflict(err, daverr.ResourceEvent, path, "create")
	})
	if putErr != nil {
		return "", "", putErr
	}

	s.objCache.Invalidate(cal.Path)
	return obj.Path, obj.ETag, nil
}

// UpdateEvent PUTs with If-Match: etag; a 412 becomes a typed Conflict.
func (s *Service) UpdateEvent(ctx context.Context, url, icalText, etag string) (newETag string, err error) {
	var obj *caldav.CalendarObject
	putErr := retryNoConflict(ctx, s.log, s.retryCfg, "update_event", func(ctx context.Context) error {
		var err error
		obj, err = s.client.PutCalendarObject(ctx, url, []byte(icalText), &caldav.PutCalendarObjectOptions{IfMatch: etag})
		return classifyConflict(err, daverr.ResourceEvent, url, "update")
	})
	if putErr != nil {
		return "", putErr
	}

	s.objCache.Invalidate(containingCollection(url))
	return obj.ETag, nil
}

// DeleteEvent deletes the object at url. If etag is empty, the containing
// collection is fetched to find the current ETag; a missing object after
// that lookup is a fatal NotFound, not a silent success.
func (s *Service) DeleteEvent(ctx context.Context, url, etag string) error {
	if etag == "" {
		objs, err := s.fetchRange(ctx, containingCollection(url), TimeRange{})
		if err != nil {
			return err
		}
		found := false
		for _, o := range objs {
			if sameResourcePath(o.Path, url) {
				etag = o.ETag
				found = true
				break
			}
		}
		if !found {
			return daverr.NewNotFound(daverr.ResourceEvent, url)
		}
	}

	delErr := retryNoConflict(ctx, s.log, s.retryCfg, "delete_event", func(ctx context.Context) error {
		return classifyConflict(s.client.DeleteCalendarObject(ctx, url, etag), daverr.ResourceEvent, url, "delete")
	})
	if delErr != nil {
		return delErr
	}

	s.objCache.Invalidate(containingCollection(url))
	return nil
}

// FindEventByUID fetches events (scoped to calendarName, or every
// calendar when empty) and returns the first record whose UID matches.
func (s *Service) FindEventByUID(ctx context.Context, uid, calendarName string) (*ical.Event, error) {
	var events []*ical.Event
	var err error
	if calendarName != "" {
		events, err = s.FetchEventsByName(ctx, calendarName, nil)
	} else {
		events, err = s.FetchAllEvents(ctx, nil)
	}
	if err != nil {
		return nil, err
	}
	for _, ev := range events {
		if ev.UID == uid {
			return ev, nil
		}
	}
	return nil, nil
}

// FreeBusyQuery implements the dual path of §4.9: try the server-side
// VFREEBUSY REPORT first; on any failure of that path (wire error,
// non-2xx, or an unparseable body), fall back to fetching events in
// the range and reconstructing busy intervals from them. Either path
// ends with the same interval merge.
func (s *Service) FreeBusyQuery(ctx context.Context, calendarURL string, start, end time.Time) ([]freebusy.Period, error) {
	periods, err := s.freeBusyViaReport(ctx, calendarURL, start, end)
	if err == nil {
		return freebusy.Merge(periods), nil
	}
	s.log.Warn().Err(err).Str("calendar", calendarURL).Msg("calendarservice: free-busy REPORT failed, falling back to event reconstruction")

	objs, fetchErr := s.fetchRange(ctx, calendarURL, TimeRange{Start: start, End: end})
	if fetchErr != nil {
		return nil, fetchErr
	}
	events := transformAll(objs, s.log)
	return freebusy.Merge(freebusy.FromEvents(events)), nil
}

func (s *Service) freeBusyViaReport(ctx context.Context, calendarURL string, start, end time.Time) ([]freebusy.Period, error) {
	var raw []byte
	err := retry.Do(ctx, s.log, s.retryCfg, "free_busy_query", func(ctx context.Context) error {
		var err error
		raw, err = s.client.FreeBusyQueryReport(ctx, calendarURL, start, end)
		return err
	})
	if err != nil {
		return nil, err
	}
	return freebusy.ParseVFreeBusy(raw)
}

// RespondToInvitation updates the matching ATTENDEE's PARTSTAT on rawBody
// and PUTs it back with If-Match.
func (s *Service) RespondToInvitation(ctx context.Context, url, etag, userEmail, partstat string, rawBody []byte) (newETag string, err error) {
	updated, err := setAttendeePartStat(rawBody, userEmail, partstat)
	if err != nil {
		return "", err
	}

	var obj *caldav.CalendarObject
	putErr := retryNoConflict(ctx, s.log, s.retryCfg, "respond_to_invitation", func(ctx context.Context) error {
		var err error
		obj, err = s.client.PutCalendarObject(ctx, url, updated, &caldav.PutCalendarObjectOptions{IfMatch: etag})
		return classifyConflict(err, daverr.ResourceInvitation, url, "update")
	})
	if putErr != nil {
		return "", putErr
	}
	s.objCache.Invalidate(containingCollection(url))
	return obj.ETag, nil
}

// GetAuthHeaders reconstructs the headers the client's injector would
// attach, for callers (e.g. a direct free/busy POST) that need to invoke
// standalone server operations outside this service.
func (s *Service) GetAuthHeaders() http.Header {
	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	s.authHeader(req)
	return req.Header
}

// retryNoConflict wraps the retry engine around fn, but honors the
// "ETag conflict is never retried" rule of §7: a *daverr.Conflict
// returned by fn stops the retry loop immediately and is surfaced as-is,
// without counting against or consuming another retry attempt.
func retryNoConflict(ctx context.Context, log zerolog.Logger, cfg retry.Config, op string, fn func(context.Context) error) error {
	var conflict *daverr.Conflict
	err := retry.Do(ctx, log, cfg, op, func(ctx context.Context) error {
		e := fn(ctx)
		if c, ok := e.(*daverr.Conflict); ok {
			conflict = c
			return nil
		}
		return e
	})
	if conflict != nil {
		return conflict
	}
	return err
}

// setAttendeePartStat finds the ATTENDEE matching userEmail (case
// insensitive, ignoring a mailto: prefix) and sets its PARTSTAT, then
// re-serializes. Grounded in the same parse-modify-serialize discipline
// as package ical's editor.
func setAttendeePartStat(raw []byte, userEmail, partstat string) ([]byte, error) {
	return ical.SetAttendeePartStat(raw, userEmail, partstat)
}

func classifyConflict(err error, kind daverr.ResourceKind, url, op string) error {
	if err == nil {
		return nil
	}
	var httpErr *webdav.HTTPError
	if e, ok := err.(*webdav.HTTPError); ok {
		httpErr = e
	}
	if httpErr != nil && httpErr.Code == http.StatusPreconditionFailed {
		return daverr.NewConflict(kind, url, op)
	}
	return err
}

func containingCollection(objURL string) string {
	idx := strings.LastIndex(strings.TrimRight(objURL, "/"), "/")
	if idx < 0 {
		return objURL
	}
	return objURL[:idx+1]
}

func sameResourcePath(a, b string) bool {
	return strings.TrimRight(a, "/") == strings.TrimRight(b, "/")
}
