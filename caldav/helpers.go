package caldav

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/agentdav/bridge/internal/webdav"
)

func parseCalendarFromResponse(resp *webdav.Response) (*Calendar, error) {
	path, err := resp.Path()
	if err != nil {
		return nil, err
	}

	var resType webdav.ResourceType
	if err := resp.DecodeProp(&resType); err != nil {
		if !webdav.IsNotFound(err) {
			return nil, err
		}
	} else if !resType.Is(CalendarName) {
		return nil, nil
	}

	var desc calendarDescription
	if err := resp.DecodeProp(&desc); err != nil && !webdav.IsNotFound(err) {
		return nil, err
	}

	var dispName webdav.DisplayName
	if err := resp.DecodeProp(&dispName); err != nil && !webdav.IsNotFound(err) {
		return nil, err
	}
	name := dispName.Name
	if name == "" {
		name = lastPathSegment(path)
	}

	var maxSize maxResourceSize
	if err := resp.DecodeProp(&maxSize); err != nil && !webdav.IsNotFound(err) {
		return nil, err
	}

	var compSet supportedCalendarComponentSet
	if err := resp.DecodeProp(&compSet); err != nil && !webdav.IsNotFound(err) {
		return nil, err
	}
	compNames := make([]string, 0, len(compSet.Comp))
	for _, c := range compSet.Comp {
		compNames = append(compNames, c.Name)
	}

	var color calendarColor
	if err := resp.DecodeProp(&color); err != nil && !webdav.IsNotFound(err) {
		return nil, err
	}

	var tz calendarTimezone
	if err := resp.DecodeProp(&tz); err != nil && !webdav.IsNotFound(err) {
		return nil, err
	}

	var ctag string
	for _, ps := range resp.PropStats {
		if raw := ps.Prop.Get(webdav.CTagName); raw != nil {
			raw.Decode(&ctag)
			break
		}
	}

	return &Calendar{
		Path:                  path,
		Name:                  name,
		Description:           desc.Description,
		MaxResourceSize:       maxSize.Size,
		SupportedComponentSet: compNames,
		Color:                 color.Color,
		Timezone:              tz.Timezone,
		CTag:                  ctag,
	}, nil
}

func lastPathSegment(p string) string {
	p = strings.TrimRight(p, "/")
	if idx := strings.LastIndex(p, "/"); idx >= 0 {
		return p[idx+1:]
	}
	return p
}

func encodeCalendarCompReq(name string) *comp {
	return &comp{Name: name, Allprop: &struct{}{}, Allcomp: &struct{}{}}
}

func encodeCalendarDataReq() (*webdav.Prop, error) {
	calData := calendarDataReq{Comp: encodeCalendarCompReq("VCALENDAR")}
	getLastMod := webdav.NewRawXMLElement(webdav.GetLastModifiedName, nil, nil)
	getETag := webdav.NewRawXMLElement(webdav.GetETagName, nil, nil)
	return webdav.EncodeProp(&calData, getLastMod, getETag)
}

func decodeCalendarObject(resp webdav.Response) (*CalendarObject, error) {
	path, err := resp.Path()
	if err != nil {
		return nil, err
	}

	var calData calendarDataResp
	if err := resp.DecodeProp(&calData); err != nil && !webdav.IsNotFound(err) {
		return nil, err
	}

	var modTime time.Time
	for _, ps := range resp.PropStats {
		if raw := ps.Prop.Get(webdav.GetLastModifiedName); raw != nil {
			var s string
			if err := raw.Decode(&s); err == nil {
				if t, err := http.ParseTime(s); err == nil {
					modTime = t
				}
			}
		}
	}

	var getETag webdav.GetETag
	if err := resp.DecodeProp(&getETag); err != nil && !webdav.IsNotFound(err) {
		return nil, err
	}

	var contentLength webdav.GetContentLength
	if err := resp.DecodeProp(&contentLength); err != nil && !webdav.IsNotFound(err) {
		return nil, err
	}

	return &CalendarObject{
		Path:          path,
		ModTime:       modTime,
		ContentLength: contentLength.Length,
		ETag:          unquoteETag(getETag.ETag),
		Data:          calData.Data,
	}, nil
}

func unquoteETag(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		if u, err := strconv.Unquote(s); err == nil {
			return u
		}
	}
	return s
}

func populateCalendarObject(co *CalendarObject, h http.Header) error {
	if loc := h.Get("Location"); loc != "" {
		u, err := url.Parse(loc)
		if err != nil {
			return err
		}
		co.Path = u.Path
	}
	if etag := h.Get("ETag"); etag != "" {
		co.ETag = unquoteETag(etag)
	}
	if cl := h.Get("Content-Length"); cl != "" {
		if n, err := strconv.ParseInt(cl, 10, 64); err == nil {
			co.ContentLength = n
		}
	}
	if lm := h.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			co.ModTime = t
		}
	}
	return nil
}

func sameCollectionPath(a, b string) bool {
	return strings.TrimRight(a, "/") == strings.TrimRight(b, "/")
}
