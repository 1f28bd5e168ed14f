package carddav

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/agentdav/bridge/internal/webdav"
)

func lastPathSegment(p string) string {
	p = strings.TrimRight(p, "/")
	if idx := strings.LastIndex(p, "/"); idx >= 0 {
		return p[idx+1:]
	}
	return p
}

func unquoteETag(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		if u, err := strconv.Unquote(s); err == nil {
			return u
		}
	}
	return s
}

func sameCollectionPath(a, b string) bool {
	return strings.TrimRight(a, "/") == strings.TrimRight(b, "/")
}

func parseAddressBookFromResponse(resp *webdav.Response) (*AddressBook, error) {
	path, err := resp.Path()
	if err != nil {
		return nil, err
	}

	var resType webdav.ResourceType
	if err := resp.DecodeProp(&resType); err != nil {
		if !webdav.IsNotFound(err) {
			return nil, err
		}
	} else if !resType.Is(AddressBookName) {
		return nil, nil
	}

	var desc addressBookDescription
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

	var ctag string
	for _, ps := range resp.PropStats {
		if raw := ps.Prop.Get(webdav.CTagName); raw != nil {
			raw.Decode(&ctag)
			break
		}
	}

	supportsMultiget := true
	var supported supportedAddressData
	if err := resp.DecodeProp(&supported); err != nil && webdav.IsNotFound(err) {
		// Property absent doesn't mean multiget is unsupported; some
		// servers simply don't advertise it. Optimistic default.
		supportsMultiget = true
	}

	return &AddressBook{
		Path:             path,
		Name:             name,
		Description:      desc.Description,
		MaxResourceSize:  maxSize.Size,
		CTag:             ctag,
		SupportsMultiget: supportsMultiget,
	}, nil
}

func decodeAddressObject(resp webdav.Response) (*AddressObject, error) {
	path, err := resp.Path()
	if err != nil {
		return nil, err
	}

	var addrData addressDataResp
	if err := resp.DecodeProp(&addrData); err != nil && !webdav.IsNotFound(err) {
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

	return &AddressObject{
		Path:          path,
		ModTime:       modTime,
		ContentLength: contentLength.Length,
		ETag:          unquoteETag(getETag.ETag),
		Data:          addrData.Data,
	}, nil
}

func populateAddressObject(co *AddressObject, h http.Header) error {
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
