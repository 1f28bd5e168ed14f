package carddav

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/agentdav/bridge/internal/webdav"
)

const MIMEType = "text/vcard"

// Client is a thin CardDAV-specific veneer over a generic WebDAV client.
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
// RFC 6764 for the carddav service.
func DiscoverContextURL(ctx context.Context, c webdav.HTTPClient, domain string) (string, error) {
	return webdav.DiscoverContextURL(ctx, c, "carddav", domain)
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
		return "", fmt.Errorf("carddav: unauthenticated")
	}
	if prop.Href == nil {
		return "", fmt.Errorf("carddav: server did not advertise a current-user-principal")
	}
	return prop.Href.Path, nil
}

func (c *Client) FindAddressBookHomeSet(ctx context.Context, principal string) (string, error) {
	pf := webdav.NewPropNamePropFind(AddressBookHomeSetName)
	resp, err := c.dav.PropFindFlat(ctx, principal, pf)
	if err != nil {
		return "", err
	}
	var prop addressBookHomeSet
	if err := resp.DecodeProp(&prop); err != nil {
		return "", err
	}
	return prop.Href.Path, nil
}

func (c *Client) FindAddressBooks(ctx context.Context, homeSet string) ([]AddressBook, error) {
	ms, err := c.dav.PropFind(ctx, homeSet, webdav.DepthOne, addressBookPropFind)
	if err != nil {
		return nil, err
	}
	books := make([]AddressBook, 0, len(ms.Responses))
	for _, resp := range ms.Responses {
		ab, err := parseAddressBookFromResponse(&resp)
		if err != nil {
			return nil, err
		}
		if ab == nil || sameCollectionPath(ab.Path, homeSet) {
			continue
		}
		books = append(books, *ab)
	}
	return books, nil
}

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

func (c *Client) GetAddressObject(ctx context.Context, path string) (*AddressObject, error) {
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

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	ao := &AddressObject{Path: path, Data: data}
	if err := populateAddressObject(ao, resp.Header); err != nil {
		return nil, err
	}
	return ao, nil
}

func (c *Client) PutAddressObject(ctx context.Context, path string, body []byte, opts *PutAddressObjectOptions) (*AddressObject, error) {
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

	ao := &AddressObject{Path: path}
	if err := populateAddressObject(ao, resp.Header); err != nil {
		return nil, err
	}
	return ao, nil
}

func (c *Client) DeleteAddressObject(ctx context.Context, path, ifMatch string) error {
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

// QueryAll runs an addressbook-query REPORT returning every object in the
// collection (no server-side filter); used as part of the multiget
// fallback and by the address-book service's full fetch.
func (c *Client) QueryAll(ctx context.Context, path string) ([]AddressObject, error) {
	propReq, err := encodeAddressDataReq()
	if err != nil {
		return nil, err
	}
	query := &addressbookQuery{Prop: propReq}

	depth := webdav.DepthOne
	ms, err := c.dav.ReportDepth(ctx, path, &depth, query)
	if err != nil {
		return nil, err
	}
	return decodeObjects(ms)
}

// Multiget fetches a known list of object paths in one REPORT. If the
// server returns zero results for a non-empty request, the address-book
// service treats multiget as unsupported and falls back to QueryAll,
// which returns the bodies itself.
func (c *Client) Multiget(ctx context.Context, basePath string, paths []string) ([]AddressObject, error) {
	if len(paths) == 0 {
		return nil, nil
	}

	propReq, err := encodeAddressDataReq()
	if err != nil {
		return nil, err
	}

	hrefs := make([]webdav.Href, len(paths))
	for i, p := range paths {
		hrefs[i] = webdav.Href{Path: p}
	}

	query := &addressbookMultiget{Hrefs: hrefs, Prop: propReq}

	depth := webdav.DepthOne
	ms, err := c.dav.ReportDepth(ctx, basePath, &depth, query)
	if err != nil {
		return nil, err
	}
	return decodeObjects(ms)
}

// ListObjectPaths discovers the member resources of an addressbook without
// fetching their bodies; the address-book service passes the result to
// Multiget.
func (c *Client) ListObjectPaths(ctx context.Context, path string) ([]string, error) {
	pf := webdav.NewPropNamePropFind(webdav.GetETagName)
	ms, err := c.dav.PropFind(ctx, path, webdav.DepthOne, pf)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, resp := range ms.Responses {
		p, err := resp.Path()
		if err != nil {
			continue
		}
		if sameCollectionPath(p, path) {
			continue
		}
		paths = append(paths, p)
	}
	return paths, nil
}

func decodeObjects(ms *webdav.MultiStatus) ([]AddressObject, error) {
	objs := make([]AddressObject, 0, len(ms.Responses))
	for _, resp := range ms.Responses {
		ao, err := decodeAddressObject(resp)
		if err != nil {
			return nil, err
		}
		objs = append(objs, *ao)
	}
	return objs, nil
}
