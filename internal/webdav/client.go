package webdav

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// HTTPClient is the minimal surface the rest of this module needs from an
// HTTP client. *http.Client satisfies it; tests substitute smaller fakes.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// AuthInjector attaches authentication to an outgoing request. It is
// invoked on every request, including the replayed request after a 3xx
// redirect, because an Authorization header set once on the original
// request is dropped by net/http across redirects to a different host or
// scheme and CalDAV/CardDAV well-known URLs commonly redirect.
type AuthInjector func(req *http.Request)

// injectingTransport applies an AuthInjector to every request that leaves
// the process, including the synthetic request net/http builds to follow a
// redirect.
type injectingTransport struct {
	inject AuthInjector
	base   http.RoundTripper
}

func (t *injectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	t.inject(clone)
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(clone)
}

// NewInjectingClient wraps base (or http.DefaultClient if nil) so every
// request, including redirected ones, carries the given auth header.
func NewInjectingClient(base *http.Client, inject AuthInjector) *http.Client {
	var transport http.RoundTripper
	var checkRedirect func(*http.Request, []*http.Request) error
	if base != nil {
		transport = base.Transport
		checkRedirect = base.CheckRedirect
	}
	client := &http.Client{
		Transport:     &injectingTransport{inject: inject, base: transport},
		CheckRedirect: checkRedirect,
	}
	if base != nil {
		client.Jar = base.Jar
		client.Timeout = base.Timeout
	}
	return client
}

// BasicAuthInjector returns an injector that sets HTTP Basic auth.
func BasicAuthInjector(username, password string) AuthInjector {
	return func(req *http.Request) {
		req.SetBasicAuth(username, password)
	}
}

// BearerAuthInjector returns an injector that sets a bearer token.
func BearerAuthInjector(token string) AuthInjector {
	return func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

// HeaderAuthInjector returns an injector that sets an arbitrary named
// header, used for site-specific session-token authentication schemes.
func HeaderAuthInjector(header, value string) AuthInjector {
	return func(req *http.Request) {
		req.Header.Set(header, value)
	}
}

// Client issues PROPFIND/PROPPATCH/REPORT requests and decodes their
// multistatus responses. It is shared by the CalDAV and CardDAV clients.
type Client struct {
	http     HTTPClient
	endpoint *url.URL
}

func NewClient(c HTTPClient, endpoint string) (*Client, error) {
	if c == nil {
		c = http.DefaultClient
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("webdav: invalid endpoint: %w", err)
	}
	return &Client{http: c, endpoint: u}, nil
}

func (c *Client) ResolveHref(p string) string {
	if p == "" {
		return c.endpoint.String()
	}
	ref, err := url.Parse(p)
	if err != nil {
		return p
	}
	return c.endpoint.ResolveReference(ref).String()
}

func (c *Client) NewRequest(method, path string, body io.Reader) (*http.Request, error) {
	return http.NewRequest(method, c.ResolveHref(path), body)
}

func (c *Client) NewXMLRequest(method, path string, v interface{}) (*http.Request, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("webdav: encoding request body: %w", err)
	}
	req, err := c.NewRequest(method, path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", `application/xml; charset="utf-8"`)
	return req, nil
}

// Do executes req and returns an *HTTPError for any non-2xx status.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return resp, &HTTPError{Code: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}
	return resp, nil
}

// DoMultiStatus executes req and decodes a 207 Multi-Status response.
func (c *Client) DoMultiStatus(req *http.Request) (*MultiStatus, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusMultiStatus {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &HTTPError{Code: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}
	return DecodeMultiStatus(resp.Body)
}

func (c *Client) PropFind(ctx context.Context, path string, depth Depth, pf *PropFind) (*MultiStatus, error) {
	req, err := c.NewXMLRequest("PROPFIND", path, pf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Depth", depth.String())
	return c.DoMultiStatus(req.WithContext(ctx))
}

// PropFindFlat performs a Depth-zero PROPFIND and returns the single
// response describing path itself.
func (c *Client) PropFindFlat(ctx context.Context, path string, pf *PropFind) (*Response, error) {
	ms, err := c.PropFind(ctx, path, DepthZero, pf)
	if err != nil {
		return nil, err
	}
	if len(ms.Responses) != 1 {
		return nil, fmt.Errorf("webdav: PROPFIND expected exactly one response, got %d", len(ms.Responses))
	}
	return &ms.Responses[0], nil
}

// Report issues a REPORT request whose body is the XML encoding of query,
// with no explicit Depth header.
func (c *Client) Report(ctx context.Context, path string, query interface{}) (*MultiStatus, error) {
	return c.ReportDepth(ctx, path, nil, query)
}

func (c *Client) ReportDepth(ctx context.Context, path string, depth *Depth, query interface{}) (*MultiStatus, error) {
	req, err := c.NewXMLRequest("REPORT", path, query)
	if err != nil {
		return nil, err
	}
	if depth != nil {
		req.Header.Set("Depth", depth.String())
	}
	return c.DoMultiStatus(req.WithContext(ctx))
}

// PropPatch issues a PROPPATCH request and returns the single-response
// multistatus body describing the outcome.
func (c *Client) PropPatch(ctx context.Context, path string, update *PropertyUpdate) (*Response, error) {
	req, err := c.NewXMLRequest("PROPPATCH", path, update)
	if err != nil {
		return nil, err
	}
	ms, err := c.DoMultiStatus(req.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	if len(ms.Responses) != 1 {
		return nil, fmt.Errorf("webdav: PROPPATCH expected exactly one response, got %d", len(ms.Responses))
	}
	return &ms.Responses[0], nil
}
