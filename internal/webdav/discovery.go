package webdav

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// DiscoverContextURL resolves the well-known bootstrap URL for service
// ("caldav" or "carddav") against domain, as described in RFC 6764. It
// issues a GET against /.well-known/<service> and follows redirects; the
// caller's HTTPClient must already carry an auth injector so the follow-up
// request after a redirect stays authenticated.
func DiscoverContextURL(ctx context.Context, httpClient HTTPClient, service, domain string) (string, error) {
	u := &url.URL{Scheme: "https", Host: domain, Path: "/.well-known/" + service}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("webdav: well-known discovery: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return "", &HTTPError{Code: resp.StatusCode, Message: "well-known discovery failed"}
	}

	final := resp.Request.URL
	return fmt.Sprintf("%s://%s", final.Scheme, final.Host), nil
}
