package rocrate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"
)

var (
	ErrNoFetcher      = errors.New("no fetcher for scheme")
	ErrUnexpectedCode = errors.New("unexpected http status")
)

// Fetcher copies the bytes behind a remote URI into dst.
type Fetcher interface {
	Fetch(ctx context.Context, uri *url.URL, dst io.Writer) error
}

// Fetchers selects a Fetcher by URI scheme.
type Fetchers map[string]Fetcher

// HTTPFetcher downloads http and https locations. Certificates are always verified.
type HTTPFetcher struct {
	Client *http.Client
	// Token is sent as a bearer token, only to TokenHost.
	Token     string
	TokenHost string
}

// NewHTTPFetcher scopes token to the host of registryURL; an empty registryURL never sends it.
func NewHTTPFetcher(timeout time.Duration, token, registryURL string) *HTTPFetcher {
	return &HTTPFetcher{
		Client:    &http.Client{Timeout: timeout},
		Token:     strings.TrimSpace(token),
		TokenHost: hostOf(registryURL),
	}
}

// hostOf accepts either a URL or a bare host[:port].
func hostOf(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "//" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}

func (f *HTTPFetcher) authorises(uri *url.URL) bool {
	return f.Token != "" && f.TokenHost != "" && strings.EqualFold(uri.Host, f.TokenHost)
}

func (f *HTTPFetcher) Fetch(ctx context.Context, uri *url.URL, dst io.Writer) error {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri.String(), nil)
	if err != nil {
		return fmt.Errorf("build request failed: %w", err)
	}
	if f.authorises(uri) {
		req.Header.Set("Authorization", "Bearer "+f.Token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("http get failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %d", ErrUnexpectedCode, resp.StatusCode)
	}
	if _, err := io.Copy(dst, resp.Body); err != nil {
		return fmt.Errorf("read response body failed: %w", err)
	}
	return nil
}

// fetchToTemp downloads uri into a new file under dir, named after the URI's last segment.
func fetchToTemp(ctx context.Context, fetchers Fetchers, dir string, uri *url.URL) (string, error) {
	fetcher, ok := fetchers[strings.ToLower(uri.Scheme)]
	if !ok || fetcher == nil {
		return "", fmt.Errorf("%w: %s", ErrNoFetcher, uri.Scheme)
	}

	pattern := "*-" + path.Base(uri.Path)
	if base := path.Base(uri.Path); base == "." || base == "/" {
		pattern = "*"
	}
	tmp, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", fmt.Errorf("create temp file failed: %w", err)
	}

	if err := fetcher.Fetch(ctx, uri, tmp); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("close temp file failed: %w", err)
	}
	return tmp.Name(), nil
}
