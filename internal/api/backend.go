package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"algo-dashboard/internal/interfaces"
	"algo-dashboard/internal/types"

	"github.com/PuerkitoBio/goquery"
)

// ErrNoLogoutLink is returned when the dashboard page has no logout link.
var ErrNoLogoutLink = errors.New("dashboard page has no logout link")

// logoutSelectors are tried in order against the dashboard page.
var logoutSelectors = []string{"#logout-link", "a[href*='logout']"}

// BackendParams configures the dashboard backend client.
type BackendParams struct {
	StatePath     string
	DashboardPath string
	// LogoutURL overrides discovery from the dashboard page when set.
	LogoutURL string
}

// Backend talks to the trading backend's dashboard endpoints.
type Backend struct {
	client *Client
	params BackendParams
}

var _ interfaces.Backend = (*Backend)(nil)

// NewBackend wraps an API client configured with the backend base URL.
func NewBackend(client *Client, params BackendParams) *Backend {
	return &Backend{client: client, params: params}
}

// FetchSnapshot GETs the current dashboard state.
func (b *Backend) FetchSnapshot(ctx context.Context) (*types.MarketSnapshot, error) {
	resp, err := b.client.GET(ctx, b.params.StatePath, BrowserHeaders())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch dashboard state: %w", err)
	}
	snap, err := types.DecodeSnapshot(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode dashboard state: %w", err)
	}
	return snap, nil
}

// SendCommand POSTs an empty command and decodes the {message} reply. A 2xx
// reply that is not JSON is an error. On a 4xx/5xx status the error is
// returned together with any {message} the body carries.
func (b *Backend) SendCommand(ctx context.Context, path string) (types.CommandResponse, error) {
	resp, err := b.client.POST(ctx, path, nil, BrowserHeaders())
	if err != nil {
		var out types.CommandResponse
		var se *StatusError
		if errors.As(err, &se) {
			_ = json.Unmarshal(se.Body, &out)
		}
		return out, fmt.Errorf("command %s failed: %w", path, err)
	}
	var out types.CommandResponse
	if err := resp.ParseJSON(&out); err != nil {
		return types.CommandResponse{}, fmt.Errorf("command %s returned a non-JSON reply: %w", path, err)
	}
	return out, nil
}

// LogoutURL returns the configured logout URL, or scrapes it from the
// dashboard page's logout link.
func (b *Backend) LogoutURL(ctx context.Context) (string, error) {
	if b.params.LogoutURL != "" {
		return b.resolve(b.params.LogoutURL)
	}

	resp, err := b.client.GET(ctx, b.params.DashboardPath, map[string]string{"Accept": "text/html"})
	if err != nil {
		return "", fmt.Errorf("failed to load dashboard page: %w", err)
	}
	href, err := findLogoutHref(resp.Body)
	if err != nil {
		return "", err
	}
	return b.resolve(href)
}

// Navigate performs an authenticated GET of target, which is how the
// terminal host follows the logout link.
func (b *Backend) Navigate(ctx context.Context, target string) error {
	if _, err := b.client.GET(ctx, target); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", target, err)
	}
	return nil
}

func findLogoutHref(page []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return "", fmt.Errorf("failed to parse dashboard page: %w", err)
	}
	for _, sel := range logoutSelectors {
		if href, ok := doc.Find(sel).First().Attr("href"); ok && strings.TrimSpace(href) != "" {
			return strings.TrimSpace(href), nil
		}
	}
	return "", ErrNoLogoutLink
}

// resolve makes href absolute against the client's base URL.
func (b *Backend) resolve(href string) (string, error) {
	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("invalid logout URL %q: %w", href, err)
	}
	if ref.IsAbs() || b.client.baseURL == "" {
		return ref.String(), nil
	}
	base, err := url.Parse(b.client.baseURL + "/")
	if err != nil {
		return "", fmt.Errorf("invalid base URL %q: %w", b.client.baseURL, err)
	}
	return base.ResolveReference(ref).String(), nil
}
