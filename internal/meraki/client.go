// Package meraki is a typed façade over the Meraki dashboard API, covering
// the operations the fleet assistant narrates: organizations, networks,
// devices, clients, licensing, firewall, wireless, switching, and cameras.
package meraki

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"sophia/internal/retry"
)

// DefaultBaseURL is the public Meraki dashboard API endpoint.
const DefaultBaseURL = "https://api.meraki.com/api/v1"

// clientsPerPage is the page size used when exhausting the client listing.
// Package-level so pagination tests can use small pages.
var clientsPerPage = 1000

// APIError is a non-2xx response from the dashboard API. It carries the
// operation and identifier so the message is directly narratable.
type APIError struct {
	Op     string // e.g. "list networks"
	ID     string // offending identifier, if any
	Status int
	Body   string
}

func (e *APIError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s(%s): status %d: %s", e.Op, e.ID, e.Status, e.Body)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, e.Body)
}

// StatusCode implements retry.StatusCoder.
func (e *APIError) StatusCode() int { return e.Status }

// Option is a functional option for configuring Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client. If hc is nil it is ignored.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithBaseURL overrides the API endpoint (used against test servers).
func WithBaseURL(base string) Option {
	return func(c *Client) {
		if base != "" {
			c.baseURL = strings.TrimRight(base, "/")
		}
	}
}

// WithLogger sets a structured logger. If l is nil it is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithRetry sets the retry policy for read operations.
func WithRetry(cfg retry.Config) Option {
	return func(c *Client) { c.retry = cfg }
}

// Client is a typed HTTP façade over the dashboard API. It is stateless
// after construction and safe for concurrent use.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
	logger  *slog.Logger
	retry   retry.Config
}

// NewClient returns a Client authenticated with apiKey. The key must not be
// empty; credentials are validated here once instead of on every call.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("meraki: API key must not be empty")
	}
	c := &Client{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		retry:   retry.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// log returns the client's logger, falling back to the default slog logger.
func (c *Client) log() *slog.Logger {
	if c.logger != nil {
		return c.logger
	}
	return slog.Default()
}

// get issues an authenticated GET for path, retrying transient failures,
// and decodes the response into out. op and id label errors for narration.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any, op, id string) error {
	return retry.Do(ctx, c.retry, func() error {
		return c.do(ctx, http.MethodGet, path, query, nil, out, op, id)
	})
}

// post issues an authenticated POST for path without retrying: write
// operations (snapshot generation) must not be silently repeated.
func (c *Client) post(ctx context.Context, path string, body, out any, op, id string) error {
	return c.do(ctx, http.MethodPost, path, nil, body, out, op, id)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any, op, id string) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s(%s) marshal: %w", op, id, err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("%s(%s) request: %w", op, id, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s(%s): %w", op, id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &APIError{Op: op, ID: id, Status: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s(%s) decode: %w", op, id, err)
	}
	return nil
}

// =============================================================================
// Raw operations
// =============================================================================

// Organizations lists the organizations visible to the API key.
func (c *Client) Organizations(ctx context.Context) ([]Organization, error) {
	var out []Organization
	if err := c.get(ctx, "/organizations", nil, &out, "list organizations", ""); err != nil {
		return nil, err
	}
	return out, nil
}

// Networks lists the networks of one organization.
func (c *Client) Networks(ctx context.Context, orgID string) ([]Network, error) {
	var out []Network
	path := "/organizations/" + url.PathEscape(orgID) + "/networks"
	if err := c.get(ctx, path, nil, &out, "list networks", orgID); err != nil {
		return nil, err
	}
	return out, nil
}

// Devices lists the devices of one network. Decoding into the stripped
// Device struct drops location and descriptive metadata the callers must
// never see.
func (c *Client) Devices(ctx context.Context, networkID string) ([]Device, error) {
	var out []Device
	path := "/networks/" + url.PathEscape(networkID) + "/devices"
	if err := c.get(ctx, path, nil, &out, "list devices", networkID); err != nil {
		return nil, err
	}
	return out, nil
}

// Clients lists every client on a network, following pagination until the
// listing is exhausted.
func (c *Client) Clients(ctx context.Context, networkID string) ([]NetworkClient, error) {
	var all []NetworkClient
	path := "/networks/" + url.PathEscape(networkID) + "/clients"
	startingAfter := ""
	for {
		query := url.Values{"perPage": {fmt.Sprintf("%d", clientsPerPage)}}
		if startingAfter != "" {
			query.Set("startingAfter", startingAfter)
		}
		var page []NetworkClient
		if err := c.get(ctx, path, query, &page, "list clients", networkID); err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < clientsPerPage {
			return all, nil
		}
		startingAfter = page[len(page)-1].ID
	}
}

// LicenseOverview returns the licensing state of an organization.
func (c *Client) LicenseOverview(ctx context.Context, orgID string) (*LicenseOverview, error) {
	var out LicenseOverview
	path := "/organizations/" + url.PathEscape(orgID) + "/licenses/overview"
	if err := c.get(ctx, path, nil, &out, "license overview", orgID); err != nil {
		return nil, err
	}
	return &out, nil
}

// FirewallRules returns the L3 firewall rule set of a network. Finding only
// the default rule is worth a warning, not an error.
func (c *Client) FirewallRules(ctx context.Context, networkID string) (*FirewallRules, error) {
	var out FirewallRules
	path := "/networks/" + url.PathEscape(networkID) + "/appliance/firewall/l3FirewallRules"
	if err := c.get(ctx, path, nil, &out, "list firewall rules", networkID); err != nil {
		return nil, err
	}
	if len(out.Rules) <= 1 {
		c.log().Warn("only the default firewall rule is present", "network", networkID)
	}
	return &out, nil
}

// VLANs returns the appliance VLANs of a network.
func (c *Client) VLANs(ctx context.Context, networkID string) ([]VLAN, error) {
	var out []VLAN
	path := "/networks/" + url.PathEscape(networkID) + "/appliance/vlans"
	if err := c.get(ctx, path, nil, &out, "list vlans", networkID); err != nil {
		return nil, err
	}
	return out, nil
}

// ChannelUtilization returns the last 24 hours of channel utilization
// history for one wireless device.
func (c *Client) ChannelUtilization(ctx context.Context, networkID, serial string) ([]ChannelUtilization, error) {
	var out []ChannelUtilization
	path := "/networks/" + url.PathEscape(networkID) + "/wireless/channelUtilizationHistory"
	query := url.Values{
		"deviceSerial": {serial},
		"timespan":     {fmt.Sprintf("%d", utilizationWindowSeconds)},
	}
	if err := c.get(ctx, path, query, &out, "channel utilization", serial); err != nil {
		return nil, err
	}
	return out, nil
}

// SwitchPortStatuses returns the live port statuses of one switch.
func (c *Client) SwitchPortStatuses(ctx context.Context, serial string) ([]SwitchPortStatus, error) {
	var out []SwitchPortStatus
	path := "/devices/" + url.PathEscape(serial) + "/switch/ports/statuses"
	if err := c.get(ctx, path, nil, &out, "switch port statuses", serial); err != nil {
		return nil, err
	}
	return out, nil
}

// GenerateSnapshot asks a camera to render a still image. The returned URL
// points at an image that is usually not ready yet; callers must wait or
// poll before fetching (see the snapshot package).
func (c *Client) GenerateSnapshot(ctx context.Context, serial string) (*SnapshotLink, error) {
	var out SnapshotLink
	path := "/devices/" + url.PathEscape(serial) + "/camera/generateSnapshot"
	if err := c.post(ctx, path, struct{}{}, &out, "generate snapshot", serial); err != nil {
		return nil, err
	}
	if out.URL == "" {
		return nil, fmt.Errorf("generate snapshot(%s): no image URL in response; check camera permissions and availability", serial)
	}
	return &out, nil
}
