package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"
)

// DefaultBaseURL is where focuspilot serve listens out of the box.
const DefaultBaseURL = "http://127.0.0.1:8787/api"

// Client provides HTTP client functionality to communicate with the focuspilot daemon
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// Config holds client configuration
type Config struct {
	BaseURL  string
	Timeout  time.Duration
	Logger   *slog.Logger // Optional logger for client operations
	TLS      *TLSClientConfig
	Insecure bool // Skip TLS verification
}

// TLSClientConfig holds TLS configuration for client
type TLSClientConfig struct {
	Enabled    bool   // Enable TLS
	CACert     string // CA certificate file path
	ClientCert string // Client certificate file
	ClientKey  string // Client private key file
	ServerName string // Server name for verification
	SkipVerify bool   // Skip certificate verification
}

// DefaultConfig returns default client configuration
func DefaultConfig() Config {
	return Config{
		BaseURL: DefaultBaseURL,
		Timeout: 10 * time.Second,
	}
}

// New creates a new focuspilot API client
func New(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	transport := &http.Transport{}
	if config.TLS != nil && config.TLS.Enabled || config.Insecure {
		tlsConfig, err := setupClientTLS(config)
		if err != nil {
			config.Logger.Error("TLS setup failed", "error", err)
		} else {
			transport.TLSClientConfig = tlsConfig
		}
	}

	return &Client{
		baseURL: config.BaseURL,
		logger:  config.Logger,
		client: &http.Client{
			Timeout:   config.Timeout,
			Transport: transport,
		},
	}
}

// IsReachable checks if the daemon is running and reachable
func (c *Client) IsReachable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/stats", nil)
	if err != nil {
		c.logger.Debug("Failed to create request for reachability check", "error", err)
		return false
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("Daemon unreachable", "error", err)
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	isReachable := resp.StatusCode != http.StatusNotFound
	c.logger.Debug("Daemon reachability check", "reachable", isReachable, "status", resp.StatusCode)
	return isReachable
}

// GetStats returns the focus summary of the last 24 hours.
func (c *Client) GetStats(ctx context.Context) (Stats, error) {
	var out Stats
	err := c.do(ctx, http.MethodGet, "/stats", nil, &out)
	return out, err
}

// ResetData clears every recorded focus event.
func (c *Client) ResetData(ctx context.Context) (Ack, error) {
	var out Ack
	err := c.do(ctx, http.MethodPost, "/reset", nil, &out)
	return out, err
}

// OpenDashboard asks the daemon to open the dashboard page.
func (c *Client) OpenDashboard(ctx context.Context) (Ack, error) {
	var out Ack
	err := c.do(ctx, http.MethodPost, "/dashboard", nil, &out)
	return out, err
}

// OpenSettings asks the daemon to open the settings page. A non-empty tab
// (e.g. "sites") selects the initial section.
func (c *Client) OpenSettings(ctx context.Context, tab string) (Ack, error) {
	path := "/settings"
	if tab != "" {
		path += "?tab=" + url.QueryEscape(tab)
	}
	var out Ack
	err := c.do(ctx, http.MethodPost, path, nil, &out)
	return out, err
}

// StartFocusSession starts a focus session lasting minutes.
func (c *Client) StartFocusSession(ctx context.Context, minutes int) (FocusSession, error) {
	var out FocusSession
	err := c.do(ctx, http.MethodPost, "/focus-session", focusSessionRequest{Minutes: minutes}, &out)
	return out, err
}

// Snooze silences reminders for d. Zero uses the daemon default.
func (c *Client) Snooze(ctx context.Context, d time.Duration) (Snoozed, error) {
	var out Snoozed
	err := c.do(ctx, http.MethodPost, "/snooze", snoozeRequest{DurationMs: d.Milliseconds()}, &out)
	return out, err
}

// GetConfig returns the effective focus settings.
func (c *Client) GetConfig(ctx context.Context) (FocusConfig, error) {
	var out FocusConfig
	err := c.do(ctx, http.MethodGet, "/config", nil, &out)
	return out, err
}

// UpdateConfig merges patch over the stored settings. patch may hold any
// subset of the settings fields.
func (c *Client) UpdateConfig(ctx context.Context, patch map[string]any) (FocusConfig, error) {
	var out FocusConfig
	err := c.do(ctx, http.MethodPut, "/config", patch, &out)
	return out, err
}

// TabActivated reports that tabID in windowID became the active tab.
func (c *Client) TabActivated(ctx context.Context, tabID, windowID int, tabURL string) error {
	c.logger.Debug("Tab activated", "tab", tabID, "window", windowID, "url", tabURL)
	return c.do(ctx, http.MethodPost, "/events/activated",
		activatedRequest{TabID: tabID, WindowID: windowID, URL: tabURL}, nil)
}

// TabUpdated reports a navigation of tabID.
func (c *Client) TabUpdated(ctx context.Context, tabID int, tabURL string) error {
	return c.do(ctx, http.MethodPost, "/events/updated", updatedRequest{TabID: tabID, URL: tabURL}, nil)
}

// TabRemoved reports that tabID was closed.
func (c *Client) TabRemoved(ctx context.Context, tabID int) error {
	return c.do(ctx, http.MethodPost, "/events/removed", removedRequest{TabID: tabID}, nil)
}

// IdleState reports an OS idle state change (IdleActive, IdleIdle or IdleLocked).
func (c *Client) IdleState(ctx context.Context, state string) error {
	return c.do(ctx, http.MethodPost, "/events/idle", idleRequest{State: state}, nil)
}

// State returns the activity state and the known tabs.
func (c *Client) State(ctx context.Context) (State, error) {
	var out State
	err := c.do(ctx, http.MethodGet, "/state", nil, &out)
	return out, err
}

// Assess runs one assessment immediately.
func (c *Client) Assess(ctx context.Context) (Assessment, error) {
	var out Assessment
	err := c.do(ctx, http.MethodPost, "/assess", nil, &out)
	return out, err
}

// Inline drains the fallback reminders queued for tabID.
func (c *Client) Inline(ctx context.Context, tabID int) ([]InlineReminder, error) {
	var out []InlineReminder
	err := c.do(ctx, http.MethodGet, "/tabs/"+strconv.Itoa(tabID)+"/inline", nil, &out)
	return out, err
}

// setupClientTLS configures TLS settings for HTTP client
func setupClientTLS(config Config) (*tls.Config, error) {
	tlsConfig := &tls.Config{}

	if config.Insecure {
		tlsConfig.InsecureSkipVerify = true
		return tlsConfig, nil
	}

	if config.TLS != nil {
		if config.TLS.SkipVerify {
			tlsConfig.InsecureSkipVerify = true
		}
		if config.TLS.ServerName != "" {
			tlsConfig.ServerName = config.TLS.ServerName
		}
		if config.TLS.CACert != "" {
			if err := loadCACert(tlsConfig, config.TLS.CACert); err != nil {
				return nil, fmt.Errorf("failed to load CA certificate: %w", err)
			}
		}
		if config.TLS.ClientCert != "" && config.TLS.ClientKey != "" {
			cert, err := tls.LoadX509KeyPair(config.TLS.ClientCert, config.TLS.ClientKey)
			if err != nil {
				return nil, fmt.Errorf("failed to load client certificate: %w", err)
			}
			tlsConfig.Certificates = []tls.Certificate{cert}
		}
	}

	return tlsConfig, nil
}

// loadCACert loads CA certificate from file and adds it to TLS config
func loadCACert(tlsConfig *tls.Config, caCertPath string) error {
	caCert, err := os.ReadFile(caCertPath)
	if err != nil {
		return fmt.Errorf("failed to read CA certificate file: %w", err)
	}

	caCertPool := x509.NewCertPool()
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return fmt.Errorf("failed to parse CA certificate")
	}

	tlsConfig.RootCAs = caCertPool
	return nil
}

// do sends in as JSON (when non-nil) and decodes the reply into out (when non-nil).
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	target := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("HTTP request failed", "error", err, "url", target)
		return fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := c.handleErrorResponse(resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// handleErrorResponse handles HTTP error responses
func (c *Client) handleErrorResponse(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}

	var errorResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errorResp); err != nil {
		c.logger.Error("Failed to decode error response", "status", resp.StatusCode)
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	c.logger.Error("API request failed", "error", errorResp.Error, "status", resp.StatusCode)
	return &APIError{Status: resp.StatusCode, Message: errorResp.Error}
}

// APIError is returned when the daemon answers with a non-200 status.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.Status, e.Message)
}
