// Package remote pushes series metadata to Komga and Kavita servers.
package remote

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

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/tankobon/internal/apperr"
)

// Default endpoints and timeout.
const (
	DefaultKomgaURL  = "http://localhost:8080/api"
	DefaultKavitaURL = "http://localhost:5000/api"
	DefaultTimeout   = 30 * time.Second
)

const (
	userAgent   = "tankobon/1.0"
	maxBodySize = 1 << 20
	excerptSize = 256
)

// Settings configures one remote server.
type Settings struct {
	URL     string
	Token   string
	Timeout time.Duration
}

// Client updates series metadata on one remote library server.
type Client struct {
	name    string
	method  string
	path    string // format with one %s for the series id
	baseURL string
	token   string
	http    *http.Client
	logger  *slog.Logger
}

// NewKomga creates a Komga client. A missing token is a configuration error.
func NewKomga(s Settings, logger *slog.Logger) (*Client, error) {
	return newClient("komga", http.MethodPatch, "/v1/series/%s/metadata", DefaultKomgaURL, s, logger)
}

// NewKavita creates a Kavita client. A missing token is a configuration error.
func NewKavita(s Settings, logger *slog.Logger) (*Client, error) {
	return newClient("kavita", http.MethodPut, "/Series/%s/metadata", DefaultKavitaURL, s, logger)
}

func newClient(name, method, path, defaultURL string, s Settings, logger *slog.Logger) (*Client, error) {
	if strings.TrimSpace(s.Token) == "" {
		return nil, fmt.Errorf("remote: %s token is not set: %w", name, apperr.ErrNotConfigured)
	}
	base := s.URL
	if base == "" {
		base = defaultURL
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		name:    name,
		method:  method,
		path:    path,
		baseURL: strings.TrimRight(base, "/"),
		token:   s.Token,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}, nil
}

// Name returns "komga" or "kavita".
func (c *Client) Name() string {
	return c.name
}

// UpdateSeriesMetadata sends metadata for seriesID and returns the
// server's JSON response (null when the response has no body).
func (c *Client) UpdateSeriesMetadata(ctx context.Context, seriesID string, metadata map[string]any) (json.RawMessage, error) {
	err := validation.Errors{
		"series_id": validation.Validate(seriesID, validation.Required),
		"metadata":  validation.Validate(metadata, validation.Required),
	}.Filter()
	if err != nil {
		return nil, fmt.Errorf("remote: %s: %w: %v", c.name, apperr.ErrInvalidInput, err)
	}

	body, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("remote: %s: encode metadata: %w", c.name, err)
	}
	endpoint := c.baseURL + fmt.Sprintf(c.path, url.PathEscape(seriesID))
	req, err := http.NewRequestWithContext(ctx, c.method, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("remote: %s: build request: %w", c.name, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	c.logger.Info("remote: updating series metadata", slog.String("server", c.name), slog.String("series_id", seriesID))
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote: %s: %w: %v", c.name, apperr.ErrUpstream, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("remote: %s: %w: read response: %v", c.name, apperr.ErrUpstream, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("remote: %s: %w: status %d: %s", c.name, apperr.ErrUpstream, resp.StatusCode, excerpt(data))
	}
	c.logger.Info("remote: series metadata updated", slog.String("server", c.name), slog.String("series_id", seriesID))

	if len(bytes.TrimSpace(data)) == 0 {
		return json.RawMessage("null"), nil
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("remote: %s: %w: response is not json", c.name, apperr.ErrUpstream)
	}
	return json.RawMessage(data), nil
}

func excerpt(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > excerptSize {
		s = s[:excerptSize] + "..."
	}
	return s
}
