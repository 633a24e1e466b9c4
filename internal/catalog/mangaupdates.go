package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/starford/tankobon/internal/models"
)

// DefaultBaseURL is the public MangaUpdates API.
const DefaultBaseURL = "https://api.mangaupdates.com"

const (
	seriesPageURL   = "https://www.mangaupdates.com/series.html?id="
	maxResponseSize = 4 << 20
)

// MangaUpdates looks series up through the MangaUpdates v1 API.
type MangaUpdates struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewMangaUpdates creates a client. An empty baseURL selects DefaultBaseURL;
// a non-positive timeout selects 10s.
func NewMangaUpdates(baseURL string, timeout time.Duration, logger *slog.Logger) *MangaUpdates {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MangaUpdates{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Lookup searches for title and fetches the best hit's series record.
func (m *MangaUpdates) Lookup(ctx context.Context, title string) models.CatalogInfo {
	info := models.CatalogInfo{AltTitles: []string{}}
	title = NormalizeTitle(title)
	if title == "" {
		return info
	}

	search, err := m.search(ctx, title)
	if err != nil {
		m.logger.Debug("catalog: search failed", slog.String("title", title), slog.String("error", err.Error()))
		return info
	}
	id := firstOf(search, "results.0.record.series_id", "results.0.series_id")
	if id == "" {
		return info
	}
	info.SeriesID = id
	info.SeriesURL = seriesPageURL + id

	series, err := m.get(ctx, "/v1/series/"+id)
	if err != nil {
		m.logger.Debug("catalog: series fetch failed", slog.String("id", id), slog.String("error", err.Error()))
		return info
	}
	info.Title = firstOf(series, "title")
	info.CoverURL = firstOf(series, "image.url.original", "cover")
	if u := firstOf(series, "url"); u != "" {
		info.SeriesURL = u
	}
	alts := gjson.GetBytes(series, "associated.#.title")
	if !alts.Exists() || len(alts.Array()) == 0 {
		alts = gjson.GetBytes(series, "aka")
	}
	for _, a := range alts.Array() {
		if s := strings.TrimSpace(a.String()); s != "" {
			info.AltTitles = append(info.AltTitles, s)
		}
	}
	return info
}

func (m *MangaUpdates) search(ctx context.Context, title string) ([]byte, error) {
	body, err := json.Marshal(map[string]string{"search": title})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/v1/series/search", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return m.do(req)
}

func (m *MangaUpdates) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	return m.do(req)
}

func (m *MangaUpdates) do(req *http.Request) ([]byte, error) {
	req.Header.Set("Accept", "application/json")
	resp, err := m.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog: %s %s: status %d", req.Method, req.URL.Path, resp.StatusCode)
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("catalog: %s %s: invalid json", req.Method, req.URL.Path)
	}
	return data, nil
}

// firstOf returns the first non-empty string among the gjson paths.
func firstOf(data []byte, paths ...string) string {
	for _, p := range paths {
		if r := gjson.GetBytes(data, p); r.Exists() {
			if s := strings.TrimSpace(r.String()); s != "" {
				return s
			}
		}
	}
	return ""
}
