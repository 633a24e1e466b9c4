package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/starford/tankobon/internal/apperr"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type captured struct {
	method, path, auth, body string
}

func captureServer(t *testing.T, status int, resp string) (*httptest.Server, *captured) {
	t.Helper()
	c := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.method = r.Method
		c.path = r.URL.Path
		c.auth = r.Header.Get("Authorization")
		b, _ := io.ReadAll(r.Body)
		c.body = string(b)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(resp))
	}))
	t.Cleanup(srv.Close)
	return srv, c
}

func TestMissingTokenIsConfigError(t *testing.T) {
	if _, err := NewKomga(Settings{}, quietLogger()); !errors.Is(err, apperr.ErrNotConfigured) {
		t.Errorf("komga: err = %v", err)
	}
	if _, err := NewKavita(Settings{Token: "  "}, quietLogger()); !errors.Is(err, apperr.ErrNotConfigured) {
		t.Errorf("kavita: err = %v", err)
	}
}

func TestDefaults(t *testing.T) {
	c, err := NewKomga(Settings{Token: "t"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if c.baseURL != DefaultKomgaURL || c.http.Timeout != DefaultTimeout {
		t.Errorf("komga defaults: %q %v", c.baseURL, c.http.Timeout)
	}
	k, _ := NewKavita(Settings{Token: "t"}, nil)
	if k.baseURL != DefaultKavitaURL {
		t.Errorf("kavita url = %q", k.baseURL)
	}
}

func TestKomga_PatchesSeriesMetadata(t *testing.T) {
	srv, got := captureServer(t, http.StatusOK, `{"title":"Akira"}`)
	c, err := NewKomga(Settings{URL: srv.URL + "/api/", Token: "secret"}, quietLogger())
	if err != nil {
		t.Fatal(err)
	}

	resp, err := c.UpdateSeriesMetadata(context.Background(), "0ABC", map[string]any{"title": "Akira"})
	if err != nil {
		t.Fatalf("UpdateSeriesMetadata: %v", err)
	}
	if got.method != http.MethodPatch || got.path != "/api/v1/series/0ABC/metadata" {
		t.Errorf("request = %s %s", got.method, got.path)
	}
	if got.auth != "Bearer secret" {
		t.Errorf("auth = %q", got.auth)
	}
	var body map[string]any
	_ = json.Unmarshal([]byte(got.body), &body)
	if body["title"] != "Akira" {
		t.Errorf("body = %s", got.body)
	}
	if string(resp) != `{"title":"Akira"}` {
		t.Errorf("resp = %s", resp)
	}
}

func TestKavita_PutsSeriesMetadata(t *testing.T) {
	srv, got := captureServer(t, http.StatusNoContent, "")
	c, _ := NewKavita(Settings{URL: srv.URL, Token: "k"}, quietLogger())

	resp, err := c.UpdateSeriesMetadata(context.Background(), "12", map[string]any{"summary": "x"})
	if err != nil {
		t.Fatalf("UpdateSeriesMetadata: %v", err)
	}
	if got.method != http.MethodPut || got.path != "/Series/12/metadata" {
		t.Errorf("request = %s %s", got.method, got.path)
	}
	if string(resp) != "null" {
		t.Errorf("resp = %s", resp)
	}
}

func TestUpstreamErrorCarriesStatus(t *testing.T) {
	srv, _ := captureServer(t, http.StatusUnauthorized, `{"error":"bad token"}`)
	c, _ := NewKomga(Settings{URL: srv.URL, Token: "x"}, quietLogger())

	_, err := c.UpdateSeriesMetadata(context.Background(), "1", map[string]any{"a": 1})
	if !errors.Is(err, apperr.ErrUpstream) {
		t.Fatalf("err = %v, want ErrUpstream", err)
	}
	if !strings.Contains(err.Error(), "401") || !strings.Contains(err.Error(), "bad token") {
		t.Errorf("err = %v", err)
	}
}

func TestValidation(t *testing.T) {
	c, _ := NewKomga(Settings{Token: "x"}, quietLogger())
	if _, err := c.UpdateSeriesMetadata(context.Background(), "", map[string]any{"a": 1}); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("empty id: err = %v", err)
	}
	if _, err := c.UpdateSeriesMetadata(context.Background(), "1", nil); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("empty metadata: err = %v", err)
	}
}

func TestTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()
	c, _ := NewKavita(Settings{URL: srv.URL, Token: "x", Timeout: 50 * time.Millisecond}, quietLogger())

	if _, err := c.UpdateSeriesMetadata(context.Background(), "1", map[string]any{"a": 1}); !errors.Is(err, apperr.ErrUpstream) {
		t.Errorf("err = %v, want ErrUpstream", err)
	}
}
