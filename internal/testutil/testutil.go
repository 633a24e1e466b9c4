// Package testutil provides shared test helpers for building libraries and archives.
package testutil

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/starford/tankobon/internal/library"
)

// Entry is one file to place in a test archive.
type Entry struct {
	Name string
	Body string
}

// TestLibrary creates a temporary library root with a library.FS.
func TestLibrary(t *testing.T) (string, *library.FS) {
	t.Helper()
	root := t.TempDir()
	lib, err := library.NewFS(root)
	if err != nil {
		t.Fatal(err)
	}
	return root, lib
}

// WriteZip creates a ZIP archive at path holding entries in order.
// Parent directories are created as needed.
func WriteZip(t *testing.T, path string, entries ...Entry) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	for _, e := range entries {
		w, err := zw.Create(e.Name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := io.WriteString(w, e.Body); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
}

// ReadZip returns the decompressed content of every file entry keyed by name.
func ReadZip(t *testing.T, path string) map[string]string {
	t.Helper()
	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("open zip %s: %v", path, err)
	}
	defer zr.Close()

	out := make(map[string]string, len(zr.File))
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatal(err)
		}
		out[f.Name] = string(data)
	}
	return out
}

// ZipNames returns the sorted entry names of a ZIP archive.
func ZipNames(t *testing.T, path string) []string {
	t.Helper()
	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("open zip %s: %v", path, err)
	}
	defer zr.Close()

	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	return names
}

// ComicInfo returns a ComicInfo.xml body with the given date fields.
func ComicInfo(year, month, day string) string {
	return `<?xml version="1.0" encoding="utf-8"?>` + "\n" +
		"<ComicInfo><Series>Test</Series><Year>" + year + "</Year><Month>" + month +
		"</Month><Day>" + day + "</Day></ComicInfo>\n"
}

// SetModDate sets both access and modification time of path to midnight UTC of date.
func SetModDate(t *testing.T, path string, year int, month time.Month, day int) {
	t.Helper()
	ts := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if err := os.Chtimes(path, ts, ts); err != nil {
		t.Fatal(err)
	}
}
