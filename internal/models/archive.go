// Package models defines the domain types for tankobon.
package models

import (
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Status classifies how an archive's embedded date compares to its filename.
type Status string

const (
	StatusOK      Status = "ok"
	StatusMissing Status = "missing"
	StatusWrong   Status = "wrong"
)

var (
	yearRe  = regexp.MustCompile(`^\d{4}$`)
	monthRe = regexp.MustCompile(`^(0[1-9]|1[0-2])$`)
	dayRe   = regexp.MustCompile(`^(0[1-9]|[12]\d|3[01])$`)
)

// DateTriple is the year/month/day stored in an archive's metadata entry.
// An empty field means absent.
type DateTriple struct {
	Year  string `json:"year"`
	Month string `json:"month"`
	Day   string `json:"day"`
}

// IsZero reports whether no field is set.
func (d DateTriple) IsZero() bool {
	return d.Year == "" && d.Month == "" && d.Day == ""
}

// Normalize defaults missing month and day to "01" and zero-pads
// single-digit values. The year is left untouched.
func (d DateTriple) Normalize() DateTriple {
	return DateTriple{
		Year:  d.Year,
		Month: pad2(d.Month),
		Day:   pad2(d.Day),
	}
}

// Validate checks that the triple is complete and well formed.
func (d DateTriple) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Year, validation.Required, validation.Match(yearRe)),
		validation.Field(&d.Month, validation.Required, validation.Match(monthRe)),
		validation.Field(&d.Day, validation.Required, validation.Match(dayRe)),
	)
}

// String renders the triple as YYYY-MM-DD, leaving absent fields empty.
func (d DateTriple) String() string {
	return d.Year + "-" + d.Month + "-" + d.Day
}

func pad2(s string) string {
	switch len(s) {
	case 0:
		return "01"
	case 1:
		return "0" + s
	default:
		return s
	}
}

// ArchiveFile is one archive found while walking a library tree.
type ArchiveFile struct {
	Path    string    `json:"path"` // relative to the library root
	Name    string    `json:"name"`
	Dir     string    `json:"dir"` // name of the parent directory
	ModTime time.Time `json:"mod_time"`
	Size    int64     `json:"size"`
}

// ArchiveRecord is the per-archive result of a scan pass. It is rebuilt
// from disk on every scan and never persisted.
type ArchiveRecord struct {
	Path             string      `json:"path"`
	Filename         string      `json:"filename"`
	Series           string      `json:"series"`
	EmbeddedDate     *DateTriple `json:"embedded_date"`
	FileModDate      string      `json:"file_mod_date"`
	ParsedVolume     string      `json:"parsed_volume,omitempty"`
	ParsedChapter    string      `json:"parsed_chapter,omitempty"`
	ParsedDate       string      `json:"parsed_date,omitempty"`
	CatalogTitle     string      `json:"catalog_title,omitempty"`
	CatalogAltTitles []string    `json:"catalog_alt_titles"`
	CatalogCoverURL  string      `json:"catalog_cover_url,omitempty"`
	CatalogSeriesURL string      `json:"catalog_series_url,omitempty"`
	Status           Status      `json:"status"`
	OfficialDate     string      `json:"official_date,omitempty"`
	Error            string      `json:"error,omitempty"`
}

// EmbeddedYear returns the embedded year, or "" when there is none.
func (r *ArchiveRecord) EmbeddedYear() string {
	if r.EmbeddedDate == nil {
		return ""
	}
	return r.EmbeddedDate.Year
}

// RepairResult reports the outcome of one archive in a repair run.
type RepairResult struct {
	Filename string `json:"filename"`
	Path     string `json:"path"`
	Date     string `json:"date"`
	OK       bool   `json:"ok"`
	DryRun   bool   `json:"dry_run,omitempty"`
	Error    string `json:"error,omitempty"`
}

// CatalogInfo is best-effort series metadata from a remote catalog.
type CatalogInfo struct {
	SeriesID  string   `json:"series_id,omitempty"`
	Title     string   `json:"title,omitempty"`
	AltTitles []string `json:"alt_titles"`
	CoverURL  string   `json:"cover_url,omitempty"`
	SeriesURL string   `json:"series_url,omitempty"`
}
