// Package filename extracts volume, chapter and date tokens from archive filenames.
package filename

import (
	"regexp"
	"time"
)

// rules are tried in priority order. A later rule never overwrites a
// field set by an earlier one.
var rules = []*regexp.Regexp{
	regexp.MustCompile(`(?i)v(?P<volume>\d+)[\s_]*c(?P<chapter>\d+)`),
	regexp.MustCompile(`(?i)v(?P<volume>\d+)`),
	regexp.MustCompile(`(?i)c(?P<chapter>\d+)`),
	regexp.MustCompile(`(?P<date>\d{4}[-.]\d{2}[-.]\d{2})`),
	regexp.MustCompile(`(?P<date>\d{4}[-.]\d{2})`),
	regexp.MustCompile(`(?P<date>\d{4})`),
}

var dateLayouts = []string{
	"2006-01-02",
	"2006.01.02",
	"2006-01",
	"2006.01",
	"2006",
}

// Result holds the tokens found in a filename. Empty fields were not found.
type Result struct {
	Volume  string `json:"volume,omitempty"`
	Chapter string `json:"chapter,omitempty"`
	Date    string `json:"date,omitempty"`
}

// Parse applies the filename rules to name. The date, when found, is
// normalized to YYYY-MM-DD; a date no layout accepts is kept verbatim.
func Parse(name string) Result {
	var res Result
	for _, re := range rules {
		m := re.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		for i, group := range re.SubexpNames() {
			if i == 0 || m[i] == "" {
				continue
			}
			res.merge(group, m[i])
		}
	}
	if res.Date != "" {
		res.Date = normalizeDate(res.Date)
	}
	return res
}

func (r *Result) merge(field, value string) {
	var dst *string
	switch field {
	case "volume":
		dst = &r.Volume
	case "chapter":
		dst = &r.Chapter
	case "date":
		dst = &r.Date
	default:
		return
	}
	if *dst == "" {
		*dst = value
	}
}

func normalizeDate(raw string) string {
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, raw)
		if err == nil {
			return t.Format(time.DateOnly)
		}
	}
	return raw
}
