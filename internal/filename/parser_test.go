package filename

import (
	"testing"
)

func TestParse_VolumeAndChapter(t *testing.T) {
	for _, name := range []string{"Series v01c005.cbz", "Series V12 C34.cbz", "Series_v7_c8.cbr"} {
		r := Parse(name)
		if r.Volume == "" || r.Chapter == "" {
			t.Errorf("%q: volume = %q, chapter = %q", name, r.Volume, r.Chapter)
		}
	}
	r := Parse("Series v01c005.cbz")
	if r.Volume != "01" || r.Chapter != "005" {
		t.Errorf("volume = %q, chapter = %q, want 01 / 005", r.Volume, r.Chapter)
	}
}

func TestParse_VolumeOnly(t *testing.T) {
	r := Parse("Series v3.cbz")
	if r.Volume != "3" {
		t.Errorf("volume = %q, want 3", r.Volume)
	}
	if r.Chapter != "" {
		t.Errorf("chapter = %q, want empty", r.Chapter)
	}
}

func TestParse_DateFormats(t *testing.T) {
	cases := map[string]string{
		"Title 2020-05-14.cbz": "2020-05-14",
		"Title 2020.05.14.cbz": "2020-05-14",
		"Title 2020-05.cbz":    "2020-05-01",
		"Title 2020.cbz":       "2020-01-01",
	}
	for name, want := range cases {
		if got := Parse(name).Date; got != want {
			t.Errorf("%q: date = %q, want %q", name, got, want)
		}
	}
}

func TestParse_MostSpecificDateWins(t *testing.T) {
	// The year-only rule also matches, but must not override the full date.
	r := Parse("Title (2019) 2020-05-14.cbz")
	if r.Date != "2020-05-14" {
		t.Errorf("date = %q, want 2020-05-14", r.Date)
	}
}

func TestParse_UnparseableDateKeptRaw(t *testing.T) {
	r := Parse("Title 2020-13-40.cbz")
	if r.Date != "2020-13-40" {
		t.Errorf("date = %q, want raw 2020-13-40", r.Date)
	}
}

func TestParse_NoMatch(t *testing.T) {
	r := Parse("plain.zip")
	if r != (Result{}) {
		t.Errorf("expected empty result, got %+v", r)
	}
}

func TestMerge_DoesNotOverwrite(t *testing.T) {
	r := Result{Volume: "1"}
	r.merge("volume", "2")
	r.merge("chapter", "9")
	r.merge("unknown", "x")
	if r.Volume != "1" || r.Chapter != "9" {
		t.Errorf("merge result = %+v", r)
	}
}
