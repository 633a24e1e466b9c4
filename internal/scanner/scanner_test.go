package scanner_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/tankobon/internal/apperr"
	"github.com/starford/tankobon/internal/comicinfo"
	"github.com/starford/tankobon/internal/models"
	"github.com/starford/tankobon/internal/scanner"
	"github.com/starford/tankobon/internal/testutil"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type recordingLookup struct {
	titles []string
}

func (r *recordingLookup) Lookup(_ context.Context, title string) models.CatalogInfo {
	r.titles = append(r.titles, title)
	return models.CatalogInfo{Title: title + " (catalog)", AltTitles: []string{"alt"}, SeriesURL: "u/" + title}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		year, parsed string
		want         models.Status
	}{
		{"2020", "2020-05-01", models.StatusOK},
		{"", "2020-05-01", models.StatusMissing},
		{"", "", models.StatusMissing},
		{"2019", "2020-05-01", models.StatusWrong},
		{"2019", "", models.StatusWrong},
	}
	for _, c := range cases {
		if got := scanner.Classify(c.year, c.parsed); got != c.want {
			t.Errorf("Classify(%q, %q) = %s, want %s", c.year, c.parsed, got, c.want)
		}
	}
}

func TestScan_BuildsRecords(t *testing.T) {
	root, lib := testutil.TestLibrary(t)
	okPath := filepath.Join(root, "Akira", "Akira v01c02 (2020-05-14).cbz")
	testutil.WriteZip(t, okPath,
		testutil.Entry{Name: "ComicInfo.xml", Body: testutil.ComicInfo("2020", "5", "14")},
		testutil.Entry{Name: "001.jpg", Body: "img"},
	)
	testutil.SetModDate(t, okPath, 2023, 3, 9)
	missingPath := filepath.Join(root, "Akira", "Akira v02 2021-02.cbz")
	testutil.WriteZip(t, missingPath, testutil.Entry{Name: "001.jpg", Body: "img"})
	wrongPath := filepath.Join(root, "Berserk", "Berserk c100.cbz")
	testutil.WriteZip(t, wrongPath,
		testutil.Entry{Name: "ComicInfo.xml", Body: testutil.ComicInfo("1999", "", "")},
	)

	lookup := &recordingLookup{}
	s := scanner.New(lib, comicinfo.New(comicinfo.WithLogger(quietLogger())), lookup, quietLogger())
	recs, err := s.Scan(context.Background(), "")
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("records = %d, want 3", len(recs))
	}

	ok := recs[0]
	if ok.Filename != "Akira v01c02 (2020-05-14).cbz" || ok.Series != "Akira" {
		t.Errorf("record[0] = %+v", ok)
	}
	if ok.EmbeddedDate == nil || ok.EmbeddedDate.Year != "2020" || ok.EmbeddedDate.Month != "5" {
		t.Errorf("embedded date = %+v", ok.EmbeddedDate)
	}
	if ok.ParsedVolume != "01" || ok.ParsedChapter != "02" || ok.ParsedDate != "2020-05-14" {
		t.Errorf("parsed = %q %q %q", ok.ParsedVolume, ok.ParsedChapter, ok.ParsedDate)
	}
	if ok.FileModDate != "2023-03-09" {
		t.Errorf("file mod date = %q", ok.FileModDate)
	}
	if ok.Status != models.StatusOK || ok.OfficialDate != "2020-05-14" {
		t.Errorf("status = %s official = %q", ok.Status, ok.OfficialDate)
	}
	if ok.CatalogTitle != "Akira (catalog)" || ok.CatalogSeriesURL != "u/Akira" {
		t.Errorf("catalog = %q %q", ok.CatalogTitle, ok.CatalogSeriesURL)
	}

	if recs[1].Status != models.StatusMissing || recs[1].EmbeddedDate != nil || recs[1].ParsedDate != "2021-02-01" {
		t.Errorf("record[1] = %+v", recs[1])
	}
	if recs[2].Status != models.StatusWrong || recs[2].ParsedDate != "" {
		t.Errorf("record[2] = %+v", recs[2])
	}

	// one lookup per series per scan
	if len(lookup.titles) != 2 || lookup.titles[0] != "Akira" || lookup.titles[1] != "Berserk" {
		t.Errorf("lookups = %v", lookup.titles)
	}
}

func TestScan_CorruptArchiveReported(t *testing.T) {
	root, lib := testutil.TestLibrary(t)
	_ = os.WriteFile(filepath.Join(root, "broken.cbz"), []byte("not a zip"), 0o644)
	testutil.WriteZip(t, filepath.Join(root, "fine.cbz"), testutil.Entry{Name: "a.jpg", Body: "x"})

	s := scanner.New(lib, comicinfo.New(comicinfo.WithLogger(quietLogger())), nil, quietLogger())
	recs, err := s.Scan(context.Background(), "")
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("records = %d, want 2", len(recs))
	}
	if recs[0].Error == "" || recs[0].Status != models.StatusMissing {
		t.Errorf("broken record = %+v", recs[0])
	}
	if recs[1].Error != "" {
		t.Errorf("fine record error = %q", recs[1].Error)
	}
}

func TestScan_MissingDir(t *testing.T) {
	_, lib := testutil.TestLibrary(t)
	s := scanner.New(lib, comicinfo.New(), nil, quietLogger())
	if _, err := s.Scan(context.Background(), "nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestScan_EmptyDir(t *testing.T) {
	_, lib := testutil.TestLibrary(t)
	s := scanner.New(lib, comicinfo.New(), nil, quietLogger())
	recs, err := s.Scan(context.Background(), "")
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if recs == nil || len(recs) != 0 {
		t.Errorf("recs = %v, want empty slice", recs)
	}
}

func TestInspect(t *testing.T) {
	root, lib := testutil.TestLibrary(t)
	testutil.WriteZip(t, filepath.Join(root, "S", "S 2018.cbz"),
		testutil.Entry{Name: "ComicInfo.xml", Body: testutil.ComicInfo("2018", "01", "01")},
	)
	s := scanner.New(lib, comicinfo.New(), nil, quietLogger())

	rec, err := s.Inspect(context.Background(), filepath.Join("S", "S 2018.cbz"))
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if rec.Status != models.StatusOK || rec.ParsedDate != "2018-01-01" {
		t.Errorf("record = %+v", rec)
	}
	if _, err := s.Inspect(context.Background(), "S/none.cbz"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
