package repair_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/tankobon/internal/comicinfo"
	"github.com/starford/tankobon/internal/models"
	"github.com/starford/tankobon/internal/repair"
	"github.com/starford/tankobon/internal/scanner"
	"github.com/starford/tankobon/internal/testutil"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestSplitDate(t *testing.T) {
	cases := map[string]models.DateTriple{
		"2020-05-14": {Year: "2020", Month: "05", Day: "14"},
		"2021-02":    {Year: "2021", Month: "02", Day: "01"},
		"2019":       {Year: "2019", Month: "01", Day: "01"},
	}
	for in, want := range cases {
		if got := repair.SplitDate(in); got != want {
			t.Errorf("SplitDate(%q) = %+v, want %+v", in, got, want)
		}
	}
}

func TestReplacementDate(t *testing.T) {
	rec := models.ArchiveRecord{ParsedDate: "2021-02-01", FileModDate: "2022-07-01"}
	if got := repair.ReplacementDate(rec).String(); got != "2021-02-01" {
		t.Errorf("parsed preferred: got %s", got)
	}
	rec.ParsedDate = ""
	if got := repair.ReplacementDate(rec).String(); got != "2022-07-01" {
		t.Errorf("mtime fallback: got %s", got)
	}
	rec.ParsedDate = "2020-13-40"
	if got := repair.ReplacementDate(rec).String(); got != "2022-07-01" {
		t.Errorf("invalid parsed date: got %s", got)
	}
}

// batchLibrary builds the ok / missing / wrong three-archive library.
func batchLibrary(t *testing.T) (string, *repair.Engine, *comicinfo.Codec) {
	t.Helper()
	root, lib := testutil.TestLibrary(t)
	testutil.WriteZip(t, filepath.Join(root, "Series", "Series 2020-05-01 v01.cbz"),
		testutil.Entry{Name: "ComicInfo.xml", Body: testutil.ComicInfo("2020", "05", "01")},
		testutil.Entry{Name: "001.jpg", Body: "one"},
	)
	testutil.WriteZip(t, filepath.Join(root, "Series", "Series v02 2021-02.cbz"),
		testutil.Entry{Name: "001.jpg", Body: "two"},
	)
	wrong := filepath.Join(root, "Series", "Series v03.cbz")
	testutil.WriteZip(t, wrong,
		testutil.Entry{Name: "ComicInfo.xml", Body: testutil.ComicInfo("2019", "", "")},
		testutil.Entry{Name: "001.jpg", Body: "three"},
	)
	testutil.SetModDate(t, wrong, 2022, 7, 1)

	codec := comicinfo.New(comicinfo.WithLogger(quietLogger()))
	scan := scanner.New(lib, codec, nil, quietLogger())
	return root, repair.New(scan, codec, lib, quietLogger()), codec
}

func TestRepair_BatchScenario(t *testing.T) {
	root, engine, codec := batchLibrary(t)

	var observed []models.RepairResult
	results, err := engine.Repair(context.Background(), "", func(r models.RepairResult) {
		observed = append(observed, r)
	})
	if err != nil {
		t.Fatalf("Repair: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %+v, want 2", results)
	}
	if results[0].Filename != "Series v02 2021-02.cbz" || results[0].Date != "2021-02-01" || !results[0].OK {
		t.Errorf("results[0] = %+v", results[0])
	}
	if results[1].Filename != "Series v03.cbz" || results[1].Date != "2022-07-01" || !results[1].OK {
		t.Errorf("results[1] = %+v", results[1])
	}
	if len(observed) != 2 {
		t.Errorf("observer saw %d results", len(observed))
	}

	got := codec.ReadDate(filepath.Join(root, "Series", "Series v02 2021-02.cbz"))
	if got != (models.DateTriple{Year: "2021", Month: "02", Day: "01"}) {
		t.Errorf("missing archive now = %+v", got)
	}
	got = codec.ReadDate(filepath.Join(root, "Series", "Series v03.cbz"))
	if got != (models.DateTriple{Year: "2022", Month: "07", Day: "01"}) {
		t.Errorf("wrong archive now = %+v", got)
	}
}

func TestRepair_SecondRunIsStable(t *testing.T) {
	root, engine, codec := batchLibrary(t)
	ctx := context.Background()

	if _, err := engine.Repair(ctx, "", nil); err != nil {
		t.Fatalf("first Repair: %v", err)
	}
	wrong := filepath.Join(root, "Series", "Series v03.cbz")
	before := testutil.ZipNames(t, wrong)

	results, err := engine.Repair(ctx, "", nil)
	if err != nil {
		t.Fatalf("second Repair: %v", err)
	}
	// The archive without a filename date stays "wrong" and is rewritten
	// with the same mtime-derived date.
	if len(results) != 1 || results[0].Date != "2022-07-01" || !results[0].OK {
		t.Fatalf("second run results = %+v", results)
	}
	if got := codec.ReadDate(wrong); got.String() != "2022-07-01" {
		t.Errorf("date drifted to %s", got)
	}
	after := testutil.ZipNames(t, wrong)
	if len(before) != len(after) {
		t.Errorf("entries changed: %v -> %v", before, after)
	}
}

func TestPlan_DoesNotWrite(t *testing.T) {
	root, engine, codec := batchLibrary(t)

	results, err := engine.Plan(context.Background(), "")
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(results) != 2 || !results[0].DryRun || results[1].Date != "2022-07-01" {
		t.Errorf("plan = %+v", results)
	}
	if got := codec.ReadDate(filepath.Join(root, "Series", "Series v02 2021-02.cbz")); !got.IsZero() {
		t.Errorf("plan wrote a date: %+v", got)
	}
}

type fakeScanner struct {
	recs []models.ArchiveRecord
	err  error
}

func (f fakeScanner) Scan(context.Context, string) ([]models.ArchiveRecord, error) {
	return f.recs, f.err
}

type fakeWriter struct {
	fail  map[string]bool
	wrote []string
}

func (f *fakeWriter) WriteDate(_ context.Context, path string, date models.DateTriple) error {
	if f.fail[filepath.Base(path)] {
		return errors.New("repack failed")
	}
	f.wrote = append(f.wrote, filepath.Base(path)+"="+date.String())
	return nil
}

type rootResolver string

func (r rootResolver) Resolve(rel string) (string, error) {
	return filepath.Join(string(r), rel), nil
}

func TestRepair_FailureDoesNotStopBatch(t *testing.T) {
	recs := []models.ArchiveRecord{
		{Path: "a.cbz", Filename: "a.cbz", Status: models.StatusMissing, ParsedDate: "2001-01-01"},
		{Path: "b.cbz", Filename: "b.cbz", Status: models.StatusOK, ParsedDate: "2002-01-01"},
		{Path: "c.cbz", Filename: "c.cbz", Status: models.StatusWrong, FileModDate: "2003-03-03"},
	}
	w := &fakeWriter{fail: map[string]bool{"a.cbz": true}}
	engine := repair.New(fakeScanner{recs: recs}, w, rootResolver("/lib"), quietLogger())

	results, err := engine.Repair(context.Background(), "", nil)
	if err != nil {
		t.Fatalf("Repair: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %+v", results)
	}
	if results[0].OK || results[0].Error == "" {
		t.Errorf("a.cbz should fail: %+v", results[0])
	}
	if !results[1].OK || len(w.wrote) != 1 || w.wrote[0] != "c.cbz=2003-03-03" {
		t.Errorf("c.cbz not repaired: %+v wrote=%v", results[1], w.wrote)
	}
}

func TestRepair_ScanErrorReturned(t *testing.T) {
	engine := repair.New(fakeScanner{err: errors.New("walk failed")}, &fakeWriter{}, rootResolver("/"), quietLogger())
	if _, err := engine.Repair(context.Background(), "x", nil); err == nil {
		t.Error("expected scan error")
	}
}
