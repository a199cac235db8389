package sqlite

import (
	"context"
	"database/sql"
	"math"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/ChrisMcGann/ScanKey/pkg/core"
	"github.com/ChrisMcGann/ScanKey/pkg/filter"
)

func testRecords() []*core.ScanRecord {
	score := 0.75
	return []*core.ScanRecord{
		{ScanNumber: 1, ElutionTimeMin: 0.5, MSLevel: 1, ScanTypeLabel: "HMS", IsHighResolution: true},
		{
			ScanNumber: 2, ElutionTimeMin: 0.51, MSLevel: 2, ScanTypeLabel: "HCD-HMSn",
			ParentIonMZ: core.Float(700), IsolationWidthMZ: core.Float(1.6), ChargeState: core.Int(2),
			InterferenceScore: &score, ActivationMethod: "HCD",
		},
		{
			ScanNumber: 3, ElutionTimeMin: 0.52, MSLevel: 2, ScanTypeLabel: "HCD-HMSn", IsDIA: true,
			ParentIonMZ: core.Float(710), IsolationWidthMZ: core.Float(8), InterferenceScore: core.Float(0.25),
			ActivationMethod: "HCD",
		},
	}
}

func TestWriterRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scans.db")
	w, err := NewWriter(path, Options{SourceFile: "run.mzML", ChunkSize: 2})
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}
	if w.RunID() == "" {
		t.Fatal("Expected a generated run id")
	}

	mzs := []float64{100.5, 200.25, 300.125}
	ints := []float64{1, 2, 3}
	for _, rec := range testRecords() {
		if err := w.WriteScan(context.Background(), rec, mzs, ints); err != nil {
			t.Fatalf("WriteScan() error = %v", err)
		}
	}
	if err := w.Finalize(); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("Close() after Finalize() error = %v", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	var count int
	if err := db.QueryRow(`SELECT ScanCount FROM RunTable WHERE RunId = ?`, w.RunID()).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Errorf("ScanCount = %d, want 3", count)
	}

	var parent sql.NullFloat64
	var charge sql.NullInt64
	var mrm string
	var mzBlob []byte
	err = db.QueryRow(`SELECT ParentMZ, ChargeState, MRMKind, blobMass FROM ScanTable WHERE ScanNumber = 2`).
		Scan(&parent, &charge, &mrm, &mzBlob)
	if err != nil {
		t.Fatal(err)
	}
	if parent.Float64 != 700 || charge.Int64 != 2 || mrm != "NotMRM" {
		t.Errorf("row = %v, %v, %q", parent, charge, mrm)
	}
	got, err := decodeFloat64(mzBlob)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, mzs) {
		t.Errorf("blobMass = %v, want %v", got, mzs)
	}

	if err := db.QueryRow(`SELECT ParentMZ FROM ScanTable WHERE ScanNumber = 1`).Scan(&parent); err != nil {
		t.Fatal(err)
	}
	if parent.Valid {
		t.Error("Expected NULL ParentMZ for survey scan")
	}
}

func TestWriterFilter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scans.db")
	w, err := NewWriter(path, Options{RunID: "run-1", Filter: filter.Config{TopN: 1}})
	if err != nil {
		t.Fatal(err)
	}
	rec := &core.ScanRecord{ScanNumber: 1, MSLevel: 1}
	if err := w.WriteScan(context.Background(), rec, []float64{1, 2}, []float64{5, 9}); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	db, _ := sql.Open("sqlite3", path)
	defer db.Close()
	var blob []byte
	if err := db.QueryRow(`SELECT blobIntensity FROM ScanTable WHERE RunId = 'run-1'`).Scan(&blob); err != nil {
		t.Fatal(err)
	}
	got, _ := decodeFloat64(blob)
	if !reflect.DeepEqual(got, []float64{9}) {
		t.Errorf("blobIntensity = %v, want [9]", got)
	}
}

func TestWriterRollsBackChunkOnInsertFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scans.db")
	w, err := NewWriter(path, Options{RunID: "run-f", ChunkSize: 10})
	if err != nil {
		t.Fatal(err)
	}
	recs := testRecords()
	if err := w.WriteScan(context.Background(), recs[0], nil, nil); err != nil {
		t.Fatal(err)
	}

	// A cancelled context makes the insert fail while the chunk is open.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := w.WriteScan(ctx, recs[1], nil, nil); err == nil {
		t.Fatal("Expected insert error with cancelled context")
	}
	if err := w.WriteScan(context.Background(), recs[2], nil, nil); err == nil {
		t.Error("Expected writes after a failure to be refused")
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	var rows, count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM ScanTable WHERE RunId = 'run-f'`).Scan(&rows); err != nil {
		t.Fatal(err)
	}
	if err := db.QueryRow(`SELECT ScanCount FROM RunTable WHERE RunId = 'run-f'`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if rows != 0 || count != 0 {
		t.Errorf("rows = %d, ScanCount = %d; want the open chunk rolled back", rows, count)
	}
}

func TestNewWriterInvalidFilter(t *testing.T) {
	_, err := NewWriter(filepath.Join(t.TempDir(), "scans.db"), Options{Filter: filter.Config{TopN: -1}})
	if err == nil {
		t.Error("Expected error for negative top-n")
	}
}

func TestSummarize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scans.db")
	for _, runID := range []string{"first", "second"} {
		w, err := NewWriter(path, Options{RunID: runID, SourceFile: runID + ".mzML"})
		if err != nil {
			t.Fatal(err)
		}
		for _, rec := range testRecords() {
			if err := w.WriteScan(context.Background(), rec, nil, nil); err != nil {
				t.Fatal(err)
			}
		}
		if err := w.Finalize(); err != nil {
			t.Fatal(err)
		}
	}

	runs, err := Summarize(path)
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if len(runs) != 2 || runs[0].RunID != "first" || runs[1].SourceFile != "second.mzML" {
		t.Fatalf("runs = %+v", runs)
	}

	r := runs[0]
	if r.Scans != 3 || r.DIA != 1 || r.Scored != 2 {
		t.Errorf("summary = %+v", r)
	}
	if math.Abs(r.MeanInterference-0.5) > 1e-9 {
		t.Errorf("MeanInterference = %v, want 0.5", r.MeanInterference)
	}
	want := []LabelCount{{"HCD-HMSn", 2}, {"HMS", 1}}
	if !reflect.DeepEqual(r.Labels, want) {
		t.Errorf("Labels = %v, want %v", r.Labels, want)
	}

	if _, err := Summarize(filepath.Join(t.TempDir(), "missing.db")); err == nil {
		t.Error("Expected error for missing database")
	}
}

func TestDecodeFloat64Invalid(t *testing.T) {
	if _, err := decodeFloat64([]byte{1, 2, 3}); err == nil {
		t.Error("Expected error for truncated blob")
	}
}
