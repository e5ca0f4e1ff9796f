package columnar

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/parquet-go/parquet-go"

	"github.com/jfoltran/intake/internal/ingest"
)

type orderRow struct {
	Cost float64 `parquet:"cost"`
	ID   int64   `parquet:"id"`
	Name string  `parquet:"name"`
}

func TestWriterProducesNonEmptyFile(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}

	schema := ingest.InferSchema("orders", ingest.Values{
		"id":   ingest.Int64Value(1),
		"cost": ingest.FloatValue(2.5),
		"name": ingest.StringValue("widget"),
	})

	cache := ingest.NewCache(10)
	cache.Add(ingest.Values{"id": ingest.Int64Value(1), "cost": ingest.FloatValue(2.5), "name": ingest.StringValue("widget")})
	cache.Add(ingest.Values{"id": ingest.Int64Value(2), "cost": ingest.FloatValue(9.0), "name": ingest.StringValue("gadget")})

	columns, err := cache.ToColumns(schema)
	if err != nil {
		t.Fatalf("ToColumns() error = %v", err)
	}

	meta, err := w.Write(schema, "seg-1", columns)
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	if meta.RowCount != 2 {
		t.Errorf("RowCount = %d, want 2", meta.RowCount)
	}
	if meta.Path != filepath.Join(dir, "seg-1.parquet") {
		t.Errorf("Path = %q, want %q", meta.Path, filepath.Join(dir, "seg-1.parquet"))
	}

	info, err := os.Stat(meta.Path)
	if err != nil {
		t.Fatalf("output file missing: %v", err)
	}
	if info.Size() == 0 {
		t.Error("output file is empty")
	}
	if meta.Bytes != info.Size() {
		t.Errorf("meta.Bytes = %d, want %d", meta.Bytes, info.Size())
	}

	rows, err := parquet.ReadFile[orderRow](meta.Path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("read back %d rows, want 2", len(rows))
	}
	want := []orderRow{
		{ID: 1, Cost: 2.5, Name: "widget"},
		{ID: 2, Cost: 9.0, Name: "gadget"},
	}
	for i, wantRow := range want {
		if rows[i] != wantRow {
			t.Errorf("row %d = %+v, want %+v", i, rows[i], wantRow)
		}
	}
}

func TestWriterCreatesOutputDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")

	w, err := NewWriter(dir)
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}

	schema := ingest.InferSchema("orders", ingest.Values{"id": ingest.Int64Value(1)})
	cache := ingest.NewCache(10)
	cache.Add(ingest.Values{"id": ingest.Int64Value(1)})
	columns, err := cache.ToColumns(schema)
	if err != nil {
		t.Fatalf("ToColumns() error = %v", err)
	}

	if _, err := w.Write(schema, "seg-2", columns); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "seg-2.parquet")); err != nil {
		t.Errorf("expected nested output dir to be created: %v", err)
	}
}
