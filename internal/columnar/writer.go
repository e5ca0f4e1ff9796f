// Package columnar wraps github.com/parquet-go/parquet-go to give the
// ingestion engine the "schema → writer → row-group → typed column
// batches → close-with-metadata" contract spec.md treats as an external
// collaborator. This is the one concrete implementation of that
// contract; everything upstream of it (Cache.ToColumns) only knows
// about ingest.Column, not about parquet-go's row/value types.
package columnar

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"

	"github.com/jfoltran/intake/internal/ingest"
)

// Writer materializes closed segments as Parquet files under dir.
type Writer struct {
	dir string
}

// NewWriter creates a Writer that writes files under dir (spec §6.4's
// "./{segment-uuid}.parquet", generalized to a configurable directory).
func NewWriter(dir string) (*Writer, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("columnar: create output dir %s: %w", dir, err)
	}
	return &Writer{dir: dir}, nil
}

// Write builds a parquet.Schema from schema's column definitions, opens
// {dir}/{id}.parquet, writes one row group containing every record in
// columns (re-transposed from columnar back to row-major, since
// parquet-go's writer takes rows — the same inefficiency spec §9 notes
// as a future streaming optimization), and closes the file.
func (w *Writer) Write(schema *ingest.Schema, id string, columns map[string]ingest.Column) (ingest.FileMetaData, error) {
	pschema := toParquetSchema(schema)

	path := filepath.Join(w.dir, id+".parquet")
	f, err := os.Create(path)
	if err != nil {
		return ingest.FileMetaData{}, fmt.Errorf("columnar: create %s: %w", path, err)
	}
	defer f.Close()

	pw := parquet.NewWriter(f, pschema)

	// leafIndex maps a column name to its position in the schema's
	// canonical leaf order, which parquet-go derives from pschema and
	// does not necessarily match schema.Columns' order. Every
	// parquet.Value written must carry that position so it lands in
	// the right column instead of whatever slot schema.Columns put it in.
	leafIndex := make(map[string]int, len(schema.Columns))
	for i, path := range pschema.Columns() {
		leafIndex[path[len(path)-1]] = i
	}

	rowCount := 0
	for _, col := range schema.Columns {
		if n := columns[col.Name].Len(); n > rowCount {
			rowCount = n
		}
	}

	row := make([]parquet.Value, len(leafIndex))
	for i := 0; i < rowCount; i++ {
		for _, col := range schema.Columns {
			idx := leafIndex[col.Name]
			row[idx] = parquetValue(columns[col.Name], i).Level(0, 0, idx)
		}
		if _, err := pw.WriteRows([]parquet.Row{row}); err != nil {
			return ingest.FileMetaData{}, fmt.Errorf("columnar: write row %d: %w", i, err)
		}
	}

	if err := pw.Close(); err != nil {
		return ingest.FileMetaData{}, fmt.Errorf("columnar: close writer: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		return ingest.FileMetaData{}, fmt.Errorf("columnar: stat %s: %w", path, err)
	}

	return ingest.FileMetaData{
		Path:     path,
		RowCount: int64(rowCount),
		Bytes:    info.Size(),
	}, nil
}

func toParquetSchema(schema *ingest.Schema) *parquet.Schema {
	group := make(parquet.Group, len(schema.Columns))
	for _, col := range schema.Columns {
		switch col.Kind {
		case ingest.KindInt64:
			group[col.Name] = parquet.Leaf(parquet.Int64Type)
		case ingest.KindFloat:
			group[col.Name] = parquet.Leaf(parquet.DoubleType)
		case ingest.KindString:
			group[col.Name] = parquet.String()
		}
	}
	return parquet.NewSchema(schema.Name, group)
}

func parquetValue(col ingest.Column, i int) parquet.Value {
	switch col.Kind {
	case ingest.KindInt64:
		return parquet.ValueOf(col.Int64[i])
	case ingest.KindFloat:
		return parquet.ValueOf(col.Float[i])
	case ingest.KindString:
		return parquet.ValueOf(col.String[i])
	default:
		return parquet.NullValue()
	}
}
