package ingest

import "sort"

// ColumnDef names one column of an inferred Schema and its physical
// type, derived from the Value.Kind first observed for that column.
type ColumnDef struct {
	Name string
	Kind ValueKind
}

// Schema is the columnar shape inferred for one index from its first
// observed record. Once built it is immutable for the lifetime of the
// process; callers that need to compare or key by Schema do so by Name,
// exactly as the Router already does by keying its map on the index
// name — no separate equality/hash machinery is needed in Go.
type Schema struct {
	Name    string
	Columns []ColumnDef
}

// InferSchema builds a Schema from the first record seen for index.
// Values is a Go map, so its iteration order is randomized; column
// order is instead fixed alphabetically by name so schema inference is
// reproducible across runs for a given WAL stream rather than depending
// on map iteration.
func InferSchema(index string, values Values) *Schema {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	columns := make([]ColumnDef, 0, len(names))
	for _, name := range names {
		columns = append(columns, ColumnDef{Name: name, Kind: values[name].Kind})
	}
	return &Schema{Name: index, Columns: columns}
}
