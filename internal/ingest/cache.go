package ingest

// DefaultCacheCapacity is the default record threshold at which a
// Segment requests proactive expiration instead of waiting for its
// timer (§4.6's capacity-driven expiration, wired here).
const DefaultCacheCapacity = 1000

// Column is a typed column vector produced by Cache.ToColumns.
type Column struct {
	Kind   ValueKind
	Int64  []int64
	Float  []float64
	String []string
}

func newColumn(kind ValueKind, capacity int) Column {
	c := Column{Kind: kind}
	switch kind {
	case KindInt64:
		c.Int64 = make([]int64, 0, capacity)
	case KindFloat:
		c.Float = make([]float64, 0, capacity)
	case KindString:
		c.String = make([]string, 0, capacity)
	}
	return c
}

func (c *Column) append(v Value) {
	switch v.Kind {
	case KindInt64:
		c.Int64 = append(c.Int64, v.I64)
	case KindFloat:
		c.Float = append(c.Float, v.F64)
	case KindString:
		c.String = append(c.String, v.Str)
	}
}

// Len returns the number of values held in the column.
func (c Column) Len() int {
	switch c.Kind {
	case KindInt64:
		return len(c.Int64)
	case KindFloat:
		return len(c.Float)
	case KindString:
		return len(c.String)
	default:
		return 0
	}
}

// Cache is an append-only, bounded sequence of records for one
// in-flight Segment. Fullness is a pull predicate; there is no
// automatic eviction.
type Cache struct {
	capacity int
	records  []Values
}

// NewCache creates an empty Cache bounded by capacity (used only by
// Full(), not enforced as a hard append limit).
func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	return &Cache{capacity: capacity}
}

// Add appends a record.
func (c *Cache) Add(values Values) {
	c.records = append(c.records, values)
}

// Full reports whether the cache has reached its capacity.
func (c *Cache) Full() bool {
	return len(c.records) >= c.capacity
}

// IsEmpty reports whether the cache holds zero records.
func (c *Cache) IsEmpty() bool {
	return len(c.records) == 0
}

// Len returns the number of records currently buffered.
func (c *Cache) Len() int {
	return len(c.records)
}

// ToColumns pivots the buffered records into typed column vectors,
// following schema's fixed column order. Any record with a column
// absent from schema, or whose value Kind disagrees with the schema's
// declared kind for that column, is a *SchemaViolationError that aborts
// the whole pivot (the segment's close then fails as a unit, per §4.7's
// "reject late-appearing columns" contract).
func (c *Cache) ToColumns(schema *Schema) (map[string]Column, error) {
	columns := make(map[string]Column, len(schema.Columns))
	for _, col := range schema.Columns {
		columns[col.Name] = newColumn(col.Kind, len(c.records))
	}

	for _, record := range c.records {
		if len(record) != len(schema.Columns) {
			return nil, &SchemaViolationError{
				Index:  schema.Name,
				Column: "*",
				Reason: "record column count diverges from fixed schema",
			}
		}
		for _, col := range schema.Columns {
			v, ok := record[col.Name]
			if !ok {
				return nil, &SchemaViolationError{
					Index:  schema.Name,
					Column: col.Name,
					Reason: "missing from record",
				}
			}
			if v.Kind != col.Kind {
				return nil, &SchemaViolationError{
					Index:  schema.Name,
					Column: col.Name,
					Reason: "value kind " + v.Kind.String() + " disagrees with schema kind " + col.Kind.String(),
				}
			}
			out := columns[col.Name]
			out.append(v)
			columns[col.Name] = out
		}
	}

	return columns, nil
}
