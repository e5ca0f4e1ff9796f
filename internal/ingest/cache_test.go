package ingest

import "testing"

func TestCacheFullAtCapacity(t *testing.T) {
	c := NewCache(3)
	for i := 0; i < 2; i++ {
		c.Add(Values{"a": Int64Value(int64(i))})
	}
	if c.Full() {
		t.Fatal("Full() = true before reaching capacity")
	}
	c.Add(Values{"a": Int64Value(2)})
	if !c.Full() {
		t.Fatal("Full() = false at capacity")
	}
}

func TestCacheIsEmpty(t *testing.T) {
	c := NewCache(10)
	if !c.IsEmpty() {
		t.Fatal("IsEmpty() = false on a fresh cache")
	}
	c.Add(Values{"a": Int64Value(1)})
	if c.IsEmpty() {
		t.Fatal("IsEmpty() = true after Add")
	}
}

func TestCacheToColumns(t *testing.T) {
	schema := InferSchema("orders", Values{"id": Int64Value(0), "name": StringValue("")})

	c := NewCache(10)
	c.Add(Values{"id": Int64Value(1), "name": StringValue("a")})
	c.Add(Values{"id": Int64Value(2), "name": StringValue("b")})

	columns, err := c.ToColumns(schema)
	if err != nil {
		t.Fatalf("ToColumns() error = %v", err)
	}

	id := columns["id"]
	if got, want := id.Int64, []int64{1, 2}; !equalInt64(got, want) {
		t.Errorf("columns[id].Int64 = %v, want %v", got, want)
	}
	name := columns["name"]
	if got, want := name.String, []string{"a", "b"}; !equalStr(got, want) {
		t.Errorf("columns[name].String = %v, want %v", got, want)
	}
}

func TestCacheToColumnsRejectsMismatchedKind(t *testing.T) {
	schema := InferSchema("orders", Values{"id": Int64Value(0)})

	c := NewCache(10)
	c.Add(Values{"id": StringValue("not an int")})

	if _, err := c.ToColumns(schema); err == nil {
		t.Fatal("ToColumns() error = nil, want SchemaViolationError")
	}
}

func TestCacheToColumnsRejectsMissingColumn(t *testing.T) {
	schema := InferSchema("orders", Values{"id": Int64Value(0), "name": StringValue("")})

	c := NewCache(10)
	c.Add(Values{"id": Int64Value(1)})

	if _, err := c.ToColumns(schema); err == nil {
		t.Fatal("ToColumns() error = nil, want SchemaViolationError for missing column")
	}
}

func equalInt64(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func equalStr(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
