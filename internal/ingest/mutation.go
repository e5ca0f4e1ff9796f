package ingest

import (
	"encoding/json"
	"fmt"
)

// wireEnvelope mirrors the wal2json payload shape: {"change": [...]}.
type wireEnvelope struct {
	Change []wireMutation `json:"change"`
}

// wireMutation mirrors a single wal2json change entry. Update/delete
// carry their own column slices in real wal2json output, but this
// pipeline doesn't yet materialize them (spec Non-goal); they are kept
// here only so Decode can still resolve the index name and tag.
type wireMutation struct {
	Kind         string            `json:"kind"`
	Table        string            `json:"table"`
	ColumnNames  []string          `json:"columnnames"`
	ColumnValues []json.RawMessage `json:"columnvalues"`
	ColumnTypes  []string          `json:"columntypes"`
}

// Decode parses a wal2json change payload into Events. A malformed
// envelope or a malformed individual mutation is a *ParseError that
// aborts the whole payload: no Events are returned for it, and callers
// treat the error as "replay the whole frame", per spec's at-least-once
// contract.
func Decode(payload []byte) ([]Event, error) {
	var envelope wireEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, &ParseError{Reason: "invalid change envelope", Err: err}
	}

	events := make([]Event, 0, len(envelope.Change))
	for _, m := range envelope.Change {
		ev, err := decodeMutation(m)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}

func decodeMutation(m wireMutation) (Event, error) {
	switch m.Kind {
	case "insert":
		values, err := decodeColumns(m)
		if err != nil {
			return Event{}, err
		}
		return InsertEvent(m.Table, values), nil
	case "update":
		return UpdateEvent(m.Table), nil
	case "delete":
		return DeleteEvent(m.Table), nil
	default:
		return Event{}, &ParseError{Reason: fmt.Sprintf("unknown mutation kind %q", m.Kind)}
	}
}

func decodeColumns(m wireMutation) (Values, error) {
	n := len(m.ColumnNames)
	if len(m.ColumnValues) != n || len(m.ColumnTypes) != n {
		return nil, &ParseError{Reason: "columnnames/columnvalues/columntypes length mismatch"}
	}

	values := make(Values, n)
	for i := 0; i < n; i++ {
		v, err := decodeValue(m.ColumnTypes[i], m.ColumnValues[i])
		if err != nil {
			return nil, &ParseError{Reason: fmt.Sprintf("column %q", m.ColumnNames[i]), Err: err}
		}
		values[m.ColumnNames[i]] = v
	}
	return values, nil
}

func decodeValue(colType string, raw json.RawMessage) (Value, error) {
	switch colType {
	case "integer":
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return Value{}, fmt.Errorf("decode integer: %w", err)
		}
		i, err := n.Int64()
		if err != nil {
			return Value{}, fmt.Errorf("integer overflow: %w", err)
		}
		return Int64Value(i), nil
	case "text":
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Value{}, fmt.Errorf("decode text: %w", err)
		}
		return StringValue(s), nil
	default:
		return Value{}, fmt.Errorf("unsupported column type %q", colType)
	}
}
