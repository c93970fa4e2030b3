package dbadmin

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Record is one row keyed by column name. It marshals as a JSON object whose
// keys follow the column order of the result, not alphabetical order.
type Record struct {
	columns []string
	values  []any
}

// NewRecord pairs columns with values. Both slices must have the same length
// and column names must be unique.
func NewRecord(columns []string, values []any) Record {
	return Record{columns: columns, values: values}
}

func (r Record) Columns() []string {
	return r.columns
}

func (r Record) Values() []any {
	return r.values
}

// Value returns the value of column, or nil when the record has no such
// column.
func (r Record) Value(column string) any {
	for i, name := range r.columns {
		if name == column {
			return r.values[i]
		}
	}
	return nil
}

func (r Record) MarshalJSON() ([]byte, error) {
	if len(r.columns) != len(r.values) {
		return nil, fmt.Errorf("record has %d columns and %d values", len(r.columns), len(r.values))
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, column := range r.columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(column)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		value, err := json.Marshal(r.values[i])
		if err != nil {
			return nil, fmt.Errorf("marshal column %s: %w", column, err)
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// uniqueColumnNames renames repeated result columns so every record key is
// distinct: the second "id" becomes "id_2", the third "id_3", skipping names
// that are already taken.
func uniqueColumnNames(columns []string) []string {
	taken := make(map[string]struct{}, len(columns))
	for _, column := range columns {
		taken[column] = struct{}{}
	}
	seen := make(map[string]int, len(columns))
	out := make([]string, len(columns))
	for i, column := range columns {
		seen[column]++
		if seen[column] == 1 {
			out[i] = column
			continue
		}
		for n := seen[column]; ; n++ {
			candidate := column + "_" + strconv.Itoa(n)
			if _, exists := taken[candidate]; !exists {
				taken[candidate] = struct{}{}
				seen[column] = n
				out[i] = candidate
				break
			}
		}
	}
	return out
}
