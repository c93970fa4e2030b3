package tenantdbctl

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
)

func renderTable(w io.Writer, columns []string, rows [][]any) {
	if len(rows) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	header := make(table.Row, len(columns))
	for i, column := range columns {
		header[i] = column
	}
	t.AppendHeader(header)
	for _, row := range rows {
		values := make(table.Row, len(row))
		for i, value := range row {
			values[i] = formatValue(value)
		}
		t.AppendRow(values)
	}
	t.Render()
}

// recordRows lays out JSON records as table rows in column order.
func recordRows(columns []string, records []map[string]any) [][]any {
	rows := make([][]any, 0, len(records))
	for _, record := range records {
		values := make([]any, len(columns))
		for i, column := range columns {
			values[i] = record[column]
		}
		rows = append(rows, values)
	}
	return rows
}

func renderKeyValues(w io.Writer, keys []string, values map[string]any) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	for _, key := range keys {
		t.AppendRow(table.Row{key, formatValue(values[key])})
	}
	t.Render()
}

func formatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return "NULL"
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func writePrettyJSON(w io.Writer, raw []byte) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	var formatted bytes.Buffer
	if err := json.Indent(&formatted, bytes.TrimSpace(raw), "", "  "); err != nil {
		_, err = w.Write(raw)
		return err
	}
	formatted.WriteByte('\n')
	_, err := formatted.WriteTo(w)
	return err
}
