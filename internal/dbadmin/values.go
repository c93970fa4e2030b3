package dbadmin

import (
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

type valueKind int

const (
	kindText valueKind = iota
	kindNumeric
	kindBinary
)

// kindOf classifies a MySQL COLUMN_TYPE such as "int(10) unsigned" or
// "varbinary(16)".
func kindOf(declaredType string) valueKind {
	base := strings.ToLower(strings.TrimSpace(declaredType))
	if i := strings.IndexAny(base, "( "); i >= 0 {
		base = base[:i]
	}
	switch base {
	case "tinyint", "smallint", "mediumint", "int", "integer", "bigint",
		"decimal", "dec", "numeric", "fixed", "float", "double", "real", "year":
		return kindNumeric
	case "binary", "varbinary", "tinyblob", "blob", "mediumblob", "longblob", "bit",
		"geometry", "point", "linestring", "polygon", "multipoint", "multilinestring",
		"multipolygon", "geometrycollection":
		return kindBinary
	default:
		return kindText
	}
}

func kindsOf(columns []ColumnDescriptor) []valueKind {
	kinds := make([]valueKind, len(columns))
	for i, column := range columns {
		kinds[i] = kindOf(column.DeclaredType)
	}
	return kinds
}

// displayValue turns a scanned driver value into something JSON can carry:
// nil, a string, or a number. Numeric column text is kept exact as a
// json.Number. Binary data becomes a truncated hex preview.
func displayValue(value any, kind valueKind, previewBytes int) any {
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		if kind == kindBinary || !utf8.Valid(v) {
			return hexPreview(v, previewBytes)
		}
		if kind == kindNumeric && isNumericLiteral(string(v)) {
			return json.Number(v)
		}
		return string(v)
	case string:
		if kind == kindNumeric && isNumericLiteral(v) {
			return json.Number(v)
		}
		return v
	case time.Time:
		return formatTime(v)
	case bool, int64, float64:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func hexPreview(data []byte, limit int) string {
	if limit <= 0 || len(data) <= limit {
		return "0x" + strings.ToUpper(hex.EncodeToString(data))
	}
	return fmt.Sprintf("0x%s… (%d bytes)", strings.ToUpper(hex.EncodeToString(data[:limit])), len(data))
}

func formatTime(t time.Time) string {
	if t.Nanosecond() == 0 {
		return t.Format("2006-01-02 15:04:05")
	}
	return t.Format("2006-01-02 15:04:05.999999")
}

// isNumericLiteral accepts the plain decimal and exponent forms MySQL uses
// for numeric columns.
func isNumericLiteral(text string) bool {
	digits := 0
	seenDot, seenExp := false, false
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c >= '0' && c <= '9':
			digits++
		case c == '.' && !seenDot && !seenExp:
			seenDot = true
		case (c == 'e' || c == 'E') && !seenExp && digits > 0:
			seenExp = true
			if i+1 < len(text) && (text[i+1] == '-' || text[i+1] == '+') {
				i++
			}
			if i+1 >= len(text) {
				return false
			}
		case (c == '-' || c == '+') && i == 0:
		default:
			return false
		}
	}
	return digits > 0
}

// scanRow reads the current row into fresh destinations.
func scanRow(rows *sql.Rows, width int) ([]any, error) {
	values := make([]any, width)
	dest := make([]any, width)
	for i := range values {
		dest[i] = &values[i]
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, err
	}
	return values, nil
}

// sqlLiteral renders a value for an INSERT statement of a dump.
func sqlLiteral(value any, kind valueKind) string {
	switch v := value.(type) {
	case nil:
		return "NULL"
	case []byte:
		if kind == kindBinary || !utf8.Valid(v) {
			if len(v) == 0 {
				return "''"
			}
			return "0x" + strings.ToUpper(hex.EncodeToString(v))
		}
		return textLiteral(string(v), kind)
	case string:
		return textLiteral(v, kind)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case bool:
		if v {
			return "1"
		}
		return "0"
	case time.Time:
		return quoteString(formatTime(v))
	default:
		return quoteString(fmt.Sprint(v))
	}
}

func textLiteral(text string, kind valueKind) string {
	if kind == kindNumeric && isNumericLiteral(text) {
		return text
	}
	return quoteString(text)
}

var stringEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	"\n", `\n`,
	"\r", `\r`,
	"\x00", `\0`,
	"\x1a", `\Z`,
)

func quoteString(text string) string {
	return "'" + stringEscaper.Replace(text) + "'"
}
