package dbadmin

import "time"

type KeyRole string

const (
	KeyNone    KeyRole = "none"
	KeyPrimary KeyRole = "primary"
	KeyUnique  KeyRole = "unique"
	KeyIndex   KeyRole = "index"
)

type TableDescriptor struct {
	Name          string `json:"name"`
	EstimatedRows int64  `json:"rows"`
	SizeBytes     int64  `json:"size_bytes"`
}

type ColumnDescriptor struct {
	Name         string  `json:"name"`
	DeclaredType string  `json:"type"`
	Nullable     bool    `json:"nullable"`
	KeyRole      KeyRole `json:"key"`
	Default      *string `json:"default"`
	Extra        string  `json:"extra"`
}

// RowPage is one page of a table. Every row has exactly the keys listed in
// Columns, in the same order.
type RowPage struct {
	Columns []string `json:"columns"`
	Rows    []Record `json:"rows"`
	Total   int64            `json:"total"`
	Page    int              `json:"page"`
	Limit   int              `json:"limit"`
}

// QueryResult carries exactly one of Read or Write.
type QueryResult struct {
	Read     *ReadResult
	Write    *WriteResult
	Duration time.Duration
}

func (r QueryResult) Kind() string {
	if r.Read != nil {
		return "read"
	}
	return "write"
}

// ReadResult columns are unique: repeated names from the statement are
// suffixed (id, id_2).
type ReadResult struct {
	Columns   []string
	Rows      []Record
	Truncated bool
}

type WriteResult struct {
	RowsAffected int64
}

type ImportOutcome struct {
	StatementsTotal     int           `json:"statements_total"`
	StatementsSucceeded int           `json:"statements"`
	StatementsSkipped   int           `json:"statements_skipped"`
	Errors              []ImportError `json:"errors"`
	Aborted             bool          `json:"aborted"`
	AbortReason         string        `json:"abort_reason,omitempty"`
}

func (o ImportOutcome) Success() bool {
	return len(o.Errors) == 0 && !o.Aborted
}

type ImportError struct {
	StatementIndex int    `json:"statement"`
	Line           int    `json:"line"`
	Statement      string `json:"sql"`
	Message        string `json:"message"`
}

type ResetOutcome struct {
	Dropped int          `json:"dropped"`
	Errors  []ResetError `json:"errors"`
}

func (o ResetOutcome) Success() bool {
	return len(o.Errors) == 0
}

type ResetError struct {
	Table   string `json:"table"`
	Message string `json:"message"`
}

type ExportSummary struct {
	Database    string    `json:"database"`
	Tables      int       `json:"tables"`
	Rows        int64     `json:"rows"`
	Bytes       int64     `json:"bytes"`
	GeneratedAt time.Time `json:"generated_at"`
}
