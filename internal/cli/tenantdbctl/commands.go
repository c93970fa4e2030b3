package tenantdbctl

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

type tableRow struct {
	Name      string `json:"name"`
	Rows      int64  `json:"rows"`
	Size      string `json:"size"`
	SizeBytes int64  `json:"size_bytes"`
}

type columnRow struct {
	Name     string  `json:"name"`
	Type     string  `json:"type"`
	Nullable bool    `json:"nullable"`
	Key      string  `json:"key"`
	Default  *string `json:"default"`
	Extra    string  `json:"extra"`
}

type importResult struct {
	Success         bool   `json:"success"`
	Statements      int    `json:"statements"`
	StatementsTotal int    `json:"statements_total"`
	Skipped         int    `json:"statements_skipped"`
	Aborted         bool   `json:"aborted"`
	AbortReason     string `json:"abort_reason"`
	Errors          []struct {
		Statement int    `json:"statement"`
		Line      int    `json:"line"`
		SQL       string `json:"sql"`
		Message   string `json:"message"`
	} `json:"errors"`
}

type dumpRow struct {
	Name      string `json:"name"`
	Size      string `json:"size"`
	SizeBytes int64  `json:"size_bytes"`
	CreatedAt string `json:"created_at"`
}

func newHealthCommand(api *client) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "GET /v1/health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, err := api.getJSON(cmd.Context(), "/v1/health", nil)
			if err != nil {
				return err
			}
			return writePrettyJSON(cmd.OutOrStdout(), raw)
		},
	}
}

func newReadyCommand(api *client) *cobra.Command {
	return &cobra.Command{
		Use:   "ready",
		Short: "GET /v1/ready",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, err := api.getJSON(cmd.Context(), "/v1/ready", nil)
			if err != nil {
				return err
			}
			return writePrettyJSON(cmd.OutOrStdout(), raw)
		},
	}
}

func newCredentialsCommand(api *client, s *settings) *cobra.Command {
	return &cobra.Command{
		Use:   "credentials",
		Short: "Show the connection parameters of the project database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := api.projectPath("/credentials")
			if err != nil {
				return err
			}
			var creds map[string]any
			raw, err := api.getJSON(cmd.Context(), path, &creds)
			if err != nil {
				return err
			}
			if s.format == "json" {
				return writePrettyJSON(cmd.OutOrStdout(), raw)
			}
			renderKeyValues(cmd.OutOrStdout(), []string{"host", "port", "database", "username", "password"}, creds)
			return nil
		},
	}
}

func newTablesCommand(api *client, s *settings) *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List the tables of the project database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := api.projectPath("/tables")
			if err != nil {
				return err
			}
			var response struct {
				Tables []tableRow `json:"tables"`
			}
			raw, err := api.getJSON(cmd.Context(), path, &response)
			if err != nil {
				return err
			}
			if s.format == "json" {
				return writePrettyJSON(cmd.OutOrStdout(), raw)
			}
			rows := make([][]any, 0, len(response.Tables))
			for _, table := range response.Tables {
				rows = append(rows, []any{table.Name, table.Rows, table.Size})
			}
			renderTable(cmd.OutOrStdout(), []string{"table", "rows (est.)", "size"}, rows)
			return nil
		},
	}
}

func newDescribeCommand(api *client, s *settings) *cobra.Command {
	return &cobra.Command{
		Use:   "describe <table>",
		Short: "Show the columns of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := api.projectPath("/tables/" + url.PathEscape(args[0]))
			if err != nil {
				return err
			}
			var response struct {
				Columns []columnRow `json:"columns"`
			}
			raw, err := api.getJSON(cmd.Context(), path, &response)
			if err != nil {
				return err
			}
			if s.format == "json" {
				return writePrettyJSON(cmd.OutOrStdout(), raw)
			}
			rows := make([][]any, 0, len(response.Columns))
			for _, column := range response.Columns {
				def := "NULL"
				if column.Default != nil {
					def = *column.Default
				}
				nullable := "NO"
				if column.Nullable {
					nullable = "YES"
				}
				rows = append(rows, []any{column.Name, column.Type, nullable, column.Key, def, column.Extra})
			}
			renderTable(cmd.OutOrStdout(), []string{"column", "type", "null", "key", "default", "extra"}, rows)
			return nil
		},
	}
}

func newDataCommand(api *client, s *settings) *cobra.Command {
	var page, limit int
	cmd := &cobra.Command{
		Use:   "data <table>",
		Short: "Print one page of table rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := api.projectPath("/tables/" + url.PathEscape(args[0]) + "/data")
			if err != nil {
				return err
			}
			query := url.Values{}
			if page > 0 {
				query.Set("page", strconv.Itoa(page))
			}
			if limit > 0 {
				query.Set("limit", strconv.Itoa(limit))
			}
			if encoded := query.Encode(); encoded != "" {
				path += "?" + encoded
			}
			var response struct {
				Columns []string         `json:"columns"`
				Rows    []map[string]any `json:"rows"`
				Total   int64            `json:"total"`
				Page    int              `json:"page"`
				Limit   int              `json:"limit"`
			}
			raw, err := api.getJSON(cmd.Context(), path, &response)
			if err != nil {
				return err
			}
			if s.format == "json" {
				return writePrettyJSON(cmd.OutOrStdout(), raw)
			}
			renderTable(cmd.OutOrStdout(), response.Columns, recordRows(response.Columns, response.Rows))
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "page %d, %d of %d rows\n", response.Page, len(response.Rows), response.Total)
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 0, "page number, starting at 1")
	cmd.Flags().IntVar(&limit, "limit", 0, "rows per page")
	return cmd
}

func newQueryCommand(api *client, s *settings) *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "query [SQL]",
		Short: "Execute one SQL statement",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sqlText, err := readSQLArgument(cmd, args, input)
			if err != nil {
				return err
			}
			path, err := api.projectPath("/query")
			if err != nil {
				return err
			}
			var response struct {
				Kind         string           `json:"kind"`
				Columns      []string         `json:"columns"`
				Rows         []map[string]any `json:"rows"`
				Truncated    bool             `json:"truncated"`
				RowsAffected int64            `json:"rows_affected"`
				Duration     string           `json:"duration"`
			}
			raw, err := api.sendJSON(cmd.Context(), http.MethodPost, path, map[string]string{"query": sqlText}, &response)
			if err != nil {
				return err
			}
			if s.format == "json" {
				return writePrettyJSON(cmd.OutOrStdout(), raw)
			}
			out := cmd.OutOrStdout()
			if response.Kind == "write" {
				_, _ = fmt.Fprintf(out, "%d rows affected (%s)\n", response.RowsAffected, response.Duration)
				return nil
			}
			renderTable(out, response.Columns, recordRows(response.Columns, response.Rows))
			suffix := ""
			if response.Truncated {
				suffix = ", truncated"
			}
			_, _ = fmt.Fprintf(out, "(%d rows%s, %s)\n", len(response.Rows), suffix, response.Duration)
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "read SQL from file")
	return cmd
}

func newExportCommand(api *client) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Download a SQL dump of the project database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := api.projectPath("/export")
			if err != nil {
				return err
			}
			stream, header, err := api.open(cmd.Context(), http.MethodGet, path, nil, "")
			if err != nil {
				return err
			}
			defer func() { _ = stream.Close() }()

			var dst io.Writer = cmd.OutOrStdout()
			if output != "" {
				file, err := os.Create(output)
				if err != nil {
					return err
				}
				defer func() { _ = file.Close() }()
				dst = file
			}
			n, err := io.Copy(dst, stream)
			if err != nil {
				return &requestError{Err: fmt.Errorf("download interrupted after %d bytes: %w", n, err)}
			}
			if output != "" {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d bytes to %s (%s)\n", n, output, header.Get("Content-Disposition"))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the dump to this file instead of stdout")
	return cmd
}

func newImportCommand(api *client, s *settings) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file|->",
		Short: "Execute a SQL script against the project database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			script, err := readFileOrStdin(cmd, args[0])
			if err != nil {
				return err
			}
			path, err := api.projectPath("/import")
			if err != nil {
				return err
			}
			raw, err := api.do(cmd.Context(), http.MethodPost, path, bytes.NewReader(script), "application/sql")
			if err != nil {
				return err
			}
			return renderImportResult(cmd.OutOrStdout(), s.format, raw)
		},
	}
}

func newResetCommand(api *client, s *settings) *cobra.Command {
	var confirm bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop every table of the project database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !confirm {
				return fmt.Errorf("reset drops every table; pass --yes to confirm")
			}
			path, err := api.projectPath("/reset")
			if err != nil {
				return err
			}
			var response struct {
				Success bool `json:"success"`
				Dropped int  `json:"dropped"`
				Errors  []struct {
					Table   string `json:"table"`
					Message string `json:"message"`
				} `json:"errors"`
			}
			raw, err := api.sendJSON(cmd.Context(), http.MethodPost, path, nil, &response)
			if err != nil {
				return err
			}
			if s.format == "json" {
				return writePrettyJSON(cmd.OutOrStdout(), raw)
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "dropped %d tables\n", response.Dropped)
			if len(response.Errors) > 0 {
				rows := make([][]any, 0, len(response.Errors))
				for _, failure := range response.Errors {
					rows = append(rows, []any{failure.Table, failure.Message})
				}
				renderTable(out, []string{"table", "error"}, rows)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&confirm, "yes", false, "confirm the destructive reset")
	return cmd
}

func newDumpsCommand(api *client, s *settings) *cobra.Command {
	dumps := &cobra.Command{
		Use:   "dumps",
		Short: "Manage archived dumps",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List archived dumps, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := api.projectPath("/dumps")
			if err != nil {
				return err
			}
			var response struct {
				Dumps []dumpRow `json:"dumps"`
			}
			raw, err := api.getJSON(cmd.Context(), path, &response)
			if err != nil {
				return err
			}
			if s.format == "json" {
				return writePrettyJSON(cmd.OutOrStdout(), raw)
			}
			rows := make([][]any, 0, len(response.Dumps))
			for _, dump := range response.Dumps {
				rows = append(rows, []any{dump.Name, dump.Size, dump.CreatedAt})
			}
			renderTable(cmd.OutOrStdout(), []string{"name", "size", "created"}, rows)
			return nil
		},
	}

	save := &cobra.Command{
		Use:   "save",
		Short: "Export the project database into the archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := api.projectPath("/dumps")
			if err != nil {
				return err
			}
			var response struct {
				Dump dumpRow `json:"dump"`
			}
			raw, err := api.sendJSON(cmd.Context(), http.MethodPost, path, nil, &response)
			if err != nil {
				return err
			}
			if s.format == "json" {
				return writePrettyJSON(cmd.OutOrStdout(), raw)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "saved %s (%s)\n", response.Dump.Name, response.Dump.Size)
			return nil
		},
	}

	restore := &cobra.Command{
		Use:   "restore <name>",
		Short: "Replay an archived dump",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := api.projectPath("/dumps/" + url.PathEscape(args[0]) + "/restore")
			if err != nil {
				return err
			}
			raw, err := api.do(cmd.Context(), http.MethodPost, path, nil, "")
			if err != nil {
				return err
			}
			return renderImportResult(cmd.OutOrStdout(), s.format, raw)
		},
	}

	remove := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete an archived dump",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := api.projectPath("/dumps/" + url.PathEscape(args[0]))
			if err != nil {
				return err
			}
			if _, err := api.do(cmd.Context(), http.MethodDelete, path, nil, ""); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}

	dumps.AddCommand(list, save, restore, remove)
	return dumps
}

func renderImportResult(out io.Writer, format string, raw []byte) error {
	if format == "json" {
		return writePrettyJSON(out, raw)
	}
	var result importResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return &requestError{Err: fmt.Errorf("decode response: %w", err)}
	}
	_, _ = fmt.Fprintf(out, "%d of %d statements succeeded\n", result.Statements, result.StatementsTotal)
	if result.Aborted {
		_, _ = fmt.Fprintf(out, "aborted: %s (%d statements not run)\n", result.AbortReason, result.Skipped)
	}
	if len(result.Errors) > 0 {
		rows := make([][]any, 0, len(result.Errors))
		for _, failure := range result.Errors {
			rows = append(rows, []any{failure.Statement, failure.Line, failure.SQL, failure.Message})
		}
		renderTable(out, []string{"#", "line", "statement", "error"}, rows)
	}
	return nil
}

func readSQLArgument(cmd *cobra.Command, args []string, input string) (string, error) {
	switch {
	case input != "" && len(args) > 0:
		return "", fmt.Errorf("pass SQL as an argument or with --input, not both")
	case input != "":
		raw, err := readFileOrStdin(cmd, input)
		if err != nil {
			return "", err
		}
		return string(raw), nil
	case len(args) == 1 && strings.TrimSpace(args[0]) != "":
		return args[0], nil
	default:
		return "", fmt.Errorf("SQL is required")
	}
}

func readFileOrStdin(cmd *cobra.Command, name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(name)
}
