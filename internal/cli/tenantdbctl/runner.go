// Package tenantdbctl implements the operator command line for the tenantdb
// HTTP API.
package tenantdbctl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type Options struct {
	BaseURL    string
	APIKey     string
	ProjectID  string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdin      io.Reader
	Stdout     io.Writer
	Stderr     io.Writer
}

type settings struct {
	baseURL   string
	apiKey    string
	projectID string
	timeout   time.Duration
	format    string
}

// Run executes one command and returns the process exit code: 0 on success,
// 1 when the API call failed and 2 for usage errors.
func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}
	stdin := defaults.Stdin
	if stdin == nil {
		stdin = strings.NewReader("")
	}

	s := &settings{}
	api := &client{}
	root := &cobra.Command{
		Use:           "tenantdbctl",
		Short:         "Manage project databases through the tenantdb API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_ = cmd.Help()
			return fmt.Errorf("a command is required")
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if s.format != "table" && s.format != "json" {
				return fmt.Errorf("unsupported format %q (want table or json)", s.format)
			}
			httpClient := defaults.HTTPClient
			if httpClient == nil {
				httpClient = &http.Client{Timeout: s.timeout}
			}
			*api = client{
				http:      httpClient,
				baseURL:   strings.TrimRight(s.baseURL, "/"),
				apiKey:    strings.TrimSpace(s.apiKey),
				projectID: strings.TrimSpace(s.projectID),
			}
			return nil
		},
	}
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&s.baseURL, "base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8080"), "tenantdb API base URL")
	flags.StringVar(&s.apiKey, "api-key", defaults.APIKey, "API key for authenticated requests")
	flags.StringVarP(&s.projectID, "project", "p", defaults.ProjectID, "project id")
	flags.DurationVar(&s.timeout, "timeout", durationOr(defaults.Timeout, 30*time.Second), "HTTP timeout (e.g. 30s)")
	flags.StringVarP(&s.format, "format", "f", "table", "output format: table or json")

	root.AddCommand(
		newHealthCommand(api),
		newReadyCommand(api),
		newCredentialsCommand(api, s),
		newTablesCommand(api, s),
		newDescribeCommand(api, s),
		newDataCommand(api, s),
		newQueryCommand(api, s),
		newExportCommand(api),
		newImportCommand(api, s),
		newResetCommand(api, s),
		newDumpsCommand(api, s),
	)

	if err := root.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintf(stderr, "error: %v\n", err)
		var reqErr *requestError
		if errors.As(err, &reqErr) {
			return 1
		}
		return 2
	}
	return 0
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
