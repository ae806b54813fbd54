package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/samvad-hq/httpkit/internal/app"
	"github.com/samvad-hq/httpkit/internal/config"
	"github.com/samvad-hq/httpkit/internal/logger"
	"github.com/samvad-hq/httpkit/pkg/dateutil"
	"github.com/samvad-hq/httpkit/pkg/httpclient"
)

// errAbsent signals a request that produced no response. main exits 1 without
// printing anything extra; the helper already logged the cause.
var errAbsent = errors.New("no response")

func newRootCmd(cfg *config.Config, log logger.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:   "httpkit",
		Short: "Blocking HTTP request helper",
		Long: `httpkit issues GET, form POST and JSON POST requests and prints the
response body whatever the status code. A request that cannot be
completed prints nothing and exits with status 1.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			httpclient.SetDefault(app.NewHelper(cfg, log))
		},
	}

	root.AddCommand(
		newGetCmd(cfg, log),
		newPostFormCmd(cfg, log),
		newPostJSONCmd(cfg, log),
		newRunCmd(cfg, log),
		newHistoryCmd(cfg),
		newDateCmd(),
	)
	return root
}

func newGetCmd(cfg *config.Config, log logger.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "get URL [key=value ...]",
		Short: "Send a GET request with optional query parameters",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parseParams(args[1:])
			if err != nil {
				return err
			}
			res := httpclient.GetText(cmd.Context(), args[0], params)
			return printResult(cmd.OutOrStdout(), res)
		},
	}
}

func newPostFormCmd(cfg *config.Config, log logger.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "post-form URL [key=value ...]",
		Short: "Send a form-encoded POST request",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parseParams(args[1:])
			if err != nil {
				return err
			}
			res := httpclient.PostForm(cmd.Context(), args[0], params)
			return printResult(cmd.OutOrStdout(), res)
		},
	}
}

func newPostJSONCmd(cfg *config.Config, log logger.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "post-json URL [JSON|-]",
		Short: "Send a JSON POST request; - reads the body from stdin",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var body string
			if len(args) == 2 {
				body = args[1]
			}
			if body == "-" {
				raw, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				body = string(raw)
			}
			res := httpclient.PostJSON(cmd.Context(), args[0], body)
			return printResult(cmd.OutOrStdout(), res)
		},
	}
}

func newRunCmd(cfg *config.Config, log logger.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Execute the configured request plan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			rt, err := app.NewRuntime(ctx, cfg, log)
			if err != nil {
				log.ErrorObj("failed to initialize runtime", "error", err)
				return err
			}
			if err := rt.Run(ctx); err != nil {
				return fmt.Errorf("runtime run: %w", err)
			}
			return nil
		},
	}
}

func newHistoryCmd(cfg *config.Config) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print recent exchanges as JSON lines, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive")
			}
			store, err := app.OpenStore(cfg)
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer store.Close()

			recent, err := store.Recent(limit)
			if err != nil {
				return fmt.Errorf("read history: %w", err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, ex := range recent {
				if err := enc.Encode(ex); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of exchanges to print")
	return cmd
}

func newDateCmd() *cobra.Command {
	var pattern string
	cmd := &cobra.Command{
		Use:   "date [RFC3339 time]",
		Short: "Format a timestamp (default now) with a yyyy-MM-dd style pattern",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t := time.Now()
			if len(args) == 1 {
				parsed, err := time.Parse(time.RFC3339, args[0])
				if err != nil {
					return fmt.Errorf("parse time: %w", err)
				}
				t = parsed
			}
			out, err := dateutil.Format(t, pattern)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
			return err
		},
	}
	cmd.Flags().StringVar(&pattern, "pattern", dateutil.DefaultPattern, "format pattern")
	return cmd
}

// parseParams turns key=value arguments into a parameter map. A repeated key
// keeps its last value.
func parseParams(args []string) (map[string]string, error) {
	if len(args) == 0 {
		return nil, nil
	}
	params := make(map[string]string, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid parameter %q (want key=value)", arg)
		}
		params[key] = value
	}
	return params, nil
}

func printResult(w io.Writer, res httpclient.Result) error {
	body, ok := res.Value()
	if !ok {
		return errAbsent
	}
	_, err := io.WriteString(w, body)
	return err
}
