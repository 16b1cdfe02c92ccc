package cli

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/retrace/internal/config"
	"github.com/roach88/retrace/internal/demo"
	"github.com/roach88/retrace/internal/session"
	"github.com/roach88/retrace/internal/store"
)

// RecordOptions holds flags for the record command.
type RecordOptions struct {
	*RootOptions
	Trace      string
	Tags       []string
	TriggerBug bool
	APIBase    string
	FailURL    string
	Backoff    time.Duration
	Timeout    time.Duration
}

// RecordResult holds the record command's output.
type RecordResult struct {
	Trace     string        `json:"trace"`
	SessionID string        `json:"session_id"`
	Tags      []string      `json:"tags,omitempty"`
	Records   int           `json:"records"`
	Summary   *demo.Summary `json:"summary"`
}

// NewRecordCommand creates the record command.
func NewRecordCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RecordOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Run the demo program and record its network calls",
		Long: `Run the instrumented demo program with recording active.

Every outbound HTTP call - including the deliberately failing first
attempt of the retry path - is captured into the trace file. Replaying
the file later walks the identical flow without the network.

With --trigger-bug the demo crashes on an intentional bug AFTER its
network calls complete; the trace survives the crash and is tagged so
that 'retrace replay' reproduces the crash automatically.

When --trace is omitted the RETRACE_TRACE environment variable (default
"session.retrace") selects the file.

Examples:
  retrace record --trace ./run.retrace
  retrace record --trace ./bug.retrace --trigger-bug
  retrace record --trace ./run.retrace --tag nightly --tag smoke`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecord(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Trace, "trace", "", "path to the trace file to write (default: $RETRACE_TRACE)")
	cmd.Flags().StringSliceVar(&opts.Tags, "tag", nil, "free-form tag to store in the trace metadata (repeatable)")
	cmd.Flags().BoolVar(&opts.TriggerBug, "trigger-bug", false, "enable the demo's intentional crash")
	cmd.Flags().StringVar(&opts.APIBase, "api-base", demo.DefaultAPIBase, "base URL for the demo's API calls")
	cmd.Flags().StringVar(&opts.FailURL, "fail-url", demo.DefaultFailURL, "URL that forces the demo's retry path")
	cmd.Flags().DurationVar(&opts.Backoff, "backoff", 300*time.Millisecond, "retry backoff for the forced-failure call")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 30*time.Second, "overall timeout for the demo run")

	return cmd
}

func runRecord(opts *RecordOptions, cmd *cobra.Command) error {
	tracePath, err := resolveTracePath(opts.Trace)
	if err != nil {
		return WrapExitError(ExitCommandError, "resolve trace path", err)
	}

	tags := opts.Tags
	if opts.TriggerBug {
		tags = append(tags, demo.TagTriggerBug)
	}

	s, err := session.New(session.Config{
		Mode:      session.ModeRecord,
		TracePath: tracePath,
		Tags:      tags,
		Debug:     opts.Verbose,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "open record session", err)
	}
	// Deferred so the trace survives the --trigger-bug crash.
	defer s.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.Timeout)
	defer cancel()

	demoOut := cmd.ErrOrStderr()
	summary, err := demo.Run(ctx, s, demo.Options{
		APIBase:    opts.APIBase,
		FailURL:    opts.FailURL,
		TriggerBug: opts.TriggerBug,
		Backoff:    opts.Backoff,
		HTTPClient: &http.Client{Timeout: opts.Timeout},
		Out:        demoOut,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "demo run failed", err)
	}

	if err := s.Close(); err != nil {
		return WrapExitError(ExitCommandError, "finalize trace", err)
	}

	// Load the finished trace back to report what was captured.
	tr, err := store.OpenForReplay(tracePath)
	if err != nil {
		return WrapExitError(ExitCommandError, "reload recorded trace", err)
	}

	result := RecordResult{
		Trace:     tracePath,
		SessionID: tr.Meta.SessionID,
		Tags:      tr.Meta.Tags,
		Records:   tr.Len(),
		Summary:   summary,
	}

	if opts.Format == "json" {
		return writeJSON(cmd, CLIResponse{Status: "ok", Data: result})
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Recorded %d interaction(s) to %s\n", result.Records, result.Trace)
	fmt.Fprintf(w, "Session: %s\n", result.SessionID)
	if len(result.Tags) > 0 {
		fmt.Fprintf(w, "Tags: %v\n", result.Tags)
	}
	fmt.Fprintf(w, "Replay with: retrace replay --trace %s\n", result.Trace)
	return nil
}

// resolveTracePath falls back to the environment when no --trace flag was
// given, so the CLI and an env-activated program agree on the file.
func resolveTracePath(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	cfg, err := config.ParseEnv()
	if err != nil {
		return "", err
	}
	return cfg.TracePath, nil
}
