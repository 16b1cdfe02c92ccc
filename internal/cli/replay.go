package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/retrace/internal/demo"
	"github.com/roach88/retrace/internal/engine"
	"github.com/roach88/retrace/internal/session"
	"github.com/roach88/retrace/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Trace   string
	APIBase string
	FailURL string
}

// ReplayResult holds the replay command's output.
type ReplayResult struct {
	Trace     string        `json:"trace"`
	SessionID string        `json:"session_id"`
	Tags      []string      `json:"tags,omitempty"`
	Records   int           `json:"records"`
	Summary   *demo.Summary `json:"summary"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-run the demo program from a recorded trace",
		Long: `Re-run the instrumented demo program with replay active.

Every outbound call is answered from the trace file instead of the
network: successes return the captured responses byte for byte, and
captured failures are re-raised, so retry loops take the recorded path.

If the trace was recorded with --trigger-bug (tag "trigger-bug"), the
intentional crash is reproduced automatically.

The demo must issue the same request sequence it recorded, so pass the
same --api-base/--fail-url values used at record time if they were
overridden.

Exit codes:
  0 - Replay completed; behavior matched the recording
  1 - Replay mismatch (program diverged from the recorded run)
  2 - Command error (trace not found, corrupt file, etc.)

Examples:
  retrace replay --trace ./run.retrace
  retrace replay --trace ./bug.retrace   (crashes like the recorded run)`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Trace, "trace", "", "path to the trace file to replay (default: $RETRACE_TRACE)")
	cmd.Flags().StringVar(&opts.APIBase, "api-base", demo.DefaultAPIBase, "base URL used when the trace was recorded")
	cmd.Flags().StringVar(&opts.FailURL, "fail-url", demo.DefaultFailURL, "fail URL used when the trace was recorded")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	tracePath, err := resolveTracePath(opts.Trace)
	if err != nil {
		return WrapExitError(ExitCommandError, "resolve trace path", err)
	}

	s, err := session.New(session.Config{
		Mode:      session.ModeReplay,
		TracePath: tracePath,
		Debug:     opts.Verbose,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "open replay session", err)
	}
	defer s.Close()

	meta := s.Meta()

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	summary, err := demo.Run(ctx, s, demo.Options{
		APIBase: opts.APIBase,
		FailURL: opts.FailURL,
		// Crash reproduction comes from the trace, not a fresh flag.
		TriggerBug: meta.HasTag(demo.TagTriggerBug),
		Backoff:    time.Millisecond,
		Out:        cmd.ErrOrStderr(),
	})
	if err != nil {
		if engine.IsMismatch(err) {
			return WrapExitError(ExitReplayFailed, "replay diverged from recording", err)
		}
		return WrapExitError(ExitCommandError, "demo run failed", err)
	}

	tr, err := store.OpenForReplay(tracePath)
	if err != nil {
		return WrapExitError(ExitCommandError, "reload trace", err)
	}

	result := ReplayResult{
		Trace:     tracePath,
		SessionID: meta.SessionID,
		Tags:      meta.Tags,
		Records:   tr.Len(),
		Summary:   summary,
	}

	if opts.Format == "json" {
		return writeJSON(cmd, CLIResponse{Status: "ok", Data: result})
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Replayed %d interaction(s) from %s\n", result.Records, result.Trace)
	fmt.Fprintf(w, "Session: %s\n", result.SessionID)
	fmt.Fprintln(w, "Replay matched the recorded run")
	return nil
}
