package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/retrace/internal/store"
)

// VerifyOptions holds flags for the verify command.
type VerifyOptions struct {
	*RootOptions
	Trace string
}

// VerifyResult holds the verify command's output.
type VerifyResult struct {
	Trace     string `json:"trace"`
	Valid     bool   `json:"valid"`
	Finalized bool   `json:"finalized"`
	Records   int    `json:"records"`
	Problem   string `json:"problem,omitempty"`
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check a trace file's structural integrity",
		Long: `Check that a trace file is loadable and internally consistent:
known format version, strictly increasing sequence numbers, contiguous
attempt indexes per call, and failures preceding every retry.

A trace from a crashed recording loads fine but reports Finalized:
false; that is a warning, not a failure.

Exit codes:
  0 - Trace is valid
  1 - Trace is corrupt or structurally invalid
  2 - Command error (trace not found, unreadable path)

Examples:
  retrace verify --trace ./run.retrace
  retrace verify --trace ./run.retrace --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Trace, "trace", "", "path to the trace file (default: $RETRACE_TRACE)")

	return cmd
}

func runVerify(opts *VerifyOptions, cmd *cobra.Command) error {
	tracePath, err := resolveTracePath(opts.Trace)
	if err != nil {
		return WrapExitError(ExitCommandError, "resolve trace path", err)
	}

	tr, err := store.OpenForReplay(tracePath)
	if err != nil {
		if store.IsNotFound(err) || store.IsIO(err) {
			return WrapExitError(ExitCommandError, "open trace", err)
		}
		// FORMAT errors are the verification failure this command exists
		// to report.
		result := VerifyResult{Trace: tracePath, Valid: false, Problem: err.Error()}
		if opts.Format == "json" {
			if werr := writeJSON(cmd, CLIResponse{
				Status: "error",
				Data:   result,
				Error:  &CLIError{Code: "E_FORMAT", Message: "trace verification failed"},
			}); werr != nil {
				return werr
			}
		} else {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "✗ %s is not a valid trace\n", tracePath)
			fmt.Fprintf(w, "  %s\n", result.Problem)
		}
		return NewExitError(ExitReplayFailed, "trace verification failed")
	}

	result := VerifyResult{
		Trace:     tracePath,
		Valid:     true,
		Finalized: tr.Meta.Finalized,
		Records:   tr.Len(),
	}

	if opts.Format == "json" {
		return writeJSON(cmd, CLIResponse{Status: "ok", Data: result})
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "✓ %s is a valid trace (%d record(s))\n", tracePath, result.Records)
	if !result.Finalized {
		fmt.Fprintln(w, "  Warning: recording was never finalized (crashed or in progress)")
	}
	return nil
}
