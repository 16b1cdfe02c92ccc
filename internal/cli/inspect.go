package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/retrace/internal/store"
	"github.com/roach88/retrace/internal/trace"
)

// InspectOptions holds flags for the inspect command.
type InspectOptions struct {
	*RootOptions
	Trace string
}

// InspectRecord is one interaction in the inspect output.
type InspectRecord struct {
	Seq            int64  `json:"seq"`
	CallID         int64  `json:"call_id"`
	AttemptIndex   int    `json:"attempt_index"`
	Fingerprint    string `json:"fingerprint"`
	Case           string `json:"case"`
	Status         int    `json:"status,omitempty"`
	BodyBytes      int    `json:"body_bytes,omitempty"`
	FailureKind    string `json:"failure_kind,omitempty"`
	FailureMessage string `json:"failure_message,omitempty"`
}

// InspectResult holds the complete inspect output.
type InspectResult struct {
	Trace         string          `json:"trace"`
	FormatVersion int             `json:"format_version"`
	SessionID     string          `json:"session_id"`
	CreatedAt     time.Time       `json:"created_at"`
	Tags          []string        `json:"tags,omitempty"`
	Finalized     bool            `json:"finalized"`
	Calls         int             `json:"calls"`
	Retries       int             `json:"retries"`
	Records       []InspectRecord `json:"records"`
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show the contents of a trace file",
		Long: `Show a trace file's session metadata and interaction records.

Each record lists its global sequence number, logical call id, attempt
index, matching fingerprint, and captured outcome. Retried calls appear
as multiple records sharing a call id.

Examples:
  retrace inspect --trace ./run.retrace
  retrace inspect --trace ./run.retrace --format json
  retrace inspect --trace ./run.retrace -v`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Trace, "trace", "", "path to the trace file (default: $RETRACE_TRACE)")

	return cmd
}

func runInspect(opts *InspectOptions, cmd *cobra.Command) error {
	tracePath, err := resolveTracePath(opts.Trace)
	if err != nil {
		return WrapExitError(ExitCommandError, "resolve trace path", err)
	}

	tr, err := store.OpenForReplay(tracePath)
	if err != nil {
		return WrapExitError(ExitCommandError, "open trace", err)
	}

	result := buildInspectResult(tracePath, tr)

	if opts.Format == "json" {
		return writeJSON(cmd, CLIResponse{Status: "ok", Data: result})
	}

	return outputInspectText(cmd, result, opts.Verbose)
}

func buildInspectResult(path string, tr *trace.Trace) InspectResult {
	result := InspectResult{
		Trace:         path,
		FormatVersion: tr.Meta.FormatVersion,
		SessionID:     tr.Meta.SessionID,
		CreatedAt:     tr.Meta.CreatedAt,
		Tags:          tr.Meta.Tags,
		Finalized:     tr.Meta.Finalized,
		Records:       make([]InspectRecord, 0, tr.Len()),
	}

	calls := make(map[int64]bool)
	for _, in := range tr.Interactions {
		if in.AttemptIndex > 0 {
			result.Retries++
		}
		calls[in.CallID] = true

		rec := InspectRecord{
			Seq:          in.Seq,
			CallID:       in.CallID,
			AttemptIndex: in.AttemptIndex,
			Fingerprint:  in.Fingerprint,
			Case:         in.Outcome.Case,
		}
		if in.Outcome.IsSuccess() {
			rec.Status = in.Outcome.Status
			rec.BodyBytes = len(in.Outcome.Body)
		} else {
			rec.FailureKind = in.Outcome.FailureKind
			rec.FailureMessage = in.Outcome.FailureMessage
		}
		result.Records = append(result.Records, rec)
	}
	result.Calls = len(calls)

	return result
}

func outputInspectText(cmd *cobra.Command, result InspectResult, verbose bool) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Trace: %s\n", result.Trace)
	fmt.Fprintf(w, "Session: %s\n", result.SessionID)
	fmt.Fprintf(w, "Created: %s\n", result.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "Format Version: %d\n", result.FormatVersion)
	fmt.Fprintf(w, "Finalized: %v\n", result.Finalized)
	if len(result.Tags) > 0 {
		fmt.Fprintf(w, "Tags: %v\n", result.Tags)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "=== Records (%d across %d call(s), %d retried attempt(s)) ===\n",
		len(result.Records), result.Calls, result.Retries)
	if len(result.Records) == 0 {
		fmt.Fprintln(w, "  (empty trace)")
		return nil
	}

	for _, rec := range result.Records {
		switch rec.Case {
		case trace.CaseSuccess:
			fmt.Fprintf(w, "  [%d] call %d attempt %d: %d (%d bytes)\n",
				rec.Seq, rec.CallID, rec.AttemptIndex, rec.Status, rec.BodyBytes)
		case trace.CaseFailure:
			fmt.Fprintf(w, "  [%d] call %d attempt %d: FAIL %s: %s\n",
				rec.Seq, rec.CallID, rec.AttemptIndex, rec.FailureKind, rec.FailureMessage)
		}
		if verbose {
			fmt.Fprintf(w, "       fingerprint: %s\n", rec.Fingerprint)
		}
	}

	return nil
}
