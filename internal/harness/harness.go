package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"

	"github.com/roach88/retrace/internal/session"
	"github.com/roach88/retrace/internal/store"
	"github.com/roach88/retrace/internal/trace"
)

// Result holds everything a scenario run produced: the outcomes seen by
// the caller during the record pass, the outcomes seen during replay, and
// the persisted trace loaded back from disk.
type Result struct {
	Scenario *Scenario
	Recorded []trace.Outcome
	Replayed []trace.Outcome
	Trace    *trace.Trace
}

// Run executes a scenario end to end:
//
//  1. Record pass: every step's request goes through a record session
//     whose performer returns the step's scripted outcome.
//  2. The trace is loaded back from disk and validated.
//  3. Replay pass: the identical request sequence goes through a replay
//     session; each outcome must equal its recorded counterpart.
//
// Any divergence - engine error, unequal outcome, failed Expect pin -
// returns an error.
func Run(sc *Scenario) (*Result, error) {
	ctx := context.Background()

	dir, err := os.MkdirTemp("", "retrace-harness-*")
	if err != nil {
		return nil, fmt.Errorf("harness: %w", err)
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, sc.Name+".retrace")

	res := &Result{Scenario: sc}

	// Record pass.
	rec, err := session.New(session.Config{
		Mode:      session.ModeRecord,
		TracePath: path,
		Tags:      sc.Tags,
	})
	if err != nil {
		return nil, fmt.Errorf("harness: open record session: %w", err)
	}

	for i, step := range sc.Steps {
		outcome, err := rec.Intercept(ctx, step.request(), scripted(step.Outcome))
		if err != nil {
			rec.Close()
			return nil, fmt.Errorf("harness: record step %d: %w", i, err)
		}
		res.Recorded = append(res.Recorded, outcome)
	}
	if err := rec.Close(); err != nil {
		return nil, fmt.Errorf("harness: close record session: %w", err)
	}

	// Load the persisted trace for golden comparison and Expect pins.
	res.Trace, err = store.OpenForReplay(path)
	if err != nil {
		return nil, fmt.Errorf("harness: load trace: %w", err)
	}
	if err := checkExpect(sc, res.Trace); err != nil {
		return nil, err
	}

	// Replay pass.
	rep, err := session.New(session.Config{Mode: session.ModeReplay, TracePath: path})
	if err != nil {
		return nil, fmt.Errorf("harness: open replay session: %w", err)
	}
	defer rep.Close()

	for i, step := range sc.Steps {
		outcome, err := rep.Intercept(ctx, step.request(), nil)
		if err != nil {
			return nil, fmt.Errorf("harness: replay step %d: %w", i, err)
		}
		if !reflect.DeepEqual(outcome, res.Recorded[i]) {
			return nil, fmt.Errorf("harness: step %d replayed outcome differs from recorded", i)
		}
		res.Replayed = append(res.Replayed, outcome)
	}

	return res, nil
}

func (s Step) request() *trace.Request {
	req := &trace.Request{
		Method:  s.Method,
		Target:  s.Target,
		Headers: s.Headers,
	}
	if s.Body != "" {
		req.Body = []byte(s.Body)
	}
	return req
}

// scripted adapts a step's scripted outcome to the performer boundary.
func scripted(out StepOutcome) session.Performer {
	return session.PerformerFunc(func(context.Context, *trace.Request) trace.Outcome {
		if out.Case == "Failure" {
			return trace.Failure(out.Kind, out.Message)
		}
		var body []byte
		if out.Body != "" {
			body = []byte(out.Body)
		}
		return trace.Success(out.Status, out.Headers, body)
	})
}

func checkExpect(sc *Scenario, tr *trace.Trace) error {
	if sc.Expect == nil {
		return nil
	}
	if n := len(sc.Steps); tr.Len() != n {
		return fmt.Errorf("harness: trace has %d records, scenario has %d steps", tr.Len(), n)
	}
	for i, in := range tr.Interactions {
		if ids := sc.Expect.CallIDs; len(ids) > 0 && in.CallID != ids[i] {
			return fmt.Errorf("harness: record %d call_id = %d, want %d", i, in.CallID, ids[i])
		}
		if at := sc.Expect.Attempts; len(at) > 0 && in.AttemptIndex != at[i] {
			return fmt.Errorf("harness: record %d attempt = %d, want %d", i, in.AttemptIndex, at[i])
		}
	}
	return nil
}
