package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/retrace/internal/trace"
)

// Snapshot renders the persisted trace as canonical JSON for golden
// comparison. Fingerprints are content-addressed digests and session ids
// and timestamps vary per run, so the snapshot tracks the structural
// fields only: identity, order, and outcomes.
func Snapshot(res *Result) ([]byte, error) {
	records := make([]any, 0, res.Trace.Len())
	for _, in := range res.Trace.Interactions {
		rec := map[string]any{
			"call_id":       in.CallID,
			"attempt_index": in.AttemptIndex,
			"seq":           in.Seq,
			"case":          in.Outcome.Case,
		}
		if in.Outcome.IsSuccess() {
			rec["status"] = in.Outcome.Status
			if len(in.Outcome.Body) > 0 {
				rec["body"] = string(in.Outcome.Body)
			}
		} else {
			rec["failure_kind"] = in.Outcome.FailureKind
			rec["failure_message"] = in.Outcome.FailureMessage
		}
		records = append(records, rec)
	}

	return trace.MarshalCanonical(map[string]any{
		"scenario_name": res.Scenario.Name,
		"records":       records,
	})
}

// RunWithGolden executes a scenario and compares its trace snapshot
// against testdata/golden/{name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, sc *Scenario) *Result {
	t.Helper()

	res, err := Run(sc)
	if err != nil {
		t.Fatalf("scenario %s: %v", sc.Name, err)
	}

	snapshot, err := Snapshot(res)
	if err != nil {
		t.Fatalf("scenario %s: snapshot: %v", sc.Name, err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, sc.Name, snapshot)

	return res
}
