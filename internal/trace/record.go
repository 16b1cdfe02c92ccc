package trace

import (
	"fmt"
	"time"
)

// FormatVersion is the current trace file format version.
//
// Version history:
//  1 - Initial format (meta row + interactions table)
//
// Readers must reject files written with a NEWER version; unknown trailing
// columns within the current version are ignored on read.
const FormatVersion = 1

// Outcome case names. An Interaction's outcome is a tagged variant: exactly
// one of the two cases, discriminated by Case.
const (
	CaseSuccess = "Success"
	CaseFailure = "Failure"
)

// Outcome is the result of one call attempt.
//
// For CaseSuccess the Status/Headers/Body fields carry the captured
// response verbatim. For CaseFailure the FailureKind/FailureMessage fields
// carry the captured failure condition so that replay can re-raise it
// unchanged. Outcomes are values; replay returns the recorded outcome
// without re-deriving any field.
type Outcome struct {
	Case string

	// Success arm
	Status  int
	Headers map[string]string
	Body    []byte

	// Failure arm
	FailureKind    string
	FailureMessage string
}

// Success builds a success outcome.
func Success(status int, headers map[string]string, body []byte) Outcome {
	return Outcome{Case: CaseSuccess, Status: status, Headers: headers, Body: body}
}

// Failure builds a failure outcome.
func Failure(kind, message string) Outcome {
	return Outcome{Case: CaseFailure, FailureKind: kind, FailureMessage: message}
}

// IsSuccess reports whether the outcome is the Success case.
func (o Outcome) IsSuccess() bool { return o.Case == CaseSuccess }

// Request is the engine-side representation of an outbound call.
// Call-site shims translate their library-specific request objects into
// this shape before handing them to the session controller.
type Request struct {
	Method  string
	Target  string
	Headers map[string]string
	Body    []byte
}

// Interaction is one captured call attempt.
type Interaction struct {
	// CallID identifies the logical call. Attempts of a retried call share
	// a CallID; a call that succeeds first try produces exactly one record.
	CallID int64

	// AttemptIndex is 0 for the first attempt and increments per retry.
	// (CallID, AttemptIndex) is unique within a trace.
	AttemptIndex int

	// Fingerprint is the deterministic matching key for the request.
	Fingerprint string

	// Outcome is the captured result of this attempt.
	Outcome Outcome

	// Seq is the global order of this record within the trace. Strictly
	// increasing; total order matches the order interactions completed.
	Seq int64
}

// Meta is the session metadata stored alongside the interaction sequence.
type Meta struct {
	FormatVersion int
	SessionID     string
	CreatedAt     time.Time
	Tags          []string
	Finalized     bool
}

// HasTag reports whether the free-form tag list contains tag.
func (m Meta) HasTag(tag string) bool {
	for _, t := range m.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Trace is the ordered, in-memory form of one recorded session. Loaded
// once at replay open, owned by the session controller, never mutated.
type Trace struct {
	Meta         Meta
	Interactions []Interaction
}

// Len returns the number of recorded interactions.
func (t *Trace) Len() int { return len(t.Interactions) }

// Validate checks the structural invariants of the interaction sequence:
//
//   - Seq strictly increasing in slice order
//   - (CallID, AttemptIndex) unique
//   - AttemptIndex values contiguous from 0 per CallID
//   - every non-final attempt of a multi-attempt call is a Failure
//
// A trace that fails validation must be rejected whole; partial replay of
// a corrupt trace is never attempted.
func (t *Trace) Validate() error {
	var lastSeq int64
	attempts := make(map[int64]int)       // call_id -> attempt count seen
	lastOutcome := make(map[int64]string) // call_id -> case of latest attempt

	for i, in := range t.Interactions {
		if i > 0 && in.Seq <= lastSeq {
			return fmt.Errorf("interaction %d: seq %d not increasing (previous %d)", i, in.Seq, lastSeq)
		}
		lastSeq = in.Seq

		if in.Fingerprint == "" {
			return fmt.Errorf("interaction %d: empty fingerprint", i)
		}
		if in.Outcome.Case != CaseSuccess && in.Outcome.Case != CaseFailure {
			return fmt.Errorf("interaction %d: unknown outcome case %q", i, in.Outcome.Case)
		}

		seen := attempts[in.CallID]
		if in.AttemptIndex != seen {
			return fmt.Errorf("interaction %d: call %d attempt %d out of order (expected %d)",
				i, in.CallID, in.AttemptIndex, seen)
		}
		if seen > 0 && lastOutcome[in.CallID] != CaseFailure {
			return fmt.Errorf("interaction %d: call %d retried after %s outcome",
				i, in.CallID, lastOutcome[in.CallID])
		}
		attempts[in.CallID] = seen + 1
		lastOutcome[in.CallID] = in.Outcome.Case
	}

	return nil
}
