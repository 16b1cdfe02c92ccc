package engine

import (
	"fmt"
	"sync"

	"github.com/roach88/retrace/internal/trace"
)

// Matcher resolves live requests against a loaded trace during replay.
// It never touches the network: every outcome it returns was captured
// verbatim during the record run.
//
// Thread-safety: Resolve is safe for concurrent callers. The critical
// section around "read next unconsumed index, advance it" guarantees that
// two concurrent calls with the same fingerprint can neither consume the
// same record twice nor consume out of order.
type Matcher struct {
	trace *trace.Trace

	mu       sync.Mutex
	cursors  map[string]*cursor
	poisoned *MismatchError
}

// cursor is the per-fingerprint replay state: the records sharing one
// fingerprint in recorded (seq) order, and the next unconsumed index.
// Created lazily on first lookup of a fingerprint.
type cursor struct {
	records []trace.Interaction
	next    int
}

// NewMatcher creates a Matcher over a loaded trace. The trace is owned by
// the session for its duration and must not be mutated.
func NewMatcher(tr *trace.Trace) *Matcher {
	return &Matcher{
		trace:   tr,
		cursors: make(map[string]*cursor),
	}
}

// Resolve matches req against the trace and returns the recorded outcome.
//
// Matching is FIFO within the request's fingerprint: repeated identical
// requests consume their recorded counterparts strictly in recording
// order. A Failure outcome is returned as a Failure-case outcome, not an
// error - the caller re-raises it so program logic (retry loops, handlers)
// executes exactly as it did during the record run.
//
// When no unconsumed record exists for the fingerprint, Resolve returns a
// *MismatchError and the Matcher is poisoned: the session has diverged and
// every subsequent Resolve fails with the original mismatch.
func (m *Matcher) Resolve(req *trace.Request) (trace.Outcome, error) {
	fp, err := trace.Fingerprint(req)
	if err != nil {
		return trace.Outcome{}, fmt.Errorf("resolve interaction: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.poisoned != nil {
		return trace.Outcome{}, m.poisoned
	}

	cur, ok := m.cursors[fp]
	if !ok {
		cur = &cursor{records: m.collect(fp)}
		m.cursors[fp] = cur
	}

	if cur.next >= len(cur.records) {
		m.poisoned = &MismatchError{
			Fingerprint: fp,
			Method:      req.Method,
			Target:      req.Target,
			Consumed:    cur.next,
			Recorded:    len(cur.records),
		}
		return trace.Outcome{}, m.poisoned
	}

	rec := cur.records[cur.next]
	cur.next++
	return rec.Outcome, nil
}

// Unconsumed returns how many recorded interactions have not been matched
// yet. A nonzero value at session close means the replayed program made
// fewer calls than the recorded one.
func (m *Matcher) Unconsumed() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	consumed := 0
	for _, cur := range m.cursors {
		consumed += cur.next
	}
	return m.trace.Len() - consumed
}

// collect gathers the records sharing fp in seq order. The trace slice is
// already seq-ordered, so a linear scan preserves recording order.
func (m *Matcher) collect(fp string) []trace.Interaction {
	var out []trace.Interaction
	for _, in := range m.trace.Interactions {
		if in.Fingerprint == fp {
			out = append(out, in)
		}
	}
	return out
}
