package engine

import (
	"fmt"
	"sync"

	"github.com/roach88/retrace/internal/store"
	"github.com/roach88/retrace/internal/trace"
)

// Recorder captures live call outcomes into the trace store.
//
// Call identity is tracked per fingerprint: a call whose latest attempt
// failed stays "open", and the next request with the same fingerprint is
// recorded as its next attempt. This reproduces program-level retry loops
// (same request reissued after a failure) as one logical call with
// contiguous attempt indexes.
type Recorder struct {
	store *store.Store
	clock *Clock

	mu       sync.Mutex
	nextCall int64
	open     map[string]*openCall // fingerprint -> call awaiting a retry
}

// openCall is a logical call whose latest recorded attempt was a Failure.
type openCall struct {
	callID   int64
	attempts int
}

// NewRecorder creates a Recorder appending to st.
func NewRecorder(st *store.Store) *Recorder {
	return &Recorder{
		store: st,
		clock: NewClock(),
		open:  make(map[string]*openCall),
	}
}

// Record captures one attempt outcome for req and appends it to the store.
// Returns the persisted interaction.
//
// The whole assign-identity/stamp-seq/append step runs in one critical
// section so the file order always matches seq order, even with concurrent
// callers.
func (r *Recorder) Record(req *trace.Request, outcome trace.Outcome) (trace.Interaction, error) {
	fp, err := trace.Fingerprint(req)
	if err != nil {
		return trace.Interaction{}, fmt.Errorf("record interaction: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var callID int64
	var attempt int
	if oc, retrying := r.open[fp]; retrying {
		callID = oc.callID
		attempt = oc.attempts
	} else {
		callID = r.nextCall
		r.nextCall++
	}

	in := trace.Interaction{
		CallID:       callID,
		AttemptIndex: attempt,
		Fingerprint:  fp,
		Outcome:      outcome,
		Seq:          r.clock.Next(),
	}
	if err := r.store.Append(in); err != nil {
		return trace.Interaction{}, err
	}

	if outcome.IsSuccess() {
		delete(r.open, fp)
	} else {
		r.open[fp] = &openCall{callID: callID, attempts: attempt + 1}
	}

	return in, nil
}
