package engine

import (
	"errors"
	"fmt"
)

// MismatchError reports a divergent replay: the live program made a call
// that was not recorded, or made it more times than recorded. It is fatal
// to the replay session - replayed state after a divergence is meaningless.
type MismatchError struct {
	// Fingerprint is the matching key of the unmatched request.
	Fingerprint string

	// Method and Target describe the live request, for diagnostics.
	Method string
	Target string

	// Consumed is how many records with this fingerprint were already
	// matched; Recorded is how many the trace holds in total.
	Consumed int
	Recorded int
}

func (e *MismatchError) Error() string {
	if e.Recorded == 0 {
		return fmt.Sprintf("REPLAY_MISMATCH: %s %s was never recorded (fingerprint=%s)",
			e.Method, e.Target, shortFingerprint(e.Fingerprint))
	}
	return fmt.Sprintf("REPLAY_MISMATCH: %s %s exhausted its %d recorded interaction(s) (fingerprint=%s)",
		e.Method, e.Target, e.Recorded, shortFingerprint(e.Fingerprint))
}

// IsMismatch reports whether err is a replay mismatch.
// Uses errors.As to handle wrapped errors.
func IsMismatch(err error) bool {
	var me *MismatchError
	return errors.As(err, &me)
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
