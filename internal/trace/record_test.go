package trace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTrace() *Trace {
	return &Trace{
		Meta: Meta{FormatVersion: FormatVersion, SessionID: "s-1"},
		Interactions: []Interaction{
			{CallID: 0, AttemptIndex: 0, Fingerprint: "fp-user", Outcome: Success(200, nil, []byte(`{}`)), Seq: 1},
			{CallID: 1, AttemptIndex: 0, Fingerprint: "fp-post", Outcome: Success(200, nil, []byte(`{}`)), Seq: 2},
			{CallID: 2, AttemptIndex: 0, Fingerprint: "fp-todo", Outcome: Failure("transport", "connection reset"), Seq: 3},
			{CallID: 2, AttemptIndex: 1, Fingerprint: "fp-todo", Outcome: Success(200, nil, []byte(`{}`)), Seq: 4},
		},
	}
}

func TestValidateAcceptsRetrySequence(t *testing.T) {
	require.NoError(t, validTrace().Validate())
}

func TestValidateRejectsNonIncreasingSeq(t *testing.T) {
	tr := validTrace()
	tr.Interactions[2].Seq = 2

	err := tr.Validate()
	assert.ErrorContains(t, err, "not increasing")
}

func TestValidateRejectsAttemptGap(t *testing.T) {
	tr := validTrace()
	tr.Interactions[3].AttemptIndex = 2 // skips attempt 1

	err := tr.Validate()
	assert.ErrorContains(t, err, "out of order")
}

func TestValidateRejectsDuplicateAttempt(t *testing.T) {
	tr := validTrace()
	tr.Interactions[3].AttemptIndex = 0

	err := tr.Validate()
	assert.ErrorContains(t, err, "out of order")
}

func TestValidateRejectsRetryAfterSuccess(t *testing.T) {
	tr := validTrace()
	tr.Interactions[2].Outcome = Success(200, nil, nil)

	err := tr.Validate()
	assert.ErrorContains(t, err, "retried after Success")
}

func TestValidateRejectsUnknownOutcomeCase(t *testing.T) {
	tr := validTrace()
	tr.Interactions[0].Outcome.Case = "Maybe"

	err := tr.Validate()
	assert.ErrorContains(t, err, "unknown outcome case")
}

func TestValidateRejectsEmptyFingerprint(t *testing.T) {
	tr := validTrace()
	tr.Interactions[1].Fingerprint = ""

	err := tr.Validate()
	assert.ErrorContains(t, err, "empty fingerprint")
}

func TestValidateEmptyTrace(t *testing.T) {
	tr := &Trace{Meta: Meta{FormatVersion: FormatVersion}}
	assert.NoError(t, tr.Validate(), "an empty trace is valid (session recorded no calls)")
}

func TestMetaHasTag(t *testing.T) {
	m := Meta{Tags: []string{"trigger-bug", "demo"}}

	assert.True(t, m.HasTag("trigger-bug"))
	assert.False(t, m.HasTag("missing"))
}

func TestOutcomeConstructors(t *testing.T) {
	ok := Success(200, map[string]string{"content-type": "application/json"}, []byte(`{"id":1}`))
	assert.True(t, ok.IsSuccess())
	assert.Equal(t, 200, ok.Status)

	fail := Failure("http_status", "server error: 503")
	assert.False(t, fail.IsSuccess())
	assert.Equal(t, "http_status", fail.FailureKind)
}
