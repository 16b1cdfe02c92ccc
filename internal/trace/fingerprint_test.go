package trace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprintDeterminism(t *testing.T) {
	req := &Request{
		Method: "GET",
		Target: "https://api.example.test/users/1",
		Headers: map[string]string{
			"Accept": "application/json",
		},
	}

	fp1, err := Fingerprint(req)
	require.NoError(t, err)
	fp2, err := Fingerprint(req)
	require.NoError(t, err)

	assert.Equal(t, fp1, fp2, "Fingerprint must be deterministic")
	assert.Len(t, fp1, 64, "SHA-256 hex is 64 characters")
}

func TestFingerprintIgnoresVolatileHeaders(t *testing.T) {
	base := &Request{
		Method: "GET",
		Target: "https://api.example.test/todos/1",
		Headers: map[string]string{
			"Accept":                "application/json",
			"X-Demo-Correlation-Id": "aaaa1111",
			"X-Request-Id":          "req-1",
			"Date":                  "Mon, 02 Jan 2006 15:04:05 GMT",
			"User-Agent":            "retrace-demo/1.0",
		},
	}
	other := &Request{
		Method: "GET",
		Target: "https://api.example.test/todos/1",
		Headers: map[string]string{
			"Accept":                "application/json",
			"X-Demo-Correlation-Id": "bbbb2222",
			"X-Request-Id":          "req-9",
			"Date":                  "Tue, 03 Jan 2006 16:05:06 GMT",
			"User-Agent":            "retrace-demo/2.0",
		},
	}

	assert.Equal(t, MustFingerprint(base), MustFingerprint(other),
		"timestamps, correlation ids and agent versions must not affect the key")
}

func TestFingerprintHeaderCaseAndOrderInsensitive(t *testing.T) {
	a := &Request{
		Method:  "get",
		Target:  "https://api.example.test/posts/1",
		Headers: map[string]string{"Accept": "application/json", "X-Api-Key-Name": "demo"},
	}
	b := &Request{
		Method:  "GET",
		Target:  "https://api.example.test/posts/1",
		Headers: map[string]string{"x-api-key-name": "demo", "ACCEPT": "application/json"},
	}

	assert.Equal(t, MustFingerprint(a), MustFingerprint(b))
}

func TestFingerprintChangesWithTargetAndMethod(t *testing.T) {
	base := &Request{Method: "GET", Target: "https://api.example.test/users/1"}
	otherTarget := &Request{Method: "GET", Target: "https://api.example.test/users/2"}
	otherMethod := &Request{Method: "POST", Target: "https://api.example.test/users/1"}

	assert.NotEqual(t, MustFingerprint(base), MustFingerprint(otherTarget),
		"different target must produce a different key")
	assert.NotEqual(t, MustFingerprint(base), MustFingerprint(otherMethod),
		"different method must produce a different key")
}

func TestFingerprintChangesWithBody(t *testing.T) {
	a := &Request{Method: "POST", Target: "https://api.example.test/posts", Body: []byte(`{"title":"a"}`)}
	b := &Request{Method: "POST", Target: "https://api.example.test/posts", Body: []byte(`{"title":"b"}`)}

	assert.NotEqual(t, MustFingerprint(a), MustFingerprint(b))
}

func TestFingerprintBinaryBodyNeverAliasesText(t *testing.T) {
	// A textual body that looks like the base64 form of a binary body must
	// still hash differently from the binary body itself.
	binary := []byte{0xff, 0xfe, 0x00, 0x01}
	textual := []byte("b:" + "//4AAQ==")

	a := &Request{Method: "POST", Target: "https://api.example.test/blob", Body: binary}
	b := &Request{Method: "POST", Target: "https://api.example.test/blob", Body: textual}

	assert.NotEqual(t, MustFingerprint(a), MustFingerprint(b))
}

func TestEncodeBodyEmpty(t *testing.T) {
	assert.Equal(t, "", encodeBody(nil))
	assert.Equal(t, "", encodeBody([]byte{}))
}
