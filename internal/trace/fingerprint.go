package trace

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode/utf8"
)

// DomainInteraction is the domain prefix for interaction fingerprints.
// Version suffix enables future algorithm migration without colliding
// with hashes produced by older releases.
const DomainInteraction = "retrace/interaction/v1"

// volatileHeaders lists header names (lowercase) that are likely to differ
// between two executions of the same logical call. They are stripped before
// fingerprinting: hashing them would degenerate replay matching to an
// exact-match failure on every run.
var volatileHeaders = map[string]struct{}{
	"authorization":         {},
	"cookie":                {},
	"date":                  {},
	"traceparent":           {},
	"tracestate":            {},
	"user-agent":            {},
	"x-amzn-trace-id":       {},
	"x-b3-spanid":           {},
	"x-b3-traceid":          {},
	"x-correlation-id":      {},
	"x-demo-correlation-id": {},
	"x-request-id":          {},
}

// Fingerprint derives the stable matching key for a request.
//
// The key is SHA-256 over the canonical JSON of the request's deterministic
// fields: uppercased method, target, normalized non-volatile headers, and
// body. Hashing is domain-separated (SHA256(domain + 0x00 + canonical)) so
// fingerprints can never collide with other content-addressed values.
//
// Fingerprint is a pure function of its input: same request, same key, on
// every run, on every platform.
func Fingerprint(req *Request) (string, error) {
	obj := map[string]any{
		"method":  strings.ToUpper(req.Method),
		"target":  req.Target,
		"headers": normalizeHeaders(req.Headers),
		"body":    encodeBody(req.Body),
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}

	h := sha256.New()
	h.Write([]byte(DomainInteraction))
	h.Write([]byte{0x00}) // null separator prevents domain/data ambiguity
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// MustFingerprint is like Fingerprint but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustFingerprint(req *Request) string {
	fp, err := Fingerprint(req)
	if err != nil {
		panic(err)
	}
	return fp
}

// normalizeHeaders lowercases header names, drops volatile headers, and
// trims surrounding whitespace from values. The canonical encoder handles
// key ordering, so the result is order-insensitive by construction.
func normalizeHeaders(headers map[string]string) map[string]any {
	out := make(map[string]any, len(headers))
	for name, value := range headers {
		lower := strings.ToLower(strings.TrimSpace(name))
		if _, volatile := volatileHeaders[lower]; volatile {
			continue
		}
		out[lower] = strings.TrimSpace(value)
	}
	return out
}

// encodeBody returns the body as text when it is valid UTF-8, otherwise
// base64. The two forms are distinguished by a one-letter prefix so that a
// binary body can never alias a textual one.
func encodeBody(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	if utf8.Valid(body) {
		return "t:" + string(body)
	}
	return "b:" + base64.StdEncoding.EncodeToString(body)
}
