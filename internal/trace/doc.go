// Package trace defines the data model for recorded interactions: the
// Interaction record, the Success/Failure outcome variant, the engine-side
// request representation, and the deterministic fingerprint derived from a
// request.
//
// Fingerprints are content-addressed: SHA-256 over a canonical JSON encoding
// of the request's deterministic fields. Canonical encoding follows RFC 8785
// (sorted keys by UTF-16 code units, NFC-normalized strings, no HTML
// escaping) so that the same logical request produces the same fingerprint
// across process restarts and platforms.
package trace
