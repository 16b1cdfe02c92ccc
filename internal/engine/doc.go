// Package engine implements the trace capture and matching core.
//
// # Recording
//
// The Recorder assigns call identity. Each live request is fingerprinted;
// a request whose fingerprint has no open call starts a new logical call
// (next call_id, attempt 0). A Failure outcome leaves the call open: the
// next request with the same fingerprint is recorded as the next attempt
// of that call. A Success outcome closes the call. Every attempt is
// stamped with a seq from a shared atomic clock and appended to the store,
// so the trace's global order matches completion order.
//
// Per logical call the recorded lifecycle is:
//
//	NotStarted -> AwaitingOutcome -> Succeeded
//	                              -> Retrying -> AwaitingOutcome -> ...
//	                              -> Exhausted (last attempt failed, never retried)
//
// # Replay
//
// The Matcher owns one cursor per fingerprint: the recorded interactions
// sharing that fingerprint, in seq order, plus the next unconsumed index.
// Resolve consumes strictly FIFO within a fingerprint - two recorded calls
// with identical fingerprints are matched in the order they were recorded,
// never by content beyond the fingerprint. A retried call's Failure and
// Success attempts sit adjacent in its fingerprint's cursor, so the caller
// sees the exact failure -> retry -> success sequence it recorded.
//
// A request whose fingerprint has no unconsumed record is a divergent run.
// That is fatal: the Matcher poisons itself and every later Resolve returns
// the same mismatch error. Partial or best-effort continuation is never
// attempted.
package engine
