// Package session orchestrates record and replay sessions: it owns the
// trace store lifecycle, exposes the interception entry point used by
// call-site shims, and provides the process-wide activation handle.
package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/retrace/internal/engine"
	"github.com/roach88/retrace/internal/store"
	"github.com/roach88/retrace/internal/trace"
)

// Mode selects the session's execution path.
type Mode int

const (
	// ModeOff passes calls through without capture or matching.
	ModeOff Mode = iota

	// ModeRecord forwards calls to the real network and captures a trace.
	ModeRecord

	// ModeReplay answers calls from a loaded trace; the network is never
	// touched.
	ModeReplay
)

func (m Mode) String() string {
	switch m {
	case ModeRecord:
		return "record"
	case ModeReplay:
		return "replay"
	default:
		return "off"
	}
}

// ParseMode converts a mode name ("record", "replay", "off") to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "record":
		return ModeRecord, nil
	case "replay":
		return ModeReplay, nil
	case "off", "":
		return ModeOff, nil
	default:
		return ModeOff, fmt.Errorf("unknown mode %q (want record, replay or off)", s)
	}
}

// Config holds the values a session honors. Parsing them out of the
// environment is the collaborator's job; see the config package.
type Config struct {
	Mode      Mode
	TracePath string
	Tags      []string
	Debug     bool
}

// Performer is the polymorphic dispatch boundary each call-site shim
// implements: perform the real call and report its outcome. Transport
// failures are encoded as Failure outcomes, not Go errors, so that they
// can be captured and replayed faithfully.
type Performer interface {
	Perform(ctx context.Context, req *trace.Request) trace.Outcome
}

// PerformerFunc adapts a function to the Performer interface.
type PerformerFunc func(ctx context.Context, req *trace.Request) trace.Outcome

// Perform calls f.
func (f PerformerFunc) Perform(ctx context.Context, req *trace.Request) trace.Outcome {
	return f(ctx, req)
}

// Session is one record or replay run. Create with New (or the
// process-wide Activate), drive calls through Intercept, and Close on all
// exit paths - a deferred Close keeps the trace usable even when the
// instrumented program crashes.
type Session struct {
	mode Mode
	log  *slog.Logger

	// record mode
	store    *store.Store
	recorder *engine.Recorder

	// replay mode
	trace   *trace.Trace
	matcher *engine.Matcher

	closeOnce sync.Once
	closeErr  error
}

// New opens a session for cfg. Open errors (absent trace at replay,
// unwritable path at record, corrupt or incompatible file) are fatal: no
// partial session starts.
func New(cfg Config) (*Session, error) {
	s := &Session{mode: cfg.Mode, log: newLogger(cfg.Debug)}

	switch cfg.Mode {
	case ModeOff:
		return s, nil

	case ModeRecord:
		meta := trace.Meta{
			FormatVersion: trace.FormatVersion,
			SessionID:     uuid.Must(uuid.NewV7()).String(),
			CreatedAt:     time.Now().UTC(),
			Tags:          cfg.Tags,
		}
		st, err := store.OpenForRecord(cfg.TracePath, meta)
		if err != nil {
			return nil, err
		}
		s.store = st
		s.recorder = engine.NewRecorder(st)
		s.trace = &trace.Trace{Meta: meta}
		s.log.Debug("record session open", "trace", cfg.TracePath, "session_id", meta.SessionID)
		return s, nil

	case ModeReplay:
		tr, err := store.OpenForReplay(cfg.TracePath)
		if err != nil {
			return nil, err
		}
		s.trace = tr
		s.matcher = engine.NewMatcher(tr)
		s.log.Debug("replay session open", "trace", cfg.TracePath,
			"session_id", tr.Meta.SessionID, "interactions", tr.Len())
		return s, nil

	default:
		return nil, fmt.Errorf("unknown session mode %d", cfg.Mode)
	}
}

// Mode returns the session's mode.
func (s *Session) Mode() Mode { return s.mode }

// Meta exposes read-only trace metadata (session id, tags) so external
// tooling can scaffold a reproducible run.
func (s *Session) Meta() trace.Meta {
	if s.trace == nil {
		return trace.Meta{}
	}
	return s.trace.Meta
}

// Intercept is the single entry point call-site shims wrap their dispatch
// with.
//
// Record: performs the real call through p, captures the outcome, and
// returns it. Replay: resolves the outcome from the trace without touching
// the network; p is never invoked. Off: plain pass-through.
//
// The returned error is an ENGINE error (store failure, replay mismatch).
// A recorded Failure outcome is not an error here - the shim converts it
// back into its library-specific failure so caller logic behaves
// identically in both modes.
func (s *Session) Intercept(ctx context.Context, req *trace.Request, p Performer) (trace.Outcome, error) {
	switch s.mode {
	case ModeRecord:
		outcome := p.Perform(ctx, req)
		in, err := s.recorder.Record(req, outcome)
		if err != nil {
			return trace.Outcome{}, err
		}
		s.log.Debug("recorded interaction",
			"call_id", in.CallID, "attempt", in.AttemptIndex, "seq", in.Seq,
			"method", req.Method, "target", req.Target, "case", outcome.Case)
		return outcome, nil

	case ModeReplay:
		outcome, err := s.matcher.Resolve(req)
		if err != nil {
			s.log.Debug("replay mismatch", "method", req.Method, "target", req.Target, "err", err)
			return trace.Outcome{}, err
		}
		s.log.Debug("replayed interaction",
			"method", req.Method, "target", req.Target, "case", outcome.Case)
		return outcome, nil

	default:
		return p.Perform(ctx, req), nil
	}
}

// Close finalizes and releases the session. Idempotent and safe to defer
// alongside abnormal termination: in record mode all appended records are
// durably flushed before the file handle is released.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		switch s.mode {
		case ModeRecord:
			if err := s.store.Finalize(); err != nil {
				s.closeErr = err
			}
			if err := s.store.Close(); err != nil && s.closeErr == nil {
				s.closeErr = err
			}
			s.log.Debug("record session closed", "trace", s.store.Path())

		case ModeReplay:
			if left := s.matcher.Unconsumed(); left > 0 {
				s.log.Debug("replay session closed with unconsumed records", "unconsumed", left)
			}
		}
	})
	return s.closeErr
}

func newLogger(debug bool) *slog.Logger {
	if debug {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
