package session

import "sync"

// Process-wide activation state. The activation hook must run before any
// instrumented call site executes; collaborators query IsActive and
// CurrentMode. Modeled as explicit idempotent initialization producing a
// handle, not ambient hidden state.
var (
	activeMu sync.Mutex
	active   *Session
)

// Activate installs the process-wide session. Idempotent: repeated
// activation returns the existing session unchanged, never an error.
func Activate(cfg Config) (*Session, error) {
	activeMu.Lock()
	defer activeMu.Unlock()

	if active != nil {
		return active, nil
	}

	s, err := New(cfg)
	if err != nil {
		return nil, err
	}
	active = s
	return s, nil
}

// Deactivate closes and clears the process-wide session. No-op when
// nothing is active.
func Deactivate() error {
	activeMu.Lock()
	defer activeMu.Unlock()

	if active == nil {
		return nil
	}
	err := active.Close()
	active = nil
	return err
}

// IsActive reports whether a process-wide session is installed.
func IsActive() bool {
	activeMu.Lock()
	defer activeMu.Unlock()
	return active != nil
}

// CurrentMode returns the installed session's mode, or ModeOff when no
// session is active.
func CurrentMode() Mode {
	activeMu.Lock()
	defer activeMu.Unlock()

	if active == nil {
		return ModeOff
	}
	return active.mode
}
