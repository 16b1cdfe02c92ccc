// Package config parses retrace configuration from environment variables.
// The engine itself never reads the environment; it honors the Config this
// package produces.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"

	"github.com/roach88/retrace/internal/session"
)

// Env is the environment surface of the activation boundary.
type Env struct {
	// Mode activates the engine: "record", "replay" or "off".
	Mode string `env:"RETRACE_MODE" envDefault:"off"`

	// TracePath is the trace file written (record) or read (replay).
	TracePath string `env:"RETRACE_TRACE" envDefault:"session.retrace"`

	// Tags is a free-form comma-separated tag list stored in the trace
	// metadata (e.g. "trigger-bug").
	Tags []string `env:"RETRACE_TAGS" envSeparator:","`

	// Debug enables diagnostic logging on stderr.
	Debug bool `env:"RETRACE_DEBUG" envDefault:"false"`
}

// ParseEnv loads the session configuration from environment variables.
func ParseEnv() (session.Config, error) {
	var e Env
	if err := env.Parse(&e); err != nil {
		return session.Config{}, fmt.Errorf("parse env: %w", err)
	}

	mode, err := session.ParseMode(e.Mode)
	if err != nil {
		return session.Config{}, fmt.Errorf("parse env: %w", err)
	}

	return session.Config{
		Mode:      mode,
		TracePath: e.TracePath,
		Tags:      e.Tags,
		Debug:     e.Debug,
	}, nil
}
