package store

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/retrace/internal/trace"
)

//go:embed schema.sql
var schemaSQL string

// Store is the append-only writer for a record session.
// Safe for concurrent use; a mutex serializes appends and the SQLite
// connection is limited to a single writer.
type Store struct {
	db   *sql.DB
	path string

	mu        sync.Mutex
	finalized bool
	lastSeq   int64
}

// OpenForRecord creates a new trace file at path and writes the session
// meta row. It fails with an IO error when the path is not writable, and
// with a FORMAT error when the path holds a file that is not readable as
// an empty trace (corrupt, foreign, or already containing a session).
func OpenForRecord(path string, meta trace.Meta) (*Store, error) {
	existed := false
	if fi, err := os.Stat(path); err == nil && fi.Size() > 0 {
		existed = true
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, newError(CodeIO, path, "open trace for record", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		if existed {
			return nil, newError(CodeFormat, path, "existing file is not a readable trace", err)
		}
		return nil, newError(CodeIO, path, "open trace for record", err)
	}

	// SQLite supports one writer at a time; a single connection avoids
	// SQLITE_BUSY under concurrent appends.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, newError(CodeIO, path, "configure trace file", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		if existed {
			return nil, newError(CodeFormat, path, "existing file is not a readable trace", err)
		}
		return nil, newError(CodeIO, path, "initialize trace schema", err)
	}

	var sessions int
	if err := db.QueryRow(`SELECT COUNT(*) FROM meta`).Scan(&sessions); err != nil {
		db.Close()
		return nil, newError(CodeFormat, path, "existing file is not a readable trace", err)
	}
	if sessions > 0 {
		db.Close()
		return nil, newError(CodeFormat, path, "trace file already contains a session", nil)
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", trace.FormatVersion)); err != nil {
		db.Close()
		return nil, newError(CodeIO, path, "stamp format version", err)
	}

	tagsJSON, err := json.Marshal(meta.Tags)
	if err != nil {
		db.Close()
		return nil, newError(CodeIO, path, "encode tags", err)
	}
	_, err = db.Exec(`
		INSERT INTO meta (id, format_version, session_id, created_at, tags, finalized)
		VALUES (1, ?, ?, ?, ?, 0)
	`,
		trace.FormatVersion,
		meta.SessionID,
		meta.CreatedAt.UTC().Format(time.RFC3339Nano),
		string(tagsJSON),
	)
	if err != nil {
		db.Close()
		return nil, newError(CodeIO, path, "write session meta", err)
	}

	return &Store{db: db, path: path}, nil
}

// Append persists one interaction record. Seq values must be strictly
// increasing; the engine's clock assigns them. Per-call durability is not
// guaranteed - Finalize is the durability barrier.
func (s *Store) Append(in trace.Interaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finalized {
		return newError(CodeState, s.path, "append after finalize", nil)
	}
	if in.Seq <= s.lastSeq {
		return newError(CodeState, s.path,
			fmt.Sprintf("seq %d not after %d", in.Seq, s.lastSeq), nil)
	}

	headersJSON, err := json.Marshal(in.Outcome.Headers)
	if err != nil {
		return newError(CodeIO, s.path, "encode headers", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO interactions
		(seq, call_id, attempt_index, fingerprint, outcome_case, status, headers, body, failure_kind, failure_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		in.Seq,
		in.CallID,
		in.AttemptIndex,
		in.Fingerprint,
		in.Outcome.Case,
		in.Outcome.Status,
		string(headersJSON),
		in.Outcome.Body,
		in.Outcome.FailureKind,
		in.Outcome.FailureMessage,
	)
	if err != nil {
		return newError(CodeIO, s.path, "append interaction", err)
	}

	s.lastSeq = in.Seq
	return nil
}

// Finalize flushes all appended records durably and marks the trace
// complete. Further appends fail with a STATE error. Idempotent.
func (s *Store) Finalize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finalized {
		return nil
	}

	if _, err := s.db.Exec(`UPDATE meta SET finalized = 1 WHERE id = 1`); err != nil {
		return newError(CodeIO, s.path, "finalize trace", err)
	}
	// Fold the WAL back into the main file so the trace is a single
	// self-contained artifact.
	if _, err := s.db.Exec(`PRAGMA wal_checkpoint(TRUNCATE)`); err != nil {
		return newError(CodeIO, s.path, "checkpoint trace", err)
	}

	s.finalized = true
	return nil
}

// Close releases the file handle. Callers should Finalize first; Close
// alone does not mark the trace complete.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the trace file path.
func (s *Store) Path() string { return s.path }

// OpenForReplay loads and validates a complete trace from path.
//
// Fails with NOT_FOUND when the path is absent, and with FORMAT on a
// corrupt file, an invalid record sequence, or a format version newer than
// this build understands. A trace that was never finalized (the recording
// process died) still loads: WAL journaling keeps every completed append
// readable.
func OpenForReplay(path string) (*trace.Trace, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, newError(CodeNotFound, path, "trace file does not exist", err)
		}
		return nil, newError(CodeIO, path, "stat trace file", err)
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, newError(CodeIO, path, "open trace for replay", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return nil, newError(CodeFormat, path, "file is not a readable trace", err)
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return nil, newError(CodeFormat, path, "read format version", err)
	}
	if version > trace.FormatVersion {
		return nil, newError(CodeFormat, path,
			fmt.Sprintf("trace format version %d is newer than supported version %d", version, trace.FormatVersion), nil)
	}

	meta, err := readMeta(db, path)
	if err != nil {
		return nil, err
	}

	interactions, err := readInteractions(db, path)
	if err != nil {
		return nil, err
	}

	tr := &trace.Trace{Meta: meta, Interactions: interactions}
	if err := tr.Validate(); err != nil {
		return nil, newError(CodeFormat, path, "invalid record sequence", err)
	}

	return tr, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}

// readMeta selects meta columns by name so that columns added by future
// format revisions are ignored.
func readMeta(db *sql.DB, path string) (trace.Meta, error) {
	var (
		meta      trace.Meta
		createdAt string
		tagsJSON  string
		finalized int
	)

	err := db.QueryRow(`
		SELECT format_version, session_id, created_at, tags, finalized
		FROM meta WHERE id = 1
	`).Scan(&meta.FormatVersion, &meta.SessionID, &createdAt, &tagsJSON, &finalized)
	if err == sql.ErrNoRows {
		return trace.Meta{}, newError(CodeFormat, path, "trace has no session meta", nil)
	}
	if err != nil {
		return trace.Meta{}, newError(CodeFormat, path, "read session meta", err)
	}

	meta.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return trace.Meta{}, newError(CodeFormat, path, "invalid created_at timestamp", err)
	}
	if err := json.Unmarshal([]byte(tagsJSON), &meta.Tags); err != nil {
		return trace.Meta{}, newError(CodeFormat, path, "invalid tags", err)
	}
	meta.Finalized = finalized != 0

	return meta, nil
}

func readInteractions(db *sql.DB, path string) ([]trace.Interaction, error) {
	rows, err := db.Query(`
		SELECT seq, call_id, attempt_index, fingerprint, outcome_case,
		       status, headers, body, failure_kind, failure_message
		FROM interactions ORDER BY seq ASC
	`)
	if err != nil {
		return nil, newError(CodeFormat, path, "read interactions", err)
	}
	defer rows.Close()

	var out []trace.Interaction
	for rows.Next() {
		var (
			in          trace.Interaction
			status      sql.NullInt64
			headersJSON sql.NullString
			body        []byte
			failKind    sql.NullString
			failMsg     sql.NullString
		)
		err := rows.Scan(&in.Seq, &in.CallID, &in.AttemptIndex, &in.Fingerprint,
			&in.Outcome.Case, &status, &headersJSON, &body, &failKind, &failMsg)
		if err != nil {
			return nil, newError(CodeFormat, path, "scan interaction", err)
		}

		in.Outcome.Status = int(status.Int64)
		in.Outcome.Body = body
		in.Outcome.FailureKind = failKind.String
		in.Outcome.FailureMessage = failMsg.String
		if headersJSON.Valid && headersJSON.String != "" && headersJSON.String != "null" {
			if err := json.Unmarshal([]byte(headersJSON.String), &in.Outcome.Headers); err != nil {
				return nil, newError(CodeFormat, path, "invalid headers", err)
			}
		}

		out = append(out, in)
	}
	if err := rows.Err(); err != nil {
		return nil, newError(CodeFormat, path, "read interactions", err)
	}

	return out, nil
}
