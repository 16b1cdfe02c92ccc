package demo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/retrace/internal/session"
)

// fixtureServers starts an API server with the jsonplaceholder-shaped
// fixtures the demo expects, plus an always-503 endpoint.
func fixtureServers(t *testing.T) (api, fail *httptest.Server) {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/users/1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":1,"name":"Leanne Graham"}`))
	})
	mux.HandleFunc("/posts/1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":1,"title":"sunt aut facere"}`))
	})
	mux.HandleFunc("/todos/1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":1,"title":"delectus aut autem","completed":false}`))
	})
	mux.HandleFunc("/todos/2", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":2,"title":"quis ut nam","completed":false}`))
	})
	api = httptest.NewServer(mux)

	fail = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	t.Cleanup(api.Close)
	t.Cleanup(fail.Close)
	return api, fail
}

func demoOptions(api, fail *httptest.Server) Options {
	return Options{
		APIBase:    api.URL,
		FailURL:    fail.URL + "/503",
		Backoff:    0,
		HTTPClient: api.Client(),
	}
}

func TestDemoRecordThenReplay(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "demo.retrace")
	api, fail := fixtureServers(t)
	opts := demoOptions(api, fail)

	rec, err := session.New(session.Config{Mode: session.ModeRecord, TracePath: path})
	require.NoError(t, err)

	recorded, err := Run(ctx, rec, opts)
	require.NoError(t, err)
	require.NoError(t, rec.Close())

	assert.Equal(t, "Leanne Graham", recorded.UserName)
	assert.Equal(t, 200, recorded.RetryStatus)
	assert.Equal(t, 2, recorded.RetryAttempts, "the forced 503 must cost one attempt")

	// Take the network away entirely.
	api.Close()
	fail.Close()

	rep, err := session.New(session.Config{Mode: session.ModeReplay, TracePath: path})
	require.NoError(t, err)
	defer rep.Close()

	replayed, err := Run(ctx, rep, opts)
	require.NoError(t, err)

	// Everything derived from call outcomes is identical; only the fresh
	// correlation id and wall-clock timing may differ.
	assert.Equal(t, recorded.UserName, replayed.UserName)
	assert.Equal(t, recorded.PostTitle, replayed.PostTitle)
	assert.Equal(t, recorded.TodoTitle, replayed.TodoTitle)
	assert.Equal(t, recorded.RetryStatus, replayed.RetryStatus)
	assert.Equal(t, recorded.RetryAttempts, replayed.RetryAttempts)
}

func TestDemoTriggerBugPanicsIdenticallyOnReplay(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "demo.retrace")
	api, fail := fixtureServers(t)
	opts := demoOptions(api, fail)
	opts.TriggerBug = true

	rec, err := session.New(session.Config{
		Mode: session.ModeRecord, TracePath: path, Tags: []string{TagTriggerBug},
	})
	require.NoError(t, err)

	// The bug panics after all calls completed; a deferred Close must
	// still leave a usable trace behind.
	func() {
		defer rec.Close()
		defer func() {
			r := recover()
			require.NotNil(t, r, "expected the intentional bug to panic")
		}()
		_, _ = Run(ctx, rec, opts)
	}()

	rep, err := session.New(session.Config{Mode: session.ModeReplay, TracePath: path})
	require.NoError(t, err)
	defer rep.Close()

	assert.True(t, rep.Meta().HasTag(TagTriggerBug), "tag must survive for replay tooling")

	// Replay reaches the identical crash site.
	defer func() {
		r := recover()
		assert.NotNil(t, r, "replay must reproduce the panic")
	}()
	_, _ = Run(ctx, rep, opts)
}

func TestDemoReplayDivergenceIsFatal(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "demo.retrace")
	api, fail := fixtureServers(t)

	rec, err := session.New(session.Config{Mode: session.ModeRecord, TracePath: path})
	require.NoError(t, err)
	_, err = Run(ctx, rec, demoOptions(api, fail))
	require.NoError(t, err)
	require.NoError(t, rec.Close())

	rep, err := session.New(session.Config{Mode: session.ModeReplay, TracePath: path})
	require.NoError(t, err)
	defer rep.Close()

	// Point the demo at a different API base: every fingerprint changes,
	// and the first call must fail loudly instead of guessing.
	diverged := demoOptions(api, fail)
	diverged.APIBase = "https://somewhere-else.test"

	_, err = Run(ctx, rep, diverged)
	require.Error(t, err)
}
