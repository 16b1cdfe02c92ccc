// Package demo is the instrumented example program: a short HTTP flow
// with a guaranteed failure-then-retry path and an optional intentional
// bug. Recording it and replaying the trace walks identical control flow
// with identical data - including the failure - without the network.
package demo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/retrace/internal/httpshim"
	"github.com/roach88/retrace/internal/session"
)

// Default endpoints. jsonplaceholder serves stable fixtures; httpstat.us
// returns a guaranteed 503 to force the retry path against a real network.
const (
	DefaultAPIBase = "https://jsonplaceholder.typicode.com"
	DefaultFailURL = "https://httpstat.us/503"
)

// TagTriggerBug marks a trace recorded with the intentional bug enabled,
// so replay tooling can reproduce the crashing run without extra flags.
const TagTriggerBug = "trigger-bug"

// Options configures a demo run.
type Options struct {
	APIBase    string
	FailURL    string
	TriggerBug bool
	Backoff    time.Duration
	HTTPClient *http.Client
	Out        io.Writer
}

// Summary is the demo's final report.
type Summary struct {
	CorrelationID string  `json:"correlation_id"`
	UserName      string  `json:"user_name"`
	PostTitle     string  `json:"post_title"`
	TodoTitle     string  `json:"todo_title"`
	RetryStatus   int     `json:"retry_status"`
	RetryAttempts int     `json:"retry_attempts"`
	ElapsedMS     float64 `json:"elapsed_ms"`
}

// Run executes the demo flow through s. The correlation id is fresh on
// every run; it travels in a volatile header, so matching is unaffected.
func Run(ctx context.Context, s *session.Session, opts Options) (*Summary, error) {
	if opts.APIBase == "" {
		opts.APIBase = DefaultAPIBase
	}
	if opts.FailURL == "" {
		opts.FailURL = DefaultFailURL
	}
	if opts.Backoff == 0 {
		opts.Backoff = 300 * time.Millisecond
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}

	shimOpts := []httpshim.Option{httpshim.WithFailureStatus(500)}
	if opts.HTTPClient != nil {
		shimOpts = append(shimOpts, httpshim.WithHTTPClient(opts.HTTPClient))
	}
	client := httpshim.NewClient(s, shimOpts...)

	corr := uuid.NewString()[:8]
	headers := map[string]string{
		"User-Agent":            "retrace-http-demo/1.0",
		"X-Demo-Correlation-Id": corr,
	}
	fmt.Fprintf(opts.Out, "[demo] correlation_id=%s\n", corr)

	start := time.Now()

	var user struct {
		Name string `json:"name"`
	}
	if err := fetchJSON(ctx, client, opts.APIBase+"/users/1", headers, &user); err != nil {
		return nil, fmt.Errorf("fetch user: %w", err)
	}

	var post struct {
		Title string `json:"title"`
	}
	if err := fetchJSON(ctx, client, opts.APIBase+"/posts/1", headers, &post); err != nil {
		return nil, fmt.Errorf("fetch post: %w", err)
	}

	var todo struct {
		Title     string `json:"title"`
		Completed bool   `json:"completed"`
	}
	if err := fetchJSON(ctx, client, opts.APIBase+"/todos/1", headers, &todo); err != nil {
		return nil, fmt.Errorf("fetch todo: %w", err)
	}

	fmt.Fprintf(opts.Out, "[demo] user: %q\n", user.Name)
	fmt.Fprintf(opts.Out, "[demo] post title: %q\n", post.Title)
	fmt.Fprintf(opts.Out, "[demo] todo title: %q, completed=%v\n", todo.Title, todo.Completed)

	retryStatus, retryAttempts, err := retryWithForcedFailure(ctx, client, opts, headers)
	if err != nil {
		return nil, fmt.Errorf("forced retry: %w", err)
	}
	fmt.Fprintf(opts.Out, "[demo] forced-retry final_status=%d attempts=%d\n", retryStatus, retryAttempts)

	if opts.TriggerBug {
		fmt.Fprintln(opts.Out, "[demo] triggering intentional bug (integer divide by zero)")
		zero := len(user.Name) - len(user.Name)
		_ = 1 / zero
	}

	summary := &Summary{
		CorrelationID: corr,
		UserName:      user.Name,
		PostTitle:     post.Title,
		TodoTitle:     todo.Title,
		RetryStatus:   retryStatus,
		RetryAttempts: retryAttempts,
		ElapsedMS:     float64(time.Since(start).Microseconds()) / 1000.0,
	}

	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(opts.Out, "[demo] summary:\n%s\n", out)

	return summary, nil
}

// retryWithForcedFailure exercises a deterministic retry path: the first
// attempt hits an endpoint that always reports 503, the second a stable
// success endpoint. During replay the captured 503 failure is re-raised on
// attempt one, so the backoff-and-retry branch executes exactly as
// recorded.
func retryWithForcedFailure(ctx context.Context, client *httpshim.Client, opts Options, headers map[string]string) (status, attempts int, err error) {
	attempts = 1
	resp, err := client.Get(ctx, opts.FailURL, headers)
	if err == nil {
		resp.Body.Close()
		return resp.StatusCode, attempts, nil
	}

	time.Sleep(opts.Backoff * time.Duration(attempts))

	attempts = 2
	resp, err = client.Get(ctx, opts.APIBase+"/todos/2", headers)
	if err != nil {
		return 0, attempts, err
	}
	resp.Body.Close()
	return resp.StatusCode, attempts, nil
}

func fetchJSON(ctx context.Context, client *httpshim.Client, url string, headers map[string]string, v any) error {
	resp, err := client.Get(ctx, url, headers)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, v)
}
