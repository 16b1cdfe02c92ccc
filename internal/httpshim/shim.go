// Package httpshim adapts net/http call sites to the engine's intercept
// boundary. It translates *http.Request into the engine's request
// representation, performs the real call in record mode, and converts
// captured outcomes back into *http.Response values or errors - so code
// written against it behaves identically whether the response comes from
// the network or from a trace.
package httpshim

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/roach88/retrace/internal/session"
	"github.com/roach88/retrace/internal/trace"
)

// CallError is the library-facing form of a captured Failure outcome.
// Replay re-raises the identical kind and message that the record run
// produced, so error handling paths execute the same way in both modes.
type CallError struct {
	Kind    string
	Message string
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Client wraps an HTTP client with engine interception.
type Client struct {
	session       *session.Session
	base          *http.Client
	failureStatus int
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying client used for real calls.
// Defaults to http.DefaultClient.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.base = c }
}

// WithFailureStatus records responses with status >= min as Failure
// outcomes instead of successes. This mirrors raise-on-status client
// policies: a 503 becomes a captured failure, which keeps a failed
// attempt and its retry within one logical call.
func WithFailureStatus(min int) Option {
	return func(cl *Client) { cl.failureStatus = min }
}

// NewClient creates a shim client dispatching through s.
func NewClient(s *session.Session, opts ...Option) *Client {
	cl := &Client{session: s, base: http.DefaultClient}
	for _, opt := range opts {
		opt(cl)
	}
	return cl
}

// Do dispatches req through the engine. In record mode the real call is
// made and its outcome captured; in replay mode the recorded outcome is
// returned without network access. Failure outcomes surface as *CallError.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	engineReq, err := translateRequest(req)
	if err != nil {
		return nil, err
	}

	outcome, err := c.session.Intercept(req.Context(), engineReq, performer{c})
	if err != nil {
		return nil, err
	}

	if !outcome.IsSuccess() {
		return nil, &CallError{Kind: outcome.FailureKind, Message: outcome.FailureMessage}
	}
	return buildResponse(req, outcome), nil
}

// Get issues a GET through the engine with the given headers.
func (c *Client) Get(ctx context.Context, url string, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	for name, value := range headers {
		req.Header.Set(name, value)
	}
	return c.Do(req)
}

// performer executes the real network call for record mode.
type performer struct {
	client *Client
}

func (p performer) Perform(ctx context.Context, req *trace.Request) trace.Outcome {
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.Target, bytes.NewReader(req.Body))
	if err != nil {
		return trace.Failure("transport", err.Error())
	}
	for name, value := range req.Headers {
		httpReq.Header.Set(name, value)
	}

	resp, err := p.client.base.Do(httpReq)
	if err != nil {
		// The concrete error text can embed run-specific detail (ports,
		// dial timing); the kind/message pair is what gets captured and
		// replayed, so keep it as the transport reported it.
		return trace.Failure("transport", err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return trace.Failure("transport", err.Error())
	}

	if p.client.failureStatus > 0 && resp.StatusCode >= p.client.failureStatus {
		return trace.Failure("http_status",
			fmt.Sprintf("server error: %d on %s %s", resp.StatusCode, req.Method, req.Target))
	}

	return trace.Success(resp.StatusCode, flattenHeaders(resp.Header), body)
}

func translateRequest(req *http.Request) (*trace.Request, error) {
	var body []byte
	if req.Body != nil {
		b, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, fmt.Errorf("read request body: %w", err)
		}
		req.Body.Close()
		body = b
	}

	return &trace.Request{
		Method:  req.Method,
		Target:  req.URL.String(),
		Headers: flattenHeaders(req.Header),
		Body:    body,
	}, nil
}

func buildResponse(req *http.Request, outcome trace.Outcome) *http.Response {
	header := make(http.Header, len(outcome.Headers))
	for name, value := range outcome.Headers {
		header.Set(name, value)
	}

	return &http.Response{
		Status:        fmt.Sprintf("%d %s", outcome.Status, http.StatusText(outcome.Status)),
		StatusCode:    outcome.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(outcome.Body)),
		ContentLength: int64(len(outcome.Body)),
		Request:       req,
	}
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for name, values := range h {
		out[name] = strings.Join(values, ", ")
	}
	return out
}
