package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"smallagents/types"
)

// DefaultUserAgent is sent on every request unless the caller sets one
const DefaultUserAgent = "SmallAgents/0.1.0"

// Options configures a client built by New
type Options struct {
	Timeout   time.Duration
	Policy    Policy
	UserAgent string
	// Headers are added to every request that does not already carry them
	Headers http.Header
	// Base is the underlying transport. When nil each client gets its own
	// clone of http.DefaultTransport so closing it leaves other clients alone.
	Base http.RoundTripper
}

type headerTransport struct {
	next    http.RoundTripper
	headers http.Header
}

func (h *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var r *http.Request
	for k, vs := range h.headers {
		if req.Header.Get(k) != "" {
			continue
		}
		if r == nil {
			r = req.Clone(req.Context())
		}
		for _, v := range vs {
			r.Header.Add(k, v)
		}
	}
	if r == nil {
		r = req
	}
	return h.next.RoundTrip(r)
}

func (h *headerTransport) CloseIdleConnections() {
	closeIdle(h.next)
}

type closeIdler interface {
	CloseIdleConnections()
}

func closeIdle(rt http.RoundTripper) {
	if c, ok := rt.(closeIdler); ok {
		c.CloseIdleConnections()
	}
}

// New returns an *http.Client with the retry policy, timeout and default headers applied
func New(opts Options) *http.Client {
	headers := http.Header{}
	for k, vs := range opts.Headers {
		headers[http.CanonicalHeaderKey(k)] = append([]string(nil), vs...)
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	headers.Set("User-Agent", ua)
	if headers.Get("Accept") == "" {
		headers.Set("Accept", "application/json")
	}

	base := opts.Base
	if base == nil {
		base = http.DefaultTransport.(*http.Transport).Clone()
	}

	return &http.Client{
		Timeout: opts.Timeout,
		Transport: &headerTransport{
			next:    &Transport{Base: base, Policy: opts.Policy},
			headers: headers,
		},
	}
}

// DoJSON sends req and decodes a 2xx JSON body into out. Non-2xx responses and
// transport failures are reported as network failures, bad bodies as parse failures.
func DoJSON(client *http.Client, req *http.Request, step string, out any) error {
	resp, err := client.Do(req)
	if err != nil {
		return types.NetworkError(step, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.NetworkError(step, fmt.Errorf("read body: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return types.NetworkError(step, &types.StatusError{Code: resp.StatusCode, Body: truncate(string(body), 200)})
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return types.ParseError(step, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// NewJSONRequest builds a request with v marshalled as its JSON body
func NewJSONRequest(ctx context.Context, method, url string, v any) (*http.Request, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
