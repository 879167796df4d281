package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"smallagents/config"
	"smallagents/types"
)

// Result is what the REST agent reports for one call
type Result struct {
	Success       bool              `json:"success"`
	StatusCode    int               `json:"status_code,omitempty"`
	Data          any               `json:"data,omitempty"`
	Headers       map[string]string `json:"headers,omitempty"`
	Error         string            `json:"error,omitempty"`
	ErrorType     string            `json:"error_type,omitempty"`
	ExecutionTime time.Duration     `json:"execution_time"`
	Method        string            `json:"method,omitempty"`
	Endpoint      string            `json:"endpoint,omitempty"`
}

// RunOptions carries the optional query parameters (GET) or JSON body (POST)
type RunOptions struct {
	Params url.Values
	Data   any
}

// Agent is a small REST client with retries. Failed calls are reported in the
// Result rather than returned as errors.
type Agent struct {
	cfg    config.APIConfig
	client *http.Client

	closeOnce sync.Once
}

// NewAgent creates a REST agent from cfg
func NewAgent(cfg config.APIConfig) *Agent {
	return &Agent{
		cfg: cfg,
		client: New(Options{
			Timeout:   cfg.Timeout.Duration(),
			Policy:    Policy{MaxRetries: cfg.MaxRetries, BackoffFactor: cfg.BackoffFactor},
			UserAgent: cfg.UserAgent,
			Headers:   http.Header{"Content-Type": {"application/json"}},
		}),
	}
}

// Info describes the agent
func (a *Agent) Info() types.AgentInfo {
	return types.AgentInfo{Name: "APIAgent", Config: a.cfg}
}

func (a *Agent) resolve(endpoint string) string {
	if a.cfg.BaseURL == "" {
		return endpoint
	}
	base, err := url.Parse(a.cfg.BaseURL)
	if err != nil {
		return endpoint
	}
	ref, err := url.Parse(endpoint)
	if err != nil {
		return endpoint
	}
	return base.ResolveReference(ref).String()
}

// Get issues a GET to endpoint, resolved against the configured base URL
func (a *Agent) Get(ctx context.Context, endpoint string, params url.Values) Result {
	target := a.resolve(endpoint)
	if len(params) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return failure(err)
	}
	return a.do(req)
}

// Post issues a POST with data encoded as JSON
func (a *Agent) Post(ctx context.Context, endpoint string, data any) Result {
	var (
		req *http.Request
		err error
	)
	if data == nil {
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, a.resolve(endpoint), nil)
	} else {
		req, err = NewJSONRequest(ctx, http.MethodPost, a.resolve(endpoint), data)
	}
	if err != nil {
		return failure(err)
	}
	return a.do(req)
}

// Run dispatches to Get or Post. Only GET and POST are supported; anything
// else is rejected before a request is made.
func (a *Agent) Run(ctx context.Context, method, endpoint string, opts RunOptions) (Result, error) {
	m := strings.ToUpper(strings.TrimSpace(method))
	if m == "" {
		return Result{}, types.ValidationError("api.run", "method must not be empty")
	}
	if endpoint == "" {
		endpoint = "/"
	}

	start := time.Now()
	var res Result
	switch m {
	case http.MethodGet:
		res = a.Get(ctx, endpoint, opts.Params)
	case http.MethodPost:
		res = a.Post(ctx, endpoint, opts.Data)
	default:
		return Result{}, types.ValidationError("api.run", "unsupported HTTP method: %s", method)
	}
	res.ExecutionTime = time.Since(start)
	res.Method = m
	res.Endpoint = endpoint
	return res, nil
}

// Close releases idle connections. Safe to call more than once.
func (a *Agent) Close() error {
	a.closeOnce.Do(a.client.CloseIdleConnections)
	return nil
}

func (a *Agent) do(req *http.Request) Result {
	resp, err := a.client.Do(req)
	if err != nil {
		return failure(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return failure(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return failure(&types.StatusError{Code: resp.StatusCode, Body: truncate(string(body), 200)})
	}

	res := Result{
		Success:    true,
		StatusCode: resp.StatusCode,
		Headers:    make(map[string]string, len(resp.Header)),
	}
	for k := range resp.Header {
		res.Headers[k] = resp.Header.Get(k)
	}
	if len(body) > 0 {
		var data any
		if err := json.Unmarshal(body, &data); err != nil {
			return failure(types.ParseError("api", err))
		}
		res.Data = data
	}
	return res
}

func failure(err error) Result {
	return Result{Success: false, Error: err.Error(), ErrorType: errorType(err)}
}

func errorType(err error) string {
	var (
		status *types.StatusError
		netErr net.Error
	)
	switch {
	case errors.As(err, &status):
		return "http_error"
	case errors.Is(err, types.ErrParse):
		return "decode_error"
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	default:
		return "connection_error"
	}
}
