// Package httpclient wraps outbound HTTP calls with a fixed retry policy and
// uniform headers. Every stage of the video pipeline and the REST agent build
// their *http.Client here.
package httpclient

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryStatuses are the response codes that trigger another attempt
var RetryStatuses = []int{
	http.StatusTooManyRequests,
	http.StatusInternalServerError,
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
	http.StatusGatewayTimeout,
}

var retryMethods = map[string]bool{
	http.MethodHead:    true,
	http.MethodGet:     true,
	http.MethodOptions: true,
	http.MethodPost:    true,
}

// Policy is a fixed-count retry policy with exponential backoff.
// The wait before retry n (1-based) is BackoffFactor * 2^(n-1) seconds.
type Policy struct {
	MaxRetries    int
	BackoffFactor float64
}

func (p Policy) backoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Duration(p.BackoffFactor * float64(time.Second))
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxInterval = 2 * time.Minute
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithMaxRetries(b, uint64(p.MaxRetries))
}

// Transport retries requests that fail at the transport level or come back
// with one of RetryStatuses. When retries run out on a bad status the last
// response is returned untouched so the caller sees the real status code.
type Transport struct {
	Base   http.RoundTripper
	Policy Policy
}

type retryableStatus struct{ code int }

func (e *retryableStatus) Error() string {
	return fmt.Sprintf("retryable status %d", e.code)
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

// CloseIdleConnections closes idle connections held by the base transport
func (t *Transport) CloseIdleConnections() {
	closeIdle(t.base())
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !retryMethods[req.Method] || t.Policy.MaxRetries <= 0 {
		return t.base().RoundTrip(req)
	}
	// a body we cannot rewind can only be sent once
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		return t.base().RoundTrip(req)
	}

	var (
		prev    *http.Response
		attempt int
	)
	op := func() (*http.Response, error) {
		if prev != nil {
			drain(prev)
			prev = nil
		}
		r := req
		if attempt > 0 {
			r = req.Clone(req.Context())
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, backoff.Permanent(err)
				}
				r.Body = body
			}
		}
		attempt++

		resp, err := t.base().RoundTrip(r)
		if err != nil {
			return nil, err
		}
		if isRetryStatus(resp.StatusCode) {
			prev = resp
			return resp, &retryableStatus{code: resp.StatusCode}
		}
		return resp, nil
	}

	b := backoff.WithContext(t.Policy.backoff(), req.Context())
	resp, err := backoff.RetryWithData(op, b)
	var rs *retryableStatus
	if errors.As(err, &rs) && resp != nil {
		return resp, nil
	}
	if err != nil {
		if resp != nil {
			drain(resp)
		}
		return nil, err
	}
	return resp, nil
}

func isRetryStatus(code int) bool {
	for _, c := range RetryStatuses {
		if c == code {
			return true
		}
	}
	return false
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
}
