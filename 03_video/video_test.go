package video

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smallagents/config"
	"smallagents/logging"
	"smallagents/types"
)

type recordedSleep struct {
	calls []time.Duration
}

func (r *recordedSleep) sleep(_ context.Context, d time.Duration) error {
	r.calls = append(r.calls, d)
	return nil
}

func testConfig(base string) config.SocialVideoConfig {
	cfg := config.Default().Agents.SocialVideo
	cfg.Endpoints.Fal = base
	cfg.Veo3APIKey = "fal-key"
	cfg.MaxRetries = 0
	return cfg
}

func TestGenerateCompletedJob(t *testing.T) {
	var polls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Key fal-key", r.Header.Get("Authorization"))
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/fal-ai/veo3":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "a selfie on a rooftop", body["prompt"])
			_, _ = io.WriteString(w, `{"request_id":"req-1"}`)
		case r.Method == http.MethodGet && r.URL.Path == "/fal-ai/veo3/requests/req-1":
			atomic.AddInt32(&polls, 1)
			_, _ = io.WriteString(w, `{"status":"COMPLETED","video":{"url":"https://cdn.example/v.mp4"}}`)
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	rec := &recordedSleep{}
	g := New(testConfig(srv.URL), logging.Discard(), WithSleep(rec.sleep))

	job, err := g.Generate(context.Background(), "a selfie on a rooftop")
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, types.JobCompleted, job.Status)
	assert.Equal(t, "https://cdn.example/v.mp4", job.MediaURL)
	assert.Equal(t, []time.Duration{5 * time.Minute}, rec.calls)
	assert.Equal(t, int32(1), atomic.LoadInt32(&polls))
}

func TestGenerateWithoutRequestIDSkipsPoll(t *testing.T) {
	var gets int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			atomic.AddInt32(&gets, 1)
		}
		_, _ = io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	rec := &recordedSleep{}
	job, err := New(testConfig(srv.URL), logging.Discard(), WithSleep(rec.sleep)).
		Generate(context.Background(), "p")

	require.NoError(t, err)
	assert.Nil(t, job)
	assert.Empty(t, rec.calls, "no wait without a request id")
	assert.Zero(t, atomic.LoadInt32(&gets))
}

func TestGeneratePendingAfterSinglePoll(t *testing.T) {
	var polls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_, _ = io.WriteString(w, `{"request_id":"abc"}`)
			return
		}
		atomic.AddInt32(&polls, 1)
		_, _ = io.WriteString(w, `{"status":"IN_PROGRESS"}`)
	}))
	defer srv.Close()

	rec := &recordedSleep{}
	job, err := New(testConfig(srv.URL), logging.Discard(), WithSleep(rec.sleep)).
		Generate(context.Background(), "p")

	require.NoError(t, err)
	assert.Equal(t, types.JobPending, job.Status)
	assert.Empty(t, MediaURL(job))
	assert.Equal(t, int32(1), atomic.LoadInt32(&polls))
}

func TestGeneratePollsUntilCompleted(t *testing.T) {
	var polls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_, _ = io.WriteString(w, `{"request_id":"abc"}`)
			return
		}
		if atomic.AddInt32(&polls, 1) < 3 {
			_, _ = io.WriteString(w, `{"status":"IN_QUEUE"}`)
			return
		}
		_, _ = io.WriteString(w, `{"status":"completed","video":{"url":"https://cdn.example/done.mp4"}}`)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.VideoPollAttempts = 5
	cfg.VideoPollInterval = config.Seconds(10 * time.Second)
	rec := &recordedSleep{}

	job, err := New(cfg, logging.Discard(), WithSleep(rec.sleep)).Generate(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/done.mp4", job.MediaURL)
	assert.Equal(t, int32(3), atomic.LoadInt32(&polls))
	assert.Equal(t, []time.Duration{5 * time.Minute, 10 * time.Second, 10 * time.Second}, rec.calls)
}

func TestGenerateFailedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_, _ = io.WriteString(w, `{"request_id":"abc"}`)
			return
		}
		_, _ = io.WriteString(w, `{"status":"FAILED"}`)
	}))
	defer srv.Close()

	rec := &recordedSleep{}
	job, err := New(testConfig(srv.URL), logging.Discard(), WithSleep(rec.sleep)).Generate(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, types.JobOther, job.Status)
	assert.Equal(t, "FAILED", job.RawStatus)
	assert.Empty(t, job.MediaURL)
}

func TestGenerateClassifiesErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	job, err := New(testConfig(srv.URL), logging.Discard()).Generate(context.Background(), "p")
	assert.Nil(t, job)
	assert.ErrorIs(t, err, types.ErrNetwork)

	garbage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "<html>")
	}))
	defer garbage.Close()

	_, err = New(testConfig(garbage.URL), logging.Discard()).Generate(context.Background(), "p")
	assert.ErrorIs(t, err, types.ErrParse)
}

func TestSleepHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
	assert.NoError(t, Sleep(context.Background(), time.Millisecond))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, types.JobCompleted, Normalize("COMPLETED"))
	assert.Equal(t, types.JobPending, Normalize("IN_QUEUE"))
	assert.Equal(t, types.JobPending, Normalize("in_progress"))
	assert.Equal(t, types.JobOther, Normalize("ERROR"))
	assert.Equal(t, types.JobOther, Normalize(""))
}
