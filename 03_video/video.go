package video

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"smallagents/config"
	"smallagents/httpclient"
	"smallagents/types"
)

const step = "video_url"

// SleepFunc blocks for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default SleepFunc
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Option customizes a Generator
type Option func(*Generator)

// WithSleep replaces the wait between submit and poll
func WithSleep(fn SleepFunc) Option {
	return func(g *Generator) { g.sleep = fn }
}

// Generator submits prompts to the fal.ai Veo3 queue and collects the result
type Generator struct {
	client   *http.Client
	base     string
	apiKey   string
	wait     time.Duration
	attempts int
	interval time.Duration
	sleep    SleepFunc
	log      logrus.FieldLogger
}

// New creates a Generator for cfg.Endpoints.Fal
func New(cfg config.SocialVideoConfig, log logrus.FieldLogger, opts ...Option) *Generator {
	attempts := cfg.VideoPollAttempts
	if attempts < 1 {
		attempts = 1
	}
	g := &Generator{
		client: httpclient.New(httpclient.Options{
			Timeout: cfg.VideoTimeout.Duration(),
			Policy:  httpclient.Policy{MaxRetries: cfg.MaxRetries, BackoffFactor: cfg.BackoffFactor},
		}),
		base:     strings.TrimRight(cfg.Endpoints.Fal, "/") + "/fal-ai/veo3",
		apiKey:   cfg.Veo3APIKey,
		wait:     cfg.VideoWaitTime.Duration(),
		attempts: attempts,
		interval: cfg.VideoPollInterval.Duration(),
		sleep:    Sleep,
		log:      log,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Close releases idle connections
func (g *Generator) Close() error {
	g.client.CloseIdleConnections()
	return nil
}

type submitResponse struct {
	RequestID string `json:"request_id"`
}

type statusResponse struct {
	Status string `json:"status"`
	Video  struct {
		URL string `json:"url"`
	} `json:"video"`
}

// Generate submits prompt, waits for the configured time and polls for the
// result. A submit response without a request id is reported as (nil, nil)
// and nothing is polled. A job that is not completed after the last poll is
// returned without a media URL.
func (g *Generator) Generate(ctx context.Context, prompt string) (*types.VideoJob, error) {
	req, err := httpclient.NewJSONRequest(ctx, http.MethodPost, g.base, map[string]string{"prompt": prompt})
	if err != nil {
		return nil, types.NetworkError(step, err)
	}
	g.authorize(req)

	var submitted submitResponse
	if err := httpclient.DoJSON(g.client, req, step, &submitted); err != nil {
		return nil, err
	}
	if submitted.RequestID == "" {
		g.log.Warn("Video submit returned no request id")
		return nil, nil
	}

	job := &types.VideoJob{RequestID: submitted.RequestID, Status: types.JobPending}
	g.log.WithFields(logrus.Fields{
		"request_id": job.RequestID,
		"wait":       g.wait,
	}).Info("Video generation started, waiting before poll")

	if err := g.sleep(ctx, g.wait); err != nil {
		return job, types.NetworkError(step, fmt.Errorf("wait for video: %w", err))
	}

	for attempt := 1; ; attempt++ {
		if err := g.poll(ctx, job); err != nil {
			return job, err
		}
		if job.Status != types.JobPending || attempt >= g.attempts {
			break
		}
		g.log.WithField("attempt", attempt).Debug("Video still pending")
		if err := g.sleep(ctx, g.interval); err != nil {
			return job, types.NetworkError(step, fmt.Errorf("wait for video: %w", err))
		}
	}

	if job.Status == types.JobCompleted && job.MediaURL != "" {
		g.log.WithField("url", job.MediaURL).Info("✅ Video ready")
	} else {
		g.log.WithField("status", job.RawStatus).Warn("Video not ready")
	}
	return job, nil
}

func (g *Generator) poll(ctx context.Context, job *types.VideoJob) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.base+"/requests/"+url.PathEscape(job.RequestID), nil)
	if err != nil {
		return types.NetworkError(step, err)
	}
	g.authorize(req)

	var st statusResponse
	if err := httpclient.DoJSON(g.client, req, step, &st); err != nil {
		return err
	}
	job.RawStatus = st.Status
	job.Status = Normalize(st.Status)
	if job.Status == types.JobCompleted {
		job.MediaURL = st.Video.URL
	}
	return nil
}

func (g *Generator) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Key "+g.apiKey)
}

// Normalize maps the queue's status strings onto JobStatus
func Normalize(status string) types.JobStatus {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "completed":
		return types.JobCompleted
	case "in_queue", "in_progress", "pending":
		return types.JobPending
	default:
		return types.JobOther
	}
}

// MediaURL returns the job's URL, or "" when there is none
func MediaURL(job *types.VideoJob) string {
	if job == nil {
		return ""
	}
	return job.MediaURL
}
