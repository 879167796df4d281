// Package workflow chains the pipeline stages into one social video run.
package workflow

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	concept "smallagents/01_concept"
	prompt "smallagents/02_prompt"
	video "smallagents/03_video"
	upload "smallagents/04_upload"
	publish "smallagents/05_publish"
	"smallagents/config"
	"smallagents/llm"
	"smallagents/tracing"
	"smallagents/types"
)

// DefaultTopic is the topic used when the caller does not pick one
const DefaultTopic = "amazing technology"

// ConceptGenerator produces the concept for a topic. It returns a usable
// concept even when it also returns an error.
type ConceptGenerator interface {
	Generate(ctx context.Context, topic string) (*types.Concept, error)
}

// PromptComposer produces the video prompt. It returns a usable prompt even
// when it also returns an error.
type PromptComposer interface {
	Compose(ctx context.Context, idea, environment string) (string, error)
}

// VideoGenerator turns a prompt into a video job, or nil when there is none
type VideoGenerator interface {
	Generate(ctx context.Context, prompt string) (*types.VideoJob, error)
}

// MediaUploader re-hosts a video, returning "" when there is no result
type MediaUploader interface {
	Upload(ctx context.Context, videoURL string) (string, error)
}

// Stages are the collaborators of a Workflow
type Stages struct {
	Concept ConceptGenerator
	Prompt  PromptComposer
	Video   VideoGenerator
	Upload  MediaUploader
	Poster  publish.Poster
}

// Option customizes a Workflow
type Option func(*Workflow)

// WithTracer sets the tracer used for step spans
func WithTracer(t trace.Tracer) Option {
	return func(w *Workflow) { w.tracer = t }
}

// Workflow runs concept, prompt, video, upload and publish in order
type Workflow struct {
	cfg    config.SocialVideoConfig
	stages Stages
	tracer trace.Tracer
	log    logrus.FieldLogger

	// closers owned by the workflow but not reachable through a stage
	closers   []io.Closer
	closeOnce sync.Once
}

// New creates a Workflow from explicit stages
func New(cfg config.SocialVideoConfig, stages Stages, log logrus.FieldLogger, opts ...Option) *Workflow {
	w := &Workflow{cfg: cfg, stages: stages, tracer: tracing.Tracer(), log: log}
	for _, o := range opts {
		o(w)
	}
	return w
}

// FromConfig wires the production stages. YouTube posts go straight to the
// YouTube Data API when OAuth credentials are configured, everything else
// goes through Blotato.
func FromConfig(ctx context.Context, cfg config.SocialVideoConfig, log logrus.FieldLogger, opts ...Option) (*Workflow, error) {
	completer := llm.NewOpenAI(cfg)

	var poster publish.Poster = publish.NewBlotato(cfg, log.WithField("stage", "publish"))
	if cfg.YouTube.Enabled() {
		yt, err := publish.NewYouTube(ctx, cfg, log.WithField("stage", "youtube"))
		if err != nil {
			return nil, err
		}
		poster = &publish.Router{Default: poster, Platforms: map[string]publish.Poster{"youtube": yt}}
	}

	w := New(cfg, Stages{
		Concept: concept.New(cfg, completer, log.WithField("stage", "concept")),
		Prompt:  prompt.New(cfg, completer, log.WithField("stage", "prompt")),
		Video:   video.New(cfg, log.WithField("stage", "video")),
		Upload:  upload.New(cfg, log.WithField("stage", "upload")),
		Poster:  poster,
	}, log, opts...)
	w.closers = append(w.closers, completer)
	return w, nil
}

// Info describes the agent. Credentials are masked.
func (w *Workflow) Info() types.AgentInfo {
	cfg := w.cfg
	cfg.OpenAIAPIKey = mask(cfg.OpenAIAPIKey)
	cfg.BlotatoAPIKey = mask(cfg.BlotatoAPIKey)
	cfg.Veo3APIKey = mask(cfg.Veo3APIKey)
	cfg.YouTube.ClientSecret = mask(cfg.YouTube.ClientSecret)
	cfg.YouTube.RefreshToken = mask(cfg.YouTube.RefreshToken)
	return types.AgentInfo{Name: "SocialMediaVideoAgent", Config: cfg}
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}

// Close releases the stages' idle connections. Safe to call more than once.
func (w *Workflow) Close() error {
	w.closeOnce.Do(func() {
		for _, s := range []any{w.stages.Concept, w.stages.Prompt, w.stages.Video, w.stages.Upload, w.stages.Poster} {
			if c, ok := s.(io.Closer); ok {
				_ = c.Close()
			}
		}
		for _, c := range w.closers {
			_ = c.Close()
		}
	})
	return nil
}

// Validate checks Run's arguments without touching the network. Platforms
// must be unique since the report keys results by platform name.
func Validate(topic string, platforms []string) error {
	if !utf8.ValidString(topic) {
		return types.ValidationError("workflow.run", "topic is not valid UTF-8")
	}
	seen := make(map[string]bool, len(platforms))
	for i, p := range platforms {
		if strings.TrimSpace(p) == "" {
			return types.ValidationError("workflow.run", "platform %d is blank", i)
		}
		if !utf8.ValidString(p) {
			return types.ValidationError("workflow.run", "platform %d is not valid UTF-8", i)
		}
		if seen[p] {
			return types.ValidationError("workflow.run", "platform %q is listed more than once", p)
		}
		seen[p] = true
	}
	return nil
}

// Run executes the full pipeline for topic and posts to platforms. The topic
// is used as given, an empty one included. A nil or empty platforms slice
// means the configured default platforms. The only error returned is a
// validation error, reported before any request is made. Everything else,
// including a panic in a stage, ends up in the report.
func (w *Workflow) Run(ctx context.Context, topic string, platforms []string) (report *types.WorkflowReport, err error) {
	if err := Validate(topic, platforms); err != nil {
		return nil, err
	}
	if len(platforms) == 0 {
		platforms = append([]string(nil), w.cfg.DefaultPlatforms...)
	}

	start := time.Now()
	report = &types.WorkflowReport{
		RunID:     uuid.NewString()[:8],
		Topic:     topic,
		Platforms: platforms,
		StartedAt: start.UTC(),
	}
	log := w.log.WithField("run_id", report.RunID)

	ctx, span := w.tracer.Start(ctx, "social_video.run", trace.WithAttributes(
		attribute.String("run_id", report.RunID),
		attribute.String("topic", topic),
		attribute.StringSlice("platforms", platforms),
	))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			report.Error = fmt.Sprint(r)
			report.Success = false
			report.ExecutionTime = time.Since(start)
			span.SetStatus(codes.Error, report.Error)
			log.WithField("panic", r).Error("❌ Workflow failed")
		}
	}()

	log.WithField("topic", topic).Info("Step 1: Generating video concept")
	c := w.concept(ctx, topic)
	report.Steps.Concept = c

	log.Info("Step 2: Creating Veo3 prompt")
	p := w.prompt(ctx, c)
	report.Steps.Veo3Prompt = &p

	log.Info("Step 3: Generating video")
	videoURL := w.video(ctx, p)
	report.Steps.VideoURL = &videoURL

	log.Info("Step 4: Uploading video")
	mediaURL := w.upload(ctx, videoURL)
	report.Steps.BlotatoMediaURL = &mediaURL

	log.WithField("platforms", len(platforms)).Info("Step 5: Posting to social platforms")
	posts := make([]publish.Post, len(platforms))
	for i, pl := range platforms {
		posts[i] = publish.Post{Platform: pl, MediaURL: mediaURL, Caption: c.Caption, Title: c.Idea}
	}
	results, perr := w.publish(ctx, posts)
	report.SocialPosts = results
	if perr != nil {
		report.Error = perr.Error()
	}

	report.SuccessfulPosts = results.Successful()
	report.TotalPlatforms = len(platforms)
	report.Success = report.SuccessfulPosts > 0
	report.ExecutionTime = time.Since(start)

	span.SetAttributes(attribute.Int("successful_posts", report.SuccessfulPosts))
	log.WithFields(logrus.Fields{
		"successful": report.SuccessfulPosts,
		"total":      report.TotalPlatforms,
		"elapsed":    report.ExecutionTime.Round(time.Millisecond),
	}).Info("🎉 Workflow completed")
	return report, nil
}

func (w *Workflow) concept(ctx context.Context, topic string) *types.Concept {
	ctx, span := w.tracer.Start(ctx, "concept")
	defer span.End()

	c, err := w.stages.Concept.Generate(ctx, topic)
	if c == nil {
		c = concept.Fallback(topic)
		if err != nil {
			c.Error = "Failed to generate concept: " + err.Error()
		}
	}
	if err != nil || c.Fallback() {
		fail(span, err)
		span.SetAttributes(attribute.Bool("fallback", true))
		w.log.WithField("error", c.Error).Warn("⚠️ Concept generation had issues")
	}
	return c
}

func (w *Workflow) prompt(ctx context.Context, c *types.Concept) string {
	ctx, span := w.tracer.Start(ctx, "veo3_prompt")
	defer span.End()

	p, err := w.stages.Prompt.Compose(ctx, c.Idea, c.Environment)
	if p == "" {
		p = prompt.Fallback(c.Environment)
	}
	if err != nil {
		fail(span, err)
		span.SetAttributes(attribute.Bool("fallback", true))
	}
	return p
}

func (w *Workflow) video(ctx context.Context, p string) string {
	ctx, span := w.tracer.Start(ctx, "video_url")
	defer span.End()

	job, err := w.stages.Video.Generate(ctx, p)
	if err != nil {
		fail(span, err)
	}
	if job != nil {
		span.SetAttributes(attribute.String("request_id", job.RequestID), attribute.String("status", string(job.Status)))
	}
	if u := video.MediaURL(job); u != "" {
		return u
	}
	span.SetAttributes(attribute.Bool("fallback", true))
	w.log.Warn("⚠️ Using demo video URL")
	return w.cfg.DemoVideoURL
}

func (w *Workflow) upload(ctx context.Context, videoURL string) string {
	ctx, span := w.tracer.Start(ctx, "blotato_media_url")
	defer span.End()

	u, err := w.stages.Upload.Upload(ctx, videoURL)
	if err != nil {
		fail(span, err)
	}
	if u != "" {
		return u
	}
	span.SetAttributes(attribute.Bool("fallback", true))
	w.log.Warn("⚠️ Using original video URL")
	return videoURL
}

func (w *Workflow) publish(ctx context.Context, posts []publish.Post) (types.PostResults, error) {
	ctx, span := w.tracer.Start(ctx, "social_posts")
	defer span.End()

	results, err := publish.All(ctx, w.stages.Poster, posts, w.cfg.PublishConcurrency)
	for _, r := range results {
		if r.Success {
			w.log.WithField("platform", r.Platform).Info("✅ Posted successfully")
		} else {
			w.log.WithField("platform", r.Platform).Warn("❌ " + r.Error)
		}
	}
	if err != nil {
		fail(span, err)
	}
	span.SetAttributes(attribute.Int("successful_posts", results.Successful()))
	return results, err
}

func fail(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
