package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"smallagents/config"
	"smallagents/httpclient"
	"smallagents/types"
)

// inserter is the part of the YouTube Data API the poster uses
type inserter interface {
	Insert(ctx context.Context, video *youtube.Video, media io.Reader) (*youtube.Video, error)
}

type serviceInserter struct {
	svc *youtube.Service
}

func (s serviceInserter) Insert(ctx context.Context, video *youtube.Video, media io.Reader) (*youtube.Video, error) {
	return s.svc.Videos.Insert([]string{"snippet", "status"}, video).
		NotifySubscribers(false).
		Media(media).
		Context(ctx).
		Do()
}

// YouTube uploads directly through the YouTube Data API v3. The video is
// streamed from the post's media URL.
type YouTube struct {
	videos   inserter
	download *http.Client
	cfg      config.YouTubeConfig
	log      logrus.FieldLogger
}

// NewYouTube authenticates with the refresh token in cfg.YouTube
func NewYouTube(ctx context.Context, cfg config.SocialVideoConfig, log logrus.FieldLogger) (*YouTube, error) {
	yt := cfg.YouTube
	if !yt.Enabled() {
		return nil, fmt.Errorf("youtube auth: %w: client id, client secret and refresh token are required", types.ErrConfiguration)
	}

	conf := &oauth2.Config{
		ClientID:     yt.ClientID,
		ClientSecret: yt.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{youtube.YoutubeUploadScope},
	}
	token := &oauth2.Token{
		RefreshToken: yt.RefreshToken,
		Expiry:       time.Now().Add(-time.Hour), // force refresh
	}

	svc, err := youtube.NewService(ctx, option.WithHTTPClient(conf.Client(ctx, token)))
	if err != nil {
		return nil, fmt.Errorf("youtube service: %w", err)
	}
	return newYouTube(serviceInserter{svc: svc}, cfg, log), nil
}

func newYouTube(videos inserter, cfg config.SocialVideoConfig, log logrus.FieldLogger) *YouTube {
	return &YouTube{
		videos: videos,
		download: httpclient.New(httpclient.Options{
			Timeout: cfg.PostTimeout.Duration(),
			Policy:  httpclient.Policy{MaxRetries: cfg.MaxRetries, BackoffFactor: cfg.BackoffFactor},
			Headers: http.Header{"Accept": {"*/*"}},
		}),
		cfg: cfg.YouTube,
		log: log,
	}
}

// Publish uploads the post's video with its caption as the description
func (y *YouTube) Publish(ctx context.Context, p Post) types.PublishResult {
	log := y.log.WithField("platform", p.Platform)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.MediaURL, nil)
	if err != nil {
		return failed(p.Platform, types.NetworkError(step, err))
	}
	resp, err := y.download.Do(req)
	if err != nil {
		return failed(p.Platform, types.NetworkError(step, fmt.Errorf("download video: %w", err)))
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return failed(p.Platform, types.NetworkError(step, &types.StatusError{Code: resp.StatusCode}))
	}

	title := p.Title
	if title == "" {
		title = DefaultTitle
	}
	privacy := y.cfg.PrivacyStatus
	if privacy == "" {
		privacy = "unlisted"
	}
	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       title,
			Description: p.Caption,
			CategoryId:  y.cfg.CategoryID,
		},
		Status: &youtube.VideoStatus{PrivacyStatus: privacy},
	}

	log.WithField("title", title).Info("Uploading to YouTube")
	uploaded, err := y.videos.Insert(ctx, video, resp.Body)
	if err != nil {
		log.WithError(err).Warn("❌ YouTube upload failed")
		return failed(p.Platform, types.NetworkError(step, fmt.Errorf("youtube upload: %w", err)))
	}

	out, _ := json.Marshal(map[string]string{
		"id":  uploaded.Id,
		"url": "https://www.youtube.com/watch?v=" + uploaded.Id,
	})
	log.WithField("video_id", uploaded.Id).Info("✅ Uploaded to YouTube")
	return types.PublishResult{Platform: p.Platform, Success: true, Response: out}
}
