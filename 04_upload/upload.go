package upload

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"smallagents/config"
	"smallagents/httpclient"
	"smallagents/types"
)

const step = "blotato_media_url"

// Uploader re-hosts a video on Blotato so it can be attached to posts
type Uploader struct {
	client   *http.Client
	endpoint string
	apiKey   string
	log      logrus.FieldLogger
}

// New creates an Uploader for cfg.Endpoints.Blotato
func New(cfg config.SocialVideoConfig, log logrus.FieldLogger) *Uploader {
	return &Uploader{
		client: httpclient.New(httpclient.Options{
			Timeout: cfg.PostTimeout.Duration(),
			Policy:  httpclient.Policy{MaxRetries: cfg.MaxRetries, BackoffFactor: cfg.BackoffFactor},
		}),
		endpoint: strings.TrimRight(cfg.Endpoints.Blotato, "/") + "/v2/media",
		apiKey:   cfg.BlotatoAPIKey,
		log:      log,
	}
}

// Close releases idle connections
func (u *Uploader) Close() error {
	u.client.CloseIdleConnections()
	return nil
}

// Upload hands videoURL to Blotato and returns the hosted media URL. A
// response without a url is reported as ("", nil).
func (u *Uploader) Upload(ctx context.Context, videoURL string) (string, error) {
	u.log.WithField("video_url", videoURL).Info("Uploading video to Blotato")

	form := url.Values{"url": {videoURL}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", types.NetworkError(step, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("blotato-api-key", u.apiKey)

	var out struct {
		URL string `json:"url"`
	}
	if err := httpclient.DoJSON(u.client, req, step, &out); err != nil {
		u.log.WithError(err).Warn("Blotato upload failed")
		return "", err
	}
	if out.URL == "" {
		u.log.Warn("Blotato returned no media url")
		return "", nil
	}

	u.log.WithField("media_url", out.URL).Info("✅ Media uploaded")
	return out.URL, nil
}
