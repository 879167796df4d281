package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"smallagents/config"
	"smallagents/httpclient"
	"smallagents/types"
)

const step = "social_posts"

// DefaultTitle is used for platforms that need a title when the post has none
const DefaultTitle = "Auto-generated Video"

// Post is one piece of content for one platform
type Post struct {
	Platform string
	MediaURL string
	Caption  string
	Title    string
}

// Poster publishes a post. Failures are reported in the result, never as panics.
type Poster interface {
	Publish(ctx context.Context, p Post) types.PublishResult
}

// Blotato posts through the Blotato v2 API
type Blotato struct {
	client   *http.Client
	endpoint string
	apiKey   string
	accounts config.Accounts
	log      logrus.FieldLogger
}

// NewBlotato creates a Blotato poster for cfg.Endpoints.Blotato
func NewBlotato(cfg config.SocialVideoConfig, log logrus.FieldLogger) *Blotato {
	return &Blotato{
		client: httpclient.New(httpclient.Options{
			Timeout: cfg.PostTimeout.Duration(),
			Policy:  httpclient.Policy{MaxRetries: cfg.MaxRetries, BackoffFactor: cfg.BackoffFactor},
		}),
		endpoint: strings.TrimRight(cfg.Endpoints.Blotato, "/") + "/v2/posts",
		apiKey:   cfg.BlotatoAPIKey,
		accounts: cfg.Accounts,
		log:      log,
	}
}

// Close releases idle connections
func (b *Blotato) Close() error {
	b.client.CloseIdleConnections()
	return nil
}

type postRequest struct {
	Post postBody `json:"post"`
}

type postBody struct {
	AccountID string            `json:"accountId"`
	Target    map[string]string `json:"target"`
	Content   postContent       `json:"content"`
}

type postContent struct {
	Text      string   `json:"text"`
	Platform  string   `json:"platform"`
	MediaURLs []string `json:"mediaUrls"`
}

// Publish posts p to its platform. A platform without a configured account
// fails immediately and makes no request.
func (b *Blotato) Publish(ctx context.Context, p Post) types.PublishResult {
	log := b.log.WithField("platform", p.Platform)

	accountID, ok := b.accounts.AccountID(p.Platform)
	if !ok {
		log.Warn("No account configured")
		return types.PublishResult{Platform: p.Platform, Error: "no account id for " + p.Platform}
	}

	body := postRequest{Post: postBody{
		AccountID: accountID,
		Target:    TargetConfig(p.Platform, p.Title, b.accounts),
		Content: postContent{
			Text:      p.Caption,
			Platform:  p.Platform,
			MediaURLs: []string{p.MediaURL},
		},
	}}
	req, err := httpclient.NewJSONRequest(ctx, http.MethodPost, b.endpoint, body)
	if err != nil {
		return failed(p.Platform, err)
	}
	req.Header.Set("blotato-api-key", b.apiKey)

	var resp json.RawMessage
	if err := httpclient.DoJSON(b.client, req, step, &resp); err != nil {
		log.WithError(err).Warn("❌ Post failed")
		return failed(p.Platform, err)
	}

	log.Info("✅ Posted")
	return types.PublishResult{Platform: p.Platform, Success: true, Response: resp}
}

func failed(platform string, err error) types.PublishResult {
	return types.PublishResult{Platform: platform, Error: err.Error()}
}

// TargetConfig returns the Blotato target for platform. Values are strings
// because that is what the API accepts for the boolean-like flags.
func TargetConfig(platform, title string, accounts config.Accounts) map[string]string {
	switch platform {
	case "youtube":
		if title == "" {
			title = DefaultTitle
		}
		return map[string]string{
			"targetType":              "youtube",
			"title":                   title,
			"privacyStatus":           "unlisted",
			"shouldNotifySubscribers": "false",
		}
	case "tiktok":
		return map[string]string{
			"targetType":       "tiktok",
			"isYourBrand":      "false",
			"disabledDuet":     "false",
			"privacyLevel":     "PUBLIC_TO_EVERYONE",
			"isAiGenerated":    "true",
			"disabledStitch":   "false",
			"disabledComments": "false",
			"isBrandedContent": "false",
		}
	case "facebook":
		return map[string]string{"targetType": "facebook", "pageId": accounts.FacebookPageID}
	case "pinterest":
		return map[string]string{"targetType": "pinterest", "boardId": accounts.PinterestBoardID}
	default:
		// instagram, threads, twitter, linkedin, bluesky and anything unknown
		return map[string]string{"targetType": platform}
	}
}

// Router sends each platform to its own Poster, falling back to Default
type Router struct {
	Default   Poster
	Platforms map[string]Poster
}

// Publish dispatches p to the poster registered for its platform
func (r *Router) Publish(ctx context.Context, p Post) types.PublishResult {
	if poster, ok := r.Platforms[p.Platform]; ok {
		return poster.Publish(ctx, p)
	}
	return r.Default.Publish(ctx, p)
}

// Close closes every poster that holds connections
func (r *Router) Close() error {
	posters := []Poster{r.Default}
	for _, p := range r.Platforms {
		posters = append(posters, p)
	}
	for _, p := range posters {
		if c, ok := p.(io.Closer); ok {
			_ = c.Close()
		}
	}
	return nil
}

// All publishes every post with at most limit in flight. The results are in
// the same order as posts regardless of completion order. A panicking poster
// leaves a failed result for its platform and is reported as the error.
func All(ctx context.Context, poster Poster, posts []Post, limit int) (types.PostResults, error) {
	results := make(types.PostResults, len(posts))
	if limit < 1 {
		limit = 1
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for i, p := range posts {
		i, p := i, p
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("publish to %s panicked: %v", p.Platform, r)
					results[i] = types.PublishResult{Platform: p.Platform, Error: err.Error()}
				}
			}()
			results[i] = poster.Publish(ctx, p)
			return nil
		})
	}
	return results, g.Wait()
}
