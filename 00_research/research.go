package research

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/vartanbeno/go-reddit/v2/reddit"

	"smallagents/config"
)

// ErrNoTopics is returned when no subreddit yielded a usable post
var ErrNoTopics = errors.New("no topics found from any subreddit")

// PostLister is the part of the Reddit API the scout needs
type PostLister interface {
	TopPosts(ctx context.Context, subreddit string, opts *reddit.ListPostOptions) ([]*reddit.Post, *reddit.Response, error)
}

// Candidate is a trending post that could seed a video topic
type Candidate struct {
	Title     string   `json:"title"`
	Subreddit string   `json:"subreddit"`
	Permalink string   `json:"permalink"`
	Score     int      `json:"score"`
	Comments  int      `json:"comments"`
	Keywords  []string `json:"keywords,omitempty"`
	Rank      int      `json:"rank"`
}

// Scout picks video topics from the top posts of a few subreddits
type Scout struct {
	posts PostLister
	cfg   config.ResearchConfig
	log   logrus.FieldLogger
}

// New creates a Scout using Reddit's read-only API
func New(cfg config.ResearchConfig, log logrus.FieldLogger) (*Scout, error) {
	client, err := reddit.NewReadonlyClient(reddit.WithUserAgent("smallagents/0.1.0"))
	if err != nil {
		return nil, fmt.Errorf("reddit client: %w", err)
	}
	return NewWithLister(client.Subreddit, cfg, log), nil
}

// NewWithLister creates a Scout on top of an existing lister
func NewWithLister(posts PostLister, cfg config.ResearchConfig, log logrus.FieldLogger) *Scout {
	return &Scout{posts: posts, cfg: cfg, log: log}
}

// Discover fetches, filters and ranks posts from every configured subreddit,
// best first. A subreddit that fails is skipped.
func (s *Scout) Discover(ctx context.Context) ([]Candidate, error) {
	s.log.WithField("subreddits", s.cfg.Subreddits).Info("Scouting topics")

	var candidates []Candidate
	for _, sub := range s.cfg.Subreddits {
		posts, _, err := s.posts.TopPosts(ctx, sub, &reddit.ListPostOptions{
			ListOptions: reddit.ListOptions{Limit: s.cfg.PostLimit},
			Time:        s.cfg.TimeWindow,
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.log.WithError(err).WithField("subreddit", sub).Warn("Reddit fetch failed")
			continue
		}

		n := 0
		for _, p := range posts {
			if p == nil || p.NSFW || p.Stickied || p.Score < s.cfg.MinScore || strings.TrimSpace(p.Title) == "" {
				continue
			}
			c := Candidate{
				Title:     strings.TrimSpace(p.Title),
				Subreddit: sub,
				Permalink: p.Permalink,
				Score:     p.Score,
				Comments:  p.NumberOfComments,
				Keywords:  s.keywords(p.Title + " " + p.Body),
			}
			c.Rank = rank(c)
			candidates = append(candidates, c)
			n++
		}
		s.log.WithField("subreddit", sub).Infof("r/%s: %d candidates", sub, n)
	}

	if len(candidates) == 0 {
		return nil, ErrNoTopics
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Rank > candidates[j].Rank
	})
	return candidates, nil
}

// Topic returns the title of the best ranked candidate
func (s *Scout) Topic(ctx context.Context) (string, error) {
	candidates, err := s.Discover(ctx)
	if err != nil {
		return "", err
	}
	best := candidates[0]
	s.log.WithFields(logrus.Fields{"rank": best.Rank, "subreddit": best.Subreddit}).
		Infof("✅ Selected topic: %q", best.Title)
	return best.Title, nil
}

// rank starts from the upvotes and rewards hook words and busy threads
func rank(c Candidate) int {
	r := c.Score + 50*len(c.Keywords)
	if c.Comments > 100 {
		r += 75
	}
	if c.Comments > 1000 {
		r += 75
	}
	return r
}

func (s *Scout) keywords(text string) []string {
	text = strings.ToLower(text)
	var found []string
	for _, kw := range s.cfg.HookKeywords {
		if containsWord(text, strings.ToLower(kw)) {
			found = append(found, kw)
		}
	}
	return found
}

// containsWord matches kw only on word boundaries so "ai" does not hit "said"
func containsWord(text, kw string) bool {
	if kw == "" {
		return false
	}
	for i := 0; ; {
		j := strings.Index(text[i:], kw)
		if j < 0 {
			return false
		}
		start, end := i+j, i+j+len(kw)
		if (start == 0 || !isWordByte(text[start-1])) && (end == len(text) || !isWordByte(text[end])) {
			return true
		}
		i = start + 1
	}
}

func isWordByte(b byte) bool {
	return b == '_' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}
