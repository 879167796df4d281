package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	OutputDir string         `yaml:"output_dir"`
	Logging   LoggingConfig  `yaml:"logging"`
	Tracing   TracingConfig  `yaml:"tracing"`
	Agents    AgentsConfig   `yaml:"agents"`
	Research  ResearchConfig `yaml:"research"`
}

type AgentsConfig struct {
	Search      SearchConfig      `yaml:"search"`
	API         APIConfig         `yaml:"api"`
	SocialVideo SocialVideoConfig `yaml:"social_video"`
}

type LoggingConfig struct {
	Level      string `yaml:"level" validate:"oneof=trace debug info warn warning error fatal panic"`
	Format     string `yaml:"format" validate:"oneof=text json"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `yaml:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `yaml:"max_age_days" validate:"gte=0"`
	Compress   bool   `yaml:"compress"`
}

type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

type SearchConfig struct {
	ConcurrentSearches int      `yaml:"concurrent_searches" validate:"gte=1"`
	LookupDelay        Seconds  `yaml:"lookup_delay" validate:"gte=0"`
	Corpus             []string `yaml:"corpus"`
}

type APIConfig struct {
	BaseURL       string  `yaml:"base_url"`
	Timeout       Seconds `yaml:"timeout" validate:"gt=0"`
	MaxRetries    int     `yaml:"max_retries" validate:"gte=0"`
	BackoffFactor float64 `yaml:"backoff_factor" validate:"gte=0"`
	UserAgent     string  `yaml:"user_agent"`
}

type SocialVideoConfig struct {
	OpenAIAPIKey  string `yaml:"openai_api_key"`
	BlotatoAPIKey string `yaml:"blotato_api_key"`
	Veo3APIKey    string `yaml:"veo3_api_key"`

	Accounts Accounts `yaml:"social_accounts"`

	Model               string   `yaml:"model" validate:"required"`
	ConceptTemperature  float32  `yaml:"concept_temperature" validate:"gte=0,lte=2"`
	PromptTemperature   float32  `yaml:"prompt_temperature" validate:"gte=0,lte=2"`
	EnforcePromptLength bool     `yaml:"enforce_prompt_length"`
	MaxRetries          int      `yaml:"max_retries" validate:"gte=0"`
	BackoffFactor       float64  `yaml:"backoff_factor" validate:"gte=0"`
	LLMTimeout          Seconds  `yaml:"llm_timeout" validate:"gt=0"`
	PostTimeout         Seconds  `yaml:"post_timeout" validate:"gt=0"`
	VideoTimeout        Seconds  `yaml:"video_timeout" validate:"gt=0"`
	VideoWaitTime       Seconds  `yaml:"video_wait_time" validate:"gte=0"`
	VideoPollAttempts   int      `yaml:"video_poll_attempts" validate:"gte=1"`
	VideoPollInterval   Seconds  `yaml:"video_poll_interval" validate:"gte=0"`
	DemoVideoURL        string   `yaml:"demo_video_url" validate:"required,url"`
	DefaultPlatforms    []string `yaml:"default_platforms" validate:"dive,required"`
	PublishConcurrency  int      `yaml:"publish_concurrency" validate:"gte=1"`

	Endpoints Endpoints     `yaml:"endpoints"`
	YouTube   YouTubeConfig `yaml:"youtube"`
}

type Endpoints struct {
	OpenAI  string `yaml:"openai" validate:"required,url"`
	Fal     string `yaml:"fal" validate:"required,url"`
	Blotato string `yaml:"blotato" validate:"required,url"`
}

// YouTubeConfig enables direct uploads through the YouTube Data API instead of Blotato
type YouTubeConfig struct {
	ClientID      string `yaml:"client_id"`
	ClientSecret  string `yaml:"client_secret"`
	RefreshToken  string `yaml:"refresh_token"`
	PrivacyStatus string `yaml:"privacy_status" validate:"omitempty,oneof=public private unlisted"`
	CategoryID    string `yaml:"category_id"`
}

// Enabled reports whether all OAuth credentials are present
func (y YouTubeConfig) Enabled() bool {
	return y.ClientID != "" && y.ClientSecret != "" && y.RefreshToken != ""
}

type ResearchConfig struct {
	Subreddits   []string `yaml:"subreddits"`
	HookKeywords []string `yaml:"hook_keywords"`
	PostLimit    int      `yaml:"post_limit" validate:"gte=1,lte=100"`
	TimeWindow   string   `yaml:"time_window" validate:"oneof=hour day week month year all"`
	MinScore     int      `yaml:"min_score" validate:"gte=0"`
}

// Accounts maps each platform to its posting account. The two secondary ids are
// needed only by facebook and pinterest.
type Accounts struct {
	InstagramID      string `yaml:"instagram_id"`
	YouTubeID        string `yaml:"youtube_id"`
	ThreadsID        string `yaml:"threads_id"`
	TikTokID         string `yaml:"tiktok_id"`
	FacebookID       string `yaml:"facebook_id"`
	FacebookPageID   string `yaml:"facebook_page_id"`
	TwitterID        string `yaml:"twitter_id"`
	LinkedInID       string `yaml:"linkedin_id"`
	PinterestID      string `yaml:"pinterest_id"`
	PinterestBoardID string `yaml:"pinterest_board_id"`
	BlueskyID        string `yaml:"bluesky_id"`
}

// AccountID returns the account configured for platform
func (a Accounts) AccountID(platform string) (string, bool) {
	var id string
	switch platform {
	case "instagram":
		id = a.InstagramID
	case "youtube":
		id = a.YouTubeID
	case "threads":
		id = a.ThreadsID
	case "tiktok":
		id = a.TikTokID
	case "facebook":
		id = a.FacebookID
	case "twitter":
		id = a.TwitterID
	case "linkedin":
		id = a.LinkedInID
	case "pinterest":
		id = a.PinterestID
	case "bluesky":
		id = a.BlueskyID
	}
	return id, id != ""
}

// secrets are read from the environment and win over the YAML file
type secrets struct {
	OpenAIAPIKey        string `env:"OPENAI_API_KEY"`
	BlotatoAPIKey       string `env:"BLOTATO_API_KEY"`
	Veo3APIKey          string `env:"VEO3_API_KEY"`
	YouTubeClientID     string `env:"YOUTUBE_CLIENT_ID"`
	YouTubeClientSecret string `env:"YOUTUBE_CLIENT_SECRET"`
	YouTubeRefreshToken string `env:"YOUTUBE_REFRESH_TOKEN"`
}

// Default returns a Config with every option set to its documented default
func Default() *Config {
	return &Config{
		OutputDir: "",
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  50,
			MaxBackups: 5,
			MaxAgeDays: 28,
		},
		Tracing: TracingConfig{ServiceName: "smallagents"},
		Agents: AgentsConfig{
			Search: SearchConfig{
				ConcurrentSearches: 3,
				LookupDelay:        Seconds(10 * time.Millisecond),
			},
			API: APIConfig{
				Timeout:       Seconds(30 * time.Second),
				MaxRetries:    3,
				BackoffFactor: 0.3,
				UserAgent:     "SmallAgents/0.1.0",
			},
			SocialVideo: SocialVideoConfig{
				Model:              "gpt-4",
				ConceptTemperature: 0.8,
				PromptTemperature:  0.7,
				MaxRetries:         3,
				BackoffFactor:      0.3,
				LLMTimeout:         Seconds(30 * time.Second),
				PostTimeout:        Seconds(60 * time.Second),
				VideoTimeout:       Seconds(30 * time.Second),
				VideoWaitTime:      Seconds(5 * time.Minute),
				VideoPollAttempts:  1,
				VideoPollInterval:  Seconds(30 * time.Second),
				DemoVideoURL:       "https://commondatastorage.googleapis.com/gtv-videos-bucket/sample/BigBuckBunny.mp4",
				DefaultPlatforms:   []string{"instagram", "youtube", "tiktok", "facebook"},
				PublishConcurrency: 1,
				Endpoints: Endpoints{
					OpenAI:  "https://api.openai.com/v1",
					Fal:     "https://queue.fal.run",
					Blotato: "https://backend.blotato.com",
				},
				YouTube: YouTubeConfig{PrivacyStatus: "unlisted", CategoryID: "22"},
			},
		},
		Research: ResearchConfig{
			Subreddits:   []string{"BeAmazed", "Damnthatsinteresting"},
			HookKeywords: []string{"robot", "ai", "future", "insane", "record", "first", "secret", "viral"},
			PostLimit:    25,
			TimeWindow:   "day",
		},
	}
}

// Example mirrors a filled-in config with placeholder credentials
func Example() *Config {
	cfg := Default()
	sv := &cfg.Agents.SocialVideo
	sv.OpenAIAPIKey = "your-openai-api-key-here"
	sv.BlotatoAPIKey = "your-blotato-api-key-here"
	sv.Veo3APIKey = "your-veo3-api-key-here"
	sv.Accounts = Accounts{
		InstagramID:      "your-instagram-account-id",
		YouTubeID:        "your-youtube-account-id",
		ThreadsID:        "your-threads-account-id",
		TikTokID:         "your-tiktok-account-id",
		FacebookID:       "your-facebook-account-id",
		FacebookPageID:   "your-facebook-page-id",
		TwitterID:        "your-twitter-account-id",
		LinkedInID:       "your-linkedin-account-id",
		PinterestID:      "your-pinterest-account-id",
		PinterestBoardID: "your-pinterest-board-id",
		BlueskyID:        "your-bluesky-account-id",
	}
	sv.DefaultPlatforms = []string{"instagram", "youtube", "tiktok"}
	return cfg
}

// Load reads config.yaml (if present), applies .env and environment overrides and
// validates the result. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	// .env is optional, CI injects secrets directly
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	var s secrets
	if err := env.Parse(&s); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	sv := &c.Agents.SocialVideo
	override(&sv.OpenAIAPIKey, s.OpenAIAPIKey)
	override(&sv.BlotatoAPIKey, s.BlotatoAPIKey)
	override(&sv.Veo3APIKey, s.Veo3APIKey)
	override(&sv.YouTube.ClientID, s.YouTubeClientID)
	override(&sv.YouTube.ClientSecret, s.YouTubeClientSecret)
	override(&sv.YouTube.RefreshToken, s.YouTubeRefreshToken)
	return nil
}

func override(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

// Validate checks every option against its declared constraints
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
