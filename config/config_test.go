package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func clearSecrets(t *testing.T) {
	t.Helper()
	for _, k := range []string{"OPENAI_API_KEY", "BLOTATO_API_KEY", "VEO3_API_KEY",
		"YOUTUBE_CLIENT_ID", "YOUTUBE_CLIENT_SECRET", "YOUTUBE_REFRESH_TOKEN"} {
		t.Setenv(k, "")
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	clearSecrets(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	sv := cfg.Agents.SocialVideo
	assert.Equal(t, 3, sv.MaxRetries)
	assert.Equal(t, 5*time.Minute, sv.VideoWaitTime.Duration())
	assert.Equal(t, 1, sv.VideoPollAttempts)
	assert.Equal(t, 30*time.Second, sv.VideoTimeout.Duration())
	assert.Equal(t, time.Minute, sv.PostTimeout.Duration())
	assert.Equal(t, []string{"instagram", "youtube", "tiktok", "facebook"}, sv.DefaultPlatforms)
	assert.Empty(t, sv.OpenAIAPIKey)
	assert.Equal(t, 3, cfg.Agents.Search.ConcurrentSearches)
	assert.Equal(t, 30*time.Second, cfg.Agents.API.Timeout.Duration())
}

func TestLoadOverlaysYAML(t *testing.T) {
	clearSecrets(t)
	path := writeConfig(t, `
agents:
  social_video:
    openai_api_key: from-file
    video_wait_time: 1
    video_poll_interval: 250ms
    default_platforms: [instagram]
    social_accounts:
      instagram_id: ig-123
      pinterest_board_id: board-9
  api:
    base_url: https://api.example.com
    timeout: 60
    max_retries: 5
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	sv := cfg.Agents.SocialVideo
	assert.Equal(t, "from-file", sv.OpenAIAPIKey)
	assert.Equal(t, time.Second, sv.VideoWaitTime.Duration())
	assert.Equal(t, 250*time.Millisecond, sv.VideoPollInterval.Duration())
	assert.Equal(t, []string{"instagram"}, sv.DefaultPlatforms)
	assert.Equal(t, "board-9", sv.Accounts.PinterestBoardID)
	// untouched options keep their defaults
	assert.Equal(t, "gpt-4", sv.Model)

	assert.Equal(t, "https://api.example.com", cfg.Agents.API.BaseURL)
	assert.Equal(t, time.Minute, cfg.Agents.API.Timeout.Duration())
	assert.Equal(t, 5, cfg.Agents.API.MaxRetries)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	clearSecrets(t)
	t.Setenv("OPENAI_API_KEY", "from-env")
	t.Setenv("BLOTATO_API_KEY", "blotato-env")
	path := writeConfig(t, "agents:\n  social_video:\n    openai_api_key: from-file\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Agents.SocialVideo.OpenAIAPIKey)
	assert.Equal(t, "blotato-env", cfg.Agents.SocialVideo.BlotatoAPIKey)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	clearSecrets(t)
	tests := []struct {
		name string
		body string
	}{
		{"zero publish concurrency", "agents:\n  social_video:\n    publish_concurrency: 0\n"},
		{"zero poll attempts", "agents:\n  social_video:\n    video_poll_attempts: 0\n"},
		{"blank platform", "agents:\n  social_video:\n    default_platforms: [instagram, \"\"]\n"},
		{"bad log format", "logging:\n  format: xml\n"},
		{"bad duration", "agents:\n  social_video:\n    video_wait_time: soon\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestAccountID(t *testing.T) {
	accounts := Accounts{InstagramID: "ig-1", FacebookID: "fb-1", FacebookPageID: "page-1"}

	id, ok := accounts.AccountID("instagram")
	assert.True(t, ok)
	assert.Equal(t, "ig-1", id)

	_, ok = accounts.AccountID("youtube")
	assert.False(t, ok)

	_, ok = accounts.AccountID("myspace")
	assert.False(t, ok)

	// secondary ids are never treated as accounts
	_, ok = accounts.AccountID("facebook_page")
	assert.False(t, ok)
}

func TestExampleFillsEveryAccount(t *testing.T) {
	cfg := Example()
	sv := cfg.Agents.SocialVideo

	assert.Equal(t, "your-openai-api-key-here", sv.OpenAIAPIKey)
	assert.Equal(t, "your-blotato-api-key-here", sv.BlotatoAPIKey)
	assert.Equal(t, "your-veo3-api-key-here", sv.Veo3APIKey)
	for _, p := range []string{"instagram", "youtube", "threads", "tiktok", "facebook",
		"twitter", "linkedin", "pinterest", "bluesky"} {
		_, ok := sv.Accounts.AccountID(p)
		assert.True(t, ok, p)
	}
	assert.NotEmpty(t, sv.Accounts.FacebookPageID)
	assert.NotEmpty(t, sv.Accounts.PinterestBoardID)
	assert.NoError(t, cfg.Validate())
}

func TestYouTubeEnabled(t *testing.T) {
	assert.False(t, YouTubeConfig{ClientID: "id"}.Enabled())
	assert.True(t, YouTubeConfig{ClientID: "id", ClientSecret: "s", RefreshToken: "r"}.Enabled())
}
