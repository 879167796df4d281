package types

import (
	"bytes"
	"encoding/json"
	"time"
)

// ProductionStatus is the only status a Concept may carry
const ProductionStatus = "for production"

// Concept is the short-form idea that drives one pipeline run
type Concept struct {
	Caption     string `json:"caption" validate:"required"`
	Idea        string `json:"idea" validate:"required"`
	Environment string `json:"environment" validate:"required"`
	Status      string `json:"status" validate:"production_status"`
	Error       string `json:"error,omitempty"`
}

// Fallback reports whether the concept was built locally after a failed generation
func (c *Concept) Fallback() bool {
	return c.Error != ""
}

// JobStatus is the normalized state of a video generation request
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobCompleted JobStatus = "completed"
	JobOther     JobStatus = "other"
)

// VideoJob tracks one submitted video generation request
type VideoJob struct {
	RequestID string    `json:"request_id"`
	Status    JobStatus `json:"status"`
	RawStatus string    `json:"raw_status,omitempty"`
	MediaURL  string    `json:"media_url,omitempty"`
}

// PublishResult is the outcome of posting to a single platform
type PublishResult struct {
	Platform string          `json:"platform"`
	Success  bool            `json:"success"`
	Error    string          `json:"error,omitempty"`
	Response json.RawMessage `json:"response,omitempty"`
}

// PostResults keeps publish results in request order
type PostResults []PublishResult

// Get returns the result recorded for platform
func (p PostResults) Get(platform string) (PublishResult, bool) {
	for _, r := range p {
		if r.Platform == platform {
			return r, true
		}
	}
	return PublishResult{}, false
}

// Successful counts results with Success set
func (p PostResults) Successful() int {
	n := 0
	for _, r := range p {
		if r.Success {
			n++
		}
	}
	return n
}

// MarshalJSON writes the results as an object keyed by platform, preserving order
func (p PostResults) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, r := range p {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(r.Platform)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Steps holds the intermediate value captured for each attempted step
type Steps struct {
	Concept         *Concept `json:"concept,omitempty"`
	Veo3Prompt      *string  `json:"veo3_prompt,omitempty"`
	VideoURL        *string  `json:"video_url,omitempty"`
	BlotatoMediaURL *string  `json:"blotato_media_url,omitempty"`
}

// Keys lists the names of the steps recorded so far, in pipeline order
func (s Steps) Keys() []string {
	var keys []string
	if s.Concept != nil {
		keys = append(keys, "concept")
	}
	if s.Veo3Prompt != nil {
		keys = append(keys, "veo3_prompt")
	}
	if s.VideoURL != nil {
		keys = append(keys, "video_url")
	}
	if s.BlotatoMediaURL != nil {
		keys = append(keys, "blotato_media_url")
	}
	return keys
}

// WorkflowReport tracks the full state of one pipeline run
type WorkflowReport struct {
	RunID           string        `json:"run_id"`
	Topic           string        `json:"topic"`
	Platforms       []string      `json:"platforms"`
	StartedAt       time.Time     `json:"started_at"`
	Steps           Steps         `json:"steps"`
	SocialPosts     PostResults   `json:"social_posts"`
	Success         bool          `json:"success"`
	SuccessfulPosts int           `json:"successful_posts"`
	TotalPlatforms  int           `json:"total_platforms"`
	ExecutionTime   time.Duration `json:"execution_time"`
	Error           string        `json:"error,omitempty"`
}

// AgentInfo describes an agent for diagnostics
type AgentInfo struct {
	Name   string `json:"name"`
	Config any    `json:"config"`
	Async  bool   `json:"async,omitempty"`
}
