// Package llm is the thin chat-completion layer shared by the concept and
// prompt stages.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"smallagents/config"
	"smallagents/httpclient"
	"smallagents/types"
)

// Completer is the one call the pipeline needs from an LLM
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Request is a single system+user exchange
type Request struct {
	Step        string
	System      string
	User        string
	Temperature float32
}

// OpenAI completes requests against the chat completions endpoint
type OpenAI struct {
	client *openai.Client
	http   *http.Client
	model  string
}

// NewOpenAI creates a client for cfg.Endpoints.OpenAI using the shared retry policy
func NewOpenAI(cfg config.SocialVideoConfig) *OpenAI {
	oc := openai.DefaultConfig(cfg.OpenAIAPIKey)
	oc.BaseURL = strings.TrimRight(cfg.Endpoints.OpenAI, "/")
	hc := httpclient.New(httpclient.Options{
		Timeout: cfg.LLMTimeout.Duration(),
		Policy:  httpclient.Policy{MaxRetries: cfg.MaxRetries, BackoffFactor: cfg.BackoffFactor},
	})
	oc.HTTPClient = hc
	return &OpenAI{client: openai.NewClientWithConfig(oc), http: hc, model: cfg.Model}
}

// Close releases idle connections
func (o *OpenAI) Close() error {
	o.http.CloseIdleConnections()
	return nil
}

// Complete returns the content of the first choice
func (o *OpenAI) Complete(ctx context.Context, req Request) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.User},
		},
		Temperature: req.Temperature,
	})
	if err != nil {
		return "", classify(req.Step, err)
	}
	if len(resp.Choices) == 0 {
		return "", types.ParseError(req.Step, errors.New("openai returned no choices"))
	}
	return resp.Choices[0].Message.Content, nil
}

func classify(step string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return types.NetworkError(step, &types.StatusError{Code: apiErr.HTTPStatusCode, Body: apiErr.Message})
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return types.NetworkError(step, &types.StatusError{Code: reqErr.HTTPStatusCode})
	}
	var (
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return types.ParseError(step, fmt.Errorf("decode openai response: %w", err))
	}
	return types.NetworkError(step, fmt.Errorf("openai api error: %w", err))
}

// CleanJSON strips markdown fences if the model wraps its answer in ```json ... ```
func CleanJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
