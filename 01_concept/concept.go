package concept

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"smallagents/config"
	"smallagents/llm"
	"smallagents/types"
)

const step = "concept"

const systemPrompt = `You generate exactly one immersive, realistic video idea for the topic the user gives you. Reply with a single JSON object and nothing else.

RULES:
- One idea per reply
- The Idea is under 13 words
- Describe an interesting, viral-worthy moment, action or event
- It may be as surreal as you like, it does not need to be real-world
- A character is involved
- The Caption is short, punchy and viral-friendly
- The Caption contains one relevant emoji
- The Caption contains exactly 12 lowercase hashtags: 4 about the topic, 4 popular, 4 trending
- Status is always "for production"
- The Environment is under 20 words and matches the action exactly

OUTPUT FORMAT:
{
    "Caption": "Short viral title with emoji #hashtags",
    "Idea": "Short idea under 13 words",
    "Environment": "Brief vivid setting under 20 words matching the action",
    "Status": "for production"
}`

// Generator asks the LLM for a short-form video concept
type Generator struct {
	llm         llm.Completer
	temperature float32
	validate    *validator.Validate
	log         logrus.FieldLogger
}

// New creates a Generator using the concept temperature from cfg
func New(cfg config.SocialVideoConfig, c llm.Completer, log logrus.FieldLogger) *Generator {
	v := validator.New()
	_ = v.RegisterValidation("production_status", func(fl validator.FieldLevel) bool {
		return fl.Field().String() == types.ProductionStatus
	})
	return &Generator{llm: c, temperature: cfg.ConceptTemperature, validate: v, log: log}
}

// Generate returns a concept for topic. When the completion fails or its
// content is not a valid concept, the fallback concept for topic is returned
// together with the classified error, so the caller always has something to
// continue with.
func (g *Generator) Generate(ctx context.Context, topic string) (*types.Concept, error) {
	g.log.WithField("topic", topic).Info("Generating video concept")

	content, err := g.llm.Complete(ctx, llm.Request{
		Step:        step,
		System:      systemPrompt,
		User:        "Give me an idea about " + topic,
		Temperature: g.temperature,
	})
	if err != nil {
		return g.fallback(topic, err)
	}

	var c types.Concept
	if err := json.Unmarshal([]byte(llm.CleanJSON(content)), &c); err != nil {
		return g.fallback(topic, types.ParseError(step, fmt.Errorf("decode concept: %w", err)))
	}
	c.Error = ""
	if err := g.validate.Struct(&c); err != nil {
		return g.fallback(topic, types.ParseError(step, fmt.Errorf("invalid concept: %w", err)))
	}

	g.log.WithField("idea", c.Idea).Info("✅ Concept ready")
	return &c, nil
}

func (g *Generator) fallback(topic string, err error) (*types.Concept, error) {
	g.log.WithError(err).Warn("Concept generation failed, using fallback")
	c := Fallback(topic)
	c.Error = "Failed to generate concept: " + err.Error()
	return c, err
}

// Fallback builds the deterministic concept used when generation fails
func Fallback(topic string) *types.Concept {
	return &types.Concept{
		Caption:     fmt.Sprintf("Amazing %s moment! 🎬 #viral #content #amazing #video", topic),
		Idea:        fmt.Sprintf("Person demonstrates %s in creative way", topic),
		Environment: fmt.Sprintf("Studio setting with %s equipment, good lighting", topic),
		Status:      types.ProductionStatus,
	}
}
