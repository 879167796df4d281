package prompt

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"smallagents/config"
	"smallagents/llm"
	"smallagents/types"
)

const step = "veo3_prompt"

// Length bounds the model is asked to respect
const (
	MinLength = 750
	MaxLength = 1500
)

const systemPrompt = `You write hyper-realistic, cinematic video prompts for Google Veo3. Each prompt describes a short, vivid selfie-style clip of one unnamed character speaking or acting in a specific moment.

REQUIRED STRUCTURE:
[Scene paragraph prompt here]

Main character: [description of character]
They say: [one line of dialogue that fits the scene and mood].
They [a physical action or subtle camera movement].
Time of Day: [day / night / dusk / etc.]
Lens: [describe lens]
Audio: (implied) [ambient sounds]
Background: [brief restatement of what is visible behind them]

RULES:
- A single paragraph of 750-1500 characters. No line breaks or headings.
- Exactly one human character, never named.
- One spoken line of dialogue, with how it is delivered.
- The character does something physical, even if subtle.
- Selfie-style framing. Always describe the lens and camera behavior.
- The scene feels real and cinematic.
- Always include the five technical elements.`

// Composer turns a concept into a Veo3 video prompt
type Composer struct {
	llm           llm.Completer
	temperature   float32
	enforceLength bool
	log           logrus.FieldLogger
}

// New creates a Composer using the prompt temperature from cfg
func New(cfg config.SocialVideoConfig, c llm.Completer, log logrus.FieldLogger) *Composer {
	return &Composer{
		llm:           c,
		temperature:   cfg.PromptTemperature,
		enforceLength: cfg.EnforcePromptLength,
		log:           log,
	}
}

// Compose returns the model's prompt for idea and environment. On failure it
// returns the fallback prompt together with the classified error.
func (c *Composer) Compose(ctx context.Context, idea, environment string) (string, error) {
	c.log.WithField("idea", idea).Info("Creating Veo3 prompt")

	content, err := c.llm.Complete(ctx, llm.Request{
		Step:        step,
		System:      systemPrompt,
		User:        fmt.Sprintf("Give me a Veo3 prompt for this idea:\n%s\n\nThis is the environment:\n%s\n\n", idea, environment),
		Temperature: c.temperature,
	})
	if err != nil {
		return c.fallback(environment, err)
	}
	if c.enforceLength {
		if n := utf8.RuneCountInString(strings.TrimSpace(content)); n < MinLength || n > MaxLength {
			return c.fallback(environment, types.ParseError(step,
				fmt.Errorf("prompt length %d outside %d-%d", n, MinLength, MaxLength)))
		}
	}

	c.log.WithField("chars", utf8.RuneCountInString(content)).Info("✅ Prompt ready")
	return content, nil
}

func (c *Composer) fallback(environment string, err error) (string, error) {
	c.log.WithError(err).Warn("Prompt generation failed, using fallback")
	return Fallback(environment), err
}

// Fallback builds the deterministic selfie-style prompt for environment
func Fallback(environment string) string {
	env := strings.ToLower(environment)
	return fmt.Sprintf("A person in %s holds a camera close to their face, creating a selfie-style shot. "+
		"Main character: young content creator with expressive eyes. "+
		"They say: 'This is absolutely incredible, you have to see this!' while gesturing excitedly. "+
		"They pan the camera slightly to show the surroundings. "+
		"Time of Day: golden hour. "+
		"Lens: wide-angle smartphone camera with slight fish-eye effect. "+
		"Audio: (implied) ambient environmental sounds. "+
		"Background: %s visible in soft focus behind them.", env, env)
}
