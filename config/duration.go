package config

import (
	"fmt"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Seconds is a duration that accepts either a bare number of seconds (300, 0.5)
// or a Go duration string (5m, 250ms) in YAML.
type Seconds time.Duration

// Duration converts s to a time.Duration
func (s Seconds) Duration() time.Duration {
	return time.Duration(s)
}

func (s *Seconds) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", value.Line)
	}
	if f, err := strconv.ParseFloat(value.Value, 64); err == nil {
		*s = Seconds(f * float64(time.Second))
		return nil
	}
	d, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q", value.Line, value.Value)
	}
	*s = Seconds(d)
	return nil
}

func (s Seconds) MarshalYAML() (any, error) {
	return time.Duration(s).String(), nil
}
