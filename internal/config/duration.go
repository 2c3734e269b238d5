package config

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that reads either a Go duration string
// ("1.5s", "250ms") or a plain number of seconds.
type Duration time.Duration

// D returns the value as a time.Duration.
func (d Duration) D() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// Set parses a command-line value, either form accepted.
func (d *Duration) Set(s string) error {
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return d.setSeconds(secs)
	}
	return d.parse(s)
}

// Type names the flag value type.
func (d *Duration) Type() string { return "duration" }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case float64:
		return d.setSeconds(x)
	case string:
		return d.parse(x)
	}
	return fmt.Errorf("invalid duration %s", b)
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", value.Line)
	}
	var secs float64
	if err := value.Decode(&secs); err == nil {
		return d.setSeconds(secs)
	}
	if err := d.parse(value.Value); err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	return nil
}

func (d *Duration) parse(s string) error {
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q", s)
	}
	*d = Duration(v)
	return nil
}

func (d *Duration) setSeconds(secs float64) error {
	if math.IsNaN(secs) || math.IsInf(secs, 0) {
		return fmt.Errorf("invalid duration %v", secs)
	}
	*d = Duration(secs * float64(time.Second))
	return nil
}
