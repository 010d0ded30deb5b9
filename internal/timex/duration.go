// Package timex holds time helpers shared by configuration loaders.
package timex

import (
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so configuration files can spell intervals
// either as strings ("3s", "1m30s") or as integer nanoseconds.
type Duration struct {
	time.Duration
}

var errInvalidDuration = errors.New("invalid duration")

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	return d.set(v)
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var v any
	if err := node.Decode(&v); err != nil {
		return err
	}
	return d.set(v)
}

func (d *Duration) set(v any) error {
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
	case int:
		d.Duration = time.Duration(value)
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%w: %w", errInvalidDuration, err)
		}
		d.Duration = parsed
	default:
		return fmt.Errorf("%w: unsupported value %v", errInvalidDuration, v)
	}
	return nil
}
