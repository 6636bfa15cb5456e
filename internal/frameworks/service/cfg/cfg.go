// Package cfg decodes the raw [http.services.<name>] and interceptor profile
// maps into typed config structs.
package cfg

import (
	"fmt"
	"slices"

	"github.com/mitchellh/mapstructure"
)

// Setter is implemented by config structs that fill in their own defaults
// after decoding.
type Setter interface {
	ApplyDefaults()
}

// Decode decodes input into c and applies defaults. Unknown keys are ignored.
func Decode(input map[string]any, c any) error {
	_, err := decode(input, c)
	return err
}

// DecodeWithUnused decodes like Decode and also returns the unknown keys,
// sorted, so callers can warn about them.
func DecodeWithUnused(input map[string]any, c any) ([]string, error) {
	return decode(input, c)
}

// DecodeStrict decodes like Decode but fails on unknown keys.
func DecodeStrict(input map[string]any, c any) error {
	unused, err := decode(input, c)
	if err != nil {
		return err
	}
	if len(unused) > 0 {
		return fmt.Errorf("unknown config keys: %v", unused)
	}
	return nil
}

func decode(input map[string]any, c any) ([]string, error) {
	var md mapstructure.Metadata
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Metadata:   &md,
		Result:     c,
		TagName:    "mapstructure",
		DecodeHook: mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(input); err != nil {
		return nil, err
	}

	if s, ok := c.(Setter); ok {
		s.ApplyDefaults()
	}

	unused := slices.Clone(md.Unused)
	slices.Sort(unused)
	return unused, nil
}
