package adapters

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// option decodes opts[key] into T. Values built in code already have the
// right type; values read from configuration files arrive as generic
// maps and lists and are decoded by their json field names.
func option[T any](opts map[string]any, key string) (T, bool, error) {
	var out T
	raw, ok := opts[key]
	if !ok || raw == nil {
		return out, false, nil
	}
	if typed, ok := raw.(T); ok {
		return typed, true, nil
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           &out,
	})
	if err != nil {
		return out, false, err
	}
	if err := dec.Decode(raw); err != nil {
		return out, false, fmt.Errorf("option %q: %w", key, err)
	}
	return out, true, nil
}

func stringOption(opts map[string]any, key string) (string, error) {
	s, _, err := option[string](opts, key)
	return s, err
}

func boolOption(opts map[string]any, key string) (bool, error) {
	b, _, err := option[bool](opts, key)
	return b, err
}
