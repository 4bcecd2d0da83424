package merge

import (
	"errors"
	"fmt"
)

// ErrConfiguration matches every ConfigurationError with errors.Is
var ErrConfiguration = errors.New("configuration error")

// ConfigurationError reports layers that cannot be merged.
// It is fatal: no build graph may be constructed after it.
type ConfigurationError struct {
	Path   string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("configuration error: %s", e.Reason)
	}
	return fmt.Sprintf("configuration error at %s: %s", e.Path, e.Reason)
}

// Is lets errors.Is(err, ErrConfiguration) match
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

func conflictf(path, format string, args ...any) error {
	return &ConfigurationError{Path: path, Reason: fmt.Sprintf(format, args...)}
}
