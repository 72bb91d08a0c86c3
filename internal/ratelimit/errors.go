package ratelimit

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is matched by every *ConfigError.
var ErrInvalidConfig = errors.New("invalid rate limit configuration")

// ConfigError reports a limiter configuration that cannot be used.
type ConfigError struct {
	Limiter string
	Field   string
	Reason  string
}

func (e *ConfigError) Error() string {
	if e.Limiter == "" {
		return fmt.Sprintf("rate limiter: %s %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("rate limiter %q: %s %s", e.Limiter, e.Field, e.Reason)
}

// Is makes errors.Is(err, ErrInvalidConfig) hold for any ConfigError.
func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidConfig
}
