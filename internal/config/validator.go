package config

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "tmux.width")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"DEBUG", "INFO", "WARN", "ERROR"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateTmux()...)
	errors = append(errors, c.validateBackend()...)
	errors = append(errors, c.validateSession()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

// validateTmux validates the TmuxConfig
func (c *Config) validateTmux() []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(c.Tmux.Binary) == "" {
		errors = append(errors, ValidationError{
			Field:   "tmux.binary",
			Value:   c.Tmux.Binary,
			Message: "must not be empty",
		})
	}

	// tmux rejects socket names containing a path separator for -L
	if strings.ContainsRune(c.Tmux.Socket, '/') {
		errors = append(errors, ValidationError{
			Field:   "tmux.socket",
			Value:   c.Tmux.Socket,
			Message: "must be a socket name, not a path",
		})
	}

	for _, dim := range []struct {
		field string
		value int
	}{
		{"tmux.width", c.Tmux.Width},
		{"tmux.height", c.Tmux.Height},
		{"tmux.history_limit", c.Tmux.HistoryLimit},
	} {
		if dim.value <= 0 {
			errors = append(errors, ValidationError{
				Field:   dim.field,
				Value:   dim.value,
				Message: "must be positive",
			})
		}
	}

	return errors
}

// validateBackend validates the BackendConfig
func (c *Config) validateBackend() []ValidationError {
	var errors []ValidationError

	if c.Backend.Timeout <= 0 {
		errors = append(errors, ValidationError{
			Field:   "backend.timeout",
			Value:   c.Backend.Timeout,
			Message: "must be positive",
		})
	}

	const maxTimeout = 10 * time.Minute
	if c.Backend.Timeout > maxTimeout {
		errors = append(errors, ValidationError{
			Field:   "backend.timeout",
			Value:   c.Backend.Timeout,
			Message: fmt.Sprintf("exceeds maximum of %s", maxTimeout),
		})
	}

	return errors
}

// validateSession validates the SessionConfig
func (c *Config) validateSession() []ValidationError {
	var errors []ValidationError

	if c.Session.ReconcileParallelism <= 0 {
		errors = append(errors, ValidationError{
			Field:   "session.reconcile_parallelism",
			Value:   c.Session.ReconcileParallelism,
			Message: "must be positive",
		})
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), strings.ToUpper(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	// Max size must be positive
	if c.Logging.MaxSizeMB <= 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be positive",
		})
	}

	// Reasonable upper bound for log file size
	const maxLogSizeMB = 1000 // 1GB
	if c.Logging.MaxSizeMB > maxLogSizeMB {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: fmt.Sprintf("exceeds maximum of %dMB", maxLogSizeMB),
		})
	}

	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}
