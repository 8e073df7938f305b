package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error with context.
type ValidationError struct {
	Field   string
	Message string
	Hint    string
}

func (e ValidationError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s (hint: %s)", e.Field, e.Message, e.Hint)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationResult contains the results of configuration validation.
type ValidationResult struct {
	Errors []ValidationError
}

// HasErrors returns true if there are any validation errors.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// Error returns a combined error message if there are validation errors.
func (r *ValidationResult) Error() string {
	if !r.HasErrors() {
		return ""
	}
	var msgs []string
	for _, e := range r.Errors {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration for errors.
func (c *Config) Validate() *ValidationResult {
	result := &ValidationResult{}
	c.Database.validate(result)
	c.Service.validate(result)
	c.Observability.validate(result)
	return result
}

func (d *DatabaseConfig) validate(result *ValidationResult) {
	if d.ConnectionString != "" {
		if _, err := parseDSNDatabaseName(d.ConnectionString); err != nil {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "database.dsn",
				Message: err.Error(),
			})
		}
	} else {
		if strings.TrimSpace(d.Host) == "" {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "database.host",
				Message: "host must not be empty",
			})
		}
		if d.Port < 1 || d.Port > 65535 {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "database.port",
				Message: fmt.Sprintf("port %d out of range", d.Port),
				Hint:    "valid range is 1-65535",
			})
		}
		if strings.TrimSpace(d.User) == "" {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "database.user",
				Message: "user must not be empty",
			})
		}
	}
	if _, err := d.EffectiveDatabaseName(); err != nil {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "database.database",
			Message: err.Error(),
		})
	}
	if d.Pool.MaxOpen < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "database.pool.max_open",
			Message: "must not be negative",
		})
	}
	if d.Pool.MaxIdle < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "database.pool.max_idle",
			Message: "must not be negative",
		})
	}
	if d.Pool.MaxOpen > 0 && d.Pool.MaxIdle > d.Pool.MaxOpen {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "database.pool.max_idle",
			Message: fmt.Sprintf("max_idle %d exceeds max_open %d", d.Pool.MaxIdle, d.Pool.MaxOpen),
			Hint:    "idle connections beyond max_open are never used",
		})
	}
}

func (s *ServiceConfig) validate(result *ValidationResult) {
	if s.DefaultPageSize < 1 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "service.default_page_size",
			Message: "must be at least 1",
		})
	}
	if s.MaxPageSize < 1 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "service.max_page_size",
			Message: "must be at least 1",
		})
	}
	if s.DefaultPageSize >= 1 && s.MaxPageSize >= 1 && s.DefaultPageSize > s.MaxPageSize {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "service.default_page_size",
			Message: fmt.Sprintf("default_page_size %d exceeds max_page_size %d", s.DefaultPageSize, s.MaxPageSize),
		})
	}
}

func (o *ObservabilityConfig) validate(result *ValidationResult) {
	if strings.TrimSpace(o.ServiceName) == "" {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "observability.service_name",
			Message: "service name must not be empty",
		})
	}
	if o.MetricsEnabled && (o.MetricsPort < 1 || o.MetricsPort > 65535) {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "observability.metrics_port",
			Message: fmt.Sprintf("port %d out of range", o.MetricsPort),
			Hint:    "valid range is 1-65535",
		})
	}
	switch o.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		result.Errors = append(result.Errors, ValidationError{
			Field:   "observability.logging.level",
			Message: fmt.Sprintf("unknown log level %q", o.Logging.Level),
			Hint:    "valid levels: debug, info, warn, error",
		})
	}
	switch o.Logging.Format {
	case "json", "text":
	default:
		result.Errors = append(result.Errors, ValidationError{
			Field:   "observability.logging.format",
			Message: fmt.Sprintf("unknown log format %q", o.Logging.Format),
			Hint:    "valid formats: json, text",
		})
	}
}
