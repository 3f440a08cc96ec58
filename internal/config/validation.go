// validation.go - Startup validation of the loaded configuration.
//
// Collects every problem before failing so a misconfigured deployment
// is fixed in one pass instead of one restart per mistake.
package config

import (
	"fmt"
	"net/url"
	"strings"
)

// FieldError is a single configuration problem.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("config validation failed for %s: %s", e.Field, e.Message)
}

// Validator accumulates configuration problems.
type Validator struct {
	errors []FieldError
}

func NewValidator() *Validator {
	return &Validator{errors: make([]FieldError, 0)}
}

func (v *Validator) AddError(field, message string) {
	v.errors = append(v.errors, FieldError{Field: field, Message: message})
}

func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

func (v *Validator) Errors() []FieldError {
	return v.errors
}

// ErrorString returns a numbered list of every error.
func (v *Validator) ErrorString() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d error(s):\n", len(v.errors)))
	for i, err := range v.errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

func (v *Validator) Required(field, value string) {
	if strings.TrimSpace(value) == "" {
		v.AddError(field, "required value not set")
	}
}

func (v *Validator) Port(field string, port int) {
	if port < 1 || port > 65535 {
		v.AddError(field, "port must be between 1 and 65535")
	}
}

func (v *Validator) Enum(field, value string, allowed []string) {
	for _, opt := range allowed {
		if value == opt {
			return
		}
	}
	v.AddError(field, fmt.Sprintf("must be one of: %s (got: %s)", strings.Join(allowed, ", "), value))
}

// PostgresURL accepts postgres:// and postgresql:// connection strings.
func (v *Validator) PostgresURL(field, value string) {
	if value == "" {
		return
	}
	u, err := url.Parse(value)
	if err != nil {
		v.AddError(field, fmt.Sprintf("invalid URL format: %v", err))
		return
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		v.AddError(field, "must be a valid PostgreSQL connection string")
	}
}

// Validate checks the configuration and returns an error wrapping ErrInvalid
// that lists every problem found.
func (c *Config) Validate() error {
	v := NewValidator()

	v.Port("port", c.Port)
	v.Required("admin.login", c.Admin.Login)
	v.Required("admin.password", c.Admin.Password)
	v.Required("uploadDir", c.UploadDir)

	v.Required("database.url", c.Database.URL)
	v.PostgresURL("database.url", c.Database.URL)

	v.Enum("session.store", c.Session.Store, []string{SessionStoreMemory, SessionStorePostgres})
	if c.Session.TTL <= 0 {
		v.AddError("session.ttl", "must be a positive duration")
	}
	v.Required("session.cookieName", c.Session.CookieName)

	if c.MaxUploadBytes < 0 {
		v.AddError("maxUploadBytes", "must not be negative (0 disables the limit)")
	}

	v.Enum("log.level", c.Log.Level, []string{"debug", "info", "warn", "error"})
	v.Enum("log.format", c.Log.Format, []string{"text", "json"})

	if c.Mirror.Enabled() {
		v.Required("mirror.accessKey", c.Mirror.AccessKey)
		v.Required("mirror.secretKey", c.Mirror.SecretKey)
		v.Required("mirror.bucket", c.Mirror.Bucket)
		if c.Mirror.Interval <= 0 {
			v.AddError("mirror.interval", "must be a positive duration")
		}
	}

	if v.HasErrors() {
		return fmt.Errorf("%w: %s", ErrInvalid, v.ErrorString())
	}
	return nil
}
