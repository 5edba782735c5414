package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

// newValidator reports fields by their koanf keys so messages name the
// setting an operator would edit ("storage.redis.addr").
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("koanf"), ",")
		if name == "" || name == "-" {
			return strings.ToLower(f.Name)
		}

		return name
	})

	v.RegisterStructValidation(validateStorage, StorageConfig{})

	return v
}

// validateStorage checks the rules that depend on the selected backend.
func validateStorage(sl validator.StructLevel) {
	cfg, ok := sl.Current().Interface().(StorageConfig)
	if !ok {
		return
	}

	if cfg.Backend == StorageBackendRedis && cfg.Redis.Addr == "" {
		sl.ReportError(cfg.Redis.Addr, "redis.addr", "Addr", "required_with_backend", cfg.Backend)
	}

	keys := []string{cfg.Keys.Favorites, cfg.Keys.LastDate, cfg.Keys.CurrentQuote}
	seen := make(map[string]bool, len(keys))

	for _, k := range keys {
		if k != "" && seen[k] {
			sl.ReportError(cfg.Keys, "keys", "Keys", "unique_keys", k)
			return
		}

		seen[k] = true
	}
}

// Validate checks the whole configuration and lists every violation.
// The service refuses to start on an invalid config.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	lines := make([]string, len(verrs))
	for i, fe := range verrs {
		lines[i] = describe(fe)
	}

	return fmt.Errorf("config validation failed:\n  %s", strings.Join(lines, "\n  "))
}

func describe(fe validator.FieldError) string {
	field := fieldPath(fe.Namespace())
	param := fe.Param()

	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "required_if":
		return fmt.Sprintf("%s is required when %s", field, param)
	case "required_with_backend":
		return fmt.Sprintf("%s is required for the %s backend", field, param)
	case "unique_keys":
		return fmt.Sprintf("%s must be distinct, %q is used twice", field, param)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, param)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, param)
	case "url":
		return field + " must be a valid URL"
	case "hostname_port":
		return field + " must be host:port"
	default:
		return fmt.Sprintf("%s failed validation: %s", field, fe.Tag())
	}
}

// fieldPath drops the root struct from a namespace: "Config.server.port"
// becomes "server.port".
func fieldPath(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		return rest
	}

	return namespace
}
