package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// go-playground/validator handles the declarative checks; rules that cannot
// be expressed in tags follow.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	return validateCustomRules(cfg)
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	// A tracer measuring nothing is a misconfiguration, not a noop request.
	if !cfg.Tracer.Buffers && !cfg.Tracer.BufferLists {
		return fmt.Errorf("tracer: at least one of buffers or buffer_lists must be enabled")
	}

	// The badger journal needs its backend section to find a path.
	if cfg.Journal.Type == "badger" && len(cfg.Journal.Badger) == 0 {
		return fmt.Errorf("journal: type is badger but the badger section is empty")
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
