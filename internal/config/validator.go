package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// RegisterCustomValidators registers gateway-specific validation rules.
// Must be called before validating Config.
func RegisterCustomValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("endpoint_uri", validateEndpointURI); err != nil {
		return fmt.Errorf("failed to register endpoint_uri validator: %w", err)
	}
	return nil
}

// validateEndpointURI checks that a transport URI carries a recognizable
// scheme — this package doesn't know which transport will ultimately
// parse it, so it only rejects the empty and obviously malformed cases
// rather than validating a specific scheme list.
func validateEndpointURI(fl validator.FieldLevel) bool {
	uri := fl.Field().String()
	if uri == "" {
		return false
	}
	return strings.Contains(uri, "://")
}

// Validate validates the Config using struct tags.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := RegisterCustomValidators(v); err != nil {
		return err
	}

	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	return nil
}

// formatValidationErrors converts validator.ValidationErrors to
// user-friendly messages.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var messages []string
		for _, e := range validationErrors {
			messages = append(messages, formatSingleValidationError(e))
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}

func formatSingleValidationError(e validator.FieldError) string {
	field := e.Namespace()
	tag := e.Tag()

	switch tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "hostname_port":
		return fmt.Sprintf("%s must be a valid host:port", field)
	case "endpoint_uri":
		return fmt.Sprintf("%s must be a scheme://-qualified endpoint locator", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, tag)
	}
}
