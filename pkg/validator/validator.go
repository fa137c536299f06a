package validator

import (
	"fmt"
	"net/url"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
)

var (
	validate *validator.Validate
	once     sync.Once
)

// Initialize initializes the shared validator instance
func Initialize() {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})

		registerCustomValidators()
	})
}

// Validate validates a struct and flattens field errors into one message
func Validate(s any) error {
	Initialize()

	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		messages = append(messages, formatValidationError(fe))
	}
	return fmt.Errorf("validation failed: %s", strings.Join(messages, ", "))
}

// ValidateVar validates a single value against tag
func ValidateVar(field any, tag string) error {
	Initialize()
	return validate.Var(field, tag)
}

func formatValidationError(err validator.FieldError) string {
	field := err.Field()

	switch err.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, err.Param())
	case "url", "http_url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "socket_url":
		return fmt.Sprintf("%s must be a ws, wss, http or https URL", field)
	case "jwt":
		return fmt.Sprintf("%s must be a JWT", field)
	case "cron":
		return fmt.Sprintf("%s must be a valid cron expression", field)
	case "hostname_port":
		return fmt.Sprintf("%s must be host:port", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, err.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, err.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, err.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, err.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, err.Param())
	case "startswith":
		return fmt.Sprintf("%s must start with %q", field, err.Param())
	default:
		return fmt.Sprintf("%s failed validation (%s)", field, err.Tag())
	}
}

func registerCustomValidators() {
	_ = validate.RegisterValidation("socket_url", validateSocketURL)
	_ = validate.RegisterValidation("cron", validateCron)
}

func validateSocketURL(fl validator.FieldLevel) bool {
	u, err := url.Parse(fl.Field().String())
	if err != nil || u.Host == "" {
		return false
	}
	switch u.Scheme {
	case "ws", "wss", "http", "https":
		return true
	}
	return false
}

func validateCron(fl validator.FieldLevel) bool {
	_, err := cron.ParseStandard(fl.Field().String())
	return err == nil
}
