// Package validation wraps go-playground/validator with the rules the API
// needs, most importantly the absolute-URL gate that runs before a link is
// created.
package validation

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidURL is returned when a destination is not an absolute URL.
var ErrInvalidURL = errors.New("invalid URL format")

// TagAbsoluteURL accepts strings that parse as URLs with a scheme and an authority.
const TagAbsoluteURL = "absurl"

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// FieldError describes one failed rule.
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

// RequestValidationError collects the field errors of one struct.
type RequestValidationError struct {
	Fields []FieldError
}

func (e *RequestValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	messages := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		messages[i] = f.Message
	}
	return strings.Join(messages, "; ")
}

// Is lets callers match an absolute-URL failure with errors.Is(err, ErrInvalidURL).
func (e *RequestValidationError) Is(target error) bool {
	if target != ErrInvalidURL {
		return false
	}
	for _, f := range e.Fields {
		if f.Tag == TagAbsoluteURL {
			return true
		}
	}
	return false
}

// Get returns the process-wide validator, building it on first use.
func Get() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		// Report json names so messages match the request body.
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})

		if err := validate.RegisterValidation(TagAbsoluteURL, func(fl validator.FieldLevel) bool {
			return IsAbsoluteURL(fl.Field().String())
		}); err != nil {
			panic(fmt.Sprintf("validation: register %s: %v", TagAbsoluteURL, err))
		}
	})
	return validate
}

// IsAbsoluteURL reports whether raw has both a scheme and a host.
func IsAbsoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Host != ""
}

// ValidateURL is the boundary gate for link destinations.
func ValidateURL(raw string) error {
	if !IsAbsoluteURL(raw) {
		return fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	return nil
}

// ValidateStruct runs the struct's `validate` tags. It returns nil or a
// *RequestValidationError.
func ValidateStruct(s interface{}) error {
	err := Get().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &RequestValidationError{Fields: []FieldError{{
			Field:   "unknown",
			Tag:     "unknown",
			Message: err.Error(),
		}}}
	}

	out := &RequestValidationError{Fields: make([]FieldError, len(fieldErrs))}
	for i, fe := range fieldErrs {
		out.Fields[i] = FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Message: translate(fe),
		}
	}
	return out
}

var messages = map[string]string{
	"required":     "%s is required",
	TagAbsoluteURL: "%s must be an absolute URL with scheme and host",
	"max":          "%s is too long",
}

var messagesWithParam = map[string]string{
	"gte": "%s must be greater than or equal to %s",
	"lte": "%s must be less than or equal to %s",
}

func translate(fe validator.FieldError) string {
	if tmpl, ok := messages[fe.Tag()]; ok {
		return fmt.Sprintf(tmpl, fe.Field())
	}
	if tmpl, ok := messagesWithParam[fe.Tag()]; ok {
		return fmt.Sprintf(tmpl, fe.Field(), fe.Param())
	}
	return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
}
