package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/warp/recognition-engine/generic"
)

// ErrValidation marks request bodies that failed decoding or validation.
var ErrValidation = errors.New("validation failed")

// RequestValidator wraps go-playground validator with the calendar rules
// the API accepts.
type RequestValidator struct {
	validate *validator.Validate
}

// NewRequestValidator registers:
//   - yearmonth: YYYY-MM
//   - date:      YYYY-MM-DD
func NewRequestValidator() *RequestValidator {
	v := validator.New()

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("yearmonth", validateYearMonth)
	_ = v.RegisterValidation("date", validateDate)

	return &RequestValidator{validate: v}
}

// Validate validates a struct
func (rv *RequestValidator) Validate(i any) error {
	if err := rv.validate.Struct(i); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			msgs := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				msgs = append(msgs, formatFieldError(fe))
			}
			return fmt.Errorf("%w: %s", ErrValidation, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

// Var validates a single value, typically a query parameter.
func (rv *RequestValidator) Var(field string, value any, tag string) error {
	if err := rv.validate.Var(value, tag); err != nil {
		return fmt.Errorf("%w: %s: must satisfy %s", ErrValidation, field, tag)
	}
	return nil
}

// Decode reads a JSON body into dst and validates it.
func (rv *RequestValidator) Decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", ErrValidation, err)
	}
	return rv.Validate(dst)
}

func validateYearMonth(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return true
	}
	_, err := generic.ParseMonth(s)
	return err == nil
}

func validateDate(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return true
	}
	_, err := generic.ParseDate(s)
	return err == nil
}

// formatFieldError renders one field failure for the error body.
func formatFieldError(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must not exceed %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "yearmonth":
		return fmt.Sprintf("%s must be a month as YYYY-MM", field)
	case "date":
		return fmt.Sprintf("%s must be a date as YYYY-MM-DD", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
