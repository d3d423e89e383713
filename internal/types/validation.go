package types

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidate()

// newValidate builds the shared validator. Field errors report the JSON
// name of the field so details match the wire format.
func newValidate() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// FieldError describes one failed constraint in a validation error's details.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

// ValidateStruct runs the struct's validate tags. Missing required fields
// produce ErrCodeValidationMissingField; any other failure produces code.
// The failing fields are listed under the "fields" detail key.
func ValidateStruct(v any, code ErrorCode) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return NewAppError(code, "invalid input", err)
	}

	fields := make([]FieldError, 0, len(verrs))
	names := make([]string, 0, len(verrs))
	onlyMissing := true
	for _, fe := range verrs {
		name := fe.Field()
		fields = append(fields, FieldError{Field: name, Rule: fe.Tag(), Param: fe.Param()})
		names = append(names, name)
		if fe.Tag() != "required" {
			onlyMissing = false
		}
	}

	errCode := code
	msg := "invalid fields: " + strings.Join(names, ", ")
	if onlyMissing {
		errCode = ErrCodeValidationMissingField
		msg = "missing required fields: " + strings.Join(names, ", ")
	}
	return NewAppErrorWithDetails(errCode, msg, err, map[string]any{"fields": fields})
}

// ValidateReading rejects malformed or incomplete readings before scoring.
func ValidateReading(r SensorReading) error {
	return ValidateStruct(r, ErrCodeValidationInvalidReading)
}
