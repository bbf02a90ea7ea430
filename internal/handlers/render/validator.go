package render

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

func configureValidator(validate *validator.Validate) {
	validate.RegisterTagNameFunc(useJSONTagNames)
}

// Report fields by their json names instead of struct ones
func useJSONTagNames(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	// skip if tag key says it should be ignored
	if name == "-" {
		return ""
	}
	return name
}

// User-friendly message for failed validation tag
func validationMessage(fieldError validator.FieldError) string {
	switch fieldError.Tag() {
	case "required":
		return "This field is required"
	case "min":
		return "Value is too short (minimum " + fieldError.Param() + ")"
	case "max":
		return "Value is too long (maximum " + fieldError.Param() + ")"
	case "email":
		return "Invalid email address"
	default:
		return "Invalid value"
	}
}
