package middleware

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/vidaplus/hospital-api/internal/model"
	apperrors "github.com/vidaplus/hospital-api/pkg/errors"
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var nationalIDPattern = regexp.MustCompile(`^\d{11}$`)

var errorMessages = map[string]string{
	"required":    "Field is required",
	"email":       "Invalid email format",
	"min":         "Value is too short or too small",
	"max":         "Value is too long or too large",
	"oneof":       "Value is not one of the accepted options",
	"datetime":    "Invalid date format, expected YYYY-MM-DD",
	"national_id": "National id must have exactly 11 digits",
	"role":        "Role must be one of PATIENT, DOCTOR, NURSE, TECHNICIAN, ADMIN",
}

// RegisterValidators installs the custom tags used by request models on
// gin's validator and reports fields by their json name.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("unexpected validator engine")
	}

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return fld.Name
			}
			if name != "" {
				return name
			}
		}
		return fld.Name
	})

	if err := v.RegisterValidation("national_id", func(fl validator.FieldLevel) bool {
		return nationalIDPattern.MatchString(fl.Field().String())
	}); err != nil {
		return err
	}
	return v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		return model.Role(fl.Field().String()).Valid()
	})
}

// BindError turns a gin binding failure into a VALIDATION error listing
// the offending fields.
func BindError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		details := make([]ValidationError, 0, len(verrs))
		for _, e := range verrs {
			msg, ok := errorMessages[e.Tag()]
			if !ok {
				msg = e.Error()
			}
			details = append(details, ValidationError{Field: e.Field(), Message: msg})
		}
		return apperrors.Validation("validation failed", err).WithDetails(details)
	}

	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return apperrors.Validation("request body too large", err)
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.Is(err, io.EOF):
		return apperrors.Validation("request body is required", err)
	case errors.As(err, &syntaxErr):
		return apperrors.Validation("malformed JSON body", err)
	case errors.As(err, &typeErr):
		return apperrors.Validation("invalid type for field "+typeErr.Field, err).
			WithDetails([]ValidationError{{Field: typeErr.Field, Message: "Invalid type"}})
	}
	return apperrors.Validation(err.Error(), err)
}
