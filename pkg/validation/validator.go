package validation

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	// Validate is the global validator instance
	Validate *validator.Validate

	// "lat,lng" with exactly three decimals, as produced for cache keys
	originKeyRegex = regexp.MustCompile(`^-?\d{1,2}\.\d{3},-?\d{1,3}\.\d{3}$`)
)

func init() {
	Validate = validator.New()
	registerRules(Validate)
}

func registerRules(v *validator.Validate) {
	_ = v.RegisterValidation("latitude", validateLatitude)
	_ = v.RegisterValidation("longitude", validateLongitude)
	_ = v.RegisterValidation("origin_key", validateOriginKey)
}

// RegisterGinValidators installs the custom rules on gin's binding validator so
// `binding:"latitude"` tags behave like `validate:"latitude"`.
func RegisterGinValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected gin validator engine %T", binding.Validator.Engine())
	}
	registerRules(v)
	return nil
}

// ValidationError collects per-field messages
type ValidationError struct {
	Errors map[string]string `json:"errors"`
}

// NewValidationError converts validator errors to a ValidationError
func NewValidationError(errs validator.ValidationErrors) *ValidationError {
	ve := &ValidationError{Errors: make(map[string]string, len(errs))}
	for _, fe := range errs {
		ve.AddError(fe.Namespace(), describe(fe))
	}
	return ve
}

// AddError records a message for a field
func (e *ValidationError) AddError(field, message string) {
	if e.Errors == nil {
		e.Errors = make(map[string]string)
	}
	e.Errors[field] = message
}

// HasErrors reports whether any field failed
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Errors))
	for field := range e.Errors {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+e.Errors[field])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// ValidateStruct validates a struct and returns a ValidationError if validation fails
func ValidateStruct(s interface{}) error {
	err := Validate.Struct(s)
	if err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			return NewValidationError(validationErrors)
		}
		return err
	}
	return nil
}

// ValidateOriginKey reports whether s is a well-formed cache origin key
func ValidateOriginKey(s string) bool {
	return originKeyRegex.MatchString(s)
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "latitude":
		return "must be a latitude between -90 and 90"
	case "longitude":
		return "must be a longitude between -180 and 180"
	case "origin_key":
		return "must look like 1.352,103.820"
	case "unique":
		return "must not contain duplicates"
	case "min", "max":
		return fmt.Sprintf("violates %s=%s", fe.Tag(), fe.Param())
	default:
		return "failed " + fe.Tag()
	}
}

// validateLatitude checks if latitude is a finite value within -90..90
func validateLatitude(fl validator.FieldLevel) bool {
	latitude := fl.Field().Float()
	return !math.IsNaN(latitude) && latitude >= -90.0 && latitude <= 90.0
}

// validateLongitude checks if longitude is a finite value within -180..180
func validateLongitude(fl validator.FieldLevel) bool {
	longitude := fl.Field().Float()
	return !math.IsNaN(longitude) && longitude >= -180.0 && longitude <= 180.0
}

func validateOriginKey(fl validator.FieldLevel) bool {
	return ValidateOriginKey(fl.Field().String())
}
