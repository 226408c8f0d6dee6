package utils

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once

	identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// GetValidator returns the shared validator with the custom tags registered.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		_ = RegisterCustomValidations(validate)
	})
	return validate
}

// RegisterCustomValidations installs the project specific tags on v. The router
// calls it on gin's binding engine so request structs share the same rules.
func RegisterCustomValidations(v *validator.Validate) error {
	return v.RegisterValidation("identifier", validateIdentifier)
}

// validateIdentifier accepts names usable as a dataset variable and SQL table.
func validateIdentifier(fl validator.FieldLevel) bool {
	return IsDatasetName(fl.Field().String())
}

// reservedNames are Python keywords and the names the generated analysis
// program binds itself, stored lower-cased.
var reservedNames = map[string]bool{
	"false": true, "none": true, "true": true, "and": true, "as": true, "assert": true,
	"async": true, "await": true, "break": true, "class": true, "continue": true, "def": true,
	"del": true, "elif": true, "else": true, "except": true, "finally": true, "for": true,
	"from": true, "global": true, "if": true, "import": true, "in": true, "is": true,
	"lambda": true, "nonlocal": true, "not": true, "or": true, "pass": true, "raise": true,
	"return": true, "try": true, "while": true, "with": true, "yield": true,

	"os": true, "json": true, "sys": true, "pd": true, "np": true, "sqlite3": true,
	"pandas": true, "numpy": true, "ans_df": true,
}

// IsReservedName reports whether s, ignoring case, is a Python keyword or a
// name the analysis program binds.
func IsReservedName(s string) bool {
	return reservedNames[strings.ToLower(s)]
}

// IsDatasetName reports whether s can name a preloaded dataset: an identifier
// that starts with a letter and is not reserved.
func IsDatasetName(s string) bool {
	return IsIdentifier(s) && !strings.HasPrefix(s, "_") && !IsReservedName(s)
}

// IsIdentifier reports whether s is a plain ASCII identifier.
func IsIdentifier(s string) bool {
	return identifierPattern.MatchString(s)
}

// ValidateStruct validates s and flattens the field errors into one message.
func ValidateStruct(s interface{}) error {
	if err := GetValidator().Struct(s); err != nil {
		return formatValidationError(err)
	}
	return nil
}

func formatValidationError(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	messages := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		field := e.Namespace()
		switch e.Tag() {
		case "required":
			messages = append(messages, fmt.Sprintf("%s is required", field))
		case "min":
			messages = append(messages, fmt.Sprintf("%s must be at least %s", field, e.Param()))
		case "max":
			messages = append(messages, fmt.Sprintf("%s must be at most %s", field, e.Param()))
		case "oneof":
			messages = append(messages, fmt.Sprintf("%s must be one of [%s]", field, e.Param()))
		case "identifier":
			messages = append(messages, fmt.Sprintf("%s must be a letter followed by letters, digits or underscores, and not a reserved name", field))
		default:
			messages = append(messages, fmt.Sprintf("%s failed validation: %s", field, e.Tag()))
		}
	}

	return errors.New(strings.Join(messages, "; "))
}
