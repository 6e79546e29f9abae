package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// ValidateStruct validates a struct using validation tags
func ValidateStruct(s interface{}) error {
	if err := validate.Struct(s); err != nil {
		return err
	}
	return nil
}

// MissingFields returns the names of the fields that failed validation,
// prefixed with scope ("unmanage.Search"). When fields are given only those
// are checked. It returns nil when s is valid.
func MissingFields(scope string, s interface{}, fields ...string) []string {
	var err error
	if len(fields) > 0 {
		err = validate.StructPartial(s, fields...)
	} else {
		err = validate.Struct(s)
	}
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{fmt.Sprintf("%s: %v", scope, err)}
	}

	names := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		name := fe.StructField()
		if scope != "" {
			name = scope + "." + name
		}
		names = append(names, name)
	}
	return names
}

// Describe joins missing field names for a log or error message.
func Describe(fields []string) string {
	return strings.Join(fields, ", ")
}
