package utils

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Same tag gin's binding uses, so input structs carry one tag set.
	v.SetTagName("binding")
	return v
}

// ValidateStruct runs tag validation and converts the first failure into a
// *ValidationError naming the offending field.
func ValidateStruct(input interface{}) error {
	err := validate.Struct(input)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &ValidationError{Field: fe.Field(), Reason: "failed on rule '" + fe.Tag() + "'"}
	}
	return err
}
