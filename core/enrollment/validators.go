package enrollment

import (
	"reflect"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/learnhub/core"
)

var (
	statusTag  = "enrollment_status"
	statusText = "status must be one of active, completed, dropped or suspended"
)

// InitValidators registers the validations needed by enrollment payloads.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(statusTag, statusValidation)
	core.RegisterCustomTranslation(validate, translator, statusTag, statusText)
}

func statusValidation(fl validator.FieldLevel) bool {
	return fl.Field().Kind() == reflect.String && Status(fl.Field().String()).IsValid()
}
