package catalog

import (
	"reflect"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/learnhub/core"
)

var (
	courseStatusTag  = "course_status"
	courseStatusText = "status must be one of draft, published or archived"
)

// InitValidators registers the validations needed by catalog payloads.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(courseStatusTag, courseStatusValidation)
	core.RegisterCustomTranslation(validate, translator, courseStatusTag, courseStatusText)
}

func courseStatusValidation(fl validator.FieldLevel) bool {
	return fl.Field().Kind() == reflect.String && CourseStatus(fl.Field().String()).IsValid()
}
