package api

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// customValidators теги, дополнительно регистрируемые в валидаторе gin.
var customValidators = map[string]validator.Func{
	"max_bytes": validateMaxBytes,
	"not_blank": validateNotBlank,
}

// validateMaxBytes проверяет длину строки в байтах, в отличие от max, который считает руны.
// bcrypt учитывает только первые 72 байта пароля.
func validateMaxBytes(fl validator.FieldLevel) bool {
	maxBytes, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}
	str, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	return len(str) <= maxBytes
}

// validateNotBlank отклоняет строки из одних пробельных символов.
func validateNotBlank(fl validator.FieldLevel) bool {
	str, ok := fl.Field().Interface().(string)
	return ok && strings.TrimSpace(str) != ""
}

func registerValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("validator registration: unexpected engine %T", binding.Validator.Engine())
	}
	return registerCustomValidators(v)
}

func registerCustomValidators(v *validator.Validate) error {
	for tag, fn := range customValidators {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("validator registration `%s`: %s", tag, err.Error())
		}
	}
	return nil
}
