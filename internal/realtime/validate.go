package realtime

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "collab_editor/pkg/errors"
)

// validate называет поля по json тегам, чтобы клиент видел "roomId", а не "RoomID"
var validate = func() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}()

// validatePayload переводит первую ошибку валидации в ответ клиенту
func validatePayload(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apperrors.ErrMalformedEvent
	}
	field := fieldErrs[0]
	switch field.Tag() {
	case "required":
		return apperrors.New(apperrors.ErrBadRequest, field.Field()+" is required")
	default:
		return apperrors.New(apperrors.ErrBadRequest, field.Field()+" is invalid")
	}
}
