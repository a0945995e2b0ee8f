package utils

import (
	"bimbel_go/models"
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator returns the shared validator with the portal's custom types and tags.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New()

		// report json names so error maps match the request body
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})

		v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
			switch val := field.Interface().(type) {
			case models.Date:
				if val.IsZero() {
					return nil
				}
				return val.String()
			case models.Tod:
				return val.String()
			}
			return nil
		}, models.Date{}, models.Tod{})

		_ = v.RegisterValidation("student_status", func(fl validator.FieldLevel) bool {
			return IsValidStudentStatus(fl.Field().String())
		})
		_ = v.RegisterValidation("attendance_status", func(fl validator.FieldLevel) bool {
			return IsValidAttendanceStatus(fl.Field().String())
		})
		_ = v.RegisterValidation("weekday", func(fl validator.FieldLevel) bool {
			return IsValidWeekday(fl.Field().String())
		})

		validate = v
	})
	return validate
}

// ValidateStruct runs the shared validator against s.
func ValidateStruct(s interface{}) error {
	return Validator().Struct(s)
}

// ValidationErrors flattens validator errors into field -> failed tag.
func ValidationErrors(err error) map[string]string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return nil
	}
	out := make(map[string]string, len(ve))
	for _, fe := range ve {
		out[fe.Field()] = fe.Tag()
	}
	return out
}

// ValidationError writes a 400 response listing the failing fields.
func ValidationError(c *fiber.Ctx, message string, err error) error {
	details := ValidationErrors(err)
	if details == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": message,
		})
	}
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error":  message,
		"errors": details,
	})
}
