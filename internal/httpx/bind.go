package httpx

import (
	"errors"
	"reflect"
	"strings"

	"cylinder-backend/internal/apperr"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report json names instead of Go field names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// Bind parses the JSON body into out and validates it.
func Bind(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return apperr.Validation("Invalid request body: " + err.Error())
	}
	return Validate(out)
}

func Validate(v any) error {
	if err := validate.Struct(v); err != nil {
		return ValidationError(err)
	}
	return nil
}

// ValidationError turns validator errors into a VALIDATION_ERROR with one
// entry per failing field.
func ValidationError(err error) error {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return apperr.Validation("Invalid input")
	}
	fields := make(map[string]string, len(ve))
	for _, fe := range ve {
		if fe.Param() != "" {
			fields[fe.Field()] = fe.Tag() + "=" + fe.Param()
		} else {
			fields[fe.Field()] = fe.Tag()
		}
	}
	return apperr.ValidationFields("Validation failed", fields)
}

func asAppErr(err error, target **apperr.Error) bool {
	return errors.As(err, target)
}
