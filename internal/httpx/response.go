package httpx

import (
	"cylinder-backend/internal/apperr"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func Success(c *fiber.Ctx, message string, data any) error {
	return SuccessWithCode(c, fiber.StatusOK, message, data)
}

func Created(c *fiber.Ctx, message string, data any) error {
	return SuccessWithCode(c, fiber.StatusCreated, message, data)
}

func SuccessWithCode(c *fiber.Ctx, code int, message string, data any) error {
	body := fiber.Map{
		"status":  "success",
		"message": message,
	}
	if data != nil {
		body["data"] = data
	}
	return c.Status(code).JSON(body)
}

// Page writes a list result together with its paging metadata.
func Page(c *fiber.Ctx, data any, p Paging, total int64) error {
	return c.JSON(fiber.Map{
		"status":     "success",
		"data":       data,
		"pagination": p.Meta(total),
	})
}

// ErrorHandler is installed as fiber's ErrorHandler. Unexpected errors are
// logged with their cause and reported with a generic message.
func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := apperr.HTTPStatus(err)
		body := fiber.Map{"status": "error"}

		if fe, ok := err.(*fiber.Error); ok {
			body["message"] = fe.Message
			return c.Status(status).JSON(body)
		}

		var ae *apperr.Error
		if asAppErr(err, &ae) && ae.Code != apperr.CodeUnexpected {
			body["message"] = ae.Message
			body["code"] = ae.Code
			if len(ae.Fields) > 0 {
				body["errors"] = ae.Fields
			}
			return c.Status(status).JSON(body)
		}

		log.Error("unexpected error",
			zap.Error(err),
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Any("request_id", c.Locals(RequestIDKey)),
		)
		body["message"] = "Internal server error"
		body["code"] = apperr.CodeUnexpected
		return c.Status(status).JSON(body)
	}
}
