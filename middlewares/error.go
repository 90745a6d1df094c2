package middlewares

import (
	"errors"

	"praxis-billing/billing"
	"praxis-billing/logger"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// stepError is implemented by errors that know which pipeline step failed.
type stepError interface {
	FailedStep() string
}

// ErrorHandler centralizes error responses and keeps messages sanitized.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{"message": fe.Message})
	}

	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		out := make(map[string]string, len(ve))
		for _, e := range ve {
			out[e.Field()] = e.Tag()
		}
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"message": "validation failed",
			"errors":  out,
		})
	}

	var pe *billing.PlanError
	if errors.As(err, &pe) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"message":      "installment percentages must sum to 100%",
			"percent_sum":  pe.Sum,
			"installments": pe.Count,
		})
	}
	if errors.Is(err, billing.ErrInvalidReference) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"message": err.Error()})
	}

	ev := logger.WithComponent("http").Error().
		Err(err).
		Str("method", c.Method()).
		Str("path", c.Path())
	var se stepError
	if errors.As(err, &se) {
		ev = ev.Str("step", se.FailedStep())
	}
	ev.Msg("internal error")

	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"message": "internal server error",
	})
}
