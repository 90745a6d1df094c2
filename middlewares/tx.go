package middlewares

import (
	"context"
	"strings"

	"praxis-billing/database"
	"praxis-billing/logger"

	"github.com/gofiber/fiber/v2"
)

// TenantTx opens a per-request DB transaction pinned to the clinic schema.
// Order: run AFTER IsAuthenticatedHeader() (so schema/userID are present),
// and AFTER Idempotency() (so idempotency records aren't tied to the handler TX).
func TenantTx() fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		schema, _ := c.Locals("schema").(string)
		if strings.TrimSpace(schema) == "" {
			return c.Next()
		}
		if !database.ValidSchema(schema) {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid tenant")
		}

		tx := database.DB.WithContext(c.UserContext()).Begin()
		if tx.Error != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to begin transaction")
		}

		defer func() {
			if r := recover(); r != nil {
				_ = tx.Rollback()
				panic(r)
			}
			// Handlers may answer 4xx without returning an error; never commit those.
			if err != nil || c.Response().StatusCode() >= fiber.StatusBadRequest {
				_ = tx.Rollback()
				return
			}
			if e := tx.Commit().Error; e != nil {
				logger.WithComponent("tx").Error().Err(e).Str("schema", schema).Msg("tx commit failed")
				err = fiber.NewError(fiber.StatusInternalServerError, "transaction commit failed")
				return
			}
			runAfterCommit(c)
		}()

		// SET LOCAL reverts at TX end.
		if e := tx.Exec(`SET LOCAL search_path = "` + schema + `", public`).Error; e != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to set tenant schema")
		}

		c.Locals("tx", tx)
		return c.Next()
	}
}

type commitHook func(ctx context.Context) error

// AfterCommit defers fn until the request transaction has committed; it is
// dropped on rollback. Outside a tenant transaction fn runs right away.
// Hook errors are logged only, the data is already durable.
func AfterCommit(c *fiber.Ctx, fn func(ctx context.Context) error) {
	if c.Locals("tx") == nil {
		logHookError(c, fn(c.UserContext()))
		return
	}
	hooks, _ := c.Locals("after_commit").([]commitHook)
	c.Locals("after_commit", append(hooks, fn))
}

func runAfterCommit(c *fiber.Ctx) {
	hooks, _ := c.Locals("after_commit").([]commitHook)
	c.Locals("after_commit", nil)
	for _, fn := range hooks {
		logHookError(c, fn(c.UserContext()))
	}
}

func logHookError(c *fiber.Ctx, err error) {
	if err == nil {
		return
	}
	logger.WithComponent("tx").Error().Err(err).
		Str("path", c.Path()).
		Msg("after-commit hook failed")
}
