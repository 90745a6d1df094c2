package database

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

var ErrNoTenantTx = errors.New("no tenant transaction on request")

// GetTenantDB returns the per-request TX opened by middlewares.TenantTx,
// bound to the request context.
func GetTenantDB(c *fiber.Ctx) (*gorm.DB, error) {
	if tx, ok := c.Locals("tx").(*gorm.DB); ok && tx != nil {
		return tx.WithContext(c.UserContext()), nil
	}
	return nil, ErrNoTenantTx
}
