package database

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestSchemaFor(t *testing.T) {
	got, err := SchemaFor("  Praxis Dr. Muster ")
	require.NoError(t, err)
	assert.Equal(t, "praxis_dr__muster", got)

	_, err = SchemaFor("1st clinic")
	assert.Error(t, err)

	_, err = SchemaFor(`x"; drop schema public; --`)
	assert.Error(t, err)
}

func TestValidSchema(t *testing.T) {
	assert.True(t, ValidSchema("praxis_bern"))
	assert.False(t, ValidSchema(""))
	assert.False(t, ValidSchema("Praxis"))
}

func TestWithTenant_RejectsBadSchema(t *testing.T) {
	called := false
	err := WithTenant(context.Background(), "bad-name", func(*gorm.DB) error {
		called = true
		return nil
	})
	assert.Error(t, err)
	assert.False(t, called)
}

func TestGetTenantDB_RequiresTx(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		_, err := GetTenantDB(c)
		assert.ErrorIs(t, err, ErrNoTenantTx)
		return c.SendStatus(fiber.StatusNoContent)
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}
