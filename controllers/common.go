package controllers

import (
	"errors"
	"net/url"
	"strconv"

	"praxis-billing/database"
	"praxis-billing/models"
	"praxis-billing/services"
	"praxis-billing/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

var (
	invoiceService = &services.InvoiceService{}
	tariffClient   *services.TariffClient
)

// Configure installs the services used by the handlers. Call before routes.Register.
func Configure(inv *services.InvoiceService, tc *services.TariffClient) {
	if inv != nil {
		invoiceService = inv
	}
	tariffClient = tc
}

// tenantDB returns the request's schema-pinned DB or a 500.
func tenantDB(c *fiber.Ctx) (*gorm.DB, error) {
	db, err := database.GetTenantDB(c)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "Could not retrieve tenant schema")
	}
	return db, nil
}

func currentSchema(c *fiber.Ctx) string {
	s, _ := c.Locals("schema").(string)
	return s
}

// currentClinic loads the clinic owning the request's schema.
func currentClinic(c *fiber.Ctx) (models.Clinic, error) {
	var clinic models.Clinic
	err := database.DB.WithContext(c.UserContext()).
		Table("public.clinics").
		Where("schema_name = ?", currentSchema(c)).
		First(&clinic).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return clinic, fiber.NewError(fiber.StatusUnauthorized, "clinic not found")
	}
	return clinic, err
}

func idParam(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}
	return uint(id), nil
}

// pathParam returns the unescaped route parameter; fiber hands it over raw.
func pathParam(c *fiber.Ctx, name string) (string, error) {
	v, err := url.PathUnescape(c.Params(name))
	if err != nil {
		return "", fiber.NewError(fiber.StatusBadRequest, "invalid "+name)
	}
	return v, nil
}

// notFound maps gorm's not-found to a 404 with the given message.
func notFound(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fiber.NewError(fiber.StatusNotFound, msg)
	}
	return err
}

// page reads ?limit=&offset= with sane bounds.
func page(c *fiber.Ctx) (limit, offset int) {
	limit = utils.ParseIntDefault(c.Query("limit"), 50)
	if limit == 0 || limit > 200 {
		limit = 50
	}
	return limit, utils.ParseIntDefault(c.Query("offset"), 0)
}
