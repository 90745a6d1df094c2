package controllers

import (
	"fmt"
	"strings"

	"praxis-billing/middlewares"
	"praxis-billing/models"
	"praxis-billing/utils"

	"github.com/gofiber/fiber/v2"
)

type TariffInput struct {
	Code        string  `json:"code" validate:"required,max=32"`
	Description string  `json:"description" validate:"max=500"`
	BasePrice   float64 `json:"base_price" validate:"gte=0"`
	TaxRate     float64 `json:"tax_rate" validate:"gte=0,lte=100"`
	Active      *bool   `json:"active"`
}

type TariffPatch struct {
	Code        *string  `json:"code" validate:"omitempty,max=32"`
	Description *string  `json:"description" validate:"omitempty,max=500"`
	BasePrice   *float64 `json:"base_price" validate:"omitempty,gte=0"`
	TaxRate     *float64 `json:"tax_rate" validate:"omitempty,gte=0,lte=100" normalize:"-"`
	Active      *bool    `json:"active"`
}

// CreateTariffs is a batch create: all positions are stored or none.
func CreateTariffs(c *fiber.Ctx) error {
	var inputs []TariffInput
	if err := c.BodyParser(&inputs); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if len(inputs) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "no tariffs given")
	}

	db, err := tenantDB(c)
	if err != nil {
		return err
	}

	created := make([]models.Tariff, 0, len(inputs))
	for i := range inputs {
		in := &inputs[i]
		if err := middlewares.ValidateStruct(in); err != nil {
			return err
		}
		utils.NormalizeDTO(in)

		active := true
		if in.Active != nil {
			active = *in.Active
		}
		tariff := models.Tariff{
			Code:        in.Code,
			Description: in.Description,
			BasePrice:   in.BasePrice,
			TaxRate:     in.TaxRate,
			Active:      active,
		}
		if err := db.Create(&tariff).Error; err != nil {
			return fiber.NewError(fiber.StatusConflict, fmt.Sprintf("Could not create tariff at index %d", i))
		}
		created = append(created, tariff)
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

// GetTariffs lists the catalog; ?q= matches code or description.
func GetTariffs(c *fiber.Ctx) error {
	db, err := tenantDB(c)
	if err != nil {
		return err
	}
	limit, offset := page(c)

	q := db.Model(&models.Tariff{})
	if c.Query("all") != "true" {
		q = q.Where("active = ?", true)
	}
	if s := strings.TrimSpace(c.Query("q")); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where("LOWER(code) LIKE ? OR LOWER(description) LIKE ?", like, like)
	}

	var tariffs []models.Tariff
	if err := q.Order("code").Limit(limit).Offset(offset).Find(&tariffs).Error; err != nil {
		return err
	}
	return c.JSON(tariffs)
}

func UpdateTariff(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	var in TariffPatch
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	utils.NormalizePtrDTO(&in)

	db, err := tenantDB(c)
	if err != nil {
		return err
	}

	var tariff models.Tariff
	if err := db.First(&tariff, "id = ?", id).Error; err != nil {
		return notFound(err, "tariff not found")
	}
	if updates := utils.UpdatesFromPtrDTO(&in, nil); len(updates) > 0 {
		if err := db.Model(&tariff).Updates(updates).Error; err != nil {
			return err
		}
	}
	if err := db.First(&tariff, "id = ?", id).Error; err != nil {
		return err
	}
	return c.JSON(tariff)
}

// LookupTariff asks the external tariff service for a position; ?import=true
// also stores it in the clinic catalog.
func LookupTariff(c *fiber.Ctx) error {
	if !tariffClient.Enabled() {
		return fiber.NewError(fiber.StatusServiceUnavailable, "tariff service not configured")
	}
	code, err := pathParam(c, "code")
	if err != nil {
		return err
	}
	quote, err := tariffClient.Lookup(code)
	if err != nil {
		return err
	}
	if c.Query("import") != "true" {
		return c.JSON(quote)
	}

	db, err := tenantDB(c)
	if err != nil {
		return err
	}
	var tariff models.Tariff
	db.Where("code = ?", quote.Code).Limit(1).Find(&tariff)
	tariff.Code = quote.Code
	tariff.Description = quote.Description
	tariff.BasePrice = quote.Price
	tariff.TaxRate = quote.TaxRate
	tariff.Active = true
	if err := db.Save(&tariff).Error; err != nil {
		return err
	}
	return c.JSON(tariff)
}
