package controllers

import (
	"strings"

	"praxis-billing/middlewares"
	"praxis-billing/models"
	"praxis-billing/utils"

	"github.com/gofiber/fiber/v2"
)

type InsurerInput struct {
	Name        string `json:"name" validate:"required,max=200"`
	Address     string `json:"address" validate:"required"`
	City        string `json:"city" validate:"required"`
	Country     string `json:"country" validate:"required"`
	Zip         string `json:"zip" validate:"required"`
	Homepage    string `json:"homepage"`
	GLN         string `json:"gln" validate:"omitempty,len=13,numeric"`
	Email       string `json:"email" validate:"required,email"`
	PhoneNumber string `json:"phone_number" validate:"required"`
}

type InsurerPatch struct {
	Name        *string `json:"name" validate:"omitempty,max=200"`
	Address     *string `json:"address"`
	City        *string `json:"city"`
	Country     *string `json:"country"`
	Zip         *string `json:"zip"`
	Homepage    *string `json:"homepage"`
	GLN         *string `json:"gln" validate:"omitempty,len=13,numeric"`
	Email       *string `json:"email" validate:"omitempty,email"`
	PhoneNumber *string `json:"phone_number"`
}

func CreateInsurer(c *fiber.Ctx) error {
	var in InsurerInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	utils.NormalizeDTO(&in)

	db, err := tenantDB(c)
	if err != nil {
		return err
	}

	insurer := models.Insurer{
		Name:        in.Name,
		Address:     in.Address,
		City:        in.City,
		Country:     in.Country,
		Zip:         in.Zip,
		Homepage:    in.Homepage,
		GLN:         in.GLN,
		Email:       strings.ToLower(in.Email),
		PhoneNumber: in.PhoneNumber,
	}
	if err := db.Create(&insurer).Error; err != nil {
		return fiber.NewError(fiber.StatusConflict, "Could not create insurer")
	}
	return c.Status(fiber.StatusCreated).JSON(insurer)
}

func GetInsurers(c *fiber.Ctx) error {
	db, err := tenantDB(c)
	if err != nil {
		return err
	}
	var insurers []models.Insurer
	if err := db.Order("name").Find(&insurers).Error; err != nil {
		return err
	}
	return c.JSON(insurers)
}

func UpdateInsurer(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var in InsurerPatch
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	utils.NormalizePtrDTO(&in)

	db, err := tenantDB(c)
	if err != nil {
		return err
	}

	var insurer models.Insurer
	if err := db.First(&insurer, id).Error; err != nil {
		return notFound(err, "insurer not found")
	}
	if updates := utils.UpdatesFromPtrDTO(&in, nil); len(updates) > 0 {
		if err := db.Model(&insurer).Updates(updates).Error; err != nil {
			return err
		}
	}
	if err := db.First(&insurer, id).Error; err != nil {
		return err
	}
	return c.JSON(insurer)
}
