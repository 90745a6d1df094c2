package controllers

import (
	"errors"
	"strings"
	"time"

	"praxis-billing/database"
	"praxis-billing/logger"
	"praxis-billing/middlewares"
	"praxis-billing/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type RegisterInput struct {
	FirstName       string `json:"first_name" validate:"required,max=100"`
	LastName        string `json:"last_name" validate:"required,max=100"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8,max=72"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
	Salutation      string `json:"salutation"`
	Title           string `json:"title"`
	PhoneNumber     string `json:"phone_number" validate:"required"`
	MobileNumber    string `json:"mobile_number"`
	GLN             string `json:"gln" validate:"omitempty,len=13,numeric"`

	ClinicName string `json:"clinic_name" validate:"required,max=63"`
	Address    string `json:"address" validate:"required"`
	City       string `json:"city" validate:"required"`
	Country    string `json:"country" validate:"required"`
	Zip        string `json:"zip" validate:"required"`
	Homepage   string `json:"homepage"`
	UID        string `json:"uid"`
	IBAN       string `json:"iban" validate:"omitempty,min=15,max=34"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Register creates the physician account, the clinic and its tenant schema.
func Register(c *fiber.Ctx) error {
	var in RegisterInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	var count int64
	database.DB.Model(&models.User{}).Where("email = ?", in.Email).Count(&count)
	if count > 0 {
		return fiber.NewError(fiber.StatusConflict, "email already exists")
	}

	schemaName, err := database.SchemaFor(in.ClinicName)
	if err != nil {
		return fiber.NewError(fiber.StatusUnprocessableEntity, "clinic name cannot be used as tenant name")
	}
	database.DB.Model(&models.Clinic{}).Where("schema_name = ?", schemaName).Count(&count)
	if count > 0 {
		return fiber.NewError(fiber.StatusConflict, "clinic already registered")
	}

	// Schema first: migrations are idempotent, a failed registration can simply be retried.
	if err := database.MigrateTenantSchema(schemaName); err != nil {
		return err
	}

	var clinic models.Clinic
	err = database.DB.Transaction(func(tx *gorm.DB) error {
		user := models.User{
			FirstName:  in.FirstName,
			LastName:   in.LastName,
			Email:      in.Email,
			Role:       "physician",
			SchemaName: schemaName,
		}
		if err := user.SetPassword(in.Password); err != nil {
			return err
		}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}

		contactPerson := models.ContactPerson{
			FirstName:    in.FirstName,
			LastName:     in.LastName,
			Salutation:   in.Salutation,
			Title:        in.Title,
			PhoneNumber:  in.PhoneNumber,
			MobileNumber: in.MobileNumber,
			GLN:          in.GLN,
		}
		if err := tx.Create(&contactPerson).Error; err != nil {
			return err
		}

		clinic = models.Clinic{
			ClinicName: in.ClinicName,
			Address:    in.Address,
			City:       in.City,
			Country:    in.Country,
			Zip:        in.Zip,
			Homepage:   in.Homepage,
			UID:        in.UID,
			IBAN:       strings.ToUpper(strings.Join(strings.Fields(in.IBAN), "")),
			UserId:     user.Id,
			PId:        contactPerson.Id,
			SchemaName: schemaName,
		}
		return tx.Omit("User", "ContactPerson").Create(&clinic).Error
	})
	if err != nil {
		logger.WithComponent("auth").Error().Err(err).Str("schema", schemaName).Msg("registration failed")
		return fiber.NewError(fiber.StatusBadRequest, "Registration failed")
	}

	database.DB.Preload("User").Preload("ContactPerson").First(&clinic, "id = ?", clinic.Id)
	return c.Status(fiber.StatusCreated).JSON(clinic)
}

func Login(c *fiber.Ctx) error {
	var in LoginInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}

	var user models.User
	err := database.DB.Table("public.users").Where("email = ?", strings.ToLower(strings.TrimSpace(in.Email))).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fiber.NewError(fiber.StatusUnauthorized, "Invalid credentials")
	}
	if err != nil {
		return err
	}
	if err := user.ComparePassword(in.Password); err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, "Invalid credentials")
	}

	token, err := middlewares.GenerateJWT(user.Id, user.SchemaName, user.Role)
	if err != nil {
		return err
	}

	// Brings older clinic schemas up to date with new tables/constraints.
	if err := database.MigrateTenantSchema(user.SchemaName); err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"token":  token,
		"schema": user.SchemaName,
		"user": fiber.Map{
			"id":    user.Id,
			"name":  user.FullName(),
			"email": user.Email,
			"role":  user.Role,
		},
	})
}

// Logout clears a legacy jwt cookie; bearer tokens simply expire.
func Logout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     "jwt",
		Value:    "",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
	})
	return c.JSON(fiber.Map{
		"message": "success",
	})
}
