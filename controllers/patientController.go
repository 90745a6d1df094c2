package controllers

import (
	"strings"
	"time"

	"praxis-billing/middlewares"
	"praxis-billing/models"
	"praxis-billing/utils"

	"github.com/gofiber/fiber/v2"
)

type PatientInput struct {
	FirstName       string     `json:"first_name" validate:"required,max=100"`
	LastName        string     `json:"last_name" validate:"required,max=100"`
	BirthDate       *time.Time `json:"birth_date"`
	Salutation      string     `json:"salutation"`
	Address         string     `json:"address" validate:"required"`
	City            string     `json:"city" validate:"required"`
	Country         string     `json:"country" validate:"required"`
	Zip             string     `json:"zip" validate:"required"`
	Email           string     `json:"email" validate:"omitempty,email"`
	PhoneNumber     string     `json:"phone_number"`
	InsurerId       *uint      `json:"insurer_id"`
	InsuranceNumber string     `json:"insurance_number" validate:"max=40"`
}

type PatientPatch struct {
	FirstName       *string    `json:"first_name" validate:"omitempty,max=100"`
	LastName        *string    `json:"last_name" validate:"omitempty,max=100"`
	BirthDate       *time.Time `json:"birth_date"`
	Salutation      *string    `json:"salutation"`
	Address         *string    `json:"address"`
	City            *string    `json:"city"`
	Country         *string    `json:"country"`
	Zip             *string    `json:"zip"`
	Email           *string    `json:"email" validate:"omitempty,email"`
	PhoneNumber     *string    `json:"phone_number"`
	InsurerId       *uint      `json:"insurer_id"`
	InsuranceNumber *string    `json:"insurance_number" validate:"omitempty,max=40"`
	Active          *bool      `json:"active"`
}

func CreatePatient(c *fiber.Ctx) error {
	var in PatientInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	utils.NormalizeDTO(&in)

	db, err := tenantDB(c)
	if err != nil {
		return err
	}

	patient := models.Patient{
		FirstName:       in.FirstName,
		LastName:        in.LastName,
		BirthDate:       in.BirthDate,
		Salutation:      in.Salutation,
		Address:         in.Address,
		City:            in.City,
		Country:         in.Country,
		Zip:             in.Zip,
		Email:           strings.ToLower(in.Email),
		PhoneNumber:     in.PhoneNumber,
		InsurerId:       in.InsurerId,
		InsuranceNumber: in.InsuranceNumber,
		Active:          true,
	}
	if err := db.Create(&patient).Error; err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(patient)
}

// GetPatients lists patients; ?q= filters by name, ?active=false includes inactive ones.
func GetPatients(c *fiber.Ctx) error {
	db, err := tenantDB(c)
	if err != nil {
		return err
	}
	limit, offset := page(c)

	q := db.Model(&models.Patient{})
	if c.Query("active") != "false" {
		q = q.Where("active = ?", true)
	}
	if s := strings.TrimSpace(c.Query("q")); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where("LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ?", like, like)
	}

	var patients []models.Patient
	if err := q.Order("last_name, first_name").Limit(limit).Offset(offset).Find(&patients).Error; err != nil {
		return err
	}
	return c.JSON(patients)
}

func GetPatient(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	db, err := tenantDB(c)
	if err != nil {
		return err
	}

	var patient models.Patient
	if err := db.Preload("Insurer").First(&patient, id).Error; err != nil {
		return notFound(err, "patient not found")
	}
	return c.JSON(patient)
}

func UpdatePatient(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var in PatientPatch
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	utils.NormalizePtrDTO(&in)

	db, err := tenantDB(c)
	if err != nil {
		return err
	}

	var patient models.Patient
	if err := db.First(&patient, id).Error; err != nil {
		return notFound(err, "patient not found")
	}
	if updates := utils.UpdatesFromPtrDTO(&in, nil); len(updates) > 0 {
		if err := db.Model(&patient).Updates(updates).Error; err != nil {
			return err
		}
	}
	if err := db.First(&patient, id).Error; err != nil {
		return err
	}
	return c.JSON(patient)
}
