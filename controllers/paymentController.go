package controllers

import (
	"praxis-billing/middlewares"
	"praxis-billing/models"
	"praxis-billing/services"

	"github.com/gofiber/fiber/v2"
)

func CreatePayment(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var in services.PaymentInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	db, err := tenantDB(c)
	if err != nil {
		return err
	}

	pay, inv, err := services.RecordPayment(c.UserContext(), db, id, in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"payment":      pay,
		"paid_total":   inv.PaidTotal,
		"outstanding":  inv.Outstanding(),
		"installments": inv.Installments,
	})
}

func ListPayments(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	db, err := tenantDB(c)
	if err != nil {
		return err
	}

	var payments []models.Payment
	if err := db.Where("invoice_id = ?", id).Order("paid_at").Find(&payments).Error; err != nil {
		return err
	}
	return c.JSON(payments)
}
