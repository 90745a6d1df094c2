package controllers

import (
	"strings"

	"praxis-billing/billing"
	"praxis-billing/middlewares"

	"github.com/gofiber/fiber/v2"
)

type ReferenceCheckInput struct {
	Reference string `json:"reference" validate:"required"`
}

type TotalInput struct {
	Lines []billing.Line `json:"lines"`
}

type InstallmentsInput struct {
	Total        float64                   `json:"total"`
	Installments []billing.InstallmentSpec `json:"installments" validate:"required"`
}

// GetReference computes the QR reference for an identifier such as an invoice number.
func GetReference(c *fiber.Ctx) error {
	id, err := pathParam(c, "identifier")
	if err != nil {
		return err
	}
	ref := billing.GenerateReference(id)
	return c.JSON(fiber.Map{
		"identifier": id,
		"reference":  ref,
		"formatted":  billing.FormatReference(ref),
	})
}

func ValidateReference(c *fiber.Ctx) error {
	var in ReferenceCheckInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	if err := billing.ValidateReference(in.Reference); err != nil {
		return err
	}
	compact := strings.Join(strings.Fields(in.Reference), "")
	return c.JSON(fiber.Map{
		"valid":     true,
		"reference": compact,
		"formatted": billing.FormatReference(compact),
	})
}

// ComputeTotal returns the per-line terms and the unrounded and display totals.
func ComputeTotal(c *fiber.Ctx) error {
	var in TotalInput
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	lines := make([]float64, len(in.Lines))
	for i, l := range in.Lines {
		lines[i] = billing.LineTotal(l)
	}
	total := billing.ComputeInvoiceTotal(in.Lines)
	return c.JSON(fiber.Map{
		"line_totals": lines,
		"total":       total,
		"rounded":     billing.Round2(total),
	})
}

func AllocateInstallments(c *fiber.Ctx) error {
	var in InstallmentsInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	allocated, err := billing.AllocateInstallments(in.Total, in.Installments)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"installments": allocated,
		"drift":        billing.Drift(in.Total, allocated),
	})
}
