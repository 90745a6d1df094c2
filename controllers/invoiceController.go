package controllers

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"praxis-billing/middlewares"
	"praxis-billing/models"
	"praxis-billing/services"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type PublishInput struct {
	SendEmail bool `json:"send_email"`
}

func CreateInvoice(c *fiber.Ctx) error {
	var in services.InvoiceInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	db, err := tenantDB(c)
	if err != nil {
		return err
	}
	clinic, err := currentClinic(c)
	if err != nil {
		return err
	}

	inv, job, err := invoiceService.Create(c.UserContext(), db, clinic, currentSchema(c), in)
	if err != nil {
		return err
	}
	deliverAfterCommit(c, job)
	return c.Status(fiber.StatusCreated).JSON(inv)
}

// deliverAfterCommit mails the invoice only once the request transaction has
// committed, so workers and the sent_at stamp see the stored row.
func deliverAfterCommit(c *fiber.Ctx, job *services.EmailJob) {
	if job == nil {
		return
	}
	j := *job
	middlewares.AfterCommit(c, func(ctx context.Context) error {
		return invoiceService.Deliver(ctx, j)
	})
}

// GetInvoices lists invoices; filters: ?status=draft|open|paid, ?patient_id=.
func GetInvoices(c *fiber.Ctx) error {
	db, err := tenantDB(c)
	if err != nil {
		return err
	}
	limit, offset := page(c)

	var invoices []models.Invoice
	if err := invoiceQuery(db, c).
		Preload("Patient").
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&invoices).Error; err != nil {
		return err
	}
	return c.JSON(invoices)
}

func invoiceQuery(db *gorm.DB, c *fiber.Ctx) *gorm.DB {
	q := db.Model(&models.Invoice{})
	switch c.Query("status") {
	case "draft":
		q = q.Where("draft = ?", true)
	case "open":
		q = q.Where("draft = ? AND paid_total < total", false)
	case "paid":
		q = q.Where("draft = ? AND paid_total >= total", false)
	}
	if pid := c.QueryInt("patient_id"); pid > 0 {
		q = q.Where("p_id = ?", pid)
	}
	return q
}

func GetInvoice(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	db, err := tenantDB(c)
	if err != nil {
		return err
	}
	inv, err := services.LoadInvoice(db, id)
	if err != nil {
		return err
	}
	return c.JSON(inv)
}

// GetInvoiceByReference resolves a (possibly formatted) QR reference.
func GetInvoiceByReference(c *fiber.Ctx) error {
	db, err := tenantDB(c)
	if err != nil {
		return err
	}
	ref, err := pathParam(c, "reference")
	if err != nil {
		return err
	}
	id, err := services.FindInvoiceByReference(db, ref)
	if err != nil {
		return err
	}
	inv, err := services.LoadInvoice(db, id)
	if err != nil {
		return err
	}
	return c.JSON(inv)
}

func UpdateInvoice(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var in services.InvoiceInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	db, err := tenantDB(c)
	if err != nil {
		return err
	}
	clinic, err := currentClinic(c)
	if err != nil {
		return err
	}

	inv, err := invoiceService.Update(c.UserContext(), db, clinic, currentSchema(c), id, in)
	if err != nil {
		return err
	}
	return c.JSON(inv)
}

func PublishInvoice(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var in PublishInput
	if len(c.Body()) > 0 {
		if err := middlewares.BindAndValidate(c, &in); err != nil {
			return err
		}
	}
	db, err := tenantDB(c)
	if err != nil {
		return err
	}
	clinic, err := currentClinic(c)
	if err != nil {
		return err
	}

	inv, job, err := invoiceService.Publish(c.UserContext(), db, clinic, currentSchema(c), id, in.SendEmail)
	if err != nil {
		return err
	}
	deliverAfterCommit(c, job)
	return c.JSON(inv)
}

func SendInvoice(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	db, err := tenantDB(c)
	if err != nil {
		return err
	}
	clinic, err := currentClinic(c)
	if err != nil {
		return err
	}

	inv, job, err := invoiceService.Send(c.UserContext(), db, clinic, currentSchema(c), id)
	if err != nil {
		return err
	}
	deliverAfterCommit(c, job)
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"message":    "queued",
		"invoice_id": inv.ID,
		"to":         inv.Patient.Email,
	})
}

func GetInvoiceVersions(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	db, err := tenantDB(c)
	if err != nil {
		return err
	}

	var versions []models.InvoiceVersion
	if err := db.Where("invoice_id = ?", id).Order("version_no").Find(&versions).Error; err != nil {
		return err
	}
	return c.JSON(versions)
}

func GetInstallments(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	db, err := tenantDB(c)
	if err != nil {
		return err
	}
	inv, err := services.LoadInvoice(db, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"installment_mode": inv.InstallmentMode,
		"total":            inv.Total,
		"installments":     inv.Installments,
	})
}

// DownloadInvoicePDF streams the stored PDF, rendering it on the fly when missing.
func DownloadInvoicePDF(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	db, err := tenantDB(c)
	if err != nil {
		return err
	}
	inv, err := services.LoadInvoice(db, id)
	if err != nil {
		return err
	}

	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`inline; filename="invoice_%s.pdf"`, inv.InvoiceNumber))

	if inv.PDFPath != "" {
		if _, err := os.Stat(inv.PDFPath); err == nil {
			return c.SendFile(inv.PDFPath)
		}
	}

	clinic, err := currentClinic(c)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := services.RenderInvoicePDF(&buf, invoiceService.Document(*inv, clinic)); err != nil {
		return err
	}
	return c.Send(buf.Bytes())
}

// ExportInvoices returns the filtered invoice list as .xlsx.
func ExportInvoices(c *fiber.Ctx) error {
	db, err := tenantDB(c)
	if err != nil {
		return err
	}

	var invoices []models.Invoice
	if err := invoiceQuery(db, c).
		Preload("Patient").
		Preload("Installments", func(tx *gorm.DB) *gorm.DB { return tx.Order("position") }).
		Order("created_at").
		Find(&invoices).Error; err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := services.ExportInvoicesXLSX(&buf, invoices); err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="invoices_%s.xlsx"`, time.Now().Format("20060102")))
	return c.Send(buf.Bytes())
}
