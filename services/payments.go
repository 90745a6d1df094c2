package services

import (
	"context"
	"strings"
	"time"

	"praxis-billing/billing"
	"praxis-billing/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// PaymentInput is an incoming payment for one invoice.
type PaymentInput struct {
	Amount    float64    `json:"amount" validate:"gt=0"`
	Method    string     `json:"method" validate:"omitempty,oneof=qr bank cash card insurer"`
	Reference string     `json:"reference"`
	Note      string     `json:"note" validate:"max=500"`
	PaidAt    *time.Time `json:"paid_at"`
}

// RecordPayment stores p, rolls it into PaidTotal and marks settled installments.
func RecordPayment(ctx context.Context, db *gorm.DB, invoiceID uint, p PaymentInput) (*models.Payment, *models.Invoice, error) {
	db = db.WithContext(ctx)

	ref := strings.Join(strings.Fields(p.Reference), "")
	if ref != "" {
		if err := billing.ValidateReference(ref); err != nil {
			return nil, nil, err
		}
	}

	inv, err := LoadInvoice(db, invoiceID)
	if err != nil {
		return nil, nil, err
	}
	if inv.Draft {
		return nil, nil, fiber.NewError(fiber.StatusConflict, "draft invoices cannot receive payments")
	}
	if ref != "" && !invoiceOwnsReference(inv, ref) {
		return nil, nil, fiber.NewError(fiber.StatusUnprocessableEntity, "reference does not belong to this invoice")
	}

	paidAt := time.Now().UTC()
	if p.PaidAt != nil {
		paidAt = p.PaidAt.UTC()
	}
	method := p.Method
	if method == "" {
		method = "qr"
	}
	pay := models.Payment{
		InvoiceID: inv.ID,
		Amount:    billing.Round2(p.Amount),
		Method:    method,
		Reference: ref,
		Note:      p.Note,
		PaidAt:    paidAt,
	}
	if err := db.Create(&pay).Error; err != nil {
		return nil, nil, err
	}

	inv.PaidTotal = billing.Round2(inv.PaidTotal + pay.Amount)
	if err := db.Model(inv).Update("paid_total", inv.PaidTotal).Error; err != nil {
		return nil, nil, err
	}

	for _, i := range MarkPaidInstallments(inv.Installments, inv.PaidTotal, ref, paidAt) {
		in := inv.Installments[i]
		if err := db.Model(&models.Installment{}).Where("id = ?", in.ID).Update("paid_at", in.PaidAt).Error; err != nil {
			return nil, nil, err
		}
	}
	return &pay, inv, nil
}

// MarkPaidInstallments stamps PaidAt on the installment whose reference matches
// ref and on every leading installment covered by paidTotal. It returns the
// indexes it changed.
func MarkPaidInstallments(ins []models.Installment, paidTotal float64, ref string, at time.Time) []int {
	var changed []int
	mark := func(i int) {
		if ins[i].PaidAt == nil {
			t := at
			ins[i].PaidAt = &t
			changed = append(changed, i)
		}
	}

	if ref != "" {
		for i := range ins {
			if ins[i].Reference == ref {
				mark(i)
			}
		}
	}

	covered := 0.0
	for i := range ins {
		covered = billing.Round2(covered + ins[i].Amount)
		if covered > billing.Round2(paidTotal) {
			break
		}
		mark(i)
	}
	return changed
}

func invoiceOwnsReference(inv *models.Invoice, ref string) bool {
	if inv.Reference == ref {
		return true
	}
	for _, in := range inv.Installments {
		if in.Reference == ref {
			return true
		}
	}
	return false
}

// FindInvoiceByReference resolves a QR reference to its invoice id, checking
// installment references too.
func FindInvoiceByReference(db *gorm.DB, ref string) (uint, error) {
	ref = strings.Join(strings.Fields(ref), "")
	if err := billing.ValidateReference(ref); err != nil {
		return 0, err
	}

	var inv models.Invoice
	if err := db.Select("id").Where("reference = ?", ref).Limit(1).Find(&inv).Error; err != nil {
		return 0, err
	}
	if inv.ID != 0 {
		return inv.ID, nil
	}

	var in models.Installment
	if err := db.Select("invoice_id").Where("reference = ?", ref).Limit(1).Find(&in).Error; err != nil {
		return 0, err
	}
	if in.InvoiceID != 0 {
		return in.InvoiceID, nil
	}
	return 0, fiber.NewError(fiber.StatusNotFound, "no invoice with this reference")
}
