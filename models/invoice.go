package models

import (
	"time"

	"gorm.io/datatypes"
)

// Invoice is the current/live state of a consultation invoice.
type Invoice struct {
	ID            uint       `json:"id" gorm:"primaryKey"`
	InvoiceNumber string     `json:"invoice_number" gorm:"unique"`
	Reference     string     `json:"reference" gorm:"size:27;uniqueIndex:idx_invoices_reference_unique"` // QR reference, 27 digits
	PId           uint       `json:"patient_id"`
	Patient       Patient    `json:"patient" gorm:"foreignKey:PId;references:Id"`
	InsurerId     *uint      `json:"insurer_id"` // set when billed tiers payant
	Currency      string     `json:"currency" gorm:"size:3;default:'CHF'"`
	TreatmentDate *time.Time `json:"treatment_date"`
	Notes         string     `json:"notes"`

	// Live items (latest state)
	Items    []InvoiceItem `json:"items" gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE"`
	Subtotal float64       `json:"subtotal" gorm:"type:numeric(12,2)"`
	Total    float64       `json:"total" gorm:"type:numeric(12,2)"`

	// Installment plan; empty unless InstallmentMode
	InstallmentMode bool          `json:"installment_mode"`
	Installments    []Installment `json:"installments" gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE"`

	// State
	Draft       bool       `json:"draft"`
	Published   bool       `json:"published"`
	PublishedAt *time.Time `json:"published_at"`
	SentAt      *time.Time `json:"sent_at"`
	PDFPath     string     `json:"-"`

	// Payments rollup
	PaidTotal float64 `json:"paid_total" gorm:"type:numeric(12,2)"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Outstanding is the part of Total not covered by payments yet.
func (inv Invoice) Outstanding() float64 {
	if inv.PaidTotal >= inv.Total {
		return 0
	}
	return inv.Total - inv.PaidTotal
}

type InvoiceItem struct {
	ID              uint    `json:"id" gorm:"primaryKey"`
	InvoiceID       uint    `json:"-" gorm:"index"`
	TariffID        *string `json:"tariff_id" gorm:"index"`
	Tariff          *Tariff `json:"-" gorm:"foreignKey:TariffID;references:Id;constraint:OnUpdate:RESTRICT,OnDelete:RESTRICT"`
	Code            string  `json:"code" gorm:"size:32"`
	Description     string  `json:"description"`
	Quantity        float64 `json:"quantity"`
	UnitPrice       float64 `json:"unit_price" gorm:"type:numeric(12,2)"`
	DiscountPercent float64 `json:"discount_percent"`
	LineTotal       float64 `json:"line_total" gorm:"type:numeric(12,2)"`
}

// Installment is one partial payment of an invoice.
type Installment struct {
	ID        uint       `json:"id" gorm:"primaryKey"`
	InvoiceID uint       `json:"-" gorm:"index:idx_installments_invoice_position,unique,priority:1"`
	Position  int        `json:"position" gorm:"not null;index:idx_installments_invoice_position,unique,priority:2"`
	Percent   float64    `json:"percent" gorm:"type:numeric(5,2)"`
	DueDate   string     `json:"due_date,omitempty" gorm:"size:10"`
	Amount    float64    `json:"amount" gorm:"type:numeric(12,2)"`
	Reference string     `json:"reference" gorm:"size:27;uniqueIndex:idx_installments_reference_unique"`
	PaidAt    *time.Time `json:"paid_at"`
}

// Immutable snapshot
type InvoiceVersion struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	InvoiceID uint           `json:"invoice_id" gorm:"index:idx_invoice_versions_invoice_id_version_no,unique,priority:1"`
	VersionNo int            `json:"version_no" gorm:"not null;index:idx_invoice_versions_invoice_id_version_no,unique,priority:2"`
	Kind      string         `json:"kind" gorm:"type:VARCHAR(20)"` // "draft" | "invoice"
	Snapshot  datatypes.JSON `json:"snapshot" gorm:"type:jsonb"`
	CreatedAt time.Time      `json:"created_at"`
}

// Payment is an incoming payment matched to an invoice, usually by Reference.
type Payment struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	InvoiceID uint      `json:"invoice_id" gorm:"index:idx_payments_invoice_paid_at,priority:1"`
	Amount    float64   `json:"amount" gorm:"type:numeric(12,2)"`
	Method    string    `json:"method"`
	Reference string    `json:"reference"`
	Note      string    `json:"note"`
	PaidAt    time.Time `json:"paid_at" gorm:"index:idx_payments_invoice_paid_at,priority:2"`
	CreatedAt time.Time `json:"created_at"`
}
