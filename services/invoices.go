package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"praxis-billing/billing"
	"praxis-billing/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ItemInput is one requested invoice position. Quantity and UnitPrice may be
// omitted; the catalog price of TariffID is used when UnitPrice is missing.
type ItemInput struct {
	TariffID        *string  `json:"tariff_id" validate:"omitempty,uuid"`
	Code            string   `json:"code" validate:"max=32"`
	Description     string   `json:"description" validate:"max=500"`
	Quantity        *float64 `json:"quantity"`
	UnitPrice       *float64 `json:"unit_price"`
	DiscountPercent float64  `json:"discount_percent" validate:"gte=0,lte=100"`
}

// InvoiceInput is the create/update payload.
type InvoiceInput struct {
	InvoiceNumber   string                    `json:"invoice_number" validate:"omitempty,max=64"`
	PatientID       uint                      `json:"patient_id" validate:"required"`
	InsurerID       *uint                     `json:"insurer_id"`
	Currency        string                    `json:"currency" validate:"omitempty,len=3,alpha"`
	TreatmentDate   *time.Time                `json:"treatment_date"`
	Notes           string                    `json:"notes" validate:"max=2000"`
	Draft           bool                      `json:"draft"`
	Items           []ItemInput               `json:"items" validate:"required,min=1,dive"`
	InstallmentMode bool                      `json:"installment_mode"`
	Installments    []billing.InstallmentSpec `json:"installments"`
	SendEmail       bool                      `json:"send_email"`
}

// InvoiceService runs the invoice workflows as compensating pipelines.
type InvoiceService struct {
	PDFDir       string
	Currency     string
	CreditorName string
	CreditorIBAN string
	Dispatcher   *Dispatcher // nil disables mail
}

// invoiceFlow is the state shared by the steps of one workflow run.
type invoiceFlow struct {
	svc    *InvoiceService
	db     *gorm.DB
	clinic models.Clinic
	schema string
	in     InvoiceInput

	inv     *models.Invoice
	tariffs map[string]models.Tariff
	lines   []billing.Line
	oldPDF  string
	mail    *EmailJob
}

// Create builds, stores, renders and optionally mails a new invoice.
func (s *InvoiceService) Create(ctx context.Context, db *gorm.DB, clinic models.Clinic, schema string, in InvoiceInput) (*models.Invoice, *EmailJob, error) {
	f := &invoiceFlow{svc: s, db: db.WithContext(ctx), clinic: clinic, schema: schema, in: in, inv: &models.Invoice{}}

	p := NewPipeline("create_invoice",
		Step{Name: "load_patient", Run: f.loadPatient},
		Step{Name: "resolve_prices", Run: f.resolvePrices},
		Step{Name: "compute_totals", Run: f.computeTotals},
		Step{Name: "allocate_installments", Run: f.allocateInstallments},
		Step{Name: "assign_number", Run: f.assignNumber},
		Step{Name: "generate_reference", Run: f.generateReference},
		Step{Name: "check_references", Run: f.checkReferences},
		Step{Name: "persist", Run: f.persistNew, Compensate: f.deleteInvoice},
		Step{Name: "snapshot", Run: f.snapshot},
		Step{Name: "render_pdf", Run: f.renderPDF, Compensate: f.removePDF},
		Step{Name: "prepare_email", Run: f.prepareEmail},
	)
	if err := p.Execute(ctx); err != nil {
		return nil, nil, err
	}
	return f.inv, f.mail, nil
}

// Update replaces items and plan of an unpublished invoice.
func (s *InvoiceService) Update(ctx context.Context, db *gorm.DB, clinic models.Clinic, schema string, id uint, in InvoiceInput) (*models.Invoice, error) {
	f := &invoiceFlow{svc: s, db: db.WithContext(ctx), clinic: clinic, schema: schema, in: in}

	p := NewPipeline("update_invoice",
		Step{Name: "load_invoice", Run: func(context.Context) error { return f.loadEditable(id) }},
		Step{Name: "load_patient", Run: f.loadPatient},
		Step{Name: "resolve_prices", Run: f.resolvePrices},
		Step{Name: "compute_totals", Run: f.computeTotals},
		Step{Name: "allocate_installments", Run: f.allocateInstallments},
		Step{Name: "generate_reference", Run: f.generateReference},
		Step{Name: "check_references", Run: f.checkReferences},
		Step{Name: "persist", Run: f.persistUpdate},
		Step{Name: "snapshot", Run: f.snapshot},
		Step{Name: "render_pdf", Run: f.renderPDF, Compensate: f.removePDF},
		Step{Name: "cleanup_pdf", Run: f.removeOldPDF},
	)
	if err := p.Execute(ctx); err != nil {
		return nil, err
	}
	return f.inv, nil
}

// Publish finalizes a draft: it becomes immutable, gets an "invoice" version and a fresh PDF.
func (s *InvoiceService) Publish(ctx context.Context, db *gorm.DB, clinic models.Clinic, schema string, id uint, send bool) (*models.Invoice, *EmailJob, error) {
	f := &invoiceFlow{svc: s, db: db.WithContext(ctx), clinic: clinic, schema: schema, in: InvoiceInput{SendEmail: send}}

	p := NewPipeline("publish_invoice",
		Step{Name: "load_invoice", Run: func(context.Context) error { return f.loadEditable(id) }},
		Step{Name: "publish", Run: func(context.Context) error {
			now := time.Now().UTC()
			f.inv.Draft = false
			f.inv.Published = true
			f.inv.PublishedAt = &now
			return f.db.Model(f.inv).Updates(map[string]any{"draft": false, "published": true, "published_at": now}).Error
		}},
		Step{Name: "snapshot", Run: f.snapshot},
		Step{Name: "render_pdf", Run: f.renderPDF, Compensate: f.removePDF},
		Step{Name: "cleanup_pdf", Run: f.removeOldPDF},
		Step{Name: "prepare_email", Run: f.prepareEmail},
	)
	if err := p.Execute(ctx); err != nil {
		return nil, nil, err
	}
	return f.inv, f.mail, nil
}

// Send (re)mails an existing published invoice, rendering the PDF if it is missing.
func (s *InvoiceService) Send(ctx context.Context, db *gorm.DB, clinic models.Clinic, schema string, id uint) (*models.Invoice, *EmailJob, error) {
	f := &invoiceFlow{svc: s, db: db.WithContext(ctx), clinic: clinic, schema: schema, in: InvoiceInput{SendEmail: true}}

	p := NewPipeline("send_invoice",
		Step{Name: "load_invoice", Run: func(context.Context) error {
			inv, err := LoadInvoice(f.db, id)
			if err != nil {
				return err
			}
			if inv.Draft {
				return fiber.NewError(fiber.StatusConflict, "draft invoices cannot be sent")
			}
			f.inv = inv
			return nil
		}},
		Step{Name: "render_pdf", Run: func(ctx context.Context) error {
			if f.inv.PDFPath != "" {
				return nil
			}
			return f.renderPDF(ctx)
		}},
		Step{Name: "prepare_email", Run: f.prepareEmail},
	)
	if err := p.Execute(ctx); err != nil {
		return nil, nil, err
	}
	return f.inv, f.mail, nil
}

// Document assembles the printable view of inv for this clinic.
func (s *InvoiceService) Document(inv models.Invoice, clinic models.Clinic) InvoiceDocument {
	return InvoiceDocument{Invoice: inv, Clinic: clinic, CreditorName: s.CreditorName, CreditorIBAN: s.CreditorIBAN}
}

// LoadInvoice reads an invoice with patient, items and installments.
func LoadInvoice(db *gorm.DB, id uint) (*models.Invoice, error) {
	var inv models.Invoice
	err := db.
		Preload("Patient").
		Preload("Items", func(tx *gorm.DB) *gorm.DB { return tx.Order("id") }).
		Preload("Installments", func(tx *gorm.DB) *gorm.DB { return tx.Order("position") }).
		First(&inv, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fiber.NewError(fiber.StatusNotFound, "invoice not found")
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// SaveVersion stores an immutable JSON snapshot with the next version number.
func SaveVersion(db *gorm.DB, inv *models.Invoice) (models.InvoiceVersion, error) {
	snap, err := json.Marshal(inv)
	if err != nil {
		return models.InvoiceVersion{}, fmt.Errorf("snapshot: %w", err)
	}

	var last int
	if err := db.Model(&models.InvoiceVersion{}).
		Where("invoice_id = ?", inv.ID).
		Select("COALESCE(MAX(version_no), 0)").
		Scan(&last).Error; err != nil {
		return models.InvoiceVersion{}, fmt.Errorf("snapshot: %w", err)
	}

	kind := "invoice"
	if inv.Draft {
		kind = "draft"
	}
	v := models.InvoiceVersion{
		InvoiceID: inv.ID,
		VersionNo: last + 1,
		Kind:      kind,
		Snapshot:  datatypes.JSON(snap),
	}
	if err := db.Create(&v).Error; err != nil {
		return models.InvoiceVersion{}, fmt.Errorf("snapshot: %w", err)
	}
	return v, nil
}

// NextInvoiceNumber returns RE-<year>-<seq>, seq counting this year's invoices.
func NextInvoiceNumber(db *gorm.DB, now time.Time) (string, error) {
	prefix := fmt.Sprintf("RE-%d-", now.Year())
	var n int64
	if err := db.Model(&models.Invoice{}).Where("invoice_number LIKE ?", prefix+"%").Count(&n).Error; err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%04d", prefix, n+1), nil
}

// InstallmentReference derives the reference of installment pos from the invoice number.
func InstallmentReference(invoiceNumber string, pos int) string {
	return billing.GenerateReference(fmt.Sprintf("%s-%02d", invoiceNumber, pos))
}

func (f *invoiceFlow) loadEditable(id uint) error {
	inv, err := LoadInvoice(f.db, id)
	if err != nil {
		return err
	}
	if inv.Published {
		return fiber.NewError(fiber.StatusConflict, "published invoices are immutable")
	}
	f.inv = inv
	f.oldPDF = inv.PDFPath
	return nil
}

func (f *invoiceFlow) loadPatient(context.Context) error {
	var p models.Patient
	err := f.db.First(&p, f.in.PatientID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fiber.NewError(fiber.StatusUnprocessableEntity, "patient not found")
	}
	if err != nil {
		return err
	}
	f.inv.PId = p.Id
	f.inv.Patient = p
	f.inv.InsurerId = f.in.InsurerID
	if f.inv.InsurerId == nil {
		f.inv.InsurerId = p.InsurerId
	}
	return nil
}

func (f *invoiceFlow) resolvePrices(context.Context) error {
	ids := make([]string, 0, len(f.in.Items))
	for _, it := range f.in.Items {
		if it.TariffID != nil && *it.TariffID != "" {
			ids = append(ids, *it.TariffID)
		}
	}

	f.tariffs = make(map[string]models.Tariff, len(ids))
	if len(ids) > 0 {
		var found []models.Tariff
		if err := f.db.Where("id IN ?", ids).Find(&found).Error; err != nil {
			return err
		}
		for _, t := range found {
			f.tariffs[t.Id] = t
		}
	}

	items := make([]models.InvoiceItem, 0, len(f.in.Items))
	f.lines = make([]billing.Line, 0, len(f.in.Items))
	for i, it := range f.in.Items {
		line := billing.Line{Quantity: it.Quantity, UnitPrice: it.UnitPrice, DiscountPercent: it.DiscountPercent}
		item := models.InvoiceItem{Code: strings.TrimSpace(it.Code), Description: strings.TrimSpace(it.Description)}

		if it.TariffID != nil && *it.TariffID != "" {
			t, ok := f.tariffs[*it.TariffID]
			if !ok {
				return fiber.NewError(fiber.StatusUnprocessableEntity, fmt.Sprintf("unknown tariff at item %d", i))
			}
			base := t.BasePrice
			line.BasePrice = &base
			item.TariffID = it.TariffID
			if item.Code == "" {
				item.Code = t.Code
			}
			if item.Description == "" {
				item.Description = t.Description
			}
		}

		unit := billing.ApplyDiscount(billing.ResolveUnitPrice(line), it.DiscountPercent)
		item.Quantity = billing.ResolveQuantity(line)
		item.UnitPrice = billing.Round2(unit)
		item.DiscountPercent = it.DiscountPercent
		item.LineTotal = billing.Round2(billing.LineTotal(billing.Line{Quantity: &item.Quantity, UnitPrice: &unit}))

		items = append(items, item)
		f.lines = append(f.lines, line)
	}
	f.inv.Items = items
	return nil
}

func (f *invoiceFlow) computeTotals(context.Context) error {
	discounted := make([]billing.Line, len(f.lines))
	for i, l := range f.lines {
		unit := billing.ApplyDiscount(billing.ResolveUnitPrice(l), l.DiscountPercent)
		discounted[i] = billing.Line{Quantity: l.Quantity, UnitPrice: &unit}
	}
	f.inv.Subtotal = billing.Round2(billing.ComputeInvoiceTotal(f.lines))
	f.inv.Total = billing.Round2(billing.ComputeInvoiceTotal(discounted))

	f.inv.Currency = strings.ToUpper(f.in.Currency)
	if f.inv.Currency == "" {
		f.inv.Currency = f.svc.Currency
	}
	if f.inv.Currency == "" {
		f.inv.Currency = "CHF"
	}
	f.inv.TreatmentDate = f.in.TreatmentDate
	f.inv.Notes = f.in.Notes
	f.inv.Draft = f.in.Draft
	return nil
}

func (f *invoiceFlow) allocateInstallments(context.Context) error {
	f.inv.InstallmentMode = f.in.InstallmentMode
	f.inv.Installments = nil
	if !f.in.InstallmentMode {
		return nil
	}
	// Percents are stored as numeric(5,2); validate what will be stored.
	specs := make([]billing.InstallmentSpec, len(f.in.Installments))
	for i, sp := range f.in.Installments {
		specs[i] = billing.InstallmentSpec{Percent: billing.Round2(sp.Percent), DueDate: sp.DueDate}
	}
	allocated, err := billing.AllocateInstallments(f.inv.Total, specs)
	if err != nil {
		return err
	}
	out := make([]models.Installment, len(allocated))
	for i, a := range allocated {
		out[i] = models.Installment{Position: i + 1, Percent: a.Percent, DueDate: a.DueDate, Amount: a.Amount}
	}
	f.inv.Installments = out
	return nil
}

func (f *invoiceFlow) assignNumber(context.Context) error {
	if n := strings.TrimSpace(f.in.InvoiceNumber); n != "" {
		f.inv.InvoiceNumber = n
		return nil
	}
	n, err := NextInvoiceNumber(f.db, time.Now())
	if err != nil {
		return err
	}
	f.inv.InvoiceNumber = n
	return nil
}

func (f *invoiceFlow) generateReference(context.Context) error {
	f.inv.Reference = billing.GenerateReference(f.inv.InvoiceNumber)
	for i := range f.inv.Installments {
		f.inv.Installments[i].Reference = InstallmentReference(f.inv.InvoiceNumber, f.inv.Installments[i].Position)
	}
	return nil
}

// checkReferences rejects an invoice whose QR references are already used by
// another invoice or installment; distinct numbers can share digits.
func (f *invoiceFlow) checkReferences(context.Context) error {
	refs := invoiceReferences(f.inv)

	var taken []string
	if err := f.db.Model(&models.Invoice{}).
		Where("reference IN ? AND id <> ?", refs, f.inv.ID).
		Pluck("reference", &taken).Error; err != nil {
		return err
	}
	var takenByInstallments []string
	if err := f.db.Model(&models.Installment{}).
		Where("reference IN ? AND invoice_id <> ?", refs, f.inv.ID).
		Pluck("reference", &takenByInstallments).Error; err != nil {
		return err
	}
	return referenceConflict(refs, append(taken, takenByInstallments...))
}

// invoiceReferences lists the invoice reference followed by its installment references.
func invoiceReferences(inv *models.Invoice) []string {
	refs := make([]string, 0, len(inv.Installments)+1)
	refs = append(refs, inv.Reference)
	for _, in := range inv.Installments {
		refs = append(refs, in.Reference)
	}
	return refs
}

func referenceConflict(refs, taken []string) error {
	if len(taken) > 0 {
		return fiber.NewError(fiber.StatusConflict,
			fmt.Sprintf("reference %s already belongs to another invoice", billing.FormatReference(taken[0])))
	}
	seen := make(map[string]struct{}, len(refs))
	for _, r := range refs {
		if _, dup := seen[r]; dup {
			return fiber.NewError(fiber.StatusConflict, "invoice number yields duplicate references")
		}
		seen[r] = struct{}{}
	}
	return nil
}

func (f *invoiceFlow) persistNew(context.Context) error {
	var dup int64
	if err := f.db.Model(&models.Invoice{}).Where("invoice_number = ?", f.inv.InvoiceNumber).Count(&dup).Error; err != nil {
		return err
	}
	if dup > 0 {
		return fiber.NewError(fiber.StatusConflict, "invoice number already exists")
	}
	return f.db.Omit("Patient").Create(f.inv).Error
}

func (f *invoiceFlow) persistUpdate(context.Context) error {
	if err := f.db.Where("invoice_id = ?", f.inv.ID).Delete(&models.InvoiceItem{}).Error; err != nil {
		return err
	}
	if err := f.db.Where("invoice_id = ?", f.inv.ID).Delete(&models.Installment{}).Error; err != nil {
		return err
	}
	for i := range f.inv.Items {
		f.inv.Items[i].ID = 0
		f.inv.Items[i].InvoiceID = f.inv.ID
	}
	for i := range f.inv.Installments {
		f.inv.Installments[i].InvoiceID = f.inv.ID
	}
	return f.db.Omit("Patient").Save(f.inv).Error
}

func (f *invoiceFlow) deleteInvoice(context.Context) error {
	if f.inv.ID == 0 {
		return nil
	}
	return f.db.Select(clause.Associations).Delete(f.inv).Error
}

func (f *invoiceFlow) snapshot(context.Context) error {
	_, err := SaveVersion(f.db, f.inv)
	return err
}

func (f *invoiceFlow) renderPDF(context.Context) error {
	path, err := WriteInvoicePDF(f.svc.pdfDir(f.schema), f.svc.Document(*f.inv, f.clinic))
	if err != nil {
		return err
	}
	f.inv.PDFPath = path
	return f.db.Model(f.inv).Update("pdf_path", path).Error
}

func (f *invoiceFlow) removePDF(context.Context) error {
	if f.inv.PDFPath == f.oldPDF {
		return nil
	}
	return RemovePDF(f.inv.PDFPath)
}

func (f *invoiceFlow) removeOldPDF(context.Context) error {
	if f.oldPDF == "" || f.oldPDF == f.inv.PDFPath {
		return nil
	}
	return RemovePDF(f.oldPDF)
}

// prepareEmail builds the mail job; the caller hands it to Deliver once the
// invoice is committed.
func (f *invoiceFlow) prepareEmail(context.Context) error {
	if !f.in.SendEmail || f.inv.Draft {
		return nil
	}
	if f.svc.Dispatcher == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "email delivery not configured")
	}
	if strings.TrimSpace(f.inv.Patient.Email) == "" {
		return fiber.NewError(fiber.StatusUnprocessableEntity, "patient has no email address")
	}
	name := f.clinic.ClinicName
	if name == "" {
		name = f.svc.CreditorName
	}
	f.mail = &EmailJob{
		Schema:    f.schema,
		InvoiceID: f.inv.ID,
		Mail:      InvoiceMail(*f.inv, name, f.inv.PDFPath),
	}
	return nil
}

// Deliver queues job, or sends it inline when no Redis queue is configured.
func (s *InvoiceService) Deliver(ctx context.Context, job EmailJob) error {
	if s.Dispatcher == nil {
		return ErrMailDisabled
	}
	return s.Dispatcher.EnqueueEmail(ctx, job)
}

func (s *InvoiceService) pdfDir(schema string) string {
	dir := s.PDFDir
	if dir == "" {
		dir = "pdfs"
	}
	return filepath.Join(dir, schema)
}
