package services

// pdf.go renders A4 patient invoices with go-pdf/fpdf:
//   - clinic header and patient address block
//   - item table with tariff code, quantity, unit price, line total
//   - total and, in installment mode, the payment schedule
//   - QR reference in print grouping

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"praxis-billing/billing"
	"praxis-billing/models"
	"praxis-billing/utils"

	"github.com/go-pdf/fpdf"
)

// InvoiceDocument is everything printed on one invoice.
type InvoiceDocument struct {
	Invoice      models.Invoice
	Clinic       models.Clinic
	CreditorName string // fallback when Clinic.ClinicName is empty
	CreditorIBAN string // fallback when Clinic.IBAN is empty
}

func (d InvoiceDocument) creditor() (name, iban string) {
	name, iban = d.Clinic.ClinicName, d.Clinic.IBAN
	if name == "" {
		name = d.CreditorName
	}
	if iban == "" {
		iban = d.CreditorIBAN
	}
	return name, iban
}

// RenderInvoicePDF writes the invoice as PDF to w.
func RenderInvoicePDF(w io.Writer, doc InvoiceDocument) error {
	inv := doc.Invoice
	currency := inv.Currency
	if currency == "" {
		currency = "CHF"
	}
	name, iban := doc.creditor()

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 40

	// Clinic header
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(contentW, 7, tr(name), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	if doc.Clinic.Address != "" {
		pdf.CellFormat(contentW, 5, tr(doc.Clinic.Address), "", 1, "L", false, 0, "")
		pdf.CellFormat(contentW, 5, tr(strings.TrimSpace(doc.Clinic.Zip+" "+doc.Clinic.City)), "", 1, "L", false, 0, "")
	}
	if doc.Clinic.UID != "" {
		pdf.CellFormat(contentW, 5, "UID "+doc.Clinic.UID, "", 1, "L", false, 0, "")
	}
	pdf.Ln(8)

	// Patient block, right half like a window envelope
	p := inv.Patient
	pdf.SetX(20 + contentW/2)
	pdf.SetFont("Helvetica", "", 10)
	for _, line := range []string{
		strings.TrimSpace(p.Salutation + " " + p.FullName()),
		p.Address,
		strings.TrimSpace(p.Zip + " " + p.City),
	} {
		if strings.TrimSpace(line) == "" {
			continue
		}
		pdf.SetX(20 + contentW/2)
		pdf.CellFormat(contentW/2, 5, tr(line), "", 1, "L", false, 0, "")
	}
	pdf.Ln(10)

	title := "Rechnung"
	if inv.Draft {
		title = "Rechnungsentwurf"
	}
	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(contentW, 7, tr(title+" "+inv.InvoiceNumber), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	if inv.TreatmentDate != nil {
		pdf.CellFormat(contentW, 5, "Behandlungsdatum: "+inv.TreatmentDate.Format("02.01.2006"), "", 1, "L", false, 0, "")
	}
	if p.InsuranceNumber != "" {
		pdf.CellFormat(contentW, 5, tr("Versichertennummer: "+p.InsuranceNumber), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	// Items
	colCode := contentW * 0.14
	colDesc := contentW * 0.42
	colQty := contentW * 0.10
	colUnit := contentW * 0.16
	colSum := contentW * 0.18

	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(colCode, 6, "Tarif", "B", 0, "L", false, 0, "")
	pdf.CellFormat(colDesc, 6, "Leistung", "B", 0, "L", false, 0, "")
	pdf.CellFormat(colQty, 6, "Menge", "B", 0, "R", false, 0, "")
	pdf.CellFormat(colUnit, 6, "Preis", "B", 0, "R", false, 0, "")
	pdf.CellFormat(colSum, 6, "Betrag", "B", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 9)
	for _, it := range inv.Items {
		desc := it.Description
		if r := []rune(desc); len(r) > 48 {
			desc = string(r[:47]) + "..."
		}
		pdf.CellFormat(colCode, 5, tr(it.Code), "", 0, "L", false, 0, "")
		pdf.CellFormat(colDesc, 5, tr(desc), "", 0, "L", false, 0, "")
		pdf.CellFormat(colQty, 5, trimQty(it.Quantity), "", 0, "R", false, 0, "")
		pdf.CellFormat(colUnit, 5, utils.FormatAmount(it.UnitPrice), "", 0, "R", false, 0, "")
		pdf.CellFormat(colSum, 5, utils.FormatAmount(it.LineTotal), "", 1, "R", false, 0, "")
	}

	pdf.Ln(2)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(contentW-colSum, 7, "Total "+currency, "T", 0, "L", false, 0, "")
	pdf.CellFormat(colSum, 7, utils.FormatAmount(inv.Total), "T", 1, "R", false, 0, "")

	if inv.InstallmentMode && len(inv.Installments) > 0 {
		pdf.Ln(6)
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(contentW, 6, "Ratenplan", "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 9)
		for _, in := range inv.Installments {
			due := in.DueDate
			if due == "" {
				due = "-"
			}
			pdf.CellFormat(contentW*0.12, 5, fmt.Sprintf("%d.", in.Position), "", 0, "L", false, 0, "")
			pdf.CellFormat(contentW*0.14, 5, trimQty(in.Percent)+" %", "", 0, "R", false, 0, "")
			pdf.CellFormat(contentW*0.18, 5, due, "", 0, "R", false, 0, "")
			pdf.CellFormat(contentW*0.18, 5, utils.FormatAmount(in.Amount), "", 0, "R", false, 0, "")
			pdf.CellFormat(contentW*0.38, 5, billing.FormatReference(in.Reference), "", 1, "R", false, 0, "")
		}
	}

	// Payment part
	pdf.Ln(10)
	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(contentW, 5, "Zahlbar an", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	if iban != "" {
		pdf.CellFormat(contentW, 5, formatIBAN(iban), "", 1, "L", false, 0, "")
	}
	pdf.CellFormat(contentW, 5, tr(name), "", 1, "L", false, 0, "")
	pdf.Ln(2)
	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(contentW, 5, "Referenz", "", 1, "L", false, 0, "")
	pdf.SetFont("Courier", "", 10)
	pdf.CellFormat(contentW, 5, billing.FormatReference(inv.Reference), "", 1, "L", false, 0, "")

	return pdf.Output(w)
}

// WriteInvoicePDF renders into dir/invoice_<number>.pdf and returns the path.
func WriteInvoicePDF(dir string, doc InvoiceDocument) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("pdf: create storage dir: %w", err)
	}
	name := doc.Invoice.InvoiceNumber
	if name == "" {
		name = fmt.Sprint(doc.Invoice.ID)
	}
	path := filepath.Join(dir, "invoice_"+sanitizeFileName(name)+".pdf")

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("pdf: create file: %w", err)
	}
	if err := RenderInvoicePDF(f, doc); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("pdf: render: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("pdf: write file: %w", err)
	}
	return path, nil
}

// RemovePDF deletes a rendered file; a missing file is not an error.
func RemovePDF(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func trimQty(q float64) string {
	s := fmt.Sprintf("%.2f", q)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

func formatIBAN(iban string) string {
	compact := strings.ToUpper(strings.Join(strings.Fields(iban), ""))
	var b strings.Builder
	for i, r := range compact {
		if i > 0 && i%4 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func sanitizeFileName(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, s)
}
