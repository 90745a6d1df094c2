package services

import (
	"fmt"
	"io"

	"praxis-billing/billing"
	"praxis-billing/models"

	"github.com/xuri/excelize/v2"
)

const (
	invoiceSheet     = "Rechnungen"
	installmentSheet = "Raten"
)

var (
	invoiceHeader     = []any{"Nummer", "Referenz", "Patient", "Behandlung", "Währung", "Total", "Bezahlt", "Offen", "Status", "Erstellt"}
	installmentHeader = []any{"Rechnung", "Rate", "Prozent", "Fällig", "Betrag", "Referenz", "Bezahlt am"}
)

// ExportInvoicesXLSX writes one row per invoice and one row per installment
// into a two-sheet workbook.
func ExportInvoicesXLSX(w io.Writer, invoices []models.Invoice) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", invoiceSheet); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if _, err := f.NewSheet(installmentSheet); err != nil {
		return fmt.Errorf("export: %w", err)
	}

	if err := f.SetSheetRow(invoiceSheet, "A1", &invoiceHeader); err != nil {
		return fmt.Errorf("export: header: %w", err)
	}
	if err := f.SetSheetRow(installmentSheet, "A1", &installmentHeader); err != nil {
		return fmt.Errorf("export: header: %w", err)
	}

	invRow, instRow := 2, 2
	for _, inv := range invoices {
		treated := ""
		if inv.TreatmentDate != nil {
			treated = inv.TreatmentDate.Format("2006-01-02")
		}
		row := []any{
			inv.InvoiceNumber,
			billing.FormatReference(inv.Reference),
			inv.Patient.FullName(),
			treated,
			inv.Currency,
			inv.Total,
			inv.PaidTotal,
			billing.Round2(inv.Outstanding()),
			invoiceStatus(inv),
			inv.CreatedAt.Format("2006-01-02 15:04"),
		}
		cell, _ := excelize.CoordinatesToCellName(1, invRow)
		if err := f.SetSheetRow(invoiceSheet, cell, &row); err != nil {
			return fmt.Errorf("export: invoice %s: %w", inv.InvoiceNumber, err)
		}
		invRow++

		for _, in := range inv.Installments {
			paid := ""
			if in.PaidAt != nil {
				paid = in.PaidAt.Format("2006-01-02")
			}
			r := []any{inv.InvoiceNumber, in.Position, in.Percent, in.DueDate, in.Amount, billing.FormatReference(in.Reference), paid}
			cell, _ := excelize.CoordinatesToCellName(1, instRow)
			if err := f.SetSheetRow(installmentSheet, cell, &r); err != nil {
				return fmt.Errorf("export: installment %s/%d: %w", inv.InvoiceNumber, in.Position, err)
			}
			instRow++
		}
	}

	if err := f.SetColWidth(invoiceSheet, "A", "C", 24); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	return f.Write(w)
}

func invoiceStatus(inv models.Invoice) string {
	switch {
	case inv.Draft:
		return "Entwurf"
	case inv.Total > 0 && inv.Outstanding() == 0:
		return "Bezahlt"
	case inv.SentAt != nil:
		return "Versendet"
	case inv.Published:
		return "Veröffentlicht"
	default:
		return "Offen"
	}
}
