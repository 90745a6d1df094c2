package services

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"praxis-billing/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestExportInvoicesXLSX(t *testing.T) {
	created := time.Date(2024, 3, 4, 10, 30, 0, 0, time.UTC)
	invoices := []models.Invoice{
		{
			InvoiceNumber:   "RE-1",
			Reference:       "000000000000000000000000011",
			Currency:        "CHF",
			Patient:         models.Patient{FirstName: "Anna", LastName: "Muster"},
			Total:           1000,
			PaidTotal:       500,
			Published:       true,
			InstallmentMode: true,
			Installments: []models.Installment{
				{Position: 1, Percent: 50, DueDate: "2024-04-01", Amount: 500},
				{Position: 2, Percent: 50, DueDate: "2024-05-01", Amount: 500},
			},
			CreatedAt: created,
		},
		{InvoiceNumber: "RE-2", Draft: true, CreatedAt: created},
	}

	var buf bytes.Buffer
	require.NoError(t, ExportInvoicesXLSX(&buf, invoices))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(invoiceSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Nummer", rows[0][0])
	assert.Equal(t, "RE-1", rows[1][0])
	assert.Equal(t, "Anna Muster", rows[1][2])
	assert.Equal(t, "Veröffentlicht", rows[1][8])
	assert.Equal(t, "Entwurf", rows[2][8])

	inst, err := f.GetRows(installmentSheet)
	require.NoError(t, err)
	require.Len(t, inst, 3)
	assert.Equal(t, "2024-05-01", inst[2][3])
}

func TestInvoiceStatus(t *testing.T) {
	sent := time.Now()
	assert.Equal(t, "Bezahlt", invoiceStatus(models.Invoice{Total: 10, PaidTotal: 10}))
	assert.Equal(t, "Versendet", invoiceStatus(models.Invoice{Total: 10, SentAt: &sent}))
	assert.Equal(t, "Offen", invoiceStatus(models.Invoice{Total: 10}))
}

func TestParseCatalog(t *testing.T) {
	src := `
tariffs:
  - code: "00.0010"
    description: Konsultation, erste 5 Min.
    base_price: 19.08
  - code: LAB-01
    base_price: 5
    tax_rate: 8.1
    active: false
`
	got, err := ParseCatalog(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "00.0010", got[0].Code)
	assert.Equal(t, 19.08, got[0].BasePrice)
	assert.True(t, got[0].Active)
	assert.False(t, got[1].Active)
	assert.Equal(t, 8.1, got[1].TaxRate)
}

func TestParseCatalog_Rejects(t *testing.T) {
	tests := map[string]string{
		"empty":          ``,
		"missing code":   "tariffs:\n  - base_price: 3\n",
		"negative price": "tariffs:\n  - code: A\n    base_price: -1\n",
		"duplicate":      "tariffs:\n  - code: A\n  - code: A\n",
		"unknown field":  "tariffs:\n  - code: A\n    price: 3\n",
		"bad tax":        "tariffs:\n  - code: A\n    tax_rate: 120\n",
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseCatalog(strings.NewReader(src))
			assert.Error(t, err)
		})
	}
}
