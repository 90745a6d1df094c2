package services

import (
	"testing"
	"time"

	"praxis-billing/billing"
	"praxis-billing/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func plan() []models.Installment {
	return []models.Installment{
		{Position: 1, Amount: 333.33, Reference: InstallmentReference("RE-1", 1)},
		{Position: 2, Amount: 333.33, Reference: InstallmentReference("RE-1", 2)},
		{Position: 3, Amount: 333.34, Reference: InstallmentReference("RE-1", 3)},
	}
}

func TestMarkPaidInstallments_Cumulative(t *testing.T) {
	at := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	ins := plan()

	assert.Empty(t, MarkPaidInstallments(ins, 300, "", at))
	assert.Equal(t, []int{0, 1}, MarkPaidInstallments(ins, 666.66, "", at))
	require.NotNil(t, ins[1].PaidAt)
	assert.Nil(t, ins[2].PaidAt)

	assert.Equal(t, []int{2}, MarkPaidInstallments(ins, 1000, "", at))
	assert.Empty(t, MarkPaidInstallments(ins, 1000, "", at), "already paid")
}

func TestMarkPaidInstallments_ByReference(t *testing.T) {
	ins := plan()
	got := MarkPaidInstallments(ins, 333.34, ins[2].Reference, time.Now())
	assert.Equal(t, []int{2, 0}, got)
	assert.Nil(t, ins[1].PaidAt)
}

func TestInstallmentReference(t *testing.T) {
	a := InstallmentReference("RE-2024-0042", 1)
	b := InstallmentReference("RE-2024-0042", 2)

	assert.NotEqual(t, a, b)
	assert.NoError(t, billing.ValidateReference(a))
	assert.Equal(t, billing.GenerateReference("2024004201"), a)
}

func TestInvoiceOwnsReference(t *testing.T) {
	inv := &models.Invoice{Reference: billing.GenerateReference("RE-1"), Installments: plan()}
	assert.True(t, invoiceOwnsReference(inv, inv.Reference))
	assert.True(t, invoiceOwnsReference(inv, inv.Installments[1].Reference))
	assert.False(t, invoiceOwnsReference(inv, billing.GenerateReference("RE-2")))
}
