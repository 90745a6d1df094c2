package billing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f(v float64) *float64 { return &v }

func TestComputeInvoiceTotal(t *testing.T) {
	tests := []struct {
		name  string
		lines []Line
		want  float64
	}{
		{"no lines", nil, 0},
		{"explicit price", []Line{{Quantity: f(2), UnitPrice: f(45.5)}}, 91},
		{"catalog fallback", []Line{{Quantity: f(3), BasePrice: f(10)}}, 30},
		{"explicit price wins over catalog", []Line{{Quantity: f(1), UnitPrice: f(20), BasePrice: f(99)}}, 20},
		{"explicit zero price wins over catalog", []Line{{Quantity: f(1), UnitPrice: f(0), BasePrice: f(99)}}, 0},
		{"negative price clamps to zero", []Line{{Quantity: f(2), UnitPrice: f(-5)}}, 0},
		{"NaN price falls back to catalog", []Line{{Quantity: f(2), UnitPrice: f(math.NaN()), BasePrice: f(7)}}, 14},
		{"non-positive catalog price is zero", []Line{{Quantity: f(2), BasePrice: f(-3)}}, 0},
		{"missing quantity defaults to one", []Line{{UnitPrice: f(12.5)}}, 12.5},
		{"zero quantity defaults to one", []Line{{Quantity: f(0), UnitPrice: f(12.5)}}, 12.5},
		{"infinite quantity defaults to one", []Line{{Quantity: f(math.Inf(1)), UnitPrice: f(3)}}, 3},
		{"fractional quantity", []Line{{Quantity: f(0.5), UnitPrice: f(80)}}, 40},
		{"decimal sum has no float drift", []Line{{UnitPrice: f(0.1)}, {UnitPrice: f(0.2)}}, 0.3},
		{
			"mixed lines",
			[]Line{
				{Quantity: f(1), UnitPrice: f(150)},
				{Quantity: f(4), BasePrice: f(9.6)},
				{Quantity: nil, UnitPrice: nil},
			},
			188.4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeInvoiceTotal(tt.lines))
		})
	}
}

func TestComputeInvoiceTotal_Monotonic(t *testing.T) {
	base := []Line{{Quantity: f(1), UnitPrice: f(100)}, {Quantity: f(2), BasePrice: f(15)}}
	before := ComputeInvoiceTotal(base)

	after := ComputeInvoiceTotal(append(base, Line{Quantity: f(1), UnitPrice: f(0.05)}))

	assert.Greater(t, after, before)
}

func TestComputeInvoiceTotal_NeverNegative(t *testing.T) {
	lines := []Line{
		{Quantity: f(-3), UnitPrice: f(-10)},
		{Quantity: f(math.NaN()), UnitPrice: f(math.Inf(-1)), BasePrice: f(math.NaN())},
	}
	assert.GreaterOrEqual(t, ComputeInvoiceTotal(lines), 0.0)
}

func TestApplyDiscount(t *testing.T) {
	assert.Equal(t, 90.0, ApplyDiscount(100, 10))
	assert.Equal(t, 100.0, ApplyDiscount(100, 0))
	assert.Equal(t, 0.0, ApplyDiscount(100, 100))
	assert.Equal(t, 0.0, ApplyDiscount(100, 150))
	assert.Equal(t, 100.0, ApplyDiscount(100, -20))
	assert.Equal(t, 0.0, ApplyDiscount(-100, 10))
	assert.Equal(t, 0.0, ApplyDiscount(math.NaN(), 10))
}

func TestLineTotal(t *testing.T) {
	assert.Equal(t, 33.0, LineTotal(Line{Quantity: f(3), UnitPrice: f(11)}))
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 1.01, Round2(1.005))
	assert.Equal(t, 333.3, Round2(333.2966))
	assert.Equal(t, -2.5, Round2(-2.499))
	assert.Equal(t, 0.0, Round2(math.NaN()))
}

func TestValidatePlan(t *testing.T) {
	require.NoError(t, ValidatePlan([]InstallmentSpec{{Percent: 50}, {Percent: 50}}))
	require.NoError(t, ValidatePlan([]InstallmentSpec{{Percent: 33.33}, {Percent: 33.33}, {Percent: 33.34}}))
	require.NoError(t, ValidatePlan([]InstallmentSpec{{Percent: 100}}))

	err := ValidatePlan(nil)
	require.ErrorIs(t, err, ErrInvalidPlan)

	err = ValidatePlan([]InstallmentSpec{{Percent: 97}})
	var planErr *PlanError
	require.ErrorAs(t, err, &planErr)
	assert.Equal(t, 97.0, planErr.Sum)
	assert.Equal(t, 1, planErr.Count)

	assert.ErrorIs(t, ValidatePlan([]InstallmentSpec{{Percent: math.NaN()}, {Percent: 100}, {Percent: 0.01}}), ErrInvalidPlan)
}

func TestAllocateInstallments(t *testing.T) {
	got, err := AllocateInstallments(1000, []InstallmentSpec{
		{Percent: 50, DueDate: "2026-11-30"},
		{Percent: 50},
	})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, AllocatedInstallment{Percent: 50, DueDate: "2026-11-30", Amount: 500}, got[0])
	assert.Equal(t, AllocatedInstallment{Percent: 50, Amount: 500}, got[1])
	assert.Equal(t, 1000.0, got[0].Amount+got[1].Amount)
	assert.Equal(t, 0.0, Drift(1000, got))
}

func TestAllocateInstallments_AmountsArePercentOfTotal(t *testing.T) {
	total := 999.99
	plan := []InstallmentSpec{{Percent: 33.33}, {Percent: 33.33}, {Percent: 33.34}}

	got, err := AllocateInstallments(total, plan)
	require.NoError(t, err)

	var percentSum float64
	for i, inst := range got {
		percentSum += inst.Percent
		assert.Equal(t, Round2(total*plan[i].Percent/100), inst.Amount)
	}
	assert.Equal(t, 100.0, Round2(percentSum))
}

func TestAllocateInstallments_AcceptsCentDrift(t *testing.T) {
	got, err := AllocateInstallments(100, []InstallmentSpec{{Percent: 33.33}, {Percent: 33.33}, {Percent: 33.34}})
	require.NoError(t, err)

	assert.Equal(t, []float64{33.33, 33.33, 33.34}, []float64{got[0].Amount, got[1].Amount, got[2].Amount})

	got, err = AllocateInstallments(0.1, []InstallmentSpec{{Percent: 50}, {Percent: 50}})
	require.NoError(t, err)
	assert.Equal(t, 0.05, got[0].Amount)
	assert.InDelta(t, 0.0, Drift(0.1, got), 1e-9)

	got, err = AllocateInstallments(0.01, []InstallmentSpec{{Percent: 50}, {Percent: 50}})
	require.NoError(t, err)
	assert.Equal(t, 0.01, got[0].Amount)
	assert.InDelta(t, -0.01, Drift(0.01, got), 1e-9)
}

func TestAllocateInstallments_InvalidPlan(t *testing.T) {
	got, err := AllocateInstallments(1000, []InstallmentSpec{{Percent: 60}, {Percent: 30}})

	assert.Nil(t, got)
	assert.ErrorIs(t, err, ErrInvalidPlan)
}

func TestAllocateInstallments_ClampsPercent(t *testing.T) {
	got, err := AllocateInstallments(200, []InstallmentSpec{{Percent: 120}, {Percent: -20}})
	require.NoError(t, err)

	assert.Equal(t, 100.0, got[0].Percent)
	assert.Equal(t, 200.0, got[0].Amount)
	assert.Equal(t, 0.0, got[1].Percent)
	assert.Equal(t, 0.0, got[1].Amount)
}
