package billing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrInvalidPlan is returned when installment percentages do not add up to 100.00.
var ErrInvalidPlan = errors.New("installment percentages must sum to 100%")

// PlanError carries the rejected sum so callers can show it to the user.
type PlanError struct {
	Sum   float64
	Count int
}

func (e *PlanError) Error() string {
	if e.Count == 0 {
		return fmt.Sprintf("%v: plan has no installments", ErrInvalidPlan)
	}
	return fmt.Sprintf("%v: got %.2f%% over %d installments", ErrInvalidPlan, e.Sum, e.Count)
}

func (e *PlanError) Unwrap() error {
	return ErrInvalidPlan
}

// InstallmentSpec is one partial payment of an installment plan.
type InstallmentSpec struct {
	Percent float64 `json:"percent"`
	DueDate string  `json:"due_date,omitempty"`
}

// AllocatedInstallment is an InstallmentSpec with its computed amount.
type AllocatedInstallment struct {
	Percent float64 `json:"percent"`
	DueDate string  `json:"due_date,omitempty"`
	Amount  float64 `json:"amount"`
}

// ValidatePlan accepts a plan only when its percentages, rounded to two
// decimals, sum to exactly 100.00. Plans are never rescaled.
func ValidatePlan(specs []InstallmentSpec) error {
	if len(specs) == 0 {
		return &PlanError{}
	}
	sum := decimal.Zero
	for _, s := range specs {
		if isFinite(s.Percent) {
			sum = sum.Add(decimal.NewFromFloat(s.Percent))
		}
	}
	if !sum.Round(2).Equal(hundred) {
		return &PlanError{Sum: sum.Round(2).InexactFloat64(), Count: len(specs)}
	}
	return nil
}

// AllocateInstallments splits total according to a valid plan.
// Each amount is rounded on its own; the rounded amounts may differ from the
// rounded total by a cent (see Drift). Order and due dates are preserved.
func AllocateInstallments(total float64, specs []InstallmentSpec) ([]AllocatedInstallment, error) {
	if err := ValidatePlan(specs); err != nil {
		return nil, err
	}
	if !isFinite(total) || total < 0 {
		total = 0
	}

	t := decimal.NewFromFloat(total)
	out := make([]AllocatedInstallment, 0, len(specs))
	for _, s := range specs {
		p := clampPercent(s.Percent)
		amount := t.Mul(decimal.NewFromFloat(p)).Div(hundred).Round(2)
		out = append(out, AllocatedInstallment{
			Percent: p,
			DueDate: s.DueDate,
			Amount:  amount.InexactFloat64(),
		})
	}
	return out, nil
}

// Drift is the rounded total minus the sum of the allocated amounts.
// It is zero for most plans and at most a few cents otherwise.
func Drift(total float64, allocated []AllocatedInstallment) float64 {
	sum := decimal.Zero
	for _, a := range allocated {
		sum = sum.Add(decimal.NewFromFloat(a.Amount))
	}
	return decimal.NewFromFloat(Round2(total)).Sub(sum).InexactFloat64()
}
