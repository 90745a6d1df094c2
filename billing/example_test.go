package billing_test

import (
	"errors"
	"fmt"

	"praxis-billing/billing"
)

func ExampleGenerateReference() {
	ref := billing.GenerateReference("RE-2024-0042")
	fmt.Println(ref)
	fmt.Println(billing.FormatReference(ref))
	// Output:
	// 000000000000000000202400426
	// 00 00000 00000 00000 02024 00426
}

func ExampleAllocateInstallments() {
	qty := 2.0
	price := 500.0
	total := billing.ComputeInvoiceTotal([]billing.Line{{Quantity: &qty, UnitPrice: &price}})

	plan, err := billing.AllocateInstallments(total, []billing.InstallmentSpec{
		{Percent: 50, DueDate: "2026-11-30"},
		{Percent: 50, DueDate: "2026-12-31"},
	})
	if err != nil {
		fmt.Println(err)
		return
	}
	for _, inst := range plan {
		fmt.Printf("%s %.2f CHF\n", inst.DueDate, inst.Amount)
	}

	_, err = billing.AllocateInstallments(total, []billing.InstallmentSpec{{Percent: 60}, {Percent: 30}})
	fmt.Println(errors.Is(err, billing.ErrInvalidPlan))
	// Output:
	// 2026-11-30 500.00 CHF
	// 2026-12-31 500.00 CHF
	// true
}
