package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type itemIn struct {
	Code     string   `json:"code"`
	Price    *float64 `json:"price"`
	Quantity float64  `json:"quantity" normalize:"-"`
}

type invoiceIn struct {
	Number string   `json:"number"`
	Items  []itemIn `json:"items"`
	Fee    float64  `json:"fee"`
}

func TestNormalizeDTO(t *testing.T) {
	price := 12.345
	in := invoiceIn{
		Number: "  RE-1 ",
		Fee:    3.333,
		Items:  []itemIn{{Code: " 00.0010 ", Price: &price, Quantity: 0.125}},
	}

	NormalizeDTO(&in)

	assert.Equal(t, "RE-1", in.Number)
	assert.Equal(t, 3.33, in.Fee)
	assert.Equal(t, "00.0010", in.Items[0].Code)
	assert.Equal(t, 12.35, *in.Items[0].Price)
	assert.Equal(t, 0.125, in.Items[0].Quantity)
}

func TestNormalizePtrDTO(t *testing.T) {
	city := " Basel "
	amount := 1.005
	in := struct {
		City   *string
		Amount *float64
		Zip    *string
	}{City: &city, Amount: &amount}

	NormalizePtrDTO(&in)

	assert.Equal(t, "Basel", *in.City)
	assert.Equal(t, 1.01, *in.Amount)
	assert.Nil(t, in.Zip)
}
