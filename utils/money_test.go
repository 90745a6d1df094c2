package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRound2(t *testing.T) {
	assert.Equal(t, 1.01, Round2(1.005))
	assert.Equal(t, 10.0, Round2(9.999))
}

func TestFormatAmount(t *testing.T) {
	tests := map[float64]string{
		0:           "0.00",
		5:           "5.00",
		1000:        "1'000.00",
		1234567.891: "1'234'567.89",
		-2500.5:     "-2'500.50",
		999.999:     "1'000.00",
	}
	for in, want := range tests {
		assert.Equal(t, want, FormatAmount(in), "input %v", in)
	}
}
