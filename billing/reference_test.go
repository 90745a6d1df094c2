package billing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateReference(t *testing.T) {
	tests := []struct {
		name       string
		identifier string
		want       string
	}{
		{"empty identifier", "", "000000000000000000000000000"},
		{"short number", "42", "000000000000000000000000420"},
		{"invoice number with prefix", "RE-2024-0042", "000000000000000000202400426"},
		{"longer than body keeps rightmost digits", "12345678901234567890123456789", "456789012345678901234567892"},
		{"no digits uses character codes", "INV-A", "000000000000730780860450653"},
		{"qr-bill sample body", "21000000000313947143000901", "210000000003139471430009017"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GenerateReference(tt.identifier))
		})
	}
}

func TestGenerateReference_Invariants(t *testing.T) {
	inputs := []string{"", "0", "INV-A", "Rechnung 2024/17", "ÄÖÜ-éà", strings.Repeat("9", 80), "  12 34  "}

	for _, in := range inputs {
		ref := GenerateReference(in)

		assert.Len(t, ref, ReferenceLength, "input %q", in)
		for _, r := range ref {
			assert.True(t, r >= '0' && r <= '9', "input %q produced non-digit %q", in, r)
		}
		assert.Equal(t, ref, GenerateReference(in), "not deterministic for %q", in)
		assert.Equal(t, CheckDigit(ref[:ReferenceBodyLength]), int(ref[ReferenceBodyLength]-'0'))
		assert.NoError(t, ValidateReference(ref))
	}
}

func TestGenerateReference_TruncatesFromTheLeft(t *testing.T) {
	long := "12345678901234567890123456789"

	assert.Equal(t, GenerateReference(long[3:]), GenerateReference(long))
	assert.NotEqual(t, GenerateReference(long[:26]), GenerateReference(long))
}

func TestGenerateReference_FallbackDistinct(t *testing.T) {
	assert.NotEqual(t, GenerateReference("INV-A"), GenerateReference("INV-B"))
}

func TestValidateReference(t *testing.T) {
	require.NoError(t, ValidateReference("210000000003139471430009017"))
	require.NoError(t, ValidateReference("21 00000 00003 13947 14300 09017"))

	for _, bad := range []string{
		"",
		"210000000003139471430009018",
		"21000000000313947143000901",
		"21000000000313947143000901X",
	} {
		err := ValidateReference(bad)
		assert.ErrorIs(t, err, ErrInvalidReference, "input %q", bad)
	}
}

func TestFormatReference(t *testing.T) {
	assert.Equal(t, "21 00000 00003 13947 14300 09017", FormatReference("210000000003139471430009017"))
	assert.Equal(t, "12345", FormatReference("12345"))
	assert.Equal(t, "1 23456", FormatReference("123456"))
	assert.Equal(t, "", FormatReference("  "))
}

func TestCheckDigit_SkipsNonDigits(t *testing.T) {
	assert.Equal(t, CheckDigit("21000000000313947143000901"), CheckDigit("21 00000 00003 13947 14300 0901"))
	assert.Equal(t, 0, CheckDigit(""))
}
