package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type patientPatch struct {
	Email     *string  `json:"email"`
	City      *string  `json:"city,omitempty"`
	InsurerID *uint    `json:"insurer_id"`
	Weight    *float64 `json:"weight" patch:"-"`
	Ignored   string   `json:"ignored"`
}

func TestUpdatesFromPtrDTO(t *testing.T) {
	email := "anna@example.ch"
	city := "Bern"
	w := 70.0
	in := patientPatch{Email: &email, City: &city, Weight: &w, Ignored: "x"}

	got := UpdatesFromPtrDTO(&in, map[string]string{"city": "town"})

	assert.Equal(t, map[string]any{"email": email, "town": city}, got)
	assert.Empty(t, UpdatesFromPtrDTO(in, nil))
}

func TestParseIntDefault(t *testing.T) {
	assert.Equal(t, 25, ParseIntDefault(" 25 ", 10))
	assert.Equal(t, 10, ParseIntDefault("-1", 10))
	assert.Equal(t, 10, ParseIntDefault("abc", 10))
}
