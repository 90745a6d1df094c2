// Package billing holds the pure money and payment-reference routines shared by the
// invoice controllers, the PDF renderer and the CLI.
//
// Nothing in this package touches the database or the network; every function
// depends only on its arguments and is safe to call from any goroutine.
package billing

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// ReferenceBodyLength is the number of digits before the check digit.
	ReferenceBodyLength = 26
	// ReferenceLength is the full QR reference length including the check digit.
	ReferenceLength = ReferenceBodyLength + 1
)

// ErrInvalidReference is returned when a reference fails the length or check digit test.
var ErrInvalidReference = errors.New("invalid payment reference")

// mod10Table is the substitution table of the recursive modulo 10 check digit
// used by Swiss QR and ESR references.
var mod10Table = [10]int{0, 9, 4, 6, 8, 2, 7, 1, 3, 5}

// GenerateReference turns an invoice identifier into a 27 digit QR reference.
//
// Non-digits are stripped. An identifier without any digit is replaced by the
// 3-digit character codes of its runes. The result keeps the rightmost 26
// digits (left padded with zeros) and appends the recursive modulo 10 check digit.
func GenerateReference(identifier string) string {
	digits := onlyDigits(identifier)
	if digits == "" {
		digits = charCodes(identifier)
	}

	if len(digits) > ReferenceBodyLength {
		digits = digits[len(digits)-ReferenceBodyLength:]
	} else if len(digits) < ReferenceBodyLength {
		digits = strings.Repeat("0", ReferenceBodyLength-len(digits)) + digits
	}

	return digits + string(rune('0'+CheckDigit(digits)))
}

// CheckDigit computes the recursive modulo 10 check digit over a string of digits.
// Characters other than 0-9 are skipped.
func CheckDigit(body string) int {
	carry := 0
	for _, r := range body {
		if r < '0' || r > '9' {
			continue
		}
		carry = mod10Table[(carry+int(r-'0'))%10]
	}
	return (10 - carry) % 10
}

// ValidateReference checks length and check digit of a reference.
// Whitespace is ignored so printed references validate as well.
func ValidateReference(ref string) error {
	compact := strings.Join(strings.Fields(ref), "")
	if len(compact) != ReferenceLength {
		return fmt.Errorf("%w: expected %d digits, got %d", ErrInvalidReference, ReferenceLength, len(compact))
	}
	for _, r := range compact {
		if r < '0' || r > '9' {
			return fmt.Errorf("%w: non-digit character %q", ErrInvalidReference, r)
		}
	}
	want := CheckDigit(compact[:ReferenceBodyLength])
	if got := int(compact[ReferenceBodyLength] - '0'); got != want {
		return fmt.Errorf("%w: check digit %d, expected %d", ErrInvalidReference, got, want)
	}
	return nil
}

// FormatReference groups a reference in blocks of five from the right,
// the way it is printed on a QR-bill payment part.
func FormatReference(ref string) string {
	compact := strings.Join(strings.Fields(ref), "")
	if compact == "" {
		return ""
	}

	var groups []string
	for end := len(compact); end > 0; end -= 5 {
		start := end - 5
		if start < 0 {
			start = 0
		}
		groups = append([]string{compact[start:end]}, groups...)
	}
	return strings.Join(groups, " ")
}

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func charCodes(s string) string {
	var b strings.Builder
	for _, r := range s {
		fmt.Fprintf(&b, "%03d", r)
	}
	return b.String()
}
