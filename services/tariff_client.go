package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var ErrTariffResponse = errors.New("invalid tariff service response")

// ParseError describes why a tariff service payload was rejected.
type ParseError struct {
	Field  string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%v: %s", ErrTariffResponse, e.Reason)
	}
	return fmt.Sprintf("%v: %s: %s", ErrTariffResponse, e.Field, e.Reason)
}

func (e *ParseError) Unwrap() error { return ErrTariffResponse }

// TariffQuote is a fully validated catalog position from the tariff service.
type TariffQuote struct {
	Code        string  `json:"code"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Currency    string  `json:"currency"`
	TaxRate     float64 `json:"tax_rate"`
}

// tariffPayload is the raw wire shape; pointers tell missing from zero.
type tariffPayload struct {
	Code        string   `json:"code" validate:"required,max=32"`
	Description string   `json:"description" validate:"max=500"`
	Price       *float64 `json:"price" validate:"required,gte=0"`
	Currency    string   `json:"currency" validate:"omitempty,len=3,alpha"`
	TaxRate     *float64 `json:"tax_rate" validate:"omitempty,gte=0,lte=100"`
}

var payloadValidator = validator.New()

// ParseTariffResponse decodes and validates a tariff service body.
// It returns either a complete quote or a *ParseError, never a partial value.
func ParseTariffResponse(body []byte) (TariffQuote, error) {
	var p tariffPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return TariffQuote{}, &ParseError{Reason: "malformed json"}
	}
	p.Code = strings.TrimSpace(p.Code)
	if err := payloadValidator.Struct(&p); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) && len(ve) > 0 {
			return TariffQuote{}, &ParseError{Field: strings.ToLower(ve[0].Field()), Reason: ve[0].Tag()}
		}
		return TariffQuote{}, &ParseError{Reason: err.Error()}
	}

	q := TariffQuote{
		Code:        p.Code,
		Description: strings.TrimSpace(p.Description),
		Price:       *p.Price,
		Currency:    strings.ToUpper(p.Currency),
	}
	if q.Currency == "" {
		q.Currency = "CHF"
	}
	if p.TaxRate != nil {
		q.TaxRate = *p.TaxRate
	}
	return q, nil
}

// TariffClient looks up catalog positions at an external tariff service.
type TariffClient struct {
	baseURL string
	timeout time.Duration
}

func NewTariffClient(baseURL string, timeout time.Duration) *TariffClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &TariffClient{baseURL: strings.TrimRight(baseURL, "/"), timeout: timeout}
}

// Enabled reports whether a tariff service URL is configured.
func (tc *TariffClient) Enabled() bool {
	return tc != nil && tc.baseURL != ""
}

// Lookup fetches GET {base}/tariffs/{code}.
func (tc *TariffClient) Lookup(code string) (TariffQuote, error) {
	if !tc.Enabled() {
		return TariffQuote{}, errors.New("tariff service not configured")
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return TariffQuote{}, &ParseError{Field: "code", Reason: "required"}
	}

	agent := fiber.Get(tc.baseURL + "/tariffs/" + url.PathEscape(code))
	agent.Timeout(tc.timeout)
	agent.Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON)
	if err := agent.Parse(); err != nil {
		return TariffQuote{}, fmt.Errorf("tariff lookup %s: %w", code, err)
	}

	status, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return TariffQuote{}, fmt.Errorf("tariff lookup %s: %w", code, errors.Join(errs...))
	}
	switch {
	case status == fiber.StatusNotFound:
		return TariffQuote{}, fiber.NewError(fiber.StatusNotFound, "tariff "+code+" not found")
	case status >= fiber.StatusBadRequest:
		return TariffQuote{}, fmt.Errorf("tariff lookup %s: upstream status %d", code, status)
	}
	return ParseTariffResponse(body)
}
