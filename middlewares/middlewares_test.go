package middlewares

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"praxis-billing/billing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWT_RoundTrip(t *testing.T) {
	SetJWTSecret("test-secret")

	token, err := GenerateJWT("user-1", "praxis_muster", "physician")
	require.NoError(t, err)

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Get("/me", IsAuthenticatedHeader(), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"user":   c.Locals("userID"),
			"schema": c.Locals("schema"),
			"role":   c.Locals("role"),
		})
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "user-1", body["user"])
	assert.Equal(t, "praxis_muster", body["schema"])
	assert.Equal(t, "physician", body["role"])
}

func TestIsAuthenticatedHeader_Rejects(t *testing.T) {
	SetJWTSecret("test-secret")
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Get("/me", IsAuthenticatedHeader(), func(c *fiber.Ctx) error { return c.SendStatus(http.StatusOK) })

	for name, header := range map[string]string{
		"missing":    "",
		"not bearer": "Basic abc",
		"garbage":    "Bearer not.a.jwt",
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		})
	}
}

type failedStep struct{ err error }

func (f failedStep) Error() string      { return f.err.Error() }
func (f failedStep) Unwrap() error      { return f.err }
func (f failedStep) FailedStep() string { return "persist" }

func TestErrorHandler(t *testing.T) {
	type dto struct {
		Name string `json:"name" validate:"required"`
	}

	tests := []struct {
		name   string
		err    error
		status int
		check  func(t *testing.T, body map[string]any)
	}{
		{
			name:   "fiber error",
			err:    fiber.NewError(http.StatusConflict, "taken"),
			status: http.StatusConflict,
			check:  func(t *testing.T, b map[string]any) { assert.Equal(t, "taken", b["message"]) },
		},
		{
			name:   "validation",
			err:    ValidateStruct(&dto{}),
			status: http.StatusUnprocessableEntity,
			check: func(t *testing.T, b map[string]any) {
				assert.Equal(t, map[string]any{"name": "required"}, b["errors"])
			},
		},
		{
			name:   "plan error behind a pipeline step",
			err:    failedStep{err: fmt.Errorf("allocate: %w", &billing.PlanError{Sum: 90, Count: 2})},
			status: http.StatusUnprocessableEntity,
			check:  func(t *testing.T, b map[string]any) { assert.Equal(t, 90.0, b["percent_sum"]) },
		},
		{
			name:   "invalid reference",
			err:    billing.ValidateReference("123"),
			status: http.StatusUnprocessableEntity,
		},
		{
			name:   "anything else",
			err:    failedStep{err: errors.New("db gone")},
			status: http.StatusInternalServerError,
			check:  func(t *testing.T, b map[string]any) { assert.Equal(t, "internal server error", b["message"]) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
			app.Get("/", func(c *fiber.Ctx) error { return tt.err })

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)

			var body map[string]any
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			if tt.check != nil {
				tt.check(t, body)
			}
		})
	}
}

func TestBindAndValidate(t *testing.T) {
	type dto struct {
		Email string `json:"email" validate:"required,email"`
	}
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Post("/", func(c *fiber.Ctx) error {
		var in dto
		if err := BindAndValidate(c, &in); err != nil {
			return err
		}
		return c.SendString(in.Email)
	})

	post := func(body string) int {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusOK, post(`{"email":"a@b.ch"}`))
	assert.Equal(t, http.StatusUnprocessableEntity, post(`{"email":"nope"}`))
	assert.Equal(t, http.StatusBadRequest, post(`{"email":`))
}

func TestRequestHash(t *testing.T) {
	a := RequestHash("POST", "/api/invoice", []byte(`{"a":1}`), "s", "u")
	assert.Len(t, a, 64)
	assert.Equal(t, a, RequestHash("POST", "/api/invoice", []byte(`{"a":1}`), "s", "u"))
	assert.NotEqual(t, a, RequestHash("POST", "/api/invoice", []byte(`{"a":2}`), "s", "u"))
	assert.NotEqual(t, a, RequestHash("POST", "/api/invoice", []byte(`{"a":1}`), "other", "u"))
}
