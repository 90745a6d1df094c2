package routes

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"praxis-billing/middlewares"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister_PublicAndProtected(t *testing.T) {
	middlewares.SetJWTSecret("routes-test-secret")
	app := fiber.New(fiber.Config{ErrorHandler: middlewares.ErrorHandler})
	Register(app)

	tests := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/api/reference/RE-1", http.StatusOK},
		{http.MethodGet, "/api/patients", http.StatusUnauthorized},
		{http.MethodGet, "/api/invoices", http.StatusUnauthorized},
		{http.MethodPost, "/api/invoice", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest(tt.method, tt.path, nil))
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}
