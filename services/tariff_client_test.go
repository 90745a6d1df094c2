package services

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTariffResponse(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    TariffQuote
		field   string
		wantErr bool
	}{
		{
			name: "complete",
			body: `{"code":"00.0010","description":"Konsultation","price":19.08,"currency":"chf","tax_rate":0}`,
			want: TariffQuote{Code: "00.0010", Description: "Konsultation", Price: 19.08, Currency: "CHF"},
		},
		{
			name: "currency defaults",
			body: `{"code":"LAB1","price":5}`,
			want: TariffQuote{Code: "LAB1", Price: 5, Currency: "CHF"},
		},
		{name: "zero price is a price", body: `{"code":"X","price":0}`, want: TariffQuote{Code: "X", Currency: "CHF"}},
		{name: "missing price", body: `{"code":"X"}`, field: "price", wantErr: true},
		{name: "negative price", body: `{"code":"X","price":-1}`, field: "price", wantErr: true},
		{name: "missing code", body: `{"price":3}`, field: "code", wantErr: true},
		{name: "bad currency", body: `{"code":"X","price":3,"currency":"SWISS"}`, field: "currency", wantErr: true},
		{name: "not json", body: `<html>`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTariffResponse([]byte(tt.body))
			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrTariffResponse)
			assert.Equal(t, TariffQuote{}, got)
			var pe *ParseError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.field, pe.Field)
		})
	}
}

func TestTariffClient_Lookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/tariffs/00.0010":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"code":"00.0010","description":"Konsultation","price":19.08}`))
		case "/tariffs/broken":
			_, _ = w.Write([]byte(`{"code":"broken"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	tc := NewTariffClient(srv.URL+"/", time.Second)
	require.True(t, tc.Enabled())

	q, err := tc.Lookup("00.0010")
	require.NoError(t, err)
	assert.Equal(t, 19.08, q.Price)

	_, err = tc.Lookup("broken")
	assert.ErrorIs(t, err, ErrTariffResponse)

	_, err = tc.Lookup("missing")
	var fe *fiber.Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, fiber.StatusNotFound, fe.Code)
}

func TestTariffClient_Disabled(t *testing.T) {
	tc := NewTariffClient("", 0)
	assert.False(t, tc.Enabled())
	_, err := tc.Lookup("X")
	assert.Error(t, err)
}
