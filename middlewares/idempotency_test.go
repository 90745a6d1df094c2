package middlewares

import (
	"testing"
	"time"

	"praxis-billing/models"

	"github.com/stretchr/testify/assert"
)

func TestDecideIdempotency(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	hash := RequestHash("POST", "/api/invoice", []byte(`{"patient_id":1}`), "praxis_muster", "u1")

	pending := models.IdempotencyKey{Key: "k1", RequestHash: hash, CreatedAt: now.Add(-10 * time.Second)}
	done := pending
	done.ResponseStatus = 201
	done.ResponseBody = []byte(`{"id":1}`)
	abandoned := pending
	abandoned.CreatedAt = now.Add(-idempotencyPendingTTL - time.Second)

	tests := []struct {
		name  string
		rec   models.IdempotencyKey
		owned bool
		hash  string
		want  idempotencyAction
	}{
		{"first request", pending, true, hash, idemProceed},
		{"duplicate while first still runs", pending, false, hash, idemInProgress},
		{"duplicate after completion", done, false, hash, idemReplay},
		{"same key, different body", done, false, "other", idemMismatch},
		{"pending key, different body", pending, false, "other", idemMismatch},
		{"abandoned pending key", abandoned, false, hash, idemProceed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, decideIdempotency(tt.rec, tt.owned, tt.hash, now))
		})
	}
}
