package middlewares

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"praxis-billing/database"
	"praxis-billing/logger"
	"praxis-billing/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	maxIdempotencyKeyLen = 128

	// A pending key older than this belongs to a request that died; it may be taken over.
	idempotencyPendingTTL = 2 * time.Minute
)

type idempotencyAction int

const (
	idemProceed idempotencyAction = iota
	idemReplay
	idemMismatch
	idemInProgress
)

// decideIdempotency picks what to do with the stored record for this key.
// owned is true when this request just inserted it.
func decideIdempotency(rec models.IdempotencyKey, owned bool, reqHash string, now time.Time) idempotencyAction {
	switch {
	case owned:
		return idemProceed
	case rec.RequestHash != reqHash:
		return idemMismatch
	case rec.Completed():
		return idemReplay
	case now.Sub(rec.CreatedAt) < idempotencyPendingTTL:
		return idemInProgress
	default:
		return idemProceed
	}
}

// errReplayed stops the phase-1 transaction after a stored response was written.
var errReplayed = errors.New("idempotent response replayed")

// Idempotency processes Idempotency-Key for mutating HTTP methods in a schema-safe way.
// It uses its own short transactions with SET LOCAL search_path, so invoice creation
// retried by a flaky client never produces two invoices or two email jobs.
func Idempotency() fiber.Handler {
	log := logger.WithComponent("idempotency")

	return func(c *fiber.Ctx) error {
		method := strings.ToUpper(c.Method())
		if method != fiber.MethodPost && method != fiber.MethodPut && method != fiber.MethodPatch && method != fiber.MethodDelete {
			return c.Next()
		}

		key := strings.TrimSpace(c.Get("Idempotency-Key"))
		if key == "" {
			return c.Next()
		}
		if len(key) > maxIdempotencyKeyLen {
			return fiber.NewError(fiber.StatusBadRequest, "Idempotency-Key too long")
		}

		schema, _ := c.Locals("schema").(string)
		userID, _ := c.Locals("userID").(string)
		if schema == "" || userID == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "auth context missing")
		}
		if !database.ValidSchema(schema) {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid tenant")
		}

		path := c.OriginalURL()
		reqHash := RequestHash(method, path, c.Body(), schema, userID)

		// Phase 1: read or create the pending record.
		err := database.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec(`SET LOCAL search_path = "` + schema + `", public`).Error; err != nil {
				return fiber.NewError(fiber.StatusInternalServerError, "idempotency schema pin failed")
			}

			rec := models.IdempotencyKey{
				Key:          key,
				RequestHash:  reqHash,
				Method:       method,
				Path:         path,
				TenantSchema: schema,
				UserID:       userID,
			}
			// DO NOTHING keeps the transaction usable when a concurrent request won the insert.
			res := tx.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "key"}}, DoNothing: true}).Create(&rec)
			if res.Error != nil {
				return fiber.NewError(fiber.StatusInternalServerError, "idempotency create failed")
			}
			owned := res.RowsAffected == 1

			existing := rec
			if !owned {
				existing = models.IdempotencyKey{}
				if err := tx.Where("key = ?", key).First(&existing).Error; err != nil {
					return fiber.NewError(fiber.StatusInternalServerError, "idempotency lookup failed")
				}
			}

			switch decideIdempotency(existing, owned, reqHash, time.Now()) {
			case idemMismatch:
				return fiber.NewError(fiber.StatusConflict, "Idempotency-Key reuse with different request")
			case idemInProgress:
				return fiber.NewError(fiber.StatusConflict, "request with this Idempotency-Key is still in progress")
			case idemReplay:
				c.Status(existing.ResponseStatus)
				c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
				c.Set("Idempotent-Replayed", "true")
				if err := c.Send(existing.ResponseBody); err != nil {
					return err
				}
				return errReplayed
			case idemProceed:
				if owned {
					return nil
				}
				// Take over an abandoned key; only one retry wins the claim.
				claim := tx.Model(&models.IdempotencyKey{}).
					Where("key = ? AND created_at = ?", key, existing.CreatedAt).
					Update("created_at", time.Now().UTC())
				if claim.Error != nil {
					return fiber.NewError(fiber.StatusInternalServerError, "idempotency claim failed")
				}
				if claim.RowsAffected != 1 {
					return fiber.NewError(fiber.StatusConflict, "request with this Idempotency-Key is still in progress")
				}
			}
			return nil
		})
		if errors.Is(err, errReplayed) {
			return nil
		}
		if err != nil {
			return err
		}

		release := func() {
			// Failed requests may be retried with the same key.
			if err := database.DB.Exec(`DELETE FROM "`+schema+`".idempotency_keys WHERE key = ?`, key).Error; err != nil {
				log.Warn().Err(err).Str("key", key).Msg("could not release idempotency key")
			}
		}
		if err := c.Next(); err != nil {
			release()
			return err
		}

		status := c.Response().StatusCode()
		if status >= fiber.StatusBadRequest {
			release()
			return nil
		}

		// Phase 2: store the response; best effort, the handler already succeeded.
		resp := c.Response().Body()
		blob := make([]byte, len(resp))
		copy(blob, resp)
		now := time.Now().UTC()
		if err := database.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec(`SET LOCAL search_path = "` + schema + `", public`).Error; err != nil {
				return err
			}
			return tx.Model(&models.IdempotencyKey{}).
				Where("key = ?", key).
				Updates(map[string]any{
					"response_status": status,
					"response_body":   blob,
					"completed_at":    &now,
				}).Error
		}); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("could not store idempotent response")
		}

		return nil
	}
}

// RequestHash fingerprints a request as sha256(method|path|body|schema|user).
func RequestHash(method, path string, body []byte, schema, userID string) string {
	h := sha256.New()
	for i, part := range [][]byte{[]byte(method), []byte(path), body, []byte(schema), []byte(userID)} {
		if i > 0 {
			h.Write([]byte{'\n'})
		}
		h.Write(part)
	}
	return hex.EncodeToString(h.Sum(nil))
}
