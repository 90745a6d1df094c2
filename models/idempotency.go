package models

import "time"

// IdempotencyKey stores the first completed response for an Idempotency-Key header.
// It lives in the clinic schema, so keys never collide across clinics.
type IdempotencyKey struct {
	ID             uint       `json:"id" gorm:"primaryKey"`
	Key            string     `json:"key" gorm:"size:128;uniqueIndex"`
	RequestHash    string     `json:"request_hash" gorm:"size:64"` // sha256 of method|path|body|schema|user
	Method         string     `json:"method" gorm:"size:10"`
	Path           string     `json:"path" gorm:"size:255"`
	TenantSchema   string     `json:"tenant_schema" gorm:"size:64"`
	UserID         string     `json:"user_id" gorm:"size:128"`
	ResponseStatus int        `json:"response_status"` // 0 while the first request is running
	ResponseBody   []byte     `json:"-" gorm:"type:bytea"`
	CreatedAt      time.Time  `json:"created_at"`
	CompletedAt    *time.Time `json:"completed_at"`
}

// Completed reports whether a stored response can be replayed.
func (k IdempotencyKey) Completed() bool {
	return k.ResponseStatus != 0 && k.ResponseBody != nil
}
