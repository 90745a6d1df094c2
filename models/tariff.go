package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Tariff is a billable catalog position (e.g. a TARMED/TARDOC code or a lab item).
type Tariff struct {
	Id          string  `json:"id" gorm:"primaryKey"`
	Code        string  `json:"code" gorm:"size:32;not null;uniqueIndex"`
	Description string  `json:"description"`
	BasePrice   float64 `json:"base_price" gorm:"type:numeric(12,2)"`
	TaxRate     float64 `json:"tax_rate"`
	Active      bool    `json:"active"`
}

func (tariff *Tariff) BeforeCreate(tx *gorm.DB) (err error) {
	if tariff.Id == "" {
		tariff.Id = uuid.NewString()
	}
	return
}
