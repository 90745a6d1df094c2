package services

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"praxis-billing/models"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// catalogFile is the YAML layout of a tariff import:
//
//	tariffs:
//	  - code: "00.0010"
//	    description: Konsultation, erste 5 Min.
//	    base_price: 19.08
type catalogFile struct {
	Tariffs []catalogEntry `yaml:"tariffs"`
}

type catalogEntry struct {
	Code        string  `yaml:"code"`
	Description string  `yaml:"description"`
	BasePrice   float64 `yaml:"base_price"`
	TaxRate     float64 `yaml:"tax_rate"`
	Active      *bool   `yaml:"active"`
}

// ParseCatalog reads and checks a YAML tariff catalog.
func ParseCatalog(r io.Reader) ([]models.Tariff, error) {
	var file catalogFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("catalog: empty file")
		}
		return nil, fmt.Errorf("catalog: %w", err)
	}

	seen := make(map[string]int, len(file.Tariffs))
	out := make([]models.Tariff, 0, len(file.Tariffs))
	for i, e := range file.Tariffs {
		code := strings.TrimSpace(e.Code)
		switch {
		case code == "":
			return nil, fmt.Errorf("catalog: entry %d: code missing", i+1)
		case len(code) > 32:
			return nil, fmt.Errorf("catalog: entry %d: code %q too long", i+1, code)
		case math.IsNaN(e.BasePrice) || math.IsInf(e.BasePrice, 0) || e.BasePrice < 0:
			return nil, fmt.Errorf("catalog: entry %d (%s): invalid base_price", i+1, code)
		case e.TaxRate < 0 || e.TaxRate > 100:
			return nil, fmt.Errorf("catalog: entry %d (%s): invalid tax_rate", i+1, code)
		}
		if prev, dup := seen[code]; dup {
			return nil, fmt.Errorf("catalog: entry %d duplicates code %s from entry %d", i+1, code, prev)
		}
		seen[code] = i + 1

		active := true
		if e.Active != nil {
			active = *e.Active
		}
		out = append(out, models.Tariff{
			Code:        code,
			Description: strings.TrimSpace(e.Description),
			BasePrice:   e.BasePrice,
			TaxRate:     e.TaxRate,
			Active:      active,
		})
	}
	return out, nil
}

// ImportCatalog upserts tariffs by code into the schema db is pinned to.
func ImportCatalog(db *gorm.DB, tariffs []models.Tariff) (int, error) {
	if len(tariffs) == 0 {
		return 0, nil
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoUpdates: clause.AssignmentColumns([]string{"description", "base_price", "tax_rate", "active"}),
		}).CreateInBatches(&tariffs, 200).Error
	})
	if err != nil {
		return 0, fmt.Errorf("catalog import: %w", err)
	}
	return len(tariffs), nil
}
