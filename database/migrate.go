package database

import (
	"fmt"

	"praxis-billing/models"

	"gorm.io/gorm"
)

// MigrateTenantSchema applies (idempotent) schema migrations for a single clinic schema.
// It pins search_path to the clinic and performs:
// - AutoMigrate (tables/columns)
// - Money column types (NUMERIC(12,2))
// - Indexes (versions, payments, items, installments, references)
// - Foreign key: invoice_items.tariff_id → tariffs.id
// - CHECK constraints (non-negative money, installment percent 0..100)
func MigrateTenantSchema(schema string) error {
	if !ValidSchema(schema) {
		return fmt.Errorf("invalid schema name %q", schema)
	}

	return DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(`CREATE SCHEMA IF NOT EXISTS "` + schema + `"`).Error; err != nil {
			return fmt.Errorf("create schema failed: %w", err)
		}
		if err := tx.Exec(`SET LOCAL search_path = "` + schema + `", public`).Error; err != nil {
			return fmt.Errorf("set search_path failed: %w", err)
		}

		if err := tx.AutoMigrate(
			&models.Insurer{},
			&models.Patient{},
			&models.Tariff{},
			&models.Invoice{},
			&models.InvoiceItem{},
			&models.Installment{},
			&models.InvoiceVersion{},
			&models.Payment{},
			&models.IdempotencyKey{},
		); err != nil {
			return fmt.Errorf("tenant automigrate failed: %w", err)
		}

		alters := []string{
			`ALTER TABLE tariffs        ALTER COLUMN base_price TYPE numeric(12,2)`,
			`ALTER TABLE invoices       ALTER COLUMN subtotal   TYPE numeric(12,2)`,
			`ALTER TABLE invoices       ALTER COLUMN total      TYPE numeric(12,2)`,
			`ALTER TABLE invoices       ALTER COLUMN paid_total TYPE numeric(12,2)`,
			`ALTER TABLE invoice_items  ALTER COLUMN unit_price TYPE numeric(12,2)`,
			`ALTER TABLE invoice_items  ALTER COLUMN line_total TYPE numeric(12,2)`,
			`ALTER TABLE installments   ALTER COLUMN amount     TYPE numeric(12,2)`,
			`ALTER TABLE payments       ALTER COLUMN amount     TYPE numeric(12,2)`,
		}
		for _, stmt := range alters {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("money type migration failed on: %s - %w", stmt, err)
			}
		}

		indexes := []string{
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_invoice_versions_invoice_id_version_no ON invoice_versions (invoice_id, version_no)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_installments_invoice_position ON installments (invoice_id, position)`,
			`CREATE INDEX IF NOT EXISTS idx_payments_invoice_paid_at ON payments (invoice_id, paid_at)`,
			`CREATE INDEX IF NOT EXISTS idx_invoice_items_invoice ON invoice_items (invoice_id)`,
			`DROP INDEX IF EXISTS idx_invoices_reference`,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_invoices_reference_unique ON invoices (reference)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_installments_reference_unique ON installments (reference)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_idempotency_keys_key ON idempotency_keys (key)`,
		}
		for _, stmt := range indexes {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("index migration failed on: %s - %w", stmt, err)
			}
		}

		constraints := []struct{ table, name, def string }{
			{"invoice_items", "fk_invoice_items_tariff", "FOREIGN KEY (tariff_id) REFERENCES tariffs(id) ON UPDATE RESTRICT ON DELETE RESTRICT"},
			{"tariffs", "chk_tariffs_base_price_nonneg", "CHECK (base_price >= 0)"},
			{"payments", "chk_payments_amount_nonneg", "CHECK (amount >= 0)"},
			{"invoice_items", "chk_invoice_items_line_total_nonneg", "CHECK (line_total >= 0)"},
			{"invoices", "chk_invoices_total_nonneg", "CHECK (total >= 0)"},
			{"installments", "chk_installments_percent_range", "CHECK (percent >= 0 AND percent <= 100)"},
		}
		for _, c := range constraints {
			if err := tx.Exec(addConstraintSQL(c.table, c.name, c.def)).Error; err != nil {
				return fmt.Errorf("constraint %s migration failed: %w", c.name, err)
			}
		}

		return nil
	})
}

// addConstraintSQL adds a named constraint unless it already exists.
func addConstraintSQL(table, name, def string) string {
	return fmt.Sprintf(`
DO $$
BEGIN
	IF NOT EXISTS (
		SELECT 1 FROM pg_constraint
		WHERE conrelid = '%[1]s'::regclass
		  AND conname  = '%[2]s'
	) THEN
		ALTER TABLE %[1]s ADD CONSTRAINT %[2]s %[3]s;
	END IF;
END $$;`, table, name, def)
}
