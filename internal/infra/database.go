package infra

import (
	"fmt"

	"stockledger/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase establishes a GORM connection backed by pgx, migrates the schema
// and applies the idempotent SQL patches GORM cannot express (CHECK
// constraints, sequences).
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	if err := RunMigrations(db); err != nil {
		return nil, err
	}
	return db, nil
}

// RunMigrations creates or updates every table and then applies schema patches.
// Safe to run on every boot.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Account{},
		&model.Supplier{},
		&model.Product{},
		&model.LedgerEntry{},
		&model.Order{},
		&model.OrderLine{},
		&model.Payment{},
	); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	if err := applySchemaPatches(db); err != nil {
		return fmt.Errorf("schema patches: %w", err)
	}
	return nil
}

// applySchemaPatches runs idempotent DDL statements. Each one is guarded by an
// existence check so re-running on an already-patched DB is a no-op.
func applySchemaPatches(db *gorm.DB) error {
	patches := []struct{ descr, sql string }{
		{"products.stock_quantity non-negative", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_products_stock_non_negative') THEN
    ALTER TABLE products ADD CONSTRAINT chk_products_stock_non_negative CHECK (stock_quantity >= 0);
  END IF;
END $$`},
		{"order_lines.quantity positive", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_order_lines_quantity_positive') THEN
    ALTER TABLE order_lines ADD CONSTRAINT chk_order_lines_quantity_positive CHECK (quantity >= 1);
  END IF;
END $$`},
		{"ledger_entries chained snapshot", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_ledger_after_equals_before_plus_delta') THEN
    ALTER TABLE ledger_entries ADD CONSTRAINT chk_ledger_after_equals_before_plus_delta
      CHECK (quantity_after = quantity_before + delta AND quantity_after >= 0);
  END IF;
END $$`},
		{"order number sequence",
			`CREATE SEQUENCE IF NOT EXISTS order_number_seq START 1`},
	}
	for _, p := range patches {
		if err := db.Exec(p.sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", p.descr, err)
		}
	}
	return nil
}
