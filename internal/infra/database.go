package infra

import (
	"fmt"

	"github.com/Bushels/PipeVault-sub014/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase establishes a GORM connection backed by pgx, runs AutoMigrate to
// create / update all tables, then applies the idempotent SQL patches that
// AutoMigrate cannot express (CHECK constraints, partial indexes).
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

// RunMigrations creates or updates the schema. Also used by integration tests
// against a throwaway container database.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.StorageLocation{},
		&model.InventoryLot{},
		&model.LotEvent{},
	); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	return applySchemaPatches(db)
}

// applySchemaPatches backstops the invariants the engine enforces in
// application code: the DB rejects any write that would break them even if a
// bug slips past the guarded updates. Each statement is idempotent.
func applySchemaPatches(db *gorm.DB) error {
	patches := []string{
		// 0 <= occupied <= capacity for linear mode; slot mode stores the
		// claimed joint count, bounded only below.
		`DO $$ BEGIN
		  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_location_occupancy') THEN
		    ALTER TABLE storage_locations ADD CONSTRAINT chk_location_occupancy
		        CHECK (occupied >= 0 AND (mode <> 'linear_capacity' OR occupied <= capacity));
		  END IF;
		END $$`,
		// Slot occupancy and occupant tenant are set together or not at all.
		`DO $$ BEGIN
		  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_slot_occupant') THEN
		    ALTER TABLE storage_locations ADD CONSTRAINT chk_slot_occupant
		        CHECK (mode <> 'slot' OR ((occupied > 0) = (occupant_tenant_id IS NOT NULL)));
		  END IF;
		END $$`,
		// Active lots always carry a positive quantity.
		`DO $$ BEGIN
		  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_lot_quantity') THEN
		    ALTER TABLE inventory_lots ADD CONSTRAINT chk_lot_quantity CHECK (quantity > 0);
		  END IF;
		END $$`,
		// Partial index for the yard-floor query: what is physically here now.
		`DO $$ BEGIN
		  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_lots_on_location') THEN
		    CREATE INDEX idx_lots_on_location
		        ON inventory_lots (location_id)
		        WHERE status IN ('in_storage', 'pending_pickup');
		  END IF;
		END $$`,
	}

	for _, sql := range patches {
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", sql[:min(len(sql), 60)], err)
		}
	}
	return nil
}
