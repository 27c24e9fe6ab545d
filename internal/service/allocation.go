package service

import (
	"fmt"

	"github.com/Bushels/PipeVault-sub014/internal/model"
	"github.com/Bushels/PipeVault-sub014/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AllocationStrategy turns a requested joint count into a capacity mutation on
// one storage location. Both implementations defer the actual write to a
// guarded UPDATE in the repository, so a failed feasibility check leaves no
// partial effect. The location passed in must have been read under the
// transaction's row lock (LocationRepository.FindByIDTx).
type AllocationStrategy interface {
	// Reserve commits units at the location or fails with ErrCapacityExceeded
	// (linear) / ErrSlotOccupied (slot) without mutating anything.
	Reserve(tx *gorm.DB, loc *model.StorageLocation, tenantID uuid.UUID, units int) error
	// Release returns units to the location. Never fails a feasibility check;
	// occupancy is floored at zero.
	Release(tx *gorm.DB, loc *model.StorageLocation, units int) error
}

// StrategyFor selects the strategy matching the location's allocation mode.
// The slot variant also needs the lot store: releasing a slot is conditional
// on no other lot still holding capacity there.
func StrategyFor(mode model.AllocationMode, locations repository.LocationRepository, lots repository.LotRepository) AllocationStrategy {
	if mode == model.ModeSlot {
		return &slotStrategy{locations: locations, lots: lots}
	}
	return &linearStrategy{locations: locations}
}

// linearStrategy shares a location between any number of lots and tenants up
// to its joint capacity.
type linearStrategy struct {
	locations repository.LocationRepository
}

func (s *linearStrategy) Reserve(tx *gorm.DB, loc *model.StorageLocation, _ uuid.UUID, units int) error {
	ok, err := s.locations.ReserveLinearTx(tx, loc.ID, units)
	if err != nil {
		return fmt.Errorf("reserve %d at %s: %w", units, loc.Name, err)
	}
	if !ok {
		return fmt.Errorf("%d joints at %s (occupied %d/%d): %w",
			units, loc.Name, loc.Occupied, loc.Capacity, ErrCapacityExceeded)
	}
	return nil
}

func (s *linearStrategy) Release(tx *gorm.DB, loc *model.StorageLocation, units int) error {
	return s.locations.ReleaseLinearTx(tx, loc.ID, units)
}

// slotStrategy claims a location whole for a single tenant. The slot is atomic:
// empty or fully claimed, independent of joint count.
type slotStrategy struct {
	locations repository.LocationRepository
	lots      repository.LotRepository
}

func (s *slotStrategy) Reserve(tx *gorm.DB, loc *model.StorageLocation, tenantID uuid.UUID, units int) error {
	// Tenant segregation: an occupied slot is off-limits to everyone,
	// cross-tenant contention included.
	if loc.Occupied > 0 || loc.OccupantTenantID != nil {
		return fmt.Errorf("slot %s held by another lot: %w", loc.Name, ErrSlotOccupied)
	}
	ok, err := s.locations.ReserveSlotTx(tx, loc.ID, tenantID, units)
	if err != nil {
		return fmt.Errorf("claim slot %s: %w", loc.Name, err)
	}
	if !ok {
		return fmt.Errorf("slot %s claimed concurrently: %w", loc.Name, ErrSlotOccupied)
	}
	return nil
}

// Release vacates the slot only when the departing lot was the last one
// holding capacity there. A split leaves the remainder in storage at the same
// bay; until that remainder departs too, the slot stays claimed by its tenant
// and only the displayed joint count drops.
func (s *slotStrategy) Release(tx *gorm.DB, loc *model.StorageLocation, units int) error {
	remaining, err := s.lots.CountActiveAtLocationTx(tx, loc.ID)
	if err != nil {
		return fmt.Errorf("count lots at slot %s: %w", loc.Name, err)
	}
	if remaining > 0 {
		return s.locations.ReleaseLinearTx(tx, loc.ID, units)
	}
	return s.locations.ReleaseSlotTx(tx, loc.ID)
}
