package model

import (
	"github.com/google/uuid"
)

// AllocationMode selects how a storage location accounts for capacity.
type AllocationMode string

const (
	// ModeLinearCapacity counts joints against a shared limit. Any number of
	// lots (and tenants) may share the location up to Capacity.
	ModeLinearCapacity AllocationMode = "linear_capacity"
	// ModeSlot is binary occupancy: the location is wholly free or wholly
	// claimed by exactly one tenant, regardless of joint count.
	ModeSlot AllocationMode = "slot"
)

// StorageLocation is a physical storage position in the yard. Rows are
// provisioned out-of-band from the fixed facility layout (see cmd/seedlayout);
// only Occupied and OccupantTenantID mutate at runtime, and only as a side
// effect of a lot transition.
type StorageLocation struct {
	ID     uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	AreaID string         `gorm:"not null;index"` // yard zone grouping, e.g. "NORTH-A"
	Name   string         `gorm:"not null;uniqueIndex"`
	Mode   AllocationMode `gorm:"not null"`

	// Capacity is the maximum joints for linear mode. Slot-mode locations hold
	// a single occupant; their Occupied column stores the claimed joint count
	// as a display figure, so Capacity is not consulted for slot feasibility.
	Capacity int `gorm:"not null"`
	Occupied int `gorm:"not null;default:0"`

	// OccupantTenantID is set while Occupied > 0 in slot mode and must match
	// across every lot assigned there. Always null in linear mode.
	OccupantTenantID *uuid.UUID `gorm:"type:uuid"`
}

func (StorageLocation) TableName() string { return "storage_locations" }
