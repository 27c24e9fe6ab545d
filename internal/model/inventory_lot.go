package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LotStatus is the lifecycle stage of an inventory lot. Transitions between
// statuses go exclusively through service.LotService — nothing else writes them.
type LotStatus string

const (
	StatusPendingDelivery LotStatus = "pending_delivery"
	StatusInStorage       LotStatus = "in_storage"
	StatusPendingPickup   LotStatus = "pending_pickup"
	StatusInTransit       LotStatus = "in_transit"
	StatusDelivered       LotStatus = "delivered"
	StatusRejected        LotStatus = "rejected"
)

// Terminal reports whether no further transition is possible from s.
func (s LotStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusRejected
}

// InventoryLot is one tracked quantity of pipe joints sharing a single record.
// A lot is immutable after creation except for Quantity, Status, LocationID and
// the shipment links, all of which are written only by the lifecycle engine.
// Partial pickups split a lot into two records with fresh IDs rather than
// aliasing one record from two shipments.
type InventoryLot struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	TenantID    uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_lot_tenant_reference,priority:1"`
	ReferenceID string    `gorm:"not null;uniqueIndex:idx_lot_tenant_reference,priority:2"`

	// Item attributes — descriptive, corrected only via the explicit
	// attribute-correction operation.
	ItemType       string          `gorm:"not null"` // e.g. "casing", "tubing", "line_pipe"
	Grade          string          `gorm:"not null"`
	OuterDiameter  decimal.Decimal `gorm:"type:decimal(6,3);not null"` // inches
	NominalLength  decimal.Decimal `gorm:"type:decimal(6,2);not null"` // metres per joint
	UnitWeight     decimal.Decimal `gorm:"type:decimal(8,2);not null"` // kg per joint

	Quantity int       `gorm:"not null"` // joints; > 0 while the lot is active
	Status   LotStatus `gorm:"not null;index"`

	// LocationID is non-null exactly while capacity is reserved at that location
	// (Status in_storage or pending_pickup).
	LocationID         *uuid.UUID `gorm:"type:uuid;index"`
	InboundShipmentID  *uuid.UUID `gorm:"type:uuid"`
	OutboundShipmentID *uuid.UUID `gorm:"type:uuid"`

	RejectReason *string

	CreatedAt       time.Time
	StatusChangedAt time.Time `gorm:"not null"`

	Location *StorageLocation `gorm:"foreignKey:LocationID"`
}

func (InventoryLot) TableName() string { return "inventory_lots" }
