package model

import (
	"time"

	"github.com/google/uuid"
)

// LotEvent records one status transition of a lot. Created in the same
// transaction as the mutation it describes, then forwarded to the
// notification queue after commit.
type LotEvent struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	LotID      uuid.UUID `gorm:"type:uuid;not null;index"`
	TenantID   uuid.UUID `gorm:"type:uuid;not null;index"`
	FromStatus LotStatus `gorm:"not null"` // empty string for lot creation
	ToStatus   LotStatus `gorm:"not null"`
	OccurredAt time.Time `gorm:"not null"`

	Lot *InventoryLot `gorm:"foreignKey:LotID"`
}

func (LotEvent) TableName() string { return "lot_events" }
