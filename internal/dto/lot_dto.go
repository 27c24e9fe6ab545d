package dto

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ItemAttributes is the validated, explicitly-typed description of the goods
// in a lot. It replaces the free-form request payloads the yard used to carry:
// anything entering the core must fit this shape.
type ItemAttributes struct {
	ItemType      string          `json:"item_type" validate:"required,oneof=casing tubing line_pipe drill_pipe"`
	Grade         string          `json:"grade" validate:"required"`
	OuterDiameter decimal.Decimal `json:"outer_diameter_in" validate:"required,gt=0"`
	NominalLength decimal.Decimal `json:"nominal_length_m" validate:"required,gt=0"`
	UnitWeight    decimal.Decimal `json:"unit_weight_kg" validate:"required,gt=0"`
}

type CreateLotRequest struct {
	// TenantID may only be set by admin callers acting on behalf of a tenant;
	// everyone else gets their own tenant from the auth context.
	TenantID          string         `json:"tenant_id" validate:"omitempty,uuid"`
	ReferenceID       string         `json:"reference_id" validate:"required,max=64"`
	Attributes        ItemAttributes `json:"attributes" validate:"required"`
	EstimatedQuantity int            `json:"estimated_quantity" validate:"required,gt=0"`
	InboundShipmentID *string        `json:"inbound_shipment_id" validate:"omitempty,uuid"`
}

type ConfirmArrivalRequest struct {
	LocationID       string `json:"location_id" validate:"required,uuid"`
	MeasuredQuantity int    `json:"measured_quantity" validate:"required"`
}

type SchedulePickupRequest struct {
	PickupQuantity     int    `json:"pickup_quantity" validate:"required"`
	OutboundShipmentID string `json:"outbound_shipment_id" validate:"required,uuid"`
}

type RejectLotRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// CorrectAttributesRequest carries the explicit-correction escape hatch for
// item attributes. Only non-nil fields are applied.
type CorrectAttributesRequest struct {
	ItemType      *string          `json:"item_type" validate:"omitempty,oneof=casing tubing line_pipe drill_pipe"`
	Grade         *string          `json:"grade"`
	OuterDiameter *decimal.Decimal `json:"outer_diameter_in" validate:"omitempty,gt=0"`
	NominalLength *decimal.Decimal `json:"nominal_length_m" validate:"omitempty,gt=0"`
	UnitWeight    *decimal.Decimal `json:"unit_weight_kg" validate:"omitempty,gt=0"`
}

type LotResponse struct {
	ID                 string         `json:"id"`
	TenantID           string         `json:"tenant_id"`
	ReferenceID        string         `json:"reference_id"`
	Attributes         ItemAttributes `json:"attributes"`
	Quantity           int            `json:"quantity"`
	Status             string         `json:"status"`
	LocationID         *string        `json:"location_id"`
	InboundShipmentID  *string        `json:"inbound_shipment_id"`
	OutboundShipmentID *string        `json:"outbound_shipment_id"`
	RejectReason       *string        `json:"reject_reason,omitempty"`
	CreatedAt          string         `json:"created_at"`
	StatusChangedAt    string         `json:"status_changed_at"`
}

// ArrivalResponse reports the post-arrival status plus the reconciliation
// outcome. Flagged is advisory: the transition already happened.
type ArrivalResponse struct {
	Lot     LotResponse `json:"lot"`
	Flagged bool        `json:"flagged"`
	Delta   int         `json:"delta"`
}

// PickupResponse names the lot now pending pickup. For a partial pickup
// SplitLotID is the freshly created lot and LotID the in-storage remainder;
// for a full pickup SplitLotID is null.
type PickupResponse struct {
	LotID      string  `json:"lot_id"`
	SplitLotID *string `json:"split_lot_id"`
	Status     string  `json:"status"`
}

type StatusResponse struct {
	LotID  string `json:"lot_id"`
	Status string `json:"status"`
}

type LotEventResponse struct {
	ID         string `json:"id"`
	LotID      string `json:"lot_id"`
	TenantID   string `json:"tenant_id"`
	FromStatus string `json:"from_status"`
	ToStatus   string `json:"to_status"`
	OccurredAt string `json:"occurred_at"`
}

type LotEventListResponse struct {
	Data  []LotEventResponse `json:"data"`
	Total int64              `json:"total"`
}

type LotListResponse struct {
	Data  []LotResponse `json:"data"`
	Total int64         `json:"total"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
}

// LotFilter scopes every list query to one tenant. TenantID is filled from the
// auth context, never from user input.
type LotFilter struct {
	TenantID    uuid.UUID
	Status      string
	LocationID  *uuid.UUID
	ReferenceID string
	Page        int
	Limit       int
}
