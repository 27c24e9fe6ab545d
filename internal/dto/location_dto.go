package dto

import "github.com/shopspring/decimal"

type OccupancyResponse struct {
	LocationID       string          `json:"location_id"`
	Name             string          `json:"name"`
	AreaID           string          `json:"area_id"`
	Mode             string          `json:"mode"`
	Capacity         int             `json:"capacity"`
	Occupied         int             `json:"occupied"`
	UtilizationPct   decimal.Decimal `json:"utilization_pct"`
	OccupantTenantID *string         `json:"occupant_tenant_id,omitempty"`
}

type LocationListResponse struct {
	Data  []OccupancyResponse `json:"data"`
	Total int64               `json:"total"`
	Page  int                 `json:"page"`
	Limit int                 `json:"limit"`
}

type LocationFilter struct {
	AreaID string
	Mode   string
	Page   int
	Limit  int
}
