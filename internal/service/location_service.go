package service

import (
	"context"
	"errors"

	"github.com/Bushels/PipeVault-sub014/internal/dto"
	"github.com/Bushels/PipeVault-sub014/internal/model"
	"github.com/Bushels/PipeVault-sub014/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LocationService answers occupancy queries. It never mutates locations —
// occupancy moves only as a side effect of lot transitions in LotService.
type LocationService interface {
	GetOccupancy(ctx context.Context, locationID uuid.UUID) (*dto.OccupancyResponse, error)
	List(ctx context.Context, filter dto.LocationFilter) (*dto.LocationListResponse, error)
}

type locationService struct {
	locations repository.LocationRepository
}

func NewLocationService(locations repository.LocationRepository) LocationService {
	return &locationService{locations: locations}
}

func (s *locationService) GetOccupancy(ctx context.Context, locationID uuid.UUID) (*dto.OccupancyResponse, error) {
	loc, err := s.locations.FindByID(ctx, locationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	resp := occupancyToResponse(loc)
	return &resp, nil
}

func (s *locationService) List(ctx context.Context, filter dto.LocationFilter) (*dto.LocationListResponse, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 || filter.Limit > 500 {
		filter.Limit = 100
	}
	locs, total, err := s.locations.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	items := make([]dto.OccupancyResponse, 0, len(locs))
	for i := range locs {
		items = append(items, occupancyToResponse(&locs[i]))
	}
	return &dto.LocationListResponse{
		Data:  items,
		Total: total,
		Page:  filter.Page,
		Limit: filter.Limit,
	}, nil
}

func occupancyToResponse(loc *model.StorageLocation) dto.OccupancyResponse {
	pct := decimal.Zero
	if loc.Mode == model.ModeSlot {
		// Slot occupancy is binary; the stored joint count is display-only.
		if loc.Occupied > 0 {
			pct = decimal.NewFromInt(100)
		}
	} else if loc.Capacity > 0 {
		pct = decimal.NewFromInt(int64(loc.Occupied)).
			Div(decimal.NewFromInt(int64(loc.Capacity))).
			Mul(decimal.NewFromInt(100)).
			Round(2)
	}

	resp := dto.OccupancyResponse{
		LocationID:     loc.ID.String(),
		Name:           loc.Name,
		AreaID:         loc.AreaID,
		Mode:           string(loc.Mode),
		Capacity:       loc.Capacity,
		Occupied:       loc.Occupied,
		UtilizationPct: pct,
	}
	if loc.OccupantTenantID != nil {
		v := loc.OccupantTenantID.String()
		resp.OccupantTenantID = &v
	}
	return resp
}
