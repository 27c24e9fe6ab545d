package repository

import (
	"context"

	"github.com/Bushels/PipeVault-sub014/internal/dto"
	"github.com/Bushels/PipeVault-sub014/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LocationRepository defines the data access contract for storage locations.
//
// Occupancy writes are guarded single-statement updates: the feasibility check
// and the increment happen in one UPDATE so two concurrent reservations against
// the same location cannot both read a stale occupied value. Combined with the
// FOR UPDATE read in FindByIDTx this gives strictly ordered reservations — one
// wins, the other sees the guard fail.
type LocationRepository interface {
	Create(ctx context.Context, loc *model.StorageLocation) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.StorageLocation, error)
	// FindByIDTx loads the location under a row-level exclusive lock, held for
	// the rest of the transaction.
	FindByIDTx(tx *gorm.DB, id uuid.UUID) (*model.StorageLocation, error)
	List(ctx context.Context, filter dto.LocationFilter) ([]model.StorageLocation, int64, error)

	// ReserveLinearTx adds units to occupied iff occupied + units <= capacity.
	// Returns false when the location lacks the headroom.
	ReserveLinearTx(tx *gorm.DB, id uuid.UUID, units int) (bool, error)
	// ReserveSlotTx claims the whole slot for one tenant iff it is empty.
	// units is stored in occupied as a display figure only.
	ReserveSlotTx(tx *gorm.DB, id uuid.UUID, tenantID uuid.UUID, units int) (bool, error)
	ReleaseLinearTx(tx *gorm.DB, id uuid.UUID, units int) error
	ReleaseSlotTx(tx *gorm.DB, id uuid.UUID) error

	DB() *gorm.DB
}

type locationRepo struct{ db *gorm.DB }

func NewLocationRepository(db *gorm.DB) LocationRepository { return &locationRepo{db: db} }

func (r *locationRepo) Create(ctx context.Context, loc *model.StorageLocation) error {
	return r.db.WithContext(ctx).Create(loc).Error
}

func (r *locationRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.StorageLocation, error) {
	var loc model.StorageLocation
	err := r.db.WithContext(ctx).First(&loc, "id = ?", id).Error
	return &loc, err
}

func (r *locationRepo) FindByIDTx(tx *gorm.DB, id uuid.UUID) (*model.StorageLocation, error) {
	var loc model.StorageLocation
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&loc, "id = ?", id).Error
	return &loc, err
}

func (r *locationRepo) List(ctx context.Context, filter dto.LocationFilter) ([]model.StorageLocation, int64, error) {
	var locs []model.StorageLocation
	var total int64

	q := r.db.WithContext(ctx).Model(&model.StorageLocation{})
	if filter.AreaID != "" {
		q = q.Where("area_id = ?", filter.AreaID)
	}
	if filter.Mode != "" {
		q = q.Where("mode = ?", filter.Mode)
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.Limit
	err := q.Order("name ASC").Limit(filter.Limit).Offset(offset).Find(&locs).Error
	return locs, total, err
}

func (r *locationRepo) ReserveLinearTx(tx *gorm.DB, id uuid.UUID, units int) (bool, error) {
	res := tx.Model(&model.StorageLocation{}).
		Where("id = ? AND occupied + ? <= capacity", id, units).
		Update("occupied", gorm.Expr("occupied + ?", units))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *locationRepo) ReserveSlotTx(tx *gorm.DB, id uuid.UUID, tenantID uuid.UUID, units int) (bool, error) {
	res := tx.Model(&model.StorageLocation{}).
		Where("id = ? AND occupied = 0", id).
		Updates(map[string]interface{}{
			"occupied":           units,
			"occupant_tenant_id": tenantID,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *locationRepo) ReleaseLinearTx(tx *gorm.DB, id uuid.UUID, units int) error {
	return tx.Model(&model.StorageLocation{}).
		Where("id = ?", id).
		Update("occupied", gorm.Expr("GREATEST(occupied - ?, 0)", units)).Error
}

func (r *locationRepo) ReleaseSlotTx(tx *gorm.DB, id uuid.UUID) error {
	return tx.Model(&model.StorageLocation{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"occupied":           0,
			"occupant_tenant_id": nil,
		}).Error
}

func (r *locationRepo) DB() *gorm.DB { return r.db }
