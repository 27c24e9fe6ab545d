package repository

import (
	"context"

	"github.com/Bushels/PipeVault-sub014/internal/dto"
	"github.com/Bushels/PipeVault-sub014/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LotRepository defines the data access contract for inventory lots.
// Services depend on this interface, not on the concrete GORM implementation,
// enabling clean unit testing via stubs.
//
// The ...Tx methods are guarded single-statement updates meant to run inside a
// transaction owned by the caller. Their boolean result reports whether the
// guard matched: false means the lot was concurrently moved past the expected
// state (or drained below the requested quantity) and the caller must treat
// the attempt as a conflict, not retry blindly.
type LotRepository interface {
	Create(ctx context.Context, lot *model.InventoryLot) error
	CreateTx(tx *gorm.DB, lot *model.InventoryLot) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.InventoryLot, error)
	// FindByIDTx loads the lot under a row-level exclusive lock (FOR UPDATE),
	// serializing concurrent transitions on the same lot.
	FindByIDTx(tx *gorm.DB, id uuid.UUID) (*model.InventoryLot, error)
	List(ctx context.Context, filter dto.LotFilter) ([]model.InventoryLot, int64, error)

	// TransitionTx moves the lot from one status to another, applying extra
	// column writes atomically with the status change. The WHERE guard on the
	// source status is what makes retried calls fail instead of double-applying.
	TransitionTx(tx *gorm.DB, id uuid.UUID, from, to model.LotStatus, set map[string]interface{}) (bool, error)

	// DeductQuantityTx decrements an in-storage lot's quantity for a partial
	// pickup. The guard requires quantity strictly greater than units so the
	// remainder always stays active (> 0).
	DeductQuantityTx(tx *gorm.DB, id uuid.UUID, units int) (bool, error)

	UpdateAttributesTx(tx *gorm.DB, id uuid.UUID, set map[string]interface{}) error

	// CountActiveAtLocationTx counts lots still holding capacity at a location
	// (status in_storage or pending_pickup). Used by the slot release path to
	// decide whether a departure vacates the whole slot.
	CountActiveAtLocationTx(tx *gorm.DB, locationID uuid.UUID) (int64, error)

	// DB exposes the underlying *gorm.DB so services can open transactions.
	DB() *gorm.DB
}

type lotRepo struct{ db *gorm.DB }

func NewLotRepository(db *gorm.DB) LotRepository { return &lotRepo{db: db} }

func (r *lotRepo) Create(ctx context.Context, lot *model.InventoryLot) error {
	return r.db.WithContext(ctx).Create(lot).Error
}

func (r *lotRepo) CreateTx(tx *gorm.DB, lot *model.InventoryLot) error {
	return tx.Create(lot).Error
}

func (r *lotRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.InventoryLot, error) {
	var lot model.InventoryLot
	err := r.db.WithContext(ctx).First(&lot, "id = ?", id).Error
	return &lot, err
}

func (r *lotRepo) FindByIDTx(tx *gorm.DB, id uuid.UUID) (*model.InventoryLot, error) {
	var lot model.InventoryLot
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&lot, "id = ?", id).Error
	return &lot, err
}

func (r *lotRepo) List(ctx context.Context, filter dto.LotFilter) ([]model.InventoryLot, int64, error) {
	var lots []model.InventoryLot
	var total int64

	q := r.db.WithContext(ctx).Model(&model.InventoryLot{}).
		Where("tenant_id = ?", filter.TenantID)

	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.LocationID != nil {
		q = q.Where("location_id = ?", *filter.LocationID)
	}
	if filter.ReferenceID != "" {
		q = q.Where("reference_id = ?", filter.ReferenceID)
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.Limit
	err := q.Order("created_at DESC").Limit(filter.Limit).Offset(offset).Find(&lots).Error
	return lots, total, err
}

func (r *lotRepo) TransitionTx(tx *gorm.DB, id uuid.UUID, from, to model.LotStatus, set map[string]interface{}) (bool, error) {
	values := map[string]interface{}{
		"status":            to,
		"status_changed_at": gorm.Expr("NOW()"),
	}
	for k, v := range set {
		values[k] = v
	}
	res := tx.Model(&model.InventoryLot{}).
		Where("id = ? AND status = ?", id, from).
		Updates(values)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *lotRepo) DeductQuantityTx(tx *gorm.DB, id uuid.UUID, units int) (bool, error) {
	res := tx.Model(&model.InventoryLot{}).
		Where("id = ? AND status = ? AND quantity > ?", id, model.StatusInStorage, units).
		Update("quantity", gorm.Expr("quantity - ?", units))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *lotRepo) UpdateAttributesTx(tx *gorm.DB, id uuid.UUID, set map[string]interface{}) error {
	return tx.Model(&model.InventoryLot{}).Where("id = ?", id).Updates(set).Error
}

// Served by the idx_lots_on_location partial index.
func (r *lotRepo) CountActiveAtLocationTx(tx *gorm.DB, locationID uuid.UUID) (int64, error) {
	var n int64
	err := tx.Model(&model.InventoryLot{}).
		Where("location_id = ? AND status IN ?", locationID,
			[]model.LotStatus{model.StatusInStorage, model.StatusPendingPickup}).
		Count(&n).Error
	return n, err
}

func (r *lotRepo) DB() *gorm.DB { return r.db }
