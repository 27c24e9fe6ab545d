package repository

import (
	"context"

	"github.com/Bushels/PipeVault-sub014/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LotEventRepository persists the per-lot transition log. Events are written
// inside the same transaction as the mutation they describe, so a rolled-back
// transition never leaves a phantom event behind.
type LotEventRepository interface {
	CreateTx(tx *gorm.DB, e *model.LotEvent) error
	ListByLot(ctx context.Context, lotID uuid.UUID, page, limit int) ([]model.LotEvent, int64, error)
}

type lotEventRepo struct{ db *gorm.DB }

func NewLotEventRepository(db *gorm.DB) LotEventRepository { return &lotEventRepo{db: db} }

func (r *lotEventRepo) CreateTx(tx *gorm.DB, e *model.LotEvent) error {
	return tx.Create(e).Error
}

func (r *lotEventRepo) ListByLot(ctx context.Context, lotID uuid.UUID, page, limit int) ([]model.LotEvent, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.LotEvent{}).Where("lot_id = ?", lotID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 500 {
		limit = 100
	}
	offset := (page - 1) * limit

	var events []model.LotEvent
	err := q.Order("occurred_at DESC").Offset(offset).Limit(limit).Find(&events).Error
	return events, total, err
}
