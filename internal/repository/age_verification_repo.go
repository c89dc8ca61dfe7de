package repository

import (
	"context"

	"bottlestore-service/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AgeVerificationRepo — журнал только на вставку, обновления и удаления не предусмотрены.
type AgeVerificationRepo interface {
	Append(ctx context.Context, rec *models.AgeVerificationRecord) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.AgeVerificationRecord, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.AgeVerificationRecord, error)
}

type ageVerificationRepo struct{ db *gorm.DB }

func NewAgeVerificationRepo(db *gorm.DB) AgeVerificationRepo { return &ageVerificationRepo{db: db} }

func (r *ageVerificationRepo) Append(ctx context.Context, rec *models.AgeVerificationRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Select("*").Create(rec).Error
}

func (r *ageVerificationRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.AgeVerificationRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.AgeVerificationRecord
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

func (r *ageVerificationRepo) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.AgeVerificationRecord, error) {
	var rows []models.AgeVerificationRecord
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("created_at ASC").Find(&rows).Error
	return rows, err
}
