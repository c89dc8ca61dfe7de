package repository

import (
	"context"
	"errors"

	"bottlestore-service/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AddressRepo interface {
	Create(ctx context.Context, a *models.Address) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Address, error)
	GetForUser(ctx context.Context, id, userID uuid.UUID) (*models.Address, error)
	GetDefault(ctx context.Context, userID uuid.UUID) (*models.Address, error)
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error
	Delete(ctx context.Context, id, userID uuid.UUID) (bool, error)
	// ClearDefault снимает признак по умолчанию со всех адресов пользователя.
	ClearDefault(ctx context.Context, userID uuid.UUID) error
}

type addressRepo struct{ db *gorm.DB }

func NewAddressRepo(db *gorm.DB) AddressRepo { return &addressRepo{db: db} }

func (r *addressRepo) Create(ctx context.Context, a *models.Address) error {
	return r.db.WithContext(ctx).Select("*").Create(a).Error
}

func (r *addressRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Address, error) {
	var rows []models.Address
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("is_default DESC, created_at DESC").
		Find(&rows).Error
	return rows, err
}

func (r *addressRepo) GetForUser(ctx context.Context, id, userID uuid.UUID) (*models.Address, error) {
	var a models.Address
	err := r.db.WithContext(ctx).First(&a, "id = ? AND user_id = ?", id, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &a, err
}

func (r *addressRepo) GetDefault(ctx context.Context, userID uuid.UUID) (*models.Address, error) {
	var a models.Address
	err := r.db.WithContext(ctx).First(&a, "user_id = ? AND is_default", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &a, err
}

func (r *addressRepo) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&models.Address{}).Where("id = ?", id).Updates(fields).Error
}

func (r *addressRepo) Delete(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	tx := r.db.WithContext(ctx).Delete(&models.Address{}, "id = ? AND user_id = ?", id, userID)
	return tx.RowsAffected > 0, tx.Error
}

func (r *addressRepo) ClearDefault(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&models.Address{}).
		Where("user_id = ? AND is_default", userID).
		Update("is_default", false).Error
}
