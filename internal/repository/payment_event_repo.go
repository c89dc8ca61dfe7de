package repository

import (
	"context"

	"bottlestore-service/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PaymentEventRepo interface {
	// Record вставляет событие; false — событие с таким id уже обработано.
	Record(ctx context.Context, ev *models.PaymentEvent) (bool, error)
	SetOutcome(ctx context.Context, id uuid.UUID, outcome string) error
	CountByIntent(ctx context.Context, intentID string) (int64, error)
}

type paymentEventRepo struct{ db *gorm.DB }

func NewPaymentEventRepo(db *gorm.DB) PaymentEventRepo { return &paymentEventRepo{db: db} }

func (r *paymentEventRepo) Record(ctx context.Context, ev *models.PaymentEvent) (bool, error) {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	tx := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "provider_event_id"}}, DoNothing: true}).
		Create(ev)
	return tx.RowsAffected > 0, tx.Error
}

func (r *paymentEventRepo) SetOutcome(ctx context.Context, id uuid.UUID, outcome string) error {
	return r.db.WithContext(ctx).Model(&models.PaymentEvent{}).Where("id = ?", id).Update("outcome", outcome).Error
}

func (r *paymentEventRepo) CountByIntent(ctx context.Context, intentID string) (int64, error) {
	var cnt int64
	err := r.db.WithContext(ctx).Model(&models.PaymentEvent{}).Where("payment_intent_id = ?", intentID).Count(&cnt).Error
	return cnt, err
}
