package repository

import (
	"context"

	"gorm.io/gorm"
)

type Repository struct {
	DB               *gorm.DB
	Users            UserRepo
	Products         ProductRepo
	Carts            CartRepo
	Addresses        AddressRepo
	Orders           OrderRepo
	OrderItems       OrderItemRepo
	AgeVerifications AgeVerificationRepo
	PaymentEvents    PaymentEventRepo
}

func buildRepository(db *gorm.DB) *Repository {
	return &Repository{
		DB:               db,
		Users:            NewUserRepo(db),
		Products:         NewProductRepo(db),
		Carts:            NewCartRepo(db),
		Addresses:        NewAddressRepo(db),
		Orders:           NewOrderRepo(db),
		OrderItems:       NewOrderItemRepo(db),
		AgeVerifications: NewAgeVerificationRepo(db),
		PaymentEvents:    NewPaymentEventRepo(db),
	}
}

func New(db *gorm.DB) *Repository { return buildRepository(db) }

// Глобальная транзакция на весь набор репо.
// Вызов на репозитории, уже привязанном к транзакции, открывает SAVEPOINT.
func (r *Repository) WithTx(ctx context.Context, fn func(tx *Repository) error) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(buildRepository(tx))
	})
}
