package repository

import (
	"context"
	"errors"
	"time"

	"bottlestore-service/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CartRepo interface {
	GetOrCreate(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Cart, error)

	GetItem(ctx context.Context, cartID, itemID uuid.UUID) (*models.CartItem, error)
	GetItemByProduct(ctx context.Context, cartID, productID uuid.UUID) (*models.CartItem, error)
	CreateItem(ctx context.Context, it *models.CartItem) error
	UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, qty int) error
	DeleteItem(ctx context.Context, cartID, itemID uuid.UUID) (bool, error)
	Clear(ctx context.Context, cartID uuid.UUID) (int64, error)
	ClearByUser(ctx context.Context, userID uuid.UUID) (int64, error)
}

type cartRepo struct{ db *gorm.DB }

func NewCartRepo(db *gorm.DB) CartRepo { return &cartRepo{db: db} }

// GetOrCreate лениво создаёт корзину: UNIQUE(user_id) защищает от гонки двух запросов.
func (r *cartRepo) GetOrCreate(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	now := time.Now()
	cart := &models.Cart{ID: uuid.New(), UserID: userID, CreatedAt: now, UpdatedAt: now}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(cart).Error
	if err != nil {
		return nil, err
	}
	return r.GetByUserID(ctx, userID)
}

func (r *cartRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	var c models.Cart
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("Items.Product").
		First(&c, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &c, err
}

func (r *cartRepo) GetItem(ctx context.Context, cartID, itemID uuid.UUID) (*models.CartItem, error) {
	var it models.CartItem
	err := r.db.WithContext(ctx).Preload("Product").First(&it, "id = ? AND cart_id = ?", itemID, cartID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &it, err
}

func (r *cartRepo) GetItemByProduct(ctx context.Context, cartID, productID uuid.UUID) (*models.CartItem, error) {
	var it models.CartItem
	err := r.db.WithContext(ctx).First(&it, "cart_id = ? AND product_id = ?", cartID, productID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &it, err
}

func (r *cartRepo) CreateItem(ctx context.Context, it *models.CartItem) error {
	return r.db.WithContext(ctx).Omit("Product").Create(it).Error
}

func (r *cartRepo) UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, qty int) error {
	return r.db.WithContext(ctx).Model(&models.CartItem{}).Where("id = ?", itemID).Updates(map[string]any{
		"quantity":   qty,
		"updated_at": time.Now(),
	}).Error
}

func (r *cartRepo) DeleteItem(ctx context.Context, cartID, itemID uuid.UUID) (bool, error) {
	tx := r.db.WithContext(ctx).Where("id = ? AND cart_id = ?", itemID, cartID).Delete(&models.CartItem{})
	return tx.RowsAffected > 0, tx.Error
}

func (r *cartRepo) Clear(ctx context.Context, cartID uuid.UUID) (int64, error) {
	tx := r.db.WithContext(ctx).Where("cart_id = ?", cartID).Delete(&models.CartItem{})
	return tx.RowsAffected, tx.Error
}

func (r *cartRepo) ClearByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	tx := r.db.WithContext(ctx).Exec(`
DELETE FROM cart_items
WHERE cart_id IN (SELECT id FROM carts WHERE user_id = ?)
`, userID)
	return tx.RowsAffected, tx.Error
}
