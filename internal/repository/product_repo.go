package repository

import (
	"context"
	"errors"
	"strings"

	"bottlestore-service/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProductListFilter struct {
	Category   *models.ProductCategory
	Brand      string
	Query      string // по name/brand/description
	Featured   *bool
	OnlyActive *bool
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
	Limit      int
	Offset     int
}

type ProductRepo interface {
	Create(ctx context.Context, p *models.Product) error
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	GetBySlug(ctx context.Context, slug string) (*models.Product, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	List(ctx context.Context, f ProductListFilter) ([]models.Product, int64, error)
	// Deactivate — мягкое удаление: строка остаётся для корзин, заказов и возврата остатка.
	Deactivate(ctx context.Context, id uuid.UUID) (bool, error)
	LockForShare(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
	Categories(ctx context.Context) ([]models.ProductCategory, error)

	// Складские операции. Вызываются только из InventoryLedger.
	TryDecrement(ctx context.Context, id uuid.UUID, qty int) (bool, error)
	Increment(ctx context.Context, id uuid.UUID, qty int) (bool, error)
	AdjustStock(ctx context.Context, id uuid.UUID, delta int) (bool, error)
}

type productRepo struct {
	db *gorm.DB
}

func NewProductRepo(db *gorm.DB) ProductRepo { return &productRepo{db: db} }

func (r *productRepo) Create(ctx context.Context, p *models.Product) error {
	return r.db.WithContext(ctx).Select("*").Create(p).Error
}

func (r *productRepo) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Updates(fields).Error
}

func (r *productRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var p models.Product
	err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &p, err
}

func (r *productRepo) GetBySlug(ctx context.Context, slug string) (*models.Product, error) {
	var p models.Product
	err := r.db.WithContext(ctx).First(&p, "slug = ?", slug).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &p, err
}

func (r *productRepo) SlugExists(ctx context.Context, slug string) (bool, error) {
	var cnt int64
	err := r.db.WithContext(ctx).Model(&models.Product{}).Where("slug = ?", slug).Count(&cnt).Error
	return cnt > 0, err
}

func (r *productRepo) List(ctx context.Context, f ProductListFilter) ([]models.Product, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Product{})

	if f.Category != nil {
		q = q.Where("category = ?", *f.Category)
	}
	if b := strings.TrimSpace(f.Brand); b != "" {
		q = q.Where("lower(brand) = lower(?)", b)
	}
	if f.Featured != nil {
		q = q.Where("featured = ?", *f.Featured)
	}
	if f.OnlyActive != nil {
		q = q.Where("is_active = ?", *f.OnlyActive)
	}
	if f.MinPrice != nil {
		q = q.Where("price >= ?", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		q = q.Where("price <= ?", *f.MaxPrice)
	}
	if s := strings.TrimSpace(f.Query); s != "" {
		like := "%" + s + "%"
		q = q.Where("name ILIKE ? OR brand ILIKE ? OR description ILIKE ?", like, like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	var list []models.Product
	if err := q.Order("created_at DESC").Limit(f.Limit).Offset(f.Offset).Find(&list).Error; err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (r *productRepo) Deactivate(ctx context.Context, id uuid.UUID) (bool, error) {
	tx := r.db.WithContext(ctx).Model(&models.Product{}).
		Where("id = ? AND is_active", id).
		Updates(map[string]any{"is_active": false, "featured": false})
	return tx.RowsAffected > 0, tx.Error
}

// LockForShare читает строки товаров под FOR SHARE: в пределах транзакции
// оформления цену и активность никто не поменяет.
func (r *productRepo) LockForShare(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	out := make(map[uuid.UUID]models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var list []models.Product
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "SHARE"}).
		Where("id IN ?", ids).
		Order("id").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	for _, p := range list {
		out[p.ID] = p
	}
	return out, nil
}

func (r *productRepo) Categories(ctx context.Context) ([]models.ProductCategory, error) {
	var cats []models.ProductCategory
	err := r.db.WithContext(ctx).Model(&models.Product{}).
		Where("is_active = ?", true).
		Distinct("category").
		Order("category").
		Pluck("category", &cats).Error
	return cats, err
}

func (r *productRepo) TryDecrement(ctx context.Context, id uuid.UUID, qty int) (bool, error) {
	// атомарно: stock -= qty, только если хватает
	tx := r.db.WithContext(ctx).Exec(`
UPDATE products
SET stock_quantity = stock_quantity - @q,
    updated_at = now()
WHERE id = @pid
  AND stock_quantity >= @q
`, map[string]any{
		"pid": id,
		"q":   qty,
	})
	return tx.RowsAffected > 0, tx.Error
}

func (r *productRepo) Increment(ctx context.Context, id uuid.UUID, qty int) (bool, error) {
	tx := r.db.WithContext(ctx).Exec(`
UPDATE products
SET stock_quantity = stock_quantity + @q,
    updated_at = now()
WHERE id = @pid
`, map[string]any{
		"pid": id,
		"q":   qty,
	})
	return tx.RowsAffected > 0, tx.Error
}

func (r *productRepo) AdjustStock(ctx context.Context, id uuid.UUID, delta int) (bool, error) {
	tx := r.db.WithContext(ctx).Exec(`
UPDATE products
SET stock_quantity = stock_quantity + @delta,
    updated_at = now()
WHERE id = @pid
  AND stock_quantity + @delta >= 0
`, map[string]any{
		"pid":   id,
		"delta": delta,
	})
	return tx.RowsAffected > 0, tx.Error
}
