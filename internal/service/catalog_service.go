package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"bottlestore-service/internal/models"
	"bottlestore-service/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type ProductInput struct {
	Name              string
	Description       string
	Category          models.ProductCategory
	Subcategory       string
	Brand             string
	AlcoholContent    *decimal.Decimal
	VolumeML          *int
	Price             decimal.Decimal
	StockQuantity     int
	LowStockThreshold *int
	ImageURL          string
	IsActive          bool
	Featured          bool
}

// ProductPatch не содержит остатка: остаток меняется только через InventoryLedger.
type ProductPatch struct {
	Name              *string
	Description       *string
	Category          *models.ProductCategory
	Subcategory       *string
	Brand             *string
	AlcoholContent    *decimal.Decimal
	VolumeML          *int
	Price             *decimal.Decimal
	LowStockThreshold *int
	ImageURL          *string
	IsActive          *bool
	Featured          *bool
}

type ProductQuery struct {
	Category *models.ProductCategory
	Brand    string
	Query    string
	Featured *bool
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	Limit    int
	Offset   int
	// IncludeInactive учитывается только для администратора
	IncludeInactive bool
}

type CatalogService interface {
	CreateProduct(ctx context.Context, in ProductInput) (*models.Product, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, patch ProductPatch) (*models.Product, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	GetProductBySlug(ctx context.Context, slug string) (*models.Product, error)
	ListProducts(ctx context.Context, q ProductQuery) ([]models.Product, int64, error)
	Categories(ctx context.Context) ([]models.ProductCategory, error)
}

type catalogService struct {
	repo *repository.Repository
	log  *zap.Logger
	now  func() time.Time
}

func NewCatalogService(repo *repository.Repository, log *zap.Logger) CatalogService {
	return &catalogService{repo: repo, log: log, now: time.Now}
}

// Slugify: "Klipdrift Export 750ml" -> "klipdrift-export-750ml".
func Slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

func (s *catalogService) uniqueSlug(ctx context.Context, name string) (string, error) {
	base := Slugify(name)
	if base == "" {
		base = "product"
	}
	slug := base
	for i := 2; ; i++ {
		exists, err := s.repo.Products.SlugExists(ctx, slug)
		if err != nil {
			return "", err
		}
		if !exists {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, i)
	}
}

func (s *catalogService) CreateProduct(ctx context.Context, in ProductInput) (*models.Product, error) {
	adminID, err := requireAdmin(ctx)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if !in.Category.Valid() {
		return nil, ErrInvalidCategory
	}
	if in.Price.IsNegative() {
		return nil, ErrInvalidPrice
	}
	if in.StockQuantity < 0 {
		return nil, ErrStockUnderflow
	}

	slug, err := s.uniqueSlug(ctx, name)
	if err != nil {
		return nil, err
	}

	threshold := 10
	if in.LowStockThreshold != nil {
		threshold = *in.LowStockThreshold
	}

	now := s.now()
	p := &models.Product{
		ID:                uuid.New(),
		Name:              name,
		Slug:              slug,
		Description:       strings.TrimSpace(in.Description),
		Category:          in.Category,
		Subcategory:       strings.TrimSpace(in.Subcategory),
		Brand:             strings.TrimSpace(in.Brand),
		AlcoholContent:    in.AlcoholContent,
		VolumeML:          in.VolumeML,
		Price:             in.Price.Round(2),
		StockQuantity:     in.StockQuantity,
		LowStockThreshold: threshold,
		ImageURL:          strings.TrimSpace(in.ImageURL),
		IsActive:          in.IsActive,
		Featured:          in.Featured,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.repo.Products.Create(ctx, p); err != nil {
		return nil, err
	}

	s.log.Info("Товар создан",
		zap.String("product_id", p.ID.String()),
		zap.String("slug", p.Slug),
		zap.String("admin_id", adminID.String()),
	)
	return p, nil
}

func (s *catalogService) UpdateProduct(ctx context.Context, id uuid.UUID, patch ProductPatch) (*models.Product, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}

	p, err := s.repo.Products.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrProductNotFound
	}

	fields := map[string]any{}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name is required", ErrValidation)
		}
		if name != p.Name {
			fields["name"] = name
			slug, err := s.uniqueSlug(ctx, name)
			if err != nil {
				return nil, err
			}
			fields["slug"] = slug
		}
	}
	if patch.Description != nil {
		fields["description"] = strings.TrimSpace(*patch.Description)
	}
	if patch.Category != nil {
		if !patch.Category.Valid() {
			return nil, ErrInvalidCategory
		}
		fields["category"] = *patch.Category
	}
	if patch.Subcategory != nil {
		fields["subcategory"] = strings.TrimSpace(*patch.Subcategory)
	}
	if patch.Brand != nil {
		fields["brand"] = strings.TrimSpace(*patch.Brand)
	}
	if patch.AlcoholContent != nil {
		fields["alcohol_content"] = *patch.AlcoholContent
	}
	if patch.VolumeML != nil {
		fields["volume_ml"] = *patch.VolumeML
	}
	if patch.Price != nil {
		if patch.Price.IsNegative() {
			return nil, ErrInvalidPrice
		}
		fields["price"] = patch.Price.Round(2)
	}
	if patch.LowStockThreshold != nil {
		fields["low_stock_threshold"] = *patch.LowStockThreshold
	}
	if patch.ImageURL != nil {
		fields["image_url"] = strings.TrimSpace(*patch.ImageURL)
	}
	if patch.IsActive != nil {
		fields["is_active"] = *patch.IsActive
	}
	if patch.Featured != nil {
		fields["featured"] = *patch.Featured
	}

	if len(fields) == 0 {
		return p, nil
	}
	fields["updated_at"] = s.now()

	if err := s.repo.Products.UpdateFields(ctx, id, fields); err != nil {
		return nil, err
	}
	return s.repo.Products.GetByID(ctx, id)
}

func (s *catalogService) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	adminID, err := requireAdmin(ctx)
	if err != nil {
		return err
	}
	// товар только снимается с продажи: позиции в корзинах остаются и не пройдут оформление
	ok, err := s.repo.Products.Deactivate(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrProductNotFound
	}
	s.log.Info("Товар снят с продажи", zap.String("product_id", id.String()), zap.String("admin_id", adminID.String()))
	return nil
}

func (s *catalogService) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	p, err := s.repo.Products.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil || (!p.IsActive && !isAdmin(ctx)) {
		return nil, ErrProductNotFound
	}
	return p, nil
}

func (s *catalogService) GetProductBySlug(ctx context.Context, slug string) (*models.Product, error) {
	p, err := s.repo.Products.GetBySlug(ctx, strings.ToLower(strings.TrimSpace(slug)))
	if err != nil {
		return nil, err
	}
	if p == nil || (!p.IsActive && !isAdmin(ctx)) {
		return nil, ErrProductNotFound
	}
	return p, nil
}

func (s *catalogService) ListProducts(ctx context.Context, q ProductQuery) ([]models.Product, int64, error) {
	if q.Category != nil && !q.Category.Valid() {
		return nil, 0, ErrInvalidCategory
	}
	if q.Limit > 100 {
		q.Limit = 100
	}

	f := repository.ProductListFilter{
		Category: q.Category,
		Brand:    q.Brand,
		Query:    q.Query,
		Featured: q.Featured,
		MinPrice: q.MinPrice,
		MaxPrice: q.MaxPrice,
		Limit:    q.Limit,
		Offset:   q.Offset,
	}
	if !(q.IncludeInactive && isAdmin(ctx)) {
		active := true
		f.OnlyActive = &active
	}
	return s.repo.Products.List(ctx, f)
}

func (s *catalogService) Categories(ctx context.Context) ([]models.ProductCategory, error) {
	return s.repo.Products.Categories(ctx)
}

func isAdmin(ctx context.Context) bool {
	role, ok := RoleFromContext(ctx)
	return ok && role == models.RoleAdmin
}
