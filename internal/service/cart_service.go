package service

import (
	"context"
	"time"

	"bottlestore-service/internal/models"
	"bottlestore-service/internal/pricing"
	"bottlestore-service/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type CartLine struct {
	ItemID    uuid.UUID
	ProductID uuid.UUID
	Name      string
	ImageURL  string
	UnitPrice decimal.Decimal
	Quantity  int
	LineTotal decimal.Decimal
	Available bool
	InStock   int
}

// CartView — корзина с ценами, посчитанными по текущим товарам в момент чтения.
type CartView struct {
	CartID    uuid.UUID
	Lines     []CartLine
	ItemCount int
	Subtotal  decimal.Decimal
}

type CartService interface {
	GetCart(ctx context.Context) (*CartView, error)
	AddItem(ctx context.Context, productID uuid.UUID, qty int, meta ClientMeta) (*CartView, error)
	SetItemQuantity(ctx context.Context, itemID uuid.UUID, qty int, meta ClientMeta) (*CartView, error)
	RemoveItem(ctx context.Context, itemID uuid.UUID) (*CartView, error)
	Clear(ctx context.Context) error
}

type cartService struct {
	repo   *repository.Repository
	ledger *InventoryLedger
	gate   *AgeGate
	log    *zap.Logger
	now    func() time.Time
}

func NewCartService(repo *repository.Repository, ledger *InventoryLedger, gate *AgeGate, log *zap.Logger) CartService {
	return &cartService{
		repo:   repo,
		ledger: ledger,
		gate:   gate,
		log:    log,
		now:    time.Now,
	}
}

func (s *cartService) loadUser(ctx context.Context) (*models.User, error) {
	uid, _, err := requireAuth(ctx)
	if err != nil {
		return nil, err
	}
	u, err := s.repo.Users.GetByID(ctx, uid)
	if err != nil {
		return nil, err
	}
	if u == nil || !u.IsActive {
		return nil, ErrUnauthorized
	}
	return u, nil
}

func (s *cartService) GetCart(ctx context.Context) (*CartView, error) {
	uid, _, err := requireAuth(ctx)
	if err != nil {
		return nil, err
	}
	cart, err := s.repo.Carts.GetOrCreate(ctx, uid)
	if err != nil {
		return nil, err
	}
	return buildCartView(cart), nil
}

func (s *cartService) AddItem(ctx context.Context, productID uuid.UUID, qty int, meta ClientMeta) (*CartView, error) {
	if qty <= 0 {
		return nil, ErrInvalidQuantity
	}
	u, err := s.loadUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.gate.Guard(ctx, s.repo, u, meta); err != nil {
		return nil, err
	}

	p, err := s.repo.Products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if err := s.ledger.CheckAvailability(p, qty); err != nil {
		return nil, err
	}

	cart, err := s.repo.Carts.GetOrCreate(ctx, u.ID)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.Carts.GetItemByProduct(ctx, cart.ID, productID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		combined := existing.Quantity + qty
		if err := s.ledger.CheckAvailability(p, combined); err != nil {
			return nil, err
		}
		if err := s.repo.Carts.UpdateItemQuantity(ctx, existing.ID, combined); err != nil {
			return nil, err
		}
	} else {
		now := s.now()
		if err := s.repo.Carts.CreateItem(ctx, &models.CartItem{
			ID:        uuid.New(),
			CartID:    cart.ID,
			ProductID: productID,
			Quantity:  qty,
			CreatedAt: now,
			UpdatedAt: now,
		}); err != nil {
			return nil, err
		}
	}

	return s.reload(ctx, u.ID)
}

func (s *cartService) SetItemQuantity(ctx context.Context, itemID uuid.UUID, qty int, meta ClientMeta) (*CartView, error) {
	// 0 не принимаем: для удаления есть RemoveItem
	if qty < 1 {
		return nil, ErrInvalidQuantity
	}
	u, err := s.loadUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.gate.Guard(ctx, s.repo, u, meta); err != nil {
		return nil, err
	}

	cart, err := s.repo.Carts.GetByUserID(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, ErrCartItemNotFound
	}
	item, err := s.repo.Carts.GetItem(ctx, cart.ID, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrCartItemNotFound
	}
	if err := s.ledger.CheckAvailability(item.Product, qty); err != nil {
		return nil, err
	}
	if err := s.repo.Carts.UpdateItemQuantity(ctx, item.ID, qty); err != nil {
		return nil, err
	}
	return s.reload(ctx, u.ID)
}

func (s *cartService) RemoveItem(ctx context.Context, itemID uuid.UUID) (*CartView, error) {
	uid, _, err := requireAuth(ctx)
	if err != nil {
		return nil, err
	}
	cart, err := s.repo.Carts.GetByUserID(ctx, uid)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, ErrCartItemNotFound
	}
	ok, err := s.repo.Carts.DeleteItem(ctx, cart.ID, itemID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrCartItemNotFound
	}
	return s.reload(ctx, uid)
}

func (s *cartService) Clear(ctx context.Context) error {
	uid, _, err := requireAuth(ctx)
	if err != nil {
		return err
	}
	_, err = s.repo.Carts.ClearByUser(ctx, uid)
	return err
}

func (s *cartService) reload(ctx context.Context, userID uuid.UUID) (*CartView, error) {
	cart, err := s.repo.Carts.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, ErrCartItemNotFound
	}
	return buildCartView(cart), nil
}

// buildCartView считает итог по текущим ценам; неактивные товары в сумму не входят.
func buildCartView(c *models.Cart) *CartView {
	v := &CartView{CartID: c.ID, Subtotal: decimal.Zero, Lines: make([]CartLine, 0, len(c.Items))}
	for _, it := range c.Items {
		line := CartLine{
			ItemID:    it.ID,
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			LineTotal: decimal.Zero,
		}
		if p := it.Product; p != nil {
			line.Name = p.Name
			line.ImageURL = p.ImageURL
			line.UnitPrice = p.Price
			line.InStock = p.StockQuantity
			line.Available = p.IsActive && p.StockQuantity >= it.Quantity
			if p.IsActive {
				line.LineTotal = pricing.LineSubtotal(p.Price, it.Quantity)
				v.Subtotal = v.Subtotal.Add(line.LineTotal)
			}
		}
		v.ItemCount += it.Quantity
		v.Lines = append(v.Lines, line)
	}
	return v
}
