package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

type User struct {
	ID            uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email         string     `gorm:"type:varchar(255);not null;uniqueIndex"` // храним в нижнем регистре
	PasswordHash  string     `gorm:"type:text;not null"`
	FirstName     string     `gorm:"type:varchar(100);not null"`
	LastName      string     `gorm:"type:varchar(100);not null"`
	Phone         *string    `gorm:"type:varchar(20)"`
	DateOfBirth   *time.Time `gorm:"type:date"`
	AgeVerified   bool       `gorm:"not null;default:false"`
	AgeVerifiedAt *time.Time
	Role          Role `gorm:"type:text;not null;default:'customer'"`
	IsActive      bool `gorm:"not null;default:true"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`
}

func (User) TableName() string { return "users" }

type ProductCategory string

const (
	CategoryWine    ProductCategory = "wine"
	CategoryBeer    ProductCategory = "beer"
	CategorySpirits ProductCategory = "spirits"
	CategoryCider   ProductCategory = "cider"
	CategoryOther   ProductCategory = "other"
)

func (c ProductCategory) Valid() bool {
	switch c {
	case CategoryWine, CategoryBeer, CategorySpirits, CategoryCider, CategoryOther:
		return true
	}
	return false
}

// Product.StockQuantity меняется только через InventoryLedger.
type Product struct {
	ID                uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name              string           `gorm:"type:varchar(200);not null"`
	Slug              string           `gorm:"type:varchar(220);not null;uniqueIndex"`
	Description       string           `gorm:"type:text"`
	Category          ProductCategory  `gorm:"type:text;not null;index"`
	Subcategory       string           `gorm:"type:varchar(100)"`
	Brand             string           `gorm:"type:varchar(100);index"`
	AlcoholContent    *decimal.Decimal `gorm:"type:decimal(5,2)"`
	VolumeML          *int             `gorm:"column:volume_ml"`
	Price             decimal.Decimal  `gorm:"type:decimal(10,2);not null"`
	StockQuantity     int              `gorm:"not null;default:0"` // CHECK >= 0 в миграции
	LowStockThreshold int              `gorm:"not null;default:10"`
	ImageURL          string           `gorm:"type:text"`
	IsActive          bool             `gorm:"not null;default:true;index"`
	Featured          bool             `gorm:"not null;default:false"`

	CreatedAt time.Time `gorm:"not null;default:now();index"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`
}

func (Product) TableName() string { return "products" }

func (p *Product) LowStock() bool { return p.StockQuantity <= p.LowStockThreshold }

type AddressType string

const (
	AddressHome  AddressType = "home"
	AddressWork  AddressType = "work"
	AddressOther AddressType = "other"
)

func (t AddressType) Valid() bool {
	switch t {
	case AddressHome, AddressWork, AddressOther:
		return true
	}
	return false
}

// Provinces — провинции ЮАР, других адрес доставки не принимает.
var Provinces = []string{
	"Eastern Cape",
	"Free State",
	"Gauteng",
	"KwaZulu-Natal",
	"Limpopo",
	"Mpumalanga",
	"Northern Cape",
	"North West",
	"Western Cape",
}

// Address — запись адресной книги пользователя. Изменяемая: заказ хранит свою копию.
type Address struct {
	ID          uuid.UUID    `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID      uuid.UUID    `gorm:"type:uuid;not null;index"`
	AddressType *AddressType `gorm:"type:varchar(20)"`
	Street      string       `gorm:"column:street_address;type:varchar(255);not null"`
	Suburb      string       `gorm:"type:varchar(100)"`
	City        string       `gorm:"type:varchar(100);not null"`
	Province    string       `gorm:"type:varchar(50);not null"`
	PostalCode  string       `gorm:"type:varchar(10);not null"`
	IsDefault   bool         `gorm:"not null;default:false"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`
}

func (Address) TableName() string { return "addresses" }

func (a *Address) Snapshot() DeliveryAddress {
	return DeliveryAddress{
		Street:     a.Street,
		Suburb:     a.Suburb,
		City:       a.City,
		Province:   a.Province,
		PostalCode: a.PostalCode,
	}
}

type Cart struct {
	ID     uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`

	Items []CartItem `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
}

func (Cart) TableName() string { return "carts" }

type CartItem struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	CartID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:ux_cart_items_cart_product"`
	ProductID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:ux_cart_items_cart_product"`
	Quantity  int       `gorm:"not null"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`

	Product *Product `gorm:"foreignKey:ProductID"`
}

func (CartItem) TableName() string { return "cart_items" }

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// DeliveryAddress — снимок адреса на момент заказа, хранится в JSONB.
type DeliveryAddress struct {
	Street     string `json:"street"`
	Suburb     string `json:"suburb,omitempty"`
	City       string `json:"city"`
	Province   string `json:"province"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

type Order struct {
	ID                    uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber           string           `gorm:"type:varchar(50);not null;uniqueIndex"`
	UserID                uuid.UUID        `gorm:"type:uuid;not null;index"`
	Status                OrderStatus      `gorm:"type:text;not null;default:'pending';index"`
	PaymentStatus         PaymentStatus    `gorm:"type:text;not null;default:'pending';index"`
	Subtotal              decimal.Decimal  `gorm:"type:decimal(10,2);not null"`
	VATAmount             decimal.Decimal  `gorm:"column:vat_amount;type:decimal(10,2);not null"`
	DeliveryFee           decimal.Decimal  `gorm:"type:decimal(10,2);not null;default:0"`
	TotalAmount           decimal.Decimal  `gorm:"type:decimal(10,2);not null"`
	Currency              string           `gorm:"type:char(3);not null"`
	DeliveryAddress       DeliveryAddress  `gorm:"type:jsonb;serializer:json;not null"`
	DeliveryInstructions  string           `gorm:"type:text"`
	DeliveryDate          *time.Time
	AgeVerifiedAtCheckout bool    `gorm:"not null;default:false"`
	PaymentIntentID       *string `gorm:"type:varchar(255);uniqueIndex"`
	PaymentMethod         *string `gorm:"type:varchar(50)"`
	Notes                 string  `gorm:"type:text"`
	CancelReason          *string `gorm:"type:text"`

	// StockReserved — склад уже списан под этот заказ (нужно для симметричного возврата)
	StockReserved          bool    `gorm:"not null;default:false"`
	ReconciliationRequired bool    `gorm:"not null;default:false;index"`
	ReconciliationNote     *string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null;default:now();index"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`

	Items []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

func (Order) TableName() string { return "orders" }

func (o *Order) Cancellable() bool {
	return o.Status == OrderStatusPending || o.Status == OrderStatusProcessing
}

type OrderItem struct {
	ID           uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductName  string          `gorm:"type:varchar(200);not null"`
	ProductPrice decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Quantity     int             `gorm:"not null"`
	Subtotal     decimal.Decimal `gorm:"type:decimal(10,2);not null"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
}

func (OrderItem) TableName() string { return "order_items" }

type VerificationMethod string

const (
	VerificationDOBCheck       VerificationMethod = "dob_check"
	VerificationIDVerification VerificationMethod = "id_verification"
)

// AgeVerificationRecord — журнал решений, только вставка.
type AgeVerificationRecord struct {
	ID        uuid.UUID          `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID          `gorm:"type:uuid;not null;index"`
	OrderID   *uuid.UUID         `gorm:"type:uuid;index"`
	Verified  bool               `gorm:"not null"`
	Method    VerificationMethod `gorm:"type:text;not null"`
	Reason    string             `gorm:"type:text"`
	IPAddress *string            `gorm:"type:varchar(45)"`
	UserAgent *string            `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null;default:now();index"`
}

func (AgeVerificationRecord) TableName() string { return "age_verification_logs" }

// PaymentEvent — обработанные webhook-события платёжного провайдера.
type PaymentEvent struct {
	ID              uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ProviderEventID string     `gorm:"type:varchar(255);not null;uniqueIndex"`
	Type            string     `gorm:"type:varchar(100);not null"`
	PaymentIntentID string     `gorm:"type:varchar(255);not null;index"`
	OrderID         *uuid.UUID `gorm:"type:uuid;index"`
	Outcome         string     `gorm:"type:varchar(50);not null"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
}

func (PaymentEvent) TableName() string { return "payment_events" }
