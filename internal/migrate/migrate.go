package migrate

import (
	"context"
	"fmt"

	"bottlestore-service/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type MigrateOptions struct {
	CreateExtensions       bool // pgcrypto, pg_trgm
	CreateChecks           bool // CHECK-constraint для целостности
	CreateIndexes          bool // индексы и UNIQUE
	CreateFKsViaSQL        bool // FK через SQL (поверх GORM-constraint)
	CreateUpdatedAtTrigger bool // триггер обновления updated_at
}

func DefaultMigrateOptions() MigrateOptions {
	return MigrateOptions{
		CreateExtensions:       true,
		CreateChecks:           true,
		CreateIndexes:          true,
		CreateFKsViaSQL:        true,
		CreateUpdatedAtTrigger: true,
	}
}

type step struct {
	name string
	sql  string
}

var checkSteps = []step{
	{"products.stock_quantity >= 0", `
ALTER TABLE products DROP CONSTRAINT IF EXISTS chk_products_stock_non_negative;
ALTER TABLE products ADD CONSTRAINT chk_products_stock_non_negative CHECK (stock_quantity >= 0);`},
	{"products.price >= 0", `
ALTER TABLE products DROP CONSTRAINT IF EXISTS chk_products_price_non_negative;
ALTER TABLE products ADD CONSTRAINT chk_products_price_non_negative CHECK (price >= 0);`},
	{"products.category", `
ALTER TABLE products DROP CONSTRAINT IF EXISTS chk_products_category_allowed;
ALTER TABLE products ADD CONSTRAINT chk_products_category_allowed
  CHECK (category IN ('wine','beer','spirits','cider','other'));`},
	{"cart_items.quantity >= 1", `
ALTER TABLE cart_items DROP CONSTRAINT IF EXISTS chk_cart_items_quantity_positive;
ALTER TABLE cart_items ADD CONSTRAINT chk_cart_items_quantity_positive CHECK (quantity >= 1);`},
	{"orders.status", `
ALTER TABLE orders DROP CONSTRAINT IF EXISTS chk_orders_status_allowed;
ALTER TABLE orders ADD CONSTRAINT chk_orders_status_allowed
  CHECK (status IN ('pending','processing','shipped','delivered','cancelled'));`},
	{"orders.payment_status", `
ALTER TABLE orders DROP CONSTRAINT IF EXISTS chk_orders_payment_status_allowed;
ALTER TABLE orders ADD CONSTRAINT chk_orders_payment_status_allowed
  CHECK (payment_status IN ('pending','completed','failed','refunded'));`},
	{"orders.total = subtotal + delivery_fee", `
ALTER TABLE orders DROP CONSTRAINT IF EXISTS chk_orders_total_balances;
ALTER TABLE orders ADD CONSTRAINT chk_orders_total_balances
  CHECK (total_amount = subtotal + delivery_fee AND subtotal >= 0 AND delivery_fee >= 0 AND vat_amount >= 0);`},
	{"orders.currency", `
ALTER TABLE orders DROP CONSTRAINT IF EXISTS chk_orders_currency_len;
ALTER TABLE orders ADD CONSTRAINT chk_orders_currency_len CHECK (char_length(currency) = 3);`},
	{"orders.age_verified_at_checkout", `
ALTER TABLE orders DROP CONSTRAINT IF EXISTS chk_orders_age_verified;
ALTER TABLE orders ADD CONSTRAINT chk_orders_age_verified CHECK (age_verified_at_checkout);`},
	{"order_items.quantity > 0", `
ALTER TABLE order_items DROP CONSTRAINT IF EXISTS chk_order_items_quantity_gt_zero;
ALTER TABLE order_items ADD CONSTRAINT chk_order_items_quantity_gt_zero CHECK (quantity > 0);`},
	{"order_items.subtotal", `
ALTER TABLE order_items DROP CONSTRAINT IF EXISTS chk_order_items_subtotal;
ALTER TABLE order_items ADD CONSTRAINT chk_order_items_subtotal
  CHECK (product_price >= 0 AND subtotal = round(product_price * quantity, 2));`},
	{"age_verification_logs.method", `
ALTER TABLE age_verification_logs DROP CONSTRAINT IF EXISTS chk_age_logs_method_allowed;
ALTER TABLE age_verification_logs ADD CONSTRAINT chk_age_logs_method_allowed
  CHECK (method IN ('dob_check','id_verification'));`},
	{"addresses.province", `
ALTER TABLE addresses DROP CONSTRAINT IF EXISTS chk_addresses_province_allowed;
ALTER TABLE addresses ADD CONSTRAINT chk_addresses_province_allowed
  CHECK (province IN ('Eastern Cape','Free State','Gauteng','KwaZulu-Natal','Limpopo',
                      'Mpumalanga','Northern Cape','North West','Western Cape'));`},
	{"addresses.address_type", `
ALTER TABLE addresses DROP CONSTRAINT IF EXISTS chk_addresses_type_allowed;
ALTER TABLE addresses ADD CONSTRAINT chk_addresses_type_allowed
  CHECK (address_type IS NULL OR address_type IN ('home','work','other'));`},
	{"users.role", `
ALTER TABLE users DROP CONSTRAINT IF EXISTS chk_users_role_allowed;
ALTER TABLE users ADD CONSTRAINT chk_users_role_allowed CHECK (role IN ('customer','admin'));`},
}

var indexSteps = []step{
	{"ux_users_email_lower", `CREATE UNIQUE INDEX IF NOT EXISTS ux_users_email_lower ON users (lower(email));`},
	{"ux_cart_items_cart_product", `CREATE UNIQUE INDEX IF NOT EXISTS ux_cart_items_cart_product ON cart_items (cart_id, product_id);`},
	{"ix_products_active_category", `CREATE INDEX IF NOT EXISTS ix_products_active_category ON products (is_active, category, created_at DESC);`},
	{"ix_products_name_trgm", `CREATE INDEX IF NOT EXISTS ix_products_name_trgm ON products USING gin (name gin_trgm_ops);`},
	{"ux_addresses_user_default", `
CREATE UNIQUE INDEX IF NOT EXISTS ux_addresses_user_default ON addresses (user_id) WHERE is_default;`},
	{"ix_orders_user_created", `CREATE INDEX IF NOT EXISTS ix_orders_user_created ON orders (user_id, created_at DESC);`},
	{"ix_orders_status_created", `CREATE INDEX IF NOT EXISTS ix_orders_status_created ON orders (status, created_at DESC);`},
	{"ix_orders_stale_pending", `
CREATE INDEX IF NOT EXISTS ix_orders_stale_pending ON orders (created_at)
WHERE status = 'pending' AND payment_status = 'pending';`},
}

var fkSteps = []step{
	{"cart_items.cart_id -> carts.id", `
ALTER TABLE cart_items
  DROP CONSTRAINT IF EXISTS fk_cart_items_cart,
  ADD CONSTRAINT fk_cart_items_cart FOREIGN KEY (cart_id) REFERENCES carts(id) ON DELETE CASCADE;`},
	{"cart_items.product_id -> products.id", `
ALTER TABLE cart_items
  DROP CONSTRAINT IF EXISTS fk_cart_items_product,
  ADD CONSTRAINT fk_cart_items_product FOREIGN KEY (product_id) REFERENCES products(id) ON DELETE RESTRICT;`},
	{"order_items.product_id -> products.id", `
ALTER TABLE order_items
  DROP CONSTRAINT IF EXISTS fk_order_items_product,
  ADD CONSTRAINT fk_order_items_product FOREIGN KEY (product_id) REFERENCES products(id) ON DELETE RESTRICT;`},
	{"addresses.user_id -> users.id", `
ALTER TABLE addresses
  DROP CONSTRAINT IF EXISTS fk_addresses_user,
  ADD CONSTRAINT fk_addresses_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE;`},
	{"carts.user_id -> users.id", `
ALTER TABLE carts
  DROP CONSTRAINT IF EXISTS fk_carts_user,
  ADD CONSTRAINT fk_carts_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE;`},
	{"order_items.order_id -> orders.id", `
ALTER TABLE order_items
  DROP CONSTRAINT IF EXISTS fk_order_items_order,
  ADD CONSTRAINT fk_order_items_order FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE;`},
	{"orders.user_id -> users.id", `
ALTER TABLE orders
  DROP CONSTRAINT IF EXISTS fk_orders_user,
  ADD CONSTRAINT fk_orders_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE RESTRICT;`},
}

func MigrateStoreDB(ctx context.Context, db *gorm.DB, log *zap.Logger, opt MigrateOptions) error {
	log.Info("Начало миграции базы данных магазина")
	db = db.WithContext(ctx)

	// Расширения
	if opt.CreateExtensions {
		log.Info("Создание расширений PostgreSQL")
		for _, ext := range []string{"pgcrypto", "pg_trgm"} {
			if err := db.Exec(fmt.Sprintf(`CREATE EXTENSION IF NOT EXISTS %s`, ext)).Error; err != nil {
				log.Error("Не удалось включить расширение", zap.String("extension", ext), zap.Error(err))
				return err
			}
		}
		log.Info("Расширения PostgreSQL успешно созданы")
	}

	// Таблицы
	log.Info("Создание таблиц")
	if err := db.AutoMigrate(
		&models.User{},
		&models.Product{},
		&models.Address{},
		&models.Cart{},
		&models.CartItem{},
		&models.Order{},
		&models.OrderItem{},
		&models.AgeVerificationRecord{},
		&models.PaymentEvent{},
	); err != nil {
		log.Error("Не удалось создать таблицы", zap.Error(err))
		return err
	}
	log.Info("Таблицы успешно созданы")

	if opt.CreateUpdatedAtTrigger {
		log.Info("Создание триггеров updated_at")
		if err := db.Exec(`
CREATE OR REPLACE FUNCTION set_updated_at() RETURNS trigger AS $$
BEGIN NEW.updated_at = now(); RETURN NEW; END; $$ LANGUAGE plpgsql;`).Error; err != nil {
			log.Error("Не удалось создать функцию set_updated_at", zap.Error(err))
			return err
		}
		for _, table := range []string{"users", "products", "addresses", "carts", "cart_items", "orders"} {
			if err := db.Exec(fmt.Sprintf(`
DROP TRIGGER IF EXISTS trg_%[1]s_updated ON %[1]s;
CREATE TRIGGER trg_%[1]s_updated
BEFORE UPDATE ON %[1]s
FOR EACH ROW EXECUTE FUNCTION set_updated_at();`, table)).Error; err != nil {
				log.Error("Не удалось создать триггер updated_at", zap.String("table", table), zap.Error(err))
				return err
			}
		}
		log.Info("Триггеры updated_at успешно созданы")
	}

	if opt.CreateChecks {
		log.Info("Создание CHECK-ограничений")
		if err := runSteps(db, log, checkSteps); err != nil {
			return err
		}
		log.Info("CHECK-ограничения успешно созданы")
	}

	if opt.CreateIndexes {
		log.Info("Создание индексов")
		steps := indexSteps
		if !opt.CreateExtensions {
			// без pg_trgm gin-индекс по имени не создать
			steps = filterSteps(steps, "ix_products_name_trgm")
		}
		if err := runSteps(db, log, steps); err != nil {
			return err
		}
		log.Info("Индексы успешно созданы")
	}

	if opt.CreateFKsViaSQL {
		log.Info("Создание внешних ключей")
		if err := runSteps(db, log, fkSteps); err != nil {
			return err
		}
		log.Info("Внешние ключи успешно созданы")
	}

	log.Info("Миграция базы данных магазина успешно завершена")
	return nil
}

func runSteps(db *gorm.DB, log *zap.Logger, steps []step) error {
	for _, s := range steps {
		if err := db.Exec(s.sql).Error; err != nil {
			log.Error("Шаг миграции не выполнен", zap.String("step", s.name), zap.Error(err))
			return fmt.Errorf("migrate %s: %w", s.name, err)
		}
	}
	return nil
}

func filterSteps(steps []step, skip string) []step {
	out := make([]step, 0, len(steps))
	for _, s := range steps {
		if s.name != skip {
			out = append(out, s)
		}
	}
	return out
}
