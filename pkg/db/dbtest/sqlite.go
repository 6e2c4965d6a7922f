// Package dbtest opens throwaway SQLite databases carrying the application schema.
package dbtest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/dailycart-backend/pkg/db"
)

// schema mirrors pkg/migrate/migrations in SQLite dialect. Money is stored as TEXT
// so decimals round-trip exactly.
var schema = []string{
	`CREATE TABLE products (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		category TEXT NOT NULL,
		brand TEXT,
		description TEXT,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE product_variants (
		id TEXT PRIMARY KEY,
		product_id TEXT NOT NULL REFERENCES products(id),
		sku TEXT NOT NULL UNIQUE,
		label TEXT NOT NULL,
		unit TEXT NOT NULL,
		mrp TEXT NOT NULL,
		selling_price TEXT NOT NULL,
		stock INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
		is_default BOOLEAN NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE UNIQUE INDEX ux_product_variants_default ON product_variants (product_id) WHERE is_default`,
	`CREATE TABLE carts (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL UNIQUE,
		coupon_code TEXT,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE cart_items (
		id TEXT PRIMARY KEY,
		cart_id TEXT NOT NULL REFERENCES carts(id) ON DELETE CASCADE,
		product_id TEXT NOT NULL,
		variant_id TEXT NOT NULL,
		quantity INTEGER NOT NULL CHECK (quantity >= 1),
		mrp TEXT NOT NULL,
		selling_price TEXT NOT NULL,
		discount TEXT NOT NULL DEFAULT '0',
		position INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME,
		UNIQUE (cart_id, product_id, variant_id)
	)`,
	`CREATE TABLE orders (
		id TEXT PRIMARY KEY,
		order_number TEXT NOT NULL UNIQUE,
		user_id TEXT NOT NULL,
		status TEXT NOT NULL,
		subtotal TEXT NOT NULL,
		item_discount TEXT NOT NULL DEFAULT '0',
		coupon_code TEXT,
		coupon_discount TEXT NOT NULL DEFAULT '0',
		delivery_charge TEXT NOT NULL DEFAULT '0',
		total_amount TEXT NOT NULL,
		total_items INTEGER NOT NULL,
		loyalty_points_earned INTEGER NOT NULL DEFAULT 0,
		payment_method TEXT NOT NULL,
		payment_status TEXT NOT NULL,
		payment_reference TEXT,
		delivery_address TEXT NOT NULL,
		contact_phone TEXT NOT NULL,
		delivery_partner_id TEXT,
		delivery_otp_hash TEXT,
		estimated_delivery_at DATETIME NOT NULL,
		actual_delivery_at DATETIME,
		cancelled_from_status TEXT,
		refund_amount TEXT NOT NULL DEFAULT '0',
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE order_items (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL REFERENCES orders(id),
		product_id TEXT NOT NULL,
		variant_id TEXT NOT NULL,
		product_name TEXT NOT NULL,
		category TEXT NOT NULL,
		variant_label TEXT NOT NULL,
		unit TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		mrp TEXT NOT NULL,
		selling_price TEXT NOT NULL,
		line_total TEXT NOT NULL,
		created_at DATETIME
	)`,
	`CREATE TABLE order_tracking (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL REFERENCES orders(id),
		sequence INTEGER NOT NULL,
		status TEXT NOT NULL,
		note TEXT NOT NULL,
		updated_by TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		UNIQUE (order_id, sequence)
	)`,
	`CREATE TABLE coupons (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		discount_type TEXT NOT NULL,
		discount_value TEXT NOT NULL,
		max_discount TEXT,
		min_order_amount TEXT NOT NULL DEFAULT '0',
		usage_limit INTEGER,
		used_count INTEGER NOT NULL DEFAULT 0,
		user_usage_limit INTEGER NOT NULL DEFAULT 1,
		valid_from DATETIME NOT NULL,
		valid_until DATETIME NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		is_first_order_only BOOLEAN NOT NULL DEFAULT 0,
		is_referral_reward BOOLEAN NOT NULL DEFAULT 0,
		applicable_categories TEXT,
		applicable_products TEXT,
		excluded_categories TEXT,
		excluded_products TEXT,
		created_at DATETIME,
		updated_at DATETIME,
		CHECK (usage_limit IS NULL OR used_count <= usage_limit)
	)`,
	`CREATE TABLE coupon_usages (
		id TEXT PRIMARY KEY,
		coupon_id TEXT NOT NULL REFERENCES coupons(id),
		user_id TEXT NOT NULL,
		order_id TEXT NOT NULL,
		discount_amount TEXT NOT NULL,
		used_at DATETIME NOT NULL
	)`,
	`CREATE UNIQUE INDEX ux_coupon_usages_order ON coupon_usages (order_id)`,
	`CREATE TABLE loyalty_accounts (
		user_id TEXT PRIMARY KEY,
		points_balance INTEGER NOT NULL DEFAULT 0 CHECK (points_balance >= 0),
		lifetime_points INTEGER NOT NULL DEFAULT 0,
		updated_at DATETIME
	)`,
	`CREATE TABLE outbox_events (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload BLOB NOT NULL,
		created_at DATETIME,
		published_at DATETIME,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT
	)`,
	`CREATE TABLE outbox_dlq (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload_json BLOB NOT NULL,
		error_reason TEXT NOT NULL,
		error_message TEXT,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		failed_at DATETIME NOT NULL
	)`,
}

// NewSQLite returns a fresh in-memory database with the full schema applied.
// The pool is pinned to one connection so concurrent callers serialize the way
// row locks would serialize them on Postgres.
func NewSQLite(t testing.TB) *db.Client {
	t.Helper()

	dsn := fmt.Sprintf("file:dc_%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), db.GormConfig())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v", err)
		}
	}
	return db.FromGorm(conn)
}
