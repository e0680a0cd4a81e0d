package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/0111v/projeto-faculdade/pkg/migrate"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected one %s migration, found %d", suffix, len(matches))
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func TestMigrationsContainSchemas(t *testing.T) {
	cases := map[string][]string{
		"create_profiles": {
			"CREATE TABLE IF NOT EXISTS profiles",
			"CONSTRAINT profiles_email_key UNIQUE (email)",
			"CHECK (role IN ('customer', 'admin'))",
			"DROP TABLE IF EXISTS profiles",
		},
		"create_products_table": {
			"CREATE TABLE IF NOT EXISTS products",
			"price numeric(12,2) NOT NULL CHECK (price >= 0)",
			"CHECK (quantity >= 0)",
			"DROP TABLE IF EXISTS products",
		},
		"create_cart_items": {
			"CREATE TABLE IF NOT EXISTS cart_items",
			"CONSTRAINT cart_items_user_product_key UNIQUE (user_id, product_id)",
			"CHECK (quantity > 0)",
			"REFERENCES products(id) ON DELETE CASCADE",
		},
		"create_orders": {
			"CREATE TABLE IF NOT EXISTS orders",
			"CHECK (status IN ('pending', 'completed', 'cancelled'))",
			"CREATE INDEX IF NOT EXISTS idx_orders_user_created",
		},
		"create_order_items": {
			"CREATE TABLE IF NOT EXISTS order_items",
			"REFERENCES orders(id) ON DELETE CASCADE",
			"REFERENCES products(id) ON DELETE SET NULL",
			"price_at_time numeric(12,2) NOT NULL",
		},
		"create_outbox_events": {
			"CREATE TABLE IF NOT EXISTS outbox_events",
			"CREATE TABLE IF NOT EXISTS outbox_dlq",
			"WHERE published_at IS NULL",
		},
	}

	for suffix, checks := range cases {
		t.Run(suffix, func(t *testing.T) {
			content := readMigration(t, suffix)
			for _, sub := range checks {
				if !strings.Contains(content, sub) {
					t.Errorf("missing expected statement %q", sub)
				}
			}
		})
	}
}

func TestMigrationsDirValidates(t *testing.T) {
	if err := migrate.Validate(os.DirFS("migrations")); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}
