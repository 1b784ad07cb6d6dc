package product

import (
	"context"
	"fmt"
)

// migrate creates the catalog schema inside a transaction.
func (r *Repo) migrate(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration tx: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS products (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			external_id  TEXT,
			title        TEXT NOT NULL,
			description  TEXT,
			tags         TEXT,
			price        REAL,
			vendor       TEXT NOT NULL DEFAULT '',
			product_type TEXT NOT NULL DEFAULT '',
			quantity     INTEGER NOT NULL DEFAULT 0,
			category_id  INTEGER,
			created_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS product_images (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			product_id INTEGER NOT NULL REFERENCES products(id) ON DELETE CASCADE,
			url        TEXT NOT NULL,
			position   INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS product_options (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			product_id INTEGER NOT NULL REFERENCES products(id) ON DELETE CASCADE,
			name       TEXT NOT NULL,
			value      TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_products_vendor ON products(vendor)`,
		`CREATE INDEX IF NOT EXISTS idx_products_price ON products(price)`,
		`CREATE INDEX IF NOT EXISTS idx_product_images_pid ON product_images(product_id)`,
		`CREATE INDEX IF NOT EXISTS idx_product_options_pid ON product_options(product_id)`,
	}

	for _, stmt := range stmts {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration statement: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit migrations: %w", err)
	}
	return nil
}
