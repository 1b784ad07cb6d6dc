// Package product implements the relational catalog store on sqlite.
// It is the system of record for product identity; the vector index is a
// derived projection that can always be rebuilt from here.
package product

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/shopdex-io/shopdex/internal/domain"
)

// Repo provides catalog queries over a sqlite database.
type Repo struct {
	db *sql.DB
}

// New opens the catalog database and runs migrations.
func New(path string) (*Repo, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open catalog db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping catalog db: %w", err)
	}

	r := &Repo{db: db}
	if err := r.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate catalog db: %w", err)
	}
	return r, nil
}

// Close closes the database handle.
func (r *Repo) Close() error {
	return r.db.Close()
}

// Ping checks connectivity.
func (r *Repo) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

const productColumns = `p.id, p.title, p.description, p.tags, p.price, p.vendor, p.product_type, p.quantity, p.category_id`

// Find executes equality/range predicates from the spec with pagination.
// Results are ordered by id; relevance ordering is the retrieval layer's
// job and never this one's.
func (r *Repo) Find(ctx context.Context, spec domain.FilterSpec, offset int) ([]domain.ProductRecord, error) {
	var (
		where []string
		args  []any
	)

	if spec.MinPrice != nil {
		where = append(where, "p.price >= ?")
		args = append(args, *spec.MinPrice)
	}
	if spec.MaxPrice != nil {
		where = append(where, "p.price <= ?")
		args = append(args, *spec.MaxPrice)
	}
	if len(spec.Vendors) > 0 {
		where = append(where, "p.vendor IN ("+placeholders(len(spec.Vendors))+")")
		for _, v := range spec.Vendors {
			args = append(args, v)
		}
	}
	if len(spec.Categories) > 0 {
		where = append(where, "p.category_id IN ("+placeholders(len(spec.Categories))+")")
		for _, c := range spec.Categories {
			args = append(args, c)
		}
	}
	if spec.InStockOnly {
		where = append(where, "p.quantity > 0")
	}

	query := "SELECT " + productColumns + " FROM products p"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY p.id LIMIT ? OFFSET ?"
	args = append(args, spec.Limit, offset)

	return r.queryProducts(ctx, query, args...)
}

// GetByID returns one product, or domain.ErrProductNotFound.
func (r *Repo) GetByID(ctx context.Context, id int64) (domain.ProductRecord, error) {
	recs, err := r.queryProducts(ctx,
		"SELECT "+productColumns+" FROM products p WHERE p.id = ?", id)
	if err != nil {
		return domain.ProductRecord{}, err
	}
	if len(recs) == 0 {
		return domain.ProductRecord{}, domain.ErrProductNotFound
	}
	return recs[0], nil
}

// GetByIDs loads a batch of products keyed by id. Missing ids are simply
// absent from the map; stale index entries are not an error.
func (r *Repo) GetByIDs(ctx context.Context, ids []int64) (map[int64]domain.ProductRecord, error) {
	if len(ids) == 0 {
		return map[int64]domain.ProductRecord{}, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	recs, err := r.queryProducts(ctx,
		"SELECT "+productColumns+" FROM products p WHERE p.id IN ("+placeholders(len(ids))+")", args...)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]domain.ProductRecord, len(recs))
	for _, rec := range recs {
		out[rec.ID] = rec
	}
	return out, nil
}

// SearchKeyword runs a case-insensitive substring scan across title,
// description, tags, vendor and product type. This is the last-resort
// retrieval tier when semantic search is unavailable.
func (r *Repo) SearchKeyword(ctx context.Context, term string, limit int) ([]domain.ProductRecord, error) {
	pattern := "%" + strings.ToLower(term) + "%"
	query := "SELECT " + productColumns + ` FROM products p
		WHERE lower(p.title) LIKE ?
		   OR lower(p.description) LIKE ?
		   OR lower(p.tags) LIKE ?
		   OR lower(p.vendor) LIKE ?
		   OR lower(p.product_type) LIKE ?
		ORDER BY p.id LIMIT ?`
	return r.queryProducts(ctx, query, pattern, pattern, pattern, pattern, pattern, limit)
}

// RecentWithImages returns the newest products carrying at least one
// image. Degraded tier for image search when the provider is down.
func (r *Repo) RecentWithImages(ctx context.Context, limit int) ([]domain.ProductRecord, error) {
	query := "SELECT " + productColumns + ` FROM products p
		WHERE EXISTS (SELECT 1 FROM product_images i WHERE i.product_id = p.id)
		ORDER BY p.id DESC LIMIT ?`
	return r.queryProducts(ctx, query, limit)
}

// ListPage pages through the whole catalog by ascending id, for reindexing.
func (r *Repo) ListPage(ctx context.Context, afterID int64, limit int) ([]domain.ProductRecord, error) {
	query := "SELECT " + productColumns + " FROM products p WHERE p.id > ? ORDER BY p.id LIMIT ?"
	return r.queryProducts(ctx, query, afterID, limit)
}

// Count returns the total catalog size.
func (r *Repo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM products").Scan(&n); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}

func (r *Repo) queryProducts(ctx context.Context, query string, args ...any) ([]domain.ProductRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var out []domain.ProductRecord
	for rows.Next() {
		var (
			p     domain.ProductRecord
			desc  sql.NullString
			tags  sql.NullString
			price sql.NullFloat64
			cat   sql.NullInt64
		)
		if err := rows.Scan(&p.ID, &p.Title, &desc, &tags, &price, &p.Vendor, &p.ProductType, &p.Quantity, &cat); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		p.Description = desc.String
		p.Tags = tags.String
		if price.Valid {
			v := price.Float64
			p.Price = &v
		}
		p.CategoryID = cat.Int64
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}

	if err := r.attachDetails(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// attachDetails loads images and option values for the given records.
func (r *Repo) attachDetails(ctx context.Context, recs []domain.ProductRecord) error {
	if len(recs) == 0 {
		return nil
	}

	idx := make(map[int64]int, len(recs))
	ids := make([]any, len(recs))
	for i, rec := range recs {
		idx[rec.ID] = i
		ids[i] = rec.ID
	}
	in := placeholders(len(ids))

	rows, err := r.db.QueryContext(ctx,
		"SELECT product_id, url FROM product_images WHERE product_id IN ("+in+") ORDER BY position", ids...)
	if err != nil {
		return fmt.Errorf("query images: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			pid int64
			url string
		)
		if err := rows.Scan(&pid, &url); err != nil {
			return fmt.Errorf("scan image: %w", err)
		}
		if i, ok := idx[pid]; ok {
			recs[i].Images = append(recs[i].Images, url)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate images: %w", err)
	}

	optRows, err := r.db.QueryContext(ctx,
		"SELECT product_id, name, value FROM product_options WHERE product_id IN ("+in+")", ids...)
	if err != nil {
		return fmt.Errorf("query options: %w", err)
	}
	defer optRows.Close()
	for optRows.Next() {
		var (
			pid         int64
			name, value string
		)
		if err := optRows.Scan(&pid, &name, &value); err != nil {
			return fmt.Errorf("scan option: %w", err)
		}
		if i, ok := idx[pid]; ok {
			recs[i].Options = append(recs[i].Options, domain.OptionFilter{Name: name, Value: value})
		}
	}
	if err := optRows.Err(); err != nil {
		return fmt.Errorf("iterate options: %w", err)
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
