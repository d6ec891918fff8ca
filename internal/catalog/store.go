package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a product id has no row.
var ErrNotFound = errors.New("product not found")

const productsSchema = `
CREATE TABLE IF NOT EXISTS products (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	product_id  TEXT NOT NULL UNIQUE,
	title       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	brand       TEXT NOT NULL DEFAULT '',
	color       TEXT NOT NULL DEFAULT '',
	price       REAL NOT NULL DEFAULT 0
);`

// Product is a catalog entry.
type Product struct {
	ID          int64   `json:"id"`
	ProductID   string  `json:"productId"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Brand       string  `json:"brand"`
	Color       string  `json:"color"`
	Price       float64 `json:"price"`
}

// Filter holds the optional search predicates. Non-empty fields become
// case-insensitive LIKE clauses combined with AND.
type Filter struct {
	ProductID   string
	Title       string
	Description string
	Brand       string
	Color       string
}

// Store persists products in sqlite.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the catalog database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open catalog db: %w", err)
	}

	if _, err := db.Exec(productsSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init catalog schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Create inserts a product and returns it with its assigned id.
func (s *Store) Create(ctx context.Context, p Product) (Product, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO products (product_id, title, description, brand, color, price) VALUES (?, ?, ?, ?, ?, ?)",
		p.ProductID, p.Title, p.Description, p.Brand, p.Color, p.Price)
	if err != nil {
		return Product{}, fmt.Errorf("insert product: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return Product{}, fmt.Errorf("insert product id: %w", err)
	}

	p.ID = id
	return p, nil
}

// Get returns the product with the given id.
func (s *Store) Get(ctx context.Context, id int64) (Product, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, product_id, title, description, brand, color, price FROM products WHERE id = ?", id)
	return scanProduct(row)
}

// ExistsByProductID reports whether a product with the external id exists.
func (s *Store) ExistsByProductID(ctx context.Context, productID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM products WHERE product_id = ?", productID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("count product: %w", err)
	}
	return n > 0, nil
}

// Update replaces the mutable fields of the product with the given id.
func (s *Store) Update(ctx context.Context, id int64, p Product) (Product, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE products SET title = ?, description = ?, brand = ?, color = ?, price = ? WHERE id = ?",
		p.Title, p.Description, p.Brand, p.Color, p.Price, id)
	if err != nil {
		return Product{}, fmt.Errorf("update product: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return Product{}, fmt.Errorf("update product: %w", err)
	}
	if affected == 0 {
		return Product{}, ErrNotFound
	}

	return s.Get(ctx, id)
}

// Delete removes the product with the given id.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM products WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

// Search returns the page of products matching the filter, ordered by id.
func (s *Store) Search(ctx context.Context, filter Filter, page, size int) ([]Product, error) {
	if size <= 0 {
		size = 20
	}
	if page < 0 {
		page = 0
	}

	query := strings.Builder{}
	query.WriteString("SELECT id, product_id, title, description, brand, color, price FROM products")

	var clauses []string
	var args []any

	addLike := func(column, value string) {
		if value == "" {
			return
		}
		clauses = append(clauses, fmt.Sprintf("LOWER(%s) LIKE ?", column))
		args = append(args, "%"+strings.ToLower(value)+"%")
	}

	addLike("product_id", filter.ProductID)
	addLike("title", filter.Title)
	addLike("description", filter.Description)
	addLike("brand", filter.Brand)
	addLike("color", filter.Color)

	if len(clauses) > 0 {
		query.WriteString(" WHERE ")
		query.WriteString(strings.Join(clauses, " AND "))
	}

	query.WriteString(" ORDER BY id LIMIT ? OFFSET ?")
	args = append(args, size, page*size)

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}
	defer rows.Close()

	products := make([]Product, 0, size)
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.ProductID, &p.Title, &p.Description, &p.Brand, &p.Color, &p.Price); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}

	return products, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.ProductID, &p.Title, &p.Description, &p.Brand, &p.Color, &p.Price)
	if errors.Is(err, sql.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	if err != nil {
		return Product{}, fmt.Errorf("scan product: %w", err)
	}
	return p, nil
}
