package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/xid"

	"github.com/sakif/agromarket/internal/apperror"
	"github.com/sakif/agromarket/internal/model"
	"github.com/sakif/agromarket/internal/repository"
)

var (
	_ repository.CategoryRepository = (*CategoryStore)(nil)
	_ repository.ProductRepository  = (*ProductStore)(nil)
)

// CategoryStore is the categories collection.
type CategoryStore struct {
	db *DB
}

func (s *CategoryStore) Create(ctx context.Context, c *model.Category) error {
	if c.ID.IsNil() {
		c.ID = model.NewID()
	}
	_, err := s.db.conn.ExecContext(ctx,
		`INSERT INTO categories (id, category_name, main_category) VALUES (?, ?, ?)`,
		c.ID, c.CategoryName, c.MainCategory,
	)
	if err != nil {
		return categoryError(err, c, "inserting")
	}
	return nil
}

func (s *CategoryStore) GetByID(ctx context.Context, id xid.ID) (*model.Category, error) {
	var c model.Category
	err := s.db.conn.QueryRowContext(ctx,
		`SELECT id, category_name, main_category FROM categories WHERE id = ?`, id,
	).Scan(&c.ID, &c.CategoryName, &c.MainCategory)
	if err == sql.ErrNoRows {
		return nil, apperror.NotFound("Category", id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting category %s: %w", id, err)
	}
	return &c, nil
}

func (s *CategoryStore) List(ctx context.Context) ([]model.Category, error) {
	rows, err := s.db.conn.QueryContext(ctx,
		`SELECT id, category_name, main_category FROM categories ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing categories: %w", err)
	}
	defer rows.Close()

	out := []model.Category{}
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.CategoryName, &c.MainCategory); err != nil {
			return nil, fmt.Errorf("sqlite: scanning category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *CategoryStore) Update(ctx context.Context, c *model.Category) error {
	res, err := s.db.conn.ExecContext(ctx,
		`UPDATE categories SET category_name = ?, main_category = ? WHERE id = ?`,
		c.CategoryName, c.MainCategory, c.ID,
	)
	if err != nil {
		return categoryError(err, c, "updating")
	}
	return requireAffected(res, "Category", c.ID)
}

func (s *CategoryStore) Delete(ctx context.Context, id xid.ID) error {
	return s.db.deleteByID(ctx, "categories", "Category", id)
}

func (s *CategoryStore) Exists(ctx context.Context, id xid.ID) (bool, error) {
	return s.db.exists(ctx, "categories", "id", id)
}

func categoryError(err error, c *model.Category, op string) error {
	if dup := uniqueViolation(err, map[string]string{
		"category_name": c.CategoryName, "main_category": c.MainCategory,
	}); dup != err {
		return dup
	}
	return fmt.Errorf("sqlite: %s category %s: %w", op, c.ID, err)
}

// ProductStore is the products collection.
type ProductStore struct {
	db *DB
}

func (s *ProductStore) Create(ctx context.Context, p *model.Product) error {
	if p.ID.IsNil() {
		p.ID = model.NewID()
	}
	_, err := s.db.conn.ExecContext(ctx,
		`INSERT INTO products (id, category_id, product_name, picture_url) VALUES (?, ?, ?, ?)`,
		p.ID, p.CategoryID, p.ProductName, p.PictureURL,
	)
	if err != nil {
		return productError(err, p, "inserting")
	}
	return nil
}

func (s *ProductStore) GetByID(ctx context.Context, id xid.ID) (*model.Product, error) {
	var p model.Product
	err := s.db.conn.QueryRowContext(ctx,
		`SELECT id, category_id, product_name, picture_url FROM products WHERE id = ?`, id,
	).Scan(&p.ID, &p.CategoryID, &p.ProductName, &p.PictureURL)
	if err == sql.ErrNoRows {
		return nil, apperror.NotFound("Product", id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting product %s: %w", id, err)
	}
	return &p, nil
}

func (s *ProductStore) List(ctx context.Context) ([]model.Product, error) {
	rows, err := s.db.conn.QueryContext(ctx,
		`SELECT id, category_id, product_name, picture_url FROM products ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing products: %w", err)
	}
	defer rows.Close()

	out := []model.Product{}
	for rows.Next() {
		var p model.Product
		if err := rows.Scan(&p.ID, &p.CategoryID, &p.ProductName, &p.PictureURL); err != nil {
			return nil, fmt.Errorf("sqlite: scanning product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *ProductStore) Update(ctx context.Context, p *model.Product) error {
	res, err := s.db.conn.ExecContext(ctx,
		`UPDATE products SET category_id = ?, product_name = ?, picture_url = ? WHERE id = ?`,
		p.CategoryID, p.ProductName, p.PictureURL, p.ID,
	)
	if err != nil {
		return productError(err, p, "updating")
	}
	return requireAffected(res, "Product", p.ID)
}

func (s *ProductStore) Delete(ctx context.Context, id xid.ID) error {
	return s.db.deleteByID(ctx, "products", "Product", id)
}

func (s *ProductStore) Exists(ctx context.Context, id xid.ID) (bool, error) {
	return s.db.exists(ctx, "products", "id", id)
}

func (s *ProductStore) ReferencesCategory(ctx context.Context, categoryID xid.ID) (bool, error) {
	return s.db.exists(ctx, "products", "category_id", categoryID)
}

func productError(err error, p *model.Product, op string) error {
	if dup := uniqueViolation(err, map[string]string{"product_name": p.ProductName}); dup != err {
		return dup
	}
	return fmt.Errorf("sqlite: %s product %s: %w", op, p.ID, err)
}
