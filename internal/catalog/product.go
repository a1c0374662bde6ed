package catalog

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a product does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidProduct is returned when a product fails validation.
	ErrInvalidProduct = errors.New("invalid product")
)

var validate = validator.New()

// Kind is the type of jewelry, which decides where it is worn.
type Kind string

const (
	KindRing     Kind = "ring"
	KindBangle   Kind = "bangle"
	KindBracelet Kind = "bracelet"
)

// OnWrist reports whether the kind is worn on the wrist.
func (k Kind) OnWrist() bool {
	return k == KindBangle || k == KindBracelet
}

// Product is one try-on item. Strategy, when set, overrides the session's
// rendering strategy for sessions made only of this product's kind.
type Product struct {
	ID        string    `json:"id"`
	Name      string    `json:"name" validate:"required,max=200"`
	Kind      Kind      `json:"kind" validate:"required,oneof=ring bangle bracelet"`
	ImagePath string    `json:"image_path" validate:"required"`
	Strategy  string    `json:"strategy,omitempty" validate:"omitempty,oneof=direct warp gradient segmented"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks the product fields.
func (p *Product) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProduct, err)
	}
	return nil
}

// ProductRepository provides CRUD operations for products.
type ProductRepository struct {
	db *sql.DB
}

// Products returns the product repository.
func (s *Store) Products() *ProductRepository {
	return &ProductRepository{db: s.db}
}

// Create validates and inserts p, assigning an ID when empty.
func (r *ProductRepository) Create(p *Product) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.CreatedAt = time.Now().UTC()

	_, err := r.db.Exec(
		`INSERT INTO products (id, name, kind, image_path, strategy, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, string(p.Kind), p.ImagePath, p.Strategy, p.CreatedAt,
	)
	return err
}

// GetByID returns the product with the given ID.
func (r *ProductRepository) GetByID(id string) (*Product, error) {
	row := r.db.QueryRow(
		`SELECT id, name, kind, image_path, strategy, created_at
		 FROM products WHERE id = ?`,
		id,
	)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// List returns every product, newest first.
func (r *ProductRepository) List() ([]*Product, error) {
	return r.query(`SELECT id, name, kind, image_path, strategy, created_at
		FROM products ORDER BY created_at DESC, id`)
}

// ListByKind returns the products of one kind, newest first.
func (r *ProductRepository) ListByKind(k Kind) ([]*Product, error) {
	return r.query(`SELECT id, name, kind, image_path, strategy, created_at
		FROM products WHERE kind = ? ORDER BY created_at DESC, id`, string(k))
}

// Update replaces the mutable fields of p.
func (r *ProductRepository) Update(p *Product) error {
	if err := p.Validate(); err != nil {
		return err
	}
	res, err := r.db.Exec(
		`UPDATE products SET name = ?, kind = ?, image_path = ?, strategy = ? WHERE id = ?`,
		p.Name, string(p.Kind), p.ImagePath, p.Strategy, p.ID,
	)
	if err != nil {
		return err
	}
	return affected(res)
}

// Delete removes the product with the given ID.
func (r *ProductRepository) Delete(id string) error {
	res, err := r.db.Exec(`DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return affected(res)
}

func (r *ProductRepository) query(q string, args ...any) ([]*Product, error) {
	rows, err := r.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(s scanner) (*Product, error) {
	p := &Product{}
	var kind string
	if err := s.Scan(&p.ID, &p.Name, &kind, &p.ImagePath, &p.Strategy, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.Kind = Kind(kind)
	return p, nil
}

func affected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
