package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/barguni/barguni-api/internal/model"
	"github.com/barguni/barguni-api/internal/storage/db"
)

const productBarcodeConstraint = "products_barcode_key"

const productColumnsSQL = `
	p.id, p.barcode, p.name, p.created_at,
	pic.id, pic.usage, pic.extension, pic.storage_key, pic.url, pic.size, pic.created_at`

type ProductRepository interface {
	WithDB(db db.DB) ProductRepository
	CreateProduct(ctx context.Context, product model.Product) error
	GetProductByID(ctx context.Context, id uuid.UUID) (model.Product, error)
	GetProductByBarcode(ctx context.Context, barcode string) (model.Product, error)
	ExistsByBarcode(ctx context.Context, barcode string) (bool, error)
	ListAllProducts(ctx context.Context) ([]model.Product, error)
}

type productRepository struct {
	db db.DB
}

func NewProductRepository(db db.DB) ProductRepository {
	return &productRepository{db: db}
}

func (r productRepository) WithDB(db db.DB) ProductRepository {
	return &productRepository{db: db}
}

// CreateProduct inserts product referencing product.Picture.ID. It returns
// ErrDuplicateBarcode when the barcode is already taken.
func (r productRepository) CreateProduct(ctx context.Context, product model.Product) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO products (id, barcode, name, picture_id, created_at)
		VALUES (@id, @barcode, @name, @picture_id, @created_at)
	`, pgx.NamedArgs{
		"id":         product.ID,
		"barcode":    product.Barcode,
		"name":       product.Name,
		"picture_id": product.Picture.ID,
		"created_at": product.CreatedAt,
	})
	if err != nil {
		if db.IsUniqueViolation(err, productBarcodeConstraint) {
			return fmt.Errorf("create product %q: %w", product.Barcode, ErrDuplicateBarcode)
		}
		return fmt.Errorf("create product: %w", err)
	}

	return nil
}

func (r productRepository) GetProductByID(ctx context.Context, id uuid.UUID) (model.Product, error) {
	rows, err := r.db.Query(ctx, `
		SELECT`+productColumnsSQL+`
		FROM products p
		JOIN pictures pic ON pic.id = p.picture_id
		WHERE p.id = $1
	`, id)
	if err != nil {
		return model.Product{}, fmt.Errorf("get product %s: %w", id, err)
	}

	return collectOneProduct(rows)
}

func (r productRepository) GetProductByBarcode(ctx context.Context, barcode string) (model.Product, error) {
	rows, err := r.db.Query(ctx, `
		SELECT`+productColumnsSQL+`
		FROM products p
		JOIN pictures pic ON pic.id = p.picture_id
		WHERE p.barcode = $1
	`, barcode)
	if err != nil {
		return model.Product{}, fmt.Errorf("get product by barcode %q: %w", barcode, err)
	}

	return collectOneProduct(rows)
}

func (r productRepository) ExistsByBarcode(ctx context.Context, barcode string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE barcode = $1)`, barcode).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("exists by barcode %q: %w", barcode, err)
	}

	return exists, nil
}

func (r productRepository) ListAllProducts(ctx context.Context) ([]model.Product, error) {
	rows, err := r.db.Query(ctx, `
		SELECT`+productColumnsSQL+`
		FROM products p
		JOIN pictures pic ON pic.id = p.picture_id
		ORDER BY p.created_at DESC, p.id
	`)
	if err != nil {
		return nil, fmt.Errorf("list all products: %w", err)
	}

	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, fmt.Errorf("list all products: %w", err)
	}

	return products, nil
}

func collectOneProduct(rows pgx.Rows) (model.Product, error) {
	product, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Product{}, ErrNotFound
		}
		return model.Product{}, fmt.Errorf("scan product: %w", err)
	}

	return product, nil
}

func scanProduct(row pgx.CollectableRow) (model.Product, error) {
	var (
		p     model.Product
		usage string
	)
	err := row.Scan(
		&p.ID, &p.Barcode, &p.Name, &p.CreatedAt,
		&p.Picture.ID, &usage, &p.Picture.Extension, &p.Picture.StorageKey,
		&p.Picture.URL, &p.Picture.Size, &p.Picture.CreatedAt,
	)
	p.Picture.Usage = model.PictureUsage(usage)

	return p, err
}
