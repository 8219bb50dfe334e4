package product

import (
	"context"
	"fmt"

	"github.com/irsalhamdi/e-commerce-shop/database"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

func Create(ctx context.Context, db sqlx.ExtContext, prod Product) error {
	const q = `
	INSERT INTO products
		(product_id, name, description, price, stock_quantity, created_at, updated_at)
	VALUES
		(:product_id, :name, :description, :price, :stock_quantity, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, prod); err != nil {
		return fmt.Errorf("inserting product[%s]: %w", prod.ID, database.Translate(err))
	}

	return nil
}

func Fetch(ctx context.Context, db sqlx.QueryerContext, id string) (Product, error) {
	const q = `
	SELECT product_id, name, description, price, stock_quantity, created_at, updated_at
	FROM products
	WHERE product_id = $1`

	var prod Product
	if err := sqlx.GetContext(ctx, db, &prod, q, id); err != nil {
		return Product{}, fmt.Errorf("selecting product[%s]: %w", id, err)
	}

	return prod, nil
}

// FetchMany returns the products among ids that exist, keyed by id.
func FetchMany(ctx context.Context, db sqlx.QueryerContext, ids []string) (map[string]Product, error) {
	const q = `
	SELECT product_id, name, description, price, stock_quantity, created_at, updated_at
	FROM products
	WHERE product_id = ANY($1)`

	var prods []Product
	if err := sqlx.SelectContext(ctx, db, &prods, q, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("selecting %d products: %w", len(ids), err)
	}

	m := make(map[string]Product, len(prods))
	for _, p := range prods {
		m[p.ID] = p
	}
	return m, nil
}

func List(ctx context.Context, db sqlx.QueryerContext, limit, offset int) ([]Product, error) {
	const q = `
	SELECT product_id, name, description, price, stock_quantity, created_at, updated_at
	FROM products
	ORDER BY name, product_id
	LIMIT $1 OFFSET $2`

	prods := []Product{}
	if err := sqlx.SelectContext(ctx, db, &prods, q, limit, offset); err != nil {
		return nil, fmt.Errorf("selecting products: %w", err)
	}

	return prods, nil
}
