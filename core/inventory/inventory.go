// Package inventory is the stock ledger. Every operation is a single
// statement so it composes with whatever transaction the caller holds.
package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/irsalhamdi/e-commerce-shop/database"
	"github.com/jmoiron/sqlx"
)

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
)

// Reserve decrements the stock of productID by qty only if enough is
// available and returns what is left. The conditional UPDATE takes the row
// lock, so concurrent reservations on the same product serialize and never
// oversell.
func Reserve(ctx context.Context, db sqlx.ExtContext, productID string, qty int) (int, error) {
	if qty <= 0 {
		return 0, fmt.Errorf("product[%s] qty %d: %w", productID, qty, ErrInvalidQuantity)
	}

	const q = `
	UPDATE products SET
		stock_quantity = stock_quantity - $1,
		updated_at = NOW()
	WHERE product_id = $2 AND stock_quantity >= $1
	RETURNING stock_quantity`

	var remaining int
	if err := sqlx.GetContext(ctx, db, &remaining, q, qty, productID); err != nil {
		if errors.Is(err, database.ErrDBNotFound) {
			return 0, fmt.Errorf("product[%s] qty %d: %w", productID, qty, ErrInsufficientStock)
		}
		return 0, fmt.Errorf("reserving product[%s]: %w", productID, database.Translate(err))
	}

	return remaining, nil
}

// Release gives qty units back to productID. It is the compensation for
// Reserve and for order cancellation.
func Release(ctx context.Context, db sqlx.ExtContext, productID string, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("product[%s] qty %d: %w", productID, qty, ErrInvalidQuantity)
	}

	const q = `
	UPDATE products SET
		stock_quantity = stock_quantity + $1,
		updated_at = NOW()
	WHERE product_id = $2`

	res, err := db.ExecContext(ctx, q, qty, productID)
	if err != nil {
		return fmt.Errorf("releasing %d of product[%s]: %w", qty, productID, err)
	}

	if err := database.ExpectAffected(res); err != nil {
		return fmt.Errorf("releasing %d of product[%s]: %w", qty, productID, err)
	}

	return nil
}

func Stock(ctx context.Context, db sqlx.QueryerContext, productID string) (int, error) {
	const q = `SELECT stock_quantity FROM products WHERE product_id = $1`

	var n int
	if err := sqlx.GetContext(ctx, db, &n, q, productID); err != nil {
		return 0, fmt.Errorf("selecting stock of product[%s]: %w", productID, err)
	}

	return n, nil
}
