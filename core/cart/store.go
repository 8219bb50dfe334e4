package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/irsalhamdi/e-commerce-shop/core/product"
	"github.com/irsalhamdi/e-commerce-shop/database"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

// Store owns carts. Reads go through the cache when one is configured and
// every mutation evicts the cached copy once its transaction committed.
type Store struct {
	db    *sqlx.DB
	cache *Cache
	log   logrus.FieldLogger
}

func NewStore(db *sqlx.DB, cache *Cache, log logrus.FieldLogger) *Store {
	return &Store{db: db, cache: cache, log: log}
}

// Get returns the cart of userID, creating an empty one on first access.
func (s *Store) Get(ctx context.Context, userID string) (Cart, error) {
	load := func(ctx context.Context) (Cart, error) {
		var c Cart
		err := database.Transaction(ctx, s.db, func(tx sqlx.ExtContext) error {
			var err error
			c, err = get(ctx, tx, userID)
			return err
		})
		return c, err
	}

	if s.cache == nil {
		return load(ctx)
	}
	return s.cache.Get(ctx, userID, load)
}

func (s *Store) AddOrIncrement(ctx context.Context, userID, productID string, qty int) (Cart, error) {
	if qty <= 0 {
		return Cart{}, fmt.Errorf("adding %d of product[%s]: %w", qty, productID, ErrInvalidQuantity)
	}

	return s.mutate(ctx, userID, func(tx sqlx.ExtContext, now time.Time) error {
		if _, err := product.Fetch(ctx, tx, productID); err != nil {
			if errors.Is(err, database.ErrDBNotFound) {
				return fmt.Errorf("product[%s]: %w", productID, ErrProductNotFound)
			}
			return err
		}

		return upsertLine(ctx, tx, Line{
			UserID:    userID,
			ProductID: productID,
			Quantity:  qty,
			CreatedAt: now,
			UpdatedAt: now,
		})
	})
}

// SetQuantity overwrites the quantity of an existing line. A quantity of
// zero or less removes the line.
func (s *Store) SetQuantity(ctx context.Context, userID, productID string, qty int) (Cart, error) {
	if qty <= 0 {
		return s.Remove(ctx, userID, productID)
	}

	return s.mutate(ctx, userID, func(tx sqlx.ExtContext, now time.Time) error {
		return updateLine(ctx, tx, userID, productID, qty, now)
	})
}

func (s *Store) Remove(ctx context.Context, userID, productID string) (Cart, error) {
	return s.mutate(ctx, userID, func(tx sqlx.ExtContext, now time.Time) error {
		return deleteLine(ctx, tx, userID, productID)
	})
}

func (s *Store) Clear(ctx context.Context, userID string) (Cart, error) {
	return s.mutate(ctx, userID, func(tx sqlx.ExtContext, now time.Time) error {
		return DeleteLines(ctx, tx, userID)
	})
}

// Evict drops the cached copy of userID's cart. Failures are logged only:
// a stale entry expires with its TTL.
func (s *Store) Evict(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, userID); err != nil {
		s.log.WithError(err).WithField("user_id", userID).Warn("evicting cached cart")
	}
}

func (s *Store) mutate(ctx context.Context, userID string, fn func(tx sqlx.ExtContext, now time.Time) error) (Cart, error) {
	var c Cart
	err := database.Transaction(ctx, s.db, func(tx sqlx.ExtContext) error {
		now := time.Now().UTC()

		if err := ensure(ctx, tx, userID, now); err != nil {
			return err
		}
		if err := fn(tx, now); err != nil {
			return err
		}
		if err := RefreshTotal(ctx, tx, userID, now); err != nil {
			return err
		}

		var err error
		c, err = fetch(ctx, tx, userID)
		return err
	})
	if err != nil {
		return Cart{}, fmt.Errorf("updating cart of user[%s]: %w", userID, err)
	}

	s.Evict(ctx, userID)
	return c, nil
}

func get(ctx context.Context, db sqlx.ExtContext, userID string) (Cart, error) {
	if err := ensure(ctx, db, userID, time.Now().UTC()); err != nil {
		return Cart{}, err
	}
	return fetch(ctx, db, userID)
}

func ensure(ctx context.Context, db sqlx.ExtContext, userID string, now time.Time) error {
	const q = `
	INSERT INTO carts (user_id, total_amount, created_at, updated_at)
	VALUES ($1, 0, $2, $2)
	ON CONFLICT (user_id) DO NOTHING`

	if _, err := db.ExecContext(ctx, q, userID, now); err != nil {
		return fmt.Errorf("creating cart of user[%s]: %w", userID, err)
	}
	return nil
}

func fetch(ctx context.Context, db sqlx.QueryerContext, userID string) (Cart, error) {
	const q = `
	SELECT user_id, total_amount, created_at, updated_at
	FROM carts
	WHERE user_id = $1`

	var c Cart
	if err := sqlx.GetContext(ctx, db, &c, q, userID); err != nil {
		return Cart{}, fmt.Errorf("selecting cart of user[%s]: %w", userID, err)
	}

	lines, err := FetchLines(ctx, db, userID)
	if err != nil {
		return Cart{}, err
	}
	c.Lines = lines

	return c, nil
}

// FetchLines returns the lines of userID's cart ordered by product id.
func FetchLines(ctx context.Context, db sqlx.QueryerContext, userID string) ([]Line, error) {
	const q = `
	SELECT user_id, product_id, quantity, created_at, updated_at
	FROM cart_items
	WHERE user_id = $1
	ORDER BY product_id`

	lines := []Line{}
	if err := sqlx.SelectContext(ctx, db, &lines, q, userID); err != nil {
		return nil, fmt.Errorf("selecting cart lines of user[%s]: %w", userID, err)
	}

	return lines, nil
}

// Lock holds userID's cart row until the transaction ends, so two
// checkouts of the same cart run one after the other. A missing cart is
// not an error.
func Lock(ctx context.Context, db sqlx.QueryerContext, userID string) error {
	const q = `SELECT user_id FROM carts WHERE user_id = $1 FOR UPDATE`

	var id string
	if err := sqlx.GetContext(ctx, db, &id, q, userID); err != nil && !errors.Is(err, database.ErrDBNotFound) {
		return fmt.Errorf("locking cart of user[%s]: %w", userID, err)
	}
	return nil
}

func upsertLine(ctx context.Context, db sqlx.ExtContext, l Line) error {
	const q = `
	INSERT INTO cart_items
		(user_id, product_id, quantity, created_at, updated_at)
	VALUES
		(:user_id, :product_id, :quantity, :created_at, :updated_at)
	ON CONFLICT (user_id, product_id) DO UPDATE SET
		quantity = cart_items.quantity + EXCLUDED.quantity,
		updated_at = EXCLUDED.updated_at`

	if _, err := sqlx.NamedExecContext(ctx, db, q, l); err != nil {
		return fmt.Errorf("upserting line of product[%s]: %w", l.ProductID, database.Translate(err))
	}
	return nil
}

func updateLine(ctx context.Context, db sqlx.ExtContext, userID, productID string, qty int, now time.Time) error {
	const q = `
	UPDATE cart_items SET
		quantity = $1,
		updated_at = $2
	WHERE user_id = $3 AND product_id = $4`

	res, err := db.ExecContext(ctx, q, qty, now, userID, productID)
	if err != nil {
		return fmt.Errorf("updating line of product[%s]: %w", productID, database.Translate(err))
	}
	if err := database.ExpectAffected(res); err != nil {
		return fmt.Errorf("product[%s]: %w", productID, ErrLineNotFound)
	}
	return nil
}

func deleteLine(ctx context.Context, db sqlx.ExtContext, userID, productID string) error {
	const q = `DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2`

	res, err := db.ExecContext(ctx, q, userID, productID)
	if err != nil {
		return fmt.Errorf("deleting line of product[%s]: %w", productID, err)
	}
	if err := database.ExpectAffected(res); err != nil {
		return fmt.Errorf("product[%s]: %w", productID, ErrLineNotFound)
	}
	return nil
}

// DeleteLines empties userID's cart. It does not touch the cached total,
// callers follow up with RefreshTotal.
func DeleteLines(ctx context.Context, db sqlx.ExtContext, userID string) error {
	const q = `DELETE FROM cart_items WHERE user_id = $1`

	if _, err := db.ExecContext(ctx, q, userID); err != nil {
		return fmt.Errorf("deleting lines of user[%s]: %w", userID, err)
	}
	return nil
}

// RefreshTotal recomputes the advisory total from current catalog prices.
func RefreshTotal(ctx context.Context, db sqlx.ExtContext, userID string, now time.Time) error {
	const q = `
	UPDATE carts SET
		total_amount = COALESCE((
			SELECT SUM(ci.quantity * p.price)
			FROM cart_items ci
			JOIN products p ON p.product_id = ci.product_id
			WHERE ci.user_id = $1
		), 0),
		updated_at = $2
	WHERE user_id = $1`

	if _, err := db.ExecContext(ctx, q, userID, now); err != nil {
		return fmt.Errorf("refreshing total of user[%s]: %w", userID, err)
	}
	return nil
}
