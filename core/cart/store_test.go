package cart

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/irsalhamdi/e-commerce-shop/core/product"
	"github.com/irsalhamdi/e-commerce-shop/database/dbtest"
	"github.com/irsalhamdi/e-commerce-shop/validate"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedUser(t *testing.T, db *sqlx.DB) string {
	t.Helper()

	id := validate.GenerateID()
	const q = `
	INSERT INTO users (user_id, name, email, role, password_hash, created_at, updated_at)
	VALUES ($1, 'Shopper', $2, 'CUSTOMER', '\x00', NOW(), NOW())`
	_, err := db.Exec(q, id, id+"@example.com")
	require.NoError(t, err)

	return id
}

func seedProduct(t *testing.T, db *sqlx.DB, price string, stock int) product.Product {
	t.Helper()

	now := time.Now().UTC()
	p := product.Product{
		ID:            validate.GenerateID(),
		Name:          "Product " + price,
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, product.Create(context.Background(), db, p))

	return p
}

func TestStore(t *testing.T) {
	db := dbtest.NewUnit(t, "cart_test")

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	log := logrus.New()
	log.SetOutput(io.Discard)

	s := NewStore(db, NewCache(client, time.Minute, log), log)
	ctx := context.Background()

	userID := seedUser(t, db)
	x := seedProduct(t, db, "10.00", 5)
	y := seedProduct(t, db, "5.50", 1)

	t.Run("get creates an empty cart", func(t *testing.T) {
		c, err := s.Get(ctx, userID)
		require.NoError(t, err)
		assert.Empty(t, c.Lines)
		assert.True(t, c.TotalAmount.IsZero())

		again, err := s.Get(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, c.CreatedAt.Unix(), again.CreatedAt.Unix())
	})

	t.Run("add increments existing lines", func(t *testing.T) {
		_, err := s.AddOrIncrement(ctx, userID, x.ID, 1)
		require.NoError(t, err)
		_, err = s.AddOrIncrement(ctx, userID, x.ID, 1)
		require.NoError(t, err)
		c, err := s.AddOrIncrement(ctx, userID, y.ID, 1)
		require.NoError(t, err)

		require.Len(t, c.Lines, 2)
		for _, l := range c.Lines {
			if l.ProductID == x.ID {
				assert.Equal(t, 2, l.Quantity)
			}
		}
		assert.True(t, decimal.RequireFromString("25.50").Equal(c.TotalAmount), "total %s", c.TotalAmount)
	})

	t.Run("mutations evict the cache", func(t *testing.T) {
		_, err := s.Get(ctx, userID)
		require.NoError(t, err)
		assert.True(t, mr.Exists("cart:"+userID))

		_, err = s.SetQuantity(ctx, userID, x.ID, 3)
		require.NoError(t, err)
		assert.False(t, mr.Exists("cart:"+userID))

		c, err := s.Get(ctx, userID)
		require.NoError(t, err)
		assert.True(t, decimal.RequireFromString("35.50").Equal(c.TotalAmount), "total %s", c.TotalAmount)
	})

	t.Run("validation", func(t *testing.T) {
		_, err := s.AddOrIncrement(ctx, userID, x.ID, 0)
		assert.True(t, errors.Is(err, ErrInvalidQuantity))

		_, err = s.AddOrIncrement(ctx, userID, validate.GenerateID(), 1)
		assert.True(t, errors.Is(err, ErrProductNotFound))

		_, err = s.Remove(ctx, userID, validate.GenerateID())
		assert.True(t, errors.Is(err, ErrLineNotFound))

		_, err = s.SetQuantity(ctx, userID, validate.GenerateID(), 2)
		assert.True(t, errors.Is(err, ErrLineNotFound))
	})

	t.Run("set to zero removes", func(t *testing.T) {
		c, err := s.SetQuantity(ctx, userID, y.ID, 0)
		require.NoError(t, err)
		require.Len(t, c.Lines, 1)
		assert.Equal(t, x.ID, c.Lines[0].ProductID)
	})

	t.Run("clear", func(t *testing.T) {
		c, err := s.Clear(ctx, userID)
		require.NoError(t, err)
		assert.Empty(t, c.Lines)
		assert.True(t, c.TotalAmount.IsZero())
	})
}
