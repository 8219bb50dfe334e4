package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/irsalhamdi/e-commerce-shop/core/cart"
	"github.com/irsalhamdi/e-commerce-shop/core/events"
	"github.com/irsalhamdi/e-commerce-shop/core/inventory"
	"github.com/irsalhamdi/e-commerce-shop/core/order"
	"github.com/irsalhamdi/e-commerce-shop/core/product"
	"github.com/irsalhamdi/e-commerce-shop/database"
	"github.com/jmoiron/sqlx"
)

// PGStore runs checkout units as Postgres transactions.
type PGStore struct {
	db    *sqlx.DB
	carts *cart.Store
}

// NewPGStore returns a PGStore. carts is used to evict cached carts once a
// checkout that emptied them commits; it may be nil.
func NewPGStore(db *sqlx.DB, carts *cart.Store) *PGStore {
	return &PGStore{db: db, carts: carts}
}

func (s *PGStore) Order(ctx context.Context, id string) (order.Order, error) {
	ord, err := order.Fetch(ctx, s.db, id)
	if err != nil {
		return order.Order{}, notFound(err, id)
	}
	return ord, nil
}

func (s *PGStore) Atomic(ctx context.Context, fn func(tx Tx) error) error {
	t := &pgTx{ctx: ctx}

	err := database.Transaction(ctx, s.db, func(tx sqlx.ExtContext) error {
		t.db = tx
		return fn(t)
	})
	if err != nil {
		return err
	}

	if s.carts != nil {
		for _, userID := range t.cleared {
			s.carts.Evict(ctx, userID)
		}
	}

	return nil
}

type pgTx struct {
	ctx     context.Context
	db      sqlx.ExtContext
	cleared []string
}

func (t *pgTx) now() time.Time { return time.Now().UTC() }

func (t *pgTx) CartLines(userID string) ([]cart.Line, error) {
	if err := cart.Lock(t.ctx, t.db, userID); err != nil {
		return nil, err
	}
	return cart.FetchLines(t.ctx, t.db, userID)
}

func (t *pgTx) ClearCart(userID string) error {
	if err := cart.DeleteLines(t.ctx, t.db, userID); err != nil {
		return err
	}
	if err := cart.RefreshTotal(t.ctx, t.db, userID, t.now()); err != nil {
		return err
	}
	t.cleared = append(t.cleared, userID)
	return nil
}

func (t *pgTx) Products(ids []string) (map[string]product.Product, error) {
	return product.FetchMany(t.ctx, t.db, ids)
}

func (t *pgTx) Reserve(productID string, qty int) error {
	_, err := inventory.Reserve(t.ctx, t.db, productID, qty)
	return err
}

func (t *pgTx) Release(productID string, qty int) error {
	return inventory.Release(t.ctx, t.db, productID, qty)
}

func (t *pgTx) CreateOrder(ord order.Order) error {
	return order.Create(t.ctx, t.db, ord)
}

func (t *pgTx) LockOrder(id string) (order.Order, error) {
	ord, err := order.FetchForUpdate(t.ctx, t.db, id)
	if err != nil {
		return order.Order{}, notFound(err, id)
	}
	return ord, nil
}

func (t *pgTx) LockOrderByGateway(gatewayOrderID string) (order.Order, error) {
	ord, err := order.FetchByGatewayOrderForUpdate(t.ctx, t.db, gatewayOrderID)
	if err != nil {
		return order.Order{}, notFound(err, "gateway:"+gatewayOrderID)
	}
	return ord, nil
}

func (t *pgTx) UpdateOrderStatus(id string, from, to order.Status) error {
	return order.UpdateStatus(t.ctx, t.db, id, from, to, t.now())
}

func (t *pgTx) LinkGateway(id, gatewayOrderID string) error {
	return order.LinkGateway(t.ctx, t.db, id, gatewayOrderID, t.now())
}

func (t *pgTx) CreateTransaction(txn order.Transaction) error {
	return order.CreateTransaction(t.ctx, t.db, txn)
}

func (t *pgTx) RecordEvent(typ, aggregateID string, payload interface{}) error {
	_, err := events.Record(t.ctx, t.db, typ, aggregateID, payload, t.now())
	return err
}

func notFound(err error, id string) error {
	if errors.Is(err, database.ErrDBNotFound) {
		return fmt.Errorf("order[%s]: %w", id, ErrOrderNotFound)
	}
	return err
}
