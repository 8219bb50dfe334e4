package checkout

import (
	"context"
	"fmt"
	"sync"

	"github.com/irsalhamdi/e-commerce-shop/core/cart"
	"github.com/irsalhamdi/e-commerce-shop/core/inventory"
	"github.com/irsalhamdi/e-commerce-shop/core/order"
	"github.com/irsalhamdi/e-commerce-shop/core/product"
)

// memStore is an in-memory Store. Units run one at a time and a failed
// unit restores the snapshot taken when it started.
type memStore struct {
	mu       sync.Mutex
	products map[string]product.Product
	stock    map[string]int
	carts    map[string][]cart.Line
	orders   map[string]order.Order
	txns     []order.Transaction
	events   []string

	released       []string
	createOrderErr error
}

func newMemStore() *memStore {
	return &memStore{
		products: make(map[string]product.Product),
		stock:    make(map[string]int),
		carts:    make(map[string][]cart.Line),
		orders:   make(map[string]order.Order),
	}
}

type snapshot struct {
	stock  map[string]int
	carts  map[string][]cart.Line
	orders map[string]order.Order
	txns   []order.Transaction
	events []string
}

func (s *memStore) snapshot() snapshot {
	snap := snapshot{
		stock:  make(map[string]int, len(s.stock)),
		carts:  make(map[string][]cart.Line, len(s.carts)),
		orders: make(map[string]order.Order, len(s.orders)),
		txns:   append([]order.Transaction(nil), s.txns...),
		events: append([]string(nil), s.events...),
	}
	for k, v := range s.stock {
		snap.stock[k] = v
	}
	for k, v := range s.carts {
		snap.carts[k] = append([]cart.Line(nil), v...)
	}
	for k, v := range s.orders {
		snap.orders[k] = v
	}
	return snap
}

func (s *memStore) restore(snap snapshot) {
	s.stock = snap.stock
	s.carts = snap.carts
	s.orders = snap.orders
	s.txns = snap.txns
	s.events = snap.events
}

func (s *memStore) addProduct(id, price string, stock int) {
	s.products[id] = product.Product{ID: id, Name: "Product " + id, Price: dec(price), StockQuantity: stock}
	s.stock[id] = stock
}

func (s *memStore) addLine(userID, productID string, qty int) {
	s.carts[userID] = append(s.carts[userID], cart.Line{UserID: userID, ProductID: productID, Quantity: qty})
}

func (s *memStore) stockOf(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stock[id]
}

func (s *memStore) cartOf(userID string) []cart.Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.carts[userID]
}

func (s *memStore) Order(ctx context.Context, id string) (order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ord, ok := s.orders[id]
	if !ok {
		return order.Order{}, fmt.Errorf("order[%s]: %w", id, ErrOrderNotFound)
	}
	return ord, nil
}

func (s *memStore) Atomic(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(memTx{s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type memTx struct {
	s *memStore
}

func (t memTx) CartLines(userID string) ([]cart.Line, error) {
	return append([]cart.Line(nil), t.s.carts[userID]...), nil
}

func (t memTx) ClearCart(userID string) error {
	delete(t.s.carts, userID)
	return nil
}

func (t memTx) Products(ids []string) (map[string]product.Product, error) {
	out := make(map[string]product.Product, len(ids))
	for _, id := range ids {
		if p, ok := t.s.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (t memTx) Reserve(productID string, qty int) error {
	if t.s.stock[productID] < qty {
		return fmt.Errorf("product[%s]: %w", productID, inventory.ErrInsufficientStock)
	}
	t.s.stock[productID] -= qty
	return nil
}

func (t memTx) Release(productID string, qty int) error {
	t.s.stock[productID] += qty
	t.s.released = append(t.s.released, productID)
	return nil
}

func (t memTx) CreateOrder(ord order.Order) error {
	if t.s.createOrderErr != nil {
		return t.s.createOrderErr
	}
	t.s.orders[ord.ID] = ord
	return nil
}

func (t memTx) LockOrder(id string) (order.Order, error) {
	ord, ok := t.s.orders[id]
	if !ok {
		return order.Order{}, fmt.Errorf("order[%s]: %w", id, ErrOrderNotFound)
	}
	return ord, nil
}

func (t memTx) LockOrderByGateway(gatewayOrderID string) (order.Order, error) {
	for _, ord := range t.s.orders {
		if ord.GatewayOrderID != nil && *ord.GatewayOrderID == gatewayOrderID {
			return ord, nil
		}
	}
	return order.Order{}, fmt.Errorf("gateway order[%s]: %w", gatewayOrderID, ErrOrderNotFound)
}

func (t memTx) UpdateOrderStatus(id string, from, to order.Status) error {
	ord, ok := t.s.orders[id]
	if !ok || ord.Status != from || !from.CanTransitionTo(to) {
		return fmt.Errorf("order[%s] %s -> %s: %w", id, from, to, order.ErrInvalidState)
	}
	ord.Status = to
	t.s.orders[id] = ord
	return nil
}

func (t memTx) LinkGateway(id, gatewayOrderID string) error {
	ord, ok := t.s.orders[id]
	if !ok || ord.Status != order.PendingPayment {
		return fmt.Errorf("order[%s]: %w", id, order.ErrInvalidState)
	}
	if ord.GatewayOrderID != nil && *ord.GatewayOrderID != gatewayOrderID {
		return fmt.Errorf("order[%s] linked to %s: %w", id, *ord.GatewayOrderID, order.ErrInvalidState)
	}
	ord.GatewayOrderID = &gatewayOrderID
	t.s.orders[id] = ord
	return nil
}

func (t memTx) CreateTransaction(txn order.Transaction) error {
	t.s.txns = append(t.s.txns, txn)
	return nil
}

func (t memTx) RecordEvent(typ, aggregateID string, payload interface{}) error {
	t.s.events = append(t.s.events, typ)
	return nil
}
