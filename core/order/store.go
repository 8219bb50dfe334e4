package order

import (
	"context"
	"fmt"
	"time"

	"github.com/irsalhamdi/e-commerce-shop/database"
	"github.com/jmoiron/sqlx"
)

const orderColumns = `order_id, reference, user_id, status, total_amount, currency, shipping_address,
	gateway_order_id, order_date, updated_at`

// Create inserts ord and its lines. Run it inside a transaction.
func Create(ctx context.Context, db sqlx.ExtContext, ord Order) error {
	const q = `
	INSERT INTO orders
		(order_id, reference, user_id, status, total_amount, currency, shipping_address, gateway_order_id, order_date, updated_at)
	VALUES
		(:order_id, :reference, :user_id, :status, :total_amount, :currency, :shipping_address, :gateway_order_id, :order_date, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, ord); err != nil {
		return fmt.Errorf("inserting order[%s]: %w", ord.ID, database.Translate(err))
	}

	for _, l := range ord.Lines {
		l.OrderID = ord.ID
		if err := createLine(ctx, db, l); err != nil {
			return err
		}
	}

	return nil
}

func createLine(ctx context.Context, db sqlx.ExtContext, l Line) error {
	const q = `
	INSERT INTO order_items
		(order_id, product_id, quantity, price_at_order)
	VALUES
		(:order_id, :product_id, :quantity, :price_at_order)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, l); err != nil {
		return fmt.Errorf("inserting line of product[%s]: %w", l.ProductID, database.Translate(err))
	}
	return nil
}

func Fetch(ctx context.Context, db sqlx.QueryerContext, id string) (Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE order_id = $1`
	return fetchOne(ctx, db, q, id)
}

// FetchForUpdate is Fetch holding the row lock until the transaction ends,
// which serializes concurrent finalizations of the same order.
func FetchForUpdate(ctx context.Context, db sqlx.QueryerContext, id string) (Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE order_id = $1 FOR UPDATE`
	return fetchOne(ctx, db, q, id)
}

func FetchByGatewayOrderForUpdate(ctx context.Context, db sqlx.QueryerContext, gatewayOrderID string) (Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE gateway_order_id = $1 FOR UPDATE`
	return fetchOne(ctx, db, q, gatewayOrderID)
}

func fetchOne(ctx context.Context, db sqlx.QueryerContext, q string, arg string) (Order, error) {
	var ord Order
	if err := sqlx.GetContext(ctx, db, &ord, q, arg); err != nil {
		return Order{}, fmt.Errorf("selecting order[%s]: %w", arg, err)
	}

	lines, err := FetchLines(ctx, db, ord.ID)
	if err != nil {
		return Order{}, err
	}
	ord.Lines = lines

	return ord, nil
}

func FetchLines(ctx context.Context, db sqlx.QueryerContext, orderID string) ([]Line, error) {
	const q = `
	SELECT order_id, product_id, quantity, price_at_order
	FROM order_items
	WHERE order_id = $1
	ORDER BY product_id`

	lines := []Line{}
	if err := sqlx.SelectContext(ctx, db, &lines, q, orderID); err != nil {
		return nil, fmt.Errorf("selecting lines of order[%s]: %w", orderID, err)
	}
	return lines, nil
}

// ListByUser returns the orders of userID, newest first, without lines.
func ListByUser(ctx context.Context, db sqlx.QueryerContext, userID string, limit, offset int) ([]Order, error) {
	q := `
	SELECT ` + orderColumns + `
	FROM orders
	WHERE user_id = $1
	ORDER BY order_date DESC, order_id
	LIMIT $2 OFFSET $3`

	ords := []Order{}
	if err := sqlx.SelectContext(ctx, db, &ords, q, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("selecting orders of user[%s]: %w", userID, err)
	}
	return ords, nil
}

// List returns every order, optionally only those in status.
func List(ctx context.Context, db sqlx.QueryerContext, status Status, limit, offset int) ([]Order, error) {
	q := `
	SELECT ` + orderColumns + `
	FROM orders
	WHERE ($1::text = '' OR status = $1)
	ORDER BY order_date DESC, order_id
	LIMIT $2 OFFSET $3`

	ords := []Order{}
	if err := sqlx.SelectContext(ctx, db, &ords, q, string(status), limit, offset); err != nil {
		return nil, fmt.Errorf("selecting orders: %w", err)
	}
	return ords, nil
}

// UpdateStatus moves the order from one status to another. It fails with
// ErrInvalidState when the order is not in from anymore.
func UpdateStatus(ctx context.Context, db sqlx.ExtContext, id string, from, to Status, now time.Time) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("order[%s] %s -> %s: %w", id, from, to, ErrInvalidState)
	}

	const q = `
	UPDATE orders SET
		status = $1,
		updated_at = $2
	WHERE order_id = $3 AND status = $4`

	res, err := db.ExecContext(ctx, q, to, now, id, from)
	if err != nil {
		return fmt.Errorf("updating status of order[%s]: %w", id, err)
	}
	if err := database.ExpectAffected(res); err != nil {
		return fmt.Errorf("order[%s] no longer %s: %w", id, from, ErrInvalidState)
	}
	return nil
}

// LinkGateway records the gateway's id for the order's payment. An order
// already linked to a different gateway order is never relinked.
func LinkGateway(ctx context.Context, db sqlx.ExtContext, id, gatewayOrderID string, now time.Time) error {
	const q = `
	UPDATE orders SET
		gateway_order_id = $1,
		updated_at = $2
	WHERE order_id = $3 AND status = $4
		AND (gateway_order_id IS NULL OR gateway_order_id = $1)`

	res, err := db.ExecContext(ctx, q, gatewayOrderID, now, id, PendingPayment)
	if err != nil {
		return fmt.Errorf("linking order[%s] to gateway order[%s]: %w", id, gatewayOrderID, database.Translate(err))
	}
	if err := database.ExpectAffected(res); err != nil {
		return fmt.Errorf("order[%s] no longer %s or linked to another gateway order: %w", id, PendingPayment, ErrInvalidState)
	}
	return nil
}

func CreateTransaction(ctx context.Context, db sqlx.ExtContext, txn Transaction) error {
	const q = `
	INSERT INTO transactions
		(transaction_id, order_id, gateway_order_id, gateway_payment_id, amount_paid, currency, status, signature, created_at)
	VALUES
		(:transaction_id, :order_id, :gateway_order_id, :gateway_payment_id, :amount_paid, :currency, :status, :signature, :created_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, txn); err != nil {
		return fmt.Errorf("inserting transaction of order[%s]: %w", txn.OrderID, database.Translate(err))
	}
	return nil
}

func FetchTransaction(ctx context.Context, db sqlx.QueryerContext, orderID string) (Transaction, error) {
	const q = `
	SELECT transaction_id, order_id, gateway_order_id, gateway_payment_id, amount_paid, currency, status, signature, created_at
	FROM transactions
	WHERE order_id = $1`

	var txn Transaction
	if err := sqlx.GetContext(ctx, db, &txn, q, orderID); err != nil {
		return Transaction{}, fmt.Errorf("selecting transaction of order[%s]: %w", orderID, err)
	}
	return txn, nil
}
