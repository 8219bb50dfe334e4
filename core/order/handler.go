package order

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/irsalhamdi/e-commerce-shop/api/web"
	"github.com/irsalhamdi/e-commerce-shop/api/weberr"
	"github.com/irsalhamdi/e-commerce-shop/core/claims"
	"github.com/irsalhamdi/e-commerce-shop/database"
	"github.com/irsalhamdi/e-commerce-shop/validate"
	"github.com/jmoiron/sqlx"
)

// HandleListOwned returns the order history of the caller.
func HandleListOwned(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		limit, offset, err := web.Pagination(r)
		if err != nil {
			return weberr.BadRequest(err)
		}

		ords, err := ListByUser(ctx, db, clm.UserID, limit, offset)
		if err != nil {
			return fmt.Errorf("listing orders: %w", err)
		}

		return web.Respond(ctx, w, ords, http.StatusOK)
	}
}

func HandleShow(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		ord, err := fetchAccessible(ctx, db, r)
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, ord, http.StatusOK)
	}
}

func HandleShowTransaction(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		ord, err := fetchAccessible(ctx, db, r)
		if err != nil {
			return err
		}

		txn, err := FetchTransaction(ctx, db, ord.ID)
		if err != nil {
			if errors.Is(err, database.ErrDBNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching transaction: %w", err)
		}

		return web.Respond(ctx, w, txn, http.StatusOK)
	}
}

// HandleList lists all orders, filtered by the status query parameter.
func HandleList(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var status Status
		if s := r.URL.Query().Get("status"); s != "" {
			var err error
			if status, err = ParseStatus(s); err != nil {
				return weberr.BadRequest(fmt.Errorf("status %q: %w", s, err))
			}
		}

		limit, offset, err := web.Pagination(r)
		if err != nil {
			return weberr.BadRequest(err)
		}

		ords, err := List(ctx, db, status, limit, offset)
		if err != nil {
			return fmt.Errorf("listing orders: %w", err)
		}

		return web.Respond(ctx, w, ords, http.StatusOK)
	}
}

// fetchAccessible loads the order named in the path if the caller owns it
// or is an admin. Other users get a 404 so order ids cannot be probed.
func fetchAccessible(ctx context.Context, db *sqlx.DB, r *http.Request) (Order, error) {
	clm, err := claims.Get(ctx)
	if err != nil {
		return Order{}, weberr.NotAuthorized(errors.New("user not authenticated"))
	}

	id := web.Param(r, "id")
	if err := validate.CheckID(id); err != nil {
		return Order{}, weberr.BadRequest(fmt.Errorf("passed id is not valid: %w", err))
	}

	ord, err := Fetch(ctx, db, id)
	if err != nil {
		if errors.Is(err, database.ErrDBNotFound) {
			return Order{}, weberr.NotFound(err)
		}
		return Order{}, fmt.Errorf("fetching order: %w", err)
	}

	if !clm.CanAccess(ord.UserID) {
		return Order{}, weberr.NotFound(fmt.Errorf("order[%s] not owned by user[%s]", id, clm.UserID))
	}

	return ord, nil
}
