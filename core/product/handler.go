package product

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/irsalhamdi/e-commerce-shop/api/web"
	"github.com/irsalhamdi/e-commerce-shop/api/weberr"
	"github.com/irsalhamdi/e-commerce-shop/database"
	"github.com/irsalhamdi/e-commerce-shop/validate"
	"github.com/jmoiron/sqlx"
)

func HandleShow(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.BadRequest(fmt.Errorf("passed id is not valid: %w", err))
		}

		prod, err := Fetch(ctx, db, id)
		if err != nil {
			if errors.Is(err, database.ErrDBNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching product: %w", err)
		}

		return web.Respond(ctx, w, prod, http.StatusOK)
	}
}

func HandleList(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		limit, offset, err := web.Pagination(r)
		if err != nil {
			return weberr.BadRequest(err)
		}

		prods, err := List(ctx, db, limit, offset)
		if err != nil {
			return fmt.Errorf("listing products: %w", err)
		}

		return web.Respond(ctx, w, prods, http.StatusOK)
	}
}

func HandleCreate(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var pn ProductNew
		if err := web.Decode(w, r, &pn); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		now := time.Now().UTC()
		prod := Product{
			ID:            validate.GenerateID(),
			Name:          pn.Name,
			Description:   pn.Description,
			Price:         pn.Price,
			StockQuantity: pn.StockQuantity,
			CreatedAt:     now,
			UpdatedAt:     now,
		}

		if err := Create(ctx, db, prod); err != nil {
			if errors.Is(err, database.ErrDBCheckViolation) {
				return weberr.BadRequest(err)
			}
			return fmt.Errorf("creating product: %w", err)
		}

		return web.Respond(ctx, w, prod, http.StatusCreated)
	}
}
