package cart

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/irsalhamdi/e-commerce-shop/api/web"
	"github.com/irsalhamdi/e-commerce-shop/api/weberr"
	"github.com/irsalhamdi/e-commerce-shop/core/claims"
	"github.com/irsalhamdi/e-commerce-shop/validate"
)

func HandleShow(s *Store) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		c, err := s.Get(ctx, clm.UserID)
		if err != nil {
			return fmt.Errorf("fetching cart: %w", err)
		}

		return web.Respond(ctx, w, c, http.StatusOK)
	}
}

func HandleDelete(s *Store) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		if _, err := s.Clear(ctx, clm.UserID); err != nil {
			return fmt.Errorf("clearing cart: %w", err)
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

func HandleCreateItem(s *Store) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		var ln LineNew
		if err := web.Decode(w, r, &ln); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		c, err := s.AddOrIncrement(ctx, clm.UserID, ln.ProductID, ln.Quantity)
		if err != nil {
			return mapError(err, ln.ProductID)
		}

		return web.Respond(ctx, w, c, http.StatusOK)
	}
}

func HandleUpdateItem(s *Store) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		productID := web.Param(r, "product_id")
		if err := validate.CheckID(productID); err != nil {
			return weberr.BadRequest(fmt.Errorf("passed id is not valid: %w", err))
		}

		var lu LineUp
		if err := web.Decode(w, r, &lu); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		c, err := s.SetQuantity(ctx, clm.UserID, productID, lu.Quantity)
		if err != nil {
			return mapError(err, productID)
		}

		return web.Respond(ctx, w, c, http.StatusOK)
	}
}

func HandleDeleteItem(s *Store) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		productID := web.Param(r, "product_id")
		if err := validate.CheckID(productID); err != nil {
			return weberr.BadRequest(fmt.Errorf("passed id is not valid: %w", err))
		}

		if _, err := s.Remove(ctx, clm.UserID, productID); err != nil {
			return mapError(err, productID)
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

func mapError(err error, productID string) error {
	fields := weberr.WithFields(map[string]interface{}{"product_id": productID})

	switch {
	case errors.Is(err, ErrInvalidQuantity):
		return weberr.BadRequest(err, fields)
	case errors.Is(err, ErrLineNotFound), errors.Is(err, ErrProductNotFound):
		return weberr.NotFound(err, fields)
	default:
		return fmt.Errorf("updating cart: %w", err)
	}
}
