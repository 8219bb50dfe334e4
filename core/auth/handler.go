package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/irsalhamdi/e-commerce-shop/api/web"
	"github.com/irsalhamdi/e-commerce-shop/api/weberr"
	"github.com/irsalhamdi/e-commerce-shop/core/claims"
	"github.com/irsalhamdi/e-commerce-shop/core/user"
	"github.com/irsalhamdi/e-commerce-shop/database"
	"github.com/irsalhamdi/e-commerce-shop/validate"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid email or password")

func HandleSignup(db *sqlx.DB, session *scs.SessionManager) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var in user.UserSignup
		if err := web.Decode(w, r, &in); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		usr, err := register(ctx, db, in.Name, in.Email, in.Password, claims.RoleCustomer)
		if err != nil {
			if errors.Is(err, database.ErrDBDuplicatedEntry) {
				return weberr.Conflict(errors.New("email already in use"))
			}
			return err
		}

		if err := login(ctx, session, usr); err != nil {
			return err
		}

		return web.Respond(ctx, w, usr, http.StatusCreated)
	}
}

func HandleLogin(db *sqlx.DB, session *scs.SessionManager) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var in user.UserLogin
		if err := web.Decode(w, r, &in); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		usr, err := user.FetchByEmail(ctx, db, normalize(in.Email))
		if err != nil {
			if errors.Is(err, database.ErrDBNotFound) {
				return weberr.NotAuthorized(ErrInvalidCredentials)
			}
			return fmt.Errorf("fetching user: %w", err)
		}

		if err := bcrypt.CompareHashAndPassword(usr.PasswordHash, []byte(in.Password)); err != nil {
			return weberr.NotAuthorized(ErrInvalidCredentials)
		}

		if err := login(ctx, session, usr); err != nil {
			return err
		}

		return web.Respond(ctx, w, usr, http.StatusOK)
	}
}

func HandleLogout(session *scs.SessionManager) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		if err := session.Destroy(ctx); err != nil {
			return fmt.Errorf("destroying session: %w", err)
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

// SeedAdmin makes sure an administrator with email exists. An existing
// account is left untouched.
func SeedAdmin(ctx context.Context, db *sqlx.DB, email, password string) (user.User, error) {
	usr, err := user.FetchByEmail(ctx, db, normalize(email))
	if err == nil {
		return usr, nil
	}
	if !errors.Is(err, database.ErrDBNotFound) {
		return user.User{}, err
	}

	return register(ctx, db, "Administrator", email, password, claims.RoleAdmin)
}

func register(ctx context.Context, db sqlx.ExtContext, name, email, password, role string) (user.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return user.User{}, fmt.Errorf("hashing password: %w", err)
	}

	now := time.Now().UTC()
	usr := user.User{
		ID:           validate.GenerateID(),
		Name:         name,
		Email:        normalize(email),
		Role:         role,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := user.Create(ctx, db, usr); err != nil {
		return user.User{}, fmt.Errorf("creating user: %w", err)
	}

	return usr, nil
}

func login(ctx context.Context, session *scs.SessionManager, usr user.User) error {
	if err := session.RenewToken(ctx); err != nil {
		return fmt.Errorf("renewing session token: %w", err)
	}

	session.Put(ctx, userIDKey, usr.ID)
	session.Put(ctx, roleKey, usr.Role)
	return nil
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
