package user

import (
	"context"
	"fmt"

	"github.com/irsalhamdi/e-commerce-shop/database"
	"github.com/jmoiron/sqlx"
)

func Create(ctx context.Context, db sqlx.ExtContext, usr User) error {
	const q = `
	INSERT INTO users
		(user_id, name, email, role, password_hash, created_at, updated_at)
	VALUES
		(:user_id, :name, :email, :role, :password_hash, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, usr); err != nil {
		return fmt.Errorf("inserting user: %w", database.Translate(err))
	}

	return nil
}

func Fetch(ctx context.Context, db sqlx.QueryerContext, id string) (User, error) {
	const q = `
	SELECT user_id, name, email, role, password_hash, created_at, updated_at
	FROM users
	WHERE user_id = $1`

	var usr User
	if err := sqlx.GetContext(ctx, db, &usr, q, id); err != nil {
		return User{}, fmt.Errorf("selecting user[%s]: %w", id, err)
	}

	return usr, nil
}

func FetchByEmail(ctx context.Context, db sqlx.QueryerContext, email string) (User, error) {
	const q = `
	SELECT user_id, name, email, role, password_hash, created_at, updated_at
	FROM users
	WHERE email = $1`

	var usr User
	if err := sqlx.GetContext(ctx, db, &usr, q, email); err != nil {
		return User{}, fmt.Errorf("selecting user by email: %w", err)
	}

	return usr, nil
}
