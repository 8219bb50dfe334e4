package cart

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrLineNotFound    = errors.New("cart line not found")
	ErrProductNotFound = errors.New("product not found")
	ErrInvalidQuantity = errors.New("quantity must be positive")
)

// Cart belongs to exactly one user. TotalAmount is recomputed on every
// mutation from current prices and is advisory only; checkout never reads it.
type Cart struct {
	UserID      string          `json:"userId" db:"user_id"`
	TotalAmount decimal.Decimal `json:"totalAmount" db:"total_amount"`
	CreatedAt   time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time       `json:"updatedAt" db:"updated_at"`
	Lines       []Line          `json:"lines" db:"-"`
}

type Line struct {
	UserID    string    `json:"-" db:"user_id"`
	ProductID string    `json:"productId" db:"product_id"`
	Quantity  int       `json:"quantity" db:"quantity"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

type LineNew struct {
	ProductID string `json:"productId" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required"`
}

// LineUp sets the quantity of a line; zero or less removes it.
type LineUp struct {
	Quantity int `json:"quantity"`
}
