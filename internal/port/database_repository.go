package port

import (
	"context"
	"time"

	"github.com/sammieeblaque/breet-shopping-cart-test/internal/core/domain"
)

type ProductRepository interface {
	CreateProduct(ctx context.Context, product domain.Product) error

	// GetProduct returns the product by ID, or nil if absent.
	GetProduct(ctx context.Context, id string) (*domain.Product, error)

	// GetProductByName matches name case-insensitively, nil if absent.
	GetProductByName(ctx context.Context, name string) (*domain.Product, error)

	// ListProducts returns one page of products plus the total count.
	ListProducts(ctx context.Context, offset, limit int, sortBy, order string) ([]domain.Product, int, error)

	// UpdateProduct reports false when no product matched.
	UpdateProduct(ctx context.Context, product domain.Product) (bool, error)

	// DeleteProduct reports false when no product matched.
	DeleteProduct(ctx context.Context, id string) (bool, error)

	// AdjustStock applies delta to the product's stock only if the result
	// stays non-negative, as a single conditional update. Returns false
	// when the guard rejects the change.
	AdjustStock(ctx context.Context, productID string, delta int) (bool, error)
}

type CartRepository interface {
	CreateCart(ctx context.Context, cart domain.Cart) error

	// GetOpenCart returns the user's unsettled cart, or nil if none.
	GetOpenCart(ctx context.Context, userID string) (*domain.Cart, error)

	// SaveCart replaces the cart's line items and total.
	SaveCart(ctx context.Context, cart domain.Cart) error

	// SettleCart marks an open cart settled exactly once, reporting false
	// when the cart does not exist or is already settled.
	SettleCart(ctx context.Context, cartID string, settledAt time.Time) (bool, error)

	// ListSettledCarts returns the user's settled carts, newest first.
	ListSettledCarts(ctx context.Context, userID string) ([]domain.Cart, error)
}

type UserRepository interface {
	CreateUser(ctx context.Context, user domain.User) error

	// GetUser returns the user by ID, or nil if absent.
	GetUser(ctx context.Context, id string) (*domain.User, error)

	// GetUserByEmail returns the user by email, or nil if absent.
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
}

// TransactionManager runs fn inside a storage transaction. Repository calls
// made with the context passed to fn join that transaction; returning an
// error rolls everything back.
type TransactionManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
