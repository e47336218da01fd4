package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sammieeblaque/breet-shopping-cart-test/internal/core/domain"
	"github.com/sammieeblaque/breet-shopping-cart-test/internal/obs"
	"github.com/sammieeblaque/breet-shopping-cart-test/internal/port"
)

// StockLedger is the slice of the product service the coordinator needs:
// authoritative reads plus the checked stock mutations.
type StockLedger interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	CheckStock(ctx context.Context, id string, quantity int) (bool, error)
	DecrementStock(ctx context.Context, id string, quantity int) (*domain.Product, error)
	IncrementStock(ctx context.Context, id string, quantity int) (*domain.Product, error)
}

// CartService coordinates cart mutations and checkout: per-user lock, then
// validate against the stock ledger, mutate the cart store, invalidate the
// cache, and release the lock on every exit path.
//
// Inside a locked critical section the open cart is always re-read from the
// authoritative store; the cache is consulted only on the plain read path.
type CartService struct {
	carts    port.CartRepository
	users    port.UserRepository
	stock    StockLedger
	strategy StockUpdateStrategy
	locks    port.LockRepository
	cache    port.CacheRepository
	lockTTL  time.Duration
	cacheTTL time.Duration
}

func NewCartService(
	carts port.CartRepository,
	users port.UserRepository,
	stock StockLedger,
	strategy StockUpdateStrategy,
	locks port.LockRepository,
	cache port.CacheRepository,
	lockTTL, cacheTTL time.Duration,
) *CartService {
	return &CartService{
		carts:    carts,
		users:    users,
		stock:    stock,
		strategy: strategy,
		locks:    locks,
		cache:    cache,
		lockTTL:  lockTTL,
		cacheTTL: cacheTTL,
	}
}

func (s *CartService) cartLockKey(userID string) string     { return "cart:" + userID }
func (s *CartService) checkoutLockKey(userID string) string { return "checkout:" + userID }

func (s *CartService) acquire(ctx context.Context, key string) (string, error) {
	token, err := s.locks.AcquireLock(ctx, key, s.lockTTL)
	if err != nil {
		return "", fmt.Errorf("acquire %s: %w", key, err)
	}
	if token == "" {
		obs.LockContentionTotal.Inc()
		return "", fmt.Errorf("%s: %w", key, ErrLockUnavailable)
	}
	return token, nil
}

// GetOrCreateCart returns the user's open cart, creating it lazily on first
// access. The unlocked read path may serve from cache.
func (s *CartService) GetOrCreateCart(ctx context.Context, userID string) (*domain.Cart, error) {
	var cached domain.Cart
	if cacheGetJSON(ctx, s.cache, cartCacheKey(userID), &cached) {
		return &cached, nil
	}

	cart, err := s.carts.GetOpenCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return s.createCartLocked(ctx, userID)
	}

	cacheSetJSON(ctx, s.cache, cartCacheKey(userID), cart, s.cacheTTL)
	return cart, nil
}

// createCartLocked creates the user's open cart under the cart lock, with a
// re-check so two concurrent first-touches cannot create two open carts.
func (s *CartService) createCartLocked(ctx context.Context, userID string) (*domain.Cart, error) {
	token, err := s.acquire(ctx, s.cartLockKey(userID))
	if err != nil {
		return nil, err
	}
	defer releaseLock(ctx, s.locks, s.cartLockKey(userID), token)

	cart, err := s.carts.GetOpenCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart != nil {
		return cart, nil
	}

	return s.createCart(ctx, userID)
}

// createCart assumes the caller holds the user's cart lock.
func (s *CartService) createCart(ctx context.Context, userID string) (*domain.Cart, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}

	now := time.Now()
	cart := domain.Cart{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.carts.CreateCart(ctx, cart); err != nil {
		return nil, fmt.Errorf("create cart: %w", err)
	}
	return &cart, nil
}

func (s *CartService) AddToCart(ctx context.Context, userID, productID string, quantity int) (*domain.Cart, error) {
	token, err := s.acquire(ctx, s.cartLockKey(userID))
	if err != nil {
		return nil, err
	}
	defer releaseLock(ctx, s.locks, s.cartLockKey(userID), token)

	product, err := s.stock.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, fmt.Errorf("product %s: %w", productID, ErrNotFound)
	}

	cart, err := s.carts.GetOpenCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		if cart, err = s.createCart(ctx, userID); err != nil {
			return nil, err
		}
	}

	// Validate against the line's new total quantity, not just the delta.
	if idx := cart.FindItem(productID); idx >= 0 {
		newQuantity := cart.Items[idx].Quantity + quantity
		if newQuantity > product.Stock {
			return nil, fmt.Errorf("product %s: only %d in stock: %w", productID, product.Stock, ErrInsufficientStock)
		}
		cart.Items[idx].Quantity = newQuantity
	} else {
		if quantity > product.Stock {
			return nil, fmt.Errorf("product %s: only %d in stock: %w", productID, product.Stock, ErrInsufficientStock)
		}
		cart.Items = append(cart.Items, domain.CartItem{
			ProductID: productID,
			Quantity:  quantity,
			Price:     product.Price,
			Name:      product.Name,
		})
	}

	return s.saveAndInvalidate(ctx, cart)
}

func (s *CartService) UpdateItem(ctx context.Context, userID, productID string, quantity int) (*domain.Cart, error) {
	token, err := s.acquire(ctx, s.cartLockKey(userID))
	if err != nil {
		return nil, err
	}
	defer releaseLock(ctx, s.locks, s.cartLockKey(userID), token)

	product, err := s.stock.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, fmt.Errorf("product %s: %w", productID, ErrNotFound)
	}
	if quantity > product.Stock {
		return nil, fmt.Errorf("product %s: only %d in stock: %w", productID, product.Stock, ErrInsufficientStock)
	}

	cart, err := s.openCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	idx := cart.FindItem(productID)
	if idx < 0 {
		return nil, fmt.Errorf("product %s not in cart: %w", productID, ErrNotFound)
	}
	cart.Items[idx].Quantity = quantity

	return s.saveAndInvalidate(ctx, cart)
}

func (s *CartService) RemoveItem(ctx context.Context, userID, productID string) (*domain.Cart, error) {
	token, err := s.acquire(ctx, s.cartLockKey(userID))
	if err != nil {
		return nil, err
	}
	defer releaseLock(ctx, s.locks, s.cartLockKey(userID), token)

	cart, err := s.openCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	idx := cart.FindItem(productID)
	if idx < 0 {
		return nil, fmt.Errorf("product %s not in cart: %w", productID, ErrNotFound)
	}
	cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)

	return s.saveAndInvalidate(ctx, cart)
}

func (s *CartService) ClearCart(ctx context.Context, userID string) (*domain.Cart, error) {
	token, err := s.acquire(ctx, s.cartLockKey(userID))
	if err != nil {
		return nil, err
	}
	defer releaseLock(ctx, s.locks, s.cartLockKey(userID), token)

	cart, err := s.openCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	cart.Items = nil

	return s.saveAndInvalidate(ctx, cart)
}

// Checkout settles the user's open cart: under the checkout lock it
// validates every line item, then decrements stock for all of them inside
// one exclusive scope, then marks the cart settled. If anything fails after
// the first decrement, every applied decrement is compensated in reverse
// order before the error is surfaced.
func (s *CartService) Checkout(ctx context.Context, userID string) (*domain.Cart, error) {
	token, err := s.acquire(ctx, s.checkoutLockKey(userID))
	if err != nil {
		obs.CheckoutTotal.WithLabelValues("lock_unavailable").Inc()
		return nil, err
	}
	defer releaseLock(ctx, s.locks, s.checkoutLockKey(userID), token)

	cart, err := s.carts.GetOpenCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		obs.CheckoutTotal.WithLabelValues("not_found").Inc()
		return nil, fmt.Errorf("open cart for user %s: %w", userID, ErrNotFound)
	}
	if len(cart.Items) == 0 {
		obs.CheckoutTotal.WithLabelValues("empty").Inc()
		return nil, ErrEmptyCart
	}

	productIDs := make([]string, len(cart.Items))
	for i, item := range cart.Items {
		productIDs[i] = item.ProductID
	}

	err = s.strategy.WithExclusiveStockUpdate(ctx, productIDs, func(ctx context.Context) error {
		// First pass: validate every line before touching stock, so a
		// failure here leaves nothing to unwind.
		for _, item := range cart.Items {
			ok, err := s.stock.CheckStock(ctx, item.ProductID, item.Quantity)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("product %s: %w", item.ProductID, ErrInsufficientStock)
			}
		}

		// Second pass: commit the decrements, compensating on failure.
		var applied []domain.CartItem
		for _, item := range cart.Items {
			if _, err := s.stock.DecrementStock(ctx, item.ProductID, item.Quantity); err != nil {
				s.compensate(ctx, applied)
				return fmt.Errorf("decrement product %s: %v: %w", item.ProductID, err, ErrTransactionAborted)
			}
			applied = append(applied, item)
		}

		now := time.Now()
		settled, err := s.carts.SettleCart(ctx, cart.ID, now)
		if err == nil && !settled {
			err = fmt.Errorf("cart %s no longer open", cart.ID)
		}
		if err != nil {
			s.compensate(ctx, applied)
			return fmt.Errorf("settle cart: %v: %w", err, ErrTransactionAborted)
		}

		cart.Settled = true
		cart.SettledAt = &now
		return nil
	})
	if err != nil {
		obs.CheckoutTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	cacheDelete(ctx, s.cache, cartCacheKey(userID))
	obs.CheckoutTotal.WithLabelValues("success").Inc()
	return cart, nil
}

// compensate re-increments already-decremented products in reverse order.
// It runs on a cancellation-free context: once a decrement has been applied
// the rollback must not be abandoned halfway.
func (s *CartService) compensate(ctx context.Context, applied []domain.CartItem) {
	ctx = context.WithoutCancel(ctx)
	for i := len(applied) - 1; i >= 0; i-- {
		item := applied[i]
		if _, err := s.stock.IncrementStock(ctx, item.ProductID, item.Quantity); err != nil {
			obs.Logger.Error("stock compensation failed",
				"product_id", item.ProductID,
				"quantity", item.Quantity,
				"error", err,
			)
		}
	}
}

// OrderHistory is a pure read over immutable settled carts, newest first.
func (s *CartService) OrderHistory(ctx context.Context, userID string) ([]domain.Cart, error) {
	return s.carts.ListSettledCarts(ctx, userID)
}

// openCart loads the open cart from authoritative storage; callers hold the
// user's cart lock.
func (s *CartService) openCart(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := s.carts.GetOpenCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, fmt.Errorf("open cart for user %s: %w", userID, ErrNotFound)
	}
	return cart, nil
}

func (s *CartService) saveAndInvalidate(ctx context.Context, cart *domain.Cart) (*domain.Cart, error) {
	cart.RecalculateTotal()

	if err := s.carts.SaveCart(ctx, *cart); err != nil {
		return nil, fmt.Errorf("save cart: %w", err)
	}

	cacheDelete(ctx, s.cache, cartCacheKey(cart.UserID))
	return cart, nil
}
