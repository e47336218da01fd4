package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sammieeblaque/breet-shopping-cart-test/internal/core/domain"
	"github.com/sammieeblaque/breet-shopping-cart-test/internal/obs"
	"github.com/sammieeblaque/breet-shopping-cart-test/internal/port"
)

// ProductList is one page of the catalog.
type ProductList struct {
	Products []domain.Product `json:"products"`
	Total    int              `json:"total"`
	Page     int              `json:"page"`
	Limit    int              `json:"limit"`
}

// ProductService owns the catalog and is the authority for stock counts.
// Stock moves only through DecrementStock and IncrementStock, each of which
// holds the per-product lock for its read-check-write critical section.
type ProductService struct {
	products port.ProductRepository
	locks    port.LockRepository
	cache    port.CacheRepository
	lockTTL  time.Duration
	cacheTTL time.Duration
}

func NewProductService(products port.ProductRepository, locks port.LockRepository, cache port.CacheRepository, lockTTL, cacheTTL time.Duration) *ProductService {
	return &ProductService{
		products: products,
		locks:    locks,
		cache:    cache,
		lockTTL:  lockTTL,
		cacheTTL: cacheTTL,
	}
}

func (s *ProductService) Create(ctx context.Context, name, description string, price decimal.Decimal, stock int) (*domain.Product, error) {
	now := time.Now()
	product := domain.Product{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		Price:       price,
		Stock:       stock,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.products.CreateProduct(ctx, product); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	s.invalidateCache(ctx, "")
	return &product, nil
}

// FindOne is the cached read path. Callers that validate stock inside a
// locked critical section use GetProduct instead.
func (s *ProductService) FindOne(ctx context.Context, id string) (*domain.Product, error) {
	var cached domain.Product
	if cacheGetJSON(ctx, s.cache, productCacheKey(id), &cached) {
		return &cached, nil
	}

	product, err := s.products.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, fmt.Errorf("product %s: %w", id, ErrNotFound)
	}

	cacheSetJSON(ctx, s.cache, productCacheKey(id), product, s.cacheTTL)
	return product, nil
}

func (s *ProductService) FindAll(ctx context.Context, page, limit int, sortBy, order string) (*ProductList, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	if sortBy == "" {
		sortBy = "createdAt"
	}
	if order == "" {
		order = "desc"
	}

	key := productListCacheKey(page, limit, sortBy, order)
	var cached ProductList
	if cacheGetJSON(ctx, s.cache, key, &cached) {
		return &cached, nil
	}

	products, total, err := s.products.ListProducts(ctx, (page-1)*limit, limit, sortBy, order)
	if err != nil {
		return nil, err
	}

	list := &ProductList{Products: products, Total: total, Page: page, Limit: limit}
	cacheSetJSON(ctx, s.cache, key, list, s.cacheTTL)
	return list, nil
}

func (s *ProductService) FindByName(ctx context.Context, name string) (*domain.Product, error) {
	return s.products.GetProductByName(ctx, name)
}

func (s *ProductService) Update(ctx context.Context, product domain.Product) error {
	found, err := s.products.UpdateProduct(ctx, product)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("product %s: %w", product.ID, ErrNotFound)
	}
	s.invalidateCache(ctx, product.ID)
	return nil
}

func (s *ProductService) Remove(ctx context.Context, id string) error {
	found, err := s.products.DeleteProduct(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	s.invalidateCache(ctx, id)
	return nil
}

// GetProduct reads the authoritative record, bypassing the cache.
func (s *ProductService) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	return s.products.GetProduct(ctx, id)
}

// CheckStock is a pre-flight sufficiency check. It is not race-free on its
// own; enforcement happens in DecrementStock.
func (s *ProductService) CheckStock(ctx context.Context, id string, quantity int) (bool, error) {
	product, err := s.products.GetProduct(ctx, id)
	if err != nil {
		return false, err
	}
	return product != nil && product.Stock >= quantity, nil
}

func (s *ProductService) DecrementStock(ctx context.Context, id string, quantity int) (*domain.Product, error) {
	return s.adjustStock(ctx, id, -quantity)
}

// IncrementStock restores stock, compensating a previous decrement after a
// failed downstream step.
func (s *ProductService) IncrementStock(ctx context.Context, id string, quantity int) (*domain.Product, error) {
	return s.adjustStock(ctx, id, quantity)
}

func (s *ProductService) adjustStock(ctx context.Context, id string, delta int) (*domain.Product, error) {
	lockKey := "product:" + id
	token, err := s.locks.AcquireLock(ctx, lockKey, s.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire product lock: %w", err)
	}
	if token == "" {
		obs.LockContentionTotal.Inc()
		return nil, fmt.Errorf("product %s: %w", id, ErrLockUnavailable)
	}
	defer releaseLock(ctx, s.locks, lockKey, token)

	product, err := s.products.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	if product.Stock+delta < 0 {
		return nil, fmt.Errorf("product %s: %w", id, ErrInsufficientStock)
	}

	// The conditional update re-checks the guard at the storage layer, so
	// stock cannot go negative even if the lock were bypassed.
	ok, err := s.products.AdjustStock(ctx, id, delta)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("product %s: %w", id, ErrInsufficientStock)
	}

	product, err = s.products.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	s.invalidateCache(ctx, id)
	return product, nil
}

func (s *ProductService) invalidateCache(ctx context.Context, id string) {
	if id != "" {
		cacheDelete(ctx, s.cache, productCacheKey(id))
	}
	cacheDeletePattern(ctx, s.cache, productListCachePattern)
}
