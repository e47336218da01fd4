package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sammieeblaque/breet-shopping-cart-test/internal/obs"
	"github.com/sammieeblaque/breet-shopping-cart-test/internal/port"
)

// StockUpdateStrategy provides an exclusive scope for a multi-product stock
// update. The coordinator is agnostic to which backing mechanism is wired:
// a storage transaction when the deployment has one, otherwise per-product
// lock ordering.
type StockUpdateStrategy interface {
	WithExclusiveStockUpdate(ctx context.Context, productIDs []string, fn func(ctx context.Context) error) error
}

// TxStockStrategy runs fn inside a storage transaction. An error from fn
// rolls back every write made through the transactional context.
type TxStockStrategy struct {
	tx port.TransactionManager
}

func NewTxStockStrategy(tx port.TransactionManager) *TxStockStrategy {
	return &TxStockStrategy{tx: tx}
}

func (s *TxStockStrategy) WithExclusiveStockUpdate(ctx context.Context, _ []string, fn func(ctx context.Context) error) error {
	return s.tx.WithinTx(ctx, fn)
}

// LockStockStrategy serializes the update by taking one lock per distinct
// product, always in sorted ID order so two overlapping checkouts cannot
// deadlock against each other. It uses its own key namespace (stocktx:) so
// the ledger's short product:{id} critical sections inside fn still acquire
// normally.
type LockStockStrategy struct {
	locks port.LockRepository
	ttl   time.Duration
}

func NewLockStockStrategy(locks port.LockRepository, ttl time.Duration) *LockStockStrategy {
	return &LockStockStrategy{locks: locks, ttl: ttl}
}

func (s *LockStockStrategy) WithExclusiveStockUpdate(ctx context.Context, productIDs []string, fn func(ctx context.Context) error) error {
	ids := make([]string, len(productIDs))
	copy(ids, productIDs)
	sort.Strings(ids)

	type held struct {
		key   string
		token string
	}
	var acquired []held

	release := func() {
		for i := len(acquired) - 1; i >= 0; i-- {
			releaseLock(ctx, s.locks, acquired[i].key, acquired[i].token)
		}
	}

	for _, id := range ids {
		key := "stocktx:" + id
		token, err := s.locks.AcquireLock(ctx, key, s.ttl)
		if err != nil {
			release()
			return fmt.Errorf("acquire stock lock: %w", err)
		}
		if token == "" {
			obs.LockContentionTotal.Inc()
			release()
			return fmt.Errorf("product %s: %w", id, ErrLockUnavailable)
		}
		acquired = append(acquired, held{key: key, token: token})
	}
	defer release()

	return fn(ctx)
}
