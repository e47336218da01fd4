// Command stress races concurrent checkouts against a single product and
// verifies that stock is never oversold: final stock must equal initial
// stock minus the units committed by successful checkouts.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/sammieeblaque/breet-shopping-cart-test/internal/adapter/storage"
	"github.com/sammieeblaque/breet-shopping-cart-test/internal/config"
	"github.com/sammieeblaque/breet-shopping-cart-test/internal/core/service"
)

const (
	initialStock  = 20
	totalRequests = 50
	unitsPerUser  = 1
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatalf("failed to open mysql: %v", err)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("failed to ping mysql: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	defer rdb.Close()

	redisAdapter := storage.NewRedisAdapter(rdb)
	mysqlAdapter := storage.NewMySQLAdapter(db)

	productService := service.NewProductService(mysqlAdapter, redisAdapter, redisAdapter, cfg.LockTTL, cfg.ProductCacheTTL)
	userService := service.NewUserService(mysqlAdapter, redisAdapter, cfg.UserCacheTTL)
	cartService := service.NewCartService(
		mysqlAdapter, mysqlAdapter, productService, service.NewTxStockStrategy(mysqlAdapter),
		redisAdapter, redisAdapter, cfg.LockTTL, cfg.CartCacheTTL,
	)

	product, err := productService.Create(ctx, fmt.Sprintf("stress-item-%d", time.Now().UnixNano()),
		"stress test item", decimal.NewFromInt(10), initialStock)
	if err != nil {
		log.Fatalf("failed to create product: %v", err)
	}

	var success, insufficient, contended, failed atomic.Int32
	var wg sync.WaitGroup

	start := time.Now()
	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			user, err := userService.Create(ctx, fmt.Sprintf("stress-user-%d", i),
				fmt.Sprintf("stress-%d-%d@example.com", time.Now().UnixNano(), i))
			if err != nil {
				failed.Add(1)
				return
			}

			if _, err := cartService.AddToCart(ctx, user.ID, product.ID, unitsPerUser); err != nil {
				insufficient.Add(1)
				return
			}

			// Lock contention is retryable; retry a few times like a
			// well-behaved client would.
			for attempt := 0; attempt < 5; attempt++ {
				_, err = cartService.Checkout(ctx, user.ID)
				if err == nil {
					success.Add(1)
					return
				}
				time.Sleep(time.Duration(attempt+1) * 20 * time.Millisecond)
			}
			contended.Add(1)
		}(i)
	}
	wg.Wait()
	elapsed := time.Since(start)

	final, err := productService.GetProduct(ctx, product.ID)
	if err != nil {
		log.Fatalf("failed to read final stock: %v", err)
	}

	fmt.Printf("requests=%d success=%d insufficient=%d contended=%d failed=%d in %s\n",
		totalRequests, success.Load(), insufficient.Load(), contended.Load(), failed.Load(), elapsed)
	fmt.Printf("initial stock=%d final stock=%d committed=%d\n",
		initialStock, final.Stock, int(success.Load())*unitsPerUser)

	if final.Stock < 0 {
		log.Fatal("OVERSOLD: final stock is negative")
	}
	if initialStock-final.Stock != int(success.Load())*unitsPerUser {
		log.Fatalf("MISMATCH: %d units missing from ledger", initialStock-final.Stock-int(success.Load())*unitsPerUser)
	}
	fmt.Println("OK: no oversell, ledger consistent")
}
