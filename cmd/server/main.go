package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"

	"github.com/sammieeblaque/breet-shopping-cart-test/internal/adapter/handler"
	"github.com/sammieeblaque/breet-shopping-cart-test/internal/adapter/storage"
	"github.com/sammieeblaque/breet-shopping-cart-test/internal/config"
	"github.com/sammieeblaque/breet-shopping-cart-test/internal/core/service"
	"github.com/sammieeblaque/breet-shopping-cart-test/internal/obs"
	"github.com/sammieeblaque/breet-shopping-cart-test/internal/seed"
)

func main() {
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// MySQL
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		obs.Logger.Error("failed to open mysql", "error", err)
		os.Exit(1)
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		obs.Logger.Error("failed to ping mysql", "error", err)
		os.Exit(1)
	}
	obs.Logger.Info("connected to mysql")

	// Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		DB:       cfg.RedisDB,
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		obs.Logger.Error("failed to connect redis", "error", err)
		os.Exit(1)
	}
	obs.Logger.Info("connected to redis")

	// Adapters
	redisAdapter := storage.NewRedisAdapter(rdb)
	mysqlAdapter := storage.NewMySQLAdapter(db)

	// Services
	productService := service.NewProductService(mysqlAdapter, redisAdapter, redisAdapter, cfg.LockTTL, cfg.ProductCacheTTL)
	userService := service.NewUserService(mysqlAdapter, redisAdapter, cfg.UserCacheTTL)
	stockStrategy := service.NewTxStockStrategy(mysqlAdapter)
	cartService := service.NewCartService(
		mysqlAdapter, mysqlAdapter, productService, stockStrategy,
		redisAdapter, redisAdapter, cfg.LockTTL, cfg.CartCacheTTL,
	)

	if cfg.Seed {
		seed.New(productService, userService).Run(ctx)
	}

	// HTTP server
	mux := http.NewServeMux()
	httpHandler := handler.NewHTTPHandler(cartService, productService, userService)
	httpHandler.Register(mux)

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}

	go func() {
		obs.Logger.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			obs.Logger.Error("http server error", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	obs.Logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	obs.Logger.Info("http server stopped")

	rdb.Close()
	db.Close()
	obs.Logger.Info("connections closed")
}
