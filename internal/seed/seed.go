// Package seed populates the catalog and user base with demo data on
// startup. Seeding is idempotent: rows that already exist are skipped.
package seed

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/sammieeblaque/breet-shopping-cart-test/internal/core/service"
	"github.com/sammieeblaque/breet-shopping-cart-test/internal/obs"
)

type Seeder struct {
	products *service.ProductService
	users    *service.UserService
}

func New(products *service.ProductService, users *service.UserService) *Seeder {
	return &Seeder{products: products, users: users}
}

// Run seeds users then products. Individual failures are logged and
// skipped so one bad row never blocks startup.
func (s *Seeder) Run(ctx context.Context) {
	s.seedUsers(ctx)
	s.seedProducts(ctx)
	obs.Logger.Info("seeding completed")
}

func (s *Seeder) seedUsers(ctx context.Context) {
	users := []struct {
		name  string
		email string
	}{
		{"John Doe", "john@example.com"},
		{"Jane Smith", "jane@example.com"},
		{"Bob Johnson", "bob@example.com"},
	}

	for _, u := range users {
		existing, err := s.users.FindByEmail(ctx, u.email)
		if err != nil {
			obs.Logger.Error("seed user lookup failed", "email", u.email, "error", err)
			continue
		}
		if existing != nil {
			obs.Logger.Info("seed user exists, skipping", "email", u.email)
			continue
		}

		if _, err := s.users.Create(ctx, u.name, u.email); err != nil {
			obs.Logger.Error("seed user failed", "email", u.email, "error", err)
			continue
		}
		obs.Logger.Info("seeded user", "email", u.email)
	}
}

func (s *Seeder) seedProducts(ctx context.Context) {
	products := []struct {
		name        string
		description string
		price       string
		stock       int
	}{
		{"Smartphone", "High-end smartphone with advanced features", "899.99", 50},
		{"Laptop", "Powerful laptop for professional use", "1299.99", 30},
		{"Wireless Headphones", "Noise-cancelling wireless headphones", "199.99", 100},
		{"Smart Watch", "Fitness tracking smart watch", "249.99", 75},
		{"Tablet", "10-inch tablet with high resolution display", "499.99", 40},
	}

	for _, p := range products {
		existing, err := s.products.FindByName(ctx, p.name)
		if err != nil {
			obs.Logger.Error("seed product lookup failed", "name", p.name, "error", err)
			continue
		}
		if existing != nil {
			obs.Logger.Info("seed product exists, skipping", "name", p.name)
			continue
		}

		price, err := decimal.NewFromString(p.price)
		if err != nil {
			obs.Logger.Error("seed product price invalid", "name", p.name, "error", err)
			continue
		}

		if _, err := s.products.Create(ctx, p.name, p.description, price, p.stock); err != nil {
			obs.Logger.Error("seed product failed", "name", p.name, "error", err)
			continue
		}
		obs.Logger.Info("seeded product", "name", p.name)
	}
}
