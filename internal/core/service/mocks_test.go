package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sammieeblaque/breet-shopping-cart-test/internal/core/domain"
)

// Mock LockRepository
type mockLockRepo struct {
	mu           sync.Mutex
	held         map[string]string
	seq          int
	acquireOrder []string
}

func newMockLockRepo() *mockLockRepo {
	return &mockLockRepo{held: make(map[string]string)}
}

func (m *mockLockRepo) AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, live := m.held[key]; live {
		return "", nil
	}
	m.seq++
	token := fmt.Sprintf("token-%d", m.seq)
	m.held[key] = token
	m.acquireOrder = append(m.acquireOrder, key)
	return token, nil
}

func (m *mockLockRepo) ReleaseLock(ctx context.Context, key, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.held[key] != token {
		return false, nil
	}
	delete(m.held, key)
	return true, nil
}

func (m *mockLockRepo) heldCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.held)
}

// Mock CacheRepository
type mockCacheRepo struct {
	mu   sync.Mutex
	data map[string]string
	// alwaysMiss stubs the cache to return only misses; writes still land
	// so invalidation can be asserted.
	alwaysMiss bool
}

func newMockCacheRepo() *mockCacheRepo {
	return &mockCacheRepo{data: make(map[string]string)}
}

func (m *mockCacheRepo) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.alwaysMiss {
		return "", false, nil
	}
	value, ok := m.data[key]
	return value, ok, nil
}

func (m *mockCacheRepo) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *mockCacheRepo) Delete(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *mockCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range m.data {
		if strings.HasPrefix(key, prefix) {
			delete(m.data, key)
		}
	}
	return nil
}

func (m *mockCacheRepo) contains(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}

// Mock ProductRepository
type mockProductRepo struct {
	mu        sync.Mutex
	products  map[string]domain.Product
	adjustErr map[string]error
	getCalls  int
}

func newMockProductRepo() *mockProductRepo {
	return &mockProductRepo{
		products:  make(map[string]domain.Product),
		adjustErr: make(map[string]error),
	}
}

func (m *mockProductRepo) CreateProduct(ctx context.Context, p domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = p
	return nil
}

func (m *mockProductRepo) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	p, ok := m.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *mockProductRepo) GetProductByName(ctx context.Context, name string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.products {
		if strings.EqualFold(p.Name, name) {
			return &p, nil
		}
	}
	return nil, nil
}

func (m *mockProductRepo) ListProducts(ctx context.Context, offset, limit int, sortBy, order string) ([]domain.Product, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := make([]domain.Product, 0, len(m.products))
	for _, p := range m.products {
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (m *mockProductRepo) UpdateProduct(ctx context.Context, p domain.Product) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.products[p.ID]
	if !ok {
		return false, nil
	}
	existing.Name, existing.Description, existing.Price = p.Name, p.Description, p.Price
	m.products[p.ID] = existing
	return true, nil
}

func (m *mockProductRepo) DeleteProduct(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[id]; !ok {
		return false, nil
	}
	delete(m.products, id)
	return true, nil
}

func (m *mockProductRepo) AdjustStock(ctx context.Context, productID string, delta int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.adjustErr[productID]; err != nil {
		return false, err
	}
	p, ok := m.products[productID]
	if !ok || p.Stock+delta < 0 {
		return false, nil
	}
	p.Stock += delta
	m.products[productID] = p
	return true, nil
}

func (m *mockProductRepo) stockOf(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[id].Stock
}

// Mock CartRepository
type mockCartRepo struct {
	mu    sync.Mutex
	carts map[string]domain.Cart
}

func newMockCartRepo() *mockCartRepo {
	return &mockCartRepo{carts: make(map[string]domain.Cart)}
}

func copyCart(c domain.Cart) domain.Cart {
	items := make([]domain.CartItem, len(c.Items))
	copy(items, c.Items)
	c.Items = items
	return c
}

func (m *mockCartRepo) CreateCart(ctx context.Context, cart domain.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[cart.ID] = copyCart(cart)
	return nil
}

func (m *mockCartRepo) GetOpenCart(ctx context.Context, userID string) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.carts {
		if c.UserID == userID && !c.Settled {
			cart := copyCart(c)
			return &cart, nil
		}
	}
	return nil, nil
}

func (m *mockCartRepo) SaveCart(ctx context.Context, cart domain.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.carts[cart.ID]
	if !ok || existing.Settled {
		return fmt.Errorf("no open cart %s", cart.ID)
	}
	existing.Items = append([]domain.CartItem(nil), cart.Items...)
	existing.TotalAmount = cart.TotalAmount
	m.carts[cart.ID] = existing
	return nil
}

func (m *mockCartRepo) SettleCart(ctx context.Context, cartID string, settledAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[cartID]
	if !ok || c.Settled {
		return false, nil
	}
	c.Settled = true
	c.SettledAt = &settledAt
	m.carts[cartID] = c
	return true, nil
}

func (m *mockCartRepo) ListSettledCarts(ctx context.Context, userID string) ([]domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var settled []domain.Cart
	for _, c := range m.carts {
		if c.UserID == userID && c.Settled {
			settled = append(settled, copyCart(c))
		}
	}
	sort.Slice(settled, func(i, j int) bool {
		return settled[i].SettledAt.After(*settled[j].SettledAt)
	})
	return settled, nil
}

// Mock UserRepository
type mockUserRepo struct {
	mu    sync.Mutex
	users map[string]domain.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]domain.User)}
}

func (m *mockUserRepo) CreateUser(ctx context.Context, user domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepo) GetUser(ctx context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (m *mockUserRepo) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, nil
}

// Mock TransactionManager
type mockTxManager struct {
	mu         sync.Mutex
	committed  int
	rolledBack int
}

func (m *mockTxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := fn(ctx); err != nil {
		m.mu.Lock()
		m.rolledBack++
		m.mu.Unlock()
		return err
	}
	m.mu.Lock()
	m.committed++
	m.mu.Unlock()
	return nil
}

// testEnv wires the services over mocks, using the lock-ordering stock
// strategy by default.
type testEnv struct {
	locks       *mockLockRepo
	cache       *mockCacheRepo
	productRepo *mockProductRepo
	cartRepo    *mockCartRepo
	userRepo    *mockUserRepo
	products    *ProductService
	users       *UserService
	carts       *CartService
}

func newTestEnv() *testEnv {
	env := &testEnv{
		locks:       newMockLockRepo(),
		cache:       newMockCacheRepo(),
		productRepo: newMockProductRepo(),
		cartRepo:    newMockCartRepo(),
		userRepo:    newMockUserRepo(),
	}
	env.products = NewProductService(env.productRepo, env.locks, env.cache, time.Second, time.Minute)
	env.users = NewUserService(env.userRepo, env.cache, time.Minute)
	strategy := NewLockStockStrategy(env.locks, time.Second)
	env.carts = NewCartService(env.cartRepo, env.userRepo, env.products, strategy,
		env.locks, env.cache, time.Second, time.Minute)
	return env
}

func (env *testEnv) addUser(id string) {
	env.userRepo.users[id] = domain.User{ID: id, Name: id, Email: id + "@example.com", CreatedAt: time.Now()}
}

func (env *testEnv) addProduct(id string, price int64, stock int) {
	now := time.Now()
	env.productRepo.products[id] = domain.Product{
		ID:        id,
		Name:      "product " + id,
		Price:     decimal.NewFromInt(price),
		Stock:     stock,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
