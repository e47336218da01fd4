package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sammieeblaque/breet-shopping-cart-test/internal/core/domain"
)

type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

type txKey struct{}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn returns the transaction carried by ctx, if any, so repository calls
// made inside WithinTx join the open transaction.
func (m *MySQLAdapter) conn(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return m.db
}

func (m *MySQLAdapter) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		// Already inside a transaction; join it.
		return fn(ctx)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}

	return tx.Commit()
}

func (m *MySQLAdapter) CreateProduct(ctx context.Context, p domain.Product) error {
	_, err := m.conn(ctx).ExecContext(ctx, `
		INSERT INTO products (id, name, description, price, stock, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Description, p.Price, p.Stock, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	return m.scanProduct(m.conn(ctx).QueryRowContext(ctx, `
		SELECT id, name, description, price, stock, created_at, updated_at
		FROM products WHERE id = ?`, id))
}

func (m *MySQLAdapter) GetProductByName(ctx context.Context, name string) (*domain.Product, error) {
	return m.scanProduct(m.conn(ctx).QueryRowContext(ctx, `
		SELECT id, name, description, price, stock, created_at, updated_at
		FROM products WHERE LOWER(name) = LOWER(?)`, name))
}

func (m *MySQLAdapter) scanProduct(row *sql.Row) (*domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}
	return &p, nil
}

var productSortColumns = map[string]string{
	"createdAt": "created_at",
	"name":      "name",
	"price":     "price",
	"stock":     "stock",
}

func (m *MySQLAdapter) ListProducts(ctx context.Context, offset, limit int, sortBy, order string) ([]domain.Product, int, error) {
	column, ok := productSortColumns[sortBy]
	if !ok {
		column = "created_at"
	}
	direction := "DESC"
	if strings.EqualFold(order, "asc") {
		direction = "ASC"
	}

	rows, err := m.conn(ctx).QueryContext(ctx, fmt.Sprintf(`
		SELECT id, name, description, price, stock, created_at, updated_at
		FROM products ORDER BY %s %s LIMIT ? OFFSET ?`, column, direction),
		limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate products: %w", err)
	}

	var total int
	if err := m.conn(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	return products, total, nil
}

func (m *MySQLAdapter) UpdateProduct(ctx context.Context, p domain.Product) (bool, error) {
	result, err := m.conn(ctx).ExecContext(ctx, `
		UPDATE products SET name = ?, description = ?, price = ?, updated_at = NOW()
		WHERE id = ?`,
		p.Name, p.Description, p.Price, p.ID,
	)
	if err != nil {
		return false, fmt.Errorf("update product: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

func (m *MySQLAdapter) DeleteProduct(ctx context.Context, id string) (bool, error) {
	result, err := m.conn(ctx).ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete product: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// AdjustStock guards against negative stock inside the UPDATE itself, so a
// racing writer can never push the count below zero regardless of what it
// read beforehand.
func (m *MySQLAdapter) AdjustStock(ctx context.Context, productID string, delta int) (bool, error) {
	result, err := m.conn(ctx).ExecContext(ctx, `
		UPDATE products SET stock = stock + ?, updated_at = NOW()
		WHERE id = ? AND stock + ? >= 0`,
		delta, productID, delta,
	)
	if err != nil {
		return false, fmt.Errorf("adjust stock: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("adjust stock rows: %w", err)
	}

	return rows > 0, nil
}

func (m *MySQLAdapter) CreateCart(ctx context.Context, cart domain.Cart) error {
	_, err := m.conn(ctx).ExecContext(ctx, `
		INSERT INTO carts (id, user_id, settled, total_amount, created_at, updated_at)
		VALUES (?, ?, FALSE, ?, ?, ?)`,
		cart.ID, cart.UserID, cart.TotalAmount, cart.CreatedAt, cart.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert cart: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) GetOpenCart(ctx context.Context, userID string) (*domain.Cart, error) {
	row := m.conn(ctx).QueryRowContext(ctx, `
		SELECT id, user_id, settled, settled_at, total_amount, created_at, updated_at
		FROM carts WHERE user_id = ? AND settled = FALSE`, userID)

	cart, err := m.scanCart(row)
	if err != nil || cart == nil {
		return cart, err
	}

	if err := m.loadItems(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

func (m *MySQLAdapter) scanCart(row *sql.Row) (*domain.Cart, error) {
	var c domain.Cart
	var settledAt sql.NullTime
	err := row.Scan(&c.ID, &c.UserID, &c.Settled, &settledAt, &c.TotalAmount, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query cart: %w", err)
	}
	if settledAt.Valid {
		c.SettledAt = &settledAt.Time
	}
	return &c, nil
}

func (m *MySQLAdapter) loadItems(ctx context.Context, cart *domain.Cart) error {
	rows, err := m.conn(ctx).QueryContext(ctx, `
		SELECT product_id, quantity, price, name
		FROM cart_items WHERE cart_id = ? ORDER BY id`, cart.ID)
	if err != nil {
		return fmt.Errorf("query cart items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.CartItem
		if err := rows.Scan(&item.ProductID, &item.Quantity, &item.Price, &item.Name); err != nil {
			return fmt.Errorf("scan cart item: %w", err)
		}
		cart.Items = append(cart.Items, item)
	}
	return rows.Err()
}

// SaveCart replaces the cart's line items wholesale and updates the total,
// all inside one transaction.
func (m *MySQLAdapter) SaveCart(ctx context.Context, cart domain.Cart) error {
	return m.WithinTx(ctx, func(ctx context.Context) error {
		result, err := m.conn(ctx).ExecContext(ctx, `
			UPDATE carts SET total_amount = ?, updated_at = NOW()
			WHERE id = ? AND settled = FALSE`,
			cart.TotalAmount, cart.ID,
		)
		if err != nil {
			return fmt.Errorf("update cart: %w", err)
		}
		if rows, _ := result.RowsAffected(); rows == 0 {
			return sql.ErrNoRows
		}

		if _, err := m.conn(ctx).ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = ?`, cart.ID); err != nil {
			return fmt.Errorf("clear cart items: %w", err)
		}

		for _, item := range cart.Items {
			_, err := m.conn(ctx).ExecContext(ctx, `
				INSERT INTO cart_items (cart_id, product_id, quantity, price, name)
				VALUES (?, ?, ?, ?, ?)`,
				cart.ID, item.ProductID, item.Quantity, item.Price, item.Name,
			)
			if err != nil {
				return fmt.Errorf("insert cart item: %w", err)
			}
		}

		return nil
	})
}

func (m *MySQLAdapter) SettleCart(ctx context.Context, cartID string, settledAt time.Time) (bool, error) {
	result, err := m.conn(ctx).ExecContext(ctx, `
		UPDATE carts SET settled = TRUE, settled_at = ?, updated_at = NOW()
		WHERE id = ? AND settled = FALSE`,
		settledAt, cartID,
	)
	if err != nil {
		return false, fmt.Errorf("settle cart: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

func (m *MySQLAdapter) ListSettledCarts(ctx context.Context, userID string) ([]domain.Cart, error) {
	rows, err := m.conn(ctx).QueryContext(ctx, `
		SELECT id, user_id, settled, settled_at, total_amount, created_at, updated_at
		FROM carts WHERE user_id = ? AND settled = TRUE
		ORDER BY settled_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query settled carts: %w", err)
	}
	defer rows.Close()

	var carts []domain.Cart
	for rows.Next() {
		var c domain.Cart
		var settledAt sql.NullTime
		if err := rows.Scan(&c.ID, &c.UserID, &c.Settled, &settledAt, &c.TotalAmount, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan settled cart: %w", err)
		}
		if settledAt.Valid {
			c.SettledAt = &settledAt.Time
		}
		carts = append(carts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate settled carts: %w", err)
	}

	for i := range carts {
		if err := m.loadItems(ctx, &carts[i]); err != nil {
			return nil, err
		}
	}

	return carts, nil
}

func (m *MySQLAdapter) CreateUser(ctx context.Context, user domain.User) error {
	_, err := m.conn(ctx).ExecContext(ctx, `
		INSERT INTO users (id, name, email, created_at)
		VALUES (?, ?, ?, ?)`,
		user.ID, user.Name, user.Email, user.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return m.scanUser(m.conn(ctx).QueryRowContext(ctx, `
		SELECT id, name, email, created_at FROM users WHERE id = ?`, id))
}

func (m *MySQLAdapter) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return m.scanUser(m.conn(ctx).QueryRowContext(ctx, `
		SELECT id, name, email, created_at FROM users WHERE email = ?`, email))
}

func (m *MySQLAdapter) scanUser(row *sql.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &u, nil
}
