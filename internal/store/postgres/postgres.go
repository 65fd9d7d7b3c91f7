package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"lojafacil/backend/internal/domain"
	"lojafacil/backend/internal/store"
	"lojafacil/backend/internal/xid"
)

//go:embed schema.sql
var schemaSQL string

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureSchema creates the tables if they are missing. It is idempotent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schemaSQL)
	return err
}

const productColumns = `id, user_id, name, cost_price, sale_price, profit, initial_stock, current_stock, image_url, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.CostPrice, &p.SalePrice, &p.Profit,
		&p.InitialStock, &p.CurrentStock, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt)
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, err
}

func (s *Store) ListProducts(ctx context.Context, ownerID string) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, ownerID string, id string) (*domain.Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = $1 AND user_id = $2
	`, id, ownerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.UserID == "" || product.Name == "" || product.CurrentStock < 0 || product.CurrentStock > store.MaxQuantity {
		return nil, store.ErrInvalidInput
	}
	if product.ID == "" {
		product.ID = xid.New("prd")
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	if product.UpdatedAt.IsZero() {
		product.UpdatedAt = product.CreatedAt
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, product.ID, product.UserID, product.Name, product.CostPrice, product.SalePrice, product.Profit,
		product.InitialStock, product.CurrentStock, product.ImageURL, product.CreatedAt, product.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}

	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(ctx context.Context, ownerID string, id string, changes store.ProductChanges) (*domain.Product, error) {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	product, err := lockProduct(ctx, pgTx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if err := changes.Apply(&product); err != nil {
		return nil, err
	}
	if changes.UpdatedAt.IsZero() {
		product.UpdatedAt = time.Now().UTC()
	}

	if _, err := pgTx.ExecContext(ctx, `
		UPDATE products
		SET name = $2, cost_price = $3, sale_price = $4, profit = $5,
			current_stock = $6, image_url = $7, updated_at = $8
		WHERE id = $1
	`, product.ID, product.Name, product.CostPrice, product.SalePrice, product.Profit,
		product.CurrentStock, product.ImageURL, product.UpdatedAt); err != nil {
		return nil, err
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	return &product, nil
}

func (s *Store) DeleteProduct(ctx context.Context, ownerID string, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1 AND user_id = $2`, id, ownerID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// lockProduct reads the owner's product row with a row lock held until the
// transaction ends.
func lockProduct(ctx context.Context, tx *sql.Tx, ownerID string, id string) (domain.Product, error) {
	p, err := scanProduct(tx.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = $1 AND user_id = $2
		FOR UPDATE
	`, id, ownerID))
	if errors.Is(err, sql.ErrNoRows) {
		return p, store.ErrNotFound
	}
	return p, err
}

func (s *Store) AppendStockEntry(ctx context.Context, entry domain.StockEntry) (*domain.StockEntry, *domain.Product, error) {
	if entry.Quantity < 1 || entry.Quantity > store.MaxQuantity {
		return nil, nil, store.ErrInvalidInput
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	product, err := lockProduct(ctx, pgTx, entry.UserID, entry.ProductID)
	if err != nil {
		return nil, nil, err
	}
	if product.CurrentStock > store.MaxQuantity-entry.Quantity {
		return nil, nil, store.ErrInvalidInput
	}

	if entry.ID == "" {
		entry.ID = xid.New("stk")
	}
	if entry.Date.IsZero() {
		entry.Date = time.Now().UTC()
	}

	if _, err := pgTx.ExecContext(ctx, `
		INSERT INTO stock_entries (id, user_id, product_id, quantity, received_by, received_from, entry_date)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, entry.ID, entry.UserID, entry.ProductID, entry.Quantity, entry.ReceivedBy, entry.ReceivedFrom, entry.Date); err != nil {
		return nil, nil, err
	}

	product.CurrentStock += entry.Quantity
	product.UpdatedAt = entry.Date
	if _, err := pgTx.ExecContext(ctx, `
		UPDATE products SET current_stock = $2, updated_at = $3 WHERE id = $1
	`, product.ID, product.CurrentStock, product.UpdatedAt); err != nil {
		return nil, nil, err
	}

	if err := pgTx.Commit(); err != nil {
		return nil, nil, err
	}
	return &entry, &product, nil
}

func (s *Store) ListStockEntries(ctx context.Context, ownerID string, productID string) ([]domain.StockEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, product_id, quantity, received_by, received_from, entry_date
		FROM stock_entries
		WHERE user_id = $1 AND ($2 = '' OR product_id = $2)
		ORDER BY entry_date DESC, id DESC
	`, ownerID, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.StockEntry, 0, 64)
	for rows.Next() {
		var e domain.StockEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.ProductID, &e.Quantity, &e.ReceivedBy, &e.ReceivedFrom, &e.Date); err != nil {
			return nil, err
		}
		e.Date = e.Date.UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Store) AppendSale(ctx context.Context, sale domain.Sale) (*domain.Sale, *domain.Product, error) {
	if sale.Quantity < 1 || !sale.PaymentMethod.Valid() {
		return nil, nil, store.ErrInvalidInput
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	product, err := lockProduct(ctx, pgTx, sale.UserID, sale.ProductID)
	if err != nil {
		return nil, nil, err
	}
	if product.CurrentStock < sale.Quantity {
		return nil, nil, store.ErrInsufficientStock
	}

	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.Date.IsZero() {
		sale.Date = time.Now().UTC()
	}
	sale.TotalValue, sale.Profit = product.SaleTotals(sale.Quantity)

	if _, err := pgTx.ExecContext(ctx, `
		INSERT INTO sales (id, user_id, product_id, quantity, total_value, profit, payment_method, sale_date)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, sale.ID, sale.UserID, sale.ProductID, sale.Quantity, sale.TotalValue, sale.Profit, string(sale.PaymentMethod), sale.Date); err != nil {
		return nil, nil, err
	}

	product.CurrentStock -= sale.Quantity
	product.UpdatedAt = sale.Date
	if _, err := pgTx.ExecContext(ctx, `
		UPDATE products SET current_stock = $2, updated_at = $3 WHERE id = $1
	`, product.ID, product.CurrentStock, product.UpdatedAt); err != nil {
		return nil, nil, err
	}

	if err := pgTx.Commit(); err != nil {
		return nil, nil, err
	}
	return &sale, &product, nil
}

func (s *Store) ListSales(ctx context.Context, ownerID string, productID string) ([]domain.Sale, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, product_id, quantity, total_value, profit, payment_method, sale_date
		FROM sales
		WHERE user_id = $1 AND ($2 = '' OR product_id = $2)
		ORDER BY sale_date DESC, id DESC
	`, ownerID, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 128)
	for rows.Next() {
		var sale domain.Sale
		var method string
		if err := rows.Scan(&sale.ID, &sale.UserID, &sale.ProductID, &sale.Quantity,
			&sale.TotalValue, &sale.Profit, &method, &sale.Date); err != nil {
			return nil, err
		}
		sale.PaymentMethod = domain.PaymentMethod(method)
		sale.Date = sale.Date.UTC()
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sales, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if user.ID == "" || user.Email == "" || user.PasswordHash == "" {
		return store.ErrInvalidInput
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, company_name, responsible_name, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, user.ID, user.Email, user.PasswordHash, user.CompanyName, user.ResponsibleName, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return err
	}
	return nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.UserAccount, error) {
	return s.getUser(ctx, "email", strings.ToLower(strings.TrimSpace(email)))
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*domain.UserAccount, error) {
	return s.getUser(ctx, "id", id)
}

func (s *Store) getUser(ctx context.Context, column string, value string) (*domain.UserAccount, error) {
	var user domain.UserAccount
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, company_name, responsible_name, created_at
		FROM users
		WHERE `+column+` = $1
	`, value).Scan(&user.ID, &user.Email, &user.PasswordHash, &user.CompanyName, &user.ResponsibleName, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return &user, nil
}

func (s *Store) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM users ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]string, 0, 16)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
