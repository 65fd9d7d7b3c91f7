package postgres

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lojafacil/backend/internal/domain"
	"lojafacil/backend/internal/store"
)

func newIntegrationStore(t *testing.T) *Store {
	t.Helper()
	databaseURL := os.Getenv("LOJAFACIL_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set LOJAFACIL_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.EnsureSchema(ctx))
	return s
}

func TestLedgerAppendsMoveStockAtomically(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()

	owner := fmt.Sprintf("usr_it_%d", time.Now().UnixNano())
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sales WHERE user_id = $1`, owner)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM stock_entries WHERE user_id = $1`, owner)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE user_id = $1`, owner)
	})

	cost := decimal.RequireFromString("10")
	price := decimal.RequireFromString("15")
	product, err := s.CreateProduct(ctx, domain.Product{
		Name:         "Produto IT",
		CostPrice:    cost,
		SalePrice:    price,
		Profit:       price.Sub(cost),
		InitialStock: 20,
		CurrentStock: 20,
		UserID:       owner,
	})
	require.NoError(t, err)

	_, updated, err := s.AppendStockEntry(ctx, domain.StockEntry{
		ProductID: product.ID, Quantity: 10, ReceivedBy: "Ana", ReceivedFrom: "Fornecedor", UserID: owner,
	})
	require.NoError(t, err)
	assert.Equal(t, 30, updated.CurrentStock)

	sale, updated, err := s.AppendSale(ctx, domain.Sale{
		ProductID: product.ID, Quantity: 5, PaymentMethod: domain.PaymentPix, UserID: owner,
	})
	require.NoError(t, err)
	assert.True(t, sale.TotalValue.Equal(decimal.NewFromInt(75)))
	assert.True(t, sale.Profit.Equal(decimal.NewFromInt(25)))
	assert.Equal(t, 25, updated.CurrentStock)

	_, _, err = s.AppendSale(ctx, domain.Sale{
		ProductID: product.ID, Quantity: 26, PaymentMethod: domain.PaymentCash, UserID: owner,
	})
	require.ErrorIs(t, err, store.ErrInsufficientStock)

	got, err := s.GetProduct(ctx, owner, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 25, got.CurrentStock)

	_, err = s.GetProduct(ctx, "someone-else", product.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	sales, err := s.ListSales(ctx, owner, "")
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.True(t, sales[0].TotalValue.Equal(decimal.NewFromInt(75)))

	entries, err := s.ListStockEntries(ctx, owner, product.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Fornecedor", entries[0].ReceivedFrom)

	require.NoError(t, s.DeleteProduct(ctx, owner, product.ID))
	sales, err = s.ListSales(ctx, owner, product.ID)
	require.NoError(t, err)
	assert.Len(t, sales, 1, "ledger rows survive product deletion")
}

func createIntegrationProduct(t *testing.T, s *Store, stock int) (string, *domain.Product) {
	t.Helper()
	ctx := context.Background()
	owner := fmt.Sprintf("usr_it_%d", time.Now().UnixNano())
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sales WHERE user_id = $1`, owner)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM stock_entries WHERE user_id = $1`, owner)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE user_id = $1`, owner)
	})

	cost := decimal.RequireFromString("2")
	price := decimal.RequireFromString("3")
	product, err := s.CreateProduct(ctx, domain.Product{
		Name: "Produto IT", CostPrice: cost, SalePrice: price, Profit: price.Sub(cost),
		InitialStock: stock, CurrentStock: stock, UserID: owner,
	})
	require.NoError(t, err)
	return owner, product
}

func TestConcurrentSalesOfOneProductAllSucceed(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()
	owner, product := createIntegrationProduct(t, s, 30)

	var wg sync.WaitGroup
	errs := make(chan error, 12)
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := s.AppendSale(ctx, domain.Sale{
				ProductID: product.ID, Quantity: 2, PaymentMethod: domain.PaymentCard, UserID: owner,
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	got, err := s.GetProduct(ctx, owner, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, got.CurrentStock)
}

func TestUpdateProductKeepsLedgerStock(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()
	owner, product := createIntegrationProduct(t, s, 10)

	_, _, err := s.AppendSale(ctx, domain.Sale{ProductID: product.ID, Quantity: 4, PaymentMethod: domain.PaymentPix, UserID: owner})
	require.NoError(t, err)

	name := "Renomeado"
	updated, err := s.UpdateProduct(ctx, owner, product.ID, store.ProductChanges{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Renomeado", updated.Name)
	assert.Equal(t, 6, updated.CurrentStock)

	_, _, err = s.AppendStockEntry(ctx, domain.StockEntry{ProductID: product.ID, Quantity: store.MaxQuantity, UserID: owner})
	require.ErrorIs(t, err, store.ErrInvalidInput)
}

func TestCreateUserRejectsDuplicateEmail(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()

	stamp := time.Now().UnixNano()
	email := fmt.Sprintf("dup-%d@example.com", stamp)
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM users WHERE email = $1`, email)
	})

	user := domain.UserAccount{ID: fmt.Sprintf("usr_a_%d", stamp), Email: email, PasswordHash: "x"}
	require.NoError(t, s.CreateUser(ctx, user))

	user.ID = fmt.Sprintf("usr_b_%d", stamp)
	user.Email = "  " + email
	require.ErrorIs(t, s.CreateUser(ctx, user), store.ErrConflict)

	got, err := s.GetUserByEmail(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("usr_a_%d", stamp), got.ID)
}
