package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"lojafacil/backend/internal/domain"
	"lojafacil/backend/internal/store"
	"lojafacil/backend/internal/xid"
)

type Store struct {
	mu           sync.RWMutex
	products     map[string]domain.Product
	stockEntries []domain.StockEntry
	sales        []domain.Sale
	usersByID    map[string]domain.UserAccount
	userByEmail  map[string]string
	now          func() time.Time
}

func New() *Store {
	return &Store{
		products:     make(map[string]domain.Product),
		stockEntries: make([]domain.StockEntry, 0, 64),
		sales:        make([]domain.Sale, 0, 64),
		usersByID:    make(map[string]domain.UserAccount),
		userByEmail:  make(map[string]string),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Credentials of the demo account created by NewSeeded.
const (
	SeedDemoEmail    = "demo@lojafacil.dev"
	SeedDemoPassword = "demo12345"
)

// NewSeeded builds a store with one demo owner and a small catalog so the
// server is usable without a database.
func NewSeeded() *Store {
	s := New()

	hash, err := bcrypt.GenerateFromPassword([]byte(SeedDemoPassword), bcrypt.DefaultCost)
	if err != nil {
		zap.L().Fatal("memory-store: failed to hash seed password", zap.Error(err))
	}
	owner := domain.UserAccount{
		ID:              "usr_demo",
		Email:           SeedDemoEmail,
		PasswordHash:    string(hash),
		CompanyName:     "Loja Demo",
		ResponsibleName: "Demo",
		CreatedAt:       s.now(),
	}
	s.usersByID[owner.ID] = owner
	s.userByEmail[owner.Email] = owner.ID

	seed := []struct {
		name  string
		cost  string
		price string
		stock int
	}{
		{"Café 500g", "12.90", "18.50", 24},
		{"Açúcar 1kg", "3.80", "5.49", 40},
		{"Leite Integral 1L", "4.10", "5.99", 4},
		{"Pão de Forma", "6.20", "8.90", 0},
	}
	base := s.now().Add(-time.Hour)
	for i, item := range seed {
		cost := decimal.RequireFromString(item.cost)
		price := decimal.RequireFromString(item.price)
		at := base.Add(time.Duration(i) * time.Minute)
		p := domain.Product{
			ID:           xid.New("prd"),
			Name:         item.name,
			CostPrice:    cost,
			SalePrice:    price,
			Profit:       price.Sub(cost),
			InitialStock: item.stock,
			CurrentStock: item.stock,
			CreatedAt:    at,
			UpdatedAt:    at,
			UserID:       owner.ID,
		}
		s.products[p.ID] = p
	}

	zap.L().Warn("memory-store: seeded demo account", zap.String("email", SeedDemoEmail))
	return s
}

func (s *Store) ListProducts(_ context.Context, ownerID string) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if p.UserID != ownerID {
			continue
		}
		products = append(products, p)
	}

	slices.SortFunc(products, func(a, b domain.Product) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
	return products, nil
}

func (s *Store) GetProduct(_ context.Context, ownerID string, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, ok := s.products[id]
	if !ok || product.UserID != ownerID {
		return nil, store.ErrNotFound
	}
	copyProduct := product
	return &copyProduct, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.UserID == "" || product.Name == "" || product.CurrentStock < 0 || product.CurrentStock > store.MaxQuantity {
		return nil, store.ErrInvalidInput
	}
	if product.ID == "" {
		product.ID = xid.New("prd")
	}
	if _, exists := s.products[product.ID]; exists {
		return nil, store.ErrConflict
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = s.now()
	}
	if product.UpdatedAt.IsZero() {
		product.UpdatedAt = product.CreatedAt
	}

	s.products[product.ID] = product
	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(_ context.Context, ownerID string, id string, changes store.ProductChanges) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, ok := s.products[id]
	if !ok || product.UserID != ownerID {
		return nil, store.ErrNotFound
	}
	if err := changes.Apply(&product); err != nil {
		return nil, err
	}
	if changes.UpdatedAt.IsZero() {
		product.UpdatedAt = s.now()
	}
	s.products[product.ID] = product
	updated := product
	return &updated, nil
}

func (s *Store) DeleteProduct(_ context.Context, ownerID string, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, ok := s.products[id]
	if !ok || product.UserID != ownerID {
		return store.ErrNotFound
	}
	delete(s.products, id)
	return nil
}

func (s *Store) AppendStockEntry(_ context.Context, entry domain.StockEntry) (*domain.StockEntry, *domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.Quantity < 1 || entry.Quantity > store.MaxQuantity {
		return nil, nil, store.ErrInvalidInput
	}
	product, ok := s.products[entry.ProductID]
	if !ok || product.UserID != entry.UserID {
		return nil, nil, store.ErrNotFound
	}
	if product.CurrentStock > store.MaxQuantity-entry.Quantity {
		return nil, nil, store.ErrInvalidInput
	}
	if entry.ID == "" {
		entry.ID = xid.New("stk")
	}
	if entry.Date.IsZero() {
		entry.Date = s.now()
	}

	product.CurrentStock += entry.Quantity
	product.UpdatedAt = entry.Date
	s.products[product.ID] = product
	s.stockEntries = append(s.stockEntries, entry)

	created := entry
	return &created, &product, nil
}

func (s *Store) ListStockEntries(_ context.Context, ownerID string, productID string) ([]domain.StockEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]domain.StockEntry, 0, len(s.stockEntries))
	for _, e := range s.stockEntries {
		if e.UserID != ownerID {
			continue
		}
		if productID != "" && e.ProductID != productID {
			continue
		}
		entries = append(entries, e)
	}
	slices.SortStableFunc(entries, func(a, b domain.StockEntry) int {
		return b.Date.Compare(a.Date)
	})
	return entries, nil
}

func (s *Store) AppendSale(_ context.Context, sale domain.Sale) (*domain.Sale, *domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sale.Quantity < 1 || !sale.PaymentMethod.Valid() {
		return nil, nil, store.ErrInvalidInput
	}
	product, ok := s.products[sale.ProductID]
	if !ok || product.UserID != sale.UserID {
		return nil, nil, store.ErrNotFound
	}
	if product.CurrentStock < sale.Quantity {
		return nil, nil, store.ErrInsufficientStock
	}
	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.Date.IsZero() {
		sale.Date = s.now()
	}
	sale.TotalValue, sale.Profit = product.SaleTotals(sale.Quantity)

	product.CurrentStock -= sale.Quantity
	product.UpdatedAt = sale.Date
	s.products[product.ID] = product
	s.sales = append(s.sales, sale)

	created := sale
	return &created, &product, nil
}

func (s *Store) ListSales(_ context.Context, ownerID string, productID string) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.Sale, 0, len(s.sales))
	for _, sale := range s.sales {
		if sale.UserID != ownerID {
			continue
		}
		if productID != "" && sale.ProductID != productID {
			continue
		}
		sales = append(sales, sale)
	}
	slices.SortStableFunc(sales, func(a, b domain.Sale) int {
		return b.Date.Compare(a.Date)
	})
	return sales, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(strings.TrimSpace(user.Email))
	if user.ID == "" || email == "" || user.PasswordHash == "" {
		return store.ErrInvalidInput
	}
	if _, exists := s.userByEmail[email]; exists {
		return store.ErrConflict
	}
	if _, exists := s.usersByID[user.ID]; exists {
		return store.ErrConflict
	}
	user.Email = email
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.now()
	}
	s.usersByID[user.ID] = user
	s.userByEmail[email] = user.ID
	return nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.userByEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, store.ErrNotFound
	}
	user := s.usersByID[id]
	return &user, nil
}

func (s *Store) GetUserByID(_ context.Context, id string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.usersByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &user, nil
}

func (s *Store) ListUserIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.usersByID))
	for id := range s.usersByID {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// SetClock overrides the timestamp source. Tests use it to place ledger rows
// on specific days.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}
