package store

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"lojafacil/backend/internal/domain"
)

// MaxQuantity bounds stock levels and ledger quantities to what an INTEGER
// column holds.
const MaxQuantity = math.MaxInt32

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidInput      = errors.New("invalid input")
	ErrConflict          = errors.New("conflict")
)

// Repository is the entity store. Every read and write is scoped by owner id;
// records belonging to another owner behave as if they do not exist.
//
// AppendStockEntry and AppendSale apply the ledger row and the product stock
// delta as one atomic unit.
type Repository interface {
	ListProducts(ctx context.Context, ownerID string) ([]domain.Product, error)
	GetProduct(ctx context.Context, ownerID string, id string) (*domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	// UpdateProduct merges changes into the stored row in one atomic step.
	UpdateProduct(ctx context.Context, ownerID string, id string, changes ProductChanges) (*domain.Product, error)
	DeleteProduct(ctx context.Context, ownerID string, id string) error

	AppendStockEntry(ctx context.Context, entry domain.StockEntry) (*domain.StockEntry, *domain.Product, error)
	ListStockEntries(ctx context.Context, ownerID string, productID string) ([]domain.StockEntry, error)

	// AppendSale computes the sale totals from the product row it locks, so
	// the snapshot and the stock check see the same product state.
	AppendSale(ctx context.Context, sale domain.Sale) (*domain.Sale, *domain.Product, error)
	ListSales(ctx context.Context, ownerID string, productID string) ([]domain.Sale, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	GetUserByEmail(ctx context.Context, email string) (*domain.UserAccount, error)
	GetUserByID(ctx context.Context, id string) (*domain.UserAccount, error)
	ListUserIDs(ctx context.Context) ([]string, error)
}

// ProductChanges is a partial product update. Nil fields keep the stored
// value, so an update that omits CurrentStock never rewrites stock.
type ProductChanges struct {
	Name         *string
	CostPrice    *decimal.Decimal
	SalePrice    *decimal.Decimal
	CurrentStock *int
	ImageURL     *string
	UpdatedAt    time.Time
}

// Apply merges c into p and recomputes profit when a price changed.
func (c ProductChanges) Apply(p *domain.Product) error {
	if c.Name != nil {
		if *c.Name == "" {
			return ErrInvalidInput
		}
		p.Name = *c.Name
	}
	if c.CostPrice != nil {
		p.CostPrice = *c.CostPrice
	}
	if c.SalePrice != nil {
		p.SalePrice = *c.SalePrice
	}
	if c.CostPrice != nil || c.SalePrice != nil {
		p.Profit = p.UnitProfit()
	}
	if c.CurrentStock != nil {
		if *c.CurrentStock < 0 || *c.CurrentStock > MaxQuantity {
			return ErrInvalidInput
		}
		p.CurrentStock = *c.CurrentStock
	}
	if c.ImageURL != nil {
		p.ImageURL = *c.ImageURL
	}
	if !c.UpdatedAt.IsZero() {
		p.UpdatedAt = c.UpdatedAt
	}
	return nil
}
