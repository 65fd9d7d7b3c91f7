package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	CostPrice    decimal.Decimal `json:"costPrice"`
	SalePrice    decimal.Decimal `json:"salePrice"`
	Profit       decimal.Decimal `json:"profit"`
	InitialStock int             `json:"initialStock"`
	CurrentStock int             `json:"currentStock"`
	ImageURL     string          `json:"imageUrl,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
	UserID       string          `json:"userId"`
}

// UnitProfit is the per-unit margin derived from the two prices.
func (p Product) UnitProfit() decimal.Decimal {
	return p.SalePrice.Sub(p.CostPrice)
}

// SaleTotals snapshots the revenue and profit of selling qty units at the
// product's current prices.
func (p Product) SaleTotals(qty int) (total decimal.Decimal, profit decimal.Decimal) {
	units := decimal.NewFromInt(int64(qty))
	return p.SalePrice.Mul(units), p.Profit.Mul(units)
}

type ProductCreateRequest struct {
	Name         string          `json:"name"`
	CostPrice    decimal.Decimal `json:"costPrice"`
	SalePrice    decimal.Decimal `json:"salePrice"`
	InitialStock int             `json:"initialStock"`
	Image        *ImageUpload    `json:"image,omitempty"`
}

type ProductUpdateRequest struct {
	Name         *string          `json:"name,omitempty"`
	CostPrice    *decimal.Decimal `json:"costPrice,omitempty"`
	SalePrice    *decimal.Decimal `json:"salePrice,omitempty"`
	CurrentStock *int             `json:"currentStock,omitempty"`
	Image        *ImageUpload     `json:"image,omitempty"`
}

// ImageUpload carries an inline product picture. Content is base64 encoded on the wire.
type ImageUpload struct {
	FileName string `json:"fileName"`
	Content  []byte `json:"content"`
}

type StockEntry struct {
	ID           string    `json:"id"`
	ProductID    string    `json:"productId"`
	Quantity     int       `json:"quantity"`
	ReceivedBy   string    `json:"receivedBy"`
	ReceivedFrom string    `json:"receivedFrom"`
	Date         time.Time `json:"date"`
	UserID       string    `json:"userId"`
}

type StockEntryRequest struct {
	ProductID    string `json:"productId"`
	Quantity     int    `json:"quantity"`
	ReceivedBy   string `json:"receivedBy"`
	ReceivedFrom string `json:"receivedFrom"`
}

type PaymentMethod string

const (
	PaymentPix    PaymentMethod = "pix"
	PaymentCash   PaymentMethod = "dinheiro"
	PaymentCard   PaymentMethod = "cartao"
	PaymentCredit PaymentMethod = "fiado"
)

var paymentLabels = map[PaymentMethod]string{
	PaymentPix:    "PIX",
	PaymentCash:   "Dinheiro",
	PaymentCard:   "Cartão",
	PaymentCredit: "Fiado",
}

func (m PaymentMethod) Valid() bool {
	_, ok := paymentLabels[m]
	return ok
}

// Label returns the display name, or the raw code for unknown methods.
func (m PaymentMethod) Label() string {
	if label, ok := paymentLabels[m]; ok {
		return label
	}
	return string(m)
}

type Sale struct {
	ID            string          `json:"id"`
	ProductID     string          `json:"productId"`
	Quantity      int             `json:"quantity"`
	TotalValue    decimal.Decimal `json:"totalValue"`
	Profit        decimal.Decimal `json:"profit"`
	PaymentMethod PaymentMethod   `json:"paymentMethod"`
	Date          time.Time       `json:"date"`
	UserID        string          `json:"userId"`
}

type SaleRequest struct {
	ProductID     string        `json:"productId"`
	Quantity      int           `json:"quantity"`
	PaymentMethod PaymentMethod `json:"paymentMethod"`
}

type SalesStats struct {
	MonthlyRevenue    decimal.Decimal `json:"monthlyRevenue"`
	MonthlyProfit     decimal.Decimal `json:"monthlyProfit"`
	DailyRevenue      decimal.Decimal `json:"dailyRevenue"`
	DailyProfit       decimal.Decimal `json:"dailyProfit"`
	TotalSales        int             `json:"totalSales"`
	MonthlySalesCount int             `json:"monthlySalesCount"`
	DailySalesCount   int             `json:"dailySalesCount"`
}

type PaymentMethodReport struct {
	Method     PaymentMethod   `json:"method" csv:"method"`
	Label      string          `json:"label" csv:"label"`
	Total      decimal.Decimal `json:"total" csv:"total"`
	Count      int             `json:"count" csv:"count"`
	Percentage float64         `json:"percentage" csv:"percentage"`
}

type ProductPerformance struct {
	ProductID    string          `json:"productId" csv:"product_id"`
	ProductName  string          `json:"productName" csv:"product_name"`
	TotalSold    int             `json:"totalSold" csv:"total_sold"`
	TotalRevenue decimal.Decimal `json:"totalRevenue" csv:"total_revenue"`
	TotalProfit  decimal.Decimal `json:"totalProfit" csv:"total_profit"`
	SalesCount   int             `json:"salesCount" csv:"sales_count"`
}

type PeriodReport struct {
	Period     string          `json:"period" csv:"period"`
	Revenue    decimal.Decimal `json:"revenue" csv:"revenue"`
	Profit     decimal.Decimal `json:"profit" csv:"profit"`
	SalesCount int             `json:"salesCount" csv:"sales_count"`
}

type StockReport struct {
	TotalProducts      int             `json:"totalProducts"`
	TotalStockItems    int             `json:"totalStockItems"`
	TotalStockValue    decimal.Decimal `json:"totalStockValue"`
	LowStockCount      int             `json:"lowStockCount"`
	OutOfStockCount    int             `json:"outOfStockCount"`
	LowStockProducts   []Product       `json:"lowStockProducts"`
	OutOfStockProducts []Product       `json:"outOfStockProducts"`
	RecentEntries      []StockEntry    `json:"recentEntries"`
}

type StockDrift struct {
	ProductID     string `json:"productId"`
	ProductName   string `json:"productName"`
	InitialStock  int    `json:"initialStock"`
	EntriesQty    int    `json:"entriesQty"`
	SoldQty       int    `json:"soldQty"`
	ExpectedStock int    `json:"expectedStock"`
	CurrentStock  int    `json:"currentStock"`
	Delta         int    `json:"delta"`
}

type RecentSale struct {
	Sale
	ProductName string `json:"productName"`
}

type Overview struct {
	Period          string          `json:"period"`
	From            *time.Time      `json:"from,omitempty"`
	Revenue         decimal.Decimal `json:"revenue"`
	Profit          decimal.Decimal `json:"profit"`
	MarginPercent   float64         `json:"marginPercent"`
	SalesCount      int             `json:"salesCount"`
	TotalProducts   int             `json:"totalProducts"`
	TotalStock      int             `json:"totalStock"`
	LowStockCount   int             `json:"lowStockCount"`
	OutOfStockCount int             `json:"outOfStockCount"`
	RecentSales     []RecentSale    `json:"recentSales"`
}

const (
	OverviewToday  = "today"
	Overview7Days  = "7days"
	Overview30Days = "30days"
	Overview90Days = "90days"
	OverviewYear   = "year"
	OverviewAll    = "all"
)

// Actor is the authenticated owner of a request.
type Actor struct {
	UserID string
	Email  string
}

type RegisterRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	CompanyName     string `json:"companyName"`
	ResponsibleName string `json:"responsibleName"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string       `json:"accessToken"`
	ExpiresAt   string       `json:"expiresAt"`
	Profile     *UserProfile `json:"profile,omitempty"`
}

type UserProfile struct {
	ID              string `json:"id"`
	CompanyName     string `json:"companyName"`
	ResponsibleName string `json:"responsibleName"`
	Email           string `json:"email"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	ID              string
	Email           string
	PasswordHash    string
	CompanyName     string
	ResponsibleName string
	CreatedAt       time.Time
}

func (u UserAccount) Profile() UserProfile {
	return UserProfile{
		ID:              u.ID,
		CompanyName:     u.CompanyName,
		ResponsibleName: u.ResponsibleName,
		Email:           u.Email,
	}
}
