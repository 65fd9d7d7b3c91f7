// Package report derives dashboard and report views from already loaded
// products and ledger rows. Nothing here touches storage.
package report

import (
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"lojafacil/backend/internal/domain"
)

const (
	DefaultPeriodDays   = 30
	LowStockThreshold   = 5
	RecentEntriesLimit  = 10
	RecentSalesLimit    = 5
	MissingProductLabel = "Produto não encontrado"
)

var ErrUnknownPeriod = errors.New("unknown overview period")

var hundred = decimal.NewFromInt(100)

func PaymentMethods(sales []domain.Sale) []domain.PaymentMethodReport {
	if len(sales) == 0 {
		return []domain.PaymentMethodReport{}
	}

	byMethod := make(map[domain.PaymentMethod]*domain.PaymentMethodReport, 4)
	grand := decimal.Zero
	for _, sale := range sales {
		row, ok := byMethod[sale.PaymentMethod]
		if !ok {
			row = &domain.PaymentMethodReport{
				Method: sale.PaymentMethod,
				Label:  sale.PaymentMethod.Label(),
				Total:  decimal.Zero,
			}
			byMethod[sale.PaymentMethod] = row
		}
		row.Total = row.Total.Add(sale.TotalValue)
		row.Count++
		grand = grand.Add(sale.TotalValue)
	}

	rows := make([]domain.PaymentMethodReport, 0, len(byMethod))
	for _, row := range byMethod {
		if grand.IsPositive() {
			row.Percentage = row.Total.Div(grand).Mul(hundred).Round(2).InexactFloat64()
		}
		rows = append(rows, *row)
	}
	slices.SortFunc(rows, func(a, b domain.PaymentMethodReport) int {
		if c := b.Total.Cmp(a.Total); c != 0 {
			return c
		}
		return strings.Compare(string(a.Method), string(b.Method))
	})
	return rows
}

func ProductPerformance(sales []domain.Sale, products []domain.Product) []domain.ProductPerformance {
	names := make(map[string]string, len(products))
	for _, p := range products {
		names[p.ID] = p.Name
	}

	byProduct := make(map[string]*domain.ProductPerformance)
	for _, sale := range sales {
		row, ok := byProduct[sale.ProductID]
		if !ok {
			name, found := names[sale.ProductID]
			if !found {
				name = MissingProductLabel
			}
			row = &domain.ProductPerformance{
				ProductID:    sale.ProductID,
				ProductName:  name,
				TotalRevenue: decimal.Zero,
				TotalProfit:  decimal.Zero,
			}
			byProduct[sale.ProductID] = row
		}
		row.TotalSold += sale.Quantity
		row.TotalRevenue = row.TotalRevenue.Add(sale.TotalValue)
		row.TotalProfit = row.TotalProfit.Add(sale.Profit)
		row.SalesCount++
	}

	rows := make([]domain.ProductPerformance, 0, len(byProduct))
	for _, row := range byProduct {
		rows = append(rows, *row)
	}
	slices.SortFunc(rows, func(a, b domain.ProductPerformance) int {
		if c := b.TotalRevenue.Cmp(a.TotalRevenue); c != 0 {
			return c
		}
		return strings.Compare(a.ProductID, b.ProductID)
	})
	return rows
}

// Period buckets the sales of the trailing days window by the calendar date
// they fall on in loc.
func Period(sales []domain.Sale, days int, now time.Time, loc *time.Location) []domain.PeriodReport {
	if days < 1 {
		days = DefaultPeriodDays
	}
	loc = orUTC(loc)
	cutoff := now.In(loc).AddDate(0, 0, -days)

	byDay := make(map[string]*domain.PeriodReport)
	for _, sale := range sales {
		if sale.Date.Before(cutoff) {
			continue
		}
		key := sale.Date.In(loc).Format(time.DateOnly)
		row, ok := byDay[key]
		if !ok {
			row = &domain.PeriodReport{Period: key, Revenue: decimal.Zero, Profit: decimal.Zero}
			byDay[key] = row
		}
		row.Revenue = row.Revenue.Add(sale.TotalValue)
		row.Profit = row.Profit.Add(sale.Profit)
		row.SalesCount++
	}

	rows := make([]domain.PeriodReport, 0, len(byDay))
	for _, row := range byDay {
		rows = append(rows, *row)
	}
	slices.SortFunc(rows, func(a, b domain.PeriodReport) int {
		return strings.Compare(a.Period, b.Period)
	})
	return rows
}

// Stock expects entries newest-first, as the ledger lists them.
func Stock(products []domain.Product, entries []domain.StockEntry) domain.StockReport {
	out := domain.StockReport{
		TotalProducts:      len(products),
		TotalStockValue:    decimal.Zero,
		LowStockProducts:   []domain.Product{},
		OutOfStockProducts: []domain.Product{},
	}
	for _, p := range products {
		out.TotalStockItems += p.CurrentStock
		out.TotalStockValue = out.TotalStockValue.Add(p.CostPrice.Mul(decimal.NewFromInt(int64(p.CurrentStock))))
		switch {
		case p.CurrentStock == 0:
			out.OutOfStockProducts = append(out.OutOfStockProducts, p)
		case p.CurrentStock > 0 && p.CurrentStock <= LowStockThreshold:
			out.LowStockProducts = append(out.LowStockProducts, p)
		}
	}
	out.LowStockCount = len(out.LowStockProducts)
	out.OutOfStockCount = len(out.OutOfStockProducts)

	limit := min(len(entries), RecentEntriesLimit)
	out.RecentEntries = append(make([]domain.StockEntry, 0, limit), entries[:limit]...)
	return out
}

func SalesStats(sales []domain.Sale, now time.Time, loc *time.Location) domain.SalesStats {
	loc = orUTC(loc)
	local := now.In(loc)
	startOfDay := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	startOfMonth := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)

	stats := domain.SalesStats{
		MonthlyRevenue: decimal.Zero,
		MonthlyProfit:  decimal.Zero,
		DailyRevenue:   decimal.Zero,
		DailyProfit:    decimal.Zero,
		TotalSales:     len(sales),
	}
	for _, sale := range sales {
		if !sale.Date.Before(startOfMonth) {
			stats.MonthlyRevenue = stats.MonthlyRevenue.Add(sale.TotalValue)
			stats.MonthlyProfit = stats.MonthlyProfit.Add(sale.Profit)
			stats.MonthlySalesCount++
		}
		if !sale.Date.Before(startOfDay) {
			stats.DailyRevenue = stats.DailyRevenue.Add(sale.TotalValue)
			stats.DailyProfit = stats.DailyProfit.Add(sale.Profit)
			stats.DailySalesCount++
		}
	}
	return stats
}

// PeriodStart returns the first instant covered by an overview period, or nil
// for "all".
func PeriodStart(period string, now time.Time, loc *time.Location) (*time.Time, error) {
	local := now.In(orUTC(loc))
	var from time.Time
	switch period {
	case domain.OverviewToday:
		from = time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, local.Location())
	case domain.Overview7Days:
		from = now.Add(-7 * 24 * time.Hour)
	case domain.Overview30Days:
		from = now.Add(-30 * 24 * time.Hour)
	case domain.Overview90Days:
		from = now.Add(-90 * 24 * time.Hour)
	case domain.OverviewYear:
		from = time.Date(local.Year()-1, local.Month(), local.Day(), 0, 0, 0, 0, local.Location())
	case domain.OverviewAll:
		return nil, nil
	default:
		return nil, ErrUnknownPeriod
	}
	return &from, nil
}

// Overview builds the dashboard cards. Sales are expected newest-first.
// An empty period means "all".
func Overview(products []domain.Product, sales []domain.Sale, period string, now time.Time, loc *time.Location) (domain.Overview, error) {
	if period == "" {
		period = domain.OverviewAll
	}
	from, err := PeriodStart(period, now, loc)
	if err != nil {
		return domain.Overview{}, err
	}

	names := make(map[string]string, len(products))
	out := domain.Overview{
		Period:        period,
		From:          from,
		Revenue:       decimal.Zero,
		Profit:        decimal.Zero,
		TotalProducts: len(products),
		RecentSales:   []domain.RecentSale{},
	}
	for _, p := range products {
		names[p.ID] = p.Name
		out.TotalStock += p.CurrentStock
		switch {
		case p.CurrentStock == 0:
			out.OutOfStockCount++
		case p.CurrentStock > 0 && p.CurrentStock <= LowStockThreshold:
			out.LowStockCount++
		}
	}

	for _, sale := range sales {
		if from != nil && sale.Date.Before(*from) {
			continue
		}
		out.Revenue = out.Revenue.Add(sale.TotalValue)
		out.Profit = out.Profit.Add(sale.Profit)
		out.SalesCount++
		if len(out.RecentSales) < RecentSalesLimit {
			name, ok := names[sale.ProductID]
			if !ok {
				name = MissingProductLabel
			}
			out.RecentSales = append(out.RecentSales, domain.RecentSale{Sale: sale, ProductName: name})
		}
	}
	if out.Revenue.IsPositive() {
		out.MarginPercent = out.Profit.Div(out.Revenue).Mul(hundred).Round(2).InexactFloat64()
	}
	return out, nil
}

// StockDrift lists products whose stored stock disagrees with the stock
// implied by the ledgers.
func StockDrift(products []domain.Product, entries []domain.StockEntry, sales []domain.Sale) []domain.StockDrift {
	entered := make(map[string]int, len(products))
	for _, e := range entries {
		entered[e.ProductID] += e.Quantity
	}
	sold := make(map[string]int, len(products))
	for _, s := range sales {
		sold[s.ProductID] += s.Quantity
	}

	drifts := make([]domain.StockDrift, 0)
	for _, p := range products {
		expected := p.InitialStock + entered[p.ID] - sold[p.ID]
		if expected == p.CurrentStock {
			continue
		}
		drifts = append(drifts, domain.StockDrift{
			ProductID:     p.ID,
			ProductName:   p.Name,
			InitialStock:  p.InitialStock,
			EntriesQty:    entered[p.ID],
			SoldQty:       sold[p.ID],
			ExpectedStock: expected,
			CurrentStock:  p.CurrentStock,
			Delta:         p.CurrentStock - expected,
		})
	}
	slices.SortFunc(drifts, func(a, b domain.StockDrift) int {
		return strings.Compare(a.ProductID, b.ProductID)
	})
	return drifts
}

func orUTC(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}
