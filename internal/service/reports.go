package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"lojafacil/backend/internal/domain"
	"lojafacil/backend/internal/report"
	"lojafacil/backend/internal/store"
)

func (s *Service) PaymentMethodReport(ctx context.Context) ([]domain.PaymentMethodReport, error) {
	sales, err := s.ListSales(ctx)
	if err != nil {
		return nil, err
	}
	return report.PaymentMethods(sales), nil
}

func (s *Service) ProductPerformanceReport(ctx context.Context) ([]domain.ProductPerformance, error) {
	ownerID, err := owner(ctx)
	if err != nil {
		return nil, err
	}
	sales, err := s.repo.ListSales(ctx, ownerID, "")
	if err != nil {
		return nil, err
	}
	products, err := s.repo.ListProducts(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return report.ProductPerformance(sales, products), nil
}

func (s *Service) PeriodReport(ctx context.Context, days int, loc *time.Location) ([]domain.PeriodReport, error) {
	sales, err := s.ListSales(ctx)
	if err != nil {
		return nil, err
	}
	return report.Period(sales, days, s.now(), loc), nil
}

func (s *Service) StockReport(ctx context.Context) (domain.StockReport, error) {
	ownerID, err := owner(ctx)
	if err != nil {
		return domain.StockReport{}, err
	}
	products, err := s.repo.ListProducts(ctx, ownerID)
	if err != nil {
		return domain.StockReport{}, err
	}
	entries, err := s.repo.ListStockEntries(ctx, ownerID, "")
	if err != nil {
		return domain.StockReport{}, err
	}
	return report.Stock(products, entries), nil
}

func (s *Service) Overview(ctx context.Context, period string, loc *time.Location) (domain.Overview, error) {
	ownerID, err := owner(ctx)
	if err != nil {
		return domain.Overview{}, err
	}
	products, err := s.repo.ListProducts(ctx, ownerID)
	if err != nil {
		return domain.Overview{}, err
	}
	sales, err := s.repo.ListSales(ctx, ownerID, "")
	if err != nil {
		return domain.Overview{}, err
	}

	overview, err := report.Overview(products, sales, period, s.now(), loc)
	if errors.Is(err, report.ErrUnknownPeriod) {
		return domain.Overview{}, fmt.Errorf("%w: unknown period %q", store.ErrInvalidInput, period)
	}
	return overview, err
}

func (s *Service) StockDrift(ctx context.Context) ([]domain.StockDrift, error) {
	ownerID, err := owner(ctx)
	if err != nil {
		return nil, err
	}
	return s.stockDriftFor(ctx, ownerID)
}

func (s *Service) stockDriftFor(ctx context.Context, ownerID string) ([]domain.StockDrift, error) {
	products, err := s.repo.ListProducts(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	entries, err := s.repo.ListStockEntries(ctx, ownerID, "")
	if err != nil {
		return nil, err
	}
	sales, err := s.repo.ListSales(ctx, ownerID, "")
	if err != nil {
		return nil, err
	}
	return report.StockDrift(products, entries, sales), nil
}

// AuditStockDrift checks every owner's stock against their ledgers and logs
// each drifted product. It returns the number of drifted products found.
// Failures for one owner do not stop the audit of the others.
func (s *Service) AuditStockDrift(ctx context.Context) (int, error) {
	owners, err := s.repo.ListUserIDs(ctx)
	if err != nil {
		return 0, err
	}

	drifted := 0
	var errs []error
	for _, ownerID := range owners {
		if err := ctx.Err(); err != nil {
			return drifted, err
		}
		drifts, err := s.stockDriftFor(ctx, ownerID)
		if err != nil {
			errs = append(errs, fmt.Errorf("owner %s: %w", ownerID, err))
			continue
		}
		for _, d := range drifts {
			s.logger.Warn("stock drift detected",
				zap.String("owner", ownerID),
				zap.String("product", d.ProductID),
				zap.Int("expected", d.ExpectedStock),
				zap.Int("current", d.CurrentStock),
				zap.Int("delta", d.Delta))
		}
		drifted += len(drifts)
	}
	return drifted, errors.Join(errs...)
}
