package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"lojafacil/backend/internal/domain"
	"lojafacil/backend/internal/report"
	"lojafacil/backend/internal/store"
	"lojafacil/backend/internal/xid"
)

// RecordSale prices the sale from the product as stored at call time and
// decrements its stock. Selling more than is on hand fails with
// store.ErrInsufficientStock.
func (s *Service) RecordSale(ctx context.Context, req domain.SaleRequest) (_ domain.Sale, err error) {
	ownerID, err := owner(ctx)
	if err != nil {
		return domain.Sale{}, err
	}

	req.ProductID = strings.TrimSpace(req.ProductID)
	req.PaymentMethod = domain.PaymentMethod(strings.ToLower(strings.TrimSpace(string(req.PaymentMethod))))
	if req.ProductID == "" {
		return domain.Sale{}, fmt.Errorf("%w: productId is required", store.ErrInvalidInput)
	}
	if err := validateQuantity("quantity", req.Quantity, 1); err != nil {
		return domain.Sale{}, err
	}
	if !req.PaymentMethod.Valid() {
		return domain.Sale{}, fmt.Errorf("%w: unsupported payment method %q", store.ErrInvalidInput, req.PaymentMethod)
	}

	ctx, span := s.tracer.Start(ctx, "sales.RecordSale", trace.WithAttributes(
		attribute.String("product.id", req.ProductID),
		attribute.Int("sale.quantity", req.Quantity),
		attribute.String("sale.payment_method", string(req.PaymentMethod)),
	))
	defer func() { endSpan(span, err) }()

	sale, product, err := s.repo.AppendSale(ctx, domain.Sale{
		ID:            xid.New("sale"),
		ProductID:     req.ProductID,
		Quantity:      req.Quantity,
		PaymentMethod: req.PaymentMethod,
		Date:          s.now(),
		UserID:        ownerID,
	})
	if err != nil {
		return domain.Sale{}, err
	}
	span.SetAttributes(
		attribute.String("sale.total", sale.TotalValue.String()),
		attribute.Int("stock.current", product.CurrentStock),
	)

	s.logger.Info("sale recorded",
		zap.String("owner", ownerID),
		zap.String("sale", sale.ID),
		zap.String("product", sale.ProductID),
		zap.Int("quantity", sale.Quantity),
		zap.String("total", sale.TotalValue.StringFixed(2)),
		zap.Int("current_stock", product.CurrentStock))
	return *sale, nil
}

func (s *Service) ListSales(ctx context.Context) ([]domain.Sale, error) {
	ownerID, err := owner(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListSales(ctx, ownerID, "")
}

func (s *Service) ListSalesByProduct(ctx context.Context, productID string) ([]domain.Sale, error) {
	ownerID, err := owner(ctx)
	if err != nil {
		return nil, err
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, fmt.Errorf("%w: productId is required", store.ErrInvalidInput)
	}
	return s.repo.ListSales(ctx, ownerID, productID)
}

func (s *Service) SalesStats(ctx context.Context, loc *time.Location) (domain.SalesStats, error) {
	sales, err := s.ListSales(ctx)
	if err != nil {
		return domain.SalesStats{}, err
	}
	return report.SalesStats(sales, s.now(), loc), nil
}
