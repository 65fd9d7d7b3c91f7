package service

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"lojafacil/backend/internal/domain"
	"lojafacil/backend/internal/store"
	"lojafacil/backend/internal/xid"
)

func (s *Service) RecordEntry(ctx context.Context, req domain.StockEntryRequest) (_ domain.StockEntry, err error) {
	ownerID, err := owner(ctx)
	if err != nil {
		return domain.StockEntry{}, err
	}

	req.ProductID = strings.TrimSpace(req.ProductID)
	if req.ProductID == "" {
		return domain.StockEntry{}, fmt.Errorf("%w: productId is required", store.ErrInvalidInput)
	}
	if err := validateQuantity("quantity", req.Quantity, 1); err != nil {
		return domain.StockEntry{}, err
	}

	ctx, span := s.tracer.Start(ctx, "stock.RecordEntry", trace.WithAttributes(
		attribute.String("product.id", req.ProductID),
		attribute.Int("stock.quantity", req.Quantity),
	))
	defer func() { endSpan(span, err) }()

	entry, product, err := s.repo.AppendStockEntry(ctx, domain.StockEntry{
		ID:           xid.New("stk"),
		ProductID:    req.ProductID,
		Quantity:     req.Quantity,
		ReceivedBy:   strings.TrimSpace(req.ReceivedBy),
		ReceivedFrom: strings.TrimSpace(req.ReceivedFrom),
		Date:         s.now(),
		UserID:       ownerID,
	})
	if err != nil {
		return domain.StockEntry{}, err
	}
	span.SetAttributes(attribute.Int("stock.current", product.CurrentStock))

	s.logger.Info("stock entry recorded",
		zap.String("owner", ownerID),
		zap.String("product", entry.ProductID),
		zap.Int("quantity", entry.Quantity),
		zap.Int("current_stock", product.CurrentStock))
	return *entry, nil
}

func (s *Service) ListEntries(ctx context.Context) ([]domain.StockEntry, error) {
	ownerID, err := owner(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListStockEntries(ctx, ownerID, "")
}

func (s *Service) ListEntriesByProduct(ctx context.Context, productID string) ([]domain.StockEntry, error) {
	ownerID, err := owner(ctx)
	if err != nil {
		return nil, err
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, fmt.Errorf("%w: productId is required", store.ErrInvalidInput)
	}
	return s.repo.ListStockEntries(ctx, ownerID, productID)
}
