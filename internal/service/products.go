package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"lojafacil/backend/internal/domain"
	"lojafacil/backend/internal/store"
	"lojafacil/backend/internal/xid"
)

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	ownerID, err := owner(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListProducts(ctx, ownerID)
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	ownerID, err := owner(ctx)
	if err != nil {
		return domain.Product{}, err
	}
	p, err := s.repo.GetProduct(ctx, ownerID, strings.TrimSpace(id))
	if err != nil {
		return domain.Product{}, err
	}
	return *p, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	ownerID, err := owner(ctx)
	if err != nil {
		return domain.Product{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.Product{}, fmt.Errorf("%w: name is required", store.ErrInvalidInput)
	}
	if err := validatePrice("costPrice", req.CostPrice); err != nil {
		return domain.Product{}, err
	}
	if err := validatePrice("salePrice", req.SalePrice); err != nil {
		return domain.Product{}, err
	}
	if err := validateQuantity("initialStock", req.InitialStock, 0); err != nil {
		return domain.Product{}, err
	}

	now := s.now()
	product := domain.Product{
		ID:           xid.New("prd"),
		Name:         req.Name,
		CostPrice:    req.CostPrice,
		SalePrice:    req.SalePrice,
		Profit:       req.SalePrice.Sub(req.CostPrice),
		InitialStock: req.InitialStock,
		CurrentStock: req.InitialStock,
		CreatedAt:    now,
		UpdatedAt:    now,
		UserID:       ownerID,
	}
	if req.Image != nil {
		product.ImageURL = s.uploadImage(ctx, *req.Image, product.ID)
	}

	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}
	s.logger.Info("product created",
		zap.String("owner", ownerID),
		zap.String("product", created.ID),
		zap.Int("initial_stock", created.InitialStock))
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	ownerID, err := owner(ctx)
	if err != nil {
		return domain.Product{}, err
	}
	id = strings.TrimSpace(id)

	changes := store.ProductChanges{
		CostPrice:    req.CostPrice,
		SalePrice:    req.SalePrice,
		CurrentStock: req.CurrentStock,
		UpdatedAt:    s.now(),
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, fmt.Errorf("%w: name is required", store.ErrInvalidInput)
		}
		changes.Name = &name
	}
	if req.CostPrice != nil {
		if err := validatePrice("costPrice", *req.CostPrice); err != nil {
			return domain.Product{}, err
		}
	}
	if req.SalePrice != nil {
		if err := validatePrice("salePrice", *req.SalePrice); err != nil {
			return domain.Product{}, err
		}
	}
	if req.CurrentStock != nil {
		if err := validateQuantity("currentStock", *req.CurrentStock, 0); err != nil {
			return domain.Product{}, err
		}
	}
	if req.Image != nil {
		if url := s.uploadImage(ctx, *req.Image, id); url != "" {
			changes.ImageURL = &url
		}
	}

	saved, err := s.repo.UpdateProduct(ctx, ownerID, id, changes)
	if err != nil {
		return domain.Product{}, err
	}
	if req.CurrentStock != nil {
		s.logger.Warn("stock set directly, ledger may show drift",
			zap.String("owner", ownerID),
			zap.String("product", saved.ID),
			zap.Int("to", saved.CurrentStock))
	}
	return *saved, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	ownerID, err := owner(ctx)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteProduct(ctx, ownerID, strings.TrimSpace(id)); err != nil {
		return err
	}
	s.logger.Info("product deleted", zap.String("owner", ownerID), zap.String("product", id))
	return nil
}

// uploadImage never fails the calling operation; a failed upload yields "".
func (s *Service) uploadImage(ctx context.Context, image domain.ImageUpload, productID string) string {
	if len(image.Content) == 0 {
		return ""
	}
	url, err := s.uploader.Upload(ctx, image)
	if err != nil {
		s.logger.Warn("image upload failed, saving product without image",
			zap.String("product", productID),
			zap.String("file", image.FileName),
			zap.Error(err))
		return ""
	}
	return url
}

// Prices are stored as NUMERIC(14,2): at most two decimal places and twelve
// integer digits.
const (
	priceScale     = 2
	priceMaxDigits = 12
)

var maxPrice = decimal.New(1, priceMaxDigits)

// validatePrice checks the exponent before comparing values, since
// comparisons rescale and a huge exponent makes that arbitrarily slow.
func validatePrice(field string, price decimal.Decimal) error {
	if price.IsNegative() {
		return fmt.Errorf("%w: %s must not be negative", store.ErrInvalidInput, field)
	}
	if price.Exponent() >= priceMaxDigits || price.Exponent() < -20 {
		return fmt.Errorf("%w: %s is out of range", store.ErrInvalidInput, field)
	}
	if !price.LessThan(maxPrice) {
		return fmt.Errorf("%w: %s must be below %s", store.ErrInvalidInput, field, maxPrice)
	}
	if !price.Equal(price.Truncate(priceScale)) {
		return fmt.Errorf("%w: %s must have at most %d decimal places", store.ErrInvalidInput, field, priceScale)
	}
	return nil
}

func validateQuantity(field string, qty int, min int) error {
	if qty < min {
		return fmt.Errorf("%w: %s must be at least %d", store.ErrInvalidInput, field, min)
	}
	if qty > store.MaxQuantity {
		return fmt.Errorf("%w: %s must not exceed %d", store.ErrInvalidInput, field, store.MaxQuantity)
	}
	return nil
}
