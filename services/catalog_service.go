package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/yeremiapane/mozoqr/models"
	"gorm.io/gorm"
)

// CatalogService reads the menu and lets staff adjust products.
type CatalogService struct {
	db *gorm.DB
}

func NewCatalogService(db *gorm.DB) *CatalogService {
	return &CatalogService{db: db}
}

// Menu lists the restaurant's categories with their orderable products.
// Available products without a category are returned separately.
type Menu struct {
	Categories    []models.Category `json:"categories"`
	Uncategorized []models.Product  `json:"uncategorized"`
}

func (s *CatalogService) Menu(ctx context.Context, restaurantID uint) (*Menu, error) {
	db := s.db.WithContext(ctx)
	var menu Menu
	err := db.Where("restaurant_id = ?", restaurantID).
		Preload("Products", func(q *gorm.DB) *gorm.DB {
			return q.Where("available = ?", true).Order("name ASC")
		}).
		Order("name ASC").
		Find(&menu.Categories).Error
	if err != nil {
		return nil, persistence("load menu", err)
	}
	err = db.Where("restaurant_id = ? AND category_id IS NULL AND available = ?", restaurantID, true).
		Order("name ASC").
		Find(&menu.Uncategorized).Error
	if err != nil {
		return nil, persistence("load menu", err)
	}
	return &menu, nil
}

// ProductPatch holds the fields staff may change. Nil leaves a field as is.
type ProductPatch struct {
	Price     *decimal.Decimal
	Available *bool
}

// UpdateProduct applies patch to a product of the tenant. Existing order
// items keep the price they were placed with.
func (s *CatalogService) UpdateProduct(ctx context.Context, tenantID, productID uint, patch ProductPatch) (*models.Product, error) {
	if patch.Price == nil && patch.Available == nil {
		return nil, fmt.Errorf("%w: nothing to update", ErrValidation)
	}
	if patch.Price != nil && patch.Price.IsNegative() {
		return nil, fmt.Errorf("%w: price must not be negative", ErrValidation)
	}

	var product models.Product
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.First(&product, productID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("product %d: %w", productID, ErrProductNotFound)
		}
		if err != nil {
			return persistence("load product", err)
		}
		if product.RestaurantID != tenantID {
			return fmt.Errorf("product %d: %w", productID, ErrCrossTenantAccess)
		}

		updates := map[string]interface{}{}
		if patch.Price != nil {
			product.Price = *patch.Price
			updates["price"] = product.Price
		}
		if patch.Available != nil {
			product.Available = *patch.Available
			updates["available"] = product.Available
		}
		if err := tx.Model(&product).Updates(updates).Error; err != nil {
			return persistence("update product", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &product, nil
}
