package repositories

import (
	"context"
	"errors"
	"fmt"

	"cardapio/internal/models"

	"gorm.io/gorm"
)

// GORMProductRepository is a GORM implementation of ProductRepository.
type GORMProductRepository struct {
	db *gorm.DB
}

// NewGORMProductRepository creates a new instance of GORMProductRepository.
func NewGORMProductRepository(db *gorm.DB) *GORMProductRepository {
	return &GORMProductRepository{
		db: db,
	}
}

func (r *GORMProductRepository) withOptions(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("OptionGroups.Options")
}

// ListByRestaurant retrieves a restaurant's products, option groups included.
func (r *GORMProductRepository) ListByRestaurant(ctx context.Context, restaurantID string, onlyAvailable bool) ([]models.Product, error) {
	var products []models.Product
	q := r.withOptions(ctx).Where("restaurant_id = ?", restaurantID)
	if onlyAvailable {
		q = q.Where("available = ?", true)
	}
	if err := q.Order("name").Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to list products for restaurant %s: %w", restaurantID, err)
	}
	return products, nil
}

// GetByID retrieves a single product by its ID from the database.
func (r *GORMProductRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	if err := r.withOptions(ctx).First(&product, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("product with ID %s not found: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get product by ID %s: %w", id, err)
	}
	return &product, nil
}

// Create creates a new product and its option groups in the database.
func (r *GORMProductRepository) Create(ctx context.Context, product *models.Product) error {
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

// Update replaces a product, including its option groups.
func (r *GORMProductRepository) Update(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Product
		if err := tx.First(&existing, "id = ?", product.ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("product with ID %s not found for update: %w", product.ID, ErrNotFound)
			}
			return fmt.Errorf("failed to update product: %w", err)
		}
		if err := deleteOptionGroups(tx, product.ID); err != nil {
			return err
		}
		product.CreatedAt = existing.CreatedAt
		for i := range product.OptionGroups {
			product.OptionGroups[i].ID = ""
			product.OptionGroups[i].ProductID = product.ID
			for j := range product.OptionGroups[i].Options {
				product.OptionGroups[i].Options[j].ID = ""
				product.OptionGroups[i].Options[j].OptionGroupID = ""
			}
		}
		if err := tx.Save(product).Error; err != nil {
			return fmt.Errorf("failed to update product: %w", err)
		}
		return nil
	})
}

// Delete deletes a product and its option groups.
func (r *GORMProductRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteOptionGroups(tx, id); err != nil {
			return err
		}
		res := tx.Delete(&models.Product{}, "id = ?", id)
		if res.Error != nil {
			return fmt.Errorf("failed to delete product: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("product with ID %s not found for deletion: %w", id, ErrNotFound)
		}
		return nil
	})
}

func deleteOptionGroups(tx *gorm.DB, productID string) error {
	groups := tx.Model(&models.OptionGroup{}).Select("id").Where("product_id = ?", productID)
	if err := tx.Where("option_group_id IN (?)", groups).Delete(&models.Option{}).Error; err != nil {
		return fmt.Errorf("failed to delete options of product %s: %w", productID, err)
	}
	if err := tx.Where("product_id = ?", productID).Delete(&models.OptionGroup{}).Error; err != nil {
		return fmt.Errorf("failed to delete option groups of product %s: %w", productID, err)
	}
	return nil
}
