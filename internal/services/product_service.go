package services

import (
	"context"
	"errors"
	"fmt"

	"cardapio/internal/models"
	"cardapio/internal/repositories"
)

// ErrInvalidProduct is wrapped by catalogue rule violations.
var ErrInvalidProduct = errors.New("invalid product")

// ProductService handles business logic related to the menu catalogue.
type ProductService struct {
	products   repositories.ProductRepository
	categories repositories.CategoryRepository
}

// NewProductService creates a new ProductService.
func NewProductService(products repositories.ProductRepository, categories repositories.CategoryRepository) *ProductService {
	return &ProductService{
		products:   products,
		categories: categories,
	}
}

// GetMenu returns the public menu: ordered categories and available products.
func (s *ProductService) GetMenu(ctx context.Context, restaurantID string) (*models.Menu, error) {
	categories, err := s.categories.ListByRestaurant(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	products, err := s.products.ListByRestaurant(ctx, restaurantID, true)
	if err != nil {
		return nil, err
	}
	return &models.Menu{
		RestaurantID: restaurantID,
		Categories:   categories,
		Products:     products,
	}, nil
}

// GetAllProducts retrieves every product of a restaurant, unavailable ones included.
func (s *ProductService) GetAllProducts(ctx context.Context, restaurantID string) ([]models.Product, error) {
	return s.products.ListByRestaurant(ctx, restaurantID, false)
}

// GetProductByID retrieves a single product by its ID.
func (s *ProductService) GetProductByID(ctx context.Context, id string) (*models.Product, error) {
	return s.products.GetByID(ctx, id)
}

// CreateProduct creates a new product.
func (s *ProductService) CreateProduct(ctx context.Context, product *models.Product) error {
	if err := s.checkProduct(ctx, product); err != nil {
		return err
	}
	return s.products.Create(ctx, product)
}

// UpdateProduct updates an existing product.
func (s *ProductService) UpdateProduct(ctx context.Context, product *models.Product) error {
	if err := s.checkProduct(ctx, product); err != nil {
		return err
	}
	return s.products.Update(ctx, product)
}

// DeleteProduct deletes a product by its ID.
func (s *ProductService) DeleteProduct(ctx context.Context, id string) error {
	return s.products.Delete(ctx, id)
}

func (s *ProductService) checkProduct(ctx context.Context, p *models.Product) error {
	if p.CategoryID != "" {
		category, err := s.categories.GetByID(ctx, p.CategoryID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return fmt.Errorf("%w: category %s does not exist", ErrInvalidProduct, p.CategoryID)
			}
			return err
		}
		if category.RestaurantID != p.RestaurantID {
			return fmt.Errorf("%w: category %s belongs to another restaurant", ErrInvalidProduct, p.CategoryID)
		}
	}

	seen := make(map[string]bool, len(p.OptionGroups))
	for _, g := range p.OptionGroups {
		if seen[g.Name] {
			return fmt.Errorf("%w: duplicate option group %q", ErrInvalidProduct, g.Name)
		}
		seen[g.Name] = true
		if len(g.Options) == 0 {
			return fmt.Errorf("%w: option group %q has no options", ErrInvalidProduct, g.Name)
		}
		if g.MaxChoices > 0 && g.MinChoices > g.MaxChoices {
			return fmt.Errorf("%w: option group %q min_choices exceeds max_choices", ErrInvalidProduct, g.Name)
		}
		if !g.MultipleChoice && g.MinChoices > 1 {
			return fmt.Errorf("%w: single-choice group %q cannot require more than one option", ErrInvalidProduct, g.Name)
		}
	}
	return nil
}

// GetCategories lists a restaurant's categories in menu order.
func (s *ProductService) GetCategories(ctx context.Context, restaurantID string) ([]models.Category, error) {
	return s.categories.ListByRestaurant(ctx, restaurantID)
}

// CreateCategory creates a new category.
func (s *ProductService) CreateCategory(ctx context.Context, category *models.Category) error {
	return s.categories.Create(ctx, category)
}

// UpdateCategory renames or repositions a category.
func (s *ProductService) UpdateCategory(ctx context.Context, category *models.Category) error {
	return s.categories.Update(ctx, category)
}

// DeleteCategory deletes a category by its ID.
func (s *ProductService) DeleteCategory(ctx context.Context, id string) error {
	return s.categories.Delete(ctx, id)
}
