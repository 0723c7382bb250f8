// Package catalog loads the product collection displayed by the boutique.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"finitefield.org/saro-web/internal/boutique"
)

const defaultCurrency = "EUR"

var (
	// ErrProductNotFound is returned when a product id is not in the snapshot.
	ErrProductNotFound = errors.New("product not found")
	// ErrDuplicateProduct is returned when two records share an id.
	ErrDuplicateProduct = errors.New("duplicate product id")
)

// Source exposes an ordered collection of products.
type Source interface {
	Products(ctx context.Context) ([]boutique.Product, error)
}

// SourceFunc adapts ordinary functions to Source.
type SourceFunc func(context.Context) ([]boutique.Product, error)

// Products calls f.
func (f SourceFunc) Products(ctx context.Context) ([]boutique.Product, error) {
	return f(ctx)
}

// record is the storage shape of a product shared by every source.
type record struct {
	ID          string   `yaml:"id" firestore:"id" validate:"required"`
	Name        string   `yaml:"name" firestore:"name" validate:"required"`
	Price       float64  `yaml:"price" firestore:"price" validate:"gte=0"`
	Currency    string   `yaml:"currency" firestore:"currency" validate:"omitempty,len=3,alpha"`
	Category    string   `yaml:"category" firestore:"category" validate:"required"`
	Images      []string `yaml:"images" firestore:"images" validate:"min=1,dive,required"`
	Description string   `yaml:"description" firestore:"description"`
	Position    int      `yaml:"-" firestore:"position"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// toProducts validates records in order and converts them.
func toProducts(records []record) ([]boutique.Product, error) {
	seen := make(map[string]struct{}, len(records))
	out := make([]boutique.Product, 0, len(records))
	for i, rec := range records {
		rec.ID = strings.TrimSpace(rec.ID)
		rec.Category = strings.TrimSpace(rec.Category)
		if err := validate.Struct(rec); err != nil {
			return nil, fmt.Errorf("catalog: product #%d (id=%q): %w", i, rec.ID, err)
		}
		if _, dup := seen[rec.ID]; dup {
			return nil, fmt.Errorf("catalog: product #%d: %w %q", i, ErrDuplicateProduct, rec.ID)
		}
		seen[rec.ID] = struct{}{}
		currency := strings.ToUpper(strings.TrimSpace(rec.Currency))
		if currency == "" {
			currency = defaultCurrency
		}
		out = append(out, boutique.Product{
			ID:          rec.ID,
			Name:        strings.TrimSpace(rec.Name),
			Price:       rec.Price,
			Currency:    currency,
			Category:    rec.Category,
			Images:      append([]string(nil), rec.Images...),
			Description: rec.Description,
		})
	}
	return out, nil
}

// Snapshot is the immutable, pre-loaded product collection.
type Snapshot struct {
	products   []boutique.Product
	categories []string
	byID       map[string]int
}

// NewSnapshot indexes products. The slice must not be modified afterwards.
func NewSnapshot(products []boutique.Product) *Snapshot {
	byID := make(map[string]int, len(products))
	for i, p := range products {
		byID[p.ID] = i
	}
	return &Snapshot{
		products:   products,
		categories: boutique.Categories(products),
		byID:       byID,
	}
}

// Load reads the source once.
func Load(ctx context.Context, src Source) (*Snapshot, error) {
	if src == nil {
		return nil, errors.New("catalog: source is required")
	}
	products, err := src.Products(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog: load: %w", err)
	}
	return NewSnapshot(products), nil
}

// Products returns the ordered collection. Callers must treat it as read-only.
func (s *Snapshot) Products() []boutique.Product { return s.products }

// Categories returns the sentinel followed by the distinct categories.
func (s *Snapshot) Categories() []string { return s.categories }

// Len returns the number of products.
func (s *Snapshot) Len() int { return len(s.products) }

// Product looks a product up by id.
func (s *Snapshot) Product(id string) (boutique.Product, error) {
	i, ok := s.byID[strings.TrimSpace(id)]
	if !ok {
		return boutique.Product{}, ErrProductNotFound
	}
	return s.products[i], nil
}
