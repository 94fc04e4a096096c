package catalog

import (
	"context"
	"errors"

	"github.com/fjod/go_cart/giftcart-service/internal/domain"
)

var ErrProductNotFound = errors.New("product not found")

type Catalog interface {
	GetAllProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id int64) (domain.Product, error)
}

var defaultProducts = []domain.Product{
	{ID: 1, Name: "Laptop", Price: 500},
	{ID: 2, Name: "Smartphone", Price: 300},
	{ID: 3, Name: "Headphones", Price: 100},
	{ID: 4, Name: "Smartwatch", Price: 150},
}

// Static is the fixed in-process catalog.
type Static struct {
	products []domain.Product
}

func NewStatic() *Static {
	products := make([]domain.Product, len(defaultProducts))
	copy(products, defaultProducts)
	return &Static{products: products}
}

func (s *Static) GetAllProducts(context.Context) ([]domain.Product, error) {
	out := make([]domain.Product, len(s.products))
	copy(out, s.products)
	return out, nil
}

func (s *Static) GetProduct(_ context.Context, id int64) (domain.Product, error) {
	for _, p := range s.products {
		if p.ID == id {
			return p, nil
		}
	}
	return domain.Product{}, ErrProductNotFound
}
