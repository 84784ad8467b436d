package catalog

import (
	"context"

	"github.com/kipsunya/storefront-go/internal/api"
)

// Service provides read-only access to the public product catalog. The
// endpoints need no authentication; responses go through the client's
// caching transport so repeat listings are served from cache while the
// backend's Cache-Control headers allow it.
type Service struct {
	client *api.Client
}

// New creates a catalog service.
func New(client *api.Client) *Service {
	return &Service{client: client}
}

// ListOptions narrows a catalog listing.
type ListOptions struct {
	Page   int
	Search string
}

// Products returns one page of the catalog.
func (s *Service) Products(ctx context.Context, opts ListOptions) (*api.ProductPage, error) {
	return s.client.ListProducts(ctx, opts.Page, opts.Search)
}

// Product returns a single catalog entry.
func (s *Service) Product(ctx context.Context, id int64) (*api.Product, error) {
	return s.client.GetProduct(ctx, id)
}

// Categories lists the product categories.
func (s *Service) Categories(ctx context.Context) ([]api.Category, error) {
	return s.client.Categories(ctx)
}
