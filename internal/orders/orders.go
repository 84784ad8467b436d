package orders

import (
	"context"

	"github.com/kipsunya/storefront-go/internal/api"
	"github.com/kipsunya/storefront-go/internal/session"
)

// Service provides read access to the caller's order history. Checkout
// creates orders through the cart manager; this service is how they are
// retrieved afterwards. All reads are authenticated, and the backend
// scopes listings by role.
type Service struct {
	client  *api.Client
	session *session.Manager
}

// New creates an orders service bound to a session.
func New(client *api.Client, sess *session.Manager) *Service {
	return &Service{client: client, session: sess}
}

// ListOptions narrows an order listing.
type ListOptions struct {
	Page   int
	Status string
}

// List returns one page of the caller's orders, newest first.
func (s *Service) List(ctx context.Context, opts ListOptions) (*api.OrderPage, error) {
	var page *api.OrderPage
	err := s.session.WithToken(ctx, func(ctx context.Context, token string) error {
		var err error
		page, err = s.client.ListOrders(ctx, token, opts.Page, opts.Status)
		return err
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

// Get returns a single order by its id.
func (s *Service) Get(ctx context.Context, id string) (*api.Order, error) {
	var order *api.Order
	err := s.session.WithToken(ctx, func(ctx context.Context, token string) error {
		var err error
		order, err = s.client.GetOrder(ctx, token, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// Stats returns the caller's purchase summary.
func (s *Service) Stats(ctx context.Context) (*api.OrderStats, error) {
	var stats *api.OrderStats
	err := s.session.WithToken(ctx, func(ctx context.Context, token string) error {
		var err error
		stats, err = s.client.CustomerOrderStats(ctx, token)
		return err
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}
