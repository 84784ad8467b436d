package cart

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/kipsunya/storefront-go/internal/api"
	"github.com/kipsunya/storefront-go/internal/session"
)

// ErrInvalidQuantity is returned for quantities below 1. The rejection is
// local: no network call is made and no state is mutated.
var ErrInvalidQuantity = errors.New("quantity must be at least 1")

// Manager owns the shopping cart: line items, derived totals, and
// synchronization with the backend cart service. Mutations are optimistic
// with snapshot rollback on failure; the server's cart summary is the
// source of truth and supersedes local state on every confirmed mutation.
type Manager struct {
	client  *api.Client
	session *session.Manager

	mu sync.Mutex
	// seq identifies the latest issued state-writing operation. A
	// mutation's reconciliation or rollback applies only while it is
	// still the latest one; responses from superseded mutations are
	// dropped instead of overwriting newer state.
	seq           uint64
	state         State
	sessionAuthed bool

	handlerMu sync.Mutex
	handlers  []func(State)
}

// NewManager creates a cart manager bound to a session. The cart is
// fetched when the session becomes authenticated and emptied when it
// becomes anonymous.
func NewManager(client *api.Client, sess *session.Manager) *Manager {
	m := &Manager{
		client:  client,
		session: sess,
	}
	sess.OnChange(m.handleSessionEvent)
	return m
}

func (m *Manager) handleSessionEvent(ev session.Event) {
	switch ev.State {
	case session.StateAuthenticated:
		m.mu.Lock()
		first := !m.sessionAuthed
		m.sessionAuthed = true
		m.mu.Unlock()
		if first {
			if err := m.Fetch(context.Background()); err != nil {
				log.Warn().Err(err).Msg("cart fetch after login failed")
			}
		}
	case session.StateAnonymous:
		m.mu.Lock()
		m.sessionAuthed = false
		m.mu.Unlock()
		m.resetLocal()
	}
}

// OnChange registers a handler called after every cart state change.
func (m *Manager) OnChange(fn func(State)) {
	m.handlerMu.Lock()
	defer m.handlerMu.Unlock()
	m.handlers = append(m.handlers, fn)
}

func (m *Manager) notify(s State) {
	m.handlerMu.Lock()
	handlers := make([]func(State), len(m.handlers))
	copy(handlers, m.handlers)
	m.handlerMu.Unlock()

	for _, fn := range handlers {
		fn(s)
	}
}

// State returns a copy of the current cart state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.state
	items := make([]api.CartItem, len(s.Items))
	copy(items, s.Items)
	s.Items = items
	return s
}

// ProductQuantity returns the quantity of a product currently in the
// cart, or zero. Pure read, no network effect.
func (m *Manager) ProductQuantity(productID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, item := range m.state.Items {
		if item.ProductID == productID {
			return item.Quantity
		}
	}
	return 0
}

// IsInCart reports whether a product has a line in the cart.
func (m *Manager) IsInCart(productID int64) bool {
	return m.ProductQuantity(productID) > 0
}

// Fetch pulls the authoritative cart and replaces local state entirely.
// Anonymous sessions get whatever the backend serves them, typically an
// empty cart.
func (m *Manager) Fetch(ctx context.Context) error {
	var summary *api.CartSummary
	var err error

	if m.session.IsAuthenticated() {
		err = m.session.WithToken(ctx, func(ctx context.Context, token string) error {
			summary, err = m.client.GetCart(ctx, token)
			return err
		})
	} else {
		summary, err = m.client.GetCart(ctx, "")
	}
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.seq++
	m.state = Apply(m.state, SetCart{Summary: *summary})
	s := m.state
	m.mu.Unlock()

	m.notify(s)
	return nil
}

// Add merges quantity of a product into the cart. The local merge is
// optimistic; the server's response supersedes it on success, and on
// failure the optimistic change is rolled back so no ghost line remains.
func (m *Manager) Add(ctx context.Context, productID int64, quantity int) (string, error) {
	if quantity < 1 {
		return "", ErrInvalidQuantity
	}

	// The unit price of a product not yet in the cart is unknown until
	// the server responds; reconciliation fills it in.
	seq, snapshot := m.beginMutation(AddItem{Item: api.CartItem{
		ProductID: productID,
		Quantity:  quantity,
	}})

	var resp *api.CartMutationResponse
	err := m.session.WithToken(ctx, func(ctx context.Context, token string) error {
		var err error
		resp, err = m.client.AddToCart(ctx, token, productID, quantity)
		return err
	})
	if err != nil {
		m.rollback(seq, snapshot)
		return "", err
	}

	m.reconcile(seq, resp.CartSummary)
	return resp.Message, nil
}

// UpdateQuantity replaces the quantity of a cart line. Quantities below 1
// are rejected locally without a network call.
func (m *Manager) UpdateQuantity(ctx context.Context, itemID string, quantity int) (string, error) {
	if quantity < 1 {
		return "", ErrInvalidQuantity
	}

	seq, snapshot := m.beginMutation(UpdateQuantity{ItemID: itemID, Quantity: quantity})

	var resp *api.CartMutationResponse
	err := m.session.WithToken(ctx, func(ctx context.Context, token string) error {
		var err error
		resp, err = m.client.UpdateCartItem(ctx, token, itemID, quantity)
		return err
	})
	if err != nil {
		m.rollback(seq, snapshot)
		return "", err
	}

	m.reconcile(seq, resp.CartSummary)
	return resp.Message, nil
}

// Remove deletes a cart line. On failure the removed line is restored.
func (m *Manager) Remove(ctx context.Context, itemID string) (string, error) {
	seq, snapshot := m.beginMutation(RemoveItem{ItemID: itemID})

	var resp *api.CartMutationResponse
	err := m.session.WithToken(ctx, func(ctx context.Context, token string) error {
		var err error
		resp, err = m.client.RemoveCartItem(ctx, token, itemID)
		return err
	})
	if err != nil {
		m.rollback(seq, snapshot)
		return "", err
	}

	m.reconcile(seq, resp.CartSummary)
	return resp.Message, nil
}

// Clear empties the cart. No optimistic update: local state is emptied
// only on confirmed success.
func (m *Manager) Clear(ctx context.Context) (string, error) {
	var resp *api.CartMutationResponse
	err := m.session.WithToken(ctx, func(ctx context.Context, token string) error {
		var err error
		resp, err = m.client.ClearCart(ctx, token)
		return err
	})
	if err != nil {
		return "", err
	}

	m.resetLocal()
	return resp.Message, nil
}

// Checkout converts the cart into an order. Local state is emptied only
// after the backend confirms the order.
func (m *Manager) Checkout(ctx context.Context, req api.CheckoutRequest) (*api.Order, error) {
	var resp *api.CheckoutResponse
	err := m.session.WithToken(ctx, func(ctx context.Context, token string) error {
		var err error
		resp, err = m.client.Checkout(ctx, token, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	m.resetLocal()
	return resp.Order, nil
}

// beginMutation applies an optimistic action and returns the mutation's
// sequence number plus the pre-mutation snapshot for rollback.
func (m *Manager) beginMutation(action Action) (uint64, State) {
	m.mu.Lock()
	m.seq++
	seq := m.seq
	snapshot := m.state
	m.state = Apply(m.state, action)
	s := m.state
	m.mu.Unlock()

	m.notify(s)
	return seq, snapshot
}

// reconcile replaces local state with the server summary, unless a newer
// operation has superseded this mutation.
func (m *Manager) reconcile(seq uint64, summary *api.CartSummary) {
	if summary == nil {
		return
	}

	m.mu.Lock()
	if seq != m.seq {
		m.mu.Unlock()
		log.Debug().Uint64("seq", seq).Msg("dropping stale cart reconciliation")
		return
	}
	m.state = Apply(m.state, SetCart{Summary: *summary})
	s := m.state
	m.mu.Unlock()

	m.notify(s)
}

// rollback restores the pre-mutation snapshot after a failed mutation,
// unless a newer operation has superseded it.
func (m *Manager) rollback(seq uint64, snapshot State) {
	m.mu.Lock()
	if seq != m.seq {
		m.mu.Unlock()
		log.Debug().Uint64("seq", seq).Msg("dropping stale cart rollback")
		return
	}
	m.state = snapshot
	s := m.state
	m.mu.Unlock()

	m.notify(s)
}

func (m *Manager) resetLocal() {
	m.mu.Lock()
	m.seq++
	m.state = Apply(m.state, Clear{})
	s := m.state
	m.mu.Unlock()

	m.notify(s)
}
