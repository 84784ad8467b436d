package cart

import (
	"time"

	"github.com/kipsunya/storefront-go/internal/api"
)

// TaxRate is the VAT applied on top of the subtotal.
const TaxRate = 0.16

// State is the local cart state. The aggregate fields are always derived
// from Items; they are never mutated independently.
type State struct {
	Items       []api.CartItem
	TotalItems  int
	Subtotal    float64
	TotalAmount float64
	LastUpdated time.Time
}

// Totals breaks the grand total into its parts. Shipping is a fixed
// zero-fee policy, not a computed value.
type Totals struct {
	Subtotal    float64
	TaxAmount   float64
	ShippingFee float64
	Total       float64
}

// Totals recomputes the checkout totals from the current state.
func (s State) Totals() Totals {
	tax := s.Subtotal * TaxRate
	return Totals{
		Subtotal:    s.Subtotal,
		TaxAmount:   tax,
		ShippingFee: 0,
		Total:       s.Subtotal + tax,
	}
}

// Action is a cart state transition. Apply is pure: it never touches the
// network and never mutates its input.
type Action interface {
	isAction()
}

// SetCart replaces local state with an authoritative server summary.
type SetCart struct {
	Summary api.CartSummary
}

// AddItem merges a line into the cart: an existing line for the same
// product has its quantity incremented, otherwise the line is appended.
type AddItem struct {
	Item api.CartItem
}

// UpdateQuantity replaces the quantity of the line with the given id.
type UpdateQuantity struct {
	ItemID   string
	Quantity int
}

// RemoveItem deletes the line with the given id.
type RemoveItem struct {
	ItemID string
}

// Clear empties the cart.
type Clear struct{}

func (SetCart) isAction()        {}
func (AddItem) isAction()        {}
func (UpdateQuantity) isAction() {}
func (RemoveItem) isAction()     {}
func (Clear) isAction()          {}

// Apply returns the state produced by applying action to s.
func Apply(s State, action Action) State {
	switch a := action.(type) {
	case SetCart:
		items := make([]api.CartItem, len(a.Summary.Items))
		copy(items, a.Summary.Items)
		return State{
			Items:       items,
			TotalItems:  a.Summary.TotalItems,
			Subtotal:    float64(a.Summary.Subtotal),
			TotalAmount: float64(a.Summary.TotalAmount),
			LastUpdated: time.Now(),
		}

	case AddItem:
		items := make([]api.CartItem, len(s.Items))
		copy(items, s.Items)

		merged := false
		for i := range items {
			if items[i].ProductID == a.Item.ProductID {
				items[i].Quantity += a.Item.Quantity
				merged = true
				break
			}
		}
		if !merged {
			items = append(items, a.Item)
		}
		return recompute(items)

	case UpdateQuantity:
		items := make([]api.CartItem, len(s.Items))
		copy(items, s.Items)
		for i := range items {
			if items[i].ID == a.ItemID {
				items[i].Quantity = a.Quantity
				break
			}
		}
		return recompute(items)

	case RemoveItem:
		items := make([]api.CartItem, 0, len(s.Items))
		for _, item := range s.Items {
			if item.ID != a.ItemID {
				items = append(items, item)
			}
		}
		return recompute(items)

	case Clear:
		return State{LastUpdated: time.Now()}

	default:
		return s
	}
}

// recompute rebuilds the derived aggregates from items alone.
func recompute(items []api.CartItem) State {
	var totalItems int
	var subtotal float64
	for _, item := range items {
		totalItems += item.Quantity
		subtotal += float64(item.UnitPrice) * float64(item.Quantity)
	}
	return State{
		Items:       items,
		TotalItems:  totalItems,
		Subtotal:    subtotal,
		TotalAmount: subtotal * (1 + TaxRate),
		LastUpdated: time.Now(),
	}
}
