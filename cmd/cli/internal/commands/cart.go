package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/kipsunya/storefront-go/internal/api"
	"github.com/kipsunya/storefront-go/internal/cart"
)

// CartCmd manages the shopping cart.
type CartCmd struct {
	List     CartListCmd     `cmd:"" help:"Show the cart"`
	Add      CartAddCmd      `cmd:"" help:"Add a product to the cart"`
	Update   CartUpdateCmd   `cmd:"" help:"Change the quantity of a cart line"`
	Remove   CartRemoveCmd   `cmd:"" help:"Remove a cart line"`
	Clear    CartClearCmd    `cmd:"" help:"Empty the cart"`
	Checkout CartCheckoutCmd `cmd:"" help:"Convert the cart into an order"`
}

func describeCartError(err error) error {
	switch {
	case errors.Is(err, api.ErrUnauthenticated):
		return fmt.Errorf("not logged in (run: kipsunya login <email>)")
	case errors.Is(err, api.ErrSessionExpired):
		return fmt.Errorf("session expired, please log in again")
	case errors.Is(err, cart.ErrInvalidQuantity):
		return err
	default:
		if apiErr, ok := api.AsError(err); ok && apiErr.Message != "" {
			return fmt.Errorf("%s", apiErr.Message)
		}
		return err
	}
}

// CartListCmd shows the cart with totals.
type CartListCmd struct {
	Server string `help:"Server URL"`
	Config string `help:"YAML config file path"`
}

func (c *CartListCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := newApp(ctx, c.Server, c.Config, globals)
	if err != nil {
		return err
	}

	if err := app.Cart.Fetch(ctx); err != nil {
		return describeCartError(err)
	}

	state := app.Cart.State()
	if len(state.Items) == 0 {
		fmt.Println("Cart is empty.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "LINE\tPRODUCT\tQTY\tUNIT PRICE\tTOTAL")
	for _, item := range state.Items {
		line := item.ID
		if len(line) > 8 {
			line = line[:8]
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%.2f\t%.2f\n",
			line, item.ProductName, item.Quantity,
			float64(item.UnitPrice), float64(item.UnitPrice)*float64(item.Quantity))
	}
	w.Flush()

	totals := state.Totals()
	fmt.Println()
	fmt.Printf("Subtotal: %.2f\n", totals.Subtotal)
	fmt.Printf("VAT (16%%): %.2f\n", totals.TaxAmount)
	fmt.Printf("Shipping: %.2f\n", totals.ShippingFee)
	fmt.Printf("Total: %.2f\n", totals.Total)

	return nil
}

// CartAddCmd adds a product.
type CartAddCmd struct {
	Server    string `help:"Server URL"`
	Config    string `help:"YAML config file path"`
	ProductID int64  `arg:"" help:"Product id"`
	Quantity  int    `help:"Quantity to add" default:"1"`
}

func (c *CartAddCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := newApp(ctx, c.Server, c.Config, globals)
	if err != nil {
		return err
	}

	message, err := app.Cart.Add(ctx, c.ProductID, c.Quantity)
	if err != nil {
		return describeCartError(err)
	}

	if message != "" {
		fmt.Println(message)
	}
	state := app.Cart.State()
	fmt.Printf("Cart: %d item(s), total %.2f\n", state.TotalItems, state.TotalAmount)

	return nil
}

// CartUpdateCmd changes a line's quantity.
type CartUpdateCmd struct {
	Server   string `help:"Server URL"`
	Config   string `help:"YAML config file path"`
	ItemID   string `arg:"" help:"Cart line id"`
	Quantity int    `arg:"" help:"New quantity"`
}

func (c *CartUpdateCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := newApp(ctx, c.Server, c.Config, globals)
	if err != nil {
		return err
	}

	itemID, err := resolveLineID(ctx, app, c.ItemID)
	if err != nil {
		return err
	}

	message, err := app.Cart.UpdateQuantity(ctx, itemID, c.Quantity)
	if err != nil {
		return describeCartError(err)
	}

	if message != "" {
		fmt.Println(message)
	}

	return nil
}

// CartRemoveCmd removes a line.
type CartRemoveCmd struct {
	Server string `help:"Server URL"`
	Config string `help:"YAML config file path"`
	ItemID string `arg:"" help:"Cart line id"`
}

func (c *CartRemoveCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := newApp(ctx, c.Server, c.Config, globals)
	if err != nil {
		return err
	}

	itemID, err := resolveLineID(ctx, app, c.ItemID)
	if err != nil {
		return err
	}

	message, err := app.Cart.Remove(ctx, itemID)
	if err != nil {
		return describeCartError(err)
	}

	if message != "" {
		fmt.Println(message)
	}

	return nil
}

// CartClearCmd empties the cart.
type CartClearCmd struct {
	Server string `help:"Server URL"`
	Config string `help:"YAML config file path"`
}

func (c *CartClearCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := newApp(ctx, c.Server, c.Config, globals)
	if err != nil {
		return err
	}

	message, err := app.Cart.Clear(ctx)
	if err != nil {
		return describeCartError(err)
	}

	if message != "" {
		fmt.Println(message)
	}

	return nil
}

// CartCheckoutCmd converts the cart into an order.
type CartCheckoutCmd struct {
	Server        string `help:"Server URL"`
	Config        string `help:"YAML config file path"`
	PaymentMethod string `help:"Payment method: mpesa, credit_card, bank_transfer, cash_on_delivery" default:"mpesa"`
	Address       string `help:"Shipping address" required:""`
	City          string `help:"Shipping city" required:""`
	Country       string `help:"Shipping country" default:"Kenya"`
	Phone         string `help:"Shipping phone" required:""`
	Notes         string `help:"Order notes"`
}

func (c *CartCheckoutCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := newApp(ctx, c.Server, c.Config, globals)
	if err != nil {
		return err
	}

	order, err := app.Cart.Checkout(ctx, api.CheckoutRequest{
		PaymentMethod:   c.PaymentMethod,
		ShippingAddress: c.Address,
		ShippingCity:    c.City,
		ShippingCountry: c.Country,
		ShippingPhone:   c.Phone,
		Notes:           c.Notes,
	})
	if err != nil {
		return describeCartError(err)
	}

	if order != nil {
		fmt.Printf("Order %s created (%d item(s), total %.2f, status %s)\n",
			order.OrderNumber, order.ItemsCount, float64(order.TotalAmount), order.Status)
	} else {
		fmt.Println("Order created.")
	}

	return nil
}

// resolveLineID expands a truncated cart line id (as printed by
// `cart list`) to the full server-assigned id.
func resolveLineID(ctx context.Context, app *app, prefix string) (string, error) {
	state := app.Cart.State()
	if len(state.Items) == 0 {
		if err := app.Cart.Fetch(ctx); err != nil {
			return "", describeCartError(err)
		}
		state = app.Cart.State()
	}

	var match string
	for _, item := range state.Items {
		if item.ID == prefix {
			return item.ID, nil
		}
		if len(prefix) >= 4 && len(item.ID) >= len(prefix) && item.ID[:len(prefix)] == prefix {
			if match != "" {
				return "", fmt.Errorf("cart line id %q is ambiguous", prefix)
			}
			match = item.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("no cart line with id %q", prefix)
	}
	return match, nil
}
