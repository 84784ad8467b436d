package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/kipsunya/storefront-go/internal/orders"
)

// OrdersCmd browses the order history.
type OrdersCmd struct {
	List  OrdersListCmd  `cmd:"" help:"List your orders"`
	Show  OrdersShowCmd  `cmd:"" help:"Show order details"`
	Stats OrdersStatsCmd `cmd:"" help:"Show your purchase summary"`
}

// OrdersListCmd lists a page of orders, newest first.
type OrdersListCmd struct {
	Server string `help:"Server URL"`
	Config string `help:"YAML config file path"`
	Page   int    `help:"Page number" default:"1"`
	Status string `help:"Filter by status: pending, processing, shipped, delivered, cancelled"`
}

func (c *OrdersListCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := newApp(ctx, c.Server, c.Config, globals)
	if err != nil {
		return err
	}

	page, err := app.Orders.List(ctx, orders.ListOptions{Page: c.Page, Status: c.Status})
	if err != nil {
		return describeCartError(err)
	}

	if len(page.Results) == 0 {
		fmt.Println("No orders found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ORDER\tDATE\tSTATUS\tITEMS\tTOTAL")
	for _, o := range page.Results {
		items := o.TotalItems
		if items == 0 {
			items = len(o.Items)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.2f\n",
			o.OrderNumber, o.CreatedAt.Format(time.DateOnly), o.Status,
			items, float64(o.TotalAmount))
	}
	w.Flush()

	fmt.Printf("\n%d order(s) total\n", page.Count)

	return nil
}

// OrdersShowCmd shows one order with its lines.
type OrdersShowCmd struct {
	Server  string `help:"Server URL"`
	Config  string `help:"YAML config file path"`
	OrderID string `arg:"" help:"Order id or order number"`
}

func (c *OrdersShowCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := newApp(ctx, c.Server, c.Config, globals)
	if err != nil {
		return err
	}

	o, err := app.Orders.Get(ctx, c.OrderID)
	if err != nil {
		return describeCartError(err)
	}

	fmt.Printf("Order %s (%s)\n", o.OrderNumber, o.Status)
	fmt.Printf("Placed: %s\n", o.CreatedAt.Format(time.RFC1123))
	if o.PaymentMethod != "" {
		fmt.Printf("Payment: %s (%s)\n", o.PaymentMethod, o.PaymentStatus)
	}
	if o.ShippingAddress != "" {
		fmt.Printf("Ship to: %s, %s, %s\n", o.ShippingAddress, o.ShippingCity, o.ShippingCountry)
	}
	if o.TrackingNumber != "" {
		fmt.Printf("Tracking: %s\n", o.TrackingNumber)
	}

	if len(o.Items) > 0 {
		fmt.Println()
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "PRODUCT\tQTY\tUNIT PRICE\tTOTAL")
		for _, item := range o.Items {
			fmt.Fprintf(w, "%s\t%d\t%.2f\t%.2f\n",
				item.ProductName, item.Quantity,
				float64(item.UnitPrice), float64(item.TotalPrice))
		}
		w.Flush()
	}

	fmt.Println()
	if o.Subtotal > 0 {
		fmt.Printf("Subtotal: %.2f\n", float64(o.Subtotal))
		fmt.Printf("VAT: %.2f\n", float64(o.TaxAmount))
		fmt.Printf("Shipping: %.2f\n", float64(o.ShippingFee))
	}
	fmt.Printf("Total: %.2f\n", float64(o.TotalAmount))

	return nil
}

// OrdersStatsCmd shows the customer purchase summary.
type OrdersStatsCmd struct {
	Server string `help:"Server URL"`
	Config string `help:"YAML config file path"`
}

func (c *OrdersStatsCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := newApp(ctx, c.Server, c.Config, globals)
	if err != nil {
		return err
	}

	stats, err := app.Orders.Stats(ctx)
	if err != nil {
		return describeCartError(err)
	}

	fmt.Printf("Orders placed: %d\n", stats.Stats.TotalOrders)
	fmt.Printf("Total spent: %.2f\n", float64(stats.Stats.TotalSpent))
	fmt.Printf("Average order: %.2f\n", float64(stats.Stats.AvgOrderValue))

	if len(stats.StatusBreakdown) > 0 {
		fmt.Println()
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "STATUS\tORDERS")
		for _, b := range stats.StatusBreakdown {
			fmt.Fprintf(w, "%s\t%d\n", b.Status, b.Count)
		}
		w.Flush()
	}

	return nil
}
