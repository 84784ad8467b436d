package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/kipsunya/storefront-go/internal/catalog"
)

// ProductsCmd browses the public product catalog.
type ProductsCmd struct {
	List       ProductsListCmd `cmd:"" help:"List products"`
	Show       ProductsShowCmd `cmd:"" help:"Show product details"`
	Categories CategoriesCmd   `cmd:"" help:"List product categories"`
}

// ProductsListCmd lists a page of products.
type ProductsListCmd struct {
	Server string `help:"Server URL"`
	Config string `help:"YAML config file path"`
	Page   int    `help:"Page number" default:"1"`
	Search string `help:"Search term"`
}

func (c *ProductsListCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := newApp(ctx, c.Server, c.Config, globals)
	if err != nil {
		return err
	}

	page, err := app.Catalog.Products(ctx, catalog.ListOptions{Page: c.Page, Search: c.Search})
	if err != nil {
		return fmt.Errorf("failed to list products: %w", err)
	}

	if len(page.Results) == 0 {
		fmt.Println("No products found.")
		return nil
	}

	// Print as table
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tPRICE\tSTOCK\tCATEGORY")

	for _, p := range page.Results {
		category := ""
		if p.Category != nil {
			category = p.Category.Name
		}

		stock := "out of stock"
		if p.InStock {
			stock = fmt.Sprintf("%d", p.StockQuantity)
		}

		name := p.Name
		if len(name) > 40 {
			name = name[:40] + "..."
		}

		fmt.Fprintf(w, "%d\t%s\t%.2f\t%s\t%s\n", p.ID, name, float64(p.Price), stock, category)
	}

	w.Flush()

	fmt.Printf("\n%d product(s) total\n", page.Count)

	return nil
}

// ProductsShowCmd shows one product.
type ProductsShowCmd struct {
	Server string `help:"Server URL"`
	Config string `help:"YAML config file path"`
	ID     int64  `arg:"" help:"Product id"`
}

func (c *ProductsShowCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := newApp(ctx, c.Server, c.Config, globals)
	if err != nil {
		return err
	}

	p, err := app.Catalog.Product(ctx, c.ID)
	if err != nil {
		return fmt.Errorf("failed to fetch product: %w", err)
	}

	fmt.Printf("%s (id %d)\n", p.Name, p.ID)
	fmt.Printf("Price: %.2f\n", float64(p.Price))
	if p.Category != nil {
		fmt.Printf("Category: %s\n", p.Category.Name)
	}
	fmt.Printf("In stock: %v (%d)\n", p.InStock, p.StockQuantity)
	if p.VendorName != "" {
		fmt.Printf("Vendor: %s\n", p.VendorName)
	}
	if p.Description != "" {
		fmt.Println()
		fmt.Println(p.Description)
	}

	return nil
}

// CategoriesCmd lists product categories.
type CategoriesCmd struct {
	Server string `help:"Server URL"`
	Config string `help:"YAML config file path"`
}

func (c *CategoriesCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := newApp(ctx, c.Server, c.Config, globals)
	if err != nil {
		return err
	}

	cats, err := app.Catalog.Categories(ctx)
	if err != nil {
		return fmt.Errorf("failed to list categories: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tPRODUCTS")
	for _, cat := range cats {
		fmt.Fprintf(w, "%d\t%s\t%d\n", cat.ID, cat.Name, cat.ProductCount)
	}
	w.Flush()

	return nil
}
