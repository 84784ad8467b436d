package commands

import (
	"context"
	"fmt"

	"github.com/kipsunya/storefront-go/internal/api"
)

// LoginCmd authenticates against the storefront and persists the session.
type LoginCmd struct {
	Server   string `help:"Server URL"`
	Config   string `help:"YAML config file path"`
	Email    string `arg:"" help:"Account email"`
	Password string `help:"Account password" required:""`
}

func (c *LoginCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := newApp(ctx, c.Server, c.Config, globals)
	if err != nil {
		return err
	}

	user, err := app.Session.Login(ctx, c.Email, c.Password)
	if err != nil {
		if apiErr, ok := api.AsError(err); ok {
			return fmt.Errorf("login failed: %s", apiErr.Message)
		}
		return fmt.Errorf("login failed: %w", err)
	}

	fmt.Printf("Logged in as %s %s <%s> (%s)\n", user.FirstName, user.LastName, user.Email, user.Role)

	state := app.Cart.State()
	if state.TotalItems > 0 {
		fmt.Printf("Cart: %d item(s), total %.2f\n", state.TotalItems, state.TotalAmount)
	}

	return nil
}

// RegisterCmd creates an account. It does not log in: the new account
// must authenticate explicitly afterwards.
type RegisterCmd struct {
	Server    string `help:"Server URL"`
	Config    string `help:"YAML config file path"`
	Email     string `arg:"" help:"Account email"`
	Password  string `help:"Account password" required:""`
	FirstName string `help:"First name"`
	LastName  string `help:"Last name"`
}

func (c *RegisterCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := newApp(ctx, c.Server, c.Config, globals)
	if err != nil {
		return err
	}

	message, err := app.Session.Register(ctx, api.RegisterRequest{
		Email:     c.Email,
		Password:  c.Password,
		FirstName: c.FirstName,
		LastName:  c.LastName,
	})
	if err != nil {
		if apiErr, ok := api.AsError(err); ok {
			return fmt.Errorf("registration failed: %s", apiErr.Message)
		}
		return fmt.Errorf("registration failed: %w", err)
	}

	fmt.Println(message)
	fmt.Println()
	fmt.Println("To log in:")
	fmt.Printf("  kipsunya login %s --password <password>\n", c.Email)

	return nil
}

// LogoutCmd ends the session. Local state is cleared even when the
// server-side call fails.
type LogoutCmd struct {
	Server string `help:"Server URL"`
	Config string `help:"YAML config file path"`
}

func (c *LogoutCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := newApp(ctx, c.Server, c.Config, globals)
	if err != nil {
		return err
	}

	app.Session.Logout(ctx)
	fmt.Println("Logged out.")

	return nil
}

// WhoamiCmd shows the current account.
type WhoamiCmd struct {
	Server string `help:"Server URL"`
	Config string `help:"YAML config file path"`
}

func (c *WhoamiCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := newApp(ctx, c.Server, c.Config, globals)
	if err != nil {
		return err
	}

	user := app.Session.User()
	if user == nil {
		fmt.Println("Not logged in.")
		return nil
	}

	fmt.Printf("%s %s <%s>\n", user.FirstName, user.LastName, user.Email)
	fmt.Printf("Role: %s\n", user.Role)

	return nil
}
