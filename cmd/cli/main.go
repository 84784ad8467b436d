package main

import (
	"context"

	"github.com/alecthomas/kong"
	"github.com/kipsunya/storefront-go/cmd/cli/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Login    commands.LoginCmd    `cmd:"" help:"Log in to the storefront"`
		Register commands.RegisterCmd `cmd:"" help:"Create an account"`
		Logout   commands.LogoutCmd   `cmd:"" help:"Log out"`
		Whoami   commands.WhoamiCmd   `cmd:"" help:"Show the current account"`
		Profile  commands.ProfileCmd  `cmd:"" help:"Manage the account profile"`
		Products commands.ProductsCmd `cmd:"" help:"Browse the product catalog"`
		Cart     commands.CartCmd     `cmd:"" help:"Manage the shopping cart"`
		Orders   commands.OrdersCmd   `cmd:"" help:"Browse your order history"`
		Debug    bool                 `help:"Enable debug mode."`
		Version  kong.VersionFlag
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version})
	cmd.FatalIfErrorf(err)
}
