package commands

import (
	"context"
	"fmt"
)

// ProfileCmd manages the account profile.
type ProfileCmd struct {
	Update ProfileUpdateCmd `cmd:"" help:"Update profile fields"`
}

// ProfileUpdateCmd applies a partial profile update.
type ProfileUpdateCmd struct {
	Server    string `help:"Server URL"`
	Config    string `help:"YAML config file path"`
	Email     string `help:"New email"`
	FirstName string `help:"New first name"`
	LastName  string `help:"New last name"`
}

func (c *ProfileUpdateCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := newApp(ctx, c.Server, c.Config, globals)
	if err != nil {
		return err
	}

	updates := make(map[string]any)
	if c.Email != "" {
		updates["email"] = c.Email
	}
	if c.FirstName != "" {
		updates["first_name"] = c.FirstName
	}
	if c.LastName != "" {
		updates["last_name"] = c.LastName
	}
	if len(updates) == 0 {
		return fmt.Errorf("nothing to update (use --email, --first-name or --last-name)")
	}

	user, err := app.Session.UpdateProfile(ctx, updates)
	if err != nil {
		return fmt.Errorf("profile update failed: %w", err)
	}

	fmt.Printf("Profile updated: %s %s <%s>\n", user.FirstName, user.LastName, user.Email)

	return nil
}
