package cli

import (
	"context"
	"fmt"
)

// Login stores a token (and optionally the user id) and reconciles the cart
// for the new identity.
func (a *App) Login(ctx context.Context) error {
	token, err := GetSecret(a.reader, "Enter API token", a.out)
	if err != nil {
		return err
	}
	userID, err := GetSimpleText(a.reader, "User id (empty to read it from the token)", a.out)
	if err != nil {
		return err
	}

	id, err := a.auth.Login(ctx, token, userID)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	fmt.Fprintf(a.out, "Logged in as %s\n", id.UserID)

	return a.cart.IdentityChanged(ctx)
}

// Logout forgets the identity. The local cart is kept.
func (a *App) Logout(ctx context.Context) error {
	if err := a.auth.Logout(ctx); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	fmt.Fprintln(a.out, "Logged out")

	return a.cart.IdentityChanged(ctx)
}
