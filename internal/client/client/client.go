package client

import (
	"context"

	"github.com/dmitrijs2005/cartkeeper/internal/client/models"
)

// CartAPI is the remote per-user cart.
type CartAPI interface {
	FetchCart(ctx context.Context, userID string) ([]models.RemoteItem, error)
	// AddItem returns the created item; it may be nil when the server
	// answers with an empty body.
	AddItem(ctx context.Context, req AddItemRequest) (*models.RemoteItem, error)
	RemoveItem(ctx context.Context, itemID int64) error
}

type AddItemRequest struct {
	UserID    string
	ProductID string
	Quantity  int
}

// TokenSource yields the bearer token for authenticated calls. An empty
// token means "not logged in".
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}
