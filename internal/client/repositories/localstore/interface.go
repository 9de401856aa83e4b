package localstore

import (
	"context"
)

// Well-known keys.
const (
	KeyCart  = "cart"
	KeyToken = "token"
	KeyUser  = "user"
)

// Repository is the client's durable key/value storage.
type Repository interface {
	// Get returns (nil, nil) when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) (map[string][]byte, error)
	Clear(ctx context.Context) error
}
