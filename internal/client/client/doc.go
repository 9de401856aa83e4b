// Package client contains the client-side building blocks that talk to the
// outside world.
//
// # Overview
//
// The package provides:
//  1. A transport-agnostic contract for the remote Cart API (see CartAPI):
//     FetchCart, AddItem and RemoveItem.
//  2. A concrete HTTP/JSON implementation (see HTTPClient) that attaches the
//     bearer token from a TokenSource, retries transient failures with
//     exponential backoff, and maps HTTP status codes to sentinel errors.
//     Remote carts may come back as a bare list or wrapped in an object; both
//     are normalized before callers see them.
//  3. Local persistence bootstrap (InitDatabase, RunMigrations) wiring the
//     SQLite database and applying embedded goose migrations.
//
// # Error Handling
//
// Conditions are exposed as sentinel errors to be matched with errors.Is:
// ErrUnavailable, ErrUnauthorized, ErrNotFound, ErrUnexpectedStatus,
// ErrUnexpectedShape.
package client
