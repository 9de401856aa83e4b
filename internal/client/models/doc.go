// Package models defines the cart domain types shared by the local store,
// the remote API client and the services: normalized product snapshots,
// line items with tagged ids, and the tolerant shapes used to read remote
// cart items.
package models
