package models

import (
	"encoding/json"
	"fmt"
)

// EncodeCart serializes items for local storage.
func EncodeCart(items []LineItem) ([]byte, error) {
	if items == nil {
		items = []LineItem{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("encode cart: %w", err)
	}
	return b, nil
}

// DecodeCart parses a stored cart and repairs it: items without a product id
// or with a non-positive quantity are dropped, items without an id get a
// temporary one, and only the first item per product id is kept.
func DecodeCart(b []byte) ([]LineItem, error) {
	var raw []LineItem
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}

	items := make([]LineItem, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, it := range raw {
		if it.Product.ID == "" || it.Quantity <= 0 {
			continue
		}
		if _, dup := seen[it.Product.ID]; dup {
			continue
		}
		seen[it.Product.ID] = struct{}{}
		it.Quantity = ClampQuantity(it.Quantity)
		if it.ID.IsZero() {
			it.ID = NewLocalID()
		}
		items = append(items, it)
	}
	return items, nil
}

// CloneItems returns a copy of items that shares nothing with it.
func CloneItems(items []LineItem) []LineItem {
	out := make([]LineItem, len(items))
	copy(out, items)
	return out
}

// TotalItems is the sum of all quantities.
func TotalItems(items []LineItem) int {
	total := 0
	for _, it := range items {
		total += it.Quantity
	}
	return total
}

// TotalPrice is the sum of price times quantity.
func TotalPrice(items []LineItem) float64 {
	total := 0.0
	for _, it := range items {
		total += it.Subtotal()
	}
	return total
}
