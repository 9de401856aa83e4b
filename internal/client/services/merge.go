package services

import "github.com/dmitrijs2005/cartkeeper/internal/client/models"

// MergeCarts reconciles the local cart with the remote one.
//
// The result is seeded from remote, keyed by product id (a later remote
// duplicate replaces an earlier one in place). A local item whose product is
// not in remote is appended unchanged and also returned in pending, the
// items still to be pushed. For a product present on both sides the local
// quantity wins only when it is strictly greater; the remote id is kept.
//
// Neither input is modified.
func MergeCarts(local, remote []models.LineItem) (merged, pending []models.LineItem) {
	index := make(map[string]int, len(remote)+len(local))
	merged = make([]models.LineItem, 0, len(remote)+len(local))

	for _, it := range remote {
		if i, ok := index[it.ProductID()]; ok {
			merged[i] = it
			continue
		}
		index[it.ProductID()] = len(merged)
		merged = append(merged, it)
	}

	for _, it := range local {
		i, ok := index[it.ProductID()]
		if !ok {
			index[it.ProductID()] = len(merged)
			merged = append(merged, it)
			pending = append(pending, it)
			continue
		}
		if it.Quantity > merged[i].Quantity {
			merged[i].Quantity = it.Quantity
		}
	}

	return merged, pending
}
