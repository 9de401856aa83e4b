package models

import (
	"bytes"
	"encoding/json"
	"math"
)

// ProductRef is a product reference that is either a bare id or, with
// backends that populate references, the whole product object.
type ProductRef struct {
	ID      FlexString
	Product *RawProduct
}

func (r *ProductRef) UnmarshalJSON(b []byte) error {
	*r = ProductRef{}

	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '{' {
		var raw RawProduct
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
		r.Product = &raw
		r.ID = FlexString(firstNonEmpty(string(raw.ID), string(raw.ProductID)))
		return nil
	}
	return r.ID.UnmarshalJSON(b)
}

// RemoteItem is a cart item as returned by the remote Cart API. Field
// spellings vary between backends, so ids and numbers are read leniently.
type RemoteItem struct {
	ID             FlexString  `json:"id"`
	ProductID      ProductRef  `json:"productId"`
	ProductIDSnake ProductRef  `json:"product_id"`
	Quantity       FlexFloat   `json:"quantity"`
	UserID         FlexString  `json:"userId"`
	Product        *RawProduct `json:"product"`
}

// LineItem converts r into the local line item shape. The server id is kept
// when it is numeric; otherwise the item gets a temporary id. ok is false
// when r has no product id or a non-positive quantity.
func (r RemoteItem) LineItem() (item LineItem, ok bool) {
	raw := r.Product
	if raw == nil {
		raw = r.ProductID.Product
	}
	if raw == nil {
		raw = r.ProductIDSnake.Product
	}

	var p Product
	if raw != nil {
		p = raw.Product()
	}
	if p.ID == "" {
		p.ID = firstNonEmpty(string(r.ProductID.ID), string(r.ProductIDSnake.ID))
	}
	p = NormalizeProduct(p)

	q := math.Round(float64(r.Quantity))
	if p.ID == "" || !(q > 0) {
		return LineItem{}, false
	}
	qty := MaxQuantity
	if q < MaxQuantity {
		qty = int(q)
	}

	id := NewLocalID()
	if n, isInt := r.ID.Int64(); isInt {
		id = ServerID(n)
	}

	return LineItem{ID: id, Product: p, Quantity: qty}, true
}
