package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const localIDPrefix = "local-"

var ErrInvalidItemID = errors.New("invalid item id")

// ItemID identifies a line item. It is either a numeric id assigned by the
// server (the item is synced) or a temporary token generated locally (the
// item is pending). The zero value is neither.
type ItemID struct {
	server int64
	local  string
	synced bool
}

func ServerID(id int64) ItemID {
	return ItemID{server: id, synced: true}
}

func LocalID(token string) ItemID {
	return ItemID{local: token}
}

// NewLocalID returns a fresh temporary id.
func NewLocalID() ItemID {
	return LocalID(localIDPrefix + uuid.NewString())
}

func (id ItemID) IsServer() bool {
	return id.synced
}

func (id ItemID) IsZero() bool {
	return !id.synced && id.local == ""
}

// Server returns the numeric server id, if id is one.
func (id ItemID) Server() (int64, bool) {
	return id.server, id.synced
}

func (id ItemID) String() string {
	if id.synced {
		return strconv.FormatInt(id.server, 10)
	}
	return id.local
}

// MarshalJSON writes server ids as numbers and temporary ids as strings.
func (id ItemID) MarshalJSON() ([]byte, error) {
	switch {
	case id.synced:
		return []byte(strconv.FormatInt(id.server, 10)), nil
	case id.local != "":
		return json.Marshal(id.local)
	default:
		return []byte("null"), nil
	}
}

func (id *ItemID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	*id = ItemID{}

	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		return nil
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = LocalID(strings.TrimSpace(s))
		return nil
	default:
		n, err := strconv.ParseInt(string(b), 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidItemID, string(b))
		}
		*id = ServerID(n)
		return nil
	}
}

// LineItem is one product in the cart. Quantity is always positive for
// items held in a cart.
// MaxQuantity caps the quantity of a single line item.
const MaxQuantity = 1_000_000

// ClampQuantity limits n to [-MaxQuantity, MaxQuantity].
func ClampQuantity(n int) int {
	return max(-MaxQuantity, min(n, MaxQuantity))
}

// AddQuantity returns a+b capped at MaxQuantity without overflowing.
func AddQuantity(a, b int) int {
	return ClampQuantity(ClampQuantity(a) + ClampQuantity(b))
}

type LineItem struct {
	ID       ItemID  `json:"id"`
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
}

func (li LineItem) ProductID() string {
	return li.Product.ID
}

// Subtotal is price times quantity.
func (li LineItem) Subtotal() float64 {
	return li.Product.Price * float64(li.Quantity)
}
