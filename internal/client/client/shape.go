package client

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/cartkeeper/internal/client/models"
)

// Keys under which backends wrap a list of cart items or a single item.
var (
	listKeys = []string{"data", "items", "cartItems", "cart"}
	itemKeys = []string{"data", "item", "cartItem"}
)

// maxWrapDepth allows {"data": [...]} and {"data": {"items": [...]}}.
const maxWrapDepth = 2

// decodeItems resolves the cart payload, which is either a bare list or an
// object wrapping the list, into a flat list.
func decodeItems(body []byte) ([]models.RemoteItem, error) {
	return decodeItemsAt(body, 0)
}

func decodeItemsAt(body []byte, depth int) ([]models.RemoteItem, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return nil, nil
	}

	switch body[0] {
	case '[':
		var items []models.RemoteItem
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnexpectedShape, err)
		}
		return items, nil

	case '{':
		if depth >= maxWrapDepth {
			return nil, fmt.Errorf("%w: list nested too deep", ErrUnexpectedShape)
		}
		var wrapper map[string]json.RawMessage
		if err := json.Unmarshal(body, &wrapper); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnexpectedShape, err)
		}
		for _, key := range listKeys {
			if raw, ok := wrapper[key]; ok {
				return decodeItemsAt(raw, depth+1)
			}
		}
		return nil, fmt.Errorf("%w: no item list in object", ErrUnexpectedShape)

	default:
		return nil, fmt.Errorf("%w: %.32q", ErrUnexpectedShape, body)
	}
}

// decodeItem resolves a single created item, bare or wrapped.
func decodeItem(body []byte) (*models.RemoteItem, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return nil, nil
	}
	if body[0] != '{' {
		return nil, fmt.Errorf("%w: %.32q", ErrUnexpectedShape, body)
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedShape, err)
	}
	if _, bare := wrapper["id"]; !bare {
		for _, key := range itemKeys {
			raw, ok := wrapper[key]
			if !ok {
				continue
			}
			raw = bytes.TrimSpace(raw)
			if len(raw) > 0 && raw[0] == '{' {
				return decodeItem(raw)
			}
		}
	}

	var item models.RemoteItem
	if err := json.Unmarshal(body, &item); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedShape, err)
	}
	return &item, nil
}
