package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// FlexString accepts a JSON string, number or null. Numbers keep their
// textual form, so 42 becomes "42".
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

// Int64 reports the value as an integer, if it is one.
func (f FlexString) Int64() (int64, bool) {
	n, err := strconv.ParseInt(string(f), 10, 64)
	return n, err == nil
}

// FlexFloat accepts a JSON number or a numeric string. Anything else
// (null, garbage, objects) decodes to zero rather than failing the whole
// document.
type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(b []byte) error {
	*f = 0

	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil
	}

	switch value := v.(type) {
	case float64:
		*f = FlexFloat(value)
	case string:
		if n, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			*f = FlexFloat(n)
		}
	}
	return nil
}

// FlexName accepts either a plain string or an object carrying a "name"
// field, e.g. a category given as {"id": 3, "name": "Books"}.
type FlexName string

func (f *FlexName) UnmarshalJSON(b []byte) error {
	*f = ""

	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil
	}

	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexName(s)
	case '{':
		var obj struct {
			Name  string `json:"name"`
			Title string `json:"title"`
		}
		if err := json.Unmarshal(b, &obj); err != nil {
			return err
		}
		*f = FlexName(firstNonEmpty(obj.Name, obj.Title))
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
