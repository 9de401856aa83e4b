package models

import (
	"encoding/json"
	"math"
	"strings"
)

// Defaults used by NormalizeProduct.
const (
	DefaultProductName     = "Unnamed product"
	DefaultProductCategory = "uncategorized"
	DefaultProductImage    = "/images/placeholder.png"
)

// Product is the normalized snapshot stored inside a line item.
type Product struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Category    string  `json:"category"`
	Image       string  `json:"image"`
}

// NormalizeProduct fills every missing field with a safe default. The id is
// only trimmed; an empty id stays empty and callers must reject it.
func NormalizeProduct(p Product) Product {
	p.ID = strings.TrimSpace(p.ID)
	p.Name = strings.TrimSpace(p.Name)
	p.Description = strings.TrimSpace(p.Description)
	p.Category = strings.TrimSpace(p.Category)
	p.Image = strings.TrimSpace(p.Image)

	if p.Name == "" {
		p.Name = DefaultProductName
	}
	if p.Category == "" {
		p.Category = DefaultProductCategory
	}
	if p.Image == "" {
		p.Image = DefaultProductImage
	}
	if p.Price < 0 || math.IsNaN(p.Price) || math.IsInf(p.Price, 0) {
		p.Price = 0
	}
	return p
}

// RawProduct is a product as other systems spell it: ids and prices may be
// numbers or strings, the name may be called title, the image imageUrl.
type RawProduct struct {
	ID            FlexString `json:"id"`
	ProductID     FlexString `json:"productId"`
	Name          string     `json:"name"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Price         FlexFloat  `json:"price"`
	Category      FlexName   `json:"category"`
	Image         string     `json:"image"`
	ImageURL      string     `json:"imageUrl"`
	ImageURLSnake string     `json:"image_url"`
}

// Product converts r into a normalized Product.
func (r RawProduct) Product() Product {
	return NormalizeProduct(Product{
		ID:          firstNonEmpty(string(r.ID), string(r.ProductID)),
		Name:        firstNonEmpty(r.Name, r.Title),
		Description: r.Description,
		Price:       float64(r.Price),
		Category:    string(r.Category),
		Image:       firstNonEmpty(r.Image, r.ImageURL, r.ImageURLSnake),
	})
}

// UnmarshalJSON reads any RawProduct spelling and normalizes it.
func (p *Product) UnmarshalJSON(b []byte) error {
	var raw RawProduct
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*p = raw.Product()
	return nil
}
