package model

import "github.com/rs/xid"

// Category groups products. Both names are unique.
type Category struct {
	ID           xid.ID `json:"_id"`
	CategoryName string `json:"category_name"`
	MainCategory string `json:"main_category"`
}

// Product is a sellable item kind ("Jonatán alma"). Offers point at products;
// a product always points at an existing category.
type Product struct {
	ID          xid.ID `json:"_id"`
	CategoryID  xid.ID `json:"category_id"`
	ProductName string `json:"product_name"`
	PictureURL  string `json:"picture_url,omitempty"`
}
