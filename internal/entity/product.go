package entity

// ProductRecord is one catalog row: a product the merchant publishes with its
// own price and the competitor page to compare against.
type ProductRecord struct {
	SKU         string `json:"sku"`
	ProductName string `json:"product_name"`
	BasePrice   *int64 `json:"base_price"` // nil when the catalog leaves it blank
	URL         string `json:"url"`
}
