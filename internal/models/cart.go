package models

// CartItem is one line of a shopping cart. A product appears once per size.
type CartItem struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Image    string  `json:"image"`
	Size     string  `json:"size"`
	Quantity int     `json:"quantity"`
}
