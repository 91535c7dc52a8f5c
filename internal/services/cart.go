package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strconv"

	"github.com/markjakearzadon/shoegame-gobackend/internal/apperr"
	"github.com/markjakearzadon/shoegame-gobackend/internal/models"
)

// CartStore persists cart lines by cart id.
type CartStore interface {
	Load(ctx context.Context, cartID string) ([]models.CartItem, error)
	Save(ctx context.Context, cartID string, items []models.CartItem) error
}

// Cart is one shopper's cart. Every mutation is written through its store.
type Cart struct {
	id    string
	items []models.CartItem
	store CartStore
}

// OpenCart loads the cart with the given id; unknown ids start empty.
func OpenCart(ctx context.Context, store CartStore, id string) (*Cart, error) {
	items, err := store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Cart{id: id, items: items, store: store}, nil
}

func (c *Cart) ID() string { return c.id }

func (c *Cart) Items() []models.CartItem {
	return append([]models.CartItem{}, c.items...)
}

// AddItem merges into an existing line for the same product and size, or
// appends a new line.
func (c *Cart) AddItem(ctx context.Context, product models.Product, size string, quantity int) error {
	if quantity <= 0 {
		return apperr.Validation("quantity must be positive")
	}
	if size == "" {
		return apperr.Validation("Please select a size")
	}
	if len(product.Sizes) > 0 && !slices.Contains(product.Sizes, size) {
		return apperr.Validation(fmt.Sprintf("size %s is not available for %s", size, product.Name))
	}

	for i := range c.items {
		if c.items[i].ID == product.ID && c.items[i].Size == size {
			c.items[i].Quantity += quantity
			return c.save(ctx)
		}
	}
	c.items = append(c.items, models.CartItem{
		ID:       product.ID,
		Name:     product.Name,
		Price:    product.Price,
		Image:    product.Image,
		Size:     size,
		Quantity: quantity,
	})
	return c.save(ctx)
}

// RemoveItem drops every line for productID, whatever the size.
func (c *Cart) RemoveItem(ctx context.Context, productID string) error {
	c.items = slices.DeleteFunc(c.items, func(item models.CartItem) bool {
		return item.ID == productID
	})
	return c.save(ctx)
}

// UpdateQuantity sets the quantity of the first line for productID. A
// quantity of zero or less removes the product. Unknown ids are ignored.
func (c *Cart) UpdateQuantity(ctx context.Context, productID string, quantity int) error {
	for i := range c.items {
		if c.items[i].ID != productID {
			continue
		}
		if quantity <= 0 {
			return c.RemoveItem(ctx, productID)
		}
		c.items[i].Quantity = quantity
		return c.save(ctx)
	}
	return nil
}

func (c *Cart) Total() float64 {
	var total float64
	for _, item := range c.items {
		total += item.Price * float64(item.Quantity)
	}
	return total
}

func (c *Cart) ItemCount() int {
	var n int
	for _, item := range c.items {
		n += item.Quantity
	}
	return n
}

func (c *Cart) Clear(ctx context.Context) error {
	c.items = nil
	return c.save(ctx)
}

func (c *Cart) save(ctx context.Context) error {
	if err := c.store.Save(ctx, c.id, c.items); err != nil {
		return apperr.Persistence("save cart", err)
	}
	return nil
}

type stkInitiator interface {
	InitiateSTKPush(ctx context.Context, req models.PaymentRequest) (json.RawMessage, error)
}

// CartService ties carts to the catalog and to checkout.
type CartService struct {
	store    CartStore
	catalog  *CatalogService
	payments stkInitiator
}

func NewCartService(store CartStore, catalog *CatalogService, payments stkInitiator) *CartService {
	return &CartService{store: store, catalog: catalog, payments: payments}
}

func (s *CartService) Open(ctx context.Context, cartID string) (*Cart, error) {
	cart, err := OpenCart(ctx, s.store, cartID)
	if err != nil {
		return nil, apperr.Persistence("load cart", err)
	}
	return cart, nil
}

// AddProduct looks productID up in the catalog and adds it to the cart.
func (s *CartService) AddProduct(ctx context.Context, cartID, productID, size string, quantity int) (*Cart, error) {
	product, err := s.catalog.ByID(productID)
	if err != nil {
		return nil, err
	}
	cart, err := s.Open(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if err := cart.AddItem(ctx, product, size, quantity); err != nil {
		return nil, err
	}
	return cart, nil
}

// Checkout requests an STK push for the cart total. The cart is cleared only
// once the gateway has acknowledged the request.
func (s *CartService) Checkout(ctx context.Context, cartID, phone, payTo string) (json.RawMessage, error) {
	cart, err := s.Open(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if len(cart.items) == 0 {
		return nil, apperr.Validation("Your cart is empty")
	}

	amount := strconv.FormatFloat(cart.Total(), 'f', -1, 64)
	ack, err := s.payments.InitiateSTKPush(ctx, models.PaymentRequest{
		Amount: json.Number(amount),
		Phone:  phone,
		PayTo:  payTo,
	})
	if err != nil {
		return nil, err
	}

	if err := cart.Clear(ctx); err != nil {
		slog.Warn("Checkout initiated but cart was not cleared", "cart_id", cartID, "error", err)
	}
	return ack, nil
}
