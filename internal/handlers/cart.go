package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/markjakearzadon/shoegame-gobackend/internal/models"
	"github.com/markjakearzadon/shoegame-gobackend/internal/services"
)

type CartHandler struct {
	carts *services.CartService
}

func NewCartHandler(carts *services.CartService) *CartHandler {
	return &CartHandler{carts: carts}
}

type cartView struct {
	ID        string            `json:"id"`
	Items     []models.CartItem `json:"items"`
	Total     float64           `json:"total"`
	ItemCount int               `json:"itemCount"`
}

func viewCart(c *services.Cart) cartView {
	return cartView{ID: c.ID(), Items: c.Items(), Total: c.Total(), ItemCount: c.ItemCount()}
}

type addItemRequest struct {
	ProductID string `json:"productId"`
	Size      string `json:"size"`
	Quantity  int    `json:"quantity"`
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

type checkoutRequest struct {
	Phone string `json:"phone"`
	PayTo string `json:"payTo,omitempty"`
}

// CreateCart hands out a fresh cart id. Nothing is stored until the first item.
func (h *CartHandler) CreateCart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusCreated, cartView{ID: uuid.NewString(), Items: []models.CartItem{}})
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.carts.Open(r.Context(), mux.Vars(r)["cartID"])
	if err != nil {
		writeCartError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewCart(cart))
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	cart, err := h.carts.AddProduct(r.Context(), mux.Vars(r)["cartID"], req.ProductID, req.Size, req.Quantity)
	if err != nil {
		writeCartError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewCart(cart))
}

func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var req updateQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	vars := mux.Vars(r)
	cart, err := h.carts.Open(r.Context(), vars["cartID"])
	if err != nil {
		writeCartError(w, err)
		return
	}
	if err := cart.UpdateQuantity(r.Context(), vars["productID"], req.Quantity); err != nil {
		writeCartError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewCart(cart))
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	cart, err := h.carts.Open(r.Context(), vars["cartID"])
	if err != nil {
		writeCartError(w, err)
		return
	}
	if err := cart.RemoveItem(r.Context(), vars["productID"]); err != nil {
		writeCartError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewCart(cart))
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.carts.Open(r.Context(), mux.Vars(r)["cartID"])
	if err != nil {
		writeCartError(w, err)
		return
	}
	if err := cart.Clear(r.Context()); err != nil {
		writeCartError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewCart(cart))
}

// Checkout pays for the cart with an STK push and relays the gateway
// acknowledgment.
func (h *CartHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ack, err := h.carts.Checkout(r.Context(), mux.Vars(r)["cartID"], req.Phone, req.PayTo)
	if err != nil {
		writeFailure(w, err, "STK Push failed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(ack)
}

func writeCartError(w http.ResponseWriter, err error) {
	if errors.Is(err, services.ErrProductNotFound) {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	writeFailure(w, err, "Cart update failed")
}
