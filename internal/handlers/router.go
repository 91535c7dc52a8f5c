package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// Router holds everything NewRouter mounts.
type Router struct {
	Mpesa       *MpesaHandler
	Catalog     *CatalogHandler
	Cart        *CartHandler
	AdminSecret string
}

func NewRouter(h Router) *mux.Router {
	admin := RequireAdmin(h.AdminSecret)

	router := mux.NewRouter()
	router.Use(Logging, Recover)

	router.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET", "HEAD")

	router.HandleFunc("/api/mpesa/stkpush", h.Mpesa.STKPush).Methods("POST")
	router.HandleFunc("/api/mpesa/callback", h.Mpesa.Callback).Methods("POST")
	router.Handle("/api/mpesa/token", admin(http.HandlerFunc(h.Mpesa.Token))).Methods("GET")
	router.Handle("/api/mpesa/transactions", admin(http.HandlerFunc(h.Mpesa.Transactions))).Methods("GET")

	if h.Catalog != nil {
		router.HandleFunc("/api/products", h.Catalog.GetProducts).Methods("GET")
		router.HandleFunc("/api/products/featured", h.Catalog.GetFeatured).Methods("GET")
		router.HandleFunc("/api/products/{id}", h.Catalog.GetProduct).Methods("GET")
	}

	if h.Cart != nil {
		router.HandleFunc("/api/cart", h.Cart.CreateCart).Methods("POST")
		router.HandleFunc("/api/cart/{cartID}", h.Cart.GetCart).Methods("GET")
		router.HandleFunc("/api/cart/{cartID}", h.Cart.ClearCart).Methods("DELETE")
		router.HandleFunc("/api/cart/{cartID}/items", h.Cart.AddItem).Methods("POST")
		router.HandleFunc("/api/cart/{cartID}/items/{productID}", h.Cart.UpdateItem).Methods("PATCH")
		router.HandleFunc("/api/cart/{cartID}/items/{productID}", h.Cart.RemoveItem).Methods("DELETE")
		router.HandleFunc("/api/cart/{cartID}/checkout", h.Cart.Checkout).Methods("POST")
	}

	return router
}
