package models

import "encoding/json"

// PaymentRequest is the storefront's checkout body. It is never persisted.
type PaymentRequest struct {
	Amount json.Number `json:"amount"`
	Phone  string      `json:"phone"`
	PayTo  string      `json:"payTo,omitempty"`
}

// STKPushRequest is the Lipa Na M-Pesa Online payload. Field names follow the
// Daraja API exactly.
type STKPushRequest struct {
	BusinessShortCode string      `json:"BusinessShortCode"`
	Password          string      `json:"Password"`
	Timestamp         string      `json:"Timestamp"`
	TransactionType   string      `json:"TransactionType"`
	Amount            json.Number `json:"Amount"`
	PartyA            string      `json:"PartyA"`
	PartyB            string      `json:"PartyB"`
	PhoneNumber       string      `json:"PhoneNumber"`
	CallBackURL       string      `json:"CallBackURL"`
	AccountReference  string      `json:"AccountReference"`
	TransactionDesc   string      `json:"TransactionDesc"`
}

// TokenResponse is the body of the OAuth client-credentials endpoint.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}
