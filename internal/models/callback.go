package models

import "encoding/json"

// CallbackShape tells which envelope a gateway notification arrived in.
type CallbackShape int

const (
	ShapeUnrecognized CallbackShape = iota
	// ShapeEnveloped is {"Body": {"stkCallback": {...}}}.
	ShapeEnveloped
	// ShapeBare is {"stkCallback": {...}}.
	ShapeBare
)

func (s CallbackShape) String() string {
	switch s {
	case ShapeEnveloped:
		return "enveloped"
	case ShapeBare:
		return "bare"
	default:
		return "unrecognized"
	}
}

// STKCallback is the outcome block of an STK push notification.
type STKCallback struct {
	MerchantRequestID string            `json:"MerchantRequestID"`
	CheckoutRequestID string            `json:"CheckoutRequestID"`
	ResultCode        json.RawMessage   `json:"ResultCode"`
	ResultDesc        string            `json:"ResultDesc"`
	CallbackMetadata  *CallbackMetadata `json:"CallbackMetadata,omitempty"`
}

// CallbackMetadata carries the receipt, amount and phone of a successful
// payment.
type CallbackMetadata struct {
	Item []CallbackItem `json:"Item"`
}

// CallbackItem is one Name/Value pair of CallbackMetadata. Value is a JSON
// number or string depending on the item.
type CallbackItem struct {
	Name  string          `json:"Name"`
	Value json.RawMessage `json:"Value"`
}

// CallbackEnvelope holds the decoded notification together with the raw
// outcome block.
type CallbackEnvelope struct {
	Shape    CallbackShape
	Callback *STKCallback
	Raw      json.RawMessage
}
