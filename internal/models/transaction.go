package models

import (
	"encoding/json"
	"time"
)

type TransactionStatus string

const (
	StatusSuccess TransactionStatus = "SUCCESS"
	StatusFailed  TransactionStatus = "FAILED"
)

// Valid reports whether s is one of the two recorded outcomes.
func (s TransactionStatus) Valid() bool {
	return s == StatusSuccess || s == StatusFailed
}

// Transaction is a reconciled STK push outcome. Records are appended once per
// callback and never modified afterwards.
type Transaction struct {
	ID      string            `json:"id"` // CheckoutRequestID
	Status  TransactionStatus `json:"status"`
	Amount  *float64          `json:"amount,omitempty"`
	Phone   *string           `json:"phone,omitempty"`
	Receipt *string           `json:"receipt,omitempty"`
	Code    *int              `json:"code,omitempty"`
	Desc    *string           `json:"desc,omitempty"`
	Raw     json.RawMessage   `json:"raw,omitempty"`
	Time    time.Time         `json:"time"`
}
