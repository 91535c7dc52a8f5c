package services

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/markjakearzadon/shoegame-gobackend/internal/apperr"
	"github.com/markjakearzadon/shoegame-gobackend/internal/models"
)

// MaxCallbackBody is the largest notification body kept in the audit log.
// Longer bodies are cut to this size and flagged as truncated.
const MaxCallbackBody = 1 << 20

type ledger interface {
	Append(ctx context.Context, tx models.Transaction) error
	List(ctx context.Context, limit int) ([]models.Transaction, error)
}

// callbackLogEntry is one line of callbacks.log.
type callbackLogEntry struct {
	Time      time.Time       `json:"time"`
	Payload   json.RawMessage `json:"payload"`
	Truncated bool            `json:"truncated,omitempty"`
}

// CallbackService records gateway notifications and turns STK outcomes into
// ledger entries.
type CallbackService struct {
	ledger   ledger
	auditLog appendLog
	now      func() time.Time
}

func NewCallbackService(ledger ledger, auditLog appendLog) *CallbackService {
	return &CallbackService{ledger: ledger, auditLog: auditLog, now: time.Now}
}

// HandleCallback writes body to the audit log before anything else, then
// reconciles it. It returns (nil, nil) when the body carries no STK outcome.
func (s *CallbackService) HandleCallback(ctx context.Context, body []byte) (*models.Transaction, error) {
	now := s.now().UTC()
	truncated := len(body) > MaxCallbackBody
	if truncated {
		slog.Warn("MPesa callback body too large, truncating", "bytes", len(body), "limit", MaxCallbackBody)
		body = body[:MaxCallbackBody]
	}

	entry := callbackLogEntry{Time: now, Payload: auditPayload(body), Truncated: truncated}
	if err := s.auditLog.Append(entry); err != nil {
		return nil, apperr.Persistence("write callback log", err)
	}
	slog.Info("MPesa callback received and logged", "bytes", len(body))

	env := DecodeCallback(body)
	if env.Shape == models.ShapeUnrecognized {
		slog.Warn("MPesa callback has no stkCallback object, nothing recorded")
		return nil, nil
	}

	tx := Reconcile(env, now)
	if err := s.ledger.Append(ctx, tx); err != nil {
		return nil, err
	}

	if tx.Status == models.StatusSuccess {
		slog.Info("STK Push success recorded", "id", tx.ID, "shape", env.Shape.String())
	} else {
		attrs := []any{"id", tx.ID, "desc", *tx.Desc}
		if tx.Code != nil {
			attrs = append(attrs, "code", *tx.Code)
		}
		slog.Info("STK Push failed recorded", attrs...)
	}
	return &tx, nil
}

// Transactions returns the last limit ledger entries, oldest first.
func (s *CallbackService) Transactions(ctx context.Context, limit int) ([]models.Transaction, error) {
	return s.ledger.List(ctx, limit)
}

// DecodeCallback finds the stkCallback block either under Body or at the top
// level. Anything else is ShapeUnrecognized.
func DecodeCallback(body []byte) models.CallbackEnvelope {
	var top struct {
		Body        json.RawMessage `json:"Body"`
		StkCallback json.RawMessage `json:"stkCallback"`
	}
	if err := json.Unmarshal(body, &top); err != nil {
		return models.CallbackEnvelope{Shape: models.ShapeUnrecognized}
	}

	if present(top.Body) {
		var nested struct {
			StkCallback json.RawMessage `json:"stkCallback"`
		}
		if err := json.Unmarshal(top.Body, &nested); err == nil && present(nested.StkCallback) {
			if cb, ok := decodeSTKCallback(nested.StkCallback); ok {
				return models.CallbackEnvelope{Shape: models.ShapeEnveloped, Callback: cb, Raw: nested.StkCallback}
			}
		}
	}
	if present(top.StkCallback) {
		if cb, ok := decodeSTKCallback(top.StkCallback); ok {
			return models.CallbackEnvelope{Shape: models.ShapeBare, Callback: cb, Raw: top.StkCallback}
		}
	}
	return models.CallbackEnvelope{Shape: models.ShapeUnrecognized}
}

// Reconcile builds the ledger record for a recognized envelope. A numeric
// ResultCode equal to 0 is a success; every other code, including a missing
// or quoted one, is a failure.
func Reconcile(env models.CallbackEnvelope, now time.Time) models.Transaction {
	cb := env.Callback
	tx := models.Transaction{
		ID:   cb.CheckoutRequestID,
		Raw:  env.Raw,
		Time: now,
	}
	if tx.ID == "" {
		tx.ID = strconv.FormatInt(now.UnixMilli(), 10)
	}

	code, numeric := resultCode(cb.ResultCode)
	if numeric && code == 0 {
		tx.Status = models.StatusSuccess
		tx.Receipt = itemString(cb, "MpesaReceiptNumber")
		tx.Amount = itemNumber(cb, "Amount")
		tx.Phone = itemString(cb, "PhoneNumber")
		return tx
	}

	desc := cb.ResultDesc
	tx.Status = models.StatusFailed
	tx.Desc = &desc
	if numeric && code == math.Trunc(code) && math.Abs(code) <= math.MaxInt32 {
		c := int(code)
		tx.Code = &c
	}
	return tx
}

// decodeSTKCallback reads the block field by field so that one oddly typed
// field does not hide the outcome. It fails only when the block is not an
// object.
func decodeSTKCallback(raw json.RawMessage) (*models.STKCallback, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return nil, false
	}
	return &models.STKCallback{
		MerchantRequestID: textValue(fields["MerchantRequestID"]),
		CheckoutRequestID: textValue(fields["CheckoutRequestID"]),
		ResultCode:        fields["ResultCode"],
		ResultDesc:        textValue(fields["ResultDesc"]),
		CallbackMetadata:  decodeMetadata(fields["CallbackMetadata"]),
	}, true
}

// decodeMetadata keeps every well formed item and drops the rest. A missing
// or non-object CallbackMetadata yields nil.
func decodeMetadata(raw json.RawMessage) *models.CallbackMetadata {
	var meta map[string]json.RawMessage
	if !present(raw) || json.Unmarshal(raw, &meta) != nil || meta == nil {
		return nil
	}
	var rawItems []json.RawMessage
	if !present(meta["Item"]) || json.Unmarshal(meta["Item"], &rawItems) != nil {
		return &models.CallbackMetadata{}
	}

	items := make([]models.CallbackItem, 0, len(rawItems))
	for _, ri := range rawItems {
		var f map[string]json.RawMessage
		if json.Unmarshal(ri, &f) != nil || f == nil {
			continue
		}
		items = append(items, models.CallbackItem{Name: textValue(f["Name"]), Value: f["Value"]})
	}
	return &models.CallbackMetadata{Item: items}
}

func present(raw json.RawMessage) bool {
	return len(raw) > 0 && !bytes.Equal(raw, []byte("null"))
}

// textValue reads a JSON string, or the literal of a JSON number. Anything
// else is "".
func textValue(raw json.RawMessage) string {
	if !present(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// resultCode accepts any JSON number literal, so 0 and 0.0 are both zero.
// Quoted codes are not numeric.
func resultCode(raw json.RawMessage) (float64, bool) {
	raw = bytes.TrimSpace(raw)
	if !present(raw) || raw[0] == '"' {
		return 0, false
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false
	}
	f, err := n.Float64()
	if err != nil {
		return 0, false
	}
	return f, true
}

func findItem(cb *models.STKCallback, name string) json.RawMessage {
	if cb.CallbackMetadata == nil {
		return nil
	}
	for _, item := range cb.CallbackMetadata.Item {
		if item.Name == name {
			return item.Value
		}
	}
	return nil
}

// itemString reads a string or numeric item as text. Phone numbers arrive as
// JSON numbers, so the literal is kept rather than going through float64.
func itemString(cb *models.STKCallback, name string) *string {
	s := textValue(findItem(cb, name))
	if s == "" {
		return nil
	}
	return &s
}

func itemNumber(cb *models.STKCallback, name string) *float64 {
	raw := findItem(cb, name)
	if !present(raw) {
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil
	}
	f, err := n.Float64()
	if err != nil || f == 0 {
		return nil
	}
	return &f
}

func auditPayload(body []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return json.RawMessage("{}")
	}
	if json.Valid(trimmed) {
		var compact bytes.Buffer
		if err := json.Compact(&compact, trimmed); err == nil {
			return compact.Bytes()
		}
	}
	quoted, _ := json.Marshal(string(body))
	return quoted
}
