package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/markjakearzadon/shoegame-gobackend/internal/apperr"
	"github.com/markjakearzadon/shoegame-gobackend/internal/models"
)

type memLedger struct {
	mu  sync.Mutex
	txs []models.Transaction
	err error
}

func (l *memLedger) Append(_ context.Context, tx models.Transaction) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.txs = append(l.txs, tx)
	return nil
}

func (l *memLedger) List(_ context.Context, limit int) ([]models.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if limit <= 0 || limit >= len(l.txs) {
		return append([]models.Transaction{}, l.txs...), nil
	}
	return append([]models.Transaction{}, l.txs[len(l.txs)-limit:]...), nil
}

var fixedNow = time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

func newTestCallbackService(l *memLedger, audit *memLog) *CallbackService {
	s := NewCallbackService(l, audit)
	s.now = func() time.Time { return fixedNow }
	return s
}

const successCallback = `{
  "Body": {
    "stkCallback": {
      "MerchantRequestID": "29115-34620561-1",
      "CheckoutRequestID": "ws_CO_191220191020363925",
      "ResultCode": 0,
      "ResultDesc": "The service request is processed successfully.",
      "CallbackMetadata": {
        "Item": [
          {"Name": "Amount", "Value": 100},
          {"Name": "MpesaReceiptNumber", "Value": "ABC123"},
          {"Name": "TransactionDate", "Value": 20191219102115},
          {"Name": "PhoneNumber", "Value": 254712345678}
        ]
      }
    }
  }
}`

func TestHandleCallbackSuccess(t *testing.T) {
	t.Parallel()

	l := &memLedger{}
	audit := &memLog{}
	s := newTestCallbackService(l, audit)

	tx, err := s.HandleCallback(context.Background(), []byte(successCallback))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tx == nil {
		t.Fatal("expected a transaction")
	}
	if audit.len() != 1 {
		t.Fatalf("expected one audit entry, got %d", audit.len())
	}
	if len(l.txs) != 1 {
		t.Fatalf("expected one ledger entry, got %d", len(l.txs))
	}

	got := l.txs[0]
	if got.ID != "ws_CO_191220191020363925" {
		t.Fatalf("expected checkout id, got %q", got.ID)
	}
	if got.Status != models.StatusSuccess {
		t.Fatalf("expected SUCCESS, got %s", got.Status)
	}
	if got.Receipt == nil || *got.Receipt != "ABC123" {
		t.Fatalf("expected receipt ABC123, got %v", got.Receipt)
	}
	if got.Amount == nil || *got.Amount != 100 {
		t.Fatalf("expected amount 100, got %v", got.Amount)
	}
	if got.Phone == nil || *got.Phone != "254712345678" {
		t.Fatalf("expected phone 254712345678, got %v", got.Phone)
	}
	if got.Code != nil || got.Desc != nil {
		t.Fatalf("expected no failure fields on success, got %+v", got)
	}
	if !got.Time.Equal(fixedNow) {
		t.Fatalf("expected time %v, got %v", fixedNow, got.Time)
	}

	var raw map[string]any
	if err := json.Unmarshal(got.Raw, &raw); err != nil || raw["CheckoutRequestID"] != "ws_CO_191220191020363925" {
		t.Fatalf("expected raw stkCallback preserved, got %s", got.Raw)
	}
}

func TestHandleCallbackOutcomes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       string
		wantID     string
		wantStatus models.TransactionStatus
		wantCode   *int
		wantDesc   string
	}{
		{
			name:       "cancelled",
			body:       `{"Body":{"stkCallback":{"CheckoutRequestID":"ws_CO_2","ResultCode":1032,"ResultDesc":"Request cancelled by user"}}}`,
			wantID:     "ws_CO_2",
			wantStatus: models.StatusFailed,
			wantCode:   intPtr(1032),
			wantDesc:   "Request cancelled by user",
		},
		{
			name:       "bare_shape",
			body:       `{"stkCallback":{"CheckoutRequestID":"ws_CO_3","ResultCode":1,"ResultDesc":"Insufficient funds"}}`,
			wantID:     "ws_CO_3",
			wantStatus: models.StatusFailed,
			wantCode:   intPtr(1),
			wantDesc:   "Insufficient funds",
		},
		{
			name:       "missing_result_code",
			body:       `{"Body":{"stkCallback":{"CheckoutRequestID":"ws_CO_4","ResultDesc":"unknown"}}}`,
			wantID:     "ws_CO_4",
			wantStatus: models.StatusFailed,
			wantDesc:   "unknown",
		},
		{
			name:       "string_result_code",
			body:       `{"Body":{"stkCallback":{"CheckoutRequestID":"ws_CO_5","ResultCode":"0","ResultDesc":"odd"}}}`,
			wantID:     "ws_CO_5",
			wantStatus: models.StatusFailed,
			wantDesc:   "odd",
		},
		{
			name:       "numeric_checkout_id",
			body:       `{"Body":{"stkCallback":{"CheckoutRequestID":12345,"ResultCode":0}}}`,
			wantID:     "12345",
			wantStatus: models.StatusSuccess,
		},
		{
			name:       "numeric_result_desc",
			body:       `{"Body":{"stkCallback":{"CheckoutRequestID":"ws_CO_6","ResultCode":2001,"ResultDesc":500}}}`,
			wantID:     "ws_CO_6",
			wantStatus: models.StatusFailed,
			wantCode:   intPtr(2001),
			wantDesc:   "500",
		},
		{
			name:       "metadata_not_object",
			body:       `{"Body":{"stkCallback":{"CheckoutRequestID":"ws_CO_7","ResultCode":0,"CallbackMetadata":""}}}`,
			wantID:     "ws_CO_7",
			wantStatus: models.StatusSuccess,
		},
		{
			name:       "float_zero_result_code",
			body:       `{"Body":{"stkCallback":{"CheckoutRequestID":"ws_CO_8","ResultCode":0.0}}}`,
			wantID:     "ws_CO_8",
			wantStatus: models.StatusSuccess,
		},
		{
			name:       "float_failure_code",
			body:       `{"stkCallback":{"CheckoutRequestID":"ws_CO_9","ResultCode":1032.0,"ResultDesc":"Request cancelled"}}`,
			wantID:     "ws_CO_9",
			wantStatus: models.StatusFailed,
			wantCode:   intPtr(1032),
			wantDesc:   "Request cancelled",
		},
		{
			name:       "missing_checkout_id",
			body:       `{"Body":{"stkCallback":{"ResultCode":0}}}`,
			wantID:     "1748779200000",
			wantStatus: models.StatusSuccess,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			l := &memLedger{}
			s := newTestCallbackService(l, &memLog{})

			if _, err := s.HandleCallback(context.Background(), []byte(tt.body)); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(l.txs) != 1 {
				t.Fatalf("expected one ledger entry, got %d", len(l.txs))
			}
			got := l.txs[0]
			if got.ID != tt.wantID {
				t.Fatalf("expected id %q, got %q", tt.wantID, got.ID)
			}
			if got.Status != tt.wantStatus {
				t.Fatalf("expected %s, got %s", tt.wantStatus, got.Status)
			}
			if tt.wantStatus == models.StatusSuccess {
				return
			}
			if got.Desc == nil || *got.Desc != tt.wantDesc {
				t.Fatalf("expected desc %q, got %v", tt.wantDesc, got.Desc)
			}
			switch {
			case tt.wantCode == nil && got.Code != nil:
				t.Fatalf("expected no code, got %d", *got.Code)
			case tt.wantCode != nil && (got.Code == nil || *got.Code != *tt.wantCode):
				t.Fatalf("expected code %d, got %v", *tt.wantCode, got.Code)
			}
		})
	}
}

func TestHandleCallbackUnrecognized(t *testing.T) {
	t.Parallel()

	bodies := []string{
		``,
		`not json at all`,
		`{"hello":"world"}`,
		`{"Body":{}}`,
		`{"Body":{"stkCallback":null}}`,
		`{"Body":{"stkCallback":"done"}}`,
		`{"stkCallback":[0]}`,
		`[1,2,3]`,
	}

	for _, body := range bodies {
		body := body
		t.Run(body, func(t *testing.T) {
			t.Parallel()

			l := &memLedger{}
			audit := &memLog{}
			s := newTestCallbackService(l, audit)

			tx, err := s.HandleCallback(context.Background(), []byte(body))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tx != nil {
				t.Fatalf("expected no transaction, got %+v", tx)
			}
			if len(l.txs) != 0 {
				t.Fatalf("expected empty ledger, got %d", len(l.txs))
			}
			if audit.len() != 1 {
				t.Fatalf("expected the body to be audited, got %d entries", audit.len())
			}
			entry := audit.entries[0].(callbackLogEntry)
			if !json.Valid(entry.Payload) {
				t.Fatalf("expected audit payload to be valid JSON, got %s", entry.Payload)
			}
		})
	}
}

func TestHandleCallbackMalformedItemsKeepOutcome(t *testing.T) {
	t.Parallel()

	body := `{"Body":{"stkCallback":{"CheckoutRequestID":"ws_CO_10","ResultCode":0,"CallbackMetadata":{"Item":[
		"junk",
		{"Name":"MpesaReceiptNumber","Value":"QGR7XYZ"},
		{"Name":"Amount","Value":"250"},
		{"Name":"PhoneNumber","Value":254700000001}
	]}}}}`

	l := &memLedger{}
	s := newTestCallbackService(l, &memLog{})
	if _, err := s.HandleCallback(context.Background(), []byte(body)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(l.txs) != 1 {
		t.Fatalf("expected one ledger entry, got %d", len(l.txs))
	}
	got := l.txs[0]
	if got.Receipt == nil || *got.Receipt != "QGR7XYZ" {
		t.Fatalf("expected receipt QGR7XYZ, got %v", got.Receipt)
	}
	if got.Amount == nil || *got.Amount != 250 {
		t.Fatalf("expected amount 250, got %v", got.Amount)
	}
	if got.Phone == nil || *got.Phone != "254700000001" {
		t.Fatalf("expected phone 254700000001, got %v", got.Phone)
	}
}

func TestHandleCallbackTruncatesOversizedBody(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		body          string
		wantTruncated bool
	}{
		{name: "within_limit", body: successCallback},
		{name: "over_limit", body: strings.Repeat("x", MaxCallbackBody+10), wantTruncated: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			audit := &memLog{}
			s := newTestCallbackService(&memLedger{}, audit)
			if _, err := s.HandleCallback(context.Background(), []byte(tt.body)); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if audit.len() != 1 {
				t.Fatalf("expected one audit entry, got %d", audit.len())
			}
			entry := audit.entries[0].(callbackLogEntry)
			if entry.Truncated != tt.wantTruncated {
				t.Fatalf("expected truncated=%v, got %v", tt.wantTruncated, entry.Truncated)
			}
			if !tt.wantTruncated {
				return
			}
			var payload string
			if err := json.Unmarshal(entry.Payload, &payload); err != nil {
				t.Fatalf("expected quoted payload: %v", err)
			}
			if len(payload) != MaxCallbackBody {
				t.Fatalf("expected payload cut to %d bytes, got %d", MaxCallbackBody, len(payload))
			}
		})
	}
}

func TestHandleCallbackDuplicatesAppended(t *testing.T) {
	t.Parallel()

	l := &memLedger{}
	s := newTestCallbackService(l, &memLog{})

	for i := 0; i < 2; i++ {
		if _, err := s.HandleCallback(context.Background(), []byte(successCallback)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if len(l.txs) != 2 {
		t.Fatalf("expected both deliveries recorded, got %d", len(l.txs))
	}
}

func TestHandleCallbackPersistenceFailures(t *testing.T) {
	t.Parallel()

	t.Run("audit_log", func(t *testing.T) {
		t.Parallel()

		l := &memLedger{}
		s := newTestCallbackService(l, &memLog{err: errors.New("disk full")})

		_, err := s.HandleCallback(context.Background(), []byte(successCallback))
		var perr *apperr.PersistenceError
		if !errors.As(err, &perr) {
			t.Fatalf("expected PersistenceError, got %v", err)
		}
		if len(l.txs) != 0 {
			t.Fatalf("expected nothing reconciled after audit failure, got %d", len(l.txs))
		}
	})

	t.Run("ledger", func(t *testing.T) {
		t.Parallel()

		ledgerErr := apperr.Persistence("write ledger", errors.New("disk full"))
		s := newTestCallbackService(&memLedger{err: ledgerErr}, &memLog{})

		_, err := s.HandleCallback(context.Background(), []byte(successCallback))
		if !errors.Is(err, ledgerErr) {
			t.Fatalf("expected ledger error, got %v", err)
		}
	})
}

func TestDecodeCallbackPrefersEnvelope(t *testing.T) {
	t.Parallel()

	body := `{"Body":{"stkCallback":{"CheckoutRequestID":"inner","ResultCode":0}},"stkCallback":{"CheckoutRequestID":"outer","ResultCode":0}}`
	env := DecodeCallback([]byte(body))
	if env.Shape != models.ShapeEnveloped {
		t.Fatalf("expected enveloped shape, got %s", env.Shape)
	}
	if env.Callback.CheckoutRequestID != "inner" {
		t.Fatalf("expected inner callback, got %q", env.Callback.CheckoutRequestID)
	}
}

func TestAuditPayload(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: `{}`},
		{name: "json_compacted", in: "{ \"a\" : 1 }\n", want: `{"a":1}`},
		{name: "text_quoted", in: "oops", want: `"oops"`},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := string(auditPayload([]byte(tt.in))); got != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestTransactionsLimit(t *testing.T) {
	t.Parallel()

	l := &memLedger{}
	for _, id := range []string{"a", "b", "c"} {
		l.txs = append(l.txs, models.Transaction{ID: id, Status: models.StatusSuccess})
	}
	s := newTestCallbackService(l, &memLog{})

	got, err := s.Transactions(context.Background(), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].ID != "b" || got[1].ID != "c" {
		t.Fatalf("expected [b c], got %+v", got)
	}
}

func intPtr(v int) *int { return &v }
