package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/markjakearzadon/shoegame-gobackend/internal/apperr"
	"github.com/markjakearzadon/shoegame-gobackend/internal/models"
)

const (
	transactionType = "CustomerPayBillOnline"
	transactionDesc = "Payment for SHOEGAME order"
)

type stkGateway interface {
	AccessToken(ctx context.Context) (string, error)
	ProcessRequest(ctx context.Context, token string, payload models.STKPushRequest) (json.RawMessage, error)
}

type appendLog interface {
	Append(v any) error
}

// PaymentSettings is the merchant configuration used to sign STK pushes.
type PaymentSettings struct {
	ShortCode        string
	Passkey          string
	CallbackURL      string
	AccountReference string
}

// stkErrorEntry is one line of stk_errors.log.
type stkErrorEntry struct {
	Time  time.Time `json:"time"`
	Error any       `json:"error"`
}

// PaymentService initiates STK pushes. It keeps no state between calls
// beyond its configuration.
type PaymentService struct {
	gateway  stkGateway
	errorLog appendLog
	settings PaymentSettings
	now      func() time.Time
}

func NewPaymentService(gateway stkGateway, errorLog appendLog, settings PaymentSettings) *PaymentService {
	return &PaymentService{
		gateway:  gateway,
		errorLog: errorLog,
		settings: settings,
		now:      time.Now,
	}
}

// InitiateSTKPush validates req, signs it and sends it to the gateway. The
// gateway acknowledgment, which carries the CheckoutRequestID, is returned
// unmodified. Validation failures return before any network call or log
// write; upstream failures are appended to the STK error log.
func (s *PaymentService) InitiateSTKPush(ctx context.Context, req models.PaymentRequest) (json.RawMessage, error) {
	amount := strings.TrimSpace(req.Amount.String())
	phone := strings.TrimSpace(req.Phone)
	if amount == "" || amount == "0" || phone == "" {
		return nil, apperr.Validation("amount and phone required")
	}
	value, err := json.Number(amount).Float64()
	if err != nil || value <= 0 || math.IsInf(value, 0) || math.IsNaN(value) {
		return nil, apperr.Validation("amount must be a positive number")
	}

	normalized, err := NormalizePhone(phone)
	if err != nil {
		return nil, err
	}

	shortcode := s.settings.ShortCode
	if strings.TrimSpace(req.PayTo) != "" {
		shortcode, err = ValidatePayTo(req.PayTo)
		if err != nil {
			return nil, err
		}
	}

	token, err := s.gateway.AccessToken(ctx)
	if err != nil {
		s.recordFailure(err)
		return nil, err
	}

	timestamp := stkTimestamp(s.now())
	payload := models.STKPushRequest{
		BusinessShortCode: shortcode,
		Password:          stkPassword(shortcode, s.settings.Passkey, timestamp),
		Timestamp:         timestamp,
		TransactionType:   transactionType,
		Amount:            json.Number(amount),
		PartyA:            normalized,
		PartyB:            shortcode,
		PhoneNumber:       normalized,
		CallBackURL:       s.settings.CallbackURL,
		AccountReference:  s.settings.AccountReference,
		TransactionDesc:   transactionDesc,
	}

	slog.Info("Sending STK push",
		"shortcode", shortcode,
		"phone", maskPhone(normalized),
		"amount", amount,
	)

	ack, err := s.gateway.ProcessRequest(ctx, token, payload)
	if err != nil {
		s.recordFailure(err)
		return nil, err
	}
	return ack, nil
}

// AccessToken fetches a fresh token for diagnostics.
func (s *PaymentService) AccessToken(ctx context.Context) (string, error) {
	token, err := s.gateway.AccessToken(ctx)
	if err != nil {
		s.recordFailure(err)
		return "", err
	}
	return token, nil
}

func (s *PaymentService) recordFailure(err error) {
	slog.Error("STK Push error", "kind", apperr.Kind(err), "error", err)
	entry := stkErrorEntry{Time: s.now().UTC(), Error: apperr.Details(err)}
	if logErr := s.errorLog.Append(entry); logErr != nil {
		slog.Error("Failed to write stk error log", "error", logErr)
	}
}
