package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/markjakearzadon/shoegame-gobackend/internal/models"
	"github.com/markjakearzadon/shoegame-gobackend/internal/services"
)

const transactionsLimit = 50

type stkService interface {
	InitiateSTKPush(ctx context.Context, req models.PaymentRequest) (json.RawMessage, error)
	AccessToken(ctx context.Context) (string, error)
}

type callbackService interface {
	HandleCallback(ctx context.Context, body []byte) (*models.Transaction, error)
	Transactions(ctx context.Context, limit int) ([]models.Transaction, error)
}

type MpesaHandler struct {
	payments  stkService
	callbacks callbackService
}

func NewMpesaHandler(payments stkService, callbacks callbackService) *MpesaHandler {
	return &MpesaHandler{payments: payments, callbacks: callbacks}
}

// STKPush initiates a Lipa Na M-Pesa Online payment and relays the gateway
// acknowledgment.
func (h *MpesaHandler) STKPush(w http.ResponseWriter, r *http.Request) {
	var req models.PaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ack, err := h.payments.InitiateSTKPush(r.Context(), req)
	if err != nil {
		writeFailure(w, err, "STK Push failed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(ack)
}

// Callback acknowledges every delivery it could record, parseable or not, so
// the gateway does not retry. One byte past the audit limit is read so the
// service can tell the body was cut.
func (h *MpesaHandler) Callback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, services.MaxCallbackBody+1))
	if err != nil {
		slog.Warn("Failed to read callback body, recording what arrived", "bytes", len(body), "error", err)
	}

	if _, err := h.callbacks.HandleCallback(r.Context(), body); err != nil {
		slog.Error("Error handling callback", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "received"})
}

func (h *MpesaHandler) Token(w http.ResponseWriter, r *http.Request) {
	token, err := h.payments.AccessToken(r.Context())
	if err != nil {
		writeFailure(w, err, "Token fetch failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// Transactions returns the last 50 ledger entries, oldest first.
func (h *MpesaHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.callbacks.Transactions(r.Context(), transactionsLimit)
	if err != nil {
		slog.Error("Failed to read transactions", "error", err)
		writeError(w, http.StatusInternalServerError, "Unable to read transactions")
		return
	}
	if txs == nil {
		txs = []models.Transaction{}
	}
	writeJSON(w, http.StatusOK, txs)
}
