package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"storefront-be/internal/apperror"
	"storefront-be/internal/logger"
	"storefront-be/internal/order"
	"storefront-be/internal/payment"
	"storefront-be/internal/utils"

	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// Payload is the JSON the gateway posts for every event.
type Payload struct {
	EventID       string `json:"event_id"`
	Type          string `json:"type"`
	OrderID       string `json:"order_id"`
	Reference     string `json:"reference,omitempty"`
	Outcome       string `json:"outcome,omitempty"`
	FailureReason string `json:"failure_reason,omitempty"`
}

// Processor applies a verified gateway event.
type Processor interface {
	HandlePaymentEvent(ctx context.Context, e payment.Event) (*order.EventOutcome, error)
}

type Handler struct {
	processor     Processor
	callbackToken string
	requireToken  bool
}

// NewHandler builds the callback handler. With requireToken false an empty
// callbackToken disables verification, which only local development does.
func NewHandler(processor Processor, callbackToken string, requireToken bool) *Handler {
	return &Handler{
		processor:     processor,
		callbackToken: callbackToken,
		requireToken:  requireToken,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := logger.FromCtx(r.Context()).With(
		zap.String("layer", "webhook"),
	)

	if r.Method != http.MethodPost {
		utils.WriteJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := payment.VerifyCallbackToken(r, h.callbackToken, h.requireToken); err != nil {
		log.Warn("rejected payment callback", zap.String("remote_addr", r.RemoteAddr))
		utils.WriteJSONError(w, "invalid callback token", http.StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		utils.WriteJSONError(w, "failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		utils.WriteJSONError(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}

	log = log.With(
		zap.String("event_id", p.EventID),
		zap.String("event_type", p.Type),
		zap.String("order_id", p.OrderID),
	)

	out, err := h.processor.HandlePaymentEvent(r.Context(), payment.Event{
		Provider:      payment.ProviderDefault,
		EventID:       p.EventID,
		Type:          payment.EventType(p.Type),
		OrderID:       p.OrderID,
		Reference:     p.Reference,
		Outcome:       p.Outcome,
		FailureReason: p.FailureReason,
		Payload:       json.RawMessage(body),
		ReceivedAt:    time.Now().UTC(),
	})
	if err != nil {
		status := statusFor(err)
		if status == http.StatusOK {
			log.Info("payment event for unknown resource acknowledged", zap.Error(err))
			writeJSON(w, http.StatusOK, map[string]any{"received": true, "applied": false})
			return
		}
		log.Error("payment event failed", zap.Int("status", status), zap.Error(err))
		utils.WriteJSONError(w, apperror.From(err).Message, status)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"received":  true,
		"duplicate": out.Duplicate,
		"applied":   out.Applied,
	})
}

// statusFor decides whether the gateway should redeliver. Only transient
// failures ask for a retry; bad input and unknown orders never succeed later.
func statusFor(err error) int {
	switch apperror.CodeOf(err) {
	case apperror.CodeInvalidInput:
		return http.StatusBadRequest
	case apperror.CodeNotFound:
		return http.StatusOK
	case apperror.CodeTimeout:
		return http.StatusServiceUnavailable
	}
	if apperror.IsTimeout(err) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
