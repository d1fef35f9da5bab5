package payment

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"storefront-be/internal/logger"
	"storefront-be/internal/metrics"

	"go.uber.org/zap"
)

const (
	CallbackTokenHeader = "X-Callback-Token"

	authorizationsPath = "/v1/authorizations"
)

type Gateway interface {
	CreateAuthorization(ctx context.Context, req AuthorizationRequest) (*Authorization, error)
}

type httpGateway struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client

	requested *metrics.Counter
	failed    *metrics.Counter
}

// ----------------- Constructor -----------------

func NewHTTPGateway(baseURL, apiKey string, reg *metrics.Registry) Gateway {
	if apiKey == "" {
		logger.L().Warn("payment API key is empty")
	}
	if reg == nil {
		reg = metrics.NewRegistry()
	}

	return &httpGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		requested: reg.Counter("payment.authorizations.requested"),
		failed:    reg.Counter("payment.authorizations.failed"),
	}
}

// ----------------- CreateAuthorization -----------------

func (g *httpGateway) CreateAuthorization(ctx context.Context, in AuthorizationRequest) (*Authorization, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "gateway"),
		zap.String("order_id", in.OrderID),
		zap.Int64("amount_cents", in.AmountCents),
		zap.String("currency", in.Currency),
	)

	g.requested.Inc()
	timer := metrics.StartTimer()

	auth, err := g.createAuthorization(ctx, log, in)
	if err != nil {
		g.failed.Inc()
		log.Error("payment authorization failed", zap.Duration("took", timer.Duration()), zap.Error(err))
		return nil, err
	}

	log.Info("payment authorization created",
		zap.String("reference", auth.Reference),
		zap.String("status", auth.Status),
		zap.Duration("took", timer.Duration()),
	)
	return auth, nil
}

func (g *httpGateway) createAuthorization(ctx context.Context, log *zap.Logger, in AuthorizationRequest) (*Authorization, error) {
	body := map[string]interface{}{
		"amount":       in.AmountCents,
		"currency":     in.Currency,
		"reference_id": in.OrderID,
		"capture":      "automatic",
		"metadata": map[string]interface{}{
			"order_id":     in.OrderID,
			"order_number": in.OrderNumber,
		},
	}
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+authorizationsPath, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, err
	}

	req.SetBasicAuth(g.apiKey, "")
	req.Header.Add("Content-Type", "application/json")

	log.Debug("sending authorization request")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read gateway response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		log.Error("gateway returned non-success status",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("response", bodyBytes),
		)
		return nil, fmt.Errorf("gateway error: status %d", resp.StatusCode)
	}

	var res gatewayAuthorizationResponse
	if err := json.Unmarshal(bodyBytes, &res); err != nil {
		return nil, fmt.Errorf("decode gateway response: %w", err)
	}
	if res.ID == "" {
		return nil, ErrEmptyReference
	}

	return &Authorization{
		Reference:    res.ID,
		ClientSecret: res.ClientSecret,
		Status:       res.Status,
	}, nil
}

// ----------------- Verify Callback -----------------

// VerifyCallbackToken checks the shared secret the gateway sends with each
// webhook. An empty expected token disables the check unless required.
func VerifyCallbackToken(r *http.Request, expected string, required bool) error {
	if expected == "" {
		if required {
			return ErrInvalidCallbackToken
		}
		return nil
	}

	got := r.Header.Get(CallbackTokenHeader)
	if subtle.ConstantTimeCompare([]byte(got), []byte(expected)) != 1 {
		return ErrInvalidCallbackToken
	}
	return nil
}
