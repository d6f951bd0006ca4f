package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lgndcraft2/giving-tree/internal/config"
	paymentdomain "github.com/lgndcraft2/giving-tree/internal/payment/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	Provider = "paystack"

	defaultBaseURL = "https://api.paystack.co"
	defaultTimeout = 12 * time.Second
	maxBodyBytes   = 1 << 20
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() string {
	return Provider
}

func (f *Factory) NewGateway(cfg config.PaymentConfig, log *zap.Logger) (paymentdomain.Gateway, error) {
	secret := strings.TrimSpace(cfg.SecretKey)
	if secret == "" {
		return nil, paymentdomain.ErrInvalidConfig
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, paymentdomain.ErrInvalidConfig
	}
	timeout := cfg.VerifyTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Gateway{
		secret:  secret,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		log:     log.Named("payment.paystack"),
	}, nil
}

// Gateway talks to the Paystack transaction API. The secret key is only
// ever placed in the Authorization header.
type Gateway struct {
	secret  string
	baseURL string
	client  *http.Client
	log     *zap.Logger
}

func (g *Gateway) Provider() string {
	return Provider
}

type verifyResponse struct {
	Status  bool        `json:"status"`
	Message string      `json:"message"`
	Data    *verifyData `json:"data"`
}

type verifyData struct {
	Status    string          `json:"status"`
	Reference string          `json:"reference"`
	Amount    *int64          `json:"amount"`
	Email     string          `json:"email"`
	Metadata  json.RawMessage `json:"metadata"`
	Customer  *struct {
		Email string `json:"email"`
	} `json:"customer"`
}

func (g *Gateway) Verify(ctx context.Context, reference string) paymentdomain.VerificationResult {
	reference = strings.TrimSpace(reference)
	endpoint := g.baseURL + "/transaction/verify/" + url.PathEscape(reference)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		g.log.Warn("build verify request", zap.Error(err))
		return paymentdomain.Failed{Reason: paymentdomain.ReasonGatewayUnreachable}
	}
	g.authorize(req)

	resp, err := g.client.Do(req)
	if err != nil {
		g.log.Warn("verify request failed", zap.String("reference", reference), zap.Error(err))
		return paymentdomain.Failed{Reason: paymentdomain.ReasonGatewayUnreachable}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		g.log.Warn("read verify response", zap.String("reference", reference), zap.Error(err))
		return paymentdomain.Failed{Reason: paymentdomain.ReasonGatewayUnreachable}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		g.log.Info("verification rejected",
			zap.String("reference", reference),
			zap.Int("status_code", resp.StatusCode),
		)
		return paymentdomain.Failed{Reason: paymentdomain.ReasonVerificationRejected}
	}

	var payload verifyResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		g.log.Warn("decode verify response", zap.String("reference", reference), zap.Error(err))
		return paymentdomain.Failed{Reason: paymentdomain.ReasonMalformedResponse}
	}
	if !payload.Status {
		g.log.Info("verification rejected",
			zap.String("reference", reference),
			zap.String("message", payload.Message),
		)
		return paymentdomain.Failed{Reason: paymentdomain.ReasonVerificationRejected}
	}
	if payload.Data == nil {
		return paymentdomain.Failed{Reason: paymentdomain.ReasonMalformedResponse}
	}
	data := payload.Data
	if !strings.EqualFold(strings.TrimSpace(data.Status), "success") {
		g.log.Info("transaction not successful",
			zap.String("reference", reference),
			zap.String("transaction_status", data.Status),
		)
		return paymentdomain.Failed{Reason: paymentdomain.ReasonVerificationRejected}
	}
	if data.Amount == nil || *data.Amount <= 0 {
		return paymentdomain.Failed{Reason: paymentdomain.ReasonMalformedResponse}
	}

	metadata, ok := paymentdomain.ParseMetadata(data.Metadata)
	if !ok {
		g.log.Warn("unreadable transaction metadata", zap.String("reference", reference))
	}
	customerEmail := ""
	if data.Customer != nil {
		customerEmail = data.Customer.Email
	}

	return paymentdomain.Verified{
		Amount:     decimal.New(*data.Amount, -2),
		DonorEmail: paymentdomain.ResolveEmail(customerEmail, data.Email, metadata.Email()),
		Metadata:   metadata,
	}
}

type initializeRequest struct {
	Email       string                 `json:"email"`
	Amount      int64                  `json:"amount"`
	Currency    string                 `json:"currency,omitempty"`
	Reference   string                 `json:"reference"`
	CallbackURL string                 `json:"callback_url,omitempty"`
	Metadata    paymentdomain.Metadata `json:"metadata,omitempty"`
}

type initializeResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    *struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	} `json:"data"`
}

func (g *Gateway) Initialize(ctx context.Context, in paymentdomain.InitializeRequest) (paymentdomain.InitializeResult, error) {
	body, err := json.Marshal(initializeRequest{
		Email:       in.Email,
		Amount:      in.AmountMinor,
		Currency:    in.Currency,
		Reference:   in.Reference,
		CallbackURL: in.CallbackURL,
		Metadata:    in.Metadata,
	})
	if err != nil {
		return paymentdomain.InitializeResult{}, fmt.Errorf("marshal initialize request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/transaction/initialize", bytes.NewReader(body))
	if err != nil {
		return paymentdomain.InitializeResult{}, fmt.Errorf("build initialize request: %w", err)
	}
	g.authorize(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return paymentdomain.InitializeResult{}, errors.Join(paymentdomain.ErrInitializeFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return paymentdomain.InitializeResult{}, errors.Join(paymentdomain.ErrInitializeFailed, err)
	}

	var payload initializeResponse
	decodeErr := json.Unmarshal(raw, &payload)
	if resp.StatusCode < 200 || resp.StatusCode > 299 || decodeErr != nil || !payload.Status || payload.Data == nil {
		g.log.Warn("initialize rejected",
			zap.String("reference", in.Reference),
			zap.Int("status_code", resp.StatusCode),
			zap.String("message", payload.Message),
		)
		return paymentdomain.InitializeResult{}, fmt.Errorf("%w: status %d", paymentdomain.ErrInitializeFailed, resp.StatusCode)
	}
	if strings.TrimSpace(payload.Data.AuthorizationURL) == "" {
		return paymentdomain.InitializeResult{}, fmt.Errorf("%w: missing authorization url", paymentdomain.ErrInitializeFailed)
	}

	reference := payload.Data.Reference
	if reference == "" {
		reference = in.Reference
	}
	return paymentdomain.InitializeResult{
		AuthorizationURL: payload.Data.AuthorizationURL,
		Reference:        reference,
	}, nil
}

func (g *Gateway) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+g.secret)
	req.Header.Set("Accept", "application/json")
}
