package domain

import (
	"context"

	"github.com/lgndcraft2/giving-tree/internal/config"
	"go.uber.org/zap"
)

// Gateway is one payment provider. Verify never returns an error; every
// failure is reported as a Failed result.
type Gateway interface {
	Provider() string
	Verify(ctx context.Context, reference string) VerificationResult
	Initialize(ctx context.Context, req InitializeRequest) (InitializeResult, error)
}

type AdapterFactory interface {
	Provider() string
	NewGateway(cfg config.PaymentConfig, log *zap.Logger) (Gateway, error)
}

// InitializeRequest is what is sent to the provider to start a checkout.
// AmountMinor is in subunits.
type InitializeRequest struct {
	Reference   string
	Email       string
	AmountMinor int64
	Currency    string
	CallbackURL string
	Metadata    Metadata
}

type InitializeResult struct {
	AuthorizationURL string
	Reference        string
}
