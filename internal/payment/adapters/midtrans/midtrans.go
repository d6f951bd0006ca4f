package midtrans

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lgndcraft2/giving-tree/internal/config"
	paymentdomain "github.com/lgndcraft2/giving-tree/internal/payment/domain"
	midtransgo "github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	Provider = "midtrans"

	defaultTimeout = 12 * time.Second
)

type statusChecker interface {
	CheckTransaction(orderID string) (*coreapi.TransactionStatusResponse, *midtransgo.Error)
}

type transactionCreator interface {
	CreateTransaction(req *snap.Request) (*snap.Response, *midtransgo.Error)
}

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() string {
	return Provider
}

func (f *Factory) NewGateway(cfg config.PaymentConfig, log *zap.Logger) (paymentdomain.Gateway, error) {
	serverKey := strings.TrimSpace(cfg.MidtransServerKey)
	if serverKey == "" {
		return nil, paymentdomain.ErrInvalidConfig
	}
	env := midtransgo.Sandbox
	if strings.EqualFold(cfg.MidtransEnv, "production") {
		env = midtransgo.Production
	}
	timeout := cfg.VerifyTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("payment.midtrans")

	// The SDK's default client logs request headers in sandbox, including
	// the basic auth header carrying the server key.
	transport := &midtransgo.HttpClientImplementation{
		HttpClient: &http.Client{Timeout: timeout},
		Logger:     sdkLogger{log: log},
	}

	core := &coreapi.Client{}
	core.New(serverKey, env)
	core.HttpClient = transport
	checkout := &snap.Client{}
	checkout.New(serverKey, env)
	checkout.HttpClient = transport

	return &Gateway{
		core:     core,
		checkout: checkout,
		log:      log,
	}, nil
}

// sdkLogger forwards SDK errors to zap and drops info and debug output,
// which echoes headers and bodies.
type sdkLogger struct {
	log *zap.Logger
}

func (l sdkLogger) Error(format string, val ...interface{}) {
	l.log.Warn("midtrans sdk", zap.String("message", fmt.Sprintf(format, val...)))
}

func (l sdkLogger) Info(string, ...interface{}) {}

func (l sdkLogger) Debug(string, ...interface{}) {}

// Gateway verifies Midtrans orders through the Core API status endpoint and
// starts checkouts through Snap. The SDK calls take no context.
type Gateway struct {
	core     statusChecker
	checkout transactionCreator
	log      *zap.Logger
}

func (g *Gateway) Provider() string {
	return Provider
}

func (g *Gateway) Verify(ctx context.Context, reference string) paymentdomain.VerificationResult {
	reference = strings.TrimSpace(reference)
	resp, merr := g.core.CheckTransaction(reference)
	if merr != nil {
		reason := classifyError(merr)
		g.log.Info("status check failed",
			zap.String("reference", reference),
			zap.Int("status_code", merr.StatusCode),
			zap.String("reason", string(reason)),
		)
		return paymentdomain.Failed{Reason: reason}
	}
	if resp == nil {
		return paymentdomain.Failed{Reason: paymentdomain.ReasonMalformedResponse}
	}

	switch strings.ToLower(strings.TrimSpace(resp.TransactionStatus)) {
	case "settlement", "capture":
	default:
		g.log.Info("transaction not settled",
			zap.String("reference", reference),
			zap.String("transaction_status", resp.TransactionStatus),
		)
		return paymentdomain.Failed{Reason: paymentdomain.ReasonVerificationRejected}
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(resp.GrossAmount))
	if err != nil || !amount.IsPositive() {
		return paymentdomain.Failed{Reason: paymentdomain.ReasonMalformedResponse}
	}

	orderID := resp.OrderID
	if orderID == "" {
		orderID = reference
	}
	metadata := paymentdomain.Metadata{}
	if itemID, _, ok := SplitOrderID(orderID); ok {
		metadata[paymentdomain.MetadataItemID] = itemID
	}

	return paymentdomain.Verified{
		Amount:     amount,
		DonorEmail: paymentdomain.UnknownDonorEmail,
		Metadata:   metadata,
	}
}

// Initialize opens a Snap checkout. Midtrans charges whole units, so amounts
// with a fractional part are refused. The status API does not echo custom
// data, so the wish id travels in the order id.
func (g *Gateway) Initialize(ctx context.Context, in paymentdomain.InitializeRequest) (paymentdomain.InitializeResult, error) {
	if in.AmountMinor%100 != 0 {
		return paymentdomain.InitializeResult{}, fmt.Errorf("%w: fractional amount", paymentdomain.ErrInitializeFailed)
	}
	itemID := in.Metadata.ItemIDString()
	if itemID == "" {
		return paymentdomain.InitializeResult{}, fmt.Errorf("%w: missing item id", paymentdomain.ErrInitializeFailed)
	}
	orderID := itemID + orderIDSeparator + in.Reference

	resp, merr := g.checkout.CreateTransaction(&snap.Request{
		TransactionDetails: midtransgo.TransactionDetails{
			OrderID:  orderID,
			GrossAmt: in.AmountMinor / 100,
		},
		CustomerDetail: &midtransgo.CustomerDetails{
			Email: in.Email,
		},
	})
	if merr != nil {
		return paymentdomain.InitializeResult{}, fmt.Errorf("%w: %v", paymentdomain.ErrInitializeFailed, asError(merr))
	}
	if resp == nil || resp.RedirectURL == "" {
		return paymentdomain.InitializeResult{}, fmt.Errorf("%w: empty redirect url", paymentdomain.ErrInitializeFailed)
	}
	return paymentdomain.InitializeResult{
		AuthorizationURL: resp.RedirectURL,
		Reference:        orderID,
	}, nil
}

const orderIDSeparator = "-"

// SplitOrderID undoes the "<item id>-<reference>" order id format.
func SplitOrderID(orderID string) (itemID, reference string, ok bool) {
	itemID, reference, ok = strings.Cut(strings.TrimSpace(orderID), orderIDSeparator)
	if !ok || itemID == "" || reference == "" {
		return "", "", false
	}
	return itemID, reference, true
}

// classifyError maps SDK errors. Transport failures carry no API response;
// the SDK reports client timeouts as 408.
func classifyError(merr *midtransgo.Error) paymentdomain.FailureReason {
	if merr.RawApiResponse == nil {
		return paymentdomain.ReasonGatewayUnreachable
	}
	code := merr.StatusCode
	switch {
	case code == http.StatusRequestTimeout || code == http.StatusTooManyRequests || code >= 500:
		return paymentdomain.ReasonGatewayUnreachable
	case code >= 400:
		return paymentdomain.ReasonVerificationRejected
	default:
		return paymentdomain.ReasonMalformedResponse
	}
}

func asError(merr *midtransgo.Error) error {
	if merr == nil {
		return nil
	}
	return merr
}
