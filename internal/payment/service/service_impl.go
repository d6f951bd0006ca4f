package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin/binding"
	catalogdomain "github.com/lgndcraft2/giving-tree/internal/catalog/domain"
	"github.com/lgndcraft2/giving-tree/internal/clock"
	"github.com/lgndcraft2/giving-tree/internal/config"
	ledgerdomain "github.com/lgndcraft2/giving-tree/internal/ledger/domain"
	obsmetrics "github.com/lgndcraft2/giving-tree/internal/observability/metrics"
	paymentdomain "github.com/lgndcraft2/giving-tree/internal/payment/domain"
	"github.com/lgndcraft2/giving-tree/internal/payment/liveevents"
	"github.com/lgndcraft2/giving-tree/internal/ratelimit"
	"github.com/lgndcraft2/giving-tree/pkg/db/pagination"
	"github.com/lgndcraft2/giving-tree/pkg/money"
	"github.com/lgndcraft2/giving-tree/pkg/validation"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultReplayBatch = 50
	replayLockTTL      = 2 * time.Minute
)

// reconcile outcomes, used as the metric label
const (
	outcomeApplied          = "applied"
	outcomeDuplicate        = "duplicate"
	outcomePartialFailure   = "partial_failure"
	outcomeMissingReference = "missing_reference"
	outcomeGatewayError     = "gateway_error"
	outcomeMissingItemID    = "missing_item_id"
	outcomeInvalidItemID    = "invalid_item_id"
	outcomePersistenceError = "persistence_error"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Repo       paymentdomain.Repository
	Gateway    paymentdomain.Gateway
	Catalog    catalogdomain.Service
	Ledger     ledgerdomain.Service
	Config     config.Config
	Clock      clock.Clock         `optional:"true"`
	Hub        *liveevents.Hub     `optional:"true"`
	Locker     *ratelimit.Locker   `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	repo       paymentdomain.Repository
	gateway    paymentdomain.Gateway
	catalog    catalogdomain.Service
	ledger     ledgerdomain.Service
	cfg        config.PaymentConfig
	clock      clock.Clock
	hub        *liveevents.Hub
	locker     *ratelimit.Locker
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) paymentdomain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("payment.reconciler"),
		genID:      p.GenID,
		repo:       p.Repo,
		gateway:    p.Gateway,
		catalog:    p.Catalog,
		ledger:     p.Ledger,
		cfg:        p.Config.Payment,
		clock:      clk,
		hub:        p.Hub,
		locker:     p.Locker,
		obsMetrics: p.ObsMetrics,
	}
}

// Reconcile verifies reference with the gateway, records the payment once
// and credits its wish. The gateway call happens before any database work.
func (s *Service) Reconcile(ctx context.Context, reference string) (paymentdomain.ReconcileOutcome, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		s.recordOutcome(ctx, outcomeMissingReference)
		return paymentdomain.ReconcileOutcome{}, paymentdomain.ErrMissingReference
	}
	log := s.log.With(zap.String("reference", reference))

	verified, err := s.verify(ctx, reference)
	if err != nil {
		s.recordOutcome(ctx, outcomeGatewayError)
		log.Warn("payment verification failed", zap.Error(err))
		return paymentdomain.ReconcileOutcome{}, err
	}

	wishID, ok := verified.Metadata.ItemID()
	if !ok {
		s.recordOutcome(ctx, outcomeMissingItemID)
		log.Warn("verified payment has no item id",
			zap.String("item_id", verified.Metadata.ItemIDString()),
		)
		return paymentdomain.ReconcileOutcome{}, paymentdomain.ErrMissingItemID
	}

	wish, err := s.catalog.FindWishByID(ctx, wishID)
	if err != nil {
		if errors.Is(err, catalogdomain.ErrWishNotFound) {
			s.recordOutcome(ctx, outcomeInvalidItemID)
			log.Warn("verified payment names an unknown wish", zap.String("wish_id", wishID.String()))
			return paymentdomain.ReconcileOutcome{}, paymentdomain.ErrInvalidItemID
		}
		s.recordOutcome(ctx, outcomePersistenceError)
		return paymentdomain.ReconcileOutcome{}, &paymentdomain.PersistenceError{Err: err}
	}

	amountMinor, err := money.ToMinor(verified.Amount)
	if err != nil || amountMinor <= 0 {
		s.recordOutcome(ctx, outcomeGatewayError)
		return paymentdomain.ReconcileOutcome{}, &paymentdomain.GatewayError{
			Reason: paymentdomain.ReasonMalformedResponse,
			Err:    err,
		}
	}
	unitMinor, err := money.ToMinor(verified.Metadata.UnitPrice())
	if err != nil {
		unitMinor = 0
	}

	now := s.clock.Now()
	payment := paymentdomain.Payment{
		ID:         s.genID.Generate(),
		Reference:  reference,
		Gateway:    s.gateway.Provider(),
		WishID:     wish.ID,
		Quantity:   verified.Metadata.Quantity(),
		UnitPrice:  unitMinor,
		Amount:     amountMinor,
		DonorEmail: verified.DonorEmail,
		Metadata:   datatypes.JSONMap(verified.Metadata),
		PaidAt:     now,
		CreatedAt:  now,
	}

	inserted, err := s.repo.InsertIfAbsent(ctx, s.db, &payment)
	if err != nil {
		s.recordOutcome(ctx, outcomePersistenceError)
		log.Error("failed to store payment", zap.Error(err))
		return paymentdomain.ReconcileOutcome{}, &paymentdomain.PersistenceError{Err: err}
	}
	if !inserted {
		existing, err := s.repo.FindByReference(ctx, s.db, reference)
		if err == nil && existing == nil {
			err = paymentdomain.ErrPaymentNotFound
		}
		if err != nil {
			s.recordOutcome(ctx, outcomePersistenceError)
			log.Error("failed to load existing payment", zap.Error(err))
			return paymentdomain.ReconcileOutcome{}, &paymentdomain.PersistenceError{Err: err}
		}
		if existing.Applied() {
			s.recordOutcome(ctx, outcomeDuplicate)
			log.Info("duplicate callback ignored", zap.String("payment_id", existing.ID.String()))
			outcome := outcomeFor(*existing)
			outcome.Duplicate = true
			return outcome, nil
		}
		payment = *existing
	}

	outcome := outcomeFor(payment)
	applied, err := s.apply(ctx, payment, ledgerdomain.SourcePayment)
	switch {
	case err != nil:
		outcome.PartialFailure = true
		s.recordOutcome(ctx, outcomePartialFailure)
		log.Error("payment stored but wish total not updated",
			zap.String("payment_id", payment.ID.String()),
			zap.String("wish_id", payment.WishID.String()),
			zap.Int64("amount_minor", payment.Amount),
			zap.Error(err),
		)
	case !applied:
		outcome.Duplicate = true
		s.recordOutcome(ctx, outcomeDuplicate)
		log.Info("payment already applied by another callback", zap.String("payment_id", payment.ID.String()))
	default:
		s.recordOutcome(ctx, outcomeApplied)
		log.Info("payment reconciled",
			zap.String("payment_id", payment.ID.String()),
			zap.String("wish_id", payment.WishID.String()),
			zap.Int64("amount_minor", payment.Amount),
		)
		s.publish(ctx, payment)
	}
	return outcome, nil
}

func (s *Service) verify(ctx context.Context, reference string) (paymentdomain.Verified, error) {
	provider := s.gateway.Provider()
	start := time.Now()
	result := s.gateway.Verify(ctx, reference)

	switch r := result.(type) {
	case paymentdomain.Verified:
		s.obsMetrics.RecordGatewayCall(ctx, provider, "verify", "ok", time.Since(start))
		return r, nil
	case paymentdomain.Failed:
		s.obsMetrics.RecordGatewayCall(ctx, provider, "verify", string(r.Reason), time.Since(start))
		return paymentdomain.Verified{}, &paymentdomain.GatewayError{Reason: r.Reason}
	default:
		s.obsMetrics.RecordGatewayCall(ctx, provider, "verify", string(paymentdomain.ReasonMalformedResponse), time.Since(start))
		return paymentdomain.Verified{}, &paymentdomain.GatewayError{Reason: paymentdomain.ReasonMalformedResponse}
	}
}

// apply marks the payment applied and credits the wish in one transaction.
// It reports false when another worker applied the payment first.
func (s *Service) apply(ctx context.Context, payment paymentdomain.Payment, source string) (bool, error) {
	var applied bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.repo.MarkApplied(ctx, tx, payment.ID, s.clock.Now())
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := s.ledger.ApplyPaymentTx(ctx, tx, payment.WishID, money.FromMinor(payment.Amount), source); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

func (s *Service) publish(ctx context.Context, payment paymentdomain.Payment) {
	if s.hub == nil {
		return
	}
	event := paymentdomain.DonationEvent{
		PaymentID:  payment.ID,
		WishID:     payment.WishID,
		WishName:   paymentdomain.UnknownWishName,
		Amount:     money.Format(payment.Amount),
		OccurredAt: s.clock.Now(),
	}
	if wish, err := s.catalog.FindWishByID(ctx, payment.WishID); err == nil {
		event.WishName = wish.Name
		event.Raised = money.Format(wish.CurrentAmount)
		event.Target = money.Format(wish.TargetAmount)
		event.Fulfilled = wish.Fulfilled
	}
	s.hub.Publish(event)
}

func (s *Service) recordOutcome(ctx context.Context, outcome string) {
	s.obsMetrics.RecordReconcileOutcome(ctx, s.gateway.Provider(), outcome)
}

func outcomeFor(p paymentdomain.Payment) paymentdomain.ReconcileOutcome {
	return paymentdomain.ReconcileOutcome{
		PaymentID: p.ID,
		WishID:    p.WishID,
		Reference: p.Reference,
		Amount:    money.FromMinor(p.Amount),
	}
}

// ReplayUnapplied finishes payments whose ledger update failed. It returns
// the number of payments applied in this run. When Redis is configured only
// one instance replays at a time; the others return 0.
func (s *Service) ReplayUnapplied(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = defaultReplayBatch
	}

	var applied int
	ran, err := s.locker.WithLock(ctx, ratelimit.KeyLedgerReplay, replayLockTTL, func(ctx context.Context) error {
		pending, err := s.repo.ListUnapplied(ctx, s.db, limit)
		if err != nil {
			return err
		}
		for _, payment := range pending {
			if err := ctx.Err(); err != nil {
				return err
			}
			ok, err := s.apply(ctx, payment, ledgerdomain.SourceReplay)
			if err != nil {
				s.log.Error("replay failed",
					zap.String("payment_id", payment.ID.String()),
					zap.String("reference", payment.Reference),
					zap.Error(err),
				)
				continue
			}
			if ok {
				applied++
				s.publish(ctx, payment)
			}
		}
		return nil
	})
	if err != nil {
		return applied, err
	}
	if !ran {
		s.log.Debug("ledger replay skipped, lock held elsewhere")
		return 0, nil
	}
	if applied > 0 {
		s.log.Info("unapplied payments replayed", zap.Int("count", applied))
	}
	return applied, nil
}

// Initialize validates a checkout request, checks the wish exists and asks
// the gateway for an authorization URL. No payment row is written here; the
// callback records it.
func (s *Service) Initialize(ctx context.Context, req paymentdomain.InitializePaymentRequest) (paymentdomain.InitializePaymentResponse, error) {
	wishID, amountMinor, unitPrice, err := s.validateInitialize(req)
	if err != nil {
		return paymentdomain.InitializePaymentResponse{}, err
	}

	if _, err := s.catalog.FindWishByID(ctx, wishID); err != nil {
		return paymentdomain.InitializePaymentResponse{}, err
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	reference := ulid.Make().String()
	metadata := paymentdomain.Metadata{
		paymentdomain.MetadataItemID:    wishID.String(),
		paymentdomain.MetadataQuantity:  req.Quantity,
		paymentdomain.MetadataUnitPrice: unitPrice.StringFixed(2),
		paymentdomain.MetadataEmail:     email,
	}

	start := time.Now()
	result, err := s.gateway.Initialize(ctx, paymentdomain.InitializeRequest{
		Reference:   reference,
		Email:       email,
		AmountMinor: amountMinor,
		Currency:    s.cfg.Currency,
		CallbackURL: s.cfg.CallbackURL,
		Metadata:    metadata,
	})
	if err != nil {
		s.obsMetrics.RecordGatewayCall(ctx, s.gateway.Provider(), "initialize", "error", time.Since(start))
		s.log.Warn("payment initialization failed",
			zap.String("reference", reference),
			zap.String("wish_id", wishID.String()),
			zap.Error(err),
		)
		if !errors.Is(err, paymentdomain.ErrInitializeFailed) {
			err = errors.Join(paymentdomain.ErrInitializeFailed, err)
		}
		return paymentdomain.InitializePaymentResponse{}, err
	}
	s.obsMetrics.RecordGatewayCall(ctx, s.gateway.Provider(), "initialize", "ok", time.Since(start))

	if result.Reference == "" {
		result.Reference = reference
	}
	s.log.Info("payment initialized",
		zap.String("reference", result.Reference),
		zap.String("wish_id", wishID.String()),
		zap.Int64("amount_minor", amountMinor),
	)
	return paymentdomain.InitializePaymentResponse{
		AuthURL:   result.AuthorizationURL,
		Reference: result.Reference,
	}, nil
}

// validateInitialize reports every field problem in one validation error.
func (s *Service) validateInitialize(req paymentdomain.InitializePaymentRequest) (snowflake.ID, int64, decimal.Decimal, error) {
	verr := validation.FromBinding(binding.Validator.ValidateStruct(req))

	amountMinor, err := money.ToMinor(req.Amount)
	switch {
	case err != nil:
		verr.Add("amount", "invalid", "amount must have at most 2 decimals")
	case amountMinor <= 0:
		verr.Add("amount", "invalid", "amount must be greater than 0")
	}

	unitPrice := decimal.Zero
	if req.UnitPrice.Valid {
		unitPrice = req.UnitPrice.Decimal
		if _, err := money.ToMinor(unitPrice); err != nil || unitPrice.IsNegative() {
			verr.Add("unit_price", "invalid", "unit_price must be 0 or more with at most 2 decimals")
		}
	}

	var wishID snowflake.ID
	if raw := strings.TrimSpace(req.ID.String()); raw != "" {
		id, err := snowflake.ParseString(raw)
		if err != nil || id <= 0 {
			verr.Add("id", "invalid", "id must be a wish id")
		}
		wishID = id
	}

	if err := verr.Err(); err != nil {
		return 0, 0, decimal.Zero, err
	}
	return wishID, amountMinor, unitPrice, nil
}

func (s *Service) ListPayments(ctx context.Context, req paymentdomain.ListPaymentsRequest) (paymentdomain.ListPaymentsResponse, error) {
	var cursor *pagination.Cursor
	if req.PageToken != "" {
		c, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return paymentdomain.ListPaymentsResponse{}, err
		}
		cursor = c
	}

	limit := req.Limit()
	rows, err := s.repo.List(ctx, s.db, cursor, limit+1)
	if err != nil {
		return paymentdomain.ListPaymentsResponse{}, err
	}

	page, info, err := pagination.Trim(rows, limit, func(p paymentdomain.PaymentView) pagination.Cursor {
		return pagination.Cursor{
			ID:        p.ID.String(),
			CreatedAt: p.CreatedAt.UTC().Format(time.RFC3339Nano),
		}
	})
	if err != nil {
		return paymentdomain.ListPaymentsResponse{}, err
	}
	return paymentdomain.ListPaymentsResponse{Payments: page, PageInfo: info}, nil
}
