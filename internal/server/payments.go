package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	paymentdomain "github.com/lgndcraft2/giving-tree/internal/payment/domain"
	"github.com/lgndcraft2/giving-tree/pkg/money"
)

// PaymentCallback is where the gateway redirects the donor. The body is
// plain text and the status code tells the frontend what happened.
func (s *Server) PaymentCallback(c *gin.Context) {
	reference := callbackReference(c)

	outcome, err := s.paymentSvc.Reconcile(c.Request.Context(), reference)
	if err != nil {
		status, message := callbackFailure(err)
		_ = c.Error(err)
		c.String(status, message)
		return
	}

	c.String(http.StatusOK, "Success! You paid for Item ID: "+outcome.WishID.String())
}

// callbackReference reads the reference under the names used by the
// supported gateways.
func callbackReference(c *gin.Context) string {
	for _, key := range []string{"reference", "trxref", "order_id"} {
		if v := strings.TrimSpace(c.Query(key)); v != "" {
			return v
		}
	}
	return ""
}

func callbackFailure(err error) (int, string) {
	var gatewayErr *paymentdomain.GatewayError
	var persistErr *paymentdomain.PersistenceError

	switch {
	case errors.Is(err, paymentdomain.ErrMissingReference):
		return http.StatusBadRequest, "No reference"
	case errors.As(err, &gatewayErr):
		return http.StatusBadGateway, "Payment verification failed"
	case errors.Is(err, paymentdomain.ErrMissingItemID):
		return http.StatusBadRequest, "Missing item_id in payment metadata"
	case errors.Is(err, paymentdomain.ErrInvalidItemID):
		return http.StatusNotFound, "Invalid item_id"
	case errors.As(err, &persistErr):
		return http.StatusInternalServerError, "Server error creating payment record"
	default:
		return http.StatusInternalServerError, "Server error"
	}
}

func (s *Server) InitializePayment(c *gin.Context) {
	var req paymentdomain.InitializePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// Tag failures are collected again, with the rest, by the service.
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	resp, err := s.paymentSvc.Initialize(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    true,
		"auth_url":  resp.AuthURL,
		"reference": resp.Reference,
	})
}

type paymentResponse struct {
	ID          string  `json:"id"`
	Reference   string  `json:"reference"`
	Gateway     string  `json:"gateway"`
	WishID      string  `json:"wish_id"`
	WishName    string  `json:"wish_name"`
	CharityName string  `json:"charity_name"`
	Quantity    int64   `json:"quantity"`
	UnitPrice   string  `json:"unit_price"`
	Amount      string  `json:"amount"`
	PaymentDate string  `json:"payment_date"`
	DonorEmail  string  `json:"donor_email"`
	AppliedAt   *string `json:"applied_at"`
}

func (s *Server) ListPayments(c *gin.Context) {
	var req paymentdomain.ListPaymentsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.paymentSvc.ListPayments(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	payments := make([]paymentResponse, 0, len(resp.Payments))
	for _, p := range resp.Payments {
		payments = append(payments, newPaymentResponse(p))
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"payments":  payments,
		"page_info": resp.PageInfo,
	})
}

func newPaymentResponse(p paymentdomain.PaymentView) paymentResponse {
	wishName := p.WishName
	if wishName == "" {
		wishName = paymentdomain.UnknownWishName
	}
	charityName := p.CharityName
	if charityName == "" {
		charityName = paymentdomain.UnknownCharityName
	}

	var appliedAt *string
	if p.AppliedAt != nil {
		v := p.AppliedAt.UTC().Format(time.RFC3339)
		appliedAt = &v
	}

	return paymentResponse{
		ID:          p.ID.String(),
		Reference:   p.Reference,
		Gateway:     p.Gateway,
		WishID:      p.WishID.String(),
		WishName:    wishName,
		CharityName: charityName,
		Quantity:    p.Quantity,
		UnitPrice:   money.Format(p.UnitPrice),
		Amount:      money.Format(p.Amount),
		PaymentDate: p.PaidAt.UTC().Format(time.RFC3339),
		DonorEmail:  p.DonorEmail,
		AppliedAt:   appliedAt,
	}
}
