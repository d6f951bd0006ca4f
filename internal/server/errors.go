package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	authdomain "github.com/lgndcraft2/giving-tree/internal/auth/domain"
	catalogdomain "github.com/lgndcraft2/giving-tree/internal/catalog/domain"
	ledgerdomain "github.com/lgndcraft2/giving-tree/internal/ledger/domain"
	paymentdomain "github.com/lgndcraft2/giving-tree/internal/payment/domain"
	"github.com/lgndcraft2/giving-tree/internal/payment/liveevents"
	"github.com/lgndcraft2/giving-tree/pkg/db/pagination"
	"github.com/lgndcraft2/giving-tree/pkg/validation"
	"gorm.io/gorm"
)

// errorResponse is the JSON envelope shared by every endpoint except the
// payment callback.
type errorResponse struct {
	Success bool                    `json:"success"`
	Type    string                  `json:"type"`
	Message string                  `json:"message"`
	Errors  []validation.FieldError `json:"errors,omitempty"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.AbortWithStatusJSON(status, payload)
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	var verr validation.Errors
	verr.Add(field, code, message)
	return verr.Err()
}

func mapError(err error) (int, errorResponse) {
	if verr, ok := validation.As(err); ok {
		return http.StatusBadRequest, errorResponse{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  verr.Fields,
		}
	}

	var gatewayErr *paymentdomain.GatewayError
	var persistErr *paymentdomain.PersistenceError

	switch {
	case isValidationError(err):
		return http.StatusBadRequest, errorResponse{
			Type:    "validation_error",
			Message: err.Error(),
		}
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, authdomain.ErrInvalidCredentials),
		errors.Is(err, authdomain.ErrInvalidToken),
		errors.Is(err, authdomain.ErrTokenExpired):
		return http.StatusUnauthorized, errorResponse{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorResponse{
			Type:    "not_found",
			Message: notFoundMessage(err),
		}
	case errors.Is(err, catalogdomain.ErrWishHasPayments),
		errors.Is(err, catalogdomain.ErrDuplicateCharity),
		errors.Is(err, catalogdomain.ErrWishNotOwned),
		errors.Is(err, authdomain.ErrUserExists):
		return http.StatusConflict, errorResponse{
			Type:    "conflict",
			Message: err.Error(),
		}
	case errors.As(err, &gatewayErr),
		errors.Is(err, paymentdomain.ErrInitializeFailed):
		return http.StatusBadGateway, errorResponse{
			Type:    "gateway_error",
			Message: "payment gateway error",
		}
	case errors.As(err, &persistErr):
		return http.StatusInternalServerError, errorResponse{
			Type:    "persistence_error",
			Message: "could not record payment",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorResponse{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, liveevents.ErrHubUnavailable):
		return http.StatusServiceUnavailable, errorResponse{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorResponse{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, pagination.ErrInvalidPageToken),
		errors.Is(err, catalogdomain.ErrInvalidID),
		errors.Is(err, ledgerdomain.ErrInvalidAmount),
		errors.Is(err, paymentdomain.ErrMissingReference),
		errors.Is(err, paymentdomain.ErrMissingItemID):
		return true
	}
	return false
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, catalogdomain.ErrCharityNotFound),
		errors.Is(err, catalogdomain.ErrWishNotFound),
		errors.Is(err, ledgerdomain.ErrWishNotFound),
		errors.Is(err, paymentdomain.ErrInvalidItemID),
		errors.Is(err, paymentdomain.ErrPaymentNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	}
	return false
}

func notFoundMessage(err error) string {
	switch {
	case errors.Is(err, catalogdomain.ErrCharityNotFound):
		return "Charity not found"
	case errors.Is(err, catalogdomain.ErrWishNotFound),
		errors.Is(err, ledgerdomain.ErrWishNotFound),
		errors.Is(err, paymentdomain.ErrInvalidItemID):
		return "Wish not found"
	}
	return "not found"
}

// classifyErrorForLog feeds the request logger a type and a code without
// leaking request data.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	code := payload.Type
	var gatewayErr *paymentdomain.GatewayError
	if errors.As(err, &gatewayErr) {
		code = string(gatewayErr.Reason)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) && payload.Type != "internal_error" {
		code = err.Error()
	}
	return payload.Type, code
}
