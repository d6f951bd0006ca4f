package server

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	obscontext "github.com/lgndcraft2/giving-tree/internal/observability/context"
	"github.com/lgndcraft2/giving-tree/internal/observability/logger"
	"go.uber.org/zap"
)

const (
	contextUserIDKey   = "user_id"
	contextUsernameKey = "username"

	endpointInitializePayment = "initialize_payment"
)

// AdminRequired accepts "Authorization: Bearer <jwt>" issued by /auth/login.
func (s *Server) AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		principal, err := s.authSvc.Authenticate(c.Request.Context(), token)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.Set(contextUserIDKey, principal.UserID.String())
		c.Set(contextUsernameKey, principal.Username)
		c.Request = c.Request.WithContext(
			obscontext.WithActor(c.Request.Context(), "admin", principal.UserID.String()),
		)
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// InitializeRateLimit throttles checkout creation per client address. A
// Redis failure lets the request through.
func (s *Server) InitializeRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.initLimiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		result, err := s.initLimiter.Allow(ctx, c.ClientIP())
		if err != nil {
			logger.FromContext(ctx).Warn("initialize rate limit check failed", zap.Error(err))
			c.Next()
			return
		}
		if !result.Allowed {
			s.obsMetrics.RecordRateLimitDenied(ctx, endpointInitializePayment, "client_rate")
			retryAfter := int(result.RetryAfter.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			AbortWithError(c, ErrRateLimited)
			return
		}

		s.obsMetrics.RecordRateLimitAllowed(ctx, endpointInitializePayment)
		c.Next()
	}
}
