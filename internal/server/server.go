package server

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/lgndcraft2/giving-tree/internal/auth"
	authdomain "github.com/lgndcraft2/giving-tree/internal/auth/domain"
	"github.com/lgndcraft2/giving-tree/internal/catalog"
	catalogdomain "github.com/lgndcraft2/giving-tree/internal/catalog/domain"
	"github.com/lgndcraft2/giving-tree/internal/config"
	"github.com/lgndcraft2/giving-tree/internal/ledger"
	"github.com/lgndcraft2/giving-tree/internal/observability"
	obslogger "github.com/lgndcraft2/giving-tree/internal/observability/logger"
	obsmetrics "github.com/lgndcraft2/giving-tree/internal/observability/metrics"
	obstracing "github.com/lgndcraft2/giving-tree/internal/observability/tracing"
	"github.com/lgndcraft2/giving-tree/internal/payment"
	paymentdomain "github.com/lgndcraft2/giving-tree/internal/payment/domain"
	"github.com/lgndcraft2/giving-tree/internal/payment/liveevents"
	"github.com/lgndcraft2/giving-tree/internal/ratelimit"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module wires the domain services behind the HTTP API. The binary adds
// infrastructure (config, observability, db, migrations) and the scheduler.
var Module = fx.Module("http.server",
	auth.Module,
	catalog.Module,
	ledger.Module,
	payment.Module,
	ratelimit.Module,
	fx.Provide(NewEngine),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, cfg config.Config) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(corsConfig(cfg.CORSOrigins)))
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "X-Request-Id"},
		ExposeHeaders: []string{"X-Request-Id", "Retry-After"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine      *gin.Engine
	cfg         config.Config
	log         *zap.Logger
	authSvc     authdomain.Service
	catalogSvc  catalogdomain.Service
	paymentSvc  paymentdomain.Service
	hub         *liveevents.Hub
	initLimiter *ratelimit.InitializeLimiter
	obsMetrics  *obsmetrics.Metrics
	upgrader    websocket.Upgrader
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	Log         *zap.Logger
	AuthSvc     authdomain.Service
	CatalogSvc  catalogdomain.Service
	PaymentSvc  paymentdomain.Service
	Hub         *liveevents.Hub              `optional:"true"`
	InitLimiter *ratelimit.InitializeLimiter `optional:"true"`
	ObsMetrics  *obsmetrics.Metrics          `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		log:         p.Log.Named("http.server"),
		authSvc:     p.AuthSvc,
		catalogSvc:  p.CatalogSvc,
		paymentSvc:  p.PaymentSvc,
		hub:         p.Hub,
		initLimiter: p.InitLimiter,
		obsMetrics:  p.ObsMetrics,
	}
	svc.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     svc.checkOrigin,
	}

	svc.registerAuthRoutes()
	svc.registerPaymentRoutes()
	svc.registerGetterRoutes()
	svc.registerAdminRoutes()
	svc.registerDonationRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAuthRoutes() {
	s.engine.POST("/auth/login", s.Login)
}

func (s *Server) registerPaymentRoutes() {
	payments := s.engine.Group("/payments")

	payments.GET("/payment_callback", s.PaymentCallback)
	payments.POST("/api/initialize-payment", s.InitializeRateLimit(), s.InitializePayment)
}

func (s *Server) registerGetterRoutes() {
	getters := s.engine.Group("/getters", gzip.Gzip(gzip.DefaultCompression))

	getters.GET("/charities", s.ListCharities)
	getters.GET("/wishes", s.ListWishes)
	getters.GET("/wishes/:id/qrcode", s.WishQRCode)

	getters.GET("/charities-admin", s.AdminRequired(), s.ListCharitiesAdmin)
	getters.GET("/payments", s.AdminRequired(), s.ListPayments)
}

func (s *Server) registerAdminRoutes() {
	adders := s.engine.Group("/adders", s.AdminRequired())
	adders.POST("/charity", s.CreateCharity)
	adders.PUT("/edit-charity", s.EditCharity)

	changers := s.engine.Group("/changers", s.AdminRequired())
	changers.PUT("/charity/:id/toggle-status", s.ToggleCharityStatus)
}

func (s *Server) registerDonationRoutes() {
	donations := s.engine.Group("/donations")

	donations.GET("/stream", s.StreamDonations)
	donations.GET("/ws", s.DonationsWebSocket)
}

// checkOrigin applies the CORS allow list to websocket upgrades.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(s.cfg.CORSOrigins) == 0 || slices.Contains(s.cfg.CORSOrigins, "*") {
		return true
	}
	return slices.Contains(s.cfg.CORSOrigins, origin)
}
