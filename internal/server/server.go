package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	billingdomain "github.com/smallbiznis/orderflow/internal/billing/domain"
	"github.com/smallbiznis/orderflow/internal/config"
	inventorydomain "github.com/smallbiznis/orderflow/internal/inventory/domain"
	notificationdomain "github.com/smallbiznis/orderflow/internal/notification/domain"
	"github.com/smallbiznis/orderflow/internal/observability"
	obsmiddleware "github.com/smallbiznis/orderflow/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/orderflow/internal/observability/metrics"
	obstracing "github.com/smallbiznis/orderflow/internal/observability/tracing"
	orderdomain "github.com/smallbiznis/orderflow/internal/order/domain"
	queuedomain "github.com/smallbiznis/orderflow/internal/queue/domain"
	"github.com/smallbiznis/orderflow/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(CORS())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(cfg config.Config, obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger, shutdowner fx.Shutdowner) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log = log.Named("http.server")

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server stopped", zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
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
	engine          *gin.Engine
	cfg             config.Config
	orderSvc        orderdomain.Service
	queueSvc        queuedomain.Service
	inventorySvc    inventorydomain.Service
	notificationSvc notificationdomain.Service
	billingSvc      billingdomain.Service
	intakeLimiter   *ratelimit.IntakeLimiter
	obsMetrics      *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	OrderSvc        orderdomain.Service
	QueueSvc        queuedomain.Service
	InventorySvc    inventorydomain.Service    `optional:"true"`
	NotificationSvc notificationdomain.Service `optional:"true"`
	BillingSvc      billingdomain.Service      `optional:"true"`
	IntakeLimiter   *ratelimit.IntakeLimiter   `optional:"true"`
	ObsMetrics      *obsmetrics.Metrics        `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		orderSvc:        p.OrderSvc,
		queueSvc:        p.QueueSvc,
		inventorySvc:    p.InventorySvc,
		notificationSvc: p.NotificationSvc,
		billingSvc:      p.BillingSvc,
		intakeLimiter:   p.IntakeLimiter,
		obsMetrics:      p.ObsMetrics,
	}

	svc.registerOrderRoutes()
	svc.registerConsumerRoutes()
	svc.registerQueueRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerOrderRoutes() {
	s.engine.POST("/orders", s.CreateOrder)
	s.engine.GET("/orders", s.ListOrders)
	s.engine.GET("/orders/:id", s.GetOrder)
}

// registerConsumerRoutes exposes the read side of each consumer. Services
// missing from the process are skipped.
func (s *Server) registerConsumerRoutes() {
	if s.inventorySvc != nil {
		s.engine.GET("/inventory", s.ListInventory)
		s.engine.GET("/inventory/:productId", s.GetInventory)
	}
	if s.billingSvc != nil {
		s.engine.GET("/billing", s.ListBilling)
		s.engine.GET("/orders/:id/billing", s.GetOrderBilling)
	}
	if s.notificationSvc != nil {
		s.engine.GET("/notifications", s.ListNotifications)
		s.engine.GET("/orders/:id/notification", s.GetOrderNotification)
	}
}

func (s *Server) registerQueueRoutes() {
	s.engine.GET("/dead-letters", s.ListDeadLetters)
	s.engine.GET("/queues/:name/stats", s.GetQueueStats)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
