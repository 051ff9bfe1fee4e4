package server

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"pos-core/internal/config"
	"pos-core/internal/database"
	custommiddleware "pos-core/internal/middleware"
	"pos-core/internal/mq"
	"pos-core/internal/outbox"
	"pos-core/internal/printing"
	"pos-core/internal/repository"
	"pos-core/internal/service"
	"pos-core/internal/transport"
)

const requestTimeout = 30 * time.Second

type Server struct {
	*http.Server
	config    *config.Config
	logger    *zap.Logger
	db        *sql.DB
	redis     *redis.Client
	producer  *mq.KafkaProducer
	stopRelay outbox.CleanupFunc
}

// NewServer wires repositories, services and handlers over db. The outbox
// relay starts only when Kafka brokers are configured.
func NewServer(ctx context.Context, cfg *config.Config, logger *zap.Logger, db *sql.DB) (*Server, error) {
	s := &Server{config: cfg, logger: logger, db: db}

	tx := database.NewTransactor(db)

	// Repositories
	userRepo := repository.NewUserRepository(db)
	refreshTokenRepo := repository.NewRefreshTokenRepository(db)
	productRepo := repository.NewProductRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	taxRateRepo := repository.NewTaxRateRepository(db)
	locationRepo := repository.NewLocationRepository(db)
	inventoryRepo := repository.NewInventoryRepository(db)
	customerRepo := repository.NewCustomerRepository(db)
	saleRepo := repository.NewSaleRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	reportRepo := repository.NewReportRepository(db)
	outboxRepo := outbox.NewRepository(db)

	defaultLocation := s.resolveDefaultLocation(ctx, locationRepo)

	// Services
	audit := service.NewAuditTrail(auditRepo)
	ledger := service.NewInventoryLedger(inventoryRepo, locationRepo, cfg.Inventory.AllowNegative, logger)
	authService := service.NewAuthService(userRepo, refreshTokenRepo, audit, service.AuthOptions{
		JWTSecret:            cfg.JWT.Secret,
		AccessExpiry:         time.Duration(cfg.JWT.AccessExpiry) * time.Minute,
		RefreshExpiry:        time.Duration(cfg.JWT.RefreshExpiry) * 24 * time.Hour,
		AllowLegacyPlaintext: cfg.Auth.AllowLegacyPlaintext,
	}, logger)
	catalogService := service.NewCatalogService(tx, productRepo, categoryRepo, taxRateRepo, audit, logger)
	customerService := service.NewCustomerService(tx, customerRepo, audit)
	reportService := service.NewReportService(reportRepo, audit)
	checkoutService := service.NewCheckoutService(service.CheckoutDeps{
		Tx:        tx,
		Sales:     saleRepo,
		Products:  productRepo,
		Locations: locationRepo,
		Customers: customerRepo,
		Inventory: ledger,
		Audit:     audit,
		Outbox:    outboxRepo,
		Logger:    logger,
	}, service.CheckoutOptions{
		PaymentTolerance:   cfg.Checkout.PaymentTolerance,
		AllowEmptyFinalize: cfg.Checkout.AllowEmptyFinalize,
		DefaultLocationID:  defaultLocation,
		TopicPrefix:        cfg.Kafka.TopicPrefix,
	})

	printers := printing.NewManager(config.NewProfileStore(cfg.Printers.ProfilePath), logger)

	s.redis = redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	loginLimit := custommiddleware.RateLimitMiddleware(s.redis, custommiddleware.RateLimitConfig{
		RequestsPerWindow: cfg.RateLimit.LoginRequests,
		Window:            cfg.RateLimit.LoginWindow,
		KeyPrefix:         "ratelimit:login",
	}, logger)

	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := mq.NewKafkaProducer(ctx, cfg.Kafka.Brokers)
		if err != nil {
			s.redis.Close()
			return nil, fmt.Errorf("failed to start kafka producer: %w", err)
		}
		s.producer = producer
		relay := outbox.NewRelay(outbox.RelayConfig{
			Interval:  cfg.Outbox.Interval,
			BatchSize: cfg.Outbox.BatchSize,
		}, logger, tx, outboxRepo, producer)
		s.stopRelay = relay.Run(context.Background())
		logger.Info("Outbox relay started", zap.Strings("brokers", cfg.Kafka.Brokers))
	} else {
		logger.Info("Kafka brokers not configured, sale events stay in the outbox")
	}

	// Router
	router := chi.NewRouter()
	router.Use(custommiddleware.DefaultMiddlewareStack(requestTimeout)...)
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.LoggingMiddleware(logger.Named("http")))
	router.Use(custommiddleware.CORSMiddleware(cfg.Server.AllowedOrigins, cfg.Server.Env == "development"))

	router.Get("/health", s.health)

	routes := transport.Routes{
		Auth:   custommiddleware.AuthMiddleware(authService, logger),
		Logger: logger,
	}
	transport.NewAuthHandler(authService, logger).RegisterRoutes(router, routes, loginLimit)
	transport.NewCheckoutHandler(checkoutService, printers, logger).RegisterRoutes(router, routes)
	transport.NewCatalogHandler(catalogService, printers, logger).RegisterRoutes(router, routes)
	transport.NewInventoryHandler(ledger, defaultLocation, logger).RegisterRoutes(router, routes)
	transport.NewCustomerHandler(customerService, logger).RegisterRoutes(router, routes)
	transport.NewReportHandler(reportService, logger).RegisterRoutes(router, routes)
	transport.NewPrinterHandler(printers, audit, logger).RegisterRoutes(router, routes)

	s.Server = &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: requestTimeout + 5*time.Second,
	}

	return s, nil
}

func (s *Server) resolveDefaultLocation(ctx context.Context, locations repository.LocationRepository) *uuid.UUID {
	name := s.config.Checkout.DefaultLocationName
	if name == "" {
		return nil
	}
	loc, err := locations.FindByName(ctx, name)
	if err != nil {
		s.logger.Warn("Default location not found, sales will not move stock unless a location is given",
			zap.String("location", name), zap.Error(err))
		return nil
	}
	s.logger.Info("Default location resolved", zap.String("location", name), zap.String("location_id", loc.ID.String()))
	return &loc.ID
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{"status": "ok", "database": "ok", "redis": "ok"}
	code := http.StatusOK

	if _, err := database.IsHealthy(ctx, s.db); err != nil {
		status["database"] = "down"
		status["status"] = "degraded"
		code = http.StatusServiceUnavailable
	}
	if err := s.redis.Ping(ctx).Err(); err != nil {
		status["redis"] = "down"
		status["status"] = "degraded"
	}

	custommiddleware.RespondWithJSON(w, code, status)
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.stopRelay != nil {
		s.stopRelay()
	}
	if s.producer != nil {
		s.producer.Close()
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis client", zap.Error(err))
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
