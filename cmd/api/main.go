package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/georgemunganga/storefront-backend/internal/config"
	"github.com/georgemunganga/storefront-backend/internal/modules/auth"
	"github.com/georgemunganga/storefront-backend/internal/modules/cart"
	"github.com/georgemunganga/storefront-backend/internal/modules/catalog"
	"github.com/georgemunganga/storefront-backend/internal/modules/events"
	"github.com/georgemunganga/storefront-backend/internal/modules/inventory"
	"github.com/georgemunganga/storefront-backend/internal/modules/order"
	"github.com/georgemunganga/storefront-backend/internal/modules/payment"
	"github.com/georgemunganga/storefront-backend/internal/modules/reconciliation"
	"github.com/georgemunganga/storefront-backend/internal/pkg/database"
	"github.com/georgemunganga/storefront-backend/internal/pkg/httpx"
	"github.com/georgemunganga/storefront-backend/internal/pkg/logging"
	"github.com/georgemunganga/storefront-backend/internal/pkg/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.ServiceName, cfg.Env, cfg.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server_exit", zap.Error(err))
	}
	logger.Info("server_stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// ── Stores ──────────────────────────────────────────────
	var (
		productRepo catalog.Repository
		orderRepo   order.Repository
	)
	switch cfg.StoreDriver {
	case "postgres":
		db, err := database.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if cfg.AutoMigrate {
			if err := database.Migrate(db); err != nil {
				return err
			}
		}
		productRepo, orderRepo = postgresStores(db)
		logger.Info("store_ready", zap.String("driver", "postgres"))
	default:
		productRepo = catalog.NewMemoryRepository()
		orderRepo = order.NewMemoryRepository()
		logger.Warn("store_ready", zap.String("driver", "memory"))
	}

	var cartRepo cart.Repository
	if cfg.CartDriver == "redis" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return err
		}
		cartRepo = cart.NewRedisRepository(rdb)
	} else {
		cartRepo = cart.NewMemoryRepository()
	}

	// ── Side effects ────────────────────────────────────────
	var publisher events.Publisher = events.LogPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	}
	defer publisher.Close()
	dispatcher := events.NewDispatcher(4, 256, 10*time.Second, m)

	// ── Domain ──────────────────────────────────────────────
	products := catalog.NewService(productRepo)
	ledger := inventory.NewLedger(productRepo, m)
	carts := cart.NewService(cartRepo, cart.ProductCheckerFunc(func(ctx context.Context, id uuid.UUID) error {
		_, err := products.GetProduct(ctx, id)
		return err
	}))

	signer := payment.NewSigner(cfg.Momo.AccessKey, cfg.Momo.SecretKey, cfg.Momo.RequestSignFields, cfg.Momo.NotifySignFields)
	gateway := payment.NewMomoGateway(payment.MomoConfig{
		Endpoint:    cfg.Momo.Endpoint,
		PartnerCode: cfg.Momo.PartnerCode,
		RequestType: cfg.Momo.RequestType,
		Timeout:     cfg.Momo.Timeout,
	}, signer, nil, m)

	orders := order.NewService(order.Deps{
		Repo:      orderRepo,
		Snapshot:  order.NewSnapshotReader(carts, products),
		Ledger:    ledger,
		Gateway:   gateway,
		Cart:      carts,
		Purchases: products,
		Tasks:     dispatcher,
		Events:    events.NewEmitter(dispatcher, publisher),
		Metrics:   m,
		URLs: order.PaymentURLs{
			RedirectURL: cfg.PublicBaseURL + "/api/v1/payments/momo/return",
			IPNURL:      cfg.PublicBaseURL + "/api/v1/payments/momo/notify",
		},
	})
	sweeper := order.NewSweeper(orderRepo, orders, cfg.PaymentTimeout, cfg.SweepInterval, m)
	reconciler := reconciliation.NewService(orders, gateway, cfg.ClientURL, m)

	// ── Router ──────────────────────────────────────────────
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(httpx.RequestLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(httpx.Instrument(m))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.Respond(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	authn := auth.Authenticate(auth.NewIssuer(cfg.JWTSecret, cfg.JWTTTL))
	catalog.NewHandler(products).RegisterRoutes(router, authn)
	inventory.NewHandler(ledger).RegisterRoutes(router, authn)
	cart.NewHandler(carts).RegisterRoutes(router, authn)
	order.NewHandler(orders).RegisterRoutes(router, authn)
	reconciliation.NewHandler(reconciler).RegisterRoutes(router)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server_starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return sweeper.Run(logging.ContextWithLogger(gctx, logger.With(zap.String("component", "sweeper"))))
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		return errors.Join(err, dispatcher.Close(shutdownCtx))
	})
	return g.Wait()
}

func postgresStores(db *sql.DB) (catalog.Repository, order.Repository) {
	return catalog.NewPostgresRepository(db), order.NewPostgresRepository(db)
}
