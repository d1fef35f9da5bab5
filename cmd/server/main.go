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

	"storefront-be/internal/cart"
	"storefront-be/internal/catalog"
	"storefront-be/internal/config"
	"storefront-be/internal/db"
	"storefront-be/internal/events"
	"storefront-be/internal/httpapi"
	"storefront-be/internal/identity"
	"storefront-be/internal/inventory"
	"storefront-be/internal/logger"
	"storefront-be/internal/metrics"
	"storefront-be/internal/middleware"
	"storefront-be/internal/order"
	"storefront-be/internal/payment"
	"storefront-be/internal/payment/webhook"
	"storefront-be/internal/savedcart"
	"storefront-be/internal/sharing"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	purgeInterval   = time.Hour
	shutdownTimeout = 10 * time.Second
)

var (
	initDBFunc      = db.InitDB
	startServerFunc = func(srv *http.Server) error { return srv.ListenAndServe() }
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

// application holds everything the server starts and stops.
type application struct {
	handler    http.Handler
	dispatcher *events.Dispatcher
	limiter    *middleware.Limiter
	saved      savedcart.Service
	closers    []func() error
}

func newApplication(cfg *config.Config, database *sql.DB) *application {
	app := &application{}
	reg := metrics.NewRegistry()
	tx := db.NewTransactor(database)

	var sink events.Sink = events.LogSink{}
	if len(cfg.KafkaBrokers) > 0 {
		w := events.NewKafkaWriter(cfg.KafkaBrokers)
		ks := events.NewKafkaSink(w, map[string]string{
			events.TopicNotifications: cfg.KafkaTopicNotifications,
			events.TopicShareViews:    cfg.KafkaTopicShareViews,
		})
		sink = ks
		app.closers = append(app.closers, ks.Close)
	}
	if cfg.RedisAddr != "" {
		var rdb *redis.Client
		if cfg.RedisPassword != "" {
			rdb = events.NewRedisClient(cfg.RedisAddr, events.WithRedisPassword(cfg.RedisPassword))
		} else {
			rdb = events.NewRedisClient(cfg.RedisAddr)
		}
		sink = events.NewViewDedupeSink(sink, rdb, 0)
		app.closers = append(app.closers, rdb.Close)
	}
	app.dispatcher = events.NewDispatcher(sink, reg)

	variants := catalog.NewRepository(database)

	inventorySvc := inventory.NewService(inventory.NewRepository(database), tx)

	cartRepo := cart.NewRepository(database)
	cartSvc := cart.NewService(cartRepo, variants, tx)

	sharingSvc := sharing.NewService(cartSvc, cartRepo, app.dispatcher.ViewTracker(), sharing.Config{
		DefaultDays: cfg.ShareDefaultDays,
		StoreURL:    cfg.StoreURL,
	})

	app.saved = savedcart.NewService(savedcart.NewRepository(database), cartSvc, variants, cfg.SavedCartTTL)

	orderSvc := order.NewService(
		order.NewRepository(database),
		cartSvc,
		variants,
		inventorySvc,
		payment.NewRepository(database),
		payment.NewHTTPGateway(cfg.PaymentBaseURL, cfg.PaymentAPIKey, reg),
		app.dispatcher.Notifier(),
		tx,
		order.Config{
			Currency:  cfg.Currency,
			TaxPolicy: cfg.TaxPolicy,
			StoreURL:  cfg.StoreURL,
		},
	)

	app.limiter = middleware.NewLimiter()

	app.handler = httpapi.New(httpapi.Deps{
		Resolver:      identity.NewResolver(cfg.JWTSecret),
		Limiter:       app.limiter,
		ServiceSecret: cfg.InternalSecretKey,
		Carts:         cartSvc,
		Sharing:       sharingSvc,
		Saved:         app.saved,
		Orders:        orderSvc,
		Inventory:     inventorySvc,
		Webhook:       webhook.NewHandler(orderSvc, cfg.PaymentCallbackToken, cfg.IsProduction()),
		DB:            database,
	})

	return app
}

func (a *application) start(ctx context.Context) {
	a.dispatcher.Start()
	a.limiter.Start()
	go a.purgeSavedCarts(ctx)
}

func (a *application) stop(ctx context.Context) {
	a.limiter.Stop()
	if err := a.dispatcher.Close(ctx); err != nil {
		logger.L().Warn("event dispatcher did not drain", zap.Error(err))
	}
	for _, c := range a.closers {
		if err := c(); err != nil {
			logger.L().Warn("close failed", zap.Error(err))
		}
	}
}

func (a *application) purgeSavedCarts(ctx context.Context) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := a.saved.PurgeExpired(ctx)
			if err != nil {
				logger.L().Error("purge expired saved carts failed", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.L().Info("purged expired saved carts", zap.Int64("count", n))
			}
		}
	}
}

func run() error {
	cfg := config.LoadConfig()
	logger.Init(cfg.AppEnv, cfg.LogLevel)
	defer logger.Sync()

	database := initDBFunc(cfg)
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := newApplication(cfg, database)
	app.start(ctx)

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.L().Info("storefront server listening", zap.String("addr", srv.Addr))
		errCh <- startServerFunc(srv)
	}()

	var serveErr error
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr = err
		}
	case <-ctx.Done():
		logger.L().Info("shutting down")
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.L().Warn("server shutdown", zap.Error(err))
	}
	app.stop(shutdownCtx)

	return serveErr
}
