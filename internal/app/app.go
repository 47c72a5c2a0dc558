package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/trading-academy/internal/domain/cart"
	"github.com/xenking/trading-academy/internal/domain/course"
	"github.com/xenking/trading-academy/internal/domain/order"
	"github.com/xenking/trading-academy/internal/domain/payment"
	"github.com/xenking/trading-academy/internal/domain/pricing"
	"github.com/xenking/trading-academy/internal/handler"
	"github.com/xenking/trading-academy/internal/session"
	"github.com/xenking/trading-academy/internal/storage/memory"
	"github.com/xenking/trading-academy/internal/storage/postgres"
	"github.com/xenking/trading-academy/internal/storage/redis"
	"github.com/xenking/trading-academy/internal/storage/static"
	"github.com/xenking/trading-academy/pkg/health"
	"github.com/xenking/trading-academy/pkg/httpmiddleware"
)

// cartStorage is a cart backend the readiness probe can ping.
type cartStorage interface {
	cart.Storage
	health.Pinger
}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
// m is usually the *app.Telemetry of go-faster/sdk.
func Run(ctx context.Context, lg *zap.Logger, m httpmiddleware.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("storage", cfg.Storage.Driver),
		zap.String("catalog", cfg.Catalog.Source),
	)

	var pool *pgxpool.Pool
	if cfg.UsesPostgres() {
		p, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return errors.Wrap(err, "create db pool")
		}
		defer p.Close()
		if err := postgres.RunMigrations(ctx, p); err != nil {
			return errors.Wrap(err, "run migrations")
		}
		pool = p
	}

	var rdb *goredis.Client
	if cfg.UsesRedis() {
		c, err := redis.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return errors.Wrap(err, "create redis client")
		}
		defer func() { _ = c.Close() }()
		rdb = c
	}

	// Catalog.
	var courses course.Repository
	switch cfg.Catalog.Source {
	case SourcePostgres:
		courses = postgres.NewCourseRepository(pool)
	default:
		seed, err := static.NewSeedRepository()
		if err != nil {
			return errors.Wrap(err, "load seed catalog")
		}
		courses = seed
	}
	catalog, err := course.LoadCatalog(ctx, courses)
	if err != nil {
		return errors.Wrap(err, "load catalog")
	}
	lg.Info("Catalog loaded", zap.Int("courses", catalog.Len()))

	// Carts and orders.
	var (
		storage     cartStorage
		orderRepo   order.Repository
		broadcaster session.Broadcaster
		feed        *redis.Feed
	)
	switch cfg.Storage.Driver {
	case DriverPostgres:
		storage = postgres.NewCartStorage(pool)
		orderRepo = postgres.NewOrderRepository(pool)
	case DriverRedis:
		storage = redis.NewCartStorage(rdb, cfg.Storage.Prefix)
		feed = redis.NewFeed(rdb, cfg.Storage.Channel, uuid.NewString(), lg.Named("feed"))
		broadcaster = feed
	default:
		storage = memory.NewCartStorage()
	}
	if orderRepo == nil {
		if pool != nil {
			orderRepo = postgres.NewOrderRepository(pool)
		} else {
			orderRepo = memory.NewOrderRepository()
		}
	}

	taxRate, err := cfg.Tax()
	if err != nil {
		return err
	}
	pricer, err := pricing.NewCalculator(taxRate)
	if err != nil {
		return errors.Wrap(err, "create pricer")
	}
	orders := order.NewService(orderRepo, pricer)

	sessions := session.NewManager(session.Config{
		Catalog:     catalog,
		Storage:     storage,
		Orders:      orders,
		Pricer:      pricer,
		Decider:     payment.NewRandomDecider(cfg.Payment.SuccessRate, cfg.Payment.Seed),
		Logger:      lg.Named("session"),
		TTL:         cfg.Session.TTL,
		Interval:    cfg.Session.Interval,
		Broadcaster: broadcaster,
		CartOptions: []cart.Option{
			cart.WithMeter(m.MeterProvider().Meter("academy/cart")),
		},
		PaymentOptions: []payment.Option{
			payment.WithDelay(cfg.Payment.Delay),
			payment.WithTelemetry(m.TracerProvider(), m.MeterProvider()),
		},
	})

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("storage", 5*time.Second, health.PingCheck(storage))
	if rdb != nil && cfg.Storage.Driver != DriverRedis {
		// The limiter fails open, but a lost Redis still takes the instance out.
		healthSvc.AddReadinessCheck("redis", 5*time.Second, func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
	}
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddLivenessCheck("gc_pause", time.Second, health.GCMaxPauseCheck(time.Second))
	healthSvc.AddLivenessCheck("sessions", time.Second, health.CountCheck("session", sessions.Len, cfg.Session.Max))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Mux: health endpoints + API routes on one server.
	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("GET /readyz", healthSvc.ReadyEndpoint)
	handler.NewHandler(sessions, orders).Register(mux)
	routeFinder := httpmiddleware.MakeRouteFinder(mux)

	rateLimit := httpmiddleware.RateLimitConfig{
		Max:    cfg.RateLimit.Max,
		Window: cfg.RateLimit.Window,
	}
	if cfg.RateLimit.Backend == DriverRedis {
		rateLimit.Limiter = httpmiddleware.NewRedisLimiter(rdb, cfg.Storage.Prefix+"ratelimit:",
			cfg.RateLimit.Max, cfg.RateLimit.Window)
	}

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", handler.SessionHeader, httpmiddleware.RequestIDHeader},
				ExposeHeaders:    []string{httpmiddleware.RequestIDHeader},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, rateLimit),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("academy-api", routeFinder, m),
			httpmiddleware.LogRequests(routeFinder),
			httpmiddleware.Labeler(routeFinder),
		),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sessions.Run(gctx)
	})
	if feed != nil {
		g.Go(func() error {
			return feed.Run(gctx, sessions.Refresh)
		})
	}

	// Graceful shutdown: wait for cancellation, drain, then stop.
	g.Go(func() error {
		<-gctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		return nil
	})

	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})

	return g.Wait()
}
