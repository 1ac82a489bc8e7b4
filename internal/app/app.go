package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/xenking/coffee-shop/internal/auth"
	"github.com/xenking/coffee-shop/internal/domain/drink"
	"github.com/xenking/coffee-shop/internal/handler"
	"github.com/xenking/coffee-shop/internal/storage/postgres"
	"github.com/xenking/coffee-shop/pkg/health"
	"github.com/xenking/coffee-shop/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("auth_domain", cfg.Auth.Domain),
		zap.Duration("key_cache_ttl", cfg.Auth.KeyCacheTTL),
	)

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, lg, cfg.DatabaseURL, cfg.DBConnectTimeout)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Auth: JWKS fetcher, optional key cache, verifier and gate.
	gate, err := newGate(cfg.AuthParams(), lg, m.MeterProvider())
	if err != nil {
		return errors.Wrap(err, "create auth gate")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	limiter, err := httpmiddleware.NewRateLimiter(httpmiddleware.RateLimitConfig{
		Max:     cfg.RateLimit.Max,
		Window:  cfg.RateLimit.Window,
		Clients: cfg.RateLimit.Clients,
	})
	if err != nil {
		return errors.Wrap(err, "create rate limiter")
	}

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: newRouter(routerDeps{
			lg:        zctx.From(ctx),
			telemetry: m,
			drinks:    postgres.NewDrinkRepository(pool),
			gate:      gate,
			health:    healthSvc,
			limiter:   limiter,
			cors:      cfg.CORS,
		}),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
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
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// newGate wires the token verification chain. Signing keys are fetched from
// the tenant JWKS endpoint on every verification unless a key cache TTL is
// configured.
func newGate(cfg auth.Config, lg *zap.Logger, mp metric.MeterProvider, opts ...auth.FetcherOption) (*auth.Gate, error) {
	opts = append([]auth.FetcherOption{auth.WithLogger(lg.Named("jwks"))}, opts...)
	fetcher := auth.NewHTTPFetcher(cfg.KeySetURL(), cfg.FetchTimeout, opts...)

	var keys auth.KeySource = auth.NewFetchingSource(fetcher)
	if cfg.KeyCacheTTL > 0 {
		cached, err := auth.NewCachingSource(fetcher, cfg.KeyCacheSize, cfg.KeyCacheTTL)
		if err != nil {
			return nil, errors.Wrap(err, "create key cache")
		}
		keys = cached
	}

	return auth.NewGate(auth.NewVerifier(cfg, keys), mp)
}

type routerDeps struct {
	lg        *zap.Logger
	telemetry httpmiddleware.TelemetryProvider
	drinks    drink.Repository
	gate      *auth.Gate
	health    *health.Health
	limiter   *httpmiddleware.RateLimiter
	cors      CORSConfig
}

// newRouter builds the API mux (health probes and drink routes) behind the
// middleware chain.
func newRouter(d routerDeps) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", d.health.LiveEndpoint)
	mux.HandleFunc("GET /readyz", d.health.ReadyEndpoint)
	handler.NewHandler(drink.NewService(d.drinks), d.gate).Register(mux)

	return httpmiddleware.Wrap(mux,
		httpmiddleware.InjectLogger(d.lg),
		httpmiddleware.Recovery(),
		httpmiddleware.RequestID(),
		httpmiddleware.Instrument("coffee-api", d.telemetry),
		httpmiddleware.LogRequests(),
		httpmiddleware.CORS(httpmiddleware.CORSConfig{
			Origins:          d.cors.Origins,
			AllowCredentials: d.cors.AllowCredentials,
			ExposeHeaders:    []string{httpmiddleware.RequestIDHeader},
			MaxAge:           86400,
		}),
		d.limiter.Middleware(),
	)
}
