package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/greentic/messaging/internal/config"
	"github.com/greentic/messaging/internal/platform"
	"github.com/greentic/messaging/internal/telemetry"
	"github.com/greentic/messaging/pkg/adapters"
	"github.com/greentic/messaging/pkg/bus"
	"github.com/greentic/messaging/pkg/cards"
	"github.com/greentic/messaging/pkg/dlq"
	"github.com/greentic/messaging/pkg/egress"
	"github.com/greentic/messaging/pkg/idempotency"
	"github.com/greentic/messaging/pkg/ingress"
	"github.com/greentic/messaging/pkg/message"
	"github.com/greentic/messaging/pkg/oauth"
	"github.com/greentic/messaging/pkg/ratelimit"
	"github.com/greentic/messaging/pkg/secrets"
)

// version is stamped at build time.
var version = "dev"

// Run is the main entry point: it connects to infrastructure and starts the
// configured mode.
func Run(ctx context.Context, cfg *config.Config) error {
	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("starting messaging gateway",
		"mode", cfg.Mode,
		"env", cfg.Env,
		"listen", cfg.ListenAddr(),
	)

	shutdownTracer, err := telemetry.InitTracer(ctx, cfg.OTLPEndpoint, "gsm-gateway", version)
	if err != nil {
		return fmt.Errorf("initializing tracer: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			logger.Error("shutting down tracer", "error", err)
		}
	}()

	nc, js, err := platform.Connect(cfg.NatsURL, "gsm-"+cfg.Mode)
	if err != nil {
		return fmt.Errorf("connecting to bus: %w", err)
	}
	defer nc.Close()

	metricsReg := telemetry.NewMetricsRegistry(telemetry.All()...)

	switch cfg.Mode {
	case "ingress":
		return runIngress(ctx, cfg, logger, js, metricsReg)
	case "egress":
		return runEgress(ctx, cfg, logger, js, metricsReg)
	default:
		return fmt.Errorf("unknown mode: %s", cfg.Mode)
	}
}

// runIngress serves the per-platform webhook endpoints.
func runIngress(ctx context.Context, cfg *config.Config, logger *slog.Logger, js jetstream.JetStream, metricsReg *prometheus.Registry) error {
	if _, err := bus.EnsureIngressStream(ctx, js); err != nil {
		return fmt.Errorf("ensuring ingress stream: %w", err)
	}

	guard := idempotency.NewGuard(
		newIdempotencyStore(ctx, cfg, logger, js),
		logger,
		telemetry.IdempotencyFailOpenTotal,
	)

	gateway := ingress.NewGateway(ingress.Options{
		Env:         cfg.Env,
		DefaultTeam: cfg.DefaultTeam,
		Verify: ingress.VerifyConfig{
			HMACSecret:  cfg.HMACSecret,
			HMACHeader:  cfg.HMACHeader,
			Bearer:      cfg.BearerToken,
			WebexHeader: cfg.WebexSigHeader,
			WebexAlgo:   cfg.WebexSigAlgo,
		},
		RateLimit: ratelimit.Limit{Cap: cfg.IngressRateCap, RefillPerSec: cfg.IngressRateRefill},
		TTL:       cfg.IdempotencyTTL(),
	}, logger, bus.NewJetStreamBus(js), guard)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		ingress.Respond(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle(cfg.MetricsPath, promhttp.HandlerFor(metricsReg, promhttp.HandlerOpts{}))
	r.Mount("/ingress", gateway.Routes())

	return serve(ctx, logger, cfg.ListenAddr(), r)
}

// newIdempotencyStore picks the dedup backend: JetStream KV by default,
// Redis when configured, with an in-memory fallback when the KV bucket is
// unreachable at startup (availability over strict global dedup).
func newIdempotencyStore(ctx context.Context, cfg *config.Config, logger *slog.Logger, js jetstream.JetStream) idempotency.Store {
	switch cfg.IdempotencyBackend {
	case "redis":
		rdb, err := platform.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn("redis idempotency store unavailable, using in-memory fallback", "error", err)
			return idempotency.NewMemoryStore(cfg.IdempotencyTTL())
		}
		return idempotency.NewRedisStore(rdb, cfg.IdempotencyTTL())
	case "memory":
		return idempotency.NewMemoryStore(cfg.IdempotencyTTL())
	default:
		store, err := idempotency.NewNatsKVStore(ctx, js, cfg.IdempotencyNamespace, cfg.IdempotencyTTL())
		if err != nil {
			logger.Warn("idempotency store unavailable, using in-memory fallback", "error", err)
			return idempotency.NewMemoryStore(cfg.IdempotencyTTL())
		}
		return store
	}
}

// runEgress starts one worker per (tenant, platform) work queue.
func runEgress(ctx context.Context, cfg *config.Config, logger *slog.Logger, js jetstream.JetStream, metricsReg *prometheus.Registry) error {
	registry, err := adapters.LoadPacks(cfg.PackRoot)
	if err != nil {
		return fmt.Errorf("loading adapter packs: %w", err)
	}
	logger.Info("adapter registry loaded", "adapters", len(registry.All()))

	dlqStore, err := dlq.NewStreamStore(ctx, js)
	if err != nil {
		return fmt.Errorf("ensuring dlq stream: %w", err)
	}

	limit := ratelimit.Limit{Cap: cfg.EgressRateCap, RefillPerSec: cfg.EgressRateRefill}
	global, err := ratelimit.NewNatsKVStore(ctx, js, "gsm_ratelimit", limit)
	if err != nil {
		logger.Warn("global rate-limit bucket unavailable, local tier only", "error", err)
	}
	var globalStore ratelimit.GlobalStore
	if global != nil {
		globalStore = global
	}
	limiter := ratelimit.NewHybrid(limit, globalStore, logger)

	var broker oauth.Broker
	if cfg.OAuthBrokerURL != "" {
		broker = oauth.NewHTTPBroker(cfg.OAuthBrokerURL)
	}
	engine := cards.NewDefaultEngine(logger, broker, telemetry.CardWarningsTotal)
	deliverer := egress.NewHTTPDeliverer(secrets.NewEnvStore(), cfg.EgressEndpoints)

	platforms, err := egressPlatforms(cfg)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	errCh := make(chan error, len(platforms))
	for _, p := range platforms {
		consumer, err := bus.EnsureEgressConsumer(ctx, js, cfg.Tenant, string(p))
		if err != nil {
			return fmt.Errorf("ensuring egress consumer for %s: %w", p, err)
		}
		worker := egress.NewWorker(cfg.Tenant, p, consumer, limiter, registry, engine, deliverer, dlqStore, logger, cfg.EgressMaxRetries)

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := worker.Run(ctx); err != nil {
				errCh <- err
			}
		}()
	}

	// Health and metrics alongside the workers.
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		ingress.Respond(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle(cfg.MetricsPath, promhttp.HandlerFor(metricsReg, promhttp.HandlerOpts{}))

	serveErr := serve(ctx, logger, cfg.ListenAddr(), r)
	wg.Wait()

	select {
	case err := <-errCh:
		return err
	default:
	}
	return serveErr
}

// egressPlatforms resolves which platform queues this process consumes.
func egressPlatforms(cfg *config.Config) ([]message.Platform, error) {
	if cfg.Platform == "" {
		return message.Platforms(), nil
	}
	p, err := message.ParsePlatform(cfg.Platform)
	if err != nil {
		return nil, err
	}
	return []message.Platform{p}, nil
}

// serve runs an HTTP server until the context is cancelled, then shuts down
// within a drain window.
func serve(ctx context.Context, logger *slog.Logger, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
