package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/chilirig-checkout/internal/audit"
	"github.com/xenking/chilirig-checkout/internal/domain/delivery"
	"github.com/xenking/chilirig-checkout/internal/domain/order"
	"github.com/xenking/chilirig-checkout/internal/geo"
	"github.com/xenking/chilirig-checkout/internal/handler"
	"github.com/xenking/chilirig-checkout/internal/pathao"
	"github.com/xenking/chilirig-checkout/internal/storage/postgres"
	"github.com/xenking/chilirig-checkout/pkg/health"
	"github.com/xenking/chilirig-checkout/pkg/httpmiddleware"
)

const serviceName = "chilirig-checkout"

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	healthSvc := health.New()
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))

	reconciler, err := cfg.Reconciler()
	if err != nil {
		return err
	}

	// Audit sinks: PostgreSQL is the system of record when configured, the
	// webhook mirrors it, and with neither the record is only logged.
	var (
		sinks   []order.AuditSink
		records handler.Records
	)
	if cfg.DatabaseURL != "" {
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return errors.Wrap(err, "create db pool")
		}
		defer pool.Close()

		if err := postgres.RunMigrations(ctx, pool); err != nil {
			return errors.Wrap(err, "run migrations")
		}
		healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck("postgres", pool))

		repo := postgres.NewAuditRepository(pool)
		sinks = append(sinks, repo)
		records = repo
	}
	if cfg.Audit.WebhookURL != "" {
		client := pathao.NewHTTPClient(cfg.Audit.Timeout, m.TracerProvider(), m.MeterProvider())
		sinks = append(sinks, audit.NewWebhook(cfg.Audit.WebhookURL, client))
	}
	if len(sinks) == 0 {
		lg.Warn("No audit sink configured, orders are only logged")
	}
	sink := audit.Combine(sinks...)

	// Courier: the live client when credentials are set, wrapped by the
	// geography snapshot when one is configured.
	var courier delivery.Provider
	var dispatcher *delivery.ProviderDispatcher
	if cfg.CourierEnabled() {
		client, err := pathao.New(pathao.Config{
			BaseURL:     cfg.Pathao.BaseURL,
			Credentials: cfg.Pathao.Credentials(),
			StoreID:     cfg.Pathao.StoreID,
			HTTPClient:  pathao.NewHTTPClient(cfg.Pathao.Timeout, m.TracerProvider(), m.MeterProvider()),
		})
		if err != nil {
			return errors.Wrap(err, "create courier client")
		}
		courier = client
		healthSvc.AddReadinessCheck("courier", cfg.Pathao.Timeout, health.PingCheck("courier", client), health.Degraded())
		if id := client.StoreID(); id != 0 {
			dispatcher = delivery.NewDispatcher(client, id)
		}
	}
	if dispatcher == nil {
		lg.Warn("Courier consignments disabled: credentials or store id missing")
		dispatcher = delivery.NewDispatcher(nil, 0)
	}
	if cfg.Geo.SnapshotPath != "" {
		snap, err := geo.Load(cfg.Geo.SnapshotPath)
		if err != nil {
			return errors.Wrap(err, "load geography snapshot")
		}
		cities, zones, areas := snap.Counts()
		lg.Info("Geography snapshot loaded",
			zap.String("path", cfg.Geo.SnapshotPath),
			zap.Time("generated_at", snap.GeneratedAt),
			zap.Int("cities", cities),
			zap.Int("zones", zones),
			zap.Int("areas", areas),
		)
		healthSvc.AddReadinessCheck("geo_snapshot", time.Second,
			health.FreshnessCheck(snap.GeneratedAt, cfg.Geo.MaxAge, nil),
			health.Degraded(),
		)
		courier = geo.NewFallback(courier, snap)
	}
	if courier == nil {
		// Every courier route answers 502 "courier is not configured".
		courier = geo.NewFallback(nil, nil)
	}

	orderService, err := order.NewService(dispatcher, sink,
		order.WithTracerProvider(m.TracerProvider()),
		order.WithMeterProvider(m.MeterProvider()),
	)
	if err != nil {
		return errors.Wrap(err, "create order service")
	}

	h := handler.NewHandler(
		handler.Config{MaxBodyBytes: cfg.MaxBodyBytes, AdminKey: cfg.AdminKey},
		orderService,
		courier,
		reconciler,
		records,
	)
	api := h.Routes()

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Router: health endpoints + API routes on one server.
	router := chi.NewRouter()
	router.Get("/livez", healthSvc.LiveEndpoint)
	router.Get("/readyz", healthSvc.ReadyEndpoint)
	router.Mount("/", api)
	routeFinder := httpmiddleware.MakeRouteFinder(router)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      cfg.WriteTimeout(),
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(router,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", handler.AdminKeyHeader},
				ExposeHeaders:    []string{httpmiddleware.RequestIDHeader},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
				Default: httpmiddleware.Budget{Max: cfg.RateLimit.Max, Window: cfg.RateLimit.Window},
				Routes: []httpmiddleware.RouteBudget{{
					Method: http.MethodPost,
					Path:   "/orders",
					Budget: httpmiddleware.Budget{Max: cfg.RateLimit.OrdersMax, Window: cfg.RateLimit.OrdersWindow},
				}},
				Skip: isHealthCheck,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument(serviceName, routeFinder, m),
			httpmiddleware.LogRequests(routeFinder),
			httpmiddleware.Labeler(routeFinder),
		),
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

	lg.Info("Server listening",
		zap.String("addr", cfg.Addr),
		zap.Bool("courier", cfg.CourierEnabled()),
		zap.Bool("postgres", cfg.DatabaseURL != ""),
		zap.Bool("webhook", cfg.Audit.WebhookURL != ""),
	)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// isHealthCheck exempts health checks from rate limiting.
func isHealthCheck(r *http.Request) bool {
	return r.URL.Path == "/livez" || r.URL.Path == "/readyz"
}
