package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel"

	"barrace/internal/config"
	apperrors "barrace/internal/errors"
	"barrace/internal/infrastructure"
	customMiddleware "barrace/internal/middleware"
	"barrace/internal/services"
	handlers "barrace/internal/transport/http"
	ws "barrace/internal/websocket"
	"barrace/pkg/contracts"
)

var (
	// BuildTime is set at compile time
	BuildTime = contracts.BuildTime
	// Version is the version reported by the health endpoints
	Version = contracts.Version
)

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Router        *chi.Mux
	Server        *http.Server
	FrameService  *services.FrameService
	HealthService *services.HealthService
	StreamHandler *handlers.StreamHandler
	Memory        *infrastructure.MemoryMonitor
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders

	errorHandler *apperrors.ErrorHandler
	listener     net.Listener
}

// NewApplication loads configuration, sets up logging and telemetry and
// wires the application.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("Application starting",
		slog.String("name", config.AppName),
		slog.String("version", Version))

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.DefaultOTelConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	return New(cfg, logger, otelProviders)
}

// New wires an application from already initialized dependencies.
func New(cfg *config.Config, logger *slog.Logger, otelProviders *infrastructure.OTelProviders) (*Application, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	if otelProviders == nil {
		otelProviders = &infrastructure.OTelProviders{Logger: logger}
	}
	// Unset providers fall back to the globals, noop unless registered
	if otelProviders.Tracer == nil {
		otelProviders.Tracer = otel.Tracer(infrastructure.MeterName)
	}
	if otelProviders.Meter == nil {
		otelProviders.Meter = otel.Meter(infrastructure.MeterName)
	}

	app := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: otelProviders,
		errorHandler:  apperrors.NewErrorHandler(logger, false),
	}

	if err := app.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.setupRouter()
	app.createServer()

	return app, nil
}

// initializeServices initializes all application services
func (a *Application) initializeServices() error {
	engineMetrics, err := infrastructure.NewEngineMetrics(a.OTelProviders.Meter)
	if err != nil {
		return fmt.Errorf("failed to create engine metrics: %w", err)
	}
	a.FrameService = services.NewFrameService(a.Config, a.Logger,
		services.WithTracer(a.OTelProviders.Tracer),
		services.WithEngineMetrics(engineMetrics),
	)

	a.Memory = infrastructure.NewMemoryMonitor(a.Config.Cache.MemoryCeilingMB)
	a.HealthService = services.NewHealthService(Version, BuildTime, a.FrameService, a.Memory, a.Logger)

	wsMetrics, err := ws.NewMetrics(a.OTelProviders.Meter)
	if err != nil {
		return fmt.Errorf("failed to create WebSocket metrics: %w", err)
	}
	validator := customMiddleware.NewValidationMiddleware(a.Logger, a.errorHandler, a.Config.Server.MaxBodyBytes)
	a.StreamHandler = handlers.NewStreamHandler(
		a.FrameService,
		validator,
		ws.NewUpgrader(a.Config.Server.AllowedOrigins, a.Logger),
		wsMetrics,
		a.Config.Server.MaxBodyBytes,
		a.Logger,
	)
	return nil
}

// setupRouter builds the middleware chain and routes.
// Ordering: RequestID → RealIP → OTel → Logger → Recoverer → Timeout
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)
	r.Use(customMiddleware.StripSlashes)

	r.NotFound(a.errorHandler.NotFound)

	// Prometheus scrapes skip the request middleware
	r.Handle("/metrics", handlers.NewMetricsHandler(a.OTelProviders.PrometheusHTTP))

	r.Group(func(r chi.Router) {
		otelMiddleware, err := customMiddleware.NewOTelMiddleware(a.OTelProviders)
		if err != nil {
			a.Logger.Error("Failed to create OpenTelemetry middleware", slog.String("error", err.Error()))
		} else {
			r.Use(otelMiddleware.Handler)
		}

		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(customMiddleware.Recoverer(a.Logger))
		r.Use(customMiddleware.SecurityHeaders)
		r.Use(customMiddleware.CORS(customMiddleware.CORSConfig{
			AllowedOrigins: a.Config.Server.AllowedOrigins,
			ExposedHeaders: []string{"X-Request-ID", "Retry-After"},
			Logger:         a.Logger,
		}))

		if a.Config.Security.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
			).Handler)
		}

		// Streams are long lived, so they skip the request timeout and compression
		r.Get("/api/v1/stream", a.StreamHandler.ServeHTTP)

		a.setupAPIRoutes(r)
	})

	a.Router = r
}

func (a *Application) setupAPIRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Group(func(r chi.Router) {
			r.Use(customMiddleware.Timeout(a.Config.Server.ReadTimeout, a.Logger))

			healthHandler := handlers.NewHealthHandler(a.HealthService, a.errorHandler, a.Logger)
			r.Get("/health", healthHandler.HealthCheck)
			r.Get("/health/ready", healthHandler.ReadinessCheck)
			r.Get("/health/live", healthHandler.LivenessCheck)
			r.Get("/health/detailed", healthHandler.DetailedHealth)
			r.Get("/version", healthHandler.Version)
		})

		// Frame generation gets the longer request timeout
		r.Group(func(r chi.Router) {
			r.Use(customMiddleware.Timeout(a.Config.Server.RequestTimeout, a.Logger))
			r.Use(customMiddleware.BodyLimit(a.Config.Server.MaxBodyBytes))
			r.Use(customMiddleware.Compress(5, "application/json", "text/csv"))

			validator := customMiddleware.NewValidationMiddleware(a.Logger, a.errorHandler, a.Config.Server.MaxBodyBytes)
			frameHandler := handlers.NewFrameHandler(
				a.FrameService,
				validator,
				customMiddleware.NewQueryParamValidator(a.Logger, a.errorHandler),
				a.Logger,
				a.errorHandler,
				a.Config.Server.MaxBodyBytes,
			)
			r.Mount("/v1", frameHandler.Routes())
		})
	})
}

func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.Router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		IdleTimeout:  a.Config.Server.IdleTimeout,
	}
}

// Start binds the listener and serves in the background. A serve failure
// cancels ctx through cancel.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	ln, err := net.Listen("tcp", a.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.Server.Addr, err)
	}
	a.listener = ln

	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", config.AppName),
		slog.String("version", Version),
		slog.String("address", ln.Addr().String()),
		slog.String("level", a.Config.Logging.Level),
		slog.Bool("cache_enabled", a.Config.Cache.Enabled))

	go func() {
		if err := a.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	return nil
}

// Addr returns the bound address once Start has run.
func (a *Application) Addr() string {
	if a.listener == nil {
		return a.Server.Addr
	}
	return a.listener.Addr().String()
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	// Hijacked WebSocket connections are not tracked by Shutdown
	if err := a.StreamHandler.Shutdown(shutdownCtx); err != nil {
		a.Logger.ErrorContext(ctx, "Error closing WebSocket sessions", slog.String("error", err.Error()))
	}

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	cleared := a.FrameService.ClearCaches(ctx)
	a.Logger.InfoContext(ctx, "Frame caches released", slog.Int("processors", cleared))

	if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
		a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return nil
}

// Run runs the application until interrupted
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case sig := <-sigChan:
		a.Logger.InfoContext(ctx, "Received interrupt signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		a.Logger.WarnContext(ctx, "Server stopped unexpectedly")
	}

	return a.Stop(context.WithoutCancel(ctx))
}

// startupTimeout bounds how long WaitReady polls the health endpoint.
const startupTimeout = 5 * time.Second

// WaitReady polls /api/health until the server answers or ctx ends.
func (a *Application) WaitReady(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	url := fmt.Sprintf("http://%s/api/health", a.Addr())
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		if resp, err := http.DefaultClient.Do(req); err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("server at %s not ready: %w", a.Addr(), ctx.Err())
		case <-ticker.C:
		}
	}
}
