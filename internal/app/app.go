// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/bissquit/status-garden/internal/calendar"
	"github.com/bissquit/status-garden/internal/checks"
	checkspostgres "github.com/bissquit/status-garden/internal/checks/postgres"
	"github.com/bissquit/status-garden/internal/config"
	"github.com/bissquit/status-garden/internal/graphite"
	"github.com/bissquit/status-garden/internal/jenkins"
	"github.com/bissquit/status-garden/internal/notifications"
	"github.com/bissquit/status-garden/internal/notifications/chat"
	"github.com/bissquit/status-garden/internal/notifications/email"
	"github.com/bissquit/status-garden/internal/notifications/phone"
	"github.com/bissquit/status-garden/internal/notifications/sms"
	"github.com/bissquit/status-garden/internal/oncall"
	oncallpostgres "github.com/bissquit/status-garden/internal/oncall/postgres"
	"github.com/bissquit/status-garden/internal/pkg/ctxlog"
	"github.com/bissquit/status-garden/internal/pkg/httputil"
	"github.com/bissquit/status-garden/internal/pkg/metrics"
	"github.com/bissquit/status-garden/internal/pkg/postgres"
	"github.com/bissquit/status-garden/internal/scheduler"
	"github.com/bissquit/status-garden/internal/status"
	statuspostgres "github.com/bissquit/status-garden/internal/status/postgres"
	"github.com/bissquit/status-garden/internal/version"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// App represents the application instance.
type App struct {
	config        *config.Config
	logger        *slog.Logger
	db            *pgxpool.Pool
	server        *http.Server
	metricsServer *http.Server
	metricsCancel context.CancelFunc
	sched         *scheduler.Scheduler
}

// New creates a new application instance.
func New(cfg *config.Config) (*App, error) {
	logger := initLogger(cfg.Log)

	if cfg.Database.MigrationsPath != "" {
		if err := postgres.Migrate(cfg.Database.URL, cfg.Database.MigrationsPath); err != nil {
			return nil, fmt.Errorf("migrate database: %w", err)
		}
	}

	connectCtx, connectCancel := context.WithTimeout(context.Background(), cfg.Database.ConnectTimeout)
	defer connectCancel()

	db, err := postgres.Connect(connectCtx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnectAttempts: cfg.Database.ConnectAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	metricsCtx, metricsCancel := context.WithCancel(context.Background())

	app := &App{
		config:        cfg,
		logger:        logger,
		db:            db,
		metricsCancel: metricsCancel,
	}

	go app.collectDBMetrics(metricsCtx)

	router, sched, err := app.setup(metricsCtx)
	if err != nil {
		db.Close()
		metricsCancel()
		return nil, fmt.Errorf("setup application: %w", err)
	}

	app.sched = sched

	app.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Metrics server on separate port
	metricsRouter := chi.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.Handler())

	app.metricsServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler:           metricsRouter,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return app, nil
}

// Run starts the HTTP servers.
func (a *App) Run() error {
	// Start metrics server in background
	go func() {
		a.logger.Info("starting metrics server",
			"host", a.config.Server.Host,
			"port", a.config.Server.MetricsPort,
		)
		if err := a.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("metrics server error", "error", err)
		}
	}()

	// Start main server
	a.logger.Info("starting server",
		"host", a.config.Server.Host,
		"port", a.config.Server.Port,
	)

	if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down servers")

	a.metricsCancel()

	// Stop the scheduler first so no check finishes into a closed pool
	if a.sched != nil {
		a.sched.Stop()
	}

	// Shutdown both servers in parallel
	var wg sync.WaitGroup
	var errs []error
	var mu sync.Mutex

	wg.Add(2)

	go func() {
		defer wg.Done()
		if err := a.server.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown server: %w", err))
			mu.Unlock()
		}
	}()

	go func() {
		defer wg.Done()
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown metrics server: %w", err))
			mu.Unlock()
		}
	}()

	wg.Wait()

	a.db.Close()

	return errors.Join(errs...)
}

func (a *App) collectDBMetrics(ctx context.Context) {
	// Collect immediately on start
	metrics.RecordDBPoolMetrics(a.db)

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			metrics.RecordDBPoolMetrics(a.db)
		case <-ctx.Done():
			return
		}
	}
}

// Router returns the HTTP handler for testing.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

// Scheduler returns the check scheduler instance.
// Used in tests to access scheduler state.
func (a *App) Scheduler() *scheduler.Scheduler {
	return a.sched
}

func (a *App) setup(ctx context.Context) (*chi.Mux, *scheduler.Scheduler, error) {
	r := chi.NewRouter()

	// Metrics middleware must be first to measure full request time
	r.Use(httputil.MetricsMiddleware)
	r.Use(middleware.RequestID)
	r.Use(httputil.RequestLoggerMiddleware(a.logger))
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", a.healthzHandler)
	r.Get("/readyz", a.readyzHandler)
	r.Get("/version", a.versionHandler)

	// On-call roster
	oncallRepo := oncallpostgres.NewRepository(a.db)
	var calendarSource oncall.CalendarSource
	if a.config.Calendar.FeedURL != "" {
		calendarSource = calendar.NewClient(calendar.Config{
			FeedURL: a.config.Calendar.FeedURL,
			Timeout: a.config.Calendar.Timeout,
		})
	}
	oncallService := oncall.NewService(oncallRepo, calendarSource)

	// Alert delivery
	dispatcher, err := a.setupDispatcher()
	if err != nil {
		return nil, nil, err
	}

	// Status aggregation
	statusRepo := statuspostgres.NewRepository(a.db)
	statusService := status.NewService(statusRepo, oncallService, dispatcher)
	statusHandler := status.NewHandler(statusRepo)

	// Check execution
	checksRepo := checkspostgres.NewRepository(a.db)
	metricSource := graphite.NewClient(graphite.Config{
		BaseURL:  a.config.Graphite.BaseURL,
		Username: a.config.Graphite.Username,
		Password: a.config.Graphite.Password,
		Timeout:  a.config.Graphite.Timeout,
	})
	buildSource := jenkins.NewClient(jenkins.Config{
		BaseURL:  a.config.Jenkins.BaseURL,
		Username: a.config.Jenkins.Username,
		APIToken: a.config.Jenkins.APIToken,
		Timeout:  a.config.Jenkins.Timeout,
	})
	runner := checks.NewRunner(checksRepo, metricSource, buildSource, nil)

	// Scheduling
	var syncer scheduler.ShiftSyncer
	if calendarSource != nil {
		syncer = oncallService
	}
	sched := scheduler.New(scheduler.Config{
		PollInterval:      a.config.Scheduler.PollInterval,
		NumWorkers:        a.config.Scheduler.NumWorkers,
		CheckTimeout:      a.config.Scheduler.CheckTimeout,
		ShiftSyncInterval: a.config.Scheduler.ShiftSyncInterval,
	}, checksRepo, runner, statusService, syncer)
	sched.Start(ctx)

	r.Route("/api/v1", func(r chi.Router) {
		statusHandler.RegisterRoutes(r)
	})

	return r, sched, nil
}

func (a *App) setupDispatcher() (*notifications.Dispatcher, error) {
	emailSender, err := email.NewSender(email.Config{
		Enabled:      a.config.Notifications.Email.Enabled,
		SMTPHost:     a.config.Notifications.Email.SMTPHost,
		SMTPPort:     a.config.Notifications.Email.SMTPPort,
		SMTPUser:     a.config.Notifications.Email.SMTPUser,
		SMTPPassword: a.config.Notifications.Email.SMTPPassword,
		FromAddress:  a.config.Notifications.Email.FromAddress,
	})
	if err != nil {
		return nil, fmt.Errorf("create email sender: %w", err)
	}

	chatSender, err := chat.NewSender(chat.Config{
		Enabled:    a.config.Notifications.Chat.Enabled,
		WebhookURL: a.config.Notifications.Chat.WebhookURL,
		Username:   a.config.Notifications.Chat.Username,
		IconURL:    a.config.Notifications.Chat.IconURL,
		RateLimit:  a.config.Notifications.Chat.RateLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("create chat sender: %w", err)
	}

	smsSender, err := sms.NewSender(sms.Config{
		Enabled:    a.config.Notifications.SMS.Enabled,
		APIKey:     a.config.Notifications.SMS.APIKey,
		FromNumber: a.config.Notifications.SMS.FromNumber,
	})
	if err != nil {
		return nil, fmt.Errorf("create sms sender: %w", err)
	}

	phoneSender, err := phone.NewSender(phone.Config{
		Enabled:    a.config.Notifications.Phone.Enabled,
		APIKey:     a.config.Notifications.Phone.APIKey,
		FromNumber: a.config.Notifications.Phone.FromNumber,
	})
	if err != nil {
		return nil, fmt.Errorf("create phone sender: %w", err)
	}

	renderer, err := notifications.NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("create notification renderer: %w", err)
	}

	return notifications.NewDispatcher(renderer, emailSender, chatSender, smsSender, phoneSender), nil
}

func (a *App) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.db.Ping(ctx); err != nil {
		ctxlog.FromContext(r.Context()).Error("readiness check failed", "error", err)
		httputil.Text(w, http.StatusServiceUnavailable, "Database unavailable")
		return
	}

	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) versionHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]string{
		"version":    version.Version,
		"commit":     version.GitCommit,
		"build_date": version.BuildDate,
	})
}

func initLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
