// Package app wires the zuperior API runtime: config, logging, storage
// selection, metrics and the HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/finovotech001-eng/zuperior-api/cmd/identity"
	"github.com/finovotech001-eng/zuperior-api/cmd/internal/auth/api"
	"github.com/finovotech001-eng/zuperior-api/cmd/internal/auth/otp"
	"github.com/finovotech001-eng/zuperior-api/cmd/internal/auth/reset"
	"github.com/finovotech001-eng/zuperior-api/cmd/internal/auth/session"
	"github.com/finovotech001-eng/zuperior-api/cmd/internal/db/migrate"
	"github.com/finovotech001-eng/zuperior-api/cmd/internal/notify"
	"github.com/finovotech001-eng/zuperior-api/cmd/security/password"
)

// App owns the HTTP server and the resources behind it.
type App struct {
	cfg Config
	log Logger

	dbPool   *pgxpool.Pool
	notifier *notify.Async
	registry *prometheus.Registry

	auth    *api.Handler
	handler http.Handler
}

// New constructs a fully wired App instance from config and logger.
func New(cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}
	if err := ValidateSecurityConfig(cfg); err != nil {
		return nil, err
	}

	var registry *prometheus.Registry
	var metrics *session.Metrics
	if cfg.MetricsEnabled {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		m, err := session.NewMetrics(registry)
		if err != nil {
			return nil, err
		}
		metrics = m
	}

	st, err := newStores(context.Background(), cfg, log)
	if err != nil {
		return nil, err
	}

	a, err := assemble(cfg, log, st, metrics)
	if err != nil {
		st.close()
		return nil, err
	}
	a.registry = registry

	mux := http.NewServeMux()
	var gatherer prometheus.Gatherer
	if registry != nil {
		gatherer = registry
	}
	registerHTTP(mux, log, cfg, st.pool, gatherer, a.auth)
	a.handler = buildHandler(mux, cfg, log)

	return a, nil
}

func assemble(cfg Config, log Logger, st stores, metrics *session.Metrics) (*App, error) {
	sessCfg := cfg.SessionConfig()
	issuer, err := session.NewIssuer(sessCfg)
	if err != nil {
		return nil, err
	}
	sessions, err := session.NewService(sessCfg, st.sessions, issuer,
		session.WithMetrics(metrics),
		session.WithLogger(log),
	)
	if err != nil {
		return nil, err
	}

	hasher := password.DefaultConfig()
	if err := hasher.Check(); err != nil {
		return nil, err
	}

	notifier := notify.NewAsync(notify.LogDispatcher{Log: log}, log)

	resets, err := reset.NewService(cfg.ResetConfig(), st.users, hasher, sessions, notifier, log)
	if err != nil {
		return nil, err
	}

	opts := []api.HandlerOption{
		api.WithNotifier(notifier),
		api.WithCodeStore(otp.NewMemoryStore(cfg.EmailCodeTTL)),
	}
	if st.audit != nil {
		opts = append(opts, api.WithAudit(st.audit))
	}
	auth, err := api.NewHandler(log, cfg.APIConfig(), st.users, sessions, resets, hasher, opts...)
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:      cfg,
		log:      log,
		dbPool:   st.pool,
		notifier: notifier,
		auth:     auth,
	}, nil
}

// Handler returns the fully wrapped HTTP handler.
func (a *App) Handler() http.Handler { return a.handler }

// Run starts the HTTP server and blocks until context cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "db_enabled", a.dbPool != nil, "metrics", a.registry != nil)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		runErr = err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), nonZeroDuration(a.cfg.ShutdownTimeout, 10*time.Second))
	defer cancel()

	if runErr == nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.log.Error("server.shutdown.fail", "err", err)
			runErr = err
		}
	}

	// Pending notifications may still touch the database; drain them first.
	if err := a.notifier.Wait(shutdownCtx); err != nil {
		a.log.Warn("notify.drain.fail", "err", err)
	}
	if a.dbPool != nil {
		a.dbPool.Close()
	}

	a.log.Info("server.stopped")
	return runErr
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// stores is the persistence selected at startup.
type stores struct {
	pool     *pgxpool.Pool
	sessions session.Store
	users    identity.Store
	audit    api.AuditSink
}

func (s stores) close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// newStores decides between Postgres-backed persistence and in-memory dev stores.
func newStores(ctx context.Context, cfg Config, log Logger) (stores, error) {
	if cfg.DatabaseURL == "" {
		log.Info("db.disabled.inmemory_store")
		return stores{
			sessions: session.NewMemoryStore(),
			users:    identity.NewMemoryStore(),
		}, nil
	}

	if cfg.DBAutoMigrate {
		if err := migrate.Run(cfg.DatabaseURL, migrate.Up); err != nil {
			return stores{}, fmt.Errorf("auto-migrate: %w", err)
		}
		log.Info("db.migrated")
	}

	pool, err := NewDBPool(ctx, cfg)
	if err != nil {
		return stores{}, err
	}

	users, err := identity.NewPostgresStore(pool)
	if err != nil {
		pool.Close()
		return stores{}, err
	}

	log.Info("db.enabled.postgres_store")

	// Ownership model: app owns pool lifecycle; stores never close it.
	return stores{
		pool:     pool,
		sessions: session.NewPostgresStore(pool),
		users:    users,
		audit:    api.NewPostgresAudit(pool, log),
	}, nil
}
