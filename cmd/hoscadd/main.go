// Command hoscadd starts the dispatch board HTTP server.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/scmc-ops/hoscad/internal/config"
	"github.com/scmc-ops/hoscad/internal/limiter"
	"github.com/scmc-ops/hoscad/internal/migrate"
	"github.com/scmc-ops/hoscad/internal/notify"
	"github.com/scmc-ops/hoscad/internal/repository"
	"github.com/scmc-ops/hoscad/internal/repository/memory"
	"github.com/scmc-ops/hoscad/internal/repository/postgres"
	httpserver "github.com/scmc-ops/hoscad/internal/server/http"
	"github.com/scmc-ops/hoscad/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// repos bundles every store the services need, so the Postgres and
// in-memory backends can be swapped as a unit.
type repos struct {
	units    repository.UnitRepository
	incs     repository.IncidentRepository
	counter  repository.CounterRepository
	audit    repository.AuditRepository
	incAudit repository.IncidentAuditRepository
	msgs     repository.MessageRepository
	users    repository.UserRepository
	sessions repository.SessionRepository
	refs     repository.ReferenceRepository
	lim      limiter.Limiter
}

func main() {
	configPath := flag.String("config", "", "path to YAML config")
	addr := flag.String("addr", "", "listen address (overrides config)")
	dsn := flag.String("dsn", "", "PostgreSQL DSN (overrides config; empty uses in-memory store)")
	flag.Parse()

	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if *addr != "" {
		cfg.ListenAddr = *addr
	}
	if *dsn != "" {
		cfg.DatabaseDSN = *dsn
	}
	if cfg.JWTKey == "" {
		logger.Fatal("missing jwt signing key (jwt_key in config)")
	}

	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.ListenAddr),
		zap.Bool("postgres", cfg.DatabaseDSN != ""),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var r repos
	if cfg.DatabaseDSN != "" {
		if err := migrate.Up(ctx, cfg.DatabaseDSN); err != nil {
			logger.Fatal("migrate up", zap.Error(err))
		}
		pool, err := pgxpool.New(ctx, cfg.DatabaseDSN)
		if err != nil {
			logger.Fatal("pgxpool.New", zap.Error(err))
		}
		defer pool.Close()

		db := &postgres.DB{Pool: pool}
		r = repos{
			units:    postgres.NewUnitRepo(db),
			incs:     postgres.NewIncidentRepo(db),
			counter:  postgres.NewCounterRepo(db),
			audit:    postgres.NewAuditRepo(db),
			incAudit: postgres.NewIncidentAuditRepo(db),
			msgs:     postgres.NewMessageRepo(db),
			users:    postgres.NewUserRepo(db),
			sessions: postgres.NewSessionRepo(db),
			refs:     postgres.NewReferenceRepo(db),
			lim:      limiter.NewPG(pool, cfg.Limiter.Window, cfg.Limiter.MaxFails, cfg.Limiter.BlockFor),
		}
	} else {
		store := memory.NewStore()
		r = repos{
			units: store, incs: store, counter: store, audit: store,
			incAudit: store, msgs: store, users: store, sessions: store, refs: store,
			lim: limiter.NewMemory(cfg.Limiter.Window, cfg.Limiter.MaxFails, cfg.Limiter.BlockFor),
		}
	}

	// Push worker pool
	pushOpts := &webpush.Options{
		Subscriber:      cfg.VAPID.Subscriber,
		VAPIDPublicKey:  cfg.VAPID.PublicKey,
		VAPIDPrivateKey: cfg.VAPID.PrivateKey,
		TTL:             60,
	}
	workers := notify.NewWorkerPool(cfg.PushWorkers, r.units, pushOpts, logger)
	workers.Start(ctx)

	// Services
	issuer := service.NewIssuer(r.counter, nil)
	syncer := service.NewSyncer(r.incs, nil, logger)
	board := service.NewBoard(r.units, r.incs, r.audit, r.incAudit, issuer, syncer, nil, logger)
	incidents := service.NewIncidents(r.incs, r.incAudit, r.units, r.audit, issuer, syncer, nil, logger)
	reporter := service.NewReporter(r.units, r.incs, r.audit, cfg.Stale, nil)
	messages := service.NewMessages(r.msgs, r.units, r.sessions, workers, nil, logger)
	admin := service.NewAdmin(r.units, r.incs, r.audit, r.incAudit, r.msgs, r.sessions, nil, logger)
	refs := service.NewReference(r.refs)
	auth := service.NewAuth(r.users, r.sessions, []byte(cfg.JWTKey), cfg.TokenTTL,
		r.lim, cfg.ITUsers, nil, logger)

	// Retention purge on a timer
	go func() {
		ticker := time.NewTicker(cfg.PurgeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := admin.Purge(ctx); err != nil {
					logger.Warn("purge failed", zap.Error(err))
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	app := httpserver.New(auth, board, incidents, reporter, messages, admin, refs,
		cfg.VAPID.PublicKey, logger)
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           app.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.ListenAddr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown", zap.Error(err))
		}
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}

	logger.Info("shutdown complete")
}
