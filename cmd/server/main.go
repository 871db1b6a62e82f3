// Command server wires the attendance verification service: roster and
// session stores, the biometric matcher, the geofence, the gate, and the
// HTTP surface. Business logic lives in the internal packages.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	attendancehandler "rollcall/internal/attendance/handler"
	"rollcall/internal/attendance/ledger"
	attendancemetrics "rollcall/internal/attendance/metrics"
	attendanceservice "rollcall/internal/attendance/service"
	"rollcall/internal/biometric/pixelmatch"
	"rollcall/internal/geofence"
	jwttoken "rollcall/internal/jwt_token"
	"rollcall/internal/platform/config"
	"rollcall/internal/platform/httpserver"
	"rollcall/internal/platform/logger"
	platformmetrics "rollcall/internal/platform/metrics"
	"rollcall/internal/platform/postgres"
	platformredis "rollcall/internal/platform/redis"
	rosterhandler "rollcall/internal/roster/handler"
	rosterservice "rollcall/internal/roster/service"
	rosterstore "rollcall/internal/roster/store"
	"rollcall/pkg/platform/audit"
	"rollcall/pkg/platform/audit/publisher"
	auditkafka "rollcall/pkg/platform/audit/store/kafka"
	auditmem "rollcall/pkg/platform/audit/store/memory"
	"rollcall/pkg/platform/middleware/admin"
	"rollcall/pkg/platform/middleware/auth"
	"rollcall/pkg/platform/middleware/device"
	"rollcall/pkg/platform/middleware/requestid"
	"rollcall/pkg/platform/middleware/requesttime"
)

func main() {
	log := logger.New()
	if err := run(log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	zone, err := geofence.New(cfg.Zone)
	if err != nil {
		return err
	}
	matcher := pixelmatch.New(
		pixelmatch.WithThreshold(cfg.BiometricThreshold),
		pixelmatch.WithLogger(log),
	)

	// Stores.
	rosterStore, sessionLedger, cleanup, err := buildStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	// Audit pipeline.
	auditSink, closeSink, err := buildAuditSink(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeSink()
	emitter := publisher.NewPublisher(auditSink, publisher.WithAsyncBuffer(cfg.AuditBuffer))
	defer emitter.Close()

	// Services.
	roster, err := rosterservice.New(rosterStore,
		rosterservice.WithLogger(log),
		rosterservice.WithAuditEmitter(emitter),
	)
	if err != nil {
		return err
	}
	gate, err := attendanceservice.New(rosterStore, sessionLedger, zone, matcher,
		attendanceservice.WithLogger(log),
		attendanceservice.WithAuditEmitter(emitter),
		attendanceservice.WithMetrics(attendancemetrics.New()),
		attendanceservice.WithVerifyTimeout(cfg.VerifyTimeout),
	)
	if err != nil {
		return err
	}

	tokens := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.AccessTokenTTL)

	router := buildRouter(cfg, log, gate, roster, tokens)
	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting rollcall",
		"addr", cfg.Addr,
		"ledger_backend", cfg.LedgerBackend,
		"roster_backend", cfg.RosterBackend,
		"zone_tolerance_km", cfg.Zone.ToleranceKm,
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func buildStores(ctx context.Context, cfg config.Config, log *slog.Logger) (rosterstore.Store, ledger.Ledger, func(), error) {
	cleanups := []func(){}
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	var roster rosterstore.Store = rosterstore.NewInMemoryStore()
	var sessions ledger.Ledger = ledger.NewInMemoryStore()

	if cfg.RosterBackend == "postgres" || cfg.LedgerBackend == "postgres" {
		if cfg.RosterBackend == "postgres" {
			db, err := postgres.OpenSQL(ctx, cfg.PostgresURL)
			if err != nil {
				cleanup()
				return nil, nil, nil, err
			}
			cleanups = append(cleanups, func() { db.Close() })

			store := rosterstore.NewPostgres(db)
			if err := store.Migrate(ctx); err != nil {
				cleanup()
				return nil, nil, nil, err
			}
			roster = store
		}
		if cfg.LedgerBackend == "postgres" {
			pool, err := postgres.NewPool(ctx, cfg.PostgresURL)
			if err != nil {
				cleanup()
				return nil, nil, nil, err
			}
			cleanups = append(cleanups, pool.Close)

			store := ledger.NewPostgres(pool)
			if err := store.Migrate(ctx); err != nil {
				cleanup()
				return nil, nil, nil, err
			}
			sessions = store
		}
	}

	if cfg.LedgerBackend == "redis" {
		client, err := platformredis.New(ctx, cfg.RedisURL)
		if err != nil {
			cleanup()
			return nil, nil, nil, err
		}
		cleanups = append(cleanups, func() { client.Close() })
		sessions = ledger.NewRedis(client.Client)
	}

	log.Info("stores ready", "roster", cfg.RosterBackend, "ledger", cfg.LedgerBackend)
	return roster, sessions, cleanup, nil
}

func buildAuditSink(ctx context.Context, cfg config.Config, log *slog.Logger) (audit.Store, func(), error) {
	if len(cfg.KafkaBrokers) == 0 {
		return auditmem.NewInMemoryStore(), func() {}, nil
	}
	sink, err := auditkafka.NewStore(ctx, cfg.KafkaBrokers, auditkafka.WithLogger(log))
	if err != nil {
		return nil, nil, err
	}
	return sink, sink.Close, nil
}

func buildRouter(cfg config.Config, log *slog.Logger,
	gate *attendanceservice.Service, roster *rosterservice.Service, tokens *jwttoken.JWTService) chi.Router {

	httpMetrics := platformmetrics.New()

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(requestid.Middleware)
	r.Use(requesttime.Middleware)
	r.Use(device.Middleware)
	r.Use(httpMetrics.Middleware)

	requireAuth := auth.RequireAuth(tokens, log)
	requireAdmin := admin.RequireAdminToken(cfg.AdminToken, log)

	attendancehandler.New(gate, log).Register(r, requireAuth, requireAdmin)
	rosterhandler.New(roster, tokens, log).Register(r, requireAdmin)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}
