package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/franciscolir/pre-reserva/internal/app"
	"github.com/franciscolir/pre-reserva/internal/clock"
	"github.com/franciscolir/pre-reserva/internal/config"
	"github.com/franciscolir/pre-reserva/internal/domain"
	"github.com/franciscolir/pre-reserva/internal/logging"
	"github.com/franciscolir/pre-reserva/internal/storage/postgres"
	"github.com/franciscolir/pre-reserva/internal/telemetry"
	transporthttp "github.com/franciscolir/pre-reserva/internal/transport/http"
	"github.com/franciscolir/pre-reserva/internal/ws"
	"github.com/franciscolir/pre-reserva/migrations"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.Setup(cfg.Environment)

	startupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(startupCtx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect to db: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(startupCtx); err != nil {
		return fmt.Errorf("db ping: %w", err)
	}
	if err := migrations.Apply(startupCtx, pool); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	repo := postgres.NewSlotRepository(pool)
	if err := repo.Initialize(startupCtx, cfg.SlotIDs); err != nil {
		return fmt.Errorf("seed slots: %w", err)
	}
	logger.Info().Int("slots", len(cfg.SlotIDs)).Msg("slot set seeded")

	clk := clock.NewSystem()
	svc := app.NewReservationService(repo, clk, app.WithSoftLockTTL(cfg.SoftLockTTL))
	sweeper := app.NewSweeper(repo, clk, logger, app.WithSweepInterval(cfg.SweepInterval))
	hub := ws.NewHub(logger)
	gateway := ws.NewGateway(hub, svc, sweeper, logger,
		ws.WithMessageBudget(cfg.WSMsgRate, cfg.WSMsgBurst))

	router := chi.NewRouter()
	router.Get("/health", transporthttp.HealthHandler)
	router.Method(http.MethodGet, "/reserved-slots", transporthttp.HandleListReserved(svc))
	router.Handle("/ws", gateway)
	router.Handle("/metrics", telemetry.Handler())
	if cfg.StaticDir != "" {
		router.Handle("/*", http.FileServer(http.Dir(cfg.StaticDir)))
	} else {
		router.NotFound(transporthttp.NotFoundHandler().ServeHTTP)
	}

	handler := transporthttp.RequestLogger(transporthttp.CORS(cfg.CORSOrigins, router), logger)

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: handler,
	}

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Background sweep keeps expiring even with no connected observers.
	go sweeper.Run(stopCtx, func(ids []string) {
		for _, id := range ids {
			hub.BroadcastSlotState(domain.NewFreeSlot(id))
		}
	})

	logger.Info().Str("addr", cfg.HTTPAddr).Msg("server listening")

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.ListenAndServe()
	}()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("server error")
		}
	case <-stopCtx.Done():
		logger.Info().Msg("shutdown signal received, stopping server")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("server shutdown error")
	}
	logger.Info().Msg("server stopped")
	return nil
}
