package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/mcdev12/leagueauction/go/internal/auction/db"
	"github.com/mcdev12/leagueauction/go/internal/auction/outbox"
	"github.com/mcdev12/leagueauction/go/internal/auction/outbox/worker"
	"github.com/mcdev12/leagueauction/go/internal/dbconfig"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	zerolog.SetGlobalLevel(zerolog.DebugLevel)

	cfg := dbconfig.NewConfigFromEnv()
	database, err := cfg.Open()
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	defer database.Close()
	log.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Database).
		Msg("connected to database")

	jsCfg := worker.DefaultJetStreamConfig()
	if url := os.Getenv("NATS_URL"); url != "" {
		jsCfg.URL = url
	}
	publisher, err := worker.NewJetStreamPublisher(jsCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("create JetStream publisher")
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Error().Err(err).Msg("close publisher")
		}
	}()

	ltCfg := outbox.DefaultListenerConfig()
	ltCfg.DatabaseURL = cfg.DSN()
	if iv := os.Getenv("FALLBACK_INTERVAL"); iv != "" {
		if d, err := time.ParseDuration(iv); err == nil {
			ltCfg.FallbackInterval = d
		}
	}

	app := outbox.NewApp(outbox.NewRepository(db.New(database)))
	relay := outbox.NewRelay(app, publisher, outbox.RelayConfig{
		MaxRetries: ltCfg.MaxRetries,
		RetryDelay: ltCfg.RetryDelay,
		BatchSize:  ltCfg.BatchSize,
	})
	listener, err := outbox.NewListener(relay, ltCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("create outbox listener")
	}

	health := outbox.NewHealthChecker(outbox.HealthChecks{
		PingDB:         database.PingContext,
		NATSConnected:  publisher.Conn().IsConnected,
		ListenerActive: listener.Running,
		CountPending:   app.CountPending,
		Stats:          relay.Stats,
	}, 5*time.Minute)

	mux := http.NewServeMux()
	mux.Handle("/health", health)
	srv := &http.Server{
		Addr:              ":" + getEnv("OUTBOX_HEALTH_PORT", "8082"),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Msg("starting realtime listener")
		return listener.Start(gctx)
	})
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("health endpoint listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("outbox relay exited")
		os.Exit(1)
	}
	log.Info().Msg("graceful shutdown complete")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
