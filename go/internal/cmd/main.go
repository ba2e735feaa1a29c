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

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/mcdev12/leagueauction/go/internal/scheduler"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogging(cfg.Server.Environment)

	database, err := setupDatabase(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to setup database")
	}
	defer database.Close()

	services, err := setupServices(database, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to setup services")
	}

	var sched *scheduler.Service
	if cfg.Sweep.Cron != "" {
		sched, err = scheduler.New()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create scheduler")
		}
		if err := scheduler.RegisterSweepJob(sched, services.Finalizer, cfg.Sweep.Cron, true, cfg.Sweep.Timeout); err != nil {
			log.Fatal().Err(err).Msg("failed to register sweep job")
		}
	}

	server := setupServer(services, database, cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().
			Str("addr", server.Addr).
			Str("allocation_policy", cfg.Auction.AllocationPolicy).
			Msg("auction server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if sched != nil {
		g.Go(func() error {
			sched.Start()
			<-gctx.Done()
			return sched.Stop()
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("auction server exited")
		os.Exit(1)
	}
	log.Info().Msg("graceful shutdown complete")
}

func setupLogging(environment string) {
	zerolog.TimeFieldFormat = time.RFC3339
	if environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		return
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}
