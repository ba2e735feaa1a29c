package main

import (
	"database/sql"
	"fmt"

	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/leagueauction/go/internal/auction/allocation"
	"github.com/mcdev12/leagueauction/go/internal/auction/bid"
	"github.com/mcdev12/leagueauction/go/internal/auction/db"
	"github.com/mcdev12/leagueauction/go/internal/auction/finalize"
	"github.com/mcdev12/leagueauction/go/internal/auction/outbox"
	"github.com/mcdev12/leagueauction/go/internal/auction/repository"
	"github.com/mcdev12/leagueauction/go/internal/auction/round"
	"github.com/mcdev12/leagueauction/go/internal/auction/service"
	"github.com/mcdev12/leagueauction/go/internal/auction/tiebreak"
	"github.com/mcdev12/leagueauction/go/internal/auth"
)

type Services struct {
	Auction   *service.AuctionService
	Admin     *service.AdminService
	Finalizer *finalize.Finalizer
	Verifier  *auth.Verifier
}

func setupServices(database *sql.DB, cfg *Config) (*Services, error) {
	// Wire up dependency injection chain
	// Database layer → Repository layer → App layer → Service layer
	clock := clockwork.NewRealClock()
	repo := repository.NewRepository(database)

	// Events go through the outbox; the relay binary publishes them.
	events := outbox.NewApp(outbox.NewRepository(db.New(database)))

	rounds := round.NewApp(repo, clock)
	bids := bid.NewApp(repo, clock)
	tiebreaks := tiebreak.NewApp(repo, events, clock, cfg.tiebreakConfig())
	engine := allocation.NewEngine(repo, tiebreaks, events, clock, cfg.allocationConfig())
	finalizer := finalize.NewFinalizer(rounds, engine, tiebreaks, repo, events, clock, cfg.finalizeConfig())

	verifier, err := auth.NewVerifier(cfg.Auth.Secret, cfg.Auth.Issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to create token verifier: %w", err)
	}

	return &Services{
		Auction:   service.NewAuctionService(rounds, bids, tiebreaks, finalizer, repo, clock),
		Admin:     service.NewAdminService(rounds, finalizer, events),
		Finalizer: finalizer,
		Verifier:  verifier,
	}, nil
}
