package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/mcdev12/leagueauction/go/internal/auth"
	"github.com/mcdev12/leagueauction/go/internal/dbconfig"
)

// Snapshot mirrors go/internal/assets/auction_seed.json
type Snapshot struct {
	SeasonID string   `json:"season_id"`
	Teams    []Team   `json:"teams"`
	Players  []Player `json:"players"`
}

type Team struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Budget   decimal.Decimal `json:"budget"`
	SquadCap int             `json:"squad_cap"`
}

type Player struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Position string `json:"position"`
}

func main() {
	path := flag.String("file", "go/internal/assets/auction_seed.json", "seed snapshot")
	tokens := flag.Bool("tokens", false, "print a bearer token per team (needs JWT_SECRET)")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	// 1) Load the JSON snapshot
	data, err := os.ReadFile(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read JSON: %v\n", err)
		os.Exit(1)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		fmt.Fprintf(os.Stderr, "unmarshal JSON: %v\n", err)
		os.Exit(1)
	}

	// 2) Connect using shared dbconfig
	ctx := context.Background()
	cfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	// 3) Seed players
	var (
		total    = len(snap.Players)
		inserted int
		skipped  int
		errs     int
	)
	for _, p := range snap.Players {
		tag, err := pool.Exec(ctx, `
            INSERT INTO players (id, season_id, full_name, position)
            VALUES ($1,$2,$3,$4)
            ON CONFLICT (id) DO NOTHING
        `, p.ID, snap.SeasonID, p.FullName, p.Position)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error inserting player %s: %v\n", p.ID, err)
			errs++
			continue
		}
		if tag.RowsAffected() == 1 {
			inserted++
		} else {
			skipped++
		}
	}
	fmt.Printf(
		"Players seed: total=%d inserted=%d skipped=%d errors=%d\n",
		total, inserted, skipped, errs,
	)

	// 4) Seed team budgets. Existing budgets are left alone so a reseed never
	// refunds spending.
	total, inserted, skipped, errs = len(snap.Teams), 0, 0, 0
	for _, t := range snap.Teams {
		tag, err := pool.Exec(ctx, `
            INSERT INTO team_budgets (
              team_id, season_id, team_name, starting_budget, remaining_budget, squad_cap
            ) VALUES ($1,$2,$3,$4,$4,$5)
            ON CONFLICT (team_id, season_id) DO NOTHING
        `, t.ID, snap.SeasonID, t.Name, t.Budget.StringFixed(2), t.SquadCap)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error inserting team %s: %v\n", t.ID, err)
			errs++
			continue
		}
		if tag.RowsAffected() == 1 {
			inserted++
		} else {
			skipped++
		}
	}
	fmt.Printf(
		"Team budgets seed: total=%d inserted=%d skipped=%d errors=%d\n",
		total, inserted, skipped, errs,
	)

	if !*tokens {
		return
	}

	// 5) Print tokens for local testing
	verifier, err := auth.NewVerifier(os.Getenv("JWT_SECRET"), getEnv("JWT_ISSUER", "leagueauction"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "token verifier: %v\n", err)
		os.Exit(1)
	}
	now := time.Now()
	for _, t := range snap.Teams {
		token, err := verifier.Issue(t.Name, auth.RoleTeam, t.ID, *ttl, now)
		if err != nil {
			fmt.Fprintf(os.Stderr, "issue token for %s: %v\n", t.ID, err)
			continue
		}
		fmt.Printf("%s\t%s\n", t.Name, token)
	}
	token, err := verifier.Issue("committee", auth.RoleCommittee, "", *ttl, now)
	if err != nil {
		fmt.Fprintf(os.Stderr, "issue committee token: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("committee\t%s\n", token)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
