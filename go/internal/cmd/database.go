package main

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/leagueauction/go/internal/dbconfig"
	"github.com/mcdev12/leagueauction/go/internal/migrations"
)

func setupDatabase(cfg *Config) (*sql.DB, error) {
	dbConfig := dbconfig.NewConfigFromEnv()

	database, err := dbConfig.Open()
	if err != nil {
		return nil, err
	}

	if cfg.AutoMigrate {
		if err := migrations.Up(database); err != nil {
			database.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	log.Info().
		Str("host", dbConfig.Host).
		Int("port", dbConfig.Port).
		Str("database", dbConfig.Database).
		Msg("connected to database")
	return database, nil
}
