package main

import (
	"context"
	"fmt"
	"net/url"

	"github.com/mcdev12/sketchturn/go/internal/migrations"
	"github.com/mcdev12/sketchturn/go/internal/repository"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newMigrateCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				dsn := cfg.migrationDSN()
				log.Info().Str("database", redactDSN(dsn)).Msg("applying migrations")
				return migrations.Up(dsn)
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back all migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				dsn := cfg.migrationDSN()
				log.Info().Str("database", redactDSN(dsn)).Msg("rolling back migrations")
				return migrations.Down(dsn)
			},
		},
	)

	return cmd
}

// setupRepository opens the write-through store. Records left by a previous
// process belong to connections that no longer exist, so the store starts empty.
func setupRepository(ctx context.Context, dsn string) (repository.Repository, error) {
	var repo repository.Repository
	if dsn == "" {
		log.Info().Msg("no database configured, using in-memory repository")
		repo = repository.NewMemoryRepository()
	} else {
		log.Info().Str("database", redactDSN(dsn)).Msg("using postgres repository")
		if err := migrations.Up(dsn); err != nil {
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		pg, err := repository.NewPostgresRepository(ctx, dsn)
		if err != nil {
			return nil, err
		}
		repo = pg
	}

	if err := repo.Reset(ctx); err != nil {
		repo.Close()
		return nil, fmt.Errorf("failed to reset repository: %w", err)
	}
	return repo, nil
}

func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "<invalid url>"
	}
	return u.Redacted()
}
