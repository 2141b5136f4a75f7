package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mcdev12/sketchturn/go/internal/models"
	"github.com/mcdev12/sketchturn/go/internal/sqlutil"
	"github.com/rs/zerolog/log"
)

// DBTX is the subset of pgx shared by the pool and a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type queries struct {
	db DBTX
}

func newQueries(db DBTX) *queries {
	return &queries{db: db}
}

func txQueries(tx pgx.Tx) *queries {
	return newQueries(tx)
}

const (
	deletePlayerSQL = `DELETE FROM players WHERE connection_id = $1`

	// A fresh seq keeps re-registered players at the end of the roster.
	insertPlayerSQL = `
		INSERT INTO players (connection_id, name, ratings, joined_at)
		VALUES ($1, $2, $3, $4)`

	deleteAllPlayersSQL = `DELETE FROM players`

	appendRatingSQL = `
		UPDATE players SET ratings = array_append(ratings, $2)
		WHERE connection_id = $1`

	getPlayerSQL = `
		SELECT connection_id, name, ratings, joined_at
		FROM players WHERE connection_id = $1`

	listPlayersSQL = `
		SELECT connection_id, name, ratings, joined_at
		FROM players ORDER BY seq`

	insertStrokeSQL = `
		INSERT INTO strokes (x0, y0, x1, y1, color)
		VALUES ($1, $2, $3, $4, $5)`

	deleteStrokesSQL = `DELETE FROM strokes`

	listStrokesSQL = `SELECT x0, y0, x1, y1, color FROM strokes ORDER BY id`
)

// PostgresRepository stores records in Postgres through a pgx pool.
type PostgresRepository struct {
	pool *pgxpool.Pool
	q    *queries
}

// NewPostgresRepository connects to dsn and verifies the connection.
func NewPostgresRepository(ctx context.Context, dsn string) (*PostgresRepository, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	cfg := pool.Config().ConnConfig
	log.Info().
		Str("host", cfg.Host).
		Uint16("port", cfg.Port).
		Str("database", cfg.Database).
		Msg("connected to database")

	return &PostgresRepository{pool: pool, q: newQueries(pool)}, nil
}

func (r *PostgresRepository) SavePlayer(ctx context.Context, player models.Player) error {
	ratings := player.Ratings
	if ratings == nil {
		ratings = []float64{}
	}
	err := sqlutil.Run(ctx, r.pool, txQueries, func(q *queries) error {
		if _, err := q.db.Exec(ctx, deletePlayerSQL, player.ConnectionID); err != nil {
			return err
		}
		_, err := q.db.Exec(ctx, insertPlayerSQL, player.ConnectionID, player.Name, ratings, player.JoinedAt)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to save player %s: %w", player.ConnectionID, err)
	}
	return nil
}

func (r *PostgresRepository) DeletePlayer(ctx context.Context, connID string) error {
	if _, err := r.q.db.Exec(ctx, deletePlayerSQL, connID); err != nil {
		return fmt.Errorf("failed to delete player %s: %w", connID, err)
	}
	return nil
}

func (r *PostgresRepository) DeleteAllPlayers(ctx context.Context) error {
	if _, err := r.q.db.Exec(ctx, deleteAllPlayersSQL); err != nil {
		return fmt.Errorf("failed to delete players: %w", err)
	}
	return nil
}

func (r *PostgresRepository) AppendRating(ctx context.Context, connID string, value float64) error {
	tag, err := r.q.db.Exec(ctx, appendRatingSQL, connID, value)
	if err != nil {
		return fmt.Errorf("failed to append rating for %s: %w", connID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) GetPlayer(ctx context.Context, connID string) (models.Player, error) {
	var p models.Player
	err := r.q.db.QueryRow(ctx, getPlayerSQL, connID).Scan(&p.ConnectionID, &p.Name, &p.Ratings, &p.JoinedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Player{}, ErrNotFound
		}
		return models.Player{}, fmt.Errorf("failed to get player %s: %w", connID, err)
	}
	return p, nil
}

func (r *PostgresRepository) ListPlayers(ctx context.Context) ([]models.Player, error) {
	rows, err := r.q.db.Query(ctx, listPlayersSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	players, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Player, error) {
		var p models.Player
		err := row.Scan(&p.ConnectionID, &p.Name, &p.Ratings, &p.JoinedAt)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan players: %w", err)
	}
	return players, nil
}

func (r *PostgresRepository) AppendStroke(ctx context.Context, s models.Stroke) error {
	if _, err := r.q.db.Exec(ctx, insertStrokeSQL, s.X0, s.Y0, s.X1, s.Y1, s.Color); err != nil {
		return fmt.Errorf("failed to append stroke: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ClearStrokes(ctx context.Context) error {
	if _, err := r.q.db.Exec(ctx, deleteStrokesSQL); err != nil {
		return fmt.Errorf("failed to clear strokes: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListStrokes(ctx context.Context) ([]models.Stroke, error) {
	rows, err := r.q.db.Query(ctx, listStrokesSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to list strokes: %w", err)
	}
	strokes, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Stroke, error) {
		var s models.Stroke
		err := row.Scan(&s.X0, &s.Y0, &s.X1, &s.Y1, &s.Color)
		return s, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan strokes: %w", err)
	}
	return strokes, nil
}

func (r *PostgresRepository) Reset(ctx context.Context) error {
	err := sqlutil.Run(ctx, r.pool, txQueries, func(q *queries) error {
		if _, err := q.db.Exec(ctx, deleteAllPlayersSQL); err != nil {
			return err
		}
		_, err := q.db.Exec(ctx, deleteStrokesSQL)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to reset records: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Close() {
	r.pool.Close()
}
