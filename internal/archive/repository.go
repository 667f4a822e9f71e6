package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/park285/checkora/internal/domain"
)

var ErrDuplicateGame = errors.New("game already archived")

type Repository interface {
	Insert(ctx context.Context, rec *domain.GameRecord) (int64, error)
	Recent(ctx context.Context, sessionHash string, limit int) ([]*domain.GameRecord, error)
}

const Schema = `
CREATE TABLE IF NOT EXISTS checkora_games (
	id           BIGSERIAL PRIMARY KEY,
	game_id      UUID NOT NULL UNIQUE,
	session_hash TEXT NOT NULL,
	result       TEXT NOT NULL,
	method       TEXT NOT NULL,
	moves        JSONB NOT NULL,
	pgn          TEXT NOT NULL,
	final_fen    TEXT NOT NULL,
	white_time   INTEGER NOT NULL,
	black_time   INTEGER NOT NULL,
	ended_at     TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS checkora_games_session_idx ON checkora_games (session_hash, ended_at DESC);`

type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// OpenPostgres opens a pooled connection and verifies it.
func OpenPostgres(ctx context.Context, dsn string, pool PoolConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if pool.MaxOpenConns <= 0 {
		pool.MaxOpenConns = 16
	}
	if pool.MaxIdleConns <= 0 {
		pool.MaxIdleConns = 8
	}
	if pool.ConnMaxLifetime <= 0 {
		pool.ConnMaxLifetime = 30 * time.Minute
	}
	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("ensure archive schema: %w", err)
	}
	return nil
}

func (r *repository) Insert(ctx context.Context, rec *domain.GameRecord) (int64, error) {
	if rec == nil {
		return 0, fmt.Errorf("nil game record")
	}
	moves, err := json.Marshal(rec.Moves)
	if err != nil {
		return 0, fmt.Errorf("marshal moves: %w", err)
	}

	const query = `
		INSERT INTO checkora_games (
			game_id,
			session_hash,
			result,
			method,
			moves,
			pgn,
			final_fen,
			white_time,
			black_time,
			ended_at
		)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7, $8, $9, $10)
		ON CONFLICT (game_id) DO NOTHING
		RETURNING id`

	var id sql.NullInt64
	err = r.db.QueryRowContext(
		ctx,
		query,
		rec.GameID,
		rec.SessionHash,
		rec.Result,
		rec.Method,
		moves,
		rec.PGN,
		rec.FinalFEN,
		rec.WhiteTime,
		rec.BlackTime,
		rec.EndedAt,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !id.Valid) {
		return 0, ErrDuplicateGame
	}
	if err != nil {
		return 0, fmt.Errorf("insert game record: %w", err)
	}
	return id.Int64, nil
}

func (r *repository) Recent(ctx context.Context, sessionHash string, limit int) ([]*domain.GameRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	const query = `
		SELECT
			id,
			game_id,
			session_hash,
			result,
			method,
			moves,
			pgn,
			final_fen,
			white_time,
			black_time,
			ended_at
		FROM checkora_games
		WHERE session_hash = $1
		ORDER BY ended_at DESC, id DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, sessionHash, limit)
	if err != nil {
		return nil, fmt.Errorf("select game records: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.GameRecord, 0, limit)
	for rows.Next() {
		var (
			rec       domain.GameRecord
			movesJSON []byte
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.GameID,
			&rec.SessionHash,
			&rec.Result,
			&rec.Method,
			&movesJSON,
			&rec.PGN,
			&rec.FinalFEN,
			&rec.WhiteTime,
			&rec.BlackTime,
			&rec.EndedAt,
		); err != nil {
			return nil, fmt.Errorf("scan game record: %w", err)
		}
		if err := json.Unmarshal(movesJSON, &rec.Moves); err != nil {
			return nil, fmt.Errorf("unmarshal moves: %w", err)
		}
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate game records: %w", err)
	}
	return out, nil
}
