// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ovalfantasy/ovalsync/internal/socialstats"
)

// DefaultTable is the table created by the bundled migrations.
const DefaultTable = "social_stats"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// StatsStoreConfig controls the Postgres connection pool used for stats rows.
type StatsStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	Ping(context.Context) error
	Close()
}

// StatsStore upserts daily social stats keyed by (platform, date).
type StatsStore struct {
	pool  pool
	table string
}

// NewStatsStore creates a Postgres-backed StatsStore using the provided config.
func NewStatsStore(ctx context.Context, cfg StatsStoreConfig) (*StatsStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &StatsStore{pool: p, table: table}, nil
}

// NewStatsStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewStatsStoreWithPool(p pool, table string) (*StatsStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	table, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &StatsStore{pool: p, table: table}, nil
}

func tableName(name string) (string, error) {
	if name == "" {
		name = DefaultTable
	}
	if !validTableName.MatchString(name) {
		return "", fmt.Errorf("invalid table name %q", name)
	}
	return name, nil
}

// Close releases the underlying pool resources.
func (s *StatsStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Ping reports whether the database is reachable.
func (s *StatsStore) Ping(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("stats store is not configured")
	}
	return s.pool.Ping(ctx)
}

// UpsertRecord inserts the record or overwrites the existing row for the same platform and date.
func (s *StatsStore) UpsertRecord(ctx context.Context, rec socialstats.Record) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("stats store is not configured")
	}
	if rec.Platform == "" {
		return fmt.Errorf("record platform is required")
	}
	date, err := socialstats.ParseDate(rec.Date)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	platform,
	date,
	followers,
	posts,
	likes,
	comments,
	shares,
	views,
	engagement_rate,
	top_post_url,
	updated_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,now()
)
ON CONFLICT (platform, date) DO UPDATE SET
	followers = EXCLUDED.followers,
	posts = EXCLUDED.posts,
	likes = EXCLUDED.likes,
	comments = EXCLUDED.comments,
	shares = EXCLUDED.shares,
	views = EXCLUDED.views,
	engagement_rate = EXCLUDED.engagement_rate,
	top_post_url = EXCLUDED.top_post_url,
	updated_at = now()`, s.table)

	args := []any{
		rec.Platform,
		date,
		rec.Followers,
		rec.Posts,
		rec.Likes,
		rec.Comments,
		rec.Shares,
		rec.Views,
		rec.EngagementRate,
		rec.TopPostURL,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert %s stats: %w", rec.Platform, err)
	}
	return nil
}

// ListRecords returns stored rows matching q ordered by date then platform.
func (s *StatsStore) ListRecords(ctx context.Context, q socialstats.HistoryQuery) ([]socialstats.Record, error) {
	if s == nil || s.pool == nil {
		return nil, fmt.Errorf("stats store is not configured")
	}
	var (
		where []string
		args  []any
	)
	if q.Platform != "" {
		args = append(args, q.Platform)
		where = append(where, fmt.Sprintf("platform = $%d", len(args)))
	}
	for _, bound := range []struct {
		value string
		op    string
	}{{q.From, ">="}, {q.To, "<="}} {
		if bound.value == "" {
			continue
		}
		d, err := socialstats.ParseDate(bound.value)
		if err != nil {
			return nil, err
		}
		args = append(args, d)
		where = append(where, fmt.Sprintf("date %s $%d", bound.op, len(args)))
	}

	query := fmt.Sprintf(`
SELECT platform, date, followers, posts, likes, comments, shares, views, engagement_rate, top_post_url
FROM %s`, s.table)
	if len(where) > 0 {
		query += "\nWHERE " + strings.Join(where, " AND ")
	}
	query += "\nORDER BY date, platform"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	records := []socialstats.Record{}
	for rows.Next() {
		var (
			rec  socialstats.Record
			date time.Time
		)
		if err := rows.Scan(
			&rec.Platform,
			&date,
			&rec.Followers,
			&rec.Posts,
			&rec.Likes,
			&rec.Comments,
			&rec.Shares,
			&rec.Views,
			&rec.EngagementRate,
			&rec.TopPostURL,
		); err != nil {
			return nil, fmt.Errorf("scan stats row: %w", err)
		}
		rec.Date = date.Format(socialstats.DateLayout)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stats rows: %w", err)
	}
	return records, nil
}
