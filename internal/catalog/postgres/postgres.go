// Package postgres implements the catalog store on PostgreSQL, for
// deployments where the crawler and several service replicas share one
// catalog.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"enrich/internal/catalog"
)

// Repo implements catalog.Store for Postgres. Keywords and the column
// signature live in jsonb columns; the catalog is always read back whole,
// so they are never queried structurally.
type Repo struct {
	pool *pgxpool.Pool
}

func init() {
	catalog.Register("postgres", New)
}

func New(ctx context.Context, cfg catalog.Config) (catalog.Store, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	r := &Repo{pool: pool}
	if err := r.ensureTable(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repo) Close() { r.pool.Close() }

func (r *Repo) ensureTable(ctx context.Context) error {
	const ddl = `CREATE TABLE IF NOT EXISTS catalog (
  position     BIGSERIAL,
  title        TEXT PRIMARY KEY,
  author       TEXT NOT NULL DEFAULT '',
  content      TEXT NOT NULL DEFAULT '',
  csv_url      TEXT NOT NULL DEFAULT '',
  tag          TEXT NOT NULL DEFAULT '',
  keywords     JSONB NOT NULL DEFAULT '[]',
  col_and_typ  JSONB NOT NULL DEFAULT '{}',
  top_ten_cols TEXT NOT NULL DEFAULT ''
)`
	if _, err := r.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("postgres: create table catalog: %w", err)
	}
	return nil
}

func (r *Repo) Load(ctx context.Context) ([]catalog.Record, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT title, author, content, csv_url, tag, keywords, col_and_typ, top_ten_cols
		   FROM catalog ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("postgres: select catalog: %w", err)
	}
	defer rows.Close()

	records := []catalog.Record{}
	for rows.Next() {
		var rec catalog.Record
		var keywords, signature []byte
		if err := rows.Scan(&rec.Title, &rec.Author, &rec.Content, &rec.CSV,
			&rec.Tag, &keywords, &signature, &rec.TopTenCols); err != nil {
			return nil, fmt.Errorf("postgres: scan catalog row: %w", err)
		}
		if err := json.Unmarshal(keywords, &rec.Keywords); err != nil {
			return nil, fmt.Errorf("postgres: decode keywords for %q: %w", rec.Title, err)
		}
		if err := json.Unmarshal(signature, &rec.ColAndTyp); err != nil {
			return nil, fmt.Errorf("postgres: decode signature for %q: %w", rec.Title, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Replace swaps the catalog contents in one transaction so concurrent
// readers never see a half-written merge.
func (r *Repo) Replace(ctx context.Context, records []catalog.Record) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `TRUNCATE catalog`); err != nil {
		return fmt.Errorf("postgres: clear catalog: %w", err)
	}

	const ins = `INSERT INTO catalog
  (title, author, content, csv_url, tag, keywords, col_and_typ, top_ten_cols)
  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	for _, rec := range records {
		keywords := rec.Keywords
		if keywords == nil {
			keywords = []string{}
		}
		signature := rec.ColAndTyp
		if signature == nil {
			signature = map[string]string{}
		}
		kb, err := json.Marshal(keywords)
		if err != nil {
			return fmt.Errorf("postgres: encode keywords for %q: %w", rec.Title, err)
		}
		sb, err := json.Marshal(signature)
		if err != nil {
			return fmt.Errorf("postgres: encode signature for %q: %w", rec.Title, err)
		}
		if _, err := tx.Exec(ctx, ins, rec.Title, rec.Author, rec.Content,
			rec.CSV, rec.Tag, kb, sb, rec.TopTenCols); err != nil {
			return fmt.Errorf("postgres: insert %q: %w", rec.Title, err)
		}
	}
	return tx.Commit(ctx)
}
