// Package sqlite implements the catalog store on an embedded SQLite
// database. Useful when the service and the crawler share a single file
// but the JSON backend's whole-file rewrites are undesirable.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"enrich/internal/catalog"
)

// Repo implements catalog.Store for SQLite.
//
// Structured fields (keywords, the column signature) are stored as JSON
// text. SQLite's TEXT affinity round-trips them reliably and the catalog
// is always read back as whole records, so there is nothing to gain from
// normalizing them into side tables.
type Repo struct {
	db *sql.DB
}

func init() {
	catalog.Register("sqlite", New)
}

func New(ctx context.Context, cfg catalog.Config) (catalog.Store, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	r := &Repo{db: db}
	if err := r.ensureTable(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repo) Close() { _ = r.db.Close() }

func (r *Repo) ensureTable(ctx context.Context) error {
	const ddl = `CREATE TABLE IF NOT EXISTS catalog (
  title        TEXT PRIMARY KEY,
  author       TEXT NOT NULL DEFAULT '',
  content      TEXT NOT NULL DEFAULT '',
  csv_url      TEXT NOT NULL DEFAULT '',
  tag          TEXT NOT NULL DEFAULT '',
  keywords     TEXT NOT NULL DEFAULT '[]',
  col_and_typ  TEXT NOT NULL DEFAULT '{}',
  top_ten_cols TEXT NOT NULL DEFAULT ''
)`
	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("sqlite: create table catalog: %w", err)
	}
	return nil
}

func (r *Repo) Load(ctx context.Context) ([]catalog.Record, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT title, author, content, csv_url, tag, keywords, col_and_typ, top_ten_cols
		   FROM catalog ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: select catalog: %w", err)
	}
	defer rows.Close()

	records := []catalog.Record{}
	for rows.Next() {
		var rec catalog.Record
		var keywords, signature string
		if err := rows.Scan(&rec.Title, &rec.Author, &rec.Content, &rec.CSV,
			&rec.Tag, &keywords, &signature, &rec.TopTenCols); err != nil {
			return nil, fmt.Errorf("sqlite: scan catalog row: %w", err)
		}
		if err := json.Unmarshal([]byte(keywords), &rec.Keywords); err != nil {
			return nil, fmt.Errorf("sqlite: decode keywords for %q: %w", rec.Title, err)
		}
		if err := json.Unmarshal([]byte(signature), &rec.ColAndTyp); err != nil {
			return nil, fmt.Errorf("sqlite: decode signature for %q: %w", rec.Title, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Replace swaps the catalog contents inside a single transaction.
func (r *Repo) Replace(ctx context.Context, records []catalog.Record) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM catalog`); err != nil {
		return fmt.Errorf("sqlite: clear catalog: %w", err)
	}

	const ins = `INSERT INTO catalog
  (title, author, content, csv_url, tag, keywords, col_and_typ, top_ten_cols)
  VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	for _, rec := range records {
		keywords, signature, err := encodeStructured(rec)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, ins, rec.Title, rec.Author, rec.Content,
			rec.CSV, rec.Tag, keywords, signature, rec.TopTenCols); err != nil {
			return fmt.Errorf("sqlite: insert %q: %w", rec.Title, err)
		}
	}
	return tx.Commit()
}

func encodeStructured(rec catalog.Record) (keywords, signature string, err error) {
	kw := rec.Keywords
	if kw == nil {
		kw = []string{}
	}
	sig := rec.ColAndTyp
	if sig == nil {
		sig = map[string]string{}
	}
	kb, err := json.Marshal(kw)
	if err != nil {
		return "", "", fmt.Errorf("sqlite: encode keywords for %q: %w", rec.Title, err)
	}
	sb, err := json.Marshal(sig)
	if err != nil {
		return "", "", fmt.Errorf("sqlite: encode signature for %q: %w", rec.Title, err)
	}
	return string(kb), string(sb), nil
}
