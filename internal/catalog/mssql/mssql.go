// Package mssql implements the catalog store on Microsoft SQL Server.
package mssql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/microsoft/go-mssqldb"

	"enrich/internal/catalog"
)

// Repo implements catalog.Store for SQL Server using database/sql and the
// "sqlserver" driver. Structured fields are stored as JSON in NVARCHAR(MAX)
// columns since the catalog is only ever read back whole.
type Repo struct {
	db *sql.DB
}

func init() {
	catalog.Register("mssql", New)
}

func New(ctx context.Context, cfg catalog.Config) (catalog.Store, error) {
	db, err := sql.Open("sqlserver", cfg.DSN)
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
	const ddl = `IF OBJECT_ID(N'dbo.catalog', N'U') IS NULL
CREATE TABLE dbo.catalog (
  position     BIGINT IDENTITY(1,1),
  title        NVARCHAR(450) NOT NULL PRIMARY KEY,
  author       NVARCHAR(MAX) NOT NULL DEFAULT N'',
  content      NVARCHAR(MAX) NOT NULL DEFAULT N'',
  csv_url      NVARCHAR(MAX) NOT NULL DEFAULT N'',
  tag          NVARCHAR(MAX) NOT NULL DEFAULT N'',
  keywords     NVARCHAR(MAX) NOT NULL DEFAULT N'[]',
  col_and_typ  NVARCHAR(MAX) NOT NULL DEFAULT N'{}',
  top_ten_cols NVARCHAR(MAX) NOT NULL DEFAULT N''
)`
	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("mssql: create table catalog: %w", err)
	}
	return nil
}

func (r *Repo) Load(ctx context.Context) ([]catalog.Record, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT title, author, content, csv_url, tag, keywords, col_and_typ, top_ten_cols
		   FROM dbo.catalog ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("mssql: select catalog: %w", err)
	}
	defer rows.Close()

	records := []catalog.Record{}
	for rows.Next() {
		var rec catalog.Record
		var keywords, signature string
		if err := rows.Scan(&rec.Title, &rec.Author, &rec.Content, &rec.CSV,
			&rec.Tag, &keywords, &signature, &rec.TopTenCols); err != nil {
			return nil, fmt.Errorf("mssql: scan catalog row: %w", err)
		}
		if err := json.Unmarshal([]byte(keywords), &rec.Keywords); err != nil {
			return nil, fmt.Errorf("mssql: decode keywords for %q: %w", rec.Title, err)
		}
		if err := json.Unmarshal([]byte(signature), &rec.ColAndTyp); err != nil {
			return nil, fmt.Errorf("mssql: decode signature for %q: %w", rec.Title, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Replace swaps the catalog contents inside a single transaction.
func (r *Repo) Replace(ctx context.Context, records []catalog.Record) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("mssql: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM dbo.catalog`); err != nil {
		return fmt.Errorf("mssql: clear catalog: %w", err)
	}

	const ins = `INSERT INTO dbo.catalog
  (title, author, content, csv_url, tag, keywords, col_and_typ, top_ten_cols)
  VALUES (@p1, @p2, @p3, @p4, @p5, @p6, @p7, @p8)`
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
			return fmt.Errorf("mssql: encode keywords for %q: %w", rec.Title, err)
		}
		sb, err := json.Marshal(signature)
		if err != nil {
			return fmt.Errorf("mssql: encode signature for %q: %w", rec.Title, err)
		}
		if _, err := tx.ExecContext(ctx, ins, rec.Title, rec.Author, rec.Content,
			rec.CSV, rec.Tag, string(kb), string(sb), rec.TopTenCols); err != nil {
			return fmt.Errorf("mssql: insert %q: %w", rec.Title, err)
		}
	}
	return tx.Commit()
}
