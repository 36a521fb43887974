package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/tinoosan/gamedock/internal/data"
)

// PostgresRepo implements TitleRepo backed by PostgreSQL. Source specific
// variants are stored as JSONB and rebuilt through the decoder registered
// for the title's source.
type PostgresRepo struct {
	db       *sql.DB
	decoders map[string]data.VariantDecoder
}

// NewPostgresRepo constructs a repository using the provided DSN.
func NewPostgresRepo(dsn string, decoders map[string]data.VariantDecoder) (*PostgresRepo, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	r := &PostgresRepo{db: db, decoders: decoders}
	if err := r.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

var _ TitleRepo = (*PostgresRepo)(nil)

func (r *PostgresRepo) Close() error { return r.db.Close() }

func (r *PostgresRepo) ensureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS titles (
    id TEXT PRIMARY KEY,
    source TEXT NOT NULL,
    internal_name TEXT NOT NULL DEFAULT '',
    name TEXT NOT NULL,
    version TEXT NOT NULL DEFAULT '',
    size BIGINT NOT NULL DEFAULT 0,
    status TEXT NOT NULL,
    update_available BOOLEAN NOT NULL DEFAULT FALSE,
    from_origin BOOLEAN NOT NULL DEFAULT FALSE,
    install_path TEXT NOT NULL DEFAULT '',
    variant JSONB,
    position INTEGER NOT NULL DEFAULT 0,
    updated_at TIMESTAMPTZ NOT NULL
);
`)
	return err
}

const titleColumns = `id,source,internal_name,name,version,size,status,update_available,from_origin,install_path,variant,updated_at`

func (r *PostgresRepo) List(ctx context.Context) (data.Titles, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+titleColumns+` FROM titles ORDER BY source ASC, position ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out data.Titles
	for rows.Next() {
		t, err := r.scanTitle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (*data.Title, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+titleColumns+` FROM titles WHERE id=$1`, id)
	t, err := r.scanTitle(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, data.ErrNotFound
		}
		return nil, err
	}
	return t, nil
}

func (r *PostgresRepo) Replace(ctx context.Context, source string, titles data.Titles) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM titles WHERE source=$1`, source); err != nil {
		return err
	}
	now := time.Now()
	for i, t := range titles {
		if t.ID == "" {
			return data.ErrInvalidID
		}
		variant, err := marshalVariant(t.Variant)
		if err != nil {
			return err
		}
		updated := t.UpdatedAt
		if updated.IsZero() {
			updated = now
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO titles (`+titleColumns+`,position) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
			t.ID, source, t.InternalName, t.Name, t.Version, t.Size, string(t.Status), t.UpdateAvailable, t.FromOrigin, t.InstallPath, variant, updated, i); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Update serializes writers per row with SELECT ... FOR UPDATE.
func (r *PostgresRepo) Update(ctx context.Context, id string, mutate func(*data.Title) error) (*data.Title, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `SELECT `+titleColumns+` FROM titles WHERE id=$1 FOR UPDATE`, id)
	cur, err := r.scanTitle(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, data.ErrNotFound
		}
		return nil, err
	}

	next := cur.Clone()
	if mutate != nil {
		if err := mutate(next); err != nil {
			return nil, err
		}
	}
	next.ID = cur.ID
	next.UpdatedAt = time.Now()
	variant, err := marshalVariant(next.Variant)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `UPDATE titles SET internal_name=$1, name=$2, version=$3, size=$4, status=$5, update_available=$6, from_origin=$7, install_path=$8, variant=$9, updated_at=$10 WHERE id=$11`,
		next.InternalName, next.Name, next.Version, next.Size, string(next.Status), next.UpdateAvailable, next.FromOrigin, next.InstallPath, variant, next.UpdatedAt, id); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return next, nil
}

func (r *PostgresRepo) Clear(ctx context.Context, source string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM titles WHERE source=$1`, source)
	return err
}

// Helpers

type rowScanner interface{ Scan(dest ...any) error }

func (r *PostgresRepo) scanTitle(rs rowScanner) (*data.Title, error) {
	var (
		t          data.Title
		status     string
		variantRaw sql.NullString
	)
	if err := rs.Scan(&t.ID, &t.Source, &t.InternalName, &t.Name, &t.Version, &t.Size, &status,
		&t.UpdateAvailable, &t.FromOrigin, &t.InstallPath, &variantRaw, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Status = data.InstalledStatus(status)
	if variantRaw.Valid && variantRaw.String != "" {
		dec, ok := r.decoders[t.Source]
		if !ok {
			return nil, fmt.Errorf("title %s: no variant decoder for source %q: %w", t.ID, t.Source, data.ErrInvalidTitleVariant)
		}
		v, err := dec(json.RawMessage(variantRaw.String))
		if err != nil {
			return nil, fmt.Errorf("title %s: %w", t.ID, err)
		}
		t.Variant = v
	}
	return &t, nil
}

func marshalVariant(v data.Variant) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if len(b) == 0 || string(b) == "null" {
		return nil, nil
	}
	return string(b), nil
}
