package recording

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the SQL DDL for the recordings table. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS recordings (
    id                 TEXT PRIMARY KEY,
    title              TEXT NOT NULL DEFAULT '',
    audio_blob_url     TEXT NOT NULL DEFAULT '',
    duration_sec       DOUBLE PRECISION NOT NULL DEFAULT 0,
    created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
    status             TEXT NOT NULL DEFAULT 'processing',
    processing_error   TEXT NOT NULL DEFAULT '',
    outputs            JSONB,
    last_viewed_format TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_recordings_created_at ON recordings(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_recordings_status ON recordings(status);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by a PostgreSQL database. Outputs are
// serialised as JSONB.
type PostgresStore struct {
	db DB
}

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a new [PostgresStore] that uses the given database
// connection or pool. The caller is responsible for calling
// [PostgresStore.Migrate] to ensure the schema exists before issuing queries.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate executes the [Schema] DDL against the database, creating the
// recordings table and indexes if they do not already exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.Exec(ctx, Schema)
	if err != nil {
		return fmt.Errorf("recording: migrate: %w", err)
	}
	return nil
}

const selectColumns = `id, title, audio_blob_url, duration_sec, created_at,
	       status, processing_error, outputs, last_viewed_format`

// GetAll returns every recording, newest first.
func (s *PostgresStore) GetAll(ctx context.Context) ([]Recording, error) {
	const query = `
		SELECT ` + selectColumns + `
		FROM recordings
		ORDER BY created_at DESC, id`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("recording: get all: %w", err)
	}
	defer rows.Close()

	var recs []Recording
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, fmt.Errorf("recording: get all scan: %w", err)
		}
		recs = append(recs, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("recording: get all: %w", err)
	}
	return recs, nil
}

// Get retrieves a recording by ID. It returns (nil, nil) if no recording with
// the given ID exists.
func (s *PostgresStore) Get(ctx context.Context, id string) (*Recording, error) {
	const query = `
		SELECT ` + selectColumns + `
		FROM recordings
		WHERE id = $1`

	rec, err := scanRecording(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("recording: get %q: %w", id, err)
	}
	return rec, nil
}

// Add inserts a new recording. Returns an error if a recording with the same
// ID already exists.
func (s *PostgresStore) Add(ctx context.Context, rec *Recording) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	outputsJSON, err := marshalOutputs(rec.Outputs)
	if err != nil {
		return err
	}

	const query = `
		INSERT INTO recordings (
			id, title, audio_blob_url, duration_sec, created_at,
			status, processing_error, outputs, last_viewed_format
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`

	_, err = s.db.Exec(ctx, query,
		rec.ID, rec.Title, rec.AudioBlobURL, rec.DurationSec, rec.CreatedAt,
		string(rec.Status), rec.ProcessingError, outputsJSON, rec.LastViewedFormat,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("recording: recording with id %q already exists", rec.ID)
		}
		return fmt.Errorf("recording: add: %w", err)
	}
	return nil
}

// Update applies a patch to an existing recording. The patch is applied to
// the loaded row in Go so that the status machine validation in applyPatch
// covers both store implementations.
func (s *PostgresStore) Update(ctx context.Context, id string, patch Patch) (*Recording, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrNotFound
	}

	if err := applyPatch(rec, patch); err != nil {
		return nil, err
	}

	outputsJSON, err := marshalOutputs(rec.Outputs)
	if err != nil {
		return nil, err
	}

	const query = `
		UPDATE recordings SET
			title = $2, status = $3, processing_error = $4,
			outputs = $5, last_viewed_format = $6
		WHERE id = $1`

	if _, err := s.db.Exec(ctx, query,
		rec.ID, rec.Title, string(rec.Status), rec.ProcessingError,
		outputsJSON, rec.LastViewedFormat,
	); err != nil {
		return nil, fmt.Errorf("recording: update %q: %w", id, err)
	}
	return rec, nil
}

// Delete removes a recording by ID. Deleting a non-existent recording is not
// an error.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM recordings WHERE id = $1`
	if _, err := s.db.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("recording: delete %q: %w", id, err)
	}
	return nil
}

// scanRecording reads one row into a Recording. The outputs column may be
// NULL (non-completed rows) or hold legacy plain-text payloads.
func scanRecording(row pgx.Row) (*Recording, error) {
	var (
		rec         Recording
		status      string
		outputsJSON []byte
	)
	if err := row.Scan(
		&rec.ID, &rec.Title, &rec.AudioBlobURL, &rec.DurationSec, &rec.CreatedAt,
		&status, &rec.ProcessingError, &outputsJSON, &rec.LastViewedFormat,
	); err != nil {
		return nil, err
	}
	rec.Status = Status(status)

	if len(outputsJSON) > 0 {
		var outputs Outputs
		if err := json.Unmarshal(outputsJSON, &outputs); err != nil {
			// Legacy row: treat the whole payload as a plain-text output.
			outputs = Outputs{Summary: ParseArtifact(outputsJSON)}
		}
		rec.Outputs = &outputs
	}
	return &rec, nil
}

// marshalOutputs serialises outputs for the JSONB column; nil maps to NULL.
func marshalOutputs(outputs *Outputs) ([]byte, error) {
	if outputs == nil {
		return nil, nil
	}
	data, err := json.Marshal(outputs)
	if err != nil {
		return nil, fmt.Errorf("recording: marshal outputs: %w", err)
	}
	return data, nil
}

// isDuplicateKeyError checks whether a PostgreSQL error is a unique-violation
// (SQLSTATE 23505).
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
