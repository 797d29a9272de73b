// Package jobstore holds the durable pipeline.Repository implementations.
package jobstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dgallion1/mathreel/internal/doctree"
	"github.com/dgallion1/mathreel/internal/pipeline"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS jobs (
	id               TEXT PRIMARY KEY,
	filename         TEXT NOT NULL,
	format           TEXT NOT NULL,
	title            TEXT NOT NULL DEFAULT '',
	stage            TEXT NOT NULL,
	progress         INTEGER NOT NULL DEFAULT 0,
	error            JSONB,
	slide_count      INTEGER NOT NULL DEFAULT 0,
	cancel_requested BOOLEAN NOT NULL DEFAULT FALSE,
	options          JSONB NOT NULL,
	artifacts        JSONB NOT NULL DEFAULT '[]',
	content_hash     TEXT NOT NULL DEFAULT '',
	created_at       TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS job_events (
	id     BIGSERIAL PRIMARY KEY,
	job_id TEXT NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
	at     TIMESTAMPTZ NOT NULL,
	stage  TEXT NOT NULL,
	kind   TEXT NOT NULL,
	detail TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS job_events_job_id_idx ON job_events (job_id, id);
`

// Postgres stores jobs in two tables: one row per job and an append-only event log.
type Postgres struct {
	pool *pgxpool.Pool
	ttl  time.Duration
}

var _ pipeline.Repository = (*Postgres)(nil)

// NewPostgres connects, pings and creates the schema when missing. Finished jobs
// older than ttl are removed by Cleanup.
func NewPostgres(ctx context.Context, dsn string, ttl time.Duration) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Postgres{pool: pool, ttl: ttl}, nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}

// jobColumns are the JSON-encoded parts of a job row.
type jobColumns struct {
	errJSON       []byte
	optionsJSON   []byte
	artifactsJSON []byte
}

func encodeColumns(job *pipeline.Job) (jobColumns, error) {
	var c jobColumns
	var err error
	if job.Error != nil {
		if c.errJSON, err = json.Marshal(job.Error); err != nil {
			return c, fmt.Errorf("encode error: %w", err)
		}
	}
	if c.optionsJSON, err = json.Marshal(job.Options); err != nil {
		return c, fmt.Errorf("encode options: %w", err)
	}
	artifacts := job.Artifacts
	if artifacts == nil {
		artifacts = []pipeline.Artifact{}
	}
	if c.artifactsJSON, err = json.Marshal(artifacts); err != nil {
		return c, fmt.Errorf("encode artifacts: %w", err)
	}
	return c, nil
}

func (c jobColumns) decodeInto(job *pipeline.Job) error {
	if len(c.errJSON) > 0 {
		job.Error = &pipeline.JobError{}
		if err := json.Unmarshal(c.errJSON, job.Error); err != nil {
			return fmt.Errorf("decode error: %w", err)
		}
	}
	if err := json.Unmarshal(c.optionsJSON, &job.Options); err != nil {
		return fmt.Errorf("decode options: %w", err)
	}
	if err := json.Unmarshal(c.artifactsJSON, &job.Artifacts); err != nil {
		return fmt.Errorf("decode artifacts: %w", err)
	}
	return nil
}

func (p *Postgres) Create(ctx context.Context, job *pipeline.Job) error {
	cols, err := encodeColumns(job)
	if err != nil {
		return err
	}
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO jobs (
			id, filename, format, title, stage, progress, error, slide_count,
			cancel_requested, options, artifacts, content_hash, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		ON CONFLICT (id) DO NOTHING
	`,
		job.ID, job.Filename, string(job.Format), job.Title, string(job.Stage), job.Progress,
		cols.errJSON, job.SlideCount, job.CancelRequested, cols.optionsJSON, cols.artifactsJSON,
		job.ContentHash, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pipeline.ErrJobExists
	}
	for _, ev := range job.Events {
		if _, err := tx.Exec(ctx, `
			INSERT INTO job_events (job_id, at, stage, kind, detail) VALUES ($1,$2,$3,$4,$5)
		`, job.ID, ev.Time, string(ev.Stage), string(ev.Kind), ev.Detail); err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, id string) (*pipeline.Job, error) {
	var (
		job    pipeline.Job
		cols   jobColumns
		format string
		stage  string
	)
	err := p.pool.QueryRow(ctx, `
		SELECT id, filename, format, title, stage, progress, error, slide_count,
			cancel_requested, options, artifacts, content_hash, created_at, updated_at
		FROM jobs
		WHERE id = $1
	`, id).Scan(
		&job.ID, &job.Filename, &format, &job.Title, &stage, &job.Progress, &cols.errJSON,
		&job.SlideCount, &job.CancelRequested, &cols.optionsJSON, &cols.artifactsJSON,
		&job.ContentHash, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pipeline.ErrNotFound
		}
		return nil, fmt.Errorf("query job: %w", err)
	}
	job.Format = doctree.Format(format)
	job.Stage = pipeline.Stage(stage)
	if err := cols.decodeInto(&job); err != nil {
		return nil, err
	}

	rows, err := p.pool.Query(ctx, `
		SELECT at, stage, kind, detail FROM job_events WHERE job_id = $1 ORDER BY id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var ev pipeline.JobEvent
		var evStage, kind string
		if err := rows.Scan(&ev.Time, &evStage, &kind, &ev.Detail); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Stage = pipeline.Stage(evStage)
		ev.Kind = pipeline.EventKind(kind)
		job.Events = append(job.Events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	return &job, nil
}

func (p *Postgres) Put(ctx context.Context, job *pipeline.Job) error {
	cols, err := encodeColumns(job)
	if err != nil {
		return err
	}
	tag, err := p.pool.Exec(ctx, `
		UPDATE jobs
		SET title = $2,
			stage = $3,
			progress = $4,
			error = $5,
			slide_count = $6,
			options = $7,
			artifacts = $8,
			updated_at = $9
		WHERE id = $1
	`, job.ID, job.Title, string(job.Stage), job.Progress, cols.errJSON, job.SlideCount,
		cols.optionsJSON, cols.artifactsJSON, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pipeline.ErrNotFound
	}
	return nil
}

func (p *Postgres) AppendEvent(ctx context.Context, id string, ev pipeline.JobEvent) error {
	tag, err := p.pool.Exec(ctx, `
		INSERT INTO job_events (job_id, at, stage, kind, detail)
		SELECT $1, $2, $3, $4, $5
		WHERE EXISTS (SELECT 1 FROM jobs WHERE id = $1)
	`, id, ev.Time, string(ev.Stage), string(ev.Kind), ev.Detail)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pipeline.ErrNotFound
	}
	return nil
}

func (p *Postgres) RequestCancel(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx, `UPDATE jobs SET cancel_requested = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("request cancel: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pipeline.ErrNotFound
	}
	return nil
}

func (p *Postgres) CancelRequested(ctx context.Context, id string) (bool, error) {
	var requested bool
	err := p.pool.QueryRow(ctx, `SELECT cancel_requested FROM jobs WHERE id = $1`, id).Scan(&requested)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, pipeline.ErrNotFound
		}
		return false, fmt.Errorf("query cancel flag: %w", err)
	}
	return requested, nil
}

// Cleanup deletes finished jobs not updated within the TTL; their events go with them.
func (p *Postgres) Cleanup() {
	if p.ttl <= 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	p.pool.Exec(ctx, `
		DELETE FROM jobs
		WHERE stage IN ($1, $2, $3) AND updated_at < $4
	`, string(pipeline.StageCompleted), string(pipeline.StageFailed), string(pipeline.StageCancelled),
		time.Now().Add(-p.ttl))
}
