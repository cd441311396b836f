package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"nrega-scraper/internal/history/db"
	"nrega-scraper/internal/model"
)

// Entry is a stored RunRecord.
type Entry struct {
	RunID    string
	Record   model.RunRecord
	Attempts int
}

// Batch is a stored RunSummary.
type Batch struct {
	RunID      string
	Status     model.BatchStatus
	Passed     int
	Total      int
	Duration   time.Duration
	PID        int
	StartedAt  time.Time
	FinishedAt time.Time
}

// Store mirrors the ledger into a sql database.
type Store struct {
	db  *sql.DB
	qry *db.Queries
	pid int
}

// Open opens the database described by cfg and applies the schema.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	database, err := cfg.OpenDB()
	if err != nil {
		return nil, err
	}
	store, err := New(ctx, database)
	if err != nil {
		database.Close()
		return nil, err
	}
	return store, nil
}

// New applies the schema to an already opened database.
func New(ctx context.Context, database *sql.DB) (*Store, error) {
	// the remote driver executes one statement per call
	for _, stmt := range strings.Split(db.Schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		_, err := database.ExecContext(ctx, stmt)
		if err != nil && !strings.Contains(err.Error(), "already exists") {
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}
	return &Store{db: database, qry: db.New(database), pid: os.Getpid()}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) RecordJob(ctx context.Context, runID string, record model.RunRecord, attempts int) error {
	return s.qry.InsertJobRun(ctx, db.InsertJobRunParams{
		RunID:      runID,
		Job:        record.JobName,
		Status:     string(record.Status),
		DurationMs: record.Duration.Milliseconds(),
		Attempts:   int64(attempts),
		Note:       record.Note,
		RecordedAt: record.Timestamp.UnixMilli(),
	})
}

func (s *Store) RecordSummary(ctx context.Context, summary model.RunSummary) error {
	return s.qry.UpsertBatchRun(ctx, db.UpsertBatchRunParams{
		RunID:      summary.RunID,
		Status:     string(summary.Status()),
		Passed:     int64(summary.Passed),
		Total:      int64(summary.Total),
		DurationMs: summary.TotalDuration.Milliseconds(),
		Pid:        int64(s.pid),
		StartedAt:  summary.StartedAt.UnixMilli(),
		FinishedAt: summary.FinishedAt.UnixMilli(),
	})
}

// Recent returns up to limit job rows, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := s.qry.RecentJobRuns(ctx, int64(limit))
	if err != nil {
		return nil, err
	}
	out := make([]Entry, len(rows))
	for i, row := range rows {
		out[i] = Entry{
			RunID:    row.RunID,
			Attempts: int(row.Attempts),
			Record: model.RunRecord{
				Timestamp: time.UnixMilli(row.RecordedAt).UTC(),
				JobName:   row.Job,
				Status:    model.RecordStatus(row.Status),
				Duration:  time.Duration(row.DurationMs) * time.Millisecond,
				Note:      row.Note,
			},
		}
	}
	return out, nil
}

// Batches returns up to limit run summaries, newest first.
func (s *Store) Batches(ctx context.Context, limit int) ([]Batch, error) {
	rows, err := s.qry.RecentBatchRuns(ctx, int64(limit))
	if err != nil {
		return nil, err
	}
	out := make([]Batch, len(rows))
	for i, row := range rows {
		out[i] = batchFromRow(row)
	}
	return out, nil
}

// Last returns the most recent run summary, ok is false when nothing was
// recorded yet.
func (s *Store) Last(ctx context.Context) (batch Batch, ok bool, err error) {
	row, err := s.qry.LastBatchRun(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return Batch{}, false, nil
	}
	if err != nil {
		return Batch{}, false, err
	}
	return batchFromRow(row), true, nil
}

func batchFromRow(row db.BatchRun) Batch {
	return Batch{
		RunID:      row.RunID,
		Status:     model.BatchStatus(row.Status),
		Passed:     int(row.Passed),
		Total:      int(row.Total),
		Duration:   time.Duration(row.DurationMs) * time.Millisecond,
		PID:        int(row.Pid),
		StartedAt:  time.UnixMilli(row.StartedAt).UTC(),
		FinishedAt: time.UnixMilli(row.FinishedAt).UTC(),
	}
}
