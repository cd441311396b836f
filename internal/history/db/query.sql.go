// source: query.sql

package db

import (
	"context"
)

const insertJobRun = `-- name: InsertJobRun :exec
insert into job_run(run_id, job, status, duration_ms, attempts, note, recorded_at)
values (?, ?, ?, ?, ?, ?, ?)
`

type InsertJobRunParams struct {
	RunID      string
	Job        string
	Status     string
	DurationMs int64
	Attempts   int64
	Note       string
	RecordedAt int64
}

func (q *Queries) InsertJobRun(ctx context.Context, arg InsertJobRunParams) error {
	_, err := q.db.ExecContext(ctx, insertJobRun,
		arg.RunID,
		arg.Job,
		arg.Status,
		arg.DurationMs,
		arg.Attempts,
		arg.Note,
		arg.RecordedAt,
	)
	return err
}

const lastBatchRun = `-- name: LastBatchRun :one
select run_id, status, passed, total, duration_ms, pid, started_at, finished_at from batch_run
order by finished_at desc
limit 1
`

func (q *Queries) LastBatchRun(ctx context.Context) (BatchRun, error) {
	row := q.db.QueryRowContext(ctx, lastBatchRun)
	var i BatchRun
	err := row.Scan(
		&i.RunID,
		&i.Status,
		&i.Passed,
		&i.Total,
		&i.DurationMs,
		&i.Pid,
		&i.StartedAt,
		&i.FinishedAt,
	)
	return i, err
}

const recentBatchRuns = `-- name: RecentBatchRuns :many
select run_id, status, passed, total, duration_ms, pid, started_at, finished_at from batch_run
order by finished_at desc
limit ?
`

func (q *Queries) RecentBatchRuns(ctx context.Context, limit int64) ([]BatchRun, error) {
	rows, err := q.db.QueryContext(ctx, recentBatchRuns, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []BatchRun
	for rows.Next() {
		var i BatchRun
		if err := rows.Scan(
			&i.RunID,
			&i.Status,
			&i.Passed,
			&i.Total,
			&i.DurationMs,
			&i.Pid,
			&i.StartedAt,
			&i.FinishedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const recentJobRuns = `-- name: RecentJobRuns :many
select id, run_id, job, status, duration_ms, attempts, note, recorded_at from job_run
order by recorded_at desc, id desc
limit ?
`

func (q *Queries) RecentJobRuns(ctx context.Context, limit int64) ([]JobRun, error) {
	rows, err := q.db.QueryContext(ctx, recentJobRuns, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []JobRun
	for rows.Next() {
		var i JobRun
		if err := rows.Scan(
			&i.ID,
			&i.RunID,
			&i.Job,
			&i.Status,
			&i.DurationMs,
			&i.Attempts,
			&i.Note,
			&i.RecordedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const upsertBatchRun = `-- name: UpsertBatchRun :exec
insert or replace into batch_run(run_id, status, passed, total, duration_ms, pid, started_at, finished_at)
values (?, ?, ?, ?, ?, ?, ?, ?)
`

type UpsertBatchRunParams struct {
	RunID      string
	Status     string
	Passed     int64
	Total      int64
	DurationMs int64
	Pid        int64
	StartedAt  int64
	FinishedAt int64
}

func (q *Queries) UpsertBatchRun(ctx context.Context, arg UpsertBatchRunParams) error {
	_, err := q.db.ExecContext(ctx, upsertBatchRun,
		arg.RunID,
		arg.Status,
		arg.Passed,
		arg.Total,
		arg.DurationMs,
		arg.Pid,
		arg.StartedAt,
		arg.FinishedAt,
	)
	return err
}
