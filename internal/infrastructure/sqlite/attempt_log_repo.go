package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/slotshift/slotshift/internal/domain"
)

// AttemptLogRepo implements [domain.AttemptLog] backed by SQLite.
type AttemptLogRepo struct {
	DB *sql.DB
}

func (r *AttemptLogRepo) Append(ctx context.Context, rec domain.AttemptRecord) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO attempt_log (id, source_slot, target_slot, release_id, outcome, error, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, string(rec.Source), string(rec.Target), string(rec.ReleaseID),
		string(rec.Outcome), rec.Error,
		rec.StartedAt.UTC().Format(time.RFC3339Nano),
		rec.FinishedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("attempt %q: %w", rec.ID, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("insert attempt record: %w", err)
	}
	return nil
}

func (r *AttemptLogRepo) Recent(ctx context.Context, limit int) ([]domain.AttemptRecord, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, source_slot, target_slot, release_id, outcome, error, started_at, finished_at
		 FROM attempt_log ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list attempt records: %w", err)
	}
	defer rows.Close()

	var records []domain.AttemptRecord
	for rows.Next() {
		rec, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *AttemptLogRepo) Trim(ctx context.Context, keep int) (int, error) {
	res, err := r.DB.ExecContext(ctx,
		`DELETE FROM attempt_log WHERE id NOT IN (
		   SELECT id FROM attempt_log ORDER BY started_at DESC, id DESC LIMIT ?
		 )`, keep)
	if err != nil {
		return 0, fmt.Errorf("trim attempt log: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("trim attempt log: %w", err)
	}
	return int(n), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAttempt(s scanner) (domain.AttemptRecord, error) {
	var rec domain.AttemptRecord
	var source, target, releaseID, outcome, startedAt, finishedAt string
	if err := s.Scan(&rec.ID, &source, &target, &releaseID, &outcome, &rec.Error, &startedAt, &finishedAt); err != nil {
		return rec, fmt.Errorf("scan attempt record: %w", err)
	}
	rec.Source = domain.Slot(source)
	rec.Target = domain.Slot(target)
	rec.ReleaseID = domain.ReleaseID(releaseID)
	rec.Outcome = domain.Outcome(outcome)

	var err error
	if rec.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
		return rec, fmt.Errorf("parse started_at: %w", err)
	}
	if rec.FinishedAt, err = time.Parse(time.RFC3339Nano, finishedAt); err != nil {
		return rec, fmt.Errorf("parse finished_at: %w", err)
	}
	return rec, nil
}
