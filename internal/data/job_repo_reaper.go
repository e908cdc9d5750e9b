package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/tailorhq/resume-tailor-api/internal/core"
	"github.com/tailorhq/resume-tailor-api/internal/data/pgxutil"
)

// Advisory lock namespace for reaper operations.
// Using two-arg pg_try_advisory_xact_lock(major, minor) for proper namespacing.
// Major key 1000 is reserved for reaper operations.
const (
	advisoryLockReaperMajor         = 1000
	advisoryLockReaperDeleteJobs    = 1 // minor key for DeleteTerminalJobsOlderThan
	advisoryLockReaperDeleteResults = 2 // minor key for DeleteExpiredResults
)

// DeleteTerminalJobsOlderThan deletes completed/failed jobs older than the
// cutoff. Processes up to BatchSize rows per call to prevent long locks and
// I/O spikes. Uses advisory locks so concurrent reaper instances do not
// conflict. Returns the number of jobs deleted.
func (r *JobRepo) DeleteTerminalJobsOlderThan(ctx context.Context, params core.DeleteAgedParams) (int, error) {
	if params.Status != "" && !params.Status.Terminal() {
		return 0, fmt.Errorf("status is not terminal: %s", params.Status)
	}
	if params.BatchSize <= 0 {
		return 0, errors.New("batch size must be greater than zero")
	}

	var rowsAffected int64
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			var locked bool
			if err := tx.QueryRowContext(ctx, "SELECT pg_try_advisory_xact_lock($1, $2)", advisoryLockReaperMajor, advisoryLockReaperDeleteJobs).Scan(&locked); err != nil {
				return fmt.Errorf("acquire advisory lock: %w", err)
			}
			if !locked {
				rowsAffected = 0
				return nil
			}

			status := string(params.Status)
			res, err := tx.ExecContext(ctx, `
				DELETE FROM jobs
				WHERE id IN (
					SELECT id FROM jobs
					WHERE ($1 = '' AND status IN ('completed', 'failed') OR status = $1)
					  AND (completed_at < $2 OR (completed_at IS NULL AND updated_at < $2))
					ORDER BY COALESCE(completed_at, updated_at)
					LIMIT $3
				)
			`, status, params.Cutoff.UTC(), params.BatchSize)
			if err != nil {
				return fmt.Errorf("delete terminal jobs: %w", err)
			}

			ra, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			rowsAffected = ra
			return nil
		},
	})
	if err != nil {
		return 0, err
	}
	return int(rowsAffected), nil
}

// DeleteExpiredResults deletes generation results whose expiry is past the
// cutoff. Processes up to BatchSize rows per call. Uses advisory locks so
// concurrent reaper instances do not conflict.
func (r *JobRepo) DeleteExpiredResults(ctx context.Context, params core.DeleteAgedParams) (int, error) {
	if params.BatchSize <= 0 {
		return 0, errors.New("batch size must be greater than zero")
	}

	var rowsAffected int64
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			var locked bool
			if err := tx.QueryRowContext(ctx, "SELECT pg_try_advisory_xact_lock($1, $2)", advisoryLockReaperMajor, advisoryLockReaperDeleteResults).Scan(&locked); err != nil {
				return fmt.Errorf("acquire advisory lock: %w", err)
			}
			if !locked {
				rowsAffected = 0
				return nil
			}

			res, err := tx.ExecContext(ctx, `
				DELETE FROM generation_results
				USING (
					SELECT ctid
					FROM generation_results
					WHERE expires_at < $1
					ORDER BY expires_at
					LIMIT $2
				) sub
				WHERE generation_results.ctid = sub.ctid
			`, params.Cutoff.UTC(), params.BatchSize)
			if err != nil {
				return fmt.Errorf("delete expired results: %w", err)
			}

			ra, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			rowsAffected = ra
			return nil
		},
	})
	if err != nil {
		return 0, err
	}
	return int(rowsAffected), nil
}

// compile-time interface checks
var (
	_ core.JobRepository    = (*JobRepo)(nil)
	_ core.ReaperRepository = (*JobRepo)(nil)
)
