package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/tailorhq/resume-tailor-api/internal/core"
	"github.com/tailorhq/resume-tailor-api/internal/data/pgxutil"
	"github.com/tailorhq/resume-tailor-api/internal/domain/model"
	apperrors "github.com/tailorhq/resume-tailor-api/internal/errors"
)

const defaultResultTTL = 24 * time.Hour

// ResultRepo provides persistence for generation results.
type ResultRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// ResultRepoConfig holds configuration options for the result repository.
type ResultRepoConfig struct {
	TimeProvider TimeProvider
}

// NewResultRepo constructs a ResultRepo.
func NewResultRepo(db *sql.DB, cfg ResultRepoConfig) *ResultRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	return &ResultRepo{DB: db, timeProvider: tp}
}

// Save stores a generation result for a job. A re-run of the same job
// replaces the previous result.
func (r *ResultRepo) Save(ctx context.Context, req *model.SaveResultRequest) (*model.GenerationResult, error) {
	if req == nil {
		return nil, errors.New("save result request is required")
	}
	if req.JobID == "" {
		return nil, ErrJobIDRequired
	}

	metrics, err := json.Marshal(req.Metrics)
	if err != nil {
		return nil, fmt.Errorf("marshal metrics: %w", err)
	}

	ttl := req.TTL
	if ttl <= 0 {
		ttl = defaultResultTTL
	}
	now := r.timeProvider.Now().UTC()
	expiresAt := now.Add(ttl)

	const query = `
		INSERT INTO generation_results (job_id, user_id, document, blob_ref, metrics, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (job_id)
		DO UPDATE SET
			user_id = EXCLUDED.user_id,
			document = EXCLUDED.document,
			blob_ref = EXCLUDED.blob_ref,
			metrics = EXCLUDED.metrics,
			expires_at = EXCLUDED.expires_at,
			created_at = EXCLUDED.created_at
		RETURNING id`

	var id string
	if err := r.DB.QueryRowContext(ctx, query, req.JobID, req.UserID, req.Document, req.BlobRef, metrics, expiresAt, now).Scan(&id); err != nil {
		return nil, fmt.Errorf("save generation result: %w", apperrors.MapDBError(err))
	}

	return &model.GenerationResult{
		ID:        id,
		JobID:     req.JobID,
		UserID:    req.UserID,
		Document:  req.Document,
		BlobRef:   req.BlobRef,
		Metrics:   req.Metrics,
		ExpiresAt: expiresAt,
		CreatedAt: now,
	}, nil
}

// GetByJobID retrieves a non-expired generation result for a job.
func (r *ResultRepo) GetByJobID(ctx context.Context, jobID string) (*model.GenerationResult, error) {
	if jobID == "" {
		return nil, ErrJobIDRequired
	}

	const query = `
		SELECT id, job_id, user_id, document, blob_ref, metrics, expires_at, created_at
		FROM generation_results
		WHERE job_id = $1 AND expires_at > $2`

	var res *model.GenerationResult
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, jobID, r.timeProvider.Now().UTC())
		if err != nil {
			return err
		}
		defer rows.Close()

		if !rows.Next() {
			if rowsErr := rows.Err(); rowsErr != nil {
				return rowsErr
			}
			return pgx.ErrNoRows
		}

		var (
			out        model.GenerationResult
			userID     *string
			blobRef    *string
			rawMetrics []byte
		)
		if scanErr := rows.Scan(&out.ID, &out.JobID, &userID, &out.Document, &blobRef, &rawMetrics, &out.ExpiresAt, &out.CreatedAt); scanErr != nil {
			return scanErr
		}
		out.UserID = userID
		out.BlobRef = blobRef
		if len(rawMetrics) > 0 {
			if umErr := json.Unmarshal(rawMetrics, &out.Metrics); umErr != nil {
				return fmt.Errorf("unmarshal metrics: %w", umErr)
			}
		}
		res = &out
		return rows.Err()
	})

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrResultNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get generation result: %w", err)
	}
	return res, nil
}

// Delete removes a generation result by ID.
func (r *ResultRepo) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM generation_results WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete generation result: %w", err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

var _ core.ResultRepository = (*ResultRepo)(nil)
