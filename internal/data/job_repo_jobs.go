package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/tailorhq/resume-tailor-api/internal/core"
	"github.com/tailorhq/resume-tailor-api/internal/data/pgxutil"
	"github.com/tailorhq/resume-tailor-api/internal/domain/model"
	apperrors "github.com/tailorhq/resume-tailor-api/internal/errors"
)

// insertJobParams groups parameters for inserting a job within a transaction.
type insertJobParams struct {
	Req         *model.CreateJobRequest
	Meta        []byte
	MaxAttempts int
}

const defaultRetryBaseDelay = 10 * time.Second

func (r *JobRepo) retryBaseDelaySeconds() float64 {
	if r.cfg.RetryBaseDelay > 0 {
		return r.cfg.RetryBaseDelay.Seconds()
	}
	return defaultRetryBaseDelay.Seconds()
}

// SQL used by ReserveNext to atomically reserve the next job. Reservation
// counts the delivery attempt up front and resets per-attempt progress so a
// retried job reports progress from zero again.
const reserveNextUpdateSQL = `
  WITH cte AS (
    SELECT id FROM jobs
    WHERE queue_name = $1 AND status IN ('queued', 'retrying') AND scheduled_at <= $2
    ORDER BY ` + priorityWeightSQL + ` DESC, scheduled_at ASC, created_at ASC
    LIMIT 1
    FOR UPDATE SKIP LOCKED
  )
  UPDATE jobs j
  SET
    status = 'processing',
    attempts = j.attempts + 1,
    started_at = COALESCE(j.started_at, $3),
    progress_percent = 0,
    current_stage = NULL,
    lease_expires_at = $4,
    updated_at = $5
  FROM cte
  WHERE j.id = cte.id
  RETURNING j.id, j.queue_name, j.job_type, j.correlation_id, j.entity_name, j.entity_id, j.user_id, j.status, j.priority, j.attempts, j.max_attempts, j.progress_percent, j.current_stage, j.payload, j.result, j.metadata, j.error_details, j.queued_at, j.scheduled_at, j.started_at, j.completed_at, j.duration_ms, j.lease_expires_at, j.created_at, j.updated_at`

// Create creates a new job record and notifies queue subscribers.
func (r *JobRepo) Create(
	ctx context.Context,
	req *model.CreateJobRequest,
) (*model.Job, error) {
	if req == nil {
		return nil, errors.New("create job request is required")
	}

	req.Normalize()
	if validateErr := req.Validate(); validateErr != nil {
		return nil, validateErr
	}

	meta, maxAttempts, err := r.prepareJobData(req)
	if err != nil {
		return nil, err
	}

	p := &insertJobParams{
		Req:         req,
		Meta:        meta,
		MaxAttempts: maxAttempts,
	}

	var job *model.Job
	if txErr := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Fn: func(tx pgx.Tx) error {
			var insertErr error
			job, insertErr = r.insertJobInTx(ctx, tx, p)
			return insertErr
		},
	}); txErr != nil {
		return nil, apperrors.MapDBError(txErr)
	}

	return job, nil
}

// prepareJobData prepares the metadata and maxAttempts for job creation.
func (r *JobRepo) prepareJobData(req *model.CreateJobRequest) ([]byte, int, error) {
	if req == nil {
		return nil, 0, errors.New("create job request is required")
	}

	meta := []byte(`{}`)
	if req.Metadata != nil {
		if !json.Valid(req.Metadata) {
			return nil, 0, errors.New("metadata must be valid JSON")
		}
		meta = req.Metadata
	}

	maxAttempts := r.cfg.DefaultMaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if req.MaxAttempts > 0 {
		maxAttempts = req.MaxAttempts
	}

	return meta, maxAttempts, nil
}

// insertJobInTx inserts a job within a pgx.Tx and returns the created job.
func (r *JobRepo) insertJobInTx(ctx context.Context, tx pgx.Tx, params *insertJobParams) (*model.Job, error) {
	if params == nil || params.Req == nil {
		return nil, errors.New("insert job params are required")
	}

	query, args := r.buildInsertQuery(params)

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	job, collectErr := collectJobFromRows(rows)
	rows.Close()
	if collectErr != nil {
		return nil, fmt.Errorf("collect job: %w", collectErr)
	}

	channel := "job_added_" + params.Req.QueueName
	if _, execErr := tx.Exec(ctx, `SELECT pg_notify($1::text, $2::text)`, channel, job.ID); execErr != nil {
		return nil, fmt.Errorf("send job notification: %w", execErr)
	}

	return job, nil
}

// buildInsertQuery builds an INSERT statement for a job based on the provided parameters.
func (r *JobRepo) buildInsertQuery(p *insertJobParams) (string, []any) {
	if p == nil || p.Req == nil {
		return "", nil
	}

	query := `
      INSERT INTO jobs(queue_name, job_type, correlation_id, entity_name, entity_id, user_id, status, priority, payload, metadata, queued_at, scheduled_at, max_attempts)
      VALUES ($1,$2,$3,$4,$5,$6,'queued',$7,$8,$9,$10,$10,$11)
      RETURNING ` + jobColumns

	correlationID := p.Req.CorrelationID
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	now := r.timeProvider.Now().UTC()

	args := []any{
		p.Req.QueueName,
		p.Req.JobType,
		correlationID,
		p.Req.EntityName,
		p.Req.EntityID,
		p.Req.UserID,
		p.Req.Priority,
		[]byte(p.Req.Payload),
		p.Meta,
		now,
		p.MaxAttempts,
	}
	return query, args
}

// collectJobFromRows collects a single job from pgx rows.
func collectJobFromRows(rows pgx.Rows) (*model.Job, error) {
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, pgx.ErrNoRows
	}

	job, err := scanJobFromRow(rows)
	if err != nil {
		return nil, err
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, rowsErr
	}

	return job, nil
}

type jobRowScanner interface {
	Scan(dest ...any) error
}

type jobRowData struct {
	payload, result, metadata                      []byte
	entityName, entityID, userID                   sql.NullString
	currentStage, errorDetails                     sql.NullString
	startedAt, completedAt, leaseExpiresAt         sql.NullTime
	durationMs                                     sql.NullInt64
}

func (d *jobRowData) scanInto(scanner jobRowScanner, job *model.Job) error {
	return scanner.Scan(
		&job.ID,
		&job.QueueName,
		&job.JobType,
		&job.CorrelationID,
		&d.entityName,
		&d.entityID,
		&d.userID,
		&job.Status,
		&job.Priority,
		&job.Attempts,
		&job.MaxAttempts,
		&job.Progress,
		&d.currentStage,
		&d.payload,
		&d.result,
		&d.metadata,
		&d.errorDetails,
		&job.QueuedAt,
		&job.ScheduledAt,
		&d.startedAt,
		&d.completedAt,
		&d.durationMs,
		&d.leaseExpiresAt,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
}

func (d *jobRowData) apply(job *model.Job) {
	job.Payload = cloneJSON(d.payload)
	job.Result = cloneNullableJSON(d.result)
	job.Metadata = cloneJSON(d.metadata)
	job.EntityName = cloneNullableString(d.entityName)
	job.EntityID = cloneNullableString(d.entityID)
	job.UserID = cloneNullableString(d.userID)
	job.CurrentStage = cloneNullableString(d.currentStage)
	job.ErrorDetails = cloneNullableString(d.errorDetails)
	job.StartedAt = cloneNullableTime(d.startedAt)
	job.CompletedAt = cloneNullableTime(d.completedAt)
	job.LeaseExpires = cloneNullableTime(d.leaseExpiresAt)
	if d.durationMs.Valid {
		v := d.durationMs.Int64
		job.DurationMs = &v
	}
}

func scanJobFromRow(scanner jobRowScanner) (*model.Job, error) {
	job := &model.Job{}
	var data jobRowData
	if err := data.scanInto(scanner, job); err != nil {
		return nil, err
	}

	data.apply(job)
	return job, nil
}

func cloneJSON(raw []byte) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage(`{}`)
	}
	return append(json.RawMessage(nil), raw...)
}

func cloneNullableJSON(raw []byte) json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	return append(json.RawMessage(nil), raw...)
}

func cloneNullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func cloneNullableTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

// Advisory lock namespace for requeueExpired to avoid cross-queue contention.
const advisoryLockRequeueMajor int64 = 1001

func advisoryLockRequeueMinor(queueName string) int64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(queueName))
	hashValue := h.Sum32()
	maxInt32 := uint32(math.MaxInt32)
	if hashValue > maxInt32 {
		hashValue &= maxInt32
	}
	return int64(hashValue)
}

// RequeueExpired returns expired leases on the given queue to the queue, or
// fails them permanently when no attempts remain. Returns the number of rows
// touched.
func (r *JobRepo) RequeueExpired(ctx context.Context, queueName string) (int, error) {
	var rowsAffected int64
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			var locked bool
			minorKey := advisoryLockRequeueMinor(queueName)
			if err := tx.QueryRowContext(ctx, "SELECT pg_try_advisory_xact_lock($1::integer, $2::integer)", advisoryLockRequeueMajor, minorKey).Scan(&locked); err != nil {
				return fmt.Errorf("acquire advisory lock: %w", err)
			}
			if !locked {
				rowsAffected = 0
				return nil
			}

			currentTime := r.timeProvider.Now().UTC()
			res, err := tx.ExecContext(ctx, `
          UPDATE jobs
          SET status = CASE WHEN attempts >= max_attempts THEN 'failed' ELSE 'queued' END,
              error_details = CASE WHEN attempts >= max_attempts
                                   THEN 'worker lease expired with no attempts remaining'
                                   ELSE error_details END,
              completed_at = CASE WHEN attempts >= max_attempts THEN $2::timestamptz ELSE NULL END,
              scheduled_at = CASE WHEN attempts >= max_attempts THEN scheduled_at ELSE $2::timestamptz END,
              lease_expires_at = NULL,
              updated_at = $2
          WHERE queue_name = $1 AND status = 'processing'
            AND lease_expires_at IS NOT NULL
            AND lease_expires_at < $2
        `, queueName, currentTime)
			if err != nil {
				return fmt.Errorf("requeue expired: %w", err)
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

// ReserveNext reserves the next available job on the given queue for processing.
func (r *JobRepo) ReserveNext(
	ctx context.Context,
	queueName string,
	leaseSeconds int,
) (*model.Job, error) {
	if queueName == "" {
		return nil, errors.New("queue name is required")
	}

	if _, err := r.RequeueExpired(ctx, queueName); err != nil {
		return nil, fmt.Errorf("requeue expired jobs: %w", err)
	}

	var job *model.Job
	err := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Opts: &sql.TxOptions{
			Isolation: sql.LevelReadCommitted,
			ReadOnly:  false,
		},
		Fn: func(tx pgx.Tx) error {
			currentTime := r.timeProvider.Now()
			leaseExpiresAt := currentTime.Add(time.Duration(leaseSeconds) * time.Second)

			rows, qerr := tx.Query(
				ctx,
				reserveNextUpdateSQL,
				queueName,
				currentTime.UTC(),
				currentTime.UTC(),
				leaseExpiresAt.UTC(),
				currentTime.UTC(),
			)
			if qerr != nil {
				return fmt.Errorf("reserve job: %w", qerr)
			}
			defer rows.Close()

			j, cerr := collectJobFromRows(rows)
			if errors.Is(cerr, pgx.ErrNoRows) {
				return model.ErrNoJobsAvailable
			}
			if cerr != nil {
				return fmt.Errorf("reserve job: %w", cerr)
			}
			job = j
			return nil
		},
	})
	if err != nil {
		if errors.Is(err, model.ErrNoJobsAvailable) {
			return nil, model.ErrNoJobsAvailable
		}
		return nil, err
	}
	return job, nil
}

// Heartbeat refreshes the lease on a processing job.
func (r *JobRepo) Heartbeat(ctx context.Context, jobID string, leaseSeconds int) (bool, error) {
	if leaseSeconds <= 0 {
		return false, errors.New("leaseSeconds must be positive")
	}

	currentTime := r.timeProvider.Now().UTC()
	leaseExpiration := currentTime.Add(time.Duration(leaseSeconds) * time.Second)

	query := `
		UPDATE jobs
		SET lease_expires_at = $2,
		    updated_at = $3
		WHERE id = $1 AND status = 'processing'
	`

	res, err := r.DB.ExecContext(ctx, query, jobID, leaseExpiration, currentTime)
	if err != nil {
		return false, fmt.Errorf("heartbeat job: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("heartbeat rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// Complete marks a job as completed successfully, recording the result
// summary and total processing duration.
func (r *JobRepo) Complete(ctx context.Context, id string, params model.CompleteJobParams) (bool, error) {
	currentTime := r.timeProvider.Now().UTC()

	result := []byte(params.Result)
	if len(result) == 0 {
		result = []byte(`{}`)
	}

	query := `
		UPDATE jobs
		SET status = 'completed',
		    result = $2,
		    duration_ms = $3,
		    progress_percent = 100,
		    current_stage = NULL,
		    completed_at = $4,
		    updated_at = $4,
		    lease_expires_at = NULL,
		    error_details = NULL
		WHERE id = $1 AND status = 'processing'
	`

	res, err := r.DB.ExecContext(ctx, query, id, result, params.DurationMs, currentTime)
	if err != nil {
		return false, fmt.Errorf("complete job: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("complete rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// Fail records a failed attempt. Jobs with attempts remaining move to
// 'retrying' with an exponentially backed-off scheduled_at; jobs out of
// attempts, or failures marked terminal, move to 'failed'.
func (r *JobRepo) Fail(ctx context.Context, id string, params model.FailJobParams) (bool, error) {
	currentTime := r.timeProvider.Now().UTC()

	query := `
      UPDATE jobs
      SET
        error_details = $2,
        duration_ms = $3,
        status = CASE WHEN $4 OR attempts >= max_attempts THEN 'failed' ELSE 'retrying' END,
        completed_at = CASE WHEN $4 OR attempts >= max_attempts THEN $5::timestamptz ELSE NULL END,
        lease_expires_at = NULL,
        scheduled_at = CASE WHEN $4 OR attempts >= max_attempts THEN scheduled_at
                            ELSE $5::timestamptz + make_interval(secs => $6 * power(2, attempts - 1)) END,
        updated_at = $5
      WHERE id = $1 AND status = 'processing'
      RETURNING status
    `

	var status string
	err := r.DB.QueryRowContext(
		ctx,
		query,
		id,
		params.ErrorDetails,
		params.DurationMs,
		params.Terminal,
		currentTime,
		r.retryBaseDelaySeconds(),
	).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("fail job: %w", err)
	}

	if r.logger != nil {
		r.logger.DebugContext(ctx, "job attempt failed",
			"job_id", id,
			"next_status", status,
		)
	}

	return true, nil
}

// UpdateProgress advances the progress of a processing job. Progress never
// moves backwards within an attempt; stale writes from slower stages are
// absorbed by the GREATEST guard.
func (r *JobRepo) UpdateProgress(ctx context.Context, params core.UpdateProgressParams) (bool, error) {
	if params.Progress < 0 || params.Progress > 100 {
		return false, fmt.Errorf("progress out of range: %d", params.Progress)
	}

	currentTime := r.timeProvider.Now().UTC()

	query := `
		UPDATE jobs
		SET progress_percent = GREATEST(progress_percent, $2),
		    current_stage = $3,
		    updated_at = $4
		WHERE id = $1 AND status = 'processing'
	`

	res, err := r.DB.ExecContext(ctx, query, params.JobID, params.Progress, params.Stage, currentTime)
	if err != nil {
		return false, fmt.Errorf("update progress: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("progress rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// Stats returns per-queue, per-status counts with the average processing
// duration of completed jobs in each bucket.
func (r *JobRepo) Stats(ctx context.Context, filter model.StatsFilter) ([]*model.QueueStats, error) {
	query := `
  SELECT
    queue_name,
    status,
    count(*) AS count,
    COALESCE(avg(duration_ms) FILTER (WHERE duration_ms IS NOT NULL), 0) AS avg_duration_ms
  FROM jobs
  WHERE ($1 = '' OR queue_name = $1)
    AND ($2 = '' OR job_type = $2)
  GROUP BY queue_name, status
  ORDER BY queue_name, status
  `

	rows, err := r.DB.QueryContext(ctx, query, filter.QueueName, filter.JobType)
	if err != nil {
		return nil, fmt.Errorf("get queue stats: %w", err)
	}
	defer rows.Close()

	var stats []*model.QueueStats
	for rows.Next() {
		var s model.QueueStats
		if scanErr := rows.Scan(&s.QueueName, &s.Status, &s.Count, &s.AvgDurationMs); scanErr != nil {
			return nil, fmt.Errorf("scan queue stats: %w", scanErr)
		}
		stats = append(stats, &s)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("iterate queue stats: %w", rowsErr)
	}

	return stats, nil
}

// WaitForNotification waits for a PostgreSQL notification indicating new jobs are available.
func (r *JobRepo) WaitForNotification(ctx context.Context, queueName string) error {
	conn, err := r.DB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("get conn from pool: %w", err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			_ = cerr
		}
	}()

	channel := "job_added_" + queueName
	quoted := pgx.Identifier{channel}.Sanitize()

	if _, execErr := conn.ExecContext(ctx, "LISTEN "+quoted); execErr != nil {
		return fmt.Errorf("listen %s: %w", channel, execErr)
	}
	defer func() {
		if _, execErr := conn.ExecContext(context.Background(), "UNLISTEN "+quoted); execErr != nil {
			_ = execErr
		}
	}()

	return conn.Raw(func(dc any) error {
		sc, ok := dc.(*stdlib.Conn)
		if !ok {
			return errors.New("unexpected driver connection type; expected *stdlib.Conn")
		}
		_, notifyErr := sc.Conn().WaitForNotification(ctx)
		return notifyErr
	})
}

// GetByID retrieves a job by its ID.
func (r *JobRepo) GetByID(ctx context.Context, id string) (*model.Job, error) {
	var job *model.Job
	err := pgxutil.WithPgxConn(ctx, r.DB, func(pgxConn *pgx.Conn) error {
		rows, err := pgxConn.Query(ctx, `
			SELECT `+jobColumns+`
			FROM jobs
			WHERE id = $1
		`, id)
		if err != nil {
			return err
		}
		defer rows.Close()
		job, err = collectJobFromRows(rows)
		return err
	})

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// Delete safely deletes a job by ID with state machine safety checks.
// Processing jobs with a live lease cannot be deleted.
func (r *JobRepo) Delete(ctx context.Context, id string) error {
	currentTime := r.timeProvider.Now()
	res, err := r.DB.ExecContext(ctx, `
		DELETE FROM jobs
		WHERE id = $1
		  AND status IN ('queued', 'retrying', 'completed', 'failed')
		  AND (lease_expires_at IS NULL OR lease_expires_at <= $2)
	`, id, currentTime.UTC())
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected > 0 {
		return nil
	}

	job, err := r.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrJobNotFound) {
			return ErrJobNotFound
		}
		return fmt.Errorf("re-check job after delete attempt: %w", err)
	}

	if !isJobStatusDeletable(job.Status) {
		return ErrJobNotDeletable
	}

	if job.LeaseExpires != nil && currentTime.Before(*job.LeaseExpires) {
		return ErrJobReserved
	}

	return errors.New("unexpected state: job is in deletable state but delete failed")
}

// isJobStatusDeletable returns true if a job in the given status can be safely deleted.
func isJobStatusDeletable(status model.JobStatus) bool {
	return status == model.JobStatusQueued ||
		status == model.JobStatusRetrying ||
		status == model.JobStatusCompleted ||
		status == model.JobStatusFailed
}
