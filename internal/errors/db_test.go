package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestMapDBError_NilError(t *testing.T) {
	err := MapDBError(nil)
	if err != nil {
		t.Errorf("MapDBError(nil) = %v, want nil", err)
	}
}

func TestMapDBError_ContextErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want func(error) bool
		code ErrorCode
	}{
		{
			name: "deadline exceeded",
			err:  context.DeadlineExceeded,
			want: IsTimeout,
			code: ErrCodeTimeout,
		},
		{
			name: "canceled",
			err:  context.Canceled,
			want: IsCanceled,
			code: ErrCodeCanceled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := MapDBError(tt.err)
			if !tt.want(err) {
				t.Errorf("MapDBError() code = %v, want %v", GetCode(err), tt.code)
			}
			if !errors.Is(err, tt.err) {
				t.Errorf("MapDBError() should preserve the cause %v", tt.err)
			}
		})
	}
}

func TestMapDBError_NoRows(t *testing.T) {
	err := MapDBError(pgx.ErrNoRows)
	if !IsNotFound(err) {
		t.Errorf("MapDBError(pgx.ErrNoRows) should be NotFound, got %v", GetCode(err))
	}
}

func TestMapDBError_WrappedNoRows(t *testing.T) {
	err := MapDBError(fmt.Errorf("load job: %w", pgx.ErrNoRows))
	if !IsNotFound(err) {
		t.Errorf("MapDBError() should unwrap to NotFound, got %v", GetCode(err))
	}
}

func TestMapDBError_UniqueViolation(t *testing.T) {
	tests := []struct {
		name      string
		pgErr     *pgconn.PgError
		wantField string
	}{
		{
			name: "unique violation with column name",
			pgErr: &pgconn.PgError{
				Code:           pgerrcode.UniqueViolation,
				ConstraintName: "jobs_correlation_id_key",
				ColumnName:     "correlation_id",
			},
			wantField: "correlation_id",
		},
		{
			name: "unique violation with Detail message",
			pgErr: &pgconn.PgError{
				Code:           pgerrcode.UniqueViolation,
				ConstraintName: "jobs_correlation_id_key",
				Detail:         `Key (correlation_id)=(req-42) already exists.`,
			},
			wantField: "correlation_id", // extracted from Detail
		},
		{
			name: "unique violation with multi-column Detail",
			pgErr: &pgconn.PgError{
				Code:           pgerrcode.UniqueViolation,
				ConstraintName: "jobs_queue_correlation_id_key",
				Detail:         `Key (queue, correlation_id)=(tailoring, req-42) already exists.`,
			},
			wantField: "queue, correlation_id", // extracted from Detail
		},
		{
			name: "unique violation without metadata",
			pgErr: &pgconn.PgError{
				Code:           pgerrcode.UniqueViolation,
				ConstraintName: "jobs_correlation_id_key",
			},
			wantField: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := MapDBError(tt.pgErr)
			if !IsConflict(err) {
				t.Errorf("MapDBError() should be Conflict, got %v", GetCode(err))
			}
			if field := GetField(err); field != tt.wantField {
				t.Errorf("MapDBError() field = %v, want %v", field, tt.wantField)
			}
		})
	}
}

func TestMapDBError_ForeignKeyViolation(t *testing.T) {
	tests := []struct {
		name         string
		pgErr        *pgconn.PgError
		wantContains string
	}{
		{
			name: "foreign key violation on a job reference",
			pgErr: &pgconn.PgError{
				Code:           pgerrcode.ForeignKeyViolation,
				ConstraintName: "results_job_id_fkey",
			},
			wantContains: "job",
		},
		{
			name: "foreign key violation on a result reference",
			pgErr: &pgconn.PgError{
				Code:           pgerrcode.ForeignKeyViolation,
				ConstraintName: "artifacts_result_id_fkey",
			},
			wantContains: "generation result",
		},
		{
			name: "foreign key violation on an unrecognized constraint",
			pgErr: &pgconn.PgError{
				Code:           pgerrcode.ForeignKeyViolation,
				ConstraintName: "audit_entries_actor_fkey",
			},
			wantContains: "reference to another record",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := MapDBError(tt.pgErr)
			if !IsForeignKey(err) {
				t.Errorf("MapDBError() should be ForeignKey, got %v", GetCode(err))
			}
			var appErr *AppError
			if !errors.As(err, &appErr) {
				t.Fatalf("MapDBError() should return an *AppError, got %T", err)
			}
			if !strings.Contains(strings.ToLower(appErr.Message), tt.wantContains) {
				t.Errorf("MapDBError() message = %q, want to contain %q", appErr.Message, tt.wantContains)
			}
		})
	}
}

func TestMapDBError_ConstraintValidation(t *testing.T) {
	tests := []struct {
		name      string
		pgErr     *pgconn.PgError
		wantField string
	}{
		{
			name: "not null violation with column name",
			pgErr: &pgconn.PgError{
				Code:       pgerrcode.NotNullViolation,
				ColumnName: "job_description",
			},
			wantField: "job_description",
		},
		{
			name: "check violation with column name",
			pgErr: &pgconn.PgError{
				Code:       pgerrcode.CheckViolation,
				ColumnName: "priority",
			},
			wantField: "priority",
		},
		{
			name: "check violation without column name",
			pgErr: &pgconn.PgError{
				Code: pgerrcode.CheckViolation,
			},
			wantField: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := MapDBError(tt.pgErr)
			if !IsValidation(err) {
				t.Errorf("MapDBError() should be Validation, got %v", GetCode(err))
			}
			if field := GetField(err); field != tt.wantField {
				t.Errorf("MapDBError() field = %v, want %v", field, tt.wantField)
			}
		})
	}
}

func TestMapDBError_UnknownPgError(t *testing.T) {
	pgErr := &pgconn.PgError{
		Code:    "99999",
		Message: "unknown error",
	}
	err := MapDBError(pgErr)
	if !IsInternal(err) {
		t.Errorf("MapDBError() should be Internal for unknown pg error, got %v", GetCode(err))
	}
}

func TestMapDBError_StandardError(t *testing.T) {
	stdErr := errors.New("standard error")
	err := MapDBError(stdErr)
	if !errors.Is(err, stdErr) {
		t.Errorf("MapDBError() should return original error for non-db errors, got %v", err)
	}
	if code := GetCode(err); code != "" {
		t.Errorf("MapDBError() should not assign a code to non-db errors, got %v", code)
	}
}
