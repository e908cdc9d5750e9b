package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/tailorhq/resume-tailor-api/config"
	"github.com/tailorhq/resume-tailor-api/internal/core"
	"github.com/tailorhq/resume-tailor-api/internal/domain/model"
	"github.com/tailorhq/resume-tailor-api/internal/mocks"
)

func newTestReaperService(t *testing.T, repo core.ReaperRepository) *ReaperService {
	t.Helper()
	svc := MustNewReaperService(ReaperServiceOptions{
		Repo:      repo,
		QueueName: model.QueueTailoring,
		Config: config.ReaperConfig{
			Interval:        time.Minute,
			CompletedMaxAge: 24 * time.Hour,
			FailedMaxAge:    48 * time.Hour,
			ResultsMaxAge:   12 * time.Hour,
			BatchSize:       500,
		},
	})
	return svc
}

func TestNewReaperService(t *testing.T) {
	t.Run("requires repo", func(t *testing.T) {
		_, err := NewReaperService(ReaperServiceOptions{QueueName: "q"})
		assert.Error(t, err)
	})

	t.Run("requires queue name", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		_, err := NewReaperService(ReaperServiceOptions{Repo: mocks.NewMockReaperRepository(ctrl)})
		assert.Error(t, err)
	})
}

func TestReaperService_RunCleanup(t *testing.T) {
	t.Run("runs all steps with configured cutoffs", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		repo := mocks.NewMockReaperRepository(ctrl)
		svc := newTestReaperService(t, repo)

		now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		svc.timeNow = func() time.Time { return now }

		repo.EXPECT().RequeueExpired(gomock.Any(), model.QueueTailoring).Return(2, nil)
		repo.EXPECT().DeleteTerminalJobsOlderThan(gomock.Any(), core.DeleteAgedParams{
			Status:    model.JobStatusCompleted,
			Cutoff:    now.Add(-24 * time.Hour),
			BatchSize: 500,
		}).Return(10, nil)
		repo.EXPECT().DeleteTerminalJobsOlderThan(gomock.Any(), core.DeleteAgedParams{
			Status:    model.JobStatusFailed,
			Cutoff:    now.Add(-48 * time.Hour),
			BatchSize: 500,
		}).Return(3, nil)
		repo.EXPECT().DeleteExpiredResults(gomock.Any(), core.DeleteAgedParams{
			Cutoff:    now.Add(-12 * time.Hour),
			BatchSize: 500,
		}).Return(7, nil)

		require.NoError(t, svc.RunCleanup(context.Background()))
	})

	t.Run("a failing step does not stop the others", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		repo := mocks.NewMockReaperRepository(ctrl)
		svc := newTestReaperService(t, repo)

		repo.EXPECT().RequeueExpired(gomock.Any(), gomock.Any()).Return(0, errors.New("lock timeout"))
		repo.EXPECT().DeleteTerminalJobsOlderThan(gomock.Any(), gomock.Any()).Return(0, nil).Times(2)
		repo.EXPECT().DeleteExpiredResults(gomock.Any(), gomock.Any()).Return(0, nil)

		err := svc.RunCleanup(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "requeue expired leases")
	})
}

func TestReaperService_RunStopsOnCancel(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockReaperRepository(ctrl)
	svc := newTestReaperService(t, repo)
	svc.config.Interval = 50 * time.Millisecond

	repo.EXPECT().RequeueExpired(gomock.Any(), gomock.Any()).Return(0, nil).AnyTimes()
	repo.EXPECT().DeleteTerminalJobsOlderThan(gomock.Any(), gomock.Any()).Return(0, nil).AnyTimes()
	repo.EXPECT().DeleteExpiredResults(gomock.Any(), gomock.Any()).Return(0, nil).AnyTimes()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	time.Sleep(120 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err, "graceful shutdown returns nil")
	case <-time.After(2 * time.Second):
		t.Fatal("reaper did not stop after cancel")
	}
}
