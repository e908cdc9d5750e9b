package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobStatusValid(t *testing.T) {
	valid := []JobStatus{JobStatusQueued, JobStatusProcessing, JobStatusCompleted, JobStatusFailed, JobStatusRetrying}
	for _, s := range valid {
		assert.True(t, s.Valid(), "status %q should be valid", s)
	}
	assert.False(t, JobStatus("pending").Valid())
	assert.False(t, JobStatus("").Valid())
}

func TestJobStatusTerminal(t *testing.T) {
	assert.True(t, JobStatusCompleted.Terminal())
	assert.True(t, JobStatusFailed.Terminal())
	assert.False(t, JobStatusQueued.Terminal())
	assert.False(t, JobStatusProcessing.Terminal())
	assert.False(t, JobStatusRetrying.Terminal())
}

func TestJobPriorityWeightOrdering(t *testing.T) {
	assert.Greater(t, PriorityCritical.Weight(), PriorityHigh.Weight())
	assert.Greater(t, PriorityHigh.Weight(), PriorityNormal.Weight())
	assert.Greater(t, PriorityNormal.Weight(), PriorityLow.Weight())
}

func TestJobPriorityUnmarshalText(t *testing.T) {
	var p JobPriority
	require.NoError(t, p.UnmarshalText([]byte(" HIGH ")))
	assert.Equal(t, PriorityHigh, p)

	assert.Error(t, p.UnmarshalText([]byte("urgent")))
}

func TestCreateJobRequestValidate(t *testing.T) {
	base := func() CreateJobRequest {
		return CreateJobRequest{
			QueueName: QueueTailoring,
			JobType:   JobTypeTailorResume,
			Payload:   json.RawMessage(`{"job_description":"build APIs"}`),
		}
	}

	t.Run("valid", func(t *testing.T) {
		req := base()
		assert.NoError(t, req.Validate())
	})

	t.Run("missing queue name", func(t *testing.T) {
		req := base()
		req.QueueName = "  "
		assert.Error(t, req.Validate())
	})

	t.Run("missing job type", func(t *testing.T) {
		req := base()
		req.JobType = ""
		assert.Error(t, req.Validate())
	})

	t.Run("missing payload", func(t *testing.T) {
		req := base()
		req.Payload = nil
		assert.Error(t, req.Validate())
	})

	t.Run("invalid priority", func(t *testing.T) {
		req := base()
		req.Priority = "urgent"
		assert.Error(t, req.Validate())
	})

	t.Run("normalize defaults priority", func(t *testing.T) {
		req := base()
		req.Normalize()
		assert.Equal(t, PriorityNormal, req.Priority)
	})
}

func TestAttemptsRemaining(t *testing.T) {
	j := &Job{Attempts: 2, MaxAttempts: 3}
	assert.True(t, j.AttemptsRemaining())
	j.Attempts = 3
	assert.False(t, j.AttemptsRemaining())
}
