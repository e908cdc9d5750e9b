package config

import "time"

// WorkerConfig contains tailoring worker pool configuration.
type WorkerConfig struct {
	// Concurrency is the number of worker goroutines.
	Concurrency int `env:"WORKER_CONCURRENCY" envDefault:"4"`

	// QueueName is the queue the worker pool drains.
	QueueName string `env:"WORKER_QUEUE" envDefault:"tailoring"`

	// JobLease is the duration to lease a tailoring job. Workers heartbeat
	// at half this interval to keep the lease fresh.
	JobLease time.Duration `env:"WORKER_JOB_LEASE" envDefault:"120s"`

	// MaxAttempts is the default maximum delivery attempts for a job when
	// the submitter does not specify one.
	MaxAttempts int `env:"WORKER_MAX_ATTEMPTS" envDefault:"3"`

	// RetryBaseDelay is the base delay for exponential retry backoff.
	// Attempt n is rescheduled after RetryBaseDelay * 2^(n-1).
	RetryBaseDelay time.Duration `env:"WORKER_RETRY_BASE_DELAY" envDefault:"10s"`

	// PollInterval is the fallback poll interval when no queue
	// notifications arrive.
	PollInterval time.Duration `env:"WORKER_POLL_INTERVAL" envDefault:"5s"`

	// IdempotencyTTL is how long a submission's correlation ID claim is
	// held in the cache to reject duplicate submissions.
	IdempotencyTTL time.Duration `env:"WORKER_IDEMPOTENCY_TTL" envDefault:"24h"`
}

// Sanitize applies guardrails to worker configuration values.
func (w *WorkerConfig) Sanitize() {
	if w.Concurrency < 1 {
		w.Concurrency = 1
	}
	if w.JobLease < 5*time.Second {
		w.JobLease = 5 * time.Second
	}
	if w.MaxAttempts < 1 {
		w.MaxAttempts = 1
	}
	if w.RetryBaseDelay < time.Second {
		w.RetryBaseDelay = time.Second
	}
	if w.PollInterval < time.Second {
		w.PollInterval = time.Second
	}
	if w.IdempotencyTTL < time.Minute {
		w.IdempotencyTTL = time.Minute
	}
}

// PipelineConfig contains tailoring pipeline configuration.
type PipelineConfig struct {
	// EvaluationBudget bounds the ATS evaluation stage. When the budget
	// elapses the stage fails with a deadline error rather than
	// fabricating a score.
	EvaluationBudget time.Duration `env:"PIPELINE_EVALUATION_BUDGET" envDefault:"20s"`

	// RenderTimeout bounds headless-browser PDF rendering.
	RenderTimeout time.Duration `env:"PIPELINE_RENDER_TIMEOUT" envDefault:"30s"`

	// ChromePath overrides the Chrome binary used for rendering.
	// Empty lets the renderer find one.
	ChromePath string `env:"PIPELINE_CHROME_PATH" envDefault:""`

	// BlobDir is the directory for rendered documents too large to
	// store inline. Empty keeps every document in the result row.
	BlobDir string `env:"PIPELINE_BLOB_DIR" envDefault:""`

	// TemplateDir is the directory holding resume HTML templates.
	TemplateDir string `env:"PIPELINE_TEMPLATE_DIR" envDefault:"templates"`

	// ResultTTL is how long generated results remain downloadable.
	ResultTTL time.Duration `env:"PIPELINE_RESULT_TTL" envDefault:"24h"`
}

// Sanitize applies guardrails to pipeline configuration values.
func (p *PipelineConfig) Sanitize() {
	if p.EvaluationBudget < time.Second {
		p.EvaluationBudget = time.Second
	}
	if p.RenderTimeout < time.Second {
		p.RenderTimeout = time.Second
	}
	if p.ResultTTL < time.Minute {
		p.ResultTTL = time.Minute
	}
}

// ProviderConfig contains AI provider configuration.
type ProviderConfig struct {
	// APIKey authenticates against the completion API.
	APIKey string `env:"PROVIDER_API_KEY"`

	// BaseURL overrides the completion API endpoint (for proxies or
	// compatible backends). Empty uses the provider default.
	BaseURL string `env:"PROVIDER_BASE_URL" envDefault:""`

	// PrimaryModel is the model used for all stages by default.
	PrimaryModel string `env:"PROVIDER_PRIMARY_MODEL" envDefault:"gpt-4o"`

	// SecondaryModel is the fallback model used when the primary reports
	// overload. Empty disables fallback.
	SecondaryModel string `env:"PROVIDER_SECONDARY_MODEL" envDefault:"gpt-4o-mini"`

	// RequestTimeout bounds a single completion call.
	RequestTimeout time.Duration `env:"PROVIDER_REQUEST_TIMEOUT" envDefault:"60s"`

	// MaxAttempts is the maximum completion attempts per logical call,
	// counting the first try.
	MaxAttempts int `env:"PROVIDER_MAX_ATTEMPTS" envDefault:"3"`

	// BaseBackoff is the base delay between transient-error retries.
	BaseBackoff time.Duration `env:"PROVIDER_BASE_BACKOFF" envDefault:"2s"`

	// MaxConcurrent bounds in-flight completion calls across all workers
	// in this process.
	MaxConcurrent int `env:"PROVIDER_MAX_CONCURRENT" envDefault:"8"`
}

// Sanitize applies guardrails to provider configuration values.
func (p *ProviderConfig) Sanitize() {
	if p.RequestTimeout < time.Second {
		p.RequestTimeout = time.Second
	}
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.BaseBackoff < 100*time.Millisecond {
		p.BaseBackoff = 100 * time.Millisecond
	}
	if p.MaxConcurrent < 1 {
		p.MaxConcurrent = 1
	}
}

// ReaperConfig contains job reaper service configuration.
type ReaperConfig struct {
	// Interval is the reaper tick interval.
	Interval time.Duration `env:"REAPER_INTERVAL" envDefault:"5m"`

	// CompletedMaxAge is the maximum age for completed jobs before deletion.
	CompletedMaxAge time.Duration `env:"REAPER_COMPLETED_MAX_AGE" envDefault:"168h"` // 7 days

	// FailedMaxAge is the maximum age for failed jobs before deletion.
	FailedMaxAge time.Duration `env:"REAPER_FAILED_MAX_AGE" envDefault:"168h"` // 7 days

	// ResultsMaxAge is the maximum age for expired generation results
	// before deletion.
	ResultsMaxAge time.Duration `env:"REAPER_RESULTS_MAX_AGE" envDefault:"72h"`

	// BatchSize is the maximum number of rows to process per operation.
	// Batching prevents long locks and I/O spikes on large tables.
	BatchSize int `env:"REAPER_BATCH_SIZE" envDefault:"1000"`
}

// Sanitize applies guardrails to reaper configuration values.
func (r *ReaperConfig) Sanitize() {
	// Enforce minimum intervals to prevent excessive database load
	if r.Interval < 1*time.Minute {
		r.Interval = 1 * time.Minute
	}
	if r.CompletedMaxAge < 1*time.Hour {
		r.CompletedMaxAge = 1 * time.Hour
	}
	if r.FailedMaxAge < 1*time.Hour {
		r.FailedMaxAge = 1 * time.Hour
	}
	if r.ResultsMaxAge < 1*time.Hour {
		r.ResultsMaxAge = 1 * time.Hour
	}

	if r.BatchSize < 1 {
		r.BatchSize = 1
	}
	if r.BatchSize > 10000 {
		r.BatchSize = 10000
	}
}
