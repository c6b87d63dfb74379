package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	platformlogging "github.com/voxcampus/voxcampus-platform/platform/go/logging"
	"github.com/voxcampus/voxcampus-platform/platform/go/tenant"
)

// JobRequest is the payload of the scheduled demo revert job.
type JobRequest struct {
	UserID         string
	Email          string
	SkipOldRecords bool
	ForceReset     bool
}

// JobStatus is the lifecycle state of an Execution.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// Execution is one asynchronous run of a JobRequest.
type Execution struct {
	ID         uuid.UUID
	Request    JobRequest
	Status     JobStatus
	Summary    *Summary
	Error      string
	CreatedAt  time.Time
	FinishedAt *time.Time
}

// DefaultJobRetention is how long a finished Execution stays readable.
const DefaultJobRetention = time.Hour

// JobsConfig tunes a Jobs runner. Zero values select the defaults.
type JobsConfig struct {
	Exemptions tenant.ExemptionList
	Retention  time.Duration
	Now        func() time.Time
}

// Jobs runs revert requests in the background and keeps their status in memory
// until the retention window after they finish.
type Jobs struct {
	reverter RevertRunner
	cfg      JobsConfig
	logger   *zap.Logger

	mu         sync.RWMutex
	executions map[uuid.UUID]*Execution
	wg         sync.WaitGroup
}

// NewJobs constructs a Jobs runner.
func NewJobs(reverter RevertRunner, cfg JobsConfig, logger *zap.Logger) *Jobs {
	if reverter == nil {
		panic("reverter is required")
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultJobRetention
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Jobs{reverter: reverter, cfg: cfg, logger: logger, executions: make(map[uuid.UUID]*Execution)}
}

// Submit validates req and starts it. The returned Execution is a snapshot taken before the run starts.
func (j *Jobs) Submit(ctx context.Context, req JobRequest) (Execution, error) {
	req.UserID = strings.TrimSpace(req.UserID)
	fieldErrors := FieldErrors{}
	if req.UserID == "" {
		fieldErrors.add("userId", "userId is required")
	}
	if strings.TrimSpace(req.Email) == "" {
		fieldErrors.add("email", "email is required")
	}
	if len(fieldErrors) > 0 {
		return Execution{}, &ValidationError{Fields: fieldErrors}
	}
	if !j.cfg.Exemptions.IsExempt(req.Email) {
		return Execution{}, ErrNotExempt
	}

	exec := &Execution{ID: uuid.New(), Request: req, Status: JobPending, CreatedAt: j.cfg.Now().UTC()}
	j.mu.Lock()
	j.pruneLocked()
	j.executions[exec.ID] = exec
	snapshot := *exec
	j.mu.Unlock()

	runCtx := context.WithoutCancel(ctx)
	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		j.run(runCtx, exec.ID, req)
	}()

	return snapshot, nil
}

// Get returns a snapshot of the execution or ErrNotFound. Executions that finished
// longer than the retention window ago are gone.
func (j *Jobs) Get(id uuid.UUID) (Execution, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.pruneLocked()
	exec, ok := j.executions[id]
	if !ok {
		return Execution{}, ErrNotFound
	}
	return *exec, nil
}

// Drain blocks until every submitted run finished or ctx is done.
func (j *Jobs) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		j.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (j *Jobs) run(ctx context.Context, id uuid.UUID, req JobRequest) {
	j.setStatus(id, func(e *Execution) { e.Status = JobRunning })

	summary, err := j.reverter.Revert(ctx, Target{
		UserID:         req.UserID,
		SkipOldRecords: req.SkipOldRecords,
		ForceReset:     req.ForceReset,
	})

	finished := j.cfg.Now().UTC()
	logger := platformlogging.FromContextOr(ctx, j.logger).With(zap.String("executionId", id.String()))
	if err != nil {
		logger.Error("demo revert job failed", zap.Error(err))
		j.setStatus(id, func(e *Execution) {
			e.Status = JobFailed
			e.Error = err.Error()
			e.FinishedAt = &finished
		})
		return
	}

	logger.Info("demo revert job finished", zap.Int("reverted", summary.Reverted), zap.Int("failed", summary.Failed))
	j.setStatus(id, func(e *Execution) {
		e.Status = JobSucceeded
		e.Summary = &summary
		e.FinishedAt = &finished
	})
}

func (j *Jobs) setStatus(id uuid.UUID, update func(*Execution)) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if exec, ok := j.executions[id]; ok {
		update(exec)
	}
}

// Len returns the number of retained executions.
func (j *Jobs) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.pruneLocked()
	return len(j.executions)
}

func (j *Jobs) pruneLocked() {
	cutoff := j.cfg.Now().Add(-j.cfg.Retention)
	for id, exec := range j.executions {
		if exec.FinishedAt != nil && exec.FinishedAt.Before(cutoff) {
			delete(j.executions, id)
		}
	}
}
