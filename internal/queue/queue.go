// Package queue decouples generation submission from completion: it drives
// each job's lifecycle via the provider client and dispatches
// post-completion hooks. State is entirely in-process; restarting the
// process discards the queue.
package queue

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/h2adev/reelforge/internal/apierr"
	"github.com/h2adev/reelforge/internal/catalog"
	"github.com/h2adev/reelforge/internal/models"
	"github.com/h2adev/reelforge/internal/provider"
)

// HookFunc is invoked exactly once, on a job's first transition to
// completed. A returned error is logged and swallowed by the queue — a hook
// failure never un-completes the job.
type HookFunc func(ctx context.Context, job *models.Job, resultURL string) error

// Queue is the in-memory job store plus its background workers. All
// mutations to the job map and the active-worker map are serialized by a
// single mutex; event-stream consumption happens outside the mutex and
// re-acquires it per write.
type Queue struct {
	mu      sync.Mutex
	jobs    map[uuid.UUID]*models.Job
	cancels map[uuid.UUID]context.CancelFunc

	provider *provider.Client
	hooks    map[models.TaskKind]HookFunc
}

// New constructs an empty queue bound to a provider client.
func New(p *provider.Client) *Queue {
	return &Queue{
		jobs:     make(map[uuid.UUID]*models.Job),
		cancels:  make(map[uuid.UUID]context.CancelFunc),
		provider: p,
		hooks:    make(map[models.TaskKind]HookFunc),
	}
}

// RegisterHook binds a post-completion hook to a task kind. Per the design
// note on breaking the tool/service cycle, the queue never imports the
// project store or asset storage packages directly — the composition root
// registers closures over them here at startup.
func (q *Queue) RegisterHook(kind models.TaskKind, fn HookFunc) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.hooks[kind] = fn
}

// CreateInput is the caller-supplied shape of a new job.
type CreateInput struct {
	TaskKind  models.TaskKind
	ModelID   string
	Arguments models.Metadata
	ProjectID *uuid.UUID
	SceneID   *uuid.UUID
	Metadata  models.Metadata
}

// Create inserts a job in the queued state without starting its worker.
func (q *Queue) Create(in CreateInput) (*models.Job, error) {
	if err := q.validate(in); err != nil {
		return nil, err
	}

	job := &models.Job{
		ID:         uuid.New(),
		ProjectID:  in.ProjectID,
		SceneID:    in.SceneID,
		TaskKind:   in.TaskKind,
		ModelID:    in.ModelID,
		Arguments:  in.Arguments,
		Status:     models.JobStatusQueued,
		LogEntries: []models.LogEntry{},
		CreatedAt:  time.Now(),
		Metadata:   in.Metadata,
	}

	q.mu.Lock()
	q.jobs[job.ID] = job
	q.mu.Unlock()

	return job, nil
}

func (q *Queue) validate(in CreateInput) error {
	spec, err := catalog.Lookup(in.ModelID)
	if err != nil {
		return apierr.Validation(err.Error(), catalog.AllModelIDs(), "pass a registered model_id", `{"model_id":"video-A"}`)
	}
	if in.TaskKind == models.TaskKindVideo {
		if d, ok := in.Arguments["duration_s"]; ok {
			durationS := toInt(d)
			if err := spec.ValidateDuration(durationS); err != nil {
				opts := make([]string, len(spec.ValidDurationsS))
				for i, dv := range spec.ValidDurationsS {
					opts[i] = fmt.Sprintf("%d", dv)
				}
				return apierr.Validation(err.Error(), opts, "choose one of the model's valid durations", `{"duration_s": 5}`)
			}
		}
	}
	return nil
}

// Submit creates a job and immediately starts its background worker,
// returning the job id without waiting for any provider interaction.
func (q *Queue) Submit(in CreateInput) (uuid.UUID, error) {
	job, err := q.Create(in)
	if err != nil {
		return uuid.Nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	q.mu.Lock()
	q.cancels[job.ID] = cancel
	q.mu.Unlock()

	go q.run(ctx, job)

	return job.ID, nil
}

// run drives one job end to end: submit to the provider, translate events
// into status transitions, and dispatch the completion hook. Exceptions
// anywhere in this path mark the job failed exactly once; cancellation
// marks it cancelled. Either way the worker unregisters itself on exit.
func (q *Queue) run(ctx context.Context, job *models.Job) {
	defer q.unregister(job.ID)

	handle, err := q.provider.Submit(ctx, string(job.TaskKind), job.ModelID, job.Arguments)
	if err != nil {
		q.fail(job.ID, err)
		return
	}
	q.setRequestID(job.ID, handle.RequestID)

	var resultURL string
	var result map[string]any

	for ev := range handle.Events {
		switch ev.Kind {
		case provider.EventQueued:
			q.update(job.ID, func(j *models.Job) {
				// A stale provider-side "queued" never regresses the status.
				if j.Status == models.JobStatusQueued {
					j.QueuePosition = ev.Position
				}
			})
		case provider.EventInProgress:
			q.update(job.ID, func(j *models.Job) {
				if j.Status.IsTerminal() {
					return
				}
				if j.Status != models.JobStatusInProgress {
					now := time.Now()
					j.StartedAt = &now
				}
				j.Status = models.JobStatusInProgress
				for _, line := range ev.Logs {
					j.LogEntries = append(j.LogEntries, models.LogEntry{Message: line, Timestamp: time.Now()})
				}
				if ev.Progress != nil {
					j.ProgressPct = ev.Progress
				}
			})
		case provider.EventCompleted:
			result = ev.Result
			url, _ := provider.ExtractURL(string(job.TaskKind), result)
			resultURL = url
			q.update(job.ID, func(j *models.Job) {
				for _, line := range ev.Logs {
					j.LogEntries = append(j.LogEntries, models.LogEntry{Message: line, Timestamp: time.Now()})
				}
			})
		}
	}

	if err := handle.Err(); err != nil {
		if ctx.Err() == context.Canceled {
			q.cancelTerminal(job.ID)
			return
		}
		q.fail(job.ID, err)
		return
	}

	full := 100.0
	q.update(job.ID, func(j *models.Job) {
		if j.Status.IsTerminal() {
			return
		}
		now := time.Now()
		j.Status = models.JobStatusCompleted
		j.ProgressPct = &full
		j.CompletedAt = &now
		j.Result = result
	})

	q.dispatchHook(ctx, job.ID, resultURL)
}

// dispatchHook invokes the registered hook for the job's task kind. Hook
// errors are logged and swallowed; the job remains completed.
func (q *Queue) dispatchHook(ctx context.Context, jobID uuid.UUID, resultURL string) {
	job, err := q.Get(jobID)
	if err != nil || job.Status != models.JobStatusCompleted {
		return
	}
	q.mu.Lock()
	hook, ok := q.hooks[job.TaskKind]
	q.mu.Unlock()
	if !ok {
		return
	}
	if err := hook(ctx, job, resultURL); err != nil {
		log.Printf("[queue] post-completion hook for job %s (%s) failed: %v", job.ID, job.TaskKind, err)
	}
}

func (q *Queue) unregister(jobID uuid.UUID) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.cancels, jobID)
}

func (q *Queue) setRequestID(jobID uuid.UUID, requestID string) {
	q.update(jobID, func(j *models.Job) { j.RemoteRequestID = requestID })
}

func (q *Queue) update(jobID uuid.UUID, mutate func(j *models.Job)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if j, ok := q.jobs[jobID]; ok {
		mutate(j)
	}
}

func (q *Queue) fail(jobID uuid.UUID, err error) {
	q.update(jobID, func(j *models.Job) {
		if j.Status.IsTerminal() {
			return
		}
		now := time.Now()
		j.Status = models.JobStatusFailed
		j.CompletedAt = &now
		j.ErrorMessage = err.Error()
	})
}

func (q *Queue) cancelTerminal(jobID uuid.UUID) {
	q.update(jobID, func(j *models.Job) {
		if j.Status.IsTerminal() {
			return
		}
		now := time.Now()
		j.Status = models.JobStatusCancelled
		j.CompletedAt = &now
		j.ErrorMessage = "Task cancelled by user"
	})
}

// Get returns a job by id.
func (q *Queue) Get(jobID uuid.UUID) (*models.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	j, ok := q.jobs[jobID]
	if !ok {
		return nil, apierr.NotFound("job", jobID.String())
	}
	return j, nil
}

// List returns jobs filtered by project id and/or status, sorted by
// created_at descending.
func (q *Queue) List(projectID *uuid.UUID, statusFilter []models.JobStatus) []*models.Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	statusSet := make(map[models.JobStatus]bool, len(statusFilter))
	for _, s := range statusFilter {
		statusSet[s] = true
	}

	out := make([]*models.Job, 0, len(q.jobs))
	for _, j := range q.jobs {
		if projectID != nil && (j.ProjectID == nil || *j.ProjectID != *projectID) {
			continue
		}
		if len(statusSet) > 0 && !statusSet[j.Status] {
			continue
		}
		out = append(out, j)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.After(out[k].CreatedAt) })
	return out
}

// Cancel terminates a job's worker cooperatively and marks it cancelled.
// It is idempotent: cancelling a terminal job is a no-op returning false.
// No attempt is made to tell the provider to stop.
func (q *Queue) Cancel(jobID uuid.UUID) bool {
	q.mu.Lock()
	job, ok := q.jobs[jobID]
	if !ok || job.Status.IsTerminal() {
		q.mu.Unlock()
		return false
	}
	cancel, hasCancel := q.cancels[jobID]
	q.mu.Unlock()

	if hasCancel {
		cancel()
	}

	q.update(jobID, func(j *models.Job) {
		if j.Status.IsTerminal() {
			return
		}
		now := time.Now()
		j.Status = models.JobStatusCancelled
		j.CompletedAt = &now
		j.ErrorMessage = "Task cancelled by user"
	})
	return true
}

// Stats summarizes the queue's current contents. Wait is started_at -
// created_at, processing is completed_at - started_at, both averaged over
// completed jobs only.
type Stats struct {
	Total          int                      `json:"total"`
	ByStatus       map[models.JobStatus]int `json:"by_status"`
	ByKind         map[models.TaskKind]int  `json:"by_kind"`
	ActiveCount    int                      `json:"active_count"`
	AvgWaitS       float64                  `json:"avg_wait_s"`
	AvgProcessingS float64                  `json:"avg_processing_s"`
}

func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	st := Stats{
		ByStatus: make(map[models.JobStatus]int),
		ByKind:   make(map[models.TaskKind]int),
	}

	var totalWait, totalProcessing float64
	var completedCount int

	for _, j := range q.jobs {
		st.Total++
		st.ByStatus[j.Status]++
		st.ByKind[j.TaskKind]++
		if j.Status == models.JobStatusQueued || j.Status == models.JobStatusInProgress {
			st.ActiveCount++
		}
		if j.Status == models.JobStatusCompleted {
			completedCount++
			if j.StartedAt != nil {
				totalWait += j.StartedAt.Sub(j.CreatedAt).Seconds()
			}
			if p := j.ProcessingS(); p != nil {
				totalProcessing += *p
			}
		}
	}

	if completedCount > 0 {
		st.AvgWaitS = totalWait / float64(completedCount)
		st.AvgProcessingS = totalProcessing / float64(completedCount)
	}

	return st
}

// Wait polls the local job state (never the provider) until it reaches a
// terminal status or the timeout elapses.
func (q *Queue) Wait(ctx context.Context, jobID uuid.UUID, timeout time.Duration, pollInterval time.Duration) (*models.Job, error) {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	deadline := time.Now().Add(timeout)

	for {
		job, err := q.Get(jobID)
		if err != nil {
			return nil, err
		}
		if job.Status.IsTerminal() {
			return job, nil
		}
		if timeout > 0 && time.Now().After(deadline) {
			return nil, apierr.API("wait timed out", apierr.SubClassTimeout, false)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// Cleanup evicts terminal jobs older than ageHours, returning the count
// removed.
func (q *Queue) Cleanup(ageHours int) int {
	cutoff := time.Now().Add(-time.Duration(ageHours) * time.Hour)

	q.mu.Lock()
	defer q.mu.Unlock()

	removed := 0
	for id, j := range q.jobs {
		if j.Status.IsTerminal() && j.CreatedAt.Before(cutoff) {
			delete(q.jobs, id)
			removed++
		}
	}
	return removed
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}
