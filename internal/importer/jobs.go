package importer

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/geo-challenges/internal/challenge"
	ws "github.com/gokatarajesh/geo-challenges/pkg/http/ws"
)

type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

const jobRetention = time.Hour

// Job is a snapshot of a background bulk import.
type Job struct {
	ID         uuid.UUID   `json:"id"`
	Status     JobStatus   `json:"status"`
	Progress   Progress    `json:"progress"`
	Result     *BulkResult `json:"result,omitempty"`
	Error      string      `json:"error,omitempty"`
	StartedAt  time.Time   `json:"startedAt"`
	FinishedAt *time.Time  `json:"finishedAt,omitempty"`
}

// Publisher delivers job events to topic subscribers (implemented by ws.Hub).
type Publisher interface {
	Publish(topic uuid.UUID, msg ws.Message) error
}

// Jobs runs LoadMany in the background and keeps the latest snapshot of each
// run. Records already persisted by a job survive the caller going away.
type Jobs struct {
	svc    *Service
	pub    Publisher
	logger zerolog.Logger

	mu      sync.RWMutex
	jobs    map[uuid.UUID]*Job
	cancels map[uuid.UUID]context.CancelFunc
	wg      sync.WaitGroup
	closed  bool
}

func NewJobs(svc *Service, pub Publisher, logger zerolog.Logger) *Jobs {
	return &Jobs{
		svc:     svc,
		pub:     pub,
		logger:  logger.With().Str("component", "import_jobs").Logger(),
		jobs:    make(map[uuid.UUID]*Job),
		cancels: make(map[uuid.UUID]context.CancelFunc),
	}
}

// Start validates the batch and launches it. The job keeps the values of ctx
// (such as a per-request game token) but not its cancellation.
func (j *Jobs) Start(ctx context.Context, references, names []string, forceRefresh bool) (uuid.UUID, error) {
	if err := validateBatch(references, names); err != nil {
		return uuid.Nil, err
	}

	id := uuid.New()
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		cancel()
		return uuid.Nil, challenge.Errorf(challenge.KindFetch, "importer is shutting down")
	}
	j.pruneLocked(j.svc.now())
	j.jobs[id] = &Job{
		ID:        id,
		Status:    JobRunning,
		Progress:  Progress{TotalCount: len(references), RemainingCount: len(references)},
		StartedAt: j.svc.now(),
	}
	j.cancels[id] = cancel
	j.wg.Add(1)
	j.mu.Unlock()

	activeJobs.Inc()
	j.logger.Info().Str("job_id", id.String()).Int("total", len(references)).Msg("import job started")

	go j.run(runCtx, id, references, names, forceRefresh)
	return id, nil
}

func (j *Jobs) run(ctx context.Context, id uuid.UUID, references, names []string, forceRefresh bool) {
	defer j.wg.Done()
	defer activeJobs.Dec()

	res, err := j.svc.LoadMany(ctx, references, func(p Progress) {
		j.mu.Lock()
		if job, ok := j.jobs[id]; ok {
			job.Progress = p
		}
		j.mu.Unlock()
		j.publish(id, ws.TypeImportProgress, ws.ImportProgressPayload{
			JobID:          id.String(),
			AddedCount:     p.AddedCount,
			FailedCount:    p.FailedCount,
			TotalCount:     p.TotalCount,
			RemainingCount: p.RemainingCount,
		})
	}, forceRefresh, names)

	finished := j.svc.now()
	j.mu.Lock()
	job := j.jobs[id]
	if cancel, ok := j.cancels[id]; ok {
		cancel()
		delete(j.cancels, id)
	}
	if job != nil {
		job.FinishedAt = &finished
		if err != nil {
			job.Status = JobFailed
			job.Error = err.Error()
		} else {
			job.Status = JobCompleted
			job.Result = res
		}
	}
	var snap Job
	if job != nil {
		snap = *job
	}
	j.mu.Unlock()

	if err != nil {
		j.logger.Error().Err(err).Str("job_id", id.String()).Msg("import job failed")
	} else {
		j.logger.Info().Str("job_id", id.String()).Int("added", res.AddedCount).Int("failed", res.FailedCount).Msg("import job finished")
	}
	j.publish(id, ws.TypeImportComplete, CompletePayload(snap))
}

// Get returns a copy of the job's latest snapshot.
func (j *Jobs) Get(id uuid.UUID) (Job, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	job, ok := j.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// Close cancels running jobs and waits for them until ctx expires.
func (j *Jobs) Close(ctx context.Context) error {
	j.mu.Lock()
	j.closed = true
	for _, cancel := range j.cancels {
		cancel()
	}
	j.mu.Unlock()

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

func (j *Jobs) pruneLocked(now time.Time) {
	for id, job := range j.jobs {
		if job.FinishedAt != nil && now.Sub(*job.FinishedAt) > jobRetention {
			delete(j.jobs, id)
		}
	}
}

func (j *Jobs) publish(id uuid.UUID, msgType string, payload interface{}) {
	if j.pub == nil {
		return
	}
	msg, err := ws.NewMessage(msgType, payload)
	if err != nil {
		j.logger.Warn().Err(err).Str("job_id", id.String()).Msg("encode job event")
		return
	}
	_ = j.pub.Publish(id, msg)
}

// CompletePayload renders a finished job as an import_complete payload.
func CompletePayload(job Job) ws.ImportCompletePayload {
	out := ws.ImportCompletePayload{
		JobID:  job.ID.String(),
		Status: string(job.Status),
		Error:  job.Error,
	}
	if job.Result != nil {
		if raw, err := json.Marshal(job.Result); err == nil {
			out.Result = raw
		}
	}
	return out
}
