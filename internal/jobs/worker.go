package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	defaultPollInterval        = 500 * time.Millisecond
	defaultRetention           = 7 * 24 * time.Hour
	defaultMaintenanceInterval = time.Hour
)

type WorkerPool struct {
	repo         *Repository
	logger       *slog.Logger
	workerCount  int
	pollInterval time.Duration
	retention    time.Duration
	maintenance  time.Duration

	mu       sync.RWMutex
	handlers map[string]Handler

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

type PoolOption func(*WorkerPool)

// WithPollInterval sets how long an idle worker waits before looking again.
func WithPollInterval(d time.Duration) PoolOption {
	return func(p *WorkerPool) {
		if d > 0 {
			p.pollInterval = d
		}
	}
}

// WithRetention sets how long done jobs are kept before Maintain deletes them.
func WithRetention(d time.Duration) PoolOption {
	return func(p *WorkerPool) {
		if d > 0 {
			p.retention = d
		}
	}
}

// WithMaintenanceInterval sets how often Run calls Maintain.
func WithMaintenanceInterval(d time.Duration) PoolOption {
	return func(p *WorkerPool) {
		if d > 0 {
			p.maintenance = d
		}
	}
}

func NewWorkerPool(repo *Repository, handlers map[string]Handler, logger *slog.Logger, workerCount int, opts ...PoolOption) *WorkerPool {
	if workerCount <= 0 {
		workerCount = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &WorkerPool{
		repo:         repo,
		handlers:     make(map[string]Handler, len(handlers)),
		logger:       logger,
		workerCount:  workerCount,
		pollInterval: defaultPollInterval,
		retention:    defaultRetention,
		maintenance:  defaultMaintenanceInterval,
		stop:         make(chan struct{}),
	}
	for typ, h := range handlers {
		p.handlers[typ] = h
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Handle registers h for jobs of type typ, replacing any previous handler.
func (p *WorkerPool) Handle(typ string, h Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[typ] = h
}

func (p *WorkerPool) handler(typ string) (Handler, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	h, ok := p.handlers[typ]
	return h, ok
}

// Start launches the worker goroutines
func (p *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
	p.logger.Info("worker pool started", slog.Int("workers", p.workerCount))
}

// Stop signals workers to stop and waits for them. It is safe to call more
// than once.
func (p *WorkerPool) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
	p.wg.Wait()
}

// Run starts the workers and the maintenance loop and blocks until ctx is
// done, then stops them.
func (p *WorkerPool) Run(ctx context.Context) error {
	p.Start(ctx)
	p.wg.Add(1)
	go p.janitor(ctx)
	<-ctx.Done()
	p.Stop()
	p.logger.Info("worker pool stopped")
	return nil
}

// Maintain deletes done jobs older than the retention window and warns about
// dead letters waiting for an operator.
func (p *WorkerPool) Maintain(ctx context.Context) (int64, error) {
	n, err := p.repo.PurgeFinished(ctx, p.repo.now().Add(-p.retention))
	if err != nil {
		return 0, err
	}
	dead, err := p.repo.DeadLetters(ctx)
	if err != nil {
		return n, err
	}
	if len(dead) > 0 {
		last := dead[len(dead)-1]
		p.logger.Warn("dead-lettered jobs waiting",
			slog.Int("count", len(dead)),
			slog.String("last_type", last.Type),
			slog.String("last_error", last.LastError),
		)
	}
	p.logger.Debug("job maintenance ran", slog.Int64("purged", n))
	return n, nil
}

func (p *WorkerPool) janitor(ctx context.Context) {
	defer p.wg.Done()
	ticker := time.NewTicker(p.maintenance)
	defer ticker.Stop()
	for {
		if _, err := p.Maintain(ctx); err != nil && ctx.Err() == nil {
			p.logger.Error("job maintenance", slog.Any("err", err))
		}
		select {
		case <-ticker.C:
		case <-p.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (p *WorkerPool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.stop:
			p.logger.Debug("worker stopping", slog.Int("id", id))
			return
		case <-ctx.Done():
			p.logger.Debug("context canceled, worker exiting", slog.Int("id", id))
			return
		default:
		}

		job, err := p.repo.Claim(ctx)
		if err != nil {
			if ctx.Err() == nil {
				p.logger.Error("fetch job", slog.Any("err", err))
			}
			p.wait(ctx, 2*p.pollInterval)
			continue
		}
		if job == nil {
			p.wait(ctx, p.pollInterval)
			continue
		}
		p.process(ctx, job)
	}
}

// process runs the handler for job and records the outcome.
func (p *WorkerPool) process(ctx context.Context, job *Job) {
	log := p.logger.With(slog.Int64("job_id", job.ID), slog.String("type", job.Type))

	h, ok := p.handler(job.Type)
	if !ok {
		job.Status = StatusFailed
		job.LastError = "no handler"
		if err := p.repo.MoveToDeadLetter(ctx, job); err != nil {
			log.Error("move to dead letter", slog.Any("err", err))
		}
		log.Warn("job has no handler")
		return
	}

	err := runHandler(ctx, h, job)
	if err == nil {
		job.Status = StatusDone
		if upErr := p.repo.UpdateJob(ctx, job); upErr != nil {
			log.Error("mark job done", slog.Any("err", upErr))
		}
		log.Debug("job done")
		return
	}

	job.Attempts++
	job.LastError = err.Error()
	if job.Attempts >= job.MaxAttempts {
		job.Status = StatusFailed
		if mvErr := p.repo.MoveToDeadLetter(ctx, job); mvErr != nil {
			log.Error("move to dead letter", slog.Any("err", mvErr))
		}
		log.Error("job failed permanently", slog.Int("attempts", job.Attempts), slog.Any("err", err))
		return
	}

	t := p.repo.now().Add(BackoffDuration(job.Attempts))
	job.NextTryAt = &t
	job.Status = StatusRetry
	if upErr := p.repo.UpdateJob(ctx, job); upErr != nil {
		log.Error("update job for retry", slog.Any("err", upErr))
	}
	log.Warn("job failed, retrying", slog.Int("attempts", job.Attempts), slog.Time("next_try_at", t), slog.Any("err", err))
}

func runHandler(ctx context.Context, h Handler, job *Job) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler panic: %v", rec)
		}
	}()
	return h(ctx, job)
}

func (p *WorkerPool) wait(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-p.stop:
	case <-ctx.Done():
	}
}

// Enqueue persists a job that is due now.
func (p *WorkerPool) Enqueue(ctx context.Context, typ string, payload any, priority int, maxAttempts int) (int64, error) {
	return p.enqueue(ctx, typ, payload, priority, maxAttempts, time.Time{})
}

// Schedule persists a job that becomes due at at.
func (p *WorkerPool) Schedule(ctx context.Context, typ string, payload any, at time.Time) (int64, error) {
	return p.enqueue(ctx, typ, payload, 0, 0, at)
}

func (p *WorkerPool) enqueue(ctx context.Context, typ string, payload any, priority, maxAttempts int, at time.Time) (int64, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal payload: %w", err)
	}
	j := &Job{Type: typ, Payload: b, Priority: priority, MaxAttempts: maxAttempts, ScheduledAt: at.UTC()}
	id, err := p.repo.Enqueue(ctx, j)
	if err != nil {
		return 0, err
	}
	p.logger.Debug("job enqueued", slog.Int64("job_id", id), slog.String("type", typ), slog.Time("scheduled_at", j.ScheduledAt))
	return id, nil
}
