package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/c360studio/standards/cache"
	"github.com/c360studio/standards/llm"
)

// Defaults for batch execution.
const (
	DefaultMaxConcurrent = 5
	DefaultMaxRetries    = 2
	DefaultRetryDelay    = time.Second
)

// Config tunes one batch run. Zero values fall back to the dispatcher's
// defaults.
type Config struct {
	// MaxConcurrent bounds parallel items via a semaphore.
	MaxConcurrent int `yaml:"max_concurrent" json:"max_concurrent"`

	// MaxRetries is the number of re-attempts after the first failure.
	MaxRetries int `yaml:"max_retries" json:"max_retries"`

	// RetryDelay is the base backoff; attempt n sleeps delay × (n+1).
	RetryDelay time.Duration `yaml:"retry_delay" json:"retry_delay"`

	// RateLimitPerMinute caps provider calls across all jobs.
	// Zero disables limiting.
	RateLimitPerMinute int `yaml:"rate_limit_per_minute" json:"rate_limit_per_minute"`

	// CacheTTL overrides the LLM namespace default when positive.
	CacheTTL time.Duration `yaml:"cache_ttl" json:"cache_ttl"`

	// DisableCache skips cache reads and writes.
	DisableCache bool `yaml:"disable_cache" json:"disable_cache"`
}

func (c Config) withDefaults(base Config) Config {
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = base.MaxConcurrent
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = DefaultMaxConcurrent
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = base.MaxRetries
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = base.RetryDelay
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.RateLimitPerMinute <= 0 {
		c.RateLimitPerMinute = base.RateLimitPerMinute
	}
	return c
}

// Generator produces LLM responses. Satisfied by *llm.Manager.
type Generator interface {
	Generate(ctx context.Context, req *llm.Request) (*llm.Response, error)
}

// Dispatcher runs batch jobs. Safe for concurrent use.
type Dispatcher struct {
	gen      Generator
	cache    cache.Cache
	logger   *slog.Logger
	defaults Config
	rate     *rateLimiter

	mu        sync.Mutex
	jobs      map[string]*Job
	cancels   map[string]context.CancelFunc
	callbacks []ProgressFunc

	cacheHits     atomic.Int64
	providerCalls atomic.Int64

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithDefaults sets the base config applied to every job.
func WithDefaults(cfg Config) Option {
	return func(d *Dispatcher) { d.defaults = cfg }
}

// WithCache sets the response cache. Without one, every item calls the
// provider.
func WithCache(c cache.Cache) Option {
	return func(d *Dispatcher) { d.cache = c }
}

// NewDispatcher creates a dispatcher over the given generator.
func NewDispatcher(gen Generator, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		gen:     gen,
		logger:  slog.Default(),
		rate:    newRateLimiter(),
		jobs:    make(map[string]*Job),
		cancels: make(map[string]context.CancelFunc),
		now:     time.Now,
		sleep:   sleepCtx,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// OnProgress registers a progress callback for all jobs.
func (d *Dispatcher) OnProgress(fn ProgressFunc) {
	if fn == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.callbacks = append(d.callbacks, fn)
}

// ProcessBatch runs every request and returns the finished job. Items
// execute in parallel bounded by MaxConcurrent; completion order is
// unspecified. The returned job is a snapshot.
func (d *Dispatcher) ProcessBatch(ctx context.Context, jobID string, requests []*llm.Request, cfg *Config) (*Job, error) {
	if len(requests) == 0 {
		return nil, fmt.Errorf("batch requires at least one request")
	}
	if jobID == "" {
		jobID = uuid.NewString()
	}

	conf := d.defaults
	if cfg != nil {
		conf = cfg.withDefaults(d.defaults)
	} else {
		conf = conf.withDefaults(Config{})
	}

	job := &Job{
		ID:        jobID,
		Status:    JobProcessing,
		StartedAt: d.now().UTC(),
		Items:     make([]*Item, 0, len(requests)),
	}
	for _, req := range requests {
		job.Items = append(job.Items, &Item{
			ID:      uuid.NewString(),
			Request: req,
			Status:  ItemPending,
		})
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	d.mu.Lock()
	if _, exists := d.jobs[jobID]; exists {
		d.mu.Unlock()
		return nil, fmt.Errorf("job %s already exists", jobID)
	}
	d.jobs[jobID] = job
	d.cancels[jobID] = cancel
	d.mu.Unlock()

	d.emit(Event{JobID: jobID, Phase: "started", Completed: 0, Failed: 0})
	d.logger.Info("batch started", "job_id", jobID, "items", len(job.Items), "max_concurrent", conf.MaxConcurrent)

	sem := semaphore.NewWeighted(int64(conf.MaxConcurrent))
	var wg sync.WaitGroup
	for _, item := range job.Items {
		// Cancelled jobs start no new items; in-flight ones finish.
		if err := sem.Acquire(runCtx, 1); err != nil {
			d.finishItem(job, item, ItemCancelled, nil, "")
			continue
		}
		wg.Add(1)
		go func(it *Item) {
			defer wg.Done()
			defer sem.Release(1)
			d.runItem(runCtx, conf, job, it)
		}(item)
	}
	wg.Wait()

	d.finalize(job)
	return d.snapshot(job), nil
}

// runItem executes the per-item pipeline: rate limit, cache read,
// provider call with linear-backoff retries, cache write.
func (d *Dispatcher) runItem(ctx context.Context, conf Config, job *Job, item *Item) {
	d.setItemStatus(item, ItemProcessing)

	if err := d.rate.Acquire(ctx, conf.RateLimitPerMinute); err != nil {
		d.finishItem(job, item, ItemCancelled, nil, "")
		return
	}

	key := requestKey(item.Request)
	if d.cache != nil && !conf.DisableCache {
		if raw, ok := d.cache.Get(ctx, cache.NamespaceLLM, key); ok {
			var resp llm.Response
			if err := json.Unmarshal(raw, &resp); err == nil {
				d.cacheHits.Add(1)
				d.mu.Lock()
				item.FromCache = true
				d.mu.Unlock()
				d.finishItem(job, item, ItemCompleted, &resp, "")
				return
			}
			d.logger.Warn("discarding undecodable cache entry", "key", key)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= conf.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			d.finishItem(job, item, ItemCancelled, nil, "")
			return
		}

		d.providerCalls.Add(1)
		resp, err := d.gen.Generate(ctx, item.Request)
		if err == nil {
			if d.cache != nil && !conf.DisableCache {
				if encoded, merr := json.Marshal(resp); merr == nil {
					d.cache.Set(ctx, cache.NamespaceLLM, key, encoded, conf.CacheTTL)
				}
			}
			d.finishItem(job, item, ItemCompleted, resp, "")
			return
		}

		lastErr = err
		d.mu.Lock()
		item.Retries = attempt
		d.mu.Unlock()

		if attempt < conf.MaxRetries {
			delay := conf.RetryDelay * time.Duration(attempt+1)
			d.logger.Debug("item retry scheduled",
				"job_id", job.ID, "item_id", item.ID, "attempt", attempt+1, "delay", delay, "error", err)
			if serr := d.sleep(ctx, delay); serr != nil {
				d.finishItem(job, item, ItemCancelled, nil, "")
				return
			}
		}
	}
	d.finishItem(job, item, ItemFailed, nil, lastErr.Error())
}

func (d *Dispatcher) setItemStatus(item *Item, status ItemStatus) {
	d.mu.Lock()
	defer d.mu.Unlock()
	item.Status = status
}

// finishItem marks an item terminal and emits a progress event.
func (d *Dispatcher) finishItem(job *Job, item *Item, status ItemStatus, resp *llm.Response, errText string) {
	d.mu.Lock()
	item.Status = status
	item.Response = resp
	item.Error = errText
	c := job.counts()
	terminal := c.Completed + c.Failed + c.Cancelled
	job.Progress = float64(terminal) / float64(c.Total)
	event := Event{
		JobID:     job.ID,
		Phase:     "progress",
		Progress:  job.Progress,
		Completed: c.Completed,
		Failed:    c.Failed,
	}
	d.mu.Unlock()

	d.emit(event)
}

// finalize settles the aggregate status once every item is terminal.
func (d *Dispatcher) finalize(job *Job) {
	d.mu.Lock()
	c := job.counts()
	done := d.now().UTC()
	job.CompletedAt = &done
	job.Progress = 1

	switch {
	case job.Status == JobCancelled || c.Cancelled > 0:
		job.Status = JobCancelled
	case c.Completed == 0 && c.Failed > 0:
		job.Status = JobFailed
	default:
		job.Status = JobCompleted
	}
	delete(d.cancels, job.ID)
	status := job.Status
	d.mu.Unlock()

	phase := string(status)
	d.emit(Event{JobID: job.ID, Phase: phase, Progress: 1, Completed: c.Completed, Failed: c.Failed})
	d.logger.Info("batch finished",
		"job_id", job.ID, "status", status, "completed", c.Completed, "failed", c.Failed, "cancelled", c.Cancelled)
}

// emit fans an event out to every callback, recovering panics.
func (d *Dispatcher) emit(event Event) {
	d.mu.Lock()
	callbacks := append([]ProgressFunc(nil), d.callbacks...)
	d.mu.Unlock()

	for _, fn := range callbacks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					d.logger.Error("progress callback panicked", "job_id", event.JobID, "panic", r)
				}
			}()
			fn(event)
		}()
	}
}

// Cancel stops a job: no new items begin, in-flight items may complete.
func (d *Dispatcher) Cancel(jobID string) error {
	d.mu.Lock()
	job, ok := d.jobs[jobID]
	if !ok {
		d.mu.Unlock()
		return fmt.Errorf("job %s not found", jobID)
	}
	if job.Status.Terminal() {
		d.mu.Unlock()
		return fmt.Errorf("job %s already %s", jobID, job.Status)
	}
	job.Status = JobCancelled
	cancel := d.cancels[jobID]
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	d.logger.Info("batch cancelled", "job_id", jobID)
	return nil
}

// GetJob returns a snapshot of a job.
func (d *Dispatcher) GetJob(jobID string) (*Job, error) {
	d.mu.Lock()
	job, ok := d.jobs[jobID]
	d.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("job %s not found", jobID)
	}
	return d.snapshot(job), nil
}

// GetStatus returns the aggregate status and progress of a job.
func (d *Dispatcher) GetStatus(jobID string) (JobStatus, float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	job, ok := d.jobs[jobID]
	if !ok {
		return "", 0, fmt.Errorf("job %s not found", jobID)
	}
	return job.Status, job.Progress, nil
}

// GetResults returns the terminal items of a job.
func (d *Dispatcher) GetResults(jobID string) ([]*Item, error) {
	job, err := d.GetJob(jobID)
	if err != nil {
		return nil, err
	}

	results := make([]*Item, 0, len(job.Items))
	for _, item := range job.Items {
		if item.Status.Terminal() {
			results = append(results, item)
		}
	}
	return results, nil
}

// ListJobs returns snapshots of every known job.
func (d *Dispatcher) ListJobs() []*Job {
	d.mu.Lock()
	jobs := make([]*Job, 0, len(d.jobs))
	for _, job := range d.jobs {
		jobs = append(jobs, job)
	}
	d.mu.Unlock()

	out := make([]*Job, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, d.snapshot(job))
	}
	return out
}

// CleanupCompleted removes terminal jobs that finished more than
// keepRecent ago and returns how many were removed.
func (d *Dispatcher) CleanupCompleted(keepRecent time.Duration) int {
	cutoff := d.now().Add(-keepRecent)

	d.mu.Lock()
	defer d.mu.Unlock()

	removed := 0
	for id, job := range d.jobs {
		if job.Status.Terminal() && job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			delete(d.jobs, id)
			removed++
		}
	}
	return removed
}

// Statistics summarizes all jobs the dispatcher has seen.
func (d *Dispatcher) Statistics() Statistics {
	d.mu.Lock()
	defer d.mu.Unlock()

	stats := Statistics{
		CacheHits:     d.cacheHits.Load(),
		ProviderCalls: d.providerCalls.Load(),
	}
	for _, job := range d.jobs {
		stats.TotalJobs++
		stats.TotalItems += len(job.Items)
		switch job.Status {
		case JobCompleted:
			stats.CompletedJobs++
		case JobFailed:
			stats.FailedJobs++
		case JobCancelled:
			stats.CancelledJobs++
		default:
			stats.ActiveJobs++
		}
	}
	return stats
}

// snapshot deep-copies a job for safe return to callers.
func (d *Dispatcher) snapshot(job *Job) *Job {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := &Job{
		ID:        job.ID,
		Status:    job.Status,
		Progress:  job.Progress,
		StartedAt: job.StartedAt,
		Items:     make([]*Item, 0, len(job.Items)),
	}
	if job.CompletedAt != nil {
		done := *job.CompletedAt
		out.CompletedAt = &done
	}
	for _, item := range job.Items {
		copied := *item
		out.Items = append(out.Items, &copied)
	}
	return out
}

// requestKey derives the content-addressed cache key for a request.
func requestKey(req *llm.Request) string {
	var temp float64
	if req.Temperature != nil {
		temp = *req.Temperature
	}
	extras := map[string]any{
		"system_prompt": req.SystemPrompt,
		"max_tokens":    req.MaxTokens,
	}
	if req.Provider != "" {
		extras["provider"] = req.Provider
	}
	return cache.Key(req.Prompt, string(req.Tier), temp, extras)
}
