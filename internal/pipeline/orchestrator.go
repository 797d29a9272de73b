package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/mathreel/internal/artifact"
	"github.com/dgallion1/mathreel/internal/doctree"
)

var (
	ErrQueueFull      = errors.New("job queue is full")
	ErrAlreadyQueued  = errors.New("job is already queued or running")
	ErrJobFinished    = errors.New("job already finished")
	ErrEmptyUpload    = errors.New("uploaded document is empty")
	ErrInvalidRequest = errors.New("invalid request")
)

// Config sizes the orchestrator.
type Config struct {
	Workers         int
	QueueSize       int
	CleanupInterval time.Duration
	Defaults        Options
}

// Submission is a new document to render.
type Submission struct {
	Filename string
	Format   doctree.Format // inferred from Filename when empty
	Data     []byte
	Options  Options
}

// cleaner is implemented by repositories that evict expired jobs themselves.
type cleaner interface {
	Cleanup()
}

// Orchestrator queues jobs and runs them on a fixed pool of workers. A job ID is
// held by at most one worker at a time.
type Orchestrator struct {
	repo   Repository
	store  artifact.Store
	runner *Runner
	log    *slog.Logger
	cfg    Config
	queue  chan string

	mu       sync.Mutex
	inFlight map[string]bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewOrchestrator(cfg Config, repo Repository, store artifact.Store, runner *Runner, log *slog.Logger) *Orchestrator {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 5 * time.Minute
	}
	return &Orchestrator{
		repo:     repo,
		store:    store,
		runner:   runner,
		log:      log,
		cfg:      cfg,
		queue:    make(chan string, cfg.QueueSize),
		inFlight: make(map[string]bool),
	}
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for range o.cfg.Workers {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			for {
				select {
				case <-workerCtx.Done():
					return
				case id := <-o.queue:
					o.process(workerCtx, id)
				}
			}
		}()
	}

	if c, ok := o.repo.(cleaner); ok {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			ticker := time.NewTicker(o.cfg.CleanupInterval)
			defer ticker.Stop()
			for {
				select {
				case <-workerCtx.Done():
					return
				case <-ticker.C:
					c.Cleanup()
				}
			}
		}()
	}
}

func (o *Orchestrator) process(ctx context.Context, id string) {
	defer o.release(id)
	if err := o.runner.Run(ctx, id); errors.Is(err, ErrNotFound) {
		o.log.Warn("queued job vanished", "job_id", id)
	}
}

func (o *Orchestrator) release(id string) {
	o.mu.Lock()
	delete(o.inFlight, id)
	o.mu.Unlock()
}

// Stop gracefully shuts down the pipeline. Running jobs see their context
// cancelled and are recorded as interrupted.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()
}

// Submit stores the upload, records a new job and queues it.
func (o *Orchestrator) Submit(ctx context.Context, sub Submission) (*Job, error) {
	name := path.Base(strings.ReplaceAll(sub.Filename, `\`, "/"))
	if name == "." || name == "/" || name == "" {
		return nil, fmt.Errorf("%w: missing filename", ErrInvalidRequest)
	}
	if len(sub.Data) == 0 {
		return nil, ErrEmptyUpload
	}
	format := sub.Format
	if format == "" {
		f, err := doctree.FormatFromFilename(name)
		if err != nil {
			return nil, err
		}
		format = f
	}

	now := time.Now().UTC()
	job := &Job{
		ID:          uuid.NewString(),
		Filename:    name,
		Format:      format,
		Stage:       StageUploaded,
		Options:     sub.Options.withDefaults(o.cfg.Defaults),
		ContentHash: ContentHashHex(sub.Data),
		CreatedAt:   now,
		UpdatedAt:   now,
		Events:      []JobEvent{{Time: now, Stage: StageUploaded, Kind: EventStageEntered}},
	}

	key := artifact.SourceKey(job.ID, name)
	obj, err := o.store.Put(ctx, key, bytes.NewReader(sub.Data))
	if err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}
	job.Artifacts = []Artifact{{Kind: ArtifactSource, Key: key, Size: obj.Size}}

	if err := o.repo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	if err := o.Enqueue(job.ID); err != nil {
		job.Stage = StageFailed
		job.Error = &JobError{Stage: StageUploaded, Kind: "queue_full", Message: err.Error()}
		job.UpdatedAt = time.Now().UTC()
		if perr := o.repo.Put(ctx, job); perr != nil {
			o.log.Error("save rejected job failed", "job_id", job.ID, "error", perr)
		}
		return job, err
	}
	o.log.Info("job submitted", "job_id", job.ID, "filename", name, "format", format, "bytes", len(sub.Data))
	return job, nil
}

// Enqueue queues an existing job. It fails when the job is already queued or
// running, or when the queue has no room.
func (o *Orchestrator) Enqueue(id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.inFlight[id] {
		return ErrAlreadyQueued
	}
	select {
	case o.queue <- id:
		o.inFlight[id] = true
		return nil
	default:
		return fmt.Errorf("%w (%d)", ErrQueueFull, cap(o.queue))
	}
}

// Status returns a snapshot of the job.
func (o *Orchestrator) Status(ctx context.Context, id string) (*Job, error) {
	return o.repo.Get(ctx, id)
}

// Cancel requests cancellation. The job stops at its next stage boundary.
func (o *Orchestrator) Cancel(ctx context.Context, id string) (*Job, error) {
	job, err := o.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Stage.Terminal() {
		return job, ErrJobFinished
	}
	if err := o.repo.RequestCancel(ctx, id); err != nil {
		return nil, err
	}
	ev := JobEvent{Time: time.Now().UTC(), Stage: job.Stage, Kind: EventCancelRequested}
	if err := o.repo.AppendEvent(ctx, id, ev); err != nil {
		o.log.Warn("append cancel event failed", "job_id", id, "error", err)
	}
	o.log.Info("cancel requested", "job_id", id, "stage", job.Stage)
	return o.repo.Get(ctx, id)
}

// Artifacts lists what a job has stored so far.
func (o *Orchestrator) Artifacts(ctx context.Context, id string) ([]artifact.Object, error) {
	if _, err := o.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	return o.store.List(ctx, artifact.JobPrefix(id))
}

// OpenArtifact opens one artifact by its key relative to the job's prefix.
func (o *Orchestrator) OpenArtifact(ctx context.Context, id, name string) (io.ReadCloser, error) {
	if _, err := o.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	return o.store.Get(ctx, artifact.JobPrefix(id)+strings.TrimPrefix(name, "/"))
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}
