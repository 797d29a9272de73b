package pipeline

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"
)

// tracker owns the working copy of a job during a run. It serialises updates from
// concurrent stage work, keeps progress monotonic inside the current stage's band,
// and mirrors every change to the repository.
type tracker struct {
	mu   sync.Mutex
	job  *Job
	repo Repository
	log  *slog.Logger
	now  func() time.Time
}

func newTracker(job *Job, repo Repository, log *slog.Logger) *tracker {
	return &tracker{job: job, repo: repo, log: log, now: time.Now}
}

// snapshot returns a copy of the working job.
func (t *tracker) snapshot() *Job {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.job.Clone()
}

func (t *tracker) enter(ctx context.Context, stage Stage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.job.Stage = stage
	if b, ok := bands[stage]; ok && t.job.Progress < b.Lo {
		t.job.Progress = b.Lo
	}
	t.eventLocked(ctx, stage, EventStageEntered, "")
	t.saveLocked(ctx)
}

func (t *tracker) exit(ctx context.Context, stage Stage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if b, ok := bands[stage]; ok && t.job.Progress < b.Hi {
		t.job.Progress = b.Hi
	}
	t.eventLocked(ctx, stage, EventStageExited, "")
	t.saveLocked(ctx)
}

// progress maps a stage-local fraction onto the stage band. Values that would
// move progress backwards are ignored.
func (t *tracker) progress(ctx context.Context, stage Stage, fraction float64) {
	b, ok := bands[stage]
	if !ok {
		return
	}
	fraction = math.Max(0, math.Min(1, fraction))
	p := b.Lo + int(math.Floor(fraction*float64(b.Hi-b.Lo)))

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.job.Stage != stage || p <= t.job.Progress {
		return
	}
	t.job.Progress = p
	t.saveLocked(ctx)
}

func (t *tracker) event(ctx context.Context, stage Stage, kind EventKind, detail string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.eventLocked(ctx, stage, kind, detail)
}

func (t *tracker) update(ctx context.Context, fn func(j *Job)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(t.job)
	t.saveLocked(ctx)
}

// addArtifact records a, replacing any earlier artifact with the same key.
func (t *tracker) addArtifact(ctx context.Context, a Artifact) {
	t.update(ctx, func(j *Job) {
		for i := range j.Artifacts {
			if j.Artifacts[i].Key == a.Key {
				j.Artifacts[i] = a
				return
			}
		}
		j.Artifacts = append(j.Artifacts, a)
	})
}

func (t *tracker) complete(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.job.Stage = StageCompleted
	t.job.Progress = 100
	t.eventLocked(ctx, StageCompleted, EventStageEntered, "")
	t.saveLocked(ctx)
}

func (t *tracker) fail(ctx context.Context, jerr JobError) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.job.Stage = StageFailed
	t.job.Error = &jerr
	t.eventLocked(ctx, StageFailed, EventStageEntered, jerr.Message)
	t.saveLocked(ctx)
}

func (t *tracker) cancelled(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.job.Stage = StageCancelled
	t.job.CancelRequested = true
	t.eventLocked(ctx, StageCancelled, EventStageEntered, "")
	t.saveLocked(ctx)
}

func (t *tracker) eventLocked(ctx context.Context, stage Stage, kind EventKind, detail string) {
	ev := JobEvent{Time: t.now().UTC(), Stage: stage, Kind: kind, Detail: detail}
	t.job.Events = append(t.job.Events, ev)
	if err := t.repo.AppendEvent(ctx, t.job.ID, ev); err != nil {
		t.log.Error("append event failed", "kind", kind, "error", err)
	}
}

func (t *tracker) saveLocked(ctx context.Context) {
	t.job.UpdatedAt = t.now().UTC()
	if err := t.repo.Put(ctx, t.job); err != nil {
		t.log.Error("save job failed", "stage", t.job.Stage, "error", err)
	}
}
