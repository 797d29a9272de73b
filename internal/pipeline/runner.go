package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/mathreel/internal/artifact"
	"github.com/dgallion1/mathreel/internal/doctree"
	"github.com/dgallion1/mathreel/internal/mathspeech"
	"github.com/dgallion1/mathreel/internal/parser"
	"github.com/dgallion1/mathreel/internal/render"
	"github.com/dgallion1/mathreel/internal/render/beamer"
	"github.com/dgallion1/mathreel/internal/render/ffmpeg"
	"github.com/dgallion1/mathreel/internal/render/tts"
	"github.com/dgallion1/mathreel/internal/slideplan"
)

// Adapters are the render backends a Runner drives.
type Adapters struct {
	Slides render.Adapter[beamer.Input, beamer.Output]
	Audio  render.Adapter[tts.SlideInput, tts.Clip]
	Video  render.Adapter[ffmpeg.Input, ffmpeg.Output]
}

// RunnerConfig tunes job execution.
type RunnerConfig struct {
	WorkDir          string // per-job scratch directories live here
	AssetDir         string // figure lookups for the slide renderer
	AudioConcurrency int
	Retry            RetryPolicy
	Plan             slideplan.Config
	KeepWorkDir      bool
}

// Job error kinds beyond render.Transient and render.Fatal.
const (
	ErrorKindEmptyDocument     = "empty_document"
	ErrorKindUnsupportedFormat = "unsupported_format"
	ErrorKindRetriesExhausted  = "retries_exhausted"
	ErrorKindInterrupted       = "interrupted"
)

// Runner executes one job through every stage.
type Runner struct {
	repo     Repository
	store    artifact.Store
	ingester *parser.Ingester
	adapters Adapters
	cfg      RunnerConfig
	log      *slog.Logger
}

func NewRunner(repo Repository, store artifact.Store, ingester *parser.Ingester, adapters Adapters, cfg RunnerConfig, log *slog.Logger) *Runner {
	if ingester == nil {
		ingester = &parser.Ingester{}
	}
	if cfg.AudioConcurrency < 1 {
		cfg.AudioConcurrency = 1
	}
	if cfg.Retry.MaxAttempts < 1 {
		cfg.Retry = DefaultRetryPolicy()
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = os.TempDir()
	}
	return &Runner{
		repo:     repo,
		store:    store,
		ingester: ingester,
		adapters: adapters,
		cfg:      cfg,
		log:      log,
	}
}

// run holds the intermediate results of one job. Results from finished stages
// survive retries of later ones.
type run struct {
	id   string
	opts Options
	tr   *tracker
	log  *slog.Logger
	dir  string

	root   *doctree.ChapterNode
	plan   *slideplan.SlidePlan
	slides beamer.Output
	video  ffmpeg.Output

	mu    sync.Mutex
	clips map[int]tts.Clip
}

func (st *run) reporter(ctx context.Context, stage Stage) render.ProgressFunc {
	return func(f float64) { st.tr.progress(ctx, stage, f) }
}

func (st *run) putClip(c tts.Clip) int {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.clips[c.Index] = c
	return len(st.clips)
}

func (st *run) hasClip(i int) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	_, ok := st.clips[i]
	return ok
}

type stageFunc func(ctx context.Context, st *run) error

// ErrCancelled is returned by Run for jobs that stopped on request. It is not a
// failure.
var ErrCancelled = errors.New("job cancelled")

// Run drives a job from its current state to a terminal one. The returned error is
// the failure recorded on the job, ErrCancelled, or nil when it completed.
func (r *Runner) Run(ctx context.Context, jobID string) error {
	job, err := r.repo.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Stage.Terminal() {
		return nil
	}
	log := r.log.With("job_id", job.ID)
	st := &run{
		id:    job.ID,
		opts:  job.Options,
		tr:    newTracker(job, r.repo, log),
		log:   log,
		dir:   filepath.Join(r.cfg.WorkDir, job.ID),
		clips: make(map[int]tts.Clip),
	}
	if err := os.MkdirAll(st.dir, 0o755); err != nil {
		st.tr.fail(ctx, JobError{Stage: StageParsing, Kind: string(render.Fatal), Message: err.Error()})
		return err
	}
	if !r.cfg.KeepWorkDir {
		defer os.RemoveAll(st.dir)
	}

	steps := []struct {
		stage Stage
		fn    stageFunc
	}{
		{StageParsing, r.parse},
		{StagePlanning, r.planSlides},
		{StageRenderingSlides, r.renderSlides},
		{StageRenderingAudio, r.renderAudio},
		{StageRenderingVideo, r.renderVideo},
	}
	log.Info("job started", "filename", job.Filename, "format", job.Format)
	for _, step := range steps {
		if r.cancelRequested(ctx, st) {
			st.tr.cancelled(context.WithoutCancel(ctx))
			log.Info("job cancelled", "before", step.stage)
			return ErrCancelled
		}
		st.tr.enter(ctx, step.stage)
		if err := r.runStage(ctx, st, step.stage, step.fn); err != nil {
			jerr := jobError(step.stage, err)
			st.tr.fail(context.WithoutCancel(ctx), jerr)
			log.Error("job failed", "stage", step.stage, "kind", jerr.Kind, "error", err)
			return err
		}
		st.tr.exit(ctx, step.stage)
	}
	if r.cancelRequested(ctx, st) {
		st.tr.cancelled(context.WithoutCancel(ctx))
		log.Info("job cancelled", "before", StageCompleted)
		return ErrCancelled
	}
	st.tr.complete(ctx)
	log.Info("job completed", "slides", len(st.plan.Slides), "duration", st.video.Duration)
	return nil
}

func (r *Runner) cancelRequested(ctx context.Context, st *run) bool {
	ok, err := r.repo.CancelRequested(ctx, st.id)
	if err != nil {
		st.log.Warn("cancel check failed", "error", err)
		return false
	}
	return ok
}

func (r *Runner) policy(st *run) RetryPolicy {
	p := r.cfg.Retry
	if st.opts.MaxAttempts > 0 {
		p.MaxAttempts = st.opts.MaxAttempts
	}
	return p
}

// runStage retries fn under the job's policy. Each attempt gets the stage's full
// timeout; running out of time is transient.
func (r *Runner) runStage(ctx context.Context, st *run, stage Stage, fn stageFunc) error {
	timeout := st.opts.StageTimeouts[stage]
	return r.policy(st).Do(ctx, string(stage), func(ctx context.Context, attempt int) error {
		actx, cancel := ctx, context.CancelFunc(func() {})
		if timeout > 0 {
			actx, cancel = context.WithTimeout(ctx, timeout)
		}
		defer cancel()

		err := fn(actx, st)
		if err == nil {
			return nil
		}
		if errors.Is(actx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			err = &render.AdapterError{
				Kind:    render.Transient,
				Op:      string(stage),
				Message: fmt.Sprintf("timed out after %s", timeout),
				Err:     err,
			}
		}
		st.tr.event(ctx, stage, EventErrorRaised, err.Error())
		st.log.Warn("stage attempt failed", "stage", stage, "attempt", attempt, "transient", IsRetryable(err), "error", err)
		return err
	}, func(attempt int, err error) {
		st.tr.event(ctx, stage, EventRetryAttempted, fmt.Sprintf("attempt %d", attempt+1))
	})
}

func jobError(stage Stage, err error) JobError {
	kind := string(render.Fatal)
	var unsupported *doctree.UnsupportedFormatError
	switch {
	case errors.Is(err, slideplan.ErrEmptyDocument):
		kind = ErrorKindEmptyDocument
	case errors.As(err, &unsupported):
		kind = ErrorKindUnsupportedFormat
	case errors.Is(err, ErrRetriesExhausted):
		kind = ErrorKindRetriesExhausted
	case errors.Is(err, context.Canceled):
		kind = ErrorKindInterrupted
	}
	return JobError{Stage: stage, Kind: kind, Message: err.Error()}
}

func (r *Runner) parse(ctx context.Context, st *run) error {
	job := st.tr.snapshot()
	rc, err := r.store.Get(ctx, artifact.SourceKey(job.ID, job.Filename))
	if err != nil {
		return storeError(ctx, "artifact.get", err)
	}
	raw, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return storeError(ctx, "artifact.get", err)
	}
	st.tr.progress(ctx, StageParsing, 0.2)

	doc, err := r.ingester.Ingest(ctx, job.Format, job.Filename, raw, nil)
	if err != nil {
		if ctx.Err() != nil {
			return render.FromContext(ctx, "parse.ingest", err)
		}
		return render.NewFatal("parse.ingest", err)
	}
	st.tr.progress(ctx, StageParsing, 0.5)

	root, err := parser.Extract(doc)
	if err != nil {
		return render.NewFatal("parse.extract", err)
	}
	st.root = root
	st.tr.update(ctx, func(j *Job) { j.Title = root.Title })
	st.tr.progress(ctx, StageParsing, 1)
	st.log.Info("parsed document", "chapters", root.Count(), "height", root.Height())
	return nil
}

func (r *Runner) planSlides(ctx context.Context, st *run) error {
	narrated := mathspeech.ForLanguage(st.opts.Language).NarrateTree(st.root)
	st.tr.progress(ctx, StagePlanning, 0.5)

	cfg := r.cfg.Plan
	cfg.TemplateID = st.opts.TemplateID
	plan, err := slideplan.Build(st.root, cfg)
	if err != nil {
		return render.NewFatal("slideplan.build", err)
	}
	st.plan = plan
	st.tr.update(ctx, func(j *Job) { j.SlideCount = len(plan.Slides) })
	st.tr.progress(ctx, StagePlanning, 1)
	st.log.Info("planned slides", "slides", len(plan.Slides), "narrated_math", narrated)
	return nil
}

func (r *Runner) renderSlides(ctx context.Context, st *run) error {
	out, err := r.adapters.Slides.Render(ctx, beamer.Input{
		Plan:     st.plan,
		WorkDir:  filepath.Join(st.dir, "slides"),
		AssetDir: r.cfg.AssetDir,
	}, st.reporter(ctx, StageRenderingSlides))
	if err != nil {
		return err
	}
	if err := r.persist(ctx, st, Artifact{Kind: ArtifactSlides, Key: artifact.SlidesPDFKey(st.id)}, out.PDFPath); err != nil {
		return err
	}
	for i, img := range out.Images {
		if err := r.persist(ctx, st, Artifact{Kind: ArtifactImage, Key: artifact.SlideImageKey(st.id, i), Index: i}, img); err != nil {
			return err
		}
	}
	st.slides = out
	return nil
}

// renderAudio fans out one clip per slide. Each slide retries on its own, and
// slides that already have a clip are skipped when the stage itself is retried.
func (r *Runner) renderAudio(ctx context.Context, st *run) error {
	dir := filepath.Join(st.dir, "audio")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return render.NewFatal("tts.render", err)
	}
	total := len(st.plan.Slides)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.AudioConcurrency)
	for i, s := range st.plan.Slides {
		if st.hasClip(i) {
			continue
		}
		in := tts.SlideInput{
			Index:     i,
			Narration: s.Narration,
			Voice:     st.opts.Voice,
			Language:  st.opts.Language,
			OutPath:   filepath.Join(dir, fmt.Sprintf("clip-%03d.wav", i)),
		}
		g.Go(func() error {
			clip, err := r.renderClip(gctx, st, in)
			if err != nil {
				return err
			}
			if err := r.persist(gctx, st, Artifact{Kind: ArtifactAudio, Key: artifact.ClipKey(st.id, i), Index: i}, clip.Path); err != nil {
				return err
			}
			done := st.putClip(clip)
			st.tr.progress(ctx, StageRenderingAudio, float64(done)/float64(total))
			return nil
		})
	}
	return g.Wait()
}

func (r *Runner) renderClip(ctx context.Context, st *run, in tts.SlideInput) (tts.Clip, error) {
	var clip tts.Clip
	err := r.policy(st).Do(ctx, "tts.slide", func(ctx context.Context, attempt int) error {
		var err error
		clip, err = r.adapters.Audio.Render(ctx, in, nil)
		return err
	}, func(attempt int, err error) {
		st.tr.event(ctx, StageRenderingAudio, EventRetryAttempted, fmt.Sprintf("slide %d attempt %d: %v", in.Index, attempt+1, err))
		st.log.Warn("retrying slide audio", "slide", in.Index, "attempt", attempt, "error", err)
	})
	return clip, err
}

func (r *Runner) renderVideo(ctx context.Context, st *run) error {
	clips := make([]tts.Clip, len(st.plan.Slides))
	st.mu.Lock()
	for i := range clips {
		c, ok := st.clips[i]
		if !ok {
			st.mu.Unlock()
			return render.Fatalf("ffmpeg.render", "missing audio for slide %d", i)
		}
		clips[i] = c
	}
	st.mu.Unlock()

	out, err := r.adapters.Video.Render(ctx, ffmpeg.Input{
		Plan:            st.plan,
		Images:          st.slides.Images,
		Clips:           clips,
		IncludeChapters: st.opts.IncludeChapters,
		Quality:         st.opts.Quality,
		OutPath:         filepath.Join(st.dir, "video.mp4"),
	}, st.reporter(ctx, StageRenderingVideo))
	if err != nil {
		return err
	}
	if err := r.persist(ctx, st, Artifact{Kind: ArtifactVideo, Key: artifact.VideoKey(st.id)}, out.Path); err != nil {
		return err
	}
	st.video = out
	return nil
}

// persist uploads a local file and records it on the job.
func (r *Runner) persist(ctx context.Context, st *run, a Artifact, path string) error {
	obj, err := artifact.PutFile(ctx, r.store, a.Key, path)
	if err != nil {
		return storeError(ctx, "artifact.put", err)
	}
	a.Size = obj.Size
	st.tr.addArtifact(ctx, a)
	return nil
}

// storeError classifies artifact store failures. Missing objects are fatal; store
// outages are worth another attempt.
func storeError(ctx context.Context, op string, err error) error {
	if errors.Is(err, artifact.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		return render.NewFatal(op, err)
	}
	if ctx.Err() != nil {
		return render.FromContext(ctx, op, err)
	}
	return render.NewTransient(op, err)
}
