package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/mathreel/internal/artifact"
	"github.com/dgallion1/mathreel/internal/render"
	"github.com/dgallion1/mathreel/internal/render/beamer"
	"github.com/dgallion1/mathreel/internal/render/ffmpeg"
	"github.com/dgallion1/mathreel/internal/render/tts"
)

// recordingRepo captures every saved progress value.
type recordingRepo struct {
	*MemoryRepository
	mu       sync.Mutex
	progress []int
}

func (r *recordingRepo) Put(ctx context.Context, job *Job) error {
	r.mu.Lock()
	r.progress = append(r.progress, job.Progress)
	r.mu.Unlock()
	return r.MemoryRepository.Put(ctx, job)
}

func (r *recordingRepo) saved() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.progress...)
}

type fakeAudio struct {
	mu       sync.Mutex
	calls    map[int]int
	failures map[int]int // transient failures left per slide
}

func newFakeAudio() *fakeAudio {
	return &fakeAudio{calls: map[int]int{}, failures: map[int]int{}}
}

func (f *fakeAudio) Render(ctx context.Context, in tts.SlideInput, report render.ProgressFunc) (tts.Clip, error) {
	f.mu.Lock()
	f.calls[in.Index]++
	fail := f.failures[in.Index] > 0
	if fail {
		f.failures[in.Index]--
	}
	f.mu.Unlock()
	if fail {
		return tts.Clip{}, render.NewTransient("tts.synthesize", errors.New("status 429"))
	}
	if err := os.WriteFile(in.OutPath, []byte("RIFF"), 0o644); err != nil {
		return tts.Clip{}, render.NewFatal("tts.render", err)
	}
	return tts.Clip{Index: in.Index, Path: in.OutPath, Duration: time.Second, Silent: in.Narration == ""}, nil
}

func (f *fakeAudio) callsFor(i int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[i]
}

func fakeSlides(calls *int, fail func(attempt int) error) render.Adapter[beamer.Input, beamer.Output] {
	return render.AdapterFunc[beamer.Input, beamer.Output](func(ctx context.Context, in beamer.Input, report render.ProgressFunc) (beamer.Output, error) {
		*calls++
		if fail != nil {
			if err := fail(*calls); err != nil {
				return beamer.Output{}, err
			}
		}
		if err := os.MkdirAll(in.WorkDir, 0o755); err != nil {
			return beamer.Output{}, render.NewFatal("beamer.render", err)
		}
		pdf := filepath.Join(in.WorkDir, "slides.pdf")
		os.WriteFile(pdf, []byte("%PDF"), 0o644)
		out := beamer.Output{PDFPath: pdf}
		for i := range in.Plan.Slides {
			img := filepath.Join(in.WorkDir, fmt.Sprintf("slide-%03d.png", i))
			os.WriteFile(img, []byte("png"), 0o644)
			out.Images = append(out.Images, img)
			render.Report(report, float64(i+1)/float64(len(in.Plan.Slides)))
		}
		return out, nil
	})
}

func fakeVideo(hook func(ctx context.Context)) render.Adapter[ffmpeg.Input, ffmpeg.Output] {
	return render.AdapterFunc[ffmpeg.Input, ffmpeg.Output](func(ctx context.Context, in ffmpeg.Input, report render.ProgressFunc) (ffmpeg.Output, error) {
		if hook != nil {
			hook(ctx)
		}
		render.Report(report, 0.5)
		if err := os.WriteFile(in.OutPath, []byte("mp4"), 0o644); err != nil {
			return ffmpeg.Output{}, render.NewFatal("ffmpeg.render", err)
		}
		render.Report(report, 1)
		return ffmpeg.Output{Path: in.OutPath, Duration: time.Duration(len(in.Clips)) * time.Second}, nil
	})
}

type harness struct {
	repo   *recordingRepo
	store  *artifact.LocalStore
	runner *Runner
	orch   *Orchestrator
	audio  *fakeAudio
}

func newHarness(t *testing.T, adapters Adapters, defaults Options) *harness {
	t.Helper()
	store, err := artifact.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	repo := &recordingRepo{MemoryRepository: NewMemoryRepository(time.Hour)}
	audio := newFakeAudio()
	if adapters.Audio == nil {
		adapters.Audio = audio
	}
	if adapters.Video == nil {
		adapters.Video = fakeVideo(nil)
	}
	if adapters.Slides == nil {
		var n int
		adapters.Slides = fakeSlides(&n, nil)
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	runner := NewRunner(repo, store, nil, adapters, RunnerConfig{
		WorkDir:          t.TempDir(),
		AudioConcurrency: 4,
		Retry:            fastPolicy(3),
	}, log)
	if defaults.Language == "" {
		defaults.Language = "en-US"
	}
	orch := NewOrchestrator(Config{Workers: 2, QueueSize: 8, Defaults: defaults}, repo, store, runner, log)
	return &harness{repo: repo, store: store, runner: runner, orch: orch, audio: audio}
}

// submitAndRun queues a document and runs it synchronously.
func (h *harness) submitAndRun(t *testing.T, name, body string) (*Job, error) {
	t.Helper()
	job, err := h.orch.Submit(context.Background(), Submission{Filename: name, Data: []byte(body)})
	require.NoError(t, err)
	runErr := h.runner.Run(context.Background(), job.ID)
	final, err := h.repo.Get(context.Background(), job.ID)
	require.NoError(t, err)
	return final, runErr
}

// sectionsDoc has a root title slide plus n-1 sections.
func sectionsDoc(n int) string {
	var b strings.Builder
	for i := 1; i < n; i++ {
		fmt.Fprintf(&b, "# Section %d\n\nThe value $x^%d$ grows.\n\n", i, i)
	}
	return b.String()
}

func enteredStages(job *Job) []Stage {
	var out []Stage
	for _, ev := range job.Events {
		if ev.Kind == EventStageEntered {
			out = append(out, ev.Stage)
		}
	}
	return out
}

func artifactKinds(job *Job) map[string]int {
	out := map[string]int{}
	for _, a := range job.Artifacts {
		out[a.Kind]++
	}
	return out
}

func TestRunner_CompletesThroughEveryStage(t *testing.T) {
	h := newHarness(t, Adapters{}, Options{})
	job, err := h.submitAndRun(t, "notes.md", sectionsDoc(4))
	require.NoError(t, err)

	assert.Equal(t, StageCompleted, job.Stage)
	assert.Equal(t, 100, job.Progress)
	assert.Nil(t, job.Error)
	assert.Equal(t, 4, job.SlideCount)
	assert.Equal(t, "notes", job.Title)
	assert.Equal(t, []Stage{
		StageUploaded, StageParsing, StagePlanning, StageRenderingSlides,
		StageRenderingAudio, StageRenderingVideo, StageCompleted,
	}, enteredStages(job))

	kinds := artifactKinds(job)
	assert.Equal(t, 1, kinds[ArtifactSource])
	assert.Equal(t, 1, kinds[ArtifactSlides])
	assert.Equal(t, 4, kinds[ArtifactImage])
	assert.Equal(t, 4, kinds[ArtifactAudio])
	assert.Equal(t, 1, kinds[ArtifactVideo])

	rc, err := h.store.Get(context.Background(), artifact.VideoKey(job.ID))
	require.NoError(t, err)
	rc.Close()
}

func TestRunner_ProgressIsMonotonic(t *testing.T) {
	h := newHarness(t, Adapters{}, Options{})
	_, err := h.submitAndRun(t, "notes.md", sectionsDoc(6))
	require.NoError(t, err)

	saved := h.repo.saved()
	require.NotEmpty(t, saved)
	for i := 1; i < len(saved); i++ {
		assert.GreaterOrEqual(t, saved[i], saved[i-1], "progress went backwards at save %d: %v", i, saved)
	}
	assert.LessOrEqual(t, saved[len(saved)-1], 100)
	assert.Equal(t, 100, saved[len(saved)-1])
}

func TestRunner_EmptyDocumentFailsBeforeRendering(t *testing.T) {
	var slideCalls int
	h := newHarness(t, Adapters{Slides: fakeSlides(&slideCalls, nil)}, Options{})
	job, err := h.submitAndRun(t, "blank.md", "\n\n   \n")
	require.Error(t, err)

	assert.Equal(t, StageFailed, job.Stage)
	require.NotNil(t, job.Error)
	assert.Equal(t, StagePlanning, job.Error.Stage)
	assert.Equal(t, ErrorKindEmptyDocument, job.Error.Kind)
	assert.NotContains(t, enteredStages(job), StageRenderingSlides)
	assert.Zero(t, slideCalls)
}

func TestRunner_TransientAudioErrorRetriesOnlyThatSlide(t *testing.T) {
	h := newHarness(t, Adapters{}, Options{})
	h.audio.failures[3] = 1

	job, err := h.submitAndRun(t, "notes.md", sectionsDoc(10))
	require.NoError(t, err)
	require.Equal(t, StageCompleted, job.Stage)
	require.Equal(t, 10, job.SlideCount)

	for i := range 10 {
		want := 1
		if i == 3 {
			want = 2
		}
		assert.Equal(t, want, h.audio.callsFor(i), "slide %d", i)
	}

	var retries []string
	for _, ev := range job.Events {
		if ev.Kind == EventRetryAttempted {
			retries = append(retries, ev.Detail)
		}
	}
	require.Len(t, retries, 1)
	assert.Contains(t, retries[0], "slide 3")
}

func TestRunner_SlideAudioRetriesExhausted(t *testing.T) {
	h := newHarness(t, Adapters{}, Options{})
	h.audio.failures[1] = 10

	job, err := h.submitAndRun(t, "notes.md", sectionsDoc(3))
	require.Error(t, err)
	assert.Equal(t, StageFailed, job.Stage)
	require.NotNil(t, job.Error)
	assert.Equal(t, StageRenderingAudio, job.Error.Stage)
	assert.Equal(t, ErrorKindRetriesExhausted, job.Error.Kind)
	assert.Contains(t, job.Error.Message, "retries exhausted")
	// Exhausted slide retries fail the stage outright.
	assert.Equal(t, 3, h.audio.callsFor(1))
}

func TestRunner_CancelDuringVideoKeepsArtifacts(t *testing.T) {
	var h *harness
	var jobID string
	video := fakeVideo(func(ctx context.Context) {
		_, err := h.orch.Cancel(ctx, jobID)
		require.NoError(t, err)
	})
	h = newHarness(t, Adapters{Video: video}, Options{})

	job, err := h.orch.Submit(context.Background(), Submission{Filename: "notes.md", Data: []byte(sectionsDoc(3))})
	require.NoError(t, err)
	jobID = job.ID
	require.ErrorIs(t, h.runner.Run(context.Background(), job.ID), ErrCancelled)

	final, err := h.repo.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, StageCancelled, final.Stage)
	assert.True(t, final.CancelRequested)
	assert.Nil(t, final.Error)

	kinds := artifactKinds(final)
	assert.Equal(t, 1, kinds[ArtifactSlides])
	assert.Equal(t, 3, kinds[ArtifactAudio])

	objs, err := h.store.List(context.Background(), artifact.JobPrefix(job.ID))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(objs), 1+1+3+3)

	var sawCancel bool
	for _, ev := range final.Events {
		if ev.Kind == EventCancelRequested {
			sawCancel = true
			assert.Equal(t, StageRenderingVideo, ev.Stage)
		}
	}
	assert.True(t, sawCancel)
}

func TestRunner_CancelBeforeStart(t *testing.T) {
	h := newHarness(t, Adapters{}, Options{})
	job, err := h.orch.Submit(context.Background(), Submission{Filename: "notes.md", Data: []byte(sectionsDoc(2))})
	require.NoError(t, err)
	_, err = h.orch.Cancel(context.Background(), job.ID)
	require.NoError(t, err)

	require.ErrorIs(t, h.runner.Run(context.Background(), job.ID), ErrCancelled)
	final, _ := h.repo.Get(context.Background(), job.ID)
	assert.Equal(t, StageCancelled, final.Stage)
	assert.NotContains(t, enteredStages(final), StageParsing)
}

func TestRunner_FatalErrorIsNotRetried(t *testing.T) {
	var calls int
	slides := fakeSlides(&calls, func(int) error { return render.Fatalf("beamer.compile", "Undefined control sequence") })
	h := newHarness(t, Adapters{Slides: slides}, Options{})

	job, err := h.submitAndRun(t, "notes.md", sectionsDoc(2))
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, StageFailed, job.Stage)
	require.NotNil(t, job.Error)
	assert.Equal(t, StageRenderingSlides, job.Error.Stage)
	assert.Equal(t, string(render.Fatal), job.Error.Kind)
	assert.Contains(t, job.Error.Message, "Undefined control sequence")
}

func TestRunner_TransientStageErrorIsRetried(t *testing.T) {
	var calls int
	slides := fakeSlides(&calls, func(n int) error {
		if n == 1 {
			return render.NewTransient("beamer.compile", errors.New("resource busy"))
		}
		return nil
	})
	h := newHarness(t, Adapters{Slides: slides}, Options{})

	job, err := h.submitAndRun(t, "notes.md", sectionsDoc(2))
	require.NoError(t, err)
	assert.Equal(t, StageCompleted, job.Stage)
	assert.Equal(t, 2, calls)

	var kinds []EventKind
	for _, ev := range job.Events {
		if ev.Stage == StageRenderingSlides {
			kinds = append(kinds, ev.Kind)
		}
	}
	assert.Equal(t, []EventKind{EventStageEntered, EventErrorRaised, EventRetryAttempted, EventStageExited}, kinds)
}

func TestRunner_StageTimeoutIsTransientUntilExhausted(t *testing.T) {
	var calls int
	blocking := render.AdapterFunc[beamer.Input, beamer.Output](func(ctx context.Context, in beamer.Input, report render.ProgressFunc) (beamer.Output, error) {
		calls++
		<-ctx.Done()
		return beamer.Output{}, render.FromContext(ctx, "beamer.compile", ctx.Err())
	})
	h := newHarness(t, Adapters{Slides: blocking}, Options{
		MaxAttempts:   2,
		StageTimeouts: map[Stage]time.Duration{StageRenderingSlides: 20 * time.Millisecond},
	})

	job, err := h.submitAndRun(t, "notes.md", sectionsDoc(2))
	require.Error(t, err)
	assert.Equal(t, 2, calls)
	require.NotNil(t, job.Error)
	assert.Equal(t, ErrorKindRetriesExhausted, job.Error.Kind)
	assert.Contains(t, job.Error.Message, "timed out")
}

func TestRunner_UnparsableUploadFails(t *testing.T) {
	h := newHarness(t, Adapters{}, Options{})
	job, err := h.orch.Submit(context.Background(), Submission{Filename: "paper.pdf", Data: []byte("not a pdf")})
	require.NoError(t, err)
	require.Error(t, h.runner.Run(context.Background(), job.ID))

	final, _ := h.repo.Get(context.Background(), job.ID)
	assert.Equal(t, StageFailed, final.Stage)
	assert.Equal(t, StageParsing, final.Error.Stage)
}

func TestRunner_TerminalJobIsSkipped(t *testing.T) {
	h := newHarness(t, Adapters{}, Options{})
	job, err := h.submitAndRun(t, "notes.md", sectionsDoc(2))
	require.NoError(t, err)
	events := len(job.Events)

	require.NoError(t, h.runner.Run(context.Background(), job.ID))
	again, _ := h.repo.Get(context.Background(), job.ID)
	assert.Len(t, again.Events, events)
}
