package ffmpeg

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/mathreel/internal/doctree"
	"github.com/dgallion1/mathreel/internal/render"
	"github.com/dgallion1/mathreel/internal/render/tts"
	"github.com/dgallion1/mathreel/internal/slideplan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func plan() *slideplan.SlidePlan {
	return &slideplan.SlidePlan{Title: "Calc", Slides: []slideplan.Slide{
		{Index: 0, Title: "Calc", Depth: doctree.RootDepth},
		{Index: 1, Title: "Limits", Depth: 1, ChapterPath: []string{"Limits"}},
		{Index: 2, Title: "Limits (continued)", Depth: 1, ChapterPath: []string{"Limits"}, Continued: true},
		{Index: 3, Title: "Epsilon", Depth: 2, ChapterPath: []string{"Limits", "Epsilon"}},
	}}
}

func TestBuildChapters(t *testing.T) {
	chapters := BuildChapters(plan().Slides, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second, 4 * time.Second})
	require.Len(t, chapters, 3)
	assert.Equal(t, Chapter{Title: "Calc", Start: 0, End: time.Second}, chapters[0])
	assert.Equal(t, Chapter{Title: "Limits", Start: time.Second, End: 6 * time.Second}, chapters[1])
	assert.Equal(t, Chapter{Title: "Limits / Epsilon", Start: 6 * time.Second, End: 10 * time.Second}, chapters[2])
}

func TestMetadata(t *testing.T) {
	got := Metadata("a=b", []Chapter{{Title: "One; two", Start: 0, End: 1500 * time.Millisecond}})
	want := ";FFMETADATA1\ntitle=a\\=b\n[CHAPTER]\nTIMEBASE=1/1000\nSTART=0\nEND=1500\ntitle=One\\; two\n"
	assert.Equal(t, want, got)
}

func TestPresetFor(t *testing.T) {
	p, err := PresetFor("")
	require.NoError(t, err)
	assert.Equal(t, 1920, p.Width)

	p, err = PresetFor("4k")
	require.NoError(t, err)
	assert.Equal(t, 2160, p.Height)

	_, err = PresetFor("8k")
	assert.Error(t, err)
	assert.Equal(t, []string{"1080p", "4k", "720p"}, PresetNames())
}

func TestSegmentArgs(t *testing.T) {
	p, _ := PresetFor("720p")
	args := strings.Join(segmentArgs(Segment{Image: "s.png", Audio: "a.wav", Duration: 1500 * time.Millisecond}, p, "out.mp4"), " ")
	assert.Contains(t, args, "-loop 1 -i s.png -i a.wav")
	assert.Contains(t, args, "scale=1280:720")
	assert.Contains(t, args, "-t 1.500")

	silent := strings.Join(segmentArgs(Segment{Image: "s.png", Audio: "a.wav", Duration: time.Second, Silent: true}, p, "out.mp4"), " ")
	assert.Contains(t, silent, "anullsrc")
	assert.NotContains(t, silent, "a.wav")
}

func TestConcatArgs(t *testing.T) {
	assert.NotContains(t, strings.Join(concatArgs("l.txt", "", "o.mp4"), " "), "map_chapters")
	assert.Contains(t, strings.Join(concatArgs("l.txt", "m.txt", "o.mp4"), " "), "-i m.txt -map 0 -map_metadata 1 -map_chapters 1")
}

type fakeEncoder struct {
	segments []Segment
	meta     Meta
	err      error
}

func (f *fakeEncoder) Encode(ctx context.Context, segments []Segment, meta Meta, outPath string, report render.ProgressFunc) error {
	f.segments, f.meta = segments, meta
	render.Report(report, 1)
	return f.err
}

func clips(n int) []tts.Clip {
	out := make([]tts.Clip, n)
	for i := range out {
		out[i] = tts.Clip{Index: i, Path: "clip.wav", Duration: time.Second, Silent: i == 0}
	}
	return out
}

func TestRenderer(t *testing.T) {
	enc := &fakeEncoder{}
	r := &Renderer{Encoder: enc}
	var last float64
	out, err := r.Render(context.Background(), Input{
		Plan:            plan(),
		Images:          []string{"1.png", "2.png", "3.png", "4.png"},
		Clips:           clips(4),
		IncludeChapters: true,
		OutPath:         filepath.Join("/tmp", "video.mp4"),
	}, func(f float64) { last = f })
	require.NoError(t, err)
	assert.Equal(t, 4*time.Second, out.Duration)
	assert.Len(t, out.Chapters, 3)
	assert.Len(t, enc.segments, 4)
	assert.True(t, enc.segments[0].Silent)
	assert.Equal(t, "Calc", enc.meta.Title)
	assert.Equal(t, 1.0, last)
}

func TestRenderer_ChaptersOff(t *testing.T) {
	enc := &fakeEncoder{}
	_, err := (&Renderer{Encoder: enc}).Render(context.Background(), Input{
		Plan: plan(), Images: make([]string, 4), Clips: clips(4),
	}, nil)
	require.NoError(t, err)
	assert.Empty(t, enc.meta.Chapters)
}

func TestRenderer_QualityOverride(t *testing.T) {
	enc := &fakeEncoder{}
	_, err := (&Renderer{Encoder: enc}).Render(context.Background(), Input{
		Plan: plan(), Images: make([]string, 4), Clips: clips(4), Quality: "720p",
	}, nil)
	require.NoError(t, err)
	require.NotNil(t, enc.meta.Preset)
	assert.Equal(t, 1280, enc.meta.Preset.Width)

	_, err = (&Renderer{Encoder: enc}).Render(context.Background(), Input{
		Plan: plan(), Images: make([]string, 4), Clips: clips(4), Quality: "8k",
	}, nil)
	require.Error(t, err)
	assert.False(t, render.IsTransient(err))
}

func TestRenderer_MismatchedInputsAreFatal(t *testing.T) {
	_, err := (&Renderer{Encoder: &fakeEncoder{}}).Render(context.Background(), Input{
		Plan: plan(), Images: make([]string, 3), Clips: clips(4),
	}, nil)
	require.Error(t, err)
	assert.False(t, render.IsTransient(err))
}

func TestFFmpeg_MissingBinaryIsFatal(t *testing.T) {
	dir := t.TempDir()
	f := &FFmpeg{Path: filepath.Join(dir, "no-ffmpeg")}
	err := f.Encode(context.Background(), []Segment{{Image: "a.png", Duration: time.Second, Silent: true}}, Meta{}, filepath.Join(dir, "out.mp4"), nil)
	require.Error(t, err)
	assert.False(t, render.IsTransient(err))
	assert.Contains(t, err.Error(), "not found")
}

func TestFFmpeg_ConcatListWithRelativeWorkDir(t *testing.T) {
	bin, err := exec.LookPath("true")
	if err != nil {
		t.Skip("true(1) not available")
	}
	t.Chdir(t.TempDir())

	f := &FFmpeg{Path: bin}
	segs := []Segment{
		{Image: "a.png", Duration: time.Second, Silent: true},
		{Image: "b.png", Audio: "b.wav", Duration: time.Second},
	}
	require.NoError(t, f.Encode(context.Background(), segs, Meta{}, filepath.Join("work", "job1", "video.mp4"), nil))

	list, err := os.ReadFile(filepath.Join("work", "job1", "segments", "concat.txt"))
	require.NoError(t, err)
	assert.Equal(t, "file 'seg-000.mp4'\nfile 'seg-001.mp4'\n", string(list))
}
