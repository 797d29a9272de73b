package ffmpeg

import (
	"context"
	"time"

	"github.com/dgallion1/mathreel/internal/render"
	"github.com/dgallion1/mathreel/internal/render/tts"
	"github.com/dgallion1/mathreel/internal/slideplan"
)

// Input pairs every slide image with its clip.
type Input struct {
	Plan            *slideplan.SlidePlan
	Images          []string
	Clips           []tts.Clip // indexed by slide index
	IncludeChapters bool
	Quality         string // preset name; empty keeps the encoder default
	OutPath         string
}

// Output describes the assembled video.
type Output struct {
	Path     string
	Duration time.Duration
	Chapters []Chapter
}

// Renderer is the video adapter.
type Renderer struct {
	Encoder Encoder
}

var _ render.Adapter[Input, Output] = (*Renderer)(nil)

func (r *Renderer) Render(ctx context.Context, in Input, report render.ProgressFunc) (Output, error) {
	const op = "ffmpeg.render"
	if in.Plan == nil {
		return Output{}, render.Fatalf(op, "missing slide plan")
	}
	n := len(in.Plan.Slides)
	if len(in.Images) != n || len(in.Clips) != n {
		return Output{}, render.Fatalf(op, "have %d images and %d clips for %d slides", len(in.Images), len(in.Clips), n)
	}

	segments := make([]Segment, n)
	durations := make([]time.Duration, n)
	var total time.Duration
	for i, clip := range in.Clips {
		if clip.Index != i {
			return Output{}, render.Fatalf(op, "clip %d stored at position %d", clip.Index, i)
		}
		segments[i] = Segment{Image: in.Images[i], Audio: clip.Path, Duration: clip.Duration, Silent: clip.Silent}
		durations[i] = clip.Duration
		total += clip.Duration
	}
	render.Report(report, 0.05)

	meta := Meta{Title: in.Plan.Title}
	if in.Quality != "" {
		p, err := PresetFor(in.Quality)
		if err != nil {
			return Output{}, render.NewFatal(op, err)
		}
		meta.Preset = &p
	}
	if in.IncludeChapters {
		meta.Chapters = BuildChapters(in.Plan.Slides, durations)
	}
	encodeProgress := func(f float64) { render.Report(report, 0.05+0.95*f) }
	if err := r.Encoder.Encode(ctx, segments, meta, in.OutPath, encodeProgress); err != nil {
		return Output{}, err
	}
	render.Report(report, 1)
	return Output{Path: in.OutPath, Duration: total, Chapters: meta.Chapters}, nil
}
