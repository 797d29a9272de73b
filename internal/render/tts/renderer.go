package tts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgallion1/mathreel/internal/render"
)

// SlideInput is the narration for one slide.
type SlideInput struct {
	Index     int
	Narration string
	Voice     string
	Language  string
	OutPath   string
}

// Clip is a rendered audio file.
type Clip struct {
	Index    int           `json:"index"`
	Path     string        `json:"path"`
	Duration time.Duration `json:"duration"`
	Silent   bool          `json:"silent,omitempty"`
}

// Renderer is the audio adapter. Empty narration produces a silent clip without
// calling the provider.
type Renderer struct {
	Synth          Synthesizer
	SilentDuration time.Duration
}

var _ render.Adapter[SlideInput, Clip] = (*Renderer)(nil)

func (r *Renderer) Render(ctx context.Context, in SlideInput, report render.ProgressFunc) (Clip, error) {
	const op = "tts.render"
	clip := Clip{Index: in.Index, Path: in.OutPath}

	var audio []byte
	if strings.TrimSpace(in.Narration) == "" {
		d := r.SilentDuration
		if d <= 0 {
			d = 3 * time.Second
		}
		audio = SilentWAV(d, 24000)
		clip.Silent = true
	} else {
		var err error
		audio, err = r.Synth.Synthesize(ctx, Request{Text: in.Narration, Voice: in.Voice, Language: in.Language})
		if err != nil {
			return Clip{}, err
		}
	}

	d, err := WAVDuration(audio)
	if err != nil {
		return Clip{}, render.NewFatal(op, fmt.Errorf("slide %d: %w", in.Index, err))
	}
	clip.Duration = d

	if err := os.MkdirAll(filepath.Dir(in.OutPath), 0o755); err != nil {
		return Clip{}, render.NewFatal(op, fmt.Errorf("create clip dir: %w", err))
	}
	if err := os.WriteFile(in.OutPath, audio, 0o644); err != nil {
		return Clip{}, render.NewFatal(op, fmt.Errorf("write clip: %w", err))
	}
	render.Report(report, 1)
	return clip, nil
}
