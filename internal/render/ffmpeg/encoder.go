// Package ffmpeg is the video adapter: one still-image segment per slide, joined
// with the concat demuxer and optionally tagged with chapter marks.
package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dgallion1/mathreel/internal/render"
)

// Segment is one slide's picture and sound.
type Segment struct {
	Image    string
	Audio    string
	Duration time.Duration
	Silent   bool // use a generated silent track instead of Audio
}

// Encoder assembles segments into a single video.
type Encoder interface {
	Encode(ctx context.Context, segments []Segment, meta Meta, outPath string, report render.ProgressFunc) error
}

// Meta carries the container metadata; Chapters is empty when chapters are off.
// Preset, when set, overrides the encoder's own preset for this run.
type Meta struct {
	Title    string
	Chapters []Chapter
	Preset   *Preset
}

// FFmpeg encodes with the ffmpeg binary.
type FFmpeg struct {
	Path   string
	Preset Preset
}

func (f *FFmpeg) bin() string {
	if f.Path == "" {
		return "ffmpeg"
	}
	return f.Path
}

func (f *FFmpeg) Encode(ctx context.Context, segments []Segment, meta Meta, outPath string, report render.ProgressFunc) error {
	const op = "ffmpeg.encode"
	if len(segments) == 0 {
		return render.Fatalf(op, "no segments")
	}
	preset := f.Preset
	if meta.Preset != nil {
		preset = *meta.Preset
	}
	if preset.Width == 0 {
		preset, _ = PresetFor(DefaultPreset)
	}

	workDir := filepath.Join(filepath.Dir(outPath), "segments")
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return render.NewFatal(op, fmt.Errorf("create segment dir: %w", err))
	}

	var list strings.Builder
	for i, seg := range segments {
		segPath := filepath.Join(workDir, fmt.Sprintf("seg-%03d.mp4", i))
		if err := f.run(ctx, op, segmentArgs(seg, preset, segPath)); err != nil {
			return err
		}
		// The concat demuxer resolves entries against the list's own directory.
		fmt.Fprintf(&list, "file '%s'\n", strings.ReplaceAll(filepath.Base(segPath), "'", `'\''`))
		// Segments are most of the work; the final concat is a stream copy.
		render.Report(report, 0.9*float64(i+1)/float64(len(segments)))
	}

	listPath := filepath.Join(workDir, "concat.txt")
	if err := os.WriteFile(listPath, []byte(list.String()), 0o644); err != nil {
		return render.NewFatal(op, fmt.Errorf("write concat list: %w", err))
	}
	metaPath := ""
	if len(meta.Chapters) > 0 || meta.Title != "" {
		metaPath = filepath.Join(workDir, "metadata.txt")
		if err := os.WriteFile(metaPath, []byte(Metadata(meta.Title, meta.Chapters)), 0o644); err != nil {
			return render.NewFatal(op, fmt.Errorf("write metadata: %w", err))
		}
	}
	return f.run(ctx, op, concatArgs(listPath, metaPath, outPath))
}

func (f *FFmpeg) run(ctx context.Context, op string, args []string) error {
	cmd := exec.CommandContext(ctx, f.bin(), args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return render.ExecError(ctx, op, f.bin(), err, lastLine(out))
	}
	return nil
}

func segmentArgs(seg Segment, p Preset, out string) []string {
	secs := strconv.FormatFloat(seg.Duration.Seconds(), 'f', 3, 64)
	args := []string{"-y", "-hide_banner", "-loglevel", "error", "-loop", "1", "-i", seg.Image}
	if seg.Silent {
		args = append(args, "-f", "lavfi", "-i", "anullsrc=r=24000:cl=mono")
	} else {
		args = append(args, "-i", seg.Audio)
	}
	scale := fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,format=yuv420p",
		p.Width, p.Height, p.Width, p.Height)
	args = append(args,
		"-vf", scale,
		"-c:v", "libx264", "-tune", "stillimage", "-crf", strconv.Itoa(p.CRF), "-r", "30",
		"-c:a", "aac", "-b:a", p.AudioBitrate, "-ar", "48000",
		"-t", secs,
		out,
	)
	return args
}

func concatArgs(listPath, metaPath, out string) []string {
	args := []string{"-y", "-hide_banner", "-loglevel", "error", "-f", "concat", "-safe", "0", "-i", listPath}
	if metaPath != "" {
		args = append(args, "-i", metaPath, "-map", "0", "-map_metadata", "1", "-map_chapters", "1")
	}
	return append(args, "-c", "copy", "-movflags", "+faststart", out)
}

func lastLine(out []byte) string {
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
