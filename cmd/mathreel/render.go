package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/dgallion1/mathreel/internal/app"
	"github.com/dgallion1/mathreel/internal/artifact"
	"github.com/dgallion1/mathreel/internal/config"
	"github.com/dgallion1/mathreel/internal/pipeline"
)

var renderOpts struct {
	output     string
	format     string
	template   string
	voice      string
	language   string
	quality    string
	noChapters bool
	keepWork   bool
}

var renderCmd = &cobra.Command{
	Use:   "render <file>",
	Short: "Render a document to a narrated slide video",
	Args:  cobra.ExactArgs(1),
	RunE:  runRender,
}

func init() {
	f := renderCmd.Flags()
	f.StringVarP(&renderOpts.output, "output", "o", "", "output video path (default: <input>.mp4)")
	f.StringVarP(&renderOpts.format, "format", "f", "", "source format (inferred from the extension when empty)")
	f.StringVarP(&renderOpts.template, "template", "t", "", "slide template")
	f.StringVar(&renderOpts.voice, "voice", "", "TTS voice")
	f.StringVarP(&renderOpts.language, "language", "l", "", "narration language")
	f.StringVarP(&renderOpts.quality, "quality", "q", "", "video quality preset (720p, 1080p, 4k)")
	f.BoolVar(&renderOpts.noChapters, "no-chapters", false, "omit chapter metadata from the video")
	f.BoolVar(&renderOpts.keepWork, "keep-work", false, "keep the per-job working directory")
	rootCmd.AddCommand(renderCmd)
}

func runRender(cmd *cobra.Command, args []string) error {
	input := args[0]
	data, err := os.ReadFile(input)
	if err != nil {
		return err
	}
	output := renderOpts.output
	if output == "" {
		output = strings.TrimSuffix(input, filepath.Ext(input)) + ".mp4"
	}

	log := newLogger()
	cfg := config.Load()
	// The CLI runs one job in-process.
	cfg.JobBackend = "memory"
	cfg.WorkerCount = 1
	cfg.KeepWorkDir = cfg.KeepWorkDir || renderOpts.keepWork
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	workers, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	a.Orchestrator.Start(workers)
	defer a.Orchestrator.Stop()

	sub := pipeline.Submission{
		Filename: filepath.Base(input),
		Data:     data,
		Options: pipeline.Options{
			TemplateID:      renderOpts.template,
			Voice:           renderOpts.voice,
			Language:        renderOpts.language,
			Quality:         renderOpts.quality,
			IncludeChapters: cfg.IncludeChapters && !renderOpts.noChapters,
		},
	}
	if renderOpts.format != "" {
		if sub.Format, err = resolveFormat(input, renderOpts.format); err != nil {
			return err
		}
	}
	job, err := a.Orchestrator.Submit(cmd.Context(), sub)
	if err != nil {
		return err
	}

	job, err = waitForJob(ctx, a.Orchestrator, job.ID, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	switch job.Stage {
	case pipeline.StageCancelled:
		return errors.New("render cancelled")
	case pipeline.StageFailed:
		return fmt.Errorf("render failed in %s (%s): %s", job.Error.Stage, job.Error.Kind, job.Error.Message)
	}

	if err := copyArtifact(cmd.Context(), a.Orchestrator, job.ID, output); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d slides -> %s\n", job.Title, job.SlideCount, output)
	return nil
}

// waitForJob polls until the job is terminal, drawing progress. An interrupt
// requests cancellation and keeps polling so the job can settle.
func waitForJob(ctx context.Context, orch *pipeline.Orchestrator, id string, w io.Writer) (*pipeline.Job, error) {
	bar := progressbar.NewOptions(100,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription(string(pipeline.StageUploaded)),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(w) }),
		progressbar.OptionSetRenderBlankState(true),
	)

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	interrupted := false
	for {
		select {
		case <-ctx.Done():
			if !interrupted {
				interrupted = true
				if _, err := orch.Cancel(context.Background(), id); err != nil && !errors.Is(err, pipeline.ErrJobFinished) {
					return nil, err
				}
			}
		case <-ticker.C:
		}

		job, err := orch.Status(context.Background(), id)
		if err != nil {
			return nil, err
		}
		bar.Describe(fmt.Sprintf("%-17s", job.Stage))
		_ = bar.Set(job.Progress)
		if job.Stage.Terminal() {
			if job.Stage == pipeline.StageCompleted {
				_ = bar.Finish()
			} else {
				_ = bar.Exit()
			}
			return job, nil
		}
		if interrupted {
			// ctx stays done; avoid spinning on it.
			ctx = context.Background()
		}
	}
}

func copyArtifact(ctx context.Context, orch *pipeline.Orchestrator, id, dst string) error {
	rc, err := orch.OpenArtifact(ctx, id, strings.TrimPrefix(artifact.VideoKey(id), artifact.JobPrefix(id)))
	if err != nil {
		return fmt.Errorf("open video: %w", err)
	}
	defer rc.Close()

	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, rc); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", dst, err)
	}
	return f.Close()
}
