package app

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dgallion1/mathreel/internal/config"
	"github.com/dgallion1/mathreel/internal/pipeline"
)

func testConfig(t *testing.T) config.Config {
	return config.Config{
		WorkerCount:      1,
		MaxQueueSize:     4,
		JobTTL:           time.Hour,
		JobBackend:       "memory",
		WorkDir:          t.TempDir(),
		ArtifactBackend:  "local",
		ArtifactDir:      t.TempDir(),
		CacheBackend:     "memory",
		TTSProvider:      "auto",
		GoogleTTSAPIKey:  "k",
		TTSRPS:           1,
		TTSBurst:         1,
		DefaultTemplate:  "academic",
		DefaultVoice:     "ja-JP-Wavenet-A",
		DefaultLanguage:  "ja-JP",
		VideoQuality:     "720p",
		MaxAttempts:      2,
		RetryBaseDelay:   time.Second,
		RetryMaxDelay:    time.Minute,
		AudioConcurrency: 3,
		MaxSlideTokens:   250,
		SilentSlide:      time.Second,
		TimeoutSlides:    time.Minute,
	}
}

func TestNew_MemoryBackends(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer a.Close()

	if _, ok := a.Repo.(*pipeline.MemoryRepository); !ok {
		t.Errorf("expected memory repository, got %T", a.Repo)
	}
	if a.Orchestrator == nil || a.Runner == nil {
		t.Fatal("expected orchestrator and runner")
	}
	if got := len(a.Stats.Snapshot()); got != 3 {
		t.Errorf("expected stats for 3 adapters, got %d", got)
	}
}

func TestNew_RejectsUnknownQuality(t *testing.T) {
	cfg := testConfig(t)
	cfg.VideoQuality = "8k"
	if _, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil))); err == nil {
		t.Fatal("expected error for unknown quality")
	}
}

func TestNew_RequiresProvider(t *testing.T) {
	cfg := testConfig(t)
	cfg.GoogleTTSAPIKey = ""
	if _, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil))); err == nil {
		t.Fatal("expected error without tts credentials")
	}
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions(testConfig(t))
	if opts.TemplateID != "academic" || opts.Quality != "720p" || opts.MaxAttempts != 2 {
		t.Errorf("unexpected options %+v", opts)
	}
	if opts.StageTimeouts[pipeline.StageRenderingSlides] != time.Minute {
		t.Errorf("expected slides timeout 1m, got %s", opts.StageTimeouts[pipeline.StageRenderingSlides])
	}
}

func TestRunnerConfig(t *testing.T) {
	rc := RunnerConfig(testConfig(t))
	if rc.Plan.MaxSlideTokens != 250 {
		t.Errorf("expected 250 tokens, got %d", rc.Plan.MaxSlideTokens)
	}
	if rc.Retry.MaxAttempts != 2 || rc.Retry.MaxDelay != time.Minute {
		t.Errorf("unexpected retry policy %+v", rc.Retry)
	}
	if rc.AudioConcurrency != 3 {
		t.Errorf("expected 3, got %d", rc.AudioConcurrency)
	}
}
