// Package app assembles the pipeline from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/mathreel/internal/artifact"
	"github.com/dgallion1/mathreel/internal/cache"
	"github.com/dgallion1/mathreel/internal/config"
	"github.com/dgallion1/mathreel/internal/jobstore"
	"github.com/dgallion1/mathreel/internal/parser"
	"github.com/dgallion1/mathreel/internal/pipeline"
	"github.com/dgallion1/mathreel/internal/render"
	"github.com/dgallion1/mathreel/internal/render/beamer"
	"github.com/dgallion1/mathreel/internal/render/ffmpeg"
	"github.com/dgallion1/mathreel/internal/render/tts"
	"github.com/dgallion1/mathreel/internal/slideplan"
)

// Adapter names used for latency stats.
const (
	StatsSlides = "slides"
	StatsAudio  = "audio"
	StatsVideo  = "video"
)

const clipCacheEntries = 4096

// App is a fully wired pipeline.
type App struct {
	Config       config.Config
	Repo         pipeline.Repository
	Store        artifact.Store
	Runner       *pipeline.Runner
	Orchestrator *pipeline.Orchestrator
	Stats        *render.Registry

	closers []func() error
}

// New builds every backend named by cfg. Call Close when done.
func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	a := &App{Config: cfg, Stats: render.NewRegistry(time.Hour)}
	if err := a.build(ctx, log); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context, log *slog.Logger) error {
	cfg := a.Config
	repo, err := a.repository(ctx)
	if err != nil {
		return err
	}
	a.Repo = repo

	store, err := newStore(ctx, cfg)
	if err != nil {
		return err
	}
	a.Store = store
	a.closers = append(a.closers, store.Close)

	clipCache, err := newCache(cfg)
	if err != nil {
		return err
	}
	if clipCache != nil {
		a.closers = append(a.closers, clipCache.Close)
	}

	synth, err := a.synthesizer(clipCache, log)
	if err != nil {
		return err
	}
	adapters, err := a.adapters(cfg, synth)
	if err != nil {
		return err
	}

	ingester := &parser.Ingester{FallbackPdftotext: cfg.PDFFallbackPdftotext}
	a.Runner = pipeline.NewRunner(repo, store, ingester, adapters, RunnerConfig(cfg), log)
	a.Orchestrator = pipeline.NewOrchestrator(pipeline.Config{
		Workers:   cfg.WorkerCount,
		QueueSize: cfg.MaxQueueSize,
		Defaults:  DefaultOptions(cfg),
	}, repo, store, a.Runner, log)
	return nil
}

func (a *App) repository(ctx context.Context) (pipeline.Repository, error) {
	cfg := a.Config
	switch cfg.JobBackend {
	case "postgres":
		pg, err := jobstore.NewPostgres(ctx, cfg.DatabaseURL, cfg.JobTTL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error { pg.Close(); return nil })
		return pg, nil
	case "firestore":
		fs, err := jobstore.NewFirestore(ctx, cfg.FirestoreProject, cfg.FirestoreCollection, cfg.JobTTL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, fs.Close)
		return fs, nil
	default:
		return pipeline.NewMemoryRepository(cfg.JobTTL), nil
	}
}

func newStore(ctx context.Context, cfg config.Config) (artifact.Store, error) {
	if cfg.ArtifactBackend == "gcs" {
		return artifact.NewGCSStore(ctx, cfg.GCSBucket)
	}
	return artifact.NewLocalStore(cfg.ArtifactDir)
}

// newCache returns nil when clip caching is off.
func newCache(cfg config.Config) (cache.Client, error) {
	switch cfg.CacheBackend {
	case "redis":
		return cache.NewRedisClient(cache.RedisConfig{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	case "none":
		return nil, nil
	default:
		return cache.NewMemoryClient(clipCacheEntries), nil
	}
}

// synthesizer chains provider routing, rate limiting and the clip cache. Cache
// hits skip the limiter.
func (a *App) synthesizer(clipCache cache.Client, log *slog.Logger) (tts.Synthesizer, error) {
	cfg := a.Config
	router := &tts.Router{Providers: map[string]tts.Synthesizer{}}
	if cfg.AzureSpeechKey != "" && cfg.AzureSpeechRegion != "" && cfg.TTSProvider != tts.ProviderGoogle {
		c := tts.NewAzureClient(cfg.AzureSpeechKey, cfg.AzureSpeechRegion)
		a.closers = append(a.closers, func() error { c.Close(); return nil })
		router.Providers[tts.ProviderAzure] = c
	}
	if cfg.GoogleTTSAPIKey != "" && cfg.TTSProvider != tts.ProviderAzure {
		c := tts.NewGoogleClient(cfg.GoogleTTSAPIKey)
		a.closers = append(a.closers, func() error { c.Close(); return nil })
		router.Providers[tts.ProviderGoogle] = c
	}
	switch {
	case cfg.TTSProvider == tts.ProviderAzure || cfg.TTSProvider == tts.ProviderGoogle:
		router.Default = cfg.TTSProvider
	case router.Providers[tts.ProviderAzure] != nil:
		router.Default = tts.ProviderAzure
	default:
		router.Default = tts.ProviderGoogle
	}
	if len(router.Providers) == 0 {
		return nil, errors.New("no tts provider configured")
	}

	var synth tts.Synthesizer = tts.NewRateLimited(router, cfg.TTSRPS, cfg.TTSBurst)
	if clipCache != nil {
		synth = &tts.Cached{Next: synth, Cache: clipCache, TTL: cfg.CacheTTL, Log: log}
	}
	return synth, nil
}

func (a *App) adapters(cfg config.Config, synth tts.Synthesizer) (pipeline.Adapters, error) {
	preset, err := ffmpeg.PresetFor(cfg.VideoQuality)
	if err != nil {
		return pipeline.Adapters{}, fmt.Errorf("VIDEO_QUALITY: %w", err)
	}
	slides := &beamer.Renderer{
		Compiler:   &beamer.PDFLaTeX{Path: cfg.PDFLaTeXPath},
		Rasterizer: &beamer.PDFToPPM{Path: cfg.PDFToPPMPath},
	}
	audio := &tts.Renderer{Synth: synth, SilentDuration: cfg.SilentSlide}
	video := &ffmpeg.Renderer{Encoder: &ffmpeg.FFmpeg{Path: cfg.FFmpegPath, Preset: preset}}
	return pipeline.Adapters{
		Slides: render.Timed[beamer.Input, beamer.Output](slides, a.Stats.For(StatsSlides)),
		Audio:  render.Timed[tts.SlideInput, tts.Clip](audio, a.Stats.For(StatsAudio)),
		Video:  render.Timed[ffmpeg.Input, ffmpeg.Output](video, a.Stats.For(StatsVideo)),
	}, nil
}

// DefaultOptions are the per-job settings used when a submission leaves them unset.
func DefaultOptions(cfg config.Config) pipeline.Options {
	return pipeline.Options{
		TemplateID:      cfg.DefaultTemplate,
		Voice:           cfg.DefaultVoice,
		Language:        cfg.DefaultLanguage,
		IncludeChapters: cfg.IncludeChapters,
		MaxAttempts:     cfg.MaxAttempts,
		Quality:         cfg.VideoQuality,
		StageTimeouts: map[pipeline.Stage]time.Duration{
			pipeline.StageParsing:         cfg.TimeoutParsing,
			pipeline.StagePlanning:        cfg.TimeoutPlanning,
			pipeline.StageRenderingSlides: cfg.TimeoutSlides,
			pipeline.StageRenderingAudio:  cfg.TimeoutAudio,
			pipeline.StageRenderingVideo:  cfg.TimeoutVideo,
		},
	}
}

func RunnerConfig(cfg config.Config) pipeline.RunnerConfig {
	plan := slideplan.DefaultConfig()
	plan.MaxSlideTokens = cfg.MaxSlideTokens
	return pipeline.RunnerConfig{
		WorkDir:          cfg.WorkDir,
		KeepWorkDir:      cfg.KeepWorkDir,
		AssetDir:         cfg.AssetDir,
		AudioConcurrency: cfg.AudioConcurrency,
		Retry: pipeline.RetryPolicy{
			MaxAttempts: cfg.MaxAttempts,
			BaseDelay:   cfg.RetryBaseDelay,
			MaxDelay:    cfg.RetryMaxDelay,
		},
		Plan: plan,
	}
}

// Close releases every backend in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
