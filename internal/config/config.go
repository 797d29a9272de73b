package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port string

	// Auth
	APIKey string

	// Worker pool
	WorkerCount  int
	MaxQueueSize int

	// Upload limits
	MaxUploadBytes int64

	// Per-client request limit on the HTTP API.
	RateLimitRPS   float64
	RateLimitBurst int

	// Job state
	JobTTL      time.Duration
	JobBackend  string // memory | postgres | firestore
	WorkDir     string
	KeepWorkDir bool
	AssetDir    string

	DatabaseURL         string
	FirestoreProject    string
	FirestoreCollection string

	// Artifacts
	ArtifactBackend string // local | gcs
	ArtifactDir     string
	GCSBucket       string

	// Clip cache
	CacheBackend  string // memory | redis | none
	RedisAddr     string
	RedisPassword string
	CacheTTL      time.Duration

	// Speech synthesis
	TTSProvider       string // auto | azure | google
	AzureSpeechKey    string
	AzureSpeechRegion string
	GoogleTTSAPIKey   string
	TTSRPS            float64
	TTSBurst          int

	// Job defaults
	DefaultTemplate string
	DefaultVoice    string
	DefaultLanguage string
	IncludeChapters bool
	VideoQuality    string

	// Retry and fan-out
	MaxAttempts      int
	RetryBaseDelay   time.Duration
	RetryMaxDelay    time.Duration
	AudioConcurrency int

	// Planning and rendering
	MaxSlideTokens int
	SilentSlide    time.Duration

	// Per-stage budgets
	TimeoutParsing  time.Duration
	TimeoutPlanning time.Duration
	TimeoutSlides   time.Duration
	TimeoutAudio    time.Duration
	TimeoutVideo    time.Duration

	// External tools
	PDFLaTeXPath         string
	PDFToPPMPath         string
	FFmpegPath           string
	PDFFallbackPdftotext bool

	PipelineFile string
	profileErr   error
}

// Profile is the optional YAML file that tunes the pipeline without touching the
// environment. Zero values leave the environment settings alone.
type Profile struct {
	MaxAttempts      int           `yaml:"max_attempts"`
	RetryBaseDelay   time.Duration `yaml:"retry_base_delay"`
	RetryMaxDelay    time.Duration `yaml:"retry_max_delay"`
	AudioConcurrency int           `yaml:"audio_concurrency"`
	Timeouts         struct {
		Parsing  time.Duration `yaml:"parsing"`
		Planning time.Duration `yaml:"planning"`
		Slides   time.Duration `yaml:"slides"`
		Audio    time.Duration `yaml:"audio"`
		Video    time.Duration `yaml:"video"`
	} `yaml:"timeouts"`
}

func Load() Config {
	// A missing .env is fine; the environment may be set some other way.
	_ = godotenv.Load()

	cfg := Config{
		Port: envOr("PORT", "8090"),

		APIKey: os.Getenv("MATHREEL_API_KEY"),

		WorkerCount:  envInt("WORKER_COUNT", 2),
		MaxQueueSize: envInt("MAX_QUEUE_SIZE", 100),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB
		RateLimitRPS:   envFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst: envInt("RATE_LIMIT_BURST", 20),

		JobTTL:      envDuration("JOB_TTL", 24*time.Hour),
		JobBackend:  envOr("JOB_BACKEND", "memory"),
		WorkDir:     envOr("WORK_DIR", os.TempDir()),
		KeepWorkDir: envBool("KEEP_WORK_DIR", false),
		AssetDir:    os.Getenv("ASSET_DIR"),

		DatabaseURL:         os.Getenv("DATABASE_URL"),
		FirestoreProject:    os.Getenv("FIRESTORE_PROJECT"),
		FirestoreCollection: envOr("FIRESTORE_COLLECTION", "mathreel_jobs"),

		ArtifactBackend: envOr("ARTIFACT_BACKEND", "local"),
		ArtifactDir:     envOr("ARTIFACT_DIR", "./artifacts"),
		GCSBucket:       os.Getenv("GCS_BUCKET"),

		CacheBackend:  envOr("CACHE_BACKEND", "memory"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		CacheTTL:      envDuration("CACHE_TTL", 7*24*time.Hour),

		TTSProvider:       envOr("TTS_PROVIDER", "auto"),
		AzureSpeechKey:    os.Getenv("AZURE_SPEECH_KEY"),
		AzureSpeechRegion: os.Getenv("AZURE_SPEECH_REGION"),
		GoogleTTSAPIKey:   os.Getenv("GOOGLE_TTS_API_KEY"),
		TTSRPS:            envFloat("TTS_RPS", 5),
		TTSBurst:          envInt("TTS_BURST", 5),

		DefaultTemplate: envOr("DEFAULT_TEMPLATE", "default"),
		DefaultVoice:    envOr("DEFAULT_VOICE", "ja-JP-NanamiNeural"),
		DefaultLanguage: envOr("DEFAULT_LANGUAGE", "ja-JP"),
		IncludeChapters: envBool("INCLUDE_CHAPTERS", true),
		VideoQuality:    envOr("VIDEO_QUALITY", "1080p"),

		MaxAttempts:      envInt("MAX_ATTEMPTS", 3),
		RetryBaseDelay:   envDuration("RETRY_BASE_DELAY", 1*time.Second),
		RetryMaxDelay:    envDuration("RETRY_MAX_DELAY", 30*time.Second),
		AudioConcurrency: envInt("AUDIO_CONCURRENCY", 4),

		MaxSlideTokens: envInt("MAX_SLIDE_TOKENS", 400),
		SilentSlide:    time.Duration(envFloat("SILENT_SLIDE_SECONDS", 3) * float64(time.Second)),

		TimeoutParsing:  envDuration("TIMEOUT_PARSING", 2*time.Minute),
		TimeoutPlanning: envDuration("TIMEOUT_PLANNING", 1*time.Minute),
		TimeoutSlides:   envDuration("TIMEOUT_SLIDES", 5*time.Minute),
		TimeoutAudio:    envDuration("TIMEOUT_AUDIO", 10*time.Minute),
		TimeoutVideo:    envDuration("TIMEOUT_VIDEO", 20*time.Minute),

		PDFLaTeXPath:         envOr("PDFLATEX_PATH", "pdflatex"),
		PDFToPPMPath:         envOr("PDFTOPPM_PATH", "pdftoppm"),
		FFmpegPath:           envOr("FFMPEG_PATH", "ffmpeg"),
		PDFFallbackPdftotext: envBool("PDF_FALLBACK_PDFTOTEXT", true),

		PipelineFile: os.Getenv("MATHREEL_PIPELINE_FILE"),
	}

	if cfg.PipelineFile != "" {
		cfg.profileErr = cfg.ApplyProfile(cfg.PipelineFile)
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 2
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 24 * time.Hour
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 1 * time.Second
	}
	if cfg.RetryMaxDelay < cfg.RetryBaseDelay {
		cfg.RetryMaxDelay = cfg.RetryBaseDelay
	}
	if cfg.AudioConcurrency <= 0 {
		cfg.AudioConcurrency = 4
	}
	if cfg.MaxSlideTokens <= 0 {
		cfg.MaxSlideTokens = 400
	}
	if cfg.SilentSlide <= 0 {
		cfg.SilentSlide = 3 * time.Second
	}
	if cfg.TTSRPS <= 0 {
		cfg.TTSRPS = 5
	}
	if cfg.TTSBurst <= 0 {
		cfg.TTSBurst = 1
	}

	return cfg
}

// ApplyProfile overlays the YAML profile at path.
func (c *Config) ApplyProfile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read pipeline profile: %w", err)
	}
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("parse pipeline profile %s: %w", path, err)
	}
	setInt(&c.MaxAttempts, p.MaxAttempts)
	setInt(&c.AudioConcurrency, p.AudioConcurrency)
	setDuration(&c.RetryBaseDelay, p.RetryBaseDelay)
	setDuration(&c.RetryMaxDelay, p.RetryMaxDelay)
	setDuration(&c.TimeoutParsing, p.Timeouts.Parsing)
	setDuration(&c.TimeoutPlanning, p.Timeouts.Planning)
	setDuration(&c.TimeoutSlides, p.Timeouts.Slides)
	setDuration(&c.TimeoutAudio, p.Timeouts.Audio)
	setDuration(&c.TimeoutVideo, p.Timeouts.Video)
	return nil
}

// Validate checks that every selected backend has what it needs.
func (c Config) Validate() error {
	if c.profileErr != nil {
		return c.profileErr
	}
	switch c.JobBackend {
	case "memory":
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for JOB_BACKEND=postgres")
		}
	case "firestore":
		if c.FirestoreProject == "" {
			return fmt.Errorf("FIRESTORE_PROJECT is required for JOB_BACKEND=firestore")
		}
	default:
		return fmt.Errorf("unknown JOB_BACKEND %q", c.JobBackend)
	}
	switch c.ArtifactBackend {
	case "local":
	case "gcs":
		if c.GCSBucket == "" {
			return fmt.Errorf("GCS_BUCKET is required for ARTIFACT_BACKEND=gcs")
		}
	default:
		return fmt.Errorf("unknown ARTIFACT_BACKEND %q", c.ArtifactBackend)
	}
	switch c.CacheBackend {
	case "memory", "none":
	case "redis":
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required for CACHE_BACKEND=redis")
		}
	default:
		return fmt.Errorf("unknown CACHE_BACKEND %q", c.CacheBackend)
	}
	azure := c.AzureSpeechKey != "" && c.AzureSpeechRegion != ""
	google := c.GoogleTTSAPIKey != ""
	switch c.TTSProvider {
	case "auto":
		if !azure && !google {
			return fmt.Errorf("AZURE_SPEECH_KEY and AZURE_SPEECH_REGION, or GOOGLE_TTS_API_KEY, is required")
		}
	case "azure":
		if !azure {
			return fmt.Errorf("AZURE_SPEECH_KEY and AZURE_SPEECH_REGION are required for TTS_PROVIDER=azure")
		}
	case "google":
		if !google {
			return fmt.Errorf("GOOGLE_TTS_API_KEY is required for TTS_PROVIDER=google")
		}
	default:
		return fmt.Errorf("unknown TTS_PROVIDER %q", c.TTSProvider)
	}
	return nil
}

// ValidateServer adds the checks only the HTTP server needs.
func (c Config) ValidateServer() error {
	if c.APIKey == "" {
		return fmt.Errorf("MATHREEL_API_KEY is required")
	}
	return c.Validate()
}

func setInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v > 0 {
		*dst = v
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
