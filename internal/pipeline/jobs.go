package pipeline

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/dgallion1/mathreel/internal/doctree"
)

// Stage is a job state.
type Stage string

const (
	StageUploaded        Stage = "uploaded"
	StageParsing         Stage = "parsing"
	StagePlanning        Stage = "planning"
	StageRenderingSlides Stage = "rendering_slides"
	StageRenderingAudio  Stage = "rendering_audio"
	StageRenderingVideo  Stage = "rendering_video"
	StageCompleted       Stage = "completed"
	StageFailed          Stage = "failed"
	StageCancelled       Stage = "cancelled"
)

// Stages lists the working stages in execution order.
var Stages = []Stage{
	StageParsing,
	StagePlanning,
	StageRenderingSlides,
	StageRenderingAudio,
	StageRenderingVideo,
}

// Terminal reports whether no further transitions are possible.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageFailed || s == StageCancelled
}

// Band is the progress range a stage reports into.
type Band struct {
	Lo, Hi int
}

var bands = map[Stage]Band{
	StageParsing:         {0, 20},
	StagePlanning:        {20, 30},
	StageRenderingSlides: {30, 55},
	StageRenderingAudio:  {55, 80},
	StageRenderingVideo:  {80, 100},
}

// BandFor returns the progress band of a working stage.
func BandFor(s Stage) (Band, bool) {
	b, ok := bands[s]
	return b, ok
}

// EventKind tags a JobEvent.
type EventKind string

const (
	EventStageEntered    EventKind = "stage_entered"
	EventStageExited     EventKind = "stage_exited"
	EventRetryAttempted  EventKind = "retry_attempted"
	EventErrorRaised     EventKind = "error_raised"
	EventCancelRequested EventKind = "cancel_requested"
)

// JobEvent is one entry of a job's append-only log.
type JobEvent struct {
	Time   time.Time `json:"time"`
	Stage  Stage     `json:"stage"`
	Kind   EventKind `json:"kind"`
	Detail string    `json:"detail,omitempty"`
}

// JobError records why a job failed.
type JobError struct {
	Stage   Stage  `json:"stage"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Artifact kinds.
const (
	ArtifactSource = "source"
	ArtifactSlides = "slides_pdf"
	ArtifactImage  = "slide_image"
	ArtifactAudio  = "audio_clip"
	ArtifactVideo  = "video"
)

// Artifact points at a stored output.
type Artifact struct {
	Kind  string `json:"kind"`
	Key   string `json:"key"`
	Size  int64  `json:"size"`
	Index int    `json:"index,omitempty"`
}

// Options are the per-job rendering choices.
type Options struct {
	TemplateID      string                  `json:"template_id"`
	Voice           string                  `json:"voice"`
	Language        string                  `json:"language"`
	IncludeChapters bool                    `json:"include_chapters"`
	StageTimeouts   map[Stage]time.Duration `json:"stage_timeouts,omitempty"`
	MaxAttempts     int                     `json:"max_attempts"`
	Quality         string                  `json:"quality"`
}

// withDefaults fills unset fields from def.
func (o Options) withDefaults(def Options) Options {
	if o.TemplateID == "" {
		o.TemplateID = def.TemplateID
	}
	if o.Voice == "" {
		o.Voice = def.Voice
	}
	if o.Language == "" {
		o.Language = def.Language
	}
	if o.Quality == "" {
		o.Quality = def.Quality
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = def.MaxAttempts
	}
	timeouts := make(map[Stage]time.Duration, len(Stages))
	for _, s := range Stages {
		if d := o.StageTimeouts[s]; d > 0 {
			timeouts[s] = d
		} else if d := def.StageTimeouts[s]; d > 0 {
			timeouts[s] = d
		}
	}
	o.StageTimeouts = timeouts
	return o
}

// Job is the state of one document-to-video run.
type Job struct {
	ID       string         `json:"job_id"`
	Filename string         `json:"filename"`
	Format   doctree.Format `json:"format"`
	Title    string         `json:"title,omitempty"`

	Stage      Stage     `json:"stage"`
	Progress   int       `json:"progress"`
	Error      *JobError `json:"error,omitempty"`
	SlideCount int       `json:"slide_count,omitempty"`

	Events          []JobEvent `json:"events"`
	CancelRequested bool       `json:"cancel_requested"`
	Options         Options    `json:"options"`
	Artifacts       []Artifact `json:"artifacts"`

	ContentHash string    `json:"content_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Clone returns a deep copy.
func (j *Job) Clone() *Job {
	c := *j
	if j.Error != nil {
		e := *j.Error
		c.Error = &e
	}
	c.Events = append([]JobEvent(nil), j.Events...)
	c.Artifacts = append([]Artifact(nil), j.Artifacts...)
	if j.Options.StageTimeouts != nil {
		c.Options.StageTimeouts = make(map[Stage]time.Duration, len(j.Options.StageTimeouts))
		for k, v := range j.Options.StageTimeouts {
			c.Options.StageTimeouts[k] = v
		}
	}
	return &c
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
