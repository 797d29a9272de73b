package jobstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dgallion1/mathreel/internal/doctree"
	"github.com/dgallion1/mathreel/internal/pipeline"
)

// Firestore keeps one document per job in a collection. Events are an array field
// grown with ArrayUnion so writers never overwrite each other's entries.
type Firestore struct {
	client *firestore.Client
	coll   string
	ttl    time.Duration
}

var _ pipeline.Repository = (*Firestore)(nil)

func NewFirestore(ctx context.Context, projectID, collection string, ttl time.Duration) (*Firestore, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}
	if collection == "" {
		collection = "mathreel_jobs"
	}
	return &Firestore{client: client, coll: collection, ttl: ttl}, nil
}

func (f *Firestore) Close() error {
	return f.client.Close()
}

type eventDoc struct {
	Time   time.Time `firestore:"time"`
	Stage  string    `firestore:"stage"`
	Kind   string    `firestore:"kind"`
	Detail string    `firestore:"detail"`
}

type artifactDoc struct {
	Kind  string `firestore:"kind"`
	Key   string `firestore:"key"`
	Size  int64  `firestore:"size"`
	Index int    `firestore:"index"`
}

type errorDoc struct {
	Stage   string `firestore:"stage"`
	Kind    string `firestore:"kind"`
	Message string `firestore:"message"`
}

type jobDoc struct {
	ID              string        `firestore:"id"`
	Filename        string        `firestore:"filename"`
	Format          string        `firestore:"format"`
	Title           string        `firestore:"title"`
	Stage           string        `firestore:"stage"`
	Progress        int           `firestore:"progress"`
	Error           *errorDoc     `firestore:"error"`
	SlideCount      int           `firestore:"slide_count"`
	Events          []eventDoc    `firestore:"events"`
	CancelRequested bool          `firestore:"cancel_requested"`
	Options         string        `firestore:"options"` // JSON
	Artifacts       []artifactDoc `firestore:"artifacts"`
	ContentHash     string        `firestore:"content_hash"`
	CreatedAt       time.Time     `firestore:"created_at"`
	UpdatedAt       time.Time     `firestore:"updated_at"`
}

func toEventDoc(ev pipeline.JobEvent) eventDoc {
	return eventDoc{Time: ev.Time, Stage: string(ev.Stage), Kind: string(ev.Kind), Detail: ev.Detail}
}

func toErrorDoc(e *pipeline.JobError) *errorDoc {
	if e == nil {
		return nil
	}
	return &errorDoc{Stage: string(e.Stage), Kind: e.Kind, Message: e.Message}
}

func toArtifactDocs(as []pipeline.Artifact) []artifactDoc {
	out := make([]artifactDoc, len(as))
	for i, a := range as {
		out[i] = artifactDoc{Kind: a.Kind, Key: a.Key, Size: a.Size, Index: a.Index}
	}
	return out
}

func toJobDoc(job *pipeline.Job) (jobDoc, error) {
	opts, err := json.Marshal(job.Options)
	if err != nil {
		return jobDoc{}, fmt.Errorf("encode options: %w", err)
	}
	d := jobDoc{
		ID:              job.ID,
		Filename:        job.Filename,
		Format:          string(job.Format),
		Title:           job.Title,
		Stage:           string(job.Stage),
		Progress:        job.Progress,
		Error:           toErrorDoc(job.Error),
		SlideCount:      job.SlideCount,
		CancelRequested: job.CancelRequested,
		Options:         string(opts),
		Artifacts:       toArtifactDocs(job.Artifacts),
		ContentHash:     job.ContentHash,
		CreatedAt:       job.CreatedAt,
		UpdatedAt:       job.UpdatedAt,
	}
	for _, ev := range job.Events {
		d.Events = append(d.Events, toEventDoc(ev))
	}
	return d, nil
}

func (d jobDoc) job() (*pipeline.Job, error) {
	job := &pipeline.Job{
		ID:              d.ID,
		Filename:        d.Filename,
		Format:          doctree.Format(d.Format),
		Title:           d.Title,
		Stage:           pipeline.Stage(d.Stage),
		Progress:        d.Progress,
		SlideCount:      d.SlideCount,
		CancelRequested: d.CancelRequested,
		ContentHash:     d.ContentHash,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
	if d.Error != nil {
		job.Error = &pipeline.JobError{Stage: pipeline.Stage(d.Error.Stage), Kind: d.Error.Kind, Message: d.Error.Message}
	}
	if d.Options != "" {
		if err := json.Unmarshal([]byte(d.Options), &job.Options); err != nil {
			return nil, fmt.Errorf("decode options: %w", err)
		}
	}
	for _, ev := range d.Events {
		job.Events = append(job.Events, pipeline.JobEvent{
			Time: ev.Time, Stage: pipeline.Stage(ev.Stage), Kind: pipeline.EventKind(ev.Kind), Detail: ev.Detail,
		})
	}
	for _, a := range d.Artifacts {
		job.Artifacts = append(job.Artifacts, pipeline.Artifact{Kind: a.Kind, Key: a.Key, Size: a.Size, Index: a.Index})
	}
	return job, nil
}

// mapError translates gRPC status codes to repository errors.
func mapError(err error, op string) error {
	switch status.Code(err) {
	case codes.OK:
		return nil
	case codes.NotFound:
		return pipeline.ErrNotFound
	case codes.AlreadyExists:
		return pipeline.ErrJobExists
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (f *Firestore) doc(id string) *firestore.DocumentRef {
	return f.client.Collection(f.coll).Doc(id)
}

func (f *Firestore) Create(ctx context.Context, job *pipeline.Job) error {
	d, err := toJobDoc(job)
	if err != nil {
		return err
	}
	_, err = f.doc(job.ID).Create(ctx, d)
	return mapError(err, "create job")
}

func (f *Firestore) Get(ctx context.Context, id string) (*pipeline.Job, error) {
	snap, err := f.doc(id).Get(ctx)
	if err != nil {
		return nil, mapError(err, "get job")
	}
	var d jobDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	return d.job()
}

// Put updates job state. Update fails with NotFound for missing documents, and the
// events and cancel_requested fields are left untouched.
func (f *Firestore) Put(ctx context.Context, job *pipeline.Job) error {
	opts, err := json.Marshal(job.Options)
	if err != nil {
		return fmt.Errorf("encode options: %w", err)
	}
	_, err = f.doc(job.ID).Update(ctx, []firestore.Update{
		{Path: "title", Value: job.Title},
		{Path: "stage", Value: string(job.Stage)},
		{Path: "progress", Value: job.Progress},
		{Path: "error", Value: toErrorDoc(job.Error)},
		{Path: "slide_count", Value: job.SlideCount},
		{Path: "options", Value: string(opts)},
		{Path: "artifacts", Value: toArtifactDocs(job.Artifacts)},
		{Path: "updated_at", Value: job.UpdatedAt},
	})
	return mapError(err, "update job")
}

func (f *Firestore) AppendEvent(ctx context.Context, id string, ev pipeline.JobEvent) error {
	_, err := f.doc(id).Update(ctx, []firestore.Update{
		{Path: "events", Value: firestore.ArrayUnion(toEventDoc(ev))},
	})
	return mapError(err, "append event")
}

func (f *Firestore) RequestCancel(ctx context.Context, id string) error {
	_, err := f.doc(id).Update(ctx, []firestore.Update{
		{Path: "cancel_requested", Value: true},
	})
	return mapError(err, "request cancel")
}

func (f *Firestore) CancelRequested(ctx context.Context, id string) (bool, error) {
	snap, err := f.doc(id).Get(ctx)
	if err != nil {
		return false, mapError(err, "get job")
	}
	v, err := snap.DataAt("cancel_requested")
	if err != nil {
		return false, nil
	}
	b, _ := v.(bool)
	return b, nil
}

// Cleanup deletes finished jobs not updated within the TTL.
func (f *Firestore) Cleanup() {
	if f.ttl <= 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	terminal := []string{string(pipeline.StageCompleted), string(pipeline.StageFailed), string(pipeline.StageCancelled)}
	snaps, err := f.client.Collection(f.coll).
		Where("stage", "in", terminal).
		Where("updated_at", "<", time.Now().Add(-f.ttl)).
		Documents(ctx).GetAll()
	if err != nil {
		return
	}
	for _, s := range snaps {
		s.Ref.Delete(ctx)
	}
}
