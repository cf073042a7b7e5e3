// Package upload orchestrates batch file uploads for one form session:
// validate, upload sequentially with progress, then attach the results
// to a single entity create or update through the normalize store.
package upload

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/classhub/classhub/internal/normalize"
	"github.com/classhub/classhub/internal/storage"
	"github.com/classhub/classhub/pkg/config"
	"github.com/classhub/classhub/pkg/entity"
	"github.com/classhub/classhub/pkg/fault"
)

// State is the lifecycle of one upload task.
// Transitions: queued → uploading → done | error. Done and error are
// terminal; a task never leaves them without being re-enqueued as a
// fresh task.
type State string

const (
	StateQueued    State = "queued"
	StateUploading State = "uploading"
	StateDone      State = "done"
	StateError     State = "error"
)

// signedURLTTL is how long result URLs for private buckets stay valid.
const signedURLTTL = 24 * time.Hour

// Snapshot is the read-only view of a task handed to the UI.
type Snapshot struct {
	ID          string
	Name        string
	Size        int64
	ContentType string
	Progress    int // 0..100, non-decreasing while active
	State       State
	ResultURL   string // set only when State is done
	Error       string // set only when State is error
}

type task struct {
	Snapshot
	file storage.File
}

// Coordinator owns the upload tasks of a single dialog session. It is
// not shared across sessions; each open form gets its own instance.
type Coordinator struct {
	adapter storage.Adapter
	store   *normalize.Store
	bucket  config.BucketSpec
	folder  string

	mu    sync.Mutex
	tasks []*task
	done  bool
}

// New creates a coordinator that uploads into the given bucket and
// writes entities through the given store. folder is an optional key
// prefix inside the bucket.
func New(adapter storage.Adapter, store *normalize.Store, bucket config.BucketSpec, folder string) *Coordinator {
	return &Coordinator{adapter: adapter, store: store, bucket: bucket, folder: folder}
}

// Add enqueues a file and returns the task ID. Files are uploaded in
// the order they were added.
func (c *Coordinator) Add(file storage.File) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &task{
		Snapshot: Snapshot{
			ID:          uuid.NewString(),
			Name:        file.Name,
			Size:        file.Size,
			ContentType: file.ContentType,
			State:       StateQueued,
		},
		file: file,
	}
	c.tasks = append(c.tasks, t)
	return t.ID
}

// Remove drops a queued task. Tasks that have started uploading or
// reached a terminal state cannot be removed. Removing a still-queued
// task after Run has started is honored: the runner skips it.
func (c *Coordinator) Remove(taskID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, t := range c.tasks {
		if t.ID == taskID && t.State == StateQueued {
			c.tasks = append(c.tasks[:i], c.tasks[i+1:]...)
			return true
		}
	}
	return false
}

// Snapshots returns the current view of every task, in queue order.
func (c *Coordinator) Snapshots() []Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Snapshot, len(c.tasks))
	for i, t := range c.tasks {
		out[i] = t.Snapshot
	}
	return out
}

func (c *Coordinator) setProgress(t *task, pct int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.State == StateUploading && pct > t.Progress {
		t.Progress = pct
	}
}

// begin marks a task as uploading. Membership is re-checked under the
// lock so a task removed after Run started is skipped, not uploaded.
func (c *Coordinator) begin(t *task) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, cur := range c.tasks {
		if cur == t {
			if t.State != StateQueued {
				return false
			}
			t.State = StateUploading
			return true
		}
	}
	return false
}

// Run validates every queued file, uploads them one at a time in order,
// and finally performs a single entity create (entityID empty) or
// update carrying all resulting attachments.
//
// Validation failures happen before any transfer: every task stays
// queued and no network call is made. An upload failure marks that task
// as error and aborts the rest of the queue (fail-fast); tasks after it
// are never attempted. Files uploaded before a later failure are NOT
// deleted; the returned error names them for manual cleanup.
func (c *Coordinator) Run(ctx context.Context, kind entity.Kind, entityID string, payload normalize.Doc) (normalize.Doc, error) {
	c.mu.Lock()
	if c.done {
		c.mu.Unlock()
		return nil, fault.New(fault.Validation, "coordinator already ran; open a new session")
	}
	pending := make([]*task, len(c.tasks))
	copy(pending, c.tasks)
	c.mu.Unlock()

	// Pre-flight: reject the whole batch before the first transfer.
	for _, t := range pending {
		if err := storage.Validate(t.file, c.bucket); err != nil {
			return nil, err
		}
	}

	var attachments []entity.Attachment
	var uploaded []string
	for _, t := range pending {
		if !c.begin(t) {
			continue
		}

		url, res, err := c.uploadOne(ctx, t)
		if err != nil {
			c.mu.Lock()
			t.State = StateError
			t.Error = fault.UserMessage(err)
			c.mu.Unlock()
			return nil, fmt.Errorf("upload %s: %w", t.Name, err)
		}

		c.mu.Lock()
		t.State = StateDone
		t.Progress = 100
		t.ResultURL = url
		c.mu.Unlock()

		uploaded = append(uploaded, res.FullPath)
		attachments = append(attachments, entity.Attachment{
			ID:   t.ID,
			Name: t.Name,
			URL:  url,
			Size: t.Size,
			Type: t.ContentType,
		})
	}

	merged := make(normalize.Doc, len(payload)+1)
	for k, v := range payload {
		merged[k] = v
	}
	if len(attachments) > 0 {
		merged["attachments"] = attachments
	}

	var doc normalize.Doc
	var err error
	if entityID == "" {
		doc, err = c.store.Create(ctx, kind, merged)
	} else {
		doc, err = c.store.Update(ctx, kind, entityID, merged)
	}
	if err != nil {
		if len(uploaded) > 0 {
			// No automatic rollback of uploaded blobs; the caller must
			// clean these up by hand.
			return nil, fmt.Errorf("entity write failed after uploading %s: %w",
				strings.Join(uploaded, ", "), err)
		}
		return nil, err
	}

	c.mu.Lock()
	c.done = true
	c.mu.Unlock()
	return doc, nil
}

func (c *Coordinator) uploadOne(ctx context.Context, t *task) (string, *storage.UploadResult, error) {
	opts := storage.UploadOptions{
		Folder: c.folder,
		Public: c.bucket.Public,
	}
	res, err := c.adapter.Upload(ctx, c.bucket.Name, t.file, opts, func(pct int) {
		c.setProgress(t, pct)
	})
	if err != nil {
		return "", nil, err
	}

	if res.PublicURL != "" {
		return res.PublicURL, res, nil
	}
	url, err := c.adapter.SignedURL(ctx, c.bucket.Name, res.Path, signedURLTTL)
	if err != nil {
		return "", nil, err
	}
	return url, res, nil
}
