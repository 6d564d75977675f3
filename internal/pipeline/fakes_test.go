package pipeline_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/nexus/internal/jobs"
	"github.com/JaimeStill/nexus/internal/pipeline"
	"github.com/JaimeStill/nexus/pkg/lifecycle"
	"github.com/JaimeStill/nexus/pkg/render"
	"github.com/JaimeStill/nexus/pkg/storage"
	"github.com/JaimeStill/nexus/pkg/vision"
)

var errStoreDown = errors.New("store unreachable")

const testPrompt = "Describe the page."

// fakeStore is an in-memory job store enforcing the status transition table.
// failures[s] fails the next writes to s before they apply; lostReplies[s]
// applies the next writes to s but reports them as failed. findFailures
// fails the next loads.
type fakeStore struct {
	mu           sync.Mutex
	jobs         map[uuid.UUID]*jobs.Job
	history      []jobs.Status
	failures     map[jobs.Status]int
	lostReplies  map[jobs.Status]int
	findFailures int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		jobs:        make(map[uuid.UUID]*jobs.Job),
		failures:    make(map[jobs.Status]int),
		lostReplies: make(map[jobs.Status]int),
	}
}

func (s *fakeStore) put(j jobs.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[j.ID] = &j
}

func (s *fakeStore) get(id uuid.UUID) jobs.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.jobs[id]
}

func (s *fakeStore) statuses() []jobs.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]jobs.Status(nil), s.history...)
}

func (s *fakeStore) Find(_ context.Context, id uuid.UUID) (*jobs.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findFailures > 0 {
		s.findFailures--
		return nil, errStoreDown
	}

	j, ok := s.jobs[id]
	if !ok {
		return nil, jobs.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (s *fakeStore) Update(_ context.Context, id uuid.UUID, u jobs.Update) (*jobs.Job, error) {
	if err := u.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if n := s.failures[u.Status]; n > 0 {
		s.failures[u.Status] = n - 1
		return nil, errStoreDown
	}

	j, ok := s.jobs[id]
	if !ok {
		return nil, jobs.ErrNotFound
	}
	if u.AppliedTo(j) {
		cp := *j
		return &cp, nil
	}
	if !j.Status.CanTransition(u.Status) {
		return nil, fmt.Errorf("%w: %s -> %s", jobs.ErrInvalidTransition, j.Status, u.Status)
	}

	j.Status = u.Status
	if u.PageImageLocations != nil {
		j.PageImageLocations = u.PageImageLocations
	}
	j.Result = u.Result
	j.Error = u.Error
	j.UpdatedAt = time.Now()

	s.history = append(s.history, u.Status)

	if n := s.lostReplies[u.Status]; n > 0 {
		s.lostReplies[u.Status] = n - 1
		return nil, errStoreDown
	}

	cp := *j
	return &cp, nil
}

// fakeStorage is an in-memory blob store.
type fakeStorage struct {
	mu       sync.Mutex
	blobs    map[string][]byte
	deleted  []string
	failRead map[string]bool
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		blobs:    make(map[string][]byte),
		failRead: make(map[string]bool),
	}
}

func (s *fakeStorage) Start(*lifecycle.Coordinator) error { return nil }

func (s *fakeStorage) Upload(_ context.Context, key string, r io.Reader, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[key] = data
	return nil
}

func (s *fakeStorage) Download(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failRead[key] {
		return nil, errors.New("read failed")
	}
	data, ok := s.blobs[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *fakeStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.blobs[key]; !ok {
		return storage.ErrNotFound
	}
	delete(s.blobs, key)
	s.deleted = append(s.deleted, key)
	return nil
}

func (s *fakeStorage) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.blobs[key]
	return ok, nil
}

func (s *fakeStorage) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.blobs)
}

// fakeConverter returns one image per configured page, tagged with the page
// number so inference fakes can identify pages.
type fakeConverter struct {
	pages int
	err   error
	calls int
}

func (c *fakeConverter) Convert(ctx context.Context, _ []byte, _ render.Options) ([][]byte, error) {
	c.calls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.err != nil {
		return nil, c.err
	}
	if c.pages == 0 {
		return nil, render.ErrNoPages
	}

	images := make([][]byte, c.pages)
	for i := range images {
		images[i] = []byte(fmt.Sprintf("page-%d", i+1))
	}
	return images, nil
}

// fakeVision answers each page through fn, keyed by the page tag.
type fakeVision struct {
	mu      sync.Mutex
	calls   int
	prompts []string
	fn      func(ctx context.Context, page string) (string, error)
}

func (v *fakeVision) Infer(ctx context.Context, image []byte, _ string, prompt string) (string, error) {
	v.mu.Lock()
	v.calls++
	v.prompts = append(v.prompts, prompt)
	v.mu.Unlock()
	return v.fn(ctx, string(image))
}

func (v *fakeVision) callCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.calls
}

func echoVision() *fakeVision {
	return &fakeVision{
		fn: func(_ context.Context, page string) (string, error) {
			return "text of " + page, nil
		},
	}
}

type harness struct {
	store     *fakeStore
	storage   *fakeStorage
	converter *fakeConverter
	vision    vision.Client
	job       jobs.Job
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHarness(t *testing.T, pages int, v vision.Client) *harness {
	t.Helper()

	id := uuid.New()
	source := jobs.SourceKey(id, "resume.pdf")

	h := &harness{
		store:     newFakeStore(),
		storage:   newFakeStorage(),
		converter: &fakeConverter{pages: pages},
		vision:    v,
		job: jobs.Job{
			ID:             id,
			Filename:       "resume.pdf",
			ContentType:    "application/pdf",
			SourceLocation: source,
			Status:         jobs.StatusQueued,
		},
	}

	h.store.put(h.job)
	h.storage.blobs[source] = []byte("%PDF-1.7 fake")

	return h
}

func (h *harness) orchestrator(fanOut int) *pipeline.Orchestrator {
	rt := &pipeline.Runtime{
		Jobs:      h.store,
		Storage:   h.storage,
		Converter: h.converter,
		Render:    render.Options{DPI: 150, Format: render.FormatPNG},
		Vision:    h.vision,
		Prompt:    testPrompt,
		Logger:    discardLogger(),
	}
	return pipeline.New(rt, &pipeline.Config{FanOut: fanOut, PersistRetryDelay: "1ms"})
}

func (h *harness) run(t *testing.T, fanOut int) (jobs.Status, error) {
	t.Helper()
	return h.orchestrator(fanOut).Run(context.Background(), h.job.ID, h.job.SourceLocation)
}

func equalStatuses(a, b []jobs.Status) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func joinPages(texts ...string) string {
	return strings.Join(texts, pipeline.PageBreak)
}
