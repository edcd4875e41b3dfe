package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minhvtb/songvault-be/internal/api/domain"
	"github.com/minhvtb/songvault-be/internal/api/model"
)

// fakeStore implements DownloadStore with the same atomicity the real
// Postgres store provides per download_id.
type fakeStore struct {
	mu        sync.Mutex
	records   map[string]*model.Download
	creates   int
	createErr error
	getErr    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: map[string]*model.Download{}}
}

func (s *fakeStore) CreateIfAbsent(_ context.Context, dl *model.Download) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return false, s.createErr
	}
	if _, ok := s.records[dl.DownloadID]; ok {
		return false, nil
	}
	cp := *dl
	s.records[dl.DownloadID] = &cp
	s.creates++
	return true, nil
}

func (s *fakeStore) GetByID(_ context.Context, downloadID string) (*model.Download, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	dl, ok := s.records[downloadID]
	if !ok {
		return nil, domain.ErrDownloadNotFound
	}
	cp := *dl
	return &cp, nil
}

func (s *fakeStore) Requeue(_ context.Context, downloadID string) (*model.Download, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dl, ok := s.records[downloadID]
	if !ok {
		return nil, domain.ErrDownloadNotFound
	}
	if dl.Status != domain.StatusFailed {
		return nil, domain.ErrNotRequeueable
	}
	dl.Status = domain.StatusPending
	dl.Attempt++
	dl.FileName = ""
	cp := *dl
	return &cp, nil
}

func (s *fakeStore) Delete(_ context.Context, downloadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[downloadID]; !ok {
		return domain.ErrDownloadNotFound
	}
	delete(s.records, downloadID)
	return nil
}

func (s *fakeStore) set(dl *model.Download) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[dl.DownloadID] = dl
}

type fakePublisher struct {
	mu       sync.Mutex
	payloads [][]byte
	err      error
}

func (p *fakePublisher) Publish(_ context.Context, body []byte, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.payloads = append(p.payloads, body)
	return nil
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.payloads)
}

type fakeSigner struct {
	err error
}

func (f *fakeSigner) PresignedURL(_ context.Context, objectName string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "https://s3.example.com/bucket/" + objectName + "?sig=abc", nil
}

func newTestGate(store *fakeStore, pub *fakePublisher, signer *fakeSigner) *Gate {
	return NewGate(store, pub, signer, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestGate_Submit_FirstSighting(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{}
	gate := newTestGate(store, pub, &fakeSigner{})

	res, err := gate.Submit(context.Background(), Submission{
		ID:        "abc",
		SourceURL: "https://service/track/abc",
		Keyword:   "Song Artist",
	})

	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, res.Status)
	assert.Equal(t, "abc", res.DownloadID)
	assert.Equal(t, 1, store.creates)
	assert.Equal(t, 1, pub.count())
	assert.Equal(t, domain.StatusPending, store.records["abc"].Status)
}

func TestGate_Submit_DuplicateWhilePending(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{}
	gate := newTestGate(store, pub, &fakeSigner{})

	_, err := gate.Submit(context.Background(), Submission{
		ID: "abc", SourceURL: "https://service/track/abc", Keyword: "Song Artist",
	})
	require.NoError(t, err)

	res, err := gate.Submit(context.Background(), Submission{
		ID: "abc", SourceURL: "https://service/track/abc", Keyword: "Song Artist",
	})

	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, res.Status)
	assert.Equal(t, 1, store.creates, "exactly one record")
	assert.Equal(t, 1, pub.count(), "exactly one task")
}

func TestGate_Submit_AfterCompletion(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{}
	gate := newTestGate(store, pub, &fakeSigner{})

	store.set(&model.Download{
		DownloadID: "abc",
		SourceURL:  "https://service/track/abc",
		Keyword:    "Song Artist",
		Status:     domain.StatusCompleted,
		FileName:   "song-artist_abc.mp3",
	})

	res, err := gate.Submit(context.Background(), Submission{
		ID: "abc", SourceURL: "https://service/track/abc", Keyword: "Song Artist",
	})

	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, res.Status)
	assert.Contains(t, res.FileURL, "song-artist_abc.mp3")
	assert.Equal(t, 0, pub.count(), "completed record never re-runs the pipeline")
}

func TestGate_Submit_AfterFailure(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{}
	gate := newTestGate(store, pub, &fakeSigner{})

	store.set(&model.Download{
		DownloadID: "xyz",
		Status:     domain.StatusFailed,
	})

	res, err := gate.Submit(context.Background(), Submission{
		ID: "xyz", SourceURL: "https://service/track/xyz", Keyword: "Other Song",
	})

	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, res.Status)
	assert.NotEmpty(t, res.Message)
	assert.Equal(t, 0, pub.count())
}

func TestGate_Submit_Validation(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{}
	gate := newTestGate(store, pub, &fakeSigner{})

	tests := []struct {
		name string
		sub  Submission
	}{
		{"missing id", Submission{SourceURL: "https://service/track/abc", Keyword: "Song"}},
		{"missing url", Submission{ID: "abc", Keyword: "Song"}},
		{"missing keyword", Submission{ID: "abc", SourceURL: "https://service/track/abc"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := gate.Submit(context.Background(), tt.sub)
			require.ErrorIs(t, err, ErrValidation)
		})
	}

	assert.Equal(t, 0, store.creates, "no record created on validation failure")
	assert.Equal(t, 0, pub.count())
}

func TestGate_Submit_ConcurrentSameID(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{}
	gate := newTestGate(store, pub, &fakeSigner{})

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := gate.Submit(context.Background(), Submission{
				ID: "abc", SourceURL: "https://service/track/abc", Keyword: "Song Artist",
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, store.creates, "at most one record under racing submissions")
	assert.Equal(t, 1, pub.count(), "at most one task under racing submissions")
}

func TestGate_Submit_StoreError(t *testing.T) {
	store := newFakeStore()
	store.createErr = errors.New("connection refused")
	pub := &fakePublisher{}
	gate := newTestGate(store, pub, &fakeSigner{})

	_, err := gate.Submit(context.Background(), Submission{
		ID: "abc", SourceURL: "https://service/track/abc", Keyword: "Song Artist",
	})

	// Infrastructure failure, not a domain failed state.
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrValidation)
	assert.Equal(t, 0, pub.count())
}

func TestGate_Requeue(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{}
	gate := newTestGate(store, pub, &fakeSigner{})

	store.set(&model.Download{
		DownloadID: "xyz",
		SourceURL:  "https://service/track/xyz",
		Keyword:    "Other Song",
		Status:     domain.StatusFailed,
	})

	res, err := gate.Requeue(context.Background(), "xyz")

	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, res.Status)
	assert.Equal(t, 1, pub.count(), "exactly one new task")
	assert.Equal(t, domain.StatusPending, store.records["xyz"].Status)
	assert.Equal(t, 1, store.records["xyz"].Attempt)
}

func TestGate_Requeue_NonFailed(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{}
	gate := newTestGate(store, pub, &fakeSigner{})

	store.set(&model.Download{DownloadID: "abc", Status: domain.StatusPending})

	_, err := gate.Requeue(context.Background(), "abc")

	require.ErrorIs(t, err, domain.ErrNotRequeueable)
	assert.Equal(t, 0, pub.count())
}

func TestGate_Status_NotFound(t *testing.T) {
	gate := newTestGate(newFakeStore(), &fakePublisher{}, &fakeSigner{})

	_, err := gate.Status(context.Background(), "missing")

	require.ErrorIs(t, err, domain.ErrDownloadNotFound)
}

func TestGate_Delete(t *testing.T) {
	store := newFakeStore()
	gate := newTestGate(store, &fakePublisher{}, &fakeSigner{})

	store.set(&model.Download{DownloadID: "abc", Status: domain.StatusProcessing})

	require.NoError(t, gate.Delete(context.Background(), "abc"))
	_, err := gate.Status(context.Background(), "abc")
	require.ErrorIs(t, err, domain.ErrDownloadNotFound)
}
