package pipeline_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/slidesmith/slidesmith/internal/jobs"
	"github.com/slidesmith/slidesmith/internal/pipeline"
	"github.com/slidesmith/slidesmith/pkg/lifecycle"
	"github.com/slidesmith/slidesmith/pkg/storage"
)

// memStorage is an in-memory storage.System for exercising stages that
// read or write blobs.
type memStorage struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func newMemStorage() *memStorage {
	return &memStorage{blobs: make(map[string][]byte)}
}

func (m *memStorage) put(key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = data
}

func (m *memStorage) get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[key]
	return data, ok
}

func (m *memStorage) Start(*lifecycle.Coordinator) error { return nil }

func (m *memStorage) Upload(_ context.Context, key string, reader io.Reader, _ string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	m.put(key, data)
	return nil
}

func (m *memStorage) Download(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := m.get(key)
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blobs[key]; !ok {
		return storage.ErrNotFound
	}
	delete(m.blobs, key)
	return nil
}

func (m *memStorage) Exists(_ context.Context, key string) (bool, error) {
	_, ok := m.get(key)
	return ok, nil
}

// failingStorage stands in for an unreachable blob backend.
type failingStorage struct{}

var errStorageDown = errors.New("connection reset")

func (failingStorage) Start(*lifecycle.Coordinator) error { return nil }

func (failingStorage) Upload(context.Context, string, io.Reader, string) error {
	return errStorageDown
}

func (failingStorage) Download(context.Context, string) (io.ReadCloser, error) {
	return nil, errStorageDown
}

func (failingStorage) Delete(context.Context, string) error { return errStorageDown }

func (failingStorage) Exists(context.Context, string) (bool, error) {
	return false, errStorageDown
}

func testRuntime(store storage.System) *pipeline.Runtime {
	return &pipeline.Runtime{
		Storage: store,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func jobWith(key string, artifact any) *jobs.Job {
	return jobs.New(map[string]any{key: artifact})
}

// decodeArtifact pulls a typed stage artifact back out of a patch the way
// downstream stages do.
func decodeArtifact[T any](t *testing.T, patch *jobs.Patch, key string) T {
	t.Helper()

	raw, ok := patch.Data[key]
	if !ok {
		t.Fatalf("patch is missing %s", key)
	}

	buf, err := json.Marshal(raw)
	if err != nil {
		t.Fatalf("encode %s: %v", key, err)
	}

	var out T
	if err := json.Unmarshal(buf, &out); err != nil {
		t.Fatalf("decode %s: %v", key, err)
	}
	return out
}
