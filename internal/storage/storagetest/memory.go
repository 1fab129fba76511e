// internal/storage/storagetest/memory.go
package storagetest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"loan-origination/internal/storage"
)

// ErrNotFound is returned for missing keys.
var ErrNotFound = fmt.Errorf("object not found")

// Memory is an in-process Provider for tests. FailOn makes the named
// operation return the given error.
type Memory struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	FailOn  map[string]error
	Calls   []string
}

func NewMemory() *Memory {
	return &Memory{
		objects: make(map[string][]byte),
		types:   make(map[string]string),
		FailOn:  make(map[string]error),
	}
}

func (m *Memory) record(op string) error {
	m.Calls = append(m.Calls, op)
	return m.FailOn[op]
}

// Object returns the stored bytes and whether the key exists.
func (m *Memory) Object(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[key]
	return b, ok
}

func (m *Memory) Name() storage.ProviderName { return "Memory" }

func (m *Memory) UploadFile(_ context.Context, srcPath, destKey string) error {
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("UploadFile"); err != nil {
		return err
	}
	m.objects[destKey] = data
	return nil
}

func (m *Memory) UploadData(_ context.Context, data []byte, destKey, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("UploadData"); err != nil {
		return err
	}
	m.objects[destKey] = append([]byte(nil), data...)
	m.types[destKey] = contentType
	return nil
}

func (m *Memory) GetData(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("GetData"); err != nil {
		return nil, err
	}
	b, ok := m.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), b...), nil
}

func (m *Memory) DownloadDocument(ctx context.Context, srcKey, destPath string) error {
	data, err := m.GetData(ctx, srcKey)
	if err != nil {
		return err
	}
	return os.WriteFile(destPath, data, 0o644)
}

func (m *Memory) DownloadSignedURL(_ context.Context, key, fileName string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("DownloadSignedURL"); err != nil {
		return "", err
	}
	return fmt.Sprintf("memory://%s?filename=%s", key, fileName), nil
}

func (m *Memory) UploadSignedURL(_ context.Context, key, contentType string) (*storage.SignedUpload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("UploadSignedURL"); err != nil {
		return nil, err
	}
	return &storage.SignedUpload{URL: "memory://" + key, Headers: map[string]string{"Content-Type": contentType}}, nil
}

func (m *Memory) DeleteFile(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("DeleteFile"); err != nil {
		return err
	}
	delete(m.objects, key)
	return nil
}

func (m *Memory) DocumentExists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("DocumentExists"); err != nil {
		return false, err
	}
	_, ok := m.objects[key]
	return ok, nil
}

func (m *Memory) CopyFile(_ context.Context, srcKey, destKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("CopyFile"); err != nil {
		return err
	}
	b, ok := m.objects[srcKey]
	if !ok {
		return ErrNotFound
	}
	m.objects[destKey] = append([]byte(nil), b...)
	return nil
}

func (m *Memory) FileMetadata(_ context.Context, key string) (*storage.Metadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("FileMetadata"); err != nil {
		return nil, err
	}
	b, ok := m.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	size := int64(len(b))
	return &storage.Metadata{Size: &size}, nil
}

func (m *Memory) ReadStream(ctx context.Context, key string) (io.ReadCloser, error) {
	data, err := m.GetData(ctx, key)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *Memory) WriteStream(_ context.Context, key, contentType string) (io.WriteCloser, error) {
	return &memoryWriter{m: m, key: key, contentType: contentType}, nil
}

func (m *Memory) RawFile(ctx context.Context, key string) (storage.RawFile, error) {
	data, err := m.GetData(ctx, key)
	if err != nil {
		return nil, err
	}
	return &memoryRaw{key: key, data: data}, nil
}

type memoryWriter struct {
	m           *Memory
	key         string
	contentType string
	buf         bytes.Buffer
}

func (w *memoryWriter) Write(b []byte) (int, error) { return w.buf.Write(b) }

func (w *memoryWriter) Close() error {
	return w.m.UploadData(context.Background(), w.buf.Bytes(), w.key, w.contentType)
}

type memoryRaw struct {
	key  string
	data []byte
}

func (r *memoryRaw) Key() string { return r.key }
func (r *memoryRaw) Size() int64 { return int64(len(r.data)) }

func (r *memoryRaw) NewRangeReader(_ context.Context, offset, length int64) (io.ReadCloser, error) {
	if offset > int64(len(r.data)) {
		return nil, fmt.Errorf("offset %d beyond size %d", offset, len(r.data))
	}
	end := int64(len(r.data))
	if length >= 0 && offset+length < end {
		end = offset + length
	}
	return io.NopCloser(bytes.NewReader(r.data[offset:end])), nil
}
