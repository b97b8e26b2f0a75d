package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-process RouteStore used by tests and local runs
// without a bucket.
type MemoryStore struct {
	mu      sync.Mutex
	baseURL string
	objects map[string]memoryObject
	deleted []string

	// Optional failures, checked on every call.
	UploadErr error
	DeleteErr error
	ListErr   error

	Now func() time.Time
}

type memoryObject struct {
	body        []byte
	contentType string
	modified    time.Time
}

func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		objects: make(map[string]memoryObject),
		Now:     time.Now,
	}
}

func (m *MemoryStore) Upload(_ context.Context, in UploadInput) (StoredObject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.UploadErr != nil {
		return StoredObject{}, m.UploadErr
	}

	contentType := in.ContentType
	if contentType == "" {
		contentType = DefaultContentType
	}

	now := m.Now()
	key := RouteKey(in.Filename, now)
	m.objects[key] = memoryObject{
		body:        append([]byte(nil), in.Body...),
		contentType: contentType,
		modified:    now,
	}
	return StoredObject{Key: key, URL: m.URLFor(key)}, nil
}

// Put stores an object under an explicit key.
func (m *MemoryStore) Put(key string, body []byte, modified time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memoryObject{body: body, contentType: DefaultContentType, modified: modified}
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	delete(m.objects, key)
	m.deleted = append(m.deleted, key)
	return nil
}

func (m *MemoryStore) List(_ context.Context, prefix string) ([]ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ListErr != nil {
		return nil, m.ListErr
	}

	var out []ObjectInfo
	for key, obj := range m.objects {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		out = append(out, ObjectInfo{
			Key:          key,
			URL:          m.URLFor(key),
			Size:         int64(len(obj.body)),
			LastModified: obj.modified,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *MemoryStore) URLFor(key string) string {
	return m.baseURL + "/" + key
}

func (m *MemoryStore) KeyFromURL(rawURL string) (string, bool) {
	return keyUnderBase(m.baseURL, rawURL)
}

// Has reports whether key is currently stored.
func (m *MemoryStore) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}

// Body returns the stored bytes for key.
func (m *MemoryStore) Body(key string) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.objects[key].body
}

// Deleted returns the keys passed to Delete, in call order.
func (m *MemoryStore) Deleted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.deleted...)
}

// Disabled is used when no bucket is configured: uploads fail and nothing is
// ever recognized as a stored route file.
type Disabled struct{}

func (Disabled) Upload(context.Context, UploadInput) (StoredObject, error) {
	return StoredObject{}, ErrNotConfigured
}

func (Disabled) Delete(context.Context, string) error { return ErrNotConfigured }

func (Disabled) List(context.Context, string) ([]ObjectInfo, error) { return nil, nil }

func (Disabled) URLFor(key string) string { return key }

func (Disabled) KeyFromURL(string) (string, bool) { return "", false }
