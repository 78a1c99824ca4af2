package memory

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tendant/simple-blog/pkg/simpleblog"
)

// DefaultBaseURL prefixes object urls when none is configured.
const DefaultBaseURL = "http://localhost:8080/media"

type object struct {
	data      []byte
	mimeType  string
	updatedAt time.Time
}

// Backend is an in-memory implementation of the simpleblog.BlobStore interface
type Backend struct {
	mu      sync.RWMutex
	objects map[string]object
	baseURL string
}

// New creates a new in-memory storage backend. Object urls are baseURL/key.
func New(baseURL string) *Backend {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Backend{
		objects: make(map[string]object),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// UploadWithParams uploads content with parameters
func (b *Backend) UploadWithParams(ctx context.Context, reader io.Reader, params simpleblog.UploadParams) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	mimeType := params.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.objects[params.ObjectKey] = object{data: data, mimeType: mimeType, updatedAt: time.Now().UTC()}
	return nil
}

// GetObjectURL returns the url of a stored object
func (b *Backend) GetObjectURL(ctx context.Context, objectKey string) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if _, exists := b.objects[objectKey]; !exists {
		return "", simpleblog.ErrObjectNotFound
	}
	return b.baseURL + "/" + objectKey, nil
}

// GetObjectMeta retrieves metadata for an object in memory
func (b *Backend) GetObjectMeta(ctx context.Context, objectKey string) (*simpleblog.ObjectMeta, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, exists := b.objects[objectKey]
	if !exists {
		return nil, simpleblog.ErrObjectNotFound
	}

	return &simpleblog.ObjectMeta{
		Key:         objectKey,
		Size:        int64(len(obj.data)),
		ContentType: obj.mimeType,
		UpdatedAt:   obj.updatedAt,
	}, nil
}

// List returns metadata for every object under prefix, ordered by key
func (b *Backend) List(ctx context.Context, prefix string) ([]simpleblog.ObjectMeta, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var metas []simpleblog.ObjectMeta
	for key, obj := range b.objects {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		metas = append(metas, simpleblog.ObjectMeta{
			Key:         key,
			Size:        int64(len(obj.data)),
			ContentType: obj.mimeType,
			UpdatedAt:   obj.updatedAt,
		})
	}

	sort.Slice(metas, func(i, j int) bool { return metas[i].Key < metas[j].Key })
	return metas, nil
}

// Download returns the stored bytes
func (b *Backend) Download(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, exists := b.objects[objectKey]
	if !exists {
		return nil, simpleblog.ErrObjectNotFound
	}

	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

// Delete deletes content
func (b *Backend) Delete(ctx context.Context, objectKey string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.objects[objectKey]; !exists {
		return simpleblog.ErrObjectNotFound
	}

	delete(b.objects, objectKey)
	return nil
}

// Touch sets the modification time of an object. Used to age objects in tests of the sweep.
func (b *Backend) Touch(objectKey string, at time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if obj, exists := b.objects[objectKey]; exists {
		obj.updatedAt = at
		b.objects[objectKey] = obj
	}
}
