package simpleblog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/tendant/simple-blog/pkg/simpleblog/objectkey"
)

// Asset folder kinds, namespaced below the lower-cased application name.
const (
	FolderAvatars = "avatars"
	FolderBlogs   = "blogs"
)

// FolderPath returns the blob store folder for kind, e.g. "simpleblog/avatars".
func FolderPath(appName, kind string) string {
	return strings.ToLower(appName) + "/" + kind
}

// MediaManager moves transient uploads into the blob store and removes stored assets.
// It holds no state of its own; the returned Asset is persisted by the referencing record.
type MediaManager struct {
	store        BlobStore
	keys         objectkey.Generator
	transformers map[string]Transformer
}

// MediaOption configures a MediaManager
type MediaOption func(*MediaManager)

// WithKeyGenerator overrides the object key strategy
func WithKeyGenerator(gen objectkey.Generator) MediaOption {
	return func(m *MediaManager) {
		m.keys = gen
	}
}

// WithTransformer registers a transformer applied to uploads stored under folder
func WithTransformer(folder string, t Transformer) MediaOption {
	return func(m *MediaManager) {
		m.transformers[folder] = t
	}
}

// NewMediaManager creates a media manager on top of a blob store
func NewMediaManager(store BlobStore, opts ...MediaOption) *MediaManager {
	m := &MediaManager{
		store:        store,
		keys:         objectkey.NewRecommendedGenerator(),
		transformers: make(map[string]Transformer),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Store uploads the file under folder. A nil upload returns NoAsset without touching the blob store.
func (m *MediaManager) Store(ctx context.Context, upload *Upload, folder string) (Asset, error) {
	if upload == nil || upload.Reader == nil {
		return NoAsset(), nil
	}

	if t, ok := m.transformers[lastSegment(folder)]; ok {
		transformed, err := t.Transform(upload)
		if err != nil {
			slog.Warn("Upload transform failed, storing original", "folder", folder, "error", err)
		} else {
			upload = transformed
		}
	}

	key := m.keys.GenerateKey(folder, uuid.New(), upload.FileName)
	mimeType := upload.ContentType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	if err := m.store.UploadWithParams(ctx, upload.Reader, UploadParams{ObjectKey: key, MimeType: mimeType}); err != nil {
		return NoAsset(), &AssetError{Folder: folder, Key: key, Op: "store", Err: errors.Join(ErrUploadFailed, err)}
	}

	objectURL, err := m.store.GetObjectURL(ctx, key)
	if err != nil || !usableURL(objectURL) {
		if err == nil {
			err = fmt.Errorf("blob store returned unusable url %q", objectURL)
		}
		// the object exists but cannot be referenced; do not leave it behind
		if delErr := m.store.Delete(ctx, key); delErr != nil {
			slog.Error("Failed to remove unreferenced upload", "key", key, "error", delErr)
		}
		return NoAsset(), &AssetError{Folder: folder, Key: key, Op: "store", Err: errors.Join(ErrUploadFailed, err)}
	}

	return StoredAsset(key, objectURL), nil
}

// Remove deletes a stored asset. Absent and static assets are a no-op.
func (m *MediaManager) Remove(ctx context.Context, asset Asset) error {
	if !asset.IsStored() {
		return nil
	}
	if err := m.store.Delete(ctx, asset.ID); err != nil {
		return &AssetError{Key: asset.ID, Op: "remove", Err: errors.Join(ErrDeleteFailed, err)}
	}
	return nil
}

func usableURL(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "https" || u.Scheme == "http") && u.Host != ""
}

func lastSegment(folder string) string {
	folder = strings.TrimRight(folder, "/")
	if i := strings.LastIndex(folder, "/"); i >= 0 {
		return folder[i+1:]
	}
	return folder
}
