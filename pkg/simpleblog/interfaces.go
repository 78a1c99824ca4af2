package simpleblog

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// BlobStore defines the interface for object storage backends
type BlobStore interface {
	// UploadWithParams uploads content under params.ObjectKey
	UploadWithParams(ctx context.Context, reader io.Reader, params UploadParams) error

	// GetObjectURL returns the stable public url for an object key
	GetObjectURL(ctx context.Context, objectKey string) (string, error)

	// Delete deletes an object
	Delete(ctx context.Context, objectKey string) error

	// GetObjectMeta retrieves metadata for an object
	GetObjectMeta(ctx context.Context, objectKey string) (*ObjectMeta, error)

	// List returns metadata for every object whose key starts with prefix
	List(ctx context.Context, prefix string) ([]ObjectMeta, error)
}

// IdentityRepository persists identities.
type IdentityRepository interface {
	// CreateIdentity returns ErrEmailTaken when the email is already registered.
	CreateIdentity(ctx context.Context, identity *Identity) error
	GetIdentity(ctx context.Context, id uuid.UUID) (*Identity, error)
	GetIdentityByEmail(ctx context.Context, email string) (*Identity, error)
	UpdateIdentity(ctx context.Context, identity *Identity) error
	DeleteIdentity(ctx context.Context, id uuid.UUID) error
}

// PostRepository persists posts.
type PostRepository interface {
	// CreatePost returns ErrIdentityNotFound when the owner does not exist.
	CreatePost(ctx context.Context, post *Post) error
	GetPost(ctx context.Context, id uuid.UUID) (*Post, error)
	GetPostView(ctx context.Context, id uuid.UUID) (*PostView, error)
	// ListPostViews returns every post with its owner, newest first.
	ListPostViews(ctx context.Context) ([]*PostView, error)
	ListPostsByOwner(ctx context.Context, ownerID uuid.UUID) ([]*Post, error)
	DeletePost(ctx context.Context, id uuid.UUID) error
}

// Repository defines the interface for identity and post persistence
type Repository interface {
	IdentityRepository
	PostRepository

	// ListAssetIDs returns every stored asset id referenced by an identity or a post.
	ListAssetIDs(ctx context.Context) ([]string, error)
}

// Hasher produces and checks one-way password digests.
type Hasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, digest string) bool
}

// EventSink receives lifecycle notifications. Errors are logged, never surfaced to callers.
type EventSink interface {
	IdentityRegistered(ctx context.Context, identity *Identity) error
	LoginAttempted(ctx context.Context, succeeded bool) error
	IdentityDeleted(ctx context.Context, identityID uuid.UUID) error
	PostCreated(ctx context.Context, post *Post) error
	PostDeleted(ctx context.Context, postID uuid.UUID) error
	AssetStored(ctx context.Context, folder string, asset Asset) error
	AssetRemoveFailed(ctx context.Context, asset Asset, err error) error
}

// Transformer rewrites an upload before it is sent to the blob store.
type Transformer interface {
	Transform(upload *Upload) (*Upload, error)
}
