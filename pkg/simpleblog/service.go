package simpleblog

import (
	"context"

	"github.com/google/uuid"
)

// Service is the main interface for identity, profile and post operations.
type Service interface {
	// Identity operations
	Register(ctx context.Context, req RegisterRequest) (*Identity, error)
	Login(ctx context.Context, req LoginRequest) (*Identity, error)
	CurrentIdentity(ctx context.Context, id uuid.UUID) (*Identity, error)
	UpdateProfile(ctx context.Context, req UpdateProfileRequest) (*Identity, error)
	DeleteAccount(ctx context.Context, id uuid.UUID) error

	// Post operations
	CreatePost(ctx context.Context, req CreatePostRequest) (*Post, error)
	ListPosts(ctx context.Context) ([]*PostView, error)
	GetPost(ctx context.Context, id uuid.UUID) (*PostView, error)
	DeletePost(ctx context.Context, req DeletePostRequest) error
}
