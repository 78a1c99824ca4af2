package simpleblog

import (
	"io"

	"github.com/google/uuid"
)

// Upload is a transient file received with a request. A nil *Upload means no file was attached.
type Upload struct {
	Reader      io.Reader
	FileName    string
	ContentType string
	Size        int64
}

// RegisterRequest contains parameters for registering an identity
type RegisterRequest struct {
	Email    string
	Password string
	Avatar   *Upload
}

// LoginRequest contains credentials for a login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UpdateProfileRequest contains the optional fields of a profile update
type UpdateProfileRequest struct {
	IdentityID uuid.UUID
	Password   string
	Avatar     *Upload
}

// CreatePostRequest contains parameters for creating a post
type CreatePostRequest struct {
	OwnerID uuid.UUID
	Title   string
	Content string
	Image   *Upload
}

// DeletePostRequest names the post to delete and the identity asking for it
type DeletePostRequest struct {
	PostID  uuid.UUID
	ActorID uuid.UUID
}
