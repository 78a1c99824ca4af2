package simpleblog

import (
	"errors"
	"fmt"
)

// Error types
var (
	// ErrIdentityNotFound indicates an identity was not found
	ErrIdentityNotFound = errors.New("user not found")

	// ErrPostNotFound indicates a post was not found
	ErrPostNotFound = errors.New("blog not found")

	// ErrEmailTaken indicates an identity with the same email already exists
	ErrEmailTaken = errors.New("user already exists")

	// ErrInvalidCredentials is returned for both an unknown email and a wrong password
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUnauthenticated indicates a missing, invalid or expired session
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrNotOwner indicates the caller does not own the post
	ErrNotOwner = errors.New("not authorized")

	// ErrUploadFailed indicates the blob store did not confirm an upload
	ErrUploadFailed = errors.New("upload failed")

	// ErrDeleteFailed indicates the blob store did not confirm a delete
	ErrDeleteFailed = errors.New("delete failed")

	// ErrObjectNotFound is returned by blob stores for an unknown object key
	ErrObjectNotFound = errors.New("object not found")
)

// ValidationError reports user-correctable input problems.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError reports a rejected input field with a client-facing message.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

func invalid(field, message string) error {
	return NewValidationError(field, message)
}

// AssetError represents an error related to blob store operations
type AssetError struct {
	Folder string
	Key    string
	Op     string
	Err    error
}

func (e *AssetError) Error() string {
	return fmt.Sprintf("asset operation %s failed for key %q in folder %q: %v", e.Op, e.Key, e.Folder, e.Err)
}

func (e *AssetError) Unwrap() error {
	return e.Err
}
