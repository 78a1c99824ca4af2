package simpleblog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	// DefaultAppName namespaces blob store folders when no name is configured.
	DefaultAppName = "SimpleBlog"
	// DefaultMinPasswordLength is the shortest accepted password.
	DefaultMinPasswordLength = 6
)

// service implements the Service interface
type service struct {
	repository Repository
	media      *MediaManager
	hasher     Hasher
	eventSink  EventSink
	sanitizer  Sanitizer

	appName           string
	defaultAvatarURL  string
	minPasswordLength int

	dummyOnce   sync.Once
	dummyDigest string
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the repository for the service
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithBlobStore stores uploaded media in the given blob store
func WithBlobStore(store BlobStore, opts ...MediaOption) Option {
	return func(s *service) {
		s.media = NewMediaManager(store, opts...)
	}
}

// WithHasher replaces the bcrypt password hasher
func WithHasher(h Hasher) Option {
	return func(s *service) {
		s.hasher = h
	}
}

// WithEventSink sets the event sink for the service
func WithEventSink(sink EventSink) Option {
	return func(s *service) {
		s.eventSink = sink
	}
}

// WithSanitizer replaces the post text sanitizer
func WithSanitizer(sanitizer Sanitizer) Option {
	return func(s *service) {
		s.sanitizer = sanitizer
	}
}

// WithAppName sets the name used to namespace blob store folders
func WithAppName(name string) Option {
	return func(s *service) {
		s.appName = name
	}
}

// WithDefaultAvatarURL sets the avatar url used when registering without a file
func WithDefaultAvatarURL(u string) Option {
	return func(s *service) {
		s.defaultAvatarURL = u
	}
}

// WithMinPasswordLength sets the minimum accepted password length
func WithMinPasswordLength(n int) Option {
	return func(s *service) {
		s.minPasswordLength = n
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		appName:           DefaultAppName,
		defaultAvatarURL:  "/default-avatar.png",
		minPasswordLength: DefaultMinPasswordLength,
	}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.media == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if s.hasher == nil {
		s.hasher = NewBcryptHasher(DefaultBcryptCost)
	}
	if s.eventSink == nil {
		s.eventSink = NewNoopEventSink()
	}
	if s.sanitizer == nil {
		s.sanitizer = NewSanitizer()
	}
	if s.minPasswordLength < 1 {
		return nil, fmt.Errorf("minimum password length must be positive, got %d", s.minPasswordLength)
	}

	return s, nil
}

// Identity operations

func (s *service) Register(ctx context.Context, req RegisterRequest) (*Identity, error) {
	if req.Email == "" {
		return nil, invalid("email", "Email is required")
	}
	if err := s.validatePassword(req.Password); err != nil {
		return nil, err
	}

	if _, err := s.repository.GetIdentityByEmail(ctx, req.Email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, ErrIdentityNotFound) {
		return nil, fmt.Errorf("failed to look up email: %w", err)
	}

	avatar := StaticAsset(s.defaultAvatarURL)
	if req.Avatar != nil {
		stored, err := s.media.Store(ctx, req.Avatar, s.folder(FolderAvatars))
		if err != nil {
			return nil, err
		}
		s.fire("AssetStored", s.eventSink.AssetStored(ctx, s.folder(FolderAvatars), stored))
		avatar = stored
	}

	digest, err := s.hasher.Hash(req.Password)
	if err != nil {
		s.discard(ctx, avatar)
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	identity := &Identity{
		ID:           uuid.New(),
		Email:        req.Email,
		PasswordHash: digest,
		Avatar:       avatar,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repository.CreateIdentity(ctx, identity); err != nil {
		s.discard(ctx, avatar)
		if errors.Is(err, ErrEmailTaken) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create identity: %w", err)
	}

	s.fire("IdentityRegistered", s.eventSink.IdentityRegistered(ctx, identity))
	return identity, nil
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*Identity, error) {
	if req.Email == "" {
		return nil, invalid("email", "Email is required")
	}
	if req.Password == "" {
		return nil, invalid("password", "Password is required")
	}

	identity, err := s.repository.GetIdentityByEmail(ctx, req.Email)
	if err != nil {
		if !errors.Is(err, ErrIdentityNotFound) {
			return nil, fmt.Errorf("failed to look up email: %w", err)
		}
		// spend the same work as a real comparison so response time does not reveal registered emails
		s.hasher.Verify(req.Password, s.dummy())
		s.fire("LoginAttempted", s.eventSink.LoginAttempted(ctx, false))
		return nil, ErrInvalidCredentials
	}

	if !s.hasher.Verify(req.Password, identity.PasswordHash) {
		s.fire("LoginAttempted", s.eventSink.LoginAttempted(ctx, false))
		return nil, ErrInvalidCredentials
	}

	s.fire("LoginAttempted", s.eventSink.LoginAttempted(ctx, true))
	return identity, nil
}

func (s *service) CurrentIdentity(ctx context.Context, id uuid.UUID) (*Identity, error) {
	return s.repository.GetIdentity(ctx, id)
}

func (s *service) UpdateProfile(ctx context.Context, req UpdateProfileRequest) (*Identity, error) {
	identity, err := s.repository.GetIdentity(ctx, req.IdentityID)
	if err != nil {
		return nil, err
	}

	if req.Password != "" {
		if err := s.validatePassword(req.Password); err != nil {
			return nil, err
		}
		digest, err := s.hasher.Hash(req.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		identity.PasswordHash = digest
	}

	previous := identity.Avatar
	replaced := false
	if req.Avatar != nil {
		stored, err := s.media.Store(ctx, req.Avatar, s.folder(FolderAvatars))
		if err != nil {
			return nil, err
		}
		s.fire("AssetStored", s.eventSink.AssetStored(ctx, s.folder(FolderAvatars), stored))
		identity.Avatar = stored
		replaced = true
	}

	identity.UpdatedAt = time.Now().UTC()
	if err := s.repository.UpdateIdentity(ctx, identity); err != nil {
		if replaced {
			s.discard(ctx, identity.Avatar)
		}
		if errors.Is(err, ErrIdentityNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update identity: %w", err)
	}

	// the replacement is persisted; only now may the old object go
	if replaced {
		s.removeQuietly(ctx, previous)
	}

	return identity, nil
}

func (s *service) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	identity, err := s.repository.GetIdentity(ctx, id)
	if err != nil {
		return err
	}

	posts, err := s.repository.ListPostsByOwner(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to list posts of identity: %w", err)
	}
	for _, post := range posts {
		if err := s.deletePost(ctx, post); err != nil && !errors.Is(err, ErrPostNotFound) {
			return err
		}
	}

	if err := s.repository.DeleteIdentity(ctx, id); err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete identity: %w", err)
	}

	// the record is gone; nothing references the avatar any more
	s.removeQuietly(ctx, identity.Avatar)

	s.fire("IdentityDeleted", s.eventSink.IdentityDeleted(ctx, id))
	return nil
}

// Post operations

func (s *service) CreatePost(ctx context.Context, req CreatePostRequest) (*Post, error) {
	title := s.sanitizer.SanitizeTitle(req.Title)
	if title == "" {
		return nil, invalid("title", "Title is required")
	}
	content := s.sanitizer.SanitizeContent(req.Content)
	if content == "" {
		return nil, invalid("content", "Content is required")
	}

	image, err := s.media.Store(ctx, req.Image, s.folder(FolderBlogs))
	if err != nil {
		return nil, err
	}
	if image.IsStored() {
		s.fire("AssetStored", s.eventSink.AssetStored(ctx, s.folder(FolderBlogs), image))
	}

	now := time.Now().UTC()
	post := &Post{
		ID:        uuid.New(),
		OwnerID:   req.OwnerID,
		Title:     title,
		Content:   content,
		Image:     image,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repository.CreatePost(ctx, post); err != nil {
		s.discard(ctx, image)
		if errors.Is(err, ErrIdentityNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create post: %w", err)
	}

	s.fire("PostCreated", s.eventSink.PostCreated(ctx, post))
	return post, nil
}

func (s *service) ListPosts(ctx context.Context) ([]*PostView, error) {
	return s.repository.ListPostViews(ctx)
}

func (s *service) GetPost(ctx context.Context, id uuid.UUID) (*PostView, error) {
	return s.repository.GetPostView(ctx, id)
}

func (s *service) DeletePost(ctx context.Context, req DeletePostRequest) error {
	post, err := s.repository.GetPost(ctx, req.PostID)
	if err != nil {
		return err
	}

	if post.OwnerID != req.ActorID {
		return ErrNotOwner
	}

	return s.deletePost(ctx, post)
}

// deletePost removes the image first, then the record.
func (s *service) deletePost(ctx context.Context, post *Post) error {
	s.removeQuietly(ctx, post.Image)

	if err := s.repository.DeletePost(ctx, post.ID); err != nil {
		if errors.Is(err, ErrPostNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete post: %w", err)
	}

	s.fire("PostDeleted", s.eventSink.PostDeleted(ctx, post.ID))
	return nil
}

// Helpers

func (s *service) validatePassword(password string) error {
	if password == "" {
		return invalid("password", "Password is required")
	}
	if utf8.RuneCountInString(password) < s.minPasswordLength {
		return invalid("password", fmt.Sprintf("Password must have at least %d characters", s.minPasswordLength))
	}
	if len(password) > MaxPasswordBytes {
		return invalid("password", fmt.Sprintf("Password must be at most %d bytes", MaxPasswordBytes))
	}
	return nil
}

func (s *service) folder(kind string) string {
	return FolderPath(s.appName, kind)
}

// removeQuietly deletes a replaced or cascaded asset. Failures leave an orphan
// for the reconciliation sweep and never fail the surrounding operation.
func (s *service) removeQuietly(ctx context.Context, asset Asset) {
	if err := s.media.Remove(ctx, asset); err != nil {
		slog.Error("Failed to remove asset", "asset_id", asset.ID, "error", err)
		s.fire("AssetRemoveFailed", s.eventSink.AssetRemoveFailed(ctx, asset, err))
	}
}

// discard drops an asset that was uploaded for a write that did not happen.
func (s *service) discard(ctx context.Context, asset Asset) {
	if !asset.IsStored() {
		return
	}
	slog.Warn("Discarding asset after failed write", "asset_id", asset.ID)
	s.removeQuietly(ctx, asset)
}

func (s *service) fire(event string, err error) {
	if err != nil {
		slog.Warn("Event sink failed", "event", event, "error", err)
	}
}

func (s *service) dummy() string {
	s.dummyOnce.Do(func() {
		digest, err := s.hasher.Hash(uuid.NewString())
		if err == nil {
			s.dummyDigest = digest
		}
	})
	return s.dummyDigest
}
