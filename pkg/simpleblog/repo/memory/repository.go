package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/tendant/simple-blog/pkg/simpleblog"
)

// Repository implements simpleblog.Repository using in-memory storage
type Repository struct {
	mu         sync.RWMutex
	identities map[uuid.UUID]*simpleblog.Identity
	byEmail    map[string]uuid.UUID // email -> identity_id
	posts      map[uuid.UUID]*simpleblog.Post
}

// New creates a new in-memory repository
func New() simpleblog.Repository {
	return &Repository{
		identities: make(map[uuid.UUID]*simpleblog.Identity),
		byEmail:    make(map[string]uuid.UUID),
		posts:      make(map[uuid.UUID]*simpleblog.Post),
	}
}

// Identity operations

func (r *Repository) CreateIdentity(ctx context.Context, identity *simpleblog.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[identity.Email]; exists {
		return simpleblog.ErrEmailTaken
	}

	// Create a copy to avoid external modifications
	identityCopy := *identity
	r.identities[identity.ID] = &identityCopy
	r.byEmail[identity.Email] = identity.ID

	return nil
}

func (r *Repository) GetIdentity(ctx context.Context, id uuid.UUID) (*simpleblog.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	identity, exists := r.identities[id]
	if !exists {
		return nil, simpleblog.ErrIdentityNotFound
	}

	identityCopy := *identity
	return &identityCopy, nil
}

func (r *Repository) GetIdentityByEmail(ctx context.Context, email string) (*simpleblog.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, exists := r.byEmail[email]
	if !exists {
		return nil, simpleblog.ErrIdentityNotFound
	}

	identityCopy := *r.identities[id]
	return &identityCopy, nil
}

func (r *Repository) UpdateIdentity(ctx context.Context, identity *simpleblog.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.identities[identity.ID]
	if !exists {
		return simpleblog.ErrIdentityNotFound
	}
	if existing.Email != identity.Email {
		if _, taken := r.byEmail[identity.Email]; taken {
			return simpleblog.ErrEmailTaken
		}
		delete(r.byEmail, existing.Email)
		r.byEmail[identity.Email] = identity.ID
	}

	identityCopy := *identity
	r.identities[identity.ID] = &identityCopy

	return nil
}

func (r *Repository) DeleteIdentity(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	identity, exists := r.identities[id]
	if !exists {
		return simpleblog.ErrIdentityNotFound
	}

	delete(r.byEmail, identity.Email)
	delete(r.identities, id)
	return nil
}

// Post operations

func (r *Repository) CreatePost(ctx context.Context, post *simpleblog.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.identities[post.OwnerID]; !exists {
		return simpleblog.ErrIdentityNotFound
	}

	postCopy := *post
	r.posts[post.ID] = &postCopy

	return nil
}

func (r *Repository) GetPost(ctx context.Context, id uuid.UUID) (*simpleblog.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	post, exists := r.posts[id]
	if !exists {
		return nil, simpleblog.ErrPostNotFound
	}

	postCopy := *post
	return &postCopy, nil
}

func (r *Repository) GetPostView(ctx context.Context, id uuid.UUID) (*simpleblog.PostView, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	post, exists := r.posts[id]
	if !exists {
		return nil, simpleblog.ErrPostNotFound
	}

	return r.view(post), nil
}

func (r *Repository) ListPostViews(ctx context.Context) ([]*simpleblog.PostView, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*simpleblog.PostView, 0, len(r.posts))
	for _, post := range r.posts {
		result = append(result, r.view(post))
	}

	// Sort by created_at descending
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID.String() > result[j].ID.String()
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result, nil
}

func (r *Repository) ListPostsByOwner(ctx context.Context, ownerID uuid.UUID) ([]*simpleblog.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*simpleblog.Post
	for _, post := range r.posts {
		if post.OwnerID == ownerID {
			postCopy := *post
			result = append(result, &postCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result, nil
}

func (r *Repository) DeletePost(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.posts[id]; !exists {
		return simpleblog.ErrPostNotFound
	}

	delete(r.posts, id)
	return nil
}

// Asset references

func (r *Repository) ListAssetIDs(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []string
	for _, identity := range r.identities {
		if identity.Avatar.IsStored() {
			ids = append(ids, identity.Avatar.ID)
		}
	}
	for _, post := range r.posts {
		if post.Image.IsStored() {
			ids = append(ids, post.Image.ID)
		}
	}

	return ids, nil
}

// view must be called with r.mu held.
func (r *Repository) view(post *simpleblog.Post) *simpleblog.PostView {
	v := &simpleblog.PostView{Post: *post}
	if owner, exists := r.identities[post.OwnerID]; exists {
		summary := owner.Summary()
		v.Owner = &summary
	}
	return v
}
