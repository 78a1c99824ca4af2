package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-blog/pkg/simpleblog"
)

func TestHandlePostgresError(t *testing.T) {
	r := &Repository{}

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"duplicate email", &pgconn.PgError{Code: "23505", ConstraintName: "identities_email_key"}, simpleblog.ErrEmailTaken},
		{"missing owner", &pgconn.PgError{Code: "23503", ConstraintName: "posts_owner_id_fkey"}, simpleblog.ErrIdentityNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, r.handlePostgresError("op", tt.err), tt.want)
		})
	}

	err := r.handlePostgresError("op", &pgconn.PgError{Code: "42P01"})
	assert.ErrorContains(t, err, "migration required")

	cause := errors.New("connection refused")
	assert.ErrorIs(t, r.handlePostgresError("op", cause), cause)
}

// setupTestRepository needs a disposable database; the schema is dropped and recreated.
func setupTestRepository(t *testing.T) *Repository {
	t.Helper()
	databaseURL := os.Getenv("TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, databaseURL)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, `DROP TABLE IF EXISTS posts, identities, schema_migrations CASCADE`)
	require.NoError(t, err)
	require.NoError(t, RunMigrations(databaseURL))
	// a second run is a no-op
	require.NoError(t, RunMigrations(databaseURL))

	return NewWithPool(pool)
}

func testIdentity(email string) *simpleblog.Identity {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &simpleblog.Identity{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: "digest",
		Avatar:       simpleblog.StaticAsset("http://localhost/default-avatar.png"),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestRepository_Identities(t *testing.T) {
	repo := setupTestRepository(t)
	ctx := context.Background()

	identity := testIdentity("pg@example.com")
	require.NoError(t, repo.CreateIdentity(ctx, identity))
	assert.ErrorIs(t, repo.CreateIdentity(ctx, testIdentity("pg@example.com")), simpleblog.ErrEmailTaken)

	got, err := repo.GetIdentityByEmail(ctx, "pg@example.com")
	require.NoError(t, err)
	assert.Equal(t, identity.ID, got.ID)
	assert.Equal(t, identity.Avatar, got.Avatar)

	_, err = repo.GetIdentityByEmail(ctx, "PG@example.com")
	assert.ErrorIs(t, err, simpleblog.ErrIdentityNotFound)

	got.Avatar = simpleblog.StoredAsset("app/avatars/a.png", "http://cdn/a.png")
	require.NoError(t, repo.UpdateIdentity(ctx, got))
	again, err := repo.GetIdentity(ctx, identity.ID)
	require.NoError(t, err)
	assert.Equal(t, got.Avatar, again.Avatar)

	ids, err := repo.ListAssetIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"app/avatars/a.png"}, ids)

	require.NoError(t, repo.DeleteIdentity(ctx, identity.ID))
	assert.ErrorIs(t, repo.DeleteIdentity(ctx, identity.ID), simpleblog.ErrIdentityNotFound)
	assert.ErrorIs(t, repo.UpdateIdentity(ctx, got), simpleblog.ErrIdentityNotFound)
}

func TestRepository_Posts(t *testing.T) {
	repo := setupTestRepository(t)
	ctx := context.Background()

	owner := testIdentity("author@example.com")
	require.NoError(t, repo.CreateIdentity(ctx, owner))

	orphan := &simpleblog.Post{ID: uuid.New(), OwnerID: uuid.New(), Title: "T", Content: "C", CreatedAt: time.Now(), UpdatedAt: time.Now()}
	assert.ErrorIs(t, repo.CreatePost(ctx, orphan), simpleblog.ErrIdentityNotFound)

	base := time.Now().UTC().Truncate(time.Second)
	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		post := &simpleblog.Post{
			ID:        uuid.New(),
			OwnerID:   owner.ID,
			Title:     "T",
			Content:   "C",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			UpdatedAt: base,
		}
		if i == 0 {
			post.Image = simpleblog.StoredAsset("app/blogs/0.png", "http://cdn/0.png")
		}
		require.NoError(t, repo.CreatePost(ctx, post))
		ids = append(ids, post.ID)
	}

	views, err := repo.ListPostViews(ctx)
	require.NoError(t, err)
	require.Len(t, views, 3)
	assert.Equal(t, ids[2], views[0].ID)
	assert.Equal(t, ids[0], views[2].ID)
	require.NotNil(t, views[0].Owner)
	assert.Equal(t, "author@example.com", views[0].Owner.Email)
	assert.True(t, views[2].Image.IsStored())
	assert.Equal(t, simpleblog.AssetAbsent, views[0].Image.Kind)

	view, err := repo.GetPostView(ctx, ids[1])
	require.NoError(t, err)
	assert.Equal(t, owner.ID, view.Owner.ID)

	owned, err := repo.ListPostsByOwner(ctx, owner.ID)
	require.NoError(t, err)
	assert.Len(t, owned, 3)

	require.NoError(t, repo.DeletePost(ctx, ids[1]))
	_, err = repo.GetPost(ctx, ids[1])
	assert.ErrorIs(t, err, simpleblog.ErrPostNotFound)
	assert.ErrorIs(t, repo.DeletePost(ctx, ids[1]), simpleblog.ErrPostNotFound)

	require.NoError(t, repo.DeleteIdentity(ctx, owner.ID))
	_, err = repo.GetPost(ctx, ids[0])
	assert.ErrorIs(t, err, simpleblog.ErrPostNotFound)
}
