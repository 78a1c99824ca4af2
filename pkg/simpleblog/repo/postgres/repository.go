package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-blog/pkg/simpleblog"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

var _ simpleblog.Repository = (*Repository)(nil)

// Repository implements simpleblog.Repository using PostgreSQL
type Repository struct {
	db DBTX
}

// New creates a new PostgreSQL repository
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// Error handling helper
func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			if pgErr.ConstraintName == "identities_email_key" {
				return simpleblog.ErrEmailTaken
			}
			return fmt.Errorf("duplicate entry in %s: %s", operation, pgErr.ConstraintName)
		case "23503": // foreign_key_violation
			return simpleblog.ErrIdentityNotFound
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

// Identity operations

const identityColumns = `id, email, password_hash, avatar_asset_id, avatar_url, created_at, updated_at`

func (r *Repository) CreateIdentity(ctx context.Context, identity *simpleblog.Identity) error {
	query := `
		INSERT INTO identities (` + identityColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	avatarID, avatarURL := identity.Avatar.Columns()
	_, err := r.db.Exec(ctx, query,
		identity.ID, identity.Email, identity.PasswordHash,
		avatarID, avatarURL, identity.CreatedAt, identity.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("create identity", err)
	}

	return nil
}

func (r *Repository) GetIdentity(ctx context.Context, id uuid.UUID) (*simpleblog.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities WHERE id = $1`
	return r.getIdentity(ctx, query, id)
}

func (r *Repository) GetIdentityByEmail(ctx context.Context, email string) (*simpleblog.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities WHERE email = $1`
	return r.getIdentity(ctx, query, email)
}

func (r *Repository) getIdentity(ctx context.Context, query string, arg interface{}) (*simpleblog.Identity, error) {
	var identity simpleblog.Identity
	var avatarID, avatarURL *string
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&identity.ID, &identity.Email, &identity.PasswordHash,
		&avatarID, &avatarURL, &identity.CreatedAt, &identity.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, simpleblog.ErrIdentityNotFound
		}
		return nil, r.handlePostgresError("get identity", err)
	}

	identity.Avatar = simpleblog.AssetFromColumns(avatarID, avatarURL)
	return &identity, nil
}

func (r *Repository) UpdateIdentity(ctx context.Context, identity *simpleblog.Identity) error {
	query := `
		UPDATE identities SET
			email = $2, password_hash = $3, avatar_asset_id = $4,
			avatar_url = $5, updated_at = $6
		WHERE id = $1`

	avatarID, avatarURL := identity.Avatar.Columns()
	tag, err := r.db.Exec(ctx, query,
		identity.ID, identity.Email, identity.PasswordHash,
		avatarID, avatarURL, identity.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("update identity", err)
	}
	if tag.RowsAffected() == 0 {
		return simpleblog.ErrIdentityNotFound
	}

	return nil
}

// DeleteIdentity removes the identity; remaining posts go with it through ON DELETE CASCADE.
func (r *Repository) DeleteIdentity(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM identities WHERE id = $1`, id)
	if err != nil {
		return r.handlePostgresError("delete identity", err)
	}
	if tag.RowsAffected() == 0 {
		return simpleblog.ErrIdentityNotFound
	}
	return nil
}

// Post operations

const postColumns = `p.id, p.owner_id, p.title, p.content, p.image_asset_id, p.image_url, p.created_at, p.updated_at`

const viewQuery = `
	SELECT ` + postColumns + `,
	       i.id, i.email, i.avatar_asset_id, i.avatar_url
	FROM posts p
	LEFT JOIN identities i ON i.id = p.owner_id`

func (r *Repository) CreatePost(ctx context.Context, post *simpleblog.Post) error {
	query := `
		INSERT INTO posts (id, owner_id, title, content, image_asset_id, image_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	imageID, imageURL := post.Image.Columns()
	_, err := r.db.Exec(ctx, query,
		post.ID, post.OwnerID, post.Title, post.Content,
		imageID, imageURL, post.CreatedAt, post.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("create post", err)
	}

	return nil
}

func (r *Repository) GetPost(ctx context.Context, id uuid.UUID) (*simpleblog.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts p WHERE p.id = $1`

	post, err := scanPost(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, simpleblog.ErrPostNotFound
		}
		return nil, r.handlePostgresError("get post", err)
	}
	return post, nil
}

func (r *Repository) GetPostView(ctx context.Context, id uuid.UUID) (*simpleblog.PostView, error) {
	view, err := scanView(r.db.QueryRow(ctx, viewQuery+` WHERE p.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, simpleblog.ErrPostNotFound
		}
		return nil, r.handlePostgresError("get post view", err)
	}
	return view, nil
}

func (r *Repository) ListPostViews(ctx context.Context) ([]*simpleblog.PostView, error) {
	rows, err := r.db.Query(ctx, viewQuery+` ORDER BY p.created_at DESC, p.id DESC`)
	if err != nil {
		return nil, r.handlePostgresError("list posts", err)
	}
	defer rows.Close()

	var views []*simpleblog.PostView
	for rows.Next() {
		view, err := scanView(rows)
		if err != nil {
			return nil, r.handlePostgresError("scan post", err)
		}
		views = append(views, view)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("list posts", err)
	}

	return views, nil
}

func (r *Repository) ListPostsByOwner(ctx context.Context, ownerID uuid.UUID) ([]*simpleblog.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts p WHERE p.owner_id = $1 ORDER BY p.created_at DESC`

	rows, err := r.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, r.handlePostgresError("list posts by owner", err)
	}
	defer rows.Close()

	var posts []*simpleblog.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, r.handlePostgresError("scan post", err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("list posts by owner", err)
	}

	return posts, nil
}

func (r *Repository) DeletePost(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return r.handlePostgresError("delete post", err)
	}
	if tag.RowsAffected() == 0 {
		return simpleblog.ErrPostNotFound
	}
	return nil
}

// Asset references

func (r *Repository) ListAssetIDs(ctx context.Context) ([]string, error) {
	query := `
		SELECT avatar_asset_id FROM identities WHERE avatar_asset_id IS NOT NULL
		UNION ALL
		SELECT image_asset_id FROM posts WHERE image_asset_id IS NOT NULL`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, r.handlePostgresError("list asset ids", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, r.handlePostgresError("scan asset id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("list asset ids", err)
	}

	return ids, nil
}

func scanPost(row pgx.Row) (*simpleblog.Post, error) {
	var post simpleblog.Post
	var imageID, imageURL *string
	if err := row.Scan(
		&post.ID, &post.OwnerID, &post.Title, &post.Content,
		&imageID, &imageURL, &post.CreatedAt, &post.UpdatedAt); err != nil {
		return nil, err
	}
	post.Image = simpleblog.AssetFromColumns(imageID, imageURL)
	return &post, nil
}

func scanView(row pgx.Row) (*simpleblog.PostView, error) {
	var view simpleblog.PostView
	var imageID, imageURL, avatarID, avatarURL, email *string
	var ownerID *uuid.UUID
	if err := row.Scan(
		&view.ID, &view.OwnerID, &view.Title, &view.Content,
		&imageID, &imageURL, &view.CreatedAt, &view.UpdatedAt,
		&ownerID, &email, &avatarID, &avatarURL); err != nil {
		return nil, err
	}

	view.Image = simpleblog.AssetFromColumns(imageID, imageURL)
	if ownerID != nil && email != nil {
		view.Owner = &simpleblog.IdentitySummary{
			ID:     *ownerID,
			Email:  *email,
			Avatar: simpleblog.AssetFromColumns(avatarID, avatarURL),
		}
	}
	return &view, nil
}
