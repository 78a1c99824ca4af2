package simpleblog

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AssetKind tags the state of an Asset reference.
type AssetKind int

const (
	// AssetAbsent means no object and no url.
	AssetAbsent AssetKind = iota
	// AssetStatic points at a url that is not hosted by the blob store (e.g. the default avatar).
	AssetStatic
	// AssetStored points at an object held by the blob store under ID.
	AssetStored
)

// Asset references a binary object attached to a record.
//
// Only AssetStored carries an ID; removing an Asset of any other kind never
// reaches the blob store.
type Asset struct {
	Kind AssetKind
	ID   string
	URL  string
}

// NoAsset returns the "no asset" sentinel.
func NoAsset() Asset {
	return Asset{Kind: AssetAbsent}
}

// StaticAsset returns a reference to a url that is not owned by the blob store.
func StaticAsset(url string) Asset {
	return Asset{Kind: AssetStatic, URL: url}
}

// StoredAsset returns a reference to an object held by the blob store.
func StoredAsset(id, url string) Asset {
	return Asset{Kind: AssetStored, ID: id, URL: url}
}

// IsStored reports whether the asset is backed by a blob store object.
func (a Asset) IsStored() bool {
	return a.Kind == AssetStored && a.ID != ""
}

// AssetFromColumns rebuilds an Asset from nullable persisted columns.
func AssetFromColumns(id, url *string) Asset {
	switch {
	case id != nil && *id != "" && url != nil:
		return StoredAsset(*id, *url)
	case url != nil && *url != "":
		return StaticAsset(*url)
	default:
		return NoAsset()
	}
}

// Columns returns the nullable column values for persistence.
func (a Asset) Columns() (id, url *string) {
	switch a.Kind {
	case AssetStored:
		assetID, assetURL := a.ID, a.URL
		return &assetID, &assetURL
	case AssetStatic:
		assetURL := a.URL
		return nil, &assetURL
	default:
		return nil, nil
	}
}

type assetJSON struct {
	AssetID *string `json:"asset_id"`
	URL     *string `json:"url"`
}

// MarshalJSON renders the asset as {"asset_id": ..., "url": ...} with nulls for missing parts.
func (a Asset) MarshalJSON() ([]byte, error) {
	id, url := a.Columns()
	return json.Marshal(assetJSON{AssetID: id, URL: url})
}

// UnmarshalJSON accepts the form produced by MarshalJSON.
func (a *Asset) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*a = NoAsset()
		return nil
	}
	var v assetJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*a = AssetFromColumns(v.AssetID, v.URL)
	return nil
}

// Identity is a registered user.
type Identity struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Avatar       Asset     `json:"avatar"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Summary returns the public projection returned by register, login and profile updates.
func (i *Identity) Summary() IdentitySummary {
	return IdentitySummary{ID: i.ID, Email: i.Email, Avatar: i.Avatar}
}

// IdentitySummary is the outward view of an identity.
type IdentitySummary struct {
	ID     uuid.UUID `json:"id"`
	Email  string    `json:"email"`
	Avatar Asset     `json:"avatar"`
}

// Post is a blog post owned by an identity.
type Post struct {
	ID        uuid.UUID `json:"id"`
	OwnerID   uuid.UUID `json:"owner_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Image     Asset     `json:"image"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PostView is a post with its owner resolved. Owner is nil if the owner no longer exists.
type PostView struct {
	Post
	Owner *IdentitySummary `json:"user"`
}

// ObjectMeta describes an object held by a blob store.
type ObjectMeta struct {
	Key         string
	Size        int64
	ContentType string
	UpdatedAt   time.Time
}

// UploadParams contains parameters for uploading an object
type UploadParams struct {
	ObjectKey string
	MimeType  string
}
