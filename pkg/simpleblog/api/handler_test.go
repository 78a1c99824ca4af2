package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-blog/pkg/simpleblog"
	"github.com/tendant/simple-blog/pkg/simpleblog/repo/memory"
	"github.com/tendant/simple-blog/pkg/simpleblog/session"
	memorystorage "github.com/tendant/simple-blog/pkg/simpleblog/storage/memory"
)

type testEnv struct {
	router http.Handler
	repo   simpleblog.Repository
	store  *switchableStore
}

// switchableStore fails uploads on demand.
type switchableStore struct {
	*memorystorage.Backend
	failUpload bool
}

func (s *switchableStore) UploadWithParams(ctx context.Context, reader io.Reader, params simpleblog.UploadParams) error {
	if s.failUpload {
		return errors.New("provider unavailable")
	}
	return s.Backend.UploadWithParams(ctx, reader, params)
}

func setupHandlerTest(t *testing.T, opts ...HandlerOption) *testEnv {
	t.Helper()
	repo := memory.New()
	store := &switchableStore{Backend: memorystorage.New("http://cdn.test/media")}

	svc, err := simpleblog.New(
		simpleblog.WithRepository(repo),
		simpleblog.WithBlobStore(store),
		simpleblog.WithHasher(simpleblog.NewBcryptHasher(4)),
		simpleblog.WithAppName("SimpleBlog"),
		simpleblog.WithDefaultAvatarURL("http://localhost:8080/default-avatar.png"),
	)
	require.NoError(t, err)

	issuer, err := session.NewIssuer("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)

	router := chi.NewRouter()
	router.Mount("/", NewHandler(svc, issuer, opts...).Routes())
	return &testEnv{router: router, repo: repo, store: store}
}

type part struct {
	name, value string
	file        []byte
	fileName    string
}

func multipartBody(t *testing.T, parts ...part) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for _, p := range parts {
		if p.file == nil {
			require.NoError(t, mw.WriteField(p.name, p.value))
			continue
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+p.name+`"; filename="`+p.fileName+`"`)
		h.Set("Content-Type", "image/png")
		w, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = w.Write(p.file)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

func (e *testEnv) do(t *testing.T, method, path string, body io.Reader, contentType string, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) register(t *testing.T, email, password string, avatar []byte) (*httptest.ResponseRecorder, *http.Cookie) {
	t.Helper()
	parts := []part{{name: "email", value: email}, {name: "password", value: password}}
	if avatar != nil {
		parts = append(parts, part{name: "avatar", file: avatar, fileName: "me.png"})
	}
	body, ct := multipartBody(t, parts...)
	rec := e.do(t, http.MethodPost, "/auth/register", body, ct, nil)
	return rec, sessionCookie(rec)
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName {
			return c
		}
	}
	return nil
}

func decodeMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp MessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Message
}

func TestRegisterAndMe(t *testing.T) {
	env := setupHandlerTest(t)

	rec, cookie := env.register(t, "a@x.io", "secret1", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)

	var summary map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, "a@x.io", summary["email"])
	avatar := summary["avatar"].(map[string]interface{})
	assert.Nil(t, avatar["asset_id"])
	assert.Equal(t, "http://localhost:8080/default-avatar.png", avatar["url"])
	assert.NotContains(t, rec.Body.String(), "password")

	me := env.do(t, http.MethodGet, "/auth/me", nil, "", cookie)
	require.Equal(t, http.StatusOK, me.Code)
	assert.Contains(t, me.Body.String(), `"email":"a@x.io"`)
	assert.NotContains(t, me.Body.String(), "$2a$")
}

func TestRegisterRejections(t *testing.T) {
	env := setupHandlerTest(t)

	tests := []struct {
		name     string
		email    string
		password string
		want     string
	}{
		{"missing email", "", "secret1", "Email is required"},
		{"missing password", "b@x.io", "", "Password is required"},
		{"short password", "b@x.io", "12345", "Password must have at least 6 characters"},
		{"password over 72 bytes", "b@x.io", strings.Repeat("p", 73), "Password must be at most 72 bytes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, cookie := env.register(t, tt.email, tt.password, []byte("png"))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.want, decodeMessage(t, rec))
			assert.Nil(t, cookie)
		})
	}

	objects, err := env.store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, objects, "rejected registrations must not upload")

	rec, _ := env.register(t, "dup@x.io", "secret1", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec, _ = env.register(t, "dup@x.io", "secret1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "User already exists", decodeMessage(t, rec))
}

func TestRegisterUploadFailure(t *testing.T) {
	env := setupHandlerTest(t)
	env.store.failUpload = true

	rec, cookie := env.register(t, "c@x.io", "secret1", []byte("png"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Avatar upload failed", decodeMessage(t, rec))
	assert.Nil(t, cookie)

	_, err := env.repo.GetIdentityByEmail(context.Background(), "c@x.io")
	assert.ErrorIs(t, err, simpleblog.ErrIdentityNotFound)
}

func TestRegisterBodyTooLarge(t *testing.T) {
	env := setupHandlerTest(t, WithMaxUploadBytes(1024))

	rec, _ := env.register(t, "big@x.io", "secret1", bytes.Repeat([]byte("x"), 4096))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "File too large", decodeMessage(t, rec))
}

func TestLogin(t *testing.T) {
	env := setupHandlerTest(t)
	rec, _ := env.register(t, "login@x.io", "secret1", nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	t.Run("json", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/auth/login", strings.NewReader(`{"email":"login@x.io","password":"secret1"}`), "application/json", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.NotNil(t, sessionCookie(rec))
	})

	t.Run("form", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/auth/login", strings.NewReader("email=login%40x.io&password=secret1"), "application/x-www-form-urlencoded", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("rejections are identical", func(t *testing.T) {
		unknown := env.do(t, http.MethodPost, "/auth/login", strings.NewReader(`{"email":"nobody@x.io","password":"secret1"}`), "application/json", nil)
		wrong := env.do(t, http.MethodPost, "/auth/login", strings.NewReader(`{"email":"login@x.io","password":"nope-nope"}`), "application/json", nil)

		assert.Equal(t, http.StatusBadRequest, unknown.Code)
		assert.Equal(t, unknown.Code, wrong.Code)
		assert.Equal(t, unknown.Body.String(), wrong.Body.String())
		assert.Equal(t, "Invalid credentials", decodeMessage(t, wrong))
		assert.Nil(t, sessionCookie(unknown))
		assert.Nil(t, sessionCookie(wrong))
	})
}

func TestLogoutIsIdempotent(t *testing.T) {
	env := setupHandlerTest(t)

	for i := 0; i < 2; i++ {
		rec := env.do(t, http.MethodPost, "/auth/logout", nil, "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Logged out successfully", decodeMessage(t, rec))
		cookie := sessionCookie(rec)
		require.NotNil(t, cookie)
		assert.True(t, cookie.MaxAge < 0)
	}
}

func TestGuard(t *testing.T) {
	env := setupHandlerTest(t)

	rec := env.do(t, http.MethodGet, "/auth/me", nil, "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/auth/me", nil, "", &http.Cookie{Name: session.CookieName, Value: "forged"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	body, ct := multipartBody(t, part{name: "title", value: "T"}, part{name: "content", value: "C"})
	rec = env.do(t, http.MethodPost, "/blogs", body, ct, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// a valid credential for a deleted identity is rejected
	_, cookie := env.register(t, "gone@x.io", "secret1", nil)
	rec = env.do(t, http.MethodDelete, "/users/profile", nil, "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Account deleted successfully", decodeMessage(t, rec))

	rec = env.do(t, http.MethodGet, "/auth/me", nil, "", cookie)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUpdateProfile(t *testing.T) {
	env := setupHandlerTest(t)
	_, cookie := env.register(t, "p@x.io", "secret1", []byte("old"))
	require.NotNil(t, cookie)

	body, ct := multipartBody(t, part{name: "avatar", file: []byte("new"), fileName: "new.png"})
	rec := env.do(t, http.MethodPut, "/users/profile", body, ct, cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	var summary simpleblog.IdentitySummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	require.True(t, summary.Avatar.IsStored())
	assert.True(t, strings.HasPrefix(summary.Avatar.ID, "simpleblog/avatars/"))

	objects, err := env.store.List(context.Background(), "simpleblog/avatars/")
	require.NoError(t, err)
	require.Len(t, objects, 1, "old avatar is removed once the new one is persisted")
	assert.Equal(t, summary.Avatar.ID, objects[0].Key)

	body, ct = multipartBody(t, part{name: "password", value: "123"})
	rec = env.do(t, http.MethodPut, "/users/profile", body, ct, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	env.store.failUpload = true
	body, ct = multipartBody(t, part{name: "avatar", file: []byte("newer"), fileName: "newer.png"})
	rec = env.do(t, http.MethodPut, "/users/profile", body, ct, cookie)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Avatar upload failed", decodeMessage(t, rec))

	persisted, err := env.repo.GetIdentity(context.Background(), summary.ID)
	require.NoError(t, err)
	assert.Equal(t, summary.Avatar, persisted.Avatar)
}

func createBlog(t *testing.T, env *testEnv, cookie *http.Cookie, title string, image []byte) *httptest.ResponseRecorder {
	t.Helper()
	parts := []part{{name: "title", value: title}, {name: "content", value: "Body of " + title}}
	if image != nil {
		parts = append(parts, part{name: "image", file: image, fileName: "pic.png"})
	}
	body, ct := multipartBody(t, parts...)
	return env.do(t, http.MethodPost, "/blogs", body, ct, cookie)
}

func TestBlogLifecycle(t *testing.T) {
	env := setupHandlerTest(t)
	_, alice := env.register(t, "alice@x.io", "secret1", nil)
	_, bob := env.register(t, "bob@x.io", "secret1", nil)

	rec := createBlog(t, env, alice, "First", []byte("img"))
	require.Equal(t, http.StatusCreated, rec.Code)
	var post simpleblog.Post
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &post))
	require.True(t, post.Image.IsStored())
	assert.True(t, strings.HasPrefix(post.Image.ID, "simpleblog/blogs/"))

	rec = createBlog(t, env, alice, "Second", nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = createBlog(t, env, alice, "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Title is required", decodeMessage(t, rec))

	rec = env.do(t, http.MethodGet, "/blogs", nil, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var views []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	require.Len(t, views, 2)
	assert.Equal(t, "Second", views[0]["title"])
	user := views[0]["user"].(map[string]interface{})
	assert.Equal(t, "alice@x.io", user["email"])
	assert.Contains(t, user, "avatar")

	rec = env.do(t, http.MethodGet, "/blogs/"+post.ID.String(), nil, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodGet, "/blogs/not-a-uuid", nil, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Blog not found", decodeMessage(t, rec))
	rec = env.do(t, http.MethodGet, "/blogs/"+uuid.NewString(), nil, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodDelete, "/blogs/"+post.ID.String(), nil, "", bob)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Not authorized", decodeMessage(t, rec))
	_, err := env.repo.GetPost(context.Background(), post.ID)
	require.NoError(t, err)

	rec = env.do(t, http.MethodDelete, "/blogs/"+post.ID.String(), nil, "", alice)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Blog deleted successfully", decodeMessage(t, rec))
	_, err = env.store.GetObjectMeta(context.Background(), post.Image.ID)
	assert.ErrorIs(t, err, simpleblog.ErrObjectNotFound)

	rec = env.do(t, http.MethodDelete, "/blogs/"+post.ID.String(), nil, "", alice)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateBlogUploadFailure(t *testing.T) {
	env := setupHandlerTest(t)
	_, cookie := env.register(t, "img@x.io", "secret1", nil)
	env.store.failUpload = true

	rec := createBlog(t, env, cookie, "Broken", []byte("img"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Image upload failed", decodeMessage(t, rec))

	rec = env.do(t, http.MethodGet, "/blogs", nil, "", nil)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestErrorResponseHidesInternals(t *testing.T) {
	resp := errorResponse(errors.New("pq: password authentication failed for user blog"))
	assert.Equal(t, http.StatusInternalServerError, resp.HTTPStatusCode)
	assert.Equal(t, "Internal Server Error", resp.Message)
}

// brokenSigner registers fine but cannot sign session tokens.
type brokenSigner struct {
	*session.Issuer
}

func (b *brokenSigner) Issue(w http.ResponseWriter, id uuid.UUID) error {
	return errors.New("signing key unavailable")
}

func TestRegisterSessionFailureKeepsAccount(t *testing.T) {
	repo := memory.New()
	svc, err := simpleblog.New(
		simpleblog.WithRepository(repo),
		simpleblog.WithBlobStore(memorystorage.New("http://cdn.test/media")),
		simpleblog.WithHasher(simpleblog.NewBcryptHasher(4)),
	)
	require.NoError(t, err)
	issuer, err := session.NewIssuer("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)

	env := &testEnv{router: NewHandler(svc, &brokenSigner{Issuer: issuer}).Routes(), repo: repo}

	rec, cookie := env.register(t, "nosession@x.io", "secret1", nil)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Nil(t, cookie)

	_, err = repo.GetIdentityByEmail(context.Background(), "nosession@x.io")
	assert.NoError(t, err)

	_, err = svc.Login(context.Background(), simpleblog.LoginRequest{Email: "nosession@x.io", Password: "secret1"})
	assert.NoError(t, err)
}
