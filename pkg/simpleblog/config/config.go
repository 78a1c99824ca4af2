package config

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/tendant/simple-blog/pkg/simpleblog"
	"github.com/tendant/simple-blog/pkg/simpleblog/imaging"
	"github.com/tendant/simple-blog/pkg/simpleblog/metrics"
	"github.com/tendant/simple-blog/pkg/simpleblog/repo/memory"
	repopg "github.com/tendant/simple-blog/pkg/simpleblog/repo/postgres"
	"github.com/tendant/simple-blog/pkg/simpleblog/session"
	fsstorage "github.com/tendant/simple-blog/pkg/simpleblog/storage/fs"
	memorystorage "github.com/tendant/simple-blog/pkg/simpleblog/storage/memory"
	s3storage "github.com/tendant/simple-blog/pkg/simpleblog/storage/s3"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:               "8080",
		Environment:        "development",
		AppName:            simpleblog.DefaultAppName,
		BaseURL:            "http://localhost:8080",
		MinPasswordLength:  simpleblog.DefaultMinPasswordLength,
		BcryptCost:         simpleblog.DefaultBcryptCost,
		SessionTTL:         session.DefaultTTL,
		CookieSecure:       "auto",
		DatabaseType:       "memory",
		AutoMigrate:        true,
		StorageType:        "memory",
		FS:                 FSConfig{BaseDir: "./data/media"},
		S3:                 S3Config{Region: "us-east-1"},
		MaxUploadBytes:     5 << 20,
		AvatarMaxDimension: imaging.DefaultAvatarDimension,
		EnableMetrics:      true,
	}
}

// ServerConfig is built once at startup and not modified afterwards.
type ServerConfig struct {
	Port        string `env:"PORT" env-default:"8080"`
	Environment string `env:"ENVIRONMENT" env-default:"development"` // development, production, testing

	AppName           string `env:"APP_NAME" env-default:"SimpleBlog"`
	BaseURL           string `env:"BASE_URL" env-default:"http://localhost:8080"`
	MinPasswordLength int    `env:"MIN_PASSWORD_LENGTH" env-default:"6"`
	BcryptCost        int    `env:"BCRYPT_COST" env-default:"10"`

	// Session
	JWTSecret    string        `env:"JWT_SECRET"`
	SessionTTL   time.Duration `env:"SESSION_TTL" env-default:"168h"`
	CookieSecure string        `env:"COOKIE_SECURE" env-default:"auto"` // auto: secure outside development

	// Database configuration
	DatabaseType string `env:"DATABASE_TYPE" env-default:"memory"` // "memory", "postgres"
	DatabaseURL  string `env:"DATABASE_URL"`
	DBSchema     string `env:"DB_SCHEMA"`
	AutoMigrate  bool   `env:"AUTO_MIGRATE" env-default:"true"`

	// Storage configuration
	StorageType string `env:"STORAGE_TYPE" env-default:"memory"` // "memory", "fs", "s3"
	FS          FSConfig
	S3          S3Config

	MaxUploadBytes     int64 `env:"MAX_UPLOAD_BYTES" env-default:"5242880"`
	AvatarMaxDimension uint  `env:"AVATAR_MAX_DIMENSION" env-default:"512"` // 0 disables downscaling
	EnableMetrics      bool  `env:"ENABLE_METRICS" env-default:"true"`
}

// FSConfig configures the filesystem blob store. Files are served under <BaseURL>/media.
type FSConfig struct {
	BaseDir string `env:"FS_BASE_DIR" env-default:"./data/media"`
}

// S3Config configures the S3 blob store.
type S3Config struct {
	Bucket                 string `env:"AWS_S3_BUCKET"`
	Region                 string `env:"AWS_S3_REGION" env-default:"us-east-1"`
	AccessKeyID            string `env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey        string `env:"AWS_SECRET_ACCESS_KEY"`
	Endpoint               string `env:"AWS_S3_ENDPOINT"`
	UsePathStyle           bool   `env:"AWS_S3_USE_PATH_STYLE" env-default:"false"`
	PublicBaseURL          string `env:"AWS_S3_PUBLIC_BASE_URL"`
	CreateBucketIfNotExist bool   `env:"AWS_S3_CREATE_BUCKET" env-default:"false"`
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}
	if c.AppName == "" {
		return errors.New("app name is required")
	}

	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("base url must be an absolute http(s) url, got %q", c.BaseURL)
	}

	if c.MinPasswordLength < 1 {
		return fmt.Errorf("minimum password length must be positive, got %d", c.MinPasswordLength)
	}
	if c.SessionTTL <= 0 {
		return errors.New("session ttl must be positive")
	}
	switch c.CookieSecure {
	case "auto", "true", "false":
	default:
		return fmt.Errorf("cookie_secure must be 'auto', 'true' or 'false', got %q", c.CookieSecure)
	}

	if c.DatabaseType != "memory" && c.DatabaseType != "postgres" {
		return errors.New("database_type must be 'memory' or 'postgres'")
	}
	if c.DatabaseType == "postgres" && c.DatabaseURL == "" {
		return errors.New("database_url is required when using postgres")
	}

	switch c.StorageType {
	case "memory":
	case "fs":
		if c.FS.BaseDir == "" {
			return errors.New("fs base dir is required when using fs storage")
		}
	case "s3":
		if c.S3.Bucket == "" {
			return errors.New("s3 bucket is required when using s3 storage")
		}
	default:
		return fmt.Errorf("storage_type must be 'memory', 'fs' or 's3', got %q", c.StorageType)
	}

	if c.MaxUploadBytes <= 0 {
		return errors.New("max upload bytes must be positive")
	}

	return nil
}

// IsDevelopment reports whether the server runs with development defaults.
func (c *ServerConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

// SecureCookie reports whether the session cookie carries the Secure attribute.
func (c *ServerConfig) SecureCookie() bool {
	switch c.CookieSecure {
	case "true":
		return true
	case "false":
		return false
	default:
		return !c.IsDevelopment()
	}
}

// DefaultAvatarURL is assigned to identities registered without an avatar.
func (c *ServerConfig) DefaultAvatarURL() string {
	return strings.TrimRight(c.BaseURL, "/") + "/default-avatar.png"
}

// MediaURL is the public prefix of objects held by the memory and fs blob stores.
func (c *ServerConfig) MediaURL() string {
	return strings.TrimRight(c.BaseURL, "/") + "/media"
}

// Runtime holds everything the server and admin commands need, built from one ServerConfig.
type Runtime struct {
	Service    simpleblog.Service
	Repository simpleblog.Repository
	Store      simpleblog.BlobStore
	Sessions   *session.Issuer

	// Metrics is nil when metrics are disabled.
	Metrics *prometheus.Registry
	// MediaHandler serves stored objects for the fs blob store and is nil otherwise.
	MediaHandler http.Handler

	closers []func()
}

// Close releases database connections.
func (r *Runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

// Build wires the repository, blob store, session issuer and service.
func (c *ServerConfig) Build(ctx context.Context) (*Runtime, error) {
	sessions, err := c.BuildIssuer()
	if err != nil {
		return nil, err
	}

	rt, err := c.BuildStores(ctx)
	if err != nil {
		return nil, err
	}
	rt.Sessions = sessions

	var mediaOpts []simpleblog.MediaOption
	if c.AvatarMaxDimension > 0 {
		mediaOpts = append(mediaOpts, simpleblog.WithTransformer(simpleblog.FolderAvatars, imaging.NewDownscaler(c.AvatarMaxDimension)))
	}

	options := []simpleblog.Option{
		simpleblog.WithRepository(rt.Repository),
		simpleblog.WithBlobStore(rt.Store, mediaOpts...),
		simpleblog.WithHasher(simpleblog.NewBcryptHasher(c.BcryptCost)),
		simpleblog.WithAppName(c.AppName),
		simpleblog.WithDefaultAvatarURL(c.DefaultAvatarURL()),
		simpleblog.WithMinPasswordLength(c.MinPasswordLength),
	}

	if c.EnableMetrics {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		options = append(options, simpleblog.WithEventSink(metrics.NewCollector(reg)))
		rt.Metrics = reg
	}

	rt.Service, err = simpleblog.New(options...)
	if err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

// BuildStores opens only the repository and the blob store. Admin commands use it
// without a session secret.
func (c *ServerConfig) BuildStores(ctx context.Context) (*Runtime, error) {
	rt := &Runtime{}

	repo, closeRepo, err := c.buildRepository(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build repository: %w", err)
	}
	rt.Repository = repo
	if closeRepo != nil {
		rt.closers = append(rt.closers, closeRepo)
	}

	store, mediaHandler, err := c.buildBlobStore()
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to build blob store: %w", err)
	}
	rt.Store = store
	rt.MediaHandler = mediaHandler

	return rt, nil
}

// BuildService creates a Service instance from the server configuration
func (c *ServerConfig) BuildService(ctx context.Context) (simpleblog.Service, error) {
	rt, err := c.Build(ctx)
	if err != nil {
		return nil, err
	}
	return rt.Service, nil
}

// BuildIssuer creates the session issuer.
func (c *ServerConfig) BuildIssuer() (*session.Issuer, error) {
	issuer, err := session.NewIssuer(c.JWTSecret, session.WithTTL(c.SessionTTL), session.WithSecureCookie(c.SecureCookie()))
	if err != nil {
		return nil, fmt.Errorf("failed to build session issuer: %w", err)
	}
	return issuer, nil
}

// buildRepository creates a Repository based on the configuration
func (c *ServerConfig) buildRepository(ctx context.Context) (simpleblog.Repository, func(), error) {
	switch c.DatabaseType {
	case "memory":
		return memory.New(), nil, nil
	case "postgres":
		if c.AutoMigrate {
			if err := repopg.RunMigrations(c.MigrationURL()); err != nil {
				return nil, nil, err
			}
		}
		pool, err := NewPool(ctx, c.DatabaseURL, c.DBSchema)
		if err != nil {
			return nil, nil, err
		}
		return repopg.NewWithPool(pool), pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

// MigrationURL is DatabaseURL with the configured schema as search_path.
func (c *ServerConfig) MigrationURL() string {
	if c.DBSchema == "" {
		return c.DatabaseURL
	}
	u, err := url.Parse(c.DatabaseURL)
	if err != nil {
		return c.DatabaseURL
	}
	q := u.Query()
	q.Set("search_path", c.DBSchema)
	u.RawQuery = q.Encode()
	return u.String()
}

// NewPool opens a pgx pool, sets search_path on every connection when schema is
// given, and verifies connectivity.
func NewPool(ctx context.Context, databaseURL, schema string) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, errors.New("database_url is required")
	}
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}
	if schema != "" {
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			_, err := conn.Exec(ctx, "SET search_path TO "+pgx.Identifier{schema}.Sanitize())
			return err
		}
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	return pool, nil
}

// buildBlobStore creates the BlobStore named by StorageType
func (c *ServerConfig) buildBlobStore() (simpleblog.BlobStore, http.Handler, error) {
	switch c.StorageType {
	case "memory":
		return memorystorage.New(c.MediaURL()), nil, nil

	case "fs":
		backend, err := fsstorage.New(fsstorage.Config{
			BaseDir:   c.FS.BaseDir,
			URLPrefix: c.MediaURL(),
		})
		if err != nil {
			return nil, nil, err
		}
		return backend, backend.Handler(), nil

	case "s3":
		backend, err := s3storage.New(s3storage.Config{
			Region:                 c.S3.Region,
			Bucket:                 c.S3.Bucket,
			AccessKeyID:            c.S3.AccessKeyID,
			SecretAccessKey:        c.S3.SecretAccessKey,
			Endpoint:               c.S3.Endpoint,
			UsePathStyle:           c.S3.UsePathStyle,
			PublicBaseURL:          c.S3.PublicBaseURL,
			CreateBucketIfNotExist: c.S3.CreateBucketIfNotExist,
		})
		if err != nil {
			return nil, nil, err
		}
		return backend, nil, nil

	default:
		return nil, nil, fmt.Errorf("unsupported storage backend type: %s", c.StorageType)
	}
}
