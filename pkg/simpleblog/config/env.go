package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// LoadFromEnv reads dotenv files (default ".env"), then the process environment, and
// finally applies opts on top. Missing dotenv files are skipped.
//
// Variables:
//
//	PORT, ENVIRONMENT, APP_NAME, BASE_URL, MIN_PASSWORD_LENGTH, BCRYPT_COST
//	JWT_SECRET, SESSION_TTL, COOKIE_SECURE
//	DATABASE_TYPE, DATABASE_URL, DB_SCHEMA, AUTO_MIGRATE
//	STORAGE_TYPE, FS_BASE_DIR
//	AWS_S3_BUCKET, AWS_S3_REGION, AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY,
//	AWS_S3_ENDPOINT, AWS_S3_USE_PATH_STYLE, AWS_S3_PUBLIC_BASE_URL, AWS_S3_CREATE_BUCKET
//	MAX_UPLOAD_BYTES, AVATAR_MAX_DIMENSION, ENABLE_METRICS
func LoadFromEnv(dotenvFiles []string, opts ...Option) (*ServerConfig, error) {
	if len(dotenvFiles) == 0 {
		dotenvFiles = []string{".env"}
	}
	for _, file := range dotenvFiles {
		if err := godotenv.Load(file); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("failed to load %s: %w", file, err)
		}
		slog.Debug("Loaded dotenv file", "file", file)
	}

	return Load(append([]Option{WithEnv()}, opts...)...)
}

// WithEnv replaces the whole configuration with values read from the environment,
// falling back to the env-default tags.
func WithEnv() Option {
	return func(c *ServerConfig) error {
		var cfg ServerConfig
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return fmt.Errorf("failed to read environment: %w", err)
		}
		*c = cfg
		return nil
	}
}
