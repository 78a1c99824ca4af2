package config

import (
	"fmt"
	"time"
)

// WithPort sets the server port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		if port == "" {
			return fmt.Errorf("port cannot be empty")
		}
		c.Port = port
		return nil
	}
}

// WithEnvironment sets the environment (development, production, testing)
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		if env == "" {
			return fmt.Errorf("environment cannot be empty")
		}
		c.Environment = env
		return nil
	}
}

// WithAppName sets the name used to namespace blob store folders
func WithAppName(name string) Option {
	return func(c *ServerConfig) error {
		c.AppName = name
		return nil
	}
}

// WithBaseURL sets the public url of the server
func WithBaseURL(baseURL string) Option {
	return func(c *ServerConfig) error {
		c.BaseURL = baseURL
		return nil
	}
}

// WithJWTSecret sets the session signing secret
func WithJWTSecret(secret string) Option {
	return func(c *ServerConfig) error {
		c.JWTSecret = secret
		return nil
	}
}

// WithSessionTTL sets how long a session stays valid
func WithSessionTTL(ttl time.Duration) Option {
	return func(c *ServerConfig) error {
		c.SessionTTL = ttl
		return nil
	}
}

// WithPasswordPolicy sets the minimum password length and the bcrypt cost
func WithPasswordPolicy(minLength, bcryptCost int) Option {
	return func(c *ServerConfig) error {
		c.MinPasswordLength = minLength
		c.BcryptCost = bcryptCost
		return nil
	}
}

// WithDatabase configures the database backend
func WithDatabase(dbType, url string) Option {
	return func(c *ServerConfig) error {
		if dbType != "memory" && dbType != "postgres" {
			return fmt.Errorf("database type must be 'memory' or 'postgres', got: %s", dbType)
		}
		if dbType == "postgres" && url == "" {
			return fmt.Errorf("database URL is required for postgres")
		}
		c.DatabaseType = dbType
		c.DatabaseURL = url
		return nil
	}
}

// WithDatabaseSchema sets the database schema (for Postgres)
func WithDatabaseSchema(schema string) Option {
	return func(c *ServerConfig) error {
		c.DBSchema = schema
		return nil
	}
}

// WithAutoMigrate enables or disables applying migrations at startup
func WithAutoMigrate(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.AutoMigrate = enabled
		return nil
	}
}

// WithMemoryStorage keeps objects in process memory (for testing)
func WithMemoryStorage() Option {
	return func(c *ServerConfig) error {
		c.StorageType = "memory"
		return nil
	}
}

// WithFilesystemStorage stores objects below baseDir
func WithFilesystemStorage(baseDir string) Option {
	return func(c *ServerConfig) error {
		if baseDir == "" {
			return fmt.Errorf("filesystem base directory cannot be empty")
		}
		c.StorageType = "fs"
		c.FS.BaseDir = baseDir
		return nil
	}
}

// WithS3Storage stores objects in an S3 bucket
func WithS3Storage(bucket, region string) Option {
	return func(c *ServerConfig) error {
		if bucket == "" {
			return fmt.Errorf("S3 bucket cannot be empty")
		}
		if region == "" {
			region = "us-east-1"
		}
		c.StorageType = "s3"
		c.S3.Bucket = bucket
		c.S3.Region = region
		return nil
	}
}

// WithS3Credentials sets static AWS credentials
func WithS3Credentials(accessKeyID, secretAccessKey string) Option {
	return func(c *ServerConfig) error {
		c.S3.AccessKeyID = accessKeyID
		c.S3.SecretAccessKey = secretAccessKey
		return nil
	}
}

// WithS3Endpoint sets a custom S3 endpoint (for MinIO, LocalStack, etc.)
func WithS3Endpoint(endpoint string, usePathStyle bool) Option {
	return func(c *ServerConfig) error {
		c.S3.Endpoint = endpoint
		c.S3.UsePathStyle = usePathStyle
		return nil
	}
}

// WithS3PublicBaseURL sets the url prefix objects are served from, e.g. a CDN
func WithS3PublicBaseURL(baseURL string) Option {
	return func(c *ServerConfig) error {
		c.S3.PublicBaseURL = baseURL
		return nil
	}
}

// WithMaxUploadBytes caps multipart request bodies
func WithMaxUploadBytes(n int64) Option {
	return func(c *ServerConfig) error {
		c.MaxUploadBytes = n
		return nil
	}
}

// WithAvatarMaxDimension bounds avatar edges in pixels; 0 stores avatars as uploaded
func WithAvatarMaxDimension(px uint) Option {
	return func(c *ServerConfig) error {
		c.AvatarMaxDimension = px
		return nil
	}
}

// WithMetrics enables or disables the Prometheus collector
func WithMetrics(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.EnableMetrics = enabled
		return nil
	}
}
