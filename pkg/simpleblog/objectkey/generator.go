package objectkey

import (
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
)

// Generator defines the interface for object key generation strategies
type Generator interface {
	// GenerateKey creates an object key for an asset stored under folder
	GenerateKey(folder string, assetID uuid.UUID, fileName string) string
}

// FlatGenerator places every asset directly under its folder:
// <folder>/<asset id><ext>
type FlatGenerator struct{}

func NewFlatGenerator() *FlatGenerator {
	return &FlatGenerator{}
}

func (g *FlatGenerator) GenerateKey(folder string, assetID uuid.UUID, fileName string) string {
	return joinKey(folder, assetID.String()+extension(fileName))
}

// ShardedGenerator provides Git-style sharding below the folder:
// <folder>/ab/cd1234ef5678...<ext>
type ShardedGenerator struct {
	// ShardLength controls how many characters to use for sharding (default: 2)
	ShardLength int
}

func NewShardedGenerator() *ShardedGenerator {
	return &ShardedGenerator{
		ShardLength: 2,
	}
}

func (g *ShardedGenerator) GenerateKey(folder string, assetID uuid.UUID, fileName string) string {
	idStr := strings.ReplaceAll(assetID.String(), "-", "")

	shard := g.ShardLength
	if shard <= 0 || shard >= len(idStr) {
		shard = 2
	}

	return joinKey(folder, fmt.Sprintf("%s/%s%s", idStr[:shard], idStr[shard:], extension(fileName)))
}

// NewRecommendedGenerator returns the generator used by default.
func NewRecommendedGenerator() Generator {
	return NewFlatGenerator()
}

func joinKey(folder, name string) string {
	folder = strings.Trim(sanitizePathComponent(folder), "/")
	if folder == "" {
		return name
	}
	return folder + "/" + name
}

// extension returns the lower-cased, sanitized extension of fileName, including the dot.
func extension(fileName string) string {
	ext := strings.ToLower(path.Ext(sanitizeFilename(fileName)))
	if len(ext) < 2 || len(ext) > 10 {
		return ""
	}
	return ext
}

func sanitizeFilename(filename string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "_",
	)
	return replacer.Replace(filename)
}

// sanitizePathComponent keeps "/" so nested folders like "app/avatars" survive.
func sanitizePathComponent(component string) string {
	replacer := strings.NewReplacer(
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "_",
		"..", "_",
	)
	return strings.ToLower(replacer.Replace(component))
}
