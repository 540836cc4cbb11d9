package app

import (
	"strings"

	"github.com/finlearn/finlearn-backend/internal/platform/envutil"
)

// Config is the full environment surface, read once at startup and injected.
type Config struct {
	Port    string
	GinMode string
	LogMode string

	// Shared-secret header auth; empty disables the check.
	APIKey string

	DocumentsBucket string
	BackupsBucket   string
	BackupPrefix    string

	VectorPersistDir string
	VectorCollection string

	ChunkSize    int
	ChunkOverlap int

	AllowedOrigins []string
}

func LoadConfig() Config {
	return Config{
		Port:    envutil.Str("PORT", "8080"),
		GinMode: envutil.Str("GIN_MODE", "debug"),
		LogMode: envutil.Str("LOG_MODE", "development"),

		APIKey: strings.TrimSpace(envutil.Str("AI_SERVICE_API_KEY", "")),

		DocumentsBucket: envutil.Str("S3_DOCUMENTS_BUCKET", ""),
		BackupsBucket:   envutil.Str("S3_BACKUPS_BUCKET", ""),
		BackupPrefix:    envutil.Str("S3_BACKUP_PREFIX", "vectorstore-backups"),

		VectorPersistDir: envutil.Str("VECTOR_PERSIST_DIR", "./data/vectorstore"),
		VectorCollection: envutil.Str("VECTOR_COLLECTION", "financial_docs"),

		ChunkSize:    envutil.Int("CHUNK_SIZE", 500),
		ChunkOverlap: envutil.Int("CHUNK_OVERLAP", 50),

		AllowedOrigins: envutil.List("ALLOWED_ORIGINS", []string{
			"http://localhost:3000",
			"http://localhost:5173",
		}),
	}
}
