package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/finlearn/finlearn-backend/internal/platform/errs"
	s3client "github.com/finlearn/finlearn-backend/internal/platform/s3"
	"github.com/finlearn/finlearn-backend/internal/vectorstore"
)

// VectorStoreAdmin is the snapshot surface; satisfied by vectorstore.Manager.
type VectorStoreAdmin interface {
	Backup(ctx context.Context, store s3client.Client, bucket, prefix string) (string, error)
	Restore(ctx context.Context, store s3client.Client, bucket, key string, overwrite bool) error
	ListBackups(ctx context.Context, store s3client.Client, bucket, prefix string) ([]vectorstore.BackupInfo, error)
	ListCollections() []string
	Count(name string) int
}

type VectorStoreHandler struct {
	manager VectorStoreAdmin
	s3      s3client.Client
	bucket  string
	prefix  string
}

func NewVectorStoreHandler(manager VectorStoreAdmin, s3 s3client.Client, bucket, prefix string) *VectorStoreHandler {
	return &VectorStoreHandler{manager: manager, s3: s3, bucket: bucket, prefix: prefix}
}

// POST /api/vectorstore/backup
func (h *VectorStoreHandler) Backup(c *gin.Context) {
	key, err := h.manager.Backup(c.Request.Context(), h.s3, h.bucket, h.prefix)
	if err != nil {
		RespondTypedError(c, err)
		return
	}
	RespondOK(c, gin.H{"bucket": h.bucket, "key": key})
}

type restoreRequest struct {
	Key       string `json:"key" binding:"required"`
	Overwrite bool   `json:"overwrite"`
}

// POST /api/vectorstore/restore
func (h *VectorStoreHandler) Restore(c *gin.Context) {
	var req restoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, 400, string(errs.CodeValidation), err)
		return
	}
	if err := h.manager.Restore(c.Request.Context(), h.s3, h.bucket, req.Key, req.Overwrite); err != nil {
		RespondTypedError(c, err)
		return
	}
	RespondOK(c, gin.H{"restored": req.Key})
}

// GET /api/vectorstore/backups
func (h *VectorStoreHandler) ListBackups(c *gin.Context) {
	backups, err := h.manager.ListBackups(c.Request.Context(), h.s3, h.bucket, h.prefix)
	if err != nil {
		RespondTypedError(c, err)
		return
	}
	RespondOK(c, gin.H{"backups": backups})
}

// GET /api/vectorstore/collections
func (h *VectorStoreHandler) Collections(c *gin.Context) {
	names := h.manager.ListCollections()
	out := make([]gin.H, 0, len(names))
	for _, name := range names {
		out = append(out, gin.H{"name": name, "count": h.manager.Count(name)})
	}
	RespondOK(c, gin.H{"collections": out})
}
