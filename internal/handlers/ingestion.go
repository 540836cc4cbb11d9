package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/finlearn/finlearn-backend/internal/ingestion"
	"github.com/finlearn/finlearn-backend/internal/platform/errs"
	"github.com/finlearn/finlearn-backend/internal/platform/logger"
)

// backgroundIngestTimeout bounds detached ingestion runs.
const backgroundIngestTimeout = 30 * time.Minute

// IngestionService runs document pipelines; satisfied by ingestion.Processor.
type IngestionService interface {
	ProcessRef(ctx context.Context, ref, collection string, extra map[string]string) (ingestion.Result, error)
	ProcessDirectory(ctx context.Context, dir, glob string, maxFiles int, collection string, extra map[string]string) (ingestion.Result, error)
	ProcessS3Prefix(ctx context.Context, bucket, prefix, glob string, maxFiles int, collection string, extra map[string]string) (ingestion.Result, error)
}

type IngestionHandler struct {
	processor  IngestionService
	collection string
	bucket     string
	log        *logger.Logger
}

func NewIngestionHandler(processor IngestionService, collection, bucket string, log *logger.Logger) *IngestionHandler {
	return &IngestionHandler{
		processor:  processor,
		collection: collection,
		bucket:     bucket,
		log:        log.With("handler", "ingestion"),
	}
}

type ingestDocumentsRequest struct {
	Directory string            `json:"directory"`
	Bucket    string            `json:"bucket"`
	Prefix    string            `json:"prefix"`
	Glob      string            `json:"glob"`
	MaxFiles  int               `json:"max_files"`
	Metadata  map[string]string `json:"metadata"`
}

// POST /api/ingest-documents
//
// Kicks off ingestion in the background and returns immediately with a job
// id. The run gets its own context so it survives the request. A local
// directory takes precedence; otherwise the request (or configured default)
// bucket is walked by prefix.
func (h *IngestionHandler) IngestDocuments(c *gin.Context) {
	var req ingestDocumentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, 400, string(errs.CodeValidation), err)
		return
	}
	bucket := req.Bucket
	if bucket == "" {
		bucket = h.bucket
	}
	if req.Directory == "" && bucket == "" {
		RespondError(c, 400, string(errs.CodeValidation),
			errs.Validation("no directory or bucket given and no default bucket configured", nil))
		return
	}

	jobID := uuid.NewString()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), backgroundIngestTimeout)
		defer cancel()

		var (
			res ingestion.Result
			err error
		)
		if req.Directory != "" {
			res, err = h.processor.ProcessDirectory(ctx, req.Directory, req.Glob, req.MaxFiles, h.collection, req.Metadata)
		} else {
			res, err = h.processor.ProcessS3Prefix(ctx, bucket, req.Prefix, req.Glob, req.MaxFiles, h.collection, req.Metadata)
		}
		if err != nil {
			h.log.Error("background ingestion failed", "job_id", jobID,
				"directory", req.Directory, "bucket", bucket, "prefix", req.Prefix, "error", err)
			return
		}
		h.log.Info("background ingestion finished", "job_id", jobID,
			"documents", res.DocumentsLoaded, "chunks", res.ChunksCreated)
	}()

	c.JSON(202, gin.H{
		"job_id": jobID,
		"status": "accepted",
	})
}

type processDocumentRequest struct {
	Ref      string            `json:"ref" binding:"required"`
	Metadata map[string]string `json:"metadata"`
}

type processDocumentResponse struct {
	ChunksCreated         int     `json:"chunks_created"`
	EmbeddingsCreated     int     `json:"embeddings_created"`
	ProcessingTimeSeconds float64 `json:"processing_time_seconds"`
	Error                 string  `json:"error,omitempty"`
}

// POST /api/process-document
//
// Runs the full pipeline inline for one document reference (local path or
// s3://bucket/key). Pipeline failures come back as a contained error field
// with the stats gathered so far.
func (h *IngestionHandler) ProcessDocument(c *gin.Context) {
	var req processDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, 400, string(errs.CodeValidation), err)
		return
	}

	res, err := h.processor.ProcessRef(c.Request.Context(), req.Ref, h.collection, req.Metadata)
	resp := processDocumentResponse{
		ChunksCreated:         res.ChunksCreated,
		EmbeddingsCreated:     res.EmbeddingsCreated,
		ProcessingTimeSeconds: res.ProcessingTime.Seconds(),
	}
	if err != nil {
		if errs.IsValidation(err) || errs.IsUnsupportedType(err) {
			RespondTypedError(c, err)
			return
		}
		resp.Error = err.Error()
	}
	RespondOK(c, resp)
}
