package ingestion

import (
	"context"
	"time"

	"github.com/finlearn/finlearn-backend/internal/domain"
	"github.com/finlearn/finlearn-backend/internal/platform/errs"
	"github.com/finlearn/finlearn-backend/internal/platform/logger"
)

// DocumentStore is the slice of the vector store the ingestion pipeline
// needs: embed and persist chunks into a named collection.
type DocumentStore interface {
	Add(ctx context.Context, collection string, docs []domain.Document) ([]string, error)
}

// Result reports what a pipeline run produced.
type Result struct {
	DocumentsLoaded   int           `json:"documents_loaded"`
	ChunksCreated     int           `json:"chunks_created"`
	EmbeddingsCreated int           `json:"embeddings_created"`
	ProcessingTime    time.Duration `json:"-"`
}

// Processor runs the load -> chunk -> embed -> store pipeline.
type Processor struct {
	loader  *Loader
	chunker *Chunker
	store   DocumentStore
	log     *logger.Logger
}

func NewProcessor(loader *Loader, chunker *Chunker, store DocumentStore, log *logger.Logger) *Processor {
	return &Processor{
		loader:  loader,
		chunker: chunker,
		store:   store,
		log:     log.With("service", "ingestion"),
	}
}

// ProcessRef ingests a single document reference (local path or s3://) into
// the given collection. Extra metadata is overlaid on every chunk.
func (p *Processor) ProcessRef(ctx context.Context, ref string, collection string, extra map[string]string) (Result, error) {
	parsed, err := ParseRef(ref)
	if err != nil {
		return Result{}, err
	}
	start := time.Now()
	docs, err := p.loader.LoadSingle(ctx, parsed)
	if err != nil {
		return Result{}, err
	}
	return p.finish(ctx, start, docs, collection, extra)
}

// ProcessDirectory ingests every supported file directly under dir.
func (p *Processor) ProcessDirectory(ctx context.Context, dir, glob string, maxFiles int, collection string, extra map[string]string) (Result, error) {
	start := time.Now()
	docs, err := p.loader.LoadDir(ctx, dir, glob, maxFiles)
	if err != nil {
		return Result{}, err
	}
	return p.finish(ctx, start, docs, collection, extra)
}

// ProcessS3Prefix ingests every supported object under an S3 prefix.
func (p *Processor) ProcessS3Prefix(ctx context.Context, bucket, prefix, glob string, maxFiles int, collection string, extra map[string]string) (Result, error) {
	start := time.Now()
	docs, err := p.loader.LoadPrefix(ctx, bucket, prefix, glob, maxFiles)
	if err != nil {
		return Result{}, err
	}
	return p.finish(ctx, start, docs, collection, extra)
}

func (p *Processor) finish(ctx context.Context, start time.Time, docs []domain.Document, collection string, extra map[string]string) (Result, error) {
	if len(docs) == 0 {
		return Result{ProcessingTime: time.Since(start)}, errs.NotFound("no readable documents found", nil)
	}
	if len(extra) > 0 {
		for i := range docs {
			docs[i] = docs[i].WithMetadata(extra)
		}
	}

	chunks := p.chunker.Chunk(docs)
	ids, err := p.store.Add(ctx, collection, chunks)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		DocumentsLoaded:   len(docs),
		ChunksCreated:     len(chunks),
		EmbeddingsCreated: len(ids),
		ProcessingTime:    time.Since(start),
	}
	p.log.Info("ingestion complete",
		"collection", collection,
		"documents", res.DocumentsLoaded,
		"chunks", res.ChunksCreated,
		"duration", res.ProcessingTime)
	return res, nil
}
