package ingestion

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/finlearn/finlearn-backend/internal/domain"
	"github.com/finlearn/finlearn-backend/internal/platform/errs"
	"github.com/finlearn/finlearn-backend/internal/platform/logger"
	s3client "github.com/finlearn/finlearn-backend/internal/platform/s3"
)

// DocRef is a parsed document reference: either a local filesystem path or an
// s3://bucket/key object.
type DocRef struct {
	Bucket string
	Key    string
	Path   string
}

func (r DocRef) IsS3() bool { return r.Bucket != "" }

func (r DocRef) String() string {
	if r.IsS3() {
		return "s3://" + r.Bucket + "/" + r.Key
	}
	return r.Path
}

// ParseRef parses a document reference string. Anything not starting with
// s3:// is treated as a local path.
func ParseRef(ref string) (DocRef, error) {
	if !strings.HasPrefix(ref, "s3://") {
		if strings.TrimSpace(ref) == "" {
			return DocRef{}, errs.Validation("empty document reference", nil)
		}
		return DocRef{Path: ref}, nil
	}
	rest := strings.TrimPrefix(ref, "s3://")
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return DocRef{}, errs.Validation(fmt.Sprintf("malformed s3 reference %q, want s3://bucket/key", ref), nil)
	}
	return DocRef{Bucket: bucket, Key: key}, nil
}

// Loader reads documents from disk or S3 into plain-text Documents. PDFs are
// split per page; text and markdown files load as a single document.
type Loader struct {
	s3  s3client.Client
	log *logger.Logger
}

func NewLoader(s3 s3client.Client, log *logger.Logger) *Loader {
	return &Loader{s3: s3, log: log.With("service", "ingestion")}
}

// LoadSingle loads one document reference. S3 objects are downloaded to a
// temp file that is removed before returning, so parsing shares the local
// path regardless of where the bytes came from.
func (l *Loader) LoadSingle(ctx context.Context, ref DocRef) ([]domain.Document, error) {
	if !ref.IsS3() {
		return l.loadLocal(ref.Path, ref.String())
	}
	if l.s3 == nil {
		return nil, errs.Storage("s3 reference given but no s3 client configured", nil)
	}

	tmp, err := os.CreateTemp("", "finlearn-doc-*"+filepath.Ext(ref.Key))
	if err != nil {
		return nil, errs.Storage("create temp file", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if _, err := l.s3.Download(ctx, ref.Bucket, ref.Key, tmpPath); err != nil {
		return nil, err
	}
	docs, err := l.loadLocal(tmpPath, ref.String())
	if err != nil {
		return nil, err
	}
	for i := range docs {
		docs[i].Metadata[domain.MetaS3Bucket] = ref.Bucket
		docs[i].Metadata[domain.MetaS3Key] = ref.Key
	}
	return docs, nil
}

// LoadDir loads every supported file directly under dir, skipping files that
// fail to parse. A glob pattern filters by base name when non-empty.
func (l *Loader) LoadDir(ctx context.Context, dir, glob string, maxFiles int) ([]domain.Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.NotFound(fmt.Sprintf("directory %s", dir), err)
		}
		return nil, errs.Storage(fmt.Sprintf("read directory %s", dir), err)
	}

	var docs []domain.Document
	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if maxFiles > 0 && loaded >= maxFiles {
			break
		}
		name := entry.Name()
		if glob != "" {
			if ok, _ := filepath.Match(glob, name); !ok {
				continue
			}
		}
		if !supportedExt(filepath.Ext(name)) {
			continue
		}
		path := filepath.Join(dir, name)
		fileDocs, err := l.loadLocal(path, path)
		if err != nil {
			l.log.Warn("skipping unreadable file", "path", path, "error", err)
			continue
		}
		docs = append(docs, fileDocs...)
		loaded++
	}
	return docs, nil
}

// LoadPrefix loads every supported object under an S3 prefix. Objects that
// fail to download or parse are logged and skipped rather than failing the
// whole batch.
func (l *Loader) LoadPrefix(ctx context.Context, bucket, prefix, glob string, maxFiles int) ([]domain.Document, error) {
	if l.s3 == nil {
		return nil, errs.Storage("s3 prefix given but no s3 client configured", nil)
	}
	keys, err := l.s3.List(ctx, bucket, prefix, 0)
	if err != nil {
		return nil, err
	}

	var docs []domain.Document
	loaded := 0
	for _, obj := range keys {
		if maxFiles > 0 && loaded >= maxFiles {
			break
		}
		base := filepath.Base(obj.Key)
		if glob != "" {
			if ok, _ := filepath.Match(glob, base); !ok {
				continue
			}
		}
		if !supportedExt(filepath.Ext(obj.Key)) {
			continue
		}
		objDocs, err := l.LoadSingle(ctx, DocRef{Bucket: bucket, Key: obj.Key})
		if err != nil {
			l.log.Warn("skipping unreadable object", "bucket", bucket, "key", obj.Key, "error", err)
			continue
		}
		docs = append(docs, objDocs...)
		loaded++
	}
	return docs, nil
}

func (l *Loader) loadLocal(path, source string) ([]domain.Document, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".pdf":
		return loadPDF(path, source)
	case ".txt", ".text", ".md":
		return loadText(path, source)
	default:
		return nil, errs.UnsupportedType(fmt.Sprintf("unsupported document type %q", ext), nil)
	}
}

func supportedExt(ext string) bool {
	switch strings.ToLower(ext) {
	case ".pdf", ".txt", ".text", ".md":
		return true
	}
	return false
}

func loadText(path, source string) ([]domain.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.NotFound(fmt.Sprintf("file %s", path), err)
		}
		return nil, errs.Storage(fmt.Sprintf("read %s", path), err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil, nil
	}
	return []domain.Document{{
		Text:     text,
		Metadata: map[string]string{domain.MetaSource: source},
	}}, nil
}

// loadPDF extracts one document per page so page provenance survives
// chunking.
func loadPDF(path, source string) ([]domain.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.NotFound(fmt.Sprintf("file %s", path), err)
		}
		return nil, errs.Storage(fmt.Sprintf("read %s", path), err)
	}
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errs.Parse(fmt.Sprintf("open pdf %s", path), err)
	}

	var docs []domain.Document
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, errs.Parse(fmt.Sprintf("extract page %d of %s", pageNum, path), err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		docs = append(docs, domain.Document{
			Text: text,
			Metadata: map[string]string{
				domain.MetaSource: source,
				domain.MetaPage:   strconv.Itoa(pageNum),
			},
		})
	}
	return docs, nil
}
