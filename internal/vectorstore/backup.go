package vectorstore

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/finlearn/finlearn-backend/internal/platform/errs"
	s3client "github.com/finlearn/finlearn-backend/internal/platform/s3"
)

// BackupInfo describes one archived store snapshot in S3.
type BackupInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

// Backup archives the entire persist directory as tar.gz and uploads it to
// S3. The generated key is returned so callers can restore the exact
// snapshot later.
func (m *Manager) Backup(ctx context.Context, store s3client.Client, bucket, prefix string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !dirExists(m.path) {
		return "", errs.NotFound(fmt.Sprintf("vector store directory %s", m.path), nil)
	}

	tmp, err := os.CreateTemp("", "vectorstore-backup-*.tar.gz")
	if err != nil {
		return "", errs.Storage("create backup temp file", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := writeTarGz(tmp, m.path); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", errs.Storage("close backup archive", err)
	}

	key := backupKey(prefix, time.Now().UTC())
	collections := len(m.db.ListCollections())
	_, err = store.Upload(ctx, tmpPath, bucket, key, map[string]string{
		"created_at":  time.Now().UTC().Format(time.RFC3339),
		"collections": strconv.Itoa(collections),
	})
	if err != nil {
		return "", err
	}

	m.log.Info("vector store backed up", "bucket", bucket, "key", key, "collections", collections)
	return key, nil
}

// Restore downloads a backup archive and replaces the on-disk store with its
// contents, then re-opens the database. An existing non-empty store is only
// replaced when overwrite is set.
func (m *Manager) Restore(ctx context.Context, store s3client.Client, bucket, key string, overwrite bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !overwrite && len(m.db.ListCollections()) > 0 {
		return errs.Validation(fmt.Sprintf("vector store at %s is not empty, pass overwrite to replace it", m.path), nil)
	}

	tmp, err := os.CreateTemp("", "vectorstore-restore-*.tar.gz")
	if err != nil {
		return errs.Storage("create restore temp file", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if _, err := store.Download(ctx, bucket, key, tmpPath); err != nil {
		return err
	}

	if err := os.RemoveAll(m.path); err != nil {
		return errs.Storage(fmt.Sprintf("clear vector store directory %s", m.path), err)
	}
	if err := os.MkdirAll(m.path, 0o755); err != nil {
		return errs.Storage(fmt.Sprintf("recreate vector store directory %s", m.path), err)
	}
	if err := extractTarGz(tmpPath, m.path); err != nil {
		return err
	}
	if err := m.reload(); err != nil {
		return err
	}

	m.log.Info("vector store restored", "bucket", bucket, "key", key,
		"collections", len(m.db.ListCollections()))
	return nil
}

// ListBackups returns available snapshots under the prefix, tar.gz objects
// only.
func (m *Manager) ListBackups(ctx context.Context, store s3client.Client, bucket, prefix string) ([]BackupInfo, error) {
	objects, err := store.List(ctx, bucket, prefix, 0)
	if err != nil {
		return nil, err
	}
	var out []BackupInfo
	for _, obj := range objects {
		if !strings.HasSuffix(obj.Key, ".tar.gz") {
			continue
		}
		out = append(out, BackupInfo{Key: obj.Key, Size: obj.Size, LastModified: obj.LastModified})
	}
	return out, nil
}

func backupKey(prefix string, ts time.Time) string {
	name := "vectorstore-" + ts.Format("20060102-150405") + ".tar.gz"
	if prefix == "" {
		return name
	}
	return strings.TrimSuffix(prefix, "/") + "/" + name
}

// writeTarGz archives the contents of dir, storing paths relative to dir.
func writeTarGz(w io.Writer, dir string) error {
	gzw := gzip.NewWriter(w)
	tw := tar.NewWriter(gzw)

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(rel)
		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		_, err = io.Copy(tw, f)
		f.Close()
		return err
	})
	if err != nil {
		return errs.Storage(fmt.Sprintf("archive %s", dir), err)
	}
	if err := tw.Close(); err != nil {
		return errs.Storage("close tar writer", err)
	}
	if err := gzw.Close(); err != nil {
		return errs.Storage("close gzip writer", err)
	}
	return nil
}

// extractTarGz unpacks an archive into destDir, rejecting entries whose
// resolved path would escape it.
func extractTarGz(archivePath, destDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return errs.Storage(fmt.Sprintf("open archive %s", archivePath), err)
	}
	defer f.Close()

	gzr, err := gzip.NewReader(f)
	if err != nil {
		return errs.Parse("read gzip header", err)
	}
	defer gzr.Close()

	tr := tar.NewReader(gzr)
	cleanDest := filepath.Clean(destDir)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errs.Parse("read tar entry", err)
		}

		path := filepath.Join(cleanDest, header.Name)
		if !strings.HasPrefix(path, cleanDest+string(os.PathSeparator)) {
			return errs.Validation(fmt.Sprintf("archive entry %q escapes destination", header.Name), nil)
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(path, 0o755); err != nil {
				return errs.Storage(fmt.Sprintf("create directory %s", path), err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return errs.Storage(fmt.Sprintf("create directory for %s", path), err)
			}
			out, err := os.Create(path)
			if err != nil {
				return errs.Storage(fmt.Sprintf("create %s", path), err)
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return errs.Storage(fmt.Sprintf("write %s", path), err)
			}
			if err := out.Close(); err != nil {
				return errs.Storage(fmt.Sprintf("close %s", path), err)
			}
		}
	}
	return nil
}
