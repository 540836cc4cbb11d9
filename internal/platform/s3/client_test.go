package s3

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/finlearn/finlearn-backend/internal/platform/errs"
	"github.com/finlearn/finlearn-backend/internal/platform/logger"
)

type fakeAPI struct {
	headFn   func(in *awss3.HeadObjectInput) (*awss3.HeadObjectOutput, error)
	getFn    func(in *awss3.GetObjectInput) (*awss3.GetObjectOutput, error)
	listFn   func(in *awss3.ListObjectsV2Input) (*awss3.ListObjectsV2Output, error)
	deleteFn func(in *awss3.DeleteObjectInput) (*awss3.DeleteObjectOutput, error)

	deleteCalls int
}

func (f *fakeAPI) HeadObject(_ context.Context, in *awss3.HeadObjectInput, _ ...func(*awss3.Options)) (*awss3.HeadObjectOutput, error) {
	return f.headFn(in)
}
func (f *fakeAPI) GetObject(_ context.Context, in *awss3.GetObjectInput, _ ...func(*awss3.Options)) (*awss3.GetObjectOutput, error) {
	return f.getFn(in)
}
func (f *fakeAPI) ListObjectsV2(_ context.Context, in *awss3.ListObjectsV2Input, _ ...func(*awss3.Options)) (*awss3.ListObjectsV2Output, error) {
	return f.listFn(in)
}
func (f *fakeAPI) DeleteObject(_ context.Context, in *awss3.DeleteObjectInput, _ ...func(*awss3.Options)) (*awss3.DeleteObjectOutput, error) {
	f.deleteCalls++
	return f.deleteFn(in)
}

type fakeUploader struct {
	fn func(in *awss3.PutObjectInput) (*manager.UploadOutput, error)
}

func (f *fakeUploader) Upload(_ context.Context, in *awss3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	return f.fn(in)
}

type fakePresigner struct {
	fn func(in *awss3.GetObjectInput) (*v4PresignedRequest, error)
}

func (f *fakePresigner) PresignGetObject(_ context.Context, in *awss3.GetObjectInput, _ ...func(*awss3.PresignOptions)) (*v4PresignedRequest, error) {
	return f.fn(in)
}

func newTestClient(t *testing.T, api *fakeAPI, up *fakeUploader, pre *fakePresigner) *client {
	t.Helper()
	log, err := logger.New("dev")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return &client{log: log.With("service", "S3Client"), api: api, uploader: up, presign: pre}
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestValidateBucketName(t *testing.T) {
	cases := []struct {
		bucket string
		ok     bool
	}{
		{"my-bucket", true},
		{"abc", true},
		{"a1-b2-c3", true},
		{"ab", false},
		{"My-Bucket", false},
		{"-leading", false},
		{"trailing-", false},
		{"under_score", false},
	}
	for _, tc := range cases {
		err := validateBucketName(tc.bucket)
		if tc.ok && err != nil {
			t.Fatalf("bucket %q: unexpected error %v", tc.bucket, err)
		}
		if !tc.ok {
			if err == nil {
				t.Fatalf("bucket %q: want validation error got nil", tc.bucket)
			}
			if !errs.IsValidation(err) {
				t.Fatalf("bucket %q: want validation code got %q", tc.bucket, errs.CodeOf(err))
			}
		}
	}
}

func TestUploadMissingFileIsNotFound(t *testing.T) {
	c := newTestClient(t, &fakeAPI{}, &fakeUploader{fn: func(in *awss3.PutObjectInput) (*manager.UploadOutput, error) {
		t.Fatalf("uploader should not be called")
		return nil, nil
	}}, nil)

	_, err := c.Upload(context.Background(), "/nonexistent/file.pdf", "my-bucket", "k", nil)
	if !errs.IsNotFound(err) {
		t.Fatalf("want not_found got %q (%v)", errs.CodeOf(err), err)
	}
}

func TestUploadReturnsETag(t *testing.T) {
	path := writeTempFile(t, "doc.txt", "hello")
	up := &fakeUploader{fn: func(in *awss3.PutObjectInput) (*manager.UploadOutput, error) {
		if aws.ToString(in.Bucket) != "my-bucket" || aws.ToString(in.Key) != "docs/doc.txt" {
			t.Fatalf("upload input mismatch: bucket=%v key=%v", in.Bucket, in.Key)
		}
		return &manager.UploadOutput{ETag: aws.String(`"abc123"`)}, nil
	}}
	c := newTestClient(t, &fakeAPI{}, up, nil)

	got, err := c.Upload(context.Background(), path, "my-bucket", "docs/doc.txt", map[string]string{"category": "finance"})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if got.ETag != `"abc123"` {
		t.Fatalf("etag: want=%q got=%q", `"abc123"`, got.ETag)
	}
}

func TestDownloadDistinguishesNotFoundFromTransport(t *testing.T) {
	api := &fakeAPI{getFn: func(in *awss3.GetObjectInput) (*awss3.GetObjectOutput, error) {
		return nil, &smithy.GenericAPIError{Code: "NoSuchKey", Message: "missing"}
	}}
	c := newTestClient(t, api, nil, nil)

	_, err := c.Download(context.Background(), "my-bucket", "missing.pdf", filepath.Join(t.TempDir(), "out.pdf"))
	if !errs.IsNotFound(err) {
		t.Fatalf("want not_found got %q (%v)", errs.CodeOf(err), err)
	}

	api.getFn = func(in *awss3.GetObjectInput) (*awss3.GetObjectOutput, error) {
		return nil, &smithy.GenericAPIError{Code: "SlowDown", Message: "throttled"}
	}
	_, err = c.Download(context.Background(), "my-bucket", "missing.pdf", filepath.Join(t.TempDir(), "out.pdf"))
	if !errs.IsStorage(err) {
		t.Fatalf("want storage got %q (%v)", errs.CodeOf(err), err)
	}
}

func TestDownloadCreatesParentDirs(t *testing.T) {
	api := &fakeAPI{getFn: func(in *awss3.GetObjectInput) (*awss3.GetObjectOutput, error) {
		return &awss3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader([]byte("content")))}, nil
	}}
	c := newTestClient(t, api, nil, nil)

	dest := filepath.Join(t.TempDir(), "nested", "deeper", "out.txt")
	got, err := c.Download(context.Background(), "my-bucket", "k", dest)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if got.SizeBytes != int64(len("content")) {
		t.Fatalf("size: want=%d got=%d", len("content"), got.SizeBytes)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read downloaded file: %v", err)
	}
	if string(data) != "content" {
		t.Fatalf("content mismatch: got=%q", data)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	api := &fakeAPI{deleteFn: func(in *awss3.DeleteObjectInput) (*awss3.DeleteObjectOutput, error) {
		return &awss3.DeleteObjectOutput{}, nil
	}}
	c := newTestClient(t, api, nil, nil)

	for i := 0; i < 2; i++ {
		if err := c.Delete(context.Background(), "my-bucket", "gone.txt"); err != nil {
			t.Fatalf("Delete attempt %d: %v", i+1, err)
		}
	}
	if api.deleteCalls != 2 {
		t.Fatalf("delete calls: want=2 got=%d", api.deleteCalls)
	}
}

func TestExistsNeverErrorsOnMissing(t *testing.T) {
	api := &fakeAPI{headFn: func(in *awss3.HeadObjectInput) (*awss3.HeadObjectOutput, error) {
		return nil, &smithy.GenericAPIError{Code: "NotFound"}
	}}
	c := newTestClient(t, api, nil, nil)

	ok, err := c.Exists(context.Background(), "my-bucket", "missing")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if ok {
		t.Fatalf("Exists: want=false got=true")
	}
}

func TestListMapsObjectInfo(t *testing.T) {
	now := time.Now().UTC()
	api := &fakeAPI{listFn: func(in *awss3.ListObjectsV2Input) (*awss3.ListObjectsV2Output, error) {
		if aws.ToString(in.Prefix) != "docs/" {
			t.Fatalf("prefix: want=docs/ got=%q", aws.ToString(in.Prefix))
		}
		if aws.ToInt32(in.MaxKeys) != 10 {
			t.Fatalf("max keys: want=10 got=%d", aws.ToInt32(in.MaxKeys))
		}
		return &awss3.ListObjectsV2Output{Contents: []s3types.Object{
			{Key: aws.String("docs/a.pdf"), Size: aws.Int64(42), LastModified: aws.Time(now), ETag: aws.String(`"e1"`)},
		}}, nil
	}}
	c := newTestClient(t, api, nil, nil)

	got, err := c.List(context.Background(), "my-bucket", "docs/", 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].Key != "docs/a.pdf" || got[0].Size != 42 {
		t.Fatalf("list result mismatch: %+v", got)
	}
}

func TestBatchUploadAggregatesMixedResults(t *testing.T) {
	good := writeTempFile(t, "good.txt", "ok")
	up := &fakeUploader{fn: func(in *awss3.PutObjectInput) (*manager.UploadOutput, error) {
		return &manager.UploadOutput{ETag: aws.String(`"e"`)}, nil
	}}
	c := newTestClient(t, &fakeAPI{}, up, nil)

	got, err := c.BatchUpload(context.Background(), "my-bucket", []UploadItem{
		{FilePath: good, Key: "good.txt"},
		{FilePath: "/nonexistent/bad.txt", Key: "bad.txt"},
	})
	if err != nil {
		t.Fatalf("BatchUpload: %v", err)
	}
	if len(got.Uploaded) != 1 {
		t.Fatalf("uploaded: want=1 got=%d", len(got.Uploaded))
	}
	if len(got.Failed) != 1 || got.Failed[0].Key != "bad.txt" {
		t.Fatalf("failed: want bad.txt got=%+v", got.Failed)
	}
}

func TestPresignDefaultsTTL(t *testing.T) {
	pre := &fakePresigner{fn: func(in *awss3.GetObjectInput) (*v4PresignedRequest, error) {
		return &v4PresignedRequest{URL: "https://signed.example/doc"}, nil
	}}
	c := newTestClient(t, &fakeAPI{}, nil, pre)

	url, err := c.Presign(context.Background(), "my-bucket", "doc", 0)
	if err != nil {
		t.Fatalf("Presign: %v", err)
	}
	if url != "https://signed.example/doc" {
		t.Fatalf("url: got=%q", url)
	}
}
