package s3

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"golang.org/x/sync/errgroup"

	"github.com/finlearn/finlearn-backend/internal/platform/errs"
	"github.com/finlearn/finlearn-backend/internal/platform/logger"
)

// S3 bucket naming rules: 3-63 chars, lowercase alphanumeric and hyphens,
// starts and ends with a letter or digit.
var bucketNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9\-]{1,61}[a-z0-9]$`)

const batchUploadParallelism = 4

type UploadResult struct {
	ETag      string `json:"etag"`
	VersionID string `json:"version_id,omitempty"`
	Bucket    string `json:"bucket"`
	Key       string `json:"key"`
}

type DownloadResult struct {
	FilePath  string `json:"file_path"`
	SizeBytes int64  `json:"size_bytes"`
}

type ObjectInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
	ETag         string    `json:"etag"`
}

type UploadItem struct {
	FilePath string `json:"file_path"`
	Key      string `json:"key"`
}

type BatchUploadFailure struct {
	FilePath string `json:"file_path"`
	Key      string `json:"key"`
	Error    string `json:"error"`
}

type BatchUploadResult struct {
	Uploaded []UploadResult       `json:"uploaded"`
	Failed   []BatchUploadFailure `json:"failed"`
}

// Client is the object-store surface used by the rest of the backend.
type Client interface {
	Upload(ctx context.Context, filePath, bucket, key string, metadata map[string]string) (UploadResult, error)
	Download(ctx context.Context, bucket, key, destPath string) (DownloadResult, error)
	List(ctx context.Context, bucket, prefix string, maxResults int) ([]ObjectInfo, error)
	// Delete is idempotent: it succeeds whether or not the object existed.
	Delete(ctx context.Context, bucket, key string) error
	Exists(ctx context.Context, bucket, key string) (bool, error)
	Presign(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
	// BatchUpload continues past per-item failures and aggregates a mixed result.
	BatchUpload(ctx context.Context, bucket string, items []UploadItem) (BatchUploadResult, error)
}

type objectAPI interface {
	HeadObject(ctx context.Context, in *awss3.HeadObjectInput, opts ...func(*awss3.Options)) (*awss3.HeadObjectOutput, error)
	GetObject(ctx context.Context, in *awss3.GetObjectInput, opts ...func(*awss3.Options)) (*awss3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *awss3.ListObjectsV2Input, opts ...func(*awss3.Options)) (*awss3.ListObjectsV2Output, error)
	DeleteObject(ctx context.Context, in *awss3.DeleteObjectInput, opts ...func(*awss3.Options)) (*awss3.DeleteObjectOutput, error)
}

type uploaderAPI interface {
	Upload(ctx context.Context, in *awss3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

type presignAPI interface {
	PresignGetObject(ctx context.Context, in *awss3.GetObjectInput, opts ...func(*awss3.PresignOptions)) (*v4PresignedRequest, error)
}

// v4PresignedRequest mirrors the fields of v4.PresignedHTTPRequest we use.
// Declared locally so the presigner can be faked in tests.
type v4PresignedRequest struct {
	URL string
}

type client struct {
	log      *logger.Logger
	api      objectAPI
	uploader uploaderAPI
	presign  presignAPI
}

func NewClient(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithRetryMaxAttempts(3),
		awsconfig.WithRetryMode(aws.RetryModeAdaptive),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	sdkClient := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	serviceLog := log.With("service", "S3Client")
	serviceLog.Info("S3 client initialized",
		"region", cfg.Region,
		"endpoint_url", cfg.EndpointURL,
		"path_style", cfg.UsePathStyle,
	)

	return &client{
		log:      serviceLog,
		api:      sdkClient,
		uploader: manager.NewUploader(sdkClient),
		presign:  &sdkPresigner{presign: awss3.NewPresignClient(sdkClient)},
	}, nil
}

type sdkPresigner struct {
	presign *awss3.PresignClient
}

func (p *sdkPresigner) PresignGetObject(ctx context.Context, in *awss3.GetObjectInput, opts ...func(*awss3.PresignOptions)) (*v4PresignedRequest, error) {
	req, err := p.presign.PresignGetObject(ctx, in, opts...)
	if err != nil {
		return nil, err
	}
	return &v4PresignedRequest{URL: req.URL}, nil
}

func validateBucketName(bucket string) error {
	if !bucketNamePattern.MatchString(bucket) {
		return errs.Validation(fmt.Sprintf(
			"invalid bucket name %q: must be 3-63 characters, lowercase letters, digits and hyphens, starting and ending with a letter or digit",
			bucket,
		), nil)
	}
	return nil
}

func (c *client) Upload(ctx context.Context, filePath, bucket, key string, metadata map[string]string) (UploadResult, error) {
	if err := validateBucketName(bucket); err != nil {
		return UploadResult{}, err
	}

	f, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return UploadResult{}, errs.NotFound(fmt.Sprintf("file not found: %s", filePath), err)
		}
		return UploadResult{}, errs.Storage("open upload source", err)
	}
	defer f.Close()

	in := &awss3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   f,
	}
	if len(metadata) > 0 {
		in.Metadata = metadata
	}

	out, err := c.uploader.Upload(ctx, in)
	if err != nil {
		c.log.Error("S3 upload failed", "bucket", bucket, "key", key, "error", err)
		return UploadResult{}, errs.Storage("upload to s3", err)
	}

	result := UploadResult{Bucket: bucket, Key: key, ETag: aws.ToString(out.ETag), VersionID: aws.ToString(out.VersionID)}
	c.log.Info("File uploaded to S3", "bucket", bucket, "key", key, "etag", result.ETag)
	return result, nil
}

func (c *client) Download(ctx context.Context, bucket, key, destPath string) (DownloadResult, error) {
	if err := validateBucketName(bucket); err != nil {
		return DownloadResult{}, err
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return DownloadResult{}, errs.Storage("create destination directory", err)
	}

	out, err := c.api.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFoundAPIError(err) {
			return DownloadResult{}, errs.NotFound(fmt.Sprintf("object not found: s3://%s/%s", bucket, key), err)
		}
		c.log.Error("S3 download failed", "bucket", bucket, "key", key, "error", err)
		return DownloadResult{}, errs.Storage("download from s3", err)
	}
	defer out.Body.Close()

	f, err := os.Create(destPath)
	if err != nil {
		return DownloadResult{}, errs.Storage("create destination file", err)
	}
	defer f.Close()

	n, err := f.ReadFrom(out.Body)
	if err != nil {
		return DownloadResult{}, errs.Storage("write downloaded object", err)
	}

	c.log.Info("File downloaded from S3", "bucket", bucket, "key", key, "size_bytes", n)
	return DownloadResult{FilePath: destPath, SizeBytes: n}, nil
}

func (c *client) List(ctx context.Context, bucket, prefix string, maxResults int) ([]ObjectInfo, error) {
	if err := validateBucketName(bucket); err != nil {
		return nil, err
	}

	in := &awss3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	}
	if maxResults > 0 {
		in.MaxKeys = aws.Int32(int32(maxResults))
	}

	out, err := c.api.ListObjectsV2(ctx, in)
	if err != nil {
		c.log.Error("S3 list failed", "bucket", bucket, "prefix", prefix, "error", err)
		return nil, errs.Storage("list s3 objects", err)
	}

	files := make([]ObjectInfo, 0, len(out.Contents))
	for _, obj := range out.Contents {
		files = append(files, ObjectInfo{
			Key:          aws.ToString(obj.Key),
			Size:         aws.ToInt64(obj.Size),
			LastModified: aws.ToTime(obj.LastModified),
			ETag:         aws.ToString(obj.ETag),
		})
	}
	c.log.Info("Listed S3 objects", "bucket", bucket, "prefix", prefix, "count", len(files))
	return files, nil
}

func (c *client) Delete(ctx context.Context, bucket, key string) error {
	if err := validateBucketName(bucket); err != nil {
		return err
	}

	_, err := c.api.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		c.log.Error("S3 delete failed", "bucket", bucket, "key", key, "error", err)
		return errs.Storage("delete s3 object", err)
	}
	c.log.Info("Object deleted from S3", "bucket", bucket, "key", key)
	return nil
}

func (c *client) Exists(ctx context.Context, bucket, key string) (bool, error) {
	if err := validateBucketName(bucket); err != nil {
		return false, err
	}

	_, err := c.api.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFoundAPIError(err) {
			return false, nil
		}
		return false, errs.Storage("head s3 object", err)
	}
	return true, nil
}

func (c *client) Presign(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	if err := validateBucketName(bucket); err != nil {
		return "", err
	}
	if ttl <= 0 {
		ttl = time.Hour
	}

	req, err := c.presign.PresignGetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, func(o *awss3.PresignOptions) {
		o.Expires = ttl
	})
	if err != nil {
		c.log.Error("S3 presign failed", "bucket", bucket, "key", key, "error", err)
		return "", errs.Storage("presign s3 object", err)
	}
	c.log.Info("Generated presigned URL", "bucket", bucket, "key", key, "ttl", ttl)
	return req.URL, nil
}

func (c *client) BatchUpload(ctx context.Context, bucket string, items []UploadItem) (BatchUploadResult, error) {
	if err := validateBucketName(bucket); err != nil {
		return BatchUploadResult{}, err
	}

	var mu sync.Mutex
	result := BatchUploadResult{}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchUploadParallelism)
	for _, item := range items {
		g.Go(func() error {
			uploaded, err := c.Upload(gctx, item.FilePath, bucket, item.Key, nil)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed = append(result.Failed, BatchUploadFailure{
					FilePath: item.FilePath,
					Key:      item.Key,
					Error:    err.Error(),
				})
				return nil
			}
			result.Uploaded = append(result.Uploaded, uploaded)
			return nil
		})
	}
	_ = g.Wait()

	c.log.Info("Batch upload completed",
		"bucket", bucket,
		"total", len(items),
		"uploaded", len(result.Uploaded),
		"failed", len(result.Failed),
	)
	return result, nil
}

func isNotFoundAPIError(err error) bool {
	if err == nil {
		return false
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "404":
			return true
		}
	}
	var respErr interface{ HTTPStatusCode() int }
	if errors.As(err, &respErr) {
		return respErr.HTTPStatusCode() == http.StatusNotFound
	}
	return false
}
