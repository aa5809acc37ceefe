package postgres

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/envlink/pkg/api"
	"github.com/platinummonkey/envlink/pkg/storage"
)

// S3Client archives export payloads to object storage. The database row
// stays authoritative; the archive is the durable copy of what was
// written to a .env file at capture time.
type S3Client struct {
	client *s3.Client
	bucket string
	prefix string
	config storage.Config
}

// exportArchive is the JSON payload stored per export.
type exportArchive struct {
	ExportID       string            `json:"export_id"`
	Project        string            `json:"project"`
	ExportPath     string            `json:"export_path"`
	ResolvedValues map[string]string `json:"resolved_values"`
	ExportHash     string            `json:"export_hash"`
	ExportedAt     time.Time         `json:"exported_at"`
	GitBranch      string            `json:"git_branch,omitempty"`
	GitCommitHash  string            `json:"git_commit_hash,omitempty"`
	GitRemoteURL   string            `json:"git_remote_url,omitempty"`
}

// NewS3Client creates a new S3 client
func NewS3Client(cfg storage.Config) (*S3Client, error) {
	ctx := context.Background()

	var awsCfg aws.Config
	var err error

	if cfg.S3AccessKey != "" && cfg.S3SecretKey != "" {
		// Static credentials (MinIO, or AWS with explicit keys).
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.S3Region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.S3AccessKey,
				cfg.S3SecretKey,
				"",
			)),
		)
	} else {
		// Default credential chain (IAM roles, env vars, etc.).
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.S3Region),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		}
		if cfg.S3ForcePathStyle {
			o.UsePathStyle = true
		}
	})

	// Create the bucket if missing (local dev with MinIO).
	if err := createBucketIfNotExists(ctx, s3Client, cfg.S3Bucket); err != nil {
		return nil, fmt.Errorf("failed to ensure bucket exists: %w", err)
	}

	prefix := cfg.S3Prefix
	if prefix == "" {
		prefix = "envlink"
	}

	return &S3Client{
		client: s3Client,
		bucket: cfg.S3Bucket,
		prefix: prefix,
		config: cfg,
	}, nil
}

// archiveKey builds the object key for an export's archive.
func (c *S3Client) archiveKey(project, exportID string) string {
	return path.Join(c.prefix, "exports", project, exportID+".json")
}

// PutExportArchive uploads the export payload and returns its object key.
func (c *S3Client) PutExportArchive(ctx context.Context, export *api.EnvExport) (string, error) {
	key := c.archiveKey(export.Project, export.ID)

	ctx, span := tracer.Start(ctx, "S3.PutExportArchive",
		trace.WithAttributes(
			attribute.String("s3.bucket", c.bucket),
			attribute.String("s3.key", key),
			attribute.String("export.project", export.Project),
			attribute.String("export.id", export.ID),
		),
	)
	defer span.End()

	payload, err := json.Marshal(exportArchive{
		ExportID:       export.ID,
		Project:        export.Project,
		ExportPath:     export.ExportPath,
		ResolvedValues: export.ResolvedValues,
		ExportHash:     export.ExportHash,
		ExportedAt:     export.ExportedAt,
		GitBranch:      export.GitBranch,
		GitCommitHash:  export.GitCommitHash,
		GitRemoteURL:   export.GitRemoteURL,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to marshal archive payload")
		return "", fmt.Errorf("failed to marshal archive payload: %w", err)
	}
	span.SetAttributes(attribute.Int("content.size", len(payload)))

	_, err = c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"export-hash": export.ExportHash,
		},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to upload archive")
		return "", fmt.Errorf("failed to upload archive to s3: %w", err)
	}

	span.SetStatus(codes.Ok, "archive uploaded")
	return key, nil
}

// GetExportArchive retrieves an archived export payload by object key.
func (c *S3Client) GetExportArchive(ctx context.Context, key string) (*exportArchive, error) {
	ctx, span := tracer.Start(ctx, "S3.GetExportArchive",
		trace.WithAttributes(
			attribute.String("s3.bucket", c.bucket),
			attribute.String("s3.key", key),
		),
	)
	defer span.End()

	result, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get archive")
		return nil, fmt.Errorf("failed to get archive from s3: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read archive body")
		return nil, fmt.Errorf("failed to read archive body: %w", err)
	}

	var archive exportArchive
	if err := json.Unmarshal(data, &archive); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to unmarshal archive")
		return nil, fmt.Errorf("failed to unmarshal archive: %w", err)
	}

	span.SetStatus(codes.Ok, "archive retrieved")
	return &archive, nil
}

// ObjectExists checks if an object exists
func (c *S3Client) ObjectExists(ctx context.Context, key string) (bool, error) {
	_, err := c.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFoundError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check object existence: %w", err)
	}
	return true, nil
}

// DeleteObject deletes an object from S3
func (c *S3Client) DeleteObject(ctx context.Context, key string) error {
	_, err := c.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// HealthCheck verifies S3 connectivity
func (c *S3Client) HealthCheck(ctx context.Context) error {
	_, err := c.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(c.bucket),
	})
	if err != nil {
		return fmt.Errorf("s3 health check failed: %w", err)
	}
	return nil
}

func createBucketIfNotExists(ctx context.Context, client *s3.Client, bucket string) error {
	_, err := client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(bucket),
	})
	if err == nil {
		return nil
	}

	_, err = client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(bucket),
	})
	if err != nil && !isBucketAlreadyExistsError(err) {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

func isNotFoundError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "NotFound") || strings.Contains(err.Error(), "NoSuchKey"))
}

func isBucketAlreadyExistsError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "BucketAlreadyExists") || strings.Contains(err.Error(), "BucketAlreadyOwnedByYou"))
}
