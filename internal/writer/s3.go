package writer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"splunk-log-downloader/internal/models"
)

// Uploader ships finished output files to an S3 bucket.
type Uploader struct {
	client *s3.Client
	bucket string
}

// NewUploader builds an S3 client for the given bucket. An endpoint override
// switches the client to path-style addressing, which MinIO and other
// S3-compatible stores need.
func NewUploader(ctx context.Context, bucket, region, endpoint string) (*Uploader, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	if endpoint != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, _ ...interface{}) (aws.Endpoint, error) {
			if service == s3.ServiceID {
				return aws.Endpoint{
					URL:               endpoint,
					HostnameImmutable: true,
					SigningRegion:     region,
					Source:            aws.EndpointSourceCustom,
				}, nil
			}
			return aws.Endpoint{}, &aws.EndpointNotFoundError{}
		})
		opts = append(opts, awsconfig.WithEndpointResolverWithOptions(resolver))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = endpoint != ""
	})
	return &Uploader{client: client, bucket: bucket}, nil
}

// UploadFile puts the file at path under its base name and returns the
// object URL.
func (u *Uploader) UploadFile(ctx context.Context, path, mode string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open upload source: %w", err)
	}
	defer f.Close()

	key := filepath.Base(path)
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType(path, mode)),
	})
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}
	return fmt.Sprintf("s3://%s/%s", u.bucket, key), nil
}

func contentType(path, mode string) string {
	if strings.HasSuffix(path, ".gz") {
		return "application/gzip"
	}
	switch mode {
	case models.ModeCSV:
		return "text/csv"
	case models.ModeJSON:
		return "application/json"
	default:
		return "text/plain"
	}
}
