package storage

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// PresignedURLExpiry is the default expiration time for presigned URLs
const PresignedURLExpiry = 15 * time.Minute

// PresignClient wraps the S3 presign client
type PresignClient struct {
	client *s3.PresignClient
}

// NewPresignClient creates a new presign client, nil when S3 is disabled
func NewPresignClient() *PresignClient {
	if !IsEnabled() {
		return nil
	}
	return &PresignClient{
		client: s3.NewPresignClient(s3Client),
	}
}

// GenerateUploadURL generates a presigned URL for uploading a file
func (p *PresignClient) GenerateUploadURL(ctx context.Context, key, contentType string, expiry time.Duration) (string, error) {
	if expiry == 0 {
		expiry = PresignedURLExpiry
	}

	result, err := p.client.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", err
	}

	return result.URL, nil
}
