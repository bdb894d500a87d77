package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/getevo/evo/v2/lib/log"
	"github.com/getevo/evo/v2/lib/settings"
)

var (
	s3Client     *s3.Client
	bucket       string
	endpointURL  string
	publicURL    string
	uploadPrefix string
	enabled      bool
)

// Initialize sets up the S3 client
func Initialize() error {
	uploadPrefix = strings.Trim(settings.Get("S3.UPLOAD_PREFIX", "checkin").String(), "/")
	enabled = settings.Get("S3.ENABLED").Bool()
	if !enabled {
		log.Notice("S3 storage is disabled")
		return nil
	}

	bucket = settings.Get("S3.BUCKET").String()
	endpoint := settings.Get("S3.ENDPOINT").String()
	region := settings.Get("S3.REGION", "us-east-1").String()
	accessKey := settings.Get("S3.ACCESS_KEY").String()
	secretKey := settings.Get("S3.SECRET_KEY").String()
	publicURL = strings.TrimRight(settings.Get("S3.PUBLIC_URL").String(), "/")

	if bucket == "" || endpoint == "" || accessKey == "" || secretKey == "" {
		enabled = false
		return fmt.Errorf("S3 configuration incomplete")
	}

	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}
	endpointURL = strings.TrimRight(endpoint, "/")

	cfg := aws.Config{
		Region:      region,
		Credentials: credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		EndpointResolverWithOptions: aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				return aws.Endpoint{
					URL:               endpointURL,
					SigningRegion:     region,
					HostnameImmutable: true,
				}, nil
			},
		),
	}

	s3Client = s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true // Required for S3-compatible services
	})

	log.Notice("S3 storage initialized: bucket=%s, endpoint=%s", bucket, endpointURL)
	return nil
}

// IsEnabled returns whether S3 storage is enabled
func IsEnabled() bool {
	return enabled && s3Client != nil
}

// GetUploadPrefix returns the key prefix of check-in documents
func GetUploadPrefix() string {
	if uploadPrefix == "" {
		return "checkin"
	}
	return uploadPrefix
}

// Upload stores data under key with a server-side PutObject
func Upload(ctx context.Context, key string, data []byte, contentType string) error {
	if !IsEnabled() {
		return fmt.Errorf("S3 storage not enabled")
	}

	_, err := s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	return err
}

// Delete deletes a file from S3
func Delete(ctx context.Context, key string) error {
	if !IsEnabled() {
		return fmt.Errorf("S3 storage not enabled")
	}

	_, err := s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	return err
}

// ObjectURL returns the public address of key.
// S3.PUBLIC_URL wins when set, otherwise the path-style endpoint URL is used.
func ObjectURL(key string) string {
	if publicURL != "" {
		return publicURL + "/" + key
	}
	return fmt.Sprintf("%s/%s/%s", endpointURL, bucket, key)
}
