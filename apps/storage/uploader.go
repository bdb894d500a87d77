package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/getevo/evo/v2/lib/log"
	"github.com/google/uuid"
	"github.com/iesreza/checkin-backend/lib/upload"
)

// URLSigner issues signed PUT URLs
type URLSigner interface {
	GenerateUploadURL(ctx context.Context, key, contentType string, expiry time.Duration) (string, error)
}

// NewUploader returns the uploader selected by S3.UPLOAD_MODE ("presign" or "direct"),
// nil when S3 is disabled
func NewUploader(mode string) upload.Uploader {
	if !IsEnabled() {
		return nil
	}
	if strings.EqualFold(mode, "direct") {
		return DirectUploader{Prefix: GetUploadPrefix()}
	}
	return NewS3Uploader()
}

// S3Uploader stores check-in documents through a signed PUT URL.
// The stored object's URL is the signed URL without its query string.
type S3Uploader struct {
	Signer URLSigner
	Prefix string
	Expiry time.Duration
	Client *http.Client
}

var _ upload.Uploader = (*S3Uploader)(nil)

// NewS3Uploader returns an uploader backed by the configured bucket, nil when S3 is disabled
func NewS3Uploader() *S3Uploader {
	signer := NewPresignClient()
	if signer == nil {
		return nil
	}
	return &S3Uploader{
		Signer: signer,
		Prefix: GetUploadPrefix(),
		Expiry: PresignedURLExpiry,
		Client: &http.Client{Timeout: 60 * time.Second},
	}
}

// Upload implements upload.Uploader
func (u *S3Uploader) Upload(ctx context.Context, req upload.Request) (string, error) {
	key := ObjectKey(u.Prefix, req.File.Name, req.File.ContentType)

	signed, err := u.Signer.GenerateUploadURL(ctx, key, req.File.ContentType, u.Expiry)
	if err != nil {
		return "", fmt.Errorf("failed to sign upload url: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPut, signed, bytes.NewReader(req.File.Data))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.ContentLength = int64(len(req.File.Data))
	httpReq.Header.Set("Content-Type", req.File.ContentType)

	client := u.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to put object: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("storage returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	public, err := PublicURL(signed)
	if err != nil {
		return "", err
	}
	log.Info("[Storage:Upload] Stored %s for field %s as %s", req.File.Name, req.Field, key)
	return public, nil
}

// DirectUploader stores documents with a server-side PutObject
type DirectUploader struct {
	Prefix string
}

var _ upload.Uploader = DirectUploader{}

// Upload implements upload.Uploader
func (u DirectUploader) Upload(ctx context.Context, req upload.Request) (string, error) {
	key := ObjectKey(u.Prefix, req.File.Name, req.File.ContentType)
	if err := Upload(ctx, key, req.File.Data, req.File.ContentType); err != nil {
		return "", fmt.Errorf("failed to put object: %w", err)
	}
	return ObjectURL(key), nil
}

// PublicURL strips the signature query from a signed URL
func PublicURL(signed string) (string, error) {
	u, err := url.Parse(signed)
	if err != nil {
		return "", fmt.Errorf("invalid signed url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid signed url %q", signed)
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

// ObjectKey builds prefix/<uuid><ext>, taking the extension from the name or the content type
func ObjectKey(prefix, filename, contentType string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = upload.Extension(contentType)
	}
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return uuid.New().String() + ext
	}
	return fmt.Sprintf("%s/%s%s", prefix, uuid.New().String(), ext)
}
