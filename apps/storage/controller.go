package storage

import (
	"github.com/getevo/evo/v2/lib/log"
	"github.com/gofiber/fiber/v2"
	"github.com/iesreza/checkin-backend/lib/upload"
)

// PresignUploadRequest asks for a signed URL to upload a check-in document directly
type PresignUploadRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Prefix      string `json:"prefix"`
}

// PresignUploadResponse carries the signed URL, the object key and the URL the object will have
type PresignUploadResponse struct {
	URL       string `json:"url"`
	Key       string `json:"key"`
	PublicURL string `json:"publicUrl"`
}

// PresignUploadHandler issues a signed PUT URL for staff uploading documents on a guest's behalf
func PresignUploadHandler(c *fiber.Ctx) error {
	presignClient := NewPresignClient()
	if presignClient == nil {
		log.Warning("[Storage:PresignUpload] S3 storage not enabled")
		return c.Status(503).JSON(fiber.Map{
			"error": "S3 storage not enabled",
		})
	}

	var req PresignUploadRequest
	if err := c.BodyParser(&req); err != nil {
		log.Warning("[Storage:PresignUpload] Invalid request body: %v", err)
		return c.Status(400).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Filename == "" || req.ContentType == "" {
		return c.Status(400).JSON(fiber.Map{
			"error": "Filename and contentType are required",
		})
	}
	if !upload.IsImage(req.ContentType) && upload.Extension(req.ContentType) == "" {
		return c.Status(400).JSON(fiber.Map{
			"error": "Unsupported content type",
		})
	}

	prefix := req.Prefix
	if prefix == "" {
		prefix = GetUploadPrefix()
	}
	key := ObjectKey(prefix, req.Filename, req.ContentType)

	url, err := presignClient.GenerateUploadURL(c.Context(), key, req.ContentType, PresignedURLExpiry)
	if err != nil {
		log.Error("[Storage:PresignUpload] Failed to generate presigned URL: %v", err)
		return c.Status(500).JSON(fiber.Map{
			"error": "Failed to generate presigned URL",
		})
	}
	public, err := PublicURL(url)
	if err != nil {
		log.Error("[Storage:PresignUpload] %v", err)
		return c.Status(500).JSON(fiber.Map{
			"error": "Failed to generate presigned URL",
		})
	}

	log.Info("[Storage:PresignUpload] Generated presigned URL for key=%s", key)

	return c.JSON(PresignUploadResponse{
		URL:       url,
		Key:       key,
		PublicURL: public,
	})
}
