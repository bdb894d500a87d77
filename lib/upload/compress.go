package upload

import (
	"path/filepath"
	"strings"

	"github.com/getevo/evo/v2/lib/log"
	"github.com/iesreza/checkin-backend/lib/formengine"
	"github.com/iesreza/checkin-backend/lib/imageutil"
)

// Compress downscales images larger than CompressThreshold to MaxImageWidth and
// re-encodes them as JPEG. Other files, small images and images that do not
// shrink are returned unchanged; a failed compression falls back to the original.
func Compress(file *formengine.File) *formengine.File {
	if file == nil || !IsImage(file.ContentType) || len(file.Data) <= CompressThreshold {
		return file
	}

	data, err := imageutil.Downscale(file.Data, MaxImageWidth, JPEGQuality)
	if err != nil {
		log.Warning("[Upload:Compress] Failed to compress %s, uploading original: %v", file.Name, err)
		return file
	}
	if len(data) >= len(file.Data) {
		return file
	}

	log.Debug("[Upload:Compress] %s: %d -> %d bytes", file.Name, len(file.Data), len(data))
	return &formengine.File{
		Name:        jpegName(file.Name),
		ContentType: "image/jpeg",
		Size:        int64(len(data)),
		Data:        data,
	}
}

// Thumbnail renders the small JPEG used as a local preview of an image
func Thumbnail(file *formengine.File) ([]byte, error) {
	return imageutil.Downscale(file.Data, PreviewWidth, PreviewQuality)
}

func jpegName(name string) string {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	if base == "" {
		base = "image"
	}
	return base + ".jpg"
}
