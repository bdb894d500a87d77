package storage

import (
	"github.com/getevo/evo/v2"
	"github.com/getevo/evo/v2/lib/log"
)

// App represents the storage application
type App struct{}

// Register initializes the S3 connection
func (app App) Register() error {
	if err := Initialize(); err != nil {
		log.Warning("Failed to initialize S3 storage: %v", err)
	}
	return nil
}

// Router registers the admin presign route
func (app App) Router() error {
	admin := evo.GetFiber().Group("/api/admin/storage")
	admin.Post("/presign/upload", PresignUploadHandler)
	return nil
}

// WhenReady is called when application is ready
func (app App) WhenReady() error {
	return nil
}

// Name returns the application name
func (app App) Name() string {
	return "storage"
}
