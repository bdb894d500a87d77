package checkin

import (
	"context"
	"errors"

	"github.com/getevo/evo/v2"
	"github.com/getevo/evo/v2/lib/application"
	"github.com/getevo/evo/v2/lib/log"
	appnats "github.com/iesreza/checkin-backend/apps/nats"
	appredis "github.com/iesreza/checkin-backend/apps/redis"
	"github.com/iesreza/checkin-backend/apps/storage"
	"github.com/iesreza/checkin-backend/lib/upload"
	"github.com/nats-io/nats.go"
)

var errNoStorage = errors.New("document storage is not configured")

type previewBackend interface {
	upload.PreviewStore
	PreviewSource
}

// App wires the check-in service into evo
type App struct {
	svc        *Service
	controller Controller
	sweeper    *Sweeper
	retry      *nats.Subscription
}

// Register builds the service from CHECKIN.* settings
func (a *App) Register() error {
	config := LoadConfig()

	var previews previewBackend = upload.NewMemoryPreviews()
	var opts []RegistryOption
	if appredis.IsAvailable() {
		previews = appredis.NewRedisPreviews(appredis.Client, config.PreviewTTL)
		opts = append(opts, WithPersister(appredis.NewSnapshotStore(appredis.Client, config.SessionTTL)))
	}
	opts = append(opts, WithUploadTimeout(config.UploadTimeout))

	uploader := storage.NewUploader(config.UploadMode)
	if uploader == nil {
		log.Warning("[Checkin] S3 storage is disabled, document uploads will fail")
		uploader = upload.UploaderFunc(func(context.Context, upload.Request) (string, error) {
			return "", errNoStorage
		})
	}

	var schema SchemaSource = DBSchema{}
	if config.SchemaURL != "" {
		schema = NewRemoteSchema(config.SchemaURL, config.SchemaToken)
	}

	a.svc = &Service{
		Config:    config,
		Schema:    schema,
		Registry:  NewRegistry(uploader, previews, opts...),
		Tokens:    NewTokenIssuer(config.TokenSecret, config.SessionTTL),
		Forwarder: NewForwarder(config),
		Recorder:  dbRecorder{},
		Publish:   appnats.PublishEvent,
	}
	if a.svc.Forwarder == nil {
		log.Notice("[Checkin] CHECKIN.SUBMIT_URL is not set, submissions stay pending")
	}
	a.controller = Controller{svc: a.svc, previews: previews}
	return nil
}

// Router registers the guest and admin check-in routes
func (a *App) Router() error {
	var controller = a.controller
	var admin = AdminController{svc: a.svc}

	evo.Get("/api/checkin/countries", controller.GetCountries)
	evo.Get("/api/checkin/:entity/attributes", controller.GetAttributes)
	evo.Post("/api/checkin/:entity/sessions", controller.OpenSession)

	evo.Get("/api/checkin/sessions/:id", controller.GetSession)
	evo.Put("/api/checkin/sessions/:id/values/:name", controller.SetValue)
	evo.Put("/api/checkin/sessions/:id/phone/:name", controller.SetPhone)
	evo.Put("/api/checkin/sessions/:id/ui/:name", controller.ToggleUI)
	evo.Put("/api/checkin/sessions/:id/location", controller.SetLocation)
	evo.Delete("/api/checkin/sessions/:id/files/:name", controller.RemoveFile)
	evo.Post("/api/checkin/sessions/:id/submit", controller.Submit)
	evo.Delete("/api/checkin/sessions/:id", controller.CloseSession)

	app := evo.GetFiber()
	app.Post("/api/checkin/sessions/:id/files/:name", appredis.RateLimitMiddleware(appredis.LimitUpload), controller.SelectFileHandler)
	app.Get("/api/checkin/previews/:ref", appredis.RateLimitMiddleware(appredis.LimitPreview), controller.PreviewHandler)

	evo.Get("/api/admin/checkin/stats", admin.GetStats)
	evo.Get("/api/admin/checkin/submissions", admin.ListSubmissions)
	evo.Get("/api/admin/checkin/submissions/:id", admin.GetSubmission)
	evo.Post("/api/admin/checkin/submissions/:id/retry", admin.RetrySubmission)
	return nil
}

// WhenReady starts the idle sweeper and the retry worker
func (a *App) WhenReady() error {
	sweeper, err := NewSweeper(a.svc.Registry, a.svc.Config.SweepSchedule, a.svc.Config.SessionTTL)
	if err != nil {
		log.Error("[Checkin] Invalid CHECKIN.SWEEP_SCHEDULE %q: %v", a.svc.Config.SweepSchedule, err)
	} else {
		a.sweeper = sweeper
		a.sweeper.Start()
	}

	sub, err := appnats.QueueSubscribe(appnats.SubjectSubmissionRetry, "checkin-retry", func(msg *nats.Msg) {
		a.svc.handleRetry(msg.Data)
	})
	if err != nil {
		log.Notice("[Checkin] Retry worker not started: %v", err)
	} else {
		a.retry = sub
	}

	log.Info("[Checkin] Check-in service ready")
	return nil
}

// Name returns the app name
func (a *App) Name() string {
	return "checkin"
}

// Shutdown stops background work and closes every live session
func (a *App) Shutdown() error {
	if a.retry != nil {
		_ = a.retry.Unsubscribe()
	}
	if a.sweeper != nil {
		a.sweeper.Stop()
	}
	if a.svc != nil {
		a.svc.Registry.Shutdown()
	}
	return nil
}

var _ application.Application = (*App)(nil)
