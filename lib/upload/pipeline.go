package upload

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/getevo/evo/v2/lib/log"
	"github.com/iesreza/checkin-backend/lib/formengine"
)

// ErrNoURL is reported when an uploader succeeds without returning a URL
var ErrNoURL = errors.New("upload returned no url")

// Request is one file handed to the upload collaborator
type Request struct {
	Field string
	File  *formengine.File
}

// Uploader delivers file bytes and returns the public URL of the stored object.
// Timeouts are the uploader's concern; it must return an error when it gives up.
type Uploader interface {
	Upload(ctx context.Context, req Request) (string, error)
}

// UploaderFunc adapts a function to Uploader
type UploaderFunc func(ctx context.Context, req Request) (string, error)

// Upload implements Uploader
func (f UploaderFunc) Upload(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// Result is the outcome of one upload attempt
type Result struct {
	Field string
	File  *formengine.File
	URL   string
	Err   error
	// Stale is set when the field was removed or replaced while the upload was in flight
	Stale bool
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithObserver registers fn to receive every upload result
func WithObserver(fn func(Result)) Option {
	return func(p *Pipeline) {
		p.observer = fn
	}
}

// WithTimeout bounds each upload attempt
func WithTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		p.timeout = d
	}
}

// Pipeline runs uploads for the fields of one store.
// Uploads of one field are serialized; different fields upload independently.
type Pipeline struct {
	store    *formengine.Store
	uploader Uploader
	previews PreviewStore
	observer func(Result)
	timeout  time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPipeline creates a pipeline writing into store. previews may be nil.
// The store should release previews through the same preview store.
func NewPipeline(store *formengine.Store, uploader Uploader, previews PreviewStore, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:    store,
		uploader: uploader,
		previews: previews,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.ctx, p.cancel = context.WithCancel(context.Background())
	return p
}

// Store returns the store the pipeline writes into
func (p *Pipeline) Store() *formengine.Store {
	return p.store
}

// SelectFile validates file for field and starts uploading it, or queues it
// behind the upload already in flight. A validation failure is recorded on
// the field and returned; it never disturbs the current file or preview.
func (p *Pipeline) SelectFile(field string, file *formengine.File, fieldType formengine.FieldType) error {
	// field is kept by the store and the drain goroutine
	field = strings.Clone(field)
	contentType, err := Validate(file, fieldType)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			verr.Field = field
		}
		p.store.RejectFile(field, err.Error())
		return err
	}
	if p.ctx.Err() != nil {
		return fmt.Errorf("pipeline closed")
	}

	file.ContentType = contentType
	file.Size = int64(len(file.Data))

	ticket, started := p.store.BeginUpload(field, file)
	if !started {
		log.Debug("[Upload:Select] Queued %s for field %s", file.Name, field)
		return nil
	}
	p.wg.Add(1)
	go p.drain(ticket, file)
	return nil
}

// RemoveFile returns field to idle. An upload still in flight is not
// cancelled, its result is ignored.
func (p *Pipeline) RemoveFile(field string) {
	p.store.RemoveFile(field)
}

// drain uploads file and then every file queued behind it, in selection order
func (p *Pipeline) drain(ticket formengine.Ticket, file *formengine.File) {
	defer p.wg.Done()
	for file != nil {
		p.attachPreview(ticket, file)

		url, err := p.upload(ticket.Field, file)
		next, nextFile, current := p.store.FinishUpload(ticket, url, err)
		p.notify(Result{Field: ticket.Field, File: file, URL: url, Err: err, Stale: !current})

		ticket, file = next, nextFile
	}
}

func (p *Pipeline) upload(field string, file *formengine.File) (url string, err error) {
	ctx := p.ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("upload panicked: %v", r)
		}
	}()

	url, err = p.uploader.Upload(ctx, Request{Field: field, File: Compress(file)})
	if err == nil && url == "" {
		err = ErrNoURL
	}
	if err != nil {
		log.Error("[Upload:Drain] Failed to upload %s for field %s: %v", file.Name, field, err)
		return "", err
	}
	return url, nil
}

func (p *Pipeline) attachPreview(ticket formengine.Ticket, file *formengine.File) {
	if p.previews == nil || !IsImage(file.ContentType) {
		return
	}
	data, err := Thumbnail(file)
	if err != nil {
		log.Debug("[Upload:Preview] No preview for %s: %v", file.Name, err)
		return
	}
	ref, err := p.previews.Acquire(p.ctx, Preview{ContentType: "image/jpeg", Data: data})
	if err != nil {
		log.Warning("[Upload:Preview] Failed to store preview for %s: %v", file.Name, err)
		return
	}
	if !p.store.AttachPreview(ticket, ref) {
		p.previews.Release(ref)
	}
}

func (p *Pipeline) notify(r Result) {
	if p.observer != nil {
		p.observer(r)
	}
}

// Wait blocks until every started upload and its queue have drained
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// Close cancels uploads in flight and waits for the drain loops to exit
func (p *Pipeline) Close() {
	p.cancel()
	p.wg.Wait()
}
