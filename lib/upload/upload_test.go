package upload

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"strings"
	"sync"
	"testing"

	"github.com/iesreza/checkin-backend/lib/formengine"
)

// noisePNG encodes random pixels so the PNG does not compress below the size floor
func noisePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	rng := rand.New(rand.NewSource(int64(w*h + 1)))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(rng.Intn(256)), G: uint8(rng.Intn(256)), B: uint8(rng.Intn(256)), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return buf.Bytes()
}

func pdfBytes(size int) []byte {
	return append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte("0"), size)...)
}

func imageFile(t *testing.T, name string) *formengine.File {
	return &formengine.File{Name: name, Data: noisePNG(t, 32, 32)}
}

type recordingUploader struct {
	mu    sync.Mutex
	gate  chan struct{}
	names []string
	fail  map[string]bool
}

func newRecordingUploader() *recordingUploader {
	return &recordingUploader{gate: make(chan struct{}), fail: map[string]bool{}}
}

func (u *recordingUploader) Upload(ctx context.Context, req Request) (string, error) {
	select {
	case <-u.gate:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	u.mu.Lock()
	u.names = append(u.names, req.File.Name)
	fail := u.fail[req.File.Name]
	u.mu.Unlock()
	if fail {
		return "", errors.New("storage unavailable")
	}
	return "https://cdn.example.com/" + req.Field + "/" + req.File.Name, nil
}

func (u *recordingUploader) uploaded() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.names...)
}

func newTestPipeline(uploader Uploader, opts ...Option) (*Pipeline, *MemoryPreviews) {
	previews := NewMemoryPreviews()
	store := formengine.NewStore(formengine.ScreenDocument, formengine.WithPreviewReleaser(previews.Release))
	store.Initialize([]formengine.Attribute{
		{Name: "Passport", FieldType: formengine.FieldImage, IsRequired: true},
		{Name: "Visa", FieldType: formengine.FieldFile},
	})
	return NewPipeline(store, uploader, previews, opts...), previews
}

func TestValidate(t *testing.T) {
	pngData := noisePNG(t, 32, 32)
	tests := []struct {
		name      string
		file      *formengine.File
		fieldType formengine.FieldType
		wantType  string
		wantErr   string
	}{
		{"png image", &formengine.File{Name: "a.png", Data: pngData}, formengine.FieldImage, "image/png", ""},
		{"pdf document", &formengine.File{Name: "a.pdf", Data: pdfBytes(2048)}, formengine.FieldFile, "application/pdf", ""},
		{"pdf in image field", &formengine.File{Name: "a.pdf", Data: pdfBytes(2048)}, formengine.FieldImage, "", "Only JPG"},
		{"image in document field", &formengine.File{Name: "a.png", Data: pngData}, formengine.FieldFile, "", "Only PDF"},
		{"near empty file", &formengine.File{Name: "a.pdf", Data: pdfBytes(10)}, formengine.FieldFile, "", "empty or corrupted"},
		{"too large", &formengine.File{Name: "a.pdf", Data: pdfBytes(MaxFileSize)}, formengine.FieldFile, "", "too large"},
		{"no data", &formengine.File{Name: "a.pdf"}, formengine.FieldFile, "", "No file"},
		{"text field", &formengine.File{Name: "a.pdf", Data: pdfBytes(2048)}, formengine.FieldText, "", "does not accept"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Validate(tt.file, tt.fieldType)
			if tt.wantErr != "" {
				var verr *ValidationError
				if !errors.As(err, &verr) || !strings.Contains(verr.Reason, tt.wantErr) {
					t.Fatalf("error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.wantType {
				t.Errorf("type = %q, want %q", got, tt.wantType)
			}
		})
	}
}

func TestCompress(t *testing.T) {
	t.Run("small images pass through", func(t *testing.T) {
		file := &formengine.File{Name: "a.png", ContentType: "image/png", Data: noisePNG(t, 32, 32)}
		if got := Compress(file); got != file {
			t.Error("expected the original file")
		}
	})

	t.Run("documents pass through", func(t *testing.T) {
		file := &formengine.File{Name: "a.pdf", ContentType: "application/pdf", Data: pdfBytes(CompressThreshold + 1)}
		if got := Compress(file); got != file {
			t.Error("expected the original file")
		}
	})

	t.Run("large images are re-encoded as jpeg", func(t *testing.T) {
		data := noisePNG(t, 640, 640)
		if len(data) <= CompressThreshold {
			t.Fatalf("fixture too small: %d bytes", len(data))
		}
		file := &formengine.File{Name: "scan.png", ContentType: "image/png", Data: data}
		got := Compress(file)
		if got == file {
			t.Fatal("expected a compressed copy")
		}
		if got.Name != "scan.jpg" || got.ContentType != "image/jpeg" || int(got.Size) != len(got.Data) {
			t.Errorf("compressed file = %s %s %d", got.Name, got.ContentType, got.Size)
		}
		if len(got.Data) >= len(data) {
			t.Errorf("compressed %d bytes into %d", len(data), len(got.Data))
		}
	})

	t.Run("undecodable images fall back to the original", func(t *testing.T) {
		file := &formengine.File{Name: "a.png", ContentType: "image/png", Data: pdfBytes(CompressThreshold + 1)}
		if got := Compress(file); got != file {
			t.Error("expected the original file")
		}
	})
}

func TestPipelineQueuesInSelectionOrder(t *testing.T) {
	uploader := newRecordingUploader()
	var mu sync.Mutex
	var results []Result
	p, previews := newTestPipeline(uploader, WithObserver(func(r Result) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
	}))
	defer p.Close()

	uploader.fail["two.png"] = true
	for _, name := range []string{"one.png", "two.png", "three.png"} {
		if err := p.SelectFile("Passport", imageFile(t, name), formengine.FieldImage); err != nil {
			t.Fatalf("SelectFile(%s) failed: %v", name, err)
		}
	}

	u, _ := p.Store().Upload("Passport")
	if u.Status != formengine.UploadUploading || len(u.Queue) != 2 {
		t.Fatalf("expected one in flight and two queued, got %s with %d queued", u.Status, len(u.Queue))
	}

	close(uploader.gate)
	p.Wait()

	want := []string{"one.png", "two.png", "three.png"}
	if got := uploader.uploaded(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("upload order = %v, want %v", got, want)
	}
	if len(results) != 3 || results[1].Err == nil || results[0].Err != nil || results[2].Err != nil {
		t.Errorf("results = %+v", results)
	}

	u, _ = p.Store().Upload("Passport")
	if u.Status != formengine.UploadSuccess || u.File.Name != "three.png" {
		t.Errorf("final state = %s %v", u.Status, u.File)
	}
	if got := p.Store().Snapshot().Values.Get("Passport"); got != "https://cdn.example.com/Passport/three.png" {
		t.Errorf("value = %v", got)
	}
	if !p.Store().Valid() {
		t.Error("expected the form to be complete")
	}
	if previews.Len() != 1 {
		t.Errorf("only the current preview should be live, got %d", previews.Len())
	}
}

func TestPipelineUploadFailure(t *testing.T) {
	uploader := newRecordingUploader()
	close(uploader.gate)
	uploader.fail["bad.png"] = true
	p, previews := newTestPipeline(uploader)
	defer p.Close()

	if err := p.SelectFile("Passport", imageFile(t, "bad.png"), formengine.FieldImage); err != nil {
		t.Fatal(err)
	}
	p.Wait()

	u, _ := p.Store().Upload("Passport")
	if u.Status != formengine.UploadError || u.Error == "" || u.Preview != "" {
		t.Errorf("state = %+v", u)
	}
	if previews.Len() != 0 {
		t.Errorf("failed upload must release its preview, %d left", previews.Len())
	}

	// retry reuses SelectFile
	if err := p.SelectFile("Passport", imageFile(t, "good.png"), formengine.FieldImage); err != nil {
		t.Fatal(err)
	}
	p.Wait()
	if u, _ := p.Store().Upload("Passport"); u.Status != formengine.UploadSuccess {
		t.Errorf("retry status = %s", u.Status)
	}
}

func TestPipelineRemoveWhileUploading(t *testing.T) {
	uploader := newRecordingUploader()
	var stale []bool
	p, previews := newTestPipeline(uploader, WithObserver(func(r Result) {
		stale = append(stale, r.Stale)
	}))
	defer p.Close()

	if err := p.SelectFile("Passport", imageFile(t, "one.png"), formengine.FieldImage); err != nil {
		t.Fatal(err)
	}
	p.SelectFile("Passport", imageFile(t, "two.png"), formengine.FieldImage)
	p.RemoveFile("Passport")

	close(uploader.gate)
	p.Wait()

	u, _ := p.Store().Upload("Passport")
	if u.Status != formengine.UploadIdle || u.File != nil || u.Preview != "" {
		t.Errorf("late completion overwrote the removal: %+v", u)
	}
	if got := p.Store().Snapshot().Values.Get("Passport"); got != "" {
		t.Errorf("value = %v", got)
	}
	if got := uploader.uploaded(); len(got) != 1 {
		t.Errorf("queued file must be dropped on removal, uploaded %v", got)
	}
	if len(stale) != 1 || !stale[0] {
		t.Errorf("stale flags = %v", stale)
	}
	if previews.Len() != 0 {
		t.Errorf("%d previews leaked", previews.Len())
	}
}

func TestPipelineValidationFailureKeepsState(t *testing.T) {
	uploader := newRecordingUploader()
	close(uploader.gate)
	p, _ := newTestPipeline(uploader)
	defer p.Close()

	if err := p.SelectFile("Passport", imageFile(t, "ok.png"), formengine.FieldImage); err != nil {
		t.Fatal(err)
	}
	p.Wait()

	err := p.SelectFile("Passport", &formengine.File{Name: "doc.pdf", Data: pdfBytes(2048)}, formengine.FieldImage)
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "Passport" {
		t.Fatalf("error = %v", err)
	}

	u, _ := p.Store().Upload("Passport")
	if u.Status != formengine.UploadError || u.File == nil || u.File.Name != "ok.png" || u.Preview == "" {
		t.Errorf("rejected file must not replace the current one: %+v", u)
	}
	if p.Store().Valid() {
		t.Error("a field in error state is not satisfied")
	}
}

func TestPipelineFieldsUploadIndependently(t *testing.T) {
	block := make(chan struct{})
	uploader := UploaderFunc(func(ctx context.Context, req Request) (string, error) {
		if req.Field == "Passport" {
			<-block
		}
		return "https://cdn.example.com/" + req.File.Name, nil
	})
	visaDone := make(chan struct{})
	p, _ := newTestPipeline(uploader, WithObserver(func(r Result) {
		if r.Field == "Visa" {
			close(visaDone)
		}
	}))
	defer p.Close()

	p.SelectFile("Passport", imageFile(t, "p.png"), formengine.FieldImage)
	if err := p.SelectFile("Visa", &formengine.File{Name: "v.pdf", Data: pdfBytes(2048)}, formengine.FieldFile); err != nil {
		t.Fatal(err)
	}
	<-visaDone

	if u, _ := p.Store().Upload("Visa"); u.Status != formengine.UploadSuccess {
		t.Errorf("visa status = %s", u.Status)
	}
	if u, _ := p.Store().Upload("Passport"); u.Status != formengine.UploadUploading {
		t.Errorf("passport status = %s", u.Status)
	}
	close(block)
	p.Wait()
}
