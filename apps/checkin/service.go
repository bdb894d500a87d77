package checkin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/getevo/evo/v2/lib/log"
	"github.com/go-playground/validator/v10"
	"github.com/iesreza/checkin-backend/apps/models"
	appnats "github.com/iesreza/checkin-backend/apps/nats"
	"github.com/iesreza/checkin-backend/lib/formengine"
	"github.com/iesreza/checkin-backend/lib/response"
	"github.com/iesreza/checkin-backend/lib/upload"
	"gorm.io/datatypes"
)

var validate = validator.New()

// SubmissionRecorder stores submissions
type SubmissionRecorder interface {
	Create(sub *models.CheckinSubmission) error
	Save(sub *models.CheckinSubmission) error
}

// EventPublisher publishes check-in events
type EventPublisher func(subject string, data any) error

// Service runs check-in sessions against a schema source
type Service struct {
	Config    Config
	Schema    SchemaSource
	Registry  *Registry
	Tokens    *TokenIssuer
	Forwarder *Forwarder
	Recorder  SubmissionRecorder
	Publish   EventPublisher
}

// FormView is the rendered state of a session
type FormView struct {
	Session     string               `json:"session"`
	EntityID    string               `json:"entity_id"`
	Screen      formengine.Screen    `json:"screen"`
	Sections    []formengine.Section `json:"sections"`
	Country     string               `json:"country,omitempty"`
	Region      string               `json:"region,omitempty"`
	Valid       bool                 `json:"valid"`
	Missing     []string             `json:"missing"`
	SchemaError string               `json:"schema_error,omitempty"`
}

// SessionEvent is the data of session lifecycle events
type SessionEvent struct {
	SessionID string `json:"session_id"`
	EntityID  string `json:"entity_id"`
	Screen    string `json:"screen"`
}

// SubmissionEvent is the data of submission events
type SubmissionEvent struct {
	SubmissionID uint   `json:"submission_id"`
	SessionID    string `json:"session_id"`
	EntityID     string `json:"entity_id"`
	Screen       string `json:"screen"`
	Status       string `json:"status"`
	Error        string `json:"error,omitempty"`
}

func (s *Service) publish(subject string, data any) {
	if s.Publish == nil {
		return
	}
	if err := s.Publish(subject, data); err != nil {
		log.Debug("[Checkin:Event] %s not published: %v", subject, err)
	}
}

// OpenSession loads the schema of screen and starts a session on it.
// A schema failure still opens the session, with an empty form that can never be submitted.
func (s *Service) OpenSession(ctx context.Context, entityID string, screen formengine.Screen) (*Session, string, error) {
	attrs, err := s.Schema.Load(ctx, entityID, screen)
	schemaErr := ""
	if err != nil {
		log.Error("[Checkin:Open] Failed to load %s schema for %s: %v", screen, entityID, err)
		attrs, schemaErr = nil, response.ErrSchemaUnavailable.Message
	}

	sess := s.Registry.Open(ctx, entityID, screen, attrs, schemaErr)
	token, err := s.Tokens.Issue(sess.ID, entityID, string(screen))
	if err != nil {
		s.Registry.Close(ctx, sess.ID)
		return nil, "", fmt.Errorf("failed to issue token: %w", err)
	}

	log.Info("[Checkin:Open] Session %s opened for %s (%s, %d fields)", sess.ID, entityID, screen, len(attrs))
	s.publish(appnats.SubjectSessionOpened, SessionEvent{SessionID: sess.ID, EntityID: entityID, Screen: string(screen)})
	return sess, token, nil
}

// Authorize returns the session id after checking token was issued for it
func (s *Service) Authorize(ctx context.Context, id, token string) (*Session, error) {
	if token == "" {
		return nil, response.ErrUnauthorized
	}
	if _, err := s.Tokens.Verify(token, id); err != nil {
		if errors.Is(err, ErrTokenSession) {
			return nil, response.ErrForbidden
		}
		return nil, response.ErrInvalidToken
	}
	sess, ok := s.Registry.Get(ctx, id)
	if !ok {
		return nil, response.ErrSessionNotFound
	}
	return sess, nil
}

// View renders sess
func (s *Service) View(sess *Session) (FormView, error) {
	store := sess.Store()
	snap := store.Snapshot()
	sections, err := formengine.Render(store.Attributes(), snap, formengine.RenderOptions{
		PreviewURL: s.previewURL,
	})
	if err != nil {
		return FormView{}, err
	}
	if sections == nil {
		sections = []formengine.Section{}
	}
	missing := store.Missing()
	if missing == nil {
		missing = []string{}
	}
	return FormView{
		Session:     sess.ID,
		EntityID:    sess.EntityID,
		Screen:      sess.Screen,
		Sections:    sections,
		Country:     snap.Country,
		Region:      snap.Region,
		Valid:       snap.Valid,
		Missing:     missing,
		SchemaError: sess.SchemaError,
	}, nil
}

func (s *Service) previewURL(ref string) string {
	return strings.TrimRight(s.Config.PublicBasePath, "/") + "/api/checkin/previews/" + ref
}

func (s *Service) attribute(sess *Session, name string) (formengine.Attribute, error) {
	attr, ok := sess.Attribute(name)
	if !ok {
		return attr, response.ErrUnknownField.WithFields(name)
	}
	return attr, nil
}

// editable returns the attribute called name when the guest may change it
func (s *Service) editable(sess *Session, name string) (formengine.Attribute, error) {
	attr, err := s.attribute(sess, name)
	if err != nil {
		return attr, err
	}
	if attr.IsDisabled {
		return attr, response.ErrFieldDisabled.WithFields(name)
	}
	return attr, nil
}

// SetValue replaces a field value. Phone fields go through phone validation;
// upload fields only change through the file operations.
func (s *Service) SetValue(ctx context.Context, sess *Session, name string, value any, isDefault *bool) error {
	attr, err := s.editable(sess, name)
	if err != nil {
		return err
	}
	if attr.FieldType.IsUpload() {
		return response.ErrInvalidInput.WithDetails("upload fields are set by selecting a file")
	}
	if attr.FieldType == formengine.FieldPhone {
		phone, _ := value.(string)
		sess.Store().SetPhoneValue(name, phone)
	} else {
		def := attr.IsDefault
		if isDefault != nil {
			def = *isDefault
		}
		sess.Store().SetValue(name, value, def)
	}
	s.Registry.Persist(ctx, sess)
	return nil
}

// SetPhone updates a phone value and its validity flag
func (s *Service) SetPhone(ctx context.Context, sess *Session, name, value string) error {
	attr, err := s.editable(sess, name)
	if err != nil {
		return err
	}
	if attr.FieldType != formengine.FieldPhone {
		return response.ErrInvalidInput.WithDetails(name + " is not a phone field")
	}
	sess.Store().SetPhoneValue(name, value)
	s.Registry.Persist(ctx, sess)
	return nil
}

// ToggleUI opens or closes a field's dropdown or date picker
func (s *Service) ToggleUI(ctx context.Context, sess *Session, name string, dropdown, datePicker *bool) error {
	if _, err := s.editable(sess, name); err != nil {
		return err
	}
	if dropdown != nil {
		sess.Store().ToggleDropdown(name, *dropdown)
	}
	if datePicker != nil {
		sess.Store().ToggleDatePicker(name, *datePicker)
	}
	s.Registry.Persist(ctx, sess)
	return nil
}

// SetLocation selects the country and region used by region lookups
func (s *Service) SetLocation(ctx context.Context, sess *Session, country, region *string) {
	if country != nil {
		sess.Store().SetCountry(strings.ToUpper(strings.TrimSpace(*country)))
	}
	if region != nil {
		sess.Store().SetRegion(strings.TrimSpace(*region))
	}
	s.Registry.Persist(ctx, sess)
}

// SelectFile validates file and hands it to the field's upload pipeline
func (s *Service) SelectFile(ctx context.Context, sess *Session, name string, file *formengine.File) error {
	attr, err := s.editable(sess, name)
	if err != nil {
		return err
	}
	if !attr.FieldType.IsUpload() {
		return response.ErrInvalidInput.WithDetails(name + " does not accept files")
	}
	err = sess.Pipeline().SelectFile(name, file, attr.FieldType)
	s.Registry.Persist(ctx, sess)
	if err != nil {
		var verr *upload.ValidationError
		if errors.As(err, &verr) {
			return response.ErrUploadRejected.WithDetails(verr.Reason).WithFields(name)
		}
		return err
	}
	return nil
}

// RemoveFile returns an upload field to idle
func (s *Service) RemoveFile(ctx context.Context, sess *Session, name string) error {
	attr, err := s.editable(sess, name)
	if err != nil {
		return err
	}
	if !attr.FieldType.IsUpload() {
		return response.ErrInvalidInput.WithDetails(name + " does not accept files")
	}
	sess.Pipeline().RemoveFile(name)
	s.Registry.Persist(ctx, sess)
	return nil
}

// Submit records the assembled payload and forwards it to the submission API.
// The session keeps its state whatever the outcome, so a failed submission can be resent.
func (s *Service) Submit(ctx context.Context, sess *Session) (*models.CheckinSubmission, error) {
	sess.submitMu.Lock()
	defer sess.submitMu.Unlock()

	store := sess.Store()
	if !store.Valid() {
		return nil, response.ErrFormIncomplete.WithFields(store.Missing()...)
	}

	payload := formengine.BuildPayload(sess.Screen, store.Attributes(), store.Snapshot())
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}

	sub := &models.CheckinSubmission{
		SessionID: sess.ID,
		EntityID:  sess.EntityID,
		Screen:    string(sess.Screen),
		Payload:   datatypes.JSON(body),
		Status:    models.SubmissionStatusPending,
	}
	if err := s.Recorder.Create(sub); err != nil {
		log.Error("[Checkin:Submit] Failed to record submission for %s: %v", sess.ID, err)
		return nil, response.ErrDatabaseError
	}

	if err := s.forward(ctx, sub, payload); err != nil {
		return sub, response.ErrSubmissionFailed.WithDetails(err.Error())
	}
	return sub, nil
}

// forward delivers sub and records the outcome; without a submission API the record stays pending
func (s *Service) forward(ctx context.Context, sub *models.CheckinSubmission, payload any) error {
	event := SubmissionEvent{
		SubmissionID: sub.ID,
		SessionID:    sub.SessionID,
		EntityID:     sub.EntityID,
		Screen:       sub.Screen,
	}

	if s.Forwarder == nil {
		event.Status = sub.Status
		s.publish(appnats.SubjectSubmitted, event)
		return nil
	}

	fwdCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	attempts, err := s.Forwarder.Forward(fwdCtx, sub.SessionID, payload)
	if err != nil {
		sub.MarkFailed(sub.Attempts+attempts, err)
	} else {
		sub.MarkForwarded(sub.Attempts + attempts)
	}
	if saveErr := s.Recorder.Save(sub); saveErr != nil {
		log.Error("[Checkin:Submit] Failed to update submission %d: %v", sub.ID, saveErr)
	}

	event.Status = sub.Status
	if err != nil {
		log.Error("[Checkin:Submit] Submission %d for session %s failed: %v", sub.ID, sub.SessionID, err)
		event.Error = err.Error()
		s.publish(appnats.SubjectSubmissionFailed, event)
		return err
	}
	log.Info("[Checkin:Submit] Submission %d for session %s forwarded", sub.ID, sub.SessionID)
	s.publish(appnats.SubjectSubmitted, event)
	return nil
}

// Resend forwards a stored submission again
func (s *Service) Resend(ctx context.Context, sub *models.CheckinSubmission) error {
	if s.Forwarder == nil {
		return fmt.Errorf("no submission api configured")
	}
	var payload any
	if err := json.Unmarshal(sub.Payload, &payload); err != nil {
		return fmt.Errorf("stored payload is malformed: %w", err)
	}
	return s.forward(ctx, sub, payload)
}

// CloseSession tears the session down and releases its previews
func (s *Service) CloseSession(ctx context.Context, sess *Session) {
	s.Registry.Close(ctx, sess.ID)
	s.publish(appnats.SubjectSessionClosed, SessionEvent{SessionID: sess.ID, EntityID: sess.EntityID, Screen: string(sess.Screen)})
}
