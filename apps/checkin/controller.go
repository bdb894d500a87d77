package checkin

import (
	"context"
	"errors"
	"io"
	"strconv"

	"github.com/getevo/evo/v2"
	"github.com/getevo/evo/v2/lib/log"
	"github.com/getevo/evo/v2/lib/outcome"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	appredis "github.com/iesreza/checkin-backend/apps/redis"
	"github.com/iesreza/checkin-backend/lib/formengine"
	"github.com/iesreza/checkin-backend/lib/response"
	"github.com/iesreza/checkin-backend/lib/upload"
)

// PreviewSource serves stored previews
type PreviewSource interface {
	Get(ref string) (upload.Preview, bool)
}

// Controller serves the guest check-in API
type Controller struct {
	svc      *Service
	previews PreviewSource
}

// OpenSessionRequest starts a screen
type OpenSessionRequest struct {
	Screen string `json:"screen" validate:"required,oneof=document detail"`
}

// SetValueRequest replaces a field value
type SetValueRequest struct {
	Value     any   `json:"value"`
	IsDefault *bool `json:"is_default"`
}

// SetPhoneRequest replaces a phone value
type SetPhoneRequest struct {
	Value string `json:"value" validate:"max=32"`
}

// ToggleUIRequest opens or closes a dropdown or date picker
type ToggleUIRequest struct {
	Dropdown   *bool `json:"dropdown"`
	DatePicker *bool `json:"date_picker"`
}

// LocationRequest selects country and region
type LocationRequest struct {
	Country *string `json:"country" validate:"omitempty,len=2,alpha"`
	Region  *string `json:"region" validate:"omitempty,max=100"`
}

// fail converts err into an error response
func fail(err error) outcome.Response {
	var appErr response.AppError
	if errors.As(err, &appErr) {
		return response.Error(appErr)
	}
	log.Error("[Checkin] %v", err)
	return response.Error(response.ErrInternalError)
}

// requestToken takes the guest token from a bearer header, or from the token query parameter
func requestToken(authorization, query string) string {
	if token := bearerToken(authorization); token != "" {
		return token
	}
	return query
}

func (c Controller) session(request *evo.Request) (*Session, error) {
	token := requestToken(request.Header("Authorization"), request.Query("token").String())
	return c.svc.Authorize(context.Background(), request.Param("id").String(), token)
}

func (c Controller) view(sess *Session) outcome.Response {
	view, err := c.svc.View(sess)
	if err != nil {
		return fail(err)
	}
	return response.OK(view)
}

// render authorizes token on session id and renders its form
func (c Controller) render(ctx context.Context, id, token string) outcome.Response {
	sess, err := c.svc.Authorize(ctx, id, token)
	if err != nil {
		return fail(err)
	}
	return c.view(sess)
}

// submit authorizes token on session id and submits its form
func (c Controller) submit(ctx context.Context, id, token string) outcome.Response {
	sess, err := c.svc.Authorize(ctx, id, token)
	if err != nil {
		return fail(err)
	}
	sub, err := c.svc.Submit(ctx, sess)
	if err != nil {
		return fail(err)
	}
	return response.OKWithMessage(map[string]any{
		"submission": sub.ID,
		"status":     sub.Status,
	}, "Check-in submitted")
}

// GetAttributes returns the schema of one screen of an entity
func (c Controller) GetAttributes(request *evo.Request) any {
	screen, err := formengine.ParseScreen(request.Query("screen").String())
	if err != nil {
		return response.Error(response.ErrInvalidScreen)
	}
	attrs, err := c.svc.Schema.Load(context.Background(), request.Param("entity").String(), screen)
	if err != nil {
		log.Error("[Checkin:Attributes] %v", err)
		return response.Error(response.ErrSchemaUnavailable)
	}
	return response.OK(formengine.Schema{Items: attrs, Count: len(attrs)})
}

// GetCountries returns the country catalog used by Country fields
func (c Controller) GetCountries(request *evo.Request) any {
	countries := formengine.Countries()
	return response.List(countries, len(countries))
}

// OpenSession starts a check-in screen
func (c Controller) OpenSession(request *evo.Request) any {
	if err := appredis.Limit(request, appredis.LimitOpenSession); err != nil {
		return fail(err)
	}
	var req OpenSessionRequest
	if err := request.BodyParser(&req); err != nil {
		return response.Error(response.ErrInvalidInput)
	}
	if err := validate.Struct(req); err != nil {
		return response.Error(response.ErrInvalidScreen)
	}
	screen, _ := formengine.ParseScreen(req.Screen)

	sess, token, err := c.svc.OpenSession(context.Background(), request.Param("entity").String(), screen)
	if err != nil {
		return fail(err)
	}
	view, err := c.svc.View(sess)
	if err != nil {
		return fail(err)
	}
	return response.Created(map[string]any{
		"session": sess.ID,
		"token":   token,
		"form":    view,
	})
}

// GetSession returns the rendered form
func (c Controller) GetSession(request *evo.Request) any {
	token := requestToken(request.Header("Authorization"), request.Query("token").String())
	return c.render(context.Background(), request.Param("id").String(), token)
}

// SetValue replaces one field value
func (c Controller) SetValue(request *evo.Request) any {
	if err := appredis.Limit(request, appredis.LimitUpdate); err != nil {
		return fail(err)
	}
	sess, err := c.session(request)
	if err != nil {
		return fail(err)
	}
	var req SetValueRequest
	if err := request.BodyParser(&req); err != nil {
		return response.Error(response.ErrInvalidInput)
	}
	if err := c.svc.SetValue(context.Background(), sess, request.Param("name").String(), req.Value, req.IsDefault); err != nil {
		return fail(err)
	}
	return c.view(sess)
}

// SetPhone replaces a phone value
func (c Controller) SetPhone(request *evo.Request) any {
	if err := appredis.Limit(request, appredis.LimitUpdate); err != nil {
		return fail(err)
	}
	sess, err := c.session(request)
	if err != nil {
		return fail(err)
	}
	var req SetPhoneRequest
	if err := request.BodyParser(&req); err != nil {
		return response.Error(response.ErrInvalidInput)
	}
	if err := validate.Struct(req); err != nil {
		return response.Error(response.ErrInvalidInput.WithDetails(err.Error()))
	}
	if err := c.svc.SetPhone(context.Background(), sess, request.Param("name").String(), req.Value); err != nil {
		return fail(err)
	}
	return c.view(sess)
}

// ToggleUI opens or closes a dropdown or picker
func (c Controller) ToggleUI(request *evo.Request) any {
	if err := appredis.Limit(request, appredis.LimitUpdate); err != nil {
		return fail(err)
	}
	sess, err := c.session(request)
	if err != nil {
		return fail(err)
	}
	var req ToggleUIRequest
	if err := request.BodyParser(&req); err != nil {
		return response.Error(response.ErrInvalidInput)
	}
	if err := c.svc.ToggleUI(context.Background(), sess, request.Param("name").String(), req.Dropdown, req.DatePicker); err != nil {
		return fail(err)
	}
	return c.view(sess)
}

// SetLocation selects country and region
func (c Controller) SetLocation(request *evo.Request) any {
	if err := appredis.Limit(request, appredis.LimitUpdate); err != nil {
		return fail(err)
	}
	sess, err := c.session(request)
	if err != nil {
		return fail(err)
	}
	var req LocationRequest
	if err := request.BodyParser(&req); err != nil {
		return response.Error(response.ErrInvalidInput)
	}
	if err := validate.Struct(req); err != nil {
		return response.Error(response.ErrInvalidInput.WithDetails(err.Error()))
	}
	c.svc.SetLocation(context.Background(), sess, req.Country, req.Region)
	return c.view(sess)
}

// RemoveFile returns an upload field to idle
func (c Controller) RemoveFile(request *evo.Request) any {
	if err := appredis.Limit(request, appredis.LimitUpdate); err != nil {
		return fail(err)
	}
	sess, err := c.session(request)
	if err != nil {
		return fail(err)
	}
	if err := c.svc.RemoveFile(context.Background(), sess, request.Param("name").String()); err != nil {
		return fail(err)
	}
	return c.view(sess)
}

// Submit sends the screen to the check-in submission API
func (c Controller) Submit(request *evo.Request) any {
	if err := appredis.Limit(request, appredis.LimitSubmit); err != nil {
		return fail(err)
	}
	token := requestToken(request.Header("Authorization"), request.Query("token").String())
	return c.submit(context.Background(), request.Param("id").String(), token)
}

// CloseSession discards the session and its previews
func (c Controller) CloseSession(request *evo.Request) any {
	sess, err := c.session(request)
	if err != nil {
		return fail(err)
	}
	c.svc.CloseSession(context.Background(), sess)
	return response.Message("Session closed")
}

// SelectFileHandler receives a multipart "file" for an upload field.
// Params are copied since the upload outlives the request buffers.
func (c Controller) SelectFileHandler(ctx *fiber.Ctx) error {
	id := utils.CopyString(ctx.Params("id"))
	name := utils.CopyString(ctx.Params("name"))
	token := requestToken(ctx.Get("Authorization"), ctx.Query("token"))
	sess, err := c.svc.Authorize(ctx.UserContext(), id, token)
	if err != nil {
		return writeError(ctx, err)
	}

	header, err := ctx.FormFile("file")
	if err != nil {
		return writeError(ctx, response.ErrInvalidInput.WithDetails("multipart field \"file\" is required"))
	}
	f, err := header.Open()
	if err != nil {
		return writeError(ctx, response.ErrInvalidInput)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, upload.MaxFileSize+1))
	if err != nil {
		return writeError(ctx, response.ErrInvalidInput)
	}

	file := &formengine.File{Name: header.Filename, Data: data}
	if err := c.svc.SelectFile(ctx.UserContext(), sess, name, file); err != nil {
		return writeError(ctx, err)
	}

	view, err := c.svc.View(sess)
	if err != nil {
		return writeError(ctx, err)
	}
	return ctx.Status(fiber.StatusAccepted).JSON(response.APIResponse{
		Success: true,
		Data:    view,
		Message: "Upload started",
	})
}

// PreviewHandler serves a preview image by reference
func (c Controller) PreviewHandler(ctx *fiber.Ctx) error {
	if c.previews == nil {
		return writeError(ctx, response.ErrPreviewNotFound)
	}
	preview, ok := c.previews.Get(utils.CopyString(ctx.Params("ref")))
	if !ok {
		return writeError(ctx, response.ErrPreviewNotFound)
	}
	ctx.Set(fiber.HeaderContentType, preview.ContentType)
	ctx.Set(fiber.HeaderCacheControl, "private, max-age=300")
	ctx.Set(fiber.HeaderContentLength, strconv.Itoa(len(preview.Data)))
	return ctx.Send(preview.Data)
}

func writeError(ctx *fiber.Ctx, err error) error {
	var appErr response.AppError
	if !errors.As(err, &appErr) {
		log.Error("[Checkin] %v", err)
		appErr = response.ErrInternalError
	}
	body := fiber.Map{
		"error":   string(appErr.Code),
		"message": appErr.Message,
	}
	if appErr.Details != "" {
		body["details"] = appErr.Details
	}
	if len(appErr.Fields) > 0 {
		body["fields"] = appErr.Fields
	}
	return ctx.Status(appErr.StatusCode).JSON(body)
}
