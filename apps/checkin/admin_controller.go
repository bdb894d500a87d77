package checkin

import (
	"context"

	"github.com/getevo/evo/v2"
	"github.com/getevo/evo/v2/lib/db"
	"github.com/getevo/evo/v2/lib/log"
	"github.com/getevo/pagination"
	"github.com/iesreza/checkin-backend/apps/models"
	appnats "github.com/iesreza/checkin-backend/apps/nats"
	"github.com/iesreza/checkin-backend/lib/response"
)

// AdminController serves the back-office view of check-in submissions
type AdminController struct {
	svc *Service
}

// RetryRequest is the data of a submission retry event
type RetryRequest struct {
	SubmissionID uint `json:"submission_id"`
}

// ListSubmissions returns submissions filtered by entity, screen and status
func (c AdminController) ListSubmissions(request *evo.Request) any {
	var submissions []models.CheckinSubmission
	query := db.Model(&models.CheckinSubmission{})

	if entityID := request.Query("entity_id").String(); entityID != "" {
		query = query.Where("entity_id = ?", entityID)
	}
	if screen := request.Query("screen").String(); screen != "" {
		query = query.Where("screen = ?", screen)
	}
	if status := request.Query("status").String(); status != "" {
		query = query.Where("status = ?", status)
	}
	if sessionID := request.Query("session_id").String(); sessionID != "" {
		query = query.Where("session_id = ?", sessionID)
	}
	query = query.Order("created_at DESC")

	p, err := pagination.New(query, request, &submissions, pagination.Options{MaxSize: 100})
	if err != nil {
		return response.Error(response.ErrInternalError)
	}

	return response.OKWithMeta(submissions, &response.Meta{
		Page:       p.CurrentPage,
		Limit:      p.Size,
		Total:      int64(p.Records),
		TotalPages: p.Pages,
	})
}

// GetSubmission returns one submission with its payload
func (c AdminController) GetSubmission(request *evo.Request) any {
	var submission models.CheckinSubmission
	err := db.Where("id = ?", request.Param("id").String()).Take(&submission).Error
	if resp := response.HandleDBError(err, "Submission not found", "[Checkin:Admin] get submission"); resp != nil {
		return resp
	}
	return response.OK(submission)
}

// RetrySubmission forwards a failed or pending submission again.
// With NATS connected the retry runs on a queue worker, otherwise inline.
func (c AdminController) RetrySubmission(request *evo.Request) any {
	var submission models.CheckinSubmission
	err := db.Where("id = ?", request.Param("id").String()).Take(&submission).Error
	if resp := response.HandleDBError(err, "Submission not found", "[Checkin:Admin] retry submission"); resp != nil {
		return resp
	}
	if submission.Status == models.SubmissionStatusForwarded {
		return response.BadRequest("Submission was already forwarded")
	}

	if appnats.IsConnected() {
		err := appnats.PublishEvent(appnats.SubjectSubmissionRetry, RetryRequest{SubmissionID: submission.ID})
		if err == nil {
			return response.Accepted(submission, "Retry queued")
		}
		log.Warning("[Checkin:Admin] Failed to queue retry of %d, retrying inline: %v", submission.ID, err)
	}

	if err := c.svc.Resend(context.Background(), &submission); err != nil {
		return response.Error(response.ErrSubmissionFailed.WithDetails(err.Error()))
	}
	return response.OKWithMessage(submission, "Submission forwarded")
}

// GetStats returns the number of live sessions and submissions per status
func (c AdminController) GetStats(request *evo.Request) any {
	type statusCount struct {
		Status string `json:"status"`
		Count  int64  `json:"count"`
	}
	var counts []statusCount
	if err := db.Model(&models.CheckinSubmission{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&counts).Error; err != nil {
		log.Error("[Checkin:Admin] Failed to count submissions: %v", err)
		return response.Error(response.ErrDatabaseError)
	}
	return response.OK(map[string]any{
		"live_sessions": c.svc.Registry.Len(),
		"submissions":   counts,
	})
}

// handleRetry runs a retry event received from the queue
func (s *Service) handleRetry(data []byte) {
	var req RetryRequest
	if _, err := appnats.DecodeEvent(data, &req); err != nil {
		log.Error("[Checkin:Retry] Malformed retry event: %v", err)
		return
	}
	var submission models.CheckinSubmission
	if err := db.Where("id = ?", req.SubmissionID).Take(&submission).Error; err != nil {
		log.Error("[Checkin:Retry] Submission %d not loaded: %v", req.SubmissionID, err)
		return
	}
	if submission.Status == models.SubmissionStatusForwarded {
		return
	}
	if err := s.Resend(context.Background(), &submission); err != nil {
		log.Warning("[Checkin:Retry] Submission %d still failing: %v", submission.ID, err)
	}
}
