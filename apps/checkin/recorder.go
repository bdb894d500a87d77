package checkin

import (
	"github.com/getevo/evo/v2/lib/db"
	"github.com/iesreza/checkin-backend/apps/models"
)

// dbRecorder stores submissions with gorm
type dbRecorder struct{}

func (dbRecorder) Create(sub *models.CheckinSubmission) error {
	return db.Create(sub).Error
}

func (dbRecorder) Save(sub *models.CheckinSubmission) error {
	return db.Save(sub).Error
}
