package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/getevo/evo/v2/lib/db"
	"github.com/getevo/restify"
	"github.com/iesreza/checkin-backend/lib/formengine"
	"gorm.io/datatypes"
)

// CheckinAttribute is an admin-defined check-in form field.
// Attributes are scoped by entity (hotel) and screen; the context column
// carries the option and condition rules exactly as the client receives them.
type CheckinAttribute struct {
	ID         uint           `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	EntityID   string         `gorm:"column:entity_id;size:64;not null;uniqueIndex:idx_checkin_attr" json:"entity_id"`
	Screen     string         `gorm:"column:screen;size:15;not null;uniqueIndex:idx_checkin_attr;check:screen IN ('document','detail')" json:"screen"`
	Name       string         `gorm:"column:name;size:100;not null;uniqueIndex:idx_checkin_attr" json:"name"`
	Label      string         `gorm:"column:label;size:255;not null" json:"label"`
	FieldType  string         `gorm:"column:field_type;size:20;not null" json:"field_type"`
	Section    string         `gorm:"column:section;size:100" json:"section"`
	Position   int            `gorm:"column:position;default:0" json:"position"`
	IsRequired bool           `gorm:"column:is_required;default:0" json:"is_required"`
	IsDisabled bool           `gorm:"column:is_disabled;default:0" json:"is_disabled"`
	IsDefault  bool           `gorm:"column:is_default;default:0" json:"is_default"`
	HelpText   *string        `gorm:"column:help_text;type:text" json:"help_text"`
	Context    datatypes.JSON `gorm:"column:context;type:json" json:"context"`
	CreatedAt  time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	restify.API
}

func (CheckinAttribute) TableName() string {
	return "checkin_attributes"
}

// ToAttribute converts the row into an engine attribute
func (a CheckinAttribute) ToAttribute() (formengine.Attribute, error) {
	fieldType, err := formengine.ParseFieldType(a.FieldType)
	if err != nil {
		return formengine.Attribute{}, fmt.Errorf("attribute %s: %w", a.Name, err)
	}
	attr := formengine.Attribute{
		Name:       a.Name,
		Label:      a.Label,
		FieldType:  fieldType,
		Section:    a.Section,
		Position:   a.Position,
		IsRequired: a.IsRequired,
		IsDisabled: a.IsDisabled,
		IsDefault:  a.IsDefault,
	}
	if a.HelpText != nil {
		attr.HelpText = *a.HelpText
	}
	if len(a.Context) > 0 {
		if err := json.Unmarshal(a.Context, &attr.Context); err != nil {
			return formengine.Attribute{}, fmt.Errorf("attribute %s context: %w", a.Name, err)
		}
	}
	return attr, nil
}

// LoadCheckinAttributes returns the ordered engine attributes of one screen
func LoadCheckinAttributes(entityID string, screen formengine.Screen) ([]formengine.Attribute, error) {
	var rows []CheckinAttribute
	err := db.Where("entity_id = ? AND screen = ?", entityID, string(screen)).
		Order("position ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return ToAttributes(rows)
}

// ToAttributes converts rows, failing on the first malformed attribute
func ToAttributes(rows []CheckinAttribute) ([]formengine.Attribute, error) {
	attrs := make([]formengine.Attribute, 0, len(rows))
	for _, row := range rows {
		attr, err := row.ToAttribute()
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, attr)
	}
	return formengine.SortAttributes(attrs), nil
}
