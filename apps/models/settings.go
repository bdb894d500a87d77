package models

import (
	"time"

	"github.com/getevo/evo/v2/lib/db"
	"gorm.io/gorm"
)

// SettingCategoryRateLimit groups the per-endpoint check-in rate limits
const SettingCategoryRateLimit = "rate_limit"

// Setting is a runtime-tunable value stored in the database.
// Settings are hard deleted.
type Setting struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Key       string    `gorm:"column:setting_key;type:varchar(255);uniqueIndex;not null" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	Type      string    `gorm:"type:varchar(50);default:'string'" json:"type"` // string, number, boolean, json
	Category  string    `gorm:"type:varchar(100);index" json:"category"`
	Label     string    `gorm:"type:varchar(255)" json:"label"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Setting) TableName() string {
	return "settings"
}

// GetSettingValue returns the stored value of key, or defaultValue when unset
func GetSettingValue(key string, defaultValue string) string {
	var setting Setting
	if err := db.Where("setting_key = ?", key).First(&setting).Error; err != nil {
		return defaultValue
	}
	return setting.Value
}

// SetSetting creates or updates a setting
func SetSetting(key, value, settingType, category, label string) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var setting Setting
		if err := tx.Where("setting_key = ?", key).First(&setting).Error; err != nil {
			setting = Setting{Key: key, Type: settingType, Category: category, Label: label}
		}
		setting.Value = value
		if settingType != "" {
			setting.Type = settingType
		}
		if category != "" {
			setting.Category = category
		}
		if label != "" {
			setting.Label = label
		}
		return tx.Save(&setting).Error
	})
}

// GetSettingsByCategory retrieves all settings in a category
func GetSettingsByCategory(category string) ([]Setting, error) {
	var settings []Setting
	err := db.Where("category = ?", category).Order("setting_key ASC").Find(&settings).Error
	return settings, err
}
