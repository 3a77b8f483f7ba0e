package model

import "time"

// Well-known setting keys.
const (
	SettingCertTemplateURL    = "cert_template_url"
	SettingCertTemplatePath   = "cert_template_path"
	SettingNextQuestionNumber = "next_question_number"
)

// PublicSettingKeys are exposed without authentication.
var PublicSettingKeys = []string{SettingCertTemplateURL}

// EditableSettingKeys may be changed through the settings API. The template
// keys are written only by the upload endpoint.
var EditableSettingKeys = []string{SettingNextQuestionNumber}

// IsEditableSetting reports whether key is in EditableSettingKeys.
func IsEditableSetting(key string) bool {
	for _, k := range EditableSettingKeys {
		if k == key {
			return true
		}
	}
	return false
}

// AppSetting represents a key-value pair for global application configuration.
type AppSetting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UpdateSettingsRequest is the payload for bulk updating settings.
type UpdateSettingsRequest struct {
	Settings map[string]string `json:"settings" binding:"required"`
}
