package models

// Setting is one runtime setting.
type Setting struct {
	Key       string      `json:"key"`
	Value     interface{} `json:"value"`
	UpdatedAt Timestamp   `json:"updated_at"`
}

// SettingList is the response of GET /v1/admin/settings.
type SettingList struct {
	Items []Setting `json:"items"`
}

// SettingUpdate changes one setting. Value is type-checked against the
// setting's kind by the settings service.
type SettingUpdate struct {
	Key   string      `json:"key" validate:"required"`
	Value interface{} `json:"value"`
}

// SettingsUpdateRequest is the body of PUT /v1/admin/settings.
type SettingsUpdateRequest struct {
	Updates []SettingUpdate `json:"updates" validate:"required,min=1,dive"`
	Reason  string          `json:"reason,omitempty" validate:"max=500"`
}
