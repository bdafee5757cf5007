package entity

import "fmt"

// Privacy levels accepted in Settings.
const (
	PrivacyLow    = "low"
	PrivacyMedium = "medium"
	PrivacyHigh   = "high"
)

// Settings is the user-mutable personalization configuration.
type Settings struct {
	UpdateFrequency int    `json:"updateFrequency" cbor:"update_frequency"`
	EmbeddingModel  string `json:"embeddingModel" cbor:"embedding_model"`
	PrivacyLevel    string `json:"privacyLevel" cbor:"privacy_level"`
	SyncEnabled     bool   `json:"syncEnabled" cbor:"sync_enabled"`
}

// DefaultSettings returns the settings used on first run.
func DefaultSettings() Settings {
	return Settings{
		UpdateFrequency: 10,
		EmbeddingModel:  "local",
		PrivacyLevel:    PrivacyHigh,
		SyncEnabled:     true,
	}
}

// Validate checks field ranges.
func (s *Settings) Validate() error {
	if s.UpdateFrequency < 1 {
		return &ValidationError{
			Field:   "update_frequency",
			Message: fmt.Sprintf("must be at least 1, got %d", s.UpdateFrequency),
		}
	}
	if s.EmbeddingModel == "" {
		return &ValidationError{Field: "embedding_model", Message: "must not be empty"}
	}
	switch s.PrivacyLevel {
	case PrivacyLow, PrivacyMedium, PrivacyHigh:
	default:
		return &ValidationError{
			Field:   "privacy_level",
			Message: fmt.Sprintf("unknown level %q", s.PrivacyLevel),
		}
	}
	return nil
}

// SettingsPatch is a partial settings update; nil fields are left unchanged.
type SettingsPatch struct {
	UpdateFrequency *int    `json:"updateFrequency,omitempty"`
	EmbeddingModel  *string `json:"embeddingModel,omitempty"`
	PrivacyLevel    *string `json:"privacyLevel,omitempty"`
	SyncEnabled     *bool   `json:"syncEnabled,omitempty"`
}

// Apply returns a copy of s with the non-nil patch fields applied.
func (s Settings) Apply(p SettingsPatch) Settings {
	if p.UpdateFrequency != nil {
		s.UpdateFrequency = *p.UpdateFrequency
	}
	if p.EmbeddingModel != nil {
		s.EmbeddingModel = *p.EmbeddingModel
	}
	if p.PrivacyLevel != nil {
		s.PrivacyLevel = *p.PrivacyLevel
	}
	if p.SyncEnabled != nil {
		s.SyncEnabled = *p.SyncEnabled
	}
	return s
}
