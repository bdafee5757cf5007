package entity

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError_Error(t *testing.T) {
	tests := []struct {
		name     string
		field    string
		message  string
		expected string
	}{
		{
			name:     "update frequency",
			field:    "update_frequency",
			message:  "must be at least 1",
			expected: "validation error on field 'update_frequency': must be at least 1",
		},
		{
			name:     "empty message",
			field:    "article_id",
			message:  "",
			expected: "validation error on field 'article_id': ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := &ValidationError{Field: tt.field, Message: tt.message}
			assert.Equal(t, tt.expected, err.Error())
		})
	}
}

func TestValidationError_MatchesSentinel(t *testing.T) {
	err := fmt.Errorf("save settings: %w", &ValidationError{Field: "privacy_level", Message: "unknown level"})

	assert.True(t, errors.Is(err, ErrValidationFailed))
	assert.False(t, errors.Is(err, ErrNotFound))

	var validationErr *ValidationError
	assert.True(t, errors.As(err, &validationErr))
	assert.Equal(t, "privacy_level", validationErr.Field)
}

func TestSentinelErrors_ErrorMessages(t *testing.T) {
	assert.Equal(t, "entity not found", ErrNotFound.Error())
	assert.Equal(t, "invalid input", ErrInvalidInput.Error())
	assert.Equal(t, "validation failed", ErrValidationFailed.Error())
}
