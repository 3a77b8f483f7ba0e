package service

import (
	"context"
	"errors"
	"testing"
)

// Validation fails before the repository is touched, so a zero service is enough.
func TestUpdateSettingsRejects(t *testing.T) {
	svc := &SettingService{}

	tests := []struct {
		name    string
		in      map[string]string
		wantKey string
		wantErr error
	}{
		{"unknown key", map[string]string{"site_name": "x"}, "site_name", ErrUnknownSetting},
		{"template path", map[string]string{"cert_template_path": "/etc/passwd"}, "cert_template_path", ErrUnknownSetting},
		{"non numeric", map[string]string{"next_question_number": "ten"}, "next_question_number", ErrInvalidSetting},
		{"zero", map[string]string{"next_question_number": "0"}, "next_question_number", ErrInvalidSetting},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.UpdateSettings(context.Background(), tt.in)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("UpdateSettings() error = %v, want %v", err, tt.wantErr)
			}
			var se *SettingError
			if !errors.As(err, &se) || se.Key != tt.wantKey {
				t.Errorf("SettingError key = %+v, want %q", se, tt.wantKey)
			}
		})
	}
}
