package service

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stemsi/ept-backend/internal/config"
	"github.com/stemsi/ept-backend/internal/model"
)

func TestRetakeStatus(t *testing.T) {
	now := time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC)
	at := func(d time.Duration) *time.Time {
		ts := now.Add(-d)
		return &ts
	}

	tests := []struct {
		name     string
		last     *time.Time
		cooldown int
		wantOK   bool
		wantDays int
	}{
		{"never taken", nil, 30, true, 0},
		{"just finished", at(time.Hour), 30, false, 30},
		{"ten days ago", at(10 * 24 * time.Hour), 30, false, 20},
		{"half a day left rounds up", at(29*24*time.Hour + 12*time.Hour), 30, false, 1},
		{"exactly at cooldown", at(30 * 24 * time.Hour), 30, true, 0},
		{"long ago", at(400 * 24 * time.Hour), 30, true, 0},
		{"zero cooldown", at(time.Minute), 0, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, days := RetakeStatus(tt.last, now, tt.cooldown)
			if ok != tt.wantOK || days != tt.wantDays {
				t.Errorf("RetakeStatus() = (%v, %d), want (%v, %d)", ok, days, tt.wantOK, tt.wantDays)
			}
		})
	}
}

func TestCanStartExam(t *testing.T) {
	paid := time.Now()

	tests := []struct {
		name string
		c    model.Candidate
		want bool
	}{
		{"no purchase", model.Candidate{}, false},
		{"purchased", model.Candidate{PurchaseDate: &paid}, true},
		{"purchased and completed", model.Candidate{PurchaseDate: &paid, ExamCompleted: true}, false},
		{"completed without purchase", model.Candidate{ExamCompleted: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanStartExam(&tt.c); got != tt.want {
				t.Errorf("CanStartExam() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilterPermissions(t *testing.T) {
	in := []string{"reports:read", "bogus", "questions:write", "reports:read", ""}
	got := FilterPermissions(in)
	want := []string{"reports:read", "questions:write"}

	if len(got) != len(want) {
		t.Fatalf("FilterPermissions() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("FilterPermissions()[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if got := FilterPermissions(nil); got == nil || len(got) != 0 {
		t.Errorf("FilterPermissions(nil) = %#v, want empty slice", got)
	}
}

func TestAdminTokenRoundTrip(t *testing.T) {
	cfg := &config.Config{JWTSecret: "test-secret", JWTExpiry: time.Hour, BcryptCost: 4}
	svc := NewAuthService(cfg, nil)

	token, err := svc.GenerateAdminToken(7, []string{"reports:read"})
	if err != nil {
		t.Fatalf("GenerateAdminToken() error = %v", err)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if claims.TokenType != TokenTypeAdmin || claims.AdminID != 7 {
		t.Errorf("claims = %+v", claims)
	}
	if len(claims.Permissions) != 1 || claims.Permissions[0] != "reports:read" {
		t.Errorf("permissions = %v", claims.Permissions)
	}
	if claims.CandidateID != uuid.Nil {
		t.Errorf("admin token carries candidate id %s", claims.CandidateID)
	}

	other := NewAuthService(&config.Config{JWTSecret: "other", JWTExpiry: time.Hour}, nil)
	if _, err := other.ValidateToken(token); err == nil {
		t.Error("token validated with the wrong secret")
	}
}

func TestValidateTokenExpired(t *testing.T) {
	svc := NewAuthService(&config.Config{JWTSecret: "test-secret", JWTExpiry: -time.Minute}, nil)

	token, err := svc.GenerateAdminToken(1, nil)
	if err != nil {
		t.Fatalf("GenerateAdminToken() error = %v", err)
	}
	if _, err := svc.ValidateToken(token); !errors.Is(err, jwt.ErrTokenExpired) {
		t.Errorf("ValidateToken() error = %v, want ErrTokenExpired", err)
	}
}

func TestPasswordHashing(t *testing.T) {
	svc := NewAuthService(&config.Config{BcryptCost: 4}, nil)

	hash, err := svc.HashPassword("s3cret!")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if err := svc.CheckPassword(hash, "s3cret!"); err != nil {
		t.Errorf("CheckPassword(correct) = %v", err)
	}
	if err := svc.CheckPassword(hash, "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("CheckPassword(wrong) = %v, want ErrInvalidCredentials", err)
	}
}
