package model

import "time"

// Certificate is the public verification view of an issued certificate.
type Certificate struct {
	Code       string           `json:"code"`
	FullName   string           `json:"full_name"`
	Level      ProficiencyLevel `json:"level"`
	Score      int              `json:"score"`
	IssuedAt   time.Time        `json:"issued_at"`
	IsApproved bool             `json:"is_approved"`
}
