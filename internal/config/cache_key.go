package config

import (
	"fmt"

	"github.com/google/uuid"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// CandidateSessionKey holds the jti of the candidate's only valid login.
func (r *CacheKeyStruct) CandidateSessionKey(candidateID uuid.UUID) string {
	return fmt.Sprintf("login:%s", candidateID)
}

// CandidateProfileKey caches the candidate dashboard payload.
func (r *CacheKeyStruct) CandidateProfileKey(candidateID uuid.UUID) string {
	return fmt.Sprintf("candidate:%s:profile", candidateID)
}

// QuestionBankKey caches the full question list served to new sessions.
func (r *CacheKeyStruct) QuestionBankKey() string {
	return "questions:bank"
}

// SettingsKey caches the public settings map.
func (r *CacheKeyStruct) SettingsKey() string {
	return "settings:public"
}

// SessionMonitorChannel is the Pub/Sub channel for live session events.
func (r *CacheKeyStruct) SessionMonitorChannel() string {
	return "sessions:monitor"
}

var CacheKey = NewCacheKeyStruct()
