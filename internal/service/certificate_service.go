package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/ept-backend/internal/certificate"
	"github.com/stemsi/ept-backend/internal/config"
	"github.com/stemsi/ept-backend/internal/model"
	"github.com/stemsi/ept-backend/internal/repository"
)

// Certificate errors.
var (
	ErrCertificateNotFound = errors.New("certificate not found")
	ErrNoExamResult        = errors.New("candidate has no exam result")
)

// CertificateService verifies issued certificates and renders result PDFs.
type CertificateService struct {
	candidateRepo *repository.CandidateRepository
	settingSvc    *SettingService
	cfg           *config.Config
	log           zerolog.Logger
}

// NewCertificateService creates a new CertificateService.
func NewCertificateService(candidateRepo *repository.CandidateRepository, settingSvc *SettingService, cfg *config.Config, log zerolog.Logger) *CertificateService {
	return &CertificateService{
		candidateRepo: candidateRepo,
		settingSvc:    settingSvc,
		cfg:           cfg,
		log:           log.With().Str("component", "certificate_service").Logger(),
	}
}

// Verify looks up a certificate by code, case-insensitively.
func (s *CertificateService) Verify(ctx context.Context, code string) (*model.Certificate, error) {
	code = certificate.NormalizeCode(code)
	if !certificate.ValidCode(code) {
		return nil, ErrCertificateNotFound
	}
	c, err := s.candidateRepo.GetByCertificateCode(ctx, code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCertificateNotFound
		}
		return nil, err
	}

	cert := &model.Certificate{
		Code:       code,
		FullName:   c.FullName,
		Level:      levelOf(c),
		IsApproved: c.Passed != nil && *c.Passed,
	}
	if c.Score != nil {
		cert.Score = *c.Score
	}
	if c.LastExamDate != nil {
		cert.IssuedAt = *c.LastExamDate
	}
	return cert, nil
}

// RenderForCandidate renders the certificate for a passed exam, or the
// performance report otherwise. It returns the PDF and a download name.
func (s *CertificateService) RenderForCandidate(ctx context.Context, candidateID uuid.UUID) ([]byte, string, error) {
	c, err := s.candidateRepo.GetByID(ctx, candidateID)
	if err != nil {
		return nil, "", err
	}
	if !c.ExamCompleted || c.Score == nil {
		return nil, "", ErrNoExamResult
	}

	d := certificate.Data{
		FullName:     c.FullName,
		Email:        c.Email,
		DocumentID:   c.DocumentID,
		Level:        levelOf(c),
		Score:        *c.Score,
		Passed:       c.Passed != nil && *c.Passed,
		CooldownDays: s.cfg.RetakeCooldownDays,
	}
	if c.RawScore != nil {
		d.RawScore = *c.RawScore
	}
	if c.TotalQuestions != nil {
		d.TotalQuestions = *c.TotalQuestions
	}
	if c.FailureReason != nil {
		d.FailureReason = *c.FailureReason
	}
	if c.LastExamDate != nil {
		d.IssuedAt = *c.LastExamDate
	}

	var buf bytes.Buffer
	if d.Passed && c.CertificateCode != nil {
		d.Code = *c.CertificateCode
		d.VerifyURL = s.cfg.PublicBaseURL + "/verify/" + d.Code
		if path, err := s.settingSvc.GetSettingByKey(ctx, model.SettingCertTemplatePath); err == nil && path != "" {
			if _, statErr := os.Stat(path); statErr == nil {
				d.TemplatePath = path
			} else {
				s.log.Warn().Err(statErr).Str("path", path).Msg("Certificate template missing, using plain layout")
			}
		}
		if err := certificate.RenderCertificate(&buf, d); err != nil {
			return nil, "", fmt.Errorf("render certificate: %w", err)
		}
		return buf.Bytes(), certificate.FileName("certificate", c.FullName), nil
	}

	if err := certificate.RenderReport(&buf, d); err != nil {
		return nil, "", fmt.Errorf("render report: %w", err)
	}
	return buf.Bytes(), certificate.FileName("report", c.FullName), nil
}

func levelOf(c *model.Candidate) model.ProficiencyLevel {
	if c.PurchasedLevel != nil && c.PurchasedLevel.Valid() {
		return *c.PurchasedLevel
	}
	return model.LevelB2
}
