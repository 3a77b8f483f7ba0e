package service

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/stemsi/ept-backend/internal/config"
	"github.com/stemsi/ept-backend/internal/model"
)

// Sentinel errors for media uploads.
var (
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrFileTooLarge        = errors.New("file too large")
)

// Certificate templates are drawn by the PDF renderer, which reads JPEG and PNG.
var allowedTemplateTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
}

// MediaService handles file upload operations.
type MediaService struct {
	cfg         *config.Config
	settingsSvc *SettingService
}

// NewMediaService creates a new MediaService.
func NewMediaService(cfg *config.Config, settingsSvc *SettingService) *MediaService {
	return &MediaService{cfg: cfg, settingsSvc: settingsSvc}
}

// SaveCertificateTemplate stores an uploaded background image and points the
// certificate settings at it. Returns the public URL path.
func (s *MediaService) SaveCertificateTemplate(ctx context.Context, file multipart.File, header *multipart.FileHeader) (string, error) {
	if header.Size > s.cfg.MaxUploadBytes {
		return "", fmt.Errorf("%w: %d bytes (max: %d)", ErrFileTooLarge, header.Size, s.cfg.MaxUploadBytes)
	}

	// Sniff the real type; the client header is not trusted.
	br := bufio.NewReader(file)
	head, _ := br.Peek(512)
	contentType := http.DetectContentType(head)
	ext, ok := allowedTemplateTypes[contentType]
	if !ok {
		return "", fmt.Errorf("%w: %s (allowed: %s)",
			ErrUnsupportedFileType, contentType, strings.Join(allowedTypes(), ", "))
	}

	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	filename := "cert-template-" + uuid.New().String() + ext
	destPath := filepath.Join(s.cfg.UploadDir, filename)

	dst, err := os.Create(destPath)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, br); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}

	url := "/uploads/" + filename
	previous, _ := s.settingsSvc.GetSettingByKey(ctx, model.SettingCertTemplatePath)
	if err := s.settingsSvc.SetCertificateTemplate(ctx, url, destPath); err != nil {
		return "", fmt.Errorf("save template setting: %w", err)
	}
	s.removeTemplate(previous)
	return url, nil
}

// ClearCertificateTemplate reverts certificates to the built-in border and
// deletes the stored background.
func (s *MediaService) ClearCertificateTemplate(ctx context.Context) error {
	previous, _ := s.settingsSvc.GetSettingByKey(ctx, model.SettingCertTemplatePath)
	if err := s.settingsSvc.SetCertificateTemplate(ctx, "", ""); err != nil {
		return fmt.Errorf("clear template setting: %w", err)
	}
	s.removeTemplate(previous)
	return nil
}

// removeTemplate deletes a template file, but only one inside the upload dir.
func (s *MediaService) removeTemplate(path string) {
	if path == "" {
		return
	}
	dir, err := filepath.Abs(s.cfg.UploadDir)
	if err != nil {
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil || filepath.Dir(abs) != dir {
		return
	}
	_ = os.Remove(abs)
}

func allowedTypes() []string {
	types := make([]string, 0, len(allowedTemplateTypes))
	for t := range allowedTemplateTypes {
		types = append(types, t)
	}
	return types
}
