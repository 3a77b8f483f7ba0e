package service

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/ept-backend/internal/config"
	"github.com/stemsi/ept-backend/internal/model"
	"github.com/stemsi/ept-backend/internal/repository"
)

// Setting update errors. Both carry the offending key in their message.
var (
	ErrInvalidSetting = errors.New("invalid setting value")
	ErrUnknownSetting = errors.New("setting is not editable")
)

// SettingError names the key that failed an update.
type SettingError struct {
	Key string
	Err error
}

func (e *SettingError) Error() string { return e.Key + ": " + e.Err.Error() }
func (e *SettingError) Unwrap() error { return e.Err }

const settingsCacheTTL = 10 * time.Minute

type SettingService struct {
	settingRepo *repository.SettingRepository
	rdb         *redis.Client
	log         zerolog.Logger
}

func NewSettingService(settingRepo *repository.SettingRepository, rdb *redis.Client, log zerolog.Logger) *SettingService {
	return &SettingService{
		settingRepo: settingRepo,
		rdb:         rdb,
		log:         log.With().Str("component", "setting_service").Logger(),
	}
}

func (s *SettingService) GetAllSettings(ctx context.Context) (map[string]string, error) {
	settingsList, err := s.settingRepo.GetAll(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to get all settings")
		return nil, err
	}

	settingsMap := make(map[string]string)
	for _, setting := range settingsList {
		settingsMap[setting.Key] = setting.Value
	}
	return settingsMap, nil
}

// GetPublicSettings returns the settings safe to expose without login, cached in Redis.
func (s *SettingService) GetPublicSettings(ctx context.Context) (map[string]string, error) {
	key := config.CacheKey.SettingsKey()
	if cached, err := s.rdb.Get(ctx, key).Bytes(); err == nil {
		out := map[string]string{}
		if json.Unmarshal(cached, &out) == nil {
			return out, nil
		}
	}

	all, err := s.GetAllSettings(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(model.PublicSettingKeys))
	for _, k := range model.PublicSettingKeys {
		out[k] = all[k]
	}
	if data, err := json.Marshal(out); err == nil {
		s.rdb.Set(ctx, key, data, settingsCacheTTL)
	}
	return out, nil
}

// UpdateSettings applies an admin edit. Only editable keys are accepted.
func (s *SettingService) UpdateSettings(ctx context.Context, settingsMap map[string]string) error {
	for k, v := range settingsMap {
		if !model.IsEditableSetting(k) {
			return &SettingError{Key: k, Err: ErrUnknownSetting}
		}
		if k == model.SettingNextQuestionNumber {
			if n, err := strconv.Atoi(v); err != nil || n < 1 {
				return &SettingError{Key: k, Err: ErrInvalidSetting}
			}
		}
	}
	return s.store(ctx, settingsMap)
}

func (s *SettingService) store(ctx context.Context, settingsMap map[string]string) error {
	if err := s.settingRepo.UpsertMany(ctx, settingsMap); err != nil {
		s.log.Error().Err(err).Msg("failed to update settings")
		return err
	}
	s.rdb.Del(ctx, config.CacheKey.SettingsKey())
	return nil
}

// SetCertificateTemplate points the certificate settings at a stored file.
// Empty values clear the template.
func (s *SettingService) SetCertificateTemplate(ctx context.Context, url, path string) error {
	return s.store(ctx, map[string]string{
		model.SettingCertTemplateURL:  url,
		model.SettingCertTemplatePath: path,
	})
}

func (s *SettingService) GetSettingByKey(ctx context.Context, key string) (string, error) {
	setting, err := s.settingRepo.GetByKey(ctx, key)
	if err != nil {
		return "", err
	}
	return setting.Value, nil
}

// ReserveQuestionNumbers hands out n consecutive display numbers.
func (s *SettingService) ReserveQuestionNumbers(ctx context.Context, n int) (int, error) {
	if n <= 0 {
		return s.peekNextNumber(ctx)
	}
	return s.settingRepo.ReserveNumbers(ctx, n)
}

func (s *SettingService) peekNextNumber(ctx context.Context) (int, error) {
	v, err := s.GetSettingByKey(ctx, model.SettingNextQuestionNumber)
	if err != nil {
		return 1, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 1, nil
	}
	return n, nil
}
