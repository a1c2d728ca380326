// settings.go — настройки почтовых уведомлений в app_settings.
// Типизированные геттеры, валидация ключей и значений.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bigkaa/labelportal/internal/domain/model"
	"github.com/bigkaa/labelportal/internal/domain/rbac"
	"github.com/bigkaa/labelportal/internal/email"
	"github.com/bigkaa/labelportal/internal/repository"
)

// Ключи настроек.
const (
	SettingEmailMode              = "email.mode"
	SettingNotificationsEnabled   = "email.notifications_enabled"
	SettingEmailManagerRecipients = "email.manager_recipients"
)

// Режимы отправки писем.
const (
	EmailModeDemo       = "demo"
	EmailModeProduction = "production"
)

// Допустимые ключи настроек (dot-notation).
var validSettingKeys = map[string]string{
	SettingEmailMode:              "Режим отправки писем (demo/production)",
	SettingNotificationsEnabled:   "Включены ли уведомления (true/false)",
	SettingEmailManagerRecipients: "Адреса для уведомлений о новых релизах (через запятую)",
}

// EmailSettings — текущие настройки почты.
type EmailSettings struct {
	// Mode — действующий режим (с учётом значения по умолчанию)
	Mode string
	// ModeOverridden — режим задан в app_settings, а не в конфигурации
	ModeOverridden       bool
	NotificationsEnabled bool
	ManagerRecipients    []string
	// SMTPConfigured — задан LP_SMTP_HOST
	SMTPConfigured bool
}

// EmailSettingsUpdate — изменение настроек; nil-поля не меняются.
type EmailSettingsUpdate struct {
	Mode                 *string
	NotificationsEnabled *bool
	ManagerRecipients    []string
	// ResetRecipients — очистить список адресов
	ResetRecipients bool
}

// SettingsService — сервис настроек приложения.
type SettingsService struct {
	repo           repository.SettingsRepository
	activity       *ActivityService
	defaultMode    string
	smtpConfigured bool
	logger         *slog.Logger
}

// NewSettingsService создаёт сервис настроек.
// defaultMode — LP_EMAIL_MODE; smtpConfigured — задан ли SMTP-сервер.
func NewSettingsService(
	repo repository.SettingsRepository,
	activity *ActivityService,
	defaultMode string,
	smtpConfigured bool,
	logger *slog.Logger,
) *SettingsService {
	if defaultMode == "" {
		defaultMode = EmailModeDemo
	}
	return &SettingsService{
		repo:           repo,
		activity:       activity,
		defaultMode:    defaultMode,
		smtpConfigured: smtpConfigured,
		logger:         logger.With(slog.String("component", "settings_service")),
	}
}

// Get возвращает значение настройки по ключу.
func (s *SettingsService) Get(ctx context.Context, key string) (*model.Setting, error) {
	setting, err := s.repo.Get(ctx, key)
	if err != nil {
		return nil, mapRepoError(err, fmt.Sprintf("получение настройки %q", key))
	}
	return setting, nil
}

// Set устанавливает значение настройки. Валидирует ключ и значение.
func (s *SettingsService) Set(ctx context.Context, key, value, updatedBy string) error {
	if _, ok := validSettingKeys[key]; !ok {
		return validationf("недопустимый ключ настройки %q", key)
	}
	value = strings.TrimSpace(value)
	if err := validateSettingValue(key, value); err != nil {
		return err
	}

	if err := s.repo.Set(ctx, key, value, updatedBy); err != nil {
		return mapRepoError(err, fmt.Sprintf("сохранение настройки %q", key))
	}

	s.logger.Info("Настройка обновлена",
		slog.String("key", key),
		slog.String("updated_by", updatedBy),
	)
	return nil
}

// EmailMode возвращает действующий режим отправки.
// При ошибке чтения настроек используется режим из конфигурации.
func (s *SettingsService) EmailMode(ctx context.Context) string {
	setting, err := s.repo.Get(ctx, SettingEmailMode)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("Ошибка чтения режима почты", slog.String("error", err.Error()))
		}
		return s.defaultMode
	}
	return setting.Value
}

// NotificationsEnabled возвращает true, если уведомления включены.
// По умолчанию включены.
func (s *SettingsService) NotificationsEnabled(ctx context.Context) bool {
	setting, err := s.repo.Get(ctx, SettingNotificationsEnabled)
	if err != nil {
		return true
	}
	return !strings.EqualFold(setting.Value, "false")
}

// ManagerRecipients возвращает адреса, на которые уходят уведомления о новых релизах.
func (s *SettingsService) ManagerRecipients(ctx context.Context) []string {
	setting, err := s.repo.Get(ctx, SettingEmailManagerRecipients)
	if err != nil {
		return nil
	}
	return splitAddresses(setting.Value)
}

// EmailSettings возвращает все настройки почты одним значением.
func (s *SettingsService) EmailSettings(ctx context.Context) (*EmailSettings, error) {
	items, err := s.repo.ListByPrefix(ctx, "email.")
	if err != nil {
		return nil, mapRepoError(err, "чтение настроек почты")
	}

	out := &EmailSettings{
		Mode:                 s.defaultMode,
		NotificationsEnabled: true,
		SMTPConfigured:       s.smtpConfigured,
	}
	for _, it := range items {
		switch it.Key {
		case SettingEmailMode:
			out.Mode = it.Value
			out.ModeOverridden = true
		case SettingNotificationsEnabled:
			out.NotificationsEnabled = !strings.EqualFold(it.Value, "false")
		case SettingEmailManagerRecipients:
			out.ManagerRecipients = splitAddresses(it.Value)
		}
	}
	return out, nil
}

// UpdateEmailSettings применяет изменения и пишет их в журнал.
func (s *SettingsService) UpdateEmailSettings(ctx context.Context, actor *model.User, upd EmailSettingsUpdate) (*EmailSettings, error) {
	if !rbac.CanManageEmail(subjectOf(actor)) {
		return nil, ErrForbidden
	}
	changed := model.Details{}

	if upd.Mode != nil {
		if err := s.Set(ctx, SettingEmailMode, *upd.Mode, actor.Email); err != nil {
			return nil, err
		}
		changed["mode"] = *upd.Mode
	}
	if upd.NotificationsEnabled != nil {
		v := "false"
		if *upd.NotificationsEnabled {
			v = "true"
		}
		if err := s.Set(ctx, SettingNotificationsEnabled, v, actor.Email); err != nil {
			return nil, err
		}
		changed["notifications_enabled"] = *upd.NotificationsEnabled
	}
	if upd.ResetRecipients || len(upd.ManagerRecipients) > 0 {
		if err := s.Set(ctx, SettingEmailManagerRecipients, strings.Join(upd.ManagerRecipients, ","), actor.Email); err != nil {
			return nil, err
		}
		changed["manager_recipients"] = len(upd.ManagerRecipients)
	}

	if len(changed) > 0 {
		s.activity.Record(ctx, ActivityEntry{
			ActorID:    actor.ID,
			Action:     model.ActionEmailSettings,
			EntityType: model.EntitySettings,
			EntityID:   "email",
			Details:    changed,
		})
	}
	return s.EmailSettings(ctx)
}

// validateSettingValue проверяет корректность значения для указанного ключа.
func validateSettingValue(key, value string) error {
	switch key {
	case SettingEmailMode:
		if value != EmailModeDemo && value != EmailModeProduction {
			return validationf("%s должен быть demo или production", key)
		}
	case SettingNotificationsEnabled:
		if value != "true" && value != "false" {
			return validationf("%s должен быть true или false", key)
		}
	case SettingEmailManagerRecipients:
		for _, addr := range splitAddresses(value) {
			if !email.ValidAddress(addr) {
				return validationf("%s: некорректный адрес %q", key, addr)
			}
		}
	}
	return nil
}

// splitAddresses разбирает список адресов через запятую.
func splitAddresses(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, strings.ToLower(p))
		}
	}
	return out
}
