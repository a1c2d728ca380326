package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/labelportal/internal/domain/model"
)

// SettingsRepository — интерфейс для таблицы app_settings.
type SettingsRepository interface {
	// Get возвращает настройку по ключу. Если не найдена — ErrNotFound.
	Get(ctx context.Context, key string) (*model.Setting, error)
	// Set создаёт или обновляет настройку (upsert).
	Set(ctx context.Context, key, value, updatedBy string) error
	// ListByPrefix возвращает настройки с ключами, начинающимися на prefix.
	ListByPrefix(ctx context.Context, prefix string) ([]model.Setting, error)
	// Delete удаляет настройку по ключу.
	Delete(ctx context.Context, key string) error
}

type settingsRepo struct {
	db DBTX
}

// NewSettingsRepository создаёт репозиторий настроек приложения.
func NewSettingsRepository(db DBTX) SettingsRepository {
	return &settingsRepo{db: db}
}

func (r *settingsRepo) Get(ctx context.Context, key string) (*model.Setting, error) {
	query := `
		SELECT key, value, updated_by, updated_at
		FROM app_settings
		WHERE key = $1`

	s := &model.Setting{}
	err := r.db.QueryRow(ctx, query, key).Scan(&s.Key, &s.Value, &s.UpdatedBy, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения app_settings[%s]: %w", key, err)
	}
	return s, nil
}

// Set создаёт или обновляет настройку (INSERT ... ON CONFLICT DO UPDATE).
func (r *settingsRepo) Set(ctx context.Context, key, value, updatedBy string) error {
	query := `
		INSERT INTO app_settings (key, value, updated_by)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value,
			updated_by = EXCLUDED.updated_by,
			updated_at = NOW()`

	if _, err := r.db.Exec(ctx, query, key, value, updatedBy); err != nil {
		return fmt.Errorf("ошибка сохранения app_settings[%s]: %w", key, err)
	}
	return nil
}

// ListByPrefix: prefix="email." вернёт "email.mode", "email.notifications_enabled" и т.д.
func (r *settingsRepo) ListByPrefix(ctx context.Context, prefix string) ([]model.Setting, error) {
	query := `
		SELECT key, value, updated_by, updated_at
		FROM app_settings
		WHERE key LIKE $1
		ORDER BY key`

	rows, err := r.db.Query(ctx, query, prefix+"%")
	if err != nil {
		return nil, fmt.Errorf("ошибка получения app_settings по префиксу %q: %w", prefix, err)
	}
	defer rows.Close()

	var settings []model.Setting
	for rows.Next() {
		var s model.Setting
		if err := rows.Scan(&s.Key, &s.Value, &s.UpdatedBy, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования app_settings: %w", err)
		}
		settings = append(settings, s)
	}
	return settings, rows.Err()
}

func (r *settingsRepo) Delete(ctx context.Context, key string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM app_settings WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("ошибка удаления app_settings[%s]: %w", key, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
