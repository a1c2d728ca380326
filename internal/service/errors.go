// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bigkaa/labelportal/internal/domain/workflow"
	"github.com/bigkaa/labelportal/internal/repository"
)

var (
	// ErrNotFound — ресурс не найден (или недоступен текущему пользователю).
	ErrNotFound = errors.New("ресурс не найден")
	// ErrConflict — ресурс уже существует или был изменён параллельно.
	ErrConflict = errors.New("конфликт: ресурс уже существует или изменён")
	// ErrValidation — ошибка валидации входных данных.
	ErrValidation = errors.New("ошибка валидации")
	// ErrForbidden — недостаточно прав.
	ErrForbidden = errors.New("недостаточно прав")
	// ErrInvalidTransition — недопустимый переход статуса релиза.
	ErrInvalidTransition = workflow.ErrInvalidTransition
	// ErrInvalidCredentials — неверный email или пароль.
	ErrInvalidCredentials = errors.New("неверный email или пароль")
	// ErrInactiveUser — пользователь деактивирован.
	ErrInactiveUser = errors.New("пользователь деактивирован")
	// ErrStorageUnavailable — хранилище файлов недоступно.
	ErrStorageUnavailable = errors.New("хранилище файлов недоступно")
	// ErrPayloadTooLarge — превышен размер загрузки.
	ErrPayloadTooLarge = errors.New("файл слишком большой")
	// ErrDatabase — база данных недоступна или вернула непредвиденную ошибку.
	ErrDatabase = errors.New("ошибка базы данных")
)

// validationf — ErrValidation с пояснением.
func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// mapRepoError переводит ошибки репозиториев в ошибки сервисного слоя.
func mapRepoError(err error, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case errors.Is(err, repository.ErrConflict):
		return fmt.Errorf("%s: %w", op, ErrConflict)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%s: %w: %w", op, ErrDatabase, err)
	}
}
