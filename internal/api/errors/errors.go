// Пакет errors — ошибки JSON API в едином формате:
// {"error": {"code": "...", "message": "..."}}.
// Все HTTP-ответы с ошибками должны использовать WriteError или FromService.
package errors

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/bigkaa/labelportal/internal/service"
)

// Коды ошибок, определённые в OpenAPI контракте.
const (
	CodeValidationError    = "VALIDATION_ERROR"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeNotFound           = "NOT_FOUND"
	CodeConflict           = "CONFLICT"
	CodeInvalidTransition  = "INVALID_TRANSITION"
	CodePayloadTooLarge    = "PAYLOAD_TOO_LARGE"
	CodeRateLimited        = "RATE_LIMITED"
	CodeDatabaseError      = "DATABASE_ERROR"
	CodeStorageUnavailable = "STORAGE_UNAVAILABLE"
	CodeInternalError      = "INTERNAL_ERROR"
)

// errorBody — структура тела ответа ошибки.
type errorBody struct {
	Error errorDetail `json:"error"`
}

// errorDetail — детали ошибки.
type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError записывает ответ ошибки в стандартном формате.
// statusCode — HTTP статус-код, code — машиночитаемый код, message — описание.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error: errorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// --- Конструкторы для типичных ошибок ---

// ValidationError — 400 некорректные входные данные.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeValidationError, message)
}

// Unauthorized — 401 требуется аутентификация.
func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, CodeUnauthorized, message)
}

// Forbidden — 403 недостаточно прав.
func Forbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, CodeForbidden, message)
}

// NotFound — 404 ресурс не найден.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

// Conflict — 409 конфликт (дублирующийся или изменённый ресурс).
func Conflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeConflict, message)
}

// PayloadTooLarge — 413 превышен размер тела запроса.
func PayloadTooLarge(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusRequestEntityTooLarge, CodePayloadTooLarge, message)
}

// RateLimited — 429 слишком много запросов.
func RateLimited(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusTooManyRequests, CodeRateLimited, message)
}

// InternalError — 500 внутренняя ошибка.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}

// Classify сопоставляет ошибку сервисного слоя с HTTP-статусом и кодом.
func Classify(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest, CodeValidationError
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, CodeUnauthorized
	case errors.Is(err, service.ErrInactiveUser), errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, CodeForbidden
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, service.ErrInvalidTransition):
		return http.StatusConflict, CodeInvalidTransition
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict, CodeConflict
	case errors.Is(err, service.ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge, CodePayloadTooLarge
	case errors.Is(err, service.ErrStorageUnavailable):
		return http.StatusBadGateway, CodeStorageUnavailable
	case errors.Is(err, service.ErrDatabase), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, CodeDatabaseError
	default:
		return http.StatusInternalServerError, CodeInternalError
	}
}

// FromService пишет ответ для ошибки сервисного слоя.
// Клиентские ошибки отдаются с текстом ошибки, серверные логируются,
// а клиент получает обобщённое сообщение без внутренних подробностей.
func FromService(w http.ResponseWriter, logger *slog.Logger, err error) {
	status, code := Classify(err)
	if status < http.StatusInternalServerError {
		WriteError(w, status, code, err.Error())
		return
	}

	logger.Error("Ошибка обработки запроса",
		slog.String("code", code),
		slog.String("error", err.Error()),
	)
	switch code {
	case CodeDatabaseError:
		WriteError(w, status, code, "База данных временно недоступна")
	case CodeStorageUnavailable:
		WriteError(w, status, code, "Хранилище файлов недоступно")
	default:
		WriteError(w, status, code, "Внутренняя ошибка сервера")
	}
}
