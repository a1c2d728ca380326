package model

import "time"

// Результаты отправки письма.
const (
	EmailStatusSent   = "sent"
	EmailStatusFailed = "failed"
	EmailStatusDemo   = "demo"
)

// EmailLog — запись о попытке отправки письма.
// Хранится в таблице email_logs.
type EmailLog struct {
	ID        int64
	Recipient string
	Subject   string
	// Template — имя шаблона (welcome, submission_approved, ...)
	Template  string
	Status    string
	Error     string
	CreatedAt time.Time
}

// Setting — настройка приложения (ключ/значение).
// Хранится в таблице app_settings.
type Setting struct {
	Key       string
	Value     string
	UpdatedBy string
	UpdatedAt time.Time
}
