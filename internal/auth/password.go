package auth

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength — минимальная длина пароля.
const MinPasswordLength = 8

// ErrWeakPassword — пароль не удовлетворяет требованиям.
var ErrWeakPassword = fmt.Errorf("пароль должен быть не короче %d символов", MinPasswordLength)

// ValidatePassword проверяет требования к паролю.
// bcrypt учитывает только первые 72 байта.
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return ErrWeakPassword
	}
	if len(password) > 72 {
		return errors.New("пароль длиннее 72 байт")
	}
	return nil
}

// HashPassword возвращает bcrypt-хеш пароля.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("ошибка хеширования пароля: %w", err)
	}
	return string(hash), nil
}

// CheckPassword сравнивает пароль с хешем за постоянное время.
func CheckPassword(hash, password string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
