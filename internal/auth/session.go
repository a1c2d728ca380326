// Пакет auth — сессии (зашифрованный cookie), bearer-токены и пароли.
// Шифрование сессий AES-256-GCM, токены HS256 (golang-jwt),
// опциональная проверка RS256-токенов внешнего IdP через JWKS.
package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// SessionCookieName — имя cookie с зашифрованной сессией.
const SessionCookieName = "lp_session"

// ErrSessionExpired — срок действия сессии истёк.
var ErrSessionExpired = errors.New("сессия истекла")

// SessionData — содержимое cookie. Роль здесь только для отображения:
// права всегда проверяются по актуальной записи пользователя в БД.
type SessionData struct {
	UserID    string `json:"uid"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	ExpiresAt int64  `json:"exp"`
}

// IsExpired проверяет срок действия сессии.
func (s *SessionData) IsExpired(now time.Time) bool {
	return now.Unix() >= s.ExpiresAt
}

// SessionManager шифрует SessionData в HTTP cookie через AES-256-GCM.
type SessionManager struct {
	gcm    cipher.AEAD
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

// NewSessionManager создаёт менеджер сессий.
// key — base64 32-байтового ключа или произвольная строка (хешируется SHA-256).
// Пустой key — случайный ключ: сессии не переживают рестарт.
func NewSessionManager(key string, ttl time.Duration, secure bool) (*SessionManager, error) {
	var keyBytes []byte

	if key == "" {
		keyBytes = make([]byte, 32)
		if _, err := io.ReadFull(rand.Reader, keyBytes); err != nil {
			return nil, fmt.Errorf("ошибка генерации ключа сессии: %w", err)
		}
	} else {
		var err error
		keyBytes, err = base64.StdEncoding.DecodeString(key)
		if err != nil || len(keyBytes) != 32 {
			h := sha256.Sum256([]byte(key))
			keyBytes = h[:]
		}
	}

	block, err := aes.NewCipher(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания GCM: %w", err)
	}

	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionManager{gcm: gcm, ttl: ttl, secure: secure, now: time.Now}, nil
}

// TTL — срок жизни сессии.
func (sm *SessionManager) TTL() time.Duration { return sm.ttl }

// Encrypt шифрует SessionData в base64-строку (nonce || ciphertext).
func (sm *SessionManager) Encrypt(data *SessionData) (string, error) {
	plaintext, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("ошибка сериализации сессии: %w", err)
	}

	nonce := make([]byte, sm.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("ошибка генерации nonce: %w", err)
	}
	ciphertext := sm.gcm.Seal(nonce, nonce, plaintext, nil)

	return base64.RawURLEncoding.EncodeToString(ciphertext), nil
}

// Decrypt расшифровывает cookie и проверяет срок действия.
func (sm *SessionManager) Decrypt(encrypted string) (*SessionData, error) {
	ciphertext, err := base64.RawURLEncoding.DecodeString(encrypted)
	if err != nil {
		return nil, fmt.Errorf("ошибка декодирования base64: %w", err)
	}

	nonceSize := sm.gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, errors.New("зашифрованные данные слишком короткие")
	}

	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := sm.gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("ошибка дешифрования сессии: %w", err)
	}

	var data SessionData
	if err := json.Unmarshal(plaintext, &data); err != nil {
		return nil, fmt.Errorf("ошибка десериализации сессии: %w", err)
	}
	if data.IsExpired(sm.now()) {
		return nil, ErrSessionExpired
	}
	return &data, nil
}

// Issue создаёт сессию пользователя и устанавливает cookie.
func (sm *SessionManager) Issue(w http.ResponseWriter, userID, email, role string) (*SessionData, error) {
	data := &SessionData{
		UserID:    userID,
		Email:     email,
		Role:      role,
		ExpiresAt: sm.now().Add(sm.ttl).Unix(),
	}
	encrypted, err := sm.Encrypt(data)
	if err != nil {
		return nil, err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    encrypted,
		Path:     "/",
		MaxAge:   int(sm.ttl.Seconds()),
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return data, nil
}

// FromRequest извлекает сессию из cookie. nil, nil — cookie нет.
func (sm *SessionManager) FromRequest(r *http.Request) (*SessionData, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return nil, nil
		}
		return nil, err
	}
	return sm.Decrypt(cookie.Value)
}

// Clear удаляет cookie сессии (logout).
func (sm *SessionManager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
