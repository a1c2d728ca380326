package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken — токен не прошёл проверку.
var ErrInvalidToken = errors.New("невалидный или просроченный токен")

// Claims — claims токенов, выпускаемых порталом.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Role  string `json:"role"`
}

// TokenIssuer выпускает и проверяет HS256 bearer-токены для API-клиентов.
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	leeway time.Duration
	now    func() time.Time
}

// NewTokenIssuer создаёт выпускающего токены. Пустой secret — случайный
// ключ: выпущенные токены не переживают рестарт.
func NewTokenIssuer(secret, issuer string, ttl, leeway time.Duration) (*TokenIssuer, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("ошибка генерации ключа JWT: %w", err)
		}
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenIssuer{secret: key, issuer: issuer, ttl: ttl, leeway: leeway, now: time.Now}, nil
}

// Issue выпускает токен для пользователя.
func (t *TokenIssuer) Issue(userID, email, role string) (string, time.Time, error) {
	now := t.now()
	exp := now.Add(t.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Email: email,
		Role:  role,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("ошибка подписи токена: %w", err)
	}
	return signed, exp, nil
}

// Verify проверяет подпись, срок и issuer токена.
func (t *TokenIssuer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(t.leeway),
		jwt.WithTimeFunc(t.now),
	}
	if t.issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: нет sub", ErrInvalidToken)
	}
	return claims, nil
}

// externalClaims — claims токена внешнего IdP, нужен только email.
type externalClaims struct {
	jwt.RegisteredClaims
	Email         string `json:"email"`
	EmailVerified *bool  `json:"email_verified,omitempty"`
}

// ExternalVerifier проверяет RS256-токены внешнего IdP по JWKS.
// Пользователь сопоставляется с локальной записью по email.
type ExternalVerifier struct {
	jwks   keyfunc.Keyfunc
	issuer string
	leeway time.Duration
}

// NewExternalVerifier создаёт проверку с фоновым обновлением JWKS.
// Стартует, даже если IdP ещё недоступен.
func NewExternalVerifier(jwksURL, issuer string, timeout, leeway time.Duration, logger *slog.Logger) (*ExternalVerifier, error) {
	storage, err := jwkset.NewStorageFromHTTP(jwksURL, jwkset.HTTPClientStorageOptions{
		Client:                    &http.Client{Timeout: timeout},
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           time.Hour,
		RefreshErrorHandler: func(_ context.Context, err error) {
			logger.Error("Ошибка обновления JWKS",
				slog.String("error", err.Error()),
				slog.String("url", jwksURL),
			)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("создание JWKS storage: %w", err)
	}

	k, err := keyfunc.New(keyfunc.Options{Storage: storage})
	if err != nil {
		return nil, fmt.Errorf("создание keyfunc: %w", err)
	}
	return NewExternalVerifierWithKeyfunc(k, issuer, leeway), nil
}

// NewExternalVerifierWithKeyfunc — вариант с готовой keyfunc (тесты).
func NewExternalVerifierWithKeyfunc(kf keyfunc.Keyfunc, issuer string, leeway time.Duration) *ExternalVerifier {
	return &ExternalVerifier{jwks: kf, issuer: issuer, leeway: leeway}
}

// Verify проверяет токен и возвращает email пользователя.
func (v *ExternalVerifier) Verify(ctx context.Context, tokenString string) (string, error) {
	claims := &externalClaims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, claims, v.jwks.KeyfuncCtx(ctx), opts...)
	if err != nil || !token.Valid {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Email == "" {
		return "", fmt.Errorf("%w: нет email", ErrInvalidToken)
	}
	if claims.EmailVerified != nil && !*claims.EmailVerified {
		return "", fmt.Errorf("%w: email не подтверждён", ErrInvalidToken)
	}
	return strings.ToLower(claims.Email), nil
}

// BearerToken извлекает токен из заголовка Authorization.
// Пустая строка — заголовка нет или формат не Bearer.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
