package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

func newTestSessionManager(t *testing.T) *SessionManager {
	t.Helper()
	sm, err := NewSessionManager("test-session-secret", time.Hour, false)
	if err != nil {
		t.Fatalf("NewSessionManager() вернул ошибку: %v", err)
	}
	return sm
}

func TestSession_IssueAndRead(t *testing.T) {
	sm := newTestSessionManager(t)

	rec := httptest.NewRecorder()
	if _, err := sm.Issue(rec, "u1", "artist@example.com", "artist"); err != nil {
		t.Fatalf("Issue() вернул ошибку: %v", err)
	}

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != SessionCookieName {
		t.Fatalf("cookie не установлен: %v", cookies)
	}
	c := cookies[0]
	if !c.HttpOnly || c.SameSite != http.SameSiteLaxMode || c.Path != "/" {
		t.Errorf("неверные атрибуты cookie: %+v", c)
	}
	if strings.Contains(c.Value, "artist@example.com") {
		t.Error("cookie содержит email в открытом виде")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(c)
	data, err := sm.FromRequest(req)
	if err != nil {
		t.Fatalf("FromRequest() вернул ошибку: %v", err)
	}
	if data.UserID != "u1" || data.Role != "artist" {
		t.Errorf("неверные данные сессии: %+v", data)
	}
}

func TestSession_NoCookie(t *testing.T) {
	sm := newTestSessionManager(t)
	data, err := sm.FromRequest(httptest.NewRequest(http.MethodGet, "/", nil))
	if data != nil || err != nil {
		t.Errorf("ожидали nil, nil; получили %v, %v", data, err)
	}
}

func TestSession_Expired(t *testing.T) {
	sm := newTestSessionManager(t)
	enc, err := sm.Encrypt(&SessionData{UserID: "u1", ExpiresAt: time.Now().Add(-time.Minute).Unix()})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := sm.Decrypt(enc); !errors.Is(err, ErrSessionExpired) {
		t.Errorf("ожидали ErrSessionExpired, получили %v", err)
	}
}

func TestSession_TamperedAndForeignKey(t *testing.T) {
	sm := newTestSessionManager(t)
	enc, err := sm.Encrypt(&SessionData{UserID: "u1", ExpiresAt: time.Now().Add(time.Hour).Unix()})
	if err != nil {
		t.Fatal(err)
	}

	raw, _ := base64.RawURLEncoding.DecodeString(enc)
	raw[len(raw)-1] ^= 0xff
	if _, err := sm.Decrypt(base64.RawURLEncoding.EncodeToString(raw)); err == nil {
		t.Error("изменённый шифротекст принят")
	}

	other, _ := NewSessionManager("another-secret", time.Hour, false)
	if _, err := other.Decrypt(enc); err == nil {
		t.Error("сессия расшифрована чужим ключом")
	}
	if _, err := sm.Decrypt("%%%"); err == nil {
		t.Error("мусор принят как сессия")
	}
}

func TestSession_Base64Key(t *testing.T) {
	key := base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))
	a, err := NewSessionManager(key, time.Hour, true)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := NewSessionManager(key, time.Hour, true)
	enc, _ := a.Encrypt(&SessionData{UserID: "u1", ExpiresAt: time.Now().Add(time.Hour).Unix()})
	if _, err := b.Decrypt(enc); err != nil {
		t.Errorf("один и тот же ключ не расшифровал сессию: %v", err)
	}
}

func TestSession_Clear(t *testing.T) {
	sm := newTestSessionManager(t)
	rec := httptest.NewRecorder()
	sm.Clear(rec)
	c := rec.Result().Cookies()
	if len(c) != 1 || c[0].MaxAge >= 0 {
		t.Errorf("cookie не удалён: %v", c)
	}
}

func TestPassword(t *testing.T) {
	if err := ValidatePassword("short"); !errors.Is(err, ErrWeakPassword) {
		t.Errorf("короткий пароль: ожидали ErrWeakPassword, получили %v", err)
	}
	if err := ValidatePassword(strings.Repeat("x", 73)); err == nil {
		t.Error("пароль длиннее 72 байт принят")
	}
	if err := ValidatePassword("пароль-длинный"); err != nil {
		t.Errorf("корректный пароль отклонён: %v", err)
	}

	hash, err := HashPassword("correct horse battery")
	if err != nil {
		t.Fatal(err)
	}
	if !CheckPassword(hash, "correct horse battery") {
		t.Error("верный пароль не принят")
	}
	if CheckPassword(hash, "wrong password") {
		t.Error("неверный пароль принят")
	}
	if CheckPassword("", "anything") {
		t.Error("пустой хеш принят")
	}
}

func TestTokenIssuer(t *testing.T) {
	ti, err := NewTokenIssuer("0123456789abcdef0123456789abcdef", "labelportal", time.Hour, 0)
	if err != nil {
		t.Fatal(err)
	}

	token, exp, err := ti.Issue("u1", "m@example.com", "label_manager")
	if err != nil {
		t.Fatalf("Issue() вернул ошибку: %v", err)
	}
	if time.Until(exp) < 59*time.Minute {
		t.Errorf("неверный срок действия: %v", exp)
	}

	claims, err := ti.Verify(token)
	if err != nil {
		t.Fatalf("Verify() вернул ошибку: %v", err)
	}
	if claims.Subject != "u1" || claims.Role != "label_manager" || claims.Email != "m@example.com" {
		t.Errorf("неверные claims: %+v", claims)
	}
}

func TestTokenIssuer_Rejects(t *testing.T) {
	ti, _ := NewTokenIssuer("0123456789abcdef0123456789abcdef", "labelportal", time.Hour, 0)
	other, _ := NewTokenIssuer("fedcba9876543210fedcba9876543210", "labelportal", time.Hour, 0)
	foreignIssuer, _ := NewTokenIssuer("0123456789abcdef0123456789abcdef", "someone-else", time.Hour, 0)

	expired, _ := NewTokenIssuer("0123456789abcdef0123456789abcdef", "labelportal", time.Hour, 0)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	tokens := map[string]func() string{
		"чужой ключ":   func() string { s, _, _ := other.Issue("u1", "", "artist"); return s },
		"чужой issuer": func() string { s, _, _ := foreignIssuer.Issue("u1", "", "artist"); return s },
		"просрочен":    func() string { s, _, _ := expired.Issue("u1", "", "artist"); return s },
		"alg none": func() string {
			s, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "u1", "iss": "labelportal",
				"exp": time.Now().Add(time.Hour).Unix()}).SignedString(jwt.UnsafeAllowNoneSignatureType)
			return s
		},
		"мусор": func() string { return "not.a.jwt" },
	}
	for name, mk := range tokens {
		t.Run(name, func(t *testing.T) {
			if _, err := ti.Verify(mk()); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("ожидали ErrInvalidToken, получили %v", err)
			}
		})
	}
}

// buildJWKSetJSON строит JWKS JSON из RSA публичного ключа.
func buildJWKSetJSON(pub *rsa.PublicKey, kid string) json.RawMessage {
	data, _ := json.Marshal(map[string]any{
		"keys": []map[string]any{{
			"kty": "RSA",
			"kid": kid,
			"use": "sig",
			"alg": "RS256",
			"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		}},
	})
	return data
}

func TestExternalVerifier(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	kf, err := keyfunc.NewJWKSetJSON(buildJWKSetJSON(&key.PublicKey, "idp-key"))
	if err != nil {
		t.Fatalf("не удалось создать keyfunc: %v", err)
	}
	v := NewExternalVerifierWithKeyfunc(kf, "https://idp.example.com", 0)

	sign := func(claims jwt.MapClaims) string {
		tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
		tok.Header["kid"] = "idp-key"
		s, err := tok.SignedString(key)
		if err != nil {
			t.Fatal(err)
		}
		return s
	}
	exp := time.Now().Add(time.Hour).Unix()

	email, err := v.Verify(context.Background(), sign(jwt.MapClaims{
		"sub": "ext-1", "iss": "https://idp.example.com", "exp": exp, "email": "Manager@Label.Example",
	}))
	if err != nil {
		t.Fatalf("Verify() вернул ошибку: %v", err)
	}
	if email != "manager@label.example" {
		t.Errorf("email = %q, ожидали в нижнем регистре", email)
	}

	bad := []jwt.MapClaims{
		{"sub": "ext-1", "iss": "https://idp.example.com", "exp": exp},
		{"sub": "ext-1", "iss": "https://other.example.com", "exp": exp, "email": "a@b.c"},
		{"sub": "ext-1", "iss": "https://idp.example.com", "exp": exp, "email": "a@b.c", "email_verified": false},
	}
	for i, c := range bad {
		if _, err := v.Verify(context.Background(), sign(c)); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("случай %d: ожидали ErrInvalidToken, получили %v", i, err)
		}
	}
}

func TestBearerToken(t *testing.T) {
	tests := map[string]string{
		"Bearer abc":  "abc",
		"bearer  abc": "abc",
		"Basic abc":   "",
		"":            "",
		"Bearer":      "",
	}
	for header, want := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			r.Header.Set("Authorization", header)
		}
		if got := BearerToken(r); got != want {
			t.Errorf("BearerToken(%q) = %q, ожидали %q", header, got, want)
		}
	}
}
