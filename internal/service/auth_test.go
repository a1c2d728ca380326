package service

import (
	"context"
	"errors"
	"testing"

	"github.com/bigkaa/labelportal/internal/domain/model"
	"github.com/bigkaa/labelportal/internal/domain/rbac"
)

func TestAuthService_RegisterAlwaysArtist(t *testing.T) {
	env := newTestEnv(t)

	u, err := env.auth.Register(context.Background(), RegisterInput{
		Email:      "Fresh@Artist.test",
		Password:   "long-enough",
		Name:       "Fresh",
		ArtistName: "Fresh Beats",
	})
	if err != nil {
		t.Fatalf("Register() ошибка: %v", err)
	}
	if u.Role != rbac.RoleArtist {
		t.Errorf("Role = %q, ожидался artist", u.Role)
	}
	if got := env.actions(); len(got) != 1 || got[0] != model.ActionUserRegistered {
		t.Errorf("журнал = %v", got)
	}

	if _, err := env.auth.Register(context.Background(), RegisterInput{Email: "fresh@artist.test", Password: "long-enough", Name: "Again"}); !errors.Is(err, ErrConflict) {
		t.Errorf("повторная регистрация: %v, ожидался ErrConflict", err)
	}
}

func TestAuthService_Login(t *testing.T) {
	env := newTestEnv(t)
	boss := env.manager(t)
	artist := env.artist(t, "nova")
	ctx := context.Background()

	u, err := env.auth.Login(ctx, " NOVA@artist.test", "correct-horse")
	if err != nil {
		t.Fatalf("Login() ошибка: %v", err)
	}
	if u.ID != artist.ID || u.LastLoginAt == nil {
		t.Errorf("ID = %q, LastLoginAt = %v", u.ID, u.LastLoginAt)
	}
	if !contains(env.actions(), model.ActionUserLogin) {
		t.Error("вход не записан в журнал")
	}

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{"неверный пароль", "nova@artist.test", "wrong-horse"},
		{"неизвестный email", "ghost@artist.test", "correct-horse"},
		{"некорректный email", "ghost", "correct-horse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := env.auth.Login(ctx, tt.email, tt.password); !errors.Is(err, ErrInvalidCredentials) {
				t.Errorf("Login() = %v, ожидался ErrInvalidCredentials", err)
			}
		})
	}

	if _, err := env.users.Deactivate(ctx, boss, artist.ID); err != nil {
		t.Fatalf("Deactivate() ошибка: %v", err)
	}
	if _, err := env.auth.Login(ctx, "nova@artist.test", "correct-horse"); !errors.Is(err, ErrInactiveUser) {
		t.Errorf("вход деактивированного: %v, ожидался ErrInactiveUser", err)
	}
	if _, err := env.auth.Login(ctx, "nova@artist.test", "wrong-horse"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("деактивированный с неверным паролем: %v, ожидался ErrInvalidCredentials", err)
	}
}

func TestAuthService_LoginDatabaseDown(t *testing.T) {
	env := newTestEnv(t)
	env.artist(t, "nova")

	env.db.failWith = errDBDown
	_, err := env.auth.Login(context.Background(), "nova@artist.test", "correct-horse")
	if !errors.Is(err, ErrDatabase) {
		t.Errorf("Login() = %v, ожидался ErrDatabase", err)
	}
}

func TestAuthService_ChangePassword(t *testing.T) {
	env := newTestEnv(t)
	artist := env.artist(t, "nova")
	ctx := context.Background()

	if err := env.auth.ChangePassword(ctx, artist, "wrong-horse", "new-password"); !errors.Is(err, ErrValidation) {
		t.Errorf("неверный текущий пароль: %v, ожидался ErrValidation", err)
	}
	if err := env.auth.ChangePassword(ctx, artist, "correct-horse", "short"); !errors.Is(err, ErrValidation) {
		t.Errorf("короткий новый пароль: %v, ожидался ErrValidation", err)
	}
	if err := env.auth.ChangePassword(ctx, artist, "correct-horse", "new-password"); err != nil {
		t.Fatalf("ChangePassword() ошибка: %v", err)
	}

	if _, err := env.auth.Login(ctx, "nova@artist.test", "correct-horse"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("вход со старым паролем: %v", err)
	}
	if _, err := env.auth.Login(ctx, "nova@artist.test", "new-password"); err != nil {
		t.Errorf("вход с новым паролем: %v", err)
	}
	if !contains(env.actions(), model.ActionPasswordChanged) {
		t.Error("смена пароля не записана в журнал")
	}
}

func TestAuthService_IssueToken(t *testing.T) {
	env := newTestEnv(t)
	artist := env.artist(t, "nova")

	token, exp, err := env.auth.IssueToken(artist)
	if err != nil {
		t.Fatalf("IssueToken() ошибка: %v", err)
	}
	if exp.IsZero() {
		t.Error("не задан срок действия токена")
	}
	claims, err := env.auth.tokens.Verify(token)
	if err != nil {
		t.Fatalf("Verify() ошибка: %v", err)
	}
	if claims.Subject != artist.ID || claims.Role != rbac.RoleArtist {
		t.Errorf("claims = %+v", claims)
	}

	artist.Active = false
	if _, _, err := env.auth.IssueToken(artist); !errors.Is(err, ErrInactiveUser) {
		t.Errorf("токен неактивному: %v, ожидался ErrInactiveUser", err)
	}
}

func TestAuthService_ResolveByEmail(t *testing.T) {
	env := newTestEnv(t)
	artist := env.artist(t, "nova")

	u, err := env.auth.ResolveByEmail(context.Background(), "nova@artist.test")
	if err != nil || u.ID != artist.ID {
		t.Fatalf("ResolveByEmail() = %v, %v", u, err)
	}
	if _, err := env.auth.ResolveByEmail(context.Background(), "ghost@artist.test"); !errors.Is(err, ErrNotFound) {
		t.Errorf("неизвестный email: %v, ожидался ErrNotFound", err)
	}
}
