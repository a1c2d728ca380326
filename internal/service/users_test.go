package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bigkaa/labelportal/internal/domain/model"
	"github.com/bigkaa/labelportal/internal/domain/rbac"
	"github.com/bigkaa/labelportal/internal/email"
)

func ptr[T any](v T) *T { return &v }

func TestUserService_Create(t *testing.T) {
	env := newTestEnv(t)
	manager := env.manager(t)
	ctx := context.Background()

	u, err := env.users.Create(ctx, manager, NewUserInput{
		Email:      " New.Artist@Example.COM ",
		Password:   "long-enough",
		Name:       "New Artist",
		Role:       "Artist",
		ArtistName: "DJ New",
	})
	if err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}
	if u.Email != "new.artist@example.com" {
		t.Errorf("Email = %q, ожидался нормализованный адрес", u.Email)
	}
	if u.Role != rbac.RoleArtist || !u.Active {
		t.Errorf("Role = %q, Active = %v", u.Role, u.Active)
	}
	if u.PasswordHash == "" || u.PasswordHash == "long-enough" {
		t.Error("пароль не захэширован")
	}
	if u.DisplayArtistName() != "DJ New" {
		t.Errorf("DisplayArtistName() = %q", u.DisplayArtistName())
	}

	env.notifications.Close()
	msgs := env.demo.messages()
	if len(msgs) != 1 || msgs[0].Template != email.TemplateWelcome {
		t.Errorf("письма = %+v, ожидалось приветствие", msgs)
	}
	if !contains(env.actions(), model.ActionUserCreated) {
		t.Error("создание не записано в журнал")
	}

	if _, err := env.users.Create(ctx, manager, NewUserInput{Email: "NEW.artist@example.com", Password: "long-enough", Name: "Dup", Role: "artist"}); !errors.Is(err, ErrConflict) {
		t.Errorf("повтор email: %v, ожидался ErrConflict", err)
	}
}

func TestUserService_CreateValidation(t *testing.T) {
	env := newTestEnv(t)
	manager := env.manager(t)
	artist := env.artist(t, "nova")

	tests := []struct {
		name  string
		actor *model.User
		in    NewUserInput
		want  error
	}{
		{"артист создаёт", artist, NewUserInput{Email: "x@y.test", Password: "long-enough", Name: "X", Role: "artist"}, ErrForbidden},
		{"роль", manager, NewUserInput{Email: "x@y.test", Password: "long-enough", Name: "X", Role: "admin"}, ErrValidation},
		{"email", manager, NewUserInput{Email: "not-an-email", Password: "long-enough", Name: "X", Role: "artist"}, ErrValidation},
		{"короткий пароль", manager, NewUserInput{Email: "x@y.test", Password: "short", Name: "X", Role: "artist"}, ErrValidation},
		{"без имени", manager, NewUserInput{Email: "x@y.test", Password: "long-enough", Name: " ", Role: "artist"}, ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.users.Create(context.Background(), tt.actor, tt.in)
			if !errors.Is(err, tt.want) {
				t.Errorf("Create() = %v, ожидалась %v", err, tt.want)
			}
		})
	}
}

func TestUserService_ListAndGet(t *testing.T) {
	env := newTestEnv(t)
	manager := env.manager(t)
	a := env.artist(t, "alpha")
	b := env.artist(t, "beta")
	ctx := context.Background()

	page, err := env.users.List(ctx, manager, UserFilter{Role: rbac.RoleArtist}, NewPage(10, 0))
	if err != nil {
		t.Fatalf("List() ошибка: %v", err)
	}
	if page.Total != 2 {
		t.Errorf("артистов %d, ожидалось 2", page.Total)
	}
	page, err = env.users.List(ctx, manager, UserFilter{Query: "ALPHA"}, NewPage(10, 0))
	if err != nil {
		t.Fatalf("List() ошибка: %v", err)
	}
	if page.Total != 1 || page.Items[0].ID != a.ID {
		t.Errorf("поиск: %+v", page.Items)
	}
	if _, err := env.users.List(ctx, a, UserFilter{}, NewPage(10, 0)); !errors.Is(err, ErrForbidden) {
		t.Errorf("List() артистом = %v, ожидался ErrForbidden", err)
	}

	if _, err := env.users.Get(ctx, a, a.ID); err != nil {
		t.Errorf("Get() себя: %v", err)
	}
	if _, err := env.users.Get(ctx, a, b.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("Get() чужого профиля = %v, ожидался ErrForbidden", err)
	}
	if _, err := env.users.Get(ctx, manager, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() несуществующего = %v, ожидался ErrNotFound", err)
	}
}

func TestUserService_LastManagerProtected(t *testing.T) {
	env := newTestEnv(t)
	boss := env.manager(t)
	ctx := context.Background()

	if _, err := env.users.Deactivate(ctx, boss, boss.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("деактивация себя: %v, ожидался ErrForbidden", err)
	}
	if _, err := env.users.Update(ctx, boss, boss.ID, UserUpdate{Role: ptr("artist")}); !errors.Is(err, ErrForbidden) {
		t.Errorf("смена своей роли: %v, ожидался ErrForbidden", err)
	}

	second := env.addUser(t, "second@label.test", rbac.RoleLabelManager)
	if _, err := env.users.Update(ctx, second, boss.ID, UserUpdate{Role: ptr("artist")}); err != nil {
		t.Fatalf("понижение при двух менеджерах: %v", err)
	}

	// Остался один активный менеджер: second. Его пытается отключить
	// бывший менеджер boss, уже не имеющий прав.
	demoted, err := env.users.Get(ctx, second, boss.ID)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.users.Deactivate(ctx, demoted, second.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("деактивация артистом: %v, ожидался ErrForbidden", err)
	}

	third := env.addUser(t, "third@label.test", rbac.RoleLabelManager)
	if _, err := env.users.Deactivate(ctx, third, second.ID); err != nil {
		t.Fatalf("деактивация при двух менеджерах: %v", err)
	}
	if !contains(env.actions(), model.ActionUserDeactivated) {
		t.Error("деактивация не записана в журнал")
	}

	// third — последний активный менеджер; second неактивен и не может действовать,
	// поэтому защита проверяется через прямой вызов ensureAnotherManager.
	if err := env.users.ensureAnotherManager(ctx); !errors.Is(err, ErrConflict) {
		t.Errorf("ensureAnotherManager() = %v, ожидался ErrConflict", err)
	}
}

func TestUserService_MutualDeactivationKeepsOneManager(t *testing.T) {
	env := newTestEnv(t)
	a := env.addUser(t, "a@label.test", rbac.RoleLabelManager)
	b := env.addUser(t, "b@label.test", rbac.RoleLabelManager)
	env.users.repo = slowCountUsers{memUsers: memUsers{env.db}, delay: 50 * time.Millisecond}
	ctx := context.Background()

	var (
		wg   sync.WaitGroup
		errs [2]error
	)
	pairs := [2][2]*model.User{{a, b}, {b, a}}
	for i, p := range pairs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = env.users.Deactivate(ctx, p[0], p[1].ID)
		}()
	}
	wg.Wait()

	ok, conflicts := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrConflict):
			conflicts++
		default:
			t.Errorf("неожиданная ошибка: %v", err)
		}
	}
	if ok != 1 || conflicts != 1 {
		t.Errorf("успешно %d, конфликтов %d, ожидалось 1 и 1", ok, conflicts)
	}
	n, err := memUsers{env.db}.CountByRole(ctx, rbac.RoleLabelManager, true)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("активных менеджеров %d, ожидался 1", n)
	}
}

// slowCountUsers задерживает ответ CountByRole, растягивая окно
// между подсчётом менеджеров и записью.
type slowCountUsers struct {
	memUsers
	delay time.Duration
}

func (r slowCountUsers) CountByRole(ctx context.Context, role string, activeOnly bool) (int, error) {
	n, err := r.memUsers.CountByRole(ctx, role, activeOnly)
	time.Sleep(r.delay)
	return n, err
}

func TestUserService_DeactivateInvalidatesCache(t *testing.T) {
	env := newTestEnv(t)
	boss := env.manager(t)
	artist := env.artist(t, "nova")
	ctx := context.Background()

	if _, err := env.auth.ResolveByID(ctx, artist.ID); err != nil {
		t.Fatalf("ResolveByID() ошибка: %v", err)
	}
	if _, err := env.users.Deactivate(ctx, boss, artist.ID); err != nil {
		t.Fatalf("Deactivate() ошибка: %v", err)
	}
	if _, err := env.auth.ResolveByID(ctx, artist.ID); !errors.Is(err, ErrInactiveUser) {
		t.Errorf("ResolveByID() после деактивации = %v, ожидался ErrInactiveUser", err)
	}
}

func TestUserService_UpdateProfile(t *testing.T) {
	env := newTestEnv(t)
	artist := env.artist(t, "nova")
	other := env.artist(t, "other")
	ctx := context.Background()

	u, err := env.users.UpdateProfile(ctx, artist, artist.ID, ProfileUpdate{
		ArtistName: ptr("Nova"),
		Bio:        ptr("  Synthwave из Казани  "),
		AvatarURL:  ptr("/api/files/abc/download"),
		SocialLinks: map[string]string{
			"instagram": "https://instagram.com/nova",
			"website":   "",
		},
	})
	if err != nil {
		t.Fatalf("UpdateProfile() ошибка: %v", err)
	}
	if u.Bio != "Synthwave из Казани" || u.DisplayArtistName() != "Nova" {
		t.Errorf("Bio = %q, ArtistName = %q", u.Bio, u.DisplayArtistName())
	}
	if u.SocialLinks["instagram"] != "https://instagram.com/nova" {
		t.Errorf("SocialLinks = %v", u.SocialLinks)
	}
	if _, ok := u.SocialLinks["website"]; ok {
		t.Error("пустая ссылка сохранена")
	}

	tests := []struct {
		name string
		upd  ProfileUpdate
	}{
		{"длинный bio", ProfileUpdate{Bio: ptr(strings.Repeat("я", 2001))}},
		{"аватар ftp", ProfileUpdate{AvatarURL: ptr("ftp://host/a.png")}},
		{"неизвестная сеть", ProfileUpdate{SocialLinks: map[string]string{"myspace": "https://myspace.com/x"}}},
		{"ссылка без схемы", ProfileUpdate{SocialLinks: map[string]string{"website": "nova.example"}}},
		{"пустое имя", ProfileUpdate{Name: ptr("")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := env.users.UpdateProfile(ctx, artist, artist.ID, tt.upd); !errors.Is(err, ErrValidation) {
				t.Errorf("UpdateProfile() = %v, ожидался ErrValidation", err)
			}
		})
	}

	if _, err := env.users.UpdateProfile(ctx, other, artist.ID, ProfileUpdate{Bio: ptr("x")}); !errors.Is(err, ErrForbidden) {
		t.Errorf("чужой профиль: %v, ожидался ErrForbidden", err)
	}
}

func TestUserService_EnsureBootstrapManager(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if err := env.users.EnsureBootstrapManager(ctx, "", ""); err != nil {
		t.Fatalf("пустой адрес: %v", err)
	}
	if err := env.users.EnsureBootstrapManager(ctx, "admin@label.test", "change-me-please"); err != nil {
		t.Fatalf("EnsureBootstrapManager() ошибка: %v", err)
	}
	// Повторный вызов при существующем менеджере ничего не делает.
	if err := env.users.EnsureBootstrapManager(ctx, "other@label.test", "change-me-please"); err != nil {
		t.Fatalf("повторный вызов: %v", err)
	}

	n, _ := memUsers{env.db}.CountByRole(ctx, rbac.RoleLabelManager, true)
	if n != 1 {
		t.Errorf("менеджеров %d, ожидался 1", n)
	}
	if _, err := env.auth.Login(ctx, "admin@label.test", "change-me-please"); err != nil {
		t.Errorf("вход первого менеджера: %v", err)
	}
}
