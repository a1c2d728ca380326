// users.go — сервис управления пользователями портала.
// Создание, изменение и деактивация (менеджеры), редактирование профиля
// (сам пользователь или менеджер), первичный Label Manager.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/bigkaa/labelportal/internal/auth"
	"github.com/bigkaa/labelportal/internal/domain/model"
	"github.com/bigkaa/labelportal/internal/domain/rbac"
	"github.com/bigkaa/labelportal/internal/email"
	"github.com/bigkaa/labelportal/internal/repository"
)

// UserFilter — фильтры списка пользователей.
type UserFilter struct {
	Role   string
	Active *bool
	Query  string
}

// UserPage — страница списка пользователей.
type UserPage struct {
	Items   []*model.User
	Total   int
	HasMore bool
}

// NewUserInput — данные нового пользователя.
type NewUserInput struct {
	Email      string
	Password   string
	Name       string
	Role       string
	ArtistName string
}

// UserUpdate — изменение пользователя менеджером; nil-поля не меняются.
type UserUpdate struct {
	Email      *string
	Name       *string
	Role       *string
	ArtistName *string
	Active     *bool
	Password   *string
}

// ProfileUpdate — изменение профиля; nil-поля не меняются.
type ProfileUpdate struct {
	Name        *string
	ArtistName  *string
	Bio         *string
	AvatarURL   *string
	SocialLinks map[string]string
}

// UserService — сервис пользователей.
type UserService struct {
	// managerMu сериализует снятие активных менеджеров: подсчёт
	// оставшихся и запись выполняются под ним.
	managerMu     sync.Mutex
	repo          repository.UserRepository
	cache         *UserCache
	activity      *ActivityService
	notifications *NotificationService
	logger        *slog.Logger
}

// NewUserService создаёт сервис пользователей.
func NewUserService(
	repo repository.UserRepository,
	cache *UserCache,
	activity *ActivityService,
	notifications *NotificationService,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		repo:          repo,
		cache:         cache,
		activity:      activity,
		notifications: notifications,
		logger:        logger.With(slog.String("component", "user_service")),
	}
}

func subjectOf(u *model.User) rbac.Subject {
	return rbac.Subject{ID: u.ID, Role: u.Role}
}

// List возвращает пользователей (только для менеджеров).
func (s *UserService) List(ctx context.Context, actor *model.User, f UserFilter, page Page) (*UserPage, error) {
	if !rbac.CanManageUsers(subjectOf(actor)) {
		return nil, ErrForbidden
	}

	var filters repository.UserFilters
	if f.Role != "" {
		role, ok := rbac.ParseRole(f.Role)
		if !ok {
			return nil, validationf("неизвестная роль %q", f.Role)
		}
		filters.Role = &role
	}
	filters.Active = f.Active
	filters.Query = strings.TrimSpace(f.Query)

	items, err := s.repo.List(ctx, filters, page.Limit, page.Offset)
	if err != nil {
		return nil, mapRepoError(err, "список пользователей")
	}
	total, err := s.repo.Count(ctx, filters)
	if err != nil {
		return nil, mapRepoError(err, "подсчёт пользователей")
	}
	return &UserPage{Items: items, Total: total, HasMore: page.HasMore(total)}, nil
}

// Get возвращает пользователя: себя или любого для менеджера.
func (s *UserService) Get(ctx context.Context, actor *model.User, id string) (*model.User, error) {
	if !rbac.CanEditProfile(subjectOf(actor), id) {
		return nil, ErrForbidden
	}
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "получение пользователя")
	}
	return u, nil
}

// Create создаёт пользователя от имени менеджера.
func (s *UserService) Create(ctx context.Context, actor *model.User, in NewUserInput) (*model.User, error) {
	if !rbac.CanManageUsers(subjectOf(actor)) {
		return nil, ErrForbidden
	}
	role, ok := rbac.ParseRole(in.Role)
	if !ok {
		return nil, validationf("неизвестная роль %q", in.Role)
	}
	in.Role = role

	u, err := s.create(ctx, in)
	if err != nil {
		return nil, err
	}

	s.activity.Record(ctx, ActivityEntry{
		ActorID:    actor.ID,
		Action:     model.ActionUserCreated,
		EntityType: model.EntityUser,
		EntityID:   u.ID,
		Details:    model.Details{"email": u.Email, "role": u.Role},
	})
	s.notifications.Welcome(ctx, u)
	return u, nil
}

// create проверяет данные и сохраняет пользователя.
func (s *UserService) create(ctx context.Context, in NewUserInput) (*model.User, error) {
	addr, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, validationf("имя обязательно")
	}
	if err := auth.ValidatePassword(in.Password); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	u := &model.User{
		ID:           uuid.NewString(),
		Email:        addr,
		PasswordHash: hash,
		Name:         name,
		Role:         in.Role,
		SocialLinks:  model.SocialLinks{},
		Active:       true,
	}
	if an := strings.TrimSpace(in.ArtistName); an != "" {
		u.ArtistName = &an
	}

	if err := s.repo.Create(ctx, u); err != nil {
		return nil, mapRepoError(err, "создание пользователя")
	}
	s.logger.Info("Пользователь создан",
		slog.String("user_id", u.ID),
		slog.String("role", u.Role),
	)
	return u, nil
}

// Update изменяет пользователя от имени менеджера.
// Менеджер не может понизить или деактивировать себя, и в системе
// всегда остаётся хотя бы один активный Label Manager.
func (s *UserService) Update(ctx context.Context, actor *model.User, id string, upd UserUpdate) (*model.User, error) {
	if !rbac.CanManageUsers(subjectOf(actor)) {
		return nil, ErrForbidden
	}
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "получение пользователя")
	}

	changed := model.Details{}
	wasActiveManager := u.Active && u.Role == rbac.RoleLabelManager

	if upd.Email != nil {
		addr, err := normalizeEmail(*upd.Email)
		if err != nil {
			return nil, err
		}
		if addr != u.Email {
			u.Email = addr
			changed["email"] = addr
		}
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, validationf("имя обязательно")
		}
		u.Name = name
		changed["name"] = name
	}
	if upd.Role != nil {
		role, ok := rbac.ParseRole(*upd.Role)
		if !ok {
			return nil, validationf("неизвестная роль %q", *upd.Role)
		}
		if role != u.Role {
			if u.ID == actor.ID {
				return nil, fmt.Errorf("%w: нельзя изменить собственную роль", ErrForbidden)
			}
			u.Role = role
			changed["role"] = role
		}
	}
	if upd.ArtistName != nil {
		u.ArtistName = optionalString(*upd.ArtistName)
		changed["artist_name"] = *upd.ArtistName
	}
	if upd.Active != nil && *upd.Active != u.Active {
		if !*upd.Active && u.ID == actor.ID {
			return nil, fmt.Errorf("%w: нельзя деактивировать себя", ErrForbidden)
		}
		u.Active = *upd.Active
		changed["active"] = u.Active
	}
	if upd.Password != nil {
		if err := auth.ValidatePassword(*upd.Password); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrValidation, err)
		}
		hash, err := auth.HashPassword(*upd.Password)
		if err != nil {
			return nil, err
		}
		u.PasswordHash = hash
		changed["password"] = "reset"
	}

	stillActiveManager := u.Active && u.Role == rbac.RoleLabelManager
	if wasActiveManager && !stillActiveManager {
		s.managerMu.Lock()
		defer s.managerMu.Unlock()
		if err := s.ensureAnotherManager(ctx); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Update(ctx, u); err != nil {
		return nil, mapRepoError(err, "обновление пользователя")
	}
	s.cache.Invalidate(u.ID)

	action := model.ActionUserUpdated
	if active, ok := changed["active"].(bool); ok && !active {
		action = model.ActionUserDeactivated
	}
	s.activity.Record(ctx, ActivityEntry{
		ActorID:    actor.ID,
		Action:     action,
		EntityType: model.EntityUser,
		EntityID:   u.ID,
		Details:    changed,
	})
	return u, nil
}

// Deactivate отключает пользователя (DELETE /api/users/{id}).
// Пользователи не удаляются: на них ссылаются релизы и журнал.
func (s *UserService) Deactivate(ctx context.Context, actor *model.User, id string) (*model.User, error) {
	inactive := false
	return s.Update(ctx, actor, id, UserUpdate{Active: &inactive})
}

// ensureAnotherManager проверяет, что после изменения останется активный менеджер.
func (s *UserService) ensureAnotherManager(ctx context.Context) error {
	n, err := s.repo.CountByRole(ctx, rbac.RoleLabelManager, true)
	if err != nil {
		return mapRepoError(err, "подсчёт менеджеров")
	}
	if n <= 1 {
		return fmt.Errorf("%w: в системе должен остаться хотя бы один активный Label Manager", ErrConflict)
	}
	return nil
}

// UpdateProfile изменяет профиль: свой или любой для менеджера.
func (s *UserService) UpdateProfile(ctx context.Context, actor *model.User, id string, upd ProfileUpdate) (*model.User, error) {
	if !rbac.CanEditProfile(subjectOf(actor), id) {
		return nil, ErrForbidden
	}
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "получение пользователя")
	}

	changed := []string{}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, validationf("имя обязательно")
		}
		u.Name = name
		changed = append(changed, "name")
	}
	if upd.ArtistName != nil {
		u.ArtistName = optionalString(*upd.ArtistName)
		changed = append(changed, "artist_name")
	}
	if upd.Bio != nil {
		bio := strings.TrimSpace(*upd.Bio)
		if len([]rune(bio)) > 2000 {
			return nil, validationf("bio длиннее 2000 символов")
		}
		u.Bio = bio
		changed = append(changed, "bio")
	}
	if upd.AvatarURL != nil {
		avatar := strings.TrimSpace(*upd.AvatarURL)
		if avatar != "" && !strings.HasPrefix(avatar, "/") {
			if err := validateLink(avatar); err != nil {
				return nil, validationf("avatar_url: %v", err)
			}
		}
		u.AvatarURL = avatar
		changed = append(changed, "avatar_url")
	}
	if upd.SocialLinks != nil {
		links, err := normalizeSocialLinks(upd.SocialLinks)
		if err != nil {
			return nil, err
		}
		u.SocialLinks = links
		changed = append(changed, "social_links")
	}

	if err := s.repo.Update(ctx, u); err != nil {
		return nil, mapRepoError(err, "обновление профиля")
	}
	s.cache.Invalidate(u.ID)

	s.activity.Record(ctx, ActivityEntry{
		ActorID:    actor.ID,
		Action:     model.ActionProfileUpdated,
		EntityType: model.EntityUser,
		EntityID:   u.ID,
		Details:    model.Details{"fields": changed},
	})
	return u, nil
}

// EnsureBootstrapManager создаёт первого Label Manager, если в системе нет ни одного.
// Пустой addr — ничего не делать.
func (s *UserService) EnsureBootstrapManager(ctx context.Context, addr, password string) error {
	if addr == "" {
		return nil
	}
	n, err := s.repo.CountByRole(ctx, rbac.RoleLabelManager, false)
	if err != nil {
		return mapRepoError(err, "подсчёт менеджеров")
	}
	if n > 0 {
		return nil
	}

	u, err := s.create(ctx, NewUserInput{
		Email:    addr,
		Password: password,
		Name:     "Label Manager",
		Role:     rbac.RoleLabelManager,
	})
	if errors.Is(err, ErrConflict) {
		return fmt.Errorf("bootstrap: email %s уже занят пользователем с другой ролью: %w", addr, err)
	}
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	s.activity.Record(ctx, ActivityEntry{
		Action:     model.ActionUserCreated,
		EntityType: model.EntityUser,
		EntityID:   u.ID,
		Details:    model.Details{"email": u.Email, "role": u.Role, "bootstrap": true},
	})
	s.logger.Info("Создан первый Label Manager", slog.String("email", u.Email))
	return nil
}

// normalizeEmail приводит адрес к нижнему регистру и проверяет формат.
func normalizeEmail(addr string) (string, error) {
	addr = strings.ToLower(strings.TrimSpace(addr))
	if addr == "" {
		return "", validationf("email обязателен")
	}
	if !email.ValidAddress(addr) {
		return "", validationf("некорректный email %q", addr)
	}
	return addr, nil
}

func optionalString(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

// normalizeSocialLinks оставляет известные ключи с непустыми http(s) ссылками.
func normalizeSocialLinks(in map[string]string) (model.SocialLinks, error) {
	out := model.SocialLinks{}
	for k, v := range in {
		k = strings.ToLower(strings.TrimSpace(k))
		v = strings.TrimSpace(v)
		if !slices.Contains(model.SocialLinkKeys, k) {
			return nil, validationf("неизвестная ссылка %q", k)
		}
		if v == "" {
			continue
		}
		if err := validateLink(v); err != nil {
			return nil, validationf("%s: %v", k, err)
		}
		out[k] = v
	}
	return out, nil
}

func validateLink(v string) error {
	u, err := url.Parse(v)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("ожидается http(s) URL, получено %q", v)
	}
	return nil
}
