// auth.go — регистрация, вход и смена пароля.
// Сессии и токены выпускаются в API-слое; сервис проверяет учётные данные.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bigkaa/labelportal/internal/auth"
	"github.com/bigkaa/labelportal/internal/domain/model"
	"github.com/bigkaa/labelportal/internal/domain/rbac"
	"github.com/bigkaa/labelportal/internal/repository"
)

// RegisterInput — данные самостоятельной регистрации.
type RegisterInput struct {
	Email      string
	Password   string
	Name       string
	ArtistName string
}

// AuthService — сервис аутентификации.
type AuthService struct {
	users         *UserService
	repo          repository.UserRepository
	cache         *UserCache
	tokens        *auth.TokenIssuer
	activity      *ActivityService
	notifications *NotificationService
	logger        *slog.Logger
	now           func() time.Time
}

// NewAuthService создаёт сервис аутентификации.
func NewAuthService(
	users *UserService,
	repo repository.UserRepository,
	cache *UserCache,
	tokens *auth.TokenIssuer,
	activity *ActivityService,
	notifications *NotificationService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:         users,
		repo:          repo,
		cache:         cache,
		tokens:        tokens,
		activity:      activity,
		notifications: notifications,
		logger:        logger.With(slog.String("component", "auth_service")),
		now:           time.Now,
	}
}

// Register создаёт аккаунт артиста. Роль при самостоятельной регистрации
// всегда Artist.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	u, err := s.users.create(ctx, NewUserInput{
		Email:      in.Email,
		Password:   in.Password,
		Name:       in.Name,
		Role:       rbac.RoleArtist,
		ArtistName: in.ArtistName,
	})
	if err != nil {
		return nil, err
	}

	s.activity.Record(ctx, ActivityEntry{
		ActorID:    u.ID,
		Action:     model.ActionUserRegistered,
		EntityType: model.EntityUser,
		EntityID:   u.ID,
		Details:    model.Details{"email": u.Email},
	})
	s.notifications.Welcome(ctx, u)
	return u, nil
}

// Login проверяет email и пароль. Неизвестный email и неверный пароль
// неразличимы для клиента.
func (s *AuthService) Login(ctx context.Context, addr, password string) (*model.User, error) {
	addr, err := normalizeEmail(addr)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	u, err := s.repo.GetByEmail(ctx, addr)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Выравниваем время ответа с веткой проверки пароля.
			auth.CheckPassword(dummyHash, password)
			return nil, ErrInvalidCredentials
		}
		return nil, mapRepoError(err, "вход")
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		s.logger.Info("Неудачная попытка входа", slog.String("user_id", u.ID))
		return nil, ErrInvalidCredentials
	}
	if !u.Active {
		return nil, ErrInactiveUser
	}

	now := s.now().UTC()
	if err := s.repo.TouchLogin(ctx, u.ID, now); err != nil {
		s.logger.Warn("Не удалось обновить last_login_at",
			slog.String("user_id", u.ID),
			slog.String("error", err.Error()),
		)
	} else {
		u.LastLoginAt = &now
	}

	s.activity.Record(ctx, ActivityEntry{
		ActorID:    u.ID,
		Action:     model.ActionUserLogin,
		EntityType: model.EntityUser,
		EntityID:   u.ID,
	})
	return u, nil
}

// Logout пишет выход в журнал.
func (s *AuthService) Logout(ctx context.Context, u *model.User) {
	s.activity.Record(ctx, ActivityEntry{
		ActorID:    u.ID,
		Action:     model.ActionUserLogout,
		EntityType: model.EntityUser,
		EntityID:   u.ID,
	})
}

// ChangePassword меняет собственный пароль после проверки текущего.
func (s *AuthService) ChangePassword(ctx context.Context, u *model.User, current, next string) error {
	if !auth.CheckPassword(u.PasswordHash, current) {
		return fmt.Errorf("%w: текущий пароль неверен", ErrValidation)
	}
	if err := auth.ValidatePassword(next); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	hash, err := auth.HashPassword(next)
	if err != nil {
		return err
	}

	fresh, err := s.repo.GetByID(ctx, u.ID)
	if err != nil {
		return mapRepoError(err, "смена пароля")
	}
	fresh.PasswordHash = hash
	if err := s.repo.Update(ctx, fresh); err != nil {
		return mapRepoError(err, "смена пароля")
	}
	s.cache.Invalidate(u.ID)

	s.activity.Record(ctx, ActivityEntry{
		ActorID:    u.ID,
		Action:     model.ActionPasswordChanged,
		EntityType: model.EntityUser,
		EntityID:   u.ID,
	})
	return nil
}

// IssueToken выпускает bearer-токен для API-клиента.
func (s *AuthService) IssueToken(u *model.User) (string, time.Time, error) {
	if !u.Active {
		return "", time.Time{}, ErrInactiveUser
	}
	return s.tokens.Issue(u.ID, u.Email, u.Role)
}

// ResolveByID загружает активного пользователя по ID (через кэш).
func (s *AuthService) ResolveByID(ctx context.Context, id string) (*model.User, error) {
	u, err := s.cache.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !u.Active {
		return nil, ErrInactiveUser
	}
	return u, nil
}

// ResolveByEmail — пользователь внешнего IdP, сопоставленный по email.
func (s *AuthService) ResolveByEmail(ctx context.Context, addr string) (*model.User, error) {
	u, err := s.repo.GetByEmail(ctx, addr)
	if err != nil {
		return nil, mapRepoError(err, "пользователь внешнего токена")
	}
	if !u.Active {
		return nil, ErrInactiveUser
	}
	return u, nil
}

// dummyHash — bcrypt-хэш случайной строки для неизвестных email.
const dummyHash = "$2a$10$7EqJtq98hPqEX7fNZaFWoOhi5BWX2jk8sa1ss0Yg0g8b5Q7YuW8rC"
