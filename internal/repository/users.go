package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/labelportal/internal/domain/model"
)

// UserRepository — интерфейс CRUD для таблицы users.
type UserRepository interface {
	// Create создаёт пользователя. Email должен быть уникален (ErrConflict).
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	// GetByEmail ищет пользователя без учёта регистра.
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	List(ctx context.Context, filters UserFilters, limit, offset int) ([]*model.User, error)
	Count(ctx context.Context, filters UserFilters) (int, error)
	// Update перезаписывает изменяемые поля (включая роль, пароль и активность).
	Update(ctx context.Context, u *model.User) error
	// TouchLogin фиксирует время последнего входа.
	TouchLogin(ctx context.Context, id string, at time.Time) error
	// CountByRole возвращает число пользователей роли (activeOnly — только активных).
	CountByRole(ctx context.Context, role string, activeOnly bool) (int, error)
}

// UserFilters — фильтры списка пользователей.
type UserFilters struct {
	Role   *string
	Active *bool
	// Query — подстрока имени, email или сценического имени
	Query string
}

const userColumns = `id, email, password_hash, name, role, artist_name, bio, avatar_url,
	social_links, active, last_login_at, created_at, updated_at`

// userRepo — реализация UserRepository.
type userRepo struct {
	db DBTX
}

// NewUserRepository создаёт репозиторий пользователей.
func NewUserRepository(db DBTX) UserRepository {
	return &userRepo{db: db}
}

func scanUser(row rowScanner) (*model.User, error) {
	u := &model.User{}
	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Role, &u.ArtistName, &u.Bio, &u.AvatarURL,
		&u.SocialLinks, &u.Active, &u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *userRepo) Create(ctx context.Context, u *model.User) error {
	query := `
		INSERT INTO users (id, email, password_hash, name, role, artist_name, bio, avatar_url,
			social_links, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`

	u.Email = strings.ToLower(u.Email)
	err := r.db.QueryRow(ctx, query,
		u.ID, u.Email, u.PasswordHash, u.Name, u.Role, u.ArtistName, u.Bio, u.AvatarURL,
		u.SocialLinks, u.Active,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: пользователь с email %s уже существует", ErrConflict, u.Email)
		}
		return fmt.Errorf("ошибка создания пользователя: %w", err)
	}
	return nil
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	u, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}
	return u, nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1)`

	u, err := scanUser(r.db.QueryRow(ctx, query, strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения пользователя по email: %w", err)
	}
	return u, nil
}

// buildUserWhere строит WHERE-условие и аргументы для фильтрации пользователей.
func buildUserWhere(filters UserFilters) *whereBuilder {
	w := &whereBuilder{}
	if filters.Role != nil {
		w.add("role = $%d", *filters.Role)
	}
	if filters.Active != nil {
		w.add("active = $%d", *filters.Active)
	}
	if q := strings.TrimSpace(filters.Query); q != "" {
		w.add("(name ILIKE $%[1]d OR email ILIKE $%[1]d OR COALESCE(artist_name, '') ILIKE $%[1]d)", LikePattern(q))
	}
	return w
}

func (r *userRepo) List(ctx context.Context, filters UserFilters, limit, offset int) ([]*model.User, error) {
	w := buildUserWhere(filters)
	argNum := w.next()

	query := fmt.Sprintf(`
		SELECT %s
		FROM users
		%s
		ORDER BY created_at DESC, id
		LIMIT $%d OFFSET $%d`, userColumns, w.sql(), argNum, argNum+1)

	rows, err := r.db.Query(ctx, query, append(w.args, limit, offset)...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка пользователей: %w", err)
	}
	defer rows.Close()

	var result []*model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования пользователя: %w", err)
		}
		result = append(result, u)
	}
	return result, rows.Err()
}

func (r *userRepo) Count(ctx context.Context, filters UserFilters) (int, error) {
	w := buildUserWhere(filters)
	var count int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM users "+w.sql(), w.args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта пользователей: %w", err)
	}
	return count, nil
}

func (r *userRepo) Update(ctx context.Context, u *model.User) error {
	query := `
		UPDATE users
		SET email = $2, password_hash = $3, name = $4, role = $5, artist_name = $6,
			bio = $7, avatar_url = $8, social_links = $9, active = $10, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	u.Email = strings.ToLower(u.Email)
	err := r.db.QueryRow(ctx, query,
		u.ID, u.Email, u.PasswordHash, u.Name, u.Role, u.ArtistName,
		u.Bio, u.AvatarURL, u.SocialLinks, u.Active,
	).Scan(&u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: email %s занят", ErrConflict, u.Email)
		}
		return fmt.Errorf("ошибка обновления пользователя: %w", err)
	}
	return nil
}

func (r *userRepo) TouchLogin(ctx context.Context, id string, at time.Time) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET last_login_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("ошибка обновления времени входа: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *userRepo) CountByRole(ctx context.Context, role string, activeOnly bool) (int, error) {
	query := `SELECT COUNT(*) FROM users WHERE role = $1 AND (NOT $2::boolean OR active)`
	var count int
	if err := r.db.QueryRow(ctx, query, role, activeOnly).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта пользователей роли %s: %w", role, err)
	}
	return count, nil
}
