package ormrepo

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/bigkaa/labelportal/internal/domain/model"
	"github.com/bigkaa/labelportal/internal/repository"
)

// userRepo — реализация repository.UserRepository на gorm.
type userRepo struct {
	db *gorm.DB
}

// NewUserRepository создаёт ORM-репозиторий пользователей.
func NewUserRepository(db *gorm.DB) repository.UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) Create(ctx context.Context, u *model.User) error {
	u.Email = strings.ToLower(u.Email)
	row := userFromModel(u)
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return mapError(err, "создания пользователя")
	}
	u.CreatedAt, u.UpdatedAt = row.CreatedAt, row.UpdatedAt
	return nil
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	var row userRow
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		return nil, mapError(err, "получения пользователя")
	}
	return row.toModel(), nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var row userRow
	err := r.db.WithContext(ctx).
		Where("LOWER(email) = LOWER(?)", strings.TrimSpace(email)).
		Take(&row).Error
	if err != nil {
		return nil, mapError(err, "получения пользователя по email")
	}
	return row.toModel(), nil
}

func (r *userRepo) scoped(ctx context.Context, filters repository.UserFilters) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&userRow{})
	if filters.Role != nil {
		q = q.Where("role = ?", *filters.Role)
	}
	if filters.Active != nil {
		q = q.Where("active = ?", *filters.Active)
	}
	if s := strings.TrimSpace(filters.Query); s != "" {
		p := repository.LikePattern(s)
		q = q.Where("(name ILIKE ? OR email ILIKE ? OR COALESCE(artist_name, '') ILIKE ?)", p, p, p)
	}
	return q
}

func (r *userRepo) List(ctx context.Context, filters repository.UserFilters, limit, offset int) ([]*model.User, error) {
	var rows []userRow
	err := r.scoped(ctx, filters).
		Order("created_at DESC").Order("id").
		Limit(limit).Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, mapError(err, "получения списка пользователей")
	}
	result := make([]*model.User, 0, len(rows))
	for i := range rows {
		result = append(result, rows[i].toModel())
	}
	return result, nil
}

func (r *userRepo) Count(ctx context.Context, filters repository.UserFilters) (int, error) {
	var n int64
	if err := r.scoped(ctx, filters).Count(&n).Error; err != nil {
		return 0, mapError(err, "подсчёта пользователей")
	}
	return int(n), nil
}

func (r *userRepo) Update(ctx context.Context, u *model.User) error {
	u.Email = strings.ToLower(u.Email)
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&userRow{}).Where("id = ?", u.ID).Updates(map[string]any{
		"email":         u.Email,
		"password_hash": u.PasswordHash,
		"name":          u.Name,
		"role":          u.Role,
		"artist_name":   u.ArtistName,
		"bio":           u.Bio,
		"avatar_url":    u.AvatarURL,
		"social_links":  u.SocialLinks,
		"active":        u.Active,
		"updated_at":    now,
	})
	if res.Error != nil {
		return mapError(res.Error, "обновления пользователя")
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	u.UpdatedAt = now
	return nil
}

func (r *userRepo) TouchLogin(ctx context.Context, id string, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&userRow{}).Where("id = ?", id).UpdateColumn("last_login_at", at)
	if res.Error != nil {
		return mapError(res.Error, "обновления времени входа")
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *userRepo) CountByRole(ctx context.Context, role string, activeOnly bool) (int, error) {
	q := r.db.WithContext(ctx).Model(&userRow{}).Where("role = ?", role)
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return 0, mapError(err, "подсчёта пользователей роли")
	}
	return int(n), nil
}
