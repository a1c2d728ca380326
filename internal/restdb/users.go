package restdb

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bigkaa/labelportal/internal/domain/model"
	"github.com/bigkaa/labelportal/internal/repository"
)

const usersTable = "users"

// userRepo — реализация repository.UserRepository через REST API.
type userRepo struct {
	c *Client
}

// NewUserRepository создаёт REST-репозиторий пользователей.
func NewUserRepository(c *Client) repository.UserRepository {
	return &userRepo{c: c}
}

func (r *userRepo) Create(ctx context.Context, u *model.User) error {
	u.Email = strings.ToLower(u.Email)
	body := userWrite(u)
	body["id"] = u.ID

	var rows []userRow
	if err := r.c.mutate(ctx, http.MethodPost, usersTable, nil, body, &rows); err != nil {
		return err
	}
	if len(rows) > 0 {
		u.CreatedAt, u.UpdatedAt = rows[0].CreatedAt, rows[0].UpdatedAt
	}
	return nil
}

func (r *userRepo) getOne(ctx context.Context, q url.Values) (*model.User, error) {
	q.Set("limit", "1")
	var rows []userRow
	if err := r.c.selectRows(ctx, usersTable, q, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, repository.ErrNotFound
	}
	return rows[0].toModel(), nil
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	return r.getOne(ctx, url.Values{"id": {eq(id)}})
}

// GetByEmail: email хранится в нижнем регистре, поэтому достаточно eq.
func (r *userRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getOne(ctx, url.Values{"email": {eq(strings.ToLower(strings.TrimSpace(email)))}})
}

func userQuery(filters repository.UserFilters) url.Values {
	q := url.Values{}
	if filters.Role != nil {
		q.Set("role", eq(*filters.Role))
	}
	if filters.Active != nil {
		q.Set("active", "is."+strconv.FormatBool(*filters.Active))
	}
	if s := strings.TrimSpace(filters.Query); s != "" {
		q.Set("or", ilikeAny(s, "name", "email", "artist_name"))
	}
	return q
}

func (r *userRepo) List(ctx context.Context, filters repository.UserFilters, limit, offset int) ([]*model.User, error) {
	q := userQuery(filters)
	page(q, limit, offset)

	var rows []userRow
	if err := r.c.selectRows(ctx, usersTable, q, &rows); err != nil {
		return nil, err
	}
	result := make([]*model.User, 0, len(rows))
	for i := range rows {
		result = append(result, rows[i].toModel())
	}
	return result, nil
}

func (r *userRepo) Count(ctx context.Context, filters repository.UserFilters) (int, error) {
	return r.c.count(ctx, usersTable, userQuery(filters))
}

// patch обновляет строку по id; пустой ответ — ErrNotFound.
func (r *userRepo) patch(ctx context.Context, id string, body map[string]any) (*userRow, error) {
	var rows []userRow
	err := r.c.mutate(ctx, http.MethodPatch, usersTable, url.Values{"id": {eq(id)}}, body, &rows)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, repository.ErrNotFound
	}
	return &rows[0], nil
}

func (r *userRepo) Update(ctx context.Context, u *model.User) error {
	u.Email = strings.ToLower(u.Email)
	body := userWrite(u)
	body["updated_at"] = time.Now().UTC()
	row, err := r.patch(ctx, u.ID, body)
	if err != nil {
		return err
	}
	u.UpdatedAt = row.UpdatedAt
	return nil
}

func (r *userRepo) TouchLogin(ctx context.Context, id string, at time.Time) error {
	_, err := r.patch(ctx, id, map[string]any{"last_login_at": at.UTC()})
	return err
}

func (r *userRepo) CountByRole(ctx context.Context, role string, activeOnly bool) (int, error) {
	q := url.Values{"role": {eq(role)}}
	if activeOnly {
		q.Set("active", "is.true")
	}
	return r.c.count(ctx, usersTable, q)
}
