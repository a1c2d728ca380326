package multidb

import (
	"context"
	"log/slog"
	"time"

	"github.com/bigkaa/labelportal/internal/domain/model"
	"github.com/bigkaa/labelportal/internal/repository"
)

// Users — repository.UserRepository поверх цепочки стратегий.
type Users struct {
	c *chain[repository.UserRepository]
}

// NewUsers создаёт фасад пользователей.
func NewUsers(strategies []Strategy[repository.UserRepository], bs BreakerSettings, logger *slog.Logger) (*Users, error) {
	c, err := newChain("users", strategies, bs, logger)
	if err != nil {
		return nil, err
	}
	return &Users{c: c}, nil
}

// Strategies — имена стратегий в порядке опроса.
func (u *Users) Strategies() []string { return u.c.names() }

func (u *Users) Create(ctx context.Context, user *model.User) error {
	return exec(ctx, u.c, "create", func(r repository.UserRepository) error {
		return r.Create(ctx, user)
	})
}

func (u *Users) GetByID(ctx context.Context, id string) (*model.User, error) {
	return call(ctx, u.c, "get_by_id", func(r repository.UserRepository) (*model.User, error) {
		return r.GetByID(ctx, id)
	})
}

func (u *Users) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return call(ctx, u.c, "get_by_email", func(r repository.UserRepository) (*model.User, error) {
		return r.GetByEmail(ctx, email)
	})
}

func (u *Users) List(ctx context.Context, filters repository.UserFilters, limit, offset int) ([]*model.User, error) {
	return call(ctx, u.c, "list", func(r repository.UserRepository) ([]*model.User, error) {
		return r.List(ctx, filters, limit, offset)
	})
}

func (u *Users) Count(ctx context.Context, filters repository.UserFilters) (int, error) {
	return call(ctx, u.c, "count", func(r repository.UserRepository) (int, error) {
		return r.Count(ctx, filters)
	})
}

func (u *Users) Update(ctx context.Context, user *model.User) error {
	return exec(ctx, u.c, "update", func(r repository.UserRepository) error {
		return r.Update(ctx, user)
	})
}

func (u *Users) TouchLogin(ctx context.Context, id string, at time.Time) error {
	return exec(ctx, u.c, "touch_login", func(r repository.UserRepository) error {
		return r.TouchLogin(ctx, id, at)
	})
}

func (u *Users) CountByRole(ctx context.Context, role string, activeOnly bool) (int, error) {
	return call(ctx, u.c, "count_by_role", func(r repository.UserRepository) (int, error) {
		return r.CountByRole(ctx, role, activeOnly)
	})
}
