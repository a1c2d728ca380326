// artists.go — профили артистов со статистикой релизов.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bigkaa/labelportal/internal/domain/model"
	"github.com/bigkaa/labelportal/internal/domain/rbac"
	"github.com/bigkaa/labelportal/internal/repository"
)

// ArtistSummary — артист и его релизы по статусам.
type ArtistSummary struct {
	User  *model.User
	Stats *StatusStats
}

// ArtistPage — страница списка артистов.
type ArtistPage struct {
	Items   []ArtistSummary
	Total   int
	HasMore bool
}

// ArtistService — сервис артистов.
type ArtistService struct {
	users  repository.UserRepository
	subs   repository.SubmissionRepository
	logger *slog.Logger
}

// NewArtistService создаёт сервис артистов.
func NewArtistService(users repository.UserRepository, subs repository.SubmissionRepository, logger *slog.Logger) *ArtistService {
	return &ArtistService{
		users:  users,
		subs:   subs,
		logger: logger.With(slog.String("component", "artist_service")),
	}
}

// List возвращает артистов. Менеджер видит всех, артист — только себя.
func (s *ArtistService) List(ctx context.Context, actor *model.User, query string, page Page) (*ArtistPage, error) {
	if !subjectOf(actor).IsManager() {
		summary, err := s.summary(ctx, actor)
		if err != nil {
			return nil, err
		}
		return &ArtistPage{Items: []ArtistSummary{*summary}, Total: 1}, nil
	}

	role := rbac.RoleArtist
	filters := repository.UserFilters{Role: &role, Query: query}
	users, err := s.users.List(ctx, filters, page.Limit, page.Offset)
	if err != nil {
		return nil, mapRepoError(err, "список артистов")
	}
	total, err := s.users.Count(ctx, filters)
	if err != nil {
		return nil, mapRepoError(err, "подсчёт артистов")
	}

	items := make([]ArtistSummary, 0, len(users))
	for _, u := range users {
		summary, err := s.summary(ctx, u)
		if err != nil {
			return nil, err
		}
		items = append(items, *summary)
	}
	return &ArtistPage{Items: items, Total: total, HasMore: page.HasMore(total)}, nil
}

// Get возвращает профиль артиста. Артист видит только себя.
func (s *ArtistService) Get(ctx context.Context, actor *model.User, id string) (*ArtistSummary, error) {
	if !subjectOf(actor).IsManager() && actor.ID != id {
		return nil, fmt.Errorf("артист %s: %w", id, ErrNotFound)
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "получение артиста")
	}
	if u.Role != rbac.RoleArtist {
		return nil, fmt.Errorf("пользователь %s не артист: %w", id, ErrNotFound)
	}
	return s.summary(ctx, u)
}

func (s *ArtistService) summary(ctx context.Context, u *model.User) (*ArtistSummary, error) {
	counts, err := s.subs.CountByStatus(ctx, &u.ID)
	if err != nil {
		return nil, mapRepoError(err, "статистика артиста")
	}
	return &ArtistSummary{User: u, Stats: newStatusStats(counts)}, nil
}
