// Пакет service — бизнес-логика Label Portal.
// UserCache — LRU-кэш пользователей с TTL для аутентификации запросов.
// Обёртка над hashicorp/golang-lru/v2/expirable.
package service

import (
	"context"
	"maps"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/labelportal/internal/domain/model"
	"github.com/bigkaa/labelportal/internal/repository"
)

// Prometheus-метрики кэша.
var (
	userCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lp_user_cache_hits_total",
		Help: "Общее количество попаданий в кэш пользователей.",
	})
	userCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lp_user_cache_misses_total",
		Help: "Общее количество промахов кэша пользователей.",
	})
)

// UserCache — кэш пользователей по ID с автоматическим TTL.
// Записи инвалидируются при любом изменении пользователя через UserService.
type UserCache struct {
	cache *expirable.LRU[string, model.User]
	users repository.UserRepository
}

// NewUserCache создаёт кэш поверх репозитория пользователей.
// maxSize — максимальное количество записей, ttl — время жизни записи.
func NewUserCache(users repository.UserRepository, maxSize int, ttl time.Duration) *UserCache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &UserCache{
		cache: expirable.NewLRU[string, model.User](maxSize, nil, ttl),
		users: users,
	}
}

// Get возвращает пользователя из кэша или загружает из репозитория.
// Возвращается копия: изменения вызывающего не попадают в кэш.
func (c *UserCache) Get(ctx context.Context, id string) (*model.User, error) {
	if u, ok := c.cache.Get(id); ok {
		userCacheHitsTotal.Inc()
		return cloneUser(&u), nil
	}
	userCacheMissesTotal.Inc()

	u, err := c.users.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "загрузка пользователя")
	}
	c.cache.Add(id, *cloneUser(u))
	return u, nil
}

// cloneUser копирует пользователя вместе с map и указателями.
func cloneUser(u *model.User) *model.User {
	c := *u
	c.SocialLinks = maps.Clone(u.SocialLinks)
	if u.ArtistName != nil {
		name := *u.ArtistName
		c.ArtistName = &name
	}
	if u.LastLoginAt != nil {
		at := *u.LastLoginAt
		c.LastLoginAt = &at
	}
	return &c
}

// Invalidate удаляет пользователя из кэша.
func (c *UserCache) Invalidate(id string) {
	c.cache.Remove(id)
}

// Len возвращает текущее количество записей.
func (c *UserCache) Len() int {
	return c.cache.Len()
}
