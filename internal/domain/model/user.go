// Пакет model — доменные модели Label Portal.
package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// User — пользователь портала (Label Manager или Artist).
// Хранится в таблице users.
type User struct {
	// ID — UUID пользователя
	ID string
	// Email — адрес электронной почты (в нижнем регистре, уникален)
	Email string
	// PasswordHash — bcrypt-хэш пароля
	PasswordHash string
	// Name — отображаемое имя
	Name string
	// Role — роль (label_manager, artist)
	Role string
	// ArtistName — сценическое имя (только для артистов)
	ArtistName *string
	Bio        string
	AvatarURL  string
	// SocialLinks — ссылки на профили (website, instagram, ...)
	SocialLinks SocialLinks
	// Active — false для деактивированных пользователей
	Active      bool
	LastLoginAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DisplayArtistName возвращает сценическое имя, а при его отсутствии — Name.
func (u *User) DisplayArtistName() string {
	if u.ArtistName != nil && *u.ArtistName != "" {
		return *u.ArtistName
	}
	return u.Name
}

// Допустимые ключи SocialLinks.
var SocialLinkKeys = []string{"website", "instagram", "twitter", "spotify", "soundcloud", "youtube"}

// SocialLinks — ссылки на внешние профили артиста, хранятся в jsonb.
type SocialLinks map[string]string

// Value реализует driver.Valuer.
func (s SocialLinks) Value() (driver.Value, error) {
	if s == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(s)
}

// Scan реализует sql.Scanner.
func (s *SocialLinks) Scan(src any) error {
	return scanJSON(src, s)
}

// scanJSON разбирает jsonb из []byte или string.
func scanJSON(src any, dst any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("неподдерживаемый тип jsonb: %T", src)
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dst)
}
