package service

// Пагинация списков.
const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// Page — нормализованные limit/offset.
type Page struct {
	Limit  int
	Offset int
}

// NewPage приводит limit/offset к допустимым значениям.
func NewPage(limit, offset int) Page {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return Page{Limit: limit, Offset: offset}
}

// HasMore — есть ли записи после текущей страницы.
func (p Page) HasMore(total int) bool {
	return p.Offset+p.Limit < total
}
