// Пакет logbuffer — кольцевой буфер последних записей журнала.
// Buffer оборачивает slog.Handler: каждая запись передаётся дальше
// и одновременно сохраняется в памяти для просмотра через API.
package logbuffer

import (
	"context"
	"log/slog"
	"maps"
	"sync"
	"time"
)

// Entry — сохранённая запись журнала.
type Entry struct {
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"`
	Message string         `json:"message"`
	Attrs   map[string]any `json:"attrs,omitempty"`
}

// Buffer — потокобезопасный кольцевой буфер фиксированного размера.
type Buffer struct {
	mu      sync.Mutex
	entries []Entry
	next    int
	full    bool
	level   slog.Leveler
}

// New создаёт буфер на size записей. Записи ниже level не сохраняются
// (но передаются во внутренний handler без изменений).
func New(size int, level slog.Leveler) *Buffer {
	if level == nil {
		level = slog.LevelDebug
	}
	return &Buffer{
		entries: make([]Entry, size),
		level:   level,
	}
}

// Wrap возвращает handler, дублирующий записи в буфер.
// Сигнатура подходит для config.SetupLogger.
func (b *Buffer) Wrap(next slog.Handler) slog.Handler {
	return &handler{buf: b, next: next}
}

// Add сохраняет запись, вытесняя самую старую при переполнении.
func (b *Buffer) Add(e Entry) {
	if len(b.entries) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries[b.next] = e
	b.next = (b.next + 1) % len(b.entries)
	if b.next == 0 {
		b.full = true
	}
}

// Entries возвращает записи от старых к новым, начиная с уровня minLevel.
// limit <= 0 — без ограничения; при ограничении возвращаются самые новые.
func (b *Buffer) Entries(minLevel slog.Level, limit int) []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	var ordered []Entry
	if b.full {
		ordered = append(ordered, b.entries[b.next:]...)
	}
	ordered = append(ordered, b.entries[:b.next]...)

	result := make([]Entry, 0, len(ordered))
	for _, e := range ordered {
		if levelOf(e.Level) >= minLevel {
			result = append(result, e)
		}
	}
	if limit > 0 && len(result) > limit {
		result = result[len(result)-limit:]
	}
	return result
}

// Len возвращает количество сохранённых записей.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.full {
		return len(b.entries)
	}
	return b.next
}

// Clear удаляет все записи.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	clear(b.entries)
	b.next = 0
	b.full = false
}

func levelOf(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// handler — slog.Handler, пишущий в буфер и во внутренний handler.
// attrs хранит атрибуты из WithAttrs уже с ключами, квалифицированными
// группами, открытыми на момент вызова.
type handler struct {
	buf    *Buffer
	next   slog.Handler
	attrs  map[string]any
	groups []string
}

func (h *handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level) || level >= h.buf.level.Level()
}

func (h *handler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= h.buf.level.Level() {
		attrs := make(map[string]any, len(h.attrs)+r.NumAttrs())
		maps.Copy(attrs, h.attrs)
		r.Attrs(func(a slog.Attr) bool {
			addAttr(attrs, h.groups, a)
			return true
		})
		h.buf.Add(Entry{
			Time:    r.Time,
			Level:   r.Level.String(),
			Message: r.Message,
			Attrs:   attrs,
		})
	}
	if h.next.Enabled(ctx, r.Level) {
		return h.next.Handle(ctx, r)
	}
	return nil
}

func (h *handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	merged := make(map[string]any, len(h.attrs)+len(attrs))
	maps.Copy(merged, h.attrs)
	for _, a := range attrs {
		addAttr(merged, h.groups, a)
	}
	return &handler{buf: h.buf, next: h.next.WithAttrs(attrs), attrs: merged, groups: h.groups}
}

func (h *handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	groups := append(append([]string(nil), h.groups...), name)
	return &handler{buf: h.buf, next: h.next.WithGroup(name), attrs: h.attrs, groups: groups}
}

// addAttr раскладывает атрибут в плоскую map с ключами через точку.
func addAttr(dst map[string]any, groups []string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	key := a.Key
	for i := len(groups) - 1; i >= 0; i-- {
		key = groups[i] + "." + key
	}
	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			prefix := groups
			if a.Key != "" {
				prefix = append(append([]string(nil), groups...), a.Key)
			}
			addAttr(dst, prefix, ga)
		}
		return
	}
	dst[key] = a.Value.Any()
}
