// Пакет i18n — переводы веб-интерфейса портала (en, ru).
// Каталоги встроены в бинарник, язык запроса кладётся в контекст
// middleware и читается функциями T и Tf при рендеринге страниц.
package i18n

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

// Языки интерфейса. Первый — язык по умолчанию.
var supported = []language.Tag{
	language.English,
	language.Russian,
}

var matcher = language.NewMatcher(supported)

// DefaultLang — язык, если клиент ничего не выбрал.
const DefaultLang = "en"

type contextKey struct{}

// Bundle — каталоги переводов: язык → ключ → строка.
type Bundle struct {
	catalogs map[string]map[string]string
}

// Translate возвращает перевод ключа. Если в языке ключа нет —
// английский вариант, если нет и его — сам ключ.
func (b *Bundle) Translate(lang, key string) string {
	if msg, ok := b.catalogs[lang][key]; ok {
		return msg
	}
	if msg, ok := b.catalogs[DefaultLang][key]; ok {
		return msg
	}
	return key
}

// Keys — ключи каталога языка (для проверки полноты переводов).
func (b *Bundle) Keys(lang string) []string {
	keys := make([]string, 0, len(b.catalogs[lang]))
	for k := range b.catalogs[lang] {
		keys = append(keys, k)
	}
	return keys
}

var (
	global   *Bundle
	loadOnce sync.Once
	loadErr  error
)

// Load читает встроенные каталоги. Повторные вызовы возвращают тот же результат.
func Load(logger *slog.Logger) (*Bundle, error) {
	loadOnce.Do(func() {
		b := &Bundle{catalogs: make(map[string]map[string]string, len(supported))}
		for _, tag := range supported {
			lang := tag.String()
			data, err := localeFS.ReadFile("locales/" + lang + ".json")
			if err != nil {
				loadErr = fmt.Errorf("i18n: каталог %s: %w", lang, err)
				return
			}
			var messages map[string]string
			if err := json.Unmarshal(data, &messages); err != nil {
				loadErr = fmt.Errorf("i18n: разбор каталога %s: %w", lang, err)
				return
			}
			b.catalogs[lang] = messages
			if logger != nil {
				logger.Debug("Каталог переводов загружен",
					slog.String("lang", lang),
					slog.Int("keys", len(messages)),
				)
			}
		}
		global = b
	})
	return global, loadErr
}

// WithLang кладёт язык в контекст.
func WithLang(ctx context.Context, lang string) context.Context {
	return context.WithValue(ctx, contextKey{}, lang)
}

// LangFromContext — язык запроса, по умолчанию en.
func LangFromContext(ctx context.Context) string {
	if lang, ok := ctx.Value(contextKey{}).(string); ok && lang != "" {
		return lang
	}
	return DefaultLang
}

// T — перевод ключа на язык из контекста.
func T(ctx context.Context, key string) string {
	if global == nil {
		return key
	}
	return global.Translate(LangFromContext(ctx), key)
}

// Tf — перевод с подстановкой аргументов. Формат-строки приходят
// из каталогов во время выполнения.
func Tf(ctx context.Context, key string, args ...any) string {
	return sprintf(T(ctx, key), args...)
}

//nolint:govet // формат-строка из каталога
var sprintf = fmt.Sprintf

// Supported сообщает, поддерживается ли язык.
func Supported(lang string) bool {
	for _, tag := range supported {
		if tag.String() == lang {
			return true
		}
	}
	return false
}

// MatchLanguage выбирает язык по заголовку Accept-Language.
func MatchLanguage(acceptLanguage string) string {
	_, idx := language.MatchStrings(matcher, acceptLanguage)
	return supported[idx].String()
}
