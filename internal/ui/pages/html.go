// Пакет pages — страницы веб-интерфейса портала (templ-компоненты).
package pages

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/a-h/templ"

	"github.com/bigkaa/labelportal/internal/ui/i18n"
)

// page — запись HTML в поток с запоминанием первой ошибки.
type page struct {
	ctx context.Context
	w   io.Writer
	err error
}

// component оборачивает функцию рендеринга в templ.Component.
func component(fn func(p *page)) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &page{ctx: ctx, w: w}
		fn(p)
		return p.err
	})
}

func (p *page) raw(s string) {
	if p.err != nil {
		return
	}
	_, p.err = io.WriteString(p.w, s)
}

// text пишет экранированный текст.
func (p *page) text(s string) {
	p.raw(templ.EscapeString(s))
}

// t пишет перевод ключа.
func (p *page) t(key string) {
	p.text(i18n.T(p.ctx, key))
}

func (p *page) tf(key string, args ...any) {
	p.text(i18n.Tf(p.ctx, key, args...))
}

func (p *page) tr(key string) string {
	return i18n.T(p.ctx, key)
}

// attr пишет атрибут с экранированным значением.
func (p *page) attr(name, value string) {
	p.raw(" " + name + `="` + templ.EscapeString(value) + `"`)
}

// href пишет ссылку; небезопасные схемы templ заменяет на about:invalid.
func (p *page) href(url string) {
	p.attr("href", string(templ.URL(url)))
}

func (p *page) child(c templ.Component) {
	if p.err != nil || c == nil {
		return
	}
	p.err = c.Render(p.ctx, p.w)
}

// --- Элементы форм ---

// input — поле формы с подписью.
func (p *page) input(label, typ, name, value string, required bool) {
	p.raw(`<label class="field"><span>`)
	p.t(label)
	p.raw(`</span><input`)
	p.attr("type", typ)
	p.attr("name", name)
	if typ != "password" {
		p.attr("value", value)
	}
	if required {
		p.raw(" required")
	}
	p.raw(`></label>`)
}

func (p *page) textarea(label, name, value string) {
	p.raw(`<label class="field"><span>`)
	p.t(label)
	p.raw(`</span><textarea`)
	p.attr("name", name)
	p.raw(` rows="4">`)
	p.text(value)
	p.raw(`</textarea></label>`)
}

// selectField — выпадающий список; подписи вариантов переводятся по prefix+value.
func (p *page) selectField(label, name, selected, prefix string, values []string, withEmpty bool) {
	p.raw(`<label class="field"><span>`)
	p.t(label)
	p.raw(`</span><select`)
	p.attr("name", name)
	p.raw(`>`)
	if withEmpty {
		p.raw(`<option value="">`)
		p.t("common.all")
		p.raw(`</option>`)
	}
	for _, v := range values {
		p.raw(`<option`)
		p.attr("value", v)
		if v == selected {
			p.raw(" selected")
		}
		p.raw(`>`)
		if prefix != "" {
			p.t(prefix + v)
		} else {
			p.text(v)
		}
		p.raw(`</option>`)
	}
	p.raw(`</select></label>`)
}

func (p *page) submit(label string) {
	p.raw(`<button type="submit">`)
	p.t(label)
	p.raw(`</button>`)
}

// postButton — форма из одной кнопки (действие над записью).
func (p *page) postButton(action, label, class string) {
	p.raw(`<form method="post" class="inline"`)
	p.attr("action", action)
	p.raw(`><button type="submit"`)
	p.attr("class", class)
	p.raw(`>`)
	p.t(label)
	p.raw(`</button></form>`)
}

// --- Форматирование ---

func (p *page) time(t time.Time) {
	if t.IsZero() {
		p.raw("—")
		return
	}
	p.raw(`<time`)
	p.attr("datetime", t.UTC().Format(time.RFC3339))
	p.raw(`>`)
	p.text(t.Local().Format("2006-01-02 15:04"))
	p.raw(`</time>`)
}

func (p *page) timePtr(t *time.Time) {
	if t == nil {
		p.raw("—")
		return
	}
	p.time(*t)
}

func (p *page) statusBadge(status string) {
	p.raw(`<span`)
	p.attr("class", "badge badge-"+status)
	p.raw(`>`)
	p.t("status." + status)
	p.raw(`</span>`)
}

// formatSize — размер файла в читаемом виде.
func formatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return strconv.FormatInt(n, 10) + " B"
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func formatDuration(seconds int) string {
	if seconds <= 0 {
		return "—"
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
