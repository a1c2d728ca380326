// Пакет static — встроенные статические ресурсы веб-интерфейса.
// Файлы встраиваются в бинарник через //go:embed и раздаются через HTTP.
package static

import (
	"embed"
	"io/fs"
	"net/http"
)

// content — встроенная файловая система со стилями интерфейса.
//
//go:embed css/*.css
var content embed.FS

// FS возвращает fs.FS для прямого доступа к встроенным файлам.
func FS() fs.FS {
	return content
}

// Handler раздаёт файлы по путям вида css/app.css (префикс /static/
// снимается роутером). Ресурсы неизменны в пределах версии бинарника.
func Handler() http.Handler {
	files := http.FileServerFS(content)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		files.ServeHTTP(w, r)
	})
}
