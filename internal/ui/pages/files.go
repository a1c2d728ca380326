// files.go — файловый браузер и форма загрузки.
package pages

import (
	"github.com/a-h/templ"

	"github.com/bigkaa/labelportal/internal/domain/model"
	"github.com/bigkaa/labelportal/internal/service"
)

// FileListData — данные страницы файлов.
type FileListData struct {
	Nav   Nav
	Items []*model.StoredFile
	Kind  string
	Pager Pager
	// MaxSize — лимит размера файла (для подсказки)
	MaxSize int64
	// ShowOwner — показывать владельца (менеджер видит все файлы)
	ShowOwner bool
}

// FileList — страница файлов с загрузкой.
func FileList(data FileListData) templ.Component {
	return component(func(p *page) {
		body := component(func(p *page) {
			// kind идёт перед file: обработчик читает multipart потоком
			p.raw(`<form method="post" action="/files" enctype="multipart/form-data" class="card">`)
			p.selectField("file.kind", "kind", model.FileKindAudio, "kind.", service.FileKinds, false)
			p.raw(`<label class="field"><span>`)
			p.t("file.file")
			p.raw(`</span><input type="file" name="file" required></label><p class="hint">`)
			p.tf("file.max_size", formatSize(data.MaxSize))
			p.raw(`</p>`)
			p.submit("file.upload")
			p.raw(`</form>`)

			p.raw(`<form method="get" action="/files" class="filters">`)
			p.selectField("file.kind", "kind", data.Kind, "kind.", service.FileKinds, true)
			p.submit("common.apply")
			p.raw(`</form>`)

			if len(data.Items) == 0 {
				p.raw(`<p class="empty">`)
				p.t("common.empty")
				p.raw(`</p>`)
				return
			}
			p.raw(`<table><thead><tr><th>`)
			p.t("file.name")
			p.raw(`</th><th>`)
			p.t("file.kind")
			p.raw(`</th><th>`)
			p.t("file.type")
			p.raw(`</th><th>`)
			p.t("file.size")
			p.raw(`</th>`)
			if data.ShowOwner {
				p.raw(`<th>`)
				p.t("file.owner")
				p.raw(`</th>`)
			}
			p.raw(`<th>`)
			p.t("file.uploaded")
			p.raw(`</th><th></th></tr></thead><tbody>`)
			for _, f := range data.Items {
				p.raw(`<tr><td><a`)
				p.href(service.FileDownloadPath(f.ID))
				p.raw(`>`)
				p.text(f.OriginalFilename)
				p.raw(`</a></td><td>`)
				p.t("kind." + f.Kind)
				p.raw(`</td><td>`)
				p.text(f.ContentType)
				p.raw(`</td><td>`)
				p.text(formatSize(f.Size))
				p.raw(`</td>`)
				if data.ShowOwner {
					p.raw(`<td><code>`)
					p.text(f.OwnerID)
					p.raw(`</code></td>`)
				}
				p.raw(`<td>`)
				p.time(f.CreatedAt)
				p.raw(`</td><td>`)
				p.postButton("/files/"+f.ID+"/delete", "common.delete", "danger")
				p.raw(`</td></tr>`)
			}
			p.raw(`</tbody></table>`)
			pager(p, data.Pager)
		})
		p.child(Layout(p.tr("nav.files"), data.Nav, body))
	})
}
