package email

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
)

// Имена шаблонов.
const (
	TemplateWelcome             = "welcome"
	TemplateSubmissionReceived  = "submission_received"
	TemplateSubmissionApproved  = "submission_approved"
	TemplateSubmissionRejected  = "submission_rejected"
	TemplateSubmissionPublished = "submission_published"
	TemplateTest                = "test"
)

// TemplateData — данные для подстановки в шаблоны.
type TemplateData struct {
	PortalURL       string
	RecipientName   string
	ArtistName      string
	SubmissionTitle string
	SubmissionURL   string
	Reason          string
	Notes           string
}

// Каждый шаблон — три блока: subject, text, html.
const templateSource = `
{{define "welcome.subject"}}Добро пожаловать в Label Portal{{end}}
{{define "welcome.text"}}Здравствуйте, {{.RecipientName}}!

Ваш аккаунт создан. Войти: {{.PortalURL}}/login
{{end}}
{{define "welcome.html"}}<p>Здравствуйте, {{.RecipientName}}!</p>
<p>Ваш аккаунт создан. <a href="{{.PortalURL}}/login">Войти в портал</a></p>{{end}}

{{define "submission_received.subject"}}Новый релиз на модерации: {{.SubmissionTitle}}{{end}}
{{define "submission_received.text"}}{{.ArtistName}} отправил релиз «{{.SubmissionTitle}}» на модерацию.

Открыть: {{.SubmissionURL}}
{{end}}
{{define "submission_received.html"}}<p>{{.ArtistName}} отправил релиз <b>{{.SubmissionTitle}}</b> на модерацию.</p>
<p><a href="{{.SubmissionURL}}">Открыть релиз</a></p>{{end}}

{{define "submission_approved.subject"}}Релиз одобрен: {{.SubmissionTitle}}{{end}}
{{define "submission_approved.text"}}Здравствуйте, {{.RecipientName}}!

Релиз «{{.SubmissionTitle}}» одобрен.{{if .Notes}}
Комментарий: {{.Notes}}{{end}}

{{.SubmissionURL}}
{{end}}
{{define "submission_approved.html"}}<p>Здравствуйте, {{.RecipientName}}!</p>
<p>Релиз <b>{{.SubmissionTitle}}</b> одобрен.</p>{{if .Notes}}
<p>Комментарий: {{.Notes}}</p>{{end}}
<p><a href="{{.SubmissionURL}}">Открыть релиз</a></p>{{end}}

{{define "submission_rejected.subject"}}Релиз отклонён: {{.SubmissionTitle}}{{end}}
{{define "submission_rejected.text"}}Здравствуйте, {{.RecipientName}}!

Релиз «{{.SubmissionTitle}}» отклонён.
Причина: {{.Reason}}

Исправьте релиз и отправьте повторно: {{.SubmissionURL}}
{{end}}
{{define "submission_rejected.html"}}<p>Здравствуйте, {{.RecipientName}}!</p>
<p>Релиз <b>{{.SubmissionTitle}}</b> отклонён.</p>
<p>Причина: {{.Reason}}</p>
<p><a href="{{.SubmissionURL}}">Исправить и отправить повторно</a></p>{{end}}

{{define "submission_published.subject"}}Релиз опубликован: {{.SubmissionTitle}}{{end}}
{{define "submission_published.text"}}Здравствуйте, {{.RecipientName}}!

Релиз «{{.SubmissionTitle}}» опубликован.

{{.SubmissionURL}}
{{end}}
{{define "submission_published.html"}}<p>Здравствуйте, {{.RecipientName}}!</p>
<p>Релиз <b>{{.SubmissionTitle}}</b> опубликован.</p>
<p><a href="{{.SubmissionURL}}">Открыть релиз</a></p>{{end}}

{{define "test.subject"}}Label Portal: тестовое письмо{{end}}
{{define "test.text"}}Это тестовое письмо. Настройки отправки работают.
{{end}}
{{define "test.html"}}<p>Это тестовое письмо. Настройки отправки работают.</p>{{end}}
`

var (
	textTemplates = texttemplate.Must(texttemplate.New("email").Parse(templateSource))
	htmlTemplates = htmltemplate.Must(htmltemplate.New("email").Parse(templateSource))
)

// Templates — список известных шаблонов.
var Templates = []string{
	TemplateWelcome,
	TemplateSubmissionReceived,
	TemplateSubmissionApproved,
	TemplateSubmissionRejected,
	TemplateSubmissionPublished,
	TemplateTest,
}

// Render собирает письмо из шаблона. HTML-часть экранируется html/template.
func Render(name string, data TemplateData, to ...string) (Message, error) {
	if textTemplates.Lookup(name+".subject") == nil {
		return Message{}, fmt.Errorf("неизвестный шаблон письма %q", name)
	}

	var subject, text, html bytes.Buffer
	if err := textTemplates.ExecuteTemplate(&subject, name+".subject", data); err != nil {
		return Message{}, fmt.Errorf("шаблон %s: %w", name, err)
	}
	if err := textTemplates.ExecuteTemplate(&text, name+".text", data); err != nil {
		return Message{}, fmt.Errorf("шаблон %s: %w", name, err)
	}
	if err := htmlTemplates.ExecuteTemplate(&html, name+".html", data); err != nil {
		return Message{}, fmt.Errorf("шаблон %s: %w", name, err)
	}

	return Message{
		To: to,
		// Заголовок письма однострочный.
		Subject:  strings.Join(strings.Fields(subject.String()), " "),
		Text:     text.String(),
		HTML:     html.String(),
		Template: name,
	}, nil
}
