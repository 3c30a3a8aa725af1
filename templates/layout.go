// Package templates renders notification emails, one template per kind.
package templates

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	texttemplate "text/template"

	"github.com/Matthias0x44/RyUnfair/internal/domain/entity"
)

const layoutHTML = `{{define "layout"}}<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>{{block "title" .}}RyUnfair{{end}}</title></head>
<body style="font-family:Helvetica,Arial,sans-serif;color:#1f2933;max-width:600px;margin:0 auto;padding:24px">
<h1 style="font-size:20px;color:#073590">RyUnfair</h1>
{{template "content" .}}
<hr style="border:none;border-top:1px solid #e4e7eb;margin:32px 0 16px">
<p style="font-size:12px;color:#7b8794">RyUnfair is not a law firm and this email is not legal advice.
{{with unsubscribe .}}<a href="{{.}}">Unsubscribe</a> from further emails.{{end}}</p>
</body>
</html>{{end}}`

var funcs = template.FuncMap{
	"unsubscribe": func(msg entity.MessageContext) string {
		switch m := msg.(type) {
		case entity.EligibilityMessage:
			return m.UnsubscribeURL
		case entity.FollowupMessage:
			return m.UnsubscribeURL
		}
		return ""
	},
}

// Template renders one notification kind
type Template struct {
	kind    entity.NotificationKind
	subject *texttemplate.Template
	body    *template.Template
	accepts func(entity.MessageContext) bool
}

func newTemplate(kind entity.NotificationKind, subject, content string, accepts func(entity.MessageContext) bool) *Template {
	body := template.Must(template.New(string(kind)).Funcs(funcs).Parse(layoutHTML))
	template.Must(body.Parse(content))

	return &Template{
		kind:    kind,
		subject: texttemplate.Must(texttemplate.New(string(kind) + "_subject").Parse(subject)),
		body:    body,
		accepts: accepts,
	}
}

// Kind is the notification kind this template renders
func (t *Template) Kind() entity.NotificationKind {
	return t.kind
}

// Render returns the subject line and HTML body for msg
func (t *Template) Render(msg entity.MessageContext) (string, string, error) {
	if msg == nil || msg.Kind() != t.kind || !t.accepts(msg) {
		return "", "", fmt.Errorf("%w: %s template cannot render %T", entity.ErrInvalidMessage, t.kind, msg)
	}

	var subject bytes.Buffer
	if err := t.subject.Execute(&subject, msg); err != nil {
		return "", "", fmt.Errorf("render %s subject: %w", t.kind, err)
	}
	var body bytes.Buffer
	if err := t.body.ExecuteTemplate(&body, "layout", msg); err != nil {
		return "", "", fmt.Errorf("render %s body: %w", t.kind, err)
	}
	return strings.TrimSpace(subject.String()), body.String(), nil
}

// All returns a template for every notification kind
func All() []*Template {
	return []*Template{
		Verification(),
		EligibilityResult(),
		FollowupFirst(),
		FollowupFinal(),
	}
}
