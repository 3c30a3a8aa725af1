package usecase

import (
	"github.com/Matthias0x44/RyUnfair/internal/domain/entity"
)

// NotificationTemplate renders one notification kind
type NotificationTemplate interface {
	// Kind is the notification kind this template renders
	Kind() entity.NotificationKind

	// Render produces the subject and HTML body. It returns
	// entity.ErrInvalidMessage when msg is not the kind's context type.
	Render(msg entity.MessageContext) (subject, html string, err error)
}

// TemplateRouter resolves the template for a notification kind
type TemplateRouter interface {
	// Register registers a template under its kind
	Register(tmpl NotificationTemplate)

	// GetTemplate returns the template for kind, or nil when none is registered
	GetTemplate(kind entity.NotificationKind) NotificationTemplate
}
