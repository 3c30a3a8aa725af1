package router

import (
	"sync"

	"github.com/Matthias0x44/RyUnfair/internal/domain/entity"
	"github.com/Matthias0x44/RyUnfair/internal/usecase"
	"github.com/Matthias0x44/RyUnfair/pkg/logger"
)

// KindRouter routes notifications to the template registered for their kind
type KindRouter struct {
	mu        sync.RWMutex
	templates map[entity.NotificationKind]usecase.NotificationTemplate
	logger    logger.Logger
}

// NewKindRouter creates a new kind router
func NewKindRouter(logger logger.Logger) *KindRouter {
	return &KindRouter{
		templates: make(map[entity.NotificationKind]usecase.NotificationTemplate),
		logger:    logger,
	}
}

// Register registers a template, replacing any earlier one for the same kind
func (r *KindRouter) Register(tmpl usecase.NotificationTemplate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.templates[tmpl.Kind()]; exists {
		r.logger.Warn("Replacing registered template", "kind", tmpl.Kind())
	}
	r.templates[tmpl.Kind()] = tmpl
	r.logger.Info("Registered template", "kind", tmpl.Kind())
}

// GetTemplate returns the template for kind
func (r *KindRouter) GetTemplate(kind entity.NotificationKind) usecase.NotificationTemplate {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.templates[kind]
}
