// Package webhook is the message-transport bounded context: signature
// verification, idempotent delivery handling, and conversation dispatch.
package webhook

import (
	"github.com/jackc/pgx/v5/pgxpool"

	apphttp "caddie_backend/internal/http"
	"caddie_backend/platform/config"
	"caddie_backend/platform/logger"
)

// Module is the webhook bounded context implementing http.Module.
type Module struct {
	handler *Handler
	cfg     config.WebhookConfig
	log     *logger.Logger
}

// NewModule creates and initializes the webhook module.
func NewModule(pool *pgxpool.Pool, resolver memberResolver, conv conversationHandler, cfg config.WebhookConfig, log *logger.Logger) *Module {
	repo := NewRepository(pool)
	service := NewService(repo, resolver, conv, cfg, log)
	return &Module{
		handler: NewHandler(service),
		cfg:     cfg,
		log:     log,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "webhook"
}

// RegisterRoutes mounts the transport endpoints. Both are signed: the
// provider includes the shared-secret HMAC on every callback.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.V1.Group("/webhook")
	group.Use(SignatureMiddleware(m.cfg, m.log))
	group.POST("/inbound", m.handler.HandleInbound)
	group.POST("/status", m.handler.HandleDeliveryStatus)
}

// Compile-time check that Module implements http.Module.
var _ apphttp.Module = (*Module)(nil)
