// Package engagement is the reply engagement bounded context: thread
// correlation, classification, campaign attribution and scoring, and
// follow-up sequence scheduling.
package engagement

import (
	"context"

	"replyflow_backend/internal/classify"
	"replyflow_backend/internal/config"
	"replyflow_backend/internal/crm"
	"replyflow_backend/internal/email"
	"replyflow_backend/internal/engagement/domain"
	"replyflow_backend/internal/engagement/handler"
	"replyflow_backend/internal/engagement/sequences"
	"replyflow_backend/internal/engagement/service"
	"replyflow_backend/internal/engagement/threads"
	"replyflow_backend/internal/events"
	apphttp "replyflow_backend/internal/http"
	"replyflow_backend/platform/logger"
	"replyflow_backend/platform/validator"
)

// Module wires the engagement context together and exposes its routes.
type Module struct {
	handler     *handler.Handler
	service     *service.Service
	seqService  *sequences.Service
	threadStore *threads.Store
	seqStore    *sequences.Store
}

// NewModule composes the pipeline. The mail transport, CRM, and classifier
// are passed in so the binaries can choose real or local implementations.
func NewModule(
	cfg *config.Config,
	crmStore crm.Store,
	classifier classify.Classifier,
	sender email.Sender,
	notifier *email.Notifier,
	bus events.Bus,
	val *validator.Validator,
	log *logger.Logger,
) *Module {
	threadStore := threads.NewStore()
	correlator := threads.NewCorrelator(threadStore, log)

	seqStore := sequences.NewStore()
	contactResolver := crmContactResolver{store: crmStore}
	seqService := sequences.NewService(seqStore, email.NewStepDelivery(sender), contactResolver, bus, log)

	var responder *email.Responder
	if sender != nil {
		responder = email.NewResponder(sender, log)
	}

	svc := service.New(
		threadStore,
		correlator,
		classifier,
		crmStore,
		seqService,
		notifier,
		responder,
		bus,
		log,
		cfg.OpportunityScoreThreshold,
	)

	return &Module{
		handler:     handler.New(svc, seqService, threadStore, val),
		service:     svc,
		seqService:  seqService,
		threadStore: threadStore,
		seqStore:    seqStore,
	}
}

func (m *Module) Name() string { return "engagement" }

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.V1.Group("/engagement"))
}

// Service exposes the pipeline for the scheduler worker.
func (m *Module) Service() *service.Service { return m.service }

// Sequences exposes the follow-up scheduler for the sweep jobs.
func (m *Module) Sequences() *sequences.Service { return m.seqService }

// Threads exposes the thread store for retention pruning and snapshots.
func (m *Module) Threads() *threads.Store { return m.threadStore }

// crmContactResolver adapts the CRM store to the sequence scheduler's
// contact lookup.
type crmContactResolver struct {
	store crm.Store
}

func (r crmContactResolver) ContactByID(ctx context.Context, contactID string) (domain.Contact, error) {
	return r.store.ContactByID(ctx, contactID)
}
