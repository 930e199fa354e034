// Package httpapi exposes negotiation and payment operations over HTTP.
//
// Every request except the payment webhook and the health check is
// authenticated by an Authenticator. Domain errors are rendered as
// {"error":{"code":...,"message":...}} with the status from statusFor.
package httpapi

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/roach88/assignly/internal/negotiation"
	"github.com/roach88/assignly/internal/reconcile"
)

// maxWebhookBytes bounds a webhook payload; Stripe events are far smaller.
const maxWebhookBytes = 65536

// Pinger reports store reachability for the health check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server holds the HTTP handlers.
type Server struct {
	engine          *negotiation.Engine
	payments        *reconcile.Processor
	health          Pinger
	auth            Authenticator
	validate        *validator.Validate
	maintenanceMode bool
	logger          *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithAuthenticator overrides the default HeaderAuthenticator.
func WithAuthenticator(a Authenticator) Option {
	return func(s *Server) { s.auth = a }
}

// WithMaintenanceMode turns maintenance mode on or off.
func WithMaintenanceMode(on bool) Option {
	return func(s *Server) { s.maintenanceMode = on }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New creates a Server.
func New(engine *negotiation.Engine, payments *reconcile.Processor, health Pinger, opts ...Option) *Server {
	s := &Server{
		engine:   engine,
		payments: payments,
		health:   health,
		auth:     HeaderAuthenticator{},
		validate: newValidator(),
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed http.Handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Post("/payments/webhook", s.handleWebhook)

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)

		r.Get("/assignments", s.handleList)
		r.Get("/assignments/{id}", s.handleGet)
		r.Get("/assignments/{id}/transactions", s.handleTransactions)

		r.Group(func(r chi.Router) {
			r.Use(s.maintenance)

			r.Post("/assignments", s.handleCreate)
			r.Delete("/assignments/{id}", s.handleDelete)
			r.Post("/assignments/{id}/quote", s.handleQuote)
			r.Post("/assignments/{id}/reject", s.handleProviderReject)
			r.Post("/assignments/{id}/respond-quote", s.handleRespond)
			r.Post("/assignments/{id}/complete", s.handleComplete)
			r.Post("/assignments/{id}/dispute", s.handleDispute)
			r.Post("/payments/intent", s.handleIntent)
		})
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.health.Ping(ctx); err != nil {
		s.logger.Error("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleIntent(w http.ResponseWriter, r *http.Request) {
	var req intentRequest
	if !s.decode(w, r, &req) {
		return
	}
	pi, err := s.payments.CreateIntent(r.Context(), actorFrom(r.Context()), req.AssignmentID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"clientSecret": pi.ClientSecret})
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := s.payments.Transactions(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(txs))
}

// handleWebhook acknowledges only after the effect is durably committed.
// Signature failures are 400 and must not be retried; storage failures are
// 500 so that the gateway redelivers.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadJSON, "unreadable webhook body")
		return
	}

	res, err := s.payments.HandleEvent(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		if de, ok := asSignature(err); ok {
			s.logger.Warn("webhook signature rejected",
				"remote_addr", r.RemoteAddr,
				"error", de)
		}
		s.fail(w, r, err)
		return
	}

	s.logger.Debug("webhook handled",
		"event_id", res.EventID,
		"type", res.EventType,
		"outcome", res.Outcome)
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func nonNil[T any](xs []T) []T {
	if xs == nil {
		return []T{}
	}
	return xs
}
