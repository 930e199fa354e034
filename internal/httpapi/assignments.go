package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/roach88/assignly/internal/domain"
	"github.com/roach88/assignly/internal/negotiation"
	"github.com/shopspring/decimal"
)

type createRequest struct {
	Title       string           `json:"title" validate:"required"`
	Description string           `json:"description"`
	Subject     string           `json:"subject" validate:"required"`
	Budget      *decimal.Decimal `json:"budget" validate:"required"`
	Deadline    *time.Time       `json:"deadline" validate:"required"`
	ProviderID  string           `json:"provider_id"`
}

type quoteRequest struct {
	Amount  *decimal.Decimal `json:"amount" validate:"required"`
	Comment string           `json:"comment"`
}

type respondRequest struct {
	Action       string           `json:"action" validate:"required,oneof=ACCEPT REJECT"`
	// Optional. When set, the response only applies to this quote.
	ProviderID   string           `json:"provider_id"`
	QuotedAmount *decimal.Decimal `json:"quoted_amount"`
}

func (r respondRequest) quote() negotiation.Quote {
	q := negotiation.Quote{Provider: r.ProviderID}
	if r.QuotedAmount != nil {
		q.Amount = *r.QuotedAmount
	}
	return q
}

type intentRequest struct {
	AssignmentID string `json:"assignment_id" validate:"required"`
}

type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !s.decode(w, r, &req) {
		return
	}
	a, err := s.engine.Create(r.Context(), actorFrom(r.Context()), negotiation.CreateInput{
		Title:       req.Title,
		Description: req.Description,
		Subject:     req.Subject,
		Budget:      *req.Budget,
		Deadline:    *req.Deadline,
		ProviderID:  req.ProviderID,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	var status domain.Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		st, err := domain.ParseStatus(raw)
		if err != nil {
			s.fail(w, r, domain.NewValidationError("%v", err))
			return
		}
		status = st
	}
	as, err := s.engine.List(r.Context(), actorFrom(r.Context()), status)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(as))
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	a, err := s.engine.Get(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Delete(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if !s.decode(w, r, &req) {
		return
	}
	a, err := s.engine.SubmitQuote(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"), *req.Amount, req.Comment)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleProviderReject(w http.ResponseWriter, r *http.Request) {
	if _, err := s.engine.RejectByProvider(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{
		Status:  "rejected",
		Message: "Assignment rejected and returned to pool.",
	})
}

func (s *Server) handleRespond(w http.ResponseWriter, r *http.Request) {
	var req respondRequest
	if !s.decode(w, r, &req) {
		return
	}
	resp, err := negotiation.ParseResponse(req.Action)
	if err != nil {
		s.fail(w, r, domain.NewValidationError("%v", err))
		return
	}
	if _, err := s.engine.RespondToQuote(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"), resp, req.quote()); err != nil {
		s.fail(w, r, err)
		return
	}

	out := statusResponse{Status: "confirmed", Message: "Quote accepted. Proceed to payment."}
	if resp == negotiation.Reject {
		out = statusResponse{Status: "rejected", Message: "Quote rejected. Assignment is back to pending review."}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	a, err := s.engine.Complete(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleDispute(w http.ResponseWriter, r *http.Request) {
	a, err := s.engine.Dispute(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func asSignature(err error) (*domain.Error, bool) {
	var de *domain.Error
	if errors.As(err, &de) && de.Code == domain.ErrCodeSignature {
		return de, true
	}
	return nil, false
}
