package http

import (
	"net/http"

	"retromoney/internal/services"
)

func (s *Server) handleListInvestments(w http.ResponseWriter, r *http.Request) {
	views, err := s.svc.Investments.List(r.Context())
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	if views == nil {
		views = []services.InvestmentView{}
	}
	NewJSONResponse().Data(views).Write(w)
}

func (s *Server) handleGetInvestment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	view, err := s.svc.Investments.Get(r.Context(), id)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Data(view).Write(w)
}

func (s *Server) handleCreateInvestment(w http.ResponseWriter, r *http.Request) {
	var req investmentRequest
	if err := decodeJSON(r, &req); err != nil {
		FromError(r, err).Write(w)
		return
	}
	inv, err := req.toInvestment()
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	created, err := s.svc.Investments.Create(r.Context(), inv)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Data(created).Write(w)
}

func (s *Server) handleUpdateInvestment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	var req investmentRequest
	if err := decodeJSON(r, &req); err != nil {
		FromError(r, err).Write(w)
		return
	}
	inv, err := req.toInvestment()
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	updated, err := s.svc.Investments.Update(r.Context(), id, inv)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Data(updated).Write(w)
}

func (s *Server) handleDeleteInvestment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	if err := s.svc.Investments.Delete(r.Context(), id); err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Field("message", "investment deleted").Write(w)
}
