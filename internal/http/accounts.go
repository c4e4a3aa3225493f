package http

import (
	"net/http"

	"retromoney/internal/core"
)

type accountView struct {
	core.Account
	Display string `json:"display"`
}

func newAccountView(a core.Account) accountView {
	return accountView{Account: a, Display: money(a.Balance, a.Currency)}
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.svc.Accounts.ListAccounts(r.Context())
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	views := make([]accountView, 0, len(accounts))
	for _, a := range accounts {
		views = append(views, newAccountView(a))
	}
	NewJSONResponse().Data(views).Write(w)
}

func (s *Server) handleSetBalance(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	var req balanceRequest
	if err := decodeJSON(r, &req); err != nil {
		FromError(r, err).Write(w)
		return
	}
	balance, err := req.Balance.NonNegative("balance")
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	acc, err := s.svc.Accounts.SetBalance(r.Context(), id, balance)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Data(newAccountView(acc)).Write(w)
}

func (s *Server) handleResync(w http.ResponseWriter, r *http.Request) {
	n, err := s.svc.Accounts.Resync(r.Context())
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Data(map[string]int{"updated": n}).Write(w)
}

func (s *Server) handleListTransfers(w http.ResponseWriter, r *http.Request) {
	transfers, err := s.svc.Accounts.ListTransfers(r.Context())
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	if transfers == nil {
		transfers = []core.Transfer{}
	}
	NewJSONResponse().Data(transfers).Write(w)
}

// handleQuoteTransfer previews ?from=&to=&amount= without recording anything.
func (s *Server) handleQuoteTransfer(w http.ResponseWriter, r *http.Request) {
	from, err := queryID(r, "from")
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	to, err := queryID(r, "to")
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	gross, err := amountParam(r.URL.Query().Get("amount")).Positive("gross_amount")
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	quote, err := s.svc.Accounts.Quote(r.Context(), from, to, gross)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Data(quote).Write(w)
}

func (s *Server) handleRecordTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := decodeJSON(r, &req); err != nil {
		FromError(r, err).Write(w)
		return
	}
	t, err := req.toTransfer()
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	recorded, err := s.svc.Accounts.RecordTransfer(r.Context(), t)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Data(recorded).Write(w)
}

func (s *Server) handleDeleteTransfer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	if err := s.svc.Accounts.DeleteTransfer(r.Context(), id); err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Field("message", "transfer deleted").Write(w)
}

func (s *Server) handleExchangeRate(w http.ResponseWriter, r *http.Request) {
	rates := s.svc.Rates.Snapshot(r.Context())
	NewJSONResponse().Data(map[string]any{
		"buy":        rates.Buy,
		"sell":       rates.Sell,
		"updated_at": rates.UpdatedAt,
		"fallback":   rates.Fallback,
	}).Write(w)
}
