package http

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"retromoney/internal/core"
)

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	month, err := queryMonth(r)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	if month == "" {
		month = core.CurrentMonth(time.Now())
	}
	expenses, err := s.svc.Expenses.ListExpenses(r.Context(), month)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	if expenses == nil {
		expenses = []core.Expense{}
	}
	NewJSONResponse().Field("month", month).Data(expenses).Write(w)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decodeJSON(r, &req); err != nil {
		FromError(r, err).Write(w)
		return
	}
	e, err := req.toExpense()
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	created, err := s.svc.Expenses.CreateExpense(r.Context(), e)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Data(created).Write(w)
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	e, err := s.svc.Expenses.GetExpense(r.Context(), id)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Data(e).Write(w)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	var req expenseRequest
	if err := decodeJSON(r, &req); err != nil {
		FromError(r, err).Write(w)
		return
	}
	e, err := req.toExpense()
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	updated, err := s.svc.Expenses.UpdateExpense(r.Context(), id, e)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Data(updated).Write(w)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	if err := s.svc.Expenses.DeleteExpense(r.Context(), id); err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Field("message", "expense deleted").Write(w)
}

func (s *Server) handleGetSalary(w http.ResponseWriter, r *http.Request) {
	salary, err := s.svc.Budget.GetSalary(r.Context())
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Data(map[string]any{
		"monthly_salary": salary,
		"display":        money(salary, core.CurrencyUSD),
	}).Write(w)
}

func (s *Server) handleChangeSalary(w http.ResponseWriter, r *http.Request) {
	var req salaryRequest
	if err := decodeJSON(r, &req); err != nil {
		FromError(r, err).Write(w)
		return
	}
	salary, err := parseSalary(req.MonthlySalary)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	if err := s.svc.Budget.ChangeSalary(r.Context(), salary); err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Data(map[string]any{"monthly_salary": salary}).Write(w)
}

// parseSalary lets the service reject negatives so the error names the salary.
func parseSalary(a amountParam) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(string(a))
	if err != nil {
		return decimal.Zero, core.Invalid("monthly_salary", core.ErrInvalidAmount)
	}
	return d, nil
}

func (s *Server) handleAllocations(w http.ResponseWriter, r *http.Request) {
	month, err := queryMonth(r)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	report, err := s.svc.Budget.GetAllocations(r.Context(), month)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Data(report).Write(w)
}

func (s *Server) handleRedistribute(w http.ResponseWriter, r *http.Request) {
	var req redistributeRequest
	if err := decodeJSON(r, &req); err != nil {
		FromError(r, err).Write(w)
		return
	}
	var month core.Month
	if req.Month != "" {
		m, err := core.ParseMonth(req.Month)
		if err != nil {
			FromError(r, err).Write(w)
			return
		}
		month = m
	}
	changes, err := req.changes()
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	report, err := s.svc.Budget.Redistribute(r.Context(), changes, month)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Data(report).Write(w)
}

func (s *Server) handleCheckExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decodeJSON(r, &req); err != nil {
		FromError(r, err).Write(w)
		return
	}
	e, err := req.toExpense()
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	check, err := s.svc.Budget.CheckExpense(r.Context(), e)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Data(check).Write(w)
}
