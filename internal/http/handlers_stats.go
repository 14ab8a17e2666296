package http

import (
	"net/http"
)

func (s *Server) handleMonthlyStats(w http.ResponseWriter, r *http.Request) {
	params, err := ParseMonthParams(r.URL.Query(), s.now())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	stats, err := s.stats.MonthlyStats(r.Context(), userIDFrom(r.Context()), params.Time())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(newMonthlyStatsView(stats)).Write(w)
}

func (s *Server) handleUpsertBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	b, err := s.ledger.UpsertBudget(r.Context(), userIDFrom(r.Context()), amount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(newBudgetView(b)).Write(w)
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	status, err := s.ledger.GetBudget(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(newBudgetStatusView(status)).Write(w)
}
