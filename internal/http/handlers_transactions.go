package http

import (
	"net/http"

	applog "welth/internal/log"
)

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	in, err := req.toInput()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	tx, err := s.ledger.CreateTransaction(r.Context(), userIDFrom(r.Context()), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Transaction created",
		applog.FieldTransactionID, tx.ID,
		applog.FieldAccountID, tx.AccountID,
		applog.FieldTxType, tx.Type,
		applog.FieldAmount, tx.Amount.StringFixed(2))
	NewJSONResponse().Status(http.StatusCreated).Body(newTransactionView(tx)).Write(w)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := s.ledger.GetTransaction(r.Context(), userIDFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(newTransactionView(tx)).Write(w)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	in, err := req.toInput()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	tx, err := s.ledger.UpdateTransaction(r.Context(), userIDFrom(r.Context()), r.PathValue("id"), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(newTransactionView(tx)).Write(w)
}

type bulkDeleteResponse struct {
	Deleted      int               `json:"deleted"`
	Transactions []transactionView `json:"transactions"`
}

func (s *Server) handleBulkDelete(w http.ResponseWriter, r *http.Request) {
	var req bulkDeleteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.deleteTransactions(w, r, req.IDs)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	s.deleteTransactions(w, r, []string{r.PathValue("id")})
}

func (s *Server) deleteTransactions(w http.ResponseWriter, r *http.Request, ids []string) {
	deleted, err := s.ledger.BulkDeleteTransactions(r.Context(), userIDFrom(r.Context()), ids)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Transactions deleted",
		applog.FieldOperation, applog.OpDelete,
		"count", len(deleted))
	NewJSONResponse().Body(bulkDeleteResponse{
		Deleted:      len(deleted),
		Transactions: newTransactionViews(deleted),
	}).Write(w)
}
