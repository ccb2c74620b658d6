package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"registro/internal/core"
	"registro/internal/ledger"
)

type createTransactionRequest struct {
	Date       string `json:"date"`
	Amount     string `json:"amount"` // signed decimal, e.g. "-42,00"
	CategoryID int64  `json:"category_id"`
	AccountID  int64  `json:"account_id"`
	Note       string `json:"note"`
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	date, err := core.ParseDate(req.Date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	cents, err := core.ParseSignedCents(req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}

	tx, err := s.svc.RecordTransaction(r.Context(), date, cents, req.CategoryID, req.AccountID, req.Note)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.reportCache.Purge()
	writeJSON(w, http.StatusCreated, toTransactionJSON(tx))
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	txs := s.svc.ListTransactions(f)
	out := make([]transactionJSON, 0, len(txs))
	for _, t := range txs {
		out = append(out, toTransactionJSON(t))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeBadRequest(w, "invalid transaction id")
		return
	}

	tx, found := s.svc.Transaction(id)
	if !found {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: core.ErrUnknownTransaction.Error()})
		return
	}
	writeJSON(w, http.StatusOK, toTransactionJSON(tx))
}

type updateTransactionRequest struct {
	Date       *string `json:"date"`
	Amount     *string `json:"amount"`
	CategoryID *int64  `json:"category_id"`
	AccountID  *int64  `json:"account_id"`
	Note       *string `json:"note"`
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeBadRequest(w, "invalid transaction id")
		return
	}

	var req updateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	var upd ledger.TransactionUpdate
	if req.Date != nil {
		date, err := core.ParseDate(*req.Date)
		if err != nil {
			writeError(w, r, err)
			return
		}
		upd.Date = &date
	}
	if req.Amount != nil {
		cents, err := core.ParseSignedCents(*req.Amount)
		if err != nil {
			writeError(w, r, err)
			return
		}
		upd.Cents = &cents
	}
	upd.CategoryID = req.CategoryID
	upd.AccountID = req.AccountID
	upd.Note = req.Note

	tx, err := s.svc.UpdateTransaction(r.Context(), id, upd)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.reportCache.Purge()
	writeJSON(w, http.StatusOK, toTransactionJSON(tx))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeBadRequest(w, "invalid transaction id")
		return
	}

	if err := s.svc.DeleteTransaction(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}

	s.reportCache.Purge()
	w.WriteHeader(http.StatusNoContent)
}

// filterFromQuery builds a listing filter from query parameters:
// from, to (YYYY-MM-DD), category_id, account_id, include_deleted.
func filterFromQuery(r *http.Request) (ledger.Filter, error) {
	var f ledger.Filter
	q := r.URL.Query()

	if v := q.Get("from"); v != "" {
		date, err := core.ParseDate(v)
		if err != nil {
			return f, err
		}
		f.From = date
	}
	if v := q.Get("to"); v != "" {
		date, err := core.ParseDate(v)
		if err != nil {
			return f, err
		}
		f.To = date
	}
	if v := q.Get("category_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return f, err
		}
		f.CategoryID = id
	}
	if v := q.Get("account_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return f, err
		}
		f.AccountID = id
	}
	if v := q.Get("include_deleted"); v != "" {
		include, err := strconv.ParseBool(v)
		if err != nil {
			return f, err
		}
		f.IncludeDeleted = include
	}
	return f, nil
}
