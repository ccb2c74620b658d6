package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"registro/internal/core"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeError maps domain errors onto HTTP status codes:
// rejected input 422, missing records 404, conflicting state 409,
// storage corruption or IO 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrInvalidKind),
		errors.Is(err, core.ErrInvalidAccountType),
		errors.Is(err, core.ErrEmptyName),
		errors.Is(err, core.ErrNoteTooLong):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrUnknownCategory),
		errors.Is(err, core.ErrUnknownAccount),
		errors.Is(err, core.ErrUnknownTransaction):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrDuplicateName),
		errors.Is(err, core.ErrCategoryInUse),
		errors.Is(err, core.ErrAccountInUse),
		errors.Is(err, core.ErrCycleDetected),
		errors.Is(err, core.ErrKindMismatch):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "Request failed",
			"method", r.Method, "url", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// Wire representations. Amounts travel both as raw cents and as the
// formatted decimal string for display.

type transactionJSON struct {
	ID          int64  `json:"id"`
	Date        string `json:"date"`
	AmountCents int64  `json:"amount_cents"`
	Amount      string `json:"amount"`
	CategoryID  int64  `json:"category_id"`
	AccountID   int64  `json:"account_id,omitempty"`
	Note        string `json:"note,omitempty"`
	CreatedAt   string `json:"created_at"`
	Version     int64  `json:"version"`
	Deleted     bool   `json:"deleted,omitempty"`
}

func toTransactionJSON(t core.Transaction) transactionJSON {
	return transactionJSON{
		ID:          t.ID,
		Date:        t.Date.String(),
		AmountCents: t.Amount.Cents,
		Amount:      core.FormatCents(t.Amount.Cents),
		CategoryID:  t.CategoryID,
		AccountID:   t.AccountID,
		Note:        t.Note,
		CreatedAt:   t.CreatedAt.UTC().Format(time.RFC3339),
		Version:     t.Version,
		Deleted:     t.Deleted,
	}
}

type categoryJSON struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	ParentID int64  `json:"parent_id,omitempty"`
}

func toCategoryJSON(c core.Category) categoryJSON {
	return categoryJSON{ID: c.ID, Name: c.Name, Kind: string(c.Kind), ParentID: c.ParentID}
}

type accountJSON struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

func toAccountJSON(a core.Account) accountJSON {
	return accountJSON{ID: a.ID, Name: a.Name, Type: string(a.Type)}
}
