package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/example/swachh-infra/internal/khata"
	"github.com/example/swachh-infra/internal/security"
)

type stockActionRequest struct {
	Date   string `json:"date"`
	Amount any    `json:"amount"`
}

// writeLedgerError maps ledger errors onto the response envelope: validation
// and stock-floor failures are client errors with their message passed
// through, everything else is an opaque 500.
func writeLedgerError(w http.ResponseWriter, r *http.Request, err error) {
	if khata.IsValidation(err) || errors.Is(err, khata.ErrInsufficientStock) {
		security.WriteJSONError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	security.WriteJSONError(w, r, http.StatusInternalServerError, "internal error")
}

func handleDashboard(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date := r.URL.Query().Get("date")

		d, err := deps.Ledger.Dashboard(r.Context(), date)
		if err != nil {
			writeLedgerError(w, r, err)
			return
		}

		writeData(w, r, http.StatusOK, "", map[string]any{
			"summary":      d.Summary,
			"today":        d.Today,
			"transactions": d.Transactions,
		})
	}
}

func handleAdd(deps Dependencies) http.HandlerFunc {
	return handleStockAction(deps, khata.TxMake)
}

func handleSell(deps Dependencies) http.HandlerFunc {
	return handleStockAction(deps, khata.TxSell)
}

func handleStockAction(deps Dependencies, typ khata.TxType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req stockActionRequest
		dec := json.NewDecoder(r.Body)
		dec.UseNumber()
		if err := dec.Decode(&req); err != nil {
			security.WriteJSONError(w, r, http.StatusBadRequest, "request body is not valid JSON")
			return
		}

		amount, err := khata.ParseAmount(req.Amount)
		if err != nil {
			writeLedgerError(w, r, err)
			return
		}

		var res *khata.Result
		var message string
		switch typ {
		case khata.TxSell:
			res, err = deps.Ledger.SellStock(r.Context(), req.Date, amount)
			message = "Stock sold"
		default:
			res, err = deps.Ledger.AddStock(r.Context(), req.Date, amount)
			message = "Stock added"
		}
		if err != nil {
			writeLedgerError(w, r, err)
			return
		}

		writeData(w, r, http.StatusOK, message, res)
	}
}

func handleReset(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Ledger.Reset(r.Context()); err != nil {
			writeLedgerError(w, r, err)
			return
		}

		if deps.Auditor != nil {
			cid := security.CorrelationIDFromContext(r.Context())
			deps.Auditor.Append(fmt.Sprintf("cid=%s action=reset_ledger", cid))
		}

		writeData(w, r, http.StatusOK, "Ledger reset", nil)
	}
}

func handleReport(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date := r.URL.Query().Get("date")
		if date == "" {
			date = time.Now().UTC().Format("2006-01-02")
		}

		d, err := deps.Ledger.Dashboard(r.Context(), date)
		if err != nil {
			writeLedgerError(w, r, err)
			return
		}

		// Render to a buffer first so a renderer failure can still produce a
		// JSON error response.
		var buf bytes.Buffer
		if err := khata.BuildReport(d).WriteXLSX(&buf); err != nil {
			security.WriteJSONError(w, r, http.StatusInternalServerError, "failed to render report")
			return
		}

		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="khata-report-%s.xlsx"`, date))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(buf.Bytes())
	}
}

func handleAuditTrail(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Auditor == nil {
			security.WriteJSONError(w, r, http.StatusServiceUnavailable, "audit trail unavailable")
			return
		}

		writeData(w, r, http.StatusOK, "", map[string]any{
			"verified": deps.Auditor.Verify(),
			"entries":  deps.Auditor.Entries(),
		})
	}
}
