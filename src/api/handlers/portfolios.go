package handlers

import (
	"context"
	"net/http"
	"time"

	"autoinvest/src/utils"
)

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	ctx = utils.WithLogger(ctx, h.Logger)

	portfolioID, err := uuidParam(r, "id")
	if err != nil {
		h.HandleErrors(w, err)
		return
	}

	transactions, err := h.Ledger.ListByPortfolio(ctx, portfolioID)
	if err != nil {
		h.HandleErrors(w, err)
		return
	}
	h.respond(w, r, transactions, http.StatusOK)
}

func (h *Handler) RecalculateValuation(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	ctx = utils.WithLogger(ctx, h.Logger)

	portfolioID, err := uuidParam(r, "id")
	if err != nil {
		h.HandleErrors(w, err)
		return
	}

	valuation, err := h.Valuation.Recalculate(ctx, portfolioID)
	if err != nil {
		h.HandleErrors(w, err)
		return
	}
	h.respond(w, r, valuation, http.StatusOK)
}

func (h *Handler) CancelTransaction(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	ctx = utils.WithLogger(ctx, h.Logger)

	id, err := uuidParam(r, "id")
	if err != nil {
		h.HandleErrors(w, err)
		return
	}

	txn, err := h.Ledger.Cancel(ctx, id)
	if err != nil {
		h.HandleErrors(w, err)
		return
	}
	h.respond(w, r, txn, http.StatusOK)
}
