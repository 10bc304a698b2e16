package handlers

import (
	"context"
	"net/http"
	"time"

	"autoinvest/src/schemas"
)

func (h *Handler) RunScheduled(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	startedAt := time.Now()
	results, err := h.Controller.RunScheduled(ctx)
	if err != nil {
		h.HandleErrors(w, err)
		return
	}

	h.respond(w, r, schemas.ExecutionBatchResponse{StartedAt: startedAt, Results: results}, 200)
}

func (h *Handler) CheckMarketDips(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	startedAt := time.Now()
	results, err := h.Controller.CheckMarketDips(ctx)
	if err != nil {
		h.HandleErrors(w, err)
		return
	}

	h.respond(w, r, schemas.ExecutionBatchResponse{StartedAt: startedAt, Results: results}, 200)
}
