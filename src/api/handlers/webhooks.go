package handlers

import (
	"context"
	"net/http"
	"time"

	"autoinvest/src/models"
	"autoinvest/src/schemas"
	"autoinvest/src/utils"
)

// PurchaseWebhook receives card purchases and feeds their spare change to the
// round-up buffer. Redelivered purchases are accepted and ignored.
func (h *Handler) PurchaseWebhook(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()
	ctx = utils.WithLogger(ctx, h.Logger)

	var req schemas.PurchaseWebhookRequest
	if err := decode(r, &req); err != nil {
		h.HandleErrors(w, err)
		return
	}

	result, err := h.Engine.ProcessRoundUp(ctx, models.PurchaseEvent{
		TransactionID: req.TransactionID,
		UserID:        req.UserID,
		Amount:        req.Amount,
	})
	if err != nil {
		h.HandleErrors(w, err)
		return
	}
	h.respond(w, r, schemas.RoundUpResponse{Triggered: result != nil, Execution: result}, http.StatusAccepted)
}
