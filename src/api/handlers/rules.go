package handlers

import (
	"context"
	"net/http"
	"time"

	"autoinvest/src/schemas"
	"autoinvest/src/utils"
)

func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	ctx = utils.WithLogger(ctx, h.Logger)

	userID, err := uuidQuery(r, "user_id")
	if err != nil {
		h.HandleErrors(w, err)
		return
	}

	rules, err := h.Rules.ListByUser(ctx, userID)
	if err != nil {
		h.HandleErrors(w, err)
		return
	}
	h.respond(w, r, rules, http.StatusOK)
}

func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	ctx = utils.WithLogger(ctx, h.Logger)

	id, err := uuidParam(r, "id")
	if err != nil {
		h.HandleErrors(w, err)
		return
	}

	rule, err := h.Rules.Get(ctx, id)
	if err != nil {
		h.HandleErrors(w, err)
		return
	}
	h.respond(w, r, rule, http.StatusOK)
}

func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	ctx = utils.WithLogger(ctx, h.Logger)

	var req schemas.CreateRuleRequest
	if err := decode(r, &req); err != nil {
		h.HandleErrors(w, err)
		return
	}

	rule, err := h.Rules.Create(ctx, &req)
	if err != nil {
		h.HandleErrors(w, err)
		return
	}
	h.respond(w, r, rule, http.StatusCreated)
}

func (h *Handler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	ctx = utils.WithLogger(ctx, h.Logger)

	id, err := uuidParam(r, "id")
	if err != nil {
		h.HandleErrors(w, err)
		return
	}
	var req schemas.UpdateRuleRequest
	if err := decode(r, &req); err != nil {
		h.HandleErrors(w, err)
		return
	}
	req.ID = id

	rule, err := h.Rules.Update(ctx, &req)
	if err != nil {
		h.HandleErrors(w, err)
		return
	}
	h.respond(w, r, rule, http.StatusOK)
}

func (h *Handler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	ctx = utils.WithLogger(ctx, h.Logger)

	id, err := uuidParam(r, "id")
	if err != nil {
		h.HandleErrors(w, err)
		return
	}
	userID, err := uuidQuery(r, "user_id")
	if err != nil {
		h.HandleErrors(w, err)
		return
	}

	if err := h.Rules.Delete(ctx, id, userID); err != nil {
		h.HandleErrors(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
