package handlers

import (
	"encoding/json"
	"net/http"

	"autoinvest/src/utils"
	"autoinvest/src/worker/controllers"
)

type Handler struct {
	Controller *controllers.Controller
}

func NewHandler(controller *controllers.Controller) *Handler {
	return &Handler{Controller: controller}
}

func (h *Handler) respond(w http.ResponseWriter, _ *http.Request, data interface{}, status int) {
	res, err := json.Marshal(data)
	if err != nil {
		h.HandleErrors(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_, _ = w.Write(res)
}

func (h *Handler) HandleErrors(w http.ResponseWriter, err error) {
	h.Controller.Logger.WithError(err).Warn("worker request failed")
	httpErr := utils.ToHTTPError(err)
	h.respond(w, nil, map[string]string{"error": httpErr.Message}, httpErr.Code)
}
