package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"autoinvest/src/services"
	"autoinvest/src/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	Rules     services.RuleServiceI
	Ledger    services.TransactionLedgerI
	Valuation services.PortfolioValuationI
	Engine    services.ExecutionEngineI
	Logger    *logrus.Logger
}

func NewHandler(
	rules services.RuleServiceI,
	ledger services.TransactionLedgerI,
	valuation services.PortfolioValuationI,
	engine services.ExecutionEngineI,
	logger *logrus.Logger,
) *Handler {
	return &Handler{Rules: rules, Ledger: ledger, Valuation: valuation, Engine: engine, Logger: logger}
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
	httpErr := utils.ToHTTPError(err)
	if httpErr.Code >= http.StatusInternalServerError {
		h.Logger.WithError(err).Error("request failed")
	} else {
		h.Logger.Warning(err)
	}
	res, _ := json.Marshal(map[string]string{"error": httpErr.Message})
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(httpErr.Code)
	_, _ = w.Write(res)
}

func decode(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return utils.BadRequest(fmt.Sprintf("invalid request body: %v", err))
	}
	return nil
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, utils.BadRequest(fmt.Sprintf("invalid %s: %v", name, err))
	}
	return id, nil
}

// uuidQuery returns uuid.Nil when the parameter is absent.
func uuidQuery(r *http.Request, name string) (uuid.UUID, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, utils.BadRequest(fmt.Sprintf("invalid %s: %v", name, err))
	}
	return id, nil
}
