package api

import (
	"net/http"
	"time"

	handlers "autoinvest/src/api/handlers"

	"github.com/go-chi/chi/v5"
)

type Server struct {
	Router  *chi.Mux
	Handler *handlers.Handler
}

func NewServer(handler *handlers.Handler) *Server {
	server := &Server{
		Router:  chi.NewRouter(),
		Handler: handler,
	}
	server.InitRoutes()
	return server
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

func (s *Server) InitRoutes() {
	s.Router.Get("/alive", handlers.Healthcheck)

	s.Router.Route("/api/rules", func(r chi.Router) {
		r.Get("/", s.Handler.ListRules)
		r.Post("/", s.Handler.CreateRule)
		r.Get("/{id}", s.Handler.GetRule)
		r.Put("/{id}", s.Handler.UpdateRule)
		r.Delete("/{id}", s.Handler.DeleteRule)
	})

	s.Router.Route("/api/portfolios/{id}", func(r chi.Router) {
		r.Get("/transactions", s.Handler.ListTransactions)
		r.Post("/valuation", s.Handler.RecalculateValuation)
	})

	s.Router.Post("/api/transactions/{id}/cancel", s.Handler.CancelTransaction)
	s.Router.Post("/api/webhooks/transactions", s.Handler.PurchaseWebhook)
}

func NewHTTPServer(server *Server, port string) *http.Server {
	httpServer := &http.Server{
		Addr:         ":" + port,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		Handler:      server,
	}
	return httpServer
}
