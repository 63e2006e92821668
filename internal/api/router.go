package api

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires all routes. Everything under /api/v1 except login requires
// a bearer token.
func NewRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")

	apiV1 := r.PathPrefix("/api/v1").Subrouter()
	apiV1.HandleFunc("/login", h.Login).Methods("POST")
	apiV1.HandleFunc("/logout", h.requireAuth(h.Logout)).Methods("POST")

	apiV1.HandleFunc("/chat/start", h.requireAuth(h.StartChat)).Methods("POST")
	apiV1.HandleFunc("/chat/messages", h.requireAuth(h.PostMessage)).Methods("POST")
	apiV1.HandleFunc("/chat/messages", h.requireAuth(h.GetMessages)).Methods("GET")

	apiV1.HandleFunc("/wallet", h.requireAuth(h.GetWallet)).Methods("GET")
	apiV1.HandleFunc("/wallet/recharge", h.requireAuth(h.RechargeWallet)).Methods("POST")

	apiV1.HandleFunc("/bets", h.requireAuth(h.GetBets)).Methods("GET")
	apiV1.HandleFunc("/profile/plan", h.requireAuth(h.UpdatePlan)).Methods("PUT")

	return r
}
