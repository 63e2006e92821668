package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/betmaestro/betmaestro/internal/conversation"
	"github.com/betmaestro/betmaestro/internal/domain"
	"github.com/betmaestro/betmaestro/internal/store"
)

// Metrics
var (
	httpReqTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "betmaestro_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "endpoint", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "betmaestro_http_request_duration_seconds",
		Help:    "Request latency",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5},
	}, []string{"method", "endpoint"})
)

const (
	basicStartingBalance   = 500
	previewStartingBalance = 1250
	defaultRechargeAmount  = 100
)

// Backend is everything the handlers and the conversation controllers need
// from storage.
type Backend interface {
	conversation.Store
	conversation.WalletLedger
	conversation.BetBook

	UpsertUser(ctx context.Context, user domain.User) error
	GetUser(ctx context.Context, id string) (domain.User, error)
	SetPlan(ctx context.Context, id string, plan domain.Plan) error
	EnsureWallet(ctx context.Context, userID string, initial float64) error
}

type Handler struct {
	backend     Backend
	greeter     conversation.GreetingProvider
	strategist  conversation.StrategyProvider
	jwtSecret   []byte
	settleDelay time.Duration
	log         zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

// session pairs a live controller with the navigation signal its Navigator
// writes into; the route is drained into the next chat response.
type session struct {
	ctrl *conversation.Controller
	nav  *navSignal
}

type navSignal struct {
	mu    sync.Mutex
	route string
}

func (n *navSignal) NavigateTo(route string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.route = route
}

func (n *navSignal) drain() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	route := n.route
	n.route = ""
	return route
}

func NewHandler(backend Backend, greeter conversation.GreetingProvider, strategist conversation.StrategyProvider, jwtSecret string, settleDelay time.Duration, log zerolog.Logger) *Handler {
	return &Handler{
		backend:     backend,
		greeter:     greeter,
		strategist:  strategist,
		jwtSecret:   []byte(jwtSecret),
		settleDelay: settleDelay,
		log:         log.With().Str("component", "api").Logger(),
		sessions:    make(map[string]*session),
	}
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"}, r.Method, "/health")
}

// Login provisions the user (with a starting balance on first login), clears
// any conversation left over from a previous identity and issues a token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpLatency.WithLabelValues("POST", "/login"))
	defer timer.ObserveDuration()

	var req struct {
		Name    string `json:"name"`
		Preview bool   `json:"preview"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid JSON", "POST", "/login")
		return
	}

	user := domain.User{}
	initial := float64(basicStartingBalance)
	if req.Preview {
		user = domain.User{ID: "demo-user", Name: "Demo User", Plan: domain.PlanPremium}
		initial = previewStartingBalance
	} else {
		if strings.TrimSpace(req.Name) == "" {
			h.respondError(w, http.StatusUnprocessableEntity, "Name required", "POST", "/login")
			return
		}
		name := strings.TrimSpace(req.Name)
		user = domain.User{
			ID:   "user-" + strings.ToLower(strings.ReplaceAll(name, " ", "-")),
			Name: name,
			Plan: domain.PlanBasic,
		}
	}

	ctx := r.Context()
	if err := h.backend.UpsertUser(ctx, user); err != nil {
		h.respondError(w, http.StatusInternalServerError, "Could not create user", "POST", "/login")
		return
	}
	if err := h.backend.EnsureWallet(ctx, user.ID, initial); err != nil {
		h.respondError(w, http.StatusInternalServerError, "Could not create wallet", "POST", "/login")
		return
	}

	// A fresh login never inherits a previous conversation.
	h.dropSession(user.ID)
	if err := h.backend.Clear(ctx, user.ID); err != nil {
		h.log.Warn().Err(err).Str("user_id", user.ID).Msg("conversation clear on login failed")
	}

	stored, err := h.backend.GetUser(ctx, user.ID)
	if err == nil {
		user = stored
	}

	token, err := h.issueToken(user.ID, user.Name)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "Could not issue token", "POST", "/login")
		return
	}

	balance, _ := h.backend.Balance(ctx, user.ID)
	h.respondJSON(w, http.StatusOK, map[string]any{
		"token":   token,
		"user":    user,
		"balance": balance,
	}, "POST", "/login")
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r.Context())
	if sess := h.takeSession(userID); sess != nil {
		if err := sess.ctrl.Reset(r.Context()); err != nil {
			h.log.Warn().Err(err).Str("user_id", userID).Msg("conversation reset on logout failed")
		}
	} else if err := h.backend.Clear(r.Context(), userID); err != nil {
		h.log.Warn().Err(err).Str("user_id", userID).Msg("conversation clear on logout failed")
	}
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "logged out"}, "POST", "/logout")
}

func (h *Handler) StartChat(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpLatency.WithLabelValues("POST", "/chat/start"))
	defer timer.ObserveDuration()

	sess, err := h.getSession(r)
	if err != nil {
		h.respondError(w, http.StatusNotFound, "Unknown user", "POST", "/chat/start")
		return
	}
	if err := sess.ctrl.Start(r.Context()); err != nil {
		h.respondError(w, http.StatusInternalServerError, "Could not start conversation", "POST", "/chat/start")
		return
	}
	h.respondChat(w, sess, "POST", "/chat/start")
}

func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpLatency.WithLabelValues("POST", "/chat/messages"))
	defer timer.ObserveDuration()

	var req struct {
		Text  string `json:"text"`
		Label string `json:"label"`
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid JSON", "POST", "/chat/messages")
		return
	}

	var in conversation.Input
	switch {
	case req.Value != "":
		in = conversation.Input{Label: req.Label, Value: req.Value}
		if in.Label == "" {
			in.Label = req.Value
		}
	case strings.TrimSpace(req.Text) != "":
		in = conversation.Text(strings.TrimSpace(req.Text))
	default:
		h.respondError(w, http.StatusUnprocessableEntity, "Empty message", "POST", "/chat/messages")
		return
	}

	sess, err := h.getSession(r)
	if err != nil {
		h.respondError(w, http.StatusNotFound, "Unknown user", "POST", "/chat/messages")
		return
	}
	if err := sess.ctrl.Submit(r.Context(), in); err != nil {
		h.respondError(w, http.StatusInternalServerError, "Could not process message", "POST", "/chat/messages")
		return
	}
	h.respondChat(w, sess, "POST", "/chat/messages")
}

func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	sess, err := h.getSession(r)
	if err != nil {
		h.respondError(w, http.StatusNotFound, "Unknown user", "GET", "/chat/messages")
		return
	}
	h.respondChat(w, sess, "GET", "/chat/messages")
}

func (h *Handler) GetWallet(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r.Context())
	balance, err := h.backend.Balance(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			h.respondError(w, http.StatusNotFound, "Wallet not found", "GET", "/wallet")
			return
		}
		h.respondError(w, http.StatusInternalServerError, err.Error(), "GET", "/wallet")
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]float64{"balance": balance}, "GET", "/wallet")
}

func (h *Handler) RechargeWallet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount float64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid JSON", "POST", "/wallet/recharge")
		return
	}
	if req.Amount == 0 {
		req.Amount = defaultRechargeAmount
	}

	userID := userIDFrom(r.Context())
	balance, err := h.backend.Credit(r.Context(), userID, req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrInvalidAmount):
			h.respondError(w, http.StatusUnprocessableEntity, "Amount must be positive", "POST", "/wallet/recharge")
		case errors.Is(err, store.ErrUserNotFound):
			h.respondError(w, http.StatusNotFound, "Wallet not found", "POST", "/wallet/recharge")
		default:
			h.respondError(w, http.StatusInternalServerError, err.Error(), "POST", "/wallet/recharge")
		}
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]float64{"balance": balance}, "POST", "/wallet/recharge")
}

func (h *Handler) GetBets(w http.ResponseWriter, r *http.Request) {
	bets, err := h.backend.All(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, err.Error(), "GET", "/bets")
		return
	}
	if bets == nil {
		bets = []domain.Bet{}
	}
	h.respondJSON(w, http.StatusOK, bets, "GET", "/bets")
}

func (h *Handler) UpdatePlan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Plan domain.Plan `json:"plan"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid JSON", "PUT", "/profile/plan")
		return
	}
	if req.Plan != domain.PlanBasic && req.Plan != domain.PlanPremium {
		h.respondError(w, http.StatusUnprocessableEntity, "Plan must be basic or premium", "PUT", "/profile/plan")
		return
	}

	userID := userIDFrom(r.Context())
	if err := h.backend.SetPlan(r.Context(), userID, req.Plan); err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			h.respondError(w, http.StatusNotFound, "User not found", "PUT", "/profile/plan")
			return
		}
		h.respondError(w, http.StatusInternalServerError, err.Error(), "PUT", "/profile/plan")
		return
	}

	h.mu.Lock()
	if sess, ok := h.sessions[userID]; ok {
		sess.ctrl.SetPlan(req.Plan)
	}
	h.mu.Unlock()

	h.respondJSON(w, http.StatusOK, map[string]string{"plan": string(req.Plan)}, "PUT", "/profile/plan")
}

// getSession returns the live controller for the authenticated user, building
// one (restoring any persisted conversation) on first touch.
func (h *Handler) getSession(r *http.Request) (*session, error) {
	userID := userIDFrom(r.Context())

	h.mu.Lock()
	defer h.mu.Unlock()
	if sess, ok := h.sessions[userID]; ok {
		return sess, nil
	}

	user, err := h.backend.GetUser(r.Context(), userID)
	if err != nil {
		return nil, err
	}

	nav := &navSignal{}
	ctrl := conversation.New(r.Context(), conversation.Config{
		User:        user,
		Store:       h.backend,
		Wallet:      h.backend,
		Bets:        h.backend,
		Greeter:     h.greeter,
		Strategist:  h.strategist,
		Navigator:   nav,
		SettleDelay: h.settleDelay,
		Logger:      h.log,
	})
	sess := &session{ctrl: ctrl, nav: nav}
	h.sessions[userID] = sess
	return sess, nil
}

func (h *Handler) dropSession(userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, userID)
}

func (h *Handler) takeSession(userID string) *session {
	h.mu.Lock()
	defer h.mu.Unlock()
	sess := h.sessions[userID]
	delete(h.sessions, userID)
	return sess
}

func (h *Handler) respondChat(w http.ResponseWriter, sess *session, method, endpoint string) {
	payload := map[string]any{
		"messages": sess.ctrl.Messages(),
		"state":    sess.ctrl.State(),
	}
	if route := sess.nav.drain(); route != "" {
		payload["navigateTo"] = route
	}
	h.respondJSON(w, http.StatusOK, payload, method, endpoint)
}

// Helpers
func (h *Handler) respondJSON(w http.ResponseWriter, code int, payload interface{}, method, endpoint string) {
	httpReqTotal.WithLabelValues(method, endpoint, strconv.Itoa(code)).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}

func (h *Handler) respondError(w http.ResponseWriter, code int, msg, method, endpoint string) {
	h.respondJSON(w, code, map[string]string{"error": msg}, method, endpoint)
}
