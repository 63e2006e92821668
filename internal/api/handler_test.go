package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/betmaestro/betmaestro/internal/domain"
	"github.com/betmaestro/betmaestro/internal/provider"
	"github.com/betmaestro/betmaestro/internal/store"
)

type loginResponse struct {
	Token   string      `json:"token"`
	User    domain.User `json:"user"`
	Balance float64     `json:"balance"`
}

type chatResponse struct {
	Messages   []domain.Message `json:"messages"`
	State      domain.ChatState `json:"state"`
	NavigateTo string           `json:"navigateTo"`
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	backend := store.NewMemory()
	static := provider.NewStatic()
	h := NewHandler(backend, static, static, "test-secret", time.Millisecond, zerolog.Nop())
	srv := httptest.NewServer(NewRouter(h))
	t.Cleanup(srv.Close)
	return srv
}

func request(t *testing.T, srv *httptest.Server, method, path, token string, body, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func login(t *testing.T, srv *httptest.Server, body any) loginResponse {
	t.Helper()
	var resp loginResponse
	code := request(t, srv, http.MethodPost, "/api/v1/login", "", body, &resp)
	require.Equal(t, http.StatusOK, code)
	require.NotEmpty(t, resp.Token)
	return resp
}

func TestLoginValidation(t *testing.T) {
	srv := newTestServer(t)

	code := request(t, srv, http.MethodPost, "/api/v1/login", "", map[string]any{"name": "  "}, nil)
	require.Equal(t, http.StatusUnprocessableEntity, code)

	resp := login(t, srv, map[string]any{"preview": true})
	require.Equal(t, "demo-user", resp.User.ID)
	require.Equal(t, domain.PlanPremium, resp.User.Plan)
	require.Equal(t, 1250.0, resp.Balance)

	named := login(t, srv, map[string]any{"name": "Nick Fisher"})
	require.Equal(t, "user-nick-fisher", named.User.ID)
	require.Equal(t, domain.PlanBasic, named.User.Plan)
	require.Equal(t, 500.0, named.Balance)
}

func TestAuthRequired(t *testing.T) {
	srv := newTestServer(t)

	code := request(t, srv, http.MethodGet, "/api/v1/wallet", "", nil, nil)
	require.Equal(t, http.StatusUnauthorized, code)

	code = request(t, srv, http.MethodGet, "/api/v1/wallet", "not-a-token", nil, nil)
	require.Equal(t, http.StatusUnauthorized, code)
}

func TestPreviewChatFlowPlacesBets(t *testing.T) {
	srv := newTestServer(t)
	token := login(t, srv, map[string]any{"preview": true}).Token

	var chat chatResponse
	code := request(t, srv, http.MethodPost, "/api/v1/chat/start", token, nil, &chat)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, domain.StateAwaitingAmount, chat.State)
	require.NotEmpty(t, chat.Messages)

	code = request(t, srv, http.MethodPost, "/api/v1/chat/messages", token,
		map[string]any{"label": "100€", "value": "100"}, &chat)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, domain.StateAwaitingConfirmation, chat.State)

	code = request(t, srv, http.MethodPost, "/api/v1/chat/messages", token,
		map[string]any{"value": "yes"}, &chat)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, domain.StateIdleAfterNo, chat.State)

	var wallet map[string]float64
	code = request(t, srv, http.MethodGet, "/api/v1/wallet", token, nil, &wallet)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, 1150.0, wallet["balance"])

	var bets []domain.Bet
	code = request(t, srv, http.MethodGet, "/api/v1/bets", token, nil, &bets)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, bets, 3)
}

func TestBasicUserUpsellThenUpgrade(t *testing.T) {
	srv := newTestServer(t)
	token := login(t, srv, map[string]any{"name": "Nick"}).Token

	var chat chatResponse
	request(t, srv, http.MethodPost, "/api/v1/chat/start", token, nil, &chat)
	request(t, srv, http.MethodPost, "/api/v1/chat/messages", token, map[string]any{"value": "100"}, &chat)

	code := request(t, srv, http.MethodPost, "/api/v1/chat/messages", token, map[string]any{"value": "yes"}, &chat)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, domain.StatePromptPremium, chat.State)

	// Upgrade applies to the live session.
	code = request(t, srv, http.MethodPut, "/api/v1/profile/plan", token, map[string]any{"plan": "premium"}, nil)
	require.Equal(t, http.StatusOK, code)

	request(t, srv, http.MethodPost, "/api/v1/chat/messages", token, map[string]any{"value": "later"}, &chat)
	require.Equal(t, domain.StateIdleAfterNo, chat.State)
	request(t, srv, http.MethodPost, "/api/v1/chat/messages", token, map[string]any{"value": "new_bet"}, &chat)
	require.Equal(t, domain.StateAwaitingAmount, chat.State)
	request(t, srv, http.MethodPost, "/api/v1/chat/messages", token, map[string]any{"value": "100"}, &chat)
	require.Equal(t, domain.StateAwaitingConfirmation, chat.State)
	request(t, srv, http.MethodPost, "/api/v1/chat/messages", token, map[string]any{"value": "yes"}, &chat)
	require.Equal(t, domain.StateIdleAfterNo, chat.State)

	var wallet map[string]float64
	request(t, srv, http.MethodGet, "/api/v1/wallet", token, nil, &wallet)
	require.Equal(t, 400.0, wallet["balance"])
}

func TestNavigateToProfileIsDrainedOnce(t *testing.T) {
	srv := newTestServer(t)
	token := login(t, srv, map[string]any{"name": "Nick"}).Token

	var chat chatResponse
	request(t, srv, http.MethodPost, "/api/v1/chat/start", token, nil, &chat)
	request(t, srv, http.MethodPost, "/api/v1/chat/messages", token, map[string]any{"value": "100"}, &chat)
	request(t, srv, http.MethodPost, "/api/v1/chat/messages", token, map[string]any{"value": "yes"}, &chat)
	require.Equal(t, domain.StatePromptPremium, chat.State)

	request(t, srv, http.MethodPost, "/api/v1/chat/messages", token, map[string]any{"value": "profile"}, &chat)
	require.Equal(t, "/profile", chat.NavigateTo)

	chat = chatResponse{}
	request(t, srv, http.MethodGet, "/api/v1/chat/messages", token, nil, &chat)
	require.Empty(t, chat.NavigateTo)
}

func TestRechargeWallet(t *testing.T) {
	srv := newTestServer(t)
	token := login(t, srv, map[string]any{"name": "Ann"}).Token

	var wallet map[string]float64
	code := request(t, srv, http.MethodPost, "/api/v1/wallet/recharge", token, map[string]any{}, &wallet)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, 600.0, wallet["balance"])

	code = request(t, srv, http.MethodPost, "/api/v1/wallet/recharge", token, map[string]any{"amount": -5}, nil)
	require.Equal(t, http.StatusUnprocessableEntity, code)
}

func TestUpdatePlanValidation(t *testing.T) {
	srv := newTestServer(t)
	token := login(t, srv, map[string]any{"name": "Ann"}).Token

	code := request(t, srv, http.MethodPut, "/api/v1/profile/plan", token, map[string]any{"plan": "gold"}, nil)
	require.Equal(t, http.StatusUnprocessableEntity, code)
}

func TestLogoutDiscardsConversation(t *testing.T) {
	srv := newTestServer(t)
	token := login(t, srv, map[string]any{"preview": true}).Token

	var chat chatResponse
	request(t, srv, http.MethodPost, "/api/v1/chat/start", token, nil, &chat)
	request(t, srv, http.MethodPost, "/api/v1/chat/messages", token, map[string]any{"value": "100"}, &chat)
	require.NotEmpty(t, chat.Messages)

	code := request(t, srv, http.MethodPost, "/api/v1/logout", token, nil, nil)
	require.Equal(t, http.StatusOK, code)

	token = login(t, srv, map[string]any{"preview": true}).Token
	chat = chatResponse{}
	request(t, srv, http.MethodGet, "/api/v1/chat/messages", token, nil, &chat)
	require.Empty(t, chat.Messages)
	require.Equal(t, domain.StateGreeting, chat.State)
}
