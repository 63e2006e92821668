package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/betmaestro/betmaestro/internal/domain"
)

// Memory is an in-process backend with the same contracts as Postgres. It
// serves the terminal demo and any deployment without a database; values are
// stored in their serialized form so corrupt-entry handling matches the
// durable store.
type Memory struct {
	mu       sync.RWMutex
	users    map[string]domain.User
	balances map[string]float64
	bets     map[string][]domain.Bet
	entries  map[string]map[string]string
}

func NewMemory() *Memory {
	return &Memory{
		users:    make(map[string]domain.User),
		balances: make(map[string]float64),
		bets:     make(map[string][]domain.Bet),
		entries:  make(map[string]map[string]string),
	}
}

// Users

func (m *Memory) UpsertUser(_ context.Context, user domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.users[user.ID]; ok {
		existing.Name = user.Name
		m.users[user.ID] = existing
		return nil
	}
	m.users[user.ID] = user
	return nil
}

func (m *Memory) GetUser(_ context.Context, id string) (domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	user, ok := m.users[id]
	if !ok {
		return domain.User{}, ErrUserNotFound
	}
	return user, nil
}

func (m *Memory) SetPlan(_ context.Context, id string, plan domain.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return ErrUserNotFound
	}
	user.Plan = plan
	m.users[id] = user
	return nil
}

// Wallet

func (m *Memory) EnsureWallet(_ context.Context, userID string, initial float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.balances[userID]; !ok {
		m.balances[userID] = initial
	}
	return nil
}

func (m *Memory) Balance(_ context.Context, userID string) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	balance, ok := m.balances[userID]
	if !ok {
		return 0, ErrUserNotFound
	}
	return balance, nil
}

func (m *Memory) Debit(_ context.Context, userID string, amount float64) (float64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	balance, ok := m.balances[userID]
	if !ok {
		return 0, ErrUserNotFound
	}
	if balance < amount {
		return 0, ErrInsufficientFunds
	}
	m.balances[userID] = balance - amount
	return m.balances[userID], nil
}

func (m *Memory) Credit(_ context.Context, userID string, amount float64) (float64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.balances[userID]; !ok {
		return 0, ErrUserNotFound
	}
	m.balances[userID] += amount
	return m.balances[userID], nil
}

// Bet book

func (m *Memory) Append(_ context.Context, userID string, bet domain.Bet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bets[userID] = append(m.bets[userID], bet)
	return nil
}

// All re-sorts by game date descending on every read, matching the durable
// store's ordering.
func (m *Memory) All(_ context.Context, userID string) ([]domain.Bet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Bet, len(m.bets[userID]))
	copy(out, m.bets[userID])
	sort.SliceStable(out, func(i, j int) bool {
		return parseGameDate(out[i].GameDate).After(parseGameDate(out[j].GameDate))
	})
	return out, nil
}

func parseGameDate(s string) time.Time {
	t, err := time.Parse(domain.GameDateLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Conversation entries

func (m *Memory) LoadMessages(_ context.Context, userID string) ([]domain.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	raw, ok := m.entries[userID][keyChatMessages]
	if !ok {
		return nil, nil
	}
	msgs, ok := decodeMessages(raw)
	if !ok {
		return nil, nil
	}
	return msgs, nil
}

func (m *Memory) SaveMessages(_ context.Context, userID string, msgs []domain.Message) error {
	raw, err := encodeMessages(msgs)
	if err != nil {
		return err
	}
	m.putEntry(userID, keyChatMessages, raw)
	return nil
}

func (m *Memory) LoadState(_ context.Context, userID string) (domain.ChatState, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	raw, ok := m.entries[userID][keyChatState]
	if !ok {
		return "", false, nil
	}
	state, ok := decodeState(raw)
	return state, ok, nil
}

func (m *Memory) SaveState(_ context.Context, userID string, state domain.ChatState) error {
	m.putEntry(userID, keyChatState, string(state))
	return nil
}

func (m *Memory) LoadPendingAmount(_ context.Context, userID string) (float64, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	raw, ok := m.entries[userID][keyPendingAmount]
	if !ok {
		return 0, false, nil
	}
	amount, ok := decodeAmount(raw)
	return amount, ok, nil
}

func (m *Memory) SavePendingAmount(_ context.Context, userID string, amount *float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if amount == nil {
		delete(m.entries[userID], keyPendingAmount)
		return nil
	}
	if m.entries[userID] == nil {
		m.entries[userID] = make(map[string]string)
	}
	m.entries[userID][keyPendingAmount] = encodeAmount(*amount)
	return nil
}

func (m *Memory) Clear(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, userID)
	return nil
}

// PutRawEntry stores an unvalidated entry value; tests use it to simulate
// legacy or corrupt persisted data.
func (m *Memory) PutRawEntry(userID, key, value string) {
	m.putEntry(userID, key, value)
}

func (m *Memory) putEntry(userID, key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entries[userID] == nil {
		m.entries[userID] = make(map[string]string)
	}
	m.entries[userID][key] = value
}
