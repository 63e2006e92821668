package store

import (
	"encoding/json"
	"errors"
	"strconv"

	"github.com/betmaestro/betmaestro/internal/domain"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// Conversation entry keys. Each key maps to one independently written value.
const (
	keyChatMessages  = "chatMessages"
	keyChatState     = "chatState"
	keyPendingAmount = "currentBetAmount"
)

func encodeMessages(msgs []domain.Message) (string, error) {
	b, err := json.Marshal(msgs)
	return string(b), err
}

func decodeMessages(raw string) ([]domain.Message, bool) {
	var msgs []domain.Message
	if err := json.Unmarshal([]byte(raw), &msgs); err != nil {
		return nil, false
	}
	return msgs, true
}

func decodeState(raw string) (domain.ChatState, bool) {
	state := domain.ChatState(raw)
	return state, state.Valid()
}

func decodeAmount(raw string) (float64, bool) {
	amount, err := strconv.ParseFloat(raw, 64)
	return amount, err == nil
}

func encodeAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', -1, 64)
}
