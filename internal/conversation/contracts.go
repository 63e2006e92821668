package conversation

import (
	"context"

	"github.com/betmaestro/betmaestro/internal/domain"
)

// Store is durable persistence for an in-progress conversation. The three
// entries are independent and each write fully overwrites the previous value
// (last-writer-wins). A missing entry is reported via the ok flag, not an
// error; implementations must treat corrupt entries as missing.
type Store interface {
	LoadMessages(ctx context.Context, userID string) ([]domain.Message, error)
	SaveMessages(ctx context.Context, userID string, msgs []domain.Message) error
	LoadState(ctx context.Context, userID string) (state domain.ChatState, ok bool, err error)
	SaveState(ctx context.Context, userID string, state domain.ChatState) error
	LoadPendingAmount(ctx context.Context, userID string) (amount float64, ok bool, err error)
	SavePendingAmount(ctx context.Context, userID string, amount *float64) error
	Clear(ctx context.Context, userID string) error
}

// WalletLedger holds a user's balance. Debit and Credit reject non-positive
// amounts; Debit rejects (rather than clamps) an amount exceeding the balance.
type WalletLedger interface {
	Balance(ctx context.Context, userID string) (float64, error)
	Debit(ctx context.Context, userID string, amount float64) (newBalance float64, err error)
	Credit(ctx context.Context, userID string, amount float64) (newBalance float64, err error)
}

// BetBook is the append-only collection of placed bets.
type BetBook interface {
	Append(ctx context.Context, userID string, bet domain.Bet) error
	All(ctx context.Context, userID string) ([]domain.Bet, error)
}

// GreetingProvider produces the personalized welcome and the opening question.
type GreetingProvider interface {
	Welcome(ctx context.Context, userName string, walletBalance float64) (domain.Greeting, error)
}

// StrategyProvider produces a betting strategy for the requested amount.
// An empty SuggestedBets slice is a valid result.
type StrategyProvider interface {
	Generate(ctx context.Context, walletBalance, betAmount float64) (domain.Strategy, error)
}

// Navigator receives navigation side effects (e.g. sending the user to the
// profile screen after a premium upsell).
type Navigator interface {
	NavigateTo(route string)
}

// Input is one human turn: either free text (Label == Value) or a selected
// quick option.
type Input struct {
	Label string
	Value string
}

// Text wraps free-form input as an Input.
func Text(s string) Input {
	return Input{Label: s, Value: s}
}
