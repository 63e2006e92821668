package domain

import "time"

// Sender identifies who authored a chat message.
type Sender string

const (
	SenderAI    Sender = "ai"
	SenderHuman Sender = "human"
)

// ChatState is the conversation controller's current position in the dialogue.
type ChatState string

const (
	StateGreeting             ChatState = "GREETING"
	StateAwaitingAmount       ChatState = "AWAITING_AMOUNT"
	StateProcessingAmount     ChatState = "PROCESSING_AMOUNT"
	StateAwaitingConfirmation ChatState = "AWAITING_CONFIRMATION"
	StateProcessingBet        ChatState = "PROCESSING_BET"
	StatePromptPremium        ChatState = "PROMPT_PREMIUM"
	StateIdleAfterNo          ChatState = "IDLE_AFTER_NO"
	StateErrorBalance         ChatState = "ERROR_BALANCE"
	StateErrorGeneric         ChatState = "ERROR_GENERIC"
)

// Valid reports whether s is one of the known chat states.
func (s ChatState) Valid() bool {
	switch s {
	case StateGreeting, StateAwaitingAmount, StateProcessingAmount,
		StateAwaitingConfirmation, StateProcessingBet, StatePromptPremium,
		StateIdleAfterNo, StateErrorBalance, StateErrorGeneric:
		return true
	}
	return false
}

// Option is a preset quick-reply offered alongside an AI message.
type Option struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Message is a single entry in the conversation log. Text, Strategy and
// Options are optional; a message with IsLoading set is a transient typing
// placeholder and is never persisted.
type Message struct {
	ID        string    `json:"id"`
	Sender    Sender    `json:"sender"`
	Text      string    `json:"text,omitempty"`
	Strategy  *Strategy `json:"strategy,omitempty"`
	Options   []Option  `json:"options,omitempty"`
	IsLoading bool      `json:"isLoading,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Greeting is the result of the welcome flow.
type Greeting struct {
	WelcomeMessage  string `json:"welcomeMessage"`
	InitialQuestion string `json:"initialQuestion"`
}

// SuggestedBet is a single entry of a generated betting strategy.
type SuggestedBet struct {
	GameDate      string  `json:"gameDate"`
	HomeTeam      string  `json:"homeTeam"`
	AwayTeam      string  `json:"awayTeam"`
	BetAmount     float64 `json:"betAmount"`
	Odds          float64 `json:"odds"`
	House         string  `json:"house"`
	WinnerTeam    string  `json:"betWinnerTeam"`
	Justification string  `json:"justification"`
}

// Strategy is a generated betting strategy. SuggestedBets may be empty when
// the requested amount is too small to split.
type Strategy struct {
	Description    string         `json:"strategyDescription"`
	SuggestedBets  []SuggestedBet `json:"suggestedBets"`
	RiskAssessment string         `json:"riskAssessment"`
}

// BetResult is the settlement outcome of a placed bet.
type BetResult string

const (
	BetPending BetResult = "pending"
	BetWon     BetResult = "won"
	BetLost    BetResult = "lost"
)

// Bet is a placed bet. Result and Gain are updated by settlement; everything
// else is immutable once placed.
type Bet struct {
	ID            string    `json:"id"`
	GameDate      string    `json:"gameDate"`
	HomeTeam      string    `json:"homeTeam"`
	AwayTeam      string    `json:"awayTeam"`
	BetAmount     float64   `json:"betAmount"`
	Odds          float64   `json:"odds"`
	House         string    `json:"house,omitempty"`
	WinnerTeam    string    `json:"betWinnerTeam"`
	Justification string    `json:"justification,omitempty"`
	Result        BetResult `json:"betResult"`
	Gain          *float64  `json:"betGain,omitempty"`
	PlacedDate    string    `json:"betDate"`
}

// Plan gates access to bet placement.
type Plan string

const (
	PlanBasic   Plan = "basic"
	PlanPremium Plan = "premium"
)

// User is an authenticated account.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Plan Plan   `json:"plan"`
}

// GameDateLayout is the DD/MM/YYYY format used for game and placement dates.
const GameDateLayout = "02/01/2006"
