package conversation

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/betmaestro/betmaestro/internal/domain"
)

// Quick-reply option sets offered by the assistant.
var (
	quickAmountOptions = []domain.Option{
		{Label: "50€", Value: "50"},
		{Label: "100€", Value: "100"},
		{Label: "200€", Value: "200"},
	}
	confirmOptions = []domain.Option{
		{Label: "Yes, place bets", Value: "yes"},
		{Label: "No, thanks", Value: "no"},
	}
	followUpOptions = []domain.Option{
		{Label: "Start new bet", Value: "new_bet"},
		{Label: "No, that's all", Value: "end_chat"},
	}
	premiumOptions = []domain.Option{
		{Label: "Go to Profile", Value: "profile"},
		{Label: "Maybe later", Value: "later"},
	}
)

const (
	msgStartupFailure    = "Sorry, I'm having trouble starting up. Please try again later."
	msgInvalidAmount     = "Please enter a valid positive number for your bet amount."
	msgStrategyFailure   = "Sorry, I couldn't generate a strategy right now. Please try again."
	msgMissingStrategy   = "Sorry, there was an issue processing your bet. Could not retrieve strategy details or bet amount. Please try stating your bet amount again."
	msgPlacementFailure  = "An unexpected error occurred while placing your bets. Please try again."
	msgPremiumUpsell     = "Placing bets is a Premium feature. Please upgrade your plan in your Profile to proceed."
	msgGoingToProfile    = "Great! Taking you to your profile now."
	msgPremiumDeclined   = "Alright. Let me know if you change your mind or need help with something else!"
	msgBetDeclined       = "Okay, no problem. Is there anything else I can help you with today?"
	msgNewBetFailure     = "I had trouble starting a new bet. Please try asking for a 'new bet' again."
	msgFarewell          = "Thanks for using BetMaestro! Have a great day. Feel free to ask if anything else comes up."
	msgIdleUnknown       = "Sorry, I didn't quite get that. Please choose an option or type 'new bet'."
	msgConfirmReprompt   = "Please answer with 'Yes' or 'No'."
	msgBalanceReprompt   = "Please enter a valid positive number for your bet amount or choose an option."
	msgUnknownStateReset = "I'm not sure how to handle that. Let's try starting over. How much would you like to bet?"
	msgGenericFailure    = "Sorry, something went wrong. Please try refreshing the page."

	profileRoute = "/profile"
)

// DefaultSettleDelay is the simulated settlement wait before placed bets are
// confirmed.
const DefaultSettleDelay = 1500 * time.Millisecond

// Controller drives the betting dialogue for a single user session. It owns
// the message log, the chat state and the pending bet amount, persisting all
// three after every turn. It is not safe for concurrent Submit calls from the
// caller's perspective; an internal mutex serializes them so late callers
// simply wait their turn.
type Controller struct {
	user        domain.User
	store       Store
	wallet      WalletLedger
	bets        BetBook
	greeter     GreetingProvider
	strategist  StrategyProvider
	nav         Navigator
	settleDelay time.Duration
	log         zerolog.Logger

	// gen is bumped on Reset so that a provider response resolving for a
	// superseded session is discarded instead of applied.
	gen atomic.Uint64

	mu       sync.Mutex
	messages []domain.Message
	state    domain.ChatState
	pending  *float64
}

// Config carries the controller's collaborators.
type Config struct {
	User        domain.User
	Store       Store
	Wallet      WalletLedger
	Bets        BetBook
	Greeter     GreetingProvider
	Strategist  StrategyProvider
	Navigator   Navigator
	SettleDelay time.Duration
	Logger      zerolog.Logger
}

// New builds a controller and restores any persisted conversation for the
// user. Store failures and corrupt entries degrade to a fresh GREETING
// session; they are never fatal.
func New(ctx context.Context, cfg Config) *Controller {
	c := &Controller{
		user:        cfg.User,
		store:       cfg.Store,
		wallet:      cfg.Wallet,
		bets:        cfg.Bets,
		greeter:     cfg.Greeter,
		strategist:  cfg.Strategist,
		nav:         cfg.Navigator,
		settleDelay: cfg.SettleDelay,
		log:         cfg.Logger.With().Str("component", "conversation").Str("user_id", cfg.User.ID).Logger(),
	}
	if c.settleDelay == 0 {
		c.settleDelay = DefaultSettleDelay
	}
	c.restore(ctx)
	return c
}

// Start kicks off the greeting flow. It is idempotent: once the log is
// non-empty, or the session is past GREETING, it is a no-op.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.messages) > 0 || c.state != domain.StateGreeting {
		return nil
	}

	balance, err := c.wallet.Balance(ctx, c.user.ID)
	if err != nil {
		c.log.Error().Err(err).Msg("balance read failed during start")
		c.appendAI(msgStartupFailure, nil, nil)
		c.setState(domain.StateErrorGeneric)
		c.persist(ctx)
		return nil
	}

	c.appendLoading()
	gen := c.gen.Load()
	greeting, err := c.greeter.Welcome(ctx, c.user.Name, balance)
	if c.superseded(gen) {
		c.removeLoading()
		return nil
	}
	c.removeLoading()
	if err != nil {
		c.log.Error().Err(err).Msg("welcome message failed")
		c.appendAI(msgStartupFailure, nil, nil)
		c.setState(domain.StateErrorGeneric)
		c.persist(ctx)
		return nil
	}

	c.appendAI(greeting.WelcomeMessage+" "+greeting.InitialQuestion, nil, quickAmountOptions)
	c.setState(domain.StateAwaitingAmount)
	c.persist(ctx)
	return nil
}

// Submit handles one human turn: it appends the human message plus a typing
// placeholder, dispatches on the current state, and guarantees the
// placeholder is gone by the time the terminating AI message is appended.
func (c *Controller) Submit(ctx context.Context, in Input) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.appendHuman(in.Label)
	c.appendLoading()
	c.persist(ctx)

	err := c.dispatch(ctx, in)
	c.persist(ctx)
	return err
}

// Messages returns a snapshot of the conversation log.
func (c *Controller) Messages() []domain.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// State returns the current chat state.
func (c *Controller) State() domain.ChatState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// PendingBetAmount returns the amount awaiting confirmation, if any.
func (c *Controller) PendingBetAmount() (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return 0, false
	}
	return *c.pending, true
}

// User returns the session's user.
func (c *Controller) User() domain.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

// SetPlan updates the session user's plan (e.g. after a profile upgrade).
func (c *Controller) SetPlan(plan domain.Plan) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.user.Plan = plan
}

// Reset discards the conversation, in memory and in the store. Any in-flight
// provider response for the old session is dropped when it resolves.
func (c *Controller) Reset(ctx context.Context) error {
	c.gen.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = nil
	c.state = domain.StateGreeting
	c.pending = nil
	return c.store.Clear(ctx, c.user.ID)
}

func (c *Controller) dispatch(ctx context.Context, in Input) error {
	switch c.state {
	case domain.StateAwaitingAmount:
		return c.handleAmount(ctx, in)
	case domain.StateAwaitingConfirmation:
		return c.handleConfirmation(ctx, in)
	case domain.StatePromptPremium:
		c.handlePremiumPrompt(in)
		return nil
	case domain.StateIdleAfterNo:
		return c.handleIdle(ctx, in)
	case domain.StateErrorBalance:
		return c.handleBalanceError(ctx, in)
	default:
		c.removeLoading()
		if c.user.ID != "" {
			c.appendAI(msgUnknownStateReset, nil, quickAmountOptions)
			c.setState(domain.StateAwaitingAmount)
		} else {
			c.appendAI(msgGenericFailure, nil, nil)
			c.setState(domain.StateErrorGeneric)
		}
		return nil
	}
}

func (c *Controller) handleAmount(ctx context.Context, in Input) error {
	amount, err := parseAmount(in.Value)
	if err != nil {
		c.removeLoading()
		c.appendAI(msgInvalidAmount, nil, quickAmountOptions)
		return nil
	}

	balance, err := c.wallet.Balance(ctx, c.user.ID)
	if err != nil {
		c.removeLoading()
		c.appendAI(msgStrategyFailure, nil, nil)
		c.log.Error().Err(err).Msg("balance read failed")
		return nil
	}
	if amount > balance {
		c.removeLoading()
		c.appendAI(fmt.Sprintf("Your bet of %s€ exceeds your wallet balance of %s€. Please enter a smaller amount or recharge your wallet.",
			formatAmount(amount), formatAmount(balance)), nil, quickAmountOptions)
		c.setState(domain.StateErrorBalance)
		return nil
	}

	c.pending = &amount
	c.setState(domain.StateProcessingAmount)

	gen := c.gen.Load()
	strategy, err := c.strategist.Generate(ctx, balance, amount)
	if c.superseded(gen) {
		c.removeLoading()
		return nil
	}
	c.removeLoading()
	if err != nil {
		c.log.Error().Err(err).Msg("strategy generation failed")
		c.appendAI(msgStrategyFailure, nil, nil)
		c.setState(domain.StateAwaitingAmount)
		c.pending = nil
		return nil
	}

	c.appendAI(fmt.Sprintf("Here's a strategy for your %s€ bet:", formatAmount(amount)), &strategy, confirmOptions)
	c.setState(domain.StateAwaitingConfirmation)
	return nil
}

func (c *Controller) handleConfirmation(ctx context.Context, in Input) error {
	switch strings.ToLower(in.Value) {
	case "yes":
		if c.user.Plan != domain.PlanPremium {
			c.removeLoading()
			c.appendAI(msgPremiumUpsell, nil, premiumOptions)
			c.setState(domain.StatePromptPremium)
			return nil
		}
		return c.placeBets(ctx)
	case "no":
		c.removeLoading()
		c.appendAI(msgBetDeclined, nil, followUpOptions)
		c.setState(domain.StateIdleAfterNo)
		c.pending = nil
		return nil
	default:
		c.removeLoading()
		c.appendAI(msgConfirmReprompt, nil, confirmOptions)
		return nil
	}
}

// placeBets commits the pending strategy: after the simulated settlement
// delay it debits the wallet and appends one bet per suggestion, with both
// committed before the confirmation message is appended. Any failure rolls
// the session back to AWAITING_AMOUNT.
func (c *Controller) placeBets(ctx context.Context) error {
	c.setState(domain.StateProcessingBet)

	strategyMsg := c.lastStrategyMessage()
	if strategyMsg == nil || c.pending == nil {
		c.removeLoading()
		c.appendAI(msgMissingStrategy, nil, nil)
		c.setState(domain.StateAwaitingAmount)
		c.pending = nil
		return nil
	}
	amount := *c.pending

	select {
	case <-time.After(c.settleDelay):
	case <-ctx.Done():
		c.rollbackPlacement(context.WithoutCancel(ctx), ctx.Err())
		return nil
	}

	newBalance, err := c.wallet.Debit(ctx, c.user.ID, amount)
	if err != nil {
		c.rollbackPlacement(ctx, err)
		return nil
	}

	placedDate := time.Now().Format(domain.GameDateLayout)
	for i, sb := range strategyMsg.Strategy.SuggestedBets {
		bet := domain.Bet{
			ID:            uuid.NewString(),
			GameDate:      sb.GameDate,
			HomeTeam:      sb.HomeTeam,
			AwayTeam:      sb.AwayTeam,
			BetAmount:     sb.BetAmount,
			Odds:          sb.Odds,
			House:         sb.House,
			WinnerTeam:    sb.WinnerTeam,
			Justification: sb.Justification,
			Result:        domain.BetPending,
			PlacedDate:    placedDate,
		}
		if err := c.bets.Append(ctx, c.user.ID, bet); err != nil {
			// Compensate the debit; earlier appends of this batch stand.
			if _, cerr := c.wallet.Credit(ctx, c.user.ID, amount); cerr != nil {
				c.log.Error().Err(cerr).Msg("debit compensation failed")
			}
			c.log.Error().Err(err).Int("placed", i).Msg("bet append failed")
			c.rollbackPlacement(ctx, err)
			return nil
		}
	}

	c.removeLoading()
	c.appendAI(fmt.Sprintf("Bets placed for a total of %.2f€! Your new balance is %.2f€. Good luck! What's next?",
		amount, newBalance), nil, followUpOptions)
	c.setState(domain.StateIdleAfterNo)
	c.pending = nil
	return nil
}

func (c *Controller) rollbackPlacement(ctx context.Context, cause error) {
	c.log.Error().Err(cause).Msg("bet placement failed")
	c.removeLoading()
	c.appendAI(msgPlacementFailure, nil, nil)
	c.setState(domain.StateAwaitingAmount)
	c.pending = nil
	c.persist(ctx)
}

func (c *Controller) handlePremiumPrompt(in Input) {
	c.removeLoading()
	if strings.ToLower(in.Value) == "profile" {
		c.appendAI(msgGoingToProfile, nil, nil)
		if c.nav != nil {
			c.nav.NavigateTo(profileRoute)
		}
	} else {
		c.appendAI(msgPremiumDeclined, nil, followUpOptions)
	}
	c.setState(domain.StateIdleAfterNo)
}

func (c *Controller) handleIdle(ctx context.Context, in Input) error {
	switch strings.ToLower(in.Value) {
	case "new_bet":
		balance, err := c.wallet.Balance(ctx, c.user.ID)
		if err == nil {
			gen := c.gen.Load()
			var greeting domain.Greeting
			greeting, err = c.greeter.Welcome(ctx, c.user.Name, balance)
			if c.superseded(gen) {
				c.removeLoading()
				return nil
			}
			if err == nil {
				c.removeLoading()
				// Only the follow-up question; the user has already been welcomed.
				c.appendAI(greeting.InitialQuestion, nil, quickAmountOptions)
				c.setState(domain.StateAwaitingAmount)
				return nil
			}
		}
		c.log.Error().Err(err).Msg("new bet greeting failed")
		c.removeLoading()
		c.appendAI(msgNewBetFailure, nil, nil)
		return nil
	case "end_chat":
		c.removeLoading()
		c.appendAI(msgFarewell, nil, nil)
		return nil
	default:
		c.removeLoading()
		c.appendAI(msgIdleUnknown, nil, followUpOptions)
		return nil
	}
}

func (c *Controller) handleBalanceError(ctx context.Context, in Input) error {
	if _, err := parseAmount(in.Value); err == nil {
		// Valid amount after an over-balance attempt: retry through the
		// regular amount branch.
		c.setState(domain.StateAwaitingAmount)
		return c.handleAmount(ctx, in)
	}
	c.removeLoading()
	c.appendAI(msgBalanceReprompt, nil, quickAmountOptions)
	return nil
}

func (c *Controller) appendHuman(text string) {
	c.messages = append(c.messages, domain.Message{
		ID:        uuid.NewString(),
		Sender:    domain.SenderHuman,
		Text:      text,
		Timestamp: time.Now(),
	})
}

func (c *Controller) appendAI(text string, strategy *domain.Strategy, options []domain.Option) {
	c.messages = append(c.messages, domain.Message{
		ID:        uuid.NewString(),
		Sender:    domain.SenderAI,
		Text:      text,
		Strategy:  strategy,
		Options:   options,
		Timestamp: time.Now(),
	})
}

// appendLoading adds the typing placeholder unless one is already present,
// so the log never holds more than one.
func (c *Controller) appendLoading() {
	for _, m := range c.messages {
		if m.IsLoading {
			return
		}
	}
	c.messages = append(c.messages, domain.Message{
		ID:        uuid.NewString(),
		Sender:    domain.SenderAI,
		IsLoading: true,
		Timestamp: time.Now(),
	})
}

func (c *Controller) removeLoading() {
	filtered := c.messages[:0]
	for _, m := range c.messages {
		if !m.IsLoading {
			filtered = append(filtered, m)
		}
	}
	c.messages = filtered
}

func (c *Controller) lastStrategyMessage() *domain.Message {
	for i := len(c.messages) - 1; i >= 0; i-- {
		if c.messages[i].Sender == domain.SenderAI && c.messages[i].Strategy != nil {
			return &c.messages[i]
		}
	}
	return nil
}

func (c *Controller) setState(s domain.ChatState) {
	c.state = s
}

func (c *Controller) superseded(gen uint64) bool {
	return c.gen.Load() != gen
}

// persist writes all three conversation entries. Failures are logged and
// swallowed: a broken store must never break the dialogue.
func (c *Controller) persist(ctx context.Context) {
	saved := make([]domain.Message, 0, len(c.messages))
	for _, m := range c.messages {
		if !m.IsLoading {
			saved = append(saved, m)
		}
	}
	if err := c.store.SaveMessages(ctx, c.user.ID, saved); err != nil {
		c.log.Warn().Err(err).Msg("message log persist failed")
	}
	if err := c.store.SaveState(ctx, c.user.ID, c.state); err != nil {
		c.log.Warn().Err(err).Msg("state persist failed")
	}
	if err := c.store.SavePendingAmount(ctx, c.user.ID, c.pending); err != nil {
		c.log.Warn().Err(err).Msg("pending amount persist failed")
	}
}

func parseAmount(s string) (float64, error) {
	amount, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if amount <= 0 || math.IsInf(amount, 0) || math.IsNaN(amount) {
		return 0, fmt.Errorf("amount must be a positive number")
	}
	return amount, nil
}

// formatAmount renders a euro amount without trailing zeros, matching how
// the user typed it (50 rather than 50.00).
func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
