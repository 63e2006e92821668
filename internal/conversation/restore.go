package conversation

import (
	"context"

	"github.com/betmaestro/betmaestro/internal/domain"
)

// restore pulls the persisted conversation into memory. Loading placeholders
// are dropped, unknown or transient states are remapped to the nearest
// interactive state, and any store failure degrades to a fresh greeting.
func (c *Controller) restore(ctx context.Context) {
	c.messages = nil
	c.state = domain.StateGreeting
	c.pending = nil

	msgs, err := c.store.LoadMessages(ctx, c.user.ID)
	if err != nil {
		c.log.Warn().Err(err).Msg("message log restore failed, starting fresh")
		return
	}
	for _, m := range msgs {
		if !m.IsLoading {
			c.messages = append(c.messages, m)
		}
	}

	state, ok, err := c.store.LoadState(ctx, c.user.ID)
	if err != nil {
		c.log.Warn().Err(err).Msg("state restore failed, starting fresh")
		c.messages = nil
		return
	}
	if !ok {
		state = domain.StateGreeting
	}
	c.state = normalizeState(state, c.messages)

	amount, ok, err := c.store.LoadPendingAmount(ctx, c.user.ID)
	if err != nil {
		c.log.Warn().Err(err).Msg("pending amount restore failed")
	} else if ok {
		c.pending = &amount
	}
}

// normalizeState maps a persisted state to one the controller can resume in.
// PROCESSING_* and ERROR_GENERIC are moments, not resting places, so a
// session stored mid-flight is re-derived from the tail of the log: the last
// option-bearing AI message identifies what the conversation was waiting for.
// The same scan covers GREETING entries persisted by older builds that wrote
// state and log out of step.
func normalizeState(state domain.ChatState, msgs []domain.Message) domain.ChatState {
	if !state.Valid() {
		state = domain.StateGreeting
	}

	transient := state == domain.StateProcessingAmount ||
		state == domain.StateProcessingBet ||
		state == domain.StateErrorGeneric

	if !transient && !(state == domain.StateGreeting && len(msgs) > 0) {
		return state
	}
	if len(msgs) == 0 {
		return domain.StateGreeting
	}
	return inferFromTail(msgs)
}

func inferFromTail(msgs []domain.Message) domain.ChatState {
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		if m.Sender != domain.SenderAI || len(m.Options) == 0 {
			continue
		}
		for _, opt := range m.Options {
			switch opt.Value {
			case "yes", "no":
				return domain.StateAwaitingConfirmation
			case "new_bet":
				return domain.StateIdleAfterNo
			case "50", "100", "200":
				return domain.StateAwaitingAmount
			}
		}
		break
	}
	return domain.StateAwaitingAmount
}
