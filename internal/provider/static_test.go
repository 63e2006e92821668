package provider

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/betmaestro/betmaestro/internal/domain"
)

func TestStaticWelcome(t *testing.T) {
	greeting, err := NewStatic().Welcome(context.Background(), "Nick", 500)
	require.NoError(t, err)
	require.Equal(t, "Welcome, Nick! I'm ready to assist. Your balance is 500.00€.", greeting.WelcomeMessage)
	require.Equal(t, "How much would you like to bet today?", greeting.InitialQuestion)
}

func TestStaticGenerateLegsSumToAmount(t *testing.T) {
	s := NewStatic()
	for _, amount := range []float64{100, 33.33, 250, 0.05} {
		strategy, err := s.Generate(context.Background(), 500, amount)
		require.NoError(t, err)
		require.NotEmpty(t, strategy.Description)
		require.NotEmpty(t, strategy.RiskAssessment)
		require.NotEmpty(t, strategy.SuggestedBets)

		var sum float64
		houses := map[string]bool{}
		for _, sb := range strategy.SuggestedBets {
			require.Greater(t, sb.BetAmount, 0.0)
			require.Greater(t, sb.Odds, 1.0)
			require.False(t, houses[sb.House], "house %s used twice", sb.House)
			houses[sb.House] = true
			_, err := time.Parse(domain.GameDateLayout, sb.GameDate)
			require.NoError(t, err)
			sum += sb.BetAmount
		}
		require.InDelta(t, amount, sum, 1e-9, "amount %v", amount)
	}
}

func TestStaticGenerateSkipsZeroLegs(t *testing.T) {
	// An amount too small to split three ways collapses to a single leg.
	strategy, err := NewStatic().Generate(context.Background(), 500, 0.01)
	require.NoError(t, err)
	require.Len(t, strategy.SuggestedBets, 1)
	require.InDelta(t, 0.01, strategy.SuggestedBets[0].BetAmount, 1e-9)
}
