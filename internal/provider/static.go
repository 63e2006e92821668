package provider

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/betmaestro/betmaestro/internal/domain"
)

// Static is a deterministic provider used when no LLM is configured and as
// the degradation path in the terminal demo. It splits the requested amount
// across three houses for a fixed upcoming fixture.
type Static struct{}

func NewStatic() *Static {
	return &Static{}
}

func (s *Static) Welcome(_ context.Context, userName string, walletBalance float64) (domain.Greeting, error) {
	return domain.Greeting{
		WelcomeMessage:  fmt.Sprintf("Welcome, %s! I'm ready to assist. Your balance is %.2f€.", userName, walletBalance),
		InitialQuestion: "How much would you like to bet today?",
	}, nil
}

func (s *Static) Generate(_ context.Context, walletBalance, betAmount float64) (domain.Strategy, error) {
	gameDate := time.Now().AddDate(0, 0, 3).Format(domain.GameDateLayout)

	// 30/30/40 split, rounded to cents; the last leg absorbs the remainder so
	// the legs always sum to the requested amount.
	first := roundCents(betAmount * 0.3)
	second := roundCents(betAmount * 0.3)
	third := roundCents(betAmount - first - second)

	legs := []struct {
		amount        float64
		odds          float64
		house         string
		winner        string
		justification string
	}{
		{first, 1.85, "bet365", "New York Knicks",
			"The Knicks have won their last four at home and the moneyline still carries value."},
		{second, 1.95, "Betfair", "Over 220.5 points",
			"Both teams rank top-six in pace; totals have cleared 220 in five of the last six meetings."},
		{third, 3.40, "Betway", "Indiana Pacers +5.5",
			"The Pacers cover the spread on the road more often than not against top-seeded opponents."},
	}

	var suggested []domain.SuggestedBet
	for _, leg := range legs {
		if leg.amount <= 0 {
			continue
		}
		suggested = append(suggested, domain.SuggestedBet{
			GameDate:      gameDate,
			HomeTeam:      "New York Knicks",
			AwayTeam:      "Indiana Pacers",
			BetAmount:     leg.amount,
			Odds:          leg.odds,
			House:         leg.house,
			WinnerTeam:    leg.winner,
			Justification: leg.justification,
		})
	}

	return domain.Strategy{
		Description: fmt.Sprintf("This strategy spreads your %.2f€ across different outcomes and houses for the New York Knicks vs Indiana Pacers game, keeping each leg small relative to your %.2f€ bankroll.",
			betAmount, walletBalance),
		SuggestedBets:  suggested,
		RiskAssessment: "Moderate risk: the legs hedge each other, but all betting involves risk. Please bet responsibly.",
	}, nil
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
