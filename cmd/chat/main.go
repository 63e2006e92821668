package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/betmaestro/betmaestro/internal/conversation"
	"github.com/betmaestro/betmaestro/internal/domain"
	"github.com/betmaestro/betmaestro/internal/provider"
	"github.com/betmaestro/betmaestro/internal/store"
)

// Interactive terminal session against an in-memory backend. Type an option
// value (or free text) at the prompt; "quit" exits.
var (
	name    string
	premium bool
	balance float64
)

func init() {
	flag.StringVar(&name, "name", "Test User", "User display name")
	flag.BoolVar(&premium, "premium", true, "Give the user a premium plan")
	flag.Float64Var(&balance, "balance", 500, "Starting wallet balance in EUR")
}

type printNavigator struct{}

func (printNavigator) NavigateTo(route string) {
	fmt.Printf("  -> navigating to %s\n", route)
}

func main() {
	flag.Parse()

	ctx := context.Background()
	backend := store.NewMemory()
	static := provider.NewStatic()

	plan := domain.PlanBasic
	if premium {
		plan = domain.PlanPremium
	}
	user := domain.User{ID: "local-user", Name: name, Plan: plan}
	if err := backend.UpsertUser(ctx, user); err != nil {
		fmt.Fprintln(os.Stderr, "setup failed:", err)
		os.Exit(1)
	}
	if err := backend.EnsureWallet(ctx, user.ID, balance); err != nil {
		fmt.Fprintln(os.Stderr, "setup failed:", err)
		os.Exit(1)
	}

	ctrl := conversation.New(ctx, conversation.Config{
		User:        user,
		Store:       backend,
		Wallet:      backend,
		Bets:        backend,
		Greeter:     static,
		Strategist:  static,
		Navigator:   printNavigator{},
		SettleDelay: 300 * time.Millisecond,
		Logger:      zerolog.Nop(),
	})

	if err := ctrl.Start(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "start failed:", err)
		os.Exit(1)
	}
	printed := render(ctrl.Messages(), 0)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			break
		}
		if err := ctrl.Submit(ctx, conversation.Text(line)); err != nil {
			fmt.Fprintln(os.Stderr, "submit failed:", err)
			continue
		}
		printed = render(ctrl.Messages(), printed)
	}

	bets, _ := backend.All(ctx, user.ID)
	wallet, _ := backend.Balance(ctx, user.ID)
	fmt.Printf("\nFinal balance: %.2f€, placed bets: %d\n", wallet, len(bets))
}

// render prints messages not shown yet and returns the new high-water mark.
func render(msgs []domain.Message, from int) int {
	for _, m := range msgs[from:] {
		switch m.Sender {
		case domain.SenderAI:
			if m.Text != "" {
				fmt.Printf("BetMaestro: %s\n", m.Text)
			}
			if m.Strategy != nil {
				fmt.Printf("  %s\n", m.Strategy.Description)
				for _, sb := range m.Strategy.SuggestedBets {
					fmt.Printf("  - %s vs %s (%s): %.2f€ on %s @ %.2f with %s\n",
						sb.HomeTeam, sb.AwayTeam, sb.GameDate, sb.BetAmount, sb.WinnerTeam, sb.Odds, sb.House)
				}
				fmt.Printf("  Risk: %s\n", m.Strategy.RiskAssessment)
			}
			for _, opt := range m.Options {
				fmt.Printf("  [%s] -> type %q\n", opt.Label, opt.Value)
			}
		case domain.SenderHuman:
			// The user just typed it; no need to echo.
		}
	}
	return len(msgs)
}
