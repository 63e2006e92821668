package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/betmaestro/betmaestro/internal/domain"
)

const bettingHouses = `"bet365", "Betfair", "Betway", "bwin", "DAZN", "888sport", "Bet442"`

// OpenAI generates greetings and betting strategies through the chat
// completions API. Responses are requested as JSON objects; anything the
// model still mangles goes through jsonrepair before unmarshalling.
type OpenAI struct {
	client *openai.Client
	model  string
	log    zerolog.Logger
}

func NewOpenAI(apiKey, model string, log zerolog.Logger) *OpenAI {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAI{
		client: openai.NewClient(apiKey),
		model:  model,
		log:    log.With().Str("component", "openai-provider").Logger(),
	}
}

func (p *OpenAI) Welcome(ctx context.Context, userName string, walletBalance float64) (domain.Greeting, error) {
	prompt := fmt.Sprintf(`You are a friendly BetMaestro assistant.
User's name: %s
User's wallet balance: %.2f EUR

Generate a personalized welcome message that includes the user's name.
Then, generate an initial question asking the user how much they would like to bet today.
Respond with a JSON object with a "welcomeMessage" field and an "initialQuestion" field.`, userName, walletBalance)

	raw, err := p.complete(ctx, prompt)
	if err != nil {
		return domain.Greeting{}, &Error{Op: "welcome", Err: err}
	}

	var greeting domain.Greeting
	if err := unmarshalLenient(raw, &greeting); err != nil {
		return domain.Greeting{}, &Error{Op: "welcome", Err: err}
	}
	if greeting.WelcomeMessage == "" || greeting.InitialQuestion == "" {
		return domain.Greeting{}, &Error{Op: "welcome", Err: fmt.Errorf("incomplete greeting payload")}
	}
	return greeting, nil
}

func (p *OpenAI) Generate(ctx context.Context, walletBalance, betAmount float64) (domain.Strategy, error) {
	prompt := fmt.Sprintf(`You are an expert betting strategy advisor.
The user's current wallet balance is %.2f EUR and they want to bet %.2f EUR on an upcoming basketball game.

Respond with a JSON object containing:
1. "strategyDescription": a general strategy for this amount, considering the user's balance.
2. "suggestedBets": an array of up to 3 bets. Each element is an object with
   "gameDate" (DD/MM/YYYY), "homeTeam", "awayTeam", "betAmount" (number),
   "odds" (number), "house", "betWinnerTeam" and "justification" fields.
   Each bet MUST use a different betting house, chosen ONLY from: %s.
   The betAmount values MUST sum to exactly %.2f.
3. "riskAssessment": an assessment of the risk of these suggestions.`,
		walletBalance, betAmount, bettingHouses, betAmount)

	raw, err := p.complete(ctx, prompt)
	if err != nil {
		return domain.Strategy{}, &Error{Op: "generate", Err: err}
	}

	var strategy domain.Strategy
	if err := unmarshalLenient(raw, &strategy); err != nil {
		return domain.Strategy{}, &Error{Op: "generate", Err: err}
	}
	if strategy.Description == "" {
		return domain.Strategy{}, &Error{Op: "generate", Err: fmt.Errorf("incomplete strategy payload")}
	}
	for _, sb := range strategy.SuggestedBets {
		if sb.BetAmount < 0 {
			return domain.Strategy{}, &Error{Op: "generate", Err: fmt.Errorf("negative bet amount in suggestion")}
		}
	}
	return strategy, nil
}

func (p *OpenAI) complete(ctx context.Context, prompt string) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in completion response")
	}
	return resp.Choices[0].Message.Content, nil
}

// unmarshalLenient parses raw model output, stripping markdown fences and
// falling back to jsonrepair when the payload is not valid JSON.
func unmarshalLenient(raw string, v any) error {
	raw = stripFences(raw)
	firstErr := json.Unmarshal([]byte(raw), v)
	if firstErr == nil {
		return nil
	}
	repaired, err := jsonrepair.JSONRepair(raw)
	if err != nil {
		return fmt.Errorf("unparseable model output: %w", firstErr)
	}
	if err := json.Unmarshal([]byte(repaired), v); err != nil {
		return fmt.Errorf("unparseable model output after repair: %w", err)
	}
	return nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
