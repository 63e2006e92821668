package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/betmaestro/betmaestro/internal/domain"
)

// Postgres backs users, wallets, the bet book and the conversation entries.
type Postgres struct {
	db  *pgxpool.Pool
	log zerolog.Logger
}

func NewPostgres(ctx context.Context, connString string, log zerolog.Logger) (*Postgres, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &Postgres{db: pool, log: log.With().Str("component", "postgres").Logger()}, nil
}

func (p *Postgres) Close() {
	p.db.Close()
}

// Users

func (p *Postgres) UpsertUser(ctx context.Context, user domain.User) error {
	_, err := p.db.Exec(ctx,
		`INSERT INTO users (id, name, plan) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`,
		user.ID, user.Name, string(user.Plan))
	return err
}

func (p *Postgres) GetUser(ctx context.Context, id string) (domain.User, error) {
	var u domain.User
	var plan string
	err := p.db.QueryRow(ctx, "SELECT id, name, plan FROM users WHERE id = $1", id).
		Scan(&u.ID, &u.Name, &plan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}
	u.Plan = domain.Plan(plan)
	return u, nil
}

func (p *Postgres) SetPlan(ctx context.Context, id string, plan domain.Plan) error {
	tag, err := p.db.Exec(ctx, "UPDATE users SET plan = $1 WHERE id = $2", string(plan), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Wallet

// EnsureWallet creates the user's wallet with the given starting balance if
// it does not exist yet.
func (p *Postgres) EnsureWallet(ctx context.Context, userID string, initial float64) error {
	_, err := p.db.Exec(ctx,
		"INSERT INTO wallets (user_id, balance) VALUES ($1, $2) ON CONFLICT (user_id) DO NOTHING",
		userID, initial)
	return err
}

func (p *Postgres) Balance(ctx context.Context, userID string) (float64, error) {
	var balance float64
	err := p.db.QueryRow(ctx, "SELECT balance FROM wallets WHERE user_id = $1", userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return 0, err
	}
	return balance, nil
}

// Debit subtracts amount from the wallet inside a transaction, locking the
// row first. An amount exceeding the balance is rejected, never clamped.
func (p *Postgres) Debit(ctx context.Context, userID string, amount float64) (float64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	tx, err := p.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	var balance float64
	err = tx.QueryRow(ctx, "SELECT balance FROM wallets WHERE user_id = $1 FOR UPDATE", userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return 0, fmt.Errorf("lock acquisition failed: %w", err)
	}
	if balance < amount {
		return 0, ErrInsufficientFunds
	}

	newBalance := balance - amount
	if _, err := tx.Exec(ctx, "UPDATE wallets SET balance = $1 WHERE user_id = $2", newBalance, userID); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("tx commit failed: %w", err)
	}
	return newBalance, nil
}

func (p *Postgres) Credit(ctx context.Context, userID string, amount float64) (float64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	var newBalance float64
	err := p.db.QueryRow(ctx,
		"UPDATE wallets SET balance = balance + $1 WHERE user_id = $2 RETURNING balance",
		amount, userID).Scan(&newBalance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return 0, err
	}
	return newBalance, nil
}

// Bet book

func (p *Postgres) Append(ctx context.Context, userID string, bet domain.Bet) error {
	_, err := p.db.Exec(ctx,
		`INSERT INTO bets (id, user_id, game_date, home_team, away_team, bet_amount, odds,
		                   house, winner_team, justification, result, gain, placed_date)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		bet.ID, userID, bet.GameDate, bet.HomeTeam, bet.AwayTeam, bet.BetAmount, bet.Odds,
		bet.House, bet.WinnerTeam, bet.Justification, string(bet.Result), bet.Gain, bet.PlacedDate)
	return err
}

// All returns the user's bets ordered by game date descending. The ordering
// is applied on every read rather than maintained on insert.
func (p *Postgres) All(ctx context.Context, userID string) ([]domain.Bet, error) {
	rows, err := p.db.Query(ctx,
		`SELECT id, game_date, home_team, away_team, bet_amount, odds,
		        house, winner_team, justification, result, gain, placed_date
		 FROM bets WHERE user_id = $1
		 ORDER BY to_date(game_date, 'DD/MM/YYYY') DESC, created_at DESC`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bets []domain.Bet
	for rows.Next() {
		var b domain.Bet
		var result string
		if err := rows.Scan(&b.ID, &b.GameDate, &b.HomeTeam, &b.AwayTeam, &b.BetAmount, &b.Odds,
			&b.House, &b.WinnerTeam, &b.Justification, &result, &b.Gain, &b.PlacedDate); err != nil {
			return nil, err
		}
		b.Result = domain.BetResult(result)
		bets = append(bets, b)
	}
	return bets, rows.Err()
}

// Conversation entries

func (p *Postgres) LoadMessages(ctx context.Context, userID string) ([]domain.Message, error) {
	raw, ok, err := p.getEntry(ctx, userID, keyChatMessages)
	if err != nil || !ok {
		return nil, err
	}
	msgs, ok := decodeMessages(raw)
	if !ok {
		p.log.Warn().Str("user_id", userID).Msg("discarding corrupt message log entry")
		return nil, nil
	}
	return msgs, nil
}

func (p *Postgres) SaveMessages(ctx context.Context, userID string, msgs []domain.Message) error {
	raw, err := encodeMessages(msgs)
	if err != nil {
		return err
	}
	return p.putEntry(ctx, userID, keyChatMessages, raw)
}

func (p *Postgres) LoadState(ctx context.Context, userID string) (domain.ChatState, bool, error) {
	raw, ok, err := p.getEntry(ctx, userID, keyChatState)
	if err != nil || !ok {
		return "", false, err
	}
	state, ok := decodeState(raw)
	if !ok {
		p.log.Warn().Str("user_id", userID).Str("state", raw).Msg("discarding corrupt state entry")
		return "", false, nil
	}
	return state, true, nil
}

func (p *Postgres) SaveState(ctx context.Context, userID string, state domain.ChatState) error {
	return p.putEntry(ctx, userID, keyChatState, string(state))
}

func (p *Postgres) LoadPendingAmount(ctx context.Context, userID string) (float64, bool, error) {
	raw, ok, err := p.getEntry(ctx, userID, keyPendingAmount)
	if err != nil || !ok {
		return 0, false, err
	}
	amount, ok := decodeAmount(raw)
	if !ok {
		p.log.Warn().Str("user_id", userID).Msg("discarding corrupt pending amount entry")
		return 0, false, nil
	}
	return amount, true, nil
}

func (p *Postgres) SavePendingAmount(ctx context.Context, userID string, amount *float64) error {
	if amount == nil {
		return p.deleteEntry(ctx, userID, keyPendingAmount)
	}
	return p.putEntry(ctx, userID, keyPendingAmount, encodeAmount(*amount))
}

func (p *Postgres) Clear(ctx context.Context, userID string) error {
	_, err := p.db.Exec(ctx, "DELETE FROM chat_entries WHERE user_id = $1", userID)
	return err
}

func (p *Postgres) getEntry(ctx context.Context, userID, key string) (string, bool, error) {
	var raw string
	err := p.db.QueryRow(ctx,
		"SELECT value FROM chat_entries WHERE user_id = $1 AND key = $2", userID, key).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return raw, true, nil
}

func (p *Postgres) putEntry(ctx context.Context, userID, key, value string) error {
	_, err := p.db.Exec(ctx,
		`INSERT INTO chat_entries (user_id, key, value, updated_at) VALUES ($1, $2, $3, now())
		 ON CONFLICT (user_id, key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		userID, key, value)
	return err
}

func (p *Postgres) deleteEntry(ctx context.Context, userID, key string) error {
	_, err := p.db.Exec(ctx, "DELETE FROM chat_entries WHERE user_id = $1 AND key = $2", userID, key)
	return err
}
