package main

import (
	"context"
	"net/http"
	"os"

	"github.com/rs/zerolog"

	"github.com/betmaestro/betmaestro/internal/api"
	"github.com/betmaestro/betmaestro/internal/config"
	"github.com/betmaestro/betmaestro/internal/conversation"
	"github.com/betmaestro/betmaestro/internal/provider"
	"github.com/betmaestro/betmaestro/internal/store"
)

func main() {
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	if cfg.Env == "development" {
		log = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	ctx := context.Background()

	var backend api.Backend
	if cfg.DBSource != "" {
		pg, err := store.NewPostgres(ctx, cfg.DBSource, log)
		if err != nil {
			log.Fatal().Err(err).Msg("unable to connect to database")
		}
		defer pg.Close()
		backend = pg
		log.Info().Msg("using postgres backend")
	} else {
		backend = store.NewMemory()
		log.Warn().Msg("DB_SOURCE not set, using in-memory backend")
	}

	var greeter conversation.GreetingProvider
	var strategist conversation.StrategyProvider
	if cfg.OpenAIKey != "" {
		ai := provider.NewOpenAI(cfg.OpenAIKey, cfg.OpenAIModel, log)
		greeter, strategist = ai, ai
		log.Info().Msg("using OpenAI providers")
	} else {
		static := provider.NewStatic()
		greeter, strategist = static, static
		log.Warn().Msg("OPENAI_API_KEY not set, using static providers")
	}

	handler := api.NewHandler(backend, greeter, strategist, cfg.JWTSecret, cfg.SettleDelay, log)
	router := api.NewRouter(handler)

	log.Info().Str("port", cfg.Port).Msg("server starting")
	if err := http.ListenAndServe(":"+cfg.Port, router); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}
