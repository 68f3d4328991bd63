package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/clinicq/token-service/internal/token"
)

type RouterConfig struct {
	Service *token.Service
	PgPool  *pgxpool.Pool
	Redis   *redis.Client
	Logger  zerolog.Logger
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Token endpoints
	r.Post("/tokens", createTokenHandler(cfg.Service))
	r.Post("/tokens/emergency", emergencyTokenHandler(cfg.Service))
	r.Get("/tokens/{id}", getTokenHandler(cfg.Service))
	r.Delete("/tokens/{id}", cancelTokenHandler(cfg.Service))
	r.Post("/tokens/{id}/no-show", noShowTokenHandler(cfg.Service))

	// Slot endpoints
	r.Post("/slots", createSlotHandler(cfg.Service))
	r.Get("/slots", listSlotsHandler(cfg.Service))
	r.Get("/slots/{id}", getSlotHandler(cfg.Service))
	r.Put("/slots/{id}/delay", delaySlotHandler(cfg.Service))
	r.Get("/slots/{id}/tokens", listSlotTokensHandler(cfg.Service))
	r.Get("/slots/{id}/waiting-list", listWaitingHandler(cfg.Service))

	return r
}
