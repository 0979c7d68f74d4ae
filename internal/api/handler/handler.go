package handler

import (
	"log/slog"
	"time"

	"anonpair/backend/internal/chathub"
)

// Handler wires the HTTP surface to the chat hub.
type Handler struct {
	Hub *chathub.Coordinator

	jwtSecret []byte
	tokenTTL  time.Duration
	log       *slog.Logger
}

func NewHandler(hub *chathub.Coordinator, jwtSecret string, tokenTTL time.Duration, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		Hub:       hub,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
		log:       log,
	}
}
