package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-portfolio/roomchat/config"
	"github.com/go-portfolio/roomchat/internal/chat"
	"github.com/go-portfolio/roomchat/internal/web"

	"github.com/rs/zerolog"
)

type App struct {
	Handler  http.Handler
	Registry *chat.Registry

	sweepInterval  time.Duration
	createdRoomTTL time.Duration
	log            zerolog.Logger
}

func New(cfg *config.Config, log zerolog.Logger) *App {
	// Реестр комнат и рассыльщик — общие для всех соединений
	registry := chat.NewRegistry(log, chat.WithCodeLength(cfg.RoomCodeLength))
	dispatcher := chat.NewDispatcher(log)

	handlers := &web.Handlers{
		Registry:   registry,
		Dispatcher: dispatcher,
		Log:        log.With().Str("module", "web").Logger(),
		Options: web.Options{
			Session: chat.SessionConfig{
				AutoCreateRooms: cfg.AutoCreateRooms,
				MaxUsernameLen:  cfg.MaxUsernameLen,
				MaxMessageLen:   cfg.MaxMessageLen,
			},
			Client: chat.ClientConfig{
				SendBuffer: cfg.SendBuffer,
				ReadLimit:  cfg.ReadLimit,
				PongWait:   cfg.PongWait,
				PingPeriod: cfg.PingPeriod,
				WriteWait:  cfg.WriteWait,
			},
		},
	}

	// Роуты
	handler := web.NewRouter(handlers, web.NewCORS(cfg.AllowedOrigins))

	return &App{
		Handler:        handler,
		Registry:       registry,
		sweepInterval:  cfg.SweepInterval,
		createdRoomTTL: cfg.CreatedRoomTTL,
		log:            log,
	}
}

// RunSweeper периодически снимает созданные, но так и не занятые комнаты.
// Возвращается, когда ctx отменён.
func (a *App) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(a.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.Registry.Sweep(a.createdRoomTTL)
		}
	}
}
