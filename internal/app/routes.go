package app

import (
	"github.com/vancomm/minesweeper/internal/config"
	"github.com/vancomm/minesweeper/internal/handlers"
)

func (a *App) loadRoutes() {
	ws := config.NewWebSocket(a.cfg.AllowedOrigins)
	game := handlers.NewGameHandler(a.log, a.store, a.cfg, ws)

	a.router.HandleFunc("GET /status", handlers.Status)
	game.Register(a.router)
}
