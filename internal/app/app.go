package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/vancomm/minesweeper/internal/config"
	"github.com/vancomm/minesweeper/internal/middleware"
	"github.com/vancomm/minesweeper/internal/session"
)

const shutdownTimeout = 30 * time.Second

type App struct {
	log    *logrus.Logger
	cfg    *config.Config
	store  *session.Store
	router *http.ServeMux
}

func New(log *logrus.Logger, cfg *config.Config) *App {
	a := &App{
		log:    log,
		cfg:    cfg,
		store:  session.NewStore(log, nil),
		router: http.NewServeMux(),
	}
	a.loadRoutes()
	return a
}

// Handler is the router with every middleware applied.
func (a *App) Handler() http.Handler {
	return middleware.Chain(
		a.router,
		middleware.Logging(a.log),
		middleware.Cors(a.cfg.AllowedOrigins),
		middleware.Auth(a.log, a.cfg.Cookies),
	)
}

// Start serves until ctx is done or the listener fails, sweeping idle
// sessions in the background.
func (a *App) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:    a.cfg.Addr,
		Handler: a.Handler(),
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.log.Infof("ready to serve @ %s", a.cfg.Addr)
		err := server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return a.store.Run(gCtx, a.cfg.Session.TTL, a.cfg.Session.SweepInterval)
	})

	return g.Wait()
}
