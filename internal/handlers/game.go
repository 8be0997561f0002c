package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/vancomm/minesweeper/internal/config"
	"github.com/vancomm/minesweeper/internal/middleware"
	"github.com/vancomm/minesweeper/internal/mines"
	"github.com/vancomm/minesweeper/internal/session"
)

type GameHandler struct {
	log      *logrus.Logger
	store    *session.Store
	jwt      *config.JWT
	cookies  *config.Cookies
	ws       *config.WebSocket
	defaults mines.Params
	maxCells int
}

func NewGameHandler(
	log *logrus.Logger,
	store *session.Store,
	cfg *config.Config,
	ws *config.WebSocket,
) *GameHandler {
	return &GameHandler{
		log:      log,
		store:    store,
		jwt:      cfg.JWT,
		cookies:  cfg.Cookies,
		ws:       ws,
		defaults: cfg.Board,
		maxCells: cfg.MaxCells,
	}
}

func (g GameHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /game", g.NewGame)
	mux.HandleFunc("GET /game/{id}", g.Fetch)
	mux.HandleFunc("DELETE /game/{id}", g.Delete)
	mux.HandleFunc("POST /game/{id}/reveal", g.Reveal)
	mux.HandleFunc("POST /game/{id}/flag", g.Flag)
	mux.HandleFunc("POST /game/{id}/restart", g.Restart)
	mux.HandleFunc("GET /game/{id}/connect", g.ConnectWS)
}

var (
	errNoToken      = errors.New("session token required")
	errWrongSession = errors.New("token was issued for another session")
	errNotFound     = errors.New("session not found")
)

// lookup resolves the {id} path value to a live session the caller holds
// a token for. On failure the response has already been written.
func (g GameHandler) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	claims, ok := middleware.SessionClaims(r.Context())
	if !ok {
		sendErrorOrLog(w, g.log, http.StatusUnauthorized, errNoToken)
		return nil, false
	}
	id := r.PathValue("id")
	if claims.SessionID != id {
		sendErrorOrLog(w, g.log, http.StatusForbidden, errWrongSession)
		return nil, false
	}
	s, ok := g.store.Get(id)
	if !ok {
		sendErrorOrLog(w, g.log, http.StatusNotFound, errNotFound)
		return nil, false
	}
	return s, true
}

// fail maps engine errors to HTTP statuses.
func (g GameHandler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, mines.ErrOutOfBounds):
		sendErrorOrLog(w, g.log, http.StatusBadRequest, err)
	case errors.Is(err, mines.ErrInvalidConfiguration):
		sendErrorOrLog(w, g.log, http.StatusUnprocessableEntity, err)
	default:
		g.log.WithError(err).Error("unable to apply move")
		sendErrorOrLog(w, g.log, http.StatusInternalServerError, errors.New("internal error"))
	}
}

func (g GameHandler) NewGame(w http.ResponseWriter, r *http.Request) {
	params, err := ParseNewGameDTO(r.URL.Query(), g.defaults)
	if err != nil {
		sendErrorOrLog(w, g.log, http.StatusBadRequest, err)
		return
	}
	if params.Cells() > g.maxCells {
		sendErrorOrLog(w, g.log, http.StatusBadRequest, fmt.Errorf(
			"board %s has more than %d cells", params, g.maxCells,
		))
		return
	}

	s, err := g.store.Create(params)
	if err != nil {
		g.fail(w, err)
		return
	}

	token, err := g.jwt.Sign(g.jwt.NewSessionClaims(s.ID, time.Now()))
	if err != nil {
		g.store.Delete(s.ID)
		g.log.WithError(err).Error("unable to sign session token")
		sendErrorOrLog(w, g.log, http.StatusInternalServerError, errors.New("internal error"))
		return
	}
	g.cookies.Refresh(w, token)

	var board BoardDTO
	err = s.Do(func(b *mines.Board) error {
		board = NewBoardDTO(s, b)
		return nil
	})
	if err != nil {
		g.fail(w, err)
		return
	}

	g.log.WithFields(logrus.Fields{
		"session": s.ID,
		"board":   params.String(),
	}).Info("new game")

	sendJSONOrLog(w, g.log, http.StatusCreated, NewGameResponseDTO{
		Token: token,
		Board: board,
	})
}

func (g GameHandler) Fetch(w http.ResponseWriter, r *http.Request) {
	g.handleMove(w, r, cmdGet)
}

func (g GameHandler) Reveal(w http.ResponseWriter, r *http.Request) {
	g.handleMove(w, r, cmdOpen)
}

func (g GameHandler) Flag(w http.ResponseWriter, r *http.Request) {
	g.handleMove(w, r, cmdFlag)
}

func (g GameHandler) Restart(w http.ResponseWriter, r *http.Request) {
	g.handleMove(w, r, cmdRestart)
}

func (g GameHandler) handleMove(w http.ResponseWriter, r *http.Request, cmd command) {
	s, ok := g.lookup(w, r)
	if !ok {
		return
	}

	m := move{cmd: cmd}
	if cmd.nargs() > 0 {
		pos, err := ParsePosition(r.URL.Query())
		if err != nil {
			sendErrorOrLog(w, g.log, http.StatusBadRequest, err)
			return
		}
		m.pos = pos
	}

	ev, err := g.apply(s, m)
	if err != nil {
		g.fail(w, err)
		return
	}
	sendJSONOrLog(w, g.log, http.StatusOK, ev)
}

func (g GameHandler) Delete(w http.ResponseWriter, r *http.Request) {
	s, ok := g.lookup(w, r)
	if !ok {
		return
	}
	g.store.Delete(s.ID)
	g.cookies.Clear(w)
	g.log.WithField("session", s.ID).Info("session closed")
	w.WriteHeader(http.StatusNoContent)
}

type command string

const (
	cmdGet     command = "g"
	cmdOpen    command = "o"
	cmdFlag    command = "f"
	cmdRestart command = "n"
)

func (c command) String() string {
	switch c {
	case cmdGet:
		return "get"
	case cmdOpen:
		return "reveal"
	case cmdFlag:
		return "flag"
	case cmdRestart:
		return "restart"
	}
	return string(c)
}

func (c command) nargs() int {
	if c == cmdOpen || c == cmdFlag {
		return 2
	}
	return 0
}

type move struct {
	cmd command
	pos PositionDTO
}

func parseRowCol(args []string) (row int, col int, err error) {
	if row, err = strconv.Atoi(args[0]); err != nil {
		err = fmt.Errorf("first argument must be an int")
		return
	}
	if col, err = strconv.Atoi(args[1]); err != nil {
		err = fmt.Errorf("second argument must be an int")
		return
	}
	return
}

// parseMove reads one command line such as "o 3 4" (reveal row 3, col 4).
func parseMove(line string) (move, error) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return move{}, fmt.Errorf("empty command")
	}
	cmd := command(parts[0])
	switch cmd {
	case cmdGet, cmdOpen, cmdFlag, cmdRestart:
	default:
		return move{}, fmt.Errorf("unknown command %q", parts[0])
	}
	if cmd.nargs() != len(parts)-1 {
		return move{}, fmt.Errorf("%s takes %d arguments", cmd, cmd.nargs())
	}
	m := move{cmd: cmd}
	if cmd.nargs() > 0 {
		row, col, err := parseRowCol(parts[1:])
		if err != nil {
			return move{}, err
		}
		m.pos = PositionDTO{Row: row, Col: col}
	}
	return m, nil
}

// apply runs m against the session's board and describes the result.
func (g GameHandler) apply(s *session.Session, m move) (EventDTO, error) {
	ev := EventDTO{Command: m.cmd.String()}
	err := s.Do(func(b *mines.Board) error {
		switch m.cmd {
		case cmdOpen:
			res, err := b.Reveal(m.pos.Row, m.pos.Col)
			if err != nil {
				return err
			}
			ev.Outcome = res.Kind.String()
			ev.Cells = newRevealedDTOs(res.Cells)
			ev.Mines = res.Mines
		case cmdFlag:
			res, err := b.ToggleFlag(m.pos.Row, m.pos.Col)
			if err != nil {
				return err
			}
			ev.Outcome = res.String()
		case cmdRestart:
			b.Restart()
			ev.Outcome = "restarted"
		}
		board := NewBoardDTO(s, b)
		ev.Board = &board
		return nil
	})
	if err != nil {
		return EventDTO{}, err
	}

	if ev.Outcome == mines.RevealWon.String() || ev.Outcome == mines.RevealHitMine.String() {
		g.log.WithFields(logrus.Fields{
			"session": s.ID,
			"status":  ev.Board.Status,
		}).Info("game over")
	}
	return ev, nil
}

func (g GameHandler) execute(s *session.Session, line string) EventDTO {
	m, err := parseMove(line)
	if err == nil {
		var ev EventDTO
		if ev, err = g.apply(s, m); err == nil {
			return ev
		}
	}
	return EventDTO{Command: line, Error: err.Error()}
}

// live reports whether s is still the session stored under its id.
func (g GameHandler) live(s *session.Session) bool {
	cur, ok := g.store.Get(s.ID)
	return ok && cur == s
}

// ConnectWS upgrades to a WebSocket and runs one command per line of every
// text message, answering each with an [EventDTO]. The socket is closed once
// the session is deleted or evicted.
func (g GameHandler) ConnectWS(w http.ResponseWriter, r *http.Request) {
	s, ok := g.lookup(w, r)
	if !ok {
		return
	}

	c, err := g.ws.Upgrader.Upgrade(w, r, nil) // headers sent here
	if err != nil {
		g.log.WithError(err).Warn("unable to upgrade")
		return
	}
	defer c.Close()

	log := g.log.WithField("session", s.ID)
	log.Debug("established WS connection")

	for {
		mt, message, err := c.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.WithError(err).Warn("abnormal ws break")
			}
			return
		}
		if mt != websocket.TextMessage {
			return
		}
		if !g.live(s) {
			log.Debug("session closed under WS connection")
			msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, errNotFound.Error())
			if err := c.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); err != nil {
				log.WithError(err).Warn("unable to send close message")
			}
			return
		}
		text := strings.TrimSpace(string(message))
		log.Debugf("\t> %s", text)
		for _, line := range iterBySep(text, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if err := c.WriteJSON(g.execute(s, line)); err != nil {
				log.WithError(err).Error("unable to write json")
				return
			}
		}
	}
}
