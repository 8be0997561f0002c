package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vancomm/minesweeper/internal/config"
	"github.com/vancomm/minesweeper/internal/middleware"
	"github.com/vancomm/minesweeper/internal/mines"
	"github.com/vancomm/minesweeper/internal/session"
)

func setupTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	cfg, err := config.Load("")
	require.NoError(t, err)

	log := logrus.New()
	log.SetOutput(io.Discard)

	store := session.NewStore(log, rand.New(rand.NewPCG(1, 2)))
	game := NewGameHandler(log, store, cfg, config.NewWebSocket(cfg.AllowedOrigins))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", Status)
	game.Register(mux)

	srv := httptest.NewServer(middleware.Auth(log, cfg.Cookies)(mux))
	t.Cleanup(srv.Close)
	return srv
}

type testClient struct {
	t     *testing.T
	srv   *httptest.Server
	token string
}

func (c testClient) do(method, path string, out any) int {
	c.t.Helper()
	req, err := http.NewRequest(method, c.srv.URL+path, nil)
	require.NoError(c.t, err)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode != http.StatusNoContent {
		require.NoError(c.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func newGame(t *testing.T, srv *httptest.Server, query string) (BoardDTO, testClient) {
	t.Helper()
	var res NewGameResponseDTO
	code := testClient{t: t, srv: srv}.do(http.MethodPost, "/game?"+query, &res)
	require.Equal(t, http.StatusCreated, code)
	require.NotEmpty(t, res.Token)
	return res.Board, testClient{t: t, srv: srv, token: res.Token}
}

func TestStatus(t *testing.T) {
	srv := setupTestServer(t)
	var body string
	code := testClient{t: t, srv: srv}.do(http.MethodGet, "/status", &body)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body)
}

func TestNewGameDefaults(t *testing.T) {
	srv := setupTestServer(t)
	board, _ := newGame(t, srv, "")

	assert.NotEmpty(t, board.SessionID)
	assert.Equal(t, 8, board.Rows)
	assert.Equal(t, 8, board.Cols)
	assert.Equal(t, 10, board.MineCount)
	assert.Equal(t, 10, board.RemainingMines)
	assert.Equal(t, "not_started", board.Status)
	require.Len(t, board.Cells, 64)
	for _, c := range board.Cells {
		assert.Equal(t, "hidden", c.State)
		assert.Equal(t, ".", c.Text)
	}
	assert.Equal(t, 7, board.Cells[63].Row)
	assert.Equal(t, 7, board.Cells[63].Col)
}

func TestNewGameSetsCookie(t *testing.T) {
	srv := setupTestServer(t)
	resp, err := http.Post(srv.URL+"/game", "", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	var res NewGameResponseDTO
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))

	var token string
	for _, c := range resp.Cookies() {
		if c.Name == config.TokenCookie {
			token = c.Value
		}
	}
	assert.Equal(t, res.Token, token)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/game/"+res.Board.SessionID, nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: config.TokenCookie, Value: token})
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNewGameRejects(t *testing.T) {
	srv := setupTestServer(t)
	testCases := []struct {
		query string
		code  int
	}{
		{"rows=2&cols=2&mines=1", http.StatusUnprocessableEntity},
		{"rows=0", http.StatusUnprocessableEntity},
		{"mines=64", http.StatusUnprocessableEntity},
		{"rows=x", http.StatusBadRequest},
		{"rows=200&cols=200", http.StatusBadRequest},
		{"rows=16&cols=1152921504606846977&mines=0", http.StatusUnprocessableEntity},
		{"rows=4294967296&cols=4294967296&mines=0", http.StatusUnprocessableEntity},
	}
	for _, test := range testCases {
		t.Run(test.query, func(t *testing.T) {
			var body map[string]string
			code := testClient{t: t, srv: srv}.do(http.MethodPost, "/game?"+test.query, &body)
			assert.Equal(t, test.code, code)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestGameRequiresToken(t *testing.T) {
	srv := setupTestServer(t)
	board, owner := newGame(t, srv, "")
	_, other := newGame(t, srv, "")
	path := "/game/" + board.SessionID

	anon := testClient{t: t, srv: srv}
	assert.Equal(t, http.StatusUnauthorized, anon.do(http.MethodGet, path, nil))
	assert.Equal(t, http.StatusForbidden, other.do(http.MethodGet, path, nil))

	forged := testClient{t: t, srv: srv, token: "a.b.c"}
	assert.Equal(t, http.StatusUnauthorized, forged.do(http.MethodGet, path, nil))

	var got EventDTO
	assert.Equal(t, http.StatusOK, owner.do(http.MethodGet, path, &got))
	assert.Equal(t, "get", got.Command)
	require.NotNil(t, got.Board)
	assert.Equal(t, board.SessionID, got.Board.SessionID)

	assert.Equal(t, http.StatusNoContent, owner.do(http.MethodDelete, path, nil))
	assert.Equal(t, http.StatusNotFound, owner.do(http.MethodGet, path, nil))
}

func TestRevealFlagRestart(t *testing.T) {
	srv := setupTestServer(t)
	board, c := newGame(t, srv, "rows=8&cols=8&mines=10")
	path := "/game/" + board.SessionID

	var ev EventDTO
	require.Equal(t, http.StatusOK, c.do(http.MethodPost, path+"/flag?row=0&col=0", &ev))
	assert.Equal(t, "flagged", ev.Outcome)
	assert.Equal(t, 9, ev.Board.RemainingMines)
	assert.Equal(t, "F", ev.Board.Cells[0].Text)

	ev = EventDTO{}
	require.Equal(t, http.StatusOK, c.do(http.MethodPost, path+"/reveal?row=0&col=0", &ev))
	assert.Equal(t, "noop", ev.Outcome)
	assert.Equal(t, "not_started", ev.Board.Status)

	ev = EventDTO{}
	require.Equal(t, http.StatusOK, c.do(http.MethodPost, path+"/flag?row=0&col=0", &ev))
	assert.Equal(t, "unflagged", ev.Outcome)

	ev = EventDTO{}
	require.Equal(t, http.StatusOK, c.do(http.MethodPost, path+"/reveal?row=0&col=0", &ev))
	assert.Contains(t, []string{"revealed", "won"}, ev.Outcome)
	require.NotEmpty(t, ev.Cells)
	assert.Equal(t, 0, ev.Cells[0].Row)
	assert.Equal(t, 0, ev.Cells[0].Col)
	assert.Equal(t, "revealed", ev.Board.Cells[0].State)
	assert.Empty(t, ev.Mines)
	for _, cell := range ev.Cells {
		assert.Equal(t, colorFor(cell.Adjacent), cell.Color)
	}

	var body map[string]string
	assert.Equal(t, http.StatusBadRequest, c.do(http.MethodPost, path+"/reveal?row=8&col=0", &body))
	assert.Contains(t, body["error"], "out of bounds")
	assert.Equal(t, http.StatusBadRequest, c.do(http.MethodPost, path+"/flag?row=-1&col=0", &body))
	assert.Equal(t, http.StatusBadRequest, c.do(http.MethodPost, path+"/reveal?row=1", &body))

	ev = EventDTO{}
	require.Equal(t, http.StatusOK, c.do(http.MethodPost, path+"/restart", &ev))
	assert.Equal(t, "restarted", ev.Outcome)
	assert.Equal(t, "not_started", ev.Board.Status)
	assert.Equal(t, 10, ev.Board.RemainingMines)
	for _, cell := range ev.Board.Cells {
		assert.Equal(t, "hidden", cell.State)
	}
}

func TestRevealRejectsFullSafeZone(t *testing.T) {
	srv := setupTestServer(t)
	board, c := newGame(t, srv, "rows=3&cols=3&mines=1")
	path := "/game/" + board.SessionID

	var body map[string]string
	assert.Equal(t, http.StatusUnprocessableEntity, c.do(http.MethodPost, path+"/reveal?row=1&col=1", &body))
	assert.Contains(t, body["error"], "invalid board configuration")

	var ev EventDTO
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, path, &ev))
	assert.Equal(t, "not_started", ev.Board.Status)
}

func TestSingleCellGameIsWon(t *testing.T) {
	srv := setupTestServer(t)
	board, c := newGame(t, srv, "rows=1&cols=1&mines=0")

	var ev EventDTO
	require.Equal(t, http.StatusOK, c.do(http.MethodPost, "/game/"+board.SessionID+"/reveal?row=0&col=0", &ev))
	assert.Equal(t, "won", ev.Outcome)
	assert.Equal(t, []RevealedDTO{{Row: 0, Col: 0, Adjacent: 0}}, ev.Cells)
	assert.Equal(t, "won", ev.Board.Status)
	assert.Equal(t, " ", ev.Board.Cells[0].Text)
}

func reveal(c testClient, path string, row, col int) EventDTO {
	c.t.Helper()
	var ev EventDTO
	code := c.do(http.MethodPost, fmt.Sprintf("%s/reveal?row=%d&col=%d", path, row, col), &ev)
	require.Equal(c.t, http.StatusOK, code)
	return ev
}

// learnMines plays a throwaway game on a fresh server and returns where the
// mines were. Every fresh server seeds its first board identically, so the
// same first click on another fresh server yields the same layout.
func learnMines(t *testing.T, query string) []mines.Coord {
	t.Helper()
	board, c := newGame(t, setupTestServer(t), query)
	path := "/game/" + board.SessionID

	ev := reveal(c, path, 0, 0)
	for ev.Outcome != "hit_mine" && ev.Outcome != "won" {
		next := -1
		for i, cell := range ev.Board.Cells {
			if cell.State == "hidden" {
				next = i
				break
			}
		}
		require.NotEqual(t, -1, next)
		ev = reveal(c, path, next/board.Cols, next%board.Cols)
	}
	if ev.Outcome == "hit_mine" {
		return ev.Mines
	}
	var ms []mines.Coord
	for _, cell := range ev.Board.Cells {
		if cell.State == "hidden" {
			ms = append(ms, mines.Coord{Row: cell.Row, Col: cell.Col})
		}
	}
	return ms
}

func TestRevealMineLosesGame(t *testing.T) {
	const query = "rows=5&cols=5&mines=12"
	ms := learnMines(t, query)
	require.Len(t, ms, 12)

	board, c := newGame(t, setupTestServer(t), query)
	path := "/game/" + board.SessionID
	at := func(p mines.Coord) int { return p.Row*board.Cols + p.Col }

	ev := reveal(c, path, 0, 0)
	require.Equal(t, "revealed", ev.Outcome)

	flagged, hit := ms[0], ms[1]
	ev = EventDTO{}
	require.Equal(t, http.StatusOK, c.do(http.MethodPost,
		fmt.Sprintf("%s/flag?row=%d&col=%d", path, flagged.Row, flagged.Col), &ev))
	require.Equal(t, "flagged", ev.Outcome)

	ev = reveal(c, path, hit.Row, hit.Col)
	assert.Equal(t, "hit_mine", ev.Outcome)
	assert.Empty(t, ev.Cells)
	assert.ElementsMatch(t, ms[1:], ev.Mines)
	assert.NotContains(t, ev.Mines, flagged)

	assert.Equal(t, "lost", ev.Board.Status)
	assert.Equal(t, "F", ev.Board.Cells[at(flagged)].Text)
	assert.Equal(t, "flagged", ev.Board.Cells[at(flagged)].State)
	assert.Equal(t, "X", ev.Board.Cells[at(hit)].Text)
	assert.True(t, ev.Board.Cells[at(hit)].Exploded)
	for _, p := range ms[2:] {
		assert.Equal(t, "*", ev.Board.Cells[at(p)].Text)
		assert.True(t, ev.Board.Cells[at(p)].Mine)
	}

	// the board is frozen
	ev = reveal(c, path, ms[2].Row, ms[2].Col)
	assert.Equal(t, "noop", ev.Outcome)
	ev = EventDTO{}
	require.Equal(t, http.StatusOK, c.do(http.MethodPost,
		fmt.Sprintf("%s/flag?row=%d&col=%d", path, flagged.Row, flagged.Col), &ev))
	assert.Equal(t, "noop", ev.Outcome)
	assert.Equal(t, "F", ev.Board.Cells[at(flagged)].Text)
}

func wsURL(srv *httptest.Server, id string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/game/" + id + "/connect"
}

func TestWebSocketCommands(t *testing.T) {
	srv := setupTestServer(t)
	board, c := newGame(t, srv, "")

	conn, resp, err := websocket.DefaultDialer.Dial(
		wsURL(srv, board.SessionID),
		http.Header{"Authorization": {"Bearer " + c.token}},
	)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte("g\nf 0 0\no 0 0\n\nx 1\no 9 9\no 1\nn\n")))

	want := []struct {
		command, outcome string
		failed           bool
	}{
		{"get", "", false},
		{"flag", "flagged", false},
		{"reveal", "noop", false},
		{"x 1", "", true},
		{"o 9 9", "", true},
		{"o 1", "", true},
		{"restart", "restarted", false},
	}
	for _, w := range want {
		var ev EventDTO
		require.NoError(t, conn.ReadJSON(&ev))
		assert.Equal(t, w.command, ev.Command)
		assert.Equal(t, w.outcome, ev.Outcome)
		if w.failed {
			assert.NotEmpty(t, ev.Error)
			assert.Nil(t, ev.Board)
		} else {
			assert.Empty(t, ev.Error)
			require.NotNil(t, ev.Board)
		}
	}

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("o 4 4")))
	var ev EventDTO
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Contains(t, []string{"revealed", "won"}, ev.Outcome)
	assert.NotEqual(t, "not_started", ev.Board.Status)
}

func TestWebSocketClosesWithSession(t *testing.T) {
	srv := setupTestServer(t)
	board, c := newGame(t, srv, "")

	conn, resp, err := websocket.DefaultDialer.Dial(
		wsURL(srv, board.SessionID),
		http.Header{"Authorization": {"Bearer " + c.token}},
	)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("g")))
	var ev EventDTO
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "get", ev.Command)

	require.Equal(t, http.StatusNoContent, c.do(http.MethodDelete, "/game/"+board.SessionID, nil))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("o 0 0")))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}

func TestWebSocketRequiresToken(t *testing.T) {
	srv := setupTestServer(t)
	board, _ := newGame(t, srv, "")

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, board.SessionID), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestParseMove(t *testing.T) {
	testCases := []struct {
		line string
		want move
		ok   bool
	}{
		{"g", move{cmd: cmdGet}, true},
		{"n", move{cmd: cmdRestart}, true},
		{"o 3 4", move{cmdOpen, PositionDTO{3, 4}}, true},
		{"  f   0 7 ", move{cmdFlag, PositionDTO{0, 7}}, true},
		{"o -1 2", move{cmdOpen, PositionDTO{-1, 2}}, true},
		{"", move{}, false},
		{"o 3", move{}, false},
		{"g 1 2", move{}, false},
		{"o a 2", move{}, false},
		{"o 2 b", move{}, false},
		{"r", move{}, false},
	}
	for _, test := range testCases {
		t.Run(test.line, func(t *testing.T) {
			m, err := parseMove(test.line)
			if !test.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.want, m)
		})
	}
}

func TestColorFor(t *testing.T) {
	assert.Equal(t, "", colorFor(0))
	assert.Equal(t, "blue", colorFor(1))
	assert.Equal(t, "darkblue", colorFor(4))
	assert.Equal(t, "gray", colorFor(8))
	assert.Equal(t, "", colorFor(9))
	assert.Equal(t, "", colorFor(-1))
}

func TestIterBySep(t *testing.T) {
	testCases := []struct {
		input string
		sep   string
		array []string
	}{
		{"a b c", " ", []string{"a", "b", "c"}},
		{"foo\nbar\nbaz\n\nbazz", "\n", []string{"foo", "bar", "baz", "", "bazz"}},
	}
	for _, test := range testCases {
		var got []string
		for i, p := range iterBySep(test.input, test.sep) {
			assert.Equal(t, len(got), i)
			got = append(got, p)
		}
		assert.Equal(t, test.array, got)
	}
}
