package handlers

import (
	"net/url"

	"github.com/gorilla/schema"

	"github.com/vancomm/minesweeper/internal/mines"
	"github.com/vancomm/minesweeper/internal/session"
)

var decoder = schema.NewDecoder()

func init() {
	decoder.IgnoreUnknownKeys(true)
}

type NewGameDTO struct {
	Rows      int `schema:"rows"`
	Cols      int `schema:"cols"`
	MineCount int `schema:"mines"`
}

// ParseNewGameDTO reads the board parameters from src; absent keys keep
// the values from defaults.
func ParseNewGameDTO(src url.Values, defaults mines.Params) (mines.Params, error) {
	dto := NewGameDTO(defaults)
	err := decoder.Decode(&dto, src)
	return mines.Params(dto), err
}

type PositionDTO struct {
	Row int `schema:"row,required"`
	Col int `schema:"col,required"`
}

func ParsePosition(src url.Values) (PositionDTO, error) {
	var dto PositionDTO
	err := decoder.Decode(&dto, src)
	return dto, err
}

// Colours for adjacency counts 1 to 8.
var palette = [...]string{
	1: "blue",
	2: "green",
	3: "red",
	4: "darkblue",
	5: "darkred",
	6: "cyan",
	7: "black",
	8: "gray",
}

func colorFor(adjacent int) string {
	if 1 <= adjacent && adjacent < len(palette) {
		return palette[adjacent]
	}
	return ""
}

type CellDTO struct {
	Row      int    `json:"row"`
	Col      int    `json:"col"`
	State    string `json:"state"`
	Text     string `json:"text"`
	Color    string `json:"color,omitempty"`
	Adjacent int    `json:"adjacent,omitempty"`
	Mine     bool   `json:"mine,omitempty"`
	Exploded bool   `json:"exploded,omitempty"`
}

func NewCellDTO(v mines.CellView) CellDTO {
	return CellDTO{
		Row:      v.Row,
		Col:      v.Col,
		State:    v.State.String(),
		Text:     v.Symbol(),
		Color:    colorFor(v.Adjacent),
		Adjacent: v.Adjacent,
		Mine:     v.Mine,
		Exploded: v.Exploded,
	}
}

type RevealedDTO struct {
	Row      int    `json:"row"`
	Col      int    `json:"col"`
	Adjacent int    `json:"adjacent"`
	Color    string `json:"color,omitempty"`
}

func newRevealedDTOs(cells []mines.RevealedCell) []RevealedDTO {
	dtos := make([]RevealedDTO, len(cells))
	for i, c := range cells {
		dtos[i] = RevealedDTO{
			Row:      c.Row,
			Col:      c.Col,
			Adjacent: c.Adjacent,
			Color:    colorFor(c.Adjacent),
		}
	}
	return dtos
}

type BoardDTO struct {
	SessionID      string    `json:"session_id"`
	Rows           int       `json:"rows"`
	Cols           int       `json:"cols"`
	MineCount      int       `json:"mine_count"`
	Status         string    `json:"status"`
	RemainingMines int       `json:"remaining_mines"`
	StartedAt      int64     `json:"started_at"`
	Cells          []CellDTO `json:"cells"`
}

func NewBoardDTO(s *session.Session, b *mines.Board) BoardDTO {
	snap := b.Snapshot()
	cells := make([]CellDTO, len(snap.Cells))
	for i, v := range snap.Cells {
		cells[i] = NewCellDTO(v)
	}
	return BoardDTO{
		SessionID:      s.ID,
		Rows:           snap.Params.Rows,
		Cols:           snap.Params.Cols,
		MineCount:      snap.Params.MineCount,
		Status:         snap.Status.String(),
		RemainingMines: snap.RemainingMines,
		StartedAt:      s.StartedAt.UnixMilli(),
		Cells:          cells,
	}
}

type NewGameResponseDTO struct {
	Token string   `json:"token"`
	Board BoardDTO `json:"board"`
}

// EventDTO is the reply to one move, over HTTP or WebSocket.
type EventDTO struct {
	Command string        `json:"command"`
	Outcome string        `json:"outcome,omitempty"`
	Error   string        `json:"error,omitempty"`
	Cells   []RevealedDTO `json:"cells,omitempty"`
	Mines   []mines.Coord `json:"mines,omitempty"`
	Board   *BoardDTO     `json:"board,omitempty"`
}
