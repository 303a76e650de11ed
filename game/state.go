// Package game is the turn engine. Every operation takes a State value and
// returns the next one together with the field changes to persist; nothing in
// here touches the store.
package game

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/judgegodwins/ludo-server/board"
)

const PawnsPerPlayer = 4

const (
	MinPlayers = 2
	MaxPlayers = 4
)

var (
	ErrNotYourTurn        = errors.New("not your turn")
	ErrRollAlreadyPending = errors.New("a roll is already pending")
	ErrNoRollPending      = errors.New("no roll pending")
	ErrNotOwner           = errors.New("pawn belongs to another player")
	ErrIllegalMove        = errors.New("illegal move")
	ErrUnknownPawn        = errors.New("unknown pawn")
	ErrGameOver           = errors.New("game is over")
	ErrPlayerCount        = errors.New("a game needs between 2 and 4 players")
	ErrStaleIntent        = errors.New("intent was made against an older state")
)

type PawnState string

const (
	InYard       PawnState = "in_yard"
	OnPath       PawnState = "on_path"
	InHomeColumn PawnState = "in_home_column"
	Finished     PawnState = "finished"
)

// Position is where a pawn is. Offset is the ring offset for OnPath, the
// offset inside the home column for InHomeColumn and the yard slot for InYard.
type Position struct {
	State  PawnState `json:"state"`
	Offset int       `json:"offset"`
}

func Yard(slot int) Position { return Position{State: InYard, Offset: slot} }

func Path(offset int) Position { return Position{State: OnPath, Offset: offset} }

func HomeColumn(offset int) Position { return Position{State: InHomeColumn, Offset: offset} }

func Home() Position { return Position{State: Finished, Offset: board.HomeColumnSize - 1} }

// PathOffset is the offset along the color's whole path. ok is false for pawns
// still in the yard.
func (p Position) PathOffset() (offset int, ok bool) {
	switch p.State {
	case OnPath:
		return p.Offset, true
	case InHomeColumn:
		return board.HomeEntry + p.Offset, true
	case Finished:
		return board.Terminal, true
	default:
		return 0, false
	}
}

func positionAt(step board.Step) Position {
	switch step.Segment {
	case board.SegmentTerminal:
		return Home()
	case board.SegmentHomeColumn:
		return HomeColumn(step.HomeOffset())
	default:
		return Path(step.Offset)
	}
}

type PawnID string

func NewPawnID(owner string, index int) PawnID {
	return PawnID(fmt.Sprintf("%s-%d", owner, index))
}

type Pawn struct {
	Owner    string      `json:"owner"`
	Color    board.Color `json:"color"`
	Index    int         `json:"index"`
	Position Position    `json:"position"`
}

// Cell returns the ring cell the pawn stands on, if any.
func (p Pawn) Cell() (int, bool) {
	if p.Position.State != OnPath {
		return 0, false
	}
	return board.Cell(p.Color, p.Position.Offset)
}

type PlayerInfo struct {
	Name          string      `json:"name"`
	Color         board.Color `json:"color"`
	FinishedPawns int         `json:"finishedPawns"`
}

type Status string

const (
	StatusPlaying Status = "playing"
	StatusOver    Status = "over"
)

// Rules are the house rules a game was started with.
type Rules struct {
	// CaptureGrantsExtraTurn lets a capturing player roll again even without a six.
	CaptureGrantsExtraTurn bool `json:"captureGrantsExtraTurn"`
}

func DefaultRules() Rules {
	return Rules{CaptureGrantsExtraTurn: true}
}

type State struct {
	Rules            Rules                 `json:"rules"`
	PlayerOrder      []string              `json:"playerOrder"`
	Players          map[string]PlayerInfo `json:"players"`
	Pawns            map[PawnID]Pawn       `json:"pawns"`
	CurrentTurnIndex int                   `json:"currentTurnIndex"`
	PendingDiceValue *int                  `json:"pendingDiceValue"`
	LastRoll         int                   `json:"lastRoll"`
	Winner           *string               `json:"winner"`
	Status           Status                `json:"status"`
	// LastAction is what the most recent roll or move did, for clients to
	// animate.
	LastAction *Effects `json:"lastAction,omitempty"`
	// Seq counts committed transitions; intents may quote it to avoid being
	// applied twice.
	Seq       int       `json:"seq"`
	StartedAt time.Time `json:"startedAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Seat is a player taking part in a new game, in join order.
type Seat struct {
	ID   string
	Name string
}

// New deals colors in seat order and puts four pawns per player in the yard.
func New(seats []Seat, rules Rules, now time.Time) (State, error) {
	if len(seats) < MinPlayers || len(seats) > MaxPlayers {
		return State{}, ErrPlayerCount
	}

	s := State{
		Rules:       rules,
		PlayerOrder: make([]string, 0, len(seats)),
		Players:     make(map[string]PlayerInfo, len(seats)),
		Pawns:       make(map[PawnID]Pawn, len(seats)*PawnsPerPlayer),
		Status:      StatusPlaying,
		StartedAt:   now,
		UpdatedAt:   now,
	}

	for i, seat := range seats {
		if _, dup := s.Players[seat.ID]; dup {
			return State{}, fmt.Errorf("player %s seated twice", seat.ID)
		}

		color, err := board.ColorAt(i)
		if err != nil {
			return State{}, err
		}

		s.PlayerOrder = append(s.PlayerOrder, seat.ID)
		s.Players[seat.ID] = PlayerInfo{Name: seat.Name, Color: color}

		for idx := 0; idx < PawnsPerPlayer; idx++ {
			s.Pawns[NewPawnID(seat.ID, idx)] = Pawn{
				Owner:    seat.ID,
				Color:    color,
				Index:    idx,
				Position: Yard(idx),
			}
		}
	}

	return s, nil
}

// CurrentPlayer is the id whose turn it is.
func (s State) CurrentPlayer() string {
	if len(s.PlayerOrder) == 0 {
		return ""
	}
	return s.PlayerOrder[s.CurrentTurnIndex%len(s.PlayerOrder)]
}

func (s State) Over() bool {
	return s.Winner != nil
}

// PawnsOf returns the ids of a player's pawns ordered by pawn index.
func (s State) PawnsOf(owner string) []PawnID {
	ids := make([]PawnID, 0, PawnsPerPlayer)
	for id, p := range s.Pawns {
		if p.Owner == owner {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		return s.Pawns[ids[i]].Index < s.Pawns[ids[j]].Index
	})
	return ids
}

// sortedPawnIDs gives a stable scan order so "first occupant found" is
// deterministic.
func (s State) sortedPawnIDs() []PawnID {
	ids := make([]PawnID, 0, len(s.Pawns))
	for id := range s.Pawns {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s State) clone() State {
	out := s
	out.PlayerOrder = append([]string(nil), s.PlayerOrder...)

	out.Players = make(map[string]PlayerInfo, len(s.Players))
	for k, v := range s.Players {
		out.Players[k] = v
	}

	out.Pawns = make(map[PawnID]Pawn, len(s.Pawns))
	for k, v := range s.Pawns {
		out.Pawns[k] = v
	}

	if s.PendingDiceValue != nil {
		v := *s.PendingDiceValue
		out.PendingDiceValue = &v
	}
	if s.Winner != nil {
		w := *s.Winner
		out.Winner = &w
	}
	if s.LastAction != nil {
		a := *s.LastAction
		out.LastAction = &a
	}

	return out
}
