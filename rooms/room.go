// Package rooms manages the lobby: creating rooms, seating players, and
// starting and ending the game played in a room.
package rooms

import (
	"sort"
	"time"

	"github.com/judgegodwins/ludo-server/board"
	"github.com/judgegodwins/ludo-server/game"
	"github.com/samber/lo"
)

type Status string

const (
	StatusWaiting Status = "waiting"
	StatusPlaying Status = "playing"
	StatusEnded   Status = "ended"
)

type Player struct {
	Name  string      `json:"name"`
	Color board.Color `json:"color,omitempty"`
	Ready bool        `json:"ready"`
	// Seat records join order, which decides color assignment.
	Seat     int       `json:"seat"`
	JoinedAt time.Time `json:"joinedAt"`
}

type Room struct {
	Code      string            `json:"code"`
	Host      string            `json:"host"`
	Players   map[string]Player `json:"players"`
	Status    Status            `json:"status"`
	NextSeat  int               `json:"nextSeat"`
	CreatedAt time.Time         `json:"createdAt"`
}

func (r Room) Has(playerID string) bool {
	_, ok := r.Players[playerID]
	return ok
}

func (r Room) Full() bool {
	return len(r.Players) >= game.MaxPlayers
}

// Order returns player ids in join order.
func (r Room) Order() []string {
	ids := lo.Keys(r.Players)
	sort.SliceStable(ids, func(i, j int) bool {
		a, b := r.Players[ids[i]], r.Players[ids[j]]
		if a.Seat != b.Seat {
			return a.Seat < b.Seat
		}
		return ids[i] < ids[j]
	})
	return ids
}

// canStart reports why callerID may not start a game in r, if anything.
func (r Room) canStart(callerID string) error {
	if r.Status != StatusWaiting {
		return ErrGameAlreadyStarted
	}
	if r.Host != callerID {
		return ErrNotHost
	}
	if len(r.Players) < game.MinPlayers {
		return ErrNotEnoughPlayers
	}
	return nil
}

func (r Room) seats() []game.Seat {
	return lo.Map(r.Order(), func(id string, _ int) game.Seat {
		return game.Seat{ID: id, Name: r.Players[id].Name}
	})
}
