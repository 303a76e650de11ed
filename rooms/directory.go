package rooms

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/judgegodwins/ludo-server/game"
	"github.com/judgegodwins/ludo-server/store"
	"github.com/judgegodwins/ludo-server/util"
	"golang.org/x/exp/slices"
)

const (
	maxCodeAttempts  = 10
	maxStartAttempts = 3
)

var (
	errCodeTaken    = errors.New("room code taken")
	errSeatsChanged = errors.New("players changed while the game was starting")
)

type playerRequest struct {
	Name     string `json:"name" validate:"required,max=24"`
	PlayerID string `json:"playerId" validate:"required"`
}

type joinRequest struct {
	Code     string `json:"code" validate:"required,roomcode"`
	Name     string `json:"name" validate:"required,max=24"`
	PlayerID string `json:"playerId" validate:"required"`
}

// Directory is the lobby. It holds no room state of its own; everything lives
// in the store under rooms/{code} and games/{code}.
type Directory struct {
	store store.Store
	codes CodeGenerator
	rules game.Rules
	now   func() time.Time
}

type Option func(*Directory)

func WithCodeGenerator(g CodeGenerator) Option {
	return func(d *Directory) { d.codes = g }
}

// WithRules sets the house rules for games started from now on.
func WithRules(r game.Rules) Option {
	return func(d *Directory) { d.rules = r }
}

func WithClock(now func() time.Time) Option {
	return func(d *Directory) { d.now = now }
}

func NewDirectory(s store.Store, opts ...Option) *Directory {
	d := &Directory{
		store: s,
		codes: RandomCode,
		rules: game.DefaultRules(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// CreateRoom opens a waiting room with the host seated alone.
func (d *Directory) CreateRoom(ctx context.Context, hostName, hostID string) (string, error) {
	req := playerRequest{Name: strings.TrimSpace(hostName), PlayerID: hostID}
	if err := validate(req); err != nil {
		return "", err
	}

	now := d.now()
	for i := 0; i < maxCodeAttempts; i++ {
		code, err := d.codes()
		if err != nil {
			return "", err
		}

		room := Room{
			Code: code,
			Host: req.PlayerID,
			Players: map[string]Player{
				req.PlayerID: {Name: req.Name, Ready: true, Seat: 0, JoinedAt: now},
			},
			Status:    StatusWaiting,
			NextSeat:  1,
			CreatedAt: now,
		}

		err = d.store.Transact(ctx, util.RoomPath(code), func(current store.Snapshot) (map[string]any, error) {
			if current.Exists {
				return nil, errCodeTaken
			}
			return map[string]any{"": room}, nil
		})

		if errors.Is(err, errCodeTaken) {
			continue
		}
		if err != nil {
			return "", err
		}

		return code, nil
	}

	return "", ErrCodeSpace
}

// JoinRoom seats playerID in a waiting room. Joining again with the same id
// only updates the stored name.
func (d *Directory) JoinRoom(ctx context.Context, code, name, playerID string) (string, error) {
	req := joinRequest{
		Code:     util.NormalizeRoomCode(code),
		Name:     strings.TrimSpace(name),
		PlayerID: playerID,
	}
	if err := validate(req); err != nil {
		return "", err
	}

	now := d.now()
	err := d.store.Transact(ctx, util.RoomPath(req.Code), func(current store.Snapshot) (map[string]any, error) {
		room, err := decodeRoom(current)
		if err != nil {
			return nil, err
		}

		if room.Status != StatusWaiting {
			return nil, ErrGameAlreadyStarted
		}

		if room.Has(req.PlayerID) {
			return map[string]any{
				"players/" + req.PlayerID + "/name": req.Name,
			}, nil
		}

		if room.Full() {
			return nil, ErrRoomFull
		}

		return map[string]any{
			"players/" + req.PlayerID: Player{Name: req.Name, Ready: true, Seat: room.NextSeat, JoinedAt: now},
			"nextSeat":                room.NextSeat + 1,
		}, nil
	})
	if err != nil {
		return "", err
	}

	return req.Code, nil
}

// LeaveRoom unseats playerID before the game starts. The room closes when the
// host leaves. It reports whether the room was closed.
func (d *Directory) LeaveRoom(ctx context.Context, code, playerID string) (bool, error) {
	code = util.NormalizeRoomCode(code)
	closed := false

	err := d.store.Transact(ctx, util.RoomPath(code), func(current store.Snapshot) (map[string]any, error) {
		room, err := decodeRoom(current)
		if err != nil {
			return nil, err
		}

		if !room.Has(playerID) {
			return nil, nil
		}
		if room.Status != StatusWaiting {
			return nil, ErrGameAlreadyStarted
		}

		if room.Host == playerID {
			closed = true
			return map[string]any{"": nil}, nil
		}

		return map[string]any{"players/" + playerID: nil}, nil
	})
	if err != nil {
		return false, err
	}

	if closed {
		if err := d.store.Remove(ctx, util.ChatPath(code)); err != nil {
			log.Printf("rooms: clearing chat of closed room %s: %v", code, err)
		}
	}

	return closed, nil
}

// StartGame deals colors to everyone seated and writes the opening game
// state. Players who join later are not part of the game.
//
// The game document is created first and the room flips to playing only once
// it exists. If the room changed in between, the new game is withdrawn.
func (d *Directory) StartGame(ctx context.Context, code, callerID string) (game.State, error) {
	code = util.NormalizeRoomCode(code)

	for i := 0; i < maxStartAttempts; i++ {
		state, err := d.startGame(ctx, code, callerID)
		if errors.Is(err, errSeatsChanged) {
			continue
		}
		return state, err
	}

	return game.State{}, errSeatsChanged
}

func (d *Directory) startGame(ctx context.Context, code, callerID string) (game.State, error) {
	room, err := d.Get(ctx, code)
	if err != nil {
		return game.State{}, err
	}
	if err := room.canStart(callerID); err != nil {
		return game.State{}, err
	}

	state, err := game.New(room.seats(), d.rules, d.now())
	if err != nil {
		return game.State{}, err
	}

	err = d.store.Transact(ctx, util.GamePath(code), func(current store.Snapshot) (map[string]any, error) {
		if current.Exists {
			return nil, ErrGameAlreadyStarted
		}
		return map[string]any{"": state}, nil
	})
	if err != nil {
		return game.State{}, err
	}

	err = d.store.Transact(ctx, util.RoomPath(code), func(current store.Snapshot) (map[string]any, error) {
		room, err := decodeRoom(current)
		if err != nil {
			return nil, err
		}
		if err := room.canStart(callerID); err != nil {
			return nil, err
		}
		if !slices.Equal(room.Order(), state.PlayerOrder) {
			return nil, errSeatsChanged
		}

		changes := map[string]any{"status": StatusPlaying}
		for id, info := range state.Players {
			changes["players/"+id+"/color"] = info.Color
		}
		return changes, nil
	})
	if err != nil {
		d.withdrawGame(ctx, code, state)
		return game.State{}, err
	}

	return state, nil
}

// withdrawGame removes a game created by a start that did not go through,
// unless it has already been played on.
func (d *Directory) withdrawGame(ctx context.Context, code string, created game.State) {
	err := d.store.Transact(ctx, util.GamePath(code), func(current store.Snapshot) (map[string]any, error) {
		var state game.State
		if err := current.Decode(&state); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, nil
			}
			return nil, err
		}
		if state.Seq != 0 || !state.StartedAt.Equal(created.StartedAt) {
			return nil, nil
		}
		return map[string]any{"": nil}, nil
	})
	if err != nil {
		log.Printf("rooms: withdrawing game of %s: %v", code, err)
	}
}

// EndGame discards the game and chat and marks the room ended. Ending an
// already ended or missing game is not an error.
func (d *Directory) EndGame(ctx context.Context, code string) error {
	code = util.NormalizeRoomCode(code)

	if err := d.store.Remove(ctx, util.GamePath(code)); err != nil {
		return err
	}
	if err := d.store.Remove(ctx, util.ChatPath(code)); err != nil {
		return err
	}

	return d.store.Transact(ctx, util.RoomPath(code), func(current store.Snapshot) (map[string]any, error) {
		if !current.Exists {
			return nil, nil
		}
		return map[string]any{"status": StatusEnded}, nil
	})
}

// EndGameBy ends the game on behalf of callerID. The host may end it at any
// time; other seated players only once the game has a winner.
func (d *Directory) EndGameBy(ctx context.Context, code, callerID string) error {
	room, err := d.Get(ctx, code)
	if err != nil {
		return err
	}

	if room.Host != callerID {
		if !room.Has(callerID) {
			return ErrNotHost
		}

		snap, err := d.store.Get(ctx, util.GamePath(room.Code))
		if err != nil {
			return err
		}

		// without a game there is no winner yet
		var state game.State
		if err := snap.Decode(&state); errors.Is(err, store.ErrNotFound) {
			return ErrNotHost
		} else if err != nil {
			return err
		}
		if !state.Over() {
			return ErrNotHost
		}
	}

	return d.EndGame(ctx, room.Code)
}

// Get reads a room once.
func (d *Directory) Get(ctx context.Context, code string) (Room, error) {
	snap, err := d.store.Get(ctx, util.RoomPath(util.NormalizeRoomCode(code)))
	if err != nil {
		return Room{}, err
	}
	return decodeRoom(snap)
}

// Watch calls fn with the room now and after every change. A closed room is
// reported with ok false.
func (d *Directory) Watch(ctx context.Context, code string, fn func(room Room, ok bool)) (*store.Subscription, error) {
	return d.store.Subscribe(ctx, util.RoomPath(util.NormalizeRoomCode(code)), func(snap store.Snapshot) {
		room, err := decodeRoom(snap)
		if err != nil {
			if !errors.Is(err, ErrRoomNotFound) {
				log.Printf("rooms: decoding %s: %v", snap.Path, err)
			}
			fn(Room{}, false)
			return
		}
		fn(room, true)
	})
}

func decodeRoom(snap store.Snapshot) (Room, error) {
	var room Room
	if err := snap.Decode(&room); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Room{}, ErrRoomNotFound
		}
		return Room{}, err
	}
	return room, nil
}
