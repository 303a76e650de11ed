package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/judgegodwins/ludo-server/chat"
	"github.com/judgegodwins/ludo-server/game"
	"github.com/judgegodwins/ludo-server/rooms"
	"github.com/judgegodwins/ludo-server/store"
	"github.com/judgegodwins/ludo-server/util"
	"github.com/samber/lo"
)

var ErrNoGame = errors.New("no game is running in this room")

func JoinRoom(ctx context.Context, e Event, c *Client) error {
	var payload PayloadJoinRoom

	if err := json.Unmarshal(e.Payload, &payload); err != nil {
		return err
	}

	code := util.NormalizeRoomCode(payload.Code)
	player := c.Session.PlayerID

	if !util.IsRoomCode(code) {
		return c.PushEventToEgress(EventRoomNotFound, PayloadRoom{Code: code})
	}

	room, err := c.manager.rooms.Get(ctx, code)

	if errors.Is(err, rooms.ErrRoomNotFound) {
		return c.PushEventToEgress(EventRoomNotFound, PayloadRoom{Code: code})
	}
	if err != nil {
		return err
	}

	if room.Has(player) {
		// the player may still have this room open on another device
		c.manager.RLock()
		others := lo.Filter(c.manager.Rooms[code], func(client *Client, _ int) bool {
			return client.Session.PlayerID == player && client.ID != c.ID
		})
		c.manager.RUnlock()

		for _, client := range others {
			client.PushEventToEgress(EventConnElsewhere, PayloadRoom{Code: code})
		}
	} else {
		name := payload.Name
		if name == "" {
			name = c.Session.Username
		}

		_, err := c.manager.rooms.JoinRoom(ctx, code, name, player)

		switch {
		case errors.Is(err, rooms.ErrRoomFull):
			return c.PushEventToEgress(EventRoomFull, PayloadRoom{Code: code})
		case errors.Is(err, rooms.ErrRoomNotFound):
			return c.PushEventToEgress(EventRoomNotFound, PayloadRoom{Code: code})
		case err != nil:
			return err
		}

		if room, err = c.manager.rooms.Get(ctx, code); err != nil {
			return err
		}
	}

	if err := attach(ctx, c, room); err != nil {
		c.Session.ReleaseIf(code)
		return err
	}

	evt, err := NewEvent(EventUserConnect, PayloadUser{UserID: player})
	if err != nil {
		return err
	}

	c.manager.EmitToRoom(code, evt)

	return nil
}

// attach points the client's session at room and subscribes it to the room,
// its game and its chat.
func attach(ctx context.Context, c *Client, room rooms.Room) error {
	code := room.Code

	if old := c.Session.Room(); old != "" && old != code {
		detach(c, old)
	}
	c.Session.Enter(code)

	// subscribe to chat before reading history so nothing falls in between;
	// clients drop the rare duplicate by message id
	chatSub, err := c.manager.chat.Subscribe(c.ctx, code, func(msg chat.Message) {
		c.PushEventToEgress(EventChatMessage, msg)
	})
	if err != nil {
		return err
	}
	c.Session.Track(code, chatSub)

	history, err := c.manager.chat.History(ctx, code)
	if err != nil {
		return err
	}

	if err := c.PushEventToEgress(EventJoinedRoom, PayloadJoinedRoom{Room: room, History: history}); err != nil {
		return err
	}

	c.Join(code)

	roomSub, err := c.manager.rooms.Watch(c.ctx, code, func(room rooms.Room, ok bool) {
		if !ok {
			if c.Session.ReleaseIf(code) {
				c.Leave(code)
				c.PushEventToEgress(EventRoomClosed, PayloadRoom{Code: code})
			}
			return
		}
		c.PushEventToEgress(EventRoomState, room)
	})
	if err != nil {
		return err
	}
	c.Session.Track(code, roomSub)

	gameSub, err := c.manager.store.Subscribe(c.ctx, util.GamePath(code), gameFeed(c))
	if err != nil {
		return err
	}
	c.Session.Track(code, gameSub)

	return nil
}

// gameFeed turns game snapshots into events for one client. The first state
// seen is sent whole; after that each new action is announced before the
// state it produced.
func gameFeed(c *Client) store.Handler {
	lastSeq := -1

	return func(snap store.Snapshot) {
		if !snap.Exists {
			lastSeq = -1
			return
		}

		var state game.State
		if err := snap.Decode(&state); err != nil {
			log.Printf("ws: decoding %s: %v", snap.Path, err)
			return
		}

		if state.Seq <= lastSeq {
			return
		}

		if lastSeq >= 0 && state.LastAction != nil && state.LastAction.Seq > lastSeq {
			switch state.LastAction.Action {
			case game.ActionRoll:
				c.PushEventToEgress(EventDiceRolled, state.LastAction)
			case game.ActionMove:
				c.PushEventToEgress(EventPawnMoved, state.LastAction)
			}
		}

		evtType := EventGameState
		if state.Seq == 0 {
			evtType = EventGameStarted
		}
		lastSeq = state.Seq

		c.PushEventToEgress(evtType, PayloadGameState{
			State:      state,
			LegalMoves: game.LegalMoves(state, c.Session.PlayerID),
		})
	}
}

func detach(c *Client, code string) {
	c.Session.ReleaseIf(code)
	c.Leave(code)

	if c.manager.playerConnected(code, c.Session.PlayerID, c) {
		return
	}

	evt, err := NewEvent(EventUserDisconnect, PayloadUser{UserID: c.Session.PlayerID})
	if err != nil {
		log.Println(err)
		return
	}
	c.manager.EmitToRoom(code, evt)
}

func LeaveRoom(ctx context.Context, e Event, c *Client) error {
	code, err := c.room()
	if err != nil {
		return err
	}

	// once the game runs the seat is kept, leaving only stops the updates
	_, err = c.manager.rooms.LeaveRoom(ctx, code, c.Session.PlayerID)
	if err != nil && !errors.Is(err, rooms.ErrGameAlreadyStarted) && !errors.Is(err, rooms.ErrRoomNotFound) {
		return err
	}

	detach(c, code)

	return c.PushEventToEgress(EventLeftRoom, PayloadRoom{Code: code})
}

func StartGame(ctx context.Context, e Event, c *Client) error {
	code, err := c.room()
	if err != nil {
		return err
	}

	_, err = c.manager.rooms.StartGame(ctx, code, c.Session.PlayerID)
	return err
}

func RollDice(ctx context.Context, e Event, c *Client) error {
	var payload PayloadRoll

	if len(e.Payload) > 0 {
		if err := json.Unmarshal(e.Payload, &payload); err != nil {
			return err
		}
	}

	return play(ctx, c, payload.Seq, func(state game.State) (game.Transition, error) {
		return game.Roll(state, c.Session.PlayerID, c.manager.dice, c.manager.now())
	})
}

func MovePawn(ctx context.Context, e Event, c *Client) error {
	var payload PayloadMovePawn

	if err := json.Unmarshal(e.Payload, &payload); err != nil {
		return err
	}

	return play(ctx, c, payload.Seq, func(state game.State) (game.Transition, error) {
		return game.Move(state, c.Session.PlayerID, payload.PawnID, c.manager.now())
	})
}

// play applies one turn-consuming intent against the committed game and
// writes every field it touched in a single transaction. Subscribers learn
// the outcome from the game feed.
func play(ctx context.Context, c *Client, seq int, apply func(game.State) (game.Transition, error)) error {
	code, err := c.room()
	if err != nil {
		return err
	}

	return c.manager.store.Transact(ctx, util.GamePath(code), func(current store.Snapshot) (map[string]any, error) {
		var state game.State
		if err := current.Decode(&state); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, ErrNoGame
			}
			return nil, err
		}

		if err := game.CheckSeq(state, seq); err != nil {
			return nil, err
		}

		tr, err := apply(state)
		if err != nil {
			return nil, err
		}

		return tr.Changes, nil
	})
}

func SendMessage(ctx context.Context, e Event, c *Client) error {
	var payload PayloadSendMessage

	if err := json.Unmarshal(e.Payload, &payload); err != nil {
		return err
	}

	code, err := c.room()
	if err != nil {
		return err
	}

	name := c.Session.Username
	if room, err := c.manager.rooms.Get(ctx, code); err == nil {
		if p, ok := room.Players[c.Session.PlayerID]; ok {
			name = p.Name
		}
	}

	_, err = c.manager.chat.Send(ctx, code, c.Session.PlayerID, name, payload.Body)
	return err
}

func EndGame(ctx context.Context, e Event, c *Client) error {
	code, err := c.room()
	if err != nil {
		return err
	}

	if err := c.manager.rooms.EndGameBy(ctx, code, c.Session.PlayerID); err != nil {
		return fmt.Errorf("ending game: %w", err)
	}

	return nil
}
