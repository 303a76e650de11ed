package ws

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/judgegodwins/ludo-server/chat"
	"github.com/judgegodwins/ludo-server/game"
	"github.com/judgegodwins/ludo-server/rooms"
)

type Event struct {
	Type    string          `json:"type"`
	TraceID string          `json:"trace_id"`
	Payload json.RawMessage `json:"payload"`
}

type EventHandler func(ctx context.Context, evt Event, c *Client) error

// intents sent by players
const (
	EventJoinRoom    = "join_room"
	EventLeaveRoom   = "leave_room"
	EventStartGame   = "start_game"
	EventRollDice    = "roll_dice"
	EventMovePawn    = "move_pawn"
	EventSendMessage = "send_message"
	EventEndGame     = "end_game"
)

// notifications sent by the server
const (
	EventJoinedRoom     = "joined_room"
	EventLeftRoom       = "left_room"
	EventRoomState      = "room_state"
	EventGameState      = "game_state"
	EventGameStarted    = "game_started"
	EventDiceRolled     = "dice_rolled"
	EventPawnMoved      = "pawn_moved"
	EventChatMessage    = "chat_message"
	EventRoomClosed     = "room_closed"
	EventRoomNotFound   = "room_not_found"
	EventRoomFull       = "room_full"
	EventUserConnect    = "user_connect"
	EventUserDisconnect = "user_disconnect"
	EventConnElsewhere  = "conn_elsewhere"
	EventError          = "error"
)

type PayloadError struct {
	Message string `json:"message"`
}

type PayloadJoinRoom struct {
	Code string `json:"code"`
	// Name overrides the token's username for this room.
	Name string `json:"name"`
}

type PayloadRoll struct {
	Seq int `json:"seq"`
}

type PayloadMovePawn struct {
	PawnID game.PawnID `json:"pawnId"`
	Seq    int         `json:"seq"`
}

type PayloadSendMessage struct {
	Body string `json:"body"`
}

type PayloadRoom struct {
	Code string `json:"code"`
}

type PayloadJoinedRoom struct {
	Room    rooms.Room     `json:"room"`
	History []chat.Message `json:"history"`
}

type PayloadGameState struct {
	State game.State `json:"state"`
	// LegalMoves are the pawns the receiving player may move right now.
	LegalMoves []game.PawnID `json:"legalMoves"`
}

type PayloadUser struct {
	UserID string `json:"user_id"`
}

func NewEvent(evtType string, payload any) (Event, error) {
	b, err := json.Marshal(payload)

	if err != nil {
		return Event{}, err
	}

	evt := NewEventStruct(evtType, b, "")

	return evt, nil
}

func NewErrorEvent(traceId, message string) (Event, error) {
	payload := PayloadError{Message: message}
	b, err := json.Marshal(payload)

	if err != nil {
		return Event{}, err
	}

	evt := NewEventStruct(fmt.Sprintf("%v_%v", EventError, traceId), b, traceId)

	return evt, nil
}

func NewEventStruct(evtType string, payload []byte, traceId string) Event {
	return Event{
		Type:    evtType,
		TraceID: traceId,
		Payload: payload,
	}
}
