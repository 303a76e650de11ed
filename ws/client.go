package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/exp/slices"
)

var (
	pongWait     = 10 * time.Second
	pingInterval = (pongWait * 9) / 10
	writeWait    = 5 * time.Second
)

const (
	maxMessageSize = 4096
	egressBuffer   = 64
)

type Client struct {
	ID          string
	connection  *websocket.Conn
	manager     *Manager
	egress      chan Event
	JoinedRooms []string
	Session     *Session
	ctx         context.Context
	err         chan error
}

func NewClient(ctx context.Context, conn *websocket.Conn, manager *Manager, session *Session) *Client {
	return &Client{
		ID:          uuid.NewString(),
		connection:  conn,
		manager:     manager,
		egress:      make(chan Event, egressBuffer),
		JoinedRooms: []string{},
		Session:     session,
		ctx:         ctx,
		err:         make(chan error, 2),
	}
}

// Reads incoming messages from the clients websocket connection
func (c *Client) readMessages(ctx context.Context) {
	c.connection.SetReadLimit(maxMessageSize)

	if err := c.connection.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.handleError(err)
		return
	}

	c.connection.SetPongHandler(c.pongHandler)

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, payload, err := c.connection.ReadMessage()

			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("error reading message: %v", err)
				}
				c.handleError(err)
				return
			}

			var evt Event

			if err := json.Unmarshal(payload, &evt); err != nil {
				c.handleError(err)
				return
			}

			if err := c.manager.routeEvent(ctx, evt, c); err != nil {
				c.manager.logRejected(evt, c, err)

				// every failed intent is answered on its trace id
				errEvent, err := NewErrorEvent(evt.TraceID, err.Error())

				if err != nil {
					c.handleError(err)
					return
				}

				c.PushToEgress(errEvent)
			}
		}
	}
}

// writes messages pushed to the client's egress channel
func (c *Client) writeMessages(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)

	defer func() {
		ticker.Stop()
	}()

	for {
		select {
		// if the context is cancelled, return
		case <-ctx.Done():
			return
		case message := <-c.egress:
			data, err := json.Marshal(message)

			if err != nil {
				c.handleError(err)
				return
			}

			c.connection.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.connection.WriteMessage(websocket.TextMessage, data); err != nil {
				c.handleError(err)
				return
			}
		case <-ticker.C:
			c.connection.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.connection.WriteMessage(websocket.PingMessage, []byte("")); err != nil {
				c.handleError(err)
				return
			}
		}
	}
}

// Sets a new read deadline when a pong is received for a ping message.
func (c *Client) pongHandler(pongMsg string) error {
	return c.connection.SetReadDeadline(time.Now().Add(pongWait))
}

// Reports the first error from the read or write pump. ServeWS closes the
// connection and removes the client when one arrives.
func (c *Client) handleError(e error) {
	select {
	case c.err <- e:
	default:
	}
}

// Returns the error channel
func (c *Client) Err() chan error {
	return c.err
}

// Creates an event and pushes to client's egress
func (c *Client) PushEventToEgress(evtType string, payload any) error {
	evt, err := NewEvent(evtType, payload)
	if err != nil {
		return err
	}
	c.PushToEgress(evt)
	return nil
}

// Pushes an event to the client's egress to be delivered via the websocket
// connection. Events for a closed connection are dropped.
func (c *Client) PushToEgress(evt Event) {
	select {
	case c.egress <- evt:
	case <-c.ctx.Done():
	}
}

// Helper method to join a room
func (c *Client) Join(roomId string) {
	c.manager.Lock()
	defer c.manager.Unlock()

	room, ok := c.manager.Rooms[roomId]

	// if room doesn't exist, create one
	if !ok {
		c.manager.Rooms[roomId] = make([]*Client, 0)
		room = c.manager.Rooms[roomId]
	}

	// if client is not in room
	if !slices.Contains(room, c) {
		c.manager.Rooms[roomId] = append(room, c)
	}

	if !slices.Contains(c.JoinedRooms, roomId) {
		c.JoinedRooms = append(c.JoinedRooms, roomId)
	}
}

// Leave causes a client to leave a room
func (c *Client) Leave(roomId string) {
	c.manager.Lock()
	defer c.manager.Unlock()

	room, ok := c.manager.Rooms[roomId]

	if !ok {
		return
	}

	index := slices.Index(room, c)

	joinedRoomsIndex := slices.Index(c.JoinedRooms, roomId)

	// remove client from room slice
	if index >= 0 {
		c.manager.Rooms[roomId] = slices.Delete(room, index, index+1)
	}

	if len(c.manager.Rooms[roomId]) == 0 {
		delete(c.manager.Rooms, roomId)
	}

	// remove roomId from list of joined rooms
	if joinedRoomsIndex >= 0 {
		c.JoinedRooms = slices.Delete(c.JoinedRooms, joinedRoomsIndex, joinedRoomsIndex+1)
	}
}

func (c *Client) LeaveAllRooms() {
	for _, room := range slices.Clone(c.JoinedRooms) {
		c.Leave(room)
	}
}

// Emits a user_disconnect event to every room the client was in, unless the
// same player is still connected there on another client.
func (c *Client) EmitDisconnect() error {
	evt, err := NewEvent(EventUserDisconnect, PayloadUser{
		UserID: c.Session.PlayerID,
	})

	if err != nil {
		return err
	}

	for _, room := range slices.Clone(c.JoinedRooms) {
		if c.manager.playerConnected(room, c.Session.PlayerID, c) {
			continue
		}
		c.manager.EmitToRoom(room, evt)
	}

	return nil
}

var errNotInRoom = errors.New("join a room first")

// room returns the code of the room the client's session is in.
func (c *Client) room() (string, error) {
	code := c.Session.Room()
	if code == "" {
		return "", errNotInRoom
	}
	return code, nil
}
