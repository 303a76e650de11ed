package ws

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/judgegodwins/ludo-server/chat"
	"github.com/judgegodwins/ludo-server/game"
	"github.com/judgegodwins/ludo-server/rooms"
	"github.com/judgegodwins/ludo-server/store"
	"github.com/judgegodwins/ludo-server/tokens"
	"github.com/samber/lo"
)

type ClientList map[string]*Client

type wsQuery struct {
	Token string `form:"token" binding:"required"`
}

type Manager struct {
	clients ClientList
	sync.RWMutex
	handlers map[string]EventHandler
	// Rooms lists the clients on this server attached to each room code.
	Rooms    map[string][]*Client
	upgrader websocket.Upgrader
	origins  []string
	tokens   tokens.Maker
	store    store.Store
	rooms    *rooms.Directory
	chat     *chat.Channel
	dice     game.Dice
	now      func() time.Time
}

type Options struct {
	Tokens    tokens.Maker
	Store     store.Store
	Directory *rooms.Directory
	Chat      *chat.Channel
	Dice      game.Dice
	// AllowedOrigins lists browser origins allowed to connect. "*" allows
	// any origin.
	AllowedOrigins []string
}

func NewManager(opts Options) *Manager {
	m := &Manager{
		clients:  make(ClientList),
		handlers: make(map[string]EventHandler),
		Rooms:    make(map[string][]*Client),
		origins:  opts.AllowedOrigins,
		tokens:   opts.Tokens,
		store:    opts.Store,
		rooms:    opts.Directory,
		chat:     opts.Chat,
		dice:     opts.Dice,
		now:      time.Now,
	}

	if m.dice == nil {
		m.dice = game.NewDice()
	}

	m.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     m.checkOrigin,
	}

	m.setupEventHandlers()

	return m
}

func (m *Manager) setupEventHandlers() {
	m.handlers[EventJoinRoom] = JoinRoom
	m.handlers[EventLeaveRoom] = LeaveRoom
	m.handlers[EventStartGame] = StartGame
	m.handlers[EventRollDice] = RollDice
	m.handlers[EventMovePawn] = MovePawn
	m.handlers[EventSendMessage] = SendMessage
	m.handlers[EventEndGame] = EndGame
}

func (m *Manager) routeEvent(ctx context.Context, evt Event, c *Client) error {
	if handler, ok := m.handlers[evt.Type]; ok {
		if err := handler(ctx, evt, c); err != nil {
			return err
		}

		return nil
	}

	return errors.New("there is no such event type")
}

// logRejected records a failed intent. Rule violations mean a client and the
// server disagree about the game, so they are logged with the actor.
func (m *Manager) logRejected(evt Event, c *Client, err error) {
	if isRuleViolation(err) {
		log.Printf("rejected %s from player %s in room %q: %v", evt.Type, c.Session.PlayerID, c.Session.Room(), err)
		return
	}
	log.Printf("error handling event %s (trace %s): %v", evt.Type, evt.TraceID, err)
}

func isRuleViolation(err error) bool {
	for _, target := range []error{
		game.ErrNotYourTurn,
		game.ErrRollAlreadyPending,
		game.ErrNoRollPending,
		game.ErrNotOwner,
		game.ErrIllegalMove,
		game.ErrUnknownPawn,
		game.ErrGameOver,
		game.ErrStaleIntent,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (m *Manager) addClient(client *Client) {
	m.Lock()
	defer m.Unlock()

	m.clients[client.ID] = client
}

func (m *Manager) removeClient(client *Client) {
	m.Lock()
	defer m.Unlock()

	if _, ok := m.clients[client.ID]; ok {
		client.connection.Close()
		delete(m.clients, client.ID)
	}
}

// EmitToRoom sends evt to every client on this server attached to room.
func (m *Manager) EmitToRoom(room string, evt Event) {
	m.RLock()
	clients := append([]*Client(nil), m.Rooms[room]...)
	m.RUnlock()

	for _, client := range clients {
		client.PushToEgress(evt)
	}
}

// playerConnected reports whether playerID has a client other than except
// attached to room.
func (m *Manager) playerConnected(room, playerID string, except *Client) bool {
	m.RLock()
	defer m.RUnlock()

	return lo.ContainsBy(m.Rooms[room], func(c *Client) bool {
		return c != except && c.Session.PlayerID == playerID
	})
}

// ClientCount is the number of open connections.
func (m *Manager) ClientCount() int {
	m.RLock()
	defer m.RUnlock()
	return len(m.clients)
}

// Websocket connection handler
func (m *Manager) ServeWS(c *gin.Context) {
	var query wsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.IndentedJSON(http.StatusBadRequest, gin.H{
			"status":  "error",
			"message": "token not sent",
		})
		return
	}

	payload, err := m.tokens.VerifyToken(query.Token)

	if err != nil {
		c.IndentedJSON(http.StatusUnauthorized, gin.H{
			"status":  "error",
			"message": "unauthorized",
		})
		return
	}

	conn, err := m.upgrader.Upgrade(c.Writer, c.Request, nil)

	if err != nil {
		// the upgrader has already replied
		log.Printf("error upgrading to websocket connection: %v\n", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())

	client := NewClient(ctx, conn, m, NewSession(payload.ID, payload.Username))

	m.addClient(client)

	defer func() {
		cancel()
		client.Session.Release()
		if err := client.EmitDisconnect(); err != nil {
			log.Println("Error emitting disconnect:", err)
		}
		client.LeaveAllRooms()

		err := client.connection.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
		if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
			log.Println("Error sending close message:", err)
		}
		m.removeClient(client)
	}()

	go client.readMessages(ctx)
	go client.writeMessages(ctx)

	err = <-client.Err()

	log.Printf("client %s of player %s disconnected: %v", client.ID, client.Session.PlayerID, err)
}

func (m *Manager) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return lo.Contains(m.origins, "*") || lo.Contains(m.origins, origin)
}
