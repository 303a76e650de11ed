package ws

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/judgegodwins/ludo-server/chat"
	"github.com/judgegodwins/ludo-server/game"
	"github.com/judgegodwins/ludo-server/rooms"
	"github.com/judgegodwins/ludo-server/store"
	"github.com/judgegodwins/ludo-server/tokens"
	"github.com/judgegodwins/ludo-server/util"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	server  *httptest.Server
	manager *Manager
	dir     *rooms.Directory
	store   store.Store
	maker   tokens.Maker
}

func newTestEnv(t *testing.T, dice game.Dice, codes ...string) *testEnv {
	s := store.NewMemoryStore()
	maker, err := tokens.NewJWTMaker("YELLOW SUBMARINE, BLACK WIZARDRY")
	require.NoError(t, err)

	dir := rooms.NewDirectory(s, rooms.WithCodeGenerator(rooms.SequenceCodes(codes...)))

	m := NewManager(Options{
		Tokens:         maker,
		Store:          s,
		Directory:      dir,
		Chat:           chat.NewChannel(s),
		Dice:           dice,
		AllowedOrigins: []string{"http://localhost:8080"},
	})

	router := gin.New()
	router.GET("/ws", m.ServeWS)

	server := httptest.NewServer(router)
	t.Cleanup(func() {
		server.Close()
		s.Close()
	})

	return &testEnv{server: server, manager: m, dir: dir, store: s, maker: maker}
}

type testConn struct {
	t    *testing.T
	conn *websocket.Conn
}

func (env *testEnv) dial(t *testing.T, playerID, username string) *testConn {
	token, _, err := env.maker.CreateToken(playerID, username, time.Minute)
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return &testConn{t: t, conn: conn}
}

func (c *testConn) send(evtType, traceID string, payload any) {
	b, err := json.Marshal(payload)
	require.NoError(c.t, err)

	require.NoError(c.t, c.conn.WriteJSON(Event{Type: evtType, TraceID: traceID, Payload: b}))
}

// expect reads until an event of evtType arrives and decodes its payload
// into dst.
func (c *testConn) expect(evtType string, dst any) {
	c.t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	require.NoError(c.t, c.conn.SetReadDeadline(deadline))

	for {
		var evt Event
		err := c.conn.ReadJSON(&evt)
		require.NoError(c.t, err, "waiting for %s", evtType)

		if evt.Type != evtType {
			continue
		}

		if dst != nil {
			require.NoError(c.t, json.Unmarshal(evt.Payload, dst))
		}
		return
	}
}

func (env *testEnv) clientOf(t *testing.T, playerID string) *Client {
	var found *Client
	require.Eventually(t, func() bool {
		env.manager.RLock()
		defer env.manager.RUnlock()
		for _, c := range env.manager.clients {
			if c.Session.PlayerID == playerID {
				found = c
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
	return found
}

func TestServeWS(t *testing.T) {
	env := newTestEnv(t, nil)

	t.Run("missing token", func(t *testing.T) {
		resp, err := http.Get(env.server.URL + "/ws")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("bad token", func(t *testing.T) {
		resp, err := http.Get(env.server.URL + "/ws?token=nope")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("foreign origin", func(t *testing.T) {
		token, _, err := env.maker.CreateToken("p1", "alice", time.Minute)
		require.NoError(t, err)

		url := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws?token=" + token
		_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"http://evil.example"}})
		require.Error(t, err)
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("unknown event", func(t *testing.T) {
		conn := env.dial(t, "p1", "alice")
		conn.send("fly", "t1", nil)

		var payload PayloadError
		conn.expect("error_t1", &payload)
		require.Equal(t, "there is no such event type", payload.Message)
	})
}

func TestJoinRoom(t *testing.T) {
	t.Run("unknown room", func(t *testing.T) {
		env := newTestEnv(t, nil)
		conn := env.dial(t, "p2", "bob")

		conn.send(EventJoinRoom, "t1", PayloadJoinRoom{Code: "ZZZZZZ"})

		var payload PayloadRoom
		conn.expect(EventRoomNotFound, &payload)
		require.Equal(t, "ZZZZZZ", payload.Code)
	})

	t.Run("seats the player and streams the room", func(t *testing.T) {
		env := newTestEnv(t, nil, "AB12CD")
		code, err := env.dir.CreateRoom(testContext(t), "alice", "p1")
		require.NoError(t, err)

		conn := env.dial(t, "p2", "bob")
		conn.send(EventJoinRoom, "t1", PayloadJoinRoom{Code: strings.ToLower(code)})

		var joined PayloadJoinedRoom
		conn.expect(EventJoinedRoom, &joined)
		require.Equal(t, code, joined.Room.Code)
		require.Len(t, joined.Room.Players, 2)
		require.Equal(t, "bob", joined.Room.Players["p2"].Name)

		var room rooms.Room
		conn.expect(EventRoomState, &room)
		require.True(t, room.Has("p2"))

		client := env.clientOf(t, "p2")
		require.Equal(t, code, client.Session.Room())
		require.Eventually(t, func() bool { return client.Session.Subscriptions() == 3 }, time.Second, 5*time.Millisecond)
	})

	t.Run("full room", func(t *testing.T) {
		env := newTestEnv(t, nil, "AB12CD")
		code, err := env.dir.CreateRoom(testContext(t), "alice", "p1")
		require.NoError(t, err)
		for i := 2; i <= 4; i++ {
			_, err := env.dir.JoinRoom(testContext(t), code, fmt.Sprintf("player%d", i), fmt.Sprintf("p%d", i))
			require.NoError(t, err)
		}

		conn := env.dial(t, "p5", "eve")
		conn.send(EventJoinRoom, "t1", PayloadJoinRoom{Code: code})
		conn.expect(EventRoomFull, nil)
	})
}

func TestLeaveRoom(t *testing.T) {
	env := newTestEnv(t, nil, "AB12CD")

	host := env.dial(t, "p1", "alice")
	guest := env.dial(t, "p2", "bob")

	code, err := env.dir.CreateRoom(testContext(t), "alice", "p1")
	require.NoError(t, err)

	host.send(EventJoinRoom, "t1", PayloadJoinRoom{Code: code})
	host.expect(EventJoinedRoom, nil)
	guest.send(EventJoinRoom, "t1", PayloadJoinRoom{Code: code})
	guest.expect(EventJoinedRoom, nil)

	host.send(EventLeaveRoom, "t2", nil)
	host.expect(EventLeftRoom, nil)

	var closed PayloadRoom
	guest.expect(EventRoomClosed, &closed)
	require.Equal(t, code, closed.Code)

	for _, id := range []string{"p1", "p2"} {
		client := env.clientOf(t, id)
		require.Eventually(t, func() bool {
			return client.Session.Room() == "" && client.Session.Subscriptions() == 0
		}, time.Second, 5*time.Millisecond)
	}
}

func TestGameFlow(t *testing.T) {
	env := newTestEnv(t, game.NewFixedDice(6, 3), "AB12CD")

	host := env.dial(t, "p1", "alice")
	guest := env.dial(t, "p2", "bob")

	code, err := env.dir.CreateRoom(testContext(t), "alice", "p1")
	require.NoError(t, err)

	host.send(EventJoinRoom, "t1", PayloadJoinRoom{Code: code})
	host.expect(EventJoinedRoom, nil)
	guest.send(EventJoinRoom, "t1", PayloadJoinRoom{Code: code})
	guest.expect(EventJoinedRoom, nil)

	t.Run("only the host starts", func(t *testing.T) {
		guest.send(EventStartGame, "t2", nil)

		var payload PayloadError
		guest.expect("error_t2", &payload)
		require.Equal(t, rooms.ErrNotHost.Error(), payload.Message)
	})

	host.send(EventStartGame, "t3", nil)

	var started PayloadGameState
	guest.expect(EventGameStarted, &started)
	require.Equal(t, []string{"p1", "p2"}, started.State.PlayerOrder)
	require.Len(t, started.State.Pawns, 8)
	host.expect(EventGameStarted, nil)

	t.Run("out of turn roll is rejected", func(t *testing.T) {
		guest.send(EventRollDice, "t4", PayloadRoll{})

		var payload PayloadError
		guest.expect("error_t4", &payload)
		require.Equal(t, game.ErrNotYourTurn.Error(), payload.Message)
	})

	host.send(EventRollDice, "t5", PayloadRoll{Seq: 0})

	var rolled game.Effects
	guest.expect(EventDiceRolled, &rolled)
	require.Equal(t, 6, rolled.Roll)
	require.Equal(t, "p1", rolled.Player)

	var afterRoll PayloadGameState
	host.expect(EventDiceRolled, nil)
	host.expect(EventGameState, &afterRoll)
	require.NotNil(t, afterRoll.State.PendingDiceValue)
	require.Equal(t, 6, *afterRoll.State.PendingDiceValue)
	require.Equal(t, afterRoll.State.PawnsOf("p1"), afterRoll.LegalMoves)

	t.Run("stale seq is rejected", func(t *testing.T) {
		host.send(EventMovePawn, "t6", PayloadMovePawn{PawnID: game.NewPawnID("p1", 0), Seq: 99})
		host.expect("error_t6", nil)
	})

	host.send(EventMovePawn, "t7", PayloadMovePawn{PawnID: game.NewPawnID("p1", 0), Seq: afterRoll.State.Seq})

	var moved game.Effects
	guest.expect(EventPawnMoved, &moved)
	require.Equal(t, game.NewPawnID("p1", 0), moved.Pawn)
	require.Equal(t, game.Path(0), *moved.To)
	require.True(t, moved.ExtraTurn)

	var afterMove PayloadGameState
	guest.expect(EventGameState, &afterMove)
	require.Equal(t, 0, afterMove.State.CurrentTurnIndex)
	require.Nil(t, afterMove.State.PendingDiceValue)
	require.Empty(t, afterMove.LegalMoves)

	t.Run("chat reaches everyone", func(t *testing.T) {
		guest.send(EventSendMessage, "t8", PayloadSendMessage{Body: "nice six"})

		var msg chat.Message
		host.expect(EventChatMessage, &msg)
		require.Equal(t, "nice six", msg.Body)
		require.Equal(t, "bob", msg.SenderName)
		guest.expect(EventChatMessage, nil)
	})

	t.Run("guest cannot end a running game", func(t *testing.T) {
		guest.send(EventEndGame, "t9", nil)
		guest.expect("error_t9", nil)
	})

	host.send(EventEndGame, "t10", nil)

	// earlier room states may still be queued
	for {
		var room rooms.Room
		guest.expect(EventRoomState, &room)
		if room.Status == rooms.StatusEnded {
			break
		}
	}

	snap, err := env.store.Get(testContext(t), util.GamePath(code))
	require.NoError(t, err)
	require.False(t, snap.Exists)
}
