package api

import (
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/judgegodwins/ludo-server/http_utils"
	"github.com/judgegodwins/ludo-server/util"
	"github.com/skip2/go-qrcode"
)

const qrSize = 320

type usernameRequest struct {
	Username string `json:"username" validate:"required,max=24"`
}

type userRecord struct {
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
}

// Generates a token using the username passed as request body
func (s *Server) TokenGenerator(c *gin.Context) {
	var data usernameRequest

	if err := c.ShouldBindJSON(&data); err != nil {
		c.JSON(http.StatusUnprocessableEntity, errorResponse(err.Error()))
		return
	}

	data.Username = strings.TrimSpace(data.Username)
	if res := http_utils.ValidateStruct(util.Validate, &data); res != nil {
		c.JSON(http.StatusUnprocessableEntity, res)
		return
	}

	id := uuid.NewString()

	token, payload, err := s.tokens.CreateToken(id, data.Username, s.config.TokenTTL)

	if err != nil {
		log.Println(err)
		c.JSON(http.StatusInternalServerError, errorResponse(ErrorMessage500))
		return
	}

	err = s.store.Set(c.Request.Context(), util.UserPath(id), userRecord{
		Username:  payload.Username,
		CreatedAt: payload.IssuedAt,
	})

	if err != nil {
		log.Println("error saving user:", err)
		c.JSON(http.StatusInternalServerError, errorResponse(ErrorMessage500))
		return
	}

	c.JSON(http.StatusOK, successResponse("Auth data", gin.H{
		"id":        payload.ID,
		"username":  payload.Username,
		"token":     token,
		"expiresAt": payload.ExpiredAt,
	}))
}

func (s *Server) GetTokenData(c *gin.Context) {
	payload, ok := mustPayload(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, successResponse("success", payload))
}

type roomURI struct {
	Code string `uri:"code" binding:"required"`
}

// roomCode reads and normalises the :code parameter. Malformed codes are
// answered with 404 since no room can have them.
func roomCode(c *gin.Context) (string, bool) {
	var data roomURI

	if err := c.ShouldBindUri(&data); err != nil {
		c.JSON(http.StatusUnprocessableEntity, errorResponse(err.Error()))
		return "", false
	}

	code := util.NormalizeRoomCode(data.Code)
	if !util.IsRoomCode(code) {
		c.JSON(http.StatusNotFound, errorResponse("room not found"))
		return "", false
	}

	return code, true
}

type playerNameRequest struct {
	Name string `json:"name"`
}

// playerName is the display name from an optional JSON body, falling back to
// the token's username.
func playerName(c *gin.Context, fallback string) (string, bool) {
	var data playerNameRequest

	if err := c.ShouldBindJSON(&data); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusUnprocessableEntity, errorResponse(err.Error()))
		return "", false
	}

	if strings.TrimSpace(data.Name) == "" {
		return fallback, true
	}
	return data.Name, true
}

func (s *Server) CreateRoom(c *gin.Context) {
	authPayload, ok := mustPayload(c)
	if !ok {
		return
	}

	name, ok := playerName(c, authPayload.Username)
	if !ok {
		return
	}

	code, err := s.rooms.CreateRoom(c.Request.Context(), name, authPayload.ID)
	if err != nil {
		sendRoomError(c, err)
		return
	}

	room, err := s.rooms.Get(c.Request.Context(), code)
	if err != nil {
		sendRoomError(c, err)
		return
	}

	c.JSON(http.StatusCreated, successResponse("Room created", room))
}

func (s *Server) CheckRoom(c *gin.Context) {
	code, ok := roomCode(c)
	if !ok {
		return
	}

	room, err := s.rooms.Get(c.Request.Context(), code)
	if err != nil {
		sendRoomError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse("room data", gin.H{
		"code":    room.Code,
		"status":  room.Status,
		"players": len(room.Players),
		"full":    room.Full(),
	}))
}

func (s *Server) JoinRoom(c *gin.Context) {
	authPayload, ok := mustPayload(c)
	if !ok {
		return
	}

	code, ok := roomCode(c)
	if !ok {
		return
	}

	name, ok := playerName(c, authPayload.Username)
	if !ok {
		return
	}

	if _, err := s.rooms.JoinRoom(c.Request.Context(), code, name, authPayload.ID); err != nil {
		sendRoomError(c, err)
		return
	}

	room, err := s.rooms.Get(c.Request.Context(), code)
	if err != nil {
		sendRoomError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse("Joined room", room))
}

func (s *Server) LeaveRoom(c *gin.Context) {
	authPayload, ok := mustPayload(c)
	if !ok {
		return
	}

	code, ok := roomCode(c)
	if !ok {
		return
	}

	closed, err := s.rooms.LeaveRoom(c.Request.Context(), code, authPayload.ID)
	if err != nil {
		sendRoomError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse("Left room", gin.H{
		"code":   code,
		"closed": closed,
	}))
}

func (s *Server) StartGame(c *gin.Context) {
	authPayload, ok := mustPayload(c)
	if !ok {
		return
	}

	code, ok := roomCode(c)
	if !ok {
		return
	}

	state, err := s.rooms.StartGame(c.Request.Context(), code, authPayload.ID)
	if err != nil {
		sendRoomError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse("Game started", state))
}

func (s *Server) EndGame(c *gin.Context) {
	authPayload, ok := mustPayload(c)
	if !ok {
		return
	}

	code, ok := roomCode(c)
	if !ok {
		return
	}

	if err := s.rooms.EndGameBy(c.Request.Context(), code, authPayload.ID); err != nil {
		sendRoomError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse("Game ended", gin.H{"code": code}))
}

func (s *Server) RoomMessages(c *gin.Context) {
	authPayload, ok := mustPayload(c)
	if !ok {
		return
	}

	code, ok := roomCode(c)
	if !ok {
		return
	}

	room, err := s.rooms.Get(c.Request.Context(), code)
	if err != nil {
		sendRoomError(c, err)
		return
	}

	if !room.Has(authPayload.ID) {
		c.JSON(http.StatusForbidden, errorResponse("join the room first"))
		return
	}

	history, err := s.chat.History(c.Request.Context(), code)
	if err != nil {
		sendRoomError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse("messages", history))
}

// RoomQR renders the room's invite link as a PNG QR code.
func (s *Server) RoomQR(c *gin.Context) {
	code, ok := roomCode(c)
	if !ok {
		return
	}

	if _, err := s.rooms.Get(c.Request.Context(), code); err != nil {
		sendRoomError(c, err)
		return
	}

	png, err := qrcode.Encode(s.inviteURL(code), qrcode.Medium, qrSize)
	if err != nil {
		log.Println("qr generation failed:", err)
		c.JSON(http.StatusInternalServerError, errorResponse(ErrorMessage500))
		return
	}

	c.Data(http.StatusOK, "image/png", png)
}

func (s *Server) inviteURL(code string) string {
	return strings.TrimRight(s.config.PublicURL, "/") + "/?room=" + code
}

func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, successResponse("ok", gin.H{
		"clients": s.wsManager.ClientCount(),
	}))
}
