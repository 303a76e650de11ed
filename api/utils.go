package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/judgegodwins/ludo-server/http_utils"
	"github.com/judgegodwins/ludo-server/rooms"
	"github.com/judgegodwins/ludo-server/tokens"
)

const (
	ErrorMessage500 = "Something went wrong!"
)

func errorResponse(msg string) http_utils.BaseResponse {
	return http_utils.NewBaseResponse(false, msg)
}

func successResponse(msg string, data any) http_utils.DataResponse {
	return http_utils.NewDataResponse(msg, data)
}

func GetPayload(ctx *gin.Context) (*tokens.Payload, bool) {
	v, ok := ctx.Get(string(authContextKey))

	if !ok {
		return nil, ok
	}

	payload, ok := v.(*tokens.Payload)

	return payload, ok
}

// mustPayload fetches the caller set by AuthMiddleware. It answers 500 and
// returns false if the middleware did not run.
func mustPayload(c *gin.Context) (*tokens.Payload, bool) {
	payload, ok := GetPayload(c)

	if !ok {
		c.JSON(http.StatusInternalServerError, errorResponse(ErrorMessage500))
		log.Println(errors.New("value in auth_payload key of request context could not be casted to *tokens.Payload"))
	}

	return payload, ok
}

// sendRoomError maps lobby errors to status codes.
func sendRoomError(c *gin.Context, err error) {
	var validationErr *rooms.ValidationError

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusUnprocessableEntity, http_utils.NewValidationErrorResponse(validationErr.Errors))
	case errors.Is(err, rooms.ErrRoomNotFound):
		c.JSON(http.StatusNotFound, errorResponse(err.Error()))
	case errors.Is(err, rooms.ErrNotHost):
		c.JSON(http.StatusForbidden, errorResponse(err.Error()))
	case errors.Is(err, rooms.ErrGameAlreadyStarted),
		errors.Is(err, rooms.ErrRoomFull),
		errors.Is(err, rooms.ErrNotEnoughPlayers):
		c.JSON(http.StatusConflict, errorResponse(err.Error()))
	default:
		log.Printf("error handling %s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, errorResponse(ErrorMessage500))
	}
}
