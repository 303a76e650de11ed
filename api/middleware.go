package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/judgegodwins/ludo-server/tokens"
)

type contextkey string

const authContextKey contextkey = "auth_payload"

func (s *Server) AuthMiddleware(c *gin.Context) {
	header := c.Request.Header.Get("authorization")

	if header == "" {
		c.JSON(http.StatusUnauthorized, errorResponse("unauthorized"))
		c.Abort()
		return
	}

	sArr := strings.Fields(header)

	if len(sArr) < 2 || !strings.EqualFold(sArr[0], "bearer") {
		c.JSON(http.StatusUnauthorized, errorResponse("unauthorized"))
		c.Abort()
		return
	}

	payload, err := s.tokens.VerifyToken(sArr[1])

	if err != nil {
		msg := "invalid bearer token"
		if errors.Is(err, tokens.ErrExpiredToken) {
			msg = "bearer token has expired"
		}
		c.JSON(http.StatusUnauthorized, errorResponse(msg))
		c.Abort()
		return
	}

	c.Set(string(authContextKey), payload)

	c.Next()
}
