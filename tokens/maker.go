// Package tokens issues the opaque player identities handed out by
// POST /auth/username and checked on every authenticated request.
package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/judgegodwins/ludo-server/util"
)

var (
	ErrInvalidToken = errors.New("token is invalid")
	ErrExpiredToken = errors.New("token has expired")
)

type Maker interface {
	CreateToken(id, username string, duration time.Duration) (string, *Payload, error)
	VerifyToken(token string) (*Payload, error)
}

type Payload struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiredAt time.Time `json:"expired_at"`
}

func NewPayload(id, username string, duration time.Duration) *Payload {
	now := time.Now()
	return &Payload{
		ID:        id,
		Username:  username,
		IssuedAt:  now,
		ExpiredAt: now.Add(duration),
	}
}

func (p *Payload) Valid() error {
	if time.Now().After(p.ExpiredAt) {
		return ErrExpiredToken
	}
	return nil
}

// NewMaker returns the maker for the configured token kind.
func NewMaker(kind, secret string) (Maker, error) {
	switch kind {
	case util.TokenJWT, "":
		return NewJWTMaker(secret)
	case util.TokenPaseto:
		return NewPasetoMaker(secret)
	default:
		return nil, fmt.Errorf("unknown token kind %q", kind)
	}
}
