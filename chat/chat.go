// Package chat is the per-room message log.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/judgegodwins/ludo-server/store"
	"github.com/judgegodwins/ludo-server/util"
	"github.com/samber/lo"
)

const MaxBodyLength = 500

var ErrInvalidMessage = errors.New("invalid chat message")

type Message struct {
	ID         string    `json:"id"`
	Sender     string    `json:"sender" validate:"required"`
	SenderName string    `json:"senderName" validate:"required"`
	Body       string    `json:"body" validate:"required,max=500"`
	Timestamp  time.Time `json:"timestamp"`
}

type Channel struct {
	store store.Store
	now   func() time.Time
}

func NewChannel(s store.Store) *Channel {
	return &Channel{store: s, now: time.Now}
}

// Send appends a message to the room's log with a server timestamp.
func (c *Channel) Send(ctx context.Context, code, senderID, senderName, body string) (Message, error) {
	msg := Message{
		ID:         uuid.NewString(),
		Sender:     senderID,
		SenderName: strings.TrimSpace(senderName),
		Body:       strings.TrimSpace(body),
		Timestamp:  c.now(),
	}

	if err := util.Validate.Struct(msg); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			fields := lo.Map(fieldErrs, func(item validator.FieldError, index int) string {
				return item.Field()
			})
			return Message{}, fmt.Errorf("%w: %s", ErrInvalidMessage, strings.Join(fields, ", "))
		}
		return Message{}, err
	}

	if _, err := c.store.Append(ctx, util.ChatPath(code), msg); err != nil {
		return Message{}, err
	}

	return msg, nil
}

// Subscribe calls fn once for every message sent from now on, in send order.
func (c *Channel) Subscribe(ctx context.Context, code string, fn func(Message)) (*store.Subscription, error) {
	return c.store.SubscribeAppended(ctx, util.ChatPath(code), func(snap store.Snapshot) {
		var msg Message
		if err := snap.Decode(&msg); err != nil {
			log.Printf("chat: dropping undecodable message %s: %v", snap.Path, err)
			return
		}
		fn(msg)
	})
}

// History returns every message in the room so far, oldest first.
func (c *Channel) History(ctx context.Context, code string) ([]Message, error) {
	children, err := c.store.Children(ctx, util.ChatPath(code))
	if err != nil {
		return nil, err
	}

	out := make([]Message, 0, len(children))
	for _, child := range children {
		var msg Message
		if err := child.Decode(&msg); err != nil {
			return nil, err
		}
		out = append(out, msg)
	}

	return out, nil
}
