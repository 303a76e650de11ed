package util

import (
	"regexp"

	"github.com/judgegodwins/ludo-server/store"
)

const (
	RoomCodeLength = 6
	// RoomCodeAlphabet leaves out 0, 1, I and O so codes read back cleanly.
	RoomCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

var roomCodePattern = regexp.MustCompile(`^[A-Z0-9]{6}$`)

const (
	RoomsCollection = "rooms"
	GamesCollection = "games"
	ChatsCollection = "chats"
	UsersCollection = "users"
)

func RoomPath(code string) string {
	return store.Join(RoomsCollection, code)
}

func GamePath(code string) string {
	return store.Join(GamesCollection, code)
}

func ChatPath(code string) string {
	return store.Join(ChatsCollection, code)
}

func UserPath(playerID string) string {
	return store.Join(UsersCollection, playerID)
}
