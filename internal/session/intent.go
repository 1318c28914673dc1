package session

import (
	"errors"
	"unicode/utf8"
)

// Kind identifies what a connection asks the coordinator to do.
type Kind int

// Intent kinds. Connect is not an intent: it happens through Coordinator.Connect.
const (
	KindUnknown Kind = iota
	JoinRoom
	LeaveRoom
	SendMessage
	GetRooms
	GetUsers
	Disconnect
)

var kindNames = map[Kind]string{
	JoinRoom:    "joinRoom",
	LeaveRoom:   "leaveRoom",
	SendMessage: "sendMessage",
	GetRooms:    "getRooms",
	GetUsers:    "getUsers",
	Disconnect:  "disconnect",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Intent is a request from one connection. Only the fields relevant to Kind
// are read.
type Intent struct {
	Kind Kind
	Room string
	User string
	Text string
}

// Validation limits.
const (
	MaxUsernameLength = 50
	MaxRoomNameLength = 100
	MaxMessageLength  = 5000
)

// Validation errors
var (
	ErrUsernameTooLong = errors.New("username exceeds maximum length")
	ErrUsernameInvalid = errors.New("username contains invalid characters")
	ErrRoomNameEmpty   = errors.New("room name cannot be empty")
	ErrRoomNameTooLong = errors.New("room name exceeds maximum length")
	ErrRoomNameInvalid = errors.New("room name contains invalid characters")
	ErrMessageEmpty    = errors.New("message content cannot be empty")
	ErrMessageTooLong  = errors.New("message exceeds maximum length")
	ErrMessageInvalid  = errors.New("message contains invalid characters")
)

// ValidateUsername validates a display name. Empty names are allowed; the
// coordinator substitutes the connection id.
func ValidateUsername(username string) error {
	if len(username) > MaxUsernameLength {
		return ErrUsernameTooLong
	}
	if !utf8.ValidString(username) {
		return ErrUsernameInvalid
	}
	return nil
}

// ValidateRoomName validates a room name.
func ValidateRoomName(name string) error {
	if name == "" {
		return ErrRoomNameEmpty
	}
	if len(name) > MaxRoomNameLength {
		return ErrRoomNameTooLong
	}
	if !utf8.ValidString(name) {
		return ErrRoomNameInvalid
	}
	return nil
}

// ValidateMessage validates message text.
func ValidateMessage(text string) error {
	if text == "" {
		return ErrMessageEmpty
	}
	if len(text) > MaxMessageLength {
		return ErrMessageTooLong
	}
	if !utf8.ValidString(text) {
		return ErrMessageInvalid
	}
	return nil
}
