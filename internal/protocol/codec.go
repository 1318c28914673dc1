// Package protocol defines the JSON frames exchanged over the WebSocket and
// converts them to and from coordinator intents and broadcast events.
package protocol

import (
	"encoding/json"

	"github.com/Tyrowin/roomchat/internal/broadcast"
	"github.com/Tyrowin/roomchat/internal/session"
	"github.com/pkg/errors"
)

// ErrUnknownType is returned for an inbound frame with an unrecognised type.
var ErrUnknownType = errors.New("protocol: unknown intent type")

// Inbound is a frame sent by a client.
type Inbound struct {
	Type string `json:"type"`
	Room string `json:"room,omitempty"`
	User string `json:"user,omitempty"`
	Text string `json:"text,omitempty"`
}

// Outbound is a frame sent to a client.
type Outbound struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// Welcome is the payload of the welcome event sent after the upgrade.
type Welcome struct {
	ConnectionID string `json:"connectionId"`
}

// intentTypes maps wire names to intent kinds. The capitalised names are
// the method names used by the original SignalR client.
var intentTypes = map[string]session.Kind{
	"joinRoom":    session.JoinRoom,
	"leaveRoom":   session.LeaveRoom,
	"sendMessage": session.SendMessage,
	"getRooms":    session.GetRooms,
	"getUsers":    session.GetUsers,
	"disconnect":  session.Disconnect,

	"JoinRoom":          session.JoinRoom,
	"LeaveRoom":         session.LeaveRoom,
	"SendMessageToRoom": session.SendMessage,
	"GetAvailableRooms": session.GetRooms,
	"GetUsersInRoom":    session.GetUsers,
}

// DecodeIntent parses an inbound frame.
func DecodeIntent(data []byte) (session.Intent, error) {
	var in Inbound
	if err := json.Unmarshal(data, &in); err != nil {
		return session.Intent{}, errors.Wrap(err, "protocol: decode intent")
	}

	kind, ok := intentTypes[in.Type]
	if !ok {
		return session.Intent{}, errors.Wrapf(ErrUnknownType, "type %q", in.Type)
	}

	return session.Intent{
		Kind: kind,
		Room: in.Room,
		User: in.User,
		Text: in.Text,
	}, nil
}

// EncodeIntent renders an intent as an inbound frame. Clients and tests use it.
func EncodeIntent(in session.Intent) ([]byte, error) {
	if in.Kind == session.KindUnknown {
		return nil, ErrUnknownType
	}
	data, err := json.Marshal(Inbound{
		Type: in.Kind.String(),
		Room: in.Room,
		User: in.User,
		Text: in.Text,
	})
	return data, errors.Wrap(err, "protocol: encode intent")
}

// EncodeEvent renders an event as an outbound frame.
func EncodeEvent(e broadcast.Event) ([]byte, error) {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, errors.Wrapf(err, "protocol: encode %s payload", e.Name)
	}
	data, err := json.Marshal(Outbound{Event: e.Name, Payload: payload})
	return data, errors.Wrapf(err, "protocol: encode %s", e.Name)
}

// DecodeEvent parses an outbound frame, leaving the payload raw.
func DecodeEvent(data []byte) (Outbound, error) {
	var out Outbound
	if err := json.Unmarshal(data, &out); err != nil {
		return Outbound{}, errors.Wrap(err, "protocol: decode event")
	}
	return out, nil
}
