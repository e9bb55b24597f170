package gateway

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Inbound message types.
const (
	msgAuthenticate = "authenticate"
	msgSubscribe    = "subscribe"
	msgUnsubscribe  = "unsubscribe"
	msgPing         = "ping"
)

// Outbound frame types.
const (
	frameConnection    = "connection"
	frameAuthenticated = "authenticated"
	frameSubscribed    = "subscribed"
	frameUnsubscribed  = "unsubscribed"
	framePong          = "pong"
	frameError         = "error"
)

// clientMessage is the single inbound wire shape; Type discriminates and the
// remaining fields are populated per type.
type clientMessage struct {
	Type     string   `json:"type"`
	UserID   string   `json:"user_id,omitempty"`
	Token    string   `json:"token,omitempty"`
	Channels []string `json:"channels,omitempty"`
}

// serverFrame is the outbound control-frame shape. Broadcast event frames
// bypass it: bus payloads are forwarded verbatim. ConnectionID is a string
// so omitempty drops it from every frame except the connection greeting.
type serverFrame struct {
	Type         string   `json:"type"`
	ConnectionID string   `json:"connection_id,omitempty"`
	UserID       string   `json:"user_id,omitempty"`
	Channels     []string `json:"channels,omitempty"`
	Message      string   `json:"message,omitempty"`
}

func (f serverFrame) encode() []byte {
	// serverFrame contains only marshallable fields.
	raw, _ := json.Marshal(f)
	return raw
}

func connectionFrame(id uuid.UUID) []byte {
	return serverFrame{Type: frameConnection, ConnectionID: id.String()}.encode()
}

func authenticatedFrame(userID uuid.UUID) []byte {
	return serverFrame{Type: frameAuthenticated, UserID: userID.String()}.encode()
}

func subscribedFrame(channels []string) []byte {
	return serverFrame{Type: frameSubscribed, Channels: channels}.encode()
}

func unsubscribedFrame(channels []string) []byte {
	return serverFrame{Type: frameUnsubscribed, Channels: channels}.encode()
}

func pongFrame() []byte {
	return serverFrame{Type: framePong}.encode()
}

func errorFrame(message string) []byte {
	return serverFrame{Type: frameError, Message: message}.encode()
}
