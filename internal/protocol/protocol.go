package protocol

import (
	"encoding/json"
	"errors"

	"mural-backend/internal/board"
)

// Client -> engine events.
const (
	EventJoinRoom     = "join-room"
	EventDraw         = "draw"
	EventClear        = "clear"
	EventUndo         = "undo"
	EventRedo         = "redo"
	EventChatMessage  = "chat-message"
	EventCursorMove   = "cursor-move"
	EventStartSharing = "start-sharing"
	EventStopSharing  = "stop-sharing"
	EventLeaveRoom    = "leave-room"
)

// Engine -> client events.
const (
	EventRoomUsers        = "room-users"
	EventRoomDetails      = "room-details"
	EventWhiteboardData   = "whiteboard-data"
	EventChatHistory      = "chat-history"
	EventUserJoined       = "user-joined"
	EventUserLeft         = "user-left"
	EventScreenShareStart = "screen-share-start"
	EventScreenShareStop  = "screen-share-stop"
	EventReEntryBlocked   = "re-entry-blocked"
	EventRoomExpired      = "room-expired"
)

// ErrMalformed marks payloads missing required fields. Callers drop these
// silently so one bad client cannot take down a room.
var ErrMalformed = errors.New("malformed message")

// Envelope is the wire frame for every message in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Client -> engine payloads.

type JoinRoom struct {
	RoomID   string `json:"roomId"`
	UserName string `json:"userName"`
	UserID   string `json:"userId"`
	Name     string `json:"name"`
}

type Draw struct {
	RoomID string          `json:"roomId"`
	Stroke json.RawMessage `json:"stroke"`
}

// RoomRef covers the events whose only payload is the room: clear, undo,
// redo, stop-sharing.
type RoomRef struct {
	RoomID string `json:"roomId"`
}

type ChatMessage struct {
	RoomID  string            `json:"roomId"`
	Message board.ChatMessage `json:"message"`
}

type CursorMove struct {
	RoomID string  `json:"roomId"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Name   string  `json:"name"`
}

type StartSharing struct {
	RoomID   string `json:"roomId"`
	UserName string `json:"userName"`
}

type LeaveRoom struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
}

// Engine -> client payloads.

type RoomUser struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Status  string `json:"status"`
	IsAdmin bool   `json:"isAdmin"`
}

type RoomDetails struct {
	Name string `json:"name"`
}

type UserJoined struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type CursorBroadcast struct {
	ID   string  `json:"id"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Name string  `json:"name"`
}

type ScreenShareStart struct {
	StreamID string `json:"streamId"`
	UserName string `json:"userName"`
}

// Notice carries the terminal re-entry-blocked and room-expired signals.
type Notice struct {
	Message string `json:"message"`
}

// Decode parses a wire frame. An empty event name is malformed.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, ErrMalformed
	}
	if env.Event == "" {
		return Envelope{}, ErrMalformed
	}
	return env, nil
}

// DecodeData parses an envelope's payload into a typed struct.
func DecodeData(env Envelope, v any) error {
	if len(env.Data) == 0 {
		return ErrMalformed
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return ErrMalformed
	}
	return nil
}

// Encode builds a wire frame for an outbound event. A nil payload produces a
// bare event, used by clear, undo, redo and screen-share-stop.
func Encode(event string, v any) ([]byte, error) {
	env := Envelope{Event: event}
	if v != nil {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		env.Data = data
	}
	return json.Marshal(env)
}
