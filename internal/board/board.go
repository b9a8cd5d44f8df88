package board

import (
	"encoding/json"
	"errors"
	"time"
)

// Board status values. Expired is terminal: an expired board never
// transitions back to active.
const (
	StatusActive  = "active"
	StatusExpired = "expired"
)

// DefaultName is used when a join does not supply a board name.
const DefaultName = "Untitled Whiteboard"

// Element kinds accepted from clients.
const (
	KindFreehand  = "freehand"
	KindErase     = "erase"
	KindRectangle = "rectangle"
	KindCircle    = "circle"
	KindTriangle  = "triangle"
	KindLine      = "line"
	KindImage     = "image"
)

var ErrInvalidElement = errors.New("invalid element")

// Point is a single coordinate in a drawable element's path.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Element is one drawable unit on the board: a stroke, shape, or embedded
// image. The id is client-generated and immutable; an element arriving with
// an id already on the board replaces that element in place, which is how
// in-progress strokes grow point by point.
type Element struct {
	ID      string  `json:"id"`
	Kind    string  `json:"kind"`
	Color   string  `json:"color,omitempty"`
	Size    float64 `json:"size,omitempty"`
	Opacity float64 `json:"opacity,omitempty"`
	Points  []Point `json:"points,omitempty"`

	// Image elements carry a placement box and data URL instead of points.
	X         float64 `json:"x,omitempty"`
	Y         float64 `json:"y,omitempty"`
	Width     float64 `json:"width,omitempty"`
	Height    float64 `json:"height,omitempty"`
	ImageData string  `json:"imageData,omitempty"`
}

var knownKinds = map[string]bool{
	KindFreehand:  true,
	KindErase:     true,
	KindRectangle: true,
	KindCircle:    true,
	KindTriangle:  true,
	KindLine:      true,
	KindImage:     true,
}

// ValidateElement checks that a raw stroke payload carries an id and a known
// kind. The full payload is otherwise passed through untouched so that
// clients stay in charge of their own drawing attributes.
func ValidateElement(raw json.RawMessage) (id string, err error) {
	var el Element
	if err := json.Unmarshal(raw, &el); err != nil {
		return "", ErrInvalidElement
	}
	if el.ID == "" || !knownKinds[el.Kind] {
		return "", ErrInvalidElement
	}
	return el.ID, nil
}

// ChatMessage is one line of a room's transcript. Field names follow the
// wire format: name is the author's display name, time a client-formatted
// timestamp. Transcripts are append-only.
type ChatMessage struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Time string `json:"time"`
	Text string `json:"text"`
}

// Meta is the durable metadata of a board, without its strokes or chat.
type Meta struct {
	RoomID           string    `json:"roomId"`
	Name             string    `json:"name"`
	CreatorID        string    `json:"creatorId"`
	Status           string    `json:"status"`
	ParticipantCount int       `json:"participantCount"`
	LastActive       time.Time `json:"lastActive"`
}
