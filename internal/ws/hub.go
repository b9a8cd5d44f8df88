package ws

import (
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"mural-backend/internal/board"
	"mural-backend/internal/expiry"
	"mural-backend/internal/protocol"
	"mural-backend/internal/session"
	"mural-backend/internal/store"
)

const sessionEndedMessage = "This session has ended and is no longer accessible."
const roomExpiredMessage = "The host has ended this session."

type inboundEvent struct {
	client *Client
	env    protocol.Envelope
}

// Hub owns all room traffic for the process. Every roster mutation,
// admission check and broadcast happens on the single Run loop, so event
// order within a room is exactly arrival order and board status transitions
// cannot race a concurrent join. Edit persistence is spawned fire-and-forget
// off the loop: a slow or failing store never stalls live traffic.
type Hub struct {
	store    *store.Store
	registry *session.Registry
	policy   *expiry.Policy

	// Admitted clients by room. A connection appears here only after a
	// successful join, which is the admission gate for expired rooms.
	rooms map[string]map[*Client]bool

	inbound    chan *inboundEvent
	unregister chan *Client
}

func NewHub(st *store.Store, registry *session.Registry, policy *expiry.Policy) *Hub {
	return &Hub{
		store:      st,
		registry:   registry,
		policy:     policy,
		rooms:      make(map[string]map[*Client]bool),
		inbound:    make(chan *inboundEvent),
		unregister: make(chan *Client),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.unregister:
			h.handleDisconnect(client)

		case evt := <-h.inbound:
			h.dispatch(evt)
		}
	}
}

func (h *Hub) dispatch(evt *inboundEvent) {
	client, env := evt.client, evt.env

	if env.Event == protocol.EventJoinRoom {
		h.handleJoin(client, env)
		return
	}

	// Everything else requires an admitted connection that is still in
	// its room. A frame racing a disconnect is dropped.
	if client.roomID == "" || !h.rooms[client.roomID][client] {
		return
	}

	switch env.Event {
	case protocol.EventDraw:
		h.handleDraw(client, env)
	case protocol.EventClear:
		h.handleClear(client)
	case protocol.EventUndo:
		h.handleUndo(client)
	case protocol.EventRedo:
		h.handleRedo(client)
	case protocol.EventChatMessage:
		h.handleChat(client, env)
	case protocol.EventCursorMove:
		h.handleCursor(client, env)
	case protocol.EventStartSharing:
		h.handleStartSharing(client, env)
	case protocol.EventStopSharing:
		h.broadcast(client.roomID, mustEncode(protocol.EventScreenShareStop, nil), client)
	case protocol.EventLeaveRoom:
		h.handleLeave(client, env)
	}
}

// handleJoin runs the admission sequence: consult the board, reject expired
// rooms, register presence, then stream the current board state to the
// joiner before anyone else's live events can reach it.
func (h *Hub) handleJoin(client *Client, env protocol.Envelope) {
	var p protocol.JoinRoom
	if err := protocol.DecodeData(env, &p); err != nil || p.RoomID == "" {
		return
	}
	if client.roomID != "" {
		// One room per connection; a second join is dropped.
		return
	}

	meta, err := h.store.JoinBoard(p.RoomID, p.UserID, p.Name)
	if errors.Is(err, store.ErrSessionEnded) {
		h.sendTo(client, mustEncode(protocol.EventReEntryBlocked, protocol.Notice{Message: sessionEndedMessage}))
		return
	}
	if err != nil {
		// Stay live-consistent even when the store is down: admit with an
		// empty board view and let presence work.
		log.Error().Err(err).Str("room", p.RoomID).Msg("join persistence failed")
		meta = &board.Meta{RoomID: p.RoomID, Name: p.Name, Status: board.StatusActive}
	}

	sess := h.registry.GetOrCreate(p.RoomID)
	if sess.CreatorID == "" {
		if meta.CreatorID != "" {
			sess.CreatorID = meta.CreatorID
		} else {
			sess.CreatorID = p.UserID
		}
	}
	sess.Add(client.id, session.Member{Name: p.UserName, UserID: p.UserID})

	client.roomID = p.RoomID
	client.name = p.UserName
	client.userID = p.UserID

	if _, ok := h.rooms[p.RoomID]; !ok {
		h.rooms[p.RoomID] = make(map[*Client]bool)
	}
	h.rooms[p.RoomID][client] = true

	// Initial sync to the joiner: roster, details, strokes, chat, in that
	// order, before any live event can interleave.
	h.sendTo(client, mustEncode(protocol.EventRoomUsers, h.roster(sess)))
	h.sendTo(client, mustEncode(protocol.EventRoomDetails, protocol.RoomDetails{Name: meta.Name}))

	strokes, err := h.store.Strokes(p.RoomID)
	if err != nil {
		log.Error().Err(err).Str("room", p.RoomID).Msg("loading strokes failed")
		strokes = []json.RawMessage{}
	}
	h.sendTo(client, mustEncode(protocol.EventWhiteboardData, strokes))

	history, err := h.store.ChatHistory(p.RoomID)
	if err != nil {
		log.Error().Err(err).Str("room", p.RoomID).Msg("loading chat history failed")
		history = []board.ChatMessage{}
	}
	h.sendTo(client, mustEncode(protocol.EventChatHistory, history))

	h.broadcast(p.RoomID, mustEncode(protocol.EventUserJoined, protocol.UserJoined{ID: client.id, Name: p.UserName}), client)
	h.broadcast(p.RoomID, mustEncode(protocol.EventRoomUsers, h.roster(sess)), client)

	log.Info().Str("room", p.RoomID).Str("conn", client.id).Str("user", p.UserName).
		Int("roster", sess.Size()).Msg("client joined room")
}

func (h *Hub) handleDraw(client *Client, env protocol.Envelope) {
	var p protocol.Draw
	if err := protocol.DecodeData(env, &p); err != nil {
		return
	}
	elementID, err := board.ValidateElement(p.Stroke)
	if err != nil {
		return
	}

	h.broadcast(client.roomID, mustEncode(protocol.EventDraw, p.Stroke), client)

	roomID := client.roomID
	stroke := p.Stroke
	go func() {
		if err := h.store.UpsertStroke(roomID, elementID, stroke); err != nil {
			log.Warn().Err(err).Str("room", roomID).Str("element", elementID).
				Msg("stroke persistence failed")
		}
	}()
}

func (h *Hub) handleClear(client *Client) {
	h.broadcast(client.roomID, mustEncode(protocol.EventClear, nil), client)

	roomID := client.roomID
	go func() {
		if err := h.store.ClearStrokes(roomID); err != nil {
			log.Warn().Err(err).Str("room", roomID).Msg("clear persistence failed")
		}
	}()
}

func (h *Hub) handleUndo(client *Client) {
	h.broadcast(client.roomID, mustEncode(protocol.EventUndo, nil), client)

	roomID := client.roomID
	go func() {
		if err := h.store.PopLastStroke(roomID); err != nil {
			log.Warn().Err(err).Str("room", roomID).Msg("undo persistence failed")
		}
	}()
}

// handleRedo relays the signal only. Redo state lives in each client's local
// memory and is deliberately not persisted: a reload keeps strokes and undo
// history but loses redo.
func (h *Hub) handleRedo(client *Client) {
	h.broadcast(client.roomID, mustEncode(protocol.EventRedo, nil), client)
}

func (h *Hub) handleChat(client *Client, env protocol.Envelope) {
	var p protocol.ChatMessage
	if err := protocol.DecodeData(env, &p); err != nil || p.Message.Text == "" {
		return
	}

	h.broadcast(client.roomID, mustEncode(protocol.EventChatMessage, p.Message), client)

	roomID := client.roomID
	msg := p.Message
	go func() {
		if err := h.store.AppendChat(roomID, msg); err != nil {
			log.Warn().Err(err).Str("room", roomID).Msg("chat persistence failed")
		}
	}()
}

func (h *Hub) handleCursor(client *Client, env protocol.Envelope) {
	var p protocol.CursorMove
	if err := protocol.DecodeData(env, &p); err != nil {
		return
	}

	if sess, ok := h.registry.Get(client.roomID); ok {
		sess.SetCursor(client.id, session.Cursor{X: p.X, Y: p.Y, Name: p.Name})
	}

	h.broadcast(client.roomID, mustEncode(protocol.EventCursorMove, protocol.CursorBroadcast{
		ID:   client.id,
		X:    p.X,
		Y:    p.Y,
		Name: p.Name,
	}), client)
}

func (h *Hub) handleStartSharing(client *Client, env protocol.Envelope) {
	var p protocol.StartSharing
	if err := protocol.DecodeData(env, &p); err != nil {
		return
	}

	// The engine is pure signaling here: the stream id is the sharer's
	// connection id, media flows peer to peer.
	h.broadcast(client.roomID, mustEncode(protocol.EventScreenShareStart, protocol.ScreenShareStart{
		StreamID: client.id,
		UserName: p.UserName,
	}), client)
}

// handleLeave processes an explicit leave action. A creator's leave expires
// the whole room for good; a network drop never does.
func (h *Hub) handleLeave(client *Client, env protocol.Envelope) {
	var p protocol.LeaveRoom
	if err := protocol.DecodeData(env, &p); err != nil {
		return
	}

	expired, err := h.policy.CreatorLeft(client.roomID, p.UserID)
	if err != nil {
		log.Warn().Err(err).Str("room", client.roomID).Msg("leave persistence failed")
		return
	}
	if expired {
		h.broadcast(client.roomID, mustEncode(protocol.EventRoomExpired, protocol.Notice{Message: roomExpiredMessage}), nil)
		log.Info().Str("room", client.roomID).Msg("room expired by creator leave")
	}
}

// handleDisconnect tears down a connection's presence. The roster update and
// registry teardown happen here, never from a leave message, because a
// disconnect without leave means "still present" until the socket dies.
func (h *Hub) handleDisconnect(client *Client) {
	if client.roomID != "" {
		if clients, ok := h.rooms[client.roomID]; ok {
			delete(clients, client)
			if len(clients) == 0 {
				delete(h.rooms, client.roomID)
			}
		}

		if sess, ok := h.registry.Get(client.roomID); ok {
			remaining := sess.Remove(client.id)
			h.broadcast(client.roomID, mustEncode(protocol.EventUserLeft, client.id), client)
			h.broadcast(client.roomID, mustEncode(protocol.EventRoomUsers, h.roster(sess)), client)
			if remaining == 0 {
				h.registry.Remove(client.roomID)
				log.Info().Str("room", client.roomID).Msg("room session closed (empty)")
			} else {
				log.Info().Str("room", client.roomID).Str("conn", client.id).
					Int("remaining", remaining).Msg("client left room")
			}
		}
	}

	close(client.send)
}

// roster builds the room-users payload: connection id, display name, online
// status and the admin flag for the room's creator.
func (h *Hub) roster(sess *session.Session) []protocol.RoomUser {
	members := sess.Members()
	users := make([]protocol.RoomUser, 0, len(members))
	for connID, m := range members {
		users = append(users, protocol.RoomUser{
			ID:      connID,
			Name:    m.Name,
			Status:  "online",
			IsAdmin: m.UserID != "" && m.UserID == sess.CreatorID,
		})
	}
	return users
}

// broadcast fans a frame out to a room, skipping the sender. A client whose
// send buffer is full is dropped from the fan-out map; its pumps clean up
// the rest.
func (h *Hub) broadcast(roomID string, data []byte, sender *Client) {
	clients, ok := h.rooms[roomID]
	if !ok {
		return
	}
	for client := range clients {
		if client == sender {
			continue
		}
		select {
		case client.send <- data:
		default:
			delete(clients, client)
		}
	}
}

func (h *Hub) sendTo(client *Client, data []byte) {
	select {
	case client.send <- data:
	default:
	}
}

func mustEncode(event string, v any) []byte {
	data, err := protocol.Encode(event, v)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("encoding outbound event failed")
		return nil
	}
	return data
}
