package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	env, err := Decode([]byte(`{"event":"join-room","data":{"roomId":"r1","userName":"Ada"}}`))
	require.NoError(t, err)
	assert.Equal(t, EventJoinRoom, env.Event)

	var p JoinRoom
	require.NoError(t, DecodeData(env, &p))
	assert.Equal(t, "r1", p.RoomID)
	assert.Equal(t, "Ada", p.UserName)
}

func TestDecodeMalformed(t *testing.T) {
	for _, raw := range []string{
		`not json`,
		`{}`,
		`{"data":{"roomId":"r1"}}`,
		`{"event":""}`,
	} {
		_, err := Decode([]byte(raw))
		assert.ErrorIs(t, err, ErrMalformed, "input: %s", raw)
	}
}

func TestDecodeBareEvent(t *testing.T) {
	// Events like clear and undo may arrive with no data at all
	env, err := Decode([]byte(`{"event":"undo"}`))
	require.NoError(t, err)
	assert.Equal(t, EventUndo, env.Event)

	var p RoomRef
	assert.ErrorIs(t, DecodeData(env, &p), ErrMalformed)
}

func TestEncodeWithPayload(t *testing.T) {
	data, err := Encode(EventUserJoined, UserJoined{ID: "conn-1", Name: "Ada"})
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, EventUserJoined, env.Event)

	var p UserJoined
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, "conn-1", p.ID)
	assert.Equal(t, "Ada", p.Name)
}

func TestEncodeBareEvent(t *testing.T) {
	data, err := Encode(EventClear, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"clear"}`, string(data))
}

func TestEncodeDecodeRoundtrip(t *testing.T) {
	data, err := Encode(EventCursorMove, CursorBroadcast{ID: "conn-1", X: 12.5, Y: 40, Name: "Ada"})
	require.NoError(t, err)

	env, err := Decode(data)
	require.NoError(t, err)

	var p CursorBroadcast
	require.NoError(t, DecodeData(env, &p))
	assert.Equal(t, CursorBroadcast{ID: "conn-1", X: 12.5, Y: 40, Name: "Ada"}, p)
}
