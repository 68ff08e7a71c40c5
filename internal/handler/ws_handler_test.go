package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomhub/internal/app/chat"
	"roomhub/internal/pkg/errs"
)

// dial opens a socket as userID, or anonymously when userID is empty.
func (ts *testServer) dial(t *testing.T, userID string) *websocket.Conn {
	t.Helper()

	u := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	if userID != "" {
		u += "?token=" + token(t, userID)
	}

	conn, res, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	res.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, frame chat.Frame) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(frame))
}

func next(t *testing.T, conn *websocket.Conn) chat.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var ev chat.Event
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func payload[T any](t *testing.T, ev chat.Event) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(ev.Payload, &out))
	return out
}

func subscribe(t *testing.T, conn *websocket.Conn, roomID, tempID string) chat.Event {
	t.Helper()
	send(t, conn, chat.Frame{Type: chat.FrameSubscribe, RoomID: roomID, TempID: tempID})
	return next(t, conn)
}

func TestWebSocket_PingPong(t *testing.T) {
	ts := newTestServer(t, false)
	conn := ts.dial(t, "")

	send(t, conn, chat.Frame{Type: chat.FramePing})
	assert.Equal(t, chat.EventPong, next(t, conn).Type)

	send(t, conn, chat.Frame{Type: "shout"})
	ev := next(t, conn)
	require.Equal(t, chat.EventError, ev.Type)
	assert.Equal(t, errs.ErrInvalidParams, payload[chat.ErrorPayload](t, ev).Code)
}

func TestWebSocket_PrivateRoomRejectsOutsiders(t *testing.T) {
	ts := newTestServer(t, false)
	room := ts.createRoom(t, false, "u2")

	anon := ts.dial(t, "")
	ev := subscribe(t, anon, room.ID, "s1")
	require.Equal(t, chat.EventError, ev.Type)
	got := payload[chat.ErrorPayload](t, ev)
	assert.Equal(t, errs.ErrRoomPrivate, got.Code)
	assert.Equal(t, "s1", got.TempID)

	outsider := ts.dial(t, "u3")
	ev = subscribe(t, outsider, room.ID, "s2")
	require.Equal(t, chat.EventError, ev.Type)
	assert.Equal(t, errs.ErrRoomPrivate, payload[chat.ErrorPayload](t, ev).Code)

	member := ts.dial(t, "u2")
	ev = subscribe(t, member, room.ID, "s3")
	require.Equal(t, chat.EventAck, ev.Type)
	assert.Equal(t, "s3", payload[chat.AckPayload](t, ev).TempID)
}

func TestWebSocket_PostOverSocket(t *testing.T) {
	ts := newTestServer(t, false)
	room := ts.createRoom(t, true, "u2")

	sender := ts.dial(t, "u2")
	require.Equal(t, chat.EventAck, subscribe(t, sender, room.ID, "sub").Type)

	body, err := json.Marshal(chat.MessagePayload{Content: "hi from the socket"})
	require.NoError(t, err)
	send(t, sender, chat.Frame{Type: chat.FrameMessage, RoomID: room.ID, Payload: body, TempID: "m1"})

	// The sender is subscribed, so it sees its own message and then the ack.
	created := next(t, sender)
	require.Equal(t, chat.EventMessageCreated, created.Type)
	msg := payload[chat.Message](t, created)
	assert.Equal(t, "hi from the socket", msg.Content)

	ack := next(t, sender)
	require.Equal(t, chat.EventAck, ack.Type)
	got := payload[chat.AckPayload](t, ack)
	assert.Equal(t, "m1", got.TempID)
	assert.Equal(t, msg.ID, got.MessageID)

	anon := ts.dial(t, "")
	send(t, anon, chat.Frame{Type: chat.FrameMessage, RoomID: room.ID, Payload: body, TempID: "m2"})
	ev := next(t, anon)
	require.Equal(t, chat.EventError, ev.Type)
	assert.Equal(t, errs.ErrUnauthorized, payload[chat.ErrorPayload](t, ev).Code)
}

// A member removed while subscribed is told so, and receives nothing from the room afterwards.
func TestWebSocket_RemovedMemberStopsReceiving(t *testing.T) {
	ts := newTestServer(t, false)
	room := ts.createRoom(t, false, "u2")

	bob := ts.dial(t, "u2")
	require.Equal(t, chat.EventAck, subscribe(t, bob, room.ID, "sub").Type)

	status, env := ts.call(t, http.MethodPost, "/api/rooms/"+room.ID+"/messages", "u1", PostMessageInput{Content: "before"})
	require.Equal(t, http.StatusCreated, status, env.Msg)

	ev := next(t, bob)
	require.Equal(t, chat.EventMessageCreated, ev.Type)
	assert.Equal(t, "before", payload[chat.Message](t, ev).Content)

	status, env = ts.call(t, http.MethodPatch, "/api/rooms/"+room.ID, "u1", UpdateRoomInput{
		Members: []chat.MembershipChange{{UserID: "u2", Op: chat.OpRemove}},
	})
	require.Equal(t, http.StatusOK, status, env.Msg)

	ev = next(t, bob)
	require.Equal(t, chat.EventMembershipRevoked, ev.Type)
	assert.Equal(t, room.ID, ev.RoomID)

	status, env = ts.call(t, http.MethodPost, "/api/rooms/"+room.ID+"/messages", "u1", PostMessageInput{Content: "after"})
	require.Equal(t, http.StatusCreated, status, env.Msg)

	// Had the message been delivered it would be queued ahead of the pong.
	send(t, bob, chat.Frame{Type: chat.FramePing})
	assert.Equal(t, chat.EventPong, next(t, bob).Type)

	// Resubscribing is refused now that bob is no member.
	ev = subscribe(t, bob, room.ID, "again")
	require.Equal(t, chat.EventError, ev.Type)
	assert.Equal(t, errs.ErrRoomPrivate, payload[chat.ErrorPayload](t, ev).Code)
}

func TestWebSocket_DeletedRoomEvictsSubscribers(t *testing.T) {
	ts := newTestServer(t, false)
	room := ts.createRoom(t, true)

	watcher := ts.dial(t, "")
	require.Equal(t, chat.EventAck, subscribe(t, watcher, room.ID, "sub").Type)

	status, _ := ts.call(t, http.MethodDelete, "/api/rooms/"+room.ID, "u1", nil)
	require.Equal(t, http.StatusOK, status)

	ev := next(t, watcher)
	assert.Equal(t, chat.EventRoomDeleted, ev.Type)
	assert.Equal(t, room.ID, ev.RoomID)
	assert.Empty(t, ts.manager.Router.Subscribers(room.ID))
}
