package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pairgate/internal/app/presence"
	"pairgate/internal/pkg/errs"
)

type stubEvent struct {
	event string
	data  any
}

// stubSender records emissions and kicks for assertions.
type stubSender struct {
	mu     sync.Mutex
	events []stubEvent
	kicks  []string
}

func (s *stubSender) Emit(event string, data any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, stubEvent{event: event, data: data})
	return nil
}

func (s *stubSender) Kick(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.kicks = append(s.kicks, reason)
}

func (s *stubSender) eventNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.events))
	for _, e := range s.events {
		names = append(names, e.event)
	}
	return names
}

func (s *stubSender) lastEvent(t *testing.T) stubEvent {
	t.Helper()

	s.mu.Lock()
	defer s.mu.Unlock()

	require.NotEmpty(t, s.events)
	return s.events[len(s.events)-1]
}

// stubRelay fakes the backend message relay.
type stubRelay struct {
	response string
	err      error

	lastClientType string
	lastReceiver   string
	lastBody       string
	lastMedia      []string
	lastAuth       string
}

func (r *stubRelay) Send(_ context.Context, clientType, receiverID, body string, media []string, authorization string) (string, error) {
	r.lastClientType = clientType
	r.lastReceiver = receiverID
	r.lastBody = body
	r.lastMedia = media
	r.lastAuth = authorization

	if r.err != nil {
		return "", r.err
	}
	return r.response, nil
}

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()

	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func registerChatConn(t *testing.T, pres *presence.Service, id, userID string, sender presence.Sender) presence.Connection {
	t.Helper()

	pres.Register(presence.Connection{
		ID:            id,
		UserID:        userID,
		ClientType:    RoleWeb,
		Namespace:     NamespaceChat,
		Authenticated: userID != "",
		Sender:        sender,
	})

	conn, ok := pres.LookupByConnection(id)
	require.True(t, ok)
	return conn
}

func requireCustomErr(t *testing.T, err error, code int) *errs.CustomError {
	t.Helper()

	require.Error(t, err)
	var customErr *errs.CustomError
	require.ErrorAs(t, err, &customErr)
	assert.Equal(t, code, customErr.Code)
	return customErr
}

func TestChatRoomNameIsOrderIndependent(t *testing.T) {
	assert.Equal(t, ChatRoomName("alice", "bob"), ChatRoomName("bob", "alice"))
	assert.Equal(t, "chat_room_alice_bob", ChatRoomName("bob", "alice"))
}

func TestChatRoomParts(t *testing.T) {
	a, b, err := chatRoomParts("chat_room_alice_bob")
	require.NoError(t, err)
	assert.Equal(t, "alice", a)
	assert.Equal(t, "bob", b)

	_, _, err = chatRoomParts("verification_room_alice")
	assert.Error(t, err)

	_, _, err = chatRoomParts("chat_room_alice")
	assert.Error(t, err)
}

func TestJoinChatFirstArrivalCreatesRoom(t *testing.T) {
	pres := presence.NewService(presence.MultiSession)
	chat := NewChatProtocol(pres, &stubRelay{})
	sender := &stubSender{}
	conn := registerChatConn(t, pres, "c1", "alice", sender)

	payload := mustJSON(t, JoinChatPayload{ClientType: "web", ClientA: "bob", ClientB: "alice"})
	result, err := chat.Join(context.Background(), conn, HandshakeSource{}, payload)
	require.NoError(t, err)

	joinResult, ok := result.(JoinChatResult)
	require.True(t, ok)
	assert.True(t, joinResult.Success)
	assert.True(t, joinResult.IsFirstPerson)
	assert.Equal(t, "chat_room_alice_bob", joinResult.RoomName)

	assert.True(t, pres.RoomExists("chat_room_alice_bob"))
	assert.Equal(t, []string{EventRoomCreated}, sender.eventNames())
}

func TestJoinChatSecondPeerFillsRoom(t *testing.T) {
	pres := presence.NewService(presence.MultiSession)
	chat := NewChatProtocol(pres, &stubRelay{})
	aliceSender := &stubSender{}
	bobSender := &stubSender{}
	alice := registerChatConn(t, pres, "c1", "alice", aliceSender)
	bob := registerChatConn(t, pres, "c2", "bob", bobSender)

	payload := mustJSON(t, JoinChatPayload{ClientType: "web", ClientA: "alice", ClientB: "bob"})

	_, err := chat.Join(context.Background(), alice, HandshakeSource{}, payload)
	require.NoError(t, err)

	result, err := chat.Join(context.Background(), bob, HandshakeSource{}, payload)
	require.NoError(t, err)

	joinResult := result.(JoinChatResult)
	assert.False(t, joinResult.IsFirstPerson)

	// Both room members see the arrival.
	assert.Contains(t, aliceSender.eventNames(), EventUserJoined)
	assert.Contains(t, bobSender.eventNames(), EventUserJoined)
	assert.Len(t, pres.RoomParticipants("chat_room_alice_bob"), 2)
}

func TestJoinChatRejectsThirdUser(t *testing.T) {
	pres := presence.NewService(presence.MultiSession)
	chat := NewChatProtocol(pres, &stubRelay{})
	alice := registerChatConn(t, pres, "c1", "alice", &stubSender{})
	bob := registerChatConn(t, pres, "c2", "bob", &stubSender{})
	carol := registerChatConn(t, pres, "c3", "carol", &stubSender{})

	payload := mustJSON(t, JoinChatPayload{ClientType: "web", ClientA: "alice", ClientB: "bob"})

	_, err := chat.Join(context.Background(), alice, HandshakeSource{}, payload)
	require.NoError(t, err)
	_, err = chat.Join(context.Background(), bob, HandshakeSource{}, payload)
	require.NoError(t, err)

	_, err = chat.Join(context.Background(), carol, HandshakeSource{}, payload)
	requireCustomErr(t, err, errs.ErrWrongChannel)
	assert.Len(t, pres.RoomParticipants("chat_room_alice_bob"), 2)
}

func TestJoinChatRejectsOutsiderBeforeRoomIsFull(t *testing.T) {
	pres := presence.NewService(presence.MultiSession)
	chat := NewChatProtocol(pres, &stubRelay{})
	alice := registerChatConn(t, pres, "c1", "alice", &stubSender{})
	carol := registerChatConn(t, pres, "c2", "carol", &stubSender{})

	payload := mustJSON(t, JoinChatPayload{ClientType: "web", ClientA: "alice", ClientB: "bob"})

	_, err := chat.Join(context.Background(), alice, HandshakeSource{}, payload)
	require.NoError(t, err)

	_, err = chat.Join(context.Background(), carol, HandshakeSource{}, payload)
	requireCustomErr(t, err, errs.ErrWrongChannel)
}

func TestJoinChatReconnectEvictsStaleEntry(t *testing.T) {
	pres := presence.NewService(presence.MultiSession)
	chat := NewChatProtocol(pres, &stubRelay{})
	alice := registerChatConn(t, pres, "c1", "alice", &stubSender{})
	bob := registerChatConn(t, pres, "c2", "bob", &stubSender{})

	payload := mustJSON(t, JoinChatPayload{ClientType: "web", ClientA: "alice", ClientB: "bob"})

	_, err := chat.Join(context.Background(), alice, HandshakeSource{}, payload)
	require.NoError(t, err)
	_, err = chat.Join(context.Background(), bob, HandshakeSource{}, payload)
	require.NoError(t, err)

	// Alice reconnects on a new socket while the stale one is still in the room.
	alice2 := registerChatConn(t, pres, "c3", "alice", &stubSender{})
	result, err := chat.Join(context.Background(), alice2, HandshakeSource{}, payload)
	require.NoError(t, err)
	assert.False(t, result.(JoinChatResult).IsFirstPerson)

	participants := pres.RoomParticipants("chat_room_alice_bob")
	require.Len(t, participants, 2)
	ids := []string{participants[0].ConnID, participants[1].ConnID}
	assert.ElementsMatch(t, []string{"c2", "c3"}, ids)
}

func TestJoinChatValidation(t *testing.T) {
	pres := presence.NewService(presence.MultiSession)
	chat := NewChatProtocol(pres, &stubRelay{})
	conn := registerChatConn(t, pres, "c1", "alice", &stubSender{})

	tests := []struct {
		name     string
		payload  JoinChatPayload
		wantCode int
	}{
		{
			name:     "missing all fields",
			payload:  JoinChatPayload{},
			wantCode: errs.ErrMissingCredentials,
		},
		{
			name:     "missing peers",
			payload:  JoinChatPayload{ClientType: "web"},
			wantCode: errs.ErrMissingCredentials,
		},
		{
			name:     "unsupported client type",
			payload:  JoinChatPayload{ClientType: "desktop", ClientA: "alice", ClientB: "bob"},
			wantCode: errs.ErrInvalidClientType,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := chat.Join(context.Background(), conn, HandshakeSource{}, mustJSON(t, tc.payload))
			requireCustomErr(t, err, tc.wantCode)
		})
	}
}

func TestJoinChatAuthenticatesInlineFromHandshake(t *testing.T) {
	pres := presence.NewService(presence.MultiSession)
	chat := NewChatProtocol(pres, &stubRelay{})
	sender := &stubSender{}

	pres.Register(presence.Connection{ID: "c1", Namespace: NamespaceChat, Sender: sender})
	conn, ok := pres.LookupByConnection("c1")
	require.True(t, ok)
	require.False(t, conn.Authenticated)

	src := HandshakeSource{Auth: map[string]string{"userId": "alice"}}
	payload := mustJSON(t, JoinChatPayload{ClientType: "web", ClientA: "alice", ClientB: "bob"})

	_, err := chat.Join(context.Background(), conn, src, payload)
	require.NoError(t, err)

	updated, ok := pres.LookupByConnection("c1")
	require.True(t, ok)
	assert.True(t, updated.Authenticated)
	assert.Equal(t, "alice", updated.UserID)
	assert.Equal(t, RoleWeb, updated.ClientType)
}

func TestJoinChatAnonymousWithoutIdentityRejected(t *testing.T) {
	pres := presence.NewService(presence.MultiSession)
	chat := NewChatProtocol(pres, &stubRelay{})

	pres.Register(presence.Connection{ID: "c1", Namespace: NamespaceChat, Sender: &stubSender{}})
	conn, _ := pres.LookupByConnection("c1")

	payload := mustJSON(t, JoinChatPayload{ClientType: "web", ClientA: "alice", ClientB: "bob"})
	_, err := chat.Join(context.Background(), conn, HandshakeSource{}, payload)
	requireCustomErr(t, err, errs.ErrAuthRequired)
}

func TestMessageRelaysAndBroadcasts(t *testing.T) {
	pres := presence.NewService(presence.MultiSession)
	relay := &stubRelay{response: `{"id":"m1","body":"hello"}`}
	chat := NewChatProtocol(pres, relay)

	aliceSender := &stubSender{}
	bobSender := &stubSender{}
	alice := registerChatConn(t, pres, "c1", "alice", aliceSender)
	bob := registerChatConn(t, pres, "c2", "bob", bobSender)

	joinPayload := mustJSON(t, JoinChatPayload{ClientType: "web", ClientA: "alice", ClientB: "bob"})
	_, err := chat.Join(context.Background(), alice, HandshakeSource{}, joinPayload)
	require.NoError(t, err)
	_, err = chat.Join(context.Background(), bob, HandshakeSource{}, joinPayload)
	require.NoError(t, err)

	alice, _ = pres.LookupByConnection("c1")
	src := HandshakeSource{Header: map[string][]string{"Authorization": {"Bearer tok"}}}
	msgPayload := mustJSON(t, ChatMessagePayload{Message: "hello", Media: []string{"chat-media/k1.png"}})

	result, err := chat.Message(context.Background(), alice, src, msgPayload)
	require.NoError(t, err)

	assert.Equal(t, RoleWeb, relay.lastClientType)
	assert.Equal(t, "bob", relay.lastReceiver)
	assert.Equal(t, "hello", relay.lastBody)
	assert.Equal(t, []string{"chat-media/k1.png"}, relay.lastMedia)
	assert.Equal(t, "Bearer tok", relay.lastAuth)

	// The relay response becomes the broadcast content, to both members.
	assert.Contains(t, aliceSender.eventNames(), EventMessage)
	assert.Contains(t, bobSender.eventNames(), EventMessage)

	last := bobSender.lastEvent(t)
	emission, ok := last.data.(MessageEmission)
	require.True(t, ok)
	assert.Equal(t, "alice", emission.Sender)
	assert.Equal(t, relay.response, emission.Message)

	// The counterpart also gets a peer notification.
	assert.Contains(t, bobSender.eventNames(), EventPeerJoined)

	opResult := result.(OpResult)
	assert.True(t, opResult.Success)
	assert.Equal(t, relay.response, opResult.Message)
}

func TestMessageRelayFailureReachesCallerOnly(t *testing.T) {
	pres := presence.NewService(presence.MultiSession)
	relay := &stubRelay{err: errors.New("backend unreachable")}
	chat := NewChatProtocol(pres, relay)

	aliceSender := &stubSender{}
	bobSender := &stubSender{}
	alice := registerChatConn(t, pres, "c1", "alice", aliceSender)
	bob := registerChatConn(t, pres, "c2", "bob", bobSender)

	joinPayload := mustJSON(t, JoinChatPayload{ClientType: "web", ClientA: "alice", ClientB: "bob"})
	_, err := chat.Join(context.Background(), alice, HandshakeSource{}, joinPayload)
	require.NoError(t, err)
	_, err = chat.Join(context.Background(), bob, HandshakeSource{}, joinPayload)
	require.NoError(t, err)

	alice, _ = pres.LookupByConnection("c1")
	_, err = chat.Message(context.Background(), alice, HandshakeSource{}, mustJSON(t, ChatMessagePayload{Message: "hi"}))
	customErr := requireCustomErr(t, err, errs.ErrRelayFailure)
	assert.Contains(t, customErr.Message, "backend unreachable")

	// Nothing is broadcast on relay failure.
	assert.NotContains(t, aliceSender.eventNames(), EventMessage)
	assert.NotContains(t, bobSender.eventNames(), EventMessage)
}

func TestMessageRequiresRoomMembership(t *testing.T) {
	pres := presence.NewService(presence.MultiSession)
	chat := NewChatProtocol(pres, &stubRelay{})
	conn := registerChatConn(t, pres, "c1", "alice", &stubSender{})

	_, err := chat.Message(context.Background(), conn, HandshakeSource{}, mustJSON(t, ChatMessagePayload{Message: "hi"}))
	requireCustomErr(t, err, errs.ErrNotInRoom)
}

func TestTypingBroadcastsToRoom(t *testing.T) {
	pres := presence.NewService(presence.MultiSession)
	chat := NewChatProtocol(pres, &stubRelay{})

	aliceSender := &stubSender{}
	bobSender := &stubSender{}
	alice := registerChatConn(t, pres, "c1", "alice", aliceSender)
	bob := registerChatConn(t, pres, "c2", "bob", bobSender)

	joinPayload := mustJSON(t, JoinChatPayload{ClientType: "web", ClientA: "alice", ClientB: "bob"})
	_, err := chat.Join(context.Background(), alice, HandshakeSource{}, joinPayload)
	require.NoError(t, err)
	_, err = chat.Join(context.Background(), bob, HandshakeSource{}, joinPayload)
	require.NoError(t, err)

	alice, _ = pres.LookupByConnection("c1")
	result, err := chat.Typing(context.Background(), alice, HandshakeSource{}, json.RawMessage(`true`))
	require.NoError(t, err)
	assert.Nil(t, result)

	assert.Contains(t, bobSender.eventNames(), EventIsTyping)

	emission := bobSender.lastEvent(t).data.(MessageEmission)
	assert.Equal(t, "alice", emission.Sender)
	assert.Equal(t, true, emission.Message)
}

func TestLeaveChatNotifiesRemainingPeer(t *testing.T) {
	pres := presence.NewService(presence.MultiSession)
	chat := NewChatProtocol(pres, &stubRelay{})

	aliceSender := &stubSender{}
	bobSender := &stubSender{}
	alice := registerChatConn(t, pres, "c1", "alice", aliceSender)
	bob := registerChatConn(t, pres, "c2", "bob", bobSender)

	joinPayload := mustJSON(t, JoinChatPayload{ClientType: "web", ClientA: "alice", ClientB: "bob"})
	_, err := chat.Join(context.Background(), alice, HandshakeSource{}, joinPayload)
	require.NoError(t, err)
	_, err = chat.Join(context.Background(), bob, HandshakeSource{}, joinPayload)
	require.NoError(t, err)

	alice, _ = pres.LookupByConnection("c1")
	result, err := chat.Leave(context.Background(), alice, HandshakeSource{}, mustJSON(t, LeaveChatPayload{ClientA: "alice", ClientB: "bob"}))
	require.NoError(t, err)
	assert.True(t, result.(OpResult).Success)

	assert.Contains(t, bobSender.eventNames(), EventUserLeft)
	require.Len(t, pres.RoomParticipants("chat_room_alice_bob"), 1)

	// Last member out deletes the room.
	bob, _ = pres.LookupByConnection("c2")
	_, err = chat.Leave(context.Background(), bob, HandshakeSource{}, mustJSON(t, LeaveChatPayload{ClientA: "alice", ClientB: "bob"}))
	require.NoError(t, err)
	assert.False(t, pres.RoomExists("chat_room_alice_bob"))
}

func TestJoinChatSwitchingPairsReleasesPriorRoom(t *testing.T) {
	pres := presence.NewService(presence.MultiSession)
	chat := NewChatProtocol(pres, &stubRelay{})
	alice := registerChatConn(t, pres, "c1", "alice", &stubSender{})
	bob := registerChatConn(t, pres, "c2", "bob", &stubSender{})
	registerChatConn(t, pres, "c3", "carol", &stubSender{})

	_, err := chat.Join(context.Background(), alice, HandshakeSource{}, mustJSON(t, JoinChatPayload{ClientType: "web", ClientA: "alice", ClientB: "bob"}))
	require.NoError(t, err)

	// Alice moves on to a chat with carol without an explicit leave_chat.
	alice, _ = pres.LookupByConnection("c1")
	_, err = chat.Join(context.Background(), alice, HandshakeSource{}, mustJSON(t, JoinChatPayload{ClientType: "web", ClientA: "alice", ClientB: "carol"}))
	require.NoError(t, err)

	assert.False(t, pres.RoomExists("chat_room_alice_bob"))

	// Bob pairs with alice from scratch; no dead slot blocks the room.
	result, err := chat.Join(context.Background(), bob, HandshakeSource{}, mustJSON(t, JoinChatPayload{ClientType: "web", ClientA: "alice", ClientB: "bob"}))
	require.NoError(t, err)
	assert.True(t, result.(JoinChatResult).IsFirstPerson)
}

func TestLeaveChatByNonMemberDoesNotBroadcast(t *testing.T) {
	pres := presence.NewService(presence.MultiSession)
	chat := NewChatProtocol(pres, &stubRelay{})

	aliceSender := &stubSender{}
	alice := registerChatConn(t, pres, "c1", "alice", aliceSender)
	bob := registerChatConn(t, pres, "c2", "bob", &stubSender{})
	carol := registerChatConn(t, pres, "c3", "carol", &stubSender{})

	joinPayload := mustJSON(t, JoinChatPayload{ClientType: "web", ClientA: "alice", ClientB: "bob"})
	_, err := chat.Join(context.Background(), alice, HandshakeSource{}, joinPayload)
	require.NoError(t, err)
	_, err = chat.Join(context.Background(), bob, HandshakeSource{}, joinPayload)
	require.NoError(t, err)

	result, err := chat.Leave(context.Background(), carol, HandshakeSource{}, mustJSON(t, LeaveChatPayload{ClientA: "alice", ClientB: "bob"}))
	require.NoError(t, err)
	assert.False(t, result.(OpResult).Success)

	assert.NotContains(t, aliceSender.eventNames(), EventUserLeft)
	assert.Len(t, pres.RoomParticipants("chat_room_alice_bob"), 2)
}

func TestLeaveChatValidatesPeers(t *testing.T) {
	pres := presence.NewService(presence.MultiSession)
	chat := NewChatProtocol(pres, &stubRelay{})
	conn := registerChatConn(t, pres, "c1", "alice", &stubSender{})

	_, err := chat.Leave(context.Background(), conn, HandshakeSource{}, mustJSON(t, LeaveChatPayload{ClientA: "alice"}))
	customErr := requireCustomErr(t, err, errs.ErrMissingCredentials)
	assert.Contains(t, customErr.Message, "client_b")
}
