/*
Package gateway implements the socket-facing side of the pairing gateway:
connection lifecycle, event dispatch, and the chat and device-verification
protocols.

This file defines the wire protocol: the inbound envelope, outbound frames,
event names, payload shapes, and the deterministic room naming rules.
*/
package gateway

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Namespaces a socket may attach to, chosen by the upgrade path.
const (
	NamespaceRoot         = ""
	NamespaceChat         = "chat"
	NamespaceVerification = "verification"
)

// Participant roles and room name prefixes.
const (
	RoleWeb    = "web"
	RoleMobile = "mobile"

	// RoleChat tags chat room membership, where the two peers are
	// distinguished by user identity rather than device kind.
	RoleChat = "chat"

	chatRoomPrefix         = "chat_room_"
	verificationRoomPrefix = "verification_room_"
)

// Inbound event names.
const (
	EventAuthenticate = "authenticate"
	EventJoinChat     = "join_chat"
	EventMessage      = "message"
	EventIsTyping     = "is_typing"
	EventLeaveChat    = "leave_chat"
	EventJoinRoom     = "join_room"
	EventLeaveRoom    = "leave_room"
)

// Outbound event names.
const (
	EventAck         = "ack"
	EventError       = "error"
	EventAuthSuccess = "auth_success"
	EventRoomCreated = "room_created"
	EventUserJoined  = "user_joined"
	EventUserLeft    = "user_left"
	EventPeerJoined  = "peer_joined"
	EventJoined      = "joined"
)

// Envelope is the inbound frame shape. ID, when present, requests an ack
// carrying the handler's reply.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	ID    string          `json:"id,omitempty"`
}

// outboundFrame is the shape of every server-to-client emission.
type outboundFrame struct {
	Event     string `json:"event"`
	Data      any    `json:"data,omitempty"`
	Timestamp string `json:"timestamp"`
}

// AckEmission carries a handler's reply back to the requesting frame.
type AckEmission struct {
	ID     string `json:"id"`
	Result any    `json:"result"`
}

// ErrorEmission is sent on the error channel to the failing connection only.
type ErrorEmission struct {
	Message   string `json:"message"`
	Status    int    `json:"status"`
	Timestamp string `json:"timestamp"`
}

// AuthenticatePayload resolves an anonymous connection's identity in place.
type AuthenticatePayload struct {
	UserID     string `json:"userId"`
	ClientType string `json:"clientType,omitempty"`
}

// JoinChatPayload names the two peers of a chat pairing session.
type JoinChatPayload struct {
	ClientType string `json:"clientType"`
	ClientA    string `json:"client_a"`
	ClientB    string `json:"client_b"`
}

// JoinChatResult is the reply to a chat join.
type JoinChatResult struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	RoomName      string `json:"roomName,omitempty"`
	IsFirstPerson bool   `json:"isFirstPerson"`
}

// ChatMessagePayload carries a chat message body plus media references.
type ChatMessagePayload struct {
	Message string   `json:"message"`
	Media   []string `json:"media,omitempty"`
}

// LeaveChatPayload names the pair whose room the caller is leaving.
type LeaveChatPayload struct {
	ClientA string `json:"client_a"`
	ClientB string `json:"client_b"`
}

// VerificationJoinPayload identifies the user and device kind for a
// verification pairing.
type VerificationJoinPayload struct {
	UserID     string          `json:"userId"`
	ClientType string          `json:"clientType"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// VerificationMessagePayload is relayed verbatim to the caller's room.
type VerificationMessagePayload struct {
	Data json.RawMessage `json:"data"`
}

// VerificationLeavePayload names the verification session being left.
type VerificationLeavePayload struct {
	UserID string `json:"userId"`
}

// OpResult is the generic success/failure reply.
type OpResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// RoomCreatedEmission announces a freshly created chat room.
type RoomCreatedEmission struct {
	RoomName  string `json:"roomName"`
	ClientA   string `json:"client_a"`
	ClientB   string `json:"client_b"`
	CreatedBy string `json:"createdBy"`
	Timestamp string `json:"timestamp"`
}

// UserJoinedEmission announces the second peer arriving in a chat room.
type UserJoinedEmission struct {
	RoomName   string `json:"roomName"`
	UserID     string `json:"userId"`
	ClientType string `json:"clientType"`
	Timestamp  string `json:"timestamp"`
}

// UserLeftEmission announces a peer leaving a chat room.
type UserLeftEmission struct {
	RoomName  string `json:"roomName"`
	UserID    string `json:"userId"`
	Timestamp string `json:"timestamp"`
}

// PeerJoinedEmission notifies a chat counterpart that their peer is active.
type PeerJoinedEmission struct {
	Message    string `json:"message"`
	RoomName   string `json:"roomName"`
	PeerUserID string `json:"peerUserId"`
	Timestamp  string `json:"timestamp"`
}

// MessageEmission carries message content to a room.
type MessageEmission struct {
	Sender    string `json:"sender"`
	Message   any    `json:"message"`
	Timestamp string `json:"timestamp"`
}

// JoinedEmission announces a participant arriving in a verification room.
type JoinedEmission struct {
	Sender     string `json:"sender"`
	Message    string `json:"message"`
	RoomName   string `json:"roomName"`
	ClientType string `json:"clientType"`
	Timestamp  string `json:"timestamp"`
}

// ChatRoomName derives the deterministic room name for a peer pair. The two
// user identifiers are ordered lexicographically, so both peers compute the
// same name regardless of who joins first.
func ChatRoomName(userA, userB string) string {
	pair := []string{userA, userB}
	sort.Strings(pair)
	return chatRoomPrefix + pair[0] + "_" + pair[1]
}

// chatRoomParts recovers the two user identifiers embedded in a chat room
// name. User identifiers containing underscores are not supported by this
// encoding.
func chatRoomParts(roomName string) (string, string, error) {
	trimmed := strings.TrimPrefix(roomName, chatRoomPrefix)
	if trimmed == roomName {
		return "", "", fmt.Errorf("not a chat room name: %q", roomName)
	}

	parts := strings.Split(trimmed, "_")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("malformed chat room name: %q", roomName)
	}

	return parts[0], parts[1], nil
}

// VerificationRoomName derives the single-user-keyed verification room name.
func VerificationRoomName(userID string) string {
	return verificationRoomPrefix + userID
}

func nowTimestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
