/*
Package presence is the authoritative, in-memory table of live socket
connections and the rooms pairing them.

It owns four structures: the connection table, the user index, the namespace
index, and the room table. All four are guarded by a single mutex so that
every registrar and coordinator operation is atomic as a unit; in particular
room admission (check capacity, evict stale members, insert) happens under
one lock acquisition. Nothing outside this package mutates these structures.
*/
package presence

import "time"

// AnonymousUser is the placeholder identity for a connection whose user has
// not been resolved yet.
const AnonymousUser = "anonymous"

// Sender is the transport-side handle for a registered connection. The
// websocket layer implements it; tests substitute mocks.
type Sender interface {
	// Emit queues an event for delivery to the connection. It must not block.
	Emit(event string, data any) error

	// Kick closes the connection, telling the client its session was replaced.
	Kick(reason string)
}

// Connection is the gateway's record of one live socket.
type Connection struct {
	// ID is the opaque, transport-assigned identifier, unique for the
	// socket's lifetime.
	ID string

	// UserID is the resolved user identity, or AnonymousUser.
	UserID string

	// ClientType is the protocol-specific client vocabulary (e.g. "web",
	// "mobile"); empty until supplied.
	ClientType string

	// Namespace is the logical channel the socket attached to.
	Namespace string

	// RoomName is the room this connection currently participates in, if any.
	RoomName string

	// Authenticated reports whether the user identity was verified.
	Authenticated bool

	// ConnectedAt is set by Register.
	ConnectedAt time.Time

	// Sender delivers events back to the socket.
	Sender Sender
}

// Participant is a connection's membership record within a room.
type Participant struct {
	// Role distinguishes participant kinds within the room's protocol.
	Role string

	// ConnID is the member connection's identifier.
	ConnID string

	// Namespace the member attached through.
	Namespace string

	// JoinedAt is set by JoinRoom.
	JoinedAt time.Time
}

// Member pairs a room Participant with the resolved identity of its
// connection, for admission decisions that depend on who is in the room.
type Member struct {
	Participant

	// UserID of the member's connection at evaluation time.
	UserID string
}

// SessionPolicy controls how many simultaneous sockets one user may hold
// within the registry.
type SessionPolicy string

const (
	// SingleSession force-disconnects prior sockets when a user registers a
	// new one.
	SingleSession SessionPolicy = "single"

	// MultiSession allows simultaneous sockets per user with no eviction.
	MultiSession SessionPolicy = "multi"
)

// Stats summarizes the registry for the stats endpoint.
type Stats struct {
	TotalConnections int `json:"totalConnections"`
	TotalRooms       int `json:"totalRooms"`
	TotalUsers       int `json:"totalUsers"`
	TotalNamespaces  int `json:"totalNamespaces"`
}

// NamespaceStats summarizes a single namespace.
type NamespaceStats struct {
	Clients int `json:"clients"`
	Rooms   int `json:"rooms"`
}
