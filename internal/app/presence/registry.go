/*
Package presence is the authoritative, in-memory table of live socket
connections and the rooms pairing them.

This file implements the connection registry: register/unregister, partial
field updates with index migration, lookups, and statistics.
*/
package presence

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"pairgate/internal/pkg/logx"
)

// Service holds the connection table, user index, namespace index, and room
// table under a single mutex.
type Service struct {
	mu sync.Mutex

	// conns maps connection ID to its record.
	conns map[string]*Connection

	// userIndex maps user ID to the set of connection IDs claiming it.
	userIndex map[string]map[string]struct{}

	// nsIndex maps namespace name to the set of connection IDs attached to it.
	nsIndex map[string]map[string]struct{}

	// rooms maps room name to its ordered participant list.
	rooms map[string][]Participant

	policy SessionPolicy

	logger zerolog.Logger
}

// NewService constructs an empty Service with the given session policy.
func NewService(policy SessionPolicy) *Service {
	if policy != MultiSession {
		policy = SingleSession
	}

	return &Service{
		conns:     make(map[string]*Connection),
		userIndex: make(map[string]map[string]struct{}),
		nsIndex:   make(map[string]map[string]struct{}),
		rooms:     make(map[string][]Participant),
		policy:    policy,
		logger:    logx.Logger().With().Str("component", "presence").Logger(),
	}
}

// Register inserts a connection record and updates both indexes. Under the
// single-session policy, prior connections claiming the same user identity
// are unregistered first and their sockets kicked.
func (s *Service) Register(conn Connection) {
	if conn.UserID == "" {
		conn.UserID = AnonymousUser
	}
	conn.ConnectedAt = time.Now()

	var kicks []Sender

	s.mu.Lock()

	if s.policy == SingleSession && conn.UserID != AnonymousUser {
		for _, priorID := range s.userConnIDsLocked(conn.UserID) {
			if prior, ok := s.conns[priorID]; ok && prior.Sender != nil {
				kicks = append(kicks, prior.Sender)
			}
			s.unregisterLocked(priorID)
		}
	}

	record := conn
	s.conns[conn.ID] = &record
	s.indexLocked(s.userIndex, record.UserID, conn.ID)
	if record.Namespace != "" {
		s.indexLocked(s.nsIndex, record.Namespace, conn.ID)
	}

	s.mu.Unlock()

	for _, sender := range kicks {
		sender.Kick("Session replaced by new connection. Check other devices.")
	}

	s.logger.Info().
		Str("conn_id", conn.ID).
		Str("user_id", conn.UserID).
		Str("namespace", conn.Namespace).
		Int("evicted", len(kicks)).
		Msg("Connection registered.")
}

// Unregister removes a connection, its index entries, and its room
// membership. Unknown connection IDs are a no-op.
func (s *Service) Unregister(connID string) {
	s.mu.Lock()
	removed := s.unregisterLocked(connID)
	s.mu.Unlock()

	if removed {
		s.logger.Info().Str("conn_id", connID).Msg("Connection unregistered.")
	}
}

// Update describes a partial change to a connection record. Nil fields are
// left untouched.
type Update struct {
	UserID        *string
	ClientType    *string
	Authenticated *bool
}

// UpdateFields merges the update into an existing connection. A changed
// user ID migrates the user index entry atomically; the connection is never
// unindexed mid-update. Unknown connection IDs are a logged no-op.
func (s *Service) UpdateFields(connID string, update Update) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn, ok := s.conns[connID]
	if !ok {
		s.logger.Warn().Str("conn_id", connID).Msg("UpdateFields for unknown connection.")
		return
	}

	if update.UserID != nil && *update.UserID != "" && *update.UserID != conn.UserID {
		s.unindexLocked(s.userIndex, conn.UserID, connID)
		conn.UserID = *update.UserID
		s.indexLocked(s.userIndex, conn.UserID, connID)
	}

	if update.ClientType != nil {
		conn.ClientType = *update.ClientType
	}

	if update.Authenticated != nil {
		conn.Authenticated = *update.Authenticated
	}
}

// LookupByConnection returns a copy of the connection record, if registered.
func (s *Service) LookupByConnection(connID string) (Connection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn, ok := s.conns[connID]
	if !ok {
		return Connection{}, false
	}
	return *conn, true
}

// LookupByUser returns copies of every connection currently claiming the
// given user identity, in no particular order.
func (s *Service) LookupByUser(userID string) []Connection {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, ok := s.userIndex[userID]
	if !ok {
		return nil
	}

	conns := make([]Connection, 0, len(ids))
	for id := range ids {
		if conn, exists := s.conns[id]; exists {
			conns = append(conns, *conn)
		}
	}
	return conns
}

// Stats returns registry-wide connection statistics.
func (s *Service) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		TotalConnections: len(s.conns),
		TotalRooms:       len(s.rooms),
		TotalUsers:       len(s.userIndex),
		TotalNamespaces:  len(s.nsIndex),
	}
}

// StatsForNamespace returns statistics scoped to one namespace. A room
// counts toward the namespace when any of its participants attached through
// it.
func (s *Service) StatsForNamespace(namespace string) NamespaceStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := NamespaceStats{
		Clients: len(s.nsIndex[namespace]),
	}

	for _, participants := range s.rooms {
		for _, p := range participants {
			if p.Namespace == namespace {
				stats.Rooms++
				break
			}
		}
	}

	return stats
}

// EmitToConn queues an event for one connection. Unknown connections are a
// debug-logged no-op; a full send queue surfaces as the Sender's error.
func (s *Service) EmitToConn(connID string, event string, data any) error {
	s.mu.Lock()
	conn, ok := s.conns[connID]
	var sender Sender
	if ok {
		sender = conn.Sender
	}
	s.mu.Unlock()

	if !ok || sender == nil {
		s.logger.Debug().Str("conn_id", connID).Str("event", event).Msg("Emit skipped: connection not registered.")
		return nil
	}

	return sender.Emit(event, data)
}

// unregisterLocked removes the connection from both indexes, any room it
// participates in, and the connection table. Reports whether a record was
// actually removed.
func (s *Service) unregisterLocked(connID string) bool {
	conn, ok := s.conns[connID]
	if !ok {
		s.logger.Debug().Str("conn_id", connID).Msg("Unregister for unknown connection, skipping.")
		return false
	}

	s.unindexLocked(s.userIndex, conn.UserID, connID)
	if conn.Namespace != "" {
		s.unindexLocked(s.nsIndex, conn.Namespace, connID)
	}

	if conn.RoomName != "" {
		s.leaveRoomLocked(conn.RoomName, connID)
	}

	delete(s.conns, connID)
	return true
}

// userConnIDsLocked snapshots the connection IDs currently indexed under a
// user, safe to iterate while mutating the index.
func (s *Service) userConnIDsLocked(userID string) []string {
	set, ok := s.userIndex[userID]
	if !ok {
		return nil
	}

	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids
}

func (s *Service) indexLocked(index map[string]map[string]struct{}, key, connID string) {
	set, ok := index[key]
	if !ok {
		set = make(map[string]struct{})
		index[key] = set
	}
	set[connID] = struct{}{}
}

func (s *Service) unindexLocked(index map[string]map[string]struct{}, key, connID string) {
	set, ok := index[key]
	if !ok {
		return
	}

	delete(set, connID)
	if len(set) == 0 {
		delete(index, key)
	}
}
