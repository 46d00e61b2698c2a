/*
Package presence is the authoritative, in-memory table of live socket
connections and the rooms pairing them.

This file implements the room coordinator: membership, role queries, and the
atomic admission primitive protocol handlers build their capacity rules on.
A room with zero participants does not exist; the last leave deletes it.
*/
package presence

import "time"

// AdmitFunc evaluates a room's current members and decides whether a caller
// may join. It returns the connection IDs of members to evict before the
// caller is inserted (stale-connection replacement), or an error to reject
// the join. It runs under the registry lock and must not call back into the
// Service.
type AdmitFunc func(members []Member) (evict []string, err error)

// JoinRoom appends a participant to the room, creating the room if absent,
// and records the room on the participant's connection. Capacity and role
// rules are the caller's responsibility; use JoinRoomIf to apply them
// atomically.
func (s *Service) JoinRoom(roomName string, p Participant) {
	s.mu.Lock()
	s.joinRoomLocked(roomName, p)
	s.mu.Unlock()

	s.logger.Info().
		Str("conn_id", p.ConnID).
		Str("room", roomName).
		Str("role", p.Role).
		Msg("Participant joined room.")
}

// JoinRoomIf atomically evaluates admit against the room's current members
// and, when it allows the join, evicts the members it names and inserts p.
// The check and the insert happen under one lock acquisition, so no other
// connection's admission decision can interleave.
func (s *Service) JoinRoomIf(roomName string, p Participant, admit AdmitFunc) error {
	s.mu.Lock()

	participants := s.rooms[roomName]
	members := make([]Member, 0, len(participants))
	for _, part := range participants {
		member := Member{Participant: part}
		if conn, ok := s.conns[part.ConnID]; ok {
			member.UserID = conn.UserID
		}
		members = append(members, member)
	}

	evict, err := admit(members)
	if err != nil {
		s.mu.Unlock()
		return err
	}

	for _, connID := range evict {
		s.leaveRoomLocked(roomName, connID)
	}
	s.joinRoomLocked(roomName, p)

	s.mu.Unlock()

	s.logger.Info().
		Str("conn_id", p.ConnID).
		Str("room", roomName).
		Str("role", p.Role).
		Int("evicted", len(evict)).
		Msg("Participant admitted to room.")
	return nil
}

// LeaveRoom removes the participant from the room; the room is deleted when
// it becomes empty. It reports whether a participant was actually removed;
// unknown rooms or non-members are a no-op.
func (s *Service) LeaveRoom(roomName string, connID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.leaveRoomLocked(roomName, connID)
}

// RoomExists reports whether the room currently has any participants.
func (s *Service) RoomExists(roomName string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.rooms[roomName]
	return ok
}

// RoomParticipants returns a copy of the room's participant list.
func (s *Service) RoomParticipants(roomName string) []Participant {
	s.mu.Lock()
	defer s.mu.Unlock()

	participants, ok := s.rooms[roomName]
	if !ok {
		return nil
	}

	out := make([]Participant, len(participants))
	copy(out, participants)
	return out
}

// HasRole reports whether any participant of the given role is in the room.
func (s *Service) HasRole(roomName string, role string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.rooms[roomName] {
		if p.Role == role {
			return true
		}
	}
	return false
}

// RemoveRole evicts every participant of the given role from the room.
func (s *Service) RemoveRole(roomName string, role string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var evict []string
	for _, p := range s.rooms[roomName] {
		if p.Role == role {
			evict = append(evict, p.ConnID)
		}
	}
	for _, connID := range evict {
		s.leaveRoomLocked(roomName, connID)
	}
}

// RoomCount returns the number of rooms currently tracked.
func (s *Service) RoomCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.rooms)
}

// EmitToRoom queues an event for every participant of the room. Individual
// send failures are logged and do not stop delivery to the rest.
func (s *Service) EmitToRoom(roomName string, event string, data any) {
	s.mu.Lock()
	participants := s.rooms[roomName]
	senders := make([]Sender, 0, len(participants))
	connIDs := make([]string, 0, len(participants))
	for _, p := range participants {
		if conn, ok := s.conns[p.ConnID]; ok && conn.Sender != nil {
			senders = append(senders, conn.Sender)
			connIDs = append(connIDs, p.ConnID)
		}
	}
	s.mu.Unlock()

	for i, sender := range senders {
		if err := sender.Emit(event, data); err != nil {
			s.logger.Warn().
				Err(err).
				Str("conn_id", connIDs[i]).
				Str("room", roomName).
				Str("event", event).
				Msg("Room emit failed for participant.")
		}
	}
}

func (s *Service) joinRoomLocked(roomName string, p Participant) {
	// A connection holds at most one room; moving to a new room releases the
	// old membership so the abandoned room cannot retain a dead slot.
	if conn, ok := s.conns[p.ConnID]; ok && conn.RoomName != "" && conn.RoomName != roomName {
		s.leaveRoomLocked(conn.RoomName, p.ConnID)
	}

	p.JoinedAt = time.Now()
	s.rooms[roomName] = append(s.rooms[roomName], p)

	if conn, ok := s.conns[p.ConnID]; ok {
		conn.RoomName = roomName
	}
}

func (s *Service) leaveRoomLocked(roomName string, connID string) bool {
	participants, ok := s.rooms[roomName]
	if !ok {
		return false
	}

	removed := false
	remaining := participants[:0]
	for _, p := range participants {
		if p.ConnID == connID {
			removed = true
			continue
		}
		remaining = append(remaining, p)
	}
	if !removed {
		return false
	}

	if len(remaining) == 0 {
		delete(s.rooms, roomName)
		s.logger.Info().Str("room", roomName).Msg("Room empty, removed.")
	} else {
		s.rooms[roomName] = remaining
	}

	if conn, ok := s.conns[connID]; ok && conn.RoomName == roomName {
		conn.RoomName = ""
	}
	return true
}
