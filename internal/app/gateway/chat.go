package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"pairgate/internal/app/presence"
	"pairgate/internal/pkg/errs"
	"pairgate/internal/pkg/logx"
)

// Relay forwards a chat message to the external backend and returns the
// backend's response body, which becomes the broadcast message content.
type Relay interface {
	Send(ctx context.Context, clientType, receiverID, body string, media []string, authorization string) (string, error)
}

// ChatProtocol implements the two-party chat pairing namespace. Rooms hold at
// most two participants, keyed by the lexicographically ordered pair of user
// identifiers, so both peers derive the same room name independently.
type ChatProtocol struct {
	presence *presence.Service
	relay    Relay
	logger   zerolog.Logger
}

// NewChatProtocol constructs the chat namespace handlers.
func NewChatProtocol(pres *presence.Service, relay Relay) *ChatProtocol {
	return &ChatProtocol{
		presence: pres,
		relay:    relay,
		logger:   logx.Logger().With().Str("component", "chat").Logger(),
	}
}

func validChatClientType(clientType string) bool {
	return clientType == RoleWeb || clientType == RoleMobile
}

// Join admits the caller into the pair's chat room. An anonymous connection
// authenticates inline from its handshake user ID first. The first arrival
// creates the room; the second fills it; a reconnecting named peer evicts its
// own stale entry. Anyone else is rejected.
func (p *ChatProtocol) Join(_ context.Context, conn presence.Connection, src HandshakeSource, data json.RawMessage) (any, error) {
	var payload JoinChatPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, errs.NewError(errs.ErrInvalidJSONFormat)
	}

	var missing []string
	if payload.ClientType == "" {
		missing = append(missing, "clientType")
	}
	if payload.ClientA == "" {
		missing = append(missing, "client_a")
	}
	if payload.ClientB == "" {
		missing = append(missing, "client_b")
	}
	if len(missing) > 0 {
		return nil, errs.NewError(errs.ErrMissingCredentials, strings.Join(missing, ", "))
	}

	clientType := strings.ToLower(payload.ClientType)
	if !validChatClientType(clientType) {
		return nil, errs.NewError(errs.ErrInvalidClientType)
	}

	if !conn.Authenticated {
		userID := src.UserID()
		if userID == "" {
			return nil, errs.NewError(errs.ErrAuthRequired)
		}

		authenticated := true
		p.presence.UpdateFields(conn.ID, presence.Update{
			UserID:        &userID,
			ClientType:    &clientType,
			Authenticated: &authenticated,
		})
		conn.UserID = userID
		conn.Authenticated = true
	} else if conn.ClientType != clientType {
		p.presence.UpdateFields(conn.ID, presence.Update{ClientType: &clientType})
	}
	conn.ClientType = clientType

	roomName := ChatRoomName(payload.ClientA, payload.ClientB)
	userID := conn.UserID
	callerNamed := userID == payload.ClientA || userID == payload.ClientB

	var isFirst bool
	admit := func(members []presence.Member) ([]string, error) {
		isFirst = len(members) == 0
		if isFirst {
			return nil, nil
		}

		// Re-joins from the same socket replace the prior entry.
		for _, m := range members {
			if m.ConnID == conn.ID {
				return []string{conn.ID}, nil
			}
		}

		if !callerNamed {
			return nil, errs.NewError(errs.ErrWrongChannel)
		}

		if len(members) >= 2 {
			// Reconnect: a named peer displaces its own stale entries.
			var evict []string
			for _, m := range members {
				if m.UserID == userID {
					evict = append(evict, m.ConnID)
				}
			}
			if len(evict) == 0 {
				return nil, errs.NewError(errs.ErrRoomFull)
			}
			return evict, nil
		}

		return nil, nil
	}

	err := p.presence.JoinRoomIf(roomName, presence.Participant{
		Role:      RoleChat,
		ConnID:    conn.ID,
		Namespace: conn.Namespace,
	}, admit)
	if err != nil {
		return nil, err
	}

	if isFirst {
		p.presence.EmitToRoom(roomName, EventRoomCreated, RoomCreatedEmission{
			RoomName:  roomName,
			ClientA:   payload.ClientA,
			ClientB:   payload.ClientB,
			CreatedBy: userID,
			Timestamp: nowTimestamp(),
		})
	} else {
		p.presence.EmitToRoom(roomName, EventUserJoined, UserJoinedEmission{
			RoomName:   roomName,
			UserID:     userID,
			ClientType: clientType,
			Timestamp:  nowTimestamp(),
		})
	}

	message := "Joined chat room: " + roomName
	if isFirst {
		message = "Created chat room: " + roomName
	}

	return JoinChatResult{
		Success:       true,
		Message:       message,
		RoomName:      roomName,
		IsFirstPerson: isFirst,
	}, nil
}

// Message relays the body to the external backend for the counterpart user,
// notifies the counterpart's live sockets, and broadcasts the relay response
// to the room. On relay failure only the caller is told; nothing is
// broadcast.
func (p *ChatProtocol) Message(ctx context.Context, conn presence.Connection, src HandshakeSource, data json.RawMessage) (any, error) {
	var payload ChatMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, errs.NewError(errs.ErrInvalidJSONFormat)
	}

	if conn.RoomName == "" {
		return nil, errs.NewError(errs.ErrNotInRoom)
	}

	userA, userB, err := chatRoomParts(conn.RoomName)
	if err != nil {
		return nil, errs.NewError(errs.ErrNotInRoom)
	}

	var receiverID string
	switch conn.UserID {
	case userA:
		receiverID = userB
	case userB:
		receiverID = userA
	default:
		return nil, errs.NewError(errs.ErrWrongChannel)
	}

	p.notifyPeer(receiverID, conn)

	clientType := conn.ClientType
	if clientType == "" {
		clientType = RoleWeb
	}

	response, err := p.relay.Send(ctx, clientType, receiverID, payload.Message, payload.Media, src.RawAuthorization())
	if err != nil {
		p.logger.Error().
			Err(err).
			Str("conn_id", conn.ID).
			Str("room", conn.RoomName).
			Msg("Relay rejected chat message.")
		return nil, errs.NewError(errs.ErrRelayFailure, err.Error())
	}

	// The relay may take a while; the caller can be gone by the time it
	// answers, and its room with it.
	if _, ok := p.presence.LookupByConnection(conn.ID); !ok {
		p.logger.Debug().Str("conn_id", conn.ID).Msg("Sender disconnected during relay, broadcast skipped.")
		return nil, nil
	}

	p.presence.EmitToRoom(conn.RoomName, EventMessage, MessageEmission{
		Sender:    conn.UserID,
		Message:   response,
		Timestamp: nowTimestamp(),
	})

	return OpResult{Success: true, Message: response}, nil
}

// Typing fans the caller's typing indicator out to its room.
func (p *ChatProtocol) Typing(_ context.Context, conn presence.Connection, _ HandshakeSource, data json.RawMessage) (any, error) {
	if conn.RoomName == "" {
		return nil, errs.NewError(errs.ErrNotInRoom)
	}

	var typing bool
	if len(data) > 0 {
		if err := json.Unmarshal(data, &typing); err != nil {
			return nil, errs.NewError(errs.ErrInvalidJSONFormat)
		}
	}

	p.presence.EmitToRoom(conn.RoomName, EventIsTyping, MessageEmission{
		Sender:    conn.UserID,
		Message:   typing,
		Timestamp: nowTimestamp(),
	})

	return nil, nil
}

// Leave removes the caller from the named pair's room and tells the
// remaining peer.
func (p *ChatProtocol) Leave(_ context.Context, conn presence.Connection, _ HandshakeSource, data json.RawMessage) (any, error) {
	var payload LeaveChatPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, errs.NewError(errs.ErrInvalidJSONFormat)
	}

	if payload.ClientA == "" || payload.ClientB == "" {
		var missing []string
		if payload.ClientA == "" {
			missing = append(missing, "client_a")
		}
		if payload.ClientB == "" {
			missing = append(missing, "client_b")
		}
		return nil, errs.NewError(errs.ErrMissingCredentials, strings.Join(missing, ", "))
	}

	roomName := ChatRoomName(payload.ClientA, payload.ClientB)
	if !p.presence.LeaveRoom(roomName, conn.ID) {
		return OpResult{Success: false, Message: "Not a member of room: " + roomName}, nil
	}

	p.presence.EmitToRoom(roomName, EventUserLeft, UserLeftEmission{
		RoomName:  roomName,
		UserID:    conn.UserID,
		Timestamp: nowTimestamp(),
	})

	return OpResult{Success: true, Message: "Left chat room: " + roomName}, nil
}

// notifyPeer pings the first live socket of the counterpart user so clients
// not currently in the room learn their peer is active.
func (p *ChatProtocol) notifyPeer(receiverID string, sender presence.Connection) {
	peers := p.presence.LookupByUser(receiverID)
	if len(peers) == 0 {
		return
	}

	emission := PeerJoinedEmission{
		Message:    fmt.Sprintf("%s is active in your chat", sender.UserID),
		RoomName:   sender.RoomName,
		PeerUserID: sender.UserID,
		Timestamp:  nowTimestamp(),
	}

	if err := p.presence.EmitToConn(peers[0].ID, EventPeerJoined, emission); err != nil {
		p.logger.Warn().Err(err).Str("receiver", receiverID).Msg("peer_joined emit failed.")
	}
}
