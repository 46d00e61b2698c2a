package gateway

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rs/zerolog"

	"pairgate/internal/app/presence"
	"pairgate/internal/pkg/errs"
	"pairgate/internal/pkg/logx"
)

// VerificationProtocol implements the device-verification namespace: a web
// client opens a room keyed by its user ID, a mobile client scans in and
// joins it, and the two exchange opaque payloads. At most one participant per
// role; a second mobile device displaces the first.
type VerificationProtocol struct {
	presence *presence.Service
	logger   zerolog.Logger
}

// NewVerificationProtocol constructs the verification namespace handlers.
func NewVerificationProtocol(pres *presence.Service) *VerificationProtocol {
	return &VerificationProtocol{
		presence: pres,
		logger:   logx.Logger().With().Str("component", "verification").Logger(),
	}
}

// Join puts the caller into verification_room_<userId>. Only a web client
// may create the room; a mobile client joining a missing room is told to
// scan again. A mobile device arriving at a full room displaces the mobile
// already present, never the web anchor.
func (p *VerificationProtocol) Join(_ context.Context, conn presence.Connection, _ HandshakeSource, data json.RawMessage) (any, error) {
	var payload VerificationJoinPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, errs.NewError(errs.ErrInvalidJSONFormat)
	}

	var missing []string
	if payload.UserID == "" {
		missing = append(missing, "userId")
	}
	if payload.ClientType == "" {
		missing = append(missing, "clientType")
	}
	if len(missing) > 0 {
		return nil, errs.NewError(errs.ErrMissingCredentials, strings.Join(missing, ", "))
	}

	clientType := strings.ToLower(payload.ClientType)
	if clientType != RoleWeb && clientType != RoleMobile {
		return nil, errs.NewError(errs.ErrInvalidClientType)
	}

	// join_room doubles as the namespace's authentication step.
	authenticated := true
	p.presence.UpdateFields(conn.ID, presence.Update{
		UserID:        &payload.UserID,
		ClientType:    &clientType,
		Authenticated: &authenticated,
	})

	roomName := VerificationRoomName(payload.UserID)

	var created bool
	admit := func(members []presence.Member) ([]string, error) {
		for _, m := range members {
			if m.ConnID == conn.ID {
				return nil, errs.NewError(errs.ErrAlreadyInRoom, roomName)
			}
		}

		if len(members) == 0 {
			if clientType != RoleWeb {
				return nil, errs.NewError(errs.ErrRoomNotFound)
			}
			created = true
			return nil, nil
		}

		if len(members) < 2 {
			for _, m := range members {
				if m.Role == clientType {
					return nil, errs.NewError(errs.ErrRoleTaken, clientType)
				}
			}
			return nil, nil
		}

		// Full room: a fresh mobile displaces the old one.
		if clientType != RoleMobile {
			return nil, errs.NewError(errs.ErrRoomFull)
		}
		var evict []string
		for _, m := range members {
			if m.Role == RoleMobile {
				evict = append(evict, m.ConnID)
			}
		}
		if len(evict) == 0 {
			return nil, errs.NewError(errs.ErrRoomFull)
		}
		return evict, nil
	}

	err := p.presence.JoinRoomIf(roomName, presence.Participant{
		Role:      clientType,
		ConnID:    conn.ID,
		Namespace: conn.Namespace,
	}, admit)
	if err != nil {
		return nil, err
	}

	p.presence.EmitToRoom(roomName, EventJoined, JoinedEmission{
		Sender:     conn.ID,
		Message:    clientType + " client joined",
		RoomName:   roomName,
		ClientType: clientType,
		Timestamp:  nowTimestamp(),
	})

	message := "Rejoined room " + roomName
	if created {
		message = "Created verification room " + roomName
	}

	return OpResult{Success: true, Message: message}, nil
}

// Message forwards an opaque payload to the caller's verification room. A
// missing room is reported in the reply rather than raised as an error; the
// peer may simply have left already.
func (p *VerificationProtocol) Message(_ context.Context, conn presence.Connection, _ HandshakeSource, data json.RawMessage) (any, error) {
	var payload VerificationMessagePayload
	if len(data) > 0 {
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, errs.NewError(errs.ErrInvalidJSONFormat)
		}
	}

	if conn.RoomName == "" || !p.presence.RoomExists(conn.RoomName) {
		return OpResult{Success: false, Message: "Room not found"}, nil
	}

	p.presence.EmitToRoom(conn.RoomName, EventMessage, MessageEmission{
		Sender:    conn.ID,
		Message:   payload.Data,
		Timestamp: nowTimestamp(),
	})

	return OpResult{Success: true, Message: "Message sent"}, nil
}

// Leave removes the caller from the user's verification room. The last leave
// deletes the room.
func (p *VerificationProtocol) Leave(_ context.Context, conn presence.Connection, _ HandshakeSource, data json.RawMessage) (any, error) {
	var payload VerificationLeavePayload
	if len(data) > 0 {
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, errs.NewError(errs.ErrInvalidJSONFormat)
		}
	}

	userID := payload.UserID
	if userID == "" {
		userID = conn.UserID
	}

	p.presence.LeaveRoom(VerificationRoomName(userID), conn.ID)
	return nil, nil
}
