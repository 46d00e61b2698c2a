package gateway

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rs/zerolog"

	"pairgate/internal/app/presence"
	"pairgate/internal/pkg/auth/jwt"
	"pairgate/internal/pkg/errs"
	"pairgate/internal/pkg/logx"
)

// Lifecycle resolves a socket's identity at connect time and tears its state
// down at disconnect. Token verification failures never reject the upgrade;
// the connection is registered as anonymous and individual events decide
// whether that is acceptable.
type Lifecycle struct {
	presence  *presence.Service
	secretKey string
	logger    zerolog.Logger
}

// NewLifecycle constructs a Lifecycle verifying tokens against secretKey.
func NewLifecycle(pres *presence.Service, secretKey string) *Lifecycle {
	return &Lifecycle{
		presence:  pres,
		secretKey: secretKey,
		logger:    logx.Logger().With().Str("component", "lifecycle").Logger(),
	}
}

// OnConnect resolves the connection's identity from the handshake and
// registers it. A valid bearer token yields a verified identity; otherwise
// the self-declared user ID is recorded unverified, or the connection stays
// anonymous.
func (l *Lifecycle) OnConnect(connID string, namespace string, src HandshakeSource, sender presence.Sender) {
	userID := src.UserID()
	authenticated := false

	if token := src.BearerToken(); token != "" {
		identity, err := jwt.VerifyToken(token, l.secretKey)
		if err != nil {
			l.logger.Warn().
				Err(err).
				Str("conn_id", connID).
				Msg("Handshake token rejected, continuing as anonymous.")
		} else {
			userID = identity.ID
			authenticated = true
		}
	}

	l.presence.Register(presence.Connection{
		ID:            connID,
		UserID:        userID,
		ClientType:    strings.ToLower(src.ClientType()),
		Namespace:     namespace,
		Authenticated: authenticated,
		Sender:        sender,
	})
}

// OnDisconnect removes the connection's registry record, which also removes
// it from any room it occupies.
func (l *Lifecycle) OnDisconnect(connID string) {
	l.presence.Unregister(connID)
}

// Authenticate handles the root-namespace authenticate event: the client
// claims a user identity after connecting, and the connection record is
// updated in place. The caller alone receives auth_success.
func (l *Lifecycle) Authenticate(_ context.Context, conn presence.Connection, _ HandshakeSource, data json.RawMessage) (any, error) {
	var payload AuthenticatePayload
	if len(data) > 0 {
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, errs.NewError(errs.ErrInvalidJSONFormat)
		}
	}

	if payload.UserID == "" {
		return nil, errs.NewError(errs.ErrMissingCredentials, "userId")
	}

	authenticated := true
	update := presence.Update{
		UserID:        &payload.UserID,
		Authenticated: &authenticated,
	}
	if payload.ClientType != "" {
		clientType := strings.ToLower(payload.ClientType)
		update.ClientType = &clientType
	}
	l.presence.UpdateFields(conn.ID, update)

	if err := l.presence.EmitToConn(conn.ID, EventAuthSuccess, map[string]string{"userId": payload.UserID}); err != nil {
		l.logger.Warn().Err(err).Str("conn_id", conn.ID).Msg("auth_success emit failed.")
	}

	return OpResult{Success: true, Message: "Authenticated as " + payload.UserID}, nil
}
