package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"pairgate/internal/app/presence"
	"pairgate/internal/pkg/errs"
	"pairgate/internal/pkg/logx"
)

// HandlerFunc processes one inbound event for one connection. conn is a
// snapshot of the registry record taken after the policy check; src is the
// connection's stored handshake material. The returned value, when non-nil,
// is delivered as an ack if the frame carried an id.
type HandlerFunc func(ctx context.Context, conn presence.Connection, src HandshakeSource, data json.RawMessage) (any, error)

type route struct {
	policy  AuthPolicy
	handler HandlerFunc
}

// Gateway routes inbound frames to protocol handlers and translates every
// failure into a single error emission to the offending connection. Other
// room members never observe another connection's errors.
type Gateway struct {
	presence  *presence.Service
	lifecycle *Lifecycle
	routes    map[string]route
	logger    zerolog.Logger
}

// New wires the dispatch table for all three namespaces.
func New(pres *presence.Service, lifecycle *Lifecycle, chat *ChatProtocol, verification *VerificationProtocol) *Gateway {
	g := &Gateway{
		presence:  pres,
		lifecycle: lifecycle,
		routes:    make(map[string]route),
		logger:    logx.Logger().With().Str("component", "gateway").Logger(),
	}

	g.route(NamespaceRoot, EventAuthenticate, publicPolicy, lifecycle.Authenticate)

	// join_chat is public: it authenticates inline from the handshake when
	// the connection is still anonymous.
	g.route(NamespaceChat, EventJoinChat, publicPolicy, chat.Join)
	g.route(NamespaceChat, EventMessage, protectedPolicy, chat.Message)
	g.route(NamespaceChat, EventIsTyping, protectedPolicy, chat.Typing)
	g.route(NamespaceChat, EventLeaveChat, protectedPolicy, chat.Leave)

	g.route(NamespaceVerification, EventJoinRoom, publicPolicy, verification.Join)
	g.route(NamespaceVerification, EventMessage, publicPolicy, verification.Message)
	g.route(NamespaceVerification, EventLeaveRoom, publicPolicy, verification.Leave)

	return g
}

func (g *Gateway) route(namespace, event string, policy AuthPolicy, handler HandlerFunc) {
	g.routes[routeKey(namespace, event)] = route{policy: policy, handler: handler}
}

func routeKey(namespace, event string) string {
	return namespace + ":" + event
}

// HandleEvent dispatches one inbound frame. It never panics: handler panics
// are recovered and reported to the caller as an internal error.
func (g *Gateway) HandleEvent(ctx context.Context, connID string, src HandshakeSource, namespace string, env Envelope) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error().
				Str("conn_id", connID).
				Str("event", env.Event).
				Interface("panic", r).
				Msg("Handler panicked.")
			g.emitError(connID, errs.NewError(errs.ErrUnknown, fmt.Errorf("panic: %v", r)))
		}
	}()

	rt, ok := g.routes[routeKey(namespace, env.Event)]
	if !ok {
		g.logger.Warn().
			Str("conn_id", connID).
			Str("namespace", namespace).
			Str("event", env.Event).
			Msg("Unsupported event.")
		g.emitError(connID, errs.NewError(errs.ErrInvalidParams))
		return
	}

	conn, ok := g.presence.LookupByConnection(connID)
	if !ok {
		g.logger.Debug().Str("conn_id", connID).Str("event", env.Event).Msg("Event from unregistered connection, dropped.")
		return
	}

	if !rt.policy.Public {
		if !conn.Authenticated {
			g.emitError(connID, errs.NewError(errs.ErrAuthRequired))
			return
		}
		if rt.policy.RequireClientType && conn.ClientType == "" {
			g.emitError(connID, errs.NewError(errs.ErrInvalidClientType))
			return
		}
	}

	result, err := rt.handler(ctx, conn, src, env.Data)
	if err != nil {
		customErr := errs.From(err)
		g.logger.Warn().
			Str("conn_id", connID).
			Str("event", env.Event).
			Int("code", customErr.Code).
			Str("message", customErr.Message).
			Msg("Event rejected.")
		g.emitError(connID, customErr)
		return
	}

	if result != nil && env.ID != "" {
		ack := AckEmission{ID: env.ID, Result: result}
		if emitErr := g.presence.EmitToConn(connID, EventAck, ack); emitErr != nil {
			g.logger.Warn().Err(emitErr).Str("conn_id", connID).Str("event", env.Event).Msg("Ack emit failed.")
		}
	}
}

// emitError delivers an error emission to the offending connection only. A
// failed delivery is logged and dropped so errors can never cascade.
func (g *Gateway) emitError(connID string, customErr *errs.CustomError) {
	emission := ErrorEmission{
		Message:   customErr.Message,
		Status:    customErr.Status,
		Timestamp: nowTimestamp(),
	}

	if err := g.presence.EmitToConn(connID, EventError, emission); err != nil {
		g.logger.Warn().Err(err).Str("conn_id", connID).Msg("Error emit failed.")
	}
}
