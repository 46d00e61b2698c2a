/*
Package handler provides the HTTP handler function for WebSocket connection upgrading and initialization.

This file contains the HandleWebSocket function, which is responsible for rate limiting, resolving
the target namespace, upgrading the HTTP connection to WebSocket, and initiating the connection lifecycle.
*/
package handler

import (
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"pairgate/internal/app/gateway"
	"pairgate/internal/pkg/errs"
	"pairgate/internal/pkg/limiter"
	"pairgate/internal/pkg/logx"
	"pairgate/internal/pkg/resp"
)

// HandleWebSocket creates an HTTP HandlerFunc to process WebSocket connection requests.
// Credential problems never reject the upgrade; the connection starts anonymous and
// individual events enforce their own policies.
func HandleWebSocket(upgrader websocket.Upgrader, rateLimiter *limiter.IPRateLimiter, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}

		if ip == "" {
			ip = "unknown_ip"
		}

		if !rateLimiter.GetLimiter(ip).Allow() {
			logx.Warn("WebSocket connection rejected: Rate limit exceeded.", "ip", ip)
			rateLimitErr := errs.NewError(errs.ErrRateLimitExceeded)
			resp.RespondError(w, r, rateLimitErr)
			return
		}

		namespace := chi.URLParam(r, "namespace")
		switch namespace {
		case gateway.NamespaceRoot, gateway.NamespaceChat, gateway.NamespaceVerification:
		default:
			logx.Warn("WebSocket request rejected: Unknown namespace", "namespace", namespace)
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		source := gateway.HandshakeFromRequest(r)

		wsConn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		conn := deps.Gateway.NewConn(wsConn, namespace, source)

		go conn.WritePump()

		deps.Lifecycle.OnConnect(conn.ID(), namespace, source, conn)

		logx.Info("WebSocket connection established", "conn_id", conn.ID(), "namespace", namespace)

		conn.ReadPump(r.Context())
	}
}
