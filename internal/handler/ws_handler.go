/*
Package handler provides the HTTP handler function for WebSocket connection upgrading and initialization.

This file contains the HandleWebSocket function, which is responsible for rate limiting, upgrading
the HTTP connection to WebSocket, registering the session with the router and running the client
lifecycle. Room subscriptions are requested over the socket afterwards.
*/
package handler

import (
	"net/http"

	"github.com/gorilla/websocket"

	"roomhub/internal/app/chat"
	"roomhub/internal/pkg/auth/jwt"
	"roomhub/internal/pkg/errs"
	"roomhub/internal/pkg/limiter"
	"roomhub/internal/pkg/logx"
	"roomhub/internal/pkg/randx"
	"roomhub/internal/pkg/resp"
)

// HandleWebSocket creates an HTTP HandlerFunc to process WebSocket connection requests.
// An identity is optional; anonymous sessions may only subscribe to public rooms and cannot post.
func HandleWebSocket(manager *chat.Manager, upgrader websocket.Upgrader, rateLimiter *limiter.IPRateLimiter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !rateLimiter.Allow(r) {
			logx.Warn("WebSocket connection rejected: Rate limit exceeded.", "remote_addr", r.RemoteAddr)
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		userID := jwt.UserID(r)

		sessionID, err := randx.SessionID()
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown, err))
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		client := chat.NewClient(sessionID, userID, conn, manager)
		if err := manager.Router.Connect(sessionID, userID, client); err != nil {
			logx.Error(err, "Failed to register WebSocket session", "session_id", sessionID)
			_ = conn.Close()
			return
		}

		go client.WritePump()

		logx.Info("WebSocket connection established and session registered", "session_id", sessionID, "user_id", userID)

		client.ReadPump(r.Context())
	}
}
