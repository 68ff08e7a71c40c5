/*
Package handler provides the HTTP handlers and routing setup for the room hub.

This file defines the main Router, applying necessary middleware like logging, CORS,
identity extraction and IP-based rate limiting before delegating requests to the
REST and WebSocket handlers.
*/
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"roomhub/internal/pkg/auth/jwt"
	"roomhub/internal/pkg/limiter"
	"roomhub/internal/pkg/logx"
	"roomhub/internal/pkg/resp"
)

const (
	JoinRate  = 0.5
	JoinBurst = 10
)

// Router sets up the main HTTP routing table (chi.Router) for the application.
// The rate limiters sweep idle entries until ctx is done.
func Router(ctx context.Context, deps *AppDeps) http.Handler {
	createLimiter := limiter.NewIPRateLimiter(ctx, rate.Limit(deps.Config.CreateRate), deps.Config.CreateBurst)
	joinLimiter := limiter.NewIPRateLimiter(ctx, rate.Limit(JoinRate), JoinBurst)

	r := chi.NewRouter()

	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	wsUpgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if deps.Config.IsDevelopment() {
				return true
			}

			origin := r.Header.Get("Origin")
			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}

	corsAllowedOrigins := []string{}
	if deps.Config.IsDevelopment() {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		resp.RespondSuccess(w, r, HealthResponse{
			Status:   "ok",
			Service:  "roomhub",
			Sessions: deps.Manager.Router.Sessions(),
		})
	})

	r.Route("/api", func(api chi.Router) {
		api.Use(jwt.IdentityExtractorMiddleware(deps.Config.JWTSecret))

		api.Route("/rooms", func(rooms chi.Router) {
			rooms.Get("/", HandleListRooms(deps))
			rooms.With(createLimiter.Middleware, jwt.RequireIdentity).Post("/", HandleCreateRoom(deps))

			rooms.Route("/{id}", func(room chi.Router) {
				room.Get("/", HandleGetRoom(deps))
				room.With(jwt.RequireIdentity).Patch("/", HandleUpdateRoom(deps))
				room.With(jwt.RequireIdentity).Delete("/", HandleDeleteRoom(deps))
				room.Get("/members", HandleListMembers(deps))

				room.Get("/messages", HandleListMessages(deps))
				room.With(jwt.RequireIdentity).Post("/messages", HandlePostMessage(deps))

				room.Route("/attachments", func(files chi.Router) {
					files.Use(jwt.RequireIdentity)
					files.Post("/", HandleUploadAttachment(deps))
					files.Post("/presign", HandlePresignUploadURL(deps))
					files.Get("/", HandlePresignDownloadURL(deps))
				})
			})
		})
	})

	r.With(jwt.IdentityExtractorMiddleware(deps.Config.JWTSecret)).
		Get("/ws", HandleWebSocket(deps.Manager, wsUpgrader, joinLimiter))

	return r
}
