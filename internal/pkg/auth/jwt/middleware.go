package jwt

import (
	"context"
	"net/http"
	"strings"

	"roomhub/internal/pkg/errs"
	"roomhub/internal/pkg/logx"
	"roomhub/internal/pkg/resp"
)

type contextKey string

// ContextAuthPayloadKey stores the parsed *Payload in the request context.
const ContextAuthPayloadKey contextKey = "auth_payload"

// QueryTokenKey is the query parameter checked when no Authorization header is sent
// (browsers cannot set headers on WebSocket upgrades).
const QueryTokenKey = "token"

// IdentityExtractorMiddleware parses a bearer token (or ?token=) when present and stores
// the payload in the context. Missing or invalid tokens leave the request anonymous.
func IdentityExtractorMiddleware(secretKey string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := extractToken(r)
			if tokenString == "" {
				next.ServeHTTP(w, r)
				return
			}

			payload, err := ParseToken(tokenString, secretKey)
			if err != nil {
				logx.Warn("Invalid or expired JWT provided, treating as anonymous", "error", err.Error())
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPayload(r.Context(), payload)))
		})
	}
}

// RequireIdentity rejects anonymous requests with ErrUnauthorized.
// It must run after IdentityExtractorMiddleware.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetPayloadFromContext(r) == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WithPayload returns a copy of ctx carrying payload.
func WithPayload(ctx context.Context, payload *Payload) context.Context {
	return context.WithValue(ctx, ContextAuthPayloadKey, payload)
}

// GetPayloadFromContext returns the authenticated payload, or nil for anonymous requests.
func GetPayloadFromContext(r *http.Request) *Payload {
	payload, ok := r.Context().Value(ContextAuthPayloadKey).(*Payload)
	if !ok {
		return nil
	}
	return payload
}

// UserID returns the authenticated user id or "".
func UserID(r *http.Request) string {
	if payload := GetPayloadFromContext(r); payload != nil {
		return payload.ID
	}
	return ""
}

func extractToken(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		scheme, token, ok := strings.Cut(authHeader, " ")
		if !ok || scheme != "Bearer" {
			return ""
		}
		return token
	}
	return r.URL.Query().Get(QueryTokenKey)
}
