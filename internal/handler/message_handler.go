package handler

import (
	"net/http"

	"roomhub/internal/app/chat"
	"roomhub/internal/pkg/auth/jwt"
	"roomhub/internal/pkg/req"
	"roomhub/internal/pkg/resp"
)

type PostMessageInput struct {
	Content     string            `json:"content"`
	Attachments []chat.Attachment `json:"attachments,omitempty"`
}

// MessagesResponse is a page of conversation history, oldest first.
type MessagesResponse struct {
	Messages []chat.Message `json:"messages"`
}

// HandlePostMessage appends a message sent by the caller and fans it out to live sessions.
func HandlePostMessage(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID, customErr := roomIDParam(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		var input PostMessageInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		msg, err := deps.Manager.PostMessage(r.Context(), roomID, jwt.UserID(r), input.Content, input.Attachments)
		if err != nil {
			resp.RespondError(w, r, err)
			return
		}

		resp.RespondStatus(w, r, http.StatusCreated, msg)
	}
}

// HandleListMessages returns the most recent messages, ?limit= of them.
func HandleListMessages(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID, customErr := roomIDParam(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		limit, customErr := req.QueryInt(r, "limit", chat.DefaultHistoryLimit)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		messages, err := deps.Manager.History(r.Context(), roomID, jwt.UserID(r), limit)
		if err != nil {
			resp.RespondError(w, r, err)
			return
		}
		if messages == nil {
			messages = []chat.Message{}
		}

		resp.RespondSuccess(w, r, MessagesResponse{Messages: messages})
	}
}
