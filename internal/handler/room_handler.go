/*
Package handler provides HTTP handler functions for managing rooms and their members.
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"roomhub/internal/app/chat"
	"roomhub/internal/app/user"
	"roomhub/internal/pkg/auth/jwt"
	"roomhub/internal/pkg/errs"
	"roomhub/internal/pkg/randx"
	"roomhub/internal/pkg/req"
	"roomhub/internal/pkg/resp"
)

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Service  string `json:"service"`
	Sessions int    `json:"sessions"`
}

type CreateRoomInput struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Members     []string `json:"members,omitempty"`
	IsPublic    bool     `json:"isPublic"`
	Password    string   `json:"password,omitempty"`
}

// RoomResponse is a room plus the caller's membership when the caller is known.
type RoomResponse struct {
	*chat.Room
	IsMember *bool `json:"isMember,omitempty"`
}

// UpdateRoomInput edits metadata and/or membership. Omitted fields are left alone.
type UpdateRoomInput struct {
	Name        *string                 `json:"name,omitempty"`
	Description *string                 `json:"description,omitempty"`
	IsPublic    *bool                   `json:"isPublic,omitempty"`
	Password    *string                 `json:"password,omitempty"`
	Members     []chat.MembershipChange `json:"members,omitempty"`
}

// UpdateRoomResponse is the room after the update and, when members were given, the batch outcome.
type UpdateRoomResponse struct {
	Room    *chat.Room        `json:"room"`
	Members *chat.BatchResult `json:"members,omitempty"`
}

// DeleteRoomResponse confirms a deletion.
type DeleteRoomResponse struct {
	ID string `json:"id"`
}

// MembersResponse lists a room's members as known to the user directory.
type MembersResponse struct {
	Members []user.User `json:"members"`
}

// roomIDParam reads and checks the {id} path parameter.
func roomIDParam(r *http.Request) (string, *errs.CustomError) {
	roomID := chi.URLParam(r, "id")
	if !randx.IsValidRecordID(roomID) {
		return "", errs.NewError(errs.ErrRoomNotFound)
	}
	return roomID, nil
}

// HandleCreateRoom creates an HTTP HandlerFunc to process room creation requests.
// The caller becomes the creator and first member.
func HandleCreateRoom(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input CreateRoomInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		room, err := deps.Manager.CreateRoom(r.Context(), chat.CreateRoomParams{
			Name:        input.Name,
			Description: input.Description,
			CreatorID:   jwt.UserID(r),
			Members:     input.Members,
			IsPublic:    input.IsPublic,
			Password:    input.Password,
		})
		if err != nil {
			resp.RespondError(w, r, err)
			return
		}

		resp.RespondStatus(w, r, http.StatusCreated, room)
	}
}

// HandleListRooms lists every room. With ?userId= (or an authenticated caller) the
// caller's own rooms are also returned separately.
func HandleListRooms(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.URL.Query().Get("userId")
		if userID == "" {
			userID = jwt.UserID(r)
		}

		listing, err := deps.Manager.ListRooms(r.Context(), userID)
		if err != nil {
			resp.RespondError(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, listing)
	}
}

// HandleGetRoom returns one room.
func HandleGetRoom(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID, customErr := roomIDParam(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		room, err := deps.Manager.GetRoom(r.Context(), roomID)
		if err != nil {
			resp.RespondError(w, r, err)
			return
		}

		out := RoomResponse{Room: room}
		if userID := jwt.UserID(r); userID != "" {
			isMember := room.IsMember(userID)
			out.IsMember = &isMember
		}
		resp.RespondSuccess(w, r, out)
	}
}

// HandleUpdateRoom applies a metadata patch and/or a membership batch. A batch that
// stops part-way answers with the error and the BatchResult as data.
func HandleUpdateRoom(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID, customErr := roomIDParam(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		var input UpdateRoomInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		room, batch, err := deps.Manager.UpdateRoom(r.Context(), roomID, chat.RoomUpdate{
			Metadata: chat.MetadataPatch{
				Name:        input.Name,
				Description: input.Description,
				IsPublic:    input.IsPublic,
				Password:    input.Password,
			},
			Members: input.Members,
		})
		if err != nil {
			if batch != nil {
				resp.RespondErrorWithData(w, r, err, batch)
				return
			}
			resp.RespondError(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, UpdateRoomResponse{Room: room, Members: batch})
	}
}

// HandleDeleteRoom deletes a room with its conversation and attachments.
func HandleDeleteRoom(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID, customErr := roomIDParam(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if err := deps.Manager.DeleteRoom(r.Context(), roomID); err != nil {
			resp.RespondError(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, DeleteRoomResponse{ID: roomID})
	}
}

// HandleListMembers resolves the room's members through the user directory.
func HandleListMembers(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID, customErr := roomIDParam(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		users, err := deps.Manager.Members(r.Context(), roomID)
		if err != nil {
			resp.RespondError(w, r, err)
			return
		}
		if users == nil {
			users = []user.User{}
		}

		resp.RespondSuccess(w, r, MembersResponse{Members: users})
	}
}
