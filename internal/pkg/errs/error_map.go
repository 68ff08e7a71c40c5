package errs

import "net/http"

// errorMap holds the template for every application error code.
// Messages containing a verb are formatted with the details passed to NewError.
var errorMap = map[int]CustomError{
	// 1xxx
	ErrInvalidParams:        {Code: ErrInvalidParams, Kind: KindInvalid, Message: "Invalid request parameters."},
	ErrUnsupportedMediaType: {Code: ErrUnsupportedMediaType, Kind: KindInvalid, Message: "Unsupported request format."},
	ErrInvalidJSONFormat:    {Code: ErrInvalidJSONFormat, Kind: KindInvalid, Message: "Malformed request body."},
	ErrExtraContentInBody:   {Code: ErrExtraContentInBody, Kind: KindInvalid, Message: "Request contains unexpected data."},
	ErrRateLimitExceeded:    {Code: ErrRateLimitExceeded, Kind: KindRateLimited, Message: "Too many requests. Please try again later."},

	// 2xxx
	ErrRoomNotFound:            {Code: ErrRoomNotFound, Kind: KindNotFound, Message: "Room not found !"},
	ErrRoomNameRequired:        {Code: ErrRoomNameRequired, Kind: KindInvalid, Message: "Room name is required."},
	ErrRoomExists:              {Code: ErrRoomExists, Kind: KindConflict, Message: "Room already exists."},
	ErrRoomPrivate:             {Code: ErrRoomPrivate, Kind: KindForbidden, Message: "This room is private."},
	ErrConversationNotFound:    {Code: ErrConversationNotFound, Kind: KindNotFound, Message: "Conversation not found."},
	ErrNotParticipant:          {Code: ErrNotParticipant, Kind: KindForbidden, Message: "You are not a participant of this conversation."},
	ErrMessageContentEmpty:     {Code: ErrMessageContentEmpty, Kind: KindInvalid, Message: "Message is empty."},
	ErrMessageContentTooLong:   {Code: ErrMessageContentTooLong, Kind: KindInvalid, Message: "Message is too long."},
	ErrAttachmentCountInvalid:  {Code: ErrAttachmentCountInvalid, Kind: KindInvalid, Message: "A message may carry at most %d attachments."},
	ErrAttachmentKeyInvalid:    {Code: ErrAttachmentKeyInvalid, Kind: KindInvalid, Message: "Invalid attachment."},
	ErrFileSizeTooLarge:        {Code: ErrFileSizeTooLarge, Kind: KindInvalid, Message: "File is too large."},
	ErrFileTypeInvalid:         {Code: ErrFileTypeInvalid, Kind: KindInvalid, Message: "File type is not allowed."},
	ErrMembershipOpInvalid:     {Code: ErrMembershipOpInvalid, Kind: KindInvalid, Message: "Unknown membership operation %q."},
	ErrMembershipUserMissing:   {Code: ErrMembershipUserMissing, Kind: KindInvalid, Message: "Membership change #%d is missing a user id."},
	ErrMembershipBatchEmpty:    {Code: ErrMembershipBatchEmpty, Kind: KindInvalid, Message: "No membership changes given."},
	ErrMembershipBatchTooLarge: {Code: ErrMembershipBatchTooLarge, Kind: KindInvalid, Message: "At most %d membership changes per request."},

	// 3xxx
	ErrUserNotFound:    {Code: ErrUserNotFound, Kind: KindNotFound, Message: "User not found !"},
	ErrSessionNotFound: {Code: ErrSessionNotFound, Kind: KindNotFound, Message: "Session is not connected."},
	ErrSessionExists:   {Code: ErrSessionExists, Kind: KindConflict, Message: "Session already connected."},
	ErrUnauthorized:    {Code: ErrUnauthorized, Kind: KindUnauthorized, Message: "Please sign in to continue."},

	// 5xxx
	ErrUnknown:           {Code: ErrUnknown, Kind: KindInternal, Message: "Something went wrong. Please try again."},
	ErrTimeout:           {Code: ErrTimeout, Kind: KindTimeout, Message: "The operation timed out. Please try again."},
	ErrFileStorageFailed: {Code: ErrFileStorageFailed, Kind: KindInternal, Message: "File storage failed. Please try again."},
	ErrStorageDisabled:   {Code: ErrStorageDisabled, Kind: KindInternal, Message: "Attachments are not enabled on this server.", Status: http.StatusServiceUnavailable},
}

// kindStatus maps each Kind to its default HTTP status.
var kindStatus = map[Kind]int{
	KindInvalid:      http.StatusBadRequest,
	KindNotFound:     http.StatusNotFound,
	KindForbidden:    http.StatusForbidden,
	KindConflict:     http.StatusConflict,
	KindTimeout:      http.StatusGatewayTimeout,
	KindUnauthorized: http.StatusUnauthorized,
	KindRateLimited:  http.StatusTooManyRequests,
	KindInternal:     http.StatusInternalServerError,
}
