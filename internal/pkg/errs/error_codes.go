/*
Package errs provides the application error type and the catalogue of error codes.

Every code belongs to a Kind, and the Kind decides the HTTP status and how callers
(the membership protocol, the WebSocket adapter) react to the failure.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request header Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that the request body is not valid JSON for the endpoint.
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates that the request body contained extra content after valid JSON data.
	ErrExtraContentInBody = 1004

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1007
)

// 2xxx: Room, Conversation and Membership Errors
const (
	ErrRoomNotFound     = 2101
	ErrRoomNameRequired = 2102
	ErrRoomExists       = 2103

	// ErrRoomPrivate is returned when a non-member tries to subscribe to a private room.
	ErrRoomPrivate = 2104

	ErrConversationNotFound = 2201

	// ErrNotParticipant is returned when a user posts to a conversation they are not part of.
	ErrNotParticipant          = 2202
	ErrMessageContentEmpty     = 2203
	ErrMessageContentTooLong   = 2204
	ErrAttachmentCountInvalid  = 2205
	ErrAttachmentKeyInvalid    = 2206
	ErrFileSizeTooLarge        = 2207
	ErrFileTypeInvalid         = 2208
	ErrMembershipOpInvalid     = 2301
	ErrMembershipUserMissing   = 2302
	ErrMembershipBatchEmpty    = 2303
	ErrMembershipBatchTooLarge = 2304
)

// 3xxx: User and Session Errors
const (
	// ErrUserNotFound indicates that a referenced user is unknown to the user directory.
	ErrUserNotFound = 3001

	// ErrSessionNotFound indicates that a live session id is not connected.
	ErrSessionNotFound = 3002

	// ErrSessionExists indicates a duplicate session id on connect.
	ErrSessionExists = 3003

	// ErrUnauthorized indicates that the operation needs an authenticated identity.
	ErrUnauthorized = 3004
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified, general server internal error.
	ErrUnknown = 5000

	// ErrTimeout indicates that a collaborator call exceeded its deadline.
	ErrTimeout = 5001

	// ErrFileStorageFailed indicates a failure talking to object storage.
	ErrFileStorageFailed = 5002

	// ErrStorageDisabled indicates that attachments are not configured on this server.
	ErrStorageDisabled = 5003
)
