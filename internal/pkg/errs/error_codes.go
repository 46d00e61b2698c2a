/*
Package errs provides custom error types and application-level error code constants.

These error codes are used to clearly identify specific business or system errors
both internally within the gateway and in communication with clients.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request header Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that the request body JSON format is incorrect (e.g., syntax error).
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates that the request body contained extra content after valid JSON data.
	ErrExtraContentInBody = 1004

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1005

	// ErrUnauthorized indicates that the REST request lacked a valid identity token.
	ErrUnauthorized = 1006
)

// 4xxx: Socket Session and Room Errors
const (
	// ErrAuthRequired indicates the socket event needs an authenticated connection.
	ErrAuthRequired = 4001

	// ErrInvalidToken indicates the supplied bearer token failed verification.
	ErrInvalidToken = 4002

	// ErrMissingCredentials indicates required identity fields were absent from the payload.
	ErrMissingCredentials = 4003

	// ErrInvalidClientType indicates the client type is absent or outside the allowed vocabulary.
	ErrInvalidClientType = 4004

	// ErrNotInRoom indicates the caller attempted a room-scoped action without joining a room.
	ErrNotInRoom = 4101

	// ErrRoomFull indicates the room already holds its maximum number of participants.
	ErrRoomFull = 4102

	// ErrWrongChannel indicates the caller's identity does not belong to the addressed pairing room.
	ErrWrongChannel = 4103

	// ErrRoleTaken indicates a participant of the caller's role is already present in the room.
	ErrRoleTaken = 4104

	// ErrRoomNotFound indicates the addressed room does not exist.
	ErrRoomNotFound = 4105

	// ErrAlreadyInRoom indicates the caller is already a member of the addressed room.
	ErrAlreadyInRoom = 4106

	// ErrRelayFailure indicates the external message relay was unreachable or returned an error.
	ErrRelayFailure = 4201
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified, general server internal error.
	ErrUnknown = 5000

	// ErrStorageFailed indicates the media storage backend rejected a presign request.
	ErrStorageFailed = 5001
)
