/*
Package errs provides custom error types and application-level error code constants.

This file defines the map from error codes to the CustomError struct, used to standardize
both HTTP responses and socket error emissions.
*/
package errs

import "net/http"

// errorMap stores the detailed CustomError struct corresponding to every application error code.
// The key is the error code (int), and the value contains the user message and HTTP status code.
var errorMap = map[int]CustomError{
	// 1xxx: General Request Handling Errors
	ErrInvalidParams:        {Code: ErrInvalidParams, Message: "Invalid request parameters.", Status: http.StatusBadRequest},
	ErrUnsupportedMediaType: {Code: ErrUnsupportedMediaType, Message: "Unsupported request format.", Status: http.StatusUnsupportedMediaType},
	ErrInvalidJSONFormat:    {Code: ErrInvalidJSONFormat, Message: "Unsupported request format.", Status: http.StatusBadRequest},
	ErrExtraContentInBody:   {Code: ErrExtraContentInBody, Message: "Request contains unexpected data.", Status: http.StatusBadRequest},
	ErrRateLimitExceeded:    {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},
	ErrUnauthorized:         {Code: ErrUnauthorized, Message: "Please sign in to continue.", Status: http.StatusUnauthorized},

	// 4xxx: Socket Session and Room Errors
	ErrAuthRequired:       {Code: ErrAuthRequired, Message: "Authentication required", Status: http.StatusUnauthorized},
	ErrInvalidToken:       {Code: ErrInvalidToken, Message: "Invalid or expired token", Status: http.StatusUnauthorized},
	ErrMissingCredentials: {Code: ErrMissingCredentials, Message: "Missing required fields: %s", Status: http.StatusBadRequest},
	ErrInvalidClientType:  {Code: ErrInvalidClientType, Message: "Invalid client type.", Status: http.StatusBadRequest},
	ErrNotInRoom:          {Code: ErrNotInRoom, Message: "You must join a chat room before sending messages", Status: http.StatusBadRequest},
	ErrRoomFull:           {Code: ErrRoomFull, Message: "Room is full. Only 2 users allowed in P2P chat rooms.", Status: http.StatusForbidden},
	ErrWrongChannel:       {Code: ErrWrongChannel, Message: "You are not a participant of this chat room.", Status: http.StatusForbidden},
	ErrRoleTaken:          {Code: ErrRoleTaken, Message: "A %s already exists in this room", Status: http.StatusConflict},
	ErrRoomNotFound:       {Code: ErrRoomNotFound, Message: "Room not found. Scan the right code.", Status: http.StatusNotFound},
	ErrAlreadyInRoom:      {Code: ErrAlreadyInRoom, Message: "Already in room %s", Status: http.StatusConflict},
	ErrRelayFailure:       {Code: ErrRelayFailure, Message: "Failed to send message to backend: %s", Status: http.StatusBadGateway},

	// 5xxx: Internal System Errors
	ErrUnknown:       {Code: ErrUnknown, Message: "Internal server error", Status: http.StatusInternalServerError},
	ErrStorageFailed: {Code: ErrStorageFailed, Message: "Media upload failed. Please try again.", Status: http.StatusBadGateway},
}
