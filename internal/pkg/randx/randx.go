/*
Package randx provides functions for generating cryptographically secure random identifiers.

It is primarily used to generate opaque connection IDs for sockets and unique
object keys for media uploads.
*/
package randx

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// MediaKeyPrefix is the object key prefix under which chat media uploads are stored.
const MediaKeyPrefix = "chat-media"

// ConnectionID generates an opaque identifier for a socket connection,
// unique for the lifetime of the socket.
func ConnectionID() string {
	return uuid.New().String()
}

// MediaKey generates a storage object key for a media upload, scoped under
// MediaKeyPrefix and carrying the original file extension.
func MediaKey(fileExt string) string {
	return fmt.Sprintf("%s/%s%s", MediaKeyPrefix, uuid.New().String(), fileExt)
}

// IsValidMediaKey checks that the given string is a media object key issued by
// this gateway, preventing presign requests for arbitrary bucket paths.
func IsValidMediaKey(key string) bool {
	return strings.HasPrefix(key, MediaKeyPrefix+"/") && len(key) > len(MediaKeyPrefix)+1 && !strings.Contains(key, "..")
}
