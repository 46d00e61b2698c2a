package gateway

import (
	"net/http"
	"net/url"
	"strings"
)

// HandshakeSource captures the three places a client may put its credentials
// during the websocket upgrade: HTTP headers, an auth field map, and the
// query string. Lookups check them in that order, headers winning.
type HandshakeSource struct {
	Header http.Header
	Auth   map[string]string
	Query  url.Values
}

// HandshakeFromRequest builds a HandshakeSource from an upgrade request.
// Socket auth fields supplied in the query under "auth.<field>" are folded
// into the auth map.
func HandshakeFromRequest(r *http.Request) HandshakeSource {
	query := r.URL.Query()

	auth := make(map[string]string)
	for key, values := range query {
		if field, ok := strings.CutPrefix(key, "auth."); ok && len(values) > 0 {
			auth[field] = values[0]
		}
	}

	return HandshakeSource{
		Header: r.Header,
		Auth:   auth,
		Query:  query,
	}
}

// RawAuthorization returns the Authorization header value as sent, or an
// empty string. The relay forwards it verbatim.
func (s HandshakeSource) RawAuthorization() string {
	return s.Header.Get("Authorization")
}

// BearerToken extracts the bearer token: Authorization header first, then the
// auth field "token", then the query parameter "token".
func (s HandshakeSource) BearerToken() string {
	if authHeader := s.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
		return authHeader
	}

	if token := s.Auth["token"]; token != "" {
		return token
	}

	return s.Query.Get("token")
}

// ClientType extracts the declared client type: the x-client-type header
// first, then the auth field "clientType", then the query parameter.
func (s HandshakeSource) ClientType() string {
	if ct := s.Header.Get("x-client-type"); ct != "" {
		return ct
	}

	if ct := s.Auth["clientType"]; ct != "" {
		return ct
	}

	return s.Query.Get("clientType")
}

// UserID extracts the self-declared user identifier: the auth field "userId"
// first, then the query parameter. It is a hint only; verified identity comes
// from the bearer token.
func (s HandshakeSource) UserID() string {
	if id := s.Auth["userId"]; id != "" {
		return id
	}

	return s.Query.Get("userId")
}
