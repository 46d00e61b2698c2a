package gateway

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pairgate/internal/app/presence"
	"pairgate/internal/pkg/auth/jwt"
)

func TestOnConnectWithValidToken(t *testing.T) {
	pres := presence.NewService(presence.MultiSession)
	lifecycle := NewLifecycle(pres, testSecret)

	token, err := jwt.GenerateToken(&jwt.Identity{ID: "alice"}, testSecret, time.Hour)
	require.NoError(t, err)

	src := HandshakeSource{
		Header: http.Header{
			"Authorization": {"Bearer " + token},
			"X-Client-Type": {"Web"},
		},
	}

	lifecycle.OnConnect("c1", NamespaceChat, src, &stubSender{})

	conn, ok := pres.LookupByConnection("c1")
	require.True(t, ok)
	assert.True(t, conn.Authenticated)
	assert.Equal(t, "alice", conn.UserID)
	assert.Equal(t, "web", conn.ClientType, "client type is normalized to lower case")
}

func TestOnConnectWithInvalidTokenStaysAnonymous(t *testing.T) {
	pres := presence.NewService(presence.MultiSession)
	lifecycle := NewLifecycle(pres, testSecret)

	token, err := jwt.GenerateToken(&jwt.Identity{ID: "alice"}, "some-other-secret", time.Hour)
	require.NoError(t, err)

	src := HandshakeSource{Header: http.Header{"Authorization": {"Bearer " + token}}}
	lifecycle.OnConnect("c1", NamespaceChat, src, &stubSender{})

	conn, ok := pres.LookupByConnection("c1")
	require.True(t, ok)
	assert.False(t, conn.Authenticated, "bad token must not reject the connection, only leave it unauthenticated")
	assert.Equal(t, presence.AnonymousUser, conn.UserID)
}

func TestOnConnectWithDeclaredUserIDUnverified(t *testing.T) {
	pres := presence.NewService(presence.MultiSession)
	lifecycle := NewLifecycle(pres, testSecret)

	src := HandshakeSource{Auth: map[string]string{"userId": "alice"}}
	lifecycle.OnConnect("c1", NamespaceChat, src, &stubSender{})

	conn, ok := pres.LookupByConnection("c1")
	require.True(t, ok)
	assert.Equal(t, "alice", conn.UserID)
	assert.False(t, conn.Authenticated)
}

func TestOnDisconnectRemovesConnection(t *testing.T) {
	pres := presence.NewService(presence.MultiSession)
	lifecycle := NewLifecycle(pres, testSecret)

	lifecycle.OnConnect("c1", NamespaceChat, HandshakeSource{}, &stubSender{})
	lifecycle.OnDisconnect("c1")

	_, ok := pres.LookupByConnection("c1")
	assert.False(t, ok)
}

func TestAuthenticateUpdatesConnection(t *testing.T) {
	pres := presence.NewService(presence.MultiSession)
	lifecycle := NewLifecycle(pres, testSecret)
	sender := &stubSender{}

	pres.Register(presence.Connection{ID: "c1", Namespace: NamespaceRoot, Sender: sender})
	conn, _ := pres.LookupByConnection("c1")

	result, err := lifecycle.Authenticate(nil, conn, HandshakeSource{}, mustJSON(t, AuthenticatePayload{UserID: "alice", ClientType: "Mobile"}))
	require.NoError(t, err)
	assert.True(t, result.(OpResult).Success)

	updated, _ := pres.LookupByConnection("c1")
	assert.Equal(t, "alice", updated.UserID)
	assert.Equal(t, "mobile", updated.ClientType)
	assert.True(t, updated.Authenticated)

	assert.Contains(t, sender.eventNames(), EventAuthSuccess)
}

func TestAuthenticateRequiresUserID(t *testing.T) {
	pres := presence.NewService(presence.MultiSession)
	lifecycle := NewLifecycle(pres, testSecret)

	pres.Register(presence.Connection{ID: "c1", Namespace: NamespaceRoot, Sender: &stubSender{}})
	conn, _ := pres.LookupByConnection("c1")

	_, err := lifecycle.Authenticate(nil, conn, HandshakeSource{}, mustJSON(t, AuthenticatePayload{}))
	assert.Error(t, err)
}
