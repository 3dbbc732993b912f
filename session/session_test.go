package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"langgraph-chat/app/auth"
	apperrors "langgraph-chat/app/pkg/errors"
	"langgraph-chat/app/pkg/logger"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

func newBackend(t *testing.T) (*httptest.Server, *int32) {
	t.Helper()
	var authorized int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer token-1" {
			atomic.AddInt32(&authorized, 1)
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/health":
			_, _ = w.Write([]byte(`{"status":"healthy","message":"ok","timestamp":"2025-01-01T00:00:00Z","langgraph_status":"ready"}`))
		case "/api/conversations":
			_, _ = w.Write([]byte(`[{"id":"c-1","title":"Earlier chat","created_at":"2025-01-01T00:00:00Z","updated_at":"2025-01-01T00:00:00Z","message_count":4}]`))
		default:
			http.NotFound(w, r)
		}
	}))
	return srv, &authorized
}

func TestStartRequiresSignedInIdentity(t *testing.T) {
	srv, _ := newBackend(t)
	defer srv.Close()
	m := NewManager(HTTPGatewayFactory(srv.URL), Config{}, logger.Nop(), nil)

	_, err := m.Start(context.Background(), &auth.StaticIdentity{Loaded: false, SignedIn: true})
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthenticated))

	_, err = m.Start(context.Background(), &auth.StaticIdentity{Loaded: true, SignedIn: false})
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthenticated))
}

func TestSessionLifecycle(t *testing.T) {
	srv, authorized := newBackend(t)
	defer srv.Close()

	m := NewManager(HTTPGatewayFactory(srv.URL), Config{HealthInterval: time.Hour, SyncOnStart: true}, logger.Nop(), nil)
	identity := &auth.StaticIdentity{Loaded: true, SignedIn: true, Bearer: "token-1", Profile: auth.User{ID: "u-1"}}

	sess, err := m.Start(context.Background(), identity)
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return sess.State().IsConnected }, 2*time.Second, 10*time.Millisecond)
	state := sess.State()
	require.Len(t, state.Conversations, 1)
	assert.Equal(t, "Earlier chat", state.Conversations[0].Title)
	assert.Empty(t, state.CurrentConversationID)
	assert.Positive(t, atomic.LoadInt32(authorized))

	require.NoError(t, sess.SignOut(context.Background()))
	assert.Equal(t, 1, identity.SignOuts())
	assert.False(t, identity.IsSignedIn())

	_, err = sess.Controller().Send(context.Background(), "Hello")
	assert.Error(t, err)
	sess.Close()
}
