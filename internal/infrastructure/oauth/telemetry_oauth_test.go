package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"fleettrack-service/internal/domain/entity"
	"fleettrack-service/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tokenServer struct {
	passwordGrants atomic.Int32
	refreshGrants  atomic.Int32
	rejectRefresh  atomic.Bool
	rejectPassword atomic.Bool
}

func (ts *tokenServer) handler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")

	switch r.PostForm.Get("grant_type") {
	case "password":
		if ts.rejectPassword.Load() || r.PostForm.Get("password") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"error":"invalid_grant"}`)
			return
		}
		n := ts.passwordGrants.Add(1)
		fmt.Fprintf(w, `{"access_token":"pw-%d","refresh_token":"rt-%d","token_type":"Bearer","expires_in":3600}`, n, n)
	case "refresh_token":
		if ts.rejectRefresh.Load() {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":"invalid_grant"}`)
			return
		}
		n := ts.refreshGrants.Add(1)
		fmt.Fprintf(w, `{"access_token":"rf-%d","token_type":"Bearer","expires_in":3600}`, n)
	default:
		w.WriteHeader(http.StatusBadRequest)
	}
}

func newTestOAuth(t *testing.T, password string) (*TelemetryOAuth, *tokenServer) {
	ts := &tokenServer{}
	srv := httptest.NewServer(http.HandlerFunc(ts.handler))
	t.Cleanup(srv.Close)
	return NewTelemetryOAuth("client", "client-secret", srv.URL, []string{"offline_access"}, "ops", password, logger.NewNop()), ts
}

func TestSessionAuthenticatesOnceWhileValid(t *testing.T) {
	o, ts := newTestOAuth(t, "secret")
	session := o.GetTokenSource(context.Background())

	first, err := session.Token()
	require.NoError(t, err)
	second, err := session.Token()
	require.NoError(t, err)

	assert.Equal(t, "pw-1", first.AccessToken)
	assert.Equal(t, first.AccessToken, second.AccessToken)
	assert.EqualValues(t, 1, ts.passwordGrants.Load())
}

func TestSessionRefreshesAfterInvalidate(t *testing.T) {
	o, ts := newTestOAuth(t, "secret")
	session := o.GetTokenSource(context.Background())

	_, err := session.Token()
	require.NoError(t, err)

	session.Invalidate()
	token, err := session.Token()
	require.NoError(t, err)

	assert.Equal(t, "rf-1", token.AccessToken)
	assert.EqualValues(t, 1, ts.passwordGrants.Load())
}

func TestSessionReauthenticatesWhenRefreshRejected(t *testing.T) {
	o, ts := newTestOAuth(t, "secret")
	session := o.GetTokenSource(context.Background())

	_, err := session.Token()
	require.NoError(t, err)

	ts.rejectRefresh.Store(true)
	session.Invalidate()
	token, err := session.Token()
	require.NoError(t, err)

	assert.Equal(t, "pw-2", token.AccessToken)
}

func TestSessionBadCredentialsAreUnauthenticated(t *testing.T) {
	o, _ := newTestOAuth(t, "wrong")

	_, err := o.GetTokenSource(context.Background()).Token()

	require.Error(t, err)
	assert.True(t, errors.Is(err, entity.ErrUnauthenticated))
}
