package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"fleettrack-service/internal/domain/entity"
	"fleettrack-service/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type staticSource struct {
	invalidated atomic.Int32
}

func (s *staticSource) Token() (*oauth2.Token, error) {
	return &oauth2.Token{AccessToken: "abc", TokenType: "Bearer", Expiry: time.Now().Add(time.Hour)}, nil
}

func (s *staticSource) Invalidate() { s.invalidated.Add(1) }

func newTestClient(t *testing.T, tokens oauth2.TokenSource, h http.HandlerFunc) *Client {
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL+"/", tokens, 5*time.Second, logger.NewNop())
	c.backoff = time.Millisecond
	return c
}

func TestListOrganisations(t *testing.T) {
	c := newTestClient(t, nil, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/organisationgroups", r.URL.Path)
		fmt.Fprint(w, `[{"id":"org-a","name":"A"},{"id":1234,"name":"B"},{"id":null}]`)
	})

	ids, err := c.ListOrganisations(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"org-a", "1234"}, ids)
}

func TestGetAssetsWithPositions(t *testing.T) {
	c := newTestClient(t, &staticSource{}, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/assets/group/org-a/positions", r.URL.Path)
		assert.Equal(t, "Bearer abc", r.Header.Get("Authorization"))
		fmt.Fprint(w, `[
			{"id":"T1","code":"TRK-01","lastLatitude":-26.2,"lastLongitude":28.04,"speedKmH":42.5,"heading":90,"lastConnectedUtc":"2025-03-01T08:00:00"},
			{"id":77,"name":"Trailer 7","lastLatitude":null,"lastLongitude":null,"speedKmH":null,"heading":null,"lastConnectedUtc":null},
			{"id":"","code":"ghost"}
		]`)
	})

	assets, err := c.GetAssetsWithPositions(context.Background(), "org-a")

	require.NoError(t, err)
	require.Len(t, assets, 2)

	assert.Equal(t, "T1", assets[0].ID)
	assert.Equal(t, "TRK-01", assets[0].Code)
	require.NotNil(t, assets[0].SpeedKmH)
	assert.Equal(t, 42.5, *assets[0].SpeedKmH)
	require.NotNil(t, assets[0].LastConnectedUTC)
	assert.Equal(t, time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC), *assets[0].LastConnectedUTC)

	assert.Equal(t, "77", assets[1].ID)
	assert.Equal(t, "Trailer 7", assets[1].Code)
	assert.Nil(t, assets[1].LastLatitude)
	assert.Nil(t, assets[1].LastConnectedUTC)
}

func TestRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, nil, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `[]`)
	})

	ids, err := c.ListOrganisations(context.Background())

	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.EqualValues(t, 3, calls.Load())
}

func TestDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, nil, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := c.GetAssetsWithPositions(context.Background(), "missing")

	require.Error(t, err)
	assert.False(t, errors.Is(err, entity.ErrUnauthenticated))
	assert.EqualValues(t, 1, calls.Load())
}

func TestUnauthorizedInvalidatesOnceThenFails(t *testing.T) {
	var calls atomic.Int32
	tokens := &staticSource{}
	c := newTestClient(t, tokens, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := c.ListOrganisations(context.Background())

	require.Error(t, err)
	assert.True(t, errors.Is(err, entity.ErrUnauthenticated))
	assert.EqualValues(t, 1, tokens.invalidated.Load())
	assert.EqualValues(t, 2, calls.Load())
}

func TestUnauthorizedRecoversAfterInvalidate(t *testing.T) {
	var calls atomic.Int32
	tokens := &staticSource{}
	c := newTestClient(t, tokens, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `[{"id":"org-a"}]`)
	})

	ids, err := c.ListOrganisations(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"org-a"}, ids)
}
