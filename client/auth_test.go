package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// authServer is an httptest stub of the authoring API's credential behavior.
type authServer struct {
	mu           sync.Mutex
	validAccess  string
	validRefresh string
	nextAccess   string
	refreshCalls int32
	fetchCalls   int32
	refreshDelay time.Duration
	refreshFails bool
	disabledCode string
	alwaysExpire bool
}

func (s *authServer) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/token/refresh/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&s.refreshCalls, 1)
		if s.refreshDelay > 0 {
			time.Sleep(s.refreshDelay)
		}
		if s.refreshFails {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"detail": "Token is invalid or expired",
				"code":   CodeTokenNotValid,
			})
			return
		}
		var body struct {
			Refresh string `json:"refresh"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		s.mu.Lock()
		if body.Refresh != s.validRefresh {
			s.mu.Unlock()
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"detail": "Token is invalid or expired",
				"code":   CodeTokenNotValid,
			})
			return
		}
		s.validAccess = s.nextAccess
		access := s.validAccess
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]string{"access": access})
	})

	mux.HandleFunc("/api/tutor/courses/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&s.fetchCalls, 1)
		if s.disabledCode != "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"detail": "Account disabled",
				"code":   s.disabledCode,
			})
			return
		}
		s.mu.Lock()
		valid := s.validAccess
		s.mu.Unlock()
		if s.alwaysExpire || r.Header.Get("Authorization") != "Bearer "+valid {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"detail": "Given token not valid for any token type",
				"code":   CodeTokenNotValid,
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"id": 42, "step": 1, "title": "Practical Go for backend work",
		})
	})

	return mux
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func newTestClient(t *testing.T, srv *authServer) (*Client, *httptest.Server) {
	t.Helper()
	ts := httptest.NewServer(srv.handler())
	t.Cleanup(ts.Close)
	tokens := NewTokenStore()
	return New(ts.URL, 5*time.Second, tokens, zap.NewNop()), ts
}

func TestRefreshAndRetryOnce(t *testing.T) {
	// Call A fails 401/token-not-valid, refresh yields C2, replay succeeds,
	// the store ends holding C2.
	srv := &authServer{validAccess: "c2", validRefresh: "r1", nextAccess: "c2"}
	c, _ := newTestClient(t, srv)
	c.Tokens().Set(TokenPair{Access: "c1", Refresh: "r1"})

	course, err := c.FetchDraft(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, 42, course.ID)

	pair, ok := c.Tokens().Pair()
	require.True(t, ok)
	assert.Equal(t, "c2", pair.Access)
	assert.EqualValues(t, 1, atomic.LoadInt32(&srv.refreshCalls))
	assert.EqualValues(t, 2, atomic.LoadInt32(&srv.fetchCalls)) // original + one replay
}

func TestNoSecondRetryAfterRefreshedCallFails(t *testing.T) {
	// The server rejects even the refreshed credential; the 401 must
	// propagate instead of looping.
	srv := &authServer{validAccess: "other", validRefresh: "r1", nextAccess: "c2", alwaysExpire: true}
	c, _ := newTestClient(t, srv)
	c.Tokens().Set(TokenPair{Access: "expired", Refresh: "r1"})

	_, err := c.FetchDraft(context.Background(), 42)
	require.Error(t, err)
	assert.True(t, IsTokenExpired(err))
	assert.EqualValues(t, 1, atomic.LoadInt32(&srv.refreshCalls))
	assert.EqualValues(t, 2, atomic.LoadInt32(&srv.fetchCalls))
}

func TestConcurrentCallsShareOneRefresh(t *testing.T) {
	srv := &authServer{
		validAccess:  "c2",
		validRefresh: "r1",
		nextAccess:   "c2",
		refreshDelay: 50 * time.Millisecond,
	}
	c, _ := newTestClient(t, srv)
	c.Tokens().Set(TokenPair{Access: "c1", Refresh: "r1"})

	const callers = 10
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.FetchDraft(context.Background(), 42)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "caller %d", i)
	}
	// The first caller owns the refresh; everyone else awaits it.
	assert.EqualValues(t, 1, atomic.LoadInt32(&srv.refreshCalls))

	pair, _ := c.Tokens().Pair()
	assert.Equal(t, "c2", pair.Access)
}

func TestRefreshFailurePropagatesAndForcesLogout(t *testing.T) {
	srv := &authServer{validAccess: "other", validRefresh: "r1", refreshFails: true}
	c, _ := newTestClient(t, srv)
	c.Tokens().Set(TokenPair{Access: "expired", Refresh: "r1"})

	loggedOut := false
	c.Tokens().OnLogout(func() { loggedOut = true })

	_, err := c.FetchDraft(context.Background(), 42)
	require.Error(t, err)
	// The refresh failure, not the original 401, reaches the caller.
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Token is invalid or expired", apiErr.Detail)

	assert.True(t, loggedOut)
	_, ok := c.Tokens().Pair()
	assert.False(t, ok)
	// The original call is never replayed.
	assert.EqualValues(t, 1, atomic.LoadInt32(&srv.fetchCalls))
}

func TestBlockedAccountForcesLogout(t *testing.T) {
	for _, code := range []string{CodeUserBlocked, CodeUserInactive} {
		t.Run(code, func(t *testing.T) {
			srv := &authServer{validAccess: "c1", validRefresh: "r1", disabledCode: code}
			c, _ := newTestClient(t, srv)
			c.Tokens().Set(TokenPair{Access: "c1", Refresh: "r1"})

			loggedOut := false
			c.Tokens().OnLogout(func() { loggedOut = true })

			_, err := c.FetchDraft(context.Background(), 42)
			require.Error(t, err)
			assert.True(t, IsAccountDisabled(err))
			assert.True(t, loggedOut)
			// No refresh is attempted for a disabled account.
			assert.EqualValues(t, 0, atomic.LoadInt32(&srv.refreshCalls))
		})
	}
}

func TestCallWithoutCredentials(t *testing.T) {
	srv := &authServer{validAccess: "c1"}
	c, _ := newTestClient(t, srv)

	_, err := c.FetchDraft(context.Background(), 42)
	assert.ErrorIs(t, err, ErrLoggedOut)
	assert.EqualValues(t, 0, atomic.LoadInt32(&srv.fetchCalls))
}

func TestRequestCarriesCorrelationID(t *testing.T) {
	var gotHeader string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Request-ID")
		writeJSON(w, http.StatusOK, map[string]interface{}{"id": 1})
	}))
	defer ts.Close()

	tokens := NewTokenStore()
	tokens.Set(TokenPair{Access: "c1", Refresh: "r1"})
	c := New(ts.URL, time.Second, tokens, zap.NewNop())

	_, err := c.FetchDraft(context.Background(), 1)
	require.NoError(t, err)
	assert.NotEmpty(t, gotHeader)
}

func TestDecodeErrorEnvelopes(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		first  string
	}{
		{
			name:   "field map",
			status: http.StatusBadRequest,
			body:   `{"title": ["Title must be between 10 and 120 characters!"]}`,
			first:  "Title must be between 10 and 120 characters!",
		},
		{
			name:   "detail envelope",
			status: http.StatusUnauthorized,
			body:   fmt.Sprintf(`{"detail": "nope", "code": %q}`, CodeTokenNotValid),
			first:  "nope",
		},
		{
			name:   "unrecognised body",
			status: http.StatusBadGateway,
			body:   "<html>bad gateway</html>",
			first:  "Something went wrong. Please try again.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apiErr := decodeError(tt.status, []byte(tt.body))
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, tt.first, apiErr.FirstMessage())
		})
	}
}

func TestFirstMessageDeterministicAcrossFields(t *testing.T) {
	apiErr := decodeError(http.StatusBadRequest,
		[]byte(`{"b_field": ["second"], "a_field": ["first"]}`))
	for i := 0; i < 20; i++ {
		assert.Equal(t, "first", apiErr.FirstMessage())
	}
	assert.True(t, IsValidation(apiErr))
	assert.True(t, strings.Contains(apiErr.Error(), "first"))
}
