package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// cookieBackend mimics the auth service's cookie contract: the refresh
// token travels only in an httpOnly cookie and rotates on every use.
type cookieBackend struct {
	mu           sync.Mutex
	counter      int
	refreshToken string // current cookie value, "" when logged out
	accessToken  string // currently accepted bearer token
	refreshCalls int32
	logoutCount  int32
}

func (b *cookieBackend) issue(w http.ResponseWriter) string {
	b.counter++
	b.refreshToken = fmt.Sprintf("rt-%d", b.counter)
	b.accessToken = fmt.Sprintf("at-%d", b.counter)
	http.SetCookie(w, &http.Cookie{
		Name:     "refreshToken",
		Value:    b.refreshToken,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return b.accessToken
}

func (b *cookieBackend) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var creds struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		json.NewDecoder(r.Body).Decode(&creds)
		if creds.Email != "a@b.com" || creds.Password != "secret1" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":{"code":"INVALID_CREDENTIALS","message":"Invalid credentials"}}`))
			return
		}

		b.mu.Lock()
		access := b.issue(w)
		b.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]string{"accessToken": access})
	})

	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&b.refreshCalls, 1)

		b.mu.Lock()
		defer b.mu.Unlock()

		cookie, err := r.Cookie("refreshToken")
		if err != nil || b.refreshToken == "" || cookie.Value != b.refreshToken {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":{"code":"INVALID_REFRESH_TOKEN","message":"Invalid refresh token"}}`))
			return
		}

		access := b.issue(w)
		json.NewEncoder(w).Encode(map[string]string{"accessToken": access})
	})

	mux.HandleFunc("/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&b.logoutCount, 1)
		b.mu.Lock()
		b.refreshToken = ""
		b.accessToken = ""
		b.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]string{"message": "Logged out successfully"})
	})

	mux.HandleFunc("/auth/me", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		want := "Bearer " + b.accessToken
		valid := b.accessToken != "" && r.Header.Get("Authorization") == want
		b.mu.Unlock()

		if !valid {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":{"code":"UNAUTHORIZED","message":"Invalid or expired token"}}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"user": map[string]interface{}{
				"id":    "user-1",
				"email": "a@b.com",
				"loans": []interface{}{},
			},
		})
	})

	return mux
}

func (b *cookieBackend) expireAccess() {
	b.mu.Lock()
	b.accessToken = "rotated-away"
	b.mu.Unlock()
}

func newCookieClient(t *testing.T, backend *cookieBackend) *Client {
	t.Helper()
	server := newFakeBackendMux(t, backend.handler())
	client, err := New(server.URL, testLogger())
	require.NoError(t, err)
	return client
}

func TestClient_LoginThenMe(t *testing.T) {
	backend := &cookieBackend{}
	client := newCookieClient(t, backend)
	ctx := context.Background()

	require.NoError(t, client.Login(ctx, Credentials{Email: "a@b.com", Password: "secret1"}))
	require.True(t, client.Store().IsAuthenticated())

	user, err := client.Me(ctx)
	require.NoError(t, err)
	require.Equal(t, "a@b.com", user.Email)
}

func TestClient_LoginFailureSurfacesAPIError(t *testing.T) {
	backend := &cookieBackend{}
	client := newCookieClient(t, backend)

	err := client.Login(context.Background(), Credentials{Email: "a@b.com", Password: "wrong"})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	require.Equal(t, "INVALID_CREDENTIALS", apiErr.Code)
	require.False(t, client.Store().IsAuthenticated())
}

func TestClient_ExpiredAccessTokenTransparentlyRefreshed(t *testing.T) {
	backend := &cookieBackend{}
	client := newCookieClient(t, backend)
	ctx := context.Background()

	require.NoError(t, client.Login(ctx, Credentials{Email: "a@b.com", Password: "secret1"}))

	// Server stops accepting the issued access token; the refresh
	// cookie is still live.
	backend.expireAccess()

	user, err := client.Me(ctx)
	require.NoError(t, err)
	require.Equal(t, "a@b.com", user.Email)
	require.Equal(t, int32(1), atomic.LoadInt32(&backend.refreshCalls))
}

func TestClient_BootstrapWithLiveCookie(t *testing.T) {
	backend := &cookieBackend{}
	client := newCookieClient(t, backend)
	ctx := context.Background()

	require.NoError(t, client.Login(ctx, Credentials{Email: "a@b.com", Password: "secret1"}))

	// Returning user: the access token never made it into memory but
	// the jar still holds the refresh cookie.
	client.Store().Clear()
	client.Store().SetLoading(true)

	require.True(t, client.Bootstrap(ctx))
	require.False(t, client.Store().Loading())
	require.True(t, client.Store().IsAuthenticated())
}

func TestClient_BootstrapWithoutCookie(t *testing.T) {
	backend := &cookieBackend{}
	client := newCookieClient(t, backend)

	require.False(t, client.Bootstrap(context.Background()))
	require.False(t, client.Store().Loading())
	require.False(t, client.Store().IsAuthenticated())
}

func TestClient_LogoutEndsSession(t *testing.T) {
	backend := &cookieBackend{}
	client := newCookieClient(t, backend)
	ctx := context.Background()

	require.NoError(t, client.Login(ctx, Credentials{Email: "a@b.com", Password: "secret1"}))
	require.NoError(t, client.Logout(ctx))
	require.False(t, client.Store().IsAuthenticated())

	// The refresh cookie was revoked server-side: bootstrap fails.
	require.False(t, client.Bootstrap(ctx))
}
