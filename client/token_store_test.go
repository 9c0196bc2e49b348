package client

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mintToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": 7,
		"iat":     time.Now().Unix(),
		"exp":     exp.Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func TestTokenStoreSetAndPair(t *testing.T) {
	store := NewTokenStore()

	_, ok := store.Pair()
	assert.False(t, ok)

	store.Set(TokenPair{Access: "a1", Refresh: "r1"})
	pair, ok := store.Pair()
	require.True(t, ok)
	assert.Equal(t, "a1", pair.Access)
	assert.Equal(t, "r1", pair.Refresh)

	// Readers observe the latest write.
	store.Set(TokenPair{Access: "a2", Refresh: "r2"})
	pair, _ = store.Pair()
	assert.Equal(t, "a2", pair.Access)
}

func TestTokenStoreLogoutFiresHooksOnce(t *testing.T) {
	store := NewTokenStore()
	store.Set(TokenPair{Access: "a1", Refresh: "r1"})

	fired := 0
	store.OnLogout(func() { fired++ })

	store.Logout()
	store.Logout() // already empty, must not re-notify

	assert.Equal(t, 1, fired)
	_, ok := store.Pair()
	assert.False(t, ok)
}

func TestTokenStoreClearSkipsHooks(t *testing.T) {
	store := NewTokenStore()
	store.Set(TokenPair{Access: "a1"})

	fired := 0
	store.OnLogout(func() { fired++ })
	store.Clear()

	assert.Equal(t, 0, fired)
	_, ok := store.Pair()
	assert.False(t, ok)
}

func TestTokenStoreAccessExpiry(t *testing.T) {
	store := NewTokenStore()

	_, err := store.AccessExpiry()
	assert.Error(t, err)

	exp := time.Now().Add(30 * time.Minute).Truncate(time.Second)
	store.Set(TokenPair{Access: mintToken(t, exp)})

	got, err := store.AccessExpiry()
	require.NoError(t, err)
	assert.WithinDuration(t, exp, got, time.Second)
}

func TestTokenStoreAccessExpiryMalformed(t *testing.T) {
	store := NewTokenStore()
	store.Set(TokenPair{Access: "not-a-jwt"})

	_, err := store.AccessExpiry()
	assert.Error(t, err)
}
