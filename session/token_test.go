package session

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func tokenServer(t *testing.T, issued *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(issued, 1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok-" + time.Now().Format(time.RFC3339Nano),
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
}

func TestTokenProviderCachesUntilNearExpiry(t *testing.T) {
	var issued int32
	srv := tokenServer(t, &issued)
	defer srv.Close()

	p := NewTokenProvider(TokenProviderConfig{
		ClientID: "id", ClientSecret: "secret", TokenURL: srv.URL,
	})

	tok1, err := p.Token(t.Context())
	require.NoError(t, err)
	tok2, err := p.Token(t.Context())
	require.NoError(t, err)

	require.Equal(t, tok1, tok2)
	require.EqualValues(t, 1, atomic.LoadInt32(&issued))
}

func TestTokenProviderForwardsAudienceAndResource(t *testing.T) {
	var gotAudience, gotResource string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotAudience = r.PostForm.Get("audience")
		gotResource = r.PostForm.Get("resource")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok", "token_type": "Bearer", "expires_in": 3600,
		})
	}))
	defer srv.Close()

	p := NewTokenProvider(TokenProviderConfig{
		ClientID: "id", ClientSecret: "secret", TokenURL: srv.URL,
		Audience: "https://api.example.com", Resource: "urn:connector-host",
	})
	_, err := p.Token(t.Context())
	require.NoError(t, err)

	require.Equal(t, "https://api.example.com", gotAudience)
	require.Equal(t, "urn:connector-host", gotResource)
}

func TestTokenProviderInvalidateForcesRefresh(t *testing.T) {
	var issued int32
	srv := tokenServer(t, &issued)
	defer srv.Close()

	p := NewTokenProvider(TokenProviderConfig{
		ClientID: "id", ClientSecret: "secret", TokenURL: srv.URL,
	})

	_, err := p.Token(t.Context())
	require.NoError(t, err)
	p.Invalidate()
	_, err = p.Token(t.Context())
	require.NoError(t, err)

	require.EqualValues(t, 2, atomic.LoadInt32(&issued))
}
