package infrastructure

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoteCDMSessionRoundTrip(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/challenge", func(w http.ResponseWriter, r *http.Request) {
		var req cdmChallengeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("pssh-box")), req.Pssh)
		json.NewEncoder(w).Encode(cdmChallengeResponse{
			Challenge: base64.StdEncoding.EncodeToString([]byte("challenge")),
		})
	})
	mux.HandleFunc("/keys", func(w http.ResponseWriter, r *http.Request) {
		var req cdmKeysRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("license")), req.License)
		w.Write([]byte(`{"keys": [{"kid": "kid1", "key": "key1"}]}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	session := NewRemoteCDMSession(server.Client(), server.URL)

	challenge, err := session.Challenge([]byte("pssh-box"))
	require.NoError(t, err)
	assert.Equal(t, []byte("challenge"), challenge)

	keyring, err := session.ProcessLicense([]byte("license"))
	require.NoError(t, err)
	require.Len(t, keyring, 1)
	assert.Equal(t, "kid1", keyring[0].KID)
	assert.Equal(t, "key1", keyring[0].Key)

	assert.NoError(t, session.Close())
}

func TestRemoteCDMSessionUnconfigured(t *testing.T) {
	session := NewRemoteCDMSession(http.DefaultClient, "")
	_, err := session.Challenge([]byte("pssh"))
	assert.Error(t, err)
}

func TestRemoteCDMSessionServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no device", http.StatusInternalServerError)
	}))
	defer server.Close()

	session := NewRemoteCDMSession(server.Client(), server.URL)
	_, err := session.Challenge([]byte("pssh"))
	assert.Error(t, err)
}
