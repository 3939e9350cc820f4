package infrastructure

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourusername/vodgrab-go/internal/domain"
)

// stubSession echoes canned data and records what it was handed.
type stubSession struct {
	challenge       []byte
	receivedLicense []byte
	keyring         domain.Keyring
}

func (s *stubSession) Challenge(pssh []byte) ([]byte, error) { return s.challenge, nil }

func (s *stubSession) ProcessLicense(license []byte) (domain.Keyring, error) {
	s.receivedLicense = license
	return s.keyring, nil
}

func (s *stubSession) Close() error { return nil }

func TestLicenseClientRawRoundTrip(t *testing.T) {
	session := &stubSession{
		challenge: []byte("challenge-bytes"),
		keyring:   domain.Keyring{{KID: "kid1", Key: "key1"}},
	}

	var receivedBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedBody, _ = io.ReadAll(r.Body)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Write([]byte("raw-license-bytes"))
	}))
	defer server.Close()

	client := NewLicenseClient(server.Client(), session, zap.NewNop())
	keyring, err := client.Keys(context.Background(), []byte("pssh"), &domain.DrmConfig{
		Server:  server.URL,
		Headers: map[string]string{"Authorization": "Bearer tok"},
	})
	require.NoError(t, err)

	// Without params the challenge goes on the wire untouched, and a
	// non-JSON response is the license itself.
	assert.Equal(t, []byte("challenge-bytes"), receivedBody)
	assert.Equal(t, []byte("raw-license-bytes"), session.receivedLicense)
	require.Len(t, keyring, 1)
	assert.Equal(t, "kid1", keyring[0].KID)
}

func TestLicenseClientJSONEnvelope(t *testing.T) {
	session := &stubSession{challenge: []byte("challenge-bytes")}
	license := []byte("license-bytes")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var envelope map[string]interface{}
		require.NoError(t, json.Unmarshal(body, &envelope))

		// Params ride alongside the base64 challenge.
		assert.Equal(t, "session-123", envelope["sessionId"])
		assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("challenge-bytes")),
			envelope["rawLicenseRequestBase64"])

		json.NewEncoder(w).Encode(map[string]string{
			"license": base64.StdEncoding.EncodeToString(license),
		})
	}))
	defer server.Close()

	client := NewLicenseClient(server.Client(), session, zap.NewNop())
	_, err := client.Keys(context.Background(), []byte("pssh"), &domain.DrmConfig{
		Server: server.URL,
		Params: map[string]interface{}{"sessionId": "session-123"},
	})
	require.NoError(t, err)
	assert.Equal(t, license, session.receivedLicense)
}

func TestLicenseClientPayloadField(t *testing.T) {
	session := &stubSession{challenge: []byte("c")}
	license := []byte("payload-license")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"payload": base64.StdEncoding.EncodeToString(license),
		})
	}))
	defer server.Close()

	client := NewLicenseClient(server.Client(), session, zap.NewNop())
	_, err := client.Keys(context.Background(), []byte("pssh"), &domain.DrmConfig{Server: server.URL})
	require.NoError(t, err)
	assert.Equal(t, license, session.receivedLicense)
}

func TestLicenseClientServerError(t *testing.T) {
	session := &stubSession{challenge: []byte("c")}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "denied", http.StatusForbidden)
	}))
	defer server.Close()

	client := NewLicenseClient(server.Client(), session, zap.NewNop())
	_, err := client.Keys(context.Background(), []byte("pssh"), &domain.DrmConfig{Server: server.URL})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestUnwrapLicense(t *testing.T) {
	raw := []byte("binary license")
	assert.Equal(t, raw, unwrapLicense(raw))

	encoded := base64.StdEncoding.EncodeToString([]byte("inner"))
	wrapped := []byte(fmt.Sprintf(`{"license": %q}`, encoded))
	assert.Equal(t, []byte("inner"), unwrapLicense(wrapped))

	// JSON without a recognized field comes back untouched.
	other := []byte(`{"status": "ok"}`)
	assert.Equal(t, other, unwrapLicense(other))
}
