package infrastructure

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/yourusername/vodgrab-go/internal/domain"
)

// RemoteCDMSession talks to a remote content-decryption-module service over
// HTTP. The service owns the device keys and the cryptography; this client
// only shuttles the protection header, challenge and license back and forth.
type RemoteCDMSession struct {
	client  *http.Client
	baseURL string
}

// NewRemoteCDMSession creates a session against the CDM service at baseURL.
func NewRemoteCDMSession(client *http.Client, baseURL string) *RemoteCDMSession {
	return &RemoteCDMSession{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

type cdmChallengeRequest struct {
	Pssh string `json:"pssh"`
}

type cdmChallengeResponse struct {
	Challenge string `json:"challenge"`
}

type cdmKeysRequest struct {
	License string `json:"license"`
}

type cdmKeysResponse struct {
	Keys []struct {
		KID string `json:"kid"`
		Key string `json:"key"`
	} `json:"keys"`
}

// Challenge asks the CDM service for a license challenge.
func (s *RemoteCDMSession) Challenge(protectionHeader []byte) ([]byte, error) {
	if s.baseURL == "" {
		return nil, fmt.Errorf("no CDM server configured")
	}

	var resp cdmChallengeResponse
	err := s.post("/challenge", cdmChallengeRequest{
		Pssh: base64.StdEncoding.EncodeToString(protectionHeader),
	}, &resp)
	if err != nil {
		return nil, err
	}
	return base64.StdEncoding.DecodeString(resp.Challenge)
}

// ProcessLicense hands the license to the CDM service and collects the
// extracted content keys.
func (s *RemoteCDMSession) ProcessLicense(license []byte) (domain.Keyring, error) {
	var resp cdmKeysResponse
	err := s.post("/keys", cdmKeysRequest{
		License: base64.StdEncoding.EncodeToString(license),
	}, &resp)
	if err != nil {
		return nil, err
	}

	keyring := make(domain.Keyring, 0, len(resp.Keys))
	for _, k := range resp.Keys {
		keyring = append(keyring, domain.ContentKey{KID: k.KID, Key: k.Key})
	}
	return keyring, nil
}

// Close releases the session. The remote service is stateless per request,
// so there is nothing to tear down beyond idle connections.
func (s *RemoteCDMSession) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func (s *RemoteCDMSession) post(path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	resp, err := s.client.Post(s.baseURL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("CDM request failed: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("CDM server returned status %d", resp.StatusCode)
	}
	return json.Unmarshal(data, out)
}
