package infrastructure

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/yourusername/vodgrab-go/internal/domain"
)

// LicenseClient implements the license server round trip: it asks the CDM
// session for a challenge, posts it to the provider's license server, and
// feeds the returned license back into the session to extract content keys.
// The CDM cryptography itself lives behind the session interface.
type LicenseClient struct {
	client  *http.Client
	session domain.CDMSession
	logger  *zap.Logger
}

// NewLicenseClient creates a license client around one CDM session.
func NewLicenseClient(client *http.Client, session domain.CDMSession, logger *zap.Logger) *LicenseClient {
	return &LicenseClient{client: client, session: session, logger: logger}
}

// Keys runs one license exchange for the title's protection header.
func (c *LicenseClient) Keys(ctx context.Context, protectionHeader []byte, drm *domain.DrmConfig) (domain.Keyring, error) {
	challenge, err := c.session.Challenge(protectionHeader)
	if err != nil {
		return nil, fmt.Errorf("failed to build license challenge: %w", err)
	}

	body, contentType, err := wrapChallenge(challenge, drm.Params)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, drm.Server, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range drm.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("license request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read license response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("license server returned status %d", resp.StatusCode)
	}

	license := unwrapLicense(data)
	keyring, err := c.session.ProcessLicense(license)
	if err != nil {
		return nil, fmt.Errorf("failed to process license: %w", err)
	}

	c.logger.Debug("License exchange complete", zap.Int("keys", len(keyring)))
	return keyring, nil
}

// wrapChallenge prepares the license request body. With extra params the
// raw challenge is wrapped in a JSON envelope carrying it as base64; without
// them the challenge bytes go on the wire as-is.
func wrapChallenge(challenge []byte, params map[string]interface{}) ([]byte, string, error) {
	if len(params) == 0 {
		return challenge, "", nil
	}
	envelope := make(map[string]interface{}, len(params)+1)
	for k, v := range params {
		envelope[k] = v
	}
	envelope["rawLicenseRequestBase64"] = base64.StdEncoding.EncodeToString(challenge)
	body, err := json.Marshal(envelope)
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode license request: %w", err)
	}
	return body, "application/json", nil
}

// unwrapLicense sniffs the response shape: a body starting with '{' is a
// JSON envelope whose "license" or "payload" field holds the base64
// license; anything else is the raw license.
func unwrapLicense(data []byte) []byte {
	if len(data) == 0 || data[0] != '{' {
		return data
	}
	var envelope struct {
		License string `json:"license"`
		Payload string `json:"payload"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return data
	}
	encoded := envelope.License
	if encoded == "" {
		encoded = envelope.Payload
	}
	if encoded == "" {
		return data
	}
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return []byte(encoded)
	}
	return decoded
}
