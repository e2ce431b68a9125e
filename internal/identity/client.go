// Package identity resolves bearer credentials through the external
// identity provider.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gymkey/gymkey/internal/model"
)

// Resolution errors.
var (
	// ErrUnauthenticated is returned when the provider rejects the credential.
	ErrUnauthenticated = errors.New("credential rejected by identity provider")
	// ErrProviderUnavailable is returned on transport failures; the caller
	// may retry, the credential was never judged.
	ErrProviderUnavailable = errors.New("identity provider unreachable")
)

// Development bypass credential. Only honoured when the client is
// configured to allow it; production configs never are.
const devBypassToken = "mock-access-token-for-development"

var devProfile = model.Profile{
	UserID:      "U_dev_user_12345",
	DisplayName: "Development User",
}

// Client resolves bearer tokens to profiles.
type Client struct {
	baseURL        string
	allowDevBypass bool
	http           *http.Client
}

// NewClient creates an identity client.
// allowDevBypass enables the fixed development credential; it must stay
// off outside development environments.
func NewClient(baseURL string, allowDevBypass bool) *Client {
	return &Client{
		baseURL:        baseURL,
		allowDevBypass: allowDevBypass,
		http: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   5 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 5 * time.Second,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Resolve exchanges a bearer token for the holder's profile.
func (c *Client) Resolve(ctx context.Context, token string) (*model.Profile, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}

	if c.allowDevBypass && token == devBypassToken {
		profile := devProfile
		return &profile, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v2/profile", nil)
	if err != nil {
		return nil, fmt.Errorf("build profile request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Any non-200 means the credential was not accepted. No fallback.
		return nil, ErrUnauthenticated
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrProviderUnavailable, err)
	}

	var profile model.Profile
	if err := json.Unmarshal(raw, &profile); err != nil {
		return nil, fmt.Errorf("%w: decode profile: %v", ErrProviderUnavailable, err)
	}
	if profile.UserID == "" {
		return nil, ErrUnauthenticated
	}

	return &profile, nil
}
