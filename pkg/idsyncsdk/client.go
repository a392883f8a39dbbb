package idsyncsdk

import (
	"net/http"
	"strings"
	"time"
)

// SDKClient talks to the engine's public endpoints and creates Sessions.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewSDKClient(baseURL string) *SDKClient {
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			// Logins may wait on the directory.
			Timeout: 30 * time.Second,
		},
	}
}

// NewSession wraps a session token returned by Login or ResolveConflict.
func (c *SDKClient) NewSession(token string) *Session {
	return &Session{client: c, token: token}
}
