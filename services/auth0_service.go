package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// UserInfo is the profile returned by the identity provider's /userinfo endpoint
type UserInfo struct {
	Sub     string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// UserInfoFetcher looks up the profile behind an access token
type UserInfoFetcher interface {
	GetUserInfo(ctx context.Context, accessToken string) (*UserInfo, error)
}

// Auth0Service calls the Auth0 authentication API
type Auth0Service struct {
	domain     string
	httpClient *http.Client
}

// NewAuth0Service creates a client for the tenant at domain. A domain with a
// scheme (http://127.0.0.1:port) is used as-is.
func NewAuth0Service(domain string) *Auth0Service {
	return &Auth0Service{
		domain:     domain,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// GetUserInfo fetches the profile for accessToken
func (s *Auth0Service) GetUserInfo(ctx context.Context, accessToken string) (*UserInfo, error) {
	url := s.domain + "/userinfo"
	if !strings.HasPrefix(s.domain, "http://") && !strings.HasPrefix(s.domain, "https://") {
		url = fmt.Sprintf("https://%s/userinfo", s.domain)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call userinfo endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("userinfo endpoint returned status %d: %s", resp.StatusCode, string(body))
	}

	var info UserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode userinfo response: %w", err)
	}
	return &info, nil
}
