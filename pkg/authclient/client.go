package authclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Skotchmaster/food_order/pkg/tokens"
)

// ErrRefreshRejected is returned when the auth service refuses the refresh token.
var ErrRefreshRejected = errors.New("refresh rejected")

// Client talks to the auth service. Session issuance lives there; this
// service only asks it to rotate an expired access token.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(authServiceURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(authServiceURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

type RefreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	AccessExp    int64  `json:"access_exp"`
	RefreshExp   int64  `json:"refresh_exp"`
}

func (c *Client) RefreshTokens(ctx context.Context, refreshToken, accessToken string) (*RefreshResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/refresh", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.AddCookie(&http.Cookie{Name: tokens.RefreshCookie, Value: refreshToken})
	req.AddCookie(&http.Cookie{Name: tokens.AccessCookie, Value: accessToken})

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrRefreshRejected
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("refresh failed with status: %d", resp.StatusCode)
	}

	var result RefreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if result.AccessToken == "" {
		return nil, fmt.Errorf("decode response: empty access token")
	}

	return &result, nil
}
