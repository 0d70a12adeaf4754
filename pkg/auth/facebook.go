package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tendant/tribe-auth/pkg/domain"
)

// DefaultFacebookGraphURL is the Graph API base URL.
const DefaultFacebookGraphURL = "https://graph.facebook.com"

// FacebookConfig holds Facebook login configuration.
type FacebookConfig struct {
	AppID     string
	AppSecret string
	GraphURL  string
}

// FacebookVerifier verifies Facebook user access tokens through the Graph API.
type FacebookVerifier struct {
	config FacebookConfig
	client *http.Client
}

// NewFacebookVerifier creates a verifier. A nil client gets a 10 second timeout.
func NewFacebookVerifier(config FacebookConfig, client *http.Client) *FacebookVerifier {
	if config.GraphURL == "" {
		config.GraphURL = DefaultFacebookGraphURL
	}
	config.GraphURL = strings.TrimRight(config.GraphURL, "/")
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &FacebookVerifier{config: config, client: client}
}

// Provider returns domain.ProviderFacebook.
func (v *FacebookVerifier) Provider() domain.Provider {
	return domain.ProviderFacebook
}

type facebookDebugToken struct {
	Data struct {
		AppID     string `json:"app_id"`
		IsValid   bool   `json:"is_valid"`
		UserID    string `json:"user_id"`
		ExpiresAt int64  `json:"expires_at"`
	} `json:"data"`
}

type facebookUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Verify checks that accessToken was issued to this app and is still valid,
// then loads the user it belongs to.
func (v *FacebookVerifier) Verify(ctx context.Context, accessToken string) (*domain.SocialClaims, error) {
	if v.config.AppID == "" || v.config.AppSecret == "" {
		return nil, errors.New("facebook app not configured")
	}

	var debug facebookDebugToken
	q := url.Values{"input_token": {accessToken}}
	if err := v.get(ctx, "/debug_token", q, v.config.AppID+"|"+v.config.AppSecret, &debug); err != nil {
		return nil, fmt.Errorf("debug token: %w", err)
	}
	if !debug.Data.IsValid {
		return nil, errors.New("token is not valid")
	}
	if debug.Data.AppID != v.config.AppID {
		return nil, errors.New("token was issued to a different app")
	}

	var user facebookUser
	q = url.Values{
		"fields":          {"id,email,name"},
		"appsecret_proof": {v.appSecretProof(accessToken)},
	}
	if err := v.get(ctx, "/me", q, accessToken, &user); err != nil {
		return nil, fmt.Errorf("fetch user: %w", err)
	}
	if user.ID == "" || user.ID != debug.Data.UserID {
		return nil, errors.New("token subject mismatch")
	}

	return &domain.SocialClaims{
		Provider:   domain.ProviderFacebook,
		ProviderID: user.ID,
		Email:      user.Email,
		Name:       user.Name,
	}, nil
}

// appSecretProof signs a user token with the app secret so Graph rejects
// calls made with a token stolen from another app.
func (v *FacebookVerifier) appSecretProof(accessToken string) string {
	mac := hmac.New(sha256.New, []byte(v.config.AppSecret))
	mac.Write([]byte(accessToken))
	return hex.EncodeToString(mac.Sum(nil))
}

// get calls the Graph API with token in the Authorization header. Returned
// errors never include the request URL.
func (v *FacebookVerifier) get(ctx context.Context, path string, query url.Values, token string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.config.GraphURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("graph %s: build request failed", path)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := v.client.Do(req)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return fmt.Errorf("graph %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("graph %s: status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("graph %s: decode response: %w", path, err)
	}
	return nil
}
