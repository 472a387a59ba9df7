package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// GoogleTokenInfo represents the response from Google's tokeninfo endpoint
type GoogleTokenInfo struct {
	Email         string `json:"email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
	EmailVerified string `json:"email_verified"` // Google returns this as string "true" or "false"
	Sub           string `json:"sub"`
}

var googleTokenInfoURL = "https://oauth2.googleapis.com/tokeninfo"

// VerifyGoogleIDToken checks a Google ID token against the tokeninfo endpoint
// before it is exchanged for Firebase credentials.
func VerifyGoogleIDToken(idToken string) (*GoogleTokenInfo, error) {
	resp, err := http.Get(fmt.Sprintf("%s?id_token=%s", googleTokenInfoURL, idToken))
	if err != nil {
		return nil, errors.New("failed to verify Google token: " + err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("failed to verify Google token: status %d, body: %s", resp.StatusCode, string(body))
	}

	var tokenInfo GoogleTokenInfo
	if err := json.NewDecoder(resp.Body).Decode(&tokenInfo); err != nil {
		return nil, errors.New("failed to decode Google token info: " + err.Error())
	}

	if tokenInfo.EmailVerified != "true" {
		return nil, errors.New("google email is not verified")
	}

	return &tokenInfo, nil
}
