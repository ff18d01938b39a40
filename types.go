package authcore

import "github.com/MrEthical07/authcore/users"

// AuthorizeRequest is the parsed query of an authorization request.
type AuthorizeRequest struct {
	ClientID            string
	RedirectURI         string
	ResponseType        string
	CodeChallenge       string
	CodeChallengeMethod string
	Scope               string
	State               string
}

// AuthorizeResult is returned by Engine.Authorize. RedirectURL already
// carries the code and state.
type AuthorizeResult struct {
	RedirectURL string
	Code        string
}

// TokenRequest is the parsed form of a token request.
type TokenRequest struct {
	GrantType    string
	Code         string
	RedirectURI  string
	ClientID     string
	CodeVerifier string
}

// TokenResponse is the RFC 6749 token endpoint body.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// UserInfo is the public projection of a user. It never carries the
// password hash.
type UserInfo struct {
	ID    string   `json:"id"`
	Email string   `json:"email"`
	Name  string   `json:"name,omitempty"`
	Roles []string `json:"roles"`
}

// RefreshResult is a freshly minted token pair plus the user it belongs to.
type RefreshResult struct {
	AccessToken  string   `json:"accessToken"`
	RefreshToken string   `json:"refreshToken"`
	User         UserInfo `json:"user"`
}

func userInfo(u *users.User) UserInfo {
	roles := append([]string(nil), u.Roles...)
	if roles == nil {
		roles = []string{}
	}
	return UserInfo{
		ID:    u.ID,
		Email: u.Email,
		Name:  u.Name,
		Roles: roles,
	}
}
