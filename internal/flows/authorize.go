package flows

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/authcore/clients"
	"github.com/MrEthical07/authcore/codes"
	"github.com/MrEthical07/authcore/pkce"
)

// AuthorizeFailureKind classifies authorize failures for root-level mapping.
type AuthorizeFailureKind int

const (
	AuthorizeFailureNone AuthorizeFailureKind = iota
	AuthorizeFailureResponseType
	AuthorizeFailureUnknownClient
	AuthorizeFailureClientBackend
	AuthorizeFailureRedirectURI
	AuthorizeFailureMethod
	AuthorizeFailureChallenge
	AuthorizeFailureScope
	AuthorizeFailureLoginRequired
	AuthorizeFailureIssue
	AuthorizeFailureStore
)

// AuthorizeInput is the parsed authorize request plus the caller's session
// token, which may be empty.
type AuthorizeInput struct {
	ClientID            string
	RedirectURI         string
	ResponseType        string
	CodeChallenge       string
	CodeChallengeMethod string
	Scope               string
	State               string
	SessionToken        string
}

// AuthorizeResult carries the redirect target on success.
type AuthorizeResult struct {
	Failure     AuthorizeFailureKind
	Err         error
	UserID      string
	Scope       string
	Code        string
	CodeHash    string
	RedirectURL string
}

// AuthorizeDeps captures authorize flow dependencies.
type AuthorizeDeps struct {
	Clients       clients.Registry
	Codes         codes.Store
	DecodeSession func(string) (string, error)
	NewCode       func() (string, error)
	HashCode      func(string) string
	NewID         func() string
	Now           func() time.Time
	CodeTTL       time.Duration
	DefaultScope  string
	StoreContext  StoreContext
}

// RunAuthorize validates request parameters before looking at the session,
// so a malformed request never bounces the user through login.
func RunAuthorize(ctx context.Context, in AuthorizeInput, deps AuthorizeDeps) AuthorizeResult {
	if in.ResponseType != "code" {
		return AuthorizeResult{Failure: AuthorizeFailureResponseType}
	}

	client, err := deps.Clients.GetClient(ctx, in.ClientID)
	if err != nil {
		if errors.Is(err, clients.ErrNotFound) {
			return AuthorizeResult{Failure: AuthorizeFailureUnknownClient, Err: err}
		}
		return AuthorizeResult{Failure: AuthorizeFailureClientBackend, Err: err}
	}
	if !client.HasRedirectURI(in.RedirectURI) {
		return AuthorizeResult{Failure: AuthorizeFailureRedirectURI}
	}
	if err := pkce.ValidateMethod(in.CodeChallengeMethod); err != nil {
		return AuthorizeResult{Failure: AuthorizeFailureMethod, Err: err}
	}
	if len(in.CodeChallenge) < pkce.MinChallengeLength {
		return AuthorizeResult{Failure: AuthorizeFailureChallenge, Err: pkce.ErrChallengeTooShort}
	}

	scope := strings.Join(strings.Fields(in.Scope), " ")
	if scope == "" {
		scope = deps.DefaultScope
	}
	if !client.AllowsScope(scope) {
		return AuthorizeResult{Failure: AuthorizeFailureScope}
	}

	if in.SessionToken == "" {
		return AuthorizeResult{Failure: AuthorizeFailureLoginRequired}
	}
	userID, err := deps.DecodeSession(in.SessionToken)
	if err != nil {
		return AuthorizeResult{Failure: AuthorizeFailureLoginRequired, Err: err}
	}

	redirect, err := url.Parse(in.RedirectURI)
	if err != nil {
		return AuthorizeResult{Failure: AuthorizeFailureRedirectURI, Err: err}
	}

	raw, err := deps.NewCode()
	if err != nil {
		return AuthorizeResult{Failure: AuthorizeFailureIssue, Err: err, UserID: userID}
	}
	hash := deps.HashCode(raw)

	record := &codes.AuthorizationCode{
		ID:                  deps.NewID(),
		CodeHash:            hash,
		ClientID:            client.ClientID,
		RedirectURI:         in.RedirectURI,
		Scope:               scope,
		CodeChallenge:       in.CodeChallenge,
		CodeChallengeMethod: pkce.MethodS256,
		UserID:              userID,
		ExpiresAt:           deps.Now().Add(deps.CodeTTL).Unix(),
	}

	sctx, cancel := storeContext(ctx, deps.StoreContext)
	defer cancel()
	if err := deps.Codes.Save(sctx, record); err != nil {
		return AuthorizeResult{Failure: AuthorizeFailureStore, Err: err, UserID: userID, CodeHash: hash}
	}

	q := redirect.Query()
	q.Set("code", raw)
	if in.State != "" {
		q.Set("state", in.State)
	}
	redirect.RawQuery = q.Encode()

	return AuthorizeResult{
		UserID:      userID,
		Scope:       scope,
		Code:        raw,
		CodeHash:    hash,
		RedirectURL: redirect.String(),
	}
}
