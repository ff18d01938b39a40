package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/authcore/codes"
	"github.com/MrEthical07/authcore/pkce"
	"github.com/MrEthical07/authcore/users"
)

// TokenFailureKind classifies token exchange failures for root-level mapping.
type TokenFailureKind int

const (
	TokenFailureNone TokenFailureKind = iota
	TokenFailureGrantType
	TokenFailureMissingParam
	TokenFailureNotFound
	TokenFailureExpired
	TokenFailureReplay
	TokenFailureClientMismatch
	TokenFailureRedirectMismatch
	TokenFailurePKCE
	TokenFailureUser
	TokenFailureBackend
	TokenFailureIssue
)

// TokenInput is the parsed token request.
type TokenInput struct {
	GrantType    string
	Code         string
	RedirectURI  string
	ClientID     string
	CodeVerifier string
}

// TokenResult carries the minted tokens on success. CodeHash is set as soon
// as the code has been hashed so failures can be correlated in logs.
type TokenResult struct {
	Failure      TokenFailureKind
	Err          error
	CodeHash     string
	ClientID     string
	UserID       string
	Scope        string
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
}

// TokenDeps captures token exchange dependencies.
type TokenDeps struct {
	Codes             codes.Store
	Users             users.Lookup
	HashCode          func(string) string
	ValidCodeFormat   func(string) error
	Now               func() time.Time
	IssueAccess       func(sub, scope string, roles []string) (string, error)
	IssueRefresh      func(sub string) (string, error)
	AccessTTL         time.Duration
	IssueRefreshToken bool
	StoreContext      StoreContext
}

// RunExchangeCode redeems an authorization code. The code is consumed
// before the client, redirect and verifier checks, so a mismatched request
// still burns it.
func RunExchangeCode(ctx context.Context, in TokenInput, deps TokenDeps) TokenResult {
	if in.GrantType != "authorization_code" {
		return TokenResult{Failure: TokenFailureGrantType}
	}
	if in.Code == "" || in.CodeVerifier == "" || in.ClientID == "" || in.RedirectURI == "" {
		return TokenResult{Failure: TokenFailureMissingParam}
	}
	if deps.ValidCodeFormat != nil {
		if err := deps.ValidCodeFormat(in.Code); err != nil {
			return TokenResult{Failure: TokenFailureNotFound, Err: err}
		}
	}

	hash := deps.HashCode(in.Code)
	res := TokenResult{CodeHash: hash, ClientID: in.ClientID}

	// Lookup through issuance ignores caller cancellation: a consumed code
	// always ends in a response.
	sctx, cancel := storeContext(ctx, deps.StoreContext)
	defer cancel()

	record, err := deps.Codes.Get(sctx, hash)
	if err != nil {
		if errors.Is(err, codes.ErrNotFound) {
			res.Failure, res.Err = TokenFailureNotFound, err
		} else {
			res.Failure, res.Err = TokenFailureBackend, err
		}
		return res
	}
	res.UserID = record.UserID

	now := deps.Now()
	if record.Expired(now) {
		res.Failure = TokenFailureExpired
		return res
	}

	if err := deps.Codes.MarkUsed(sctx, hash, now); err != nil {
		switch {
		case errors.Is(err, codes.ErrAlreadyUsed):
			res.Failure = TokenFailureReplay
		case errors.Is(err, codes.ErrNotFound):
			res.Failure = TokenFailureNotFound
		default:
			res.Failure = TokenFailureBackend
		}
		res.Err = err
		return res
	}

	if record.ClientID != in.ClientID {
		res.Failure = TokenFailureClientMismatch
		return res
	}
	if record.RedirectURI != in.RedirectURI {
		res.Failure = TokenFailureRedirectMismatch
		return res
	}
	if record.CodeChallengeMethod != pkce.MethodS256 || !pkce.VerifyChallenge(in.CodeVerifier, record.CodeChallenge) {
		res.Failure = TokenFailurePKCE
		return res
	}

	user, err := deps.Users.GetByID(sctx, record.UserID)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			res.Failure, res.Err = TokenFailureUser, err
		} else {
			res.Failure, res.Err = TokenFailureBackend, err
		}
		return res
	}
	if !user.Active {
		res.Failure = TokenFailureUser
		return res
	}

	access, err := deps.IssueAccess(user.ID, record.Scope, user.Roles)
	if err != nil {
		res.Failure, res.Err = TokenFailureIssue, err
		return res
	}
	res.AccessToken = access
	res.Scope = record.Scope
	res.ExpiresIn = deps.AccessTTL

	if deps.IssueRefreshToken {
		refresh, err := deps.IssueRefresh(user.ID)
		if err != nil {
			res.Failure, res.Err = TokenFailureIssue, err
			res.AccessToken = ""
			return res
		}
		res.RefreshToken = refresh
	}

	return res
}
