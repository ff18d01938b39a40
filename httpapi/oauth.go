package httpapi

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/MrEthical07/authcore"
	authmw "github.com/MrEthical07/authcore/middleware"
	"go.uber.org/zap"
)

// AuthorizeHandler handles GET /oauth/authorize. Parameter errors are
// answered with JSON and never redirected to the client's redirect_uri,
// since that URI is not trusted until it has been matched.
func (h *Handler) AuthorizeHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := authcore.AuthorizeRequest{
		ClientID:            q.Get("client_id"),
		RedirectURI:         q.Get("redirect_uri"),
		ResponseType:        q.Get("response_type"),
		CodeChallenge:       q.Get("code_challenge"),
		CodeChallengeMethod: q.Get("code_challenge_method"),
		Scope:               q.Get("scope"),
		State:               q.Get("state"),
	}

	res, err := h.engine.Authorize(r.Context(), req, h.sessionToken(r))
	if err != nil {
		if errors.Is(err, authcore.ErrLoginRequired) {
			loginURL := h.engine.Config().Security.LoginPath + "?next=" + url.QueryEscape(r.URL.RequestURI())
			http.Redirect(w, r, loginURL, http.StatusFound)
			return
		}
		h.logger.Debug("authorize failed", zap.Error(err))
		authmw.WriteError(w, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, res.RedirectURL, http.StatusFound)
}

// TokenHandler handles POST /oauth/token (form encoded).
func (h *Handler) TokenHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		authmw.WriteError(w, authcore.ErrInvalidRequest)
		return
	}

	resp, err := h.engine.ExchangeCode(r.Context(), authcore.TokenRequest{
		GrantType:    r.PostForm.Get("grant_type"),
		Code:         r.PostForm.Get("code"),
		RedirectURI:  r.PostForm.Get("redirect_uri"),
		ClientID:     r.PostForm.Get("client_id"),
		CodeVerifier: r.PostForm.Get("code_verifier"),
	})
	if err != nil {
		authmw.WriteError(w, err)
		return
	}

	w.Header().Set("Pragma", "no-cache")
	writeJSON(w, http.StatusOK, resp)
}
