package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/MrEthical07/authcore"
	authmw "github.com/MrEthical07/authcore/middleware"
)

const maxJSONBody = 1 << 16

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshHandler handles POST /auth/refresh.
func (h *Handler) RefreshHandler(w http.ResponseWriter, r *http.Request) {
	var body refreshRequest
	if err := decodeJSON(r, &body); err != nil || body.RefreshToken == "" {
		authmw.WriteError(w, authcore.ErrUnauthenticated)
		return
	}

	res, err := h.engine.Refresh(r.Context(), body.RefreshToken)
	if err != nil {
		authmw.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// LogoutHandler handles POST /auth/logout. It always answers 204 and
// clears the session cookie.
func (h *Handler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	var access string
	if v := r.Header.Get("Authorization"); len(v) > 7 && strings.EqualFold(v[:7], "Bearer ") {
		access = strings.TrimSpace(v[7:])
	}
	var body refreshRequest
	_ = decodeJSON(r, &body)

	h.engine.Logout(r.Context(), access, body.RefreshToken)

	h.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// JSONLoginHandler handles POST /auth/login and returns a token pair.
func (h *Handler) JSONLoginHandler(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if err := decodeJSON(r, &body); err != nil {
		authmw.WriteError(w, authcore.ErrInvalidCredentials)
		return
	}

	user, err := h.engine.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		authmw.WriteError(w, err)
		return
	}
	pair, err := h.engine.IssueTokenPair(user)
	if err != nil {
		authmw.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxJSONBody))
	return dec.Decode(v)
}
